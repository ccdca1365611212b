package cases

func ping(addr string) error { return nil }

//traceback:trace
func check(addr string) error {
	return ping(addr)
}
