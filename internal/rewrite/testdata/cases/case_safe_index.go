package cases

//traceback:trace
func pick(values []string, i int) error {
	v := values[i]
	use(v)
	return nil
}

func use(v string) {}
