package cases

//traceback:trace
func shutdown() error {
	cleanup()
	return nil
}

func cleanup() {}
