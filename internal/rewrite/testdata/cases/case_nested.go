package cases

func send(item string) error { return nil }

//traceback:trace
func sendAll(items []string) error {
	for _, item := range items {
		if err := send(item); err != nil {
			return err
		}
	}

	go func() {
		if err := send("async"); err != nil {
			panic(err)
		}
	}()

	return nil
}
