package cases

type client struct{}

func (c *client) query(q string) (string, int, error) { return "", 0, nil }

//traceback:trace
func (c *client) Run(q string) (string, int, error) {
	return c.query(q)
}
