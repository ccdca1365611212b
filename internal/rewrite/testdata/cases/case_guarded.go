package cases

import "fmt"

func fetch(id string) ([]byte, error) { return nil, nil }

func decode(raw []byte) (int, error) { return 0, nil }

//traceback:trace
func load(id string) (int, error) {
	raw, err := fetch(id)
	if err != nil {
		return 0, err
	}

	n, err := decode(raw)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", id, err)
	}

	return n, nil
}
