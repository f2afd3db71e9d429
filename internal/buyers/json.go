package buyers

import (
	"encoding/json"
	"fmt"
	"os"
)

func readJSON(path string) ([]Buyer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open buyers file: %w", err)
	}
	defer file.Close()

	dec := json.NewDecoder(file)
	dec.UseNumber()
	var raw []map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode buyers JSON: %w", err)
	}

	out := make([]Buyer, 0, len(raw))
	for i, obj := range raw {
		if len(obj) == 0 {
			return nil, fmt.Errorf("buyer %d is empty", i)
		}
		b := make(Buyer, len(obj))
		for k, v := range obj {
			b[k] = fmt.Sprintf("%v", v)
		}
		out = append(out, b)
	}
	return out, nil
}
