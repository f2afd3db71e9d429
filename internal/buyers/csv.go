package buyers

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

func readCSV(path string) ([]Buyer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open buyers file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read buyers CSV: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("buyers CSV needs a header row and at least one buyer")
	}

	header := rows[0]
	for i, field := range header {
		header[i] = strings.TrimSpace(field)
		if header[i] == "" {
			return nil, fmt.Errorf("buyers CSV column %d has no name", i+1)
		}
	}

	out := make([]Buyer, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, fmt.Errorf("buyers CSV row %d has %d fields, expected %d", i+2, len(row), len(header))
		}
		b := make(Buyer, len(header))
		for j, field := range header {
			b[field] = row[j]
		}
		out = append(out, b)
	}
	return out, nil
}
