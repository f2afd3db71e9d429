// Package verdict decides whether a finished run oversold the stock and
// whether every attempt was accounted for.
package verdict

import "fmt"

// StockStatus compares the number of successful purchases to the stock.
type StockStatus int

const (
	StockExact StockStatus = iota
	StockOversold
	StockUndersold
)

func (s StockStatus) String() string {
	switch s {
	case StockExact:
		return "exact"
	case StockOversold:
		return "oversold"
	case StockUndersold:
		return "undersold"
	default:
		return fmt.Sprintf("StockStatus(%d)", int(s))
	}
}

// MarshalText lets reports encode the status by name.
func (s StockStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StockVerdict is the outcome of the oversell check.
type StockVerdict struct {
	Status       StockStatus `json:"status" yaml:"status"`
	Successes    int64       `json:"successes" yaml:"successes"`
	InitialStock int64       `json:"initial_stock" yaml:"initial_stock"`
	Excess       int64       `json:"excess,omitempty" yaml:"excess,omitempty"`
	Message      string      `json:"message" yaml:"message"`
}

// Oversold reports whether more purchases succeeded than there was stock.
func (v StockVerdict) Oversold() bool { return v.Status == StockOversold }

// CheckStock compares successes against the stock the target started with.
func CheckStock(successes, initialStock int64) StockVerdict {
	v := StockVerdict{Successes: successes, InitialStock: initialStock}
	switch {
	case successes == initialStock:
		v.Status = StockExact
		v.Message = fmt.Sprintf("PASS: successful purchases (%d) equal the initial stock (%d), no oversell", successes, initialStock)
	case successes > initialStock:
		v.Status = StockOversold
		v.Excess = successes - initialStock
		v.Message = fmt.Sprintf("OVERSELL DETECTED: %d successful purchases exceed the initial stock of %d by %d", successes, initialStock, v.Excess)
	default:
		v.Status = StockUndersold
		v.Message = fmt.Sprintf("NOTE: successful purchases (%d) are below the initial stock (%d); stock was not exhausted or some attempts failed", successes, initialStock)
	}
	return v
}

// TotalsVerdict is the outcome of the count consistency check.
type TotalsVerdict struct {
	OK        bool   `json:"ok" yaml:"ok"`
	Processed int64  `json:"processed" yaml:"processed"`
	Expected  int64  `json:"expected" yaml:"expected"`
	Message   string `json:"message" yaml:"message"`
}

// CheckTotals verifies that the tally accounts for every dispatched attempt.
func CheckTotals(processed, expected int64) TotalsVerdict {
	v := TotalsVerdict{OK: processed == expected, Processed: processed, Expected: expected}
	if v.OK {
		v.Message = fmt.Sprintf("all %d attempts accounted for", expected)
	} else {
		v.Message = fmt.Sprintf("WARNING: processed %d attempts but %d were dispatched", processed, expected)
	}
	return v
}
