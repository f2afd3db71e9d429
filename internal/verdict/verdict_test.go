package verdict

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestCheckStock(t *testing.T) {
	tests := []struct {
		name      string
		successes int64
		stock     int64
		want      StockStatus
		excess    int64
		contains  string
	}{
		{"exact", 100, 100, StockExact, 0, "PASS"},
		{"oversold", 1000, 100, StockOversold, 900, "OVERSELL DETECTED"},
		{"oversold by one", 101, 100, StockOversold, 1, "by 1"},
		{"undersold", 40, 100, StockUndersold, 0, "NOTE"},
		{"zero stock exact", 0, 0, StockExact, 0, "PASS"},
		{"zero stock oversold", 3, 0, StockOversold, 3, "OVERSELL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := CheckStock(tt.successes, tt.stock)
			if v.Status != tt.want {
				t.Fatalf("Status = %s, want %s", v.Status, tt.want)
			}
			if v.Excess != tt.excess {
				t.Errorf("Excess = %d, want %d", v.Excess, tt.excess)
			}
			if v.Oversold() != (tt.want == StockOversold) {
				t.Errorf("Oversold() = %v", v.Oversold())
			}
			if !strings.Contains(v.Message, tt.contains) {
				t.Errorf("Message = %q, want substring %q", v.Message, tt.contains)
			}
		})
	}
}

func TestCheckTotals(t *testing.T) {
	ok := CheckTotals(1000, 1000)
	if !ok.OK {
		t.Fatalf("CheckTotals(1000, 1000).OK = false")
	}

	bad := CheckTotals(999, 1000)
	if bad.OK {
		t.Fatalf("CheckTotals(999, 1000).OK = true")
	}
	if !strings.Contains(bad.Message, "WARNING") {
		t.Errorf("Message = %q, want a warning", bad.Message)
	}
}

func TestStockStatusEncodesByName(t *testing.T) {
	data, err := json.Marshal(CheckStock(5, 2))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(data), `"status":"oversold"`) {
		t.Errorf("JSON = %s, want status by name", data)
	}
	if got := StockStatus(9).String(); got != "StockStatus(9)" {
		t.Errorf("String() = %q", got)
	}
}
