package model

import (
	"testing"
	"time"
)

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"aapl", "AAPL"},
		{"  msft ", "MSFT"},
		{"", ""},
		{"   ", ""},
		{"BRK.B", "BRK.B"},
	}

	for _, tt := range tests {
		if got := NormalizeSymbol(tt.in); got != tt.want {
			t.Errorf("NormalizeSymbol(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSymbolSet(t *testing.T) {
	set := SymbolSet([]string{"aapl", "AAPL", " tsla", "", "  "})

	if len(set) != 2 {
		t.Fatalf("len(set) = %d, want 2", len(set))
	}
	for _, sym := range []string{"AAPL", "TSLA"} {
		if _, ok := set[sym]; !ok {
			t.Errorf("set missing %q", sym)
		}
	}
}

func TestPriceTable(t *testing.T) {
	now := time.Now()
	table := PriceTable{
		"AAPL": {Symbol: "AAPL", Price: 150, ObservedAt: now},
		"MSFT": {Symbol: "MSFT", Price: 410, ObservedAt: now},
		"TSLA": {Symbol: "TSLA", Price: 240, ObservedAt: now},
	}

	t.Run("Clone", func(t *testing.T) {
		c := table.Clone()
		c["AAPL"] = PriceQuote{Symbol: "AAPL", Price: 1}

		if table["AAPL"].Price != 150 {
			t.Errorf("original mutated through clone: price = %v", table["AAPL"].Price)
		}
	})

	t.Run("Filter", func(t *testing.T) {
		f := table.Filter(map[string]struct{}{"AAPL": {}, "NFLX": {}})

		if len(f) != 1 {
			t.Fatalf("len(filtered) = %d, want 1", len(f))
		}
		if f["AAPL"].Price != 150 {
			t.Errorf("AAPL price = %v, want 150", f["AAPL"].Price)
		}
	})

	t.Run("FilterEmptyMeansAll", func(t *testing.T) {
		f := table.Filter(nil)
		if len(f) != 3 {
			t.Errorf("len(filtered) = %d, want 3", len(f))
		}
	})

	t.Run("Symbols", func(t *testing.T) {
		got := table.Symbols()
		want := []string{"AAPL", "MSFT", "TSLA"}
		if len(got) != len(want) {
			t.Fatalf("Symbols() = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("Symbols()[%d] = %q, want %q", i, got[i], want[i])
			}
		}
	})
}

func TestParseTradeSide(t *testing.T) {
	tests := []struct {
		in   string
		want TradeSide
		ok   bool
	}{
		{"buy", SideBuy, true},
		{" SELL ", SideSell, true},
		{"Buy", SideBuy, true},
		{"hold", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseTradeSide(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseTradeSide(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
