package engine

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriteTradesCSV(t *testing.T) {
	trades := []Trade{
		{Timestamp: 100, Symbol: "AAA", Side: TradeSideBuy, Quantity: 10, Price: 100.01, TransactionCost: 0.5},
		{Timestamp: 200, Symbol: "AAA", Side: TradeSideSell, Quantity: 10, Price: 100.25, PnL: 1.9, Liquidation: true},
	}
	var buf bytes.Buffer
	if err := WriteTradesCSV(&buf, trades); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("want header + 2 rows, got %d", len(lines))
	}
	if lines[0] != strings.Join(tradeHeader, ",") {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[1] != "100,AAA,BUY,10,100.01,0,0.5,0,false" {
		t.Fatalf("row 1 = %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], ",true") {
		t.Fatalf("liquidation flag missing: %q", lines[2])
	}
}

func TestWriteEquityCSV(t *testing.T) {
	var buf bytes.Buffer
	curve := []EquityPoint{{Timestamp: 1, Equity: 100000}, {Timestamp: 2, Equity: 99500, Drawdown: 0.005}}
	if err := WriteEquityCSV(&buf, curve); err != nil {
		t.Fatal(err)
	}
	want := "timestamp,equity,drawdown\n1,100000,0\n2,99500,0.005\n"
	if buf.String() != want {
		t.Fatalf("got %q", buf.String())
	}
}
