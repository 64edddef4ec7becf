package engine

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/shopspring/decimal"
)

var tradeHeader = []string{"timestamp", "symbol", "side", "quantity", "price", "pnl", "transaction_cost", "slippage", "liquidation"}

// WriteTradesCSV writes the trade log with decimal-formatted amounts.
func WriteTradesCSV(w io.Writer, trades []Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeHeader); err != nil {
		return err
	}
	for _, t := range trades {
		rec := []string{
			strconv.FormatInt(t.Timestamp, 10),
			t.Symbol,
			string(t.Side),
			dec(t.Quantity),
			dec(t.Price),
			dec(t.PnL),
			dec(t.TransactionCost),
			dec(t.Slippage),
			strconv.FormatBool(t.Liquidation),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEquityCSV writes the equity curve.
func WriteEquityCSV(w io.Writer, curve []EquityPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "equity", "drawdown"}); err != nil {
		return err
	}
	for _, p := range curve {
		if err := cw.Write([]string{strconv.FormatInt(p.Timestamp, 10), dec(p.Equity), dec(p.Drawdown)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func dec(v float64) string {
	return decimal.NewFromFloat(v).String()
}
