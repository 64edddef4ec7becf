package main

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/lob"
)

// Violation is one failed acceptance check.
type Violation struct {
	Check     string
	Symbol    string
	Timestamp int64
	Detail    string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s %s@%d: %s", v.Check, v.Symbol, v.Timestamp, v.Detail)
}

// ValidationSuite runs acceptance checks on parsed snapshots before they
// are staged into ClickHouse.
type ValidationSuite struct {
	StepMs    int64
	Tolerance float64
	logger    *zap.Logger
}

func NewValidationSuite(stepMs int64, logger *zap.Logger) *ValidationSuite {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ValidationSuite{StepMs: stepMs, Tolerance: 1e-6, logger: logger}
}

// RunAllValidations executes every check and returns the violations found.
// Gaps only count when StepMs is positive.
func (v *ValidationSuite) RunAllValidations(snaps []lob.Snapshot) []Violation {
	var out []Violation
	groups := lob.GroupBySymbol(snaps)
	symbols := make([]string, 0, len(groups))
	for sym := range groups {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		list := groups[sym]
		before := len(out)
		out = append(out, v.TestDuplicates(list)...)
		out = append(out, v.TestInvariants(list)...)
		out = append(out, v.TestGaps(list)...)
		v.logger.Debug("Validated symbol",
			zap.String("symbol", sym),
			zap.Int("snapshots", len(list)),
			zap.Int("violations", len(out)-before),
		)
	}
	return out
}

// TestDuplicates flags repeated timestamps within a symbol. list must be
// time ordered.
func (v *ValidationSuite) TestDuplicates(list []lob.Snapshot) []Violation {
	var out []Violation
	for i := 1; i < len(list); i++ {
		if list[i].Timestamp == list[i-1].Timestamp {
			out = append(out, Violation{"duplicate", list[i].Symbol, list[i].Timestamp, "repeated timestamp"})
		}
	}
	return out
}

// TestInvariants checks book shape: positive uncrossed top of book,
// monotone price ladders, non-negative sizes and a mid consistent with the
// top of book.
func (v *ValidationSuite) TestInvariants(list []lob.Snapshot) []Violation {
	var out []Violation
	bad := func(s lob.Snapshot, format string, args ...any) {
		out = append(out, Violation{"invariant", s.Symbol, s.Timestamp, fmt.Sprintf(format, args...)})
	}
	for _, s := range list {
		bid, ask := s.BidPrices[0], s.AskPrices[0]
		if !(bid > 0) || !(ask > 0) {
			bad(s, "non-positive top of book %v/%v", bid, ask)
			continue
		}
		if bid >= ask {
			bad(s, "crossed book %v >= %v", bid, ask)
		}
		for l := 1; l < lob.Depth; l++ {
			if s.BidPrices[l] > s.BidPrices[l-1] {
				bad(s, "bid level %d above level %d", l+1, l)
			}
			if s.AskPrices[l] < s.AskPrices[l-1] {
				bad(s, "ask level %d below level %d", l+1, l)
			}
		}
		for l := 0; l < lob.Depth; l++ {
			if s.BidSizes[l] < 0 || s.AskSizes[l] < 0 {
				bad(s, "negative size at level %d", l+1)
			}
		}
		if mid := (bid + ask) / 2; math.Abs(s.MidPrice-mid) > v.Tolerance*mid {
			bad(s, "mid %v differs from top of book %v", s.MidPrice, mid)
		}
	}
	return out
}

// TestGaps flags every step longer than StepMs.
func (v *ValidationSuite) TestGaps(list []lob.Snapshot) []Violation {
	if v.StepMs <= 0 {
		return nil
	}
	ts := make([]int64, len(list))
	for i, s := range list {
		ts[i] = s.Timestamp
	}
	var out []Violation
	for _, g := range lob.DetectGaps(ts, v.StepMs) {
		out = append(out, Violation{"gap", list[0].Symbol, g, fmt.Sprintf("next snapshot more than %dms later", v.StepMs)})
	}
	return out
}
