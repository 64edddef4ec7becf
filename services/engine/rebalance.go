package engine

import "fmt"

// RebalanceFrequency limits how often a symbol's position may change.
type RebalanceFrequency string

const (
	RebalanceTick   RebalanceFrequency = "tick"
	RebalanceSecond RebalanceFrequency = "second"
	RebalanceMinute RebalanceFrequency = "minute"
)

func ParseRebalanceFrequency(s string) (RebalanceFrequency, error) {
	switch RebalanceFrequency(s) {
	case RebalanceTick, "":
		return RebalanceTick, nil
	case RebalanceSecond:
		return RebalanceSecond, nil
	case RebalanceMinute:
		return RebalanceMinute, nil
	}
	return "", fmt.Errorf("unknown rebalance frequency %q", s)
}

func (f RebalanceFrequency) stepMs() int64 {
	switch f {
	case RebalanceSecond:
		return 1000
	case RebalanceMinute:
		return 60_000
	}
	return 0
}

// gate allows one fill per symbol in each time bucket. Tick frequency
// allows every signal. A bucket is spent by commit, not by open.
type gate struct {
	step int64
	last map[string]int64
}

func newGate(f RebalanceFrequency) *gate {
	return &gate{step: f.stepMs(), last: make(map[string]int64)}
}

func (g *gate) open(symbol string, ts int64) bool {
	if g.step == 0 {
		return true
	}
	prev, ok := g.last[symbol]
	return !ok || prev != floorDiv(ts, g.step)
}

func (g *gate) commit(symbol string, ts int64) {
	if g.step != 0 {
		g.last[symbol] = floorDiv(ts, g.step)
	}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
