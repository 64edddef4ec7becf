package engine

import (
	"math"

	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/signals"
)

type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

func (s TradeSide) Opposite() TradeSide {
	if s == TradeSideBuy {
		return TradeSideSell
	}
	return TradeSideBuy
}

// DeadZone is the |value x confidence| below which the target is flat.
const DeadZone = 0.1

// LegacyPrice is the fixed reference of PlaceholderPrice.
const LegacyPrice = 100.0

// SizeFunc maps a signal to a signed target position.
type SizeFunc func(value, confidence, maxPosition float64) float64

// PriceFunc returns the execution price for a fill on side. mid is the
// signal's mid, or the symbol's last usable mid when the signal has none,
// and is 0 when no usable mid has been seen yet. A non-positive price
// skips the fill.
type PriceFunc func(sig signals.Signal, mid float64, side TradeSide) float64

// Policy is the replaceable strategy logic of a run.
type Policy struct {
	Size  SizeFunc
	Price PriceFunc
}

func DefaultPolicy() Policy {
	return Policy{Size: DefaultSize, Price: MidCrossPrice}
}

// DefaultSize scales the position by signal strength, capped at
// maxPosition, with a flat dead zone around zero.
func DefaultSize(value, confidence, maxPosition float64) float64 {
	strength := value * confidence
	if math.IsNaN(strength) || math.IsInf(strength, 0) || math.Abs(strength) < DeadZone {
		return 0
	}
	return sign(strength) * math.Min(math.Abs(strength)*maxPosition, maxPosition)
}

// MidCrossPrice executes at mid plus half the effective spread for buys
// and minus it for sells. Without a usable mid it returns 0.
func MidCrossPrice(sig signals.Signal, mid float64, side TradeSide) float64 {
	if !usablePrice(mid) {
		return 0
	}
	return crossSpread(mid, sig.Features.EffectiveSpread, side)
}

// PlaceholderPrice ignores the mid and crosses the spread around
// LegacyPrice.
func PlaceholderPrice(sig signals.Signal, _ float64, side TradeSide) float64 {
	return crossSpread(LegacyPrice, sig.Features.EffectiveSpread, side)
}

func crossSpread(mid, spread float64, side TradeSide) float64 {
	half := 0.0
	if spread > 0 && !math.IsInf(spread, 0) {
		half = spread / 2
	}
	if side == TradeSideBuy {
		return mid + half
	}
	return mid - half
}

func usablePrice(p float64) bool { return p > 0 && !math.IsInf(p, 0) }
