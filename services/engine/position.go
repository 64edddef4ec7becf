package engine

import "math"

type PositionSide int

const (
	SideFlat PositionSide = iota
	SideLong
	SideShort
)

// AccountPosition tracks one symbol with average-cost accounting.
// Quantity is always non-negative; Side carries the direction.
type AccountPosition struct {
	Side        PositionSide
	Quantity    float64
	AvgPrice    float64
	RealizedPnl float64
	OpenedAt    int64
}

// Signed returns the position as a signed quantity.
func (p *AccountPosition) Signed() float64 {
	if p.Side == SideShort {
		return -p.Quantity
	}
	return p.Quantity
}

// ApplyFill updates position with a new fill and returns the pnl realized
// by the part of qty that reduced the existing position.
func (p *AccountPosition) ApplyFill(ts int64, side TradeSide, price, qty float64) (realized float64) {
	if qty == 0 {
		return 0
	}
	opening, closing := SideLong, SideShort
	dir := 1.0
	if side == TradeSideSell {
		opening, closing = SideShort, SideLong
		dir = -1
	}
	if p.Side == closing {
		// reduce/flip; a long closed by a sell earns price - avg, a short
		// closed by a buy earns avg - price
		reduced := min(p.Quantity, qty)
		realized = (p.AvgPrice - price) * reduced * dir
		p.RealizedPnl += realized
		p.Quantity -= qty
		if p.Quantity < 0 {
			p.Side = opening
			p.AvgPrice = price
			p.Quantity = -p.Quantity
			p.OpenedAt = ts
		} else if p.Quantity == 0 {
			p.Side = SideFlat
			p.AvgPrice = 0
		}
		return realized
	}
	if p.Side == SideFlat {
		p.OpenedAt = ts
	}
	p.AvgPrice = weightedAvg(p.AvgPrice, p.Quantity, price, qty)
	p.Quantity += qty
	p.Side = opening
	return 0
}

// snapTo pins the position to target when repeated fills leave float
// residue. Larger differences are left alone.
func (p *AccountPosition) snapTo(target float64) {
	if absf(p.Signed()-target) > 1e-9*math.Max(1, absf(target)) {
		return
	}
	switch {
	case target > 0:
		p.Side, p.Quantity = SideLong, target
	case target < 0:
		p.Side, p.Quantity = SideShort, -target
	default:
		p.Side, p.Quantity, p.AvgPrice = SideFlat, 0, 0
	}
}

func weightedAvg(p1, q1, p2, q2 float64) float64 {
	if q1+q2 == 0 {
		return 0
	}
	return (p1*q1 + p2*q2) / (q1 + q2)
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
