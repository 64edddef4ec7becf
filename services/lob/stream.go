package lob

// Stream is a per-symbol incremental extractor. It keeps only the trailing
// windows the features need, so memory stays flat however long the stream
// runs. Push yields the same vector as Extract over the full prior history.
type Stream struct {
	ext  *Extractor
	hist ring
	seen int

	microBuf  []float64
	spreadBuf []float64
}

type entry struct {
	micro   float64
	spread  float64
	mid     float64
	bestVol float64
}

// ring is a fixed-capacity buffer that overwrites its oldest entry.
type ring struct {
	buf   []entry
	start int
	n     int
}

func newRing(capacity int) ring {
	if capacity < 1 {
		capacity = 1
	}
	return ring{buf: make([]entry, capacity)}
}

func (r *ring) push(e entry) {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = e
		r.n++
		return
	}
	r.buf[r.start] = e
	r.start = (r.start + 1) % len(r.buf)
}

// at returns the i-th entry counting from the oldest retained one.
func (r *ring) at(i int) entry { return r.buf[(r.start+i)%len(r.buf)] }

func NewStream(ext *Extractor) *Stream {
	if ext == nil {
		ext = NewExtractor()
	}
	capacity := ext.VolatilityWindow
	if ext.VPINWindow > capacity {
		capacity = ext.VPINWindow
	}
	return &Stream{
		ext:       ext,
		hist:      newRing(capacity),
		microBuf:  make([]float64, 0, ext.VolatilityWindow),
		spreadBuf: make([]float64, 0, ext.VolatilityWindow),
	}
}

// Seen reports how many snapshots have been pushed.
func (s *Stream) Seen() int { return s.seen }

// Push extracts features for snap against everything pushed before it and
// then appends snap to the history.
func (s *Stream) Push(snap Snapshot) FeatureVector {
	fv := s.ext.assemble(snap, s.volatility(func(e entry) float64 { return e.micro }, &s.microBuf),
		s.volatility(func(e entry) float64 { return e.spread }, &s.spreadBuf), s.vpin())
	s.hist.push(entry{
		micro:   Microprice(snap),
		spread:  snap.Spread,
		mid:     snap.MidPrice,
		bestVol: snap.BidSizes[0] + snap.AskSizes[0],
	})
	s.seen++
	return fv
}

func (s *Stream) volatility(field func(entry) float64, scratch *[]float64) float64 {
	n := s.ext.VolatilityWindow
	if n <= 0 {
		return 0
	}
	if s.hist.n < n {
		n = s.hist.n
	}
	vals := (*scratch)[:0]
	for i := s.hist.n - n; i < s.hist.n; i++ {
		vals = append(vals, field(s.hist.at(i)))
	}
	*scratch = vals
	return Volatility(vals)
}

func (s *Stream) vpin() float64 {
	window := s.ext.VPINWindow
	if window <= 0 || s.seen < window {
		return 0
	}
	first := s.hist.n - window
	var buy, sell float64
	for i := first + 1; i < s.hist.n; i++ {
		cur, prev := s.hist.at(i), s.hist.at(i-1)
		diff := cur.mid - prev.mid
		if diff > 0 {
			buy += cur.bestVol
		} else if diff < 0 {
			sell += cur.bestVol
		}
	}
	return vpinRatio(buy, sell)
}
