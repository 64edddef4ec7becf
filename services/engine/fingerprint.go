package engine

// Signal fingerprinting for run manifests

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/signals"
)

// hashSignals fingerprints the ordered inputs that drive a run: identity,
// model outputs, mid and spread.
func hashSignals(sigs []signals.Signal) string {
	h := sha256.New()
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	for _, s := range sigs {
		put(uint64(s.Timestamp))
		h.Write([]byte(s.Symbol))
		h.Write([]byte{0})
		put(math.Float64bits(s.Value))
		put(math.Float64bits(s.Confidence))
		put(math.Float64bits(s.MidPrice))
		put(math.Float64bits(s.Features.EffectiveSpread))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
