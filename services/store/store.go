// Package store keeps snapshots, signals and backtest results in memory,
// keyed by symbol and result ID.
package store

import (
	"sort"
	"sync"

	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/engine"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/lob"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/signals"
)

type SnapshotReader interface {
	Snapshots(symbol string) []lob.Snapshot
	Symbols() []string
}

type SnapshotWriter interface {
	AddSnapshots(symbol string, snaps []lob.Snapshot)
}

type SignalReader interface {
	Signals(symbol string) []signals.Signal
}

type SignalWriter interface {
	AddSignals(symbol string, sigs []signals.Signal)
	SetSignals(symbol string, sigs []signals.Signal)
}

type ResultReader interface {
	Results() []*engine.Result
	Result(id string) (*engine.Result, error)
}

type ResultWriter interface {
	AddResult(res *engine.Result)
}

// Repository is everything the pipeline and API need from storage.
type Repository interface {
	SnapshotReader
	SnapshotWriter
	SignalReader
	SignalWriter
	ResultReader
	ResultWriter
	Stats() Stats
	Clear()
}

type Stats struct {
	TotalSymbols   int `json:"total_symbols"`
	TotalSnapshots int `json:"total_snapshots"`
	TotalSignals   int `json:"total_signals"`
	TotalBacktests int `json:"total_backtests"`
}

// Memory is a Repository guarded by a single RWMutex. Writers copy their
// input and readers get copies, so callers never share backing arrays
// with the store.
type Memory struct {
	mu        sync.RWMutex
	snapshots map[string][]lob.Snapshot
	signals   map[string][]signals.Signal
	results   []*engine.Result
	byID      map[string]*engine.Result
}

func NewMemory() *Memory {
	m := &Memory{}
	m.reset()
	return m
}

func (m *Memory) reset() {
	m.snapshots = make(map[string][]lob.Snapshot)
	m.signals = make(map[string][]signals.Signal)
	m.results = nil
	m.byID = make(map[string]*engine.Result)
}

// AddSnapshots appends to whatever is already stored for symbol.
func (m *Memory) AddSnapshots(symbol string, snaps []lob.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[symbol] = append(m.snapshots[symbol], snaps...)
}

func (m *Memory) Snapshots(symbol string) []lob.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]lob.Snapshot(nil), m.snapshots[symbol]...)
}

// Symbols lists every symbol with snapshots, sorted.
func (m *Memory) Symbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.snapshots))
	for s := range m.snapshots {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (m *Memory) AddSignals(symbol string, sigs []signals.Signal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals[symbol] = append(m.signals[symbol], sigs...)
}

// SetSignals replaces every stored signal of symbol.
func (m *Memory) SetSignals(symbol string, sigs []signals.Signal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals[symbol] = append([]signals.Signal(nil), sigs...)
}

func (m *Memory) Signals(symbol string) []signals.Signal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]signals.Signal(nil), m.signals[symbol]...)
}

func (m *Memory) AddResult(res *engine.Result) {
	if res == nil {
		return
	}
	c := cloneResult(res)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, c)
	m.byID[c.ID] = c
}

// Results returns every stored result in insertion order.
func (m *Memory) Results() []*engine.Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*engine.Result, len(m.results))
	for i, r := range m.results {
		out[i] = cloneResult(r)
	}
	return out
}

func (m *Memory) Result(id string) (*engine.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.byID[id]
	if !ok {
		return nil, engine.ErrNotFound.WithDetails("backtest %q not found", id)
	}
	return cloneResult(r), nil
}

func (m *Memory) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := Stats{TotalSymbols: len(m.snapshots), TotalBacktests: len(m.results)}
	for _, s := range m.snapshots {
		st.TotalSnapshots += len(s)
	}
	for _, s := range m.signals {
		st.TotalSignals += len(s)
	}
	return st
}

// Clear drops everything.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}

func cloneResult(r *engine.Result) *engine.Result {
	c := *r
	c.Config.Symbols = append([]string(nil), r.Config.Symbols...)
	c.Trades = append([]engine.Trade(nil), r.Trades...)
	c.EquityCurve = append([]engine.EquityPoint(nil), r.EquityCurve...)
	if r.Manifest != nil {
		m := *r.Manifest
		c.Manifest = &m
	}
	return &c
}

var _ Repository = (*Memory)(nil)
