// Package arrowpipeline serializes alpha signals to Apache Arrow IPC streams
// for columnar research tooling.
package arrowpipeline

import (
	"bytes"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"go.uber.org/zap"

	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/signals"
)

// Config holds Arrow pipeline configuration
type Config struct {
	BatchSize int `yaml:"batch_size"`
}

func DefaultConfig() Config { return Config{BatchSize: 4096} }

// Pipeline encodes and decodes signal record batches.
type Pipeline struct {
	config Config
	mem    memory.Allocator
	logger *zap.Logger
}

type Option func(*Pipeline)

func WithAllocator(mem memory.Allocator) Option {
	return func(p *Pipeline) { p.mem = mem }
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

func NewPipeline(config Config, opts ...Option) *Pipeline {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	p := &Pipeline{config: config, mem: memory.NewGoAllocator(), logger: zap.NewNop()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// floatColumn addresses one float64 field of a signal, for both directions.
type floatColumn struct {
	name  string
	field func(*signals.Signal) *float64
}

var floatColumns = []floatColumn{
	{"signal_value", func(s *signals.Signal) *float64 { return &s.Value }},
	{"confidence", func(s *signals.Signal) *float64 { return &s.Confidence }},
	{"mid_price", func(s *signals.Signal) *float64 { return &s.MidPrice }},
	{"volume_imbalance", func(s *signals.Signal) *float64 { return &s.Features.VolumeImbalance }},
	{"depth_imbalance", func(s *signals.Signal) *float64 { return &s.Features.DepthImbalance }},
	{"price_imbalance", func(s *signals.Signal) *float64 { return &s.Features.PriceImbalance }},
	{"relative_spread", func(s *signals.Signal) *float64 { return &s.Features.RelativeSpread }},
	{"effective_spread", func(s *signals.Signal) *float64 { return &s.Features.EffectiveSpread }},
	{"microprice_volatility", func(s *signals.Signal) *float64 { return &s.Features.MicropriceVolatility }},
	{"spread_volatility", func(s *signals.Signal) *float64 { return &s.Features.SpreadVolatility }},
	{"order_flow_toxicity", func(s *signals.Signal) *float64 { return &s.Features.OrderFlowToxicity }},
	{"vpin", func(s *signals.Signal) *float64 { return &s.Features.VPIN }},
}

// leading non-float columns: timestamp, symbol, model, version
const fixedColumns = 4

// Schema is the column layout of every record batch.
var Schema = func() *arrow.Schema {
	fields := []arrow.Field{
		{Name: "timestamp", Type: arrow.PrimitiveTypes.Int64},
		{Name: "symbol", Type: arrow.BinaryTypes.String},
		{Name: "model", Type: arrow.BinaryTypes.String},
		{Name: "version", Type: arrow.BinaryTypes.String},
	}
	for _, c := range floatColumns {
		fields = append(fields, arrow.Field{Name: c.name, Type: arrow.PrimitiveTypes.Float64})
	}
	return arrow.NewSchema(fields, nil)
}()

// EncodeSignals writes sigs as an IPC stream, BatchSize rows per record.
func (p *Pipeline) EncodeSignals(sigs []signals.Signal) ([]byte, error) {
	var buf bytes.Buffer
	if err := p.WriteSignals(&buf, sigs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *Pipeline) WriteSignals(w io.Writer, sigs []signals.Signal) error {
	writer := ipc.NewWriter(w, ipc.WithSchema(Schema), ipc.WithAllocator(p.mem))
	for start := 0; start < len(sigs); start += p.config.BatchSize {
		end := min(start+p.config.BatchSize, len(sigs))
		rec := p.buildRecord(sigs[start:end])
		err := writer.Write(rec)
		rec.Release()
		if err != nil {
			writer.Close()
			return fmt.Errorf("failed to write Arrow record: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close Arrow writer: %w", err)
	}
	p.logger.Debug("Encoded signals", zap.Int("rows", len(sigs)))
	return nil
}

func (p *Pipeline) buildRecord(sigs []signals.Signal) arrow.Record {
	b := array.NewRecordBuilder(p.mem, Schema)
	defer b.Release()

	ts := b.Field(0).(*array.Int64Builder)
	sym := b.Field(1).(*array.StringBuilder)
	model := b.Field(2).(*array.StringBuilder)
	version := b.Field(3).(*array.StringBuilder)
	floats := make([]*array.Float64Builder, len(floatColumns))
	for i := range floatColumns {
		floats[i] = b.Field(fixedColumns + i).(*array.Float64Builder)
	}

	for i := range sigs {
		s := &sigs[i]
		ts.Append(s.Timestamp)
		sym.Append(s.Symbol)
		model.Append(s.Model)
		version.Append(s.Version)
		for j, c := range floatColumns {
			floats[j].Append(*c.field(s))
		}
	}
	return b.NewRecord()
}

// DecodeSignals reads a stream produced by EncodeSignals. Feature vectors
// get the row's timestamp and symbol.
func (p *Pipeline) DecodeSignals(data []byte) ([]signals.Signal, error) {
	return p.ReadSignals(bytes.NewReader(data))
}

func (p *Pipeline) ReadSignals(r io.Reader) ([]signals.Signal, error) {
	rdr, err := ipc.NewReader(r, ipc.WithAllocator(p.mem), ipc.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("open Arrow reader: %w", err)
	}
	defer rdr.Release()

	var out []signals.Signal
	for rdr.Next() {
		rec := rdr.Record()
		ts, ok := rec.Column(0).(*array.Int64)
		if !ok {
			return nil, fmt.Errorf("timestamp column has type %s", rec.Column(0).DataType())
		}
		sym := rec.Column(1).(*array.String)
		model := rec.Column(2).(*array.String)
		version := rec.Column(3).(*array.String)
		floats := make([]*array.Float64, len(floatColumns))
		for i := range floatColumns {
			floats[i] = rec.Column(fixedColumns + i).(*array.Float64)
		}
		for row := 0; row < int(rec.NumRows()); row++ {
			s := signals.Signal{
				Timestamp: ts.Value(row),
				Symbol:    sym.Value(row),
				Model:     model.Value(row),
				Version:   version.Value(row),
			}
			s.Features.Timestamp, s.Features.Symbol = s.Timestamp, s.Symbol
			for j, c := range floatColumns {
				*c.field(&s) = floats[j].Value(row)
			}
			out = append(out, s)
		}
	}
	if err := rdr.Err(); err != nil {
		return nil, fmt.Errorf("read Arrow stream: %w", err)
	}
	return out, nil
}
