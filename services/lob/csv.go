package lob

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Columns is the canonical snapshot CSV header.
var Columns = []string{
	"timestamp", "symbol",
	"bid1", "bid2", "bid3", "bid4", "bid5",
	"bidsize1", "bidsize2", "bidsize3", "bidsize4", "bidsize5",
	"ask1", "ask2", "ask3", "ask4", "ask5",
	"asksize1", "asksize2", "asksize3", "asksize4", "asksize5",
	"mid_price", "spread",
}

var ErrNoSnapshots = errors.New("no valid snapshots in input")

// ParseCSV reads snapshots in Columns layout. The first record is the
// header. Rows shorter than the header are skipped, as are rows whose
// timestamp cannot be read. Numeric fields that fail to parse become NaN.
// Input may be UTF-8 with or without BOM, or BOM-marked UTF-16.
func ParseCSV(r io.Reader) ([]Snapshot, error) {
	dec := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	cr := csv.NewReader(bufio.NewReader(dec))
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrNoSnapshots
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	width := len(header)
	if width < len(Columns) {
		return nil, fmt.Errorf("header has %d columns, need %d", width, len(Columns))
	}

	var out []Snapshot
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(rec) < width {
			continue
		}
		snap, ok := parseRecord(rec)
		if !ok {
			continue
		}
		out = append(out, snap)
	}
	if len(out) == 0 {
		return nil, ErrNoSnapshots
	}
	return out, nil
}

func parseRecord(rec []string) (Snapshot, bool) {
	ts, ok := parseTimestamp(rec[0])
	if !ok {
		return Snapshot{}, false
	}
	s := Snapshot{Timestamp: ts, Symbol: strings.TrimSpace(rec[1])}
	for i := 0; i < Depth; i++ {
		s.BidPrices[i] = parseFloat(rec[2+i])
		s.BidSizes[i] = parseFloat(rec[7+i])
		s.AskPrices[i] = parseFloat(rec[12+i])
		s.AskSizes[i] = parseFloat(rec[17+i])
	}
	s.MidPrice = parseFloat(rec[22])
	s.Spread = parseFloat(rec[23])
	return s, true
}

func parseFloat(field string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// parseTimestamp accepts epoch milliseconds (integral or not) or RFC3339.
func parseTimestamp(field string) (int64, bool) {
	field = strings.TrimSpace(field)
	if v, err := strconv.ParseFloat(field, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		return int64(v), true
	}
	if t, err := time.Parse(time.RFC3339Nano, field); err == nil {
		return t.UnixMilli(), true
	}
	return 0, false
}

// WriteCSV writes snapshots in Columns layout.
func WriteCSV(w io.Writer, snaps []Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, s := range snaps {
		rec := make([]string, 0, len(Columns))
		rec = append(rec, strconv.FormatInt(s.Timestamp, 10), s.Symbol)
		for _, side := range [][Depth]float64{s.BidPrices, s.BidSizes, s.AskPrices, s.AskSizes} {
			for _, v := range side {
				rec = append(rec, strconv.FormatFloat(v, 'f', -1, 64))
			}
		}
		rec = append(rec, strconv.FormatFloat(s.MidPrice, 'f', -1, 64), strconv.FormatFloat(s.Spread, 'f', -1, 64))
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
