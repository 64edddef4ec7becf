package lob

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
)

const header = "timestamp,symbol,bid1,bid2,bid3,bid4,bid5,bidsize1,bidsize2,bidsize3,bidsize4,bidsize5,ask1,ask2,ask3,ask4,ask5,asksize1,asksize2,asksize3,asksize4,asksize5,mid_price,spread\n"

const row = "1700000000000,ETHUSDT,99.99,99.98,99.97,99.96,99.95,10,20,30,40,50,100.01,100.02,100.03,100.04,100.05,15,25,35,45,55,100,0.02\n"

func TestParseCSV(t *testing.T) {
	in := "\ufeff" + header +
		row +
		"1700000000100,ETHUSDT,1,2\n" + // short row
		"not-a-time,ETHUSDT,99.99,99.98,99.97,99.96,99.95,10,20,30,40,50,100.01,100.02,100.03,100.04,100.05,15,25,35,45,55,100,0.02\n" +
		"1700000000200,ETHUSDT,abc,99.98,99.97,99.96,99.95,10,20,30,40,50,100.01,100.02,100.03,100.04,100.05,15,25,35,45,55,100,0.02\n"
	snaps, err := ParseCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(snaps))
	}
	s := snaps[0]
	if s.Timestamp != 1700000000000 || s.Symbol != "ETHUSDT" {
		t.Fatalf("bad identity: %+v", s)
	}
	if s.BidSizes[4] != 50 || s.AskPrices[0] != 100.01 || s.MidPrice != 100 || s.Spread != 0.02 {
		t.Fatalf("bad levels: %+v", s)
	}
	if !math.IsNaN(snaps[1].BidPrices[0]) {
		t.Fatalf("malformed field should be NaN, got %v", snaps[1].BidPrices[0])
	}
}

func TestParseCSVRejectsEmpty(t *testing.T) {
	if _, err := ParseCSV(strings.NewReader(header)); !errors.Is(err, ErrNoSnapshots) {
		t.Fatalf("err = %v, want ErrNoSnapshots", err)
	}
	if _, err := ParseCSV(strings.NewReader("")); !errors.Is(err, ErrNoSnapshots) {
		t.Fatalf("err = %v, want ErrNoSnapshots", err)
	}
	if _, err := ParseCSV(strings.NewReader("timestamp,symbol\n")); err == nil {
		t.Fatal("expected narrow header to fail")
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	want := randomWalk(5, 1)
	var buf bytes.Buffer
	if err := WriteCSV(&buf, want); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ParseCSV(&buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("row %d: %+v != %+v", i, got[i], want[i])
		}
	}
}

func TestSummarize(t *testing.T) {
	snaps := []Snapshot{
		bookAt(0, 100, 1, 1),
		bookAt(100, 102, 1, 1),
		bookAt(500, 101, 1, 1),
	}
	other := bookAt(50, 10, 1, 1)
	other.Symbol = "AAA"
	sums := Summarize(append(snaps, other), 100)
	if len(sums) != 2 || sums[0].Symbol != "AAA" {
		t.Fatalf("summaries = %+v", sums)
	}
	s := sums[1]
	if s.Count != 3 || s.First != 0 || s.Last != 500 || s.AvgMid != 101 || s.MinMid != 100 || s.MaxMid != 102 {
		t.Fatalf("summary = %+v", s)
	}
	if len(s.Gaps) != 1 || s.Gaps[0] != 100 {
		t.Fatalf("gaps = %v", s.Gaps)
	}
}

func TestGroupBySymbolOrdersByTime(t *testing.T) {
	a, b := bookAt(200, 1, 1, 1), bookAt(100, 1, 1, 1)
	g := GroupBySymbol([]Snapshot{a, b})
	if g["BTCUSDT"][0].Timestamp != 100 {
		t.Fatal("expected time order")
	}
}
