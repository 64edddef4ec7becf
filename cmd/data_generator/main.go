// Data Generator - creates synthetic limit order book snapshots
//
// Writes 5-level books in the ingestion CSV layout. Mid prices follow a
// seeded random walk with trending regimes, and book pressure leans toward
// the trend so the imbalance features carry some signal.
package main

import (
	"encoding/csv"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/lob"
)

const tickSize = 0.01

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: data_generator <output_file.csv> [snapshots] [symbols]")
		fmt.Println("Example: data_generator lob.csv 2000 BTCUSDT,ETHUSDT")
		os.Exit(1)
	}

	outputFile := os.Args[1]
	n := 1000
	if len(os.Args) > 2 {
		v, err := strconv.Atoi(os.Args[2])
		if err != nil || v <= 0 {
			log.Fatalf("Invalid snapshot count %q", os.Args[2])
		}
		n = v
	}
	symbols := []string{"BTCUSDT"}
	if len(os.Args) > 3 {
		symbols = strings.Split(os.Args[3], ",")
	}

	fmt.Printf("Generating %d snapshots for %v to %s\n", n, symbols, outputFile)

	file, err := os.Create(outputFile)
	if err != nil {
		log.Fatalf("Failed to create file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(lob.Columns); err != nil {
		log.Fatalf("Failed to write header: %v", err)
	}

	// Fixed seed and start time for reproducibility
	rng := rand.New(rand.NewSource(42))
	baseTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for si, symbol := range symbols {
		price := 100.0 * float64(si+1)
		for i := 0; i < n; i++ {
			trend := regime(i, n)
			change := (rng.Float64()-0.5)*0.0004 + trend
			price *= 1 + change
			if price < 1 {
				price = 1
			}

			record := snapshotRecord(rng, symbol, baseTime.Add(time.Duration(i)*100*time.Millisecond).UnixMilli(), price, trend)
			if err := writer.Write(record); err != nil {
				log.Fatalf("Failed to write record: %v", err)
			}
		}
	}

	fmt.Printf("Generated %d snapshots successfully\n", n*len(symbols))
}

// regime splits the run into flat, up, down and gently up stretches.
func regime(i, n int) float64 {
	switch f := float64(i) / float64(n); {
	case f > 0.1 && f < 0.3:
		return 0.00005
	case f > 0.4 && f < 0.6:
		return -0.00005
	case f > 0.7 && f < 0.9:
		return 0.000025
	}
	return 0
}

func snapshotRecord(rng *rand.Rand, symbol string, ts int64, mid, trend float64) []string {
	spreadTicks := 1 + rng.Intn(3)
	spread := decimal.NewFromFloat(float64(spreadTicks) * tickSize)
	midDec := decimal.NewFromFloat(mid).Round(3)
	half := spread.Div(decimal.NewFromInt(2))
	bestBid := midDec.Sub(half).Round(2)
	bestAsk := bestBid.Add(spread)

	// pressure > 0 puts more size on the bid
	pressure := trend * 8000
	rec := []string{strconv.FormatInt(ts, 10), symbol}
	var bids, bidSizes, asks, askSizes []string
	for l := 0; l < lob.Depth; l++ {
		step := decimal.NewFromFloat(float64(l) * tickSize)
		bids = append(bids, bestBid.Sub(step).String())
		asks = append(asks, bestAsk.Add(step).String())
		base := 5 + rng.Float64()*20*float64(l+1)
		bidSizes = append(bidSizes, decimal.NewFromFloat(base*(1+pressure)).Round(4).String())
		askSizes = append(askSizes, decimal.NewFromFloat(base*(1-pressure)+rng.Float64()*5).Round(4).String())
	}
	rec = append(rec, bids...)
	rec = append(rec, bidSizes...)
	rec = append(rec, asks...)
	rec = append(rec, askSizes...)
	rec = append(rec, bestBid.Add(bestAsk).Div(decimal.NewFromInt(2)).String(), spread.String())
	return rec
}
