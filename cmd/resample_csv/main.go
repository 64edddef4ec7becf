package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/lob"
)

// parseStep accepts Go durations ("250ms", "1s") and the bare minute forms
// "5m", "5min" or "5".
func parseStep(s string) (int64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if v, ok := strings.CutSuffix(s, "min"); ok {
		s = v + "m"
	}
	if n, err := strconv.Atoi(s); err == nil {
		return int64(n) * time.Minute.Milliseconds(), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("unsupported step: %s", s)
	}
	if d < time.Millisecond {
		return 0, fmt.Errorf("step must be at least 1ms: %s", s)
	}
	return d.Milliseconds(), nil
}

func main() {
	in := flag.String("in", "", "Input snapshot CSV")
	out := flag.String("out", "", "Output CSV path")
	step := flag.String("step", "1s", "Target cadence (e.g. 500ms, 1s, 5m)")
	flag.Parse()

	if *in == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "-in and -out are required")
		os.Exit(2)
	}
	stepMs, err := parseStep(*step)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	f, err := os.Open(*in)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	snaps, err := lob.ParseCSV(f)
	f.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	resampled := lob.Resample(snaps, stepMs)

	of, err := os.Create(*out)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	w := bufio.NewWriter(of)
	if err := lob.WriteCSV(w, resampled); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := of.Close(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("Resampled %d snapshots to %d at %dms\n", len(snaps), len(resampled), stepMs)
}
