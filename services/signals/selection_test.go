package signals

import (
	"math"
	"testing"

	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/lob"
)

func TestSelectFeaturesRanksByCorrelation(t *testing.T) {
	n := 40
	fvs := make([]lob.FeatureVector, n)
	rets := make([]float64, n)
	for i := range fvs {
		x := float64(i%7) - 3
		rets[i] = x * 0.001
		fvs[i] = lob.FeatureVector{
			VPIN:           -x,
			DepthImbalance: x*0.5 + float64(i%3),
		}
	}
	got, err := SelectFeatures(fvs, rets, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != lob.FeatureVPIN || got[1] != lob.FeatureDepthImbalance {
		t.Fatalf("selected %v", got)
	}
	all, _ := SelectFeatures(fvs, rets, 0)
	if len(all) != DefaultMaxFeatures {
		t.Fatalf("default selection size = %d", len(all))
	}
	if _, err := SelectFeatures(fvs, rets[:3], 2); err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestCorrelation(t *testing.T) {
	if Correlation([]float64{1, 1, 1}, []float64{1, 2, 3}) != 0 {
		t.Fatal("zero variance should give 0")
	}
	if Correlation(nil, nil) != 0 {
		t.Fatal("empty should give 0")
	}
	if got := Correlation([]float64{1, 2, 3}, []float64{2, 4, 6}); math.Abs(got-1) > 1e-12 {
		t.Fatalf("correlation = %v", got)
	}
}

func TestForwardReturns(t *testing.T) {
	sigs := []Signal{{MidPrice: 100}, {MidPrice: 101}, {MidPrice: 99}, {MidPrice: 0}}
	fvs, rets := ForwardReturns(sigs, 1)
	if len(fvs) != 3 || len(rets) != 3 {
		t.Fatalf("lengths %d %d", len(fvs), len(rets))
	}
	if math.Abs(rets[0]-0.01) > 1e-12 || rets[2] != -1 {
		t.Fatalf("returns = %v", rets)
	}
	if f, r := ForwardReturns(sigs, 4); f != nil || r != nil {
		t.Fatal("expected nothing when horizon exceeds input")
	}
}

func TestImportance(t *testing.T) {
	sigs := []Signal{
		{Features: lob.FeatureVector{VolumeImbalance: -0.4, VPIN: 0.1}},
		{Features: lob.FeatureVector{VolumeImbalance: 0.2, VPIN: 0.1}},
	}
	imp := Importance(sigs)
	if imp[0].Feature != lob.FeatureVolumeImbalance || math.Abs(imp[0].Score-0.3) > 1e-12 {
		t.Fatalf("importance = %+v", imp[0])
	}
	if imp[1].Feature != lob.FeatureVPIN {
		t.Fatalf("second = %+v", imp[1])
	}
}
