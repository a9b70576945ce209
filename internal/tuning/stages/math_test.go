package stages

import (
	"math"
	"testing"
)

func TestSharedKeys(t *testing.T) {
	a := map[string]float64{"x": 1, "y": 2, "z": 3}
	b := map[string]float64{"y": 5, "z": 6, "w": 7}

	got := sharedKeys(a, b)
	want := []string{"y", "z"}
	if len(got) != len(want) {
		t.Fatalf("sharedKeys = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sharedKeys = %v, want %v", got, want)
		}
	}
	if keys := sharedKeys(); keys != nil {
		t.Fatalf("no maps should yield no keys, got %v", keys)
	}
}

func TestVectorForPreservesKeyOrder(t *testing.T) {
	m := map[string]float64{"a": 1, "b": 2, "c": 3}
	v := vectorFor(m, []string{"c", "a"})
	if v[0] != 3 || v[1] != 1 {
		t.Fatalf("vectorFor = %v", v)
	}
}

func TestEuclideanDistance(t *testing.T) {
	if d := euclideanDistance([]float64{0, 0}, []float64{3, 4}); d != 5 {
		t.Fatalf("distance = %v, want 5", d)
	}
	if d := euclideanDistance([]float64{1, 1}, []float64{1, 1}); d != 0 {
		t.Fatalf("identical vectors distance = %v", d)
	}
}

func TestColumnMeans(t *testing.T) {
	rows := []map[string]float64{
		{"tps": 100, "latency": 10},
		{"tps": 300, "latency": 30, "extra": 1},
	}
	means := columnMeans(rows)
	if means["tps"] != 200 {
		t.Fatalf("tps mean = %v, want 200", means["tps"])
	}
	if means["latency"] != 20 {
		t.Fatalf("latency mean = %v, want 20", means["latency"])
	}
	// Keys absent from any row are excluded rather than treated as zero.
	if _, ok := means["extra"]; ok {
		t.Fatalf("non-shared key leaked into means: %v", means)
	}
	if got := columnMeans(nil); len(got) != 0 {
		t.Fatalf("empty input means = %v", got)
	}
	if math.IsNaN(means["tps"]) {
		t.Fatalf("mean is NaN")
	}
}
