package stages

import (
	"math"
	"sort"
)

// sharedKeys returns the sorted keys present in every input map. The stage
// computations only ever compare vectors built over a shared key set.
func sharedKeys(maps ...map[string]float64) []string {
	if len(maps) == 0 {
		return nil
	}
	var out []string
	for k := range maps[0] {
		present := true
		for _, m := range maps[1:] {
			if _, ok := m[k]; !ok {
				present = false
				break
			}
		}
		if present {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// vectorFor projects a map onto the given key order.
func vectorFor(m map[string]float64, keys []string) []float64 {
	out := make([]float64, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out
}

// euclideanDistance over equal-length vectors.
func euclideanDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// columnMeans averages each metric across a set of observations, over the
// shared key set.
func columnMeans(rows []map[string]float64) map[string]float64 {
	if len(rows) == 0 {
		return map[string]float64{}
	}
	keys := sharedKeys(rows...)
	out := make(map[string]float64, len(keys))
	for _, k := range keys {
		var sum float64
		for _, row := range rows {
			sum += row[k]
		}
		out[k] = sum / float64(len(rows))
	}
	return out
}
