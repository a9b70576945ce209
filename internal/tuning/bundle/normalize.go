package bundle

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"

	types "github.com/selftune/selftune-backend/internal/domain"
)

// Catalog is the in-memory slice of the knob/metric catalogs for one DBMS
// version. The normalizer is a pure transform over it.
type Catalog struct {
	DBMS    *types.DBMSCatalog
	Knobs   map[string]*types.KnobCatalog
	Metrics map[string]*types.MetricCatalog
}

// DiffEntry records one catalog/bundle mismatch found during normalization.
// Declared=false marks a bundle key unknown to the catalog; Missing=true
// marks a catalog entry absent from the bundle. A name appears at most once.
type DiffEntry struct {
	Name     string `json:"name"`
	Declared bool   `json:"declared"`
	Missing  bool   `json:"missing,omitempty"`
}

// KnobReport is the normalized form of one knob document.
type KnobReport struct {
	// Raw retains every uploaded setting verbatim, known or not.
	Raw map[string]string
	// Values holds catalog-known settings normalized to their declared type.
	Values map[string]Value
	// Tunable is the numeric projection restricted to tunable knobs.
	Tunable map[string]float64
	Diffs   []DiffEntry
}

// ParseKnobs decodes and normalizes a knob document against the catalog.
func ParseKnobs(cat *Catalog, blob []byte) (*KnobReport, error) {
	doc, err := decodeDocument(BlobKnobs, blob)
	if err != nil {
		return nil, err
	}

	report := &KnobReport{
		Raw:     make(map[string]string, len(doc)),
		Values:  make(map[string]Value),
		Tunable: make(map[string]float64),
	}
	for name, rawVal := range doc {
		raw := coerceString(rawVal)
		report.Raw[name] = raw
		def, ok := cat.Knobs[name]
		if !ok {
			report.Diffs = append(report.Diffs, DiffEntry{Name: name, Declared: false})
			continue
		}
		v := ParseKnobValue(def, raw)
		report.Values[name] = v
		if def.Tunable {
			if n, ok := NumericValue(def, v); ok {
				report.Tunable[name] = n
			}
		}
	}
	for name := range cat.Knobs {
		if _, ok := doc[name]; !ok {
			report.Diffs = append(report.Diffs, DiffEntry{Name: name, Declared: true, Missing: true})
		}
	}
	sortDiffs(report.Diffs)
	return report, nil
}

// Normalized renders the typed knob settings for storage; unknown knobs keep
// their verbatim value.
func (r *KnobReport) Normalized() map[string]interface{} {
	out := make(map[string]interface{}, len(r.Raw))
	for name, raw := range r.Raw {
		if v, ok := r.Values[name]; ok {
			out[name] = v.Display()
			continue
		}
		out[name] = raw
	}
	return out
}

// NondefaultKnobs lists the catalog-known knobs whose uploaded value differs
// from the catalog default, sorted by name.
func NondefaultKnobs(cat *Catalog, report *KnobReport) []string {
	var out []string
	for name, v := range report.Values {
		def := cat.Knobs[name]
		defVal := ParseKnobValue(def, def.Default)
		if !valuesEqual(def, v, defVal) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func valuesEqual(def *types.KnobCatalog, a, b Value) bool {
	an, aok := NumericValue(def, a)
	bn, bok := NumericValue(def, b)
	if aok && bok {
		return an == bn
	}
	return a.Str == b.Str
}

// MetricReport is the normalized form of one metric document.
type MetricReport struct {
	// Values holds catalog-known numeric readings.
	Values map[string]float64
	Diffs  []DiffEntry
}

// ParseMetrics decodes and normalizes a metric document against the catalog.
// Non-numeric (INFO) catalog metrics are acknowledged but excluded from the
// numeric map.
func ParseMetrics(cat *Catalog, blob []byte) (*MetricReport, error) {
	doc, err := decodeDocument("metrics", blob)
	if err != nil {
		return nil, err
	}

	report := &MetricReport{Values: make(map[string]float64)}
	for name, rawVal := range doc {
		def, ok := cat.Metrics[name]
		if !ok {
			report.Diffs = append(report.Diffs, DiffEntry{Name: name, Declared: false})
			continue
		}
		if def.MetricType == types.MetricInfo {
			continue
		}
		if n, ok := coerceFloat(rawVal); ok {
			report.Values[name] = n
		}
	}
	for name := range cat.Metrics {
		if _, ok := doc[name]; !ok {
			report.Diffs = append(report.Diffs, DiffEntry{Name: name, Declared: true, Missing: true})
		}
	}
	sortDiffs(report.Diffs)
	return report, nil
}

// DeltaMetrics reduces a before/after snapshot pair to one observation:
// counters diff (after - before), gauges take the after reading. The
// classification comes from the catalog, never from the values themselves.
func DeltaMetrics(cat *Catalog, before, after *MetricReport) map[string]float64 {
	out := make(map[string]float64, len(after.Values))
	for name, afterVal := range after.Values {
		def := cat.Metrics[name]
		if def != nil && def.MetricType == types.MetricCounter {
			out[name] = afterVal - before.Values[name]
			continue
		}
		out[name] = afterVal
	}
	return out
}

// ScaledMetrics applies the catalog scale factor to each delta, producing the
// numeric projection used for plotting and the recommendation pipeline.
func ScaledMetrics(cat *Catalog, delta map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(delta))
	for name, val := range delta {
		scale := 1.0
		if def := cat.Metrics[name]; def != nil && def.Scale != 0 {
			scale = def.Scale
		}
		out[name] = val * scale
	}
	return out
}

// ContentName derives the stable name of a snapshot from its content: the
// prefix plus the first 8 hex chars of the content hash.
func ContentName(prefix string, doc []byte) string {
	sum := sha1.Sum(doc)
	return fmt.Sprintf("%s#%s", prefix, hex.EncodeToString(sum[:])[:8])
}

func sortDiffs(diffs []DiffEntry) {
	sort.Slice(diffs, func(i, j int) bool { return diffs[i].Name < diffs[j].Name })
}
