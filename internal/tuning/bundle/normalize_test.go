package bundle

import (
	"errors"
	"testing"

	types "github.com/selftune/selftune-backend/internal/domain"
	apperr "github.com/selftune/selftune-backend/internal/pkg/errors"
)

func testCatalog() *Catalog {
	dbms := &types.DBMSCatalog{Type: "postgres", Version: "9.6"}
	return &Catalog{
		DBMS: dbms,
		Knobs: map[string]*types.KnobCatalog{
			"shared_buffers": {
				Name: "shared_buffers", VarType: types.VarInteger, Unit: types.UnitBytes,
				Tunable: true, Default: "128MB",
			},
			"checkpoint_timeout": {
				Name: "checkpoint_timeout", VarType: types.VarInteger, Unit: types.UnitMilliseconds,
				Tunable: true, Default: "5min",
			},
			"autovacuum": {
				Name: "autovacuum", VarType: types.VarBool, Tunable: false, Default: "on",
			},
			"wal_sync_method": {
				Name: "wal_sync_method", VarType: types.VarEnum, Tunable: true,
				Default: "fsync", EnumVals: "fsync,fdatasync,open_sync,open_datasync",
			},
			"data_directory": {
				Name: "data_directory", VarType: types.VarString, Tunable: false, Default: "",
			},
		},
		Metrics: map[string]*types.MetricCatalog{
			"xact_commit":  {Name: "xact_commit", VarType: types.VarInteger, MetricType: types.MetricCounter, Scale: 1},
			"numbackends":  {Name: "numbackends", VarType: types.VarInteger, MetricType: types.MetricGauge, Scale: 1},
			"temp_bytes":   {Name: "temp_bytes", VarType: types.VarInteger, MetricType: types.MetricCounter, Scale: 1.0 / (1 << 20)},
			"stats_reset":  {Name: "stats_reset", VarType: types.VarTimestamp, MetricType: types.MetricInfo},
		},
	}
}

func TestParseKnobsNormalizesDeclaredTypes(t *testing.T) {
	cat := testCatalog()
	blob := []byte(`{
		"shared_buffers": "4GB",
		"checkpoint_timeout": "5min",
		"autovacuum": "on",
		"wal_sync_method": "fdatasync",
		"data_directory": "/var/lib/postgresql/9.6/main"
	}`)

	report, err := ParseKnobs(cat, blob)
	if err != nil {
		t.Fatalf("ParseKnobs: %v", err)
	}
	if got := report.Values["shared_buffers"]; got.Kind != KindInt || got.Num != 4*(1<<30) {
		t.Fatalf("shared_buffers = %+v, want int %d", got, 4*(1<<30))
	}
	if got := report.Values["checkpoint_timeout"]; got.Num != 5*60*1000 {
		t.Fatalf("checkpoint_timeout = %+v, want %d ms", got, 5*60*1000)
	}
	if got := report.Values["autovacuum"]; got.Kind != KindBool || !got.Bool {
		t.Fatalf("autovacuum = %+v, want bool true", got)
	}
	if got := report.Values["wal_sync_method"]; got.Kind != KindEnum || got.Str != "fdatasync" {
		t.Fatalf("wal_sync_method = %+v, want enum fdatasync", got)
	}
	if len(report.Diffs) != 0 {
		t.Fatalf("diffs = %+v, want none", report.Diffs)
	}
}

func TestParseKnobsTunableProjection(t *testing.T) {
	cat := testCatalog()
	blob := []byte(`{
		"shared_buffers": "4GB",
		"checkpoint_timeout": "300000",
		"autovacuum": "off",
		"wal_sync_method": "open_sync",
		"data_directory": "/data"
	}`)

	report, err := ParseKnobs(cat, blob)
	if err != nil {
		t.Fatalf("ParseKnobs: %v", err)
	}
	// autovacuum and data_directory are not tunable; the projection excludes them.
	if _, ok := report.Tunable["autovacuum"]; ok {
		t.Fatalf("tunable projection includes non-tunable knob: %+v", report.Tunable)
	}
	if _, ok := report.Tunable["data_directory"]; ok {
		t.Fatalf("tunable projection includes string knob: %+v", report.Tunable)
	}
	if got := report.Tunable["shared_buffers"]; got != 4*(1<<30) {
		t.Fatalf("tunable shared_buffers = %v", got)
	}
	// Enum projects to its ordinal in the catalog's value list.
	if got := report.Tunable["wal_sync_method"]; got != 2 {
		t.Fatalf("tunable wal_sync_method = %v, want 2", got)
	}
}

func TestParseKnobsDiffLogIsSymmetric(t *testing.T) {
	cat := testCatalog()
	blob := []byte(`{
		"shared_buffers": "1GB",
		"mystery_knob": "42"
	}`)

	report, err := ParseKnobs(cat, blob)
	if err != nil {
		t.Fatalf("ParseKnobs: %v", err)
	}

	byName := map[string]DiffEntry{}
	for _, d := range report.Diffs {
		byName[d.Name] = d
	}
	unknown, ok := byName["mystery_knob"]
	if !ok || unknown.Declared {
		t.Fatalf("mystery_knob diff = %+v, want declared=false", unknown)
	}
	missing, ok := byName["autovacuum"]
	if !ok || !missing.Declared || !missing.Missing {
		t.Fatalf("autovacuum diff = %+v, want declared missing entry", missing)
	}
	// The unknown setting is still retained verbatim.
	if report.Raw["mystery_knob"] != "42" {
		t.Fatalf("raw mystery_knob = %q", report.Raw["mystery_knob"])
	}
	if _, ok := report.Values["mystery_knob"]; ok {
		t.Fatalf("unknown knob must not be normalized")
	}
}

func TestParseKnobsUnparseableValueDegradesToString(t *testing.T) {
	cat := testCatalog()
	report, err := ParseKnobs(cat, []byte(`{"shared_buffers": "lots"}`))
	if err != nil {
		t.Fatalf("ParseKnobs: %v", err)
	}
	got := report.Values["shared_buffers"]
	if got.Kind != KindString || got.Str != "lots" {
		t.Fatalf("shared_buffers = %+v, want string fallback", got)
	}
	if _, ok := report.Tunable["shared_buffers"]; ok {
		t.Fatalf("string fallback must not enter the numeric projection")
	}
}

func TestParseKnobsIdempotent(t *testing.T) {
	cat := testCatalog()
	blob := []byte(`{"shared_buffers": "2GB", "autovacuum": "on"}`)

	first, err := ParseKnobs(cat, blob)
	if err != nil {
		t.Fatalf("first parse: %v", err)
	}
	second, err := ParseKnobs(cat, blob)
	if err != nil {
		t.Fatalf("second parse: %v", err)
	}
	if len(first.Values) != len(second.Values) || len(first.Diffs) != len(second.Diffs) {
		t.Fatalf("reparse differs: %+v vs %+v", first, second)
	}
	for name, v := range first.Values {
		if second.Values[name] != v {
			t.Fatalf("value %s differs on reparse", name)
		}
	}
}

func TestParseMetricsSkipsInfoAndLogsDiffs(t *testing.T) {
	cat := testCatalog()
	blob := []byte(`{
		"xact_commit": 100,
		"numbackends": 4,
		"stats_reset": "2016-01-01 00:00:00",
		"bogus_metric": 7
	}`)

	report, err := ParseMetrics(cat, blob)
	if err != nil {
		t.Fatalf("ParseMetrics: %v", err)
	}
	if _, ok := report.Values["stats_reset"]; ok {
		t.Fatalf("info metric must not produce a numeric value")
	}
	if report.Values["xact_commit"] != 100 {
		t.Fatalf("xact_commit = %v", report.Values["xact_commit"])
	}

	byName := map[string]DiffEntry{}
	for _, d := range report.Diffs {
		byName[d.Name] = d
	}
	if d, ok := byName["bogus_metric"]; !ok || d.Declared {
		t.Fatalf("bogus_metric diff = %+v", d)
	}
	if d, ok := byName["temp_bytes"]; !ok || !d.Missing {
		t.Fatalf("temp_bytes diff = %+v", d)
	}
}

func TestDeltaMetricsCounterAndGauge(t *testing.T) {
	cat := testCatalog()
	before := &MetricReport{Values: map[string]float64{"xact_commit": 100, "numbackends": 8}}
	after := &MetricReport{Values: map[string]float64{"xact_commit": 150, "numbackends": 4}}

	delta := DeltaMetrics(cat, before, after)
	if delta["xact_commit"] != 50 {
		t.Fatalf("counter delta = %v, want 50", delta["xact_commit"])
	}
	if delta["numbackends"] != 4 {
		t.Fatalf("gauge value = %v, want the after reading 4", delta["numbackends"])
	}
}

func TestScaledMetricsAppliesCatalogScale(t *testing.T) {
	cat := testCatalog()
	delta := map[string]float64{"xact_commit": 50, "temp_bytes": 2 << 20}

	scaled := ScaledMetrics(cat, delta)
	if scaled["xact_commit"] != 50 {
		t.Fatalf("xact_commit scaled = %v", scaled["xact_commit"])
	}
	if scaled["temp_bytes"] != 2 {
		t.Fatalf("temp_bytes scaled = %v, want 2", scaled["temp_bytes"])
	}
}

func TestNondefaultKnobs(t *testing.T) {
	cat := testCatalog()
	blob := []byte(`{
		"shared_buffers": "4GB",
		"checkpoint_timeout": "5min",
		"autovacuum": "off",
		"wal_sync_method": "fsync"
	}`)
	report, err := ParseKnobs(cat, blob)
	if err != nil {
		t.Fatalf("ParseKnobs: %v", err)
	}

	got := NondefaultKnobs(cat, report)
	want := []string{"autovacuum", "shared_buffers"}
	if len(got) != len(want) {
		t.Fatalf("nondefault = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("nondefault = %v, want %v", got, want)
		}
	}
}

func TestContentNameStableAndPrefixed(t *testing.T) {
	doc := []byte(`{"a":1}`)
	a := ContentName("knobs", doc)
	b := ContentName("knobs", doc)
	if a != b {
		t.Fatalf("content name not stable: %s vs %s", a, b)
	}
	if len(a) != len("knobs#")+8 {
		t.Fatalf("content name %q has wrong shape", a)
	}
	if c := ContentName("knobs", []byte(`{"a":2}`)); c == a {
		t.Fatalf("distinct docs share a content name")
	}
}

func TestDecodeRejectsMissingBlob(t *testing.T) {
	files := map[string][]byte{
		BlobSummary:       []byte(`{"database_type":"postgres","database_version":"9.6","workload_name":"tpcc","observation_time":300,"start_time":1466240000000,"end_time":1466240300000}`),
		BlobKnobs:         []byte(`{}`),
		BlobMetricsBefore: []byte(`{}`),
	}
	if _, _, err := Decode(files); !errors.Is(err, apperr.ErrMalformedBundle) {
		t.Fatalf("Decode = %v, want ErrMalformedBundle", err)
	}
}

func TestDecodeSummary(t *testing.T) {
	files := map[string][]byte{
		BlobSummary:       []byte(`{"database_type":"postgres","database_version":"9.6","workload_name":"tpcc","observation_time":300,"start_time":1466240000000,"end_time":1466240300000}`),
		BlobKnobs:         []byte(`{}`),
		BlobMetricsBefore: []byte(`{}`),
		BlobMetricsAfter:  []byte(`{}`),
	}
	_, summary, err := Decode(files)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if summary.DatabaseType != "postgres" || summary.DatabaseVersion != "9.6" {
		t.Fatalf("summary dbms = %s v%s", summary.DatabaseType, summary.DatabaseVersion)
	}
	if summary.ObservationTime != 300 {
		t.Fatalf("observation_time = %v", summary.ObservationTime)
	}
	if summary.EndTime.Sub(summary.StartTime).Seconds() != 300 {
		t.Fatalf("window = %v", summary.EndTime.Sub(summary.StartTime))
	}
	if summary.StartTime.UnixMilli() != 1466240000000 {
		t.Fatalf("start = %v", summary.StartTime)
	}
}
