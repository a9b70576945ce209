package bundle

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperr "github.com/selftune/selftune-backend/internal/pkg/errors"
)

// Blob names every result bundle must carry.
const (
	BlobSummary       = "summary"
	BlobKnobs         = "knobs"
	BlobMetricsBefore = "metrics_before"
	BlobMetricsAfter  = "metrics_after"
)

var requiredBlobs = []string{BlobSummary, BlobKnobs, BlobMetricsBefore, BlobMetricsAfter}

// Bundle is one uploaded result: four raw JSON documents.
type Bundle struct {
	Summary       []byte
	Knobs         []byte
	MetricsBefore []byte
	MetricsAfter  []byte
}

// Summary is the decoded metadata document of a bundle.
type Summary struct {
	DatabaseType    string
	DatabaseVersion string
	WorkloadName    string
	// ObservationTime is the run duration in seconds as reported by the agent.
	ObservationTime float64
	StartTime       time.Time
	EndTime         time.Time
}

// Decode validates blob presence and parses the summary document. The knob
// and metric documents are decoded later, against the session's catalog.
func Decode(files map[string][]byte) (*Bundle, *Summary, error) {
	for _, name := range requiredBlobs {
		if len(files[name]) == 0 {
			return nil, nil, fmt.Errorf("%w: missing blob %q", apperr.ErrMalformedBundle, name)
		}
	}
	b := &Bundle{
		Summary:       files[BlobSummary],
		Knobs:         files[BlobKnobs],
		MetricsBefore: files[BlobMetricsBefore],
		MetricsAfter:  files[BlobMetricsAfter],
	}

	var raw struct {
		DatabaseType    string      `json:"database_type"`
		DatabaseVersion string      `json:"database_version"`
		WorkloadName    string      `json:"workload_name"`
		ObservationTime json.Number `json:"observation_time"`
		StartTime       json.Number `json:"start_time"`
		EndTime         json.Number `json:"end_time"`
	}
	dec := json.NewDecoder(strings.NewReader(string(b.Summary)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, nil, fmt.Errorf("%w: summary: %v", apperr.ErrMalformedBundle, err)
	}
	if raw.DatabaseType == "" || raw.DatabaseVersion == "" {
		return nil, nil, fmt.Errorf("%w: summary missing database_type or database_version", apperr.ErrMalformedBundle)
	}
	if raw.WorkloadName == "" {
		return nil, nil, fmt.Errorf("%w: summary missing workload_name", apperr.ErrMalformedBundle)
	}

	obsTime, err := raw.ObservationTime.Float64()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: summary observation_time: %v", apperr.ErrMalformedBundle, err)
	}
	startMs, err := numberToInt64(raw.StartTime)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: summary start_time: %v", apperr.ErrMalformedBundle, err)
	}
	endMs, err := numberToInt64(raw.EndTime)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: summary end_time: %v", apperr.ErrMalformedBundle, err)
	}

	s := &Summary{
		DatabaseType:    raw.DatabaseType,
		DatabaseVersion: raw.DatabaseVersion,
		WorkloadName:    raw.WorkloadName,
		ObservationTime: obsTime,
		StartTime:       time.UnixMilli(startMs).UTC(),
		EndTime:         time.UnixMilli(endMs).UTC(),
	}
	return b, s, nil
}

func numberToInt64(n json.Number) (int64, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

// decodeDocument parses one knob/metric blob into a flat key/value map.
func decodeDocument(name string, blob []byte) (map[string]interface{}, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(blob, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperr.ErrMalformedBundle, name, err)
	}
	return doc, nil
}
