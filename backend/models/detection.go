package models

import (
	"fmt"
	"math"
	"strings"
)

// DetectorKind identifies which remote classifier a request targets.
type DetectorKind string

const (
	DetectorSybil  DetectorKind = "sybil"
	DetectorSensor DetectorKind = "sensor"
	DetectorGps    DetectorKind = "gps"
)

// Feature field names per detector, in the order the remote classifiers
// expect them inside the feature vector.
var (
	sybilFields = []string{
		"position_x", "position_y", "speed", "direction",
		"acceleration", "signal_strength", "trust_score", "sybil_attack_attempts",
	}
	sensorFields = []string{
		"speed_kmh", "acceleration_mps2", "lane_deviation",
		"obstacle_distance", "traffic_density",
	}
	gpsFields = []string{
		"signal_strength_anomaly", "time_discrepancy_ns", "position_jump_m",
	}
)

// FieldNames returns the declared feature fields for a detector kind.
func FieldNames(kind DetectorKind) []string {
	switch kind {
	case DetectorSybil:
		return sybilFields
	case DetectorSensor:
		return sensorFields
	case DetectorGps:
		return gpsFields
	}
	return nil
}

// ThreatTypeFor maps a detector kind to the threat type recorded on events.
func ThreatTypeFor(kind DetectorKind) string {
	switch kind {
	case DetectorSybil:
		return ThreatTypeSybil
	case DetectorSensor:
		return ThreatTypeSensor
	case DetectorGps:
		return ThreatTypeGps
	}
	return string(kind)
}

// ValidationError reports malformed or missing input fields. It blocks
// submission before any network call is made.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid detection input"
	}
	return "invalid detection input: " + strings.Join(e.Fields, ", ")
}

// DetectionRequest is one variant of the detection input union. Instances
// are immutable once constructed.
type DetectionRequest interface {
	Kind() DetectorKind
	// Features returns the numeric vector in the detector's declared order.
	Features() []float64
	// Values returns the named inputs for audit recording on the event.
	Values() map[string]float64
}

type detectionRequest struct {
	kind   DetectorKind
	values map[string]float64
}

func (r *detectionRequest) Kind() DetectorKind { return r.kind }

func (r *detectionRequest) Features() []float64 {
	names := FieldNames(r.kind)
	fs := make([]float64, len(names))
	for i, name := range names {
		fs[i] = r.values[name]
	}
	return fs
}

func (r *detectionRequest) Values() map[string]float64 {
	out := make(map[string]float64, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// NewDetectionRequest builds a request from named values (form body or the
// first data row of an uploaded CSV). Keys that are not declared fields of
// the kind are ignored; missing or non-finite declared fields fail with a
// ValidationError.
func NewDetectionRequest(kind DetectorKind, values map[string]float64) (DetectionRequest, error) {
	names := FieldNames(kind)
	if names == nil {
		return nil, fmt.Errorf("unknown detector kind %q", kind)
	}

	var bad []string
	kept := make(map[string]float64, len(names))
	for _, name := range names {
		v, ok := values[name]
		if !ok {
			bad = append(bad, name+" missing")
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			bad = append(bad, name+" not finite")
			continue
		}
		kept[name] = v
	}
	if len(bad) > 0 {
		return nil, &ValidationError{Fields: bad}
	}

	return &detectionRequest{kind: kind, values: kept}, nil
}
