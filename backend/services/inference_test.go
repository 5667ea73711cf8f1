package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"av-sentinel/backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInference(t *testing.T, kind models.DetectorKind, handler http.HandlerFunc) *InferenceService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc := NewInferenceService()
	svc.SetEndpoint(kind, srv.URL)
	return svc
}

func TestClassify_SybilMalicious(t *testing.T) {
	svc := newTestInference(t, models.DetectorSybil, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"prediction": 1, "confidence": 0.82}`))
	})

	res, err := svc.Classify(context.Background(), models.DetectorSybil, []float64{156.0186, 869.6497, 14.29872, -0.10746})
	require.NoError(t, err)

	assert.Equal(t, "Malicious", res.Label)
	assert.True(t, res.Malicious)
	assert.InDelta(t, 0.82, res.Confidence, 1e-9)
}

func TestClassify_SensorActionShape(t *testing.T) {
	svc := newTestInference(t, models.DetectorSensor, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"action": "Normal Driving", "confidence": 0.6}`))
	})

	res, err := svc.Classify(context.Background(), models.DetectorSensor, []float64{44.94, -0.75, 0.96, 4.26, 41})
	require.NoError(t, err)

	assert.Equal(t, models.ActionNormalDriving, res.Label)
	assert.False(t, res.Malicious)
	assert.InDelta(t, 0.6, res.Confidence, 1e-9)
}

func TestClassify_GpsSpoofingShape(t *testing.T) {
	svc := newTestInference(t, models.DetectorGps, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"is_spoofing": true, "confidence": 0.91}`))
	})

	res, err := svc.Classify(context.Background(), models.DetectorGps, []float64{12.5, 4000, 85.2})
	require.NoError(t, err)

	assert.True(t, res.Malicious)
	assert.Equal(t, "Malicious", res.Label)
}

func TestClassify_NonSuccessStatusUsesBodyMessage(t *testing.T) {
	svc := newTestInference(t, models.DetectorSybil, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail": "expected 8 features"}`))
	})

	_, err := svc.Classify(context.Background(), models.DetectorSybil, []float64{1})
	require.Error(t, err)

	var infErr *InferenceError
	require.ErrorAs(t, err, &infErr)
	assert.Equal(t, "expected 8 features", infErr.Message)
}

func TestClassify_MissingConfidenceIsError(t *testing.T) {
	svc := newTestInference(t, models.DetectorSybil, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"prediction": 1}`))
	})

	_, err := svc.Classify(context.Background(), models.DetectorSybil, []float64{1, 2, 3, 4, 5, 6, 7, 8})

	var infErr *InferenceError
	require.ErrorAs(t, err, &infErr)
	assert.Contains(t, infErr.Message, "confidence")
}

func TestClassify_ConfidenceOutOfRangeIsError(t *testing.T) {
	svc := newTestInference(t, models.DetectorSybil, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"prediction": 0, "confidence": 1.7}`))
	})

	_, err := svc.Classify(context.Background(), models.DetectorSybil, []float64{1, 2, 3, 4, 5, 6, 7, 8})

	var infErr *InferenceError
	require.ErrorAs(t, err, &infErr)
}

func TestClassify_MissingShapeFieldIsError(t *testing.T) {
	// Sensor response on the Sybil endpoint: confidence present but the
	// required prediction field is absent.
	svc := newTestInference(t, models.DetectorSybil, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"action": "Slow Down", "confidence": 0.5}`))
	})

	_, err := svc.Classify(context.Background(), models.DetectorSybil, []float64{1, 2, 3, 4, 5, 6, 7, 8})

	var infErr *InferenceError
	require.ErrorAs(t, err, &infErr)
	assert.Contains(t, infErr.Message, "prediction")
}

func TestClassify_NoEndpointConfigured(t *testing.T) {
	svc := NewInferenceService()

	_, err := svc.Classify(context.Background(), models.DetectorGps, []float64{1, 2, 3})

	var infErr *InferenceError
	require.ErrorAs(t, err, &infErr)
}
