package httpadapter_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/bloom-forecast-service/internal/adapter/httpadapter"
	"github.com/couchcryptid/bloom-forecast-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockForecaster struct {
	got domain.PredictionRequest
	err error
}

func (m *mockForecaster) Forecast(_ context.Context, req domain.PredictionRequest) (domain.Forecast, error) {
	m.got = req
	if m.err != nil {
		return domain.Forecast{}, m.err
	}
	preds := domain.AnnotatePredictions(req.Evidence.Year, []domain.NodePrediction{
		{Node: "TP", Threshold: 29.5, ExpectedValue: 31},
	})
	return domain.NewForecast(req, preds), nil
}

func newTestServer(readyErr error, f *mockForecaster) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, f, time.Minute, slog.Default())
}

const operationalBody = `{
	"variant": "operational",
	"model_path": "Bayes_net/operational.rds",
	"evidence": {"year": 2020, "chla_prev_summer": 17, "colour_prev_summer": 50, "tp_prev_summer": 28, "sigma": 0.15}
}`

func postForecast(srv *httpadapter.Server, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/forecast", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(nil, &mockForecaster{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(nil, &mockForecaster{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(fmt.Errorf("rscript not found"), &mockForecaster{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "rscript not found", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(nil, &mockForecaster{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestForecastReturnsPredictions(t *testing.T) {
	f := &mockForecaster{}
	srv := newTestServer(nil, f)

	rec := postForecast(srv, operationalBody)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, domain.VariantOperational, f.got.Variant)
	assert.Equal(t, 2020, f.got.Evidence.Year)

	var got domain.Forecast
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 2020, got.Year)
	require.Len(t, got.Predictions, 1)
	assert.Equal(t, "TP", got.Predictions[0].Node)
	assert.Equal(t, domain.Class(1), got.Predictions[0].WFDClass)
	assert.Contains(t, rec.Body.String(), `"WFD_class":1`)
}

func TestForecastRejectsMalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "year=2020"},
		{name: "unknown field", body: `{"variant":"full","lake":"vansjo"}`},
		{name: "wrong type", body: `{"evidence":{"year":"2020"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &mockForecaster{}
			rec := postForecast(newTestServer(nil, f), tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Zero(t, f.got.Evidence.Year, "forecaster should not be called")
		})
	}
}

func TestForecastErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "invalid request", err: fmt.Errorf("%w: year must be positive", domain.ErrInvalidRequest), status: http.StatusBadRequest},
		{name: "engine failure", err: errors.New("Rscript exited with status 1"), status: http.StatusBadGateway},
		{name: "engine timeout", err: fmt.Errorf("run engine: %w", context.DeadlineExceeded), status: http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postForecast(newTestServer(nil, &mockForecaster{err: tt.err}), operationalBody)

			assert.Equal(t, tt.status, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.err.Error(), body["error"])
		})
	}
}

func TestForecastRequiresPost(t *testing.T) {
	srv := newTestServer(nil, &mockForecaster{})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/forecast", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
