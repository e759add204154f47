package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pelorusfin/pelorus/internal/allocation"
	"github.com/pelorusfin/pelorus/internal/domain"
)

type fakeSignalReader struct {
	latest     []*domain.InvestmentSignal
	byTicker   map[string][]*domain.InvestmentSignal
	allocation *allocation.PortfolioAllocation
	err        error
}

func (f *fakeSignalReader) LatestSignals() ([]*domain.InvestmentSignal, error) {
	return f.latest, f.err
}

func (f *fakeSignalReader) SignalsByTicker(ticker string, _ int) ([]*domain.InvestmentSignal, error) {
	return f.byTicker[ticker], f.err
}

func (f *fakeSignalReader) LatestAllocation() (*allocation.PortfolioAllocation, error) {
	return f.allocation, f.err
}

type fakeProviders struct {
	names    []string
	failures map[string]int64
}

func (f *fakeProviders) ProviderNames() []string         { return f.names }
func (f *fakeProviders) FailureCounts() map[string]int64 { return f.failures }

type fakeTrigger struct {
	ran chan struct{}
}

func (f *fakeTrigger) TriggerRun(context.Context) error {
	close(f.ran)
	return nil
}

func newTestServer(signals SignalReader, trigger RunTrigger) *Server {
	return New(Config{
		Port:    0,
		DevMode: true,
		Log:     zerolog.Nop(),
		Signals: signals,
		Providers: &fakeProviders{
			names:    []string{"yahoo", "alphavantage", "stooq"},
			failures: map[string]int64{"yahoo": 0, "alphavantage": 2, "stooq": 0},
		},
		Trigger: trigger,
	})
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(&fakeSignalReader{}, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "memory_percent")
}

func TestHandleLatestSignals(t *testing.T) {
	reader := &fakeSignalReader{latest: []*domain.InvestmentSignal{
		{ID: "1", Ticker: "SAP", FinalScore: 72},
		{ID: "2", Ticker: "ASML", FinalScore: 64},
	}}
	srv := newTestServer(reader, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/signals", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Count   int                        `json:"count"`
		Signals []*domain.InvestmentSignal `json:"signals"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, "SAP", body.Signals[0].Ticker)
}

func TestHandleSignalsByTicker(t *testing.T) {
	reader := &fakeSignalReader{byTicker: map[string][]*domain.InvestmentSignal{
		"SAP": {{ID: "1", Ticker: "SAP"}},
	}}
	srv := newTestServer(reader, nil)

	// Lowercase path parameter is upcased before lookup.
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/signals/sap", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/signals/UNKNOWN", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/signals/SAP?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleLatestAllocation(t *testing.T) {
	srv := newTestServer(&fakeSignalReader{}, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/allocation/latest", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	withAlloc := newTestServer(&fakeSignalReader{allocation: &allocation.PortfolioAllocation{
		TotalAllocatedEUR: 1250,
	}}, nil)

	rec = httptest.NewRecorder()
	withAlloc.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/allocation/latest", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body allocation.PortfolioAllocation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1250.0, body.TotalAllocatedEUR)
}

func TestHandleProviderStatus(t *testing.T) {
	srv := newTestServer(&fakeSignalReader{}, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/providers/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Providers []struct {
			Name     string `json:"name"`
			Priority int    `json:"priority"`
			Failures int64  `json:"consecutive_failures"`
		} `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Providers, 3)
	assert.Equal(t, "yahoo", body.Providers[0].Name)
	assert.Equal(t, 1, body.Providers[0].Priority)
	assert.Equal(t, int64(2), body.Providers[1].Failures)
}

func TestHandleTriggerRun(t *testing.T) {
	trigger := &fakeTrigger{ran: make(chan struct{})}
	srv := newTestServer(&fakeSignalReader{}, trigger)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/run", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case <-trigger.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline run was not triggered")
	}
}

func TestInternalErrorsReturn500(t *testing.T) {
	srv := newTestServer(&fakeSignalReader{err: errors.New("db closed")}, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/signals", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
