package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Handlers bundles the API handlers and their dependencies.
type Handlers struct {
	signals   SignalReader
	providers ProviderStatusSource
	trigger   RunTrigger
	log       zerolog.Logger
}

func NewHandlers(signals SignalReader, providers ProviderStatusSource, trigger RunTrigger, log zerolog.Logger) *Handlers {
	return &Handlers{
		signals:   signals,
		providers: providers,
		trigger:   trigger,
		log:       log.With().Str("component", "handlers").Logger(),
	}
}

// HandleHealth reports liveness plus basic host metrics.
// GET /health
func (h *Handlers) HandleHealth(started time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cpuAvg := 0.0
		// Short sample window so the endpoint stays fast for pollers.
		if percents, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(percents) > 0 {
			cpuAvg = percents[0]
		}
		memPct := 0.0
		if stat, err := mem.VirtualMemory(); err == nil {
			memPct = stat.UsedPercent
		}

		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":          "ok",
			"uptime_seconds":  int(time.Since(started).Seconds()),
			"cpu_percent":     cpuAvg,
			"memory_percent":  memPct,
			"server_time_utc": time.Now().UTC(),
		})
	}
}

// HandleLatestSignals returns the newest signal batch, strongest first.
// GET /api/signals
func (h *Handlers) HandleLatestSignals(w http.ResponseWriter, r *http.Request) {
	signals, err := h.signals.LatestSignals()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to load signals", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(signals),
		"signals": signals,
	})
}

// HandleSignalsByTicker returns signal history for one ticker.
// GET /api/signals/{ticker}?limit=30
func (h *Handlers) HandleSignalsByTicker(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(chi.URLParam(r, "ticker"))
	if ticker == "" {
		h.writeError(w, http.StatusBadRequest, "ticker is required", nil)
		return
	}

	limit := 30
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer", err)
			return
		}
		limit = parsed
	}

	signals, err := h.signals.SignalsByTicker(ticker, limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to load signals", err)
		return
	}
	if len(signals) == 0 {
		h.writeError(w, http.StatusNotFound, "no signals for ticker", nil)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticker":  ticker,
		"count":   len(signals),
		"signals": signals,
	})
}

// HandleLatestAllocation returns the most recent allocation run.
// GET /api/allocation/latest
func (h *Handlers) HandleLatestAllocation(w http.ResponseWriter, r *http.Request) {
	alloc, err := h.signals.LatestAllocation()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to load allocation", err)
		return
	}
	if alloc == nil {
		h.writeError(w, http.StatusNotFound, "no allocation run stored yet", nil)
		return
	}
	h.writeJSON(w, http.StatusOK, alloc)
}

// HandleProviderStatus reports fallback-router health per provider. Failure
// counts are advisory: they reset on the next success and never take a
// provider out of rotation.
// GET /api/providers/status
func (h *Handlers) HandleProviderStatus(w http.ResponseWriter, r *http.Request) {
	failures := h.providers.FailureCounts()

	type providerStatus struct {
		Name     string `json:"name"`
		Priority int    `json:"priority"`
		Failures int64  `json:"consecutive_failures"`
	}
	var statuses []providerStatus
	for i, name := range h.providers.ProviderNames() {
		statuses = append(statuses, providerStatus{
			Name:     name,
			Priority: i + 1,
			Failures: failures[name],
		})
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"providers": statuses,
	})
}

// HandleTriggerRun starts a pipeline run in the background.
// POST /api/run
func (h *Handlers) HandleTriggerRun(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		h.writeError(w, http.StatusServiceUnavailable, "run trigger not configured", nil)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if err := h.trigger.TriggerRun(ctx); err != nil {
			h.log.Error().Err(err).Msg("triggered pipeline run failed")
		}
	}()
	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "run started"})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		h.log.Error().Err(err).Int("status", status).Msg(message)
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
