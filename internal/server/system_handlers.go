package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"stockgate/internal/cache"
	"stockgate/internal/reliability"
)

// SystemHandlers serves the operational status endpoint: process
// resources, cache population and breaker state.
type SystemHandlers struct {
	cache     *cache.Store
	breaker   *reliability.Breaker
	startedAt time.Time
	log       zerolog.Logger
}

// NewSystemHandlers creates the system status handlers.
func NewSystemHandlers(store *cache.Store, breaker *reliability.Breaker, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		cache:     store,
		breaker:   breaker,
		startedAt: time.Now().UTC(),
		log:       log.With().Str("handler", "system").Logger(),
	}
}

// HandleStatus handles GET /api/system/status
func (h *SystemHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"uptimeSeconds": int(time.Since(h.startedAt).Seconds()),
		"goroutines":    runtime.NumGoroutine(),
		"cache": map[string]interface{}{
			"entries": h.cache.Len(),
		},
	}

	blocked, remaining := h.breaker.ShouldBlock()
	status["circuitBreaker"] = map[string]interface{}{
		"open":              blocked,
		"retryAfterSeconds": int(remaining.Seconds()),
	}

	if memStat, err := mem.VirtualMemory(); err == nil {
		status["memory"] = map[string]interface{}{
			"usedPercent": memStat.UsedPercent,
			"totalMb":     memStat.Total / 1024 / 1024,
		}
	} else {
		h.log.Warn().Err(err).Msg("Could not read memory stats")
	}

	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		status["cpuPercent"] = cpuPercent[0]
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(status); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode status response")
	}
}
