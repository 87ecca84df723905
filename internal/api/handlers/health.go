package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	serviceName    = "kokoro-tts-api"
	serviceVersion = "1.0.0"
)

// Pinger is anything that can report its own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ToolProbe resolves the external synthesis tool, returning its path.
type ToolProbe func() (string, error)

type HealthHandler struct {
	db    Pinger
	redis *redis.Client
	probe ToolProbe
}

// NewHealthHandler builds the probe endpoints. db and rdb may be nil.
func NewHealthHandler(db Pinger, rdb *redis.Client, probe ToolProbe) *HealthHandler {
	return &HealthHandler{db: db, redis: rdb, probe: probe}
}

func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Kokoro TTS API",
		"status":  "running",
		"version": serviceVersion,
		"endpoints": map[string]string{
			"tts":    "/tts (POST)",
			"health": "/health",
			"ready":  "/ready",
			"auth":   "/api/auth",
		},
	})
}

// Health is liveness plus a non-fatal report on the synthesis tool.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":  "healthy",
		"service": serviceName,
	}
	if h.probe != nil {
		if path, err := h.probe(); err != nil {
			resp["tts_tool"] = "unavailable: " + err.Error()
		} else {
			resp["tts_tool"] = "available"
			resp["tts_tool_path"] = path
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Healthy is the bare liveness probe used by the hosting platform.
func (h *HealthHandler) Healthy(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{}

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			checks["database"] = "unhealthy: " + err.Error()
		} else {
			checks["database"] = "ok"
		}
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
		} else {
			checks["redis"] = "ok"
		}
	}

	if h.probe != nil {
		if _, err := h.probe(); err != nil {
			checks["tts_tool"] = "unhealthy: " + err.Error()
		} else {
			checks["tts_tool"] = "ok"
		}
	}

	status := http.StatusOK
	for _, v := range checks {
		if v != "ok" {
			status = http.StatusServiceUnavailable
			break
		}
	}

	writeJSON(w, status, map[string]interface{}{"status": statusStr(status), "checks": checks})
}

func statusStr(code int) string {
	if code == http.StatusOK {
		return "ok"
	}
	return "unhealthy"
}
