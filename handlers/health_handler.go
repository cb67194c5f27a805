package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

type dbPinger interface {
	PingContext(ctx context.Context) error
}

type redisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

type HealthHandler struct {
	db     dbPinger
	redis  redisPinger
	logger *slog.Logger
}

// NewHealthHandler checks db and, when configured, redis. rdb may be nil.
func NewHealthHandler(db dbPinger, rdb *redis.Client, logger *slog.Logger) *HealthHandler {
	h := &HealthHandler{db: db, logger: logger}
	if rdb != nil {
		h.redis = rdb
	}
	return h
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{"postgres": "ok"}
	status := http.StatusOK

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.ErrorContext(ctx, "health check failed", slog.String("name", "postgres"), slog.Any("error", err))
		checks["postgres"] = "error"
		status = http.StatusServiceUnavailable
	}
	if h.redis != nil {
		checks["redis"] = "ok"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			h.logger.ErrorContext(ctx, "health check failed", slog.String("name", "redis"), slog.Any("error", err))
			checks["redis"] = "error"
			status = http.StatusServiceUnavailable
		}
	}

	if err := writeJSON(w, status, jsonResponse{"checks": checks}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
