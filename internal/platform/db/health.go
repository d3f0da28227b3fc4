package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const healthPingTimeout = 5 * time.Second

// PoolHealth is the /health/db payload: a liveness verdict plus the pool
// counters that matter when the evaluation API starts queueing on the
// database.
type PoolHealth struct {
	Status       string `json:"status"`
	TotalConns   int32  `json:"total_conns"`
	IdleConns    int32  `json:"idle_conns"`
	InUseConns   int32  `json:"in_use_conns"`
	MaxConns     int32  `json:"max_conns"`
	AcquireCount int64  `json:"acquire_count"`
	AcquireWait  string `json:"acquire_wait"`
	Error        string `json:"error,omitempty"`
}

func snapshotPool(pool *pgxpool.Pool) PoolHealth {
	stat := pool.Stat()
	return PoolHealth{
		TotalConns:   stat.TotalConns(),
		IdleConns:    stat.IdleConns(),
		InUseConns:   stat.AcquiredConns(),
		MaxConns:     stat.MaxConns(),
		AcquireCount: stat.AcquireCount(),
		AcquireWait:  stat.AcquireDuration().String(),
	}
}

// healthVerdict folds a ping outcome into the snapshot and picks the HTTP
// status to report it with.
func healthVerdict(h PoolHealth, pingErr error) (int, PoolHealth) {
	if pingErr != nil {
		h.Status = "unhealthy"
		h.Error = pingErr.Error()
		return http.StatusServiceUnavailable, h
	}
	h.Status = "healthy"
	return http.StatusOK, h
}

// HealthHandler serves the database health endpoint.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthPingTimeout)
		defer cancel()

		code, payload := healthVerdict(snapshotPool(pool), pool.Ping(ctx))
		return c.JSON(code, payload)
	}
}
