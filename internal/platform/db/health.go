package db

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const (
	healthTimeout  = 5 * time.Second
	undefinedTable = "42P01"
)

// PoolStats is a snapshot of the connection pool.
type PoolStats struct {
	Total    int32 `json:"total"`
	Idle     int32 `json:"idle"`
	InUse    int32 `json:"in_use"`
	Max      int32 `json:"max"`
	Acquires int64 `json:"acquires"`
}

// DBHealth is the body served at /health/db.
type DBHealth struct {
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
	Latency       string    `json:"latency"`
	SchemaVersion int       `json:"schema_version"`
	Pool          PoolStats `json:"pool"`
}

func GetPoolStats(pool *pgxpool.Pool) PoolStats {
	st := pool.Stat()
	return PoolStats{
		Total:    st.TotalConns(),
		Idle:     st.IdleConns(),
		InUse:    st.AcquiredConns(),
		Max:      st.MaxConns(),
		Acquires: st.AcquireCount(),
	}
}

type prober interface {
	Ping(ctx context.Context) error
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SchemaVersion returns the highest applied migration, or 0 before the first
// migrate run.
func SchemaVersion(ctx context.Context, q prober) (int, error) {
	var v int
	err := q.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM _migrations`).Scan(&v)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
			return 0, nil
		}
		return 0, err
	}
	return v, nil
}

// HealthHandler pings the database, reads the schema version and reports
// pool usage. An unreachable database answers 503.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return healthHandler(pool, func() PoolStats { return GetPoolStats(pool) })
}

func healthHandler(p prober, stats func() PoolStats) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
		defer cancel()

		start := time.Now()
		err := p.Ping(ctx)
		h := DBHealth{
			Status:  "healthy",
			Latency: time.Since(start).String(),
			Pool:    stats(),
		}
		if err == nil {
			h.SchemaVersion, err = SchemaVersion(ctx, p)
		}
		if err != nil {
			h.Status = "unhealthy"
			h.Error = err.Error()
			return c.JSON(http.StatusServiceUnavailable, h)
		}
		return c.JSON(http.StatusOK, h)
	}
}
