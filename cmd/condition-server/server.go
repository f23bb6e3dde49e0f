package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ehr/condition-server/internal/config"
	"github.com/ehr/condition-server/internal/domain/condition"
	"github.com/ehr/condition-server/internal/platform/db"
	"github.com/ehr/condition-server/internal/platform/fhir"
	"github.com/ehr/condition-server/internal/platform/metrics"
	"github.com/ehr/condition-server/internal/platform/middleware"
)

// store is the repository chosen by STORE plus the pool behind it, if any.
type store struct {
	repo condition.Repository
	pool *pgxpool.Pool
}

func (s *store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	if cfg.Store != config.StorePostgres {
		return &store{repo: condition.NewMemoryRepository()}, nil
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, err
	}
	return &store{repo: condition.NewPGRepository(pool), pool: pool}, nil
}

// seedDemoData loads condition.DemoRecords with their original timestamps and
// reports how many were new.
func seedDemoData(ctx context.Context, repo condition.Repository) (int, error) {
	records := condition.DemoRecords()
	switch r := repo.(type) {
	case *condition.MemoryRepository:
		r.Seed(records...)
		return len(records), nil
	case *condition.PGRepository:
		return r.Seed(ctx, records...)
	default:
		return 0, fmt.Errorf("store %T cannot be seeded", repo)
	}
}

func newServer(cfg *config.Config, logger zerolog.Logger, st *store) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = fhir.HTTPErrorHandler(cfg.FHIRBasePath, e.DefaultHTTPErrorHandler)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	m := metrics.New()
	e.Use(m.Middleware())
	e.Use(middleware.SecurityHeaders(!cfg.IsDev()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost},
		AllowHeaders:  []string{echo.HeaderAccept, echo.HeaderContentType, middleware.RequestIDHeader},
		ExposeHeaders: []string{echo.HeaderLocation, "ETag", "Last-Modified", middleware.RequestIDHeader},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
			"store":   cfg.Store,
		})
	})
	e.GET("/metrics", echo.WrapHandler(m.Handler()))
	if st.pool != nil {
		e.GET("/health/db", db.HealthHandler(st.pool))
	}

	fhirGroup := e.Group(cfg.FHIRBasePath)
	fhirGroup.Use(fhir.ContentNegotiationMiddleware())
	fhirGroup.Use(middleware.BodyLimit(cfg.BodyLimit))
	fhirGroup.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	loc, err := cfg.OnsetLocation()
	if err != nil {
		// Validate already rejected unloadable zones.
		logger.Warn().Err(err).Msg("falling back to UTC onset zone")
	}
	svc := condition.NewService(st.repo, loc)
	handler := condition.NewHandler(svc, cfg.FHIRBasePath, logger)
	handler.RegisterRoutes(fhirGroup)

	capBuilder := fhir.NewCapabilityBuilder(fmt.Sprintf("http://localhost:%s%s", cfg.Port, cfg.FHIRBasePath), version)
	handler.RegisterCapabilities(capBuilder)
	fhir.NewCapabilityHandler(capBuilder).RegisterRoutes(fhirGroup)

	return e
}
