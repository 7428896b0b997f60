package http

import (
	"context"
	"net/http"

	"github.com/countryhub/country-api/internal/config"
	"github.com/countryhub/country-api/internal/image"
	"github.com/countryhub/country-api/internal/metrics"
	"github.com/countryhub/country-api/internal/repository"
	"github.com/countryhub/country-api/internal/service/query"
	"github.com/countryhub/country-api/internal/service/refresh"
	"github.com/countryhub/country-api/internal/upstream"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type Server struct{ e *echo.Echo }

func NewServer(cfg config.Config, db *sqlx.DB, rds *redis.Client) *Server {
	// repos
	countriesRepo := repository.NewCountriesRepository(db)
	metaRepo := repository.NewMetadataRepository(db)

	// collaborators
	fetcher := upstream.NewClient(cfg.Upstream.CountriesURL, cfg.Upstream.RatesURL, cfg.Upstream.Timeout)
	generator := image.NewGenerator(cfg.Image.Path, countriesRepo, metaRepo)
	lock := refresh.NewRedisLock(rds, cfg.Refresh.LockTTL)

	// services
	refreshSvc := refresh.New(db, fetcher, countriesRepo, metaRepo, lock, generator)
	querySvc := query.New(countriesRepo, metaRepo)

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// liveness
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "Country Currency API is running!"})
	})

	// routes
	g := e.Group("/countries")
	g.POST("/refresh", refreshHandler(refreshSvc))
	g.GET("", listCountriesHandler(querySvc))
	g.GET("/status", statusHandler(querySvc))
	g.GET("/image", imageHandler(generator))
	g.GET("/:name", getCountryHandler(querySvc))
	g.DELETE("/:name", deleteCountryHandler(querySvc))

	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Endpoint not found"})
	})

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
