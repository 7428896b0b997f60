package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/countryhub/country-api/internal/model"
	"github.com/countryhub/country-api/internal/service/refresh"
	"github.com/countryhub/country-api/internal/upstream"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// RefreshRunner executes one refresh pass.
type RefreshRunner interface {
	Run(ctx context.Context) (model.RefreshStats, error)
}

func refreshHandler(svc RefreshRunner) echo.HandlerFunc {
	return func(c echo.Context) error {
		stats, err := svc.Run(c.Request().Context())
		if err != nil {
			if errors.Is(err, upstream.ErrUnavailable) {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{
					"error":   "External data source unavailable",
					"details": err.Error(),
				})
			}
			if errors.Is(err, refresh.ErrInProgress) {
				return c.JSON(http.StatusConflict, map[string]string{
					"error": "Refresh already in progress",
				})
			}

			log.Errorf("refresh failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{
				"error":   "Internal server error",
				"details": err.Error(),
			})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"message":   "Countries refreshed successfully",
			"processed": stats.Processed,
			"inserted":  stats.Inserted,
			"updated":   stats.Updated,
		})
	}
}
