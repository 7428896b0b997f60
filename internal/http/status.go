package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ImageStore locates the generated summary image.
type ImageStore interface {
	Exists() bool
	Path() string
}

func statusHandler(svc QueryService) echo.HandlerFunc {
	return func(c echo.Context) error {
		status, err := svc.Status(c.Request().Context())
		if err != nil {
			c.Logger().Errorf("status failed: %v", err)

			return internalError(c, err)
		}

		return c.JSON(http.StatusOK, status)
	}
}

func imageHandler(store ImageStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !store.Exists() {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Summary image not found"})
		}

		return c.File(store.Path())
	}
}
