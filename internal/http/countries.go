package http

import (
	"context"
	"net/http"

	"github.com/countryhub/country-api/internal/model"
	"github.com/labstack/echo/v4"
)

// QueryService is the read/delete surface the country handlers sit on.
type QueryService interface {
	List(ctx context.Context, region, currency, sort string) ([]model.Country, error)
	GetByName(ctx context.Context, name string) (*model.Country, error)
	DeleteByName(ctx context.Context, name string) (bool, error)
	Status(ctx context.Context) (model.Status, error)
}

func listCountriesHandler(svc QueryService) echo.HandlerFunc {
	return func(c echo.Context) error {
		countries, err := svc.List(
			c.Request().Context(),
			c.QueryParam("region"),
			c.QueryParam("currency"),
			c.QueryParam("sort"),
		)
		if err != nil {
			c.Logger().Errorf("list countries failed: %v", err)

			return internalError(c, err)
		}

		return c.JSON(http.StatusOK, countries)
	}
}

func getCountryHandler(svc QueryService) echo.HandlerFunc {
	return func(c echo.Context) error {
		country, err := svc.GetByName(c.Request().Context(), c.Param("name"))
		if err != nil {
			c.Logger().Errorf("get country failed: %v", err)

			return internalError(c, err)
		}
		if country == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Country not found"})
		}

		return c.JSON(http.StatusOK, country)
	}
}

func deleteCountryHandler(svc QueryService) echo.HandlerFunc {
	return func(c echo.Context) error {
		deleted, err := svc.DeleteByName(c.Request().Context(), c.Param("name"))
		if err != nil {
			c.Logger().Errorf("delete country failed: %v", err)

			return internalError(c, err)
		}
		if !deleted {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Country not found"})
		}

		return c.JSON(http.StatusOK, map[string]string{"message": "Country deleted successfully"})
	}
}

func internalError(c echo.Context, err error) error {
	return c.JSON(http.StatusInternalServerError, map[string]string{
		"error":   "Internal server error",
		"details": err.Error(),
	})
}
