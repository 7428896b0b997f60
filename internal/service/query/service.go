package query

import (
	"context"
	"strings"

	"github.com/countryhub/country-api/internal/model"
	"github.com/countryhub/country-api/internal/repository"
)

// Service is the read/delete side of the API: it normalizes caller input
// (trimming, casing, sort fallback) and delegates to the repositories. No
// business rules live here.
type Service struct {
	countries repository.CountriesRepository
	meta      repository.MetadataRepository
}

func New(countriesRepo repository.CountriesRepository, metaRepo repository.MetadataRepository) *Service {
	return &Service{countries: countriesRepo, meta: metaRepo}
}

// List returns countries matching the region/currency filters, ordered per
// sort. Unrecognized sort values fall back to name_asc.
func (s *Service) List(ctx context.Context, region, currency, sort string) ([]model.Country, error) {
	mode, _ := model.ParseSortMode(sort)
	return s.countries.List(ctx, model.ListFilter{
		Region:       strings.TrimSpace(region),
		CurrencyCode: strings.TrimSpace(currency),
		Sort:         mode,
	})
}

// GetByName returns nil when no country matches (case-insensitively).
func (s *Service) GetByName(ctx context.Context, name string) (*model.Country, error) {
	return s.countries.GetByName(ctx, strings.TrimSpace(name))
}

// DeleteByName reports whether a row was removed; a miss is false, not an error.
func (s *Service) DeleteByName(ctx context.Context, name string) (bool, error) {
	return s.countries.DeleteByName(ctx, strings.TrimSpace(name))
}

// Status combines the row count with the global refresh marker.
func (s *Service) Status(ctx context.Context) (model.Status, error) {
	total, err := s.countries.Count(ctx)
	if err != nil {
		return model.Status{}, err
	}
	last, err := s.meta.GetRefreshTimestamp(ctx)
	if err != nil {
		return model.Status{}, err
	}
	return model.Status{TotalCountries: total, LastRefreshedAt: last}, nil
}
