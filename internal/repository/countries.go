package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/countryhub/country-api/internal/model"
	"github.com/jmoiron/sqlx"
)

const countryColumns = `id, name, capital, region, population, currency_code,
	exchange_rate, estimated_gdp, flag_url, last_refreshed_at, created_at`

// CountriesRepository defines persistence for the countries table. Name
// matching is case-insensitive everywhere: "France" and "france" are the
// same row. The tx-scoped methods are used by the refresh pipeline, which
// owns the enclosing transaction.
type CountriesRepository interface {
	GetByName(ctx context.Context, name string) (*model.Country, error)
	List(ctx context.Context, filter model.ListFilter) ([]model.Country, error)
	DeleteByName(ctx context.Context, name string) (bool, error)
	Count(ctx context.Context) (int64, error)
	TopByGDP(ctx context.Context, limit int) ([]model.Country, error)

	FindIDByName(ctx context.Context, tx *sqlx.Tx, name string) (int64, bool, error)
	Insert(ctx context.Context, tx *sqlx.Tx, c model.Country) error
	Update(ctx context.Context, tx *sqlx.Tx, id int64, c model.Country) error
}

type CountriesRepositoryImpl struct {
	db *sqlx.DB
}

func NewCountriesRepository(db *sqlx.DB) *CountriesRepositoryImpl {
	return &CountriesRepositoryImpl{db: db}
}

var _ CountriesRepository = (*CountriesRepositoryImpl)(nil)

func (r *CountriesRepositoryImpl) GetByName(ctx context.Context, name string) (*model.Country, error) {
	var c model.Country
	err := r.db.GetContext(ctx, &c, `
		SELECT `+countryColumns+`
		  FROM countries
		 WHERE LOWER(name) = LOWER(?) LIMIT 1
	`, name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List applies the region/currency filters (AND) and one of the recognized
// sort modes. MySQL orders NULL estimated_gdp last under gdp_desc and first
// under gdp_asc; unknown GDPs end up at the cheap end either way.
func (r *CountriesRepositoryImpl) List(ctx context.Context, filter model.ListFilter) ([]model.Country, error) {
	query := `SELECT ` + countryColumns + ` FROM countries WHERE 1=1`
	args := []any{}

	if filter.Region != "" {
		query += ` AND LOWER(region) = LOWER(?)`
		args = append(args, filter.Region)
	}
	if filter.CurrencyCode != "" {
		query += ` AND currency_code = ?`
		args = append(args, strings.ToUpper(filter.CurrencyCode))
	}

	switch filter.Sort {
	case model.SortGDPDesc:
		query += ` ORDER BY estimated_gdp DESC`
	case model.SortGDPAsc:
		query += ` ORDER BY estimated_gdp ASC`
	default:
		query += ` ORDER BY name ASC`
	}

	countries := []model.Country{}
	if err := r.db.SelectContext(ctx, &countries, query, args...); err != nil {
		return nil, err
	}
	return countries, nil
}

func (r *CountriesRepositoryImpl) DeleteByName(ctx context.Context, name string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM countries WHERE LOWER(name) = LOWER(?)
	`, name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *CountriesRepositoryImpl) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM countries`); err != nil {
		return 0, err
	}
	return n, nil
}

// TopByGDP feeds the summary image: highest known estimated GDP first,
// rows without a GDP excluded.
func (r *CountriesRepositoryImpl) TopByGDP(ctx context.Context, limit int) ([]model.Country, error) {
	countries := []model.Country{}
	err := r.db.SelectContext(ctx, &countries, `
		SELECT `+countryColumns+`
		  FROM countries
		 WHERE estimated_gdp IS NOT NULL
		 ORDER BY estimated_gdp DESC
		 LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	return countries, nil
}

func (r *CountriesRepositoryImpl) FindIDByName(ctx context.Context, tx *sqlx.Tx, name string) (int64, bool, error) {
	var id int64
	err := tx.GetContext(ctx, &id, `
		SELECT id FROM countries WHERE LOWER(name) = LOWER(?) LIMIT 1
	`, name)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// Insert creates a new row; created_at and last_refreshed_at are both NOW().
func (r *CountriesRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, c model.Country) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO countries
		    (name, capital, region, population, currency_code, exchange_rate, estimated_gdp, flag_url, last_refreshed_at, created_at)
		VALUES
		    (?,    ?,       ?,      ?,          ?,             ?,             ?,             ?,        NOW(),             NOW())
	`, c.Name, c.Capital, c.Region, c.Population, c.CurrencyCode, c.ExchangeRate, c.EstimatedGDP, c.FlagURL)
	return err
}

// Update refreshes every upstream-sourced column and bumps the row's
// last_refreshed_at; created_at and name are left alone.
func (r *CountriesRepositoryImpl) Update(ctx context.Context, tx *sqlx.Tx, id int64, c model.Country) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE countries
		   SET capital = ?, region = ?, population = ?,
		       currency_code = ?, exchange_rate = ?, estimated_gdp = ?,
		       flag_url = ?, last_refreshed_at = NOW()
		 WHERE id = ?
	`, c.Capital, c.Region, c.Population, c.CurrencyCode, c.ExchangeRate, c.EstimatedGDP, c.FlagURL, id)
	return err
}
