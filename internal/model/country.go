package model

import (
	"strings"
	"time"
)

// Country is the DB entity persisted in the countries table. Optional columns
// are pointers so NULLs survive the round trip into JSON.
type Country struct {
	ID              int64      `db:"id" json:"id"`
	Name            string     `db:"name" json:"name"`
	Capital         *string    `db:"capital" json:"capital"`
	Region          *string    `db:"region" json:"region"`
	Population      int64      `db:"population" json:"population"`
	CurrencyCode    *string    `db:"currency_code" json:"currency_code"`
	ExchangeRate    *float64   `db:"exchange_rate" json:"exchange_rate"`
	EstimatedGDP    *float64   `db:"estimated_gdp" json:"estimated_gdp"`
	FlagURL         *string    `db:"flag_url" json:"flag_url"`
	LastRefreshedAt *time.Time `db:"last_refreshed_at" json:"last_refreshed_at"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

type SortMode string

const (
	SortNameAsc SortMode = "name_asc"
	SortGDPDesc SortMode = "gdp_desc"
	SortGDPAsc  SortMode = "gdp_asc"
)

func (s SortMode) String() string { return string(s) }

func (s SortMode) Valid() bool {
	return s == SortNameAsc || s == SortGDPDesc || s == SortGDPAsc
}

// ParseSortMode normalizes input; empty or unrecognized => name_asc.
// Returns (value, true) if the input named a known mode.
func ParseSortMode(s string) (SortMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(SortNameAsc):
		return SortNameAsc, true
	case string(SortGDPDesc):
		return SortGDPDesc, true
	case string(SortGDPAsc):
		return SortGDPAsc, true
	default:
		return SortNameAsc, false
	}
}

// ListFilter narrows and orders a countries listing. Filters compose with AND.
type ListFilter struct {
	Region       string
	CurrencyCode string
	Sort         SortMode
}

// RefreshStats reports one refresh pass. A row that fails row-level
// processing counts toward none of the three.
type RefreshStats struct {
	Processed int `json:"processed"`
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
}

// Status is the two halves of system state: row count plus the global
// refresh marker, which is independent of per-row timestamps.
type Status struct {
	TotalCountries  int64      `json:"total_countries"`
	LastRefreshedAt *time.Time `json:"last_refreshed_at"`
}
