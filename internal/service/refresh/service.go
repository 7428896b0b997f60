package refresh

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/countryhub/country-api/internal/logger"
	"github.com/countryhub/country-api/internal/metrics"
	"github.com/countryhub/country-api/internal/model"
	"github.com/countryhub/country-api/internal/repository"
	"github.com/countryhub/country-api/internal/upstream"
	"github.com/countryhub/country-api/internal/util"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Fetcher pulls the two upstream datasets a pass needs.
type Fetcher interface {
	FetchCountries(ctx context.Context) ([]upstream.RawCountry, error)
	FetchExchangeRates(ctx context.Context) (map[string]float64, error)
}

// ImageGenerator regenerates the summary image from committed state.
type ImageGenerator interface {
	Generate(ctx context.Context) error
}

// Service runs the refresh pipeline: fetch both upstream datasets, reconcile
// them by currency code, upsert every country in one transaction keyed on
// case-insensitive name, stamp the global refresh marker, commit, then kick
// off summary-image regeneration post-commit.
type Service struct {
	db        *sqlx.DB
	fetcher   Fetcher
	countries repository.CountriesRepository
	meta      repository.MetadataRepository
	lock      Locker
	image     ImageGenerator // optional
	rng       Rand
}

func New(
	db *sqlx.DB,
	fetcher Fetcher,
	countriesRepo repository.CountriesRepository,
	metaRepo repository.MetadataRepository,
	lock Locker,
	image ImageGenerator,
) *Service {
	return &Service{
		db:        db,
		fetcher:   fetcher,
		countries: countriesRepo,
		meta:      metaRepo,
		lock:      lock,
		image:     image,
		rng:       defaultRand{},
	}
}

// WithRand overrides the multiplier source. Tests use it to pin GDP values.
func (s *Service) WithRand(r Rand) *Service {
	s.rng = r
	return s
}

// Run executes one refresh pass.
//
// Either upstream fetch failing aborts the pass before any database work,
// surfacing upstream.ErrUnavailable. A failure processing one country rolls
// back only that row's savepoint; the pass carries on and the row counts
// toward none of the returned stats. Transaction-level failures roll the
// whole pass back.
func (s *Service) Run(ctx context.Context) (model.RefreshStats, error) {
	var stats model.RefreshStats

	release, err := s.lock.Acquire(ctx)
	if err != nil {
		return stats, err
	}
	defer release()

	passID := util.New()
	log := logger.Log.With(zap.String("pass_id", passID))

	countries, rates, err := s.fetchBoth(ctx)
	if err != nil {
		metrics.RefreshPasses.WithLabelValues("upstream_failed").Inc()
		return stats, err
	}
	log.Info("upstream data fetched",
		zap.Int("countries", len(countries)),
		zap.Int("rates", len(rates)),
	)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		metrics.RefreshPasses.WithLabelValues("failed").Inc()
		return stats, fmt.Errorf("begin refresh tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, rc := range countries {
		if err := s.processRow(ctx, tx, i, rc, rates, &stats, log); err != nil {
			metrics.RefreshPasses.WithLabelValues("failed").Inc()
			return model.RefreshStats{}, err
		}
	}

	if err := s.meta.SetRefreshTimestamp(ctx, tx); err != nil {
		metrics.RefreshPasses.WithLabelValues("failed").Inc()
		return model.RefreshStats{}, fmt.Errorf("set refresh timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		metrics.RefreshPasses.WithLabelValues("failed").Inc()
		return model.RefreshStats{}, fmt.Errorf("commit refresh tx: %w", err)
	}

	metrics.RefreshPasses.WithLabelValues("ok").Inc()
	log.Info("refresh complete",
		zap.Int("processed", stats.Processed),
		zap.Int("inserted", stats.Inserted),
		zap.Int("updated", stats.Updated),
	)

	// Post-commit, best effort: regeneration failure is logged and never
	// reflected in the refresh result.
	if s.image != nil {
		go s.regenerateImage(log)
	}

	return stats, nil
}

func (s *Service) fetchBoth(ctx context.Context) ([]upstream.RawCountry, map[string]float64, error) {
	var (
		wg        sync.WaitGroup
		countries []upstream.RawCountry
		rates     map[string]float64
		cErr      error
		rErr      error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		countries, cErr = s.fetcher.FetchCountries(ctx)
	}()
	go func() {
		defer wg.Done()
		rates, rErr = s.fetcher.FetchExchangeRates(ctx)
	}()
	wg.Wait()

	if cErr != nil {
		metrics.UpstreamFailures.WithLabelValues("countries").Inc()
		return nil, nil, cErr
	}
	if rErr != nil {
		metrics.UpstreamFailures.WithLabelValues("rates").Inc()
		return nil, nil, rErr
	}
	return countries, rates, nil
}

// processRow upserts one country under its own savepoint. An upsert failure
// rolls back to the savepoint, is logged, and the pass continues; savepoint
// bookkeeping failures are transaction-level and propagate.
func (s *Service) processRow(
	ctx context.Context,
	tx *sqlx.Tx,
	i int,
	rc upstream.RawCountry,
	rates map[string]float64,
	stats *model.RefreshStats,
	log *zap.Logger,
) error {
	sp := fmt.Sprintf("country_row_%d", i)
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
		return fmt.Errorf("savepoint %s: %w", sp, err)
	}

	inserted, err := s.upsertOne(ctx, tx, rc, rates)
	if err != nil {
		log.Warn("country row skipped",
			zap.String("country", rc.Name),
			zap.Error(err),
		)
		metrics.RefreshRows.WithLabelValues("failed").Inc()
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+sp); rbErr != nil {
			return fmt.Errorf("rollback to savepoint %s: %w", sp, rbErr)
		}
		return nil
	}

	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+sp); err != nil {
		return fmt.Errorf("release savepoint %s: %w", sp, err)
	}

	stats.Processed++
	if inserted {
		stats.Inserted++
		metrics.RefreshRows.WithLabelValues("inserted").Inc()
	} else {
		stats.Updated++
		metrics.RefreshRows.WithLabelValues("updated").Inc()
	}
	return nil
}

// upsertOne reconciles one upstream record against the countries table.
// The first-listed currency wins; a currency without a known rate leaves
// exchange_rate and estimated_gdp NULL.
func (s *Service) upsertOne(ctx context.Context, tx *sqlx.Tx, rc upstream.RawCountry, rates map[string]float64) (bool, error) {
	name := strings.TrimSpace(rc.Name)
	if name == "" {
		return false, fmt.Errorf("country record has no name")
	}
	if rc.Population < 0 {
		return false, fmt.Errorf("country %q has negative population %d", name, rc.Population)
	}

	row := model.Country{
		Name:       name,
		Capital:    optional(rc.Capital),
		Region:     optional(rc.Region),
		Population: rc.Population,
		FlagURL:    optional(rc.Flag),
	}

	if len(rc.Currencies) > 0 {
		code := strings.ToUpper(strings.TrimSpace(rc.Currencies[0].Code))
		if code != "" {
			row.CurrencyCode = &code
			if rate, ok := rates[code]; ok {
				row.ExchangeRate = &rate
				if gdp, known := EstimateGDP(row.Population, rate, s.rng); known {
					row.EstimatedGDP = &gdp
				}
			}
		}
	}

	id, found, err := s.countries.FindIDByName(ctx, tx, name)
	if err != nil {
		return false, err
	}
	if found {
		return false, s.countries.Update(ctx, tx, id, row)
	}
	return true, s.countries.Insert(ctx, tx, row)
}

func (s *Service) regenerateImage(log *zap.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("summary image regeneration panicked", zap.Any("panic", r))
		}
	}()

	if err := s.image.Generate(context.Background()); err != nil {
		log.Error("summary image regeneration failed", zap.Error(err))
		return
	}
	log.Info("summary image regenerated")
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
