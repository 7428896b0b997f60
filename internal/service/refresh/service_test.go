package refresh

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/countryhub/country-api/internal/repository"
	"github.com/countryhub/country-api/internal/upstream"
	"github.com/jmoiron/sqlx"
)

type fakeFetcher struct {
	countries    []upstream.RawCountry
	rates        map[string]float64
	countriesErr error
	ratesErr     error
}

func (f *fakeFetcher) FetchCountries(ctx context.Context) ([]upstream.RawCountry, error) {
	return f.countries, f.countriesErr
}

func (f *fakeFetcher) FetchExchangeRates(ctx context.Context) (map[string]float64, error) {
	return f.rates, f.ratesErr
}

type fakeLock struct{ err error }

func (l fakeLock) Acquire(ctx context.Context) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	return func() {}, nil
}

func newTestService(t *testing.T, f *fakeFetcher) (*Service, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = mockDB.Close() })

	db := sqlx.NewDb(mockDB, "sqlmock")
	countriesRepo := repository.NewCountriesRepository(db)
	metaRepo := repository.NewMetadataRepository(db)

	svc := New(db, f, countriesRepo, metaRepo, fakeLock{}, nil).WithRand(fixedRand{0})
	return svc, mock
}

func testland() upstream.RawCountry {
	return upstream.RawCountry{
		Name:       "Testland",
		Population: 1000,
		Currencies: []upstream.Currency{{Code: "TST"}},
	}
}

func TestRun_InsertsNewCountry(t *testing.T) {
	fetcher := &fakeFetcher{
		countries: []upstream.RawCountry{testland()},
		rates:     map[string]float64{"TST": 2},
	}
	svc, mock := newTestService(t, fetcher)

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT country_row_0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id FROM countries").
		WithArgs("Testland").
		WillReturnError(sql.ErrNoRows)
	// multiplier pinned at 1000: gdp = 1000 * 1000 / 2 = 500000
	mock.ExpectExec("INSERT INTO countries").
		WithArgs("Testland", nil, nil, int64(1000), "TST", 2.0, 500000.0, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("RELEASE SAVEPOINT country_row_0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE metadata SET value").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	stats, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Processed != 1 || stats.Inserted != 1 || stats.Updated != 0 {
		t.Errorf("expected stats 1/1/0, got %d/%d/%d", stats.Processed, stats.Inserted, stats.Updated)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRun_UpdatesExistingCountry(t *testing.T) {
	fetcher := &fakeFetcher{
		countries: []upstream.RawCountry{testland()},
		rates:     map[string]float64{"TST": 2},
	}
	svc, mock := newTestService(t, fetcher)

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT country_row_0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id FROM countries").
		WithArgs("Testland").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec("UPDATE countries").
		WithArgs(nil, nil, int64(1000), "TST", 2.0, 500000.0, nil, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("RELEASE SAVEPOINT country_row_0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE metadata SET value").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	stats, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Processed != 1 || stats.Inserted != 0 || stats.Updated != 1 {
		t.Errorf("expected stats 1/0/1, got %d/%d/%d", stats.Processed, stats.Inserted, stats.Updated)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRun_MissingRateLeavesGDPNull(t *testing.T) {
	fetcher := &fakeFetcher{
		countries: []upstream.RawCountry{testland()},
		rates:     map[string]float64{},
	}
	svc, mock := newTestService(t, fetcher)

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT country_row_0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id FROM countries").
		WithArgs("Testland").
		WillReturnError(sql.ErrNoRows)
	// currency code kept, exchange_rate and estimated_gdp NULL
	mock.ExpectExec("INSERT INTO countries").
		WithArgs("Testland", nil, nil, int64(1000), "TST", nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("RELEASE SAVEPOINT country_row_0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE metadata SET value").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRun_RowLevelErrorIsIsolated(t *testing.T) {
	bad := testland()
	good := upstream.RawCountry{
		Name:       "Otherland",
		Population: 500,
		Currencies: []upstream.Currency{{Code: "OTH"}},
	}
	fetcher := &fakeFetcher{
		countries: []upstream.RawCountry{bad, good},
		rates:     map[string]float64{"TST": 2, "OTH": 4},
	}
	svc, mock := newTestService(t, fetcher)

	mock.ExpectBegin()
	// row 0 fails on insert, rolls back to its savepoint only
	mock.ExpectExec("SAVEPOINT country_row_0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id FROM countries").
		WithArgs("Testland").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO countries").
		WillReturnError(fmt.Errorf("constraint violation"))
	mock.ExpectExec("ROLLBACK TO SAVEPOINT country_row_0").WillReturnResult(sqlmock.NewResult(0, 0))
	// row 1 proceeds
	mock.ExpectExec("SAVEPOINT country_row_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id FROM countries").
		WithArgs("Otherland").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO countries").
		WithArgs("Otherland", nil, nil, int64(500), "OTH", 4.0, 125000.0, nil).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec("RELEASE SAVEPOINT country_row_1").WillReturnResult(sqlmock.NewResult(0, 0))
	// the refresh marker still advances
	mock.ExpectExec("UPDATE metadata SET value").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	stats, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Processed != 1 || stats.Inserted != 1 || stats.Updated != 0 {
		t.Errorf("failed row must not count; expected 1/1/0, got %d/%d/%d",
			stats.Processed, stats.Inserted, stats.Updated)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRun_MalformedRowIsSkippedWithoutStatements(t *testing.T) {
	fetcher := &fakeFetcher{
		countries: []upstream.RawCountry{{Name: "   ", Population: 1}},
		rates:     map[string]float64{},
	}
	svc, mock := newTestService(t, fetcher)

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT country_row_0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ROLLBACK TO SAVEPOINT country_row_0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE metadata SET value").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	stats, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Processed != 0 || stats.Inserted != 0 || stats.Updated != 0 {
		t.Errorf("expected stats 0/0/0, got %d/%d/%d", stats.Processed, stats.Inserted, stats.Updated)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRun_UpstreamFailureAbortsBeforeDB(t *testing.T) {
	fetcher := &fakeFetcher{
		countriesErr: fmt.Errorf("fetch countries: %w", upstream.ErrUnavailable),
	}
	svc, mock := newTestService(t, fetcher)

	_, err := svc.Run(context.Background())
	if !errors.Is(err, upstream.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	// no transaction was ever opened
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected database activity: %v", err)
	}
}

func TestRun_RatesFailureAbortsBeforeDB(t *testing.T) {
	fetcher := &fakeFetcher{
		countries: []upstream.RawCountry{testland()},
		ratesErr:  fmt.Errorf("fetch exchange rates: %w", upstream.ErrUnavailable),
	}
	svc, mock := newTestService(t, fetcher)

	_, err := svc.Run(context.Background())
	if !errors.Is(err, upstream.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected database activity: %v", err)
	}
}

func TestRun_EmptyUpstreamStillStampsMetadata(t *testing.T) {
	fetcher := &fakeFetcher{rates: map[string]float64{}}
	svc, mock := newTestService(t, fetcher)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE metadata SET value").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	stats, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Processed != 0 {
		t.Errorf("expected 0 processed, got %d", stats.Processed)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRun_LockedReturnsInProgress(t *testing.T) {
	fetcher := &fakeFetcher{}
	svc, mock := newTestService(t, fetcher)
	svc.lock = fakeLock{err: ErrInProgress}

	_, err := svc.Run(context.Background())
	if !errors.Is(err, ErrInProgress) {
		t.Fatalf("expected ErrInProgress, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected database activity: %v", err)
	}
}

func TestRun_CommitFailureRollsBack(t *testing.T) {
	fetcher := &fakeFetcher{rates: map[string]float64{}}
	svc, mock := newTestService(t, fetcher)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE metadata SET value").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(fmt.Errorf("connection lost"))

	_, err := svc.Run(context.Background())
	if err == nil {
		t.Fatalf("expected commit failure to propagate")
	}
	if errors.Is(err, upstream.ErrUnavailable) {
		t.Errorf("commit failure must stay distinct from upstream unavailability")
	}
}
