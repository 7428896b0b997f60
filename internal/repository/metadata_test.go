package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestGetRefreshTimestamp_NullBeforeFirstRefresh(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMetadataRepository(db)

	mock.ExpectQuery(`SELECT value FROM metadata`).
		WithArgs("last_refreshed_at").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(nil))

	ts, err := repo.GetRefreshTimestamp(context.Background())
	if err != nil {
		t.Fatalf("GetRefreshTimestamp: %v", err)
	}
	if ts != nil {
		t.Errorf("expected nil before the first refresh, got %v", ts)
	}
}

func TestGetRefreshTimestamp_ParsesStoredValue(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMetadataRepository(db)

	mock.ExpectQuery(`SELECT value FROM metadata`).
		WithArgs("last_refreshed_at").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("2026-08-30 12:34:56"))

	ts, err := repo.GetRefreshTimestamp(context.Background())
	if err != nil {
		t.Fatalf("GetRefreshTimestamp: %v", err)
	}
	want := time.Date(2026, 8, 30, 12, 34, 56, 0, time.UTC)
	if ts == nil || !ts.Equal(want) {
		t.Errorf("expected %v, got %v", want, ts)
	}
}

func TestGetRefreshTimestamp_BadValueIsAnError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMetadataRepository(db)

	mock.ExpectQuery(`SELECT value FROM metadata`).
		WithArgs("last_refreshed_at").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("not-a-time"))

	if _, err := repo.GetRefreshTimestamp(context.Background()); err == nil {
		t.Errorf("expected an error for an unparsable value")
	}
}

func TestSetRefreshTimestamp_RunsInCallerTx(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMetadataRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE metadata SET value = NOW\(\)`).
		WithArgs("last_refreshed_at").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := repo.SetRefreshTimestamp(context.Background(), tx); err != nil {
		t.Fatalf("SetRefreshTimestamp: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
