package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoPutUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	doc := Document{
		UserID:      "google:1",
		Results:     []json.RawMessage{json.RawMessage(`{"ticker":"AAPL"}`)},
		Timestamp:   at,
		ProcessedAt: isoMillis(at),
	}

	mock.ExpectExec("INSERT INTO analysis_results").
		WithArgs(doc.UserID, []byte(`[{"ticker":"AAPL"}]`), at, "2024-06-01T12:00:00.000Z").
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Put(context.Background(), doc); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoPutNilResultsStoresEmptyArray(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec("INSERT INTO analysis_results").
		WithArgs("u1", []byte("[]"), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := &PGRepo{DB: db}
	if err := repo.Put(context.Background(), Document{UserID: "u1"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"results", "written_at", "processed_at"}).
		AddRow([]byte(`[{"ticker":"AAPL"},{"ticker":"MSFT"}]`), at, "2024-06-01T12:00:00.000Z")
	mock.ExpectQuery("SELECT results").WithArgs("u1").WillReturnRows(rows)

	repo := &PGRepo{DB: db}
	doc, err := repo.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.UserID != "u1" || len(doc.Results) != 2 {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if string(doc.Results[1]) != `{"ticker":"MSFT"}` {
		t.Fatalf("unexpected second item: %s", doc.Results[1])
	}
	if !doc.Timestamp.Equal(at) {
		t.Fatalf("unexpected timestamp: %v", doc.Timestamp)
	}
}

func TestPGRepoGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("SELECT results").WithArgs("nobody").WillReturnError(sql.ErrNoRows)

	repo := &PGRepo{DB: db}
	if _, err := repo.Get(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
