package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
)

func TestLoadColumnsGroupsByObject(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`
SELECT LOWER(table_name), column_name
FROM information_schema.columns
WHERE table_schema = current_schema()
  AND LOWER(table_name) IN ($1, $2)
ORDER BY table_name, ordinal_position`)).
		WithArgs("event", "vw_event_sales").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name"}).
			AddRow("event", "id").
			AddRow("event", "name").
			AddRow("vw_event_sales", "revenue"))

	got, err := repo.LoadColumns(context.Background(), []string{"Event", "vw_event_sales"})
	if err != nil {
		t.Fatalf("LoadColumns() error = %v", err)
	}
	want := map[string][]string{
		"event":          {"id", "name"},
		"vw_event_sales": {"revenue"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("LoadColumns() mismatch (-want +got):\n%s", diff)
	}
	assertSQLMock(t, mock)
}

func TestLoadColumnsWrapsQueryError(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM information_schema.columns`)).
		WillReturnError(errors.New("boom"))

	if _, err := repo.LoadColumns(context.Background(), []string{"Event"}); err == nil {
		t.Fatal("expected error")
	}
	assertSQLMock(t, mock)
}

func TestLoadColumnsWithoutNamesSkipsQuery(t *testing.T) {
	db, mock := newSQLMock(t)
	got, err := NewRepository(db).LoadColumns(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("LoadColumns() = %v, %v", got, err)
	}
	assertSQLMock(t, mock)
}

func TestHealthCheckPings(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectPing().WillReturnError(errors.New("down"))
	if err := NewRepository(db).HealthCheck(context.Background()); err == nil {
		t.Fatal("expected ping error")
	}
	assertSQLMock(t, mock)
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
