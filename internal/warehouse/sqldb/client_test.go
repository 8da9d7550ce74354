package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/natalis/natalis/internal/warehouse"
)

func TestQueryMaterializesRowsWithKinds(t *testing.T) {
	db, mock := newSQLMock(t)
	client := New(db, BigQuery)

	rows := mock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("state").OfType("STRING", ""),
		sqlmock.NewColumn("avg_weight").OfType("FLOAT64", float64(0)),
		sqlmock.NewColumn("is_male").OfType("BOOL", false),
	).
		AddRow([]byte("CA"), 7.25, true).
		AddRow("TX", 7.1, false)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT state, AVG(weight_pounds) AS avg_weight, is_male FROM `bigquery-public-data.samples.natality` GROUP BY state, is_male;")).
		WillReturnRows(rows)

	table, err := client.Query(context.Background(), "SELECT state, AVG(weight_pounds) AS avg_weight, is_male FROM `bigquery-public-data.samples.natality` GROUP BY state, is_male;")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if table.NumRows() != 2 {
		t.Fatalf("rows = %d", table.NumRows())
	}
	if table.Value(0, 0) != "CA" {
		t.Fatalf("[]byte value was not normalized: %#v", table.Value(0, 0))
	}
	want := []warehouse.Kind{warehouse.KindText, warehouse.KindNumeric, warehouse.KindBoolean}
	for i, column := range table.Columns {
		if column.Kind != want[i] {
			t.Fatalf("column %s kind = %q, want %q", column.Name, column.Kind, want[i])
		}
	}
	assertSQLMock(t, mock)
}

func TestQueryInfersKindWithoutTypeName(t *testing.T) {
	db, mock := newSQLMock(t)
	client := New(db, DuckDB)

	rows := mock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("births").OfType("", int64(0)),
	).AddRow(nil).AddRow(int64(42))
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(rows)

	table, err := client.Query(context.Background(), "SELECT COUNT(*) AS births FROM natality")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if table.Columns[0].Kind != warehouse.KindNumeric {
		t.Fatalf("kind = %q", table.Columns[0].Kind)
	}
	assertSQLMock(t, mock)
}

func TestQueryEmptyResultKeepsColumns(t *testing.T) {
	db, mock := newSQLMock(t)
	client := New(db, BigQuery)

	mock.ExpectQuery("WHERE year = 2023").
		WillReturnRows(mock.NewRowsWithColumnDefinition(sqlmock.NewColumn("births").OfType("INT64", int64(0))))

	table, err := client.Query(context.Background(), "SELECT COUNT(*) AS births FROM t WHERE year = 2023 HAVING births > 0")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if table.NumRows() != 0 || len(table.Columns) != 1 {
		t.Fatalf("table = %+v", table)
	}
	assertSQLMock(t, mock)
}

func TestQueryReturnsEngineError(t *testing.T) {
	db, mock := newSQLMock(t)
	client := New(db, BigQuery)

	mock.ExpectQuery("SELECT nope").WillReturnError(errors.New("Unrecognized name: nope"))

	_, err := client.Query(context.Background(), "SELECT nope FROM t")
	if err == nil {
		t.Fatal("expected error")
	}
	if !regexp.MustCompile(`Unrecognized name: nope`).MatchString(err.Error()) {
		t.Fatalf("error = %v", err)
	}
	assertSQLMock(t, mock)
}

func TestListTablesBigQueryQualifiesNames(t *testing.T) {
	db, mock := newSQLMock(t)
	client := New(db, BigQuery)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT table_name FROM `bigquery-public-data.samples`.INFORMATION_SCHEMA.TABLES ORDER BY table_name")).
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("gsod").AddRow("natality"))

	tables, err := client.ListTables(context.Background(), "bigquery-public-data.samples")
	if err != nil {
		t.Fatalf("ListTables() error = %v", err)
	}
	if len(tables) != 2 || tables[1] != "bigquery-public-data.samples.natality" {
		t.Fatalf("tables = %v", tables)
	}
	assertSQLMock(t, mock)
}

func TestListTablesDuckDBFiltersSchema(t *testing.T) {
	db, mock := newSQLMock(t)
	client := New(db, DuckDB)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT table_name FROM information_schema.tables WHERE table_schema = ? ORDER BY table_name")).
		WithArgs("samples").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("natality"))

	tables, err := client.ListTables(context.Background(), "samples")
	if err != nil {
		t.Fatalf("ListTables() error = %v", err)
	}
	if len(tables) != 1 || tables[0] != "samples.natality" {
		t.Fatalf("tables = %v", tables)
	}
	assertSQLMock(t, mock)
}

func TestListTablesDuckDBSplitsCatalog(t *testing.T) {
	db, mock := newSQLMock(t)
	client := New(db, DuckDB)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE table_catalog = ? AND table_schema = ?")).
		WithArgs("bigquery-public-data", "samples").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("natality"))

	tables, err := client.ListTables(context.Background(), "bigquery-public-data.samples")
	if err != nil {
		t.Fatalf("ListTables() error = %v", err)
	}
	if len(tables) != 1 || tables[0] != "bigquery-public-data.samples.natality" {
		t.Fatalf("tables = %v", tables)
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
