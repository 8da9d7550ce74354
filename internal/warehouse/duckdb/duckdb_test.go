package duckdb

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/natalis/natalis/internal/sample"
	"github.com/natalis/natalis/internal/storage"
	"github.com/natalis/natalis/internal/warehouse"
)

type birth struct {
	Year         int64   `parquet:"year"`
	State        string  `parquet:"state"`
	WeightPounds float64 `parquet:"weight_pounds"`
	IsMale       bool    `parquet:"is_male"`
}

func TestOpenServesBacktickQualifiedTables(t *testing.T) {
	client := openFixture(t, "bigquery-public-data.samples")

	table, err := client.Query(context.Background(),
		"SELECT state, COUNT(*) AS births FROM `bigquery-public-data.samples.natality` WHERE year = 2005 GROUP BY state ORDER BY state")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if table.NumRows() != 2 {
		t.Fatalf("rows = %d", table.NumRows())
	}
	if table.Value(0, 0) != "CA" || table.Value(0, 1) != int64(2) {
		t.Fatalf("first row = %#v", table.Rows[0])
	}
	if table.Columns[0].Kind != warehouse.KindText || table.Columns[1].Kind != warehouse.KindNumeric {
		t.Fatalf("columns = %+v", table.Columns)
	}
}

func TestQueryKeepsBooleanColumnsNonNumeric(t *testing.T) {
	client := openFixture(t, "samples")

	table, err := client.Query(context.Background(), "SELECT is_male, AVG(weight_pounds) AS w FROM samples.natality GROUP BY is_male ORDER BY is_male")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if table.Columns[0].Kind != warehouse.KindBoolean {
		t.Fatalf("is_male kind = %q", table.Columns[0].Kind)
	}
}

func TestQueryEmptyResult(t *testing.T) {
	client := openFixture(t, "bigquery-public-data.samples")

	table, err := client.Query(context.Background(), "SELECT AVG(weight_pounds) AS w, state FROM `bigquery-public-data.samples.natality` WHERE year = 2023 GROUP BY state")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if table.NumRows() != 0 || len(table.Columns) != 2 {
		t.Fatalf("table = %+v", table)
	}
}

func TestListTablesReturnsQualifiedNames(t *testing.T) {
	client := openFixture(t, "bigquery-public-data.samples")

	tables, err := client.ListTables(context.Background(), "bigquery-public-data.samples")
	if err != nil {
		t.Fatalf("ListTables() error = %v", err)
	}
	if len(tables) != 1 || tables[0] != "bigquery-public-data.samples.natality" {
		t.Fatalf("tables = %v", tables)
	}
}

func TestCloseRemovesWorkDir(t *testing.T) {
	payload, err := buildParquet([]birth{{Year: 2005, State: "CA", WeightPounds: 7.2}})
	if err != nil {
		t.Fatalf("buildParquet() error = %v", err)
	}
	store := &memoryStore{objects: map[string][]byte{"samples/natality.parquet": payload}}
	client, err := Open(context.Background(), store, Config{Dataset: "samples", Objects: map[string]string{"natality": "samples/natality.parquet"}})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(client.workDir); !os.IsNotExist(err) {
		t.Fatalf("work dir still present: %v", err)
	}
}

func TestOpenMissingObjectIsConnectionError(t *testing.T) {
	store := &memoryStore{objects: map[string][]byte{}}
	_, err := Open(context.Background(), store, Config{Dataset: "samples", Objects: map[string]string{"natality": "missing.parquet"}})
	if !errors.Is(err, warehouse.ErrConnection) {
		t.Fatalf("error = %v, want ErrConnection", err)
	}
	if !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("error = %v, want ErrObjectNotFound", err)
	}
	if store.gets != 0 {
		t.Fatalf("Get called %d times for a missing extract", store.gets)
	}
}

func TestOpenRejectsEmptyExtract(t *testing.T) {
	store := &memoryStore{objects: map[string][]byte{"samples/natality.parquet": {}}}
	_, err := Open(context.Background(), store, Config{Dataset: "samples", Objects: map[string]string{"natality": "samples/natality.parquet"}})
	if !errors.Is(err, warehouse.ErrConnection) {
		t.Fatalf("error = %v, want ErrConnection", err)
	}
	if store.gets != 0 {
		t.Fatalf("Get called %d times for an empty extract", store.gets)
	}
}

func TestOpenServesPublishedSample(t *testing.T) {
	store := &memoryStore{objects: map[string][]byte{}}
	const seed, n = 42, 400
	if _, err := sample.Publish(context.Background(), store, "samples/natality.parquet", n, seed); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	client, err := Open(context.Background(), store, Config{
		Dataset: "bigquery-public-data.samples",
		Objects: map[string]string{"natality": "samples/natality.parquet"},
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	want := 0
	for _, record := range sample.NewGenerator(seed).Generate(n) {
		if record.Year == 2005 {
			want++
		}
	}
	table, err := client.Query(context.Background(), "SELECT COUNT(*) AS births FROM `bigquery-public-data.samples.natality` WHERE year = 2005")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if table.NumRows() != 1 || table.Value(0, 0) != int64(want) {
		t.Fatalf("births = %#v, want %d", table.Value(0, 0), want)
	}
}

func TestRewriteBacktickPaths(t *testing.T) {
	got := RewriteBacktickPaths("SELECT '`x`' AS s FROM `bigquery-public-data.samples.natality` n")
	want := `SELECT '` + "`x`" + `' AS s FROM "bigquery-public-data"."samples"."natality" n`
	if got != want {
		t.Fatalf("RewriteBacktickPaths() = %q, want %q", got, want)
	}
}

func openFixture(t *testing.T, dataset string) *Client {
	t.Helper()
	payload, err := buildParquet([]birth{
		{Year: 2005, State: "CA", WeightPounds: 7.4, IsMale: true},
		{Year: 2005, State: "CA", WeightPounds: 7.0, IsMale: false},
		{Year: 2005, State: "TX", WeightPounds: 7.1, IsMale: true},
		{Year: 1990, State: "NY", WeightPounds: 7.3, IsMale: false},
	})
	if err != nil {
		t.Fatalf("buildParquet() error = %v", err)
	}
	store := &memoryStore{objects: map[string][]byte{"samples/natality.parquet": payload}}
	client, err := Open(context.Background(), store, Config{
		Dataset: dataset,
		Objects: map[string]string{"natality": "samples/natality.parquet"},
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func buildParquet(rows []birth) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[birth](buf)
	if _, err := writer.Write(rows); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type memoryStore struct {
	objects map[string][]byte
	gets    int
}

func (m *memoryStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ storage.PutOptions) (storage.ObjectInfo, error) {
	payload, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	m.objects[key] = payload
	return storage.ObjectInfo{Key: key, Size: int64(len(payload))}, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.gets++
	payload, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(payload)), nil
}

func (m *memoryStore) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	payload, ok := m.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(payload))}, nil
}
