package sqliteutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/uptrace/bun"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/config"
)

// SetupTestDB opens a private in-memory database for a test.
// The database is closed when the test finishes.
func SetupTestDB(t *testing.T) *bun.DB {
	t.Helper()
	return open(t, MemoryPath)
}

// SetupFileTestDB opens a database file under t.TempDir(), for tests that need WAL
// or reopen the same file.
func SetupFileTestDB(t *testing.T) (*bun.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "assetsync.db")
	return open(t, path), path
}

func open(t *testing.T, path string) *bun.DB {
	t.Helper()
	db, err := Open(context.Background(), &config.StoreConfig{Path: path, BusyTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// AssertTableExists verifies that a table exists in the database
func AssertTableExists(t *testing.T, db *bun.DB, tableName string) {
	t.Helper()
	if n := countMaster(t, db, "table", tableName); n == 0 {
		t.Errorf("table %s does not exist", tableName)
	}
}

// AssertTableNotExists verifies that a table does not exist in the database
func AssertTableNotExists(t *testing.T, db *bun.DB, tableName string) {
	t.Helper()
	if n := countMaster(t, db, "table", tableName); n != 0 {
		t.Errorf("table %s exists but should not", tableName)
	}
}

// AssertIndexExists verifies that an index exists in the database
func AssertIndexExists(t *testing.T, db *bun.DB, indexName string) {
	t.Helper()
	if n := countMaster(t, db, "index", indexName); n == 0 {
		t.Errorf("index %s does not exist", indexName)
	}
}

// AssertRowCount verifies the number of rows in a table
func AssertRowCount(t *testing.T, db *bun.DB, tableName string, expected int) {
	t.Helper()
	count, err := db.NewSelect().Table(tableName).Count(context.Background())
	if err != nil {
		t.Fatalf("failed to count rows in %s: %v", tableName, err)
	}
	if count != expected {
		t.Errorf("expected %d rows in %s, got %d", expected, tableName, count)
	}
}

func countMaster(t *testing.T, db *bun.DB, kind, name string) int {
	t.Helper()
	var n int
	err := db.NewRaw("SELECT count(*) FROM sqlite_master WHERE type = ? AND name = ?", kind, name).
		Scan(context.Background(), &n)
	if err != nil {
		t.Fatalf("failed to query sqlite_master: %v", err)
	}
	return n
}
