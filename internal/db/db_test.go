package db

import (
	"path/filepath"
	"strings"
	"testing"

	"bikeshare-monitor/internal/config"
)

func TestBuildDSN(t *testing.T) {
	t.Run("explicit dsn wins", func(t *testing.T) {
		got, err := BuildDSN("file::memory:?cache=shared", "ignored.db")
		if err != nil {
			t.Fatalf("BuildDSN() err = %v", err)
		}
		if got != "file::memory:?cache=shared" {
			t.Errorf("BuildDSN() = %q", got)
		}
	})

	t.Run("plain path gets params and directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "monitor.db")
		got, err := BuildDSN("", path)
		if err != nil {
			t.Fatalf("BuildDSN() err = %v", err)
		}
		if !strings.HasPrefix(got, "file:"+path+"?") {
			t.Errorf("BuildDSN() = %q; want file: prefix with path", got)
		}
		for _, p := range []string{"_foreign_keys=on", "_busy_timeout=5000", "_journal_mode=WAL"} {
			if !strings.Contains(got, p) {
				t.Errorf("BuildDSN() = %q; missing %s", got, p)
			}
		}
	})

	t.Run("file: path with query appends with ampersand", func(t *testing.T) {
		got, err := BuildDSN("", "file:monitor.db?mode=rwc")
		if err != nil {
			t.Fatalf("BuildDSN() err = %v", err)
		}
		if !strings.HasPrefix(got, "file:monitor.db?mode=rwc&_foreign_keys=on") {
			t.Errorf("BuildDSN() = %q", got)
		}
	})
}

func TestOpen(t *testing.T) {
	for _, logSQL := range []bool{false, true} {
		cfg := config.Config{
			SQLiteDriver:        "sqlite3",
			SQLitePath:          filepath.Join(t.TempDir(), "monitor.db"),
			SQLiteMaxOpenConns:  1,
			SQLiteMaxIdleConns:  1,
			SQLiteLogStatements: logSQL,
		}
		conn, err := Open(cfg)
		if err != nil {
			t.Fatalf("Open(logSQL=%v) err = %v", logSQL, err)
		}
		var one int
		if err := conn.QueryRow(`SELECT 1`).Scan(&one); err != nil || one != 1 {
			t.Errorf("SELECT 1 = %d, %v", one, err)
		}
		if err := Close(conn); err != nil {
			t.Errorf("Close() err = %v", err)
		}
	}

	if err := Close(nil); err != nil {
		t.Errorf("Close(nil) err = %v; want nil", err)
	}
}
