package shared

import (
	"database/sql"
	"testing"
)

func memoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func tableExists(db *sql.DB, name string) bool {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	return err == nil && n == 1
}

func TestParseMigrationName(t *testing.T) {
	tt := []struct {
		name    string
		version int
		up      bool
		ok      bool
	}{
		{"0000_create_sync_runs_up.sql", 0, true, true},
		{"0001_create_browser_cookies_down.sql", 1, false, true},
		{"0002_notes.sql", 0, false, false},
		{"latest_up.sql", 0, false, false},
		{"README", 0, false, false},
	}
	for _, tc := range tt {
		version, up, ok := parseMigrationName(tc.name)
		if version != tc.version || up != tc.up || ok != tc.ok {
			t.Errorf("parseMigrationName(%q) = %d, %v, %v", tc.name, version, up, ok)
		}
	}
}

func TestMigrations(t *testing.T) {
	migrations, err := loadMigrations()
	if err != nil {
		t.Fatalf("loadMigrations() error = %v", err)
	}
	if len(migrations) < 2 {
		t.Fatalf("expected the sync run and cookie migrations, got %d", len(migrations))
	}
	for i, m := range migrations {
		if m.Up == "" || m.Down == "" {
			t.Errorf("migration %d is missing up or down SQL", m.Version)
		}
		if i > 0 && m.Version <= migrations[i-1].Version {
			t.Errorf("migration %d sorted after %d", m.Version, migrations[i-1].Version)
		}
	}
	latest := migrations[len(migrations)-1].Version

	t.Run("status of a fresh database", func(t *testing.T) {
		current, pending, err := MigrationStatus(memoryDB(t))
		if err != nil {
			t.Fatal(err)
		}
		if current != -1 || pending != len(migrations) {
			t.Errorf("current=%d pending=%d", current, pending)
		}
	})

	t.Run("run is idempotent", func(t *testing.T) {
		db := memoryDB(t)
		for range 2 {
			if err := RunMigrations(db); err != nil {
				t.Fatalf("RunMigrations() error = %v", err)
			}
		}

		for _, table := range []string{"sync_runs", "sync_run_sequence", "sync_run_tracks", "browser_cookies"} {
			if !tableExists(db, table) {
				t.Errorf("table %s missing after migrations", table)
			}
		}

		current, pending, err := MigrationStatus(db)
		if err != nil {
			t.Fatal(err)
		}
		if current != latest || pending != 0 {
			t.Errorf("current=%d pending=%d, want %d and 0", current, pending, latest)
		}
	})

	t.Run("rollback reverts the latest", func(t *testing.T) {
		db := memoryDB(t)
		if err := RunMigrations(db); err != nil {
			t.Fatal(err)
		}

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("RollbackMigration() error = %v", err)
		}
		if tableExists(db, "browser_cookies") {
			t.Error("browser_cookies should be dropped")
		}
		if !tableExists(db, "sync_runs") {
			t.Error("sync_runs should survive one rollback")
		}

		current, pending, _ := MigrationStatus(db)
		if current != latest-1 || pending != 1 {
			t.Errorf("current=%d pending=%d after rollback", current, pending)
		}

		if err := RunMigrations(db); err != nil {
			t.Fatalf("re-running migrations: %v", err)
		}
		if !tableExists(db, "browser_cookies") {
			t.Error("browser_cookies should be recreated")
		}
	})

	t.Run("rollback with nothing applied", func(t *testing.T) {
		if err := RollbackMigration(memoryDB(t)); err == nil {
			t.Error("expected an error")
		}
	})
}
