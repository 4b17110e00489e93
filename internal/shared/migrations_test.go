package shared

import (
	"testing"
	"time"
)

func TestMigrationRunner(t *testing.T) {
	t.Run("loadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}

		if len(migrations) == 0 {
			t.Fatal("expected at least one migration")
		}

		for i := 1; i < len(migrations); i++ {
			if migrations[i].Version <= migrations[i-1].Version {
				t.Errorf("migrations not sorted: version %d comes after %d", migrations[i].Version, migrations[i-1].Version)
			}
		}

		for _, m := range migrations {
			if m.Up == "" {
				t.Errorf("migration version %d missing up SQL", m.Version)
			}
			if m.Down == "" {
				t.Errorf("migration version %d missing down SQL", m.Version)
			}
		}
	})

	t.Run("RunMigrations And Rollback", func(t *testing.T) {
		db, err := NewDatabase(DriverSQLite, ":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		var count int
		if err := db.Get(&count, "SELECT COUNT(*) FROM schema_migrations"); err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}
		if count == 0 {
			t.Error("expected at least one migration to be applied")
		}

		for _, table := range []string{"users", "visited_cities", "city_photos"} {
			if _, err := db.Exec("SELECT 1 FROM " + table + " LIMIT 1"); err != nil {
				t.Errorf("%s table should exist after migrations: %v", table, err)
			}
		}

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to rollback migration: %v", err)
		}

		var newCount int
		if err := db.Get(&newCount, "SELECT COUNT(*) FROM schema_migrations"); err != nil {
			t.Fatalf("failed to query schema_migrations after rollback: %v", err)
		}
		if newCount >= count {
			t.Errorf("expected migration count to decrease after rollback, got %d (was %d)", newCount, count)
		}

		if _, err := db.Exec("SELECT 1 FROM city_photos LIMIT 1"); err == nil {
			t.Error("city_photos should be dropped by rollback")
		}
	})

	t.Run("Idempotent Migrations", func(t *testing.T) {
		db, err := NewDatabase(DriverSQLite, ":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations first time: %v", err)
		}

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations second time: %v", err)
		}

		var count int
		if err := db.Get(&count, "SELECT COUNT(*) FROM schema_migrations"); err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}

		migrations, _ := loadMigrations()
		if count != len(migrations) {
			t.Errorf("expected %d migrations to be applied, got %d", len(migrations), count)
		}
	})

	t.Run("Legacy photo becomes scenery photo", func(t *testing.T) {
		db, err := NewDatabase(DriverSQLite, ":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}
		if err := createMigrationsTable(db); err != nil {
			t.Fatalf("failed to create migrations table: %v", err)
		}
		if err := applyMigration(db, migrations[0]); err != nil {
			t.Fatalf("failed to apply first migration: %v", err)
		}

		now := time.Now()
		if _, err := db.Exec(
			"INSERT INTO users (id, sequence, username, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
			"u1", 1, "traveler", now, now,
		); err != nil {
			t.Fatalf("failed to insert user: %v", err)
		}
		if _, err := db.Exec(
			`INSERT INTO visited_cities (id, sequence, user_id, city_name, photo_url, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			"c1", 1, "u1", "Beijing", "https://example.com/beijing.jpg", now, now,
		); err != nil {
			t.Fatalf("failed to insert legacy city: %v", err)
		}

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run remaining migrations: %v", err)
		}

		var photo struct {
			Category string `db:"category"`
			URL      string `db:"photo_url"`
		}
		if err := db.Get(&photo, "SELECT category, photo_url FROM city_photos WHERE visited_city_id = ?", "c1"); err != nil {
			t.Fatalf("expected migrated photo: %v", err)
		}
		if photo.Category != "scenery" || photo.URL != "https://example.com/beijing.jpg" {
			t.Errorf("unexpected migrated photo %+v", photo)
		}
	})

	t.Run("Semicolons inside comments", func(t *testing.T) {
		db, err := NewDatabase(DriverSQLite, ":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		script := "-- first table; the second follows\nCREATE TABLE a (id TEXT); -- trailing; note\n" +
			"CREATE TABLE b (id TEXT);\n"

		tx, err := db.Beginx()
		if err != nil {
			t.Fatalf("failed to begin: %v", err)
		}
		if err := execStatements(tx, script); err != nil {
			tx.Rollback()
			t.Fatalf("execStatements failed: %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("failed to commit: %v", err)
		}

		var count int
		if err := db.Get(&count, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('a', 'b')"); err != nil {
			t.Fatalf("failed to count tables: %v", err)
		}
		if count != 2 {
			t.Errorf("expected 2 tables, got %d", count)
		}
	})

	t.Run("Fresh database reaches latest version", func(t *testing.T) {
		db, err := NewDatabase(DriverSQLite, ":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("RunMigrations failed on a fresh database: %v", err)
		}

		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}
		version, err := getCurrentVersion(db)
		if err != nil {
			t.Fatalf("getCurrentVersion failed: %v", err)
		}
		if version != migrations[len(migrations)-1].Version {
			t.Errorf("expected version %d, got %d", migrations[len(migrations)-1].Version, version)
		}
	})
}

func TestNewDatabase(t *testing.T) {
	t.Run("enables foreign keys", func(t *testing.T) {
		db, err := NewDatabase(DriverSQLite, ":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		var enabled int
		if err := db.Get(&enabled, "PRAGMA foreign_keys"); err != nil {
			t.Fatalf("failed to read pragma: %v", err)
		}
		if enabled != 1 {
			t.Errorf("expected foreign keys enabled, got %d", enabled)
		}
	})

	t.Run("sqliteDSN", func(t *testing.T) {
		tc := []struct {
			in, want string
		}{
			{":memory:", ":memory:?_foreign_keys=on"},
			{"file:test.db?cache=shared", "file:test.db?cache=shared&_foreign_keys=on"},
			{"test.db?_fk=1", "test.db?_fk=1"},
		}
		for _, tt := range tc {
			if got := sqliteDSN(tt.in); got != tt.want {
				t.Errorf("sqliteDSN(%q) = %q, want %q", tt.in, got, tt.want)
			}
		}
	})
}
