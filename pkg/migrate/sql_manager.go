package migrate

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

//go:embed sql
var embedded embed.FS

var migrationNamePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_\-]+)\.(up|down)\.sql$`)

var metadataDDL = map[string]string{
	"postgres": `CREATE TABLE IF NOT EXISTS schema_migrations (
	version BIGINT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL
)`,
	"mysql": `CREATE TABLE IF NOT EXISTS schema_migrations (
	version BIGINT NOT NULL PRIMARY KEY,
	applied_at DATETIME(6) NOT NULL
) ENGINE=InnoDB`,
}

// Migration is one versioned schema step.
type Migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

// SQLManager applies migrations and tracks them in schema_migrations.
type SQLManager struct {
	db         *sqlx.DB
	migrations []Migration
	now        func() time.Time
}

// Embedded returns the bundled migration files and directory for dialect.
func Embedded(dialect string) (fs.FS, string, error) {
	if _, ok := metadataDDL[dialect]; !ok {
		return nil, "", fmt.Errorf("no bundled migrations for dialect %q", dialect)
	}
	return embedded, "sql/" + dialect, nil
}

// NewEmbeddedManager builds a manager over the bundled schema for db's dialect.
func NewEmbeddedManager(db *sqlx.DB) (*SQLManager, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	files, dir, err := Embedded(db.DriverName())
	if err != nil {
		return nil, err
	}
	return NewSQLManager(db, files, dir)
}

// NewSQLManager loads NNN_name.(up|down).sql files from migrationsDir.
func NewSQLManager(db *sqlx.DB, migrationFiles fs.FS, migrationsDir string) (*SQLManager, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	if _, ok := metadataDDL[db.DriverName()]; !ok {
		return nil, fmt.Errorf("unsupported migration dialect %q", db.DriverName())
	}
	if migrationFiles == nil {
		return nil, fmt.Errorf("migration files filesystem is required")
	}
	if strings.TrimSpace(migrationsDir) == "" {
		return nil, fmt.Errorf("migration directory is required")
	}

	migrations, err := loadMigrations(migrationFiles, migrationsDir)
	if err != nil {
		return nil, err
	}

	return &SQLManager{db: db, migrations: migrations, now: time.Now}, nil
}

// Migrations returns the loaded migrations in version order.
func (m *SQLManager) Migrations() []Migration {
	return append([]Migration(nil), m.migrations...)
}

// Up applies all pending migrations in order. MySQL commits DDL implicitly, so
// a failing MySQL migration can leave its earlier statements applied.
func (m *SQLManager) Up(ctx context.Context) (int, error) {
	if err := m.ensureMetadataTable(ctx); err != nil {
		return 0, err
	}

	applied, err := m.appliedSet(ctx)
	if err != nil {
		return 0, err
	}

	appliedCount := 0
	for _, migration := range m.migrations {
		if _, already := applied[migration.Version]; already {
			continue
		}

		tx, err := m.db.BeginTxx(ctx, nil)
		if err != nil {
			return appliedCount, fmt.Errorf("begin migration transaction %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx, migration.UpSQL); err != nil {
			_ = tx.Rollback()
			return appliedCount, fmt.Errorf("apply migration %d_%s: %w", migration.Version, migration.Name, err)
		}

		record := m.db.Rebind(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`)
		if _, err := tx.ExecContext(ctx, record, migration.Version, m.now().UTC()); err != nil {
			_ = tx.Rollback()
			return appliedCount, fmt.Errorf("record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return appliedCount, fmt.Errorf("commit migration %d: %w", migration.Version, err)
		}

		appliedCount++
	}

	return appliedCount, nil
}

// Down reverts the most recent steps migrations, newest first.
func (m *SQLManager) Down(ctx context.Context, steps int) (int, error) {
	if steps <= 0 {
		steps = 1
	}
	if err := m.ensureMetadataTable(ctx); err != nil {
		return 0, err
	}

	var applied []int64
	if err := m.db.SelectContext(ctx, &applied, `SELECT version FROM schema_migrations ORDER BY version DESC`); err != nil {
		return 0, fmt.Errorf("load applied migrations descending: %w", err)
	}
	if len(applied) == 0 {
		return 0, nil
	}
	steps = min(steps, len(applied))

	reverted := 0
	for _, version := range applied[:steps] {
		migration, ok := m.migrationByVersion(version)
		if !ok {
			return reverted, fmt.Errorf("migration definition not found for applied version %d", version)
		}
		if strings.TrimSpace(migration.DownSQL) == "" {
			return reverted, fmt.Errorf("down migration missing for version %d", version)
		}

		tx, err := m.db.BeginTxx(ctx, nil)
		if err != nil {
			return reverted, fmt.Errorf("begin rollback transaction %d: %w", version, err)
		}

		if _, err := tx.ExecContext(ctx, migration.DownSQL); err != nil {
			_ = tx.Rollback()
			return reverted, fmt.Errorf("rollback migration %d_%s: %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.ExecContext(ctx, m.db.Rebind(`DELETE FROM schema_migrations WHERE version = ?`), version); err != nil {
			_ = tx.Rollback()
			return reverted, fmt.Errorf("delete migration record %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return reverted, fmt.Errorf("commit rollback %d: %w", version, err)
		}

		reverted++
	}

	return reverted, nil
}

// Status reports applied and pending migrations.
func (m *SQLManager) Status(ctx context.Context) (*Status, error) {
	if err := m.ensureMetadataTable(ctx); err != nil {
		return nil, err
	}

	appliedSet, err := m.appliedSet(ctx)
	if err != nil {
		return nil, err
	}

	appliedVersions := make([]int64, 0, len(appliedSet))
	for version := range appliedSet {
		appliedVersions = append(appliedVersions, version)
	}
	sort.Slice(appliedVersions, func(i, j int) bool {
		return appliedVersions[i] < appliedVersions[j]
	})

	pending := make([]PendingMigration, 0)
	for _, migration := range m.migrations {
		if _, exists := appliedSet[migration.Version]; !exists {
			pending = append(pending, PendingMigration{Version: migration.Version, Name: migration.Name})
		}
	}

	return &Status{AppliedVersions: appliedVersions, Pending: pending}, nil
}

func (m *SQLManager) ensureMetadataTable(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, metadataDDL[m.db.DriverName()]); err != nil {
		return fmt.Errorf("ensure schema_migrations table: %w", err)
	}
	return nil
}

func (m *SQLManager) appliedSet(ctx context.Context) (map[int64]struct{}, error) {
	var versions []int64
	if err := m.db.SelectContext(ctx, &versions, `SELECT version FROM schema_migrations`); err != nil {
		return nil, fmt.Errorf("load applied migrations: %w", err)
	}
	set := make(map[int64]struct{}, len(versions))
	for _, v := range versions {
		set[v] = struct{}{}
	}
	return set, nil
}

func (m *SQLManager) migrationByVersion(version int64) (Migration, bool) {
	for _, migration := range m.migrations {
		if migration.Version == version {
			return migration, true
		}
	}
	return Migration{}, false
}

func loadMigrations(migrationFiles fs.FS, migrationsDir string) ([]Migration, error) {
	entries, err := fs.ReadDir(migrationFiles, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("read migration files: %w", err)
	}

	byVersion := make(map[int64]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		matches := migrationNamePattern.FindStringSubmatch(name)
		if len(matches) != 4 {
			continue
		}

		version, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version %q: %w", matches[1], err)
		}

		payload, err := fs.ReadFile(migrationFiles, migrationsDir+"/"+name)
		if err != nil {
			return nil, fmt.Errorf("read migration file %q: %w", name, err)
		}

		item, ok := byVersion[version]
		if !ok {
			item = &Migration{Version: version, Name: matches[2]}
			byVersion[version] = item
		}
		if matches[3] == "up" {
			item.UpSQL = string(payload)
		} else {
			item.DownSQL = string(payload)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, item := range byVersion {
		if strings.TrimSpace(item.UpSQL) == "" {
			return nil, fmt.Errorf("missing up migration for version %d", item.Version)
		}
		migrations = append(migrations, *item)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}
