package store

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/chybatronik/goRestKit/pkg/db"
	"github.com/jackc/pgx/v5"
)

//go:embed migrations/*.sql
var embedded embed.FS

// legacyChecksum marks rows recorded before checksums were tracked
const legacyChecksum = "legacy_migration_no_checksum_available"

// Migration is one up-migration file
type Migration struct {
	Version  string
	Filename string
	SQL      string
	Checksum string
}

// MigrationStatus reports whether a migration has been applied
type MigrationStatus struct {
	Version    string
	Applied    bool
	ExecutedAt *time.Time
}

// Migrations returns the SQL files shipped with the service
func Migrations() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

func checksum(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// LoadMigrations reads every *.sql file at the root of files ordered by
// version. Files named *_down_* are skipped.
func LoadMigrations(files fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || path.Ext(name) != ".sql" || strings.Contains(name, "_down_") {
			continue
		}

		content, err := fs.ReadFile(files, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", name, err)
		}
		migrations = append(migrations, Migration{
			Version:  strings.TrimSuffix(name, ".sql"),
			Filename: name,
			SQL:      string(content),
			Checksum: checksum(string(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Migrator applies migrations and records them in schema_migrations
type Migrator struct {
	q        Querier
	acquirer db.Acquirer
	files    fs.FS
	logger   *slog.Logger
}

// NewMigrator creates a migrator for files running on state's pool
func NewMigrator(state *db.State, files fs.FS, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{
		q:        state.Pool,
		acquirer: state.Acquirer(),
		files:    files,
		logger:   logger.With("component", "migrations"),
	}
}

// Up applies every pending migration, each in its own transaction, then
// verifies the checksums of the applied ones. It returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	start := time.Now()

	if err := m.ensureTable(ctx); err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations, err := LoadMigrations(m.files)
	if err != nil {
		return 0, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get executed migrations: %w", err)
	}
	m.logger.Info("migrations loaded", "files", len(migrations), "applied", len(applied))

	count := 0
	for _, mig := range migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		m.logger.Info("executing migration", "version", mig.Version, "checksum", mig.Checksum[:16])
		if err := m.execute(ctx, mig); err != nil {
			return count, fmt.Errorf("failed to execute migration %s: %w", mig.Version, err)
		}
		count++
	}

	if err := m.Verify(ctx); err != nil {
		return count, err
	}

	m.logger.Info("migrations completed", "executed", count, "duration_ms", time.Since(start).Milliseconds())
	return count, nil
}

// Status lists every known migration with its applied state
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	migrations, err := LoadMigrations(m.files)
	if err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get executed migrations: %w", err)
	}

	status := make([]MigrationStatus, len(migrations))
	for i, mig := range migrations {
		status[i] = MigrationStatus{Version: mig.Version}
		if rec, ok := applied[mig.Version]; ok {
			status[i].Applied = true
			status[i].ExecutedAt = &rec.executedAt
		}
	}
	return status, nil
}

// Verify fails when an applied migration is missing from files or its
// content changed after it ran.
func (m *Migrator) Verify(ctx context.Context) error {
	migrations, err := LoadMigrations(m.files)
	if err != nil {
		return err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return fmt.Errorf("failed to query executed migrations: %w", err)
	}
	return verifyChecksums(migrations, applied)
}

type appliedMigration struct {
	checksum   string
	executedAt time.Time
}

func verifyChecksums(migrations []Migration, applied map[string]appliedMigration) error {
	byVersion := make(map[string]Migration, len(migrations))
	for _, mig := range migrations {
		byVersion[mig.Version] = mig
	}

	versions := make([]string, 0, len(applied))
	for v := range applied {
		versions = append(versions, v)
	}
	sort.Strings(versions)

	for _, v := range versions {
		mig, ok := byVersion[v]
		if !ok {
			return fmt.Errorf("migration %s found in database but not in migrations directory", v)
		}
		sum := applied[v].checksum
		if sum != legacyChecksum && sum != mig.Checksum {
			return fmt.Errorf("migration %s has been modified after execution (checksum mismatch)", v)
		}
	}
	return nil
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.q.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			executed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			checksum VARCHAR(64)
		)`)
	if err != nil {
		return err
	}
	_, err = m.q.Exec(ctx, `UPDATE schema_migrations SET checksum = $1 WHERE checksum IS NULL`, legacyChecksum)
	return err
}

func (m *Migrator) applied(ctx context.Context) (map[string]appliedMigration, error) {
	rows, err := m.q.Query(ctx, "SELECT version, checksum, executed_at FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]appliedMigration)
	for rows.Next() {
		var version string
		var rec appliedMigration
		if err := rows.Scan(&version, &rec.checksum, &rec.executedAt); err != nil {
			return nil, err
		}
		applied[version] = rec
	}
	return applied, rows.Err()
}

func (m *Migrator) execute(ctx context.Context, mig Migration) error {
	return db.WithTx(ctx, m.acquirer, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, mig.SQL); err != nil {
			return fmt.Errorf("failed to execute migration SQL: %w", err)
		}
		if _, err := tx.Exec(ctx,
			"INSERT INTO schema_migrations (version, checksum) VALUES ($1, $2)",
			mig.Version, mig.Checksum); err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}
		return nil
	})
}
