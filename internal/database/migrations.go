package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Migration is one numbered schema change read from disk
type Migration struct {
	Version  string
	Title    string
	UpSQL    string
	DownSQL  string
	Checksum string // SHA256 of UpSQL
}

// MigrationStatus describes a migration and whether it has been applied
type MigrationStatus struct {
	Version   string     `json:"version"`
	Title     string     `json:"title"`
	Applied   bool       `json:"applied"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
}

// ErrChecksumMismatch is returned when an applied migration file was edited afterwards
var ErrChecksumMismatch = errors.New("applied migration has been modified")

// MigrationExecutor applies the *.up.sql / *.down.sql files of a directory
type MigrationExecutor struct {
	db *sql.DB
}

// NewMigrationExecutor creates a new migration executor
func NewMigrationExecutor(db *sql.DB) *MigrationExecutor {
	return &MigrationExecutor{db: db}
}

// Up applies every pending migration in version order and returns how many ran
func (m *MigrationExecutor) Up(ctx context.Context, dir string) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations, err := ReadMigrations(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read migration files: %w", err)
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	if err := verifyChecksums(migrations, applied); err != nil {
		return 0, err
	}

	count := 0
	for _, mig := range migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return count, fmt.Errorf("failed to execute migration %s: %w", mig.Version, err)
		}
		slog.Info("Applied migration", "version", mig.Version, "title", mig.Title)
		count++
	}

	return count, nil
}

// Down reverts the most recently applied migration. It returns the reverted
// version, or an empty string when nothing was applied.
func (m *MigrationExecutor) Down(ctx context.Context, dir string) (string, error) {
	if err := m.ensureTable(ctx); err != nil {
		return "", fmt.Errorf("failed to create migrations table: %w", err)
	}

	var version string
	err := m.db.QueryRowContext(ctx,
		`SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	migrations, err := ReadMigrations(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read migration files: %w", err)
	}

	for _, mig := range migrations {
		if mig.Version != version {
			continue
		}
		if mig.DownSQL == "" {
			return "", fmt.Errorf("migration %s has no down script", version)
		}
		err := m.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, mig.DownSQL); err != nil {
				return fmt.Errorf("down SQL failed: %w", err)
			}
			_, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, version)
			return err
		})
		if err != nil {
			return "", err
		}
		slog.Info("Reverted migration", "version", version, "title", mig.Title)
		return version, nil
	}

	return "", fmt.Errorf("migration %s is applied but its file is missing", version)
}

// Status lists every migration on disk along with its applied state
func (m *MigrationExecutor) Status(ctx context.Context, dir string) ([]MigrationStatus, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	migrations, err := ReadMigrations(dir)
	if err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]MigrationStatus, 0, len(migrations))
	for _, mig := range migrations {
		st := MigrationStatus{Version: mig.Version, Title: mig.Title}
		if rec, ok := applied[mig.Version]; ok {
			at := rec.appliedAt
			st.Applied = true
			st.AppliedAt = &at
		}
		out = append(out, st)
	}
	return out, nil
}

func (m *MigrationExecutor) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			title VARCHAR(500),
			checksum VARCHAR(64),
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

type appliedMigration struct {
	checksum  string
	appliedAt time.Time
}

func (m *MigrationExecutor) applied(ctx context.Context) (map[string]appliedMigration, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT version, COALESCE(checksum, ''), applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			slog.Error("Failed to close rows", "error", err)
		}
	}(rows)

	out := make(map[string]appliedMigration)
	for rows.Next() {
		var version string
		var rec appliedMigration
		if err := rows.Scan(&version, &rec.checksum, &rec.appliedAt); err != nil {
			return nil, err
		}
		out[version] = rec
	}
	return out, rows.Err()
}

func (m *MigrationExecutor) apply(ctx context.Context, mig Migration) error {
	return m.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, mig.UpSQL); err != nil {
			return fmt.Errorf("migration SQL failed: %w", err)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, title, checksum) VALUES ($1, $2, $3)`,
			mig.Version, mig.Title, mig.Checksum)
		if err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}
		return nil
	})
}

func (m *MigrationExecutor) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.Error("Failed to rollback transaction", "error", err)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// ReadMigrations parses NNN_title.up.sql / NNN_title.down.sql pairs from dir.
// Versions without an up script are ignored.
func ReadMigrations(dir string) ([]Migration, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	byVersion := make(map[string]*Migration)
	for _, file := range files {
		name := file.Name()
		if file.IsDir() {
			continue
		}
		isUp := strings.HasSuffix(name, ".up.sql")
		isDown := strings.HasSuffix(name, ".down.sql")
		if !isUp && !isDown {
			continue
		}

		version, rest, ok := strings.Cut(name, "_")
		if !ok {
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}

		mig := byVersion[version]
		if mig == nil {
			title := strings.TrimSuffix(strings.TrimSuffix(rest, ".up.sql"), ".down.sql")
			mig = &Migration{Version: version, Title: strings.ReplaceAll(title, "_", " ")}
			byVersion[version] = mig
		}
		if isUp {
			mig.UpSQL = string(content)
			mig.Checksum = checksum(mig.UpSQL)
		} else {
			mig.DownSQL = string(content)
		}
	}

	var out []Migration
	for _, mig := range byVersion {
		if mig.UpSQL != "" {
			out = append(out, *mig)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func verifyChecksums(migrations []Migration, applied map[string]appliedMigration) error {
	var mismatches []string
	for _, mig := range migrations {
		rec, ok := applied[mig.Version]
		if !ok || rec.checksum == "" || rec.checksum == mig.Checksum {
			continue
		}
		mismatches = append(mismatches, fmt.Sprintf(
			"\n  Migration %s (%s):\n    Expected checksum: %s\n    Current checksum:  %s",
			mig.Version, mig.Title, rec.checksum, mig.Checksum,
		))
	}
	if len(mismatches) > 0 {
		return fmt.Errorf("%w:%s\n\nRestore the original files or add a new migration instead.",
			ErrChecksumMismatch, strings.Join(mismatches, ""))
	}
	return nil
}

func checksum(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}
