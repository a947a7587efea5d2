package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Migration is one .sql file from the migrations directory.
type Migration struct {
	Filename string
	Checksum string
	Applied  bool // applied by this run, false when already recorded
}

// ErrMigrationChanged reports an applied migration whose file was edited afterwards.
var ErrMigrationChanged = errors.New("migration changed after it was applied")

// Migrate applies the .sql files in dir in lexical order. Each file runs in
// its own transaction together with its schema_migrations row.
func Migrate(ctx context.Context, db *sql.DB, dir string) ([]Migration, error) {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id BIGSERIAL PRIMARY KEY,
			filename TEXT NOT NULL UNIQUE,
			checksum TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return out, fmt.Errorf("read migration %s: %w", name, err)
		}
		sum := sha256.Sum256(content)
		m := Migration{Filename: name, Checksum: hex.EncodeToString(sum[:])}

		var recorded string
		err = db.QueryRowContext(ctx, `SELECT checksum FROM schema_migrations WHERE filename = $1`, name).Scan(&recorded)
		switch {
		case err == nil:
			if recorded != m.Checksum {
				return out, fmt.Errorf("%s: %w", name, ErrMigrationChanged)
			}
			out = append(out, m)
			continue
		case !errors.Is(err, sql.ErrNoRows):
			return out, fmt.Errorf("check migration %s: %w", name, err)
		}

		if err := applyMigration(ctx, db, m, string(content)); err != nil {
			return out, err
		}
		m.Applied = true
		out = append(out, m)
	}
	return out, nil
}

func applyMigration(ctx context.Context, db *sql.DB, m Migration, body string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", m.Filename, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, body); err != nil {
		return fmt.Errorf("apply migration %s: %w", m.Filename, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (filename, checksum) VALUES ($1, $2)`, m.Filename, m.Checksum); err != nil {
		return fmt.Errorf("record migration %s: %w", m.Filename, err)
	}
	return tx.Commit()
}
