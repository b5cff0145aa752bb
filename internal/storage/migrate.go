package storage

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// StatementExecer runs a single SQL script.
type StatementExecer func(ctx context.Context, sql string) error

// Migrate applies every *.sql file in dir in lexical order. Scripts must be
// idempotent; no migration history is recorded.
func Migrate(ctx context.Context, dir fs.FS, exec StatementExecer, logger zerolog.Logger) (int, error) {
	entries, err := fs.ReadDir(dir, ".")
	if err != nil {
		return 0, fmt.Errorf("read migrations: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	applied := 0
	for _, name := range names {
		raw, err := fs.ReadFile(dir, name)
		if err != nil {
			return applied, fmt.Errorf("read %s: %w", name, err)
		}
		script := strings.TrimSpace(string(raw))
		if script == "" {
			continue
		}
		if err := exec(ctx, script); err != nil {
			return applied, fmt.Errorf("apply %s: %w", name, err)
		}
		logger.Info().Str("migration", name).Msg("migration applied")
		applied++
	}
	return applied, nil
}
