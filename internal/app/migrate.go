package app

import (
	"context"
	"os"

	"dayahead/internal/storage"
)

// Migrate applies the schema scripts of every enabled backend.
func (a *App) Migrate(ctx context.Context) error {
	if a.Config.Database.Enabled {
		pool, err := storage.NewPool(ctx, a.Config.Database)
		if err != nil {
			return err
		}
		defer pool.Close()

		applied, err := storage.Migrate(ctx, os.DirFS(a.Config.Database.MigrationsPath), func(ctx context.Context, sql string) error {
			_, err := pool.Exec(ctx, sql)
			return err
		}, a.Logger.With().Str("backend", "timescale").Logger())
		if err != nil {
			return err
		}
		a.Logger.Info().Int("applied", applied).Msg("timescale schema up to date")
	}

	if a.Config.ClickHouse.Enabled {
		conn, err := storage.OpenClickHouse(ctx, a.Config.ClickHouse)
		if err != nil {
			return err
		}
		defer conn.Close()

		applied, err := storage.Migrate(ctx, os.DirFS(a.Config.ClickHouse.MigrationsPath), func(ctx context.Context, sql string) error {
			return conn.Exec(ctx, sql)
		}, a.Logger.With().Str("backend", "clickhouse").Logger())
		if err != nil {
			return err
		}
		a.Logger.Info().Int("applied", applied).Msg("clickhouse schema up to date")
	}
	return nil
}
