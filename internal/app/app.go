package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"dayahead/internal/alerting"
	"dayahead/internal/api"
	"dayahead/internal/config"
	"dayahead/internal/fetcher"
	"dayahead/internal/metrics"
	"dayahead/internal/scheduler"
	"dayahead/internal/service"
	"dayahead/internal/storage"
	"dayahead/internal/tax"
	"dayahead/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetcher() *fetcher.Client {
	cfg := a.Config.Entsoe
	return fetcher.NewClient(fetcher.Options{
		BaseURL:       cfg.BaseURL,
		SecurityToken: cfg.SecurityToken,
		DocumentType:  cfg.DocumentType,
		Timeout:       cfg.RequestTimeout,
		UserAgent:     userAgent(cfg.UserAgent),
	}, a.Logger)
}

func userAgent(configured string) string {
	if configured != "" {
		return configured
	}
	return version.UserAgent()
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled || !a.Config.Alerting.Telegram.Enabled {
		return nil
	}
	cfg := a.Config.Alerting.Telegram
	telegram := alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	return alerting.NewThrottled(telegram, a.Config.Alerting.Cooldown)
}

func (a *App) newSchedule() (*tax.Schedule, error) {
	return tax.NewSchedule(a.Config.Tax.Windows, a.Config.Tax.DefaultRate, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if !a.Config.Database.Enabled || a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

type backends struct {
	list  []storage.Backend
	store *storage.Store
	close func()
}

// openBackends opens every enabled storage backend. The Store is nil unless
// TimescaleDB is enabled.
func (a *App) openBackends(ctx context.Context) (*backends, error) {
	out := &backends{close: func() {}}
	var closers []func()

	if a.Config.Database.Enabled {
		pool, err := storage.NewPool(ctx, a.Config.Database)
		if err != nil {
			return nil, err
		}
		out.store = storage.NewStore(pool)
		closers = append(closers, pool.Close)
		out.list = append(out.list, storage.NewTimescaleBackend(pool, storage.TimescaleOptions{
			RefreshViews: a.Config.Database.RefreshViews,
			DocumentType: a.Config.Entsoe.DocumentType,
		}, a.Logger))
	}

	if a.Config.ClickHouse.Enabled {
		conn, err := storage.OpenClickHouse(ctx, a.Config.ClickHouse)
		if err != nil {
			for _, c := range closers {
				c()
			}
			return nil, err
		}
		closers = append(closers, func() { _ = conn.Close() })
		out.list = append(out.list, storage.NewAppendBackend(conn, a.Config.Entsoe.DocumentType, a.Logger))
	}

	out.close = func() {
		for _, c := range closers {
			c()
		}
	}
	return out, nil
}

func (a *App) newService(deps service.Dependencies) *service.Service {
	return service.New(a.Config, deps, a.Logger)
}

// Run executes the background loop and the REST server as configured.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if !a.Config.Scheduler.Enabled && !a.Config.API.Enabled {
		a.Logger.Warn().Msg("neither scheduler nor api is enabled; nothing to run")
		return nil
	}

	schedule, err := a.newSchedule()
	if err != nil {
		return err
	}

	opened, err := a.openBackends(ctx)
	if err != nil {
		return err
	}
	defer opened.close()
	if len(opened.list) == 0 {
		a.Logger.Warn().Msg("no storage backend enabled; documents will be fetched but not stored")
	}

	var sched *scheduler.Scheduler
	if a.Config.Scheduler.Enabled {
		sched = scheduler.New(scheduler.Options{
			Interval:       a.Config.Scheduler.Interval,
			AlignToStart:   a.Config.Scheduler.AlignToBucket,
			StartupDelay:   a.Config.Scheduler.StartupDelay,
			RunImmediately: a.Config.Scheduler.RunImmediately,
		}, a.Logger)
	}

	m := metrics.New()
	deps := service.Dependencies{
		Scheduler: sched,
		Fetcher:   a.newFetcher(),
		Backends:  opened.list,
		Schedule:  schedule,
		Notifier:  a.newNotifier(),
		Metrics:   m,
	}
	if opened.store != nil {
		deps.Locker = opened.store
	}
	svc := a.newService(deps)
	pair := a.Config.Entsoe.Pair()

	g, gctx := errgroup.WithContext(ctx)
	if sched != nil {
		g.Go(func() error {
			a.Logger.Info().Str("pair", pair.String()).Strs("backends", a.Config.Backends()).Msg("starting synchronization loop")
			return svc.Run(gctx, pair)
		})
	}
	if a.Config.API.Enabled {
		server := api.New(a.Config.API, svc, pair, m.Handler(), a.Logger)
		g.Go(func() error {
			return server.Run(gctx)
		})
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("synchronization service stopped")
	return nil
}

// ExportOptions hold parameters for exporting stored prices.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// SyncOptions configure an on-demand synchronization.
type SyncOptions struct {
	From      time.Time
	To        time.Time
	InDomain  string
	OutDomain string
	DryRun    bool
}

// InspectOptions configure the inspect command.
type InspectOptions struct {
	Path  string
	Limit int
}
