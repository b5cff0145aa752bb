package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"dayahead/internal/alerting"
	"dayahead/internal/config"
	"dayahead/internal/fetcher"
	"dayahead/internal/metrics"
	"dayahead/internal/model"
	"dayahead/internal/planner"
	"dayahead/internal/scheduler"
	"dayahead/internal/series"
	"dayahead/internal/storage"
	"dayahead/internal/tax"
)

var (
	// ErrInvalidRange rejects an on-demand synchronization request.
	ErrInvalidRange = errors.New("invalid synchronization range")
	// ErrBusy reports that another pass already holds the domain pair.
	ErrBusy = errors.New("synchronization already running for domain pair")
)

// Dependencies are the collaborators the service orchestrates. Scheduler,
// Notifier, Metrics and Locker are optional.
type Dependencies struct {
	Scheduler *scheduler.Scheduler
	Fetcher   fetcher.DocumentFetcher
	Backends  []storage.Backend
	Schedule  *tax.Schedule
	Notifier  alerting.Notifier
	Metrics   *metrics.Metrics
	Locker    storage.AdvisoryLocker
}

// Service orchestrates fetching, expansion, enrichment and replication.
type Service struct {
	scheduler *scheduler.Scheduler
	fetcher   fetcher.DocumentFetcher
	backends  []storage.Backend
	schedule  *tax.Schedule
	notifier  alerting.Notifier
	metrics   *metrics.Metrics
	locker    storage.AdvisoryLocker
	logger    zerolog.Logger

	configuredStart time.Time
	intervalDays    int
	maxSpan         time.Duration
	documentType    string
	lockKey         int64

	pairs *pairLocks
	now   func() time.Time
}

// New constructs the synchronization service.
func New(cfg *config.Config, deps Dependencies, logger zerolog.Logger) *Service {
	maxSpan := cfg.Sync.MaxRequestSpan
	if maxSpan <= 0 || maxSpan > planner.MaxRequestSpan {
		maxSpan = planner.MaxRequestSpan
	}
	documentType := cfg.Entsoe.DocumentType
	if documentType == "" {
		documentType = model.DocumentTypeDayAhead
	}

	return &Service{
		scheduler:       deps.Scheduler,
		fetcher:         deps.Fetcher,
		backends:        deps.Backends,
		schedule:        deps.Schedule,
		notifier:        deps.Notifier,
		metrics:         deps.Metrics,
		locker:          deps.Locker,
		logger:          logger.With().Str("component", "service").Logger(),
		configuredStart: cfg.Sync.StartTime.UTC(),
		intervalDays:    cfg.Sync.IntervalDays,
		maxSpan:         maxSpan,
		documentType:    documentType,
		lockKey:         cfg.Sync.AdvisoryLockKey,
		pairs:           newPairLocks(),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// Run begins the background catch-up loop for pair.
func (s *Service) Run(ctx context.Context, pair model.DomainPair) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, func(ctx context.Context, _ time.Time) error {
		s.RunCatchUpPass(ctx, pair)
		return nil
	})
}

// RunCatchUpPass plans the next window from the backend watermarks and
// synchronizes it. Chunks run in order and the pass stops at the first failed
// chunk so that no gap is left behind the watermark. Errors are logged only.
func (s *Service) RunCatchUpPass(ctx context.Context, pair model.DomainPair) {
	passID := uuid.NewString()
	logger := s.logger.With().Str("pass_id", passID).Str("pair", pair.String()).Logger()
	started := s.now()
	defer func() { s.metrics.ObservePass(s.now().Sub(started)) }()

	release, err := s.lockPair(ctx, pair)
	if err != nil {
		if errors.Is(err, ErrBusy) {
			logger.Info().Msg("skip pass because domain pair is locked elsewhere")
			s.metrics.RecordChunk(pair.String(), metrics.OutcomeSkipped)
		} else {
			logger.Error().Err(err).Msg("acquire pass lock failed")
		}
		return
	}
	defer release()

	window := planner.NextWindow(s.configuredStart, s.watermarks(ctx, pair), s.intervalDays)
	logger.Info().Time("start", window.Start).Time("end", window.End).Msg("catch-up window planned")

	for _, chunk := range planner.Chunk(window.Start, window.End, s.maxSpan) {
		result := s.processWindow(ctx, logger, passID, pair, chunk)
		if result.Err != nil {
			logger.Warn().Err(result.Err).
				Time("start", chunk.Start).
				Time("end", chunk.End).
				Msg("chunk failed; remaining chunks deferred to next pass")
			return
		}
	}
}

// Synchronize fetches and replicates [start, stop) on demand. Both bounds must
// fall on whole hours. Chunks are
// processed sequentially and a failed chunk does not stop later ones; failures
// are reported in the Result.
func (s *Service) Synchronize(ctx context.Context, start, stop time.Time, pair model.DomainPair) (Result, error) {
	if start.IsZero() || stop.IsZero() {
		return Result{}, fmt.Errorf("%w: start and stop are required", ErrInvalidRange)
	}
	if !start.Before(stop) {
		return Result{}, fmt.Errorf("%w: start %s is not before stop %s", ErrInvalidRange,
			start.UTC().Format(time.RFC3339), stop.UTC().Format(time.RFC3339))
	}
	if !onHour(start) || !onHour(stop) {
		return Result{}, fmt.Errorf("%w: start and stop must be whole hours", ErrInvalidRange)
	}
	if err := pair.Validate(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}

	passID := uuid.NewString()
	logger := s.logger.With().Str("pass_id", passID).Str("pair", pair.String()).Logger()

	release, err := s.lockPair(ctx, pair)
	if err != nil {
		return Result{}, err
	}
	defer release()

	result := Result{PassID: passID, Pair: pair}
	chunks := planner.Chunk(start.UTC(), stop.UTC(), s.maxSpan)
	logger.Info().Time("start", start).Time("stop", stop).Int("chunks", len(chunks)).Msg("on-demand synchronization started")

	for _, chunk := range chunks {
		result.Chunks = append(result.Chunks, s.processWindow(ctx, logger, passID, pair, chunk))
	}

	logger.Info().Bool("failed", result.Failed()).Msg("on-demand synchronization finished")
	return result, nil
}

func (s *Service) processWindow(ctx context.Context, logger zerolog.Logger, passID string, pair model.DomainPair, window planner.Window) ChunkResult {
	result := ChunkResult{Window: window}

	doc, err := s.fetcher.FetchDocument(ctx, pair, window)
	if err != nil {
		result.Err = fmt.Errorf("fetch document: %w", err)
		s.metrics.RecordChunk(pair.String(), metrics.OutcomeFailed)
		return result
	}

	records, err := s.Expand(doc, pair)
	if err != nil {
		result.Err = fmt.Errorf("expand document: %w", err)
		s.metrics.RecordChunk(pair.String(), metrics.OutcomeFailed)
		return result
	}
	result.Records = len(records)

	if len(records) == 0 {
		logger.Info().Time("start", window.Start).Time("end", window.End).Msg("document contained no prices")
		s.metrics.RecordChunk(pair.String(), metrics.OutcomeOK)
		return result
	}

	result.Backends = s.fanOut(ctx, logger, passID, pair, window, records)

	outcome := metrics.OutcomeOK
	if result.Failed() {
		outcome = metrics.OutcomePartial
	}
	s.metrics.RecordChunk(pair.String(), outcome)

	logger.Info().
		Time("start", window.Start).
		Time("end", window.End).
		Int("records", len(records)).
		Str("outcome", outcome).
		Msg("chunk processed")
	return result
}

// fanOut writes records to every backend concurrently and waits for all of
// them. A failing backend never cancels the others.
func (s *Service) fanOut(ctx context.Context, logger zerolog.Logger, passID string, pair model.DomainPair, window planner.Window, records []model.PriceRecord) []BackendOutcome {
	outcomes := make([]BackendOutcome, len(s.backends))

	var g errgroup.Group
	for i, backend := range s.backends {
		g.Go(func() error {
			summary, err := backend.Upsert(ctx, records)
			outcomes[i] = BackendOutcome{Backend: backend.Name(), Summary: summary, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		s.metrics.RecordBackend(o.Backend, o.Summary.Written, o.Err != nil)
		if o.Err == nil {
			logger.Info().Str("backend", o.Backend).
				Int("written", o.Summary.Written).
				Int("replaced", o.Summary.Replaced).
				Msg("backend upsert complete")
			continue
		}
		logger.Error().Err(o.Err).Str("backend", o.Backend).
			Int("written", o.Summary.Written).
			Int("failed", len(o.Summary.Failed)).
			Msg("backend upsert failed")
		s.notify(ctx, logger, alerting.Notification{
			At:          s.now(),
			PassID:      passID,
			Pair:        pair.String(),
			Backend:     o.Backend,
			WindowStart: window.Start,
			WindowEnd:   window.End,
			FailedCount: len(o.Summary.Failed),
			Error:       o.Err.Error(),
		})
	}
	return outcomes
}

// Expand turns every period of doc into enriched price records.
func (s *Service) Expand(doc *fetcher.Document, pair model.DomainPair) ([]model.PriceRecord, error) {
	if doc == nil {
		return nil, nil
	}

	var records []model.PriceRecord
	for _, ts := range doc.TimeSeries {
		for _, period := range ts.Periods {
			sp, err := period.Series()
			if err != nil {
				return nil, &fetcher.ParseError{Err: err}
			}
			samples, err := series.Expand(sp)
			if err != nil {
				return nil, &fetcher.ParseError{Err: err}
			}
			for sample := range samples {
				at := sample.Time.UTC().Truncate(time.Minute)
				records = append(records, model.PriceRecord{
					Time:             at,
					Domains:          pair,
					DocumentType:     s.documentType,
					Currency:         ts.Currency,
					PriceMeasureUnit: ts.PriceMeasureUnit,
					CurveType:        ts.CurveType,
					Price:            sample.Price,
					TaxPercentage:    s.taxRate(at),
				})
			}
		}
	}
	return records, nil
}

func (s *Service) taxRate(at time.Time) float64 {
	if s.schedule == nil {
		return tax.DefaultRate
	}
	return s.schedule.Resolve(at)
}

// watermarks queries every backend fresh; nothing is cached between passes.
func (s *Service) watermarks(ctx context.Context, pair model.DomainPair) []planner.Watermark {
	marks := make([]planner.Watermark, 0, len(s.backends))
	for _, backend := range s.backends {
		at, ok := backend.LatestTime(ctx, pair)
		marks = append(marks, planner.Watermark{Backend: backend.Name(), At: at, Known: ok})
		if ok {
			s.metrics.SetWatermark(backend.Name(), pair.String(), at)
		}
	}
	return marks
}

func (s *Service) notify(ctx context.Context, logger zerolog.Logger, note alerting.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		logger.Error().Err(err).Str("backend", note.Backend).Msg("failed to dispatch alert")
	}
}

// lockPair takes the in-process pair lock and, when configured, the
// cross-process advisory lock. Both are non-blocking.
func (s *Service) lockPair(ctx context.Context, pair model.DomainPair) (func(), error) {
	releaseLocal, ok := s.pairs.tryLock(pair.String())
	if !ok {
		return nil, ErrBusy
	}

	if s.lockKey == 0 || s.locker == nil {
		return releaseLocal, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, advisoryKey(s.lockKey, pair))
	if err != nil {
		releaseLocal()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		releaseLocal()
		return nil, ErrBusy
	}
	return func() {
		unlock()
		releaseLocal()
	}, nil
}

// onHour reports whether t can be expressed in the platform's hourly
// TimeInterval without losing minutes.
func onHour(t time.Time) bool {
	return t.Equal(t.Truncate(time.Hour))
}

func advisoryKey(base int64, pair model.DomainPair) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(pair.String()))
	return base ^ int64(h.Sum64())
}
