package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"labelscraper/pkg/config"
	"labelscraper/pkg/discogs"
	errs "labelscraper/pkg/errors"
	"labelscraper/pkg/extract"
	"labelscraper/pkg/logger"
	"labelscraper/pkg/metrics"
	"labelscraper/pkg/models"
	"labelscraper/pkg/ratelimit"
	"labelscraper/pkg/retry"
	"labelscraper/pkg/store"
)

// Stats summarises a scan
type Stats struct {
	Processed      int `json:"processed"`
	Written        int `json:"written"`
	Skipped        int `json:"skipped"`
	FetchFailures  int `json:"fetch_failures"`
	AppendFailures int `json:"append_failures"`
}

// Scraper walks the Discogs label identifier space and appends contact records to the store
type Scraper struct {
	client LabelAPI
	store  RecordStore
	pacer  *ratelimit.Pacer
	config *config.Config
	logger logger.Logger
	runID  uuid.UUID

	sleep retry.SleepFunc
	now   func() time.Time

	mu    sync.Mutex
	stats Stats
}

// Option configures a Scraper
type Option func(*Scraper)

// WithSleep replaces the blocking sleep used for rate limit waits and pacing
func WithSleep(sleep retry.SleepFunc) Option {
	return func(s *Scraper) {
		s.sleep = sleep
	}
}

// WithClock replaces the time source used for pacing
func WithClock(now func() time.Time) Option {
	return func(s *Scraper) {
		s.now = now
	}
}

// New creates a scraper from its collaborators
func New(cfg *config.Config, client LabelAPI, recordStore RecordStore, log logger.Logger, opts ...Option) *Scraper {
	if log == nil {
		log = logger.GetLogger()
	}

	runID := uuid.New()
	s := &Scraper{
		client: client,
		store:  recordStore,
		config: cfg,
		logger: log.WithField("run_id", runID.String()),
		runID:  runID,
		sleep:  retry.Wait,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.pacer = ratelimit.NewPacer(cfg.Scan.Delay,
		ratelimit.WithClock(s.now),
		ratelimit.WithSleep(s.sleep),
	)

	return s
}

// NewFromConfig wires the Discogs client and the store file described by cfg
func NewFromConfig(cfg *config.Config, log logger.Logger, opts ...Option) *Scraper {
	if log == nil {
		log = logger.GetLogger()
	}

	mode := store.ModeInPlace
	if cfg.Output.Atomic {
		mode = store.ModeAtomic
	}

	client := discogs.NewClient(&cfg.Discogs, log)
	recordStore := store.New(cfg.Output.File, mode, log)

	return New(cfg, client, recordStore, log, opts...)
}

// Stats returns a snapshot of the counters
func (s *Scraper) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Scraper) update(fn func(*Stats)) {
	s.mu.Lock()
	fn(&s.stats)
	s.mu.Unlock()
}

// FetchLabel retrieves one label, waiting out HTTP 429 responses for as long as
// it takes. Any other failure is logged and reported as a nil label.
func (s *Scraper) FetchLabel(ctx context.Context, id int) *models.Label {
	cfg := retry.RateLimitConfig(ctx, s.config.RateLimit.Wait, s.logger)
	cfg.Sleep = s.sleep
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		metrics.RateLimitWait()
		logger.LogRateLimit(s.logger.WithField("label_id", id), discogs.LabelEndpoint, delay)
	}

	label, err := retry.DoWithResult(func() (*models.Label, error) {
		return s.client.GetLabel(ctx, id)
	}, cfg)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.WithError(err).WithFields(map[string]interface{}{
				"label_id":   id,
				"operation":  "fetch_label",
				"error_type": string(errs.TypeOf(err)),
			}).Error(fmt.Sprintf("Error fetching label %d", id))
		}
		return nil
	}

	return label
}

// RunID identifies this scraper in log output
func (s *Scraper) RunID() uuid.UUID {
	return s.runID
}

// Run scans identifiers from the resume point up to the remote label count.
// It returns nil once the range is exhausted and ctx.Err() if cancelled.
func (s *Scraper) Run(ctx context.Context) error {
	total, err := s.client.CountLabels(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Error fetching total label count")
		return fmt.Errorf("failed to discover label count: %w", err)
	}
	metrics.SetTotal(total)

	cursor := s.store.Cursor()
	start := cursor + 1
	if s.config.Scan.StartOffset > start {
		start = s.config.Scan.StartOffset
	}

	step := s.config.Scan.Step
	if step <= 0 {
		step = 1
	}

	logger.LogComponentStart(s.logger, "scan", map[string]interface{}{
		"total":  total,
		"cursor": cursor,
		"start":  start,
		"step":   step,
		"delay":  s.config.Scan.Delay,
	})

	for id := start; id <= total; id += step {
		if err := ctx.Err(); err != nil {
			return s.stop(err)
		}

		began := s.pacer.Start()
		s.processLabel(ctx, id)

		if err := ctx.Err(); err != nil {
			return s.stop(err)
		}

		if err := s.pacer.Pace(ctx, began); err != nil {
			return s.stop(err)
		}

		logger.LogScanProgress(s.logger, id, total)
	}

	stats := s.Stats()
	s.logger.InfoWithFields("Label scan complete", map[string]interface{}{
		"processed":       stats.Processed,
		"written":         stats.Written,
		"skipped":         stats.Skipped,
		"fetch_failures":  stats.FetchFailures,
		"append_failures": stats.AppendFailures,
	})
	logger.LogComponentStop(s.logger, "scan", "completed")

	return nil
}

// processLabel fetches, filters and persists a single identifier
func (s *Scraper) processLabel(ctx context.Context, id int) {
	defer func() {
		metrics.LabelProcessed(id)
		s.update(func(st *Stats) { st.Processed++ })
	}()

	label := s.FetchLabel(ctx, id)
	if label == nil {
		if ctx.Err() == nil {
			metrics.FetchFailed()
			s.update(func(st *Stats) { st.FetchFailures++ })
		}
		return
	}

	if label.ID == 0 {
		label.ID = id
	}

	record, ok := extract.BuildRecord(*label)
	if !ok {
		s.logger.DebugWithFields("Skipping label without email or URLs", map[string]interface{}{
			"label_id": id,
		})
		metrics.LabelSkipped()
		s.update(func(st *Stats) { st.Skipped++ })
		return
	}

	if err := s.store.Append(record); err != nil {
		s.logger.WithError(err).WithField("label_id", id).Error("Error appending result to file")
		metrics.AppendFailed()
		s.update(func(st *Stats) { st.AppendFailures++ })
		return
	}

	metrics.RecordWritten()
	s.update(func(st *Stats) { st.Written++ })
}

func (s *Scraper) stop(err error) error {
	reason := err.Error()
	if errors.Is(err, context.Canceled) {
		reason = "interrupted"
	}
	logger.LogComponentStop(s.logger, "scan", reason)
	return err
}
