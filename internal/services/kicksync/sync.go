package kicksync

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/KickSync/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type Source interface {
	ListKickboards(ctx context.Context) ([]models.SourceKickboard, error)
}

type Summary struct {
	RunID            string    `json:"runId"`
	StartedAt        time.Time `json:"startedAt"`
	SourceCount      int       `json:"sourceCount"`
	DestinationCount int       `json:"destinationCount"`
	Invalid          int       `json:"invalid"`
	Duplicates       int       `json:"duplicates"`
	Unchanged        int       `json:"unchanged"`
	Created          int       `json:"created"`
	Updated          int       `json:"updated"`
	Failed           int       `json:"failed"`
	NotifyFailed     int       `json:"notifyFailed"`
	Batches          []int     `json:"batches"`
	DurationMs       int64     `json:"durationMs"`
}

type Service struct {
	source   Source
	store    Store
	resolver *Resolver
	notifier Notifier

	actionTimeout time.Duration
	newRunID      func() string

	startedAtUnixNano int64
	lastRunUnixNano   atomic.Int64
	totalRuns         atomic.Int64
	totalErrors       atomic.Int64
	mu                sync.Mutex
	lastError         string
	lastSummary       *Summary
}

func New(source Source, store Store, resolver *Resolver, notifier Notifier) *Service {
	return &Service{
		source:            source,
		store:             store,
		resolver:          resolver,
		notifier:          notifier,
		actionTimeout:     30 * time.Second,
		newRunID:          func() string { return uuid.NewString() },
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

// WithActionTimeout bounds each persist and each notify. Zero disables it.
func (s *Service) WithActionTimeout(d time.Duration) *Service {
	if d >= 0 {
		s.actionTimeout = d
	}
	return s
}

type Stats struct {
	StartedAt   time.Time  `json:"startedAt"`
	LastRunAt   *time.Time `json:"lastRunAt,omitempty"`
	TotalRuns   int64      `json:"totalRuns"`
	TotalErrors int64      `json:"totalErrors"`
	LastError   string     `json:"lastError,omitempty"`
	LastSummary *Summary   `json:"lastSummary,omitempty"`
}

func (s *Service) Stats() Stats {
	st := Stats{
		StartedAt:   time.Unix(0, s.startedAtUnixNano).UTC(),
		TotalRuns:   s.totalRuns.Load(),
		TotalErrors: s.totalErrors.Load(),
	}
	if n := s.lastRunUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastRunAt = &t
	}
	s.mu.Lock()
	st.LastError = s.lastError
	st.LastSummary = s.lastSummary
	s.mu.Unlock()
	return st
}

// Run performs one reconciliation pass. An error means the pass was aborted
// before or during execution; per-kickboard failures are only counted.
func (s *Service) Run(ctx context.Context) (Summary, error) {
	start := time.Now().UTC()
	sum := Summary{RunID: s.newRunID(), StartedAt: start}
	log := slog.With("run_id", sum.RunID)

	s.totalRuns.Add(1)
	s.lastRunUnixNano.Store(start.UnixNano())

	err := s.run(ctx, log, &sum)
	sum.DurationMs = time.Since(start).Milliseconds()

	s.mu.Lock()
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = ""
	}
	cp := sum
	s.lastSummary = &cp
	s.mu.Unlock()

	if err != nil {
		s.totalErrors.Add(1)
		log.Error("kickboard sync failed", "error", err.Error(), "elapsed_ms", sum.DurationMs)
		return sum, err
	}
	log.Info("kickboard sync finished",
		"created", sum.Created,
		"updated", sum.Updated,
		"unchanged", sum.Unchanged,
		"failed", sum.Failed,
		"notify_failed", sum.NotifyFailed,
		"elapsed_ms", sum.DurationMs,
	)
	return sum, nil
}

func (s *Service) run(ctx context.Context, log *slog.Logger, sum *Summary) error {
	var (
		docs    []models.SourceKickboard
		records []*models.Kickboard
		defs    DefaultReferences
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return errors.Wrap(s.store.Init(gctx), "init store")
	})
	g.Go(func() error {
		var err error
		docs, err = s.source.ListKickboards(gctx)
		return errors.Wrap(err, "load source kickboards")
	})
	g.Go(func() error {
		var err error
		records, err = s.store.FindAll(gctx)
		return errors.Wrap(err, "load stored kickboards")
	})
	g.Go(func() error {
		var err error
		defs.FranchiseID, err = s.resolver.ResolveFranchiseID(gctx, log)
		return errors.Wrap(err, "resolve default franchise")
	})
	g.Go(func() error {
		var err error
		defs.RegionID, err = s.resolver.ResolveRegionID(gctx, log)
		return errors.Wrap(err, "resolve default region")
	})
	if err := g.Wait(); err != nil {
		return err
	}

	sum.SourceCount = len(docs)
	sum.DestinationCount = len(records)
	log.Info("kickboards loaded", "source", sum.SourceCount, "destination", sum.DestinationCount)

	norm := Normalize(log, docs)
	sum.Invalid = norm.Invalid
	sum.Duplicates = norm.Duplicates

	plan := Reconcile(norm.Valid, records, defs)
	sum.Unchanged = plan.Unchanged
	log.Info("kickboard plan ready", "actions", len(plan.Actions), "unchanged", plan.Unchanged)

	res, err := NewExecutor(s.store, s.notifier, log).
		WithActionTimeout(s.actionTimeout).
		WithRunID(sum.RunID).
		Execute(ctx, plan.Actions)
	sum.Created = res.Created
	sum.Updated = res.Updated
	sum.Failed = res.Failed
	sum.NotifyFailed = res.NotifyFailed
	sum.Batches = res.Batches
	return errors.Wrap(err, "execute kickboard actions")
}
