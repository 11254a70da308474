package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/git-line-diffs/internal/diffstat"
	"github.com/naka-gawa/git-line-diffs/internal/domain"
	"github.com/naka-gawa/git-line-diffs/internal/gateway"
	"github.com/naka-gawa/git-line-diffs/internal/metrics"
)

// DefaultDiffConcurrency bounds the number of diffs retrieved in parallel.
const DefaultDiffConcurrency = 8

var (
	// ErrDiffRetrieval marks a pending change whose diff could not be obtained.
	ErrDiffRetrieval = errors.New("diff retrieval failed")
	// ErrEnumeration marks a repository whose changes or log could not be listed.
	ErrEnumeration = errors.New("repository enumeration failed")
)

// CoordinatorOptions tunes a Coordinator.
type CoordinatorOptions struct {
	DiffConcurrency int
	Metrics         *metrics.Collector
}

// Coordinator drives refresh passes over a ChangeAggregator. Passes never
// overlap: requests arriving during a pass are queued, and every request
// queued behind the same pass is served by a single follow-up pass.
type Coordinator struct {
	source          gateway.Source
	aggregator      *ChangeAggregator
	logger          *zap.Logger
	metrics         *metrics.Collector
	diffConcurrency int

	// slot is a one-element semaphore held for the duration of a pass.
	slot     chan struct{}
	inFlight atomic.Bool

	mu        sync.Mutex
	requested uint64
	completed uint64
	current   domain.AggregateSnapshot
}

// NewCoordinator creates a Coordinator that owns aggregator.
func NewCoordinator(source gateway.Source, aggregator *ChangeAggregator, logger *zap.Logger, opts CoordinatorOptions) *Coordinator {
	concurrency := opts.DiffConcurrency
	if concurrency <= 0 {
		concurrency = DefaultDiffConcurrency
	}
	return &Coordinator{
		source:          source,
		aggregator:      aggregator,
		logger:          logger,
		metrics:         opts.Metrics,
		diffConcurrency: concurrency,
		slot:            make(chan struct{}, 1),
		current:         domain.EmptySnapshot(),
	}
}

// Current returns the last completed snapshot, or an empty one before the first pass.
func (c *Coordinator) Current() domain.AggregateSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// InFlight reports whether a pass is running.
func (c *Coordinator) InFlight() bool {
	return c.inFlight.Load()
}

// Refresh rebuilds the aggregate and returns the new snapshot. Per-file and
// per-repository failures only reduce the data. An error is returned when the
// source is unavailable (gateway.ErrSourceUnavailable) or ctx ends; in both
// cases the previous snapshot is returned and stays current.
func (c *Coordinator) Refresh(ctx context.Context, reason string) (domain.AggregateSnapshot, error) {
	c.mu.Lock()
	c.requested++
	ticket := c.requested
	c.mu.Unlock()

	select {
	case c.slot <- struct{}{}:
	case <-ctx.Done():
		c.metrics.ObservePass(metrics.OutcomeCancelled, 0)
		return c.Current(), ctx.Err()
	}
	defer func() { <-c.slot }()

	c.mu.Lock()
	if c.completed >= ticket {
		// A pass that started after this request already covered it.
		snapshot := c.current
		c.mu.Unlock()
		c.metrics.ObservePass(metrics.OutcomeCoalesced, 0)
		return snapshot, nil
	}
	covers := c.requested
	c.mu.Unlock()

	c.inFlight.Store(true)
	defer c.inFlight.Store(false)

	start := time.Now()
	snapshot, err := c.run(ctx, reason)
	if err != nil {
		outcome := metrics.OutcomeUnavailable
		if ctx.Err() != nil {
			outcome = metrics.OutcomeCancelled
		}
		c.metrics.ObservePass(outcome, time.Since(start))
		return c.Current(), err
	}

	c.mu.Lock()
	c.current = snapshot
	c.completed = covers
	c.mu.Unlock()

	c.metrics.ObservePass(metrics.OutcomeOK, time.Since(start))
	c.metrics.ObserveSnapshot(snapshot)
	return snapshot, nil
}

func (c *Coordinator) run(ctx context.Context, reason string) (domain.AggregateSnapshot, error) {
	passID := uuid.NewString()
	logger := c.logger.With(zap.String("pass", passID), zap.String("reason", reason))
	logger.Debug("refresh pass started")

	c.aggregator.Reset()

	repos, err := c.source.ListRepositories(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return domain.AggregateSnapshot{}, ctx.Err()
		}
		if !errors.Is(err, gateway.ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %w", gateway.ErrSourceUnavailable, err)
		}
		logger.Info("version control source not available", zap.Error(err))
		return domain.AggregateSnapshot{}, err
	}

	for _, repo := range repos {
		if err := ctx.Err(); err != nil {
			return domain.AggregateSnapshot{}, err
		}
		c.aggregateRepository(ctx, logger, repo)
	}
	if err := ctx.Err(); err != nil {
		return domain.AggregateSnapshot{}, err
	}

	snapshot := c.aggregator.Snapshot()
	snapshot.PassID = passID
	snapshot.Reason = reason
	snapshot.RefreshedAt = time.Now()

	logger.Debug("refresh pass completed",
		zap.Int("repositories", len(repos)),
		zap.Int("files", len(snapshot.Files)),
		zap.Int("skippedDiffs", snapshot.SkippedDiffs),
		zap.Int("skippedRepositories", snapshot.SkippedRepositories),
	)
	return snapshot, nil
}

func (c *Coordinator) aggregateRepository(ctx context.Context, logger *zap.Logger, repo gateway.Repository) {
	logger = logger.With(zap.String("repository", repo.Root()))

	pending, err := repo.PendingChanges(ctx)
	if err != nil {
		c.skipRepository(ctx, logger, fmt.Errorf("%w: pending changes: %w", ErrEnumeration, err))
		return
	}
	logs, err := repo.CommitLog(ctx, c.aggregator.CommitLimit(), true)
	if err != nil {
		c.skipRepository(ctx, logger, fmt.Errorf("%w: commit log: %w", ErrEnumeration, err))
		return
	}
	if ctx.Err() != nil {
		return
	}

	c.aggregator.RecordPendingChanges(len(pending))
	for _, entry := range logs {
		c.aggregator.RecordCommit(entry.Summary())
	}

	// Every change is attributed to the author of the newest commit; the
	// working tree carries no per-change authorship without blame.
	author := domain.UnknownAuthor
	if len(logs) > 0 && logs[0].AuthorName != "" {
		author = logs[0].AuthorName
	}

	stats := make([]*diffstat.Stat, len(pending))
	var eg errgroup.Group
	eg.SetLimit(c.diffConcurrency)
	for i, change := range pending {
		eg.Go(func() error {
			text, err := repo.DiffAgainstHead(ctx, change.Path)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("skipping pending change",
						zap.String("path", change.Path),
						zap.String("status", change.Status),
						zap.Error(fmt.Errorf("%w: %w", ErrDiffRetrieval, err)),
					)
				}
				return nil
			}
			st := diffstat.Parse(text)
			stats[i] = &st
			return nil
		})
	}
	_ = eg.Wait()

	// Recorded in enumeration order so the output does not depend on
	// which diff finished first.
	for i, change := range pending {
		st := stats[i]
		if st == nil {
			c.aggregator.RecordSkippedDiff()
			continue
		}
		c.aggregator.RecordFileChange(repo.RelativePath(change.Path), st.Added, st.Removed)
		c.aggregator.RecordAuthorChange(author, st.Added, st.Removed)
	}
}

func (c *Coordinator) skipRepository(ctx context.Context, logger *zap.Logger, err error) {
	c.aggregator.RecordSkippedRepository()
	if ctx.Err() == nil {
		logger.Warn("skipping repository", zap.Error(err))
	}
}
