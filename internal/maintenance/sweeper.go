// Package maintenance archives drafts that were abandoned mid-edit.
//
// A draft whose session died without submitting or cancelling stays
// unfinished forever. The sweeper archives unfinished drafts that have not
// been written for longer than a configured age and removes any session
// locks still naming them.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/Iron-Ham/quickcheck/internal/draft"
	"github.com/Iron-Ham/quickcheck/internal/errors"
	"github.com/Iron-Ham/quickcheck/internal/event"
	"github.com/Iron-Ham/quickcheck/internal/logging"
)

// Defaults applied by New for zero option values.
const (
	DefaultStaleAfter  = 72 * time.Hour
	DefaultConcurrency = 4
	DefaultBatchSize   = 500
)

// Store lists stale drafts and archives them. *store.Store implements it.
type Store interface {
	ListStale(ctx context.Context, before time.Time, limit int) ([]draft.Record, error)
	Archive(ctx context.Context, id string, payload []byte) error
}

// LockPruner removes session locks naming the given drafts.
// *session.FileLockStore implements it.
type LockPruner interface {
	Prune(ctx context.Context, draftIDs ...string) ([]string, error)
}

// Options configures a Sweeper.
type Options struct {
	StaleAfter  time.Duration
	Concurrency int
	// BatchSize caps the drafts archived in one pass.
	BatchSize int
	// DryRun lists candidates without archiving them.
	DryRun bool
	Logger *logging.Logger
	Bus    *event.Bus
	Now    func() time.Time
}

// Failure records a draft the sweeper could not archive.
type Failure struct {
	DraftID string
	Err     error
}

// Result summarizes one sweep.
type Result struct {
	Cutoff     time.Time
	Candidates []draft.Record
	Archived   []string
	// Skipped drafts were finished by someone else mid-sweep.
	Skipped     []string
	Failed      []Failure
	PrunedLocks []string
	Duration    time.Duration
}

// Sweeper archives stale unfinished drafts.
type Sweeper struct {
	store  Store
	locks  LockPruner
	opts   Options
	logger *logging.Logger
}

// New creates a sweeper. locks may be nil when no lock directory is shared
// with the store.
func New(store Store, locks LockPruner, opts Options) *Sweeper {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}
	return &Sweeper{
		store:  store,
		locks:  locks,
		opts:   opts,
		logger: opts.Logger.WithComponent("sweeper"),
	}
}

type outcome struct {
	id  string
	err error
}

// Sweep runs a single pass. Per-draft failures are reported in the result;
// the returned error is set only when the pass could not run at all.
func (s *Sweeper) Sweep(ctx context.Context) (*Result, error) {
	start := s.opts.Now()
	res := &Result{Cutoff: start.Add(-s.opts.StaleAfter)}

	candidates, err := s.store.ListStale(ctx, res.Cutoff, s.opts.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("list stale drafts: %w", err)
	}
	res.Candidates = candidates
	if s.opts.DryRun || len(candidates) == 0 {
		res.Duration = s.opts.Now().Sub(start)
		s.logger.Debug("sweep finished", "candidates", len(candidates), "dry_run", s.opts.DryRun)
		return res, nil
	}

	p := pool.NewWithResults[outcome]().WithContext(ctx).WithMaxGoroutines(s.opts.Concurrency)
	for _, rec := range candidates {
		id := rec.ID
		p.Go(func(ctx context.Context) (outcome, error) {
			return outcome{id: id, err: s.store.Archive(ctx, id, nil)}, nil
		})
	}
	outcomes, _ := p.Wait()

	for _, o := range outcomes {
		switch {
		case o.err == nil:
			res.Archived = append(res.Archived, o.id)
		case errors.IsNotFound(o.err):
			res.Skipped = append(res.Skipped, o.id)
		default:
			s.logger.WithDraft(o.id).Warn("archive stale draft failed", "error", o.err)
			res.Failed = append(res.Failed, Failure{DraftID: o.id, Err: o.err})
		}
	}

	if s.locks != nil && len(res.Archived) > 0 {
		pruned, err := s.locks.Prune(ctx, res.Archived...)
		if err != nil {
			s.logger.Warn("prune session locks failed", "error", err)
		}
		res.PrunedLocks = pruned
	}

	res.Duration = s.opts.Now().Sub(start)
	s.logger.Info("sweep finished",
		"archived", len(res.Archived),
		"skipped", len(res.Skipped),
		"failed", len(res.Failed),
		"pruned_locks", len(res.PrunedLocks),
	)
	s.opts.Bus.Publish(event.NewSweepCompletedEvent(len(res.Archived), len(res.Failed), res.Duration))
	return res, nil
}

// Run sweeps every interval until ctx is cancelled. The first pass runs
// immediately.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.NewValidationError("sweep interval must be positive").WithField("maintenance.interval_minutes")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
