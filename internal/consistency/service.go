// Package consistency orchestrates conflict checks over the whole account base.
package consistency

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gatehouse-fm/gatehouse/internal/audit"
	"github.com/gatehouse-fm/gatehouse/internal/rolegraph"
)

// GraphSource yields the current implication graph.
type GraphSource interface {
	Snapshot(ctx context.Context) (*rolegraph.Graph, error)
}

// AccountSource yields assignments and applies removals.
type AccountSource interface {
	Assignment(ctx context.Context, id int64) (rolegraph.Assignment, error)
	ListAssignments(ctx context.Context) ([]rolegraph.Assignment, error)
	RemoveRoles(ctx context.Context, accountID int64, roleKeys []string) error
}

// AuditStore persists runs and resolutions.
type AuditStore interface {
	RecordRun(ctx context.Context, run audit.Run, conflicts []audit.ConflictRecord) error
	RecordResolution(ctx context.Context, res audit.Resolution) error
}

// SweepObserver receives sweep outcome metrics.
type SweepObserver interface {
	ObserveSweep(accountsChecked, conflictsFound int, elapsed time.Duration)
}

// Options tune a Service.
type Options struct {
	// Priority ranks partitions highest first; removals keep the first
	// conflicting partition found in this order.
	Priority []string
	// MaxDepth caps implication traversal. Zero disables the cap.
	MaxDepth int
	// Concurrency bounds the sweep fan-out. Inputs are immutable per check,
	// so accounts can be checked in parallel safely.
	Concurrency int
}

// Service runs consistency checks and applies fixes.
type Service struct {
	graphs      GraphSource
	accounts    AccountSource
	audit       AuditStore
	observer    SweepObserver
	logger      *slog.Logger
	priority    []string
	maxDepth    int
	concurrency int
}

// NewService builds a Service. audit and observer may be nil in offline tools.
func NewService(graphs GraphSource, accounts AccountSource, auditStore AuditStore, observer SweepObserver, logger *slog.Logger, opts Options) *Service {
	priority := opts.Priority
	if len(priority) == 0 {
		priority = []string{"internal", "portal"}
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Service{
		graphs:      graphs,
		accounts:    accounts,
		audit:       auditStore,
		observer:    observer,
		logger:      logger,
		priority:    priority,
		maxDepth:    opts.MaxDepth,
		concurrency: concurrency,
	}
}

// Result is the outcome of a single-account check.
type Result struct {
	AccountID string              `json:"account_id"`
	Conflict  *rolegraph.Conflict `json:"conflict,omitempty"`
	Suggested []string            `json:"suggested,omitempty"`
}

// Summary is the outcome of a full sweep.
type Summary struct {
	RunID           string   `json:"run_id"`
	AccountsChecked int      `json:"accounts_checked"`
	ConflictsFound  int      `json:"conflicts_found"`
	Results         []Result `json:"conflicts"`
}

// CheckAccount runs the conflict check for one account.
func (s *Service) CheckAccount(ctx context.Context, accountID int64) (Result, error) {
	graph, err := s.snapshot(ctx)
	if err != nil {
		return Result{}, err
	}
	assignment, err := s.accounts.Assignment(ctx, accountID)
	if err != nil {
		return Result{}, err
	}
	return s.check(graph, assignment)
}

// Sweep checks every active account, persists the run and returns a summary.
// A malformed assignment (unknown role key) fails the sweep rather than being
// skipped; partial results are never reported as complete.
func (s *Service) Sweep(ctx context.Context) (Summary, error) {
	started := time.Now().UTC()
	graph, err := s.snapshot(ctx)
	if err != nil {
		return Summary{}, err
	}
	assignments, err := s.accounts.ListAssignments(ctx)
	if err != nil {
		return Summary{}, err
	}

	var mu sync.Mutex
	var results []Result
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, assignment := range assignments {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := s.check(graph, assignment)
			if err != nil {
				return err
			}
			if res.Conflict != nil {
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	sort.Slice(results, func(i, j int) bool { return results[i].AccountID < results[j].AccountID })

	summary := Summary{
		RunID:           uuid.NewString(),
		AccountsChecked: len(assignments),
		ConflictsFound:  len(results),
		Results:         results,
	}
	if s.audit != nil {
		records := make([]audit.ConflictRecord, len(results))
		for i, res := range results {
			records[i] = audit.ConflictRecord{
				RunID:      summary.RunID,
				AccountID:  res.AccountID,
				Partitions: res.Conflict.Partitions,
				Witnesses:  res.Conflict.Witnesses,
				Suggested:  res.Suggested,
			}
		}
		run := audit.Run{
			ID:              summary.RunID,
			StartedAt:       started,
			FinishedAt:      time.Now().UTC(),
			AccountsChecked: summary.AccountsChecked,
			ConflictsFound:  summary.ConflictsFound,
		}
		if err := s.audit.RecordRun(ctx, run, records); err != nil {
			return Summary{}, err
		}
	}
	if s.observer != nil {
		s.observer.ObserveSweep(summary.AccountsChecked, summary.ConflictsFound, time.Since(started))
	}
	if s.logger != nil {
		s.logger.Info("consistency sweep finished",
			slog.String("run_id", summary.RunID),
			slog.Int("accounts", summary.AccountsChecked),
			slog.Int("conflicts", summary.ConflictsFound))
	}
	return summary, nil
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Result
	Applied bool `json:"applied"`
}

// Resolve computes the corrective removal set for one account and, when apply
// is set, strips those roles transactionally and audits the change.
func (s *Service) Resolve(ctx context.Context, accountID int64, apply bool, actor string) (Resolution, error) {
	res, err := s.CheckAccount(ctx, accountID)
	if err != nil {
		return Resolution{}, err
	}
	out := Resolution{Result: res}
	if res.Conflict == nil || len(res.Suggested) == 0 || !apply {
		return out, nil
	}

	if err := s.accounts.RemoveRoles(ctx, accountID, res.Suggested); err != nil {
		return Resolution{}, err
	}
	out.Applied = true
	if s.audit != nil {
		if err := s.audit.RecordResolution(ctx, audit.Resolution{
			AccountID:    res.AccountID,
			RemovedRoles: res.Suggested,
			AppliedBy:    actor,
			AppliedAt:    time.Now().UTC(),
		}); err != nil {
			return Resolution{}, err
		}
	}
	if s.logger != nil {
		s.logger.Info("conflict resolved",
			slog.String("account", res.AccountID),
			slog.Any("removed", res.Suggested),
			slog.String("actor", actor))
	}
	return out, nil
}

func (s *Service) check(graph *rolegraph.Graph, assignment rolegraph.Assignment) (Result, error) {
	conflict, err := graph.CheckUser(assignment)
	if err != nil {
		return Result{}, err
	}
	res := Result{AccountID: assignment.UserID, Conflict: conflict}
	if conflict == nil {
		return res, nil
	}
	suggested, err := graph.SuggestRemoval(conflict, assignment, s.priority)
	if err != nil {
		return Result{}, err
	}
	res.Suggested = suggested
	return res, nil
}

func (s *Service) snapshot(ctx context.Context) (*rolegraph.Graph, error) {
	graph, err := s.graphs.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if s.maxDepth > 0 {
		graph = graph.WithMaxDepth(s.maxDepth)
	}
	return graph, nil
}
