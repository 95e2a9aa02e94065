// Package scheduler runs periodic maintenance jobs on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mrlokans/booktracker/internal/config"
	"github.com/mrlokans/booktracker/internal/entities"
)

// ErrSweepInProgress is returned by RunNow while another sweep runs.
var ErrSweepInProgress = errors.New("sweep already in progress")

const sweepTimeout = 5 * time.Minute

// Five-field expressions plus descriptors such as @daily or @every 1h.
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type PendingLister interface {
	ListUserBooksBySyncStatus(ctx context.Context, status entities.SyncStatus, olderThan time.Time) ([]entities.UserBook, error)
}

type Redispatcher interface {
	Redispatch(ctx context.Context, userBookID string) error
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Found      int
	Dispatched int
	Failed     int
}

// PendingSweeper re-dispatches entries stuck in pending, e.g. after a
// restart lost their in-flight fetch.
type PendingSweeper struct {
	store        PendingLister
	redispatcher Redispatcher
	schedule     string
	staleAfter   time.Duration
	log          *zap.Logger
	now          func() time.Time

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	isSweeping bool
}

func NewPendingSweeper(store PendingLister, redispatcher Redispatcher, cfg config.Sweeper, log *zap.Logger) *PendingSweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &PendingSweeper{
		store:        store,
		redispatcher: redispatcher,
		schedule:     cfg.Schedule,
		staleAfter:   cfg.StaleAfter,
		log:          log.Named("sweeper"),
		now:          time.Now,
		cron:         cron.New(cron.WithParser(scheduleParser)),
	}
}

// ValidateSchedule checks a five-field cron expression or descriptor.
func ValidateSchedule(schedule string) error {
	_, err := scheduleParser.Parse(schedule)
	return err
}

// Start schedules the sweep. It stops when ctx is cancelled.
func (s *PendingSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	entryID, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.RunNow(context.Background()); err != nil && !errors.Is(err, ErrSweepInProgress) {
			s.log.Error("scheduled sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.schedule, err)
	}
	s.entryID = entryID

	s.cron.Start()
	s.isRunning = true

	s.log.Info("pending sweeper started",
		zap.String("schedule", s.schedule),
		zap.Duration("stale_after", s.staleAfter),
		zap.Time("next_run", s.cron.Entry(entryID).Next))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop waits for a running sweep to finish. The lock is released before
// waiting because the sweep takes it on its way out.
func (s *PendingSweeper) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	entryID := s.entryID
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.cron.Remove(entryID)

	s.log.Info("pending sweeper stopped")
}

func (s *PendingSweeper) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRunTime returns when the next sweep will occur, or nil when stopped.
func (s *PendingSweeper) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	t := s.cron.Entry(s.entryID).Next
	return &t
}

// RunNow sweeps synchronously. Entries added within staleAfter are left
// alone since their first fetch may still be running.
func (s *PendingSweeper) RunNow(ctx context.Context) (SweepResult, error) {
	s.mu.Lock()
	if s.isSweeping {
		s.mu.Unlock()
		return SweepResult{}, ErrSweepInProgress
	}
	s.isSweeping = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isSweeping = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	var result SweepResult
	stale, err := s.store.ListUserBooksBySyncStatus(ctx, entities.SyncStatusPending, s.now().Add(-s.staleAfter))
	if err != nil {
		return result, fmt.Errorf("list pending entries: %w", err)
	}
	result.Found = len(stale)

	for _, ub := range stale {
		if ctx.Err() != nil {
			break
		}
		if err := s.redispatcher.Redispatch(ctx, ub.ID); err != nil {
			result.Failed++
			s.log.Warn("redispatch failed", zap.String("user_book_id", ub.ID), zap.Error(err))
			continue
		}
		result.Dispatched++
	}

	if result.Found > 0 {
		s.log.Info("pending sweep finished",
			zap.Int("found", result.Found),
			zap.Int("dispatched", result.Dispatched),
			zap.Int("failed", result.Failed))
	}
	return result, ctx.Err()
}
