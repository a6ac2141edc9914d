package scheduler

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/access-gate-service/internal/clock"
	"github.com/spec-kit/access-gate-service/internal/config"
	"github.com/spec-kit/access-gate-service/internal/observability"
	"github.com/spec-kit/access-gate-service/internal/service"
)

// Job names, also used as lease keys.
const (
	JobMembershipExpiry = "membership_expiry"
	JobQueueReady       = "queue_ready"
	JobRetentionCleanup = "retention_cleanup"
)

// jobTimeout bounds a single sweep batch. A sweep that exceeds it is
// cancelled and resumes on the next tick.
const jobTimeout = 5 * time.Minute

// Scheduler drives the three periodic jobs: membership-expiry sweep,
// queue-ready sweep and the daily retention cleanup. Each job excludes
// itself (a tick that fires while the previous run is still going is
// skipped, never queued) and fails in isolation: a panic or error in one
// sweep never stops the scheduler or the other jobs.
type Scheduler struct {
	provider    config.GateProvider
	memberships *service.MembershipService
	admissions  *service.AdmissionService
	tokens      *service.TokenService
	locker      Locker
	metrics     *observability.Metrics
	clock       clock.Clock
	logger      *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Dependencies encapsulates scheduler requirements. Locker is optional;
// without it jobs exclude themselves only within this process.
type Dependencies struct {
	Provider    config.GateProvider
	Memberships *service.MembershipService
	Admissions  *service.AdmissionService
	Tokens      *service.TokenService
	Locker      Locker
	Metrics     *observability.Metrics
	Clock       clock.Clock
	Logger      *zap.Logger
}

// New builds the scheduler.
func New(deps Dependencies) *Scheduler {
	return &Scheduler{
		provider:    deps.Provider,
		memberships: deps.Memberships,
		admissions:  deps.Admissions,
		tokens:      deps.Tokens,
		locker:      deps.Locker,
		metrics:     deps.Metrics,
		clock:       deps.Clock,
		logger:      deps.Logger,
	}
}

// Start registers the three jobs. Calling Start on a running scheduler
// is a warned no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.logger.Warn("scheduler already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	s.wg.Add(3)
	go s.runPeriodic(ctx, JobMembershipExpiry,
		func(g config.GateSettings) time.Duration { return g.MembershipSweepInterval },
		s.sweepMemberships)
	go s.runPeriodic(ctx, JobQueueReady,
		func(g config.GateSettings) time.Duration { return g.QueueSweepInterval },
		s.sweepQueue)
	go s.runDaily(ctx, JobRetentionCleanup, s.cleanupRetention)

	s.logger.Info("scheduler started")
}

// Stop cancels all jobs and waits for in-flight sweeps to drain their
// current batch. Calling Stop on a stopped scheduler is a warned no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.logger.Warn("scheduler not running")
		return
	}
	cancel := s.cancel
	s.running = false
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runPeriodic(ctx context.Context, name string, interval func(config.GateSettings) time.Duration, fn func(context.Context) error) {
	defer s.wg.Done()
	for {
		// interval re-read each cycle so operator changes apply without restart
		timer := time.NewTimer(interval(s.provider.Gate()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.runJob(ctx, name, fn)
	}
}

func (s *Scheduler) runDaily(ctx context.Context, name string, fn func(context.Context) error) {
	defer s.wg.Done()
	for {
		gate := s.provider.Gate()
		now := s.clock.Now()
		next := NextDailyUTC(now, gate.CleanupHourUTC, gate.CleanupMinuteUTC)
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.runJob(ctx, name, fn)
	}
}

// runJob executes one sweep under the per-job lease, with panic
// isolation. The sweep context is detached from scheduler cancellation
// so Stop drains the current batch instead of interrupting it mid-item.
func (s *Scheduler) runJob(ctx context.Context, name string, fn func(context.Context) error) {
	s.wg.Add(1)
	defer s.wg.Done()

	if s.locker != nil {
		release, acquired, err := s.locker.Acquire(ctx, name, jobTimeout)
		if err != nil {
			s.logger.Warn("job lease unavailable", zap.String("job", name), zap.Error(err))
			return
		}
		if !acquired {
			s.logger.Debug("job lease held elsewhere; skipping tick", zap.String("job", name))
			return
		}
		defer release()
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("sweep panic recovered",
				zap.String("job", name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()

	jobCtx, cancelJob := context.WithTimeout(context.WithoutCancel(ctx), jobTimeout)
	defer cancelJob()

	if err := fn(jobCtx); err != nil {
		s.logger.Error("sweep failed", zap.String("job", name), zap.Error(err))
	}
}

func (s *Scheduler) sweepMemberships(ctx context.Context) error {
	report, err := s.memberships.SweepExpired(ctx)
	if report != nil {
		s.metrics.RecordSweep(*report)
	}
	return err
}

func (s *Scheduler) sweepQueue(ctx context.Context) error {
	report, err := s.admissions.SweepReady(ctx)
	if report != nil {
		s.metrics.RecordSweep(*report)
	}
	return err
}

func (s *Scheduler) cleanupRetention(ctx context.Context) error {
	if _, err := s.admissions.CleanupOld(ctx); err != nil {
		return err
	}
	cutoff := s.clock.Now().Add(-s.provider.Gate().RetentionWindow)
	_, err := s.tokens.ArchiveExpired(ctx, cutoff)
	return err
}

// NextDailyUTC returns the next occurrence of hour:minute UTC strictly
// after now.
func NextDailyUTC(now time.Time, hour, minute int) time.Time {
	utc := now.UTC()
	next := time.Date(utc.Year(), utc.Month(), utc.Day(), hour, minute, 0, 0, time.UTC)
	if !next.After(utc) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
