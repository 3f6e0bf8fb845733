package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	// maxWait caps a single sleep so a wall-clock adjustment is noticed within a minute.
	maxWait           = time.Minute
	defaultJobTimeout = 30 * time.Second
)

// Handler runs what the scheduler triggers. app.TransitionService implements it.
type Handler interface {
	HandleTransition(ctx context.Context, regionID int64) error
	Reconcile(ctx context.Context) error
}

// TransitionScheduler keeps at most one pending transition per region in a min-heap and drives
// all of them from one timer. Due jobs run concurrently, one goroutine per region. A cron entry
// runs the handler's reconciliation pass.
type TransitionScheduler struct {
	mu       sync.Mutex
	queue    jobQueue
	jobs     map[int64]*job
	inFlight map[int64]struct{}
	wake     chan struct{}

	cronEngine    *cron.Cron
	reconcileSpec string
	jobTimeout    time.Duration
	logger        *logrus.Entry

	handler Handler
	cancel  context.CancelFunc
	done    chan struct{}
	running sync.WaitGroup
}

func NewTransitionScheduler(
	logger *logrus.Entry,
	reconcileSpec string, // e.g. "@every 10m"; empty disables reconciliation
	jobTimeout time.Duration, // upper bound for a single transition or reconciliation run
) *TransitionScheduler {
	if jobTimeout <= 0 {
		jobTimeout = defaultJobTimeout
	}
	return &TransitionScheduler{
		jobs:          make(map[int64]*job),
		inFlight:      make(map[int64]struct{}),
		wake:          make(chan struct{}, 1),
		cronEngine:    cron.New(cron.WithLocation(time.Local)),
		reconcileSpec: reconcileSpec,
		jobTimeout:    jobTimeout,
		logger:        logger,
	}
}

// Start begins firing jobs. Jobs armed before Start are kept and fire once it runs.
func (s *TransitionScheduler) Start(ctx context.Context, handler Handler) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return errors.New("transition scheduler already started")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.handler = handler
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("Starting transition scheduler...")

	if s.reconcileSpec != "" {
		_, err := s.cronEngine.AddFunc(s.reconcileSpec, func() {
			s.logger.Debug("Cron job triggered for transition reconciliation.")
			rctx, rcancel := context.WithTimeout(context.Background(), s.jobTimeout)
			defer rcancel()
			if err := handler.Reconcile(rctx); err != nil {
				s.logger.WithError(err).Error("Transition reconciliation failed")
			}
		})
		if err != nil {
			cancel()
			s.mu.Lock()
			s.done = nil
			s.mu.Unlock()
			return fmt.Errorf("could not add reconciliation cron job: %w", err)
		}
		s.cronEngine.Start()
	}

	go s.loop(loopCtx, s.done)
	s.logger.WithField("pending", s.Pending()).Info("Transition scheduler started.")
	return nil
}

// Stop halts the timer loop and the reconciliation cron, then waits for running jobs.
func (s *TransitionScheduler) Stop() {
	s.mu.Lock()
	if s.done == nil {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	s.logger.Info("Stopping transition scheduler...")
	<-s.cronEngine.Stop().Done()
	cancel()
	<-done
	s.running.Wait()

	s.mu.Lock()
	s.done = nil
	s.cancel = nil
	s.mu.Unlock()
	s.logger.Info("Transition scheduler gracefully stopped.")
}

// Arm schedules regionID to fire at at, replacing any pending job for it.
func (s *TransitionScheduler) Arm(regionID int64, at time.Time) {
	s.mu.Lock()
	if j, ok := s.jobs[regionID]; ok {
		j.at = at
		heap.Fix(&s.queue, j.index)
	} else {
		j := &job{regionID: regionID, at: at}
		heap.Push(&s.queue, j)
		s.jobs[regionID] = j
	}
	s.mu.Unlock()
	s.signal()
}

// Cancel drops the pending job of regionID, if any. A job already running is not interrupted.
func (s *TransitionScheduler) Cancel(regionID int64) {
	s.mu.Lock()
	if j, ok := s.jobs[regionID]; ok {
		heap.Remove(&s.queue, j.index)
		delete(s.jobs, regionID)
	}
	s.mu.Unlock()
	s.signal()
}

// NextFire returns the pending fire instant of regionID.
func (s *TransitionScheduler) NextFire(regionID int64) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[regionID]; ok {
		return j.at, true
	}
	return time.Time{}, false
}

// Scheduled reports whether regionID has a pending or running job.
func (s *TransitionScheduler) Scheduled(regionID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[regionID]; ok {
		return true
	}
	_, ok := s.inFlight[regionID]
	return ok
}

// Pending is the number of armed regions.
func (s *TransitionScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *TransitionScheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *TransitionScheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		due, wait := s.popDue(time.Now())
		for _, regionID := range due {
			s.dispatch(regionID)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.wake:
		case <-timer.C:
		}
		timer.Stop()
	}
}

// popDue removes every job due at now and returns them with the time until the next one.
func (s *TransitionScheduler) popDue(now time.Time) ([]int64, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []int64
	for s.queue.Len() > 0 && !s.queue[0].at.After(now) {
		j := heap.Pop(&s.queue).(*job)
		delete(s.jobs, j.regionID)
		s.inFlight[j.regionID] = struct{}{}
		due = append(due, j.regionID)
	}

	wait := maxWait
	if s.queue.Len() > 0 {
		if d := s.queue[0].at.Sub(now); d < wait {
			wait = d
		}
	}
	return due, wait
}

func (s *TransitionScheduler) dispatch(regionID int64) {
	s.running.Add(1)
	go func() {
		defer s.running.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inFlight, regionID)
			s.mu.Unlock()
		}()

		log := s.logger.WithField("region_id", regionID)
		log.Debug("Transition job fired")

		// In-flight transitions finish on shutdown, bounded by the job timeout.
		ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
		defer cancel()
		if err := s.handler.HandleTransition(ctx, regionID); err != nil {
			log.WithError(err).Error("Transition job failed; region is not re-armed until reconciliation")
		}
	}()
}
