package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"question_rotation_bot/internal/domain/cycle"
	"question_rotation_bot/internal/domain/region"
	idb "question_rotation_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
)

const markerClearTimeout = 2 * time.Second

// TransitionArmer owns the pending transition job of each region. Arm replaces whatever was
// pending for the region; Scheduled is true while a job is pending or running.
// Implemented by scheduler.TransitionScheduler.
type TransitionArmer interface {
	Arm(regionID int64, at time.Time)
	Cancel(regionID int64)
	Scheduled(regionID int64) bool
}

// TransitionNotifier is told about every region whose active cycle moved forward.
type TransitionNotifier interface {
	RegionAdvanced(ctx context.Context, r *region.Region, previousCycle int)
}

// TransitionService advances regions at cycle boundaries and keeps their transition jobs armed.
// It is the write side of the marker protocol; QuestionService is the read side.
type TransitionService struct {
	regionRepo region.Repository
	cache      Cache
	calc       cycle.Calculator
	armer      TransitionArmer
	notifier   TransitionNotifier
	markerTTL  time.Duration
	logger     *logrus.Entry
	now        Clock

	// writers of one region (fire vs. admin edit) run one at a time
	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

func NewTransitionService(
	rr region.Repository,
	c Cache,
	calc cycle.Calculator,
	armer TransitionArmer,
	markerTTL time.Duration,
	logger *logrus.Entry,
) *TransitionService {
	return &TransitionService{
		regionRepo: rr,
		cache:      c,
		calc:       calc,
		armer:      armer,
		markerTTL:  markerTTL,
		logger:     logger,
		now:        time.Now,
		locks:      make(map[int64]*sync.Mutex),
	}
}

func (s *TransitionService) lockRegion(regionID int64) func() {
	s.locksMu.Lock()
	l, ok := s.locks[regionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[regionID] = l
	}
	s.locksMu.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *TransitionService) SetNotifier(n TransitionNotifier) { s.notifier = n }

func (s *TransitionService) SetClock(now Clock) { s.now = now }

// HandleTransition is run by the scheduler when a region's job fires: reload, mark, advance,
// evict, re-arm, unmark. A region that no longer exists is dropped silently. Any failure after
// the marker is set leaves the region un-armed and is reported as ErrSchedulingGap.
func (s *TransitionService) HandleTransition(ctx context.Context, regionID int64) error {
	r, previous, err := s.transition(ctx, regionID)
	if err != nil || r == nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"region_id":      regionID,
		"previous_cycle": previous,
		"active_cycle":   r.ActiveCycle,
	}).Info("Region transition complete")

	// The notifier talks to Telegram, so it runs with the region unlocked and unmarked.
	if s.notifier != nil && r.ActiveCycle != previous {
		s.notifier.RegionAdvanced(ctx, r, previous)
	}
	return nil
}

// transition does the locked part of HandleTransition. A nil region means it was deleted.
func (s *TransitionService) transition(ctx context.Context, regionID int64) (*region.Region, int, error) {
	unlock := s.lockRegion(regionID)
	defer unlock()

	r, err := s.regionRepo.GetByID(ctx, regionID)
	if err != nil {
		if errors.Is(err, idb.ErrRegionNotFound) {
			s.logger.WithField("region_id", regionID).Info("Region no longer exists, dropping transition job")
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("%w: reload region %d: %w", ErrSchedulingGap, regionID, err)
	}

	if err := s.setMarker(ctx, regionID); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrSchedulingGap, err)
	}
	defer s.clearMarker(regionID)

	previous := r.ActiveCycle
	if _, err := s.Advance(ctx, r); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrSchedulingGap, err)
	}
	if err := s.cache.Delete(ctx, QuestionKey(regionID)); err != nil {
		return nil, 0, fmt.Errorf("%w: evict cached question of region %d: %w", ErrSchedulingGap, regionID, err)
	}
	if err := s.Reschedule(ctx, r); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrSchedulingGap, err)
	}
	return r, previous, nil
}

// Advance recomputes r.ActiveCycle for the current instant and persists it.
func (s *TransitionService) Advance(ctx context.Context, r *region.Region) (*region.Region, error) {
	current, err := s.calc.CurrentCycle(r.CycleConfig.StartDate, r.CycleConfig.CycleDuration, r.Timezone, s.now())
	if err != nil {
		return nil, fmt.Errorf("recompute cycle of region %d: %w", r.ID, err)
	}
	if err := s.regionRepo.UpdateActiveCycle(ctx, r.ID, current); err != nil {
		return nil, fmt.Errorf("persist active cycle of region %d: %w", r.ID, classify(err))
	}
	r.ActiveCycle = current
	return r, nil
}

// Reschedule arms the region's job at the end of its persisted active cycle. Instants already in
// the past fire on the scheduler's next tick.
func (s *TransitionService) Reschedule(_ context.Context, r *region.Region) error {
	next, err := s.calc.NextTransition(r.CycleConfig.StartDate, r.ActiveCycle, r.CycleConfig.CycleDuration, r.Timezone)
	if err != nil {
		return fmt.Errorf("compute next transition of region %d: %w", r.ID, err)
	}
	s.armer.Arm(r.ID, next)
	s.logger.WithFields(logrus.Fields{
		"region_id":       r.ID,
		"active_cycle":    r.ActiveCycle,
		"next_transition": next.Format(time.RFC3339),
	}).Debug("Region transition armed")
	return nil
}

// OnRegionConfigChanged applies an edited timezone or cycle config: the new config and the
// recomputed active cycle are written together under the marker, the cached question is evicted
// and the pending job is replaced.
func (s *TransitionService) OnRegionConfigChanged(ctx context.Context, r *region.Region) error {
	if err := ValidateRegionConfig(s.calc, r); err != nil {
		return err
	}
	current, err := s.calc.CurrentCycle(r.CycleConfig.StartDate, r.CycleConfig.CycleDuration, r.Timezone, s.now())
	if err != nil {
		return err
	}

	unlock := s.lockRegion(r.ID)
	defer unlock()

	if err := s.setMarker(ctx, r.ID); err != nil {
		return err
	}
	defer s.clearMarker(r.ID)

	r.ActiveCycle = current
	if err := s.regionRepo.Update(ctx, r); err != nil {
		return fmt.Errorf("persist config of region %d: %w", r.ID, classify(err))
	}
	if err := s.cache.Delete(ctx, QuestionKey(r.ID)); err != nil {
		return fmt.Errorf("evict cached question of region %d: %w", r.ID, err)
	}
	if err := s.Reschedule(ctx, r); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"region_id":      r.ID,
		"cycle_duration": r.CycleConfig.CycleDuration,
		"timezone":       r.Timezone,
		"active_cycle":   r.ActiveCycle,
	}).Info("Region config changed, cycle recomputed")
	return nil
}

// BootstrapSchedules arms every region from its persisted state. Regions with an unusable config
// are skipped and reported in the returned error.
func (s *TransitionService) BootstrapSchedules(ctx context.Context, regions []*region.Region) error {
	var errs []error
	armed := 0
	for _, r := range regions {
		if err := s.Reschedule(ctx, r); err != nil {
			s.logger.WithError(err).WithField("region_id", r.ID).Error("Could not arm region on startup")
			errs = append(errs, err)
			continue
		}
		armed++
	}
	s.logger.WithFields(logrus.Fields{"armed": armed, "total": len(regions)}).Info("Transition schedules bootstrapped")
	return errors.Join(errs...)
}

// Reconcile re-arms every region that has no pending job, which is what a transition leaves
// behind after failing with ErrSchedulingGap.
func (s *TransitionService) Reconcile(ctx context.Context) error {
	regions, err := s.regionRepo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list regions for reconciliation: %w", err)
	}

	var errs []error
	healed := 0
	for _, r := range regions {
		if s.armer.Scheduled(r.ID) {
			continue
		}
		s.logger.WithError(ErrSchedulingGap).WithField("region_id", r.ID).Warn("Region has no pending transition, re-arming")
		if err := s.Reschedule(ctx, r); err != nil {
			errs = append(errs, err)
			continue
		}
		healed++
	}
	if healed > 0 {
		s.logger.WithField("healed", healed).Info("Reconciliation re-armed regions")
	}
	return errors.Join(errs...)
}

// Forget drops everything the coordinator holds for a deleted region.
func (s *TransitionService) Forget(ctx context.Context, regionID int64) error {
	s.armer.Cancel(regionID)
	s.locksMu.Lock()
	delete(s.locks, regionID)
	s.locksMu.Unlock()
	if err := s.cache.Delete(ctx, QuestionKey(regionID), TransitionMarkerKey(regionID)); err != nil {
		return fmt.Errorf("evict cache of deleted region %d: %w", regionID, err)
	}
	return nil
}

func (s *TransitionService) setMarker(ctx context.Context, regionID int64) error {
	if err := s.cache.Set(ctx, TransitionMarkerKey(regionID), "true", s.markerTTL); err != nil {
		return fmt.Errorf("set transition marker of region %d: %w", regionID, err)
	}
	return nil
}

// clearMarker runs on every exit path, with its own context so a cancelled job still unmarks.
func (s *TransitionService) clearMarker(regionID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), markerClearTimeout)
	defer cancel()
	if err := s.cache.Delete(ctx, TransitionMarkerKey(regionID)); err != nil {
		s.logger.WithError(err).WithField("region_id", regionID).Warn("Could not clear transition marker; it expires with its TTL")
	}
}

// ValidateRegionConfig checks the cycle inputs of r, including the allowed duration range.
func ValidateRegionConfig(calc cycle.Calculator, r *region.Region) error {
	d := r.CycleConfig.CycleDuration
	if d < region.MinCycleDuration || d > region.MaxCycleDuration {
		return fmt.Errorf("%w: cycle duration must be between %d and %d days, got %d",
			ErrInvalidConfiguration, region.MinCycleDuration, region.MaxCycleDuration, d)
	}
	_, err := calc.ValidateConfig(d, r.Timezone, r.CycleConfig.StartDate)
	return err
}
