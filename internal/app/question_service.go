package app

import (
	"context"
	"fmt"
	"time"

	"question_rotation_bot/internal/domain/cycle"
	"question_rotation_bot/internal/domain/question"
	"question_rotation_bot/internal/domain/region"
	"question_rotation_bot/internal/domain/user"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

// MarkerWait bounds how long a reader waits for a region's transition marker to clear.
// The wait is advisory: once the budget is spent the reader fails fast instead of serving
// state from a half-updated region.
type MarkerWait struct {
	Attempts int
	Delay    time.Duration
}

// QuestionService serves the active question of a region from a cache-aside store whose entries
// expire at the region's next transition.
type QuestionService struct {
	regionRepo   region.Repository
	questionRepo question.Repository
	userRepo     user.Repository
	cache        Cache
	calc         cycle.Calculator
	wait         MarkerWait
	logger       *logrus.Entry
	now          Clock
}

func NewQuestionService(
	rr region.Repository,
	qr question.Repository,
	ur user.Repository,
	c Cache,
	calc cycle.Calculator,
	wait MarkerWait,
	logger *logrus.Entry,
) *QuestionService {
	return &QuestionService{
		regionRepo:   rr,
		questionRepo: qr,
		userRepo:     ur,
		cache:        c,
		calc:         calc,
		wait:         wait,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *QuestionService) SetClock(now Clock) { s.now = now }

// GetActiveQuestion returns the question active for the region. Cached entries are returned as
// stored; their TTL is the only staleness bound. Concurrent misses may each recompute and write
// the same entry.
func (s *QuestionService) GetActiveQuestion(ctx context.Context, regionID int64) (*question.Question, error) {
	log := s.logger.WithField("region_id", regionID)

	if err := s.awaitTransition(ctx, regionID); err != nil {
		return nil, err
	}

	key := QuestionKey(regionID)
	raw, found, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		log.WithError(err).Warn("Cache read failed, loading question from the store")
	case found:
		var q question.Question
		if err := json.Unmarshal([]byte(raw), &q); err == nil {
			return &q, nil
		}
		log.Warn("Cached question is unreadable, recomputing")
	}

	r, err := s.regionRepo.GetByID(ctx, regionID)
	if err != nil {
		return nil, classify(err)
	}
	questions, err := s.questionRepo.ListByRegion(ctx, regionID)
	if err != nil {
		return nil, fmt.Errorf("load questions of region %d: %w", regionID, err)
	}
	selected, err := question.Select(questions, r.ActiveCycle)
	if err != nil {
		return nil, fmt.Errorf("region %d: %w", regionID, err)
	}

	ttl, err := s.cacheTTL(r)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(selected)
	if err != nil {
		log.WithError(err).Warn("Could not serialize question for the cache")
		return selected, nil
	}
	if err := s.cache.Set(ctx, key, string(payload), ttl); err != nil {
		log.WithError(err).Warn("Could not cache active question")
	} else {
		log.WithFields(logrus.Fields{
			"question_id":  selected.ID,
			"active_cycle": r.ActiveCycle,
			"ttl":          ttl.String(),
		}).Debug("Active question cached")
	}
	return selected, nil
}

// GetActiveQuestionForUser resolves the user's region and returns its active question.
func (s *QuestionService) GetActiveQuestionForUser(ctx context.Context, telegramID int64) (*question.Question, *user.User, error) {
	u, err := s.userRepo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, nil, classify(err)
	}
	q, err := s.GetActiveQuestion(ctx, u.RegionID)
	if err != nil {
		return nil, u, err
	}
	return q, u, nil
}

// cacheTTL is the whole number of seconds left until the region's next transition, at least one.
func (s *QuestionService) cacheTTL(r *region.Region) (time.Duration, error) {
	next, err := s.calc.NextTransition(r.CycleConfig.StartDate, r.ActiveCycle, r.CycleConfig.CycleDuration, r.Timezone)
	if err != nil {
		return 0, fmt.Errorf("region %d: %w", r.ID, err)
	}
	ttl := next.Sub(s.now()).Truncate(time.Second)
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl, nil
}

func (s *QuestionService) awaitTransition(ctx context.Context, regionID int64) error {
	markerKey := TransitionMarkerKey(regionID)
	for attempt := 0; ; attempt++ {
		held, err := s.cache.Exists(ctx, markerKey)
		if err != nil {
			// Without a readable marker the store is the only consistent source.
			s.logger.WithError(err).WithField("region_id", regionID).Warn("Could not read transition marker")
			return nil
		}
		if !held {
			return nil
		}
		if attempt >= s.wait.Attempts {
			return fmt.Errorf("%w: region %d", ErrTransientUnavailable, regionID)
		}

		timer := time.NewTimer(s.wait.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
