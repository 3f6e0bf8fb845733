package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"question_rotation_bot/internal/domain/cycle"
	"question_rotation_bot/internal/domain/question"
	"question_rotation_bot/internal/domain/region"
	"question_rotation_bot/internal/domain/user"

	"github.com/sirupsen/logrus"
)

// RegionPatch carries the fields an admin edit may change. Nil fields are left untouched.
type RegionPatch struct {
	Name          *string
	Timezone      *string
	CycleDuration *int
	StartDate     *time.Time
}

// RegionView is a region together with the cycle derived for the current instant, which may be
// ahead of the persisted ActiveCycle until the next transition job runs.
type RegionView struct {
	Region         *region.Region
	CurrentCycle   int
	NextTransition time.Time
}

type AdminService struct {
	regionRepo      region.Repository
	questionRepo    question.Repository
	userRepo        user.Repository
	cache           Cache
	transitions     *TransitionService
	calc            cycle.Calculator
	defaultDuration int
	adminTelegramID int64
	logger          *logrus.Entry
	now             Clock
}

func NewAdminService(
	rr region.Repository,
	qr question.Repository,
	ur user.Repository,
	c Cache,
	transitions *TransitionService,
	calc cycle.Calculator,
	defaultDuration int,
	adminID int64,
	logger *logrus.Entry,
) *AdminService {
	if defaultDuration < region.MinCycleDuration || defaultDuration > region.MaxCycleDuration {
		defaultDuration = region.DefaultCycleDuration
	}
	return &AdminService{
		regionRepo:      rr,
		questionRepo:    qr,
		userRepo:        ur,
		cache:           c,
		transitions:     transitions,
		calc:            calc,
		defaultDuration: defaultDuration,
		adminTelegramID: adminID,
		logger:          logger,
		now:             time.Now,
	}
}

func (s *AdminService) SetClock(now Clock) { s.now = now }

func (s *AdminService) authorize(performingAdminID int64) error {
	if performingAdminID != s.adminTelegramID {
		return ErrAdminNotAuthorized
	}
	return nil
}

// CreateRegion validates and persists a new region, then arms its first transition.
// A zero duration selects the default; a nil start date means today at the transition hour.
func (s *AdminService) CreateRegion(ctx context.Context, performingAdminID int64, name, timezone string, cycleDuration int, startDate *time.Time) (*region.Region, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: region name is empty", ErrInvalidConfiguration)
	}
	if cycleDuration == 0 {
		cycleDuration = s.defaultDuration
	}

	now := s.now()
	r := &region.Region{
		Name:        name,
		Timezone:    strings.TrimSpace(timezone),
		CycleConfig: region.CycleConfig{CycleDuration: cycleDuration},
	}
	if startDate != nil {
		r.CycleConfig.StartDate = *startDate
	} else {
		start, err := s.calc.DefaultStartDate(r.Timezone, now)
		if err != nil {
			return nil, err
		}
		r.CycleConfig.StartDate = start
	}
	if err := ValidateRegionConfig(s.calc, r); err != nil {
		return nil, err
	}

	current, err := s.calc.CurrentCycle(r.CycleConfig.StartDate, r.CycleConfig.CycleDuration, r.Timezone, now)
	if err != nil {
		return nil, err
	}
	r.ActiveCycle = current

	if err := s.regionRepo.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("create region: %w", classify(err))
	}
	if err := s.transitions.Reschedule(ctx, r); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"region_id":      r.ID,
		"name":           r.Name,
		"timezone":       r.Timezone,
		"cycle_duration": r.CycleConfig.CycleDuration,
	}).Info("Region created")
	return r, nil
}

func (s *AdminService) GetRegion(ctx context.Context, performingAdminID int64, regionID int64) (*RegionView, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	r, err := s.regionRepo.GetByID(ctx, regionID)
	if err != nil {
		return nil, classify(err)
	}
	return s.view(r)
}

func (s *AdminService) ListRegions(ctx context.Context, performingAdminID int64) ([]*RegionView, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	regions, err := s.regionRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	views := make([]*RegionView, 0, len(regions))
	for _, r := range regions {
		v, err := s.view(r)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *AdminService) view(r *region.Region) (*RegionView, error) {
	current, err := s.calc.CurrentCycle(r.CycleConfig.StartDate, r.CycleConfig.CycleDuration, r.Timezone, s.now())
	if err != nil {
		return nil, err
	}
	next, err := s.calc.NextTransition(r.CycleConfig.StartDate, r.ActiveCycle, r.CycleConfig.CycleDuration, r.Timezone)
	if err != nil {
		return nil, err
	}
	return &RegionView{Region: r, CurrentCycle: current, NextTransition: next}, nil
}

// UpdateRegion applies patch. Only a change to the timezone or the cycle config recomputes the
// active cycle and re-arms the region; a rename touches the name column alone.
func (s *AdminService) UpdateRegion(ctx context.Context, performingAdminID int64, regionID int64, patch RegionPatch) (*region.Region, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	current, err := s.regionRepo.GetByID(ctx, regionID)
	if err != nil {
		return nil, classify(err)
	}

	updated := *current
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: region name is empty", ErrInvalidConfiguration)
		}
		updated.Name = name
	}
	if patch.Timezone != nil {
		updated.Timezone = strings.TrimSpace(*patch.Timezone)
	}
	if patch.CycleDuration != nil {
		updated.CycleConfig.CycleDuration = *patch.CycleDuration
	}
	if patch.StartDate != nil {
		updated.CycleConfig.StartDate = *patch.StartDate
	}

	if updated.ConfigDiffers(current) {
		if err := s.transitions.OnRegionConfigChanged(ctx, &updated); err != nil {
			return nil, err
		}
		return &updated, nil
	}
	if updated.Name != current.Name {
		// Only the name is written; the cycle read above may already be stale.
		if err := s.regionRepo.Rename(ctx, regionID, updated.Name); err != nil {
			return nil, fmt.Errorf("rename region: %w", classify(err))
		}
	}
	return &updated, nil
}

// DeleteRegion removes the region with its questions and users, cancels its job and drops its cache keys.
func (s *AdminService) DeleteRegion(ctx context.Context, performingAdminID int64, regionID int64) error {
	if err := s.authorize(performingAdminID); err != nil {
		return err
	}
	if err := s.regionRepo.Delete(ctx, regionID); err != nil {
		return classify(err)
	}
	if err := s.transitions.Forget(ctx, regionID); err != nil {
		s.logger.WithError(err).WithField("region_id", regionID).Warn("Region deleted but cache eviction failed")
	}
	s.logger.WithField("region_id", regionID).Info("Region deleted")
	return nil
}

// AddQuestion creates a question and evicts the region's cached question, since the rotation
// length changed.
func (s *AdminService) AddQuestion(ctx context.Context, performingAdminID int64, regionID int64, sequence int, content string) (*question.Question, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: question content is empty", ErrInvalidConfiguration)
	}
	if sequence < 0 {
		return nil, fmt.Errorf("%w: sequence must not be negative", ErrInvalidConfiguration)
	}
	if _, err := s.regionRepo.GetByID(ctx, regionID); err != nil {
		return nil, classify(err)
	}

	q := &question.Question{RegionID: regionID, Content: content, Sequence: sequence}
	if err := s.questionRepo.Create(ctx, q); err != nil {
		return nil, fmt.Errorf("create question: %w", classify(err))
	}
	s.evictQuestion(ctx, regionID)
	return q, nil
}

func (s *AdminService) ListQuestions(ctx context.Context, performingAdminID int64, regionID int64) ([]*question.Question, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	if _, err := s.regionRepo.GetByID(ctx, regionID); err != nil {
		return nil, classify(err)
	}
	return s.questionRepo.ListByRegion(ctx, regionID)
}

func (s *AdminService) DeleteQuestion(ctx context.Context, performingAdminID int64, questionID int64) error {
	if err := s.authorize(performingAdminID); err != nil {
		return err
	}
	q, err := s.questionRepo.GetByID(ctx, questionID)
	if err != nil {
		return classify(err)
	}
	if err := s.questionRepo.Delete(ctx, questionID); err != nil {
		return classify(err)
	}
	s.evictQuestion(ctx, q.RegionID)
	return nil
}

func (s *AdminService) AddUser(ctx context.Context, performingAdminID int64, telegramID int64, name string, regionID int64) (*user.User, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: user name is empty", ErrInvalidConfiguration)
	}
	if _, err := s.regionRepo.GetByID(ctx, regionID); err != nil {
		return nil, classify(err)
	}
	u := &user.User{TelegramID: telegramID, Name: name, RegionID: regionID}
	if err := s.userRepo.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", classify(err))
	}
	return u, nil
}

func (s *AdminService) RemoveUser(ctx context.Context, performingAdminID int64, telegramID int64) error {
	if err := s.authorize(performingAdminID); err != nil {
		return err
	}
	return classify(s.userRepo.DeleteByTelegramID(ctx, telegramID))
}

func (s *AdminService) evictQuestion(ctx context.Context, regionID int64) {
	if err := s.cache.Delete(ctx, QuestionKey(regionID)); err != nil {
		s.logger.WithError(err).WithField("region_id", regionID).Warn("Could not evict cached question")
	}
}
