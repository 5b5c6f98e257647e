package status

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"shophours/internal/events"
	"shophours/internal/hours"
	"shophours/internal/metrics"

	"github.com/rs/zerolog"
)

// ScheduleStore loads and saves weekly schedules. GetSchedule returns an
// error matching hours.ErrScheduleNotFound for unknown shops.
type ScheduleStore interface {
	GetSchedule(ctx context.Context, shopID string) (hours.WeeklySchedule, error)
	SaveSchedule(ctx context.Context, shopID string, schedule hours.WeeklySchedule) error
}

// CacheInvalidator is implemented by caching schedule stores.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, shopID string) error
}

// OverrideManager holds the manual override of each shop.
type OverrideManager interface {
	Set(ctx context.Context, shopID string, isForcedOpen bool, reason, actor string, now time.Time, expiresAt *time.Time) (hours.Override, error)
	Clear(ctx context.Context, shopID, actor string, now time.Time) (*hours.Override, error)
	Active(ctx context.Context, shopID string, now time.Time) (*hours.Override, error)
}

// Config tunes service policy.
type Config struct {
	// DefaultTimeZone fills schedules submitted without a time zone.
	DefaultTimeZone string

	// ExpireOverridesAtMidnight makes every new override lapse at the
	// next local midnight of the shop.
	ExpireOverridesAtMidnight bool
}

// Service answers status queries and applies schedule and override
// commands. It holds no polling loop; callers refresh on their own.
type Service struct {
	schedules ScheduleStore
	overrides OverrideManager
	bus       *events.Bus
	cfg       Config
	logger    *zerolog.Logger
	now       func() time.Time
	writes    sync.Map // shopID -> *sync.Mutex, serialises schedule read-modify-write
}

// NewService creates a status service. bus may be nil.
func NewService(schedules ScheduleStore, overrides OverrideManager, bus *events.Bus, cfg Config, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{
		schedules: schedules,
		overrides: overrides,
		bus:       bus,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the time source, mainly for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GetStatus evaluates the shop's status at the current time.
func (s *Service) GetStatus(ctx context.Context, shopID string) (hours.ShopStatus, error) {
	now := s.now()
	schedule, err := s.loadSchedule(ctx, shopID)
	if err != nil {
		return hours.ShopStatus{}, err
	}
	ov, err := s.overrides.Active(ctx, shopID, now)
	if err != nil {
		return hours.ShopStatus{}, fmt.Errorf("get override for %s: %w", shopID, err)
	}
	return s.evaluate(shopID, schedule, ov, now)
}

// ForceRecompute drops any cached schedule for the shop and evaluates
// afresh.
func (s *Service) ForceRecompute(ctx context.Context, shopID string) (hours.ShopStatus, error) {
	if inv, ok := s.schedules.(CacheInvalidator); ok {
		if err := inv.Invalidate(ctx, shopID); err != nil {
			s.logger.Warn().Err(err).Str("shop_id", shopID).Msg("schedule cache invalidation failed")
		}
	}
	return s.GetStatus(ctx, shopID)
}

// SetOverride pins the shop open or closed and returns the new status.
// The override applies even when the stored day rows are malformed; only
// the time zone has to resolve.
func (s *Service) SetOverride(ctx context.Context, shopID string, isForcedOpen bool, reason, actor string) (hours.ShopStatus, error) {
	now := s.now()
	schedule, err := s.loadSchedule(ctx, shopID)
	if err != nil {
		return hours.ShopStatus{}, err
	}
	loc, err := schedule.Location()
	if err != nil {
		metrics.IncEvaluationError("invalid")
		return hours.ShopStatus{}, fmt.Errorf("evaluate %s: %w", shopID, err)
	}

	var expiresAt *time.Time
	if s.cfg.ExpireOverridesAtMidnight {
		midnight := NextMidnight(now, loc)
		expiresAt = &midnight
	}

	ov, err := s.overrides.Set(ctx, shopID, isForcedOpen, reason, actor, now, expiresAt)
	if err != nil {
		return hours.ShopStatus{}, fmt.Errorf("set override for %s: %w", shopID, err)
	}
	return s.evaluate(shopID, schedule, &ov, now)
}

// ClearOverride returns the shop to its schedule and returns the new
// status. Clearing when no override is active is not an error.
func (s *Service) ClearOverride(ctx context.Context, shopID, actor string) (hours.ShopStatus, error) {
	now := s.now()
	schedule, err := s.loadSchedule(ctx, shopID)
	if err != nil {
		return hours.ShopStatus{}, err
	}
	if _, err := s.overrides.Clear(ctx, shopID, actor, now); err != nil {
		return hours.ShopStatus{}, fmt.Errorf("clear override for %s: %w", shopID, err)
	}
	// A concurrent SetOverride may already have replaced the cleared one.
	ov, err := s.overrides.Active(ctx, shopID, now)
	if err != nil {
		return hours.ShopStatus{}, fmt.Errorf("get override for %s: %w", shopID, err)
	}
	return s.evaluate(shopID, schedule, ov, now)
}

// GetWeeklyPreview returns seven Monday-first display summaries.
func (s *Service) GetWeeklyPreview(ctx context.Context, shopID string) ([]hours.DayPreview, error) {
	schedule, err := s.loadSchedule(ctx, shopID)
	if err != nil {
		return nil, err
	}
	return hours.Preview(schedule), nil
}

// GetSchedule returns the stored weekly schedule.
func (s *Service) GetSchedule(ctx context.Context, shopID string) (hours.WeeklySchedule, error) {
	return s.loadSchedule(ctx, shopID)
}

// PutSchedule validates and stores a full week, replacing the previous one.
func (s *Service) PutSchedule(ctx context.Context, shopID string, schedule hours.WeeklySchedule, actor string) (hours.WeeklySchedule, error) {
	mu := s.writeLock(shopID)
	mu.Lock()
	defer mu.Unlock()
	return s.save(ctx, shopID, schedule, actor)
}

// UpdateDay replaces a single day of an existing schedule.
func (s *Service) UpdateDay(ctx context.Context, shopID string, day hours.DaySchedule, actor string) (hours.WeeklySchedule, error) {
	if !day.Day.Valid() {
		return hours.WeeklySchedule{}, &hours.InvalidScheduleError{Field: "day", Reason: "unknown day"}
	}

	mu := s.writeLock(shopID)
	mu.Lock()
	defer mu.Unlock()

	schedule, err := s.loadSchedule(ctx, shopID)
	if err != nil {
		return hours.WeeklySchedule{}, err
	}
	schedule.Days[day.Day] = day
	return s.save(ctx, shopID, schedule, actor)
}

// EnsureSchedule stores schedule when the shop has none, or always when
// overwrite is set. It reports whether anything was written.
func (s *Service) EnsureSchedule(ctx context.Context, shopID string, schedule hours.WeeklySchedule, overwrite bool) (bool, error) {
	mu := s.writeLock(shopID)
	mu.Lock()
	defer mu.Unlock()

	if !overwrite {
		_, err := s.schedules.GetSchedule(ctx, shopID)
		if err == nil {
			return false, nil
		}
		if !errors.Is(err, hours.ErrScheduleNotFound) {
			return false, fmt.Errorf("get schedule for %s: %w", shopID, err)
		}
	}
	if _, err := s.save(ctx, shopID, schedule, "seed"); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) save(ctx context.Context, shopID string, schedule hours.WeeklySchedule, actor string) (hours.WeeklySchedule, error) {
	if schedule.TimeZone == "" {
		schedule.TimeZone = s.cfg.DefaultTimeZone
	}
	if err := hours.Validate(schedule); err != nil {
		return hours.WeeklySchedule{}, err
	}
	if err := s.schedules.SaveSchedule(ctx, shopID, schedule); err != nil {
		return hours.WeeklySchedule{}, fmt.Errorf("save schedule for %s: %w", shopID, err)
	}

	s.logger.Info().Str("shop_id", shopID).Str("actor", actor).Msg("schedule updated")
	if s.bus != nil {
		e, err := events.New(events.ScheduleUpdated, shopID, actor, hours.ToBackendFormat(schedule), s.now())
		if err == nil {
			err = s.bus.Publish(e)
		}
		if err != nil {
			s.logger.Error().Err(err).Str("shop_id", shopID).Msg("failed to publish schedule event")
		}
	}
	return schedule, nil
}

func (s *Service) loadSchedule(ctx context.Context, shopID string) (hours.WeeklySchedule, error) {
	schedule, err := s.schedules.GetSchedule(ctx, shopID)
	if err != nil {
		if errors.Is(err, hours.ErrScheduleNotFound) {
			metrics.IncEvaluationError("not_found")
		}
		return hours.WeeklySchedule{}, fmt.Errorf("get schedule for %s: %w", shopID, err)
	}
	return schedule, nil
}

func (s *Service) evaluate(shopID string, schedule hours.WeeklySchedule, ov *hours.Override, now time.Time) (hours.ShopStatus, error) {
	st, err := hours.Evaluate(schedule, ov, now)
	if err != nil {
		metrics.IncEvaluationError("invalid")
		s.logger.Error().Err(err).Str("shop_id", shopID).Msg("status evaluation failed")
		return hours.ShopStatus{}, fmt.Errorf("evaluate %s: %w", shopID, err)
	}
	metrics.IncStatusEvaluation(string(st.State))
	return st, nil
}

func (s *Service) writeLock(shopID string) *sync.Mutex {
	mu, _ := s.writes.LoadOrStore(shopID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// NextMidnight returns the start of the day after now in loc.
func NextMidnight(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
}
