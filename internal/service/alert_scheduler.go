package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/noah-isme/risk-alert-api/internal/dto"
	"github.com/noah-isme/risk-alert-api/internal/observability"
)

// ErrInvalidSchedule indicates the cron expression could not be parsed.
var ErrInvalidSchedule = errors.New("invalid cron schedule")

// DefaultAlertSchedule fires every Monday at 09:00 local time.
const DefaultAlertSchedule = "0 9 * * 1"

const notScheduled = "not scheduled"

// ScheduleState is the persisted scheduler configuration.
type ScheduleState struct {
	Enabled  bool
	Schedule string
}

// ScheduleStore persists scheduler state across restarts.
type ScheduleStore interface {
	Load(ctx context.Context) (ScheduleState, bool, error)
	Save(ctx context.Context, state ScheduleState) error
}

// AlertScheduler owns the single recurring alert trigger.
type AlertScheduler interface {
	Enable(ctx context.Context, expr string) (dto.SchedulerStatus, error)
	Disable(ctx context.Context) (dto.SchedulerStatus, error)
	Status() dto.SchedulerStatus
	Restore(ctx context.Context) (bool, error)
	Stop(ctx context.Context)
}

type alertScheduler struct {
	mu         sync.Mutex
	cron       *cron.Cron
	location   *time.Location
	dispatcher AlertDispatcher
	store      ScheduleStore
	logger     zerolog.Logger

	entryID  cron.EntryID
	expr     string
	schedule cron.Schedule
	started  bool
}

// NewAlertScheduler builds a scheduler running in loc (time.Local when nil). store may be nil.
func NewAlertScheduler(dispatcher AlertDispatcher, store ScheduleStore, loc *time.Location, logger zerolog.Logger) AlertScheduler {
	if loc == nil {
		loc = time.Local
	}
	log := logger.With().Str("component", "alert_scheduler").Logger()

	return &alertScheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(&log))),
		),
		location:   loc,
		dispatcher: dispatcher,
		store:      store,
		logger:     log,
	}
}

// Enable replaces any active trigger with one firing on expr. An empty expr
// selects DefaultAlertSchedule. On a parse error the previous trigger is kept.
func (s *alertScheduler) Enable(ctx context.Context, expr string) (dto.SchedulerStatus, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		expr = DefaultAlertSchedule
	}

	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return dto.SchedulerStatus{}, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
		s.entryID = 0
	}

	s.entryID = s.cron.Schedule(schedule, cron.FuncJob(s.fire))
	s.expr = expr
	s.schedule = schedule
	if !s.started {
		s.cron.Start()
		s.started = true
	}

	s.persist(ctx, ScheduleState{Enabled: true, Schedule: expr})
	s.logger.Info().Str("schedule", expr).Msg("alert schedule enabled")

	return s.statusLocked(), nil
}

// Disable stops the active trigger. Calling it while disabled is a no-op apart
// from persisting the disabled state.
func (s *alertScheduler) Disable(ctx context.Context) (dto.SchedulerStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
		s.logger.Info().Str("schedule", s.expr).Msg("alert schedule disabled")
	}
	s.entryID = 0
	s.schedule = nil

	s.persist(ctx, ScheduleState{Enabled: false, Schedule: s.expr})
	s.expr = ""

	return s.statusLocked(), nil
}

func (s *alertScheduler) Status() dto.SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

// Restore re-enables the trigger saved by a previous process. It reports whether
// any state was found.
func (s *alertScheduler) Restore(ctx context.Context) (bool, error) {
	if s.store == nil {
		return false, nil
	}

	state, found, err := s.store.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load schedule state: %w", err)
	}
	if !found {
		return false, nil
	}
	if !state.Enabled {
		s.logger.Info().Msg("alert schedule restored as disabled")
		return true, nil
	}

	if _, err := s.Enable(ctx, state.Schedule); err != nil {
		return true, err
	}
	return true, nil
}

// Stop halts the cron loop and waits for a running firing to finish or ctx to end.
func (s *alertScheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()

	if !started {
		return
	}

	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn().Msg("alert scheduler stop timed out")
	}
}

func (s *alertScheduler) fire() {
	defer func() {
		if r := recover(); r != nil {
			observability.SchedulerFirings().WithLabelValues("panic").Inc()
			s.logger.Error().Interface("panic", r).Msg("scheduled alert dispatch panicked")
		}
	}()

	result, err := s.dispatcher.Dispatch(context.Background())
	if err != nil {
		observability.SchedulerFirings().WithLabelValues("error").Inc()
		s.logger.Error().Err(err).Msg("scheduled alert dispatch failed")
		return
	}

	observability.SchedulerFirings().WithLabelValues("success").Inc()
	s.logger.Info().
		Int("high_risk", result.HighRiskCount).
		Int("emails_sent", result.StudentEmailsSent+result.MentorEmailsSent).
		Int("failures", len(result.Errors)).
		Msg("scheduled alert dispatch completed")
}

func (s *alertScheduler) persist(ctx context.Context, state ScheduleState) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, state); err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist schedule state")
	}
}

func (s *alertScheduler) statusLocked() dto.SchedulerStatus {
	if s.entryID == 0 || s.schedule == nil {
		return dto.SchedulerStatus{Description: notScheduled}
	}

	next := s.schedule.Next(time.Now().In(s.location))
	return dto.SchedulerStatus{
		Active:      true,
		Schedule:    s.expr,
		Description: DescribeSchedule(s.expr),
		NextRun:     &next,
	}
}

var weekdayNames = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// DescribeSchedule renders common daily and weekly expressions in words and
// falls back to the raw expression otherwise.
func DescribeSchedule(expr string) string {
	fields := strings.Fields(expr)
	if len(fields) != 5 || fields[2] != "*" || fields[3] != "*" {
		return "Cron schedule: " + expr
	}

	minute, errMinute := strconv.Atoi(fields[0])
	hour, errHour := strconv.Atoi(fields[1])
	if errMinute != nil || errHour != nil || minute < 0 || minute > 59 || hour < 0 || hour > 23 {
		return "Cron schedule: " + expr
	}
	at := fmt.Sprintf("%02d:%02d", hour, minute)

	if fields[4] == "*" {
		return "Every day at " + at
	}

	day, err := strconv.Atoi(fields[4])
	if err != nil || day < 0 || day > 7 {
		return "Cron schedule: " + expr
	}
	return fmt.Sprintf("Every %s at %s", weekdayNames[day%7], at)
}

// RedisScheduleStore keeps scheduler state in a Redis hash.
type RedisScheduleStore struct {
	client *redis.Client
	key    string
}

// NewRedisScheduleStore stores state under "<channelBase>:alerts:schedule".
func NewRedisScheduleStore(client *redis.Client, channelBase string) *RedisScheduleStore {
	if channelBase == "" {
		channelBase = "risk"
	}
	return &RedisScheduleStore{client: client, key: channelBase + ":alerts:schedule"}
}

func (r *RedisScheduleStore) Load(ctx context.Context) (ScheduleState, bool, error) {
	values, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return ScheduleState{}, false, err
	}
	if len(values) == 0 {
		return ScheduleState{}, false, nil
	}

	enabled, _ := strconv.ParseBool(values["enabled"])
	return ScheduleState{Enabled: enabled, Schedule: values["schedule"]}, true, nil
}

func (r *RedisScheduleStore) Save(ctx context.Context, state ScheduleState) error {
	return r.client.HSet(ctx, r.key,
		"enabled", strconv.FormatBool(state.Enabled),
		"schedule", state.Schedule,
	).Err()
}
