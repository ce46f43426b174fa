package service

import (
	"alcyxob/workout-planner/internal/cache"
	"alcyxob/workout-planner/internal/calendar"
	"alcyxob/workout-planner/internal/domain"
	"alcyxob/workout-planner/internal/metrics"
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LedgerWarning reports a day tag that could not be normalized. The slot it
// was meant for becomes a rest day.
type LedgerWarning struct {
	WeekNumber int    `json:"weekNumber"`
	Title      string `json:"title"`
	Tag        string `json:"tag"`
}

func (w LedgerWarning) String() string {
	return fmt.Sprintf("week %d session %q: unknown day tag %q", w.WeekNumber, w.Title, w.Tag)
}

// BuildLedger computes the day ledger of a plan without touching storage:
// WeekCount*7 rows with contiguous dates starting at the plan's start date.
// Sessions keep their natural weekday offset and nothing is moved to fill a
// short first week. Week 1 ends its training at the first Sunday: days of
// week 1 that fall in the following calendar week are rest days.
func BuildLedger(plan *domain.Plan, loc *time.Location) ([]domain.ScheduleDay, []LedgerWarning, error) {
	start, err := calendar.ParseDate(plan.StartDate, loc)
	if err != nil {
		return nil, nil, validationError("start date: %v", err)
	}

	var warnings []LedgerWarning
	byWeek := make([]map[domain.Weekday]*domain.PlannedSession, plan.WeekCount())
	for w, week := range plan.Weeks {
		byWeek[w] = make(map[domain.Weekday]*domain.PlannedSession, len(week.Sessions))
		for i := range week.Sessions {
			ps := &week.Sessions[i]
			day, err := domain.ParseWeekday(ps.Day)
			if err != nil {
				warnings = append(warnings, LedgerWarning{WeekNumber: w + 1, Title: ps.Title, Tag: ps.Day})
				continue
			}
			if _, taken := byWeek[w][day]; !taken {
				byWeek[w][day] = ps
			}
		}
	}

	total := plan.WeekCount() * 7
	firstWeekTrainingDays := int(domain.Sunday-calendar.DayOfWeek(start)) + 1
	days := make([]domain.ScheduleDay, 0, total)
	sessionOrder := 0
	for dayIndex := 1; dayIndex <= total; dayIndex++ {
		date := calendar.DateFor(start, dayIndex)
		weekNumber := calendar.WeekNumber(dayIndex)
		day := domain.ScheduleDay{
			PlanID:       plan.ID,
			DayIndex:     dayIndex,
			WeekNumber:   weekNumber,
			DayAbbrev:    calendar.DayOfWeek(date),
			CalendarDate: calendar.FormatDate(date, loc),
			IsRest:       true,
		}
		if weekNumber == 1 && dayIndex > firstWeekTrainingDays {
			days = append(days, day)
			continue
		}
		if ps, ok := byWeek[weekNumber-1][day.DayAbbrev]; ok {
			sessionOrder++
			day.IsRest = false
			day.PlannedExerciseCount = len(ps.Exercises)
			day.SessionTitle = ps.Title
			day.SessionOrder = sessionOrder
		}
		days = append(days, day)
	}
	return days, warnings, nil
}

// --- Service Interface ---
type ScheduleService interface {
	// Materialize rebuilds the ledger from the plan's original start date.
	Materialize(ctx context.Context, userID, planID primitive.ObjectID) ([]domain.ScheduleDay, error)
	GetSchedule(ctx context.Context, userID, planID primitive.ObjectID) ([]domain.ScheduleDay, error)
	// Today returns the ledger row of the current date in the plan's timezone.
	Today(ctx context.Context, userID, planID primitive.ObjectID) (*domain.ScheduleDay, error)
}

// materializer owns the ledger write path. Plan edits reuse it inside their
// own transaction.
type materializer struct {
	stores  Stores
	metrics *metrics.Manager
}

// rebuild must run inside a transaction.
func (m *materializer) rebuild(ctx context.Context, plan *domain.Plan) ([]domain.ScheduleDay, []LedgerWarning, error) {
	loc, err := calendar.LoadLocation(plan.Timezone)
	if err != nil {
		return nil, nil, validationError("%v", err)
	}
	days, warnings, err := BuildLedger(plan, loc)
	if err != nil {
		return nil, nil, err
	}

	// 1. Clear the old ledger and every session that never started
	if _, err := m.stores.Schedule.DeleteByPlanID(ctx, plan.ID); err != nil {
		return nil, nil, fmt.Errorf("clear schedule: %w", err)
	}
	dropped, err := m.stores.Sessions.DeleteUnstarted(ctx, plan.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("drop unstarted sessions: %w", err)
	}
	if _, err := m.stores.Progress.DeleteBySessionIDs(ctx, dropped); err != nil {
		return nil, nil, fmt.Errorf("drop progress of unstarted sessions: %w", err)
	}

	// 2. Insert the new ledger
	if err := m.stores.Schedule.InsertMany(ctx, days); err != nil {
		return nil, nil, fmt.Errorf("insert schedule: %w", err)
	}
	return days, warnings, nil
}

// report logs and counts a finished rebuild. Called after commit so retried
// transactions do not log twice.
func (m *materializer) report(plan *domain.Plan, days []domain.ScheduleDay, warnings []LedgerWarning) {
	for _, w := range warnings {
		log.WithFields(log.Fields{
			"plan_id": plan.ID.Hex(),
			"week":    w.WeekNumber,
			"tag":     w.Tag,
		}).Warnf("schedule: %s, treating slot as rest day", w)
	}
	log.WithFields(log.Fields{"plan_id": plan.ID.Hex(), "days": len(days)}).Debug("schedule materialized")
	if m.metrics != nil {
		m.metrics.CounterMaterializations.Inc()
		m.metrics.CounterUnmatchedDayTags.Add(float64(len(warnings)))
		m.metrics.HistMaterializeDays.Observe(float64(len(days)))
	}
}

// scheduleService implements the ScheduleService interface.
type scheduleService struct {
	*materializer
	cache cache.PlanCache
	clock Clock
}

// NewScheduleService creates a new instance of scheduleService.
func NewScheduleService(stores Stores, planCache cache.PlanCache, m *metrics.Manager, clock Clock) ScheduleService {
	if planCache == nil {
		planCache = cache.Noop{}
	}
	return &scheduleService{
		materializer: &materializer{stores: stores, metrics: m},
		cache:        planCache,
		clock:        clock,
	}
}

func (s *scheduleService) Materialize(ctx context.Context, userID, planID primitive.ObjectID) ([]domain.ScheduleDay, error) {
	var (
		plan     *domain.Plan
		days     []domain.ScheduleDay
		warnings []LedgerWarning
	)
	err := s.stores.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		plan, err = loadOwnedPlan(ctx, s.stores.Plans, userID, planID)
		if err != nil {
			return err
		}
		if plan.Status == domain.PlanCancelled || plan.Status == domain.PlanCompleted {
			return fmt.Errorf("%w: plan is %s", ErrConflict, plan.Status)
		}
		days, warnings, err = s.rebuild(ctx, plan)
		return err
	})
	s.cache.InvalidatePlan(planID.Hex())
	if err != nil {
		return nil, err
	}
	s.report(plan, days, warnings)
	return days, nil
}

func (s *scheduleService) GetSchedule(ctx context.Context, userID, planID primitive.ObjectID) ([]domain.ScheduleDay, error) {
	if _, err := loadOwnedPlan(ctx, s.stores.Plans, userID, planID); err != nil {
		return nil, err
	}
	var days []domain.ScheduleDay
	if s.cache.GetSchedule(planID.Hex(), &days) {
		return days, nil
	}
	days, err := s.stores.Schedule.GetByPlanID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	s.cache.SetSchedule(planID.Hex(), days)
	return days, nil
}

func (s *scheduleService) Today(ctx context.Context, userID, planID primitive.ObjectID) (*domain.ScheduleDay, error) {
	plan, err := loadOwnedPlan(ctx, s.stores.Plans, userID, planID)
	if err != nil {
		return nil, err
	}
	loc, err := calendar.LoadLocation(plan.Timezone)
	if err != nil {
		return nil, validationError("%v", err)
	}
	start, err := calendar.ParseDate(plan.StartDate, loc)
	if err != nil {
		return nil, validationError("start date: %v", err)
	}
	dayIndex := calendar.DayIndexOf(start, calendar.Midnight(s.clock.now(), loc))
	if dayIndex < 1 || dayIndex > plan.WeekCount()*7 {
		return nil, ErrNotInPlanWindow
	}

	days, err := s.GetSchedule(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	for i := range days {
		if days[i].DayIndex == dayIndex {
			return &days[i], nil
		}
	}
	return nil, ErrNotInPlanWindow
}
