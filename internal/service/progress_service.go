package service

import (
	"alcyxob/workout-planner/internal/cache"
	"alcyxob/workout-planner/internal/calendar"
	"alcyxob/workout-planner/internal/domain"
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SessionStats summarizes one persisted session.
type SessionStats struct {
	SessionID          primitive.ObjectID   `json:"sessionId"`
	WeekNumber         int                  `json:"weekNumber"`
	Day                domain.Weekday       `json:"day"`
	Title              string               `json:"title,omitempty"`
	Status             domain.SessionStatus `json:"status"`
	ExercisesCompleted int                  `json:"exercisesCompleted"`
	ExercisesTotal     int                  `json:"exercisesTotal"`
	CompletionPercent  float64              `json:"completionPercent"`
	CompletedAt        *time.Time           `json:"completedAt,omitempty"`
}

// PlanProgress is derived from persisted rows only.
type PlanProgress struct {
	PlanID             primitive.ObjectID `json:"planId"`
	AsOf               string             `json:"asOf"` // today in the plan's timezone
	SessionsCompleted  int                `json:"sessionsCompleted"`
	ExercisesCompleted int                `json:"exercisesCompleted"`
	TotalSeries        int                `json:"totalSeries"`
	TotalTimeSeconds   int                `json:"totalTimeSeconds"`   // sum of exercise time
	SessionTimeSeconds int                `json:"sessionTimeSeconds"` // sum of completed session durations
	CurrentStreak      int                `json:"currentStreak"`
	TrainingDays       int                `json:"trainingDays"`
	ConsistencyPercent float64            `json:"consistencyPercent"`
	Sessions           []SessionStats     `json:"sessions"`
}

// percent returns part/whole*100 truncated to two decimals, 0 when whole is 0.
func percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part*10000/whole) / 100
}

// --- Service Interface ---
type ProgressService interface {
	PlanProgress(ctx context.Context, userID, planID primitive.ObjectID) (*PlanProgress, error)
}

// progressService implements the ProgressService interface.
type progressService struct {
	stores Stores
	cache  cache.PlanCache
	clock  Clock
}

// NewProgressService creates a new instance of progressService.
func NewProgressService(stores Stores, planCache cache.PlanCache, clock Clock) ProgressService {
	if planCache == nil {
		planCache = cache.Noop{}
	}
	return &progressService{stores: stores, cache: planCache, clock: clock}
}

func (s *progressService) PlanProgress(ctx context.Context, userID, planID primitive.ObjectID) (*PlanProgress, error) {
	plan, err := loadOwnedPlan(ctx, s.stores.Plans, userID, planID)
	if err != nil {
		return nil, err
	}
	loc, err := calendar.LoadLocation(plan.Timezone)
	if err != nil {
		return nil, validationError("%v", err)
	}
	today := calendar.Midnight(s.clock.now(), loc)
	asOf := calendar.FormatDate(today, loc)

	var cached PlanProgress
	if s.cache.GetProgress(planID.Hex(), &cached) && cached.AsOf == asOf {
		return &cached, nil
	}

	ledger, err := s.stores.Schedule.GetByPlanID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	sessions, err := s.stores.Sessions.GetByPlanID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	ids := make([]primitive.ObjectID, len(sessions))
	for i := range sessions {
		ids[i] = sessions[i].ID
	}
	rows, err := s.stores.Progress.GetBySessionIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}

	progress := Aggregate(planID, ledger, sessions, rows, today, loc)
	s.cache.SetProgress(planID.Hex(), progress)
	return progress, nil
}

type planDay struct {
	week int
	day  domain.Weekday
}

// Aggregate reduces persisted state into plan statistics. Consistency divides
// the distinct plan days with a completed session by the training days of the
// ledger, so lazily created sessions do not skew it.
func Aggregate(planID primitive.ObjectID, ledger []domain.ScheduleDay, sessions []domain.WorkoutSession, rows []domain.ExerciseProgress, today time.Time, loc *time.Location) *PlanProgress {
	p := &PlanProgress{
		PlanID:   planID,
		AsOf:     calendar.FormatDate(today, loc),
		Sessions: make([]SessionStats, 0, len(sessions)),
	}

	for _, d := range ledger {
		if !d.IsRest {
			p.TrainingDays++
		}
	}

	bySession := make(map[primitive.ObjectID][]domain.ExerciseProgress, len(sessions))
	for _, row := range rows {
		bySession[row.SessionID] = append(bySession[row.SessionID], row)
		if row.Status == domain.ExerciseCompleted {
			p.ExercisesCompleted++
		}
		p.TotalSeries += row.SeriesCompleted
		p.TotalTimeSeconds += row.TimeSpentSeconds
	}

	completedDays := make(map[planDay]bool)
	completedDates := make(map[string]bool)
	for _, ws := range sessions {
		stats := SessionStats{
			SessionID:   ws.ID,
			WeekNumber:  ws.WeekNumber,
			Day:         ws.DayAbbrev,
			Title:       ws.Title,
			Status:      ws.Status,
			CompletedAt: ws.CompletedAt,
		}
		for _, row := range bySession[ws.ID] {
			stats.ExercisesTotal++
			if row.Status == domain.ExerciseCompleted {
				stats.ExercisesCompleted++
			}
		}
		stats.CompletionPercent = percent(stats.ExercisesCompleted, stats.ExercisesTotal)
		p.Sessions = append(p.Sessions, stats)

		if ws.Status != domain.SessionCompleted {
			continue
		}
		p.SessionsCompleted++
		p.SessionTimeSeconds += ws.TotalDurationSeconds
		completedDays[planDay{ws.WeekNumber, ws.DayAbbrev}] = true
		if ws.CompletedAt != nil {
			completedDates[calendar.FormatDate(*ws.CompletedAt, loc)] = true
		}
	}

	p.ConsistencyPercent = percent(len(completedDays), p.TrainingDays)
	if p.ConsistencyPercent > 100 {
		p.ConsistencyPercent = 100
	}

	for day := today; completedDates[calendar.FormatDate(day, loc)]; day = day.AddDate(0, 0, -1) {
		p.CurrentStreak++
	}
	return p
}
