package service

import (
	"alcyxob/workout-planner/internal/cache"
	"alcyxob/workout-planner/internal/domain"
	"alcyxob/workout-planner/internal/metrics"
	"alcyxob/workout-planner/internal/repository"
	"alcyxob/workout-planner/internal/timer"
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxFeedbackCommentLength = 1000

// ExerciseOutcome is one write against an ExerciseProgress row.
type ExerciseOutcome struct {
	Status           domain.ExerciseStatus
	SeriesCompleted  int
	TimeSpentSeconds int
}

// HydratedExercise pairs the prescription with its persisted progress.
// Exercise is nil when the plan no longer carries the session.
type HydratedExercise struct {
	Order    int                     `json:"order"`
	Exercise *domain.Exercise        `json:"exercise,omitempty"`
	Progress domain.ExerciseProgress `json:"progress"`
}

// HydratedSession is a session ready to be resumed. Pointer is the original
// order of the first exercise not completed yet (the last one when all are,
// -1 for an empty session). DisplayOrder lists the original orders a client
// still has to work through.
type HydratedSession struct {
	Session      domain.WorkoutSession `json:"session"`
	Exercises    []HydratedExercise    `json:"exercises"`
	Pointer      int                   `json:"pointer"`
	DisplayOrder []int                 `json:"displayOrder"`
	AllCompleted bool                  `json:"allCompleted"`
}

// ResumePointer finds the first non-completed row of rows ordered by
// exerciseOrder.
func ResumePointer(rows []domain.ExerciseProgress) int {
	if len(rows) == 0 {
		return -1
	}
	for _, row := range rows {
		if row.Status != domain.ExerciseCompleted {
			return row.ExerciseOrder
		}
	}
	return rows[len(rows)-1].ExerciseOrder
}

// --- Service Interface ---
type SessionService interface {
	// ResolveOrCreate returns the open session of a plan day, creating it and
	// its progress rows on first use. created reports which one happened.
	ResolveOrCreate(ctx context.Context, userID, planID primitive.ObjectID, weekNumber int, day domain.Weekday) (session *domain.WorkoutSession, created bool, err error)
	Hydrate(ctx context.Context, userID, sessionID primitive.ObjectID) (*HydratedSession, error)
	RecordExerciseOutcome(ctx context.Context, userID, sessionID primitive.ObjectID, exerciseOrder int, outcome ExerciseOutcome) (*domain.ExerciseProgress, error)
	RecordFeedback(ctx context.Context, userID, sessionID primitive.ObjectID, exerciseOrder int, sentiment domain.FeedbackSentiment, comment string) (*domain.ExerciseProgress, error)
	RecordWarmup(ctx context.Context, userID, sessionID primitive.ObjectID, seconds int) (*domain.WorkoutSession, error)
	CompleteSession(ctx context.Context, userID, sessionID primitive.ObjectID, totalDurationSeconds int) (*domain.WorkoutSession, error)
	CancelSession(ctx context.Context, userID, sessionID primitive.ObjectID) (*domain.WorkoutSession, error)
}

// sessionService implements the SessionService interface.
type sessionService struct {
	stores  Stores
	cache   cache.PlanCache
	metrics *metrics.Manager
	clock   Clock
}

// NewSessionService creates a new instance of sessionService.
func NewSessionService(stores Stores, planCache cache.PlanCache, m *metrics.Manager, clock Clock) SessionService {
	if planCache == nil {
		planCache = cache.Noop{}
	}
	return &sessionService{
		stores:  stores,
		cache:   planCache,
		metrics: m,
		clock:   clock,
	}
}

func (s *sessionService) ResolveOrCreate(ctx context.Context, userID, planID primitive.ObjectID, weekNumber int, day domain.Weekday) (*domain.WorkoutSession, bool, error) {
	if !day.Valid() {
		return nil, false, validationError("invalid day of week")
	}

	var (
		session *domain.WorkoutSession
		created bool
	)
	err := s.stores.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		created = false

		// 1. The plan must exist, belong to the user and be active
		plan, err := loadOwnedPlan(ctx, s.stores.Plans, userID, planID)
		if err != nil {
			return err
		}
		if !plan.IsActive() {
			return fmt.Errorf("%w (status %s)", ErrPlanNotActive, plan.Status)
		}

		// 2. The ledger must list the day as a training day
		if weekNumber < 1 || weekNumber > plan.WeekCount() {
			return ErrScheduleDayMissing
		}
		ledgerDay, err := s.findLedgerDay(ctx, planID, weekNumber, day)
		if err != nil {
			return err
		}
		if ledgerDay.IsRest {
			return ErrRestDay
		}
		planned, ok := plan.SessionFor(weekNumber, day)
		if !ok {
			return ErrRestDay
		}

		// 3. Reuse the open session if there is one
		session, err = s.stores.Sessions.FindOpen(ctx, planID, weekNumber, day)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("find open session: %w", err)
		}

		// 4. Otherwise create it with one pending row per exercise
		session = &domain.WorkoutSession{
			PlanID:     planID,
			UserID:     userID,
			WeekNumber: weekNumber,
			DayAbbrev:  day,
			Title:      planned.Title,
			Status:     domain.SessionPending,
		}
		if _, err := s.stores.Sessions.Create(ctx, session); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrDuplicateOpenSession
			}
			return fmt.Errorf("create session: %w", err)
		}
		rows := make([]domain.ExerciseProgress, len(planned.Exercises))
		for i, ex := range planned.Exercises {
			rows[i] = domain.ExerciseProgress{
				SessionID:     session.ID,
				ExerciseOrder: i,
				ExerciseName:  ex.Name,
				SeriesTotal:   ex.Series,
				Status:        domain.ExercisePending,
			}
		}
		if err := s.stores.Progress.CreateMany(ctx, rows); err != nil {
			return fmt.Errorf("create progress rows: %w", err)
		}
		created = true
		return nil
	})

	// A concurrent request won the race: hand back its session.
	if errors.Is(err, ErrDuplicateOpenSession) {
		if existing, findErr := s.stores.Sessions.FindOpen(ctx, planID, weekNumber, day); findErr == nil {
			return existing, false, nil
		}
	}
	if err != nil {
		return nil, false, err
	}

	if created {
		s.cache.InvalidatePlan(planID.Hex())
		if s.metrics != nil {
			s.metrics.CounterSessionsCreated.Inc()
		}
		log.WithFields(log.Fields{
			"plan_id":    planID.Hex(),
			"session_id": session.ID.Hex(),
			"week":       weekNumber,
			"day":        day,
		}).Info("session created")
	}
	return session, created, nil
}

// findLedgerDay locates the ledger row of a (week, day) pair. Each week is a
// 7-day window, so the pair is unique.
func (s *sessionService) findLedgerDay(ctx context.Context, planID primitive.ObjectID, weekNumber int, day domain.Weekday) (*domain.ScheduleDay, error) {
	days, err := s.stores.Schedule.GetByPlanID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	for i := range days {
		if days[i].WeekNumber == weekNumber && days[i].DayAbbrev == day {
			return &days[i], nil
		}
	}
	return nil, ErrScheduleDayMissing
}

func (s *sessionService) Hydrate(ctx context.Context, userID, sessionID primitive.ObjectID) (*HydratedSession, error) {
	session, err := loadOwnedSession(ctx, s.stores.Sessions, userID, sessionID)
	if err != nil {
		return nil, err
	}
	rows, err := s.stores.Progress.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}

	var planned *domain.PlannedSession
	if plan, err := s.stores.Plans.GetByID(ctx, session.PlanID); err == nil {
		planned, _ = plan.SessionFor(session.WeekNumber, session.DayAbbrev)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("load plan: %w", err)
	}

	h := &HydratedSession{
		Session:      *session,
		Exercises:    make([]HydratedExercise, len(rows)),
		Pointer:      ResumePointer(rows),
		DisplayOrder: []int{},
		AllCompleted: len(rows) > 0,
	}
	for i, row := range rows {
		h.Exercises[i] = HydratedExercise{Order: row.ExerciseOrder, Progress: row}
		if planned != nil && row.ExerciseOrder < len(planned.Exercises) {
			ex := planned.Exercises[row.ExerciseOrder]
			h.Exercises[i].Exercise = &ex
		}
		if row.Status != domain.ExerciseCompleted {
			h.DisplayOrder = append(h.DisplayOrder, row.ExerciseOrder)
			h.AllCompleted = false
		}
	}
	return h, nil
}

// openSessionForWrite loads a session and rejects writes to closed ones.
func (s *sessionService) openSessionForWrite(ctx context.Context, userID, sessionID primitive.ObjectID, action string) (*domain.WorkoutSession, error) {
	session, err := loadOwnedSession(ctx, s.stores.Sessions, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		log.WithFields(log.Fields{
			"session_id": sessionID.Hex(),
			"status":     session.Status,
			"action":     action,
			"client_bug": true,
		}).Warn("write to closed session rejected")
		return nil, fmt.Errorf("%w (status %s)", ErrSessionTerminal, session.Status)
	}
	return session, nil
}

// markStarted moves a pending session to in_progress and stamps startedAt.
func (s *sessionService) markStarted(session *domain.WorkoutSession) bool {
	changed := false
	if session.Status == domain.SessionPending {
		session.Status = domain.SessionInProgress
		changed = true
	}
	if session.StartedAt == nil {
		now := s.clock.now()
		session.StartedAt = &now
		changed = true
	}
	return changed
}

func (s *sessionService) RecordExerciseOutcome(ctx context.Context, userID, sessionID primitive.ObjectID, exerciseOrder int, outcome ExerciseOutcome) (*domain.ExerciseProgress, error) {
	if !outcome.Status.Valid() || outcome.Status == domain.ExercisePending {
		return nil, fmt.Errorf("%w: status %q", ErrInvalidExerciseOutcome, outcome.Status)
	}
	if exerciseOrder < 0 {
		return nil, fmt.Errorf("%w: negative exercise order", ErrInvalidExerciseOutcome)
	}

	var (
		row     *domain.ExerciseProgress
		session *domain.WorkoutSession
	)
	err := s.stores.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		session, err = s.openSessionForWrite(ctx, userID, sessionID, "record_outcome")
		if err != nil {
			return err
		}
		row, err = s.stores.Progress.Get(ctx, sessionID, exerciseOrder)
		if err != nil {
			return translateNotFound(err, ErrExerciseNotFound)
		}
		if !row.Status.CanTransitionTo(outcome.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrExerciseTransition, row.Status, outcome.Status)
		}

		row.Status = outcome.Status
		row.SeriesCompleted = clampSeries(outcome.SeriesCompleted, row.SeriesTotal)
		row.TimeSpentSeconds = max(outcome.TimeSpentSeconds, 0)
		switch outcome.Status {
		case domain.ExerciseSkipped, domain.ExerciseCancelled:
			row.SeriesCompleted = 0
			row.CompletedAt = nil
		case domain.ExerciseCompleted:
			if row.CompletedAt == nil {
				now := s.clock.now()
				row.CompletedAt = &now
			}
		}
		if err := s.stores.Progress.Upsert(ctx, row); err != nil {
			return fmt.Errorf("write progress: %w", err)
		}

		if s.markStarted(session) {
			if err := s.stores.Sessions.Update(ctx, session); err != nil {
				return translateNotFound(err, ErrSessionNotFound)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidatePlan(session.PlanID.Hex())
	if s.metrics != nil {
		s.metrics.CounterExerciseOutcomes.WithLabelValues(string(outcome.Status)).Inc()
	}
	log.WithFields(log.Fields{
		"session_id":     sessionID.Hex(),
		"exercise_order": exerciseOrder,
		"status":         outcome.Status,
	}).Debug("exercise outcome recorded")
	return row, nil
}

// clampSeries bounds reported series to [0, total]; total 0 means unbounded.
func clampSeries(n, total int) int {
	if n < 0 {
		return 0
	}
	if total > 0 && n > total {
		return total
	}
	return n
}

func (s *sessionService) RecordFeedback(ctx context.Context, userID, sessionID primitive.ObjectID, exerciseOrder int, sentiment domain.FeedbackSentiment, comment string) (*domain.ExerciseProgress, error) {
	if sentiment != "" && !sentiment.Valid() {
		return nil, fmt.Errorf("%w: sentiment %q", ErrInvalidFeedback, sentiment)
	}
	comment = strings.TrimSpace(comment)
	if sentiment == "" && comment == "" {
		return nil, fmt.Errorf("%w: empty feedback", ErrInvalidFeedback)
	}
	if len(comment) > maxFeedbackCommentLength {
		return nil, fmt.Errorf("%w: comment longer than %d characters", ErrInvalidFeedback, maxFeedbackCommentLength)
	}

	var row *domain.ExerciseProgress
	err := s.stores.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.openSessionForWrite(ctx, userID, sessionID, "record_feedback"); err != nil {
			return err
		}
		var err error
		row, err = s.stores.Progress.Get(ctx, sessionID, exerciseOrder)
		if err != nil {
			return translateNotFound(err, ErrExerciseNotFound)
		}
		if sentiment != "" {
			row.FeedbackSentiment = sentiment
		}
		if comment != "" {
			row.FeedbackComment = comment
		}
		return s.stores.Progress.Upsert(ctx, row)
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (s *sessionService) RecordWarmup(ctx context.Context, userID, sessionID primitive.ObjectID, seconds int) (*domain.WorkoutSession, error) {
	if seconds <= 0 {
		return nil, validationError("warm-up seconds must be positive")
	}
	var session *domain.WorkoutSession
	err := s.stores.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		session, err = s.openSessionForWrite(ctx, userID, sessionID, "record_warmup")
		if err != nil {
			return err
		}
		session.WarmupSeconds += seconds
		s.markStarted(session)
		return translateNotFound(s.stores.Sessions.Update(ctx, session), ErrSessionNotFound)
	})
	if err != nil {
		return nil, err
	}
	s.cache.InvalidatePlan(session.PlanID.Hex())
	return session, nil
}

// CompleteSession closes a session even when some exercises were never done.
// Completing it twice is a no-op.
func (s *sessionService) CompleteSession(ctx context.Context, userID, sessionID primitive.ObjectID, totalDurationSeconds int) (*domain.WorkoutSession, error) {
	var (
		session *domain.WorkoutSession
		changed bool
	)
	err := s.stores.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		changed = false
		session, err = loadOwnedSession(ctx, s.stores.Sessions, userID, sessionID)
		if err != nil {
			return err
		}
		switch session.Status {
		case domain.SessionCompleted:
			return nil
		case domain.SessionCancelled:
			return ErrCompleteCancelled
		}

		now := s.clock.now()
		s.markStarted(session)
		session.Status = domain.SessionCompleted
		session.CompletedAt = &now
		session.TotalDurationSeconds = max(totalDurationSeconds, 0)
		changed = true
		return translateNotFound(s.stores.Sessions.Update(ctx, session), ErrSessionNotFound)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.closed(session)
	}
	return session, nil
}

// CancelSession abandons an open session. Cancelling twice is a no-op.
func (s *sessionService) CancelSession(ctx context.Context, userID, sessionID primitive.ObjectID) (*domain.WorkoutSession, error) {
	var (
		session *domain.WorkoutSession
		changed bool
	)
	err := s.stores.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		changed = false
		session, err = loadOwnedSession(ctx, s.stores.Sessions, userID, sessionID)
		if err != nil {
			return err
		}
		switch session.Status {
		case domain.SessionCancelled:
			return nil
		case domain.SessionCompleted:
			return fmt.Errorf("%w (status %s)", ErrSessionTerminal, session.Status)
		}
		session.Status = domain.SessionCancelled
		changed = true
		return translateNotFound(s.stores.Sessions.Update(ctx, session), ErrSessionNotFound)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.closed(session)
	}
	return session, nil
}

func (s *sessionService) closed(session *domain.WorkoutSession) {
	s.cache.InvalidatePlan(session.PlanID.Hex())
	if s.metrics != nil {
		s.metrics.CounterSessionsClosed.WithLabelValues(string(session.Status)).Inc()
	}
	log.WithFields(log.Fields{
		"session_id": session.ID.Hex(),
		"status":     session.Status,
		"duration":   session.TotalDurationSeconds,
	}).Info("session closed")
}

// --- Timer bridge ---

// sessionRecorder lets a timer.Runner persist outcomes through the service.
type sessionRecorder struct {
	sessions  SessionService
	userID    primitive.ObjectID
	sessionID primitive.ObjectID
}

// NewOutcomeRecorder binds a session for a timer.Runner.
func NewOutcomeRecorder(sessions SessionService, userID, sessionID primitive.ObjectID) timer.OutcomeRecorder {
	return &sessionRecorder{sessions: sessions, userID: userID, sessionID: sessionID}
}

func (r *sessionRecorder) RecordOutcome(ctx context.Context, exerciseOrder int, outcome timer.Outcome) error {
	_, err := r.sessions.RecordExerciseOutcome(ctx, r.userID, r.sessionID, exerciseOrder, ExerciseOutcome{
		Status:           outcome.Status,
		SeriesCompleted:  outcome.SeriesCompleted,
		TimeSpentSeconds: outcome.TimeSpentSeconds,
	})
	// Rejections by the session rules fail the same way on every attempt.
	for _, category := range []error{ErrValidation, ErrConflict, ErrIllegalState, ErrNotFound} {
		if errors.Is(err, category) {
			return timer.Permanent(err)
		}
	}
	return err
}
