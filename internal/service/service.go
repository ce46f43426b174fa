package service

import (
	"alcyxob/workout-planner/internal/domain"
	"alcyxob/workout-planner/internal/repository"
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Stores bundles the repositories the planning services work with. Every
// multi-step write goes through Tx.
type Stores struct {
	Users    repository.UserRepository
	Plans    repository.PlanRepository
	Schedule repository.ScheduleRepository
	Sessions repository.SessionRepository
	Progress repository.ProgressRepository
	Tx       repository.TxManager
}

// Clock returns the current instant. Services take one so tests can pin "today".
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

// loadOwnedPlan fetches a plan and hides plans of other users behind not-found.
func loadOwnedPlan(ctx context.Context, plans repository.PlanRepository, userID, planID primitive.ObjectID) (*domain.Plan, error) {
	plan, err := plans.GetByID(ctx, planID)
	if err != nil {
		return nil, translateNotFound(err, ErrPlanNotFound)
	}
	if plan.UserID != userID {
		return nil, ErrPlanNotFound
	}
	return plan, nil
}

// loadOwnedSession does the same for sessions.
func loadOwnedSession(ctx context.Context, sessions repository.SessionRepository, userID, sessionID primitive.ObjectID) (*domain.WorkoutSession, error) {
	session, err := sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, translateNotFound(err, ErrSessionNotFound)
	}
	if session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return session, nil
}
