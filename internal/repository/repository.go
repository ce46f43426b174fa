package repository

import (
	"alcyxob/workout-planner/internal/domain"
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrDuplicate    = RepositoryError("duplicate key")
	ErrUpdateFailed = RepositoryError("update failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// TxManager runs fn inside one storage transaction. Repository calls made
// with the ctx handed to fn take part in it; any error rolls everything back.
// Transactions must not be nested.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
}

// PlanRepository defines the interface for interacting with plan data.
type PlanRepository interface {
	Create(ctx context.Context, plan *domain.Plan) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Plan, error)
	GetByUserID(ctx context.Context, userID primitive.ObjectID) ([]domain.Plan, error)
	Update(ctx context.Context, plan *domain.Plan) error
}

// ScheduleRepository stores the day ledger. Only the materializer writes it.
type ScheduleRepository interface {
	DeleteByPlanID(ctx context.Context, planID primitive.ObjectID) (int64, error)
	InsertMany(ctx context.Context, days []domain.ScheduleDay) error
	GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.ScheduleDay, error) // Ordered by dayIndex
}

// SessionRepository defines the interface for workout sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.WorkoutSession) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.WorkoutSession, error)
	// FindOpen returns the pending/in_progress session of a plan day, or ErrNotFound.
	FindOpen(ctx context.Context, planID primitive.ObjectID, weekNumber int, day domain.Weekday) (*domain.WorkoutSession, error)
	GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.WorkoutSession, error)
	Update(ctx context.Context, session *domain.WorkoutSession) error
	// DeleteUnstarted removes every session of the plan whose StartedAt is unset
	// and returns the removed ids.
	DeleteUnstarted(ctx context.Context, planID primitive.ObjectID) ([]primitive.ObjectID, error)
}

// ProgressRepository stores ExerciseProgress rows keyed by (sessionId, exerciseOrder).
type ProgressRepository interface {
	CreateMany(ctx context.Context, rows []domain.ExerciseProgress) error
	Get(ctx context.Context, sessionID primitive.ObjectID, exerciseOrder int) (*domain.ExerciseProgress, error)
	GetBySessionID(ctx context.Context, sessionID primitive.ObjectID) ([]domain.ExerciseProgress, error) // Ordered by exerciseOrder
	GetBySessionIDs(ctx context.Context, sessionIDs []primitive.ObjectID) ([]domain.ExerciseProgress, error)
	// Upsert writes the row identified by (SessionID, ExerciseOrder).
	Upsert(ctx context.Context, row *domain.ExerciseProgress) error
	DeleteBySessionIDs(ctx context.Context, sessionIDs []primitive.ObjectID) (int64, error)
}
