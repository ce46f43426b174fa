// internal/domain/session.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SessionStatus is the lifecycle of a WorkoutSession:
// pending -> in_progress -> completed | cancelled.
type SessionStatus string

const (
	SessionPending    SessionStatus = "pending"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionCancelled  SessionStatus = "cancelled"
)

// Terminal reports whether no further writes are accepted for the session.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

// WorkoutSession is one concrete execution of a plan day. It is created lazily
// on first interaction with that day.
type WorkoutSession struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PlanID               primitive.ObjectID `bson:"planId" json:"planId"`
	UserID               primitive.ObjectID `bson:"userId" json:"userId"` // Denormalized for ownership checks
	WeekNumber           int                `bson:"weekNumber" json:"weekNumber"`
	DayAbbrev            Weekday            `bson:"dayAbbrev" json:"dayAbbrev"`
	Title                string             `bson:"title,omitempty" json:"title,omitempty"`
	Status               SessionStatus      `bson:"status" json:"status"`
	StartedAt            *time.Time         `bson:"startedAt,omitempty" json:"startedAt,omitempty"`
	CompletedAt          *time.Time         `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	TotalDurationSeconds int                `bson:"totalDurationSeconds" json:"totalDurationSeconds"`
	WarmupSeconds        int                `bson:"warmupSeconds,omitempty" json:"warmupSeconds,omitempty"`
	CreatedAt            time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ExerciseStatus is the lifecycle of one ExerciseProgress row.
type ExerciseStatus string

const (
	ExercisePending    ExerciseStatus = "pending"
	ExerciseInProgress ExerciseStatus = "in_progress"
	ExerciseCompleted  ExerciseStatus = "completed"
	ExerciseSkipped    ExerciseStatus = "skipped"
	ExerciseCancelled  ExerciseStatus = "cancelled"
)

func (s ExerciseStatus) Valid() bool {
	switch s {
	case ExercisePending, ExerciseInProgress, ExerciseCompleted, ExerciseSkipped, ExerciseCancelled:
		return true
	}
	return false
}

// Terminal reports whether the status closes the exercise for this attempt.
func (s ExerciseStatus) Terminal() bool {
	return s == ExerciseCompleted || s == ExerciseSkipped || s == ExerciseCancelled
}

// CanTransitionTo encodes the per-exercise rules: nothing moves back to pending,
// completed only accepts a repeated completed write, skipped and cancelled
// exercises may be revisited freely while the session is open.
func (s ExerciseStatus) CanTransitionTo(next ExerciseStatus) bool {
	if !next.Valid() {
		return false
	}
	switch s {
	case ExercisePending:
		return true
	case ExerciseCompleted:
		return next == ExerciseCompleted
	default:
		return next != ExercisePending
	}
}

// FeedbackSentiment is the user's quick reaction to an exercise.
type FeedbackSentiment string

const (
	SentimentLike    FeedbackSentiment = "like"
	SentimentDislike FeedbackSentiment = "dislike"
	SentimentHard    FeedbackSentiment = "hard"
)

func (f FeedbackSentiment) Valid() bool {
	return f == SentimentLike || f == SentimentDislike || f == SentimentHard
}

// ExerciseProgress records the outcome of one exercise within a session.
// (SessionID, ExerciseOrder) is unique; ExerciseOrder is the 0-based original
// index into the planned session's exercise list.
type ExerciseProgress struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID         primitive.ObjectID `bson:"sessionId" json:"sessionId"`
	ExerciseOrder     int                `bson:"exerciseOrder" json:"exerciseOrder"`
	ExerciseName      string             `bson:"exerciseName" json:"exerciseName"`
	SeriesTotal       int                `bson:"seriesTotal" json:"seriesTotal"`
	Status            ExerciseStatus     `bson:"status" json:"status"`
	SeriesCompleted   int                `bson:"seriesCompleted" json:"seriesCompleted"`
	TimeSpentSeconds  int                `bson:"timeSpentSeconds" json:"timeSpentSeconds"`
	FeedbackComment   string             `bson:"feedbackComment,omitempty" json:"feedbackComment,omitempty"`
	FeedbackSentiment FeedbackSentiment  `bson:"feedbackSentiment,omitempty" json:"feedbackSentiment,omitempty"`
	CompletedAt       *time.Time         `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}
