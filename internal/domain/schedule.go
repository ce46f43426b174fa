// internal/domain/schedule.go
package domain

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ScheduleDay is one calendar day of a materialized plan. The ledger holds
// exactly WeekCount*7 rows per plan, one per DayIndex.
type ScheduleDay struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PlanID               primitive.ObjectID `bson:"planId" json:"planId"`
	DayIndex             int                `bson:"dayIndex" json:"dayIndex"`     // 1-based
	WeekNumber           int                `bson:"weekNumber" json:"weekNumber"` // ceil(DayIndex/7)
	DayAbbrev            Weekday            `bson:"dayAbbrev" json:"dayAbbrev"`
	CalendarDate         string             `bson:"calendarDate" json:"calendarDate"` // YYYY-MM-DD
	IsRest               bool               `bson:"isRest" json:"isRest"`
	PlannedExerciseCount int                `bson:"plannedExerciseCount" json:"plannedExerciseCount"`
	SessionTitle         string             `bson:"sessionTitle,omitempty" json:"sessionTitle,omitempty"`
	SessionOrder         int                `bson:"sessionOrder,omitempty" json:"sessionOrder,omitempty"` // 1-based across the plan, 0 on rest days
}
