package service

import (
	"alcyxob/workout-planner/internal/cache"
	"alcyxob/workout-planner/internal/calendar"
	"alcyxob/workout-planner/internal/domain"
	"alcyxob/workout-planner/internal/metrics"
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/multierr"
)

// PlanValidationError carries every problem found in a plan at once.
type PlanValidationError struct {
	Problems []error
}

func (e *PlanValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return "invalid plan: " + strings.Join(msgs, "; ")
}

func (e *PlanValidationError) Unwrap() error { return ErrValidation }

// ValidatePlan checks the structure of a plan. Unknown day tags are allowed
// here; the schedule turns them into rest days.
func ValidatePlan(plan *domain.Plan) error {
	var err error
	if strings.TrimSpace(plan.Name) == "" {
		err = multierr.Append(err, fmt.Errorf("name is required"))
	}
	loc, tzErr := calendar.LoadLocation(plan.Timezone)
	if tzErr != nil {
		err = multierr.Append(err, tzErr)
	} else if _, dateErr := calendar.ParseDate(plan.StartDate, loc); dateErr != nil {
		err = multierr.Append(err, dateErr)
	}
	if len(plan.Weeks) == 0 {
		err = multierr.Append(err, fmt.Errorf("plan needs at least one week"))
	}

	for w, week := range plan.Weeks {
		seen := make(map[domain.Weekday]bool, len(week.Sessions))
		for s, ps := range week.Sessions {
			where := fmt.Sprintf("week %d session %d", w+1, s+1)
			if strings.TrimSpace(ps.Title) == "" {
				err = multierr.Append(err, fmt.Errorf("%s: title is required", where))
			}
			if day, dayErr := domain.ParseWeekday(ps.Day); dayErr == nil {
				if seen[day] {
					err = multierr.Append(err, fmt.Errorf("%s: day %s used twice in the week", where, day))
				}
				seen[day] = true
			}
			for e, ex := range ps.Exercises {
				exWhere := fmt.Sprintf("%s exercise %d", where, e+1)
				if strings.TrimSpace(ex.Name) == "" {
					err = multierr.Append(err, fmt.Errorf("%s: name is required", exWhere))
				}
				if ex.Series < 0 || ex.DurationSeconds < 0 || ex.RestSeconds < 0 {
					err = multierr.Append(err, fmt.Errorf("%s: negative series, duration or rest", exWhere))
				}
			}
		}
	}

	if err != nil {
		return &PlanValidationError{Problems: multierr.Errors(err)}
	}
	return nil
}

// PlanInput is the writable part of a plan.
type PlanInput struct {
	Name      string
	StartDate string
	Timezone  string
	Weeks     []domain.Week
}

// PlanUpdate replaces the fields that are set. The timezone is fixed at creation.
type PlanUpdate struct {
	Name      *string
	StartDate *string
	Weeks     []domain.Week
}

// --- Service Interface ---
type PlanService interface {
	Create(ctx context.Context, userID primitive.ObjectID, input PlanInput) (*domain.Plan, []LedgerWarning, error)
	Get(ctx context.Context, userID, planID primitive.ObjectID) (*domain.Plan, error)
	List(ctx context.Context, userID primitive.ObjectID) ([]domain.Plan, error)
	Update(ctx context.Context, userID, planID primitive.ObjectID, update PlanUpdate) (*domain.Plan, []LedgerWarning, error)
	SetStatus(ctx context.Context, userID, planID primitive.ObjectID, status domain.PlanStatus) (*domain.Plan, error)
}

// planService implements the PlanService interface.
type planService struct {
	*materializer
	cache           cache.PlanCache
	defaultTimezone string
}

// NewPlanService creates a new instance of planService.
func NewPlanService(stores Stores, planCache cache.PlanCache, m *metrics.Manager, defaultTimezone string) PlanService {
	if planCache == nil {
		planCache = cache.Noop{}
	}
	return &planService{
		materializer:    &materializer{stores: stores, metrics: m},
		cache:           planCache,
		defaultTimezone: defaultTimezone,
	}
}

// Create stores a draft plan and materializes it right away so the calendar
// can be previewed before activation.
func (s *planService) Create(ctx context.Context, userID primitive.ObjectID, input PlanInput) (*domain.Plan, []LedgerWarning, error) {
	if userID == primitive.NilObjectID {
		return nil, nil, validationError("user ID is required")
	}
	timezone := input.Timezone
	if timezone == "" {
		timezone = s.defaultTimezone
	}
	plan := &domain.Plan{
		UserID:    userID,
		Name:      strings.TrimSpace(input.Name),
		StartDate: input.StartDate,
		Timezone:  timezone,
		Status:    domain.PlanDraft,
		Weeks:     input.Weeks,
	}
	if err := ValidatePlan(plan); err != nil {
		return nil, nil, err
	}

	var (
		days     []domain.ScheduleDay
		warnings []LedgerWarning
	)
	err := s.stores.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.stores.Plans.Create(ctx, plan); err != nil {
			return fmt.Errorf("create plan: %w", err)
		}
		var err error
		days, warnings, err = s.rebuild(ctx, plan)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	s.report(plan, days, warnings)

	log.WithFields(log.Fields{"plan_id": plan.ID.Hex(), "user_id": userID.Hex(), "weeks": plan.WeekCount()}).Info("plan created")
	return plan, warnings, nil
}

func (s *planService) Get(ctx context.Context, userID, planID primitive.ObjectID) (*domain.Plan, error) {
	return loadOwnedPlan(ctx, s.stores.Plans, userID, planID)
}

func (s *planService) List(ctx context.Context, userID primitive.ObjectID) ([]domain.Plan, error) {
	plans, err := s.stores.Plans.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	if plans == nil {
		plans = []domain.Plan{}
	}
	return plans, nil
}

// Update edits an open plan and rebuilds its ledger in the same transaction.
func (s *planService) Update(ctx context.Context, userID, planID primitive.ObjectID, update PlanUpdate) (*domain.Plan, []LedgerWarning, error) {
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

		if update.Name != nil {
			plan.Name = strings.TrimSpace(*update.Name)
		}
		if update.StartDate != nil {
			plan.StartDate = *update.StartDate
		}
		if update.Weeks != nil {
			plan.Weeks = update.Weeks
		}
		if err := ValidatePlan(plan); err != nil {
			return err
		}

		if err := s.stores.Plans.Update(ctx, plan); err != nil {
			return translateNotFound(err, ErrPlanNotFound)
		}
		days, warnings, err = s.rebuild(ctx, plan)
		return err
	})
	s.cache.InvalidatePlan(planID.Hex())
	if err != nil {
		return nil, nil, err
	}
	s.report(plan, days, warnings)
	return plan, warnings, nil
}

// SetStatus moves a plan along draft -> active -> completed, with cancel
// allowed from any open status. Setting the current status again is a no-op.
func (s *planService) SetStatus(ctx context.Context, userID, planID primitive.ObjectID, status domain.PlanStatus) (*domain.Plan, error) {
	if !status.Valid() {
		return nil, validationError("unknown plan status %q", status)
	}
	var plan *domain.Plan
	err := s.stores.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		plan, err = loadOwnedPlan(ctx, s.stores.Plans, userID, planID)
		if err != nil {
			return err
		}
		if plan.Status == status {
			return nil
		}
		if !plan.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidPlanTransition, plan.Status, status)
		}
		plan.Status = status
		return translateNotFound(s.stores.Plans.Update(ctx, plan), ErrPlanNotFound)
	})
	s.cache.InvalidatePlan(planID.Hex())
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"plan_id": planID.Hex(), "status": plan.Status}).Info("plan status changed")
	return plan, nil
}
