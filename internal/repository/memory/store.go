// Package memory keeps every repository in process memory. It backs the
// "memory" database driver and the service tests.
package memory

import (
	"alcyxob/workout-planner/internal/domain"
	"alcyxob/workout-planner/internal/repository"
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type progressKey struct {
	sessionID primitive.ObjectID
	order     int
}

type tables struct {
	users    map[primitive.ObjectID]domain.User
	plans    map[primitive.ObjectID]domain.Plan
	schedule map[primitive.ObjectID]domain.ScheduleDay
	sessions map[primitive.ObjectID]domain.WorkoutSession
	progress map[progressKey]domain.ExerciseProgress
}

func newTables() tables {
	return tables{
		users:    make(map[primitive.ObjectID]domain.User),
		plans:    make(map[primitive.ObjectID]domain.Plan),
		schedule: make(map[primitive.ObjectID]domain.ScheduleDay),
		sessions: make(map[primitive.ObjectID]domain.WorkoutSession),
		progress: make(map[progressKey]domain.ExerciseProgress),
	}
}

// Store holds all tables behind one lock. Transactions are serialized and
// roll back by replaying their own undo log, so writes made outside the
// transaction survive a rollback.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	data tables
	now  func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		data: newTables(),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

type txKey struct{}

// undoLog collects the inverse of every write of one transaction.
type undoLog struct {
	steps []func()
}

// WithTransaction implements repository.TxManager. A nested call joins the
// transaction of ctx.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*undoLog); ok {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	undo := &undoLog{}
	if err := fn(context.WithValue(ctx, txKey{}, undo)); err != nil {
		s.mu.Lock()
		for i := len(undo.steps) - 1; i >= 0; i-- {
			undo.steps[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// record remembers the current value of m[k] in the transaction of ctx, if
// any. Call it with mu held, before the write.
func record[K comparable, V any](ctx context.Context, m map[K]V, k K) {
	undo, ok := ctx.Value(txKey{}).(*undoLog)
	if !ok {
		return
	}
	old, existed := m[k]
	undo.steps = append(undo.steps, func() {
		if existed {
			m[k] = old
		} else {
			delete(m, k)
		}
	})
}

// Repositories returned below share the store's tables.

func (s *Store) Users() repository.UserRepository        { return &userRepo{s} }
func (s *Store) Plans() repository.PlanRepository        { return &planRepo{s} }
func (s *Store) Schedule() repository.ScheduleRepository { return &scheduleRepo{s} }
func (s *Store) Sessions() repository.SessionRepository  { return &sessionRepo{s} }
func (s *Store) Progress() repository.ProgressRepository { return &progressRepo{s} }
func (s *Store) TxManager() repository.TxManager         { return s }

func clonePlan(p domain.Plan) domain.Plan {
	weeks := make([]domain.Week, len(p.Weeks))
	for i, w := range p.Weeks {
		sessions := make([]domain.PlannedSession, len(w.Sessions))
		for j, ps := range w.Sessions {
			ps.Exercises = append([]domain.Exercise(nil), ps.Exercises...)
			sessions[j] = ps
		}
		weeks[i] = domain.Week{Sessions: sessions}
	}
	p.Weeks = weeks
	return p
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneSession(ws domain.WorkoutSession) domain.WorkoutSession {
	ws.StartedAt = cloneTime(ws.StartedAt)
	ws.CompletedAt = cloneTime(ws.CompletedAt)
	return ws
}

func cloneProgress(p domain.ExerciseProgress) domain.ExerciseProgress {
	p.CompletedAt = cloneTime(p.CompletedAt)
	return p
}

// --- users ---

type userRepo struct{ s *Store }

func (r *userRepo) Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user.Email = strings.ToLower(user.Email)
	for _, u := range r.s.data.users {
		if u.Email == user.Email {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	user.ID = primitive.NewObjectID()
	user.CreatedAt = r.s.now()
	user.UpdatedAt = user.CreatedAt
	record(ctx, r.s.data.users, user.ID)
	r.s.data.users[user.ID] = *user
	return user.ID, nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	email = strings.ToLower(email)
	for _, u := range r.s.data.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.data.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

// --- plans ---

type planRepo struct{ s *Store }

func (r *planRepo) Create(ctx context.Context, plan *domain.Plan) (primitive.ObjectID, error) {
	if plan.UserID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("plan requires userId")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	plan.ID = primitive.NewObjectID()
	plan.CreatedAt = r.s.now()
	plan.UpdatedAt = plan.CreatedAt
	record(ctx, r.s.data.plans, plan.ID)
	r.s.data.plans[plan.ID] = clonePlan(*plan)
	return plan.ID, nil
}

func (r *planRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Plan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.data.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p = clonePlan(p)
	return &p, nil
}

func (r *planRepo) GetByUserID(_ context.Context, userID primitive.ObjectID) ([]domain.Plan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var plans []domain.Plan
	for _, p := range r.s.data.plans {
		if p.UserID == userID {
			plans = append(plans, clonePlan(p))
		}
	}
	sort.Slice(plans, func(i, j int) bool {
		if plans[i].CreatedAt.Equal(plans[j].CreatedAt) {
			return plans[i].ID.Hex() > plans[j].ID.Hex()
		}
		return plans[i].CreatedAt.After(plans[j].CreatedAt)
	})
	return plans, nil
}

func (r *planRepo) Update(ctx context.Context, plan *domain.Plan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.data.plans[plan.ID]
	if !ok {
		return repository.ErrNotFound
	}
	plan.UserID = existing.UserID
	plan.CreatedAt = existing.CreatedAt
	plan.UpdatedAt = r.s.now()
	record(ctx, r.s.data.plans, plan.ID)
	r.s.data.plans[plan.ID] = clonePlan(*plan)
	return nil
}

// --- schedule ---

type scheduleRepo struct{ s *Store }

func (r *scheduleRepo) DeleteByPlanID(ctx context.Context, planID primitive.ObjectID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, d := range r.s.data.schedule {
		if d.PlanID == planID {
			record(ctx, r.s.data.schedule, id)
			delete(r.s.data.schedule, id)
			n++
		}
	}
	return n, nil
}

func (r *scheduleRepo) InsertMany(ctx context.Context, days []domain.ScheduleDay) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	taken := make(map[progressKey]bool)
	for _, d := range r.s.data.schedule {
		taken[progressKey{d.PlanID, d.DayIndex}] = true
	}
	for _, d := range days {
		key := progressKey{d.PlanID, d.DayIndex}
		if taken[key] {
			return repository.ErrDuplicate
		}
		taken[key] = true
	}
	for i := range days {
		days[i].ID = primitive.NewObjectID()
		record(ctx, r.s.data.schedule, days[i].ID)
		r.s.data.schedule[days[i].ID] = days[i]
	}
	return nil
}

func (r *scheduleRepo) GetByPlanID(_ context.Context, planID primitive.ObjectID) ([]domain.ScheduleDay, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var days []domain.ScheduleDay
	for _, d := range r.s.data.schedule {
		if d.PlanID == planID {
			days = append(days, d)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].DayIndex < days[j].DayIndex })
	return days, nil
}

// --- sessions ---

type sessionRepo struct{ s *Store }

func isOpen(status domain.SessionStatus) bool {
	return status == domain.SessionPending || status == domain.SessionInProgress
}

func (r *sessionRepo) Create(ctx context.Context, session *domain.WorkoutSession) (primitive.ObjectID, error) {
	if session.PlanID == primitive.NilObjectID || session.UserID == primitive.NilObjectID || !session.DayAbbrev.Valid() {
		return primitive.NilObjectID, errors.New("session requires planId, userId and a valid day")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if isOpen(session.Status) {
		for _, ws := range r.s.data.sessions {
			if isOpen(ws.Status) && ws.PlanID == session.PlanID &&
				ws.WeekNumber == session.WeekNumber && ws.DayAbbrev == session.DayAbbrev {
				return primitive.NilObjectID, repository.ErrDuplicate
			}
		}
	}
	session.ID = primitive.NewObjectID()
	session.CreatedAt = r.s.now()
	session.UpdatedAt = session.CreatedAt
	record(ctx, r.s.data.sessions, session.ID)
	r.s.data.sessions[session.ID] = cloneSession(*session)
	return session.ID, nil
}

func (r *sessionRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.WorkoutSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ws, ok := r.s.data.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	ws = cloneSession(ws)
	return &ws, nil
}

func (r *sessionRepo) FindOpen(_ context.Context, planID primitive.ObjectID, weekNumber int, day domain.Weekday) (*domain.WorkoutSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, ws := range r.s.data.sessions {
		if isOpen(ws.Status) && ws.PlanID == planID && ws.WeekNumber == weekNumber && ws.DayAbbrev == day {
			ws = cloneSession(ws)
			return &ws, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *sessionRepo) GetByPlanID(_ context.Context, planID primitive.ObjectID) ([]domain.WorkoutSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var sessions []domain.WorkoutSession
	for _, ws := range r.s.data.sessions {
		if ws.PlanID == planID {
			sessions = append(sessions, cloneSession(ws))
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if a.WeekNumber != b.WeekNumber {
			return a.WeekNumber < b.WeekNumber
		}
		if a.DayAbbrev != b.DayAbbrev {
			return a.DayAbbrev < b.DayAbbrev
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return sessions, nil
}

func (r *sessionRepo) Update(ctx context.Context, session *domain.WorkoutSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.data.sessions[session.ID]
	if !ok {
		return repository.ErrNotFound
	}
	existing.Status = session.Status
	existing.StartedAt = cloneTime(session.StartedAt)
	existing.CompletedAt = cloneTime(session.CompletedAt)
	existing.TotalDurationSeconds = session.TotalDurationSeconds
	existing.WarmupSeconds = session.WarmupSeconds
	existing.UpdatedAt = r.s.now()
	session.UpdatedAt = existing.UpdatedAt
	record(ctx, r.s.data.sessions, session.ID)
	r.s.data.sessions[session.ID] = existing
	return nil
}

func (r *sessionRepo) DeleteUnstarted(ctx context.Context, planID primitive.ObjectID) ([]primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var ids []primitive.ObjectID
	for id, ws := range r.s.data.sessions {
		if ws.PlanID == planID && ws.StartedAt == nil {
			ids = append(ids, id)
			record(ctx, r.s.data.sessions, id)
			delete(r.s.data.sessions, id)
		}
	}
	return ids, nil
}

// --- progress ---

type progressRepo struct{ s *Store }

func (r *progressRepo) CreateMany(ctx context.Context, rows []domain.ExerciseProgress) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, row := range rows {
		if _, ok := r.s.data.progress[progressKey{row.SessionID, row.ExerciseOrder}]; ok {
			return repository.ErrDuplicate
		}
	}
	now := r.s.now()
	for i := range rows {
		rows[i].ID = primitive.NewObjectID()
		rows[i].UpdatedAt = now
		key := progressKey{rows[i].SessionID, rows[i].ExerciseOrder}
		record(ctx, r.s.data.progress, key)
		r.s.data.progress[key] = cloneProgress(rows[i])
	}
	return nil
}

func (r *progressRepo) Get(_ context.Context, sessionID primitive.ObjectID, exerciseOrder int) (*domain.ExerciseProgress, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	row, ok := r.s.data.progress[progressKey{sessionID, exerciseOrder}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	row = cloneProgress(row)
	return &row, nil
}

func (r *progressRepo) GetBySessionID(ctx context.Context, sessionID primitive.ObjectID) ([]domain.ExerciseProgress, error) {
	return r.GetBySessionIDs(ctx, []primitive.ObjectID{sessionID})
}

func (r *progressRepo) GetBySessionIDs(_ context.Context, sessionIDs []primitive.ObjectID) ([]domain.ExerciseProgress, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	wanted := make(map[primitive.ObjectID]bool, len(sessionIDs))
	for _, id := range sessionIDs {
		wanted[id] = true
	}
	var rows []domain.ExerciseProgress
	for k, row := range r.s.data.progress {
		if wanted[k.sessionID] {
			rows = append(rows, cloneProgress(row))
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].SessionID != rows[j].SessionID {
			return rows[i].SessionID.Hex() < rows[j].SessionID.Hex()
		}
		return rows[i].ExerciseOrder < rows[j].ExerciseOrder
	})
	return rows, nil
}

func (r *progressRepo) Upsert(ctx context.Context, row *domain.ExerciseProgress) error {
	if row.SessionID == primitive.NilObjectID || row.ExerciseOrder < 0 {
		return errors.New("progress row requires sessionId and a non-negative exerciseOrder")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := progressKey{row.SessionID, row.ExerciseOrder}
	if existing, ok := r.s.data.progress[key]; ok {
		row.ID = existing.ID
	} else if row.ID == primitive.NilObjectID {
		row.ID = primitive.NewObjectID()
	}
	row.UpdatedAt = r.s.now()
	record(ctx, r.s.data.progress, key)
	r.s.data.progress[key] = cloneProgress(*row)
	return nil
}

func (r *progressRepo) DeleteBySessionIDs(ctx context.Context, sessionIDs []primitive.ObjectID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, id := range sessionIDs {
		for k := range r.s.data.progress {
			if k.sessionID == id {
				record(ctx, r.s.data.progress, k)
				delete(r.s.data.progress, k)
				n++
			}
		}
	}
	return n, nil
}
