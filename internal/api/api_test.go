package api

import (
	"alcyxob/workout-planner/internal/cache"
	"alcyxob/workout-planner/internal/metrics"
	"alcyxob/workout-planner/internal/repository/memory"
	"alcyxob/workout-planner/internal/service"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	goleak.VerifyTestMain(m)
}

type testServer struct {
	router  *gin.Engine
	metrics *metrics.Manager
	token   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	stores := service.Stores{
		Users:    store.Users(),
		Plans:    store.Plans(),
		Schedule: store.Schedule(),
		Sessions: store.Sessions(),
		Progress: store.Progress(),
		Tx:       store.TxManager(),
	}
	clock := service.Clock(func() time.Time { return time.Date(2024, time.March, 27, 9, 0, 0, 0, time.UTC) })
	planCache := cache.NewPlanCache(1, time.Minute)
	m := metrics.NewTestManager()

	plans := service.NewPlanService(stores, planCache, m, "UTC")
	schedule := service.NewScheduleService(stores, planCache, m, clock)
	progress := service.NewProgressService(stores, planCache, clock)
	srv := &testServer{
		metrics: m,
		router: NewRouter(Services{
			Auth:     service.NewAuthService(store.Users(), "test-secret", time.Hour),
			Plans:    plans,
			Schedule: schedule,
			Sessions: service.NewSessionService(stores, planCache, m, clock),
			Progress: progress,
			Export:   service.NewExportService(plans, schedule, progress, nil, m, clock),
		}, m),
	}

	email, password := gofakeit.Email(), "correct-horse"
	rr := srv.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{"name": gofakeit.Name(), "email": email, "password": password})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var login LoginResponse
	rr = srv.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &login))
	srv.token = login.Token
	return srv
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func planBody(exercises int, days ...string) gin.H {
	sessions := make([]gin.H, 0, len(days))
	for _, d := range days {
		exs := make([]gin.H, exercises)
		for i := range exs {
			exs[i] = gin.H{"name": gofakeit.Word(), "series": 3, "reps": "10", "restSeconds": 60}
		}
		sessions = append(sessions, gin.H{"day": d, "title": "Day " + d, "exercises": exs})
	}
	return gin.H{
		"name":      "Spring block",
		"startDate": "2024-03-27",
		"timezone":  "Europe/Madrid",
		"weeks":     []gin.H{{"sessions": sessions}, {"sessions": sessions}},
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)
	srv.token = ""
	rr := srv.do(t, http.MethodGet, "/api/v1/plans", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	srv.token = "not-a-jwt"
	rr = srv.do(t, http.MethodGet, "/api/v1/plans", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.NotEmpty(t, rr.Header().Get(RequestIDHeader))
}

func TestRegister_Conflict(t *testing.T) {
	srv := newTestServer(t)
	body := gin.H{"name": "Ana", "email": "ana@example.com", "password": "long-enough"}
	require.Equal(t, http.StatusCreated, srv.do(t, http.MethodPost, "/api/v1/auth/register", body).Code)
	assert.Equal(t, http.StatusConflict, srv.do(t, http.MethodPost, "/api/v1/auth/register", body).Code)

	rr := srv.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": "ana@example.com", "password": "wrong-one"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestPlanLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.do(t, http.MethodPost, "/api/v1/plans", planBody(2, "Lun", "Mie", "Vie", "Funday"))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[PlanResponse](t, rr)
	require.Len(t, created.Warnings, 2, "one unknown tag per week")
	planPath := "/api/v1/plans/" + created.Plan.ID.Hex()

	schedule := decode[[]map[string]interface{}](t, srv.do(t, http.MethodGet, planPath+"/schedule", nil))
	assert.Len(t, schedule, 14)

	today := decode[map[string]interface{}](t, srv.do(t, http.MethodGet, planPath+"/today", nil))
	assert.Equal(t, "2024-03-27", today["calendarDate"])

	// sessions need an active plan
	rr = srv.do(t, http.MethodPost, planPath+"/sessions", gin.H{"weekNumber": 1, "day": "Mie"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = srv.do(t, http.MethodPut, planPath+"/status", gin.H{"status": "completed"})
	assert.Equal(t, http.StatusConflict, rr.Code)
	rr = srv.do(t, http.MethodPut, planPath+"/status", gin.H{"status": "active"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = srv.do(t, http.MethodPut, planPath, gin.H{"name": ""})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decode[map[string]interface{}](t, rr), "problems")

	rr = srv.do(t, http.MethodPost, planPath+"/materialize", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	plans := decode[[]map[string]interface{}](t, srv.do(t, http.MethodGet, "/api/v1/plans", nil))
	assert.Len(t, plans, 1)

	assert.Equal(t, http.StatusBadRequest, srv.do(t, http.MethodGet, "/api/v1/plans/nope", nil).Code)
	assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodGet, "/api/v1/plans/65f000000000000000000000", nil).Code)
}

func TestSessionFlow(t *testing.T) {
	srv := newTestServer(t)
	created := decode[PlanResponse](t, srv.do(t, http.MethodPost, "/api/v1/plans", planBody(3, "Mie", "Vie")))
	planPath := "/api/v1/plans/" + created.Plan.ID.Hex()
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodPut, planPath+"/status", gin.H{"status": "active"}).Code)

	rr := srv.do(t, http.MethodPost, planPath+"/sessions", gin.H{"weekNumber": 1, "day": "Jue"})
	assert.Equal(t, http.StatusBadRequest, rr.Code, "rest day")

	rr = srv.do(t, http.MethodPost, planPath+"/sessions", gin.H{"weekNumber": 1, "day": "Mie"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	hydrated := decode[service.HydratedSession](t, rr)
	assert.Equal(t, 0, hydrated.Pointer)
	sessionPath := "/api/v1/sessions/" + hydrated.Session.ID.Hex()

	rr = srv.do(t, http.MethodPost, planPath+"/sessions", gin.H{"weekNumber": 1, "day": "Mie"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, hydrated.Session.ID, decode[service.HydratedSession](t, rr).Session.ID)

	rr = srv.do(t, http.MethodPut, sessionPath+"/warmup", gin.H{"seconds": 300})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = srv.do(t, http.MethodPut, sessionPath+"/exercises/0", gin.H{"status": "completed", "seriesCompleted": 3, "timeSpentSeconds": 200})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = srv.do(t, http.MethodPut, sessionPath+"/exercises/1", gin.H{"status": "skipped"})
	require.Equal(t, http.StatusOK, rr.Code)
	rr = srv.do(t, http.MethodPut, sessionPath+"/exercises/0", gin.H{"status": "skipped"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, "completed cannot become skipped")
	rr = srv.do(t, http.MethodPut, sessionPath+"/exercises/x", gin.H{"status": "skipped"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = srv.do(t, http.MethodPut, sessionPath+"/exercises/1/feedback", gin.H{"sentiment": "hard", "comment": "too heavy"})
	assert.Equal(t, http.StatusOK, rr.Code)

	hydrated = decode[service.HydratedSession](t, srv.do(t, http.MethodGet, sessionPath, nil))
	assert.Equal(t, 1, hydrated.Pointer)
	assert.Equal(t, []int{1, 2}, hydrated.DisplayOrder)

	rr = srv.do(t, http.MethodPut, sessionPath+"/complete", gin.H{"totalDurationSeconds": 1500})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = srv.do(t, http.MethodPut, sessionPath+"/complete", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = srv.do(t, http.MethodPut, sessionPath+"/cancel", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	rr = srv.do(t, http.MethodPut, sessionPath+"/exercises/2", gin.H{"status": "completed"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	progress := decode[service.PlanProgress](t, srv.do(t, http.MethodGet, planPath+"/progress", nil))
	assert.Equal(t, 1, progress.SessionsCompleted)
	assert.Equal(t, 1, progress.ExercisesCompleted)
	assert.Equal(t, 1500, progress.SessionTimeSeconds)
	assert.Equal(t, 1, progress.CurrentStreak)
	assert.Equal(t, 25.0, progress.ConsistencyPercent)

	rr = srv.do(t, http.MethodPost, planPath+"/progress/export", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRequestMetrics(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, http.MethodGet, "/ping", nil)
	srv.do(t, http.MethodGet, "/nowhere", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(srv.metrics.CounterRequests.WithLabelValues(http.MethodGet, "/ping", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(srv.metrics.CounterRequests.WithLabelValues(http.MethodGet, "unmatched", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(srv.metrics.GaugeRequests))
}

func TestPanicRecovery(t *testing.T) {
	m := metrics.NewTestManager()
	router := gin.New()
	router.Use(PanicRecovery(m))
	router.GET("/boom", func(*gin.Context) { panic("YOLO") })

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterHandleRequestPanic))
}

func TestRequestID_ReusesCallerHeader(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextRequestIDKey)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, "abc-123", rr.Body.String())
	assert.Equal(t, "abc-123", rr.Header().Get(RequestIDHeader))
}
