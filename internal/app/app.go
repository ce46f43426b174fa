// Package app wires configuration, storage and services into one process.
// Both the HTTP server and planctl start from here.
package app

import (
	"alcyxob/workout-planner/internal/api"
	"alcyxob/workout-planner/internal/cache"
	"alcyxob/workout-planner/internal/config"
	"alcyxob/workout-planner/internal/metrics"
	"alcyxob/workout-planner/internal/repository"
	"alcyxob/workout-planner/internal/repository/memory"
	"alcyxob/workout-planner/internal/repository/mongo"
	"alcyxob/workout-planner/internal/service"
	"alcyxob/workout-planner/internal/storage"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/multierr"

	_ "time/tzdata"
)

const indexTimeout = time.Minute

// App owns the long-lived dependencies of the process.
type App struct {
	Config   config.Config
	Stores   service.Stores
	Metrics  *metrics.Manager
	Registry *prometheus.Registry

	Auth     service.AuthService
	Plans    service.PlanService
	Schedule service.ScheduleService
	Sessions service.SessionService
	Progress service.ProgressService
	Export   service.ExportService

	closers []func() error
}

// New connects the configured database driver and builds every service.
// subsystem labels the metrics of this process ("server", "cli").
func New(ctx context.Context, cfg config.Config, subsystem string) (*App, error) {
	a := &App{
		Config:   cfg,
		Registry: metrics.SetupPrometheus(),
	}
	a.Metrics = metrics.NewManager("workout_planner", subsystem, a.Registry)

	// --- Storage ---
	switch cfg.Database.Driver {
	case config.DriverMemory:
		log.Warn("using the in-memory store: data is lost on exit")
		store := memory.NewStore()
		a.Stores = service.Stores{
			Users:    store.Users(),
			Plans:    store.Plans(),
			Schedule: store.Schedule(),
			Sessions: store.Sessions(),
			Progress: store.Progress(),
			Tx:       store.TxManager(),
		}
	case config.DriverMongo:
		if err := a.connectMongo(ctx); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	// --- Optional object storage ---
	var files storage.FileStorage
	if cfg.S3.Enabled() {
		s3, err := storage.NewS3Storage(ctx, cfg.S3)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("init S3 storage: %w", err)
		}
		files = s3
	} else {
		log.Info("S3 bucket not configured, progress export disabled")
	}

	// --- Services ---
	secret := cfg.JWT.Secret
	if secret == "" {
		secret = uuid.NewString()
		log.Warn("jwt.secret is empty, using an ephemeral secret: tokens will not survive a restart")
	}
	planCache := cache.NewPlanCache(cfg.Cache.SizeMB, cfg.Cache.TTL)
	clock := service.Clock(time.Now)

	a.Auth = service.NewAuthService(a.Stores.Users, secret, cfg.JWT.Expiration)
	a.Plans = service.NewPlanService(a.Stores, planCache, a.Metrics, cfg.Schedule.DefaultTimezone)
	a.Schedule = service.NewScheduleService(a.Stores, planCache, a.Metrics, clock)
	a.Sessions = service.NewSessionService(a.Stores, planCache, a.Metrics, clock)
	a.Progress = service.NewProgressService(a.Stores, planCache, clock)
	a.Export = service.NewExportService(a.Plans, a.Schedule, a.Progress, files, a.Metrics, clock)
	return a, nil
}

func (a *App) connectMongo(ctx context.Context) error {
	client, err := mongo.ConnectDB(a.Config.Database.URI)
	if err != nil {
		return fmt.Errorf("connect MongoDB: %w", err)
	}
	a.closers = append(a.closers, func() error { return mongo.DisconnectDB(client) })
	db := client.Database(a.Config.Database.Name)

	// The partial unique index on open sessions backs ResolveOrCreate, so
	// index creation has to finish before serving.
	indexCtx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()
	if err := mongo.EnsureIndexes(indexCtx, db); err != nil {
		_ = a.Close()
		return fmt.Errorf("ensure indexes: %w", err)
	}

	a.Stores = service.Stores{
		Users:    mongo.NewMongoUserRepository(db),
		Plans:    mongo.NewMongoPlanRepository(db),
		Schedule: mongo.NewMongoScheduleRepository(db),
		Sessions: mongo.NewMongoSessionRepository(db),
		Progress: mongo.NewMongoProgressRepository(db),
		Tx:       mongo.NewTxManager(client),
	}
	log.WithField("database", a.Config.Database.Name).Info("MongoDB connected")
	return nil
}

// Router builds the HTTP handler, including /metrics.
func (a *App) Router() *gin.Engine {
	router := api.NewRouter(api.Services{
		Auth:     a.Auth,
		Plans:    a.Plans,
		Schedule: a.Schedule,
		Sessions: a.Sessions,
		Progress: a.Progress,
		Export:   a.Export,
	}, a.Metrics)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})))
	return router
}

// Server wraps Router in an http.Server with the usual timeouts.
func (a *App) Server() *http.Server {
	return &http.Server{
		Addr:         a.Config.Server.Address,
		Handler:      a.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// UserByEmail resolves the account planctl acts for.
func (a *App) UserByEmail(ctx context.Context, email string) (primitive.ObjectID, error) {
	user, err := a.Stores.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return primitive.NilObjectID, fmt.Errorf("no user registered with email %q", email)
		}
		return primitive.NilObjectID, err
	}
	return user.ID, nil
}

// Close releases the database connection. It is safe to call more than once.
func (a *App) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	a.closers = nil
	return err
}
