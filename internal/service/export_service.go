package service

import (
	"alcyxob/workout-planner/internal/domain"
	"alcyxob/workout-planner/internal/metrics"
	"alcyxob/workout-planner/internal/storage"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrExportUnavailable = errors.New("progress export is not configured")

// ExportDocument is the JSON body written to object storage.
type ExportDocument struct {
	GeneratedAt time.Time            `json:"generatedAt"`
	Plan        *domain.Plan         `json:"plan"`
	Schedule    []domain.ScheduleDay `json:"schedule"`
	Progress    *PlanProgress        `json:"progress"`
}

// ExportResult tells the client where to fetch the export.
type ExportResult struct {
	ObjectKey   string    `json:"objectKey"`
	DownloadURL string    `json:"downloadUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// --- Service Interface ---
type ExportService interface {
	ExportProgress(ctx context.Context, userID, planID primitive.ObjectID) (*ExportResult, error)
}

// exportService implements the ExportService interface.
type exportService struct {
	plans    PlanService
	schedule ScheduleService
	progress ProgressService
	files    storage.FileStorage
	metrics  *metrics.Manager
	clock    Clock
}

// NewExportService creates a new instance of exportService. files may be nil,
// in which case every export fails with ErrExportUnavailable.
func NewExportService(plans PlanService, schedule ScheduleService, progress ProgressService, files storage.FileStorage, m *metrics.Manager, clock Clock) ExportService {
	return &exportService{
		plans:    plans,
		schedule: schedule,
		progress: progress,
		files:    files,
		metrics:  m,
		clock:    clock,
	}
}

func (s *exportService) ExportProgress(ctx context.Context, userID, planID primitive.ObjectID) (*ExportResult, error) {
	if s.files == nil {
		return nil, ErrExportUnavailable
	}

	// 1. Collect the plan views
	plan, err := s.plans.Get(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	days, err := s.schedule.GetSchedule(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	progress, err := s.progress.PlanProgress(ctx, userID, planID)
	if err != nil {
		return nil, err
	}

	now := s.clock.now()
	body, err := json.MarshalIndent(ExportDocument{
		GeneratedAt: now,
		Plan:        plan,
		Schedule:    days,
		Progress:    progress,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}

	// 2. Upload and hand back a short-lived link
	objectKey := path.Join("exports", userID.Hex(), planID.Hex(), uuid.NewString()+".json")
	if err := s.files.PutObject(ctx, objectKey, "application/json", body); err != nil {
		return nil, fmt.Errorf("upload export: %w", err)
	}
	url, err := s.files.GeneratePresignedDownloadURL(ctx, objectKey, storage.DefaultPresignedURLExpiry)
	if err != nil {
		if delErr := s.files.DeleteObject(ctx, objectKey); delErr != nil {
			log.Warnf("export: failed to remove orphaned object %s: %s", objectKey, delErr)
		}
		return nil, fmt.Errorf("presign export: %w", err)
	}

	if s.metrics != nil {
		s.metrics.CounterExports.Inc()
	}
	log.WithFields(log.Fields{"plan_id": planID.Hex(), "object_key": objectKey, "bytes": len(body)}).Info("progress exported")
	return &ExportResult{
		ObjectKey:   objectKey,
		DownloadURL: url,
		ExpiresAt:   now.Add(storage.DefaultPresignedURLExpiry),
	}, nil
}
