package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jobtrail/jobtrail-worker/internal/models"
	"github.com/jobtrail/jobtrail-worker/internal/service"
)

var ErrDetectionNotFound = errors.New("detection not found")

// DetectionRepository owns the detection aggregate: candidate inserts from
// the sync side and the terminal review transitions. Transitions are guarded
// updates (`WHERE status = 'pending'`); zero rows affected means the
// detection already left pending and maps to service.ErrInvalidState.
type DetectionRepository struct {
	db *gorm.DB
}

func NewDetectionRepository(db *gorm.DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

// Exists reports whether a detection exists for (account, message id)
func (r *DetectionRepository) Exists(ctx context.Context, accountID, messageID string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Detection{}).
		Where("account_id = ? AND email_message_id = ?", accountID, messageID).
		Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check detection: %w", result.Error)
	}
	return count > 0, nil
}

// Create inserts a detection, silently skipping on a (account_id,
// email_message_id) conflict. Returns whether a row was actually inserted,
// which keeps re-runs and concurrent syncs idempotent.
func (r *DetectionRepository) Create(ctx context.Context, detection *models.Detection) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}, {Name: "email_message_id"}},
			DoNothing: true,
		}).
		Create(detection)
	if result.Error != nil {
		return false, fmt.Errorf("failed to create detection: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// GetDetection retrieves a detection by ID
func (r *DetectionRepository) GetDetection(ctx context.Context, detectionID string) (*models.Detection, error) {
	var detection models.Detection
	result := r.db.WithContext(ctx).First(&detection, "id = ?", detectionID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrDetectionNotFound
		}
		return nil, fmt.Errorf("failed to get detection: %w", result.Error)
	}
	return &detection, nil
}

// ListDetections retrieves detections most-recently-detected first.
// accountID and status filter when non-empty.
func (r *DetectionRepository) ListDetections(ctx context.Context, accountID, status string) ([]models.Detection, error) {
	query := r.db.WithContext(ctx).Model(&models.Detection{})
	if accountID != "" {
		query = query.Where("account_id = ?", accountID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var detections []models.Detection
	result := query.Order("detected_at DESC").Find(&detections)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list detections: %w", result.Error)
	}
	return detections, nil
}

// AcceptDetection creates the application and transitions the detection to
// accepted as one transaction. A concurrent accept loses the guarded update
// and rolls its application back.
func (r *DetectionRepository) AcceptDetection(ctx context.Context, detectionID string, app *models.Application) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(app).Error; err != nil {
			return fmt.Errorf("failed to create application: %w", err)
		}
		return r.transition(tx, detectionID, models.DetectionStatusAccepted, &app.ID)
	})
}

// RejectDetection transitions the detection to rejected
func (r *DetectionRepository) RejectDetection(ctx context.Context, detectionID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return r.transition(tx, detectionID, models.DetectionStatusRejected, nil)
	})
}

// MergeDetection transitions the detection to merged, linking the target
// application without creating a new one
func (r *DetectionRepository) MergeDetection(ctx context.Context, detectionID, applicationID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return r.transition(tx, detectionID, models.DetectionStatusMerged, &applicationID)
	})
}

// transition applies a pending -> terminal status change. The status guard in
// the WHERE clause is what makes review actions single-outcome.
func (r *DetectionRepository) transition(tx *gorm.DB, detectionID, status string, applicationID *string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":      status,
		"reviewed_at": now,
		"updated_at":  now,
	}
	if applicationID != nil {
		updates["application_id"] = *applicationID
	}

	result := tx.Model(&models.Detection{}).
		Where("id = ? AND status = ?", detectionID, models.DetectionStatusPending).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update detection: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return service.ErrInvalidState
	}
	return nil
}

// GetApplicationForUser retrieves an application only if it belongs to the
// given user; anything else is service.ErrApplicationNotFound.
func (r *DetectionRepository) GetApplicationForUser(ctx context.Context, applicationID, userID string) (*models.Application, error) {
	var app models.Application
	result := r.db.WithContext(ctx).First(&app, "id = ? AND user_id = ?", applicationID, userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, service.ErrApplicationNotFound
		}
		return nil, fmt.Errorf("failed to get application: %w", result.Error)
	}
	return &app, nil
}

// LowestOrderStage returns the first pipeline stage, or nil when no stages
// are configured yet.
func (r *DetectionRepository) LowestOrderStage(ctx context.Context) (*models.Stage, error) {
	var stage models.Stage
	result := r.db.WithContext(ctx).Order("stage_order ASC").First(&stage)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get stage: %w", result.Error)
	}
	return &stage, nil
}
