package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jobtrail/jobtrail-worker/internal/models"
)

// ReviewStore is the persistence surface for the review workflow. The
// transition methods are atomic single-record transactions: they re-check
// that the detection is still pending and return ErrInvalidState otherwise,
// so a concurrent duplicate accept can never double-apply side effects.
type ReviewStore interface {
	GetDetection(ctx context.Context, detectionID string) (*models.Detection, error)
	ListDetections(ctx context.Context, accountID, status string) ([]models.Detection, error)
	AcceptDetection(ctx context.Context, detectionID string, app *models.Application) error
	RejectDetection(ctx context.Context, detectionID string) error
	MergeDetection(ctx context.Context, detectionID, applicationID string) error
	GetApplicationForUser(ctx context.Context, applicationID, userID string) (*models.Application, error)
	LowestOrderStage(ctx context.Context) (*models.Stage, error)
}

// AccountGetter resolves a detection's owning account (and thus user).
type AccountGetter interface {
	GetByID(ctx context.Context, accountID string) (*models.MailAccount, error)
}

// ReviewService converts pending detections into committed applications.
// Each detection gets exactly one outcome: accepted, rejected, or merged.
type ReviewService struct {
	store    ReviewStore
	accounts AccountGetter
	log      zerolog.Logger
}

// NewReviewService creates a ReviewService.
func NewReviewService(store ReviewStore, accounts AccountGetter, log zerolog.Logger) *ReviewService {
	return &ReviewService{store: store, accounts: accounts, log: log}
}

// ListDetections returns detections most-recently-detected first. accountID
// and status are optional filters; empty means all.
func (s *ReviewService) ListDetections(ctx context.Context, accountID, status string) ([]models.Detection, error) {
	return s.store.ListDetections(ctx, accountID, status)
}

// Accept creates a new Application from the detection's extracted fields,
// assigns it to the lowest-order pipeline stage, and marks the detection
// accepted. Fails with ErrInvalidState if the detection already left pending.
func (s *ReviewService) Accept(ctx context.Context, detectionID string) (*models.Application, error) {
	detection, err := s.store.GetDetection(ctx, detectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get detection: %w", err)
	}
	if detection.Terminal() {
		return nil, ErrInvalidState
	}

	account, err := s.accounts.GetByID(ctx, detection.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	app := &models.Application{
		ID:           uuid.New().String(),
		UserID:       account.UserID,
		CompanyName:  detection.CompanyName,
		Position:     detection.Position,
		Stack:        detection.Stack,
		SalaryRange:  detection.SalaryRange,
		Email:        detection.ContactEmail,
		PhoneNumber:  detection.ContactPhone,
		WhereApplied: detection.WhereApplied,
		AppliedDate:  detection.AppliedDate,
	}

	stage, err := s.store.LowestOrderStage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve initial stage: %w", err)
	}
	if stage != nil {
		app.StageID = &stage.ID
	}

	if err := s.store.AcceptDetection(ctx, detection.ID, app); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("detection_id", detection.ID).
		Str("application_id", app.ID).
		Str("company", app.CompanyName).
		Msg("detection accepted")

	return app, nil
}

// Reject marks the detection rejected. No side effects on other entities.
func (s *ReviewService) Reject(ctx context.Context, detectionID string) error {
	detection, err := s.store.GetDetection(ctx, detectionID)
	if err != nil {
		return fmt.Errorf("failed to get detection: %w", err)
	}
	if detection.Terminal() {
		return ErrInvalidState
	}

	if err := s.store.RejectDetection(ctx, detection.ID); err != nil {
		return err
	}

	s.log.Info().Str("detection_id", detection.ID).Msg("detection rejected")
	return nil
}

// Merge links the detection to an existing application owned by the same
// user instead of creating a new one.
func (s *ReviewService) Merge(ctx context.Context, detectionID, applicationID string) error {
	detection, err := s.store.GetDetection(ctx, detectionID)
	if err != nil {
		return fmt.Errorf("failed to get detection: %w", err)
	}
	if detection.Terminal() {
		return ErrInvalidState
	}

	account, err := s.accounts.GetByID(ctx, detection.AccountID)
	if err != nil {
		return fmt.Errorf("failed to get account: %w", err)
	}

	app, err := s.store.GetApplicationForUser(ctx, applicationID, account.UserID)
	if err != nil {
		if errors.Is(err, ErrApplicationNotFound) {
			return ErrApplicationNotFound
		}
		return fmt.Errorf("failed to get application: %w", err)
	}

	if err := s.store.MergeDetection(ctx, detection.ID, app.ID); err != nil {
		return err
	}

	s.log.Info().
		Str("detection_id", detection.ID).
		Str("application_id", app.ID).
		Msg("detection merged")
	return nil
}
