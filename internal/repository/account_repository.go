package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jobtrail/jobtrail-worker/internal/models"
)

var ErrAccountNotFound = errors.New("account not found")

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// GetByID retrieves a mail account by ID
func (r *AccountRepository) GetByID(ctx context.Context, accountID string) (*models.MailAccount, error) {
	var account models.MailAccount
	result := r.db.WithContext(ctx).First(&account, "id = ?", accountID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", result.Error)
	}
	return &account, nil
}

// ListActive retrieves all active mail accounts, oldest-synced first so the
// watcher services the most stale account before the rest.
func (r *AccountRepository) ListActive(ctx context.Context) ([]models.MailAccount, error) {
	var accounts []models.MailAccount
	result := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("last_sync_at ASC NULLS FIRST").
		Find(&accounts)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list active accounts: %w", result.Error)
	}
	return accounts, nil
}

// UpdateTokens updates the access token, refresh token, and expiry
func (r *AccountRepository) UpdateTokens(ctx context.Context, accountID, accessToken, refreshToken string, expiresAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.MailAccount{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{
			"access_token":     accessToken,
			"refresh_token":    refreshToken,
			"token_expires_at": expiresAt,
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update tokens: %w", result.Error)
	}
	return nil
}

// UpdateCheckpoint records the sync checkpoint and sync time. Called once per
// completed batch; a failed batch never reaches this.
func (r *AccountRepository) UpdateCheckpoint(ctx context.Context, accountID, checkpoint string, syncedAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.MailAccount{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{
			"last_sync_checkpoint": checkpoint,
			"last_sync_at":         syncedAt,
			"updated_at":           time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update checkpoint: %w", result.Error)
	}
	return nil
}
