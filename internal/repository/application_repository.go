package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/jobtrail/jobtrail-worker/internal/models"
)

type ApplicationRepository struct {
	db *gorm.DB
}

func NewApplicationRepository(db *gorm.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// ExistsForCompany reports whether the user already tracks an application
// for the company (case-insensitive). Used to gate rejection detections.
func (r *ApplicationRepository) ExistsForCompany(ctx context.Context, userID, companyName string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Application{}).
		Where("user_id = ? AND LOWER(company_name) = LOWER(?)", userID, companyName).
		Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check applications: %w", result.Error)
	}
	return count > 0, nil
}

// GetByAccountUser retrieves all applications for a user, newest first
func (r *ApplicationRepository) GetByAccountUser(ctx context.Context, userID string) ([]models.Application, error) {
	var apps []models.Application
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&apps)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list applications: %w", result.Error)
	}
	return apps, nil
}
