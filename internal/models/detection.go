package models

import "time"

// Detection status constants. All statuses except pending are terminal.
const (
	DetectionStatusPending  = "pending"
	DetectionStatusAccepted = "accepted"
	DetectionStatusRejected = "rejected"
	DetectionStatusMerged   = "merged"
)

// Detection is a candidate job application inferred from one email message,
// waiting for human review. The (account_id, email_message_id) pair is unique
// so re-syncing the same mailbox range never creates a second row.
//
// Extracted string fields default to the empty string, never NULL, because
// the review UI renders them directly.
type Detection struct {
	ID             string     `gorm:"column:id;primaryKey"`
	AccountID      string     `gorm:"column:account_id;uniqueIndex:idx_detection_account_message;index"`
	EmailMessageID string     `gorm:"column:email_message_id;uniqueIndex:idx_detection_account_message"`
	Category       string     `gorm:"column:category"`
	CompanyName    string     `gorm:"column:company_name"`
	Position       string     `gorm:"column:position"`
	Stack          string     `gorm:"column:stack"`
	WhereApplied   string     `gorm:"column:where_applied"`
	AppliedDate    *time.Time `gorm:"column:applied_date"`
	ContactEmail   string     `gorm:"column:contact_email"`
	ContactPhone   string     `gorm:"column:contact_phone"`
	SalaryRange    string     `gorm:"column:salary_range"`
	Confidence     float64    `gorm:"column:confidence"`
	Status         string     `gorm:"column:status;index"`
	DetectedAt     time.Time  `gorm:"column:detected_at;index"`
	ReviewedAt     *time.Time `gorm:"column:reviewed_at"`
	ApplicationID  *string    `gorm:"column:application_id"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Detection) TableName() string {
	return "auto_detected_application"
}

// Terminal reports whether the detection has left the pending state.
func (d *Detection) Terminal() bool {
	return d.Status != DetectionStatusPending
}
