package models

import "time"

// Mail providers
const (
	ProviderGmail   = "gmail"
	ProviderOutlook = "outlook"
)

// MailAccount represents a user's connected mailbox. One account per user.
// Deactivated (not deleted) on disconnect so detection history survives.
type MailAccount struct {
	ID                 string     `gorm:"column:id;primaryKey"`
	UserID             string     `gorm:"column:user_id;uniqueIndex"`
	Email              string     `gorm:"column:email"`
	Provider           string     `gorm:"column:provider"`
	AccessToken        string     `gorm:"column:access_token"`
	RefreshToken       string     `gorm:"column:refresh_token"`
	TokenExpiresAt     *time.Time `gorm:"column:token_expires_at"`
	LastSyncCheckpoint string     `gorm:"column:last_sync_checkpoint"`
	LastSyncAt         *time.Time `gorm:"column:last_sync_at"`
	IsActive           bool       `gorm:"column:is_active"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (MailAccount) TableName() string {
	return "mail_account"
}
