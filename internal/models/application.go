package models

import "time"

// Application is the committed business record on the Kanban board. The
// pipeline only creates it (on accept) or links to it (on merge); the CRUD
// surface that edits it lives outside this worker.
type Application struct {
	ID           string     `gorm:"column:id;primaryKey"`
	UserID       string     `gorm:"column:user_id;index"`
	CompanyName  string     `gorm:"column:company_name;index"`
	Position     string     `gorm:"column:position"`
	Stack        string     `gorm:"column:stack"`
	SalaryRange  string     `gorm:"column:salary_range"`
	Email        string     `gorm:"column:email"`
	PhoneNumber  string     `gorm:"column:phone_number"`
	WhereApplied string     `gorm:"column:where_applied"`
	StageID      *string    `gorm:"column:stage_id"`
	AppliedDate  *time.Time `gorm:"column:applied_date"`
	Notes        string     `gorm:"column:notes"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Application) TableName() string {
	return "application"
}

// Stage is a Kanban pipeline stage. Accepted detections land in the stage
// with the lowest order value.
type Stage struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Name      string    `gorm:"column:name"`
	Order     int       `gorm:"column:stage_order"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Stage) TableName() string {
	return "stage"
}
