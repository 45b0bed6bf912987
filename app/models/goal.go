package models

import "time"

// Goal is a marketing-facing grouping of features (e.g. "Social Media",
// "E-commerce"). Goals are soft-deactivated, never hard-deleted, because
// features keep a back-reference to them.
type Goal struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"key" validate:"required,min=1,max=100"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name" validate:"required,min=2,max=255"`
	Color     string    `gorm:"type:varchar(32)" json:"color"`
	SortOrder int       `gorm:"default:0;index" json:"sort_order"`
	IsActive  bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for the Goal model
func (Goal) TableName() string {
	return "goals"
}
