package models

import "time"

const (
	FeatureTypeBinary = "binary"
	FeatureTypeQuota  = "quota"
	FeatureTypeTiered = "tiered"
)

// Feature is a togglable unit of product capability identified by a stable
// key. The key is immutable once any plan assignment references it, and it
// stays reserved even after deactivation so historical assignments can never
// be silently reinterpreted.
type Feature struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Key         string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"key" validate:"required,min=1,max=100"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name" validate:"required,min=2,max=255"`
	Description string    `gorm:"type:text" json:"description"`
	Category    string    `gorm:"type:varchar(100);index" json:"category"`
	Type        string    `gorm:"type:varchar(16);not null;default:'binary'" json:"type" validate:"required,oneof=binary quota tiered"`
	GoalKey     string    `gorm:"type:varchar(100);index" json:"goal_key"`
	IsActive    bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for the Feature model
func (Feature) TableName() string {
	return "features"
}

// IsMetered reports whether the feature type carries a quota limit.
func (f *Feature) IsMetered() bool {
	return f.Type == FeatureTypeQuota || f.Type == FeatureTypeTiered
}
