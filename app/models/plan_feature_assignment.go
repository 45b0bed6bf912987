package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlanFeatureAssignment is the pivot between a plan and a feature. It carries
// per-pair attributes (inclusion, quota, overage price), so it is a first-class
// entity rather than a bare join table. At most one row exists per
// (plan_id, feature_key) pair; re-assignment is an upsert.
type PlanFeatureAssignment struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	PlanID       uint            `gorm:"not null;index;uniqueIndex:ux_plan_feature,priority:1" json:"plan_id"`
	FeatureKey   string          `gorm:"type:varchar(100);not null;uniqueIndex:ux_plan_feature,priority:2" json:"feature_key"`
	IsIncluded   bool            `gorm:"default:false" json:"is_included"`
	QuotaLimit   *int64          `gorm:"default:null" json:"quota_limit,omitempty"`
	OveragePrice decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"overage_price"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for the PlanFeatureAssignment model
func (PlanFeatureAssignment) TableName() string {
	return "plan_feature_assignments"
}

// IsUnbounded reports whether the assignment carries no quota cap.
func (a *PlanFeatureAssignment) IsUnbounded() bool {
	return a.QuotaLimit == nil
}
