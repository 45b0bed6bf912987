package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PricingTypeFlatMonthly  = "flat_monthly"
	PricingTypeFeatureBased = "feature_based"
)

// SubscriptionPlan is a purchasable tier. For flat_monthly plans BasePrice is
// authoritative and the per-feature rates are ignored; for feature_based plans
// the per-feature monthly and yearly rates are both required configuration.
// The yearly rate is an independent value, not a derived discount.
type SubscriptionPlan struct {
	ID                  uint            `gorm:"primaryKey" json:"id"`
	Name                string          `gorm:"type:varchar(255);not null" json:"name" validate:"required,min=2,max=255"`
	Slug                string          `gorm:"type:varchar(255);not null;uniqueIndex" json:"slug"`
	Description         string          `gorm:"type:text" json:"description"`
	PricingType         string          `gorm:"type:varchar(32);not null;default:'flat_monthly';index" json:"pricing_type" validate:"required,oneof=flat_monthly feature_based"`
	BasePrice           decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"base_price"`
	FeaturePriceMonthly decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"feature_price_monthly"`
	FeaturePriceYearly  decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"feature_price_yearly"`
	MaxFeatures         *int            `gorm:"default:null" json:"max_features,omitempty"`
	IncludesWhitelabel  bool            `gorm:"default:false" json:"includes_whitelabel"`
	IsActive            bool            `gorm:"default:true;index" json:"is_active"`
	IsPopular           bool            `gorm:"default:false" json:"is_popular"`
	IsFeatured          bool            `gorm:"default:false" json:"is_featured"`
	SortOrder           int             `gorm:"default:0;index" json:"sort_order"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for the SubscriptionPlan model
func (SubscriptionPlan) TableName() string {
	return "subscription_plans"
}

// IsFeatureBased reports whether the plan charges per selected feature.
func (p *SubscriptionPlan) IsFeatureBased() bool {
	return p.PricingType == PricingTypeFeatureBased
}
