package plans

import (
	"github.com/FelixBrandt/PlanFox/app/models"
	"github.com/FelixBrandt/PlanFox/internal/pkg/catalog"
	"github.com/shopspring/decimal"
)

// AssignmentInput is one requested plan-feature row in a sync. OveragePrice
// defaults to zero and QuotaLimit to unbounded when omitted.
type AssignmentInput struct {
	FeatureKey   string          `json:"feature_key" validate:"required,min=1,max=100"`
	IsIncluded   bool            `json:"is_included"`
	QuotaLimit   *int64          `json:"quota_limit,omitempty" validate:"omitempty,gte=0"`
	OveragePrice decimal.Decimal `json:"overage_price"`
}

// AssignedFeature pairs a resolved feature view with its pivot attributes.
type AssignedFeature struct {
	Feature      catalog.FeatureView `json:"feature"`
	IsIncluded   bool                `json:"is_included"`
	QuotaLimit   *int64              `json:"quota_limit,omitempty"`
	OveragePrice decimal.Decimal     `json:"overage_price"`
}

// PlanFeatureView is a plan together with its fully resolved assignment list.
// It is built by an explicit query, not a lazily loaded relation.
type PlanFeatureView struct {
	Plan     models.SubscriptionPlan `json:"plan"`
	Features []AssignedFeature       `json:"features"`
}

// IncludedKeys returns the set of included feature keys, the shape the pricing
// engine consumes.
func (v *PlanFeatureView) IncludedKeys() map[string]struct{} {
	keys := make(map[string]struct{}, len(v.Features))
	for _, af := range v.Features {
		if af.IsIncluded {
			keys[af.Feature.Key] = struct{}{}
		}
	}
	return keys
}

// OveragePricesByKey returns the overage price of every included assignment,
// keyed by feature key, for quote line items.
func (v *PlanFeatureView) OveragePricesByKey() map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal, len(v.Features))
	for _, af := range v.Features {
		if af.IsIncluded {
			prices[af.Feature.Key] = af.OveragePrice
		}
	}
	return prices
}

// CreatePlanInput enumerates every recognized field for plan creation.
// BasePrice and the per-feature rates are pointers so that "missing" can be
// told apart from an explicit zero (the Free plan is a legitimate 0.00).
type CreatePlanInput struct {
	Name                string           `json:"name" validate:"required,min=2,max=255"`
	Description         string           `json:"description" validate:"max=2000"`
	PricingType         string           `json:"pricing_type" validate:"required,oneof=flat_monthly feature_based"`
	BasePrice           *decimal.Decimal `json:"base_price,omitempty"`
	FeaturePriceMonthly *decimal.Decimal `json:"feature_price_monthly,omitempty"`
	FeaturePriceYearly  *decimal.Decimal `json:"feature_price_yearly,omitempty"`
	MaxFeatures         *int             `json:"max_features,omitempty" validate:"omitempty,gt=0"`
	IncludesWhitelabel  bool             `json:"includes_whitelabel"`
	IsPopular           bool             `json:"is_popular"`
	IsFeatured          bool             `json:"is_featured"`
	SortOrder           int              `json:"sort_order"`
}

// UpdatePlanInput carries the editable plan attributes. The slug is derived
// once at creation and never regenerated on rename.
type UpdatePlanInput struct {
	Name                string           `json:"name" validate:"required,min=2,max=255"`
	Description         string           `json:"description" validate:"max=2000"`
	PricingType         string           `json:"pricing_type" validate:"required,oneof=flat_monthly feature_based"`
	BasePrice           *decimal.Decimal `json:"base_price,omitempty"`
	FeaturePriceMonthly *decimal.Decimal `json:"feature_price_monthly,omitempty"`
	FeaturePriceYearly  *decimal.Decimal `json:"feature_price_yearly,omitempty"`
	MaxFeatures         *int             `json:"max_features,omitempty" validate:"omitempty,gt=0"`
	IncludesWhitelabel  bool             `json:"includes_whitelabel"`
	IsActive            bool             `json:"is_active"`
	IsPopular           bool             `json:"is_popular"`
	IsFeatured          bool             `json:"is_featured"`
	SortOrder           int              `json:"sort_order"`
}
