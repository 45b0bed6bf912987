package pricing

import (
	"fmt"
	"sort"

	"github.com/FelixBrandt/PlanFox/app/models"
	"github.com/FelixBrandt/PlanFox/internal/pkg/entitlement"
	"github.com/shopspring/decimal"
)

var monthsPerYear = decimal.NewFromInt(12)

// PlanPricingModel is a pure snapshot of the pricing-relevant plan state.
// It carries no identity and no storage handle, so price computation is a
// deterministic function of this value plus a key selection.
type PlanPricingModel struct {
	PricingType         string
	BasePrice           decimal.Decimal
	FeaturePriceMonthly decimal.Decimal
	FeaturePriceYearly  decimal.Decimal
	MaxFeatures         *int
	// IncludedFeatureKeys is the set of feature keys the plan includes
	// (is_included assignments only). Selected keys outside this set cost
	// nothing and do not error.
	IncludedFeatureKeys map[string]struct{}
	// OveragePrices carries the per-assignment overage price for included
	// keys. Keys without an entry quote a zero overage.
	OveragePrices map[string]decimal.Decimal
}

// LineItem is one billable feature in a quote, for admin pricing previews.
type LineItem struct {
	FeatureKey   string
	Monthly      decimal.Decimal
	Yearly       decimal.Decimal
	OveragePrice decimal.Decimal
}

// Quote is the result of pricing a feature selection against a plan.
type Quote struct {
	Monthly      decimal.Decimal
	Yearly       decimal.Decimal
	BillableKeys []string
	Lines        []LineItem
}

// Validate checks that the snapshot's pricing fields are consistent with its
// pricing type. A feature_based plan needs both per-feature rates; rates must
// never be negative.
func (p PlanPricingModel) Validate() error {
	switch p.PricingType {
	case models.PricingTypeFlatMonthly:
		if p.BasePrice.IsNegative() {
			return fmt.Errorf("%w: base_price must not be negative", entitlement.ErrInvalidPricingConfig)
		}
	case models.PricingTypeFeatureBased:
		if p.FeaturePriceMonthly.IsNegative() || p.FeaturePriceYearly.IsNegative() {
			return fmt.Errorf("%w: per-feature rates must not be negative", entitlement.ErrInvalidPricingConfig)
		}
	default:
		return fmt.Errorf("%w: unknown pricing type %q", entitlement.ErrInvalidPricingConfig, p.PricingType)
	}
	return nil
}

// ComputeMonthlyPrice prices a feature selection for one month.
func ComputeMonthlyPrice(plan PlanPricingModel, selectedFeatureKeys []string) (decimal.Decimal, error) {
	quote, err := ComputeQuote(plan, selectedFeatureKeys)
	if err != nil {
		return decimal.Zero, err
	}
	return quote.Monthly, nil
}

// ComputeYearlyPrice prices a feature selection for one year. For flat plans
// this is twelve monthly payments; for feature-based plans the yearly
// per-feature rate is independent configuration, never a derived discount.
func ComputeYearlyPrice(plan PlanPricingModel, selectedFeatureKeys []string) (decimal.Decimal, error) {
	quote, err := ComputeQuote(plan, selectedFeatureKeys)
	if err != nil {
		return decimal.Zero, err
	}
	return quote.Yearly, nil
}

// ComputeQuote prices a feature selection for both billing intervals and
// reports which selected keys were billable. Selection keys that are not
// included assignments of the plan are silently excluded: a feature you cannot
// select costs nothing. The max_features cap is enforced before any price is
// computed.
func ComputeQuote(plan PlanPricingModel, selectedFeatureKeys []string) (*Quote, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	billable := billableKeys(plan, selectedFeatureKeys)
	if plan.MaxFeatures != nil && len(billable) > *plan.MaxFeatures {
		return nil, &entitlement.FeatureLimitExceededError{Max: *plan.MaxFeatures, Requested: len(billable)}
	}

	quote := &Quote{BillableKeys: billable, Lines: make([]LineItem, 0, len(billable))}
	switch plan.PricingType {
	case models.PricingTypeFlatMonthly:
		// Feature selection is informational only for flat plans; the lines
		// carry zero rates but keep the overage prices visible.
		quote.Monthly = plan.BasePrice
		quote.Yearly = plan.BasePrice.Mul(monthsPerYear)
		for _, key := range billable {
			quote.Lines = append(quote.Lines, LineItem{
				FeatureKey:   key,
				OveragePrice: plan.OveragePrices[key],
			})
		}
	case models.PricingTypeFeatureBased:
		count := decimal.NewFromInt(int64(len(billable)))
		quote.Monthly = plan.FeaturePriceMonthly.Mul(count)
		quote.Yearly = plan.FeaturePriceYearly.Mul(count)
		for _, key := range billable {
			quote.Lines = append(quote.Lines, LineItem{
				FeatureKey:   key,
				Monthly:      plan.FeaturePriceMonthly,
				Yearly:       plan.FeaturePriceYearly,
				OveragePrice: plan.OveragePrices[key],
			})
		}
	}
	return quote, nil
}

// billableKeys deduplicates the selection and keeps only keys that resolve to
// an included assignment of the plan. The result is sorted for deterministic
// output.
func billableKeys(plan PlanPricingModel, selectedFeatureKeys []string) []string {
	seen := make(map[string]struct{}, len(selectedFeatureKeys))
	keys := make([]string, 0, len(selectedFeatureKeys))
	for _, key := range selectedFeatureKeys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if _, ok := plan.IncludedFeatureKeys[key]; ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}
