package plans

import (
	"errors"
	"fmt"

	"github.com/FelixBrandt/PlanFox/app/models"
	"github.com/FelixBrandt/PlanFox/internal/pkg/catalog"
	"github.com/FelixBrandt/PlanFox/internal/pkg/entitlement"
	"github.com/FelixBrandt/PlanFox/internal/pkg/pricing"
	"github.com/go-playground/validator/v10"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// maxSlugAttempts bounds the numeric-suffix retry when deriving a unique slug.
const maxSlugAttempts = 25

// FeatureResolver is the slice of the catalog the plan service depends on.
type FeatureResolver interface {
	GetFeatureByKey(key string) (*catalog.FeatureView, error)
	GetFeaturesByKeys(keys []string) (map[string]catalog.FeatureView, error)
}

// Service reconciles plan configuration and feature assignments against the
// feature registry.
type Service struct {
	repo     Repository
	registry FeatureResolver
	validate *validator.Validate
}

// NewService creates a plan service from injected collaborators.
func NewService(repo Repository, registry FeatureResolver) *Service {
	return &Service{repo: repo, registry: registry, validate: validator.New()}
}

// NewServiceFromDB creates a plan service from a GORM DB handle, wiring the
// catalog service as its feature registry.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), catalog.NewServiceFromDB(db))
}

// CreatePlan validates and persists a new subscription plan. The slug is
// derived from the name and disambiguated with a numeric suffix; the unique
// constraint on the slug column is the backstop against concurrent creates,
// so a duplicate-key failure just advances to the next suffix.
func (s *Service) CreatePlan(input CreatePlanInput) (*models.SubscriptionPlan, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}
	if err := validatePricingInput(input.PricingType, input.BasePrice, input.FeaturePriceMonthly, input.FeaturePriceYearly); err != nil {
		return nil, err
	}

	plan := &models.SubscriptionPlan{
		Name:                input.Name,
		Description:         input.Description,
		PricingType:         input.PricingType,
		BasePrice:           valueOrZero(input.BasePrice),
		FeaturePriceMonthly: valueOrZero(input.FeaturePriceMonthly),
		FeaturePriceYearly:  valueOrZero(input.FeaturePriceYearly),
		MaxFeatures:         input.MaxFeatures,
		IncludesWhitelabel:  input.IncludesWhitelabel,
		IsActive:            true,
		IsPopular:           input.IsPopular,
		IsFeatured:          input.IsFeatured,
		SortOrder:           input.SortOrder,
	}

	base := Slugify(input.Name)
	if base == "" {
		base = "plan"
	}
	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		candidate := slugCandidate(base, attempt)
		exists, err := s.repo.SlugExists(candidate)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}

		plan.Slug = candidate
		err = s.repo.CreatePlan(plan)
		if err == nil {
			return plan, nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			fiberlog.Warnf("plan slug %q taken by concurrent create, retrying", candidate)
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("could not find a free slug for %q after %d attempts", base, maxSlugAttempts)
}

// UpdatePlan edits an existing plan. The slug is never regenerated.
func (s *Service) UpdatePlan(planID uint, input UpdatePlanInput) (*models.SubscriptionPlan, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}
	if err := validatePricingInput(input.PricingType, input.BasePrice, input.FeaturePriceMonthly, input.FeaturePriceYearly); err != nil {
		return nil, err
	}

	plan, err := s.repo.FindPlanByID(planID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("plan %d: %w", planID, entitlement.ErrPlanNotFound)
		}
		return nil, err
	}

	plan.Name = input.Name
	plan.Description = input.Description
	plan.PricingType = input.PricingType
	plan.BasePrice = valueOrZero(input.BasePrice)
	plan.FeaturePriceMonthly = valueOrZero(input.FeaturePriceMonthly)
	plan.FeaturePriceYearly = valueOrZero(input.FeaturePriceYearly)
	plan.MaxFeatures = input.MaxFeatures
	plan.IncludesWhitelabel = input.IncludesWhitelabel
	plan.IsActive = input.IsActive
	plan.IsPopular = input.IsPopular
	plan.IsFeatured = input.IsFeatured
	plan.SortOrder = input.SortOrder

	if err := s.repo.SavePlan(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// GetPlanBySlug resolves a plan by its unique slug.
func (s *Service) GetPlanBySlug(slug string) (*models.SubscriptionPlan, error) {
	plan, err := s.repo.FindPlanBySlug(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("plan %q: %w", slug, entitlement.ErrPlanNotFound)
		}
		return nil, err
	}
	return plan, nil
}

// ListActivePlans returns the purchasable plans in display order.
func (s *Service) ListActivePlans() ([]models.SubscriptionPlan, error) {
	return s.repo.ListActivePlans()
}

// SyncPlanFeatures replaces a plan's feature configuration wholesale: rows not
// in the request are deleted, requested rows are upserted, all inside one
// transaction. The request is validated against the registry first and
// rejected as a whole on the first unknown key. When the same key appears more
// than once, the last occurrence wins. Returns the reloaded resolved view.
func (s *Service) SyncPlanFeatures(planID uint, requested []AssignmentInput) (*PlanFeatureView, error) {
	if _, err := s.repo.FindPlanByID(planID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("plan %d: %w", planID, entitlement.ErrPlanNotFound)
		}
		return nil, err
	}

	for _, input := range requested {
		if err := s.validate.Struct(input); err != nil {
			return nil, err
		}
		// The validate tags cannot inspect decimal values.
		if input.OveragePrice.IsNegative() {
			return nil, fmt.Errorf("%w: overage_price for %q must not be negative",
				entitlement.ErrInvalidPricingConfig, input.FeatureKey)
		}
		if _, err := s.registry.GetFeatureByKey(input.FeatureKey); err != nil {
			if errors.Is(err, entitlement.ErrNotFound) {
				return nil, &entitlement.UnknownFeatureKeyError{Key: input.FeatureKey}
			}
			return nil, err
		}
	}

	rows := normalizeAssignments(planID, requested)
	if err := s.repo.ReplaceAssignments(planID, rows); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("plan %d: %w", planID, entitlement.ErrPlanNotFound)
		}
		return nil, fmt.Errorf("%w: %v", entitlement.ErrTransactionAborted, err)
	}

	return s.GetPlanFeatures(planID)
}

// GetPlanFeatures loads the fully resolved assignment list for a plan as one
// explicit query pair, never a lazy relation.
func (s *Service) GetPlanFeatures(planID uint) (*PlanFeatureView, error) {
	plan, err := s.repo.FindPlanByID(planID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("plan %d: %w", planID, entitlement.ErrPlanNotFound)
		}
		return nil, err
	}

	rows, err := s.repo.ListAssignments(planID)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, row.FeatureKey)
	}
	features, err := s.registry.GetFeaturesByKeys(keys)
	if err != nil {
		return nil, err
	}

	view := &PlanFeatureView{Plan: *plan, Features: make([]AssignedFeature, 0, len(rows))}
	for _, row := range rows {
		feature, ok := features[row.FeatureKey]
		if !ok {
			// Assignments only ever reference registered keys; a miss here
			// means the registry and assignment table diverged.
			return nil, fmt.Errorf("feature %q: %w", row.FeatureKey, entitlement.ErrNotFound)
		}
		view.Features = append(view.Features, AssignedFeature{
			Feature:      feature,
			IsIncluded:   row.IsIncluded,
			QuotaLimit:   row.QuotaLimit,
			OveragePrice: row.OveragePrice,
		})
	}
	return view, nil
}

// PricingModel builds the pure pricing snapshot for a plan.
func (s *Service) PricingModel(planID uint) (pricing.PlanPricingModel, error) {
	view, err := s.GetPlanFeatures(planID)
	if err != nil {
		return pricing.PlanPricingModel{}, err
	}
	return pricing.PlanPricingModel{
		PricingType:         view.Plan.PricingType,
		BasePrice:           view.Plan.BasePrice,
		FeaturePriceMonthly: view.Plan.FeaturePriceMonthly,
		FeaturePriceYearly:  view.Plan.FeaturePriceYearly,
		MaxFeatures:         view.Plan.MaxFeatures,
		IncludedFeatureKeys: view.IncludedKeys(),
		OveragePrices:       view.OveragePricesByKey(),
	}, nil
}

// PriceSelection quotes a feature selection against a stored plan.
func (s *Service) PriceSelection(planID uint, selectedFeatureKeys []string) (*pricing.Quote, error) {
	model, err := s.PricingModel(planID)
	if err != nil {
		return nil, err
	}
	return pricing.ComputeQuote(model, selectedFeatureKeys)
}

// normalizeAssignments deduplicates the request by feature key with
// last-occurrence-wins semantics and materializes the pivot rows.
func normalizeAssignments(planID uint, requested []AssignmentInput) []models.PlanFeatureAssignment {
	index := make(map[string]int, len(requested))
	rows := make([]models.PlanFeatureAssignment, 0, len(requested))
	for _, input := range requested {
		row := models.PlanFeatureAssignment{
			PlanID:       planID,
			FeatureKey:   input.FeatureKey,
			IsIncluded:   input.IsIncluded,
			QuotaLimit:   input.QuotaLimit,
			OveragePrice: input.OveragePrice,
		}
		if at, ok := index[input.FeatureKey]; ok {
			rows[at] = row
			continue
		}
		index[input.FeatureKey] = len(rows)
		rows = append(rows, row)
	}
	return rows
}

func validatePricingInput(pricingType string, basePrice, monthly, yearly *decimal.Decimal) error {
	switch pricingType {
	case models.PricingTypeFlatMonthly:
		if basePrice == nil {
			return fmt.Errorf("%w: flat_monthly plans require base_price", entitlement.ErrInvalidPricingConfig)
		}
		if basePrice.IsNegative() {
			return fmt.Errorf("%w: base_price must not be negative", entitlement.ErrInvalidPricingConfig)
		}
	case models.PricingTypeFeatureBased:
		if monthly == nil || yearly == nil {
			return fmt.Errorf("%w: feature_based plans require both per-feature rates", entitlement.ErrInvalidPricingConfig)
		}
		if monthly.IsNegative() || yearly.IsNegative() {
			return fmt.Errorf("%w: per-feature rates must not be negative", entitlement.ErrInvalidPricingConfig)
		}
	}
	return nil
}

func valueOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
