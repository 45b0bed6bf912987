package plans

import (
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/FelixBrandt/PlanFox/app/models"
	"github.com/FelixBrandt/PlanFox/internal/pkg/catalog"
	"github.com/FelixBrandt/PlanFox/internal/pkg/entitlement"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeRepository is an in-memory Repository used by the service tests.
type fakeRepository struct {
	plans       map[uint]models.SubscriptionPlan
	assignments map[uint]map[string]models.PlanFeatureAssignment
	nextID      uint

	replaceErr     error
	duplicateSlugs map[string]int // slug -> remaining create attempts that fail
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		plans:          make(map[uint]models.SubscriptionPlan),
		assignments:    make(map[uint]map[string]models.PlanFeatureAssignment),
		duplicateSlugs: make(map[string]int),
	}
}

func (r *fakeRepository) CreatePlan(plan *models.SubscriptionPlan) error {
	if n := r.duplicateSlugs[plan.Slug]; n > 0 {
		r.duplicateSlugs[plan.Slug] = n - 1
		return gorm.ErrDuplicatedKey
	}
	for _, existing := range r.plans {
		if existing.Slug == plan.Slug {
			return gorm.ErrDuplicatedKey
		}
	}
	r.nextID++
	plan.ID = r.nextID
	r.plans[plan.ID] = *plan
	return nil
}

func (r *fakeRepository) SavePlan(plan *models.SubscriptionPlan) error {
	if _, ok := r.plans[plan.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	r.plans[plan.ID] = *plan
	return nil
}

func (r *fakeRepository) FindPlanByID(id uint) (*models.SubscriptionPlan, error) {
	plan, ok := r.plans[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &plan, nil
}

func (r *fakeRepository) FindPlanBySlug(slug string) (*models.SubscriptionPlan, error) {
	for _, plan := range r.plans {
		if plan.Slug == slug {
			return &plan, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepository) ListActivePlans() ([]models.SubscriptionPlan, error) {
	var result []models.SubscriptionPlan
	for _, plan := range r.plans {
		if plan.IsActive {
			result = append(result, plan)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SortOrder < result[j].SortOrder })
	return result, nil
}

func (r *fakeRepository) SlugExists(slug string) (bool, error) {
	for _, plan := range r.plans {
		if plan.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepository) ListAssignments(planID uint) ([]models.PlanFeatureAssignment, error) {
	rows := make([]models.PlanFeatureAssignment, 0, len(r.assignments[planID]))
	for _, row := range r.assignments[planID] {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].FeatureKey < rows[j].FeatureKey })
	return rows, nil
}

func (r *fakeRepository) ReplaceAssignments(planID uint, rows []models.PlanFeatureAssignment) error {
	if r.replaceErr != nil {
		return r.replaceErr
	}
	if _, ok := r.plans[planID]; !ok {
		return gorm.ErrRecordNotFound
	}
	next := make(map[string]models.PlanFeatureAssignment, len(rows))
	for _, row := range rows {
		row.PlanID = planID
		next[row.FeatureKey] = row
	}
	r.assignments[planID] = next
	return nil
}

// fakeRegistry resolves feature keys from a fixed set.
type fakeRegistry struct {
	features map[string]catalog.FeatureView
}

func newFakeRegistry(keys ...string) *fakeRegistry {
	features := make(map[string]catalog.FeatureView, len(keys))
	for _, key := range keys {
		features[key] = catalog.FeatureView{Key: key, Name: key, Type: models.FeatureTypeBinary, IsActive: true}
	}
	return &fakeRegistry{features: features}
}

func (f *fakeRegistry) GetFeatureByKey(key string) (*catalog.FeatureView, error) {
	view, ok := f.features[key]
	if !ok {
		return nil, fmt.Errorf("feature %q: %w", key, entitlement.ErrNotFound)
	}
	return &view, nil
}

func (f *fakeRegistry) GetFeaturesByKeys(keys []string) (map[string]catalog.FeatureView, error) {
	views := make(map[string]catalog.FeatureView, len(keys))
	for _, key := range keys {
		if view, ok := f.features[key]; ok {
			views[key] = view
		}
	}
	return views, nil
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func newTestService(featureKeys ...string) (*Service, *fakeRepository) {
	repo := newFakeRepository()
	return NewService(repo, newFakeRegistry(featureKeys...)), repo
}

func seedPlan(t *testing.T, svc *Service) *models.SubscriptionPlan {
	t.Helper()
	plan, err := svc.CreatePlan(CreatePlanInput{
		Name:                "Professional",
		PricingType:         models.PricingTypeFeatureBased,
		FeaturePriceMonthly: dec("1.00"),
		FeaturePriceYearly:  dec("10.00"),
	})
	require.NoError(t, err)
	return plan
}

func TestSyncPlanFeaturesPlanNotFound(t *testing.T) {
	svc, _ := newTestService("a")

	_, err := svc.SyncPlanFeatures(42, []AssignmentInput{{FeatureKey: "a", IsIncluded: true}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, entitlement.ErrPlanNotFound))
}

func TestSyncPlanFeaturesRejectsUnknownKeyAtomically(t *testing.T) {
	svc, repo := newTestService("a", "b")
	plan := seedPlan(t, svc)

	_, err := svc.SyncPlanFeatures(plan.ID, []AssignmentInput{{FeatureKey: "a", IsIncluded: true}})
	require.NoError(t, err)
	before, err := repo.ListAssignments(plan.ID)
	require.NoError(t, err)

	_, err = svc.SyncPlanFeatures(plan.ID, []AssignmentInput{
		{FeatureKey: "b", IsIncluded: true},
		{FeatureKey: "typo_key", IsIncluded: true},
	})
	require.Error(t, err)

	var unknown *entitlement.UnknownFeatureKeyError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "typo_key", unknown.Key)

	after, err := repo.ListAssignments(plan.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after, "assignments must be unchanged after a rejected sync")
}

func TestSyncPlanFeaturesReplaceAll(t *testing.T) {
	svc, _ := newTestService("a", "b", "c")
	plan := seedPlan(t, svc)

	quota := int64(100)
	_, err := svc.SyncPlanFeatures(plan.ID, []AssignmentInput{
		{FeatureKey: "a", IsIncluded: true},
		{FeatureKey: "b", IsIncluded: true, QuotaLimit: &quota},
	})
	require.NoError(t, err)

	view, err := svc.SyncPlanFeatures(plan.ID, []AssignmentInput{
		{FeatureKey: "b", IsIncluded: true},
		{FeatureKey: "c", IsIncluded: true},
	})
	require.NoError(t, err)

	require.Len(t, view.Features, 2)
	assert.Equal(t, "b", view.Features[0].Feature.Key)
	assert.Equal(t, "c", view.Features[1].Feature.Key)
	// b was re-specified without a quota, so no stale attributes survive.
	assert.Nil(t, view.Features[0].QuotaLimit)
}

func TestSyncPlanFeaturesIdempotent(t *testing.T) {
	svc, repo := newTestService("a", "b")
	plan := seedPlan(t, svc)

	request := []AssignmentInput{
		{FeatureKey: "a", IsIncluded: true, OveragePrice: decimal.RequireFromString("0.50")},
		{FeatureKey: "b", IsIncluded: false},
	}

	first, err := svc.SyncPlanFeatures(plan.ID, request)
	require.NoError(t, err)
	stateAfterFirst, err := repo.ListAssignments(plan.ID)
	require.NoError(t, err)

	second, err := svc.SyncPlanFeatures(plan.ID, request)
	require.NoError(t, err)
	stateAfterSecond, err := repo.ListAssignments(plan.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, stateAfterFirst, stateAfterSecond)
}

func TestSyncPlanFeaturesLastOccurrenceWins(t *testing.T) {
	svc, _ := newTestService("x")
	plan := seedPlan(t, svc)

	view, err := svc.SyncPlanFeatures(plan.ID, []AssignmentInput{
		{FeatureKey: "x", IsIncluded: true},
		{FeatureKey: "x", IsIncluded: false},
	})
	require.NoError(t, err)

	require.Len(t, view.Features, 1)
	assert.Equal(t, "x", view.Features[0].Feature.Key)
	assert.False(t, view.Features[0].IsIncluded)
}

func TestSyncPlanFeaturesDefaults(t *testing.T) {
	svc, _ := newTestService("a")
	plan := seedPlan(t, svc)

	view, err := svc.SyncPlanFeatures(plan.ID, []AssignmentInput{{FeatureKey: "a", IsIncluded: true}})
	require.NoError(t, err)

	require.Len(t, view.Features, 1)
	assert.Nil(t, view.Features[0].QuotaLimit, "quota defaults to unbounded")
	assert.True(t, view.Features[0].OveragePrice.IsZero(), "overage price defaults to zero")
}

func TestSyncPlanFeaturesEmptyRequestClearsPlan(t *testing.T) {
	svc, _ := newTestService("a")
	plan := seedPlan(t, svc)

	_, err := svc.SyncPlanFeatures(plan.ID, []AssignmentInput{{FeatureKey: "a", IsIncluded: true}})
	require.NoError(t, err)

	view, err := svc.SyncPlanFeatures(plan.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, view.Features)
}

func TestSyncPlanFeaturesStorageFailureIsRetryable(t *testing.T) {
	svc, repo := newTestService("a")
	plan := seedPlan(t, svc)

	repo.replaceErr = errors.New("deadlock found when trying to get lock")
	_, err := svc.SyncPlanFeatures(plan.ID, []AssignmentInput{{FeatureKey: "a", IsIncluded: true}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, entitlement.ErrTransactionAborted))
	assert.True(t, entitlement.IsRetryable(err))

	state, err := repo.ListAssignments(plan.ID)
	require.NoError(t, err)
	assert.Empty(t, state, "failed sync must not leave partial writes")
}

func TestSyncPlanFeaturesRejectsNegativeOveragePrice(t *testing.T) {
	svc, repo := newTestService("a")
	plan := seedPlan(t, svc)

	_, err := svc.SyncPlanFeatures(plan.ID, []AssignmentInput{
		{FeatureKey: "a", IsIncluded: true, OveragePrice: decimal.RequireFromString("-0.01")},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, entitlement.ErrInvalidPricingConfig))

	state, err := repo.ListAssignments(plan.ID)
	require.NoError(t, err)
	assert.Empty(t, state, "rejected sync must not persist anything")
}

func TestCreatePlanSlugDisambiguation(t *testing.T) {
	svc, _ := newTestService()

	input := CreatePlanInput{
		Name:        "Professional",
		PricingType: models.PricingTypeFlatMonthly,
		BasePrice:   dec("19.00"),
	}

	first, err := svc.CreatePlan(input)
	require.NoError(t, err)
	assert.Equal(t, "professional", first.Slug)

	second, err := svc.CreatePlan(input)
	require.NoError(t, err)
	assert.Equal(t, "professional-2", second.Slug)

	third, err := svc.CreatePlan(input)
	require.NoError(t, err)
	assert.Equal(t, "professional-3", third.Slug)
}

func TestCreatePlanSlugRaceFallsBackToConstraint(t *testing.T) {
	svc, repo := newTestService()

	// The uniqueness pre-check passes but the insert hits the unique
	// constraint, as when another admin wins the race.
	repo.duplicateSlugs["starter"] = 1

	plan, err := svc.CreatePlan(CreatePlanInput{
		Name:        "Starter",
		PricingType: models.PricingTypeFlatMonthly,
		BasePrice:   dec("0.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "starter-2", plan.Slug)
}

func TestCreatePlanPricingValidation(t *testing.T) {
	svc, _ := newTestService()

	tests := []struct {
		name  string
		input CreatePlanInput
	}{
		{
			name:  "flat plan missing base price",
			input: CreatePlanInput{Name: "Flat", PricingType: models.PricingTypeFlatMonthly},
		},
		{
			name: "feature based missing yearly rate",
			input: CreatePlanInput{
				Name:                "Per Feature",
				PricingType:         models.PricingTypeFeatureBased,
				FeaturePriceMonthly: dec("1.00"),
			},
		},
		{
			name: "negative base price",
			input: CreatePlanInput{
				Name:        "Broken",
				PricingType: models.PricingTypeFlatMonthly,
				BasePrice:   dec("-5.00"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreatePlan(tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, entitlement.ErrInvalidPricingConfig))
		})
	}
}

func TestUpdatePlanNotFound(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.UpdatePlan(99, UpdatePlanInput{
		Name:        "Ghost",
		PricingType: models.PricingTypeFlatMonthly,
		BasePrice:   dec("1.00"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, entitlement.ErrPlanNotFound))
}

func TestPriceSelectionEndToEnd(t *testing.T) {
	svc, _ := newTestService("instagram_post_scheduling", "link_bio_pages", "course_creation")

	max := 20
	plan, err := svc.CreatePlan(CreatePlanInput{
		Name:                "Professional",
		PricingType:         models.PricingTypeFeatureBased,
		FeaturePriceMonthly: dec("1.00"),
		FeaturePriceYearly:  dec("10.00"),
		MaxFeatures:         &max,
	})
	require.NoError(t, err)

	_, err = svc.SyncPlanFeatures(plan.ID, []AssignmentInput{
		{FeatureKey: "instagram_post_scheduling", IsIncluded: true},
		{FeatureKey: "link_bio_pages", IsIncluded: true},
		{FeatureKey: "course_creation", IsIncluded: true},
	})
	require.NoError(t, err)

	quote, err := svc.PriceSelection(plan.ID, []string{
		"instagram_post_scheduling", "link_bio_pages", "course_creation",
	})
	require.NoError(t, err)
	assert.True(t, quote.Monthly.Equal(decimal.RequireFromString("3.00")), "monthly = %s", quote.Monthly)
	assert.True(t, quote.Yearly.Equal(decimal.RequireFromString("30.00")), "yearly = %s", quote.Yearly)
}

func TestPriceSelectionQuoteLinesCarryOverage(t *testing.T) {
	svc, _ := newTestService("a", "b")
	plan := seedPlan(t, svc)

	_, err := svc.SyncPlanFeatures(plan.ID, []AssignmentInput{
		{FeatureKey: "a", IsIncluded: true, OveragePrice: decimal.RequireFromString("0.25")},
		{FeatureKey: "b", IsIncluded: true},
	})
	require.NoError(t, err)

	quote, err := svc.PriceSelection(plan.ID, []string{"a", "b"})
	require.NoError(t, err)

	require.Len(t, quote.Lines, 2)
	assert.Equal(t, "a", quote.Lines[0].FeatureKey)
	assert.True(t, quote.Lines[0].OveragePrice.Equal(decimal.RequireFromString("0.25")))
	assert.True(t, quote.Lines[0].Monthly.Equal(decimal.RequireFromString("1.00")))
	assert.True(t, quote.Lines[1].OveragePrice.IsZero())
}

func TestPriceSelectionExcludedAssignmentCostsNothing(t *testing.T) {
	svc, _ := newTestService("a", "b")
	plan := seedPlan(t, svc)

	_, err := svc.SyncPlanFeatures(plan.ID, []AssignmentInput{
		{FeatureKey: "a", IsIncluded: true},
		{FeatureKey: "b", IsIncluded: false},
	})
	require.NoError(t, err)

	quote, err := svc.PriceSelection(plan.ID, []string{"a", "b"})
	require.NoError(t, err)
	assert.True(t, quote.Monthly.Equal(decimal.RequireFromString("1.00")), "monthly = %s", quote.Monthly)
	assert.Equal(t, []string{"a"}, quote.BillableKeys)
}
