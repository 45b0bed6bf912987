package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/FelixBrandt/PlanFox/app/models"
	"github.com/FelixBrandt/PlanFox/internal/pkg/entitlement"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Service is the single source of truth for which feature keys exist, their
// type and their goal association.
type Service struct {
	repo     Repository
	validate *validator.Validate
}

// NewService creates a catalog service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

// NewServiceFromDB creates a catalog service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// NewCachedServiceFromDB creates a catalog service whose list reads go through
// the Redis cache.
func NewCachedServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewCachedRepository(NewRepository(db)))
}

// GetActiveFeatures returns all active features, each carrying its resolved
// goal summary or nil when the goal is missing or inactive. Returns an empty
// slice when no features exist.
func (s *Service) GetActiveFeatures() ([]FeatureView, error) {
	features, err := s.repo.ListActiveFeatures()
	if err != nil {
		return nil, err
	}

	goalKeys := make([]string, 0, len(features))
	seen := make(map[string]struct{}, len(features))
	for _, f := range features {
		if f.GoalKey == "" {
			continue
		}
		if _, ok := seen[f.GoalKey]; ok {
			continue
		}
		seen[f.GoalKey] = struct{}{}
		goalKeys = append(goalKeys, f.GoalKey)
	}

	goals, err := s.repo.GoalsByKeys(goalKeys)
	if err != nil {
		return nil, err
	}

	views := make([]FeatureView, 0, len(features))
	for _, f := range features {
		views = append(views, newFeatureView(&f, goals))
	}
	return views, nil
}

// GetFeatureByKey resolves a feature by its immutable key. The match is exact
// and case-sensitive. Inactive features still resolve so that grandfathered
// plan assignments keep working.
func (s *Service) GetFeatureByKey(key string) (*FeatureView, error) {
	feature, err := s.repo.FindFeatureByKey(key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("feature %q: %w", key, entitlement.ErrNotFound)
		}
		return nil, err
	}

	view, err := s.resolveView(feature)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// GetFeaturesByKeys resolves a batch of feature keys with their goal
// summaries in one query pair. Keys that do not exist are simply absent from
// the result; the caller decides whether a miss is an error.
func (s *Service) GetFeaturesByKeys(keys []string) (map[string]FeatureView, error) {
	features, err := s.repo.FeaturesByKeys(keys)
	if err != nil {
		return nil, err
	}

	goalKeys := make([]string, 0, len(features))
	seen := make(map[string]struct{}, len(features))
	for _, f := range features {
		if f.GoalKey == "" {
			continue
		}
		if _, ok := seen[f.GoalKey]; ok {
			continue
		}
		seen[f.GoalKey] = struct{}{}
		goalKeys = append(goalKeys, f.GoalKey)
	}

	goals, err := s.repo.GoalsByKeys(goalKeys)
	if err != nil {
		return nil, err
	}

	views := make(map[string]FeatureView, len(features))
	for _, f := range features {
		views[f.Key] = newFeatureView(&f, goals)
	}
	return views, nil
}

// CreateFeature registers a new feature. The key must never have been used
// before, active or not: keys are permanently reserved once seen so historical
// plan assignments cannot be silently reinterpreted.
func (s *Service) CreateFeature(input CreateFeatureInput) (*FeatureView, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}

	exists, err := s.repo.FeatureKeyExists(input.Key)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("feature %q: %w", input.Key, entitlement.ErrDuplicateKey)
	}

	if input.GoalKey != "" {
		if _, err := s.repo.FindGoalByKey(input.GoalKey); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("goal %q: %w", input.GoalKey, entitlement.ErrNotFound)
			}
			return nil, err
		}
	}

	feature := &models.Feature{
		Key:         input.Key,
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Category:    input.Category,
		Type:        input.Type,
		GoalKey:     input.GoalKey,
		IsActive:    true,
	}
	if err := s.repo.CreateFeature(feature); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("feature %q: %w", input.Key, entitlement.ErrDuplicateKey)
		}
		return nil, err
	}

	view, err := s.resolveView(feature)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// DeactivateFeature hides a feature from new assignments. Existing plan
// assignments are untouched. Deactivating an already-inactive feature is a
// no-op.
func (s *Service) DeactivateFeature(key string) error {
	feature, err := s.repo.FindFeatureByKey(key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("feature %q: %w", key, entitlement.ErrNotFound)
		}
		return err
	}
	if !feature.IsActive {
		return nil
	}

	feature.IsActive = false
	return s.repo.SaveFeature(feature)
}

// CreateGoal registers a new feature grouping. Goal keys are reserved the same
// way feature keys are.
func (s *Service) CreateGoal(input CreateGoalInput) (*models.Goal, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}

	exists, err := s.repo.GoalKeyExists(input.Key)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("goal %q: %w", input.Key, entitlement.ErrDuplicateKey)
	}

	goal := &models.Goal{
		Key:       input.Key,
		Name:      strings.TrimSpace(input.Name),
		Color:     input.Color,
		SortOrder: input.SortOrder,
		IsActive:  true,
	}
	if err := s.repo.CreateGoal(goal); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("goal %q: %w", input.Key, entitlement.ErrDuplicateKey)
		}
		return nil, err
	}
	return goal, nil
}

// UpdateGoal edits the display attributes of a goal. The key is immutable.
func (s *Service) UpdateGoal(key string, input UpdateGoalInput) (*models.Goal, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}

	goal, err := s.repo.FindGoalByKey(key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("goal %q: %w", key, entitlement.ErrNotFound)
		}
		return nil, err
	}

	goal.Name = strings.TrimSpace(input.Name)
	goal.Color = input.Color
	goal.SortOrder = input.SortOrder
	if err := s.repo.SaveGoal(goal); err != nil {
		return nil, err
	}
	return goal, nil
}

// DeactivateGoal soft-deactivates a goal. Features keep their back-reference;
// their views simply stop resolving the goal summary. Idempotent.
func (s *Service) DeactivateGoal(key string) error {
	goal, err := s.repo.FindGoalByKey(key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("goal %q: %w", key, entitlement.ErrNotFound)
		}
		return err
	}
	if !goal.IsActive {
		return nil
	}

	goal.IsActive = false
	return s.repo.SaveGoal(goal)
}

// ListActiveGoals returns the active goals in display order.
func (s *Service) ListActiveGoals() ([]models.Goal, error) {
	return s.repo.ListActiveGoals()
}

// resolveView builds a FeatureView for a single feature, resolving its goal.
// A missing goal degrades to a nil summary; any other storage error surfaces.
func (s *Service) resolveView(feature *models.Feature) (FeatureView, error) {
	goals := map[string]models.Goal{}
	if feature.GoalKey != "" {
		goal, err := s.repo.FindGoalByKey(feature.GoalKey)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return FeatureView{}, err
		}
		if err == nil {
			goals[goal.Key] = *goal
		}
	}
	return newFeatureView(feature, goals), nil
}

func newFeatureView(feature *models.Feature, goals map[string]models.Goal) FeatureView {
	view := FeatureView{
		Key:         feature.Key,
		Name:        feature.Name,
		Description: feature.Description,
		Category:    feature.Category,
		Type:        feature.Type,
		IsActive:    feature.IsActive,
	}
	if goal, ok := goals[feature.GoalKey]; ok && goal.IsActive {
		view.Goal = &GoalSummary{Key: goal.Key, Name: goal.Name, Color: goal.Color}
	}
	return view
}
