package catalog

import (
	"encoding/json"
	"time"

	"github.com/FelixBrandt/PlanFox/app/models"
	"github.com/FelixBrandt/PlanFox/internal/pkg/cache"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

const (
	activeFeaturesCacheKey = "catalog:active_features"
	activeGoalsCacheKey    = "catalog:active_goals"
	catalogCacheTTL        = 5 * time.Minute
)

// cachedRepository decorates a Repository with a Redis read-through cache for
// the hot list reads. Cache failures are logged and ignored; the database
// stays the source of truth.
type cachedRepository struct {
	Repository
}

// NewCachedRepository wraps a catalog repository with list-read caching.
func NewCachedRepository(repo Repository) Repository {
	return &cachedRepository{Repository: repo}
}

func (r *cachedRepository) ListActiveFeatures() ([]models.Feature, error) {
	if raw, err := cache.Get(activeFeaturesCacheKey); err == nil && raw != "" {
		var features []models.Feature
		if err := json.Unmarshal([]byte(raw), &features); err == nil {
			return features, nil
		}
		fiberlog.Warnf("catalog cache: invalid payload for %s, refreshing", activeFeaturesCacheKey)
	}

	features, err := r.Repository.ListActiveFeatures()
	if err != nil {
		return nil, err
	}
	r.store(activeFeaturesCacheKey, features)
	return features, nil
}

func (r *cachedRepository) ListActiveGoals() ([]models.Goal, error) {
	if raw, err := cache.Get(activeGoalsCacheKey); err == nil && raw != "" {
		var goals []models.Goal
		if err := json.Unmarshal([]byte(raw), &goals); err == nil {
			return goals, nil
		}
		fiberlog.Warnf("catalog cache: invalid payload for %s, refreshing", activeGoalsCacheKey)
	}

	goals, err := r.Repository.ListActiveGoals()
	if err != nil {
		return nil, err
	}
	r.store(activeGoalsCacheKey, goals)
	return goals, nil
}

func (r *cachedRepository) CreateFeature(feature *models.Feature) error {
	if err := r.Repository.CreateFeature(feature); err != nil {
		return err
	}
	r.invalidate(activeFeaturesCacheKey)
	return nil
}

func (r *cachedRepository) SaveFeature(feature *models.Feature) error {
	if err := r.Repository.SaveFeature(feature); err != nil {
		return err
	}
	r.invalidate(activeFeaturesCacheKey)
	return nil
}

func (r *cachedRepository) CreateGoal(goal *models.Goal) error {
	if err := r.Repository.CreateGoal(goal); err != nil {
		return err
	}
	r.invalidate(activeGoalsCacheKey)
	return nil
}

func (r *cachedRepository) SaveGoal(goal *models.Goal) error {
	if err := r.Repository.SaveGoal(goal); err != nil {
		return err
	}
	// Goal edits change the resolved goal summaries on feature views too.
	r.invalidate(activeGoalsCacheKey)
	r.invalidate(activeFeaturesCacheKey)
	return nil
}

func (r *cachedRepository) store(key string, value interface{}) {
	payload, err := json.Marshal(value)
	if err != nil {
		fiberlog.Warnf("catalog cache: marshal for %s failed: %v", key, err)
		return
	}
	if err := cache.Set(key, string(payload), catalogCacheTTL); err != nil {
		fiberlog.Warnf("catalog cache: set %s failed: %v", key, err)
	}
}

func (r *cachedRepository) invalidate(key string) {
	if err := cache.Delete(key); err != nil {
		fiberlog.Warnf("catalog cache: invalidate %s failed: %v", key, err)
	}
}
