package catalog

import (
	"github.com/FelixBrandt/PlanFox/app/models"
	"gorm.io/gorm"
)

// Repository provides DB operations used by the catalog service.
type Repository interface {
	ListActiveFeatures() ([]models.Feature, error)
	FindFeatureByKey(key string) (*models.Feature, error)
	FeaturesByKeys(keys []string) ([]models.Feature, error)
	FeatureKeyExists(key string) (bool, error)
	CreateFeature(feature *models.Feature) error
	SaveFeature(feature *models.Feature) error
	ListActiveGoals() ([]models.Goal, error)
	FindGoalByKey(key string) (*models.Goal, error)
	GoalKeyExists(key string) (bool, error)
	CreateGoal(goal *models.Goal) error
	SaveGoal(goal *models.Goal) error
	GoalsByKeys(keys []string) (map[string]models.Goal, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a catalog repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) ListActiveFeatures() ([]models.Feature, error) {
	var features []models.Feature
	err := r.db.Where("is_active = ?", true).Order("category ASC, `key` ASC").Find(&features).Error
	return features, err
}

func (r *gormRepository) FindFeatureByKey(key string) (*models.Feature, error) {
	var feature models.Feature
	// BINARY forces a case-sensitive match regardless of column collation.
	err := r.db.Where("BINARY `key` = ?", key).First(&feature).Error
	if err != nil {
		return nil, err
	}
	return &feature, nil
}

func (r *gormRepository) FeaturesByKeys(keys []string) ([]models.Feature, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	var features []models.Feature
	err := r.db.Where("BINARY `key` IN ?", keys).Find(&features).Error
	return features, err
}

func (r *gormRepository) FeatureKeyExists(key string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Feature{}).Where("BINARY `key` = ?", key).Count(&count).Error
	return count > 0, err
}

func (r *gormRepository) CreateFeature(feature *models.Feature) error {
	return r.db.Create(feature).Error
}

func (r *gormRepository) SaveFeature(feature *models.Feature) error {
	return r.db.Save(feature).Error
}

func (r *gormRepository) ListActiveGoals() ([]models.Goal, error) {
	var goals []models.Goal
	err := r.db.Where("is_active = ?", true).Order("sort_order ASC, `key` ASC").Find(&goals).Error
	return goals, err
}

func (r *gormRepository) FindGoalByKey(key string) (*models.Goal, error) {
	var goal models.Goal
	err := r.db.Where("BINARY `key` = ?", key).First(&goal).Error
	if err != nil {
		return nil, err
	}
	return &goal, nil
}

func (r *gormRepository) GoalKeyExists(key string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Goal{}).Where("BINARY `key` = ?", key).Count(&count).Error
	return count > 0, err
}

func (r *gormRepository) CreateGoal(goal *models.Goal) error {
	return r.db.Create(goal).Error
}

func (r *gormRepository) SaveGoal(goal *models.Goal) error {
	return r.db.Save(goal).Error
}

func (r *gormRepository) GoalsByKeys(keys []string) (map[string]models.Goal, error) {
	result := make(map[string]models.Goal, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	var goals []models.Goal
	if err := r.db.Where("`key` IN ?", keys).Find(&goals).Error; err != nil {
		return nil, err
	}
	for _, goal := range goals {
		result[goal.Key] = goal
	}
	return result, nil
}
