package plans

import (
	"github.com/FelixBrandt/PlanFox/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the plan service.
type Repository interface {
	CreatePlan(plan *models.SubscriptionPlan) error
	SavePlan(plan *models.SubscriptionPlan) error
	FindPlanByID(id uint) (*models.SubscriptionPlan, error)
	FindPlanBySlug(slug string) (*models.SubscriptionPlan, error)
	ListActivePlans() ([]models.SubscriptionPlan, error)
	SlugExists(slug string) (bool, error)
	ListAssignments(planID uint) ([]models.PlanFeatureAssignment, error)
	// ReplaceAssignments atomically replaces a plan's assignment set: rows
	// absent from the new set are deleted, present ones upserted, all inside
	// one transaction holding an update lock on the plan row.
	ReplaceAssignments(planID uint, rows []models.PlanFeatureAssignment) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a plan repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreatePlan(plan *models.SubscriptionPlan) error {
	return r.db.Create(plan).Error
}

func (r *gormRepository) SavePlan(plan *models.SubscriptionPlan) error {
	return r.db.Save(plan).Error
}

func (r *gormRepository) FindPlanByID(id uint) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	err := r.db.First(&plan, id).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *gormRepository) FindPlanBySlug(slug string) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	err := r.db.Where("slug = ?", slug).First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *gormRepository) ListActivePlans() ([]models.SubscriptionPlan, error) {
	var plans []models.SubscriptionPlan
	err := r.db.Where("is_active = ?", true).Order("sort_order ASC, id ASC").Find(&plans).Error
	return plans, err
}

func (r *gormRepository) SlugExists(slug string) (bool, error) {
	var count int64
	err := r.db.Model(&models.SubscriptionPlan{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

func (r *gormRepository) ListAssignments(planID uint) ([]models.PlanFeatureAssignment, error) {
	var rows []models.PlanFeatureAssignment
	err := r.db.Where("plan_id = ?", planID).Order("feature_key ASC").Find(&rows).Error
	return rows, err
}

func (r *gormRepository) ReplaceAssignments(planID uint, rows []models.PlanFeatureAssignment) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		// Serialize concurrent syncs targeting the same plan.
		var plan models.SubscriptionPlan
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&plan, planID).Error; err != nil {
			return err
		}

		keys := make([]string, 0, len(rows))
		for i := range rows {
			rows[i].PlanID = planID
			keys = append(keys, rows[i].FeatureKey)
		}

		del := tx.Where("plan_id = ?", planID)
		if len(keys) > 0 {
			del = del.Where("feature_key NOT IN ?", keys)
		}
		if err := del.Delete(&models.PlanFeatureAssignment{}).Error; err != nil {
			return err
		}

		if len(rows) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "plan_id"},
				{Name: "feature_key"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"is_included",
				"quota_limit",
				"overage_price",
				"updated_at",
			}),
		}).Create(&rows).Error
	})
}
