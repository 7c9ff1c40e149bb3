package repository

import (
	"context"

	"mun_dashboard/internal/repository/models"
	"mun_dashboard/internal/storage"
)

type ActivityRepository interface {
	Create(ctx context.Context, activity *models.Activity) error
	// FindByUserID 依時間排序；limit <= 0 表示全部
	FindByUserID(ctx context.Context, userID string, limit int) ([]models.Activity, error)
}

type activityRepository struct {
	db *storage.Database
}

func NewActivityRepository(db *storage.Database) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Create(ctx context.Context, activity *models.Activity) error {
	return r.db.WithContext(ctx).Create(activity).Error
}

func (r *activityRepository) FindByUserID(ctx context.Context, userID string, limit int) ([]models.Activity, error) {
	var activities []models.Activity
	q := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("timestamp asc, id asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&activities).Error
	return activities, err
}
