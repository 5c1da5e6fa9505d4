package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/nurpe/artmarket-contracts/internal/model"
)

type ApplicationRepository struct {
	db *gorm.DB
}

func NewApplicationRepository(db *gorm.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

func (r *ApplicationRepository) GetForUpdate(ctx context.Context, id int64) (*model.Application, error) {
	var app model.Application
	err := conn(ctx, r.db).Raw(`
		SELECT
			a.id,
			a.project_id,
			p.owner_id AS project_owner_id,
			a.applicant_id,
			a.status
		FROM project_applications a
		JOIN projects p ON p.id = a.project_id
		WHERE a.id = ?
		LIMIT 1
		FOR UPDATE OF a
	`, id).Scan(&app).Error
	if err != nil {
		return nil, err
	}
	if app.ID == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &app, nil
}

func (r *ApplicationRepository) UpdateStatus(ctx context.Context, id int64, status model.ApplicationStatus) error {
	result := conn(ctx, r.db).Exec(`
		UPDATE project_applications
		SET status = ?, updated_at = NOW()
		WHERE id = ?
	`, status, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
