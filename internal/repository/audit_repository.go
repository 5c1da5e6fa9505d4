package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/nurpe/artmarket-contracts/internal/model"
)

// AuditRepository always writes outside any business transaction carried by ctx.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, entry model.AuditEntry) error {
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO audit_logs (contract_id, actor_id, action, from_status, to_status, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ContractID,
		entry.ActorID,
		entry.Action,
		entry.FromStatus,
		entry.ToStatus,
		entry.Reason,
		entry.CreatedAt,
	).Error
}

func (r *AuditRepository) ListByContract(ctx context.Context, contractID int64) ([]model.AuditEntry, error) {
	var entries []model.AuditEntry
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, contract_id, actor_id, action, from_status, to_status, reason, created_at
		FROM audit_logs
		WHERE contract_id = ?
		ORDER BY id ASC
	`, contractID).Scan(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
