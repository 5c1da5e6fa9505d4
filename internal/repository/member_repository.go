package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/artmarket-contracts/internal/model"
)

type MemberRepository struct {
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

func (r *MemberRepository) Get(ctx context.Context, id int64) (*model.Member, error) {
	var member model.Member
	if err := conn(ctx, r.db).Raw(`
		SELECT id, nickname, wallet_address
		FROM members
		WHERE id = ? AND deleted_at IS NULL
		LIMIT 1
	`, id).Scan(&member).Error; err != nil {
		return nil, err
	}
	if member.ID == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &member, nil
}

type FeePolicyRepository struct {
	db *gorm.DB
}

func NewFeePolicyRepository(db *gorm.DB) *FeePolicyRepository {
	return &FeePolicyRepository{db: db}
}

// RateAt returns the rate of the latest policy effective at the given time.
// ok is false when no policy row is effective yet.
func (r *FeePolicyRepository) RateAt(ctx context.Context, at time.Time) (rate decimal.Decimal, ok bool, err error) {
	var rows []struct {
		Rate decimal.Decimal
	}
	err = conn(ctx, r.db).Raw(`
		SELECT rate
		FROM fee_policies
		WHERE effective_from <= ?
		ORDER BY effective_from DESC, id DESC
		LIMIT 1
	`, at).Scan(&rows).Error
	if err != nil {
		return decimal.Zero, false, err
	}
	if len(rows) == 0 {
		return decimal.Zero, false, nil
	}
	return rows[0].Rate, true, nil
}
