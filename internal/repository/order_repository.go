package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/artmarket-contracts/internal/model"
)

const orderColumns = `
	id,
	contract_id,
	amount,
	fee,
	payout,
	status,
	payment_key,
	paid_at,
	settled_at,
	created_at,
	updated_at`

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// CreatePending inserts a PENDING order. created is false when the contract already has one,
// in which case nothing is written and the caller should reload the existing order.
func (r *OrderRepository) CreatePending(ctx context.Context, order *model.Order) (created bool, err error) {
	result := conn(ctx, r.db).Exec(`
		INSERT INTO orders (
			id,
			contract_id,
			amount,
			fee,
			payout,
			status,
			created_at,
			updated_at
		) VALUES (?, ?, ?, ?, ?, 'PENDING', ?, ?)
		ON CONFLICT (contract_id) WHERE status = 'PENDING' DO NOTHING
	`,
		order.ID,
		order.ContractID,
		order.Amount,
		order.Fee,
		order.Payout,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// FindLatestByContract returns the newest order of the contract in the given status.
func (r *OrderRepository) FindLatestByContract(ctx context.Context, contractID int64, status model.OrderStatus) (*model.Order, error) {
	var order model.Order
	err := conn(ctx, r.db).Raw(`SELECT`+orderColumns+`
		FROM orders
		WHERE contract_id = ? AND status = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, contractID, status).Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &order, nil
}

func (r *OrderRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	err := conn(ctx, r.db).Raw(`SELECT`+orderColumns+`
		FROM orders
		WHERE id = ?
		LIMIT 1
		FOR UPDATE
	`, id).Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &order, nil
}

func (r *OrderRepository) Update(ctx context.Context, order *model.Order) error {
	result := conn(ctx, r.db).Exec(`
		UPDATE orders
		SET
			status = ?,
			payment_key = ?,
			paid_at = ?,
			settled_at = ?,
			updated_at = ?
		WHERE id = ?
	`,
		order.Status,
		order.PaymentKey,
		order.PaidAt,
		order.SettledAt,
		order.UpdatedAt,
		order.ID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
