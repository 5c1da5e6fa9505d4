package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nurpe/artmarket-contracts/internal/model"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrOrderNotPending = errors.New("order is not pending")
	ErrAmountMismatch  = errors.New("paid amount does not match order")
	ErrNoPaidOrder     = errors.New("contract has no paid order")
)

type OrderStore interface {
	CreatePending(ctx context.Context, order *model.Order) (bool, error)
	FindLatestByContract(ctx context.Context, contractID int64, status model.OrderStatus) (*model.Order, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Order, error)
	Update(ctx context.Context, order *model.Order) error
}

type Provider interface {
	ConfirmPayment(ctx context.Context, req ConfirmRequest) error
	Settle(ctx context.Context, req SettleRequest) error
}

// Orchestrator owns the order ledger of contracts. Every method expects to run inside the
// caller's unit of work so order writes commit or roll back with the contract transition.
type Orchestrator struct {
	orders   OrderStore
	provider Provider
	now      func() time.Time
	log      zerolog.Logger
}

func NewOrchestrator(orders OrderStore, provider Provider, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		orders:   orders,
		provider: provider,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log.With().Str("component", "payment").Logger(),
	}
}

// EnsurePendingOrder returns the contract's pending order, creating it when there is none.
// A concurrent creator winning the unique index is treated as "use theirs".
func (o *Orchestrator) EnsurePendingOrder(ctx context.Context, c *model.Contract) (*model.Order, error) {
	existing, err := o.orders.FindLatestByContract(ctx, c.ID, model.OrderStatusPending)
	if err == nil {
		o.log.Debug().Int64("contract_id", c.ID).Str("order_id", existing.ID.String()).Msg("reusing pending order")
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := o.now()
	fee, payout := c.Fee()
	order := &model.Order{
		ID:         uuid.New(),
		ContractID: c.ID,
		Amount:     c.TotalAmount,
		Fee:        fee,
		Payout:     payout,
		Status:     model.OrderStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	created, err := o.orders.CreatePending(ctx, order)
	if err != nil {
		return nil, err
	}
	if !created {
		o.log.Info().Int64("contract_id", c.ID).Msg("pending order created concurrently, reloading")
		return o.orders.FindLatestByContract(ctx, c.ID, model.OrderStatusPending)
	}
	return order, nil
}

// Order loads and locks an order.
func (o *Orchestrator) Order(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := o.orders.GetForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

// ConfirmPayment confirms the provider checkout of a pending order and marks it paid.
func (o *Orchestrator) ConfirmPayment(ctx context.Context, order *model.Order, paymentKey string, amount int64) error {
	if order.Status != model.OrderStatusPending {
		return fmt.Errorf("%w: %s", ErrOrderNotPending, order.Status)
	}
	if amount != order.Amount {
		return fmt.Errorf("%w: got %d, want %d", ErrAmountMismatch, amount, order.Amount)
	}
	if err := o.provider.ConfirmPayment(ctx, ConfirmRequest{
		OrderID:    order.ID.String(),
		PaymentKey: paymentKey,
		Amount:     amount,
	}); err != nil {
		return err
	}

	now := o.now()
	order.Status = model.OrderStatusPaid
	order.PaymentKey = &paymentKey
	order.PaidAt = &now
	order.UpdatedAt = now
	return o.orders.Update(ctx, order)
}

// Settle pays out the contract's paid order using the fee split stored on the order.
// An order that is already settled is returned as is.
func (o *Orchestrator) Settle(ctx context.Context, c *model.Contract) (*model.Order, error) {
	order, err := o.orders.FindLatestByContract(ctx, c.ID, model.OrderStatusPaid)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		settled, serr := o.orders.FindLatestByContract(ctx, c.ID, model.OrderStatusSettled)
		if serr == nil {
			return settled, nil
		}
		if errors.Is(serr, gorm.ErrRecordNotFound) {
			return nil, ErrNoPaidOrder
		}
		return nil, serr
	}
	if err != nil {
		return nil, err
	}

	req := SettleRequest{
		OrderID:    order.ID.String(),
		ContractID: c.ID,
		Amount:     order.Amount,
		Fee:        order.Fee,
		Payout:     order.Payout,
	}
	if order.PaymentKey != nil {
		req.PaymentKey = *order.PaymentKey
	}
	if err := o.provider.Settle(ctx, req); err != nil {
		o.log.Warn().Err(err).Int64("contract_id", c.ID).Str("order_id", order.ID.String()).Msg("settlement failed")
		return nil, err
	}

	now := o.now()
	order.Status = model.OrderStatusSettled
	order.SettledAt = &now
	order.UpdatedAt = now
	if err := o.orders.Update(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// Handle builds what the client needs to open the checkout for an order.
func Handle(c *model.Contract, order *model.Order) model.PaymentHandle {
	return model.PaymentHandle{
		OrderID:    order.ID,
		OrderName:  fmt.Sprintf("Contract #%d %s", c.ID, c.Title),
		Amount:     order.Amount,
		ContractID: c.ID,
	}
}
