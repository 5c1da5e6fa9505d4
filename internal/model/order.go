package model

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "PENDING"
	OrderStatusPaid     OrderStatus = "PAID"
	OrderStatusSettled  OrderStatus = "SETTLED"
	OrderStatusCanceled OrderStatus = "CANCELED"
)

// Order is the payment provider side of a finalized contract.
// At most one PENDING order exists per contract.
type Order struct {
	ID         uuid.UUID
	ContractID int64
	Amount     int64
	Fee        int64
	Payout     int64
	Status     OrderStatus
	PaymentKey *string
	PaidAt     *time.Time
	SettledAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PaymentHandle is what a requester needs to open the provider checkout for an order.
type PaymentHandle struct {
	OrderID    uuid.UUID `json:"order_id"`
	OrderName  string    `json:"order_name"`
	Amount     int64     `json:"amount"`
	ContractID int64     `json:"contract_id"`
}
