package model

import "time"

type AuditEntry struct {
	ID         int64
	ContractID int64
	ActorID    int64
	Action     ContractAction
	FromStatus ContractStatus
	ToStatus   ContractStatus
	Reason     *string
	CreatedAt  time.Time
}

// ActionOffer appears only in the audit trail: an offer creates the contract rather than moving it.
const ActionOffer ContractAction = "OFFER"
