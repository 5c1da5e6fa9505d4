package model

import "time"

// ContractView is the read projection of a contract with its reconciled on-chain status.
// OnchainStatus is empty for contracts that never reach minting.
type ContractView struct {
	Contract
	OnchainStatus OnchainStatus
}

// Listing bounds. Page is 1-based.
const (
	MaxListPage     = 10000
	MaxListSize     = 100
	DefaultListSize = 20
)

type ContractFilter struct {
	MemberID int64
	// Role restricts to contracts where the member is on that side. Zero means either side.
	Role     Party
	Statuses []ContractStatus
	Page     int
	Size     int
}

// StatementRow is one completed contract in a requester's settlement statement.
type StatementRow struct {
	ContractID   int64
	Title        string
	Counterparty string
	TotalAmount  int64
	Fee          int64
	Payout       int64
	SettledAt    *time.Time
}

type Statement struct {
	Requester   Member
	PeriodStart time.Time
	PeriodEnd   time.Time
	Rows        []StatementRow
}

// ContractDocument is everything the printable contract shows.
type ContractDocument struct {
	Contract      Contract
	Requester     Member
	Counterparty  Member
	OnchainStatus OnchainStatus
	GeneratedAt   time.Time
}
