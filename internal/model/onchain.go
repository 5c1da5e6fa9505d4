package model

import "time"

type OnchainAction string

const OnchainActionMint OnchainAction = "MINT"

type OnchainRecordStatus string

const (
	OnchainRecordPending   OnchainRecordStatus = "PENDING"
	OnchainRecordSucceeded OnchainRecordStatus = "SUCCEEDED"
	OnchainRecordFailed    OnchainRecordStatus = "FAILED"
)

// OnchainStatus is the reconciled status shown to readers.
type OnchainStatus string

const (
	OnchainStatusWaiting   OnchainStatus = "WAITING_FOR_PROCESS"
	OnchainStatusPending   OnchainStatus = "PENDING"
	OnchainStatusSucceeded OnchainStatus = "SUCCEEDED"
	OnchainStatusFailed    OnchainStatus = "FAILED"
)

// OnchainRecord is one asynchronous attempt of an on-chain action.
// Among records of the same contract and action the highest ID is authoritative.
type OnchainRecord struct {
	ID           int64
	ContractID   int64
	Action       OnchainAction
	Status       OnchainRecordStatus
	TxHash       *string
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ContractNft exists only once a mint has durably succeeded.
type ContractNft struct {
	ContractID int64
	TokenID    string
	TxHash     string
	ImageURL   *string
	IssuedAt   time.Time
}
