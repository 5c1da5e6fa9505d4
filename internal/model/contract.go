package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ContractStatus string

const (
	ContractStatusPending               ContractStatus = "PENDING"
	ContractStatusDeclined              ContractStatus = "DECLINED"
	ContractStatusWithdrawn             ContractStatus = "WITHDRAWN"
	ContractStatusArtistSigned          ContractStatus = "ARTIST_SIGNED"
	ContractStatusPaymentPending        ContractStatus = "PAYMENT_PENDING"
	ContractStatusPaymentCompleted      ContractStatus = "PAYMENT_COMPLETED"
	ContractStatusCancellationRequested ContractStatus = "CANCELLATION_REQUESTED"
	ContractStatusCompleted             ContractStatus = "COMPLETED"
	ContractStatusCanceled              ContractStatus = "CANCELED"
)

// AllContractStatuses lists every state in lifecycle order.
var AllContractStatuses = []ContractStatus{
	ContractStatusPending,
	ContractStatusDeclined,
	ContractStatusWithdrawn,
	ContractStatusArtistSigned,
	ContractStatusPaymentPending,
	ContractStatusPaymentCompleted,
	ContractStatusCancellationRequested,
	ContractStatusCompleted,
	ContractStatusCanceled,
}

func ParseContractStatus(raw string) (ContractStatus, bool) {
	status := ContractStatus(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range AllContractStatuses {
		if known == status {
			return status, true
		}
	}
	return "", false
}

// TracksOnchain reports whether a mint may have been requested for a contract in this state.
func (s ContractStatus) TracksOnchain() bool {
	switch s {
	case ContractStatusPaymentCompleted,
		ContractStatusCancellationRequested,
		ContractStatusCompleted,
		ContractStatusCanceled:
		return true
	default:
		return false
	}
}

// Terms are the negotiable part of a contract. They are editable only through a reoffer.
type Terms struct {
	Title       string
	Description string
	StartAt     time.Time
	EndAt       time.Time
	TotalAmount int64
}

func (t Terms) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidTerms)
	}
	if t.TotalAmount <= 0 {
		return fmt.Errorf("%w: total amount must be positive", ErrInvalidTerms)
	}
	if t.StartAt.IsZero() || t.EndAt.IsZero() {
		return fmt.Errorf("%w: schedule is required", ErrInvalidTerms)
	}
	if !t.EndAt.After(t.StartAt) {
		return fmt.Errorf("%w: end must be after start", ErrInvalidTerms)
	}
	return nil
}

type Contract struct {
	ID                    int64
	ApplicationID         int64
	ProjectID             int64
	RequesterID           int64
	CounterpartyID        int64
	Title                 string
	Description           string
	StartAt               time.Time
	EndAt                 time.Time
	TotalAmount           int64
	FeeRate               decimal.Decimal
	CounterpartySignature *string
	RequesterSignature    *string
	NftImageURL           *string
	Status                ContractStatus
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// NewContract builds a PENDING contract offered from an approved application.
// feeRate is the policy rate at offer time and is never recomputed afterwards.
func NewContract(app Application, requesterID int64, terms Terms, feeRate decimal.Decimal, now time.Time) (*Contract, error) {
	if app.Status != ApplicationStatusApproved {
		return nil, fmt.Errorf("%w: application is %s", ErrInvalidStateTransition, app.Status)
	}
	if app.ApplicantID == requesterID {
		return nil, fmt.Errorf("%w: member %d cannot contract with themselves", ErrAccessDenied, requesterID)
	}
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	if feeRate.IsNegative() || feeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: fee rate %s out of range", ErrInvalidTerms, feeRate)
	}
	now = now.UTC()
	return &Contract{
		ApplicationID:  app.ID,
		ProjectID:      app.ProjectID,
		RequesterID:    requesterID,
		CounterpartyID: app.ApplicantID,
		Title:          strings.TrimSpace(terms.Title),
		Description:    terms.Description,
		StartAt:        terms.StartAt.UTC(),
		EndAt:          terms.EndAt.UTC(),
		TotalAmount:    terms.TotalAmount,
		FeeRate:        feeRate,
		Status:         ContractStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (c *Contract) Terms() Terms {
	return Terms{
		Title:       c.Title,
		Description: c.Description,
		StartAt:     c.StartAt,
		EndAt:       c.EndAt,
		TotalAmount: c.TotalAmount,
	}
}

func (c *Contract) IsParty(memberID int64) bool {
	return memberID != 0 && (memberID == c.RequesterID || memberID == c.CounterpartyID)
}

// OtherParty returns the party on the opposite side of memberID.
func (c *Contract) OtherParty(memberID int64) int64 {
	if memberID == c.RequesterID {
		return c.CounterpartyID
	}
	return c.RequesterID
}

// Fee splits the total amount using the snapshotted fee rate. The fee is rounded down.
func (c *Contract) Fee() (fee int64, payout int64) {
	fee = decimal.NewFromInt(c.TotalAmount).Mul(c.FeeRate).Floor().IntPart()
	return fee, c.TotalAmount - fee
}

// Clone returns a deep copy so callers can keep a pre-transition snapshot.
func (c *Contract) Clone() *Contract {
	cp := *c
	cp.CounterpartySignature = cloneString(c.CounterpartySignature)
	cp.RequesterSignature = cloneString(c.RequesterSignature)
	cp.NftImageURL = cloneString(c.NftImageURL)
	return &cp
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}
