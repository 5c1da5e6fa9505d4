package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/nurpe/artmarket-contracts/internal/model"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrContractNotFound    = fmt.Errorf("%w: contract", ErrNotFound)
	ErrApplicationNotFound = fmt.Errorf("%w: application", ErrNotFound)
	ErrMemberNotFound      = fmt.Errorf("%w: member", ErrNotFound)
	ErrOrderNotFound       = fmt.Errorf("%w: order", ErrNotFound)

	ErrAccessDenied    = model.ErrAccessDenied
	ErrNotProjectOwner = fmt.Errorf("%w: not the project owner", ErrAccessDenied)

	ErrInvalidStateTransition = model.ErrInvalidStateTransition
	ErrSignatureInvalid       = errors.New("signature invalid")
	ErrSettlementFailed       = errors.New("settlement failed")
	ErrDependencyUnavailable  = errors.New("dependency unavailable")

	ErrInvalidInput        = errors.New("invalid input")
	ErrWalletNotRegistered = fmt.Errorf("%w: wallet address not registered", ErrInvalidInput)
	ErrPaymentRejected     = fmt.Errorf("%w: payment rejected", ErrInvalidInput)
)

const (
	CodeNotFound               = "NOT_FOUND"
	CodeAccessDenied           = "ACCESS_DENIED"
	CodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	CodeSignatureInvalid       = "SIGNATURE_INVALID"
	CodeSettlementFailed       = "SETTLEMENT_FAILED"
	CodeDependencyUnavailable  = "DEPENDENCY_UNAVAILABLE"
	CodeInvalidInput           = "INVALID_INPUT"
	CodeInternal               = "INTERNAL"
)

// Code returns the stable identifier of a domain failure.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrAccessDenied):
		return CodeAccessDenied
	case errors.Is(err, ErrInvalidStateTransition):
		return CodeInvalidStateTransition
	case errors.Is(err, ErrSignatureInvalid):
		return CodeSignatureInvalid
	case errors.Is(err, ErrSettlementFailed):
		return CodeSettlementFailed
	case errors.Is(err, ErrInvalidInput), errors.Is(err, model.ErrInvalidTerms):
		return CodeInvalidInput
	case errors.Is(err, ErrDependencyUnavailable):
		return CodeDependencyUnavailable
	default:
		return CodeInternal
	}
}

// storeErr maps a repository error: not-found becomes notFound, anything else is an unavailable store.
func storeErr(err, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return unavailable(err)
}

func unavailable(err error) error {
	if err == nil || Code(err) != CodeInternal {
		return err
	}
	return fmt.Errorf("%w: %v", ErrDependencyUnavailable, err)
}
