package model

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

type ContractAction string

const (
	ActionDecline             ContractAction = "DECLINE"
	ActionReoffer             ContractAction = "REOFFER"
	ActionWithdraw            ContractAction = "WITHDRAW"
	ActionAccept              ContractAction = "ACCEPT"
	ActionFinalize            ContractAction = "FINALIZE"
	ActionCompletePayment     ContractAction = "COMPLETE_PAYMENT"
	ActionConfirmCompletion   ContractAction = "CONFIRM_COMPLETION"
	ActionRequestCancellation ContractAction = "REQUEST_CANCELLATION"
)

// Party identifies who is allowed to drive a transition.
type Party int

const (
	PartyRequester Party = iota + 1
	PartyCounterparty
	PartyEither
	// PartySystem transitions are driven by the payment provider, never by a member.
	PartySystem
)

type transition struct {
	actor Party
	from  []ContractStatus
	to    ContractStatus
}

var transitions = map[ContractAction]transition{
	ActionDecline: {
		actor: PartyCounterparty,
		from:  []ContractStatus{ContractStatusPending},
		to:    ContractStatusDeclined,
	},
	ActionReoffer: {
		actor: PartyRequester,
		from:  []ContractStatus{ContractStatusDeclined},
		to:    ContractStatusPending,
	},
	ActionWithdraw: {
		actor: PartyRequester,
		from:  []ContractStatus{ContractStatusPending, ContractStatusDeclined},
		to:    ContractStatusWithdrawn,
	},
	ActionAccept: {
		actor: PartyCounterparty,
		from:  []ContractStatus{ContractStatusPending},
		to:    ContractStatusArtistSigned,
	},
	ActionFinalize: {
		actor: PartyRequester,
		from:  []ContractStatus{ContractStatusArtistSigned},
		to:    ContractStatusPaymentPending,
	},
	ActionCompletePayment: {
		actor: PartySystem,
		from:  []ContractStatus{ContractStatusPaymentPending},
		to:    ContractStatusPaymentCompleted,
	},
	ActionConfirmCompletion: {
		actor: PartyRequester,
		from:  []ContractStatus{ContractStatusPaymentCompleted},
		to:    ContractStatusCompleted,
	},
	ActionRequestCancellation: {
		actor: PartyEither,
		from: []ContractStatus{
			ContractStatusArtistSigned,
			ContractStatusPaymentPending,
			ContractStatusPaymentCompleted,
			ContractStatusCancellationRequested,
		},
		to: ContractStatusCancellationRequested,
	},
}

// Actions lists every action the state machine knows about.
func Actions() []ContractAction {
	return []ContractAction{
		ActionDecline,
		ActionReoffer,
		ActionWithdraw,
		ActionAccept,
		ActionFinalize,
		ActionCompletePayment,
		ActionConfirmCompletion,
		ActionRequestCancellation,
	}
}

// AllowedFrom reports whether action has an edge leaving status.
func AllowedFrom(action ContractAction, status ContractStatus) bool {
	t, ok := transitions[action]
	return ok && slices.Contains(t.from, status)
}

// Check validates that actorID may apply action to the contract in its current state.
// The role is checked first: a caller who is not the required party is denied regardless of state.
// Check never mutates the contract.
func (c *Contract) Check(action ContractAction, actorID int64) error {
	t, ok := transitions[action]
	if !ok {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidStateTransition, action)
	}
	if !c.plays(t.actor, actorID) {
		return fmt.Errorf("%w: member %d cannot %s contract %d", ErrAccessDenied, actorID, verb(action), c.ID)
	}
	if !slices.Contains(t.from, c.Status) {
		return fmt.Errorf("%w: cannot %s a contract in %s", ErrInvalidStateTransition, verb(action), c.Status)
	}
	return nil
}

func (c *Contract) plays(party Party, actorID int64) bool {
	switch party {
	case PartySystem:
		return true
	case PartyRequester:
		return actorID != 0 && actorID == c.RequesterID
	case PartyCounterparty:
		return actorID != 0 && actorID == c.CounterpartyID
	case PartyEither:
		return c.IsParty(actorID)
	default:
		return false
	}
}

func (c *Contract) apply(action ContractAction, now time.Time) {
	c.Status = transitions[action].to
	c.UpdatedAt = now.UTC()
}

func (c *Contract) Decline(actorID int64, now time.Time) error {
	if err := c.Check(ActionDecline, actorID); err != nil {
		return err
	}
	c.apply(ActionDecline, now)
	return nil
}

// Reoffer replaces the terms of a declined contract and puts it back to PENDING.
// Parties and the fee rate stay as they were at offer time.
func (c *Contract) Reoffer(actorID int64, terms Terms, now time.Time) error {
	if err := c.Check(ActionReoffer, actorID); err != nil {
		return err
	}
	if err := terms.Validate(); err != nil {
		return err
	}
	c.Title = strings.TrimSpace(terms.Title)
	c.Description = terms.Description
	c.StartAt = terms.StartAt.UTC()
	c.EndAt = terms.EndAt.UTC()
	c.TotalAmount = terms.TotalAmount
	c.apply(ActionReoffer, now)
	return nil
}

func (c *Contract) Withdraw(actorID int64, now time.Time) error {
	if err := c.Check(ActionWithdraw, actorID); err != nil {
		return err
	}
	c.apply(ActionWithdraw, now)
	return nil
}

// Accept stores the counterparty signature. The caller is responsible for verifying it first.
func (c *Contract) Accept(actorID int64, signature string, now time.Time) error {
	if err := c.Check(ActionAccept, actorID); err != nil {
		return err
	}
	if c.CounterpartySignature != nil {
		return fmt.Errorf("%w: counterparty signature already set", ErrInvalidStateTransition)
	}
	if strings.TrimSpace(signature) == "" {
		return fmt.Errorf("%w: signature is required", ErrInvalidTerms)
	}
	c.CounterpartySignature = &signature
	c.apply(ActionAccept, now)
	return nil
}

// Finalize stores the requester signature and the NFT image reference.
func (c *Contract) Finalize(actorID int64, signature, nftImageURL string, now time.Time) error {
	if err := c.Check(ActionFinalize, actorID); err != nil {
		return err
	}
	if c.RequesterSignature != nil {
		return fmt.Errorf("%w: requester signature already set", ErrInvalidStateTransition)
	}
	if strings.TrimSpace(signature) == "" {
		return fmt.Errorf("%w: signature is required", ErrInvalidTerms)
	}
	c.RequesterSignature = &signature
	if image := strings.TrimSpace(nftImageURL); image != "" {
		c.NftImageURL = &image
	}
	c.apply(ActionFinalize, now)
	return nil
}

func (c *Contract) CompletePayment(now time.Time) error {
	if err := c.Check(ActionCompletePayment, 0); err != nil {
		return err
	}
	c.apply(ActionCompletePayment, now)
	return nil
}

func (c *Contract) ConfirmCompletion(actorID int64, now time.Time) error {
	if err := c.Check(ActionConfirmCompletion, actorID); err != nil {
		return err
	}
	c.apply(ActionConfirmCompletion, now)
	return nil
}

// RequestCancellation is re-entrant: a contract already waiting for cancellation accepts it again.
func (c *Contract) RequestCancellation(actorID int64, now time.Time) error {
	if err := c.Check(ActionRequestCancellation, actorID); err != nil {
		return err
	}
	c.apply(ActionRequestCancellation, now)
	return nil
}

func verb(action ContractAction) string {
	return strings.ReplaceAll(strings.ToLower(string(action)), "_", " ")
}
