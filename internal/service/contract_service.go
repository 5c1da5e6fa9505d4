package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nurpe/artmarket-contracts/internal/model"
	"github.com/nurpe/artmarket-contracts/internal/notify"
	"github.com/nurpe/artmarket-contracts/internal/onchain"
	"github.com/nurpe/artmarket-contracts/internal/payment"
	"github.com/nurpe/artmarket-contracts/internal/signature"
)

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type ContractStore interface {
	Create(ctx context.Context, c *model.Contract) error
	Get(ctx context.Context, id int64) (*model.Contract, error)
	GetForUpdate(ctx context.Context, id int64) (*model.Contract, error)
	Update(ctx context.Context, c *model.Contract) error
	List(ctx context.Context, filter model.ContractFilter) ([]model.Contract, error)
	ListSettled(ctx context.Context, requesterID int64, from, to time.Time) ([]model.StatementRow, error)
}

type ApplicationStore interface {
	GetForUpdate(ctx context.Context, id int64) (*model.Application, error)
	UpdateStatus(ctx context.Context, id int64, status model.ApplicationStatus) error
}

type MemberStore interface {
	Get(ctx context.Context, id int64) (*model.Member, error)
}

type FeePolicy interface {
	RateAt(ctx context.Context, at time.Time) (decimal.Decimal, bool, error)
}

type SignatureVerifier interface {
	Verify(ctx context.Context, walletAddress string, msg *signature.TypedMessage, sig string) bool
}

type PaymentOrchestrator interface {
	EnsurePendingOrder(ctx context.Context, c *model.Contract) (*model.Order, error)
	Order(ctx context.Context, id uuid.UUID) (*model.Order, error)
	ConfirmPayment(ctx context.Context, order *model.Order, paymentKey string, amount int64) error
	Settle(ctx context.Context, c *model.Contract) (*model.Order, error)
}

type OnchainCorrelator interface {
	Status(ctx context.Context, contractID int64) (model.OnchainStatus, error)
	Statuses(ctx context.Context, contractIDs []int64) (map[int64]model.OnchainStatus, error)
}

type AuditLog interface {
	Record(ctx context.Context, entry model.AuditEntry) error
	History(ctx context.Context, contractID int64) ([]model.AuditEntry, error)
}

type NotificationSink interface {
	Send(ctx context.Context, n notify.Notification) error
}

type MintQueue interface {
	Enqueue(ctx context.Context, req onchain.MintRequest) error
}

// SideEffects runs best-effort work after commit. It never reports failure.
type SideEffects interface {
	Run(ctx context.Context, name string, contractID int64, fn func(ctx context.Context) error)
}

type Deps struct {
	Tx           Transactor
	Contracts    ContractStore
	Applications ApplicationStore
	Members      MemberStore
	FeePolicy    FeePolicy
	DefaultFee   decimal.Decimal
	Domain       signature.Domain
	Verifier     SignatureVerifier
	Payments     PaymentOrchestrator
	Onchain      OnchainCorrelator
	Audit        AuditLog
	Notify       NotificationSink
	Mint         MintQueue
	Effects      SideEffects
}

type ContractService struct {
	Deps
	now func() time.Time
	log zerolog.Logger
}

func NewContractService(deps Deps, log zerolog.Logger) *ContractService {
	return &ContractService{
		Deps: deps,
		now:  func() time.Time { return time.Now().UTC() },
		log:  log.With().Str("component", "contracts").Logger(),
	}
}

type OfferInput struct {
	ApplicationID int64
	RequesterID   int64
	Terms         model.Terms
}

func (s *ContractService) OfferContract(ctx context.Context, input OfferInput) (*model.Contract, error) {
	if err := input.Terms.Validate(); err != nil {
		return nil, err
	}

	var contract *model.Contract
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		app, err := s.Applications.GetForUpdate(ctx, input.ApplicationID)
		if err != nil {
			return storeErr(err, ErrApplicationNotFound)
		}
		if app.ProjectOwnerID != input.RequesterID {
			return ErrNotProjectOwner
		}
		if _, err := s.Members.Get(ctx, app.ApplicantID); err != nil {
			return storeErr(err, ErrMemberNotFound)
		}

		now := s.now()
		rate, err := s.feeRate(ctx, now)
		if err != nil {
			return err
		}
		contract, err = model.NewContract(*app, input.RequesterID, input.Terms, rate, now)
		if err != nil {
			return err
		}
		if err := s.Contracts.Create(ctx, contract); err != nil {
			return unavailable(err)
		}
		if err := app.MarkOffered(); err != nil {
			return err
		}
		return unavailable(s.Applications.UpdateStatus(ctx, app.ID, app.Status))
	})
	if err != nil {
		return nil, unavailable(err)
	}

	s.log.Info().Int64("contract_id", contract.ID).Int64("application_id", input.ApplicationID).Msg("contract offered")
	s.afterCommit(ctx, contract, input.RequesterID, model.ActionOffer, "", nil, &notify.Notification{
		Kind:        notify.KindContractOffered,
		RecipientID: contract.CounterpartyID,
		Message:     contract.Title,
	})
	return contract, nil
}

// feeRate snapshots the policy rate in effect at the given time.
func (s *ContractService) feeRate(ctx context.Context, at time.Time) (decimal.Decimal, error) {
	rate, ok, err := s.FeePolicy.RateAt(ctx, at)
	if err != nil {
		return decimal.Zero, unavailable(err)
	}
	if !ok {
		return s.DefaultFee, nil
	}
	return rate, nil
}

func (s *ContractService) GetContractDetails(ctx context.Context, contractID, memberID int64) (*model.ContractView, error) {
	contract, err := s.Contracts.Get(ctx, contractID)
	if err != nil {
		return nil, storeErr(err, ErrContractNotFound)
	}
	if !contract.IsParty(memberID) {
		return nil, fmt.Errorf("%w: member %d is not a party of contract %d", ErrAccessDenied, memberID, contractID)
	}

	view := &model.ContractView{Contract: *contract}
	if contract.Status.TracksOnchain() {
		status, err := s.Onchain.Status(ctx, contractID)
		if err != nil {
			return nil, unavailable(err)
		}
		view.OnchainStatus = status
	}
	return view, nil
}

// ListContracts returns the member's contracts newest first, overlaid with on-chain status.
func (s *ContractService) ListContracts(ctx context.Context, filter model.ContractFilter) ([]model.ContractView, error) {
	if filter.MemberID == 0 {
		return nil, fmt.Errorf("%w: member is required", ErrInvalidInput)
	}
	contracts, err := s.Contracts.List(ctx, filter)
	if err != nil {
		return nil, unavailable(err)
	}

	tracked := make([]int64, 0, len(contracts))
	for _, c := range contracts {
		if c.Status.TracksOnchain() {
			tracked = append(tracked, c.ID)
		}
	}
	statuses := map[int64]model.OnchainStatus{}
	if len(tracked) > 0 {
		if statuses, err = s.Onchain.Statuses(ctx, tracked); err != nil {
			return nil, unavailable(err)
		}
	}

	views := make([]model.ContractView, 0, len(contracts))
	for _, c := range contracts {
		views = append(views, model.ContractView{Contract: c, OnchainStatus: statuses[c.ID]})
	}
	return views, nil
}

func (s *ContractService) DeclineContract(ctx context.Context, contractID, counterpartyID int64) (*model.Contract, error) {
	contract, from, err := s.transition(ctx, contractID, func(ctx context.Context, c *model.Contract) error {
		return c.Decline(counterpartyID, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, contract, counterpartyID, model.ActionDecline, from, nil, &notify.Notification{
		Kind:        notify.KindContractDeclined,
		RecipientID: contract.RequesterID,
	})
	return contract, nil
}

func (s *ContractService) ReofferContract(ctx context.Context, contractID, requesterID int64, terms model.Terms) (*model.Contract, error) {
	contract, from, err := s.transition(ctx, contractID, func(ctx context.Context, c *model.Contract) error {
		return c.Reoffer(requesterID, terms, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, contract, requesterID, model.ActionReoffer, from, nil, &notify.Notification{
		Kind:        notify.KindContractReoffered,
		RecipientID: contract.CounterpartyID,
		Message:     contract.Title,
	})
	return contract, nil
}

// WithdrawContract also puts the originating application back to APPROVED.
func (s *ContractService) WithdrawContract(ctx context.Context, contractID, requesterID int64) (*model.Contract, error) {
	contract, from, err := s.transition(ctx, contractID, func(ctx context.Context, c *model.Contract) error {
		if err := c.Withdraw(requesterID, s.now()); err != nil {
			return err
		}
		app, err := s.Applications.GetForUpdate(ctx, c.ApplicationID)
		if err != nil {
			return storeErr(err, ErrApplicationNotFound)
		}
		app.RevertOffer()
		return unavailable(s.Applications.UpdateStatus(ctx, app.ID, app.Status))
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, contract, requesterID, model.ActionWithdraw, from, nil, &notify.Notification{
		Kind:        notify.KindContractWithdrawn,
		RecipientID: contract.CounterpartyID,
	})
	return contract, nil
}

// GetSignatureData returns the message both parties sign. Only the parties may read it.
func (s *ContractService) GetSignatureData(ctx context.Context, contractID, partyID int64) (*signature.TypedMessage, error) {
	contract, err := s.Contracts.Get(ctx, contractID)
	if err != nil {
		return nil, storeErr(err, ErrContractNotFound)
	}
	if !contract.IsParty(partyID) {
		return nil, fmt.Errorf("%w: member %d is not a party of contract %d", ErrAccessDenied, partyID, contractID)
	}
	msg, _, _, err := s.typedMessage(ctx, contract)
	return msg, err
}

// ContractHistory returns the audit trail of a contract, oldest first. Parties only.
func (s *ContractService) ContractHistory(ctx context.Context, contractID, partyID int64) ([]model.AuditEntry, error) {
	contract, err := s.Contracts.Get(ctx, contractID)
	if err != nil {
		return nil, storeErr(err, ErrContractNotFound)
	}
	if !contract.IsParty(partyID) {
		return nil, fmt.Errorf("%w: member %d is not a party of contract %d", ErrAccessDenied, partyID, contractID)
	}
	entries, err := s.Audit.History(ctx, contractID)
	if err != nil {
		return nil, unavailable(err)
	}
	return entries, nil
}

func (s *ContractService) AcceptContract(ctx context.Context, contractID, counterpartyID int64, sig string) (*model.Contract, error) {
	contract, from, err := s.transition(ctx, contractID, func(ctx context.Context, c *model.Contract) error {
		if err := c.Check(model.ActionAccept, counterpartyID); err != nil {
			return err
		}
		msg, _, artistWallet, err := s.typedMessage(ctx, c)
		if err != nil {
			return err
		}
		if !s.Verifier.Verify(ctx, artistWallet, msg, sig) {
			return fmt.Errorf("%w: counterparty signature does not match contract %d", ErrSignatureInvalid, c.ID)
		}
		return c.Accept(counterpartyID, sig, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, contract, counterpartyID, model.ActionAccept, from, nil, &notify.Notification{
		Kind:        notify.KindContractAccepted,
		RecipientID: contract.RequesterID,
	})
	return contract, nil
}

// FinalizeContract stores the requester signature and opens the payment order.
// A retry carrying the signature already stored returns the same pending order.
func (s *ContractService) FinalizeContract(ctx context.Context, contractID, requesterID int64, sig, nftImageURL string) (*model.Contract, *model.PaymentHandle, error) {
	var (
		order  *model.Order
		replay bool
	)
	contract, from, err := s.transition(ctx, contractID, func(ctx context.Context, c *model.Contract) error {
		if c.Status == model.ContractStatusPaymentPending && c.RequesterID == requesterID &&
			c.RequesterSignature != nil && *c.RequesterSignature == sig {
			replay = true
			var err error
			order, err = s.Payments.EnsurePendingOrder(ctx, c)
			return unavailable(err)
		}

		if err := c.Check(model.ActionFinalize, requesterID); err != nil {
			return err
		}
		msg, leaderWallet, _, err := s.typedMessage(ctx, c)
		if err != nil {
			return err
		}
		if !s.Verifier.Verify(ctx, leaderWallet, msg, sig) {
			return fmt.Errorf("%w: requester signature does not match contract %d", ErrSignatureInvalid, c.ID)
		}
		if err := c.Finalize(requesterID, sig, nftImageURL, s.now()); err != nil {
			return err
		}
		// the order is created after the contract row is written so a failure rolls both back
		if err := s.Contracts.Update(ctx, c); err != nil {
			return storeErr(err, ErrContractNotFound)
		}
		order, err = s.Payments.EnsurePendingOrder(ctx, c)
		return unavailable(err)
	}, withoutUpdate())
	if err != nil {
		return nil, nil, err
	}

	handle := payment.Handle(contract, order)
	if replay {
		s.log.Info().Int64("contract_id", contract.ID).Str("order_id", order.ID.String()).Msg("finalize replayed")
		return contract, &handle, nil
	}
	s.afterCommit(ctx, contract, requesterID, model.ActionFinalize, from, nil, &notify.Notification{
		Kind:        notify.KindContractFinalized,
		RecipientID: contract.CounterpartyID,
	})
	return contract, &handle, nil
}

// ConfirmPayment handles the payment provider callback for an order.
// A repeated callback for an already paid order returns the contract unchanged.
func (s *ContractService) ConfirmPayment(ctx context.Context, orderID uuid.UUID, paymentKey string, amount int64) (*model.Contract, error) {
	if strings.TrimSpace(paymentKey) == "" {
		return nil, fmt.Errorf("%w: payment key is required", ErrInvalidInput)
	}

	var (
		contract *model.Contract
		from     model.ContractStatus
		replay   bool
	)
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		order, err := s.Payments.Order(ctx, orderID)
		if err != nil {
			if errors.Is(err, payment.ErrOrderNotFound) {
				return ErrOrderNotFound
			}
			return unavailable(err)
		}
		c, err := s.Contracts.GetForUpdate(ctx, order.ContractID)
		if err != nil {
			return storeErr(err, ErrContractNotFound)
		}
		from = c.Status

		if order.Status == model.OrderStatusPaid || order.Status == model.OrderStatusSettled {
			replay = true
			contract = c
			return nil
		}
		if err := c.Check(model.ActionCompletePayment, 0); err != nil {
			return err
		}
		if err := s.Payments.ConfirmPayment(ctx, order, paymentKey, amount); err != nil {
			return paymentErr(err)
		}
		if err := c.CompletePayment(s.now()); err != nil {
			return err
		}
		if err := s.Contracts.Update(ctx, c); err != nil {
			return storeErr(err, ErrContractNotFound)
		}
		contract = c
		return nil
	})
	if err != nil {
		return nil, unavailable(err)
	}
	if replay {
		return contract, nil
	}

	s.log.Info().Int64("contract_id", contract.ID).Str("order_id", orderID.String()).Msg("payment completed")
	s.afterCommit(ctx, contract, 0, model.ActionCompletePayment, from, nil, &notify.Notification{
		Kind:        notify.KindPaymentCompleted,
		RecipientID: contract.CounterpartyID,
	})
	s.enqueueMint(ctx, contract)
	return contract, nil
}

func (s *ContractService) enqueueMint(ctx context.Context, c *model.Contract) {
	snapshot := c.Clone()
	s.Effects.Run(ctx, "mint", snapshot.ID, func(ctx context.Context) error {
		leader, artist, err := s.wallets(ctx, snapshot)
		if err != nil {
			return err
		}
		req := onchain.MintRequest{ContractID: snapshot.ID, Leader: leader, Artist: artist}
		if snapshot.NftImageURL != nil {
			req.ImageURL = *snapshot.NftImageURL
		}
		return s.Mint.Enqueue(ctx, req)
	})
}

// ConfirmCompletionAndSettle settles the paid order and completes the contract.
// When settlement fails the contract stays PAYMENT_COMPLETED.
func (s *ContractService) ConfirmCompletionAndSettle(ctx context.Context, contractID, requesterID int64) (*model.Contract, error) {
	contract, from, err := s.transition(ctx, contractID, func(ctx context.Context, c *model.Contract) error {
		if err := c.Check(model.ActionConfirmCompletion, requesterID); err != nil {
			return err
		}
		if _, err := s.Payments.Settle(ctx, c); err != nil {
			return settlementErr(err)
		}
		return c.ConfirmCompletion(requesterID, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, contract, requesterID, model.ActionConfirmCompletion, from, nil, &notify.Notification{
		Kind:        notify.KindContractCompleted,
		RecipientID: contract.CounterpartyID,
	})
	return contract, nil
}

// RequestCancellation records the request and notifies the other party.
// Resolving the cancellation happens outside this service.
func (s *ContractService) RequestCancellation(ctx context.Context, contractID, partyID int64, reason string) (*model.Contract, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: cancellation reason is required", ErrInvalidInput)
	}
	contract, from, err := s.transition(ctx, contractID, func(ctx context.Context, c *model.Contract) error {
		return c.RequestCancellation(partyID, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, contract, partyID, model.ActionRequestCancellation, from, &reason, &notify.Notification{
		Kind:        notify.KindCancellationRequested,
		RecipientID: contract.OtherParty(partyID),
		Message:     reason,
	})
	return contract, nil
}

type transitionOption func(*transitionOptions)

type transitionOptions struct {
	skipUpdate bool
}

// withoutUpdate is for transitions that persist the contract themselves.
func withoutUpdate() transitionOption {
	return func(o *transitionOptions) { o.skipUpdate = true }
}

// transition loads the contract under lock, applies fn and persists the result in one unit of work.
// It returns the committed contract and its status before fn ran.
func (s *ContractService) transition(
	ctx context.Context,
	contractID int64,
	fn func(ctx context.Context, c *model.Contract) error,
	opts ...transitionOption,
) (*model.Contract, model.ContractStatus, error) {
	var options transitionOptions
	for _, opt := range opts {
		opt(&options)
	}

	var (
		contract *model.Contract
		from     model.ContractStatus
	)
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.Contracts.GetForUpdate(ctx, contractID)
		if err != nil {
			return storeErr(err, ErrContractNotFound)
		}
		from = c.Status
		if err := fn(ctx, c); err != nil {
			return err
		}
		if !options.skipUpdate {
			if err := s.Contracts.Update(ctx, c); err != nil {
				return storeErr(err, ErrContractNotFound)
			}
		}
		contract = c
		return nil
	})
	if err != nil {
		return nil, "", unavailable(err)
	}
	return contract, from, nil
}

// typedMessage rebuilds the signing message from the current contract state and returns it
// with the requester and counterparty wallets.
func (s *ContractService) typedMessage(ctx context.Context, c *model.Contract) (*signature.TypedMessage, string, string, error) {
	leader, artist, err := s.wallets(ctx, c)
	if err != nil {
		return nil, "", "", err
	}
	msg, err := signature.BuildMessage(s.Domain, c, leader, artist)
	if err != nil {
		if errors.Is(err, signature.ErrInvalidAddress) {
			return nil, "", "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, "", "", err
	}
	return msg, leader, artist, nil
}

func (s *ContractService) wallets(ctx context.Context, c *model.Contract) (leader, artist string, err error) {
	addrs := make([]string, 0, 2)
	for _, id := range []int64{c.RequesterID, c.CounterpartyID} {
		m, err := s.Members.Get(ctx, id)
		if err != nil {
			return "", "", storeErr(err, ErrMemberNotFound)
		}
		if m.WalletAddress == nil || strings.TrimSpace(*m.WalletAddress) == "" {
			return "", "", fmt.Errorf("%w: member %d", ErrWalletNotRegistered, id)
		}
		addrs = append(addrs, *m.WalletAddress)
	}
	return addrs[0], addrs[1], nil
}

// afterCommit appends the audit entry and sends the notification as independent best-effort effects.
func (s *ContractService) afterCommit(
	ctx context.Context,
	c *model.Contract,
	actorID int64,
	action model.ContractAction,
	from model.ContractStatus,
	reason *string,
	n *notify.Notification,
) {
	entry := model.AuditEntry{
		ContractID: c.ID,
		ActorID:    actorID,
		Action:     action,
		FromStatus: from,
		ToStatus:   c.Status,
		Reason:     reason,
		CreatedAt:  s.now(),
	}
	s.Effects.Run(ctx, "audit", c.ID, func(ctx context.Context) error {
		return s.Audit.Record(ctx, entry)
	})

	if n == nil || n.RecipientID == 0 {
		return
	}
	notice := *n
	notice.ContractID = c.ID
	notice.ActorID = actorID
	s.Effects.Run(ctx, "notify", c.ID, func(ctx context.Context) error {
		return s.Notify.Send(ctx, notice)
	})
}

func paymentErr(err error) error {
	switch {
	case errors.Is(err, payment.ErrOrderNotPending):
		return fmt.Errorf("%w: %v", ErrInvalidStateTransition, err)
	case errors.Is(err, payment.ErrAmountMismatch), errors.Is(err, payment.ErrRejected):
		return fmt.Errorf("%w: %v", ErrPaymentRejected, err)
	default:
		return unavailable(err)
	}
}

func settlementErr(err error) error {
	switch {
	case errors.Is(err, payment.ErrNoPaidOrder),
		errors.Is(err, payment.ErrRejected),
		errors.Is(err, payment.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrSettlementFailed, err)
	default:
		return unavailable(err)
	}
}
