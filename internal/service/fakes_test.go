package service

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/firefly-signer/pkg/secp256k1"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nurpe/artmarket-contracts/internal/effects"
	"github.com/nurpe/artmarket-contracts/internal/model"
	"github.com/nurpe/artmarket-contracts/internal/notify"
	"github.com/nurpe/artmarket-contracts/internal/onchain"
	"github.com/nurpe/artmarket-contracts/internal/payment"
	"github.com/nurpe/artmarket-contracts/internal/signature"
)

var testDomain = signature.Domain{
	Name:              "ArtMarket",
	Version:           "1",
	ChainID:           11155111,
	VerifyingContract: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
}

const (
	requesterID    int64 = 1
	counterpartyID int64 = 2
	outsiderID     int64 = 3
	applicationID  int64 = 42
)

// memDB backs every store fake so the snapshot transactor can roll all of them back together.
type memDB struct {
	mu           sync.Mutex
	contracts    map[int64]*model.Contract
	applications map[int64]*model.Application
	members      map[int64]*model.Member
	orders       []*model.Order
	nextID       int64

	feeRate        *decimal.Decimal
	failOrderWrite error
}

func newMemDB() *memDB {
	return &memDB{
		contracts:    map[int64]*model.Contract{},
		applications: map[int64]*model.Application{},
		members:      map[int64]*model.Member{},
	}
}

type snapshot struct {
	contracts    map[int64]*model.Contract
	applications map[int64]*model.Application
	orders       []*model.Order
}

func (db *memDB) snapshot() snapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	s := snapshot{
		contracts:    map[int64]*model.Contract{},
		applications: map[int64]*model.Application{},
	}
	for id, c := range db.contracts {
		s.contracts[id] = c.Clone()
	}
	for id, a := range db.applications {
		cp := *a
		s.applications[id] = &cp
	}
	for _, o := range db.orders {
		cp := *o
		s.orders = append(s.orders, &cp)
	}
	return s
}

func (db *memDB) restore(s snapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.contracts = s.contracts
	db.applications = s.applications
	db.orders = s.orders
}

type snapshotTx struct{ db *memDB }

func (t snapshotTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	saved := t.db.snapshot()
	if err := fn(ctx); err != nil {
		t.db.restore(saved)
		return err
	}
	return nil
}

type contractStore struct{ db *memDB }

func (s contractStore) Create(_ context.Context, c *model.Contract) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.nextID++
	c.ID = s.db.nextID
	s.db.contracts[c.ID] = c.Clone()
	return nil
}

func (s contractStore) Get(_ context.Context, id int64) (*model.Contract, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c, ok := s.db.contracts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return c.Clone(), nil
}

func (s contractStore) GetForUpdate(ctx context.Context, id int64) (*model.Contract, error) {
	return s.Get(ctx, id)
}

func (s contractStore) Update(_ context.Context, c *model.Contract) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.contracts[c.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	s.db.contracts[c.ID] = c.Clone()
	return nil
}

func (s contractStore) List(_ context.Context, filter model.ContractFilter) ([]model.Contract, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.Contract
	for id := s.db.nextID; id > 0; id-- {
		c, ok := s.db.contracts[id]
		if ok && c.IsParty(filter.MemberID) {
			out = append(out, *c.Clone())
		}
	}
	return out, nil
}

func (s contractStore) ListSettled(_ context.Context, requester int64, from, to time.Time) ([]model.StatementRow, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var rows []model.StatementRow
	for _, o := range s.db.orders {
		c := s.db.contracts[o.ContractID]
		if c == nil || c.RequesterID != requester || o.Status != model.OrderStatusSettled || o.SettledAt == nil {
			continue
		}
		if o.SettledAt.Before(from) || !o.SettledAt.Before(to) {
			continue
		}
		rows = append(rows, model.StatementRow{
			ContractID:  c.ID,
			Title:       c.Title,
			TotalAmount: o.Amount,
			Fee:         o.Fee,
			Payout:      o.Payout,
			SettledAt:   o.SettledAt,
		})
	}
	return rows, nil
}

type applicationStore struct{ db *memDB }

func (s applicationStore) GetForUpdate(_ context.Context, id int64) (*model.Application, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	a, ok := s.db.applications[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *a
	return &cp, nil
}

func (s applicationStore) UpdateStatus(_ context.Context, id int64, status model.ApplicationStatus) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	a, ok := s.db.applications[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	a.Status = status
	return nil
}

type memberStore struct{ db *memDB }

func (s memberStore) Get(_ context.Context, id int64) (*model.Member, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	m, ok := s.db.members[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *m
	return &cp, nil
}

type feeStore struct{ db *memDB }

func (s feeStore) RateAt(_ context.Context, _ time.Time) (decimal.Decimal, bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.feeRate == nil {
		return decimal.Zero, false, nil
	}
	return *s.db.feeRate, true, nil
}

type orderStore struct{ db *memDB }

func (s orderStore) CreatePending(_ context.Context, order *model.Order) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.failOrderWrite != nil {
		return false, s.db.failOrderWrite
	}
	for _, o := range s.db.orders {
		if o.ContractID == order.ContractID && o.Status == model.OrderStatusPending {
			return false, nil
		}
	}
	cp := *order
	s.db.orders = append(s.db.orders, &cp)
	return true, nil
}

func (s orderStore) FindLatestByContract(_ context.Context, contractID int64, status model.OrderStatus) (*model.Order, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for i := len(s.db.orders) - 1; i >= 0; i-- {
		if o := s.db.orders[i]; o.ContractID == contractID && o.Status == status {
			cp := *o
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s orderStore) GetForUpdate(_ context.Context, id uuid.UUID) (*model.Order, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, o := range s.db.orders {
		if o.ID == id {
			cp := *o
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s orderStore) Update(_ context.Context, order *model.Order) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for i, o := range s.db.orders {
		if o.ID == order.ID {
			cp := *order
			s.db.orders[i] = &cp
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type fakeProvider struct {
	confirmErr error
	settleErr  error
	confirms   int
	settles    []payment.SettleRequest
}

func (p *fakeProvider) ConfirmPayment(_ context.Context, _ payment.ConfirmRequest) error {
	p.confirms++
	return p.confirmErr
}

func (p *fakeProvider) Settle(_ context.Context, req payment.SettleRequest) error {
	if p.settleErr != nil {
		return p.settleErr
	}
	p.settles = append(p.settles, req)
	return nil
}

type fakeOnchain struct {
	statuses map[int64]model.OnchainStatus
	queried  [][]int64
}

func (f *fakeOnchain) Status(ctx context.Context, id int64) (model.OnchainStatus, error) {
	statuses, err := f.Statuses(ctx, []int64{id})
	return statuses[id], err
}

func (f *fakeOnchain) Statuses(_ context.Context, ids []int64) (map[int64]model.OnchainStatus, error) {
	f.queried = append(f.queried, ids)
	out := map[int64]model.OnchainStatus{}
	for _, id := range ids {
		if s, ok := f.statuses[id]; ok {
			out[id] = s
		} else {
			out[id] = model.OnchainStatusWaiting
		}
	}
	return out, nil
}

type fakeAudit struct {
	entries []model.AuditEntry
	err     error
}

func (a *fakeAudit) Record(_ context.Context, e model.AuditEntry) error {
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, e)
	return nil
}

func (a *fakeAudit) History(_ context.Context, contractID int64) ([]model.AuditEntry, error) {
	if a.err != nil {
		return nil, a.err
	}
	var out []model.AuditEntry
	for _, e := range a.entries {
		if e.ContractID == contractID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (a *fakeAudit) count(action model.ContractAction) int {
	n := 0
	for _, e := range a.entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

type fakeNotify struct {
	sent []notify.Notification
	err  error
}

func (n *fakeNotify) Send(_ context.Context, msg notify.Notification) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

type fakeMint struct {
	requests []onchain.MintRequest
	err      error
	panics   bool
}

func (m *fakeMint) Enqueue(_ context.Context, req onchain.MintRequest) error {
	if m.panics {
		panic("mint queue exploded")
	}
	if m.err != nil {
		return m.err
	}
	m.requests = append(m.requests, req)
	return nil
}

type fixture struct {
	db       *memDB
	svc      *ContractService
	provider *fakeProvider
	onchain  *fakeOnchain
	audit    *fakeAudit
	notify   *fakeNotify
	mint     *fakeMint

	requesterKey    *secp256k1.KeyPair
	counterpartyKey *secp256k1.KeyPair
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	requesterKey, err := secp256k1.GenerateSecp256k1KeyPair()
	require.NoError(t, err)
	counterpartyKey, err := secp256k1.GenerateSecp256k1KeyPair()
	require.NoError(t, err)

	db := newMemDB()
	requesterWallet := requesterKey.Address.String()
	counterpartyWallet := counterpartyKey.Address.String()
	db.members[requesterID] = &model.Member{ID: requesterID, Nickname: "leader", WalletAddress: &requesterWallet}
	db.members[counterpartyID] = &model.Member{ID: counterpartyID, Nickname: "artist", WalletAddress: &counterpartyWallet}
	db.members[outsiderID] = &model.Member{ID: outsiderID, Nickname: "outsider"}
	db.applications[applicationID] = &model.Application{
		ID:             applicationID,
		ProjectID:      5,
		ProjectOwnerID: requesterID,
		ApplicantID:    counterpartyID,
		Status:         model.ApplicationStatusApproved,
	}

	f := &fixture{
		db:              db,
		provider:        &fakeProvider{},
		onchain:         &fakeOnchain{statuses: map[int64]model.OnchainStatus{}},
		audit:           &fakeAudit{},
		notify:          &fakeNotify{},
		mint:            &fakeMint{},
		requesterKey:    requesterKey,
		counterpartyKey: counterpartyKey,
	}
	log := zerolog.Nop()
	f.svc = NewContractService(Deps{
		Tx:           snapshotTx{db: db},
		Contracts:    contractStore{db: db},
		Applications: applicationStore{db: db},
		Members:      memberStore{db: db},
		FeePolicy:    feeStore{db: db},
		DefaultFee:   decimal.RequireFromString("0.1"),
		Domain:       testDomain,
		Verifier:     signature.NewVerifier(testDomain, log),
		Payments:     payment.NewOrchestrator(orderStore{db: db}, f.provider, log),
		Onchain:      f.onchain,
		Audit:        f.audit,
		Notify:       f.notify,
		Mint:         f.mint,
		Effects:      effects.NewDispatcher(log, time.Second),
	}, log)
	return f
}

func testTerms() model.Terms {
	return model.Terms{
		Title:       "Album cover",
		Description: "Three illustrations for the vinyl release",
		StartAt:     time.Date(2026, 11, 1, 9, 0, 0, 0, time.UTC),
		EndAt:       time.Date(2026, 12, 1, 18, 0, 0, 0, time.UTC),
		TotalAmount: 100000,
	}
}

func (f *fixture) stored(t *testing.T, id int64) *model.Contract {
	t.Helper()
	c, err := contractStore{db: f.db}.Get(context.Background(), id)
	require.NoError(t, err)
	return c
}

func (f *fixture) sign(t *testing.T, contractID int64, key *secp256k1.KeyPair) string {
	t.Helper()
	msg, err := signature.BuildMessage(testDomain, f.stored(t, contractID), f.requesterKey.Address.String(), f.counterpartyKey.Address.String())
	require.NoError(t, err)
	digest, err := msg.Digest(context.Background())
	require.NoError(t, err)
	sig, err := key.SignDirect(digest)
	require.NoError(t, err)
	return "0x" + hex.EncodeToString(sig.CompactRSV())
}

func (f *fixture) ordersFor(contractID int64) []model.Order {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []model.Order
	for _, o := range f.db.orders {
		if o.ContractID == contractID {
			out = append(out, *o)
		}
	}
	return out
}

func (f *fixture) offer(t *testing.T) *model.Contract {
	t.Helper()
	c, err := f.svc.OfferContract(context.Background(), OfferInput{
		ApplicationID: applicationID,
		RequesterID:   requesterID,
		Terms:         testTerms(),
	})
	require.NoError(t, err)
	return c
}

func (f *fixture) accepted(t *testing.T) *model.Contract {
	t.Helper()
	c := f.offer(t)
	c, err := f.svc.AcceptContract(context.Background(), c.ID, counterpartyID, f.sign(t, c.ID, f.counterpartyKey))
	require.NoError(t, err)
	return c
}

func (f *fixture) finalized(t *testing.T) (*model.Contract, *model.PaymentHandle) {
	t.Helper()
	c := f.accepted(t)
	c, handle, err := f.svc.FinalizeContract(context.Background(), c.ID, requesterID, f.sign(t, c.ID, f.requesterKey), "https://cdn.example/nft.png")
	require.NoError(t, err)
	return c, handle
}

func (f *fixture) paid(t *testing.T) *model.Contract {
	t.Helper()
	c, handle := f.finalized(t)
	c, err := f.svc.ConfirmPayment(context.Background(), handle.OrderID, "pay_123", handle.Amount)
	require.NoError(t, err)
	return c
}

var errBoom = errors.New("boom")
