package onchain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nurpe/artmarket-contracts/internal/model"
)

var (
	ErrRecordNotFound  = errors.New("onchain record not found")
	ErrRecordFinalized = errors.New("onchain record already finalized")
	ErrInvalidOutcome  = errors.New("invalid onchain outcome")
)

type Store interface {
	NftIssued(ctx context.Context, contractIDs []int64) (map[int64]bool, error)
	LatestRecords(ctx context.Context, contractIDs []int64, action model.OnchainAction) (map[int64]model.OnchainRecord, error)
	CreateRecord(ctx context.Context, record *model.OnchainRecord) error
	GetRecord(ctx context.Context, id int64) (*model.OnchainRecord, error)
	UpdateRecord(ctx context.Context, record *model.OnchainRecord) error
	CreateNft(ctx context.Context, nft model.ContractNft) error
}

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Correlator tracks asynchronous mint attempts per contract.
// The read side (Status, Statuses) never writes.
type Correlator struct {
	store Store
	tx    Transactor
	now   func() time.Time
	log   zerolog.Logger
}

func NewCorrelator(store Store, tx Transactor, log zerolog.Logger) *Correlator {
	return &Correlator{
		store: store,
		tx:    tx,
		now:   func() time.Time { return time.Now().UTC() },
		log:   log.With().Str("component", "onchain").Logger(),
	}
}

// Reconcile resolves the status shown to readers: an issued NFT wins over any record,
// then the latest record, then "waiting".
func Reconcile(nftIssued bool, latest *model.OnchainRecord) model.OnchainStatus {
	if nftIssued {
		return model.OnchainStatusSucceeded
	}
	if latest == nil {
		return model.OnchainStatusWaiting
	}
	switch latest.Status {
	case model.OnchainRecordSucceeded:
		return model.OnchainStatusSucceeded
	case model.OnchainRecordFailed:
		return model.OnchainStatusFailed
	default:
		return model.OnchainStatusPending
	}
}

func (c *Correlator) Status(ctx context.Context, contractID int64) (model.OnchainStatus, error) {
	statuses, err := c.Statuses(ctx, []int64{contractID})
	if err != nil {
		return "", err
	}
	return statuses[contractID], nil
}

// Statuses reconciles many contracts with two queries.
func (c *Correlator) Statuses(ctx context.Context, contractIDs []int64) (map[int64]model.OnchainStatus, error) {
	issued, err := c.store.NftIssued(ctx, contractIDs)
	if err != nil {
		return nil, err
	}
	pending := make([]int64, 0, len(contractIDs))
	for _, id := range contractIDs {
		if !issued[id] {
			pending = append(pending, id)
		}
	}
	latest, err := c.store.LatestRecords(ctx, pending, model.OnchainActionMint)
	if err != nil {
		return nil, err
	}

	result := make(map[int64]model.OnchainStatus, len(contractIDs))
	for _, id := range contractIDs {
		var record *model.OnchainRecord
		if r, ok := latest[id]; ok {
			record = &r
		}
		result[id] = Reconcile(issued[id], record)
	}
	return result, nil
}

// RecordAttempt registers a new mint attempt reported by the mint worker.
func (c *Correlator) RecordAttempt(ctx context.Context, contractID int64) (*model.OnchainRecord, error) {
	now := c.now()
	record := &model.OnchainRecord{
		ContractID: contractID,
		Action:     model.OnchainActionMint,
		Status:     model.OnchainRecordPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := c.store.CreateRecord(ctx, record); err != nil {
		return nil, err
	}
	c.log.Info().Int64("contract_id", contractID).Int64("record_id", record.ID).Msg("mint attempt recorded")
	return record, nil
}

type Outcome struct {
	RecordID  int64
	Succeeded bool
	TxHash    string
	TokenID   string
	ImageURL  string
	Error     string
}

// RecordOutcome finalizes a pending attempt. A successful mint also issues the ContractNft row.
func (c *Correlator) RecordOutcome(ctx context.Context, outcome Outcome) (*model.OnchainRecord, error) {
	if outcome.Succeeded && (strings.TrimSpace(outcome.TxHash) == "" || strings.TrimSpace(outcome.TokenID) == "") {
		return nil, fmt.Errorf("%w: tx hash and token id are required for a successful mint", ErrInvalidOutcome)
	}

	var record *model.OnchainRecord
	err := c.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		record, err = c.store.GetRecord(ctx, outcome.RecordID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRecordNotFound
			}
			return err
		}
		if record.Status != model.OnchainRecordPending {
			return fmt.Errorf("%w: record %d is %s", ErrRecordFinalized, record.ID, record.Status)
		}

		now := c.now()
		record.UpdatedAt = now
		if txHash := strings.TrimSpace(outcome.TxHash); txHash != "" {
			record.TxHash = &txHash
		}
		if !outcome.Succeeded {
			record.Status = model.OnchainRecordFailed
			if msg := strings.TrimSpace(outcome.Error); msg != "" {
				record.ErrorMessage = &msg
			}
			return c.store.UpdateRecord(ctx, record)
		}

		record.Status = model.OnchainRecordSucceeded
		if err := c.store.UpdateRecord(ctx, record); err != nil {
			return err
		}
		nft := model.ContractNft{
			ContractID: record.ContractID,
			TokenID:    outcome.TokenID,
			TxHash:     outcome.TxHash,
			IssuedAt:   now,
		}
		if image := strings.TrimSpace(outcome.ImageURL); image != "" {
			nft.ImageURL = &image
		}
		return c.store.CreateNft(ctx, nft)
	})
	if err != nil {
		return nil, err
	}
	c.log.Info().
		Int64("contract_id", record.ContractID).
		Int64("record_id", record.ID).
		Str("status", string(record.Status)).
		Msg("mint outcome recorded")
	return record, nil
}
