package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/nurpe/artmarket-contracts/internal/model"
)

type OnchainRepository struct {
	db *gorm.DB
}

func NewOnchainRepository(db *gorm.DB) *OnchainRepository {
	return &OnchainRepository{db: db}
}

// NftIssued returns the subset of contractIDs that have a ContractNft row.
func (r *OnchainRepository) NftIssued(ctx context.Context, contractIDs []int64) (map[int64]bool, error) {
	issued := make(map[int64]bool, len(contractIDs))
	if len(contractIDs) == 0 {
		return issued, nil
	}
	var ids []int64
	if err := conn(ctx, r.db).Raw(`
		SELECT contract_id
		FROM contract_nfts
		WHERE contract_id IN ?
	`, contractIDs).Scan(&ids).Error; err != nil {
		return nil, err
	}
	for _, id := range ids {
		issued[id] = true
	}
	return issued, nil
}

// LatestRecords returns, per contract, the record with the highest id for the action.
func (r *OnchainRepository) LatestRecords(ctx context.Context, contractIDs []int64, action model.OnchainAction) (map[int64]model.OnchainRecord, error) {
	latest := make(map[int64]model.OnchainRecord, len(contractIDs))
	if len(contractIDs) == 0 {
		return latest, nil
	}
	var records []model.OnchainRecord
	if err := conn(ctx, r.db).Raw(`
		SELECT DISTINCT ON (contract_id)
			id,
			contract_id,
			action,
			status,
			tx_hash,
			error_message,
			created_at,
			updated_at
		FROM onchain_records
		WHERE contract_id IN ? AND action = ?
		ORDER BY contract_id, id DESC
	`, contractIDs, action).Scan(&records).Error; err != nil {
		return nil, err
	}
	for _, record := range records {
		latest[record.ContractID] = record
	}
	return latest, nil
}

func (r *OnchainRepository) CreateRecord(ctx context.Context, record *model.OnchainRecord) error {
	var id int64
	err := conn(ctx, r.db).Raw(`
		INSERT INTO onchain_records (contract_id, action, status, tx_hash, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`,
		record.ContractID,
		record.Action,
		record.Status,
		record.TxHash,
		record.ErrorMessage,
		record.CreatedAt,
		record.UpdatedAt,
	).Scan(&id).Error
	if err != nil {
		return err
	}
	record.ID = id
	return nil
}

func (r *OnchainRepository) GetRecord(ctx context.Context, id int64) (*model.OnchainRecord, error) {
	var record model.OnchainRecord
	if err := conn(ctx, r.db).Raw(`
		SELECT id, contract_id, action, status, tx_hash, error_message, created_at, updated_at
		FROM onchain_records
		WHERE id = ?
		LIMIT 1
		FOR UPDATE
	`, id).Scan(&record).Error; err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &record, nil
}

func (r *OnchainRepository) UpdateRecord(ctx context.Context, record *model.OnchainRecord) error {
	return conn(ctx, r.db).Exec(`
		UPDATE onchain_records
		SET status = ?, tx_hash = ?, error_message = ?, updated_at = ?
		WHERE id = ?
	`, record.Status, record.TxHash, record.ErrorMessage, record.UpdatedAt, record.ID).Error
}

// CreateNft is idempotent: a contract keeps the first NFT row written for it.
func (r *OnchainRepository) CreateNft(ctx context.Context, nft model.ContractNft) error {
	return conn(ctx, r.db).Exec(`
		INSERT INTO contract_nfts (contract_id, token_id, tx_hash, image_url, issued_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (contract_id) DO NOTHING
	`, nft.ContractID, nft.TokenID, nft.TxHash, nft.ImageURL, nft.IssuedAt).Error
}
