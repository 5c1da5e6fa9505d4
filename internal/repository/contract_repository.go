package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/nurpe/artmarket-contracts/internal/model"
)

const contractColumns = `
	c.id,
	c.application_id,
	c.project_id,
	c.requester_id,
	c.counterparty_id,
	c.title,
	c.description,
	c.start_at,
	c.end_at,
	c.total_amount,
	c.fee_rate,
	c.counterparty_signature,
	c.requester_signature,
	c.nft_image_url,
	c.status,
	c.created_at,
	c.updated_at`

type ContractRepository struct {
	db *gorm.DB
}

func NewContractRepository(db *gorm.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

func (r *ContractRepository) Create(ctx context.Context, c *model.Contract) error {
	var id int64
	err := conn(ctx, r.db).Raw(`
		INSERT INTO contracts (
			application_id,
			project_id,
			requester_id,
			counterparty_id,
			title,
			description,
			start_at,
			end_at,
			total_amount,
			fee_rate,
			status,
			created_at,
			updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`,
		c.ApplicationID,
		c.ProjectID,
		c.RequesterID,
		c.CounterpartyID,
		c.Title,
		c.Description,
		c.StartAt,
		c.EndAt,
		c.TotalAmount,
		c.FeeRate,
		c.Status,
		c.CreatedAt,
		c.UpdatedAt,
	).Scan(&id).Error
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

func (r *ContractRepository) Get(ctx context.Context, id int64) (*model.Contract, error) {
	return r.get(ctx, id, false)
}

// GetForUpdate locks the contract row until the surrounding transaction ends.
func (r *ContractRepository) GetForUpdate(ctx context.Context, id int64) (*model.Contract, error) {
	return r.get(ctx, id, true)
}

func (r *ContractRepository) get(ctx context.Context, id int64, lock bool) (*model.Contract, error) {
	query := `SELECT` + contractColumns + ` FROM contracts c WHERE c.id = ? LIMIT 1`
	if lock {
		query += ` FOR UPDATE`
	}
	var contract model.Contract
	if err := conn(ctx, r.db).Raw(query, id).Scan(&contract).Error; err != nil {
		return nil, err
	}
	if contract.ID == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &contract, nil
}

// Update writes the fields a transition may change. Parties, fee rate and created_at are never written.
func (r *ContractRepository) Update(ctx context.Context, c *model.Contract) error {
	result := conn(ctx, r.db).Exec(`
		UPDATE contracts
		SET
			title = ?,
			description = ?,
			start_at = ?,
			end_at = ?,
			total_amount = ?,
			counterparty_signature = ?,
			requester_signature = ?,
			nft_image_url = ?,
			status = ?,
			updated_at = ?
		WHERE id = ?
	`,
		c.Title,
		c.Description,
		c.StartAt,
		c.EndAt,
		c.TotalAmount,
		c.CounterpartySignature,
		c.RequesterSignature,
		c.NftImageURL,
		c.Status,
		c.UpdatedAt,
		c.ID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ContractRepository) List(ctx context.Context, filter model.ContractFilter) ([]model.Contract, error) {
	query := `SELECT` + contractColumns + ` FROM contracts c WHERE `
	var args []interface{}
	switch filter.Role {
	case model.PartyRequester:
		query += `c.requester_id = ?`
		args = append(args, filter.MemberID)
	case model.PartyCounterparty:
		query += `c.counterparty_id = ?`
		args = append(args, filter.MemberID)
	default:
		query += `(c.requester_id = ? OR c.counterparty_id = ?)`
		args = append(args, filter.MemberID, filter.MemberID)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += fmt.Sprintf(" AND c.status IN (%s)", strings.Join(placeholders, ","))
	}

	page, size := filter.Page, filter.Size
	if page < 1 {
		page = 1
	}
	if page > model.MaxListPage {
		page = model.MaxListPage
	}
	if size < 1 || size > model.MaxListSize {
		size = model.DefaultListSize
	}
	query += " ORDER BY c.id DESC LIMIT ? OFFSET ?"
	args = append(args, size, (page-1)*size)

	var contracts []model.Contract
	if err := conn(ctx, r.db).Raw(query, args...).Scan(&contracts).Error; err != nil {
		return nil, err
	}
	return contracts, nil
}

// ListSettled returns the requester's completed contracts settled within [from, to).
func (r *ContractRepository) ListSettled(ctx context.Context, requesterID int64, from, to time.Time) ([]model.StatementRow, error) {
	var rows []model.StatementRow
	err := conn(ctx, r.db).Raw(`
		SELECT
			c.id AS contract_id,
			c.title,
			COALESCE(m.nickname, '') AS counterparty,
			o.amount AS total_amount,
			o.fee,
			o.payout,
			o.settled_at
		FROM contracts c
		JOIN orders o ON o.contract_id = c.id AND o.status = 'SETTLED'
		LEFT JOIN members m ON m.id = c.counterparty_id
		WHERE c.requester_id = ?
			AND c.status = 'COMPLETED'
			AND o.settled_at >= ?
			AND o.settled_at < ?
		ORDER BY o.settled_at ASC
	`, requesterID, from, to).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
