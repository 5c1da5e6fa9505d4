package http

import (
	"time"

	"github.com/nurpe/artmarket-contracts/internal/model"
)

type contractResponse struct {
	ID                 int64     `json:"id"`
	ApplicationID      int64     `json:"application_id"`
	ProjectID          int64     `json:"project_id"`
	RequesterID        int64     `json:"requester_id"`
	CounterpartyID     int64     `json:"counterparty_id"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	StartAt            time.Time `json:"start_at"`
	EndAt              time.Time `json:"end_at"`
	TotalAmount        int64     `json:"total_amount"`
	FeeRate            string    `json:"fee_rate"`
	Fee                int64     `json:"fee"`
	Payout             int64     `json:"payout"`
	Status             string    `json:"status"`
	CounterpartySigned bool      `json:"counterparty_signed"`
	RequesterSigned    bool      `json:"requester_signed"`
	NftImageURL        *string   `json:"nft_image_url,omitempty"`
	OnchainStatus      string    `json:"onchain_status,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func toContractResponse(c *model.Contract, onchainStatus model.OnchainStatus) contractResponse {
	fee, payout := c.Fee()
	return contractResponse{
		ID:                 c.ID,
		ApplicationID:      c.ApplicationID,
		ProjectID:          c.ProjectID,
		RequesterID:        c.RequesterID,
		CounterpartyID:     c.CounterpartyID,
		Title:              c.Title,
		Description:        c.Description,
		StartAt:            c.StartAt,
		EndAt:              c.EndAt,
		TotalAmount:        c.TotalAmount,
		FeeRate:            c.FeeRate.String(),
		Fee:                fee,
		Payout:             payout,
		Status:             string(c.Status),
		CounterpartySigned: c.CounterpartySignature != nil,
		RequesterSigned:    c.RequesterSignature != nil,
		NftImageURL:        c.NftImageURL,
		OnchainStatus:      string(onchainStatus),
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

type recordResponse struct {
	ID         int64   `json:"id"`
	ContractID int64   `json:"contract_id"`
	Action     string  `json:"action"`
	Status     string  `json:"status"`
	TxHash     *string `json:"tx_hash,omitempty"`
}

func toRecordResponse(r *model.OnchainRecord) recordResponse {
	return recordResponse{
		ID:         r.ID,
		ContractID: r.ContractID,
		Action:     string(r.Action),
		Status:     string(r.Status),
		TxHash:     r.TxHash,
	}
}

type auditResponse struct {
	ActorID    int64     `json:"actor_id"`
	Action     string    `json:"action"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	Reason     *string   `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func toAuditResponse(e model.AuditEntry) auditResponse {
	return auditResponse{
		ActorID:    e.ActorID,
		Action:     string(e.Action),
		FromStatus: string(e.FromStatus),
		ToStatus:   string(e.ToStatus),
		Reason:     e.Reason,
		CreatedAt:  e.CreatedAt,
	}
}
