package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/artmarket-contracts/internal/http/middleware"
	"github.com/nurpe/artmarket-contracts/internal/model"
	"github.com/nurpe/artmarket-contracts/internal/onchain"
	"github.com/nurpe/artmarket-contracts/internal/service"
	"github.com/nurpe/artmarket-contracts/internal/signature"
)

type ContractUseCases interface {
	OfferContract(ctx context.Context, input service.OfferInput) (*model.Contract, error)
	GetContractDetails(ctx context.Context, contractID, memberID int64) (*model.ContractView, error)
	ListContracts(ctx context.Context, filter model.ContractFilter) ([]model.ContractView, error)
	DeclineContract(ctx context.Context, contractID, counterpartyID int64) (*model.Contract, error)
	ReofferContract(ctx context.Context, contractID, requesterID int64, terms model.Terms) (*model.Contract, error)
	WithdrawContract(ctx context.Context, contractID, requesterID int64) (*model.Contract, error)
	GetSignatureData(ctx context.Context, contractID, partyID int64) (*signature.TypedMessage, error)
	ContractHistory(ctx context.Context, contractID, partyID int64) ([]model.AuditEntry, error)
	AcceptContract(ctx context.Context, contractID, counterpartyID int64, sig string) (*model.Contract, error)
	FinalizeContract(ctx context.Context, contractID, requesterID int64, sig, nftImageURL string) (*model.Contract, *model.PaymentHandle, error)
	ConfirmPayment(ctx context.Context, orderID uuid.UUID, paymentKey string, amount int64) (*model.Contract, error)
	ConfirmCompletionAndSettle(ctx context.Context, contractID, requesterID int64) (*model.Contract, error)
	RequestCancellation(ctx context.Context, contractID, partyID int64, reason string) (*model.Contract, error)
}

type Exports interface {
	ExportDocument(ctx context.Context, contractID, partyID int64) (*service.ExportResult, error)
	ExportStatement(ctx context.Context, requesterID int64, periodStart, periodEnd time.Time) (*service.ExportResult, error)
}

type MintRecorder interface {
	RecordAttempt(ctx context.Context, contractID int64) (*model.OnchainRecord, error)
	RecordOutcome(ctx context.Context, outcome onchain.Outcome) (*model.OnchainRecord, error)
}

type Handler struct {
	contracts ContractUseCases
	exports   Exports
	mints     MintRecorder
	log       zerolog.Logger
}

func NewHandler(contracts ContractUseCases, exports Exports, mints MintRecorder, log zerolog.Logger) *Handler {
	return &Handler{contracts: contracts, exports: exports, mints: mints, log: log}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware, callbackMiddleware gin.HandlerFunc) {
	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	protected := router.Group("/")
	protected.Use(authMiddleware)
	protected.GET("/contracts", h.listContracts)
	protected.POST("/contracts", h.offerContract)
	protected.GET("/contracts/statement", h.exportStatement)
	protected.GET("/contracts/:id", h.getContract)
	protected.PUT("/contracts/:id", h.reofferContract)
	protected.POST("/contracts/:id/decline", h.declineContract)
	protected.POST("/contracts/:id/withdraw", h.withdrawContract)
	protected.GET("/contracts/:id/signature-data", h.signatureData)
	protected.GET("/contracts/:id/history", h.contractHistory)
	protected.POST("/contracts/:id/accept", h.acceptContract)
	protected.POST("/contracts/:id/finalize", h.finalizeContract)
	protected.POST("/contracts/:id/complete", h.completeContract)
	protected.POST("/contracts/:id/cancellation", h.requestCancellation)
	protected.GET("/contracts/:id/document", h.exportDocument)

	internal := router.Group("/internal")
	internal.Use(callbackMiddleware)
	internal.POST("/payments/confirm", h.confirmPayment)
	internal.POST("/onchain/records", h.recordMintAttempt)
	internal.POST("/onchain/records/:id/outcome", h.recordMintOutcome)
}

type termsRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	StartAt     string `json:"start_at" binding:"required"`
	EndAt       string `json:"end_at" binding:"required"`
	TotalAmount int64  `json:"total_amount" binding:"required"`
}

func (r termsRequest) terms() (model.Terms, error) {
	start, err := parseTime(r.StartAt)
	if err != nil {
		return model.Terms{}, err
	}
	end, err := parseTime(r.EndAt)
	if err != nil {
		return model.Terms{}, err
	}
	return model.Terms{
		Title:       r.Title,
		Description: r.Description,
		StartAt:     start,
		EndAt:       end,
		TotalAmount: r.TotalAmount,
	}, nil
}

type offerRequest struct {
	ApplicationID int64 `json:"application_id" binding:"required"`
	termsRequest
}

type signatureRequest struct {
	Signature   string `json:"signature" binding:"required"`
	NftImageURL string `json:"nft_image_url"`
}

type cancellationRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type confirmPaymentRequest struct {
	OrderID    string `json:"order_id" binding:"required"`
	PaymentKey string `json:"payment_key" binding:"required"`
	Amount     int64  `json:"amount" binding:"required"`
}

type mintAttemptRequest struct {
	ContractID int64 `json:"contract_id" binding:"required"`
}

type mintOutcomeRequest struct {
	Succeeded bool   `json:"succeeded"`
	TxHash    string `json:"tx_hash"`
	TokenID   string `json:"token_id"`
	ImageURL  string `json:"image_url"`
	Error     string `json:"error"`
}

func (h *Handler) offerContract(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req offerRequest
	if !bind(c, &req) {
		return
	}
	terms, err := req.terms()
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	contract, err := h.contracts.OfferContract(c.Request.Context(), service.OfferInput{
		ApplicationID: req.ApplicationID,
		RequesterID:   principal.MemberID,
		Terms:         terms,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": toContractResponse(contract, "")})
}

func (h *Handler) listContracts(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	filter := model.ContractFilter{MemberID: principal.MemberID}
	switch strings.ToLower(strings.TrimSpace(c.Query("role"))) {
	case "", "all":
	case "requester":
		filter.Role = model.PartyRequester
	case "counterparty":
		filter.Role = model.PartyCounterparty
	default:
		badRequest(c, "invalid role")
		return
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status, ok := model.ParseContractStatus(part)
			if !ok {
				badRequest(c, "invalid status "+part)
				return
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 || page > model.MaxListPage {
		badRequest(c, fmt.Sprintf("page must be between 1 and %d", model.MaxListPage))
		return
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(model.DefaultListSize)))
	if err != nil || size < 1 || size > model.MaxListSize {
		badRequest(c, fmt.Sprintf("size must be between 1 and %d", model.MaxListSize))
		return
	}
	filter.Page, filter.Size = page, size

	views, err := h.contracts.ListContracts(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	data := make([]contractResponse, 0, len(views))
	for i := range views {
		data = append(data, toContractResponse(&views[i].Contract, views[i].OnchainStatus))
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}

func (h *Handler) getContract(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	view, err := h.contracts.GetContractDetails(c.Request.Context(), id, principal.MemberID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toContractResponse(&view.Contract, view.OnchainStatus)})
}

func (h *Handler) reofferContract(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	var req termsRequest
	if !bind(c, &req) {
		return
	}
	terms, err := req.terms()
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	contract, err := h.contracts.ReofferContract(c.Request.Context(), id, principal.MemberID, terms)
	h.respondContract(c, contract, err)
}

func (h *Handler) declineContract(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	contract, err := h.contracts.DeclineContract(c.Request.Context(), id, principal.MemberID)
	h.respondContract(c, contract, err)
}

func (h *Handler) withdrawContract(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	contract, err := h.contracts.WithdrawContract(c.Request.Context(), id, principal.MemberID)
	h.respondContract(c, contract, err)
}

func (h *Handler) signatureData(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	msg, err := h.contracts.GetSignatureData(c.Request.Context(), id, principal.MemberID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": msg})
}

func (h *Handler) contractHistory(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	entries, err := h.contracts.ContractHistory(c.Request.Context(), id, principal.MemberID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	items := make([]auditResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, toAuditResponse(entry))
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (h *Handler) acceptContract(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	var req signatureRequest
	if !bind(c, &req) {
		return
	}
	contract, err := h.contracts.AcceptContract(c.Request.Context(), id, principal.MemberID, req.Signature)
	h.respondContract(c, contract, err)
}

func (h *Handler) finalizeContract(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	var req signatureRequest
	if !bind(c, &req) {
		return
	}
	contract, handle, err := h.contracts.FinalizeContract(c.Request.Context(), id, principal.MemberID, req.Signature, req.NftImageURL)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"contract": toContractResponse(contract, ""),
		"payment":  handle,
	}})
}

func (h *Handler) completeContract(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	contract, err := h.contracts.ConfirmCompletionAndSettle(c.Request.Context(), id, principal.MemberID)
	h.respondContract(c, contract, err)
}

func (h *Handler) requestCancellation(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	var req cancellationRequest
	if !bind(c, &req) {
		return
	}
	contract, err := h.contracts.RequestCancellation(c.Request.Context(), id, principal.MemberID, req.Reason)
	h.respondContract(c, contract, err)
}

func (h *Handler) exportDocument(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	result, err := h.exports.ExportDocument(c.Request.Context(), id, principal.MemberID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, "application/pdf", result.Content)
}

func (h *Handler) exportStatement(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	start, err := parseDate(c.Query("period_start"))
	if err != nil {
		badRequest(c, "invalid period_start")
		return
	}
	end, err := parseDate(c.Query("period_end"))
	if err != nil {
		badRequest(c, "invalid period_end")
		return
	}

	result, err := h.exports.ExportStatement(c.Request.Context(), principal.MemberID, start, end)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", result.Content)
}

func (h *Handler) confirmPayment(c *gin.Context) {
	var req confirmPaymentRequest
	if !bind(c, &req) {
		return
	}
	orderID, err := uuid.Parse(strings.TrimSpace(req.OrderID))
	if err != nil {
		badRequest(c, "invalid order_id")
		return
	}
	contract, err := h.contracts.ConfirmPayment(c.Request.Context(), orderID, req.PaymentKey, req.Amount)
	h.respondContract(c, contract, err)
}

func (h *Handler) recordMintAttempt(c *gin.Context) {
	var req mintAttemptRequest
	if !bind(c, &req) {
		return
	}
	record, err := h.mints.RecordAttempt(c.Request.Context(), req.ContractID)
	if err != nil {
		h.handleMintError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": toRecordResponse(record)})
}

func (h *Handler) recordMintOutcome(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid record id")
		return
	}
	var req mintOutcomeRequest
	if !bind(c, &req) {
		return
	}
	record, err := h.mints.RecordOutcome(c.Request.Context(), onchain.Outcome{
		RecordID:  id,
		Succeeded: req.Succeeded,
		TxHash:    req.TxHash,
		TokenID:   req.TokenID,
		ImageURL:  req.ImageURL,
		Error:     req.Error,
	})
	if err != nil {
		h.handleMintError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toRecordResponse(record)})
}

func (h *Handler) respondContract(c *gin.Context, contract *model.Contract, err error) {
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toContractResponse(contract, "")})
}

func (h *Handler) principal(c *gin.Context) (model.Principal, bool) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing principal")
	}
	return principal, ok
}

func (h *Handler) principalAndID(c *gin.Context) (model.Principal, int64, bool) {
	principal, ok := h.principal(c)
	if !ok {
		return principal, 0, false
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid contract id")
		return principal, 0, false
	}
	return principal, id, true
}

func (h *Handler) handleError(c *gin.Context, err error) {
	code := service.Code(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("code", code).Str("path", c.FullPath()).Msg("request failed")
	}
	writeError(c, status, code, publicMessage(code, err))
}

// publicMessage keeps upstream error text out of 5xx bodies.
func publicMessage(code string, err error) string {
	switch code {
	case service.CodeDependencyUnavailable:
		return "dependency unavailable"
	case service.CodeSettlementFailed:
		return "settlement failed"
	case service.CodeInternal:
		return "internal error"
	default:
		return err.Error()
	}
}

func (h *Handler) handleMintError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, onchain.ErrRecordNotFound):
		writeError(c, http.StatusNotFound, service.CodeNotFound, err.Error())
	case errors.Is(err, onchain.ErrRecordFinalized):
		writeError(c, http.StatusConflict, service.CodeInvalidStateTransition, err.Error())
	case errors.Is(err, onchain.ErrInvalidOutcome):
		badRequest(c, err.Error())
	default:
		h.log.Error().Err(err).Msg("record mint failed")
		writeError(c, http.StatusServiceUnavailable, service.CodeDependencyUnavailable, "store unavailable")
	}
}

func statusFor(code string) int {
	switch code {
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeAccessDenied:
		return http.StatusForbidden
	case service.CodeInvalidStateTransition:
		return http.StatusConflict
	case service.CodeSignatureInvalid:
		return http.StatusUnprocessableEntity
	case service.CodeSettlementFailed:
		return http.StatusBadGateway
	case service.CodeDependencyUnavailable:
		return http.StatusServiceUnavailable
	case service.CodeInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

func badRequest(c *gin.Context, message string) {
	writeError(c, http.StatusBadRequest, service.CodeInvalidInput, message)
}

func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		badRequest(c, err.Error())
		return false
	}
	return true
}

func parseTime(raw string) (time.Time, error) {
	t, err := parseDate(raw)
	if err != nil {
		return time.Time{}, errors.New("invalid timestamp " + strconv.Quote(raw))
	}
	return t, nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, service.ErrInvalidInput
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, service.ErrInvalidInput
}
