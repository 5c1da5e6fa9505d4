package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nurpe/artmarket-contracts/internal/model"
)

type DocumentGenerator interface {
	Generate(doc model.ContractDocument) ([]byte, error)
}

type StatementGenerator interface {
	Generate(statement model.Statement) ([]byte, error)
}

type ExportService struct {
	contracts ContractStore
	members   MemberStore
	onchain   OnchainCorrelator
	pdf       DocumentGenerator
	excel     StatementGenerator
	now       func() time.Time
}

type ExportResult struct {
	FileName string
	Content  []byte
}

func NewExportService(contracts ContractStore, members MemberStore, onchain OnchainCorrelator, pdf DocumentGenerator, excel StatementGenerator) *ExportService {
	return &ExportService{
		contracts: contracts,
		members:   members,
		onchain:   onchain,
		pdf:       pdf,
		excel:     excel,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ExportDocument renders the printable contract for one of its parties.
func (s *ExportService) ExportDocument(ctx context.Context, contractID, partyID int64) (*ExportResult, error) {
	contract, err := s.contracts.Get(ctx, contractID)
	if err != nil {
		return nil, storeErr(err, ErrContractNotFound)
	}
	if !contract.IsParty(partyID) {
		return nil, fmt.Errorf("%w: member %d is not a party of contract %d", ErrAccessDenied, partyID, contractID)
	}

	requester, err := s.members.Get(ctx, contract.RequesterID)
	if err != nil {
		return nil, storeErr(err, ErrMemberNotFound)
	}
	counterparty, err := s.members.Get(ctx, contract.CounterpartyID)
	if err != nil {
		return nil, storeErr(err, ErrMemberNotFound)
	}

	doc := model.ContractDocument{
		Contract:     *contract,
		Requester:    *requester,
		Counterparty: *counterparty,
		GeneratedAt:  s.now(),
	}
	if contract.Status.TracksOnchain() {
		if doc.OnchainStatus, err = s.onchain.Status(ctx, contractID); err != nil {
			return nil, unavailable(err)
		}
	}

	content, err := s.pdf.Generate(doc)
	if err != nil {
		return nil, err
	}
	return &ExportResult{
		FileName: buildDocumentName(contract),
		Content:  content,
	}, nil
}

// ExportStatement renders the requester's settled contracts for the inclusive day range.
func (s *ExportService) ExportStatement(ctx context.Context, requesterID int64, periodStart, periodEnd time.Time) (*ExportResult, error) {
	if periodStart.IsZero() || periodEnd.IsZero() {
		return nil, fmt.Errorf("%w: period dates are required", ErrInvalidInput)
	}

	periodStart = dateOnly(periodStart)
	periodEnd = dateOnly(periodEnd)
	if periodStart.After(periodEnd) {
		return nil, fmt.Errorf("%w: period_start must be before or equal to period_end", ErrInvalidInput)
	}
	endExclusive := periodEnd.Add(24 * time.Hour)

	requester, err := s.members.Get(ctx, requesterID)
	if err != nil {
		return nil, storeErr(err, ErrMemberNotFound)
	}
	rows, err := s.contracts.ListSettled(ctx, requesterID, periodStart, endExclusive)
	if err != nil {
		return nil, unavailable(err)
	}

	statement := model.Statement{
		Requester:   *requester,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Rows:        rows,
	}
	content, err := s.excel.Generate(statement)
	if err != nil {
		return nil, err
	}
	return &ExportResult{
		FileName: buildStatementName(statement),
		Content:  content,
	}, nil
}

func buildDocumentName(c *model.Contract) string {
	title := sanitizeFileName(c.Title)
	if title == "" {
		return fmt.Sprintf("contract-%d.pdf", c.ID)
	}
	return fmt.Sprintf("contract-%d-%s.pdf", c.ID, title)
}

func buildStatementName(statement model.Statement) string {
	target := sanitizeFileName(statement.Requester.Nickname)
	if target == "" {
		target = fmt.Sprintf("member-%d", statement.Requester.ID)
	}
	period := fmt.Sprintf("%s-%s", statement.PeriodStart.Format("20060102"), statement.PeriodEnd.Format("20060102"))
	return fmt.Sprintf("settlements-%s-%s.xlsx", target, period)
}

func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sanitizeFileName(input string) string {
	result := make([]rune, 0, len(input))
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z':
			result = append(result, r)
		case r >= 'A' && r <= 'Z':
			result = append(result, r)
		case r >= '0' && r <= '9':
			result = append(result, r)
		case r == '-', r == '_':
			result = append(result, r)
		default:
			result = append(result, '-')
		}
	}
	return strings.Trim(string(result), "-")
}
