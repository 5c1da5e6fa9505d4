package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/artmarket-contracts/internal/model"
)

type captureDocument struct{ doc *model.ContractDocument }

func (g *captureDocument) Generate(doc model.ContractDocument) ([]byte, error) {
	g.doc = &doc
	return []byte("%PDF"), nil
}

type captureStatement struct{ statement *model.Statement }

func (g *captureStatement) Generate(statement model.Statement) ([]byte, error) {
	g.statement = &statement
	return []byte("xlsx"), nil
}

func newExportFixture(t *testing.T) (*fixture, *ExportService, *captureDocument, *captureStatement) {
	t.Helper()
	f := newFixture(t)
	docs := &captureDocument{}
	statements := &captureStatement{}
	svc := NewExportService(contractStore{db: f.db}, memberStore{db: f.db}, f.onchain, docs, statements)
	return f, svc, docs, statements
}

func TestExportDocumentForParty(t *testing.T) {
	f, svc, docs, _ := newExportFixture(t)
	c := f.paid(t)
	f.onchain.statuses[c.ID] = model.OnchainStatusPending

	result, err := svc.ExportDocument(context.Background(), c.ID, counterpartyID)
	require.NoError(t, err)

	assert.Equal(t, "contract-1-Album-cover.pdf", result.FileName)
	assert.Equal(t, []byte("%PDF"), result.Content)
	require.NotNil(t, docs.doc)
	assert.Equal(t, "leader", docs.doc.Requester.Nickname)
	assert.Equal(t, "artist", docs.doc.Counterparty.Nickname)
	assert.Equal(t, model.OnchainStatusPending, docs.doc.OnchainStatus)
}

func TestExportDocumentSkipsOnchainBeforeSigning(t *testing.T) {
	f, svc, docs, _ := newExportFixture(t)
	c := f.offer(t)

	_, err := svc.ExportDocument(context.Background(), c.ID, requesterID)
	require.NoError(t, err)
	assert.Empty(t, f.onchain.queried)
	assert.Empty(t, docs.doc.OnchainStatus)
}

func TestExportDocumentDeniesOutsider(t *testing.T) {
	f, svc, docs, _ := newExportFixture(t)
	c := f.offer(t)

	_, err := svc.ExportDocument(context.Background(), c.ID, outsiderID)
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Nil(t, docs.doc)

	_, err = svc.ExportDocument(context.Background(), 999, requesterID)
	assert.ErrorIs(t, err, ErrContractNotFound)
}

func TestExportStatementPeriod(t *testing.T) {
	f, svc, _, statements := newExportFixture(t)
	c := f.paid(t)
	_, err := f.svc.ConfirmCompletionAndSettle(context.Background(), c.ID, requesterID)
	require.NoError(t, err)

	today := time.Now().UTC()
	result, err := svc.ExportStatement(context.Background(), requesterID, today, today)
	require.NoError(t, err)

	require.NotNil(t, statements.statement)
	require.Len(t, statements.statement.Rows, 1)
	assert.Equal(t, int64(90000), statements.statement.Rows[0].Payout)
	day := today.Format("20060102")
	assert.Equal(t, "settlements-leader-"+day+"-"+day+".xlsx", result.FileName)

	yesterday := today.Add(-24 * time.Hour)
	_, err = svc.ExportStatement(context.Background(), requesterID, yesterday, yesterday)
	require.NoError(t, err)
	assert.Empty(t, statements.statement.Rows)
}

func TestExportStatementValidatesPeriod(t *testing.T) {
	_, svc, _, statements := newExportFixture(t)
	start := time.Date(2026, 10, 2, 0, 0, 0, 0, time.UTC)

	_, err := svc.ExportStatement(context.Background(), requesterID, start, start.Add(-24*time.Hour))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.ExportStatement(context.Background(), requesterID, time.Time{}, start)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Nil(t, statements.statement)
}
