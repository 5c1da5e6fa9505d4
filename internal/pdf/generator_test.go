package pdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/artmarket-contracts/internal/model"
)

func TestGenerateWithCoreFont(t *testing.T) {
	g, err := NewGenerator("")
	require.NoError(t, err)

	wallet := "0x5fbdb2315678afecb367f032d93f642f64180aa3"
	sig := "0x" + string(bytes.Repeat([]byte("ab"), 65))
	content, err := g.Generate(model.ContractDocument{
		Contract: model.Contract{
			ID:                    12,
			Title:                 "Café mural",
			Description:           "Lobby wall, 4x3 m",
			StartAt:               time.Date(2026, 11, 1, 9, 0, 0, 0, time.UTC),
			EndAt:                 time.Date(2026, 12, 1, 18, 0, 0, 0, time.UTC),
			TotalAmount:           1250000,
			FeeRate:               decimal.RequireFromString("0.1"),
			CounterpartySignature: &sig,
			Status:                model.ContractStatusArtistSigned,
		},
		Requester:    model.Member{ID: 1, Nickname: "leader", WalletAddress: &wallet},
		Counterparty: model.Member{ID: 2, Nickname: "artist"},
		GeneratedAt:  time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(content, []byte("%PDF")))
}

func TestNewGeneratorMissingFont(t *testing.T) {
	_, err := NewGenerator("/does/not/exist.ttf")
	assert.Error(t, err)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0", formatAmount(0))
	assert.Equal(t, "999", formatAmount(999))
	assert.Equal(t, "1,000", formatAmount(1000))
	assert.Equal(t, "1,250,000", formatAmount(1250000))
	assert.Equal(t, "-12,500", formatAmount(-12500))
}
