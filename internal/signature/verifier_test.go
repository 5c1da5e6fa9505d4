package signature

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/hyperledger/firefly-signer/pkg/secp256k1"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/artmarket-contracts/internal/model"
)

var testDomain = Domain{
	Name:              "ArtMarket",
	Version:           "1",
	ChainID:           11155111,
	VerifyingContract: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
}

func testContract() *model.Contract {
	return &model.Contract{
		ID:             7,
		RequesterID:    1,
		CounterpartyID: 2,
		Title:          "Album cover",
		Description:    "앨범 커버 작업",
		StartAt:        time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		EndAt:          time.Date(2026, 4, 10, 18, 0, 0, 0, time.UTC),
		TotalAmount:    100000,
		FeeRate:        decimal.RequireFromString("0.1"),
		Status:         model.ContractStatusPending,
	}
}

func newKey(t *testing.T) *secp256k1.KeyPair {
	t.Helper()
	kp, err := secp256k1.GenerateSecp256k1KeyPair()
	require.NoError(t, err)
	return kp
}

func sign(t *testing.T, kp *secp256k1.KeyPair, msg *TypedMessage) string {
	t.Helper()
	digest, err := msg.Digest(context.Background())
	require.NoError(t, err)
	sig, err := kp.SignDirect(digest)
	require.NoError(t, err)
	return "0x" + hex.EncodeToString(sig.CompactRSV())
}

func buildFor(t *testing.T, leader, artist *secp256k1.KeyPair) *TypedMessage {
	t.Helper()
	msg, err := BuildMessage(testDomain, testContract(), leader.Address.String(), artist.Address.String())
	require.NoError(t, err)
	return msg
}

func TestVerifyRoundTrip(t *testing.T) {
	ctx := context.Background()
	leader, artist := newKey(t), newKey(t)
	v := NewVerifier(testDomain, zerolog.Nop())

	msg := buildFor(t, leader, artist)
	sig := sign(t, artist, msg)

	assert.True(t, v.Verify(ctx, artist.Address.String(), msg, sig))
	assert.False(t, v.Verify(ctx, leader.Address.String(), msg, sig), "signature must not verify for another wallet")
}

func TestVerifyRejectsAnyMutatedField(t *testing.T) {
	ctx := context.Background()
	leader, artist := newKey(t), newKey(t)
	other := newKey(t)
	v := NewVerifier(testDomain, zerolog.Nop())

	msg := buildFor(t, leader, artist)
	sig := sign(t, artist, msg)

	mutations := map[string]func(m *TypedMessage){
		"tokenId":           func(m *TypedMessage) { m.Message.TokenID = "8" },
		"title":             func(m *TypedMessage) { m.Message.Title = "Album cover!" },
		"descriptionHash":   func(m *TypedMessage) { m.Message.DescriptionHash = DescriptionHash("other") },
		"leader":            func(m *TypedMessage) { m.Message.Leader = other.Address.String() },
		"artist":            func(m *TypedMessage) { m.Message.Artist = other.Address.String() },
		"totalAmount":       func(m *TypedMessage) { m.Message.TotalAmount = "100001" },
		"startsAt":          func(m *TypedMessage) { m.Message.StartsAt = "2026-03-10T09:00:01" },
		"endsAt":            func(m *TypedMessage) { m.Message.EndsAt = "2026-04-11T18:00:00" },
		"domain name":       func(m *TypedMessage) { m.Domain.Name = "Other" },
		"domain chainId":    func(m *TypedMessage) { m.Domain.ChainID = "1" },
		"verifyingContract": func(m *TypedMessage) { m.Domain.VerifyingContract = other.Address.String() },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			mutated := *msg
			mutate(&mutated)
			assert.False(t, v.Verify(ctx, artist.Address.String(), &mutated, sig))
		})
	}
}

func TestVerifyMalformedInputIsFalse(t *testing.T) {
	ctx := context.Background()
	leader, artist := newKey(t), newKey(t)
	v := NewVerifier(testDomain, zerolog.Nop())
	msg := buildFor(t, leader, artist)
	sig := sign(t, artist, msg)

	cases := []struct {
		name    string
		address string
		sig     string
		msg     *TypedMessage
	}{
		{name: "empty signature", address: artist.Address.String(), sig: "", msg: msg},
		{name: "not hex", address: artist.Address.String(), sig: "0xzz", msg: msg},
		{name: "short signature", address: artist.Address.String(), sig: sig[:40], msg: msg},
		{name: "bad recovery id", address: artist.Address.String(), sig: sig[:len(sig)-2] + "05", msg: msg},
		{name: "bad address", address: "not-an-address", sig: sig, msg: msg},
		{name: "nil message", address: artist.Address.String(), sig: sig, msg: nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.False(t, v.Verify(ctx, tc.address, tc.msg, tc.sig))
			})
		})
	}
}

func TestVerifyAcceptsZeroBasedRecoveryID(t *testing.T) {
	ctx := context.Background()
	leader, artist := newKey(t), newKey(t)
	v := NewVerifier(testDomain, zerolog.Nop())
	msg := buildFor(t, leader, artist)

	raw, err := hex.DecodeString(sign(t, artist, msg)[2:])
	require.NoError(t, err)
	raw[64] -= 27

	assert.True(t, v.Verify(ctx, artist.Address.String(), msg, "0x"+hex.EncodeToString(raw)))
}

func TestBuildMessageIsDeterministic(t *testing.T) {
	ctx := context.Background()
	leader, artist := newKey(t), newKey(t)

	first := buildFor(t, leader, artist)
	second := buildFor(t, leader, artist)

	a, err := first.Encode()
	require.NoError(t, err)
	b, err := second.Encode()
	require.NoError(t, err)
	assert.Equal(t, a, b)

	da, err := first.Digest(ctx)
	require.NoError(t, err)
	db, err := second.Digest(ctx)
	require.NoError(t, err)
	assert.Equal(t, da, db)
}

func TestBuildMessageFields(t *testing.T) {
	msg, err := BuildMessage(testDomain, testContract(),
		"0xAbCdEf0123456789aBcDeF0123456789AbCdEf01",
		"0x0000000000000000000000000000000000000002")
	require.NoError(t, err)

	assert.Equal(t, "7", msg.Message.TokenID)
	assert.Equal(t, "100000", msg.Message.TotalAmount)
	assert.Equal(t, "2026-03-10T09:00:00", msg.Message.StartsAt)
	assert.Equal(t, "2026-04-10T18:00:00", msg.Message.EndsAt)
	assert.Equal(t, "0xabcdef0123456789abcdef0123456789abcdef01", msg.Message.Leader)
	assert.Equal(t, "11155111", msg.Domain.ChainID)
	assert.Equal(t, "Contract", msg.PrimaryType)
	assert.Len(t, msg.Message.DescriptionHash, 66)
}

func TestBuildMessageRejectsBadWallet(t *testing.T) {
	_, err := BuildMessage(testDomain, testContract(), "0x1234", "0x0000000000000000000000000000000000000002")
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestDescriptionHashIsKeccak256(t *testing.T) {
	// keccak256("") is a well known constant.
	assert.Equal(t, "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470", DescriptionHash(""))
}
