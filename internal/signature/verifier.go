package signature

import (
	"context"
	"encoding/hex"
	"strings"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/hyperledger/firefly-signer/pkg/secp256k1"
	"github.com/rs/zerolog"
)

const compactSignatureLen = 65

// Verifier checks that a typed message was signed by a given wallet.
type Verifier struct {
	chainID int64
	log     zerolog.Logger
}

func NewVerifier(domain Domain, log zerolog.Logger) *Verifier {
	return &Verifier{
		chainID: domain.ChainID,
		log:     log.With().Str("component", "signature").Logger(),
	}
}

// Verify reports whether signature is a valid secp256k1 signature of msg by walletAddress.
// Malformed addresses or signatures are reported as false.
func (v *Verifier) Verify(ctx context.Context, walletAddress string, msg *TypedMessage, signature string) bool {
	if msg == nil {
		return false
	}
	expected, err := ethtypes.NewAddress(walletAddress)
	if err != nil {
		v.log.Debug().Str("wallet", walletAddress).Msg("undecodable wallet address")
		return false
	}
	raw, ok := decodeSignature(signature)
	if !ok {
		v.log.Debug().Msg("undecodable signature")
		return false
	}
	sig, err := secp256k1.DecodeCompactRSV(ctx, raw)
	if err != nil {
		return false
	}
	digest, err := msg.Digest(ctx)
	if err != nil {
		v.log.Warn().Err(err).Msg("typed message encoding failed")
		return false
	}
	signer, err := sig.RecoverDirect(digest, v.chainID)
	if err != nil || signer == nil {
		return false
	}
	return *signer == *expected
}

// decodeSignature parses a 0x-prefixed 65 byte R||S||V signature.
// Wallets emit V as 27/28, some libraries as 0/1.
func decodeSignature(raw string) ([]byte, bool) {
	s := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != compactSignatureLen {
		return nil, false
	}
	switch b[64] {
	case 0, 1:
		b[64] += 27
	case 27, 28:
	default:
		return nil, false
	}
	return b, true
}
