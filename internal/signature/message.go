package signature

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hyperledger/firefly-signer/pkg/eip712"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"golang.org/x/crypto/sha3"

	"github.com/nurpe/artmarket-contracts/internal/model"
)

const (
	primaryType = "Contract"
	// timestampLayout renders schedule fields the same way the signing client does.
	timestampLayout = "2006-01-02T15:04:05"
)

var ErrInvalidAddress = errors.New("invalid wallet address")

// Domain is the EIP-712 domain separator input. All values come from configuration.
type Domain struct {
	Name              string
	Version           string
	ChainID           int64
	VerifyingContract string
}

type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type DomainFields struct {
	Name              string `json:"name"`
	Version           string `json:"version"`
	ChainID           string `json:"chainId"`
	VerifyingContract string `json:"verifyingContract"`
}

type ContractFields struct {
	TokenID         string `json:"tokenId"`
	Title           string `json:"title"`
	DescriptionHash string `json:"descriptionHash"`
	Leader          string `json:"leader"`
	Artist          string `json:"artist"`
	TotalAmount     string `json:"totalAmount"`
	StartsAt        string `json:"startsAt"`
	EndsAt          string `json:"endsAt"`
}

// TypedMessage is the structured payload both parties sign with eth_signTypedData_v4.
type TypedMessage struct {
	Types       map[string][]Field `json:"types"`
	PrimaryType string             `json:"primaryType"`
	Domain      DomainFields       `json:"domain"`
	Message     ContractFields     `json:"message"`
}

var (
	domainType = []Field{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	}
	contractType = []Field{
		{Name: "tokenId", Type: "uint256"},
		{Name: "title", Type: "string"},
		{Name: "descriptionHash", Type: "string"},
		{Name: "leader", Type: "address"},
		{Name: "artist", Type: "address"},
		{Name: "totalAmount", Type: "uint256"},
		{Name: "startsAt", Type: "string"},
		{Name: "endsAt", Type: "string"},
	}
)

// BuildMessage reconstructs the message that should have been signed for the contract.
// The same contract state and wallets always produce the same message.
func BuildMessage(domain Domain, c *model.Contract, leaderWallet, artistWallet string) (*TypedMessage, error) {
	verifying, err := normalizeAddress(domain.VerifyingContract)
	if err != nil {
		return nil, fmt.Errorf("verifying contract: %w", err)
	}
	leader, err := normalizeAddress(leaderWallet)
	if err != nil {
		return nil, fmt.Errorf("leader: %w", err)
	}
	artist, err := normalizeAddress(artistWallet)
	if err != nil {
		return nil, fmt.Errorf("artist: %w", err)
	}

	return &TypedMessage{
		Types: map[string][]Field{
			eip712.EIP712Domain: domainType,
			primaryType:         contractType,
		},
		PrimaryType: primaryType,
		Domain: DomainFields{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainID:           strconv.FormatInt(domain.ChainID, 10),
			VerifyingContract: verifying,
		},
		Message: ContractFields{
			TokenID:         strconv.FormatInt(c.ID, 10),
			Title:           c.Title,
			DescriptionHash: DescriptionHash(c.Description),
			Leader:          leader,
			Artist:          artist,
			TotalAmount:     strconv.FormatInt(c.TotalAmount, 10),
			StartsAt:        formatTimestamp(c.StartAt),
			EndsAt:          formatTimestamp(c.EndAt),
		},
	}, nil
}

// DescriptionHash is the 0x-prefixed Keccak-256 of the UTF-8 description.
func DescriptionHash(description string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(description))
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// Encode returns the canonical JSON form handed to wallets.
func (m *TypedMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Digest is the EIP-712 hash that is actually signed.
func (m *TypedMessage) Digest(ctx context.Context) ([]byte, error) {
	digest, err := eip712.EncodeTypedDataV4(ctx, m.typedData())
	if err != nil {
		return nil, err
	}
	return digest, nil
}

func (m *TypedMessage) typedData() *eip712.TypedData {
	types := make(eip712.TypeSet, len(m.Types))
	for name, fields := range m.Types {
		members := make(eip712.Type, 0, len(fields))
		for _, f := range fields {
			members = append(members, &eip712.TypeMember{Name: f.Name, Type: f.Type})
		}
		types[name] = members
	}
	return &eip712.TypedData{
		Types:       types,
		PrimaryType: m.PrimaryType,
		Domain: map[string]interface{}{
			"name":              m.Domain.Name,
			"version":           m.Domain.Version,
			"chainId":           m.Domain.ChainID,
			"verifyingContract": m.Domain.VerifyingContract,
		},
		Message: map[string]interface{}{
			"tokenId":         m.Message.TokenID,
			"title":           m.Message.Title,
			"descriptionHash": m.Message.DescriptionHash,
			"leader":          m.Message.Leader,
			"artist":          m.Message.Artist,
			"totalAmount":     m.Message.TotalAmount,
			"startsAt":        m.Message.StartsAt,
			"endsAt":          m.Message.EndsAt,
		},
	}
}

func normalizeAddress(raw string) (string, error) {
	addr, err := ethtypes.NewAddress(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, raw)
	}
	return addr.String(), nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
