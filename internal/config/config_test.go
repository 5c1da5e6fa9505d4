package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(values map[string]any) *viper.Viper {
	v := viper.New()
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func TestDefaultsApplied(t *testing.T) {
	cfg, err := fromViper(newViper(map[string]any{
		"DB_DSN":                     "postgres://localhost/market",
		"JWT_ACCESS_SECRET":          "secret",
		"SIGNING_VERIFYING_CONTRACT": "0x5FbDB2315678afecb367f032d93F642f64180aa3",
	}))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 7090, cfg.HTTP.Port)
	assert.Equal(t, []string{"*"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, "ArtMarket", cfg.Signing.DomainName)
	assert.Equal(t, int64(1), cfg.Signing.ChainID)
	assert.Equal(t, "0.1", cfg.Fee.DefaultRate.String())
	assert.Equal(t, 10*time.Second, cfg.Payment.Timeout)
	assert.Equal(t, "nft-mint-requests", cfg.Streams.MintRequests)
}

func TestRequiredKeys(t *testing.T) {
	_, err := fromViper(newViper(map[string]any{"JWT_ACCESS_SECRET": "secret"}))
	require.EqualError(t, err, "DB_DSN is required")

	_, err = fromViper(newViper(map[string]any{"DB_DSN": "dsn", "JWT_ACCESS_SECRET": "secret"}))
	require.EqualError(t, err, "SIGNING_VERIFYING_CONTRACT is required")
}

func TestFeeRateRange(t *testing.T) {
	base := map[string]any{
		"DB_DSN":                     "dsn",
		"JWT_ACCESS_SECRET":          "secret",
		"SIGNING_VERIFYING_CONTRACT": "0x5FbDB2315678afecb367f032d93F642f64180aa3",
	}

	base["FEE_DEFAULT_RATE"] = "1.5"
	_, err := fromViper(newViper(base))
	require.Error(t, err)

	base["FEE_DEFAULT_RATE"] = "abc"
	_, err = fromViper(newViper(base))
	require.Error(t, err)

	base["FEE_DEFAULT_RATE"] = "0.085"
	cfg, err := fromViper(newViper(base))
	require.NoError(t, err)
	assert.Equal(t, "0.085", cfg.Fee.DefaultRate.String())
}

func TestParseList(t *testing.T) {
	assert.Nil(t, parseList("  "))
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, parseList(" https://a.example, ,https://b.example "))
}
