package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host        string
	Port        int
	CORSOrigins []string
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	AccessSecret string
}

type SigningConfig struct {
	DomainName        string
	DomainVersion     string
	ChainID           int64
	VerifyingContract string
}

type FeeConfig struct {
	DefaultRate decimal.Decimal
}

type PaymentConfig struct {
	BaseURL        string
	SecretKey      string
	CallbackSecret string
	Timeout        time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StreamsConfig struct {
	Notifications string
	MintRequests  string
}

type DocumentsConfig struct {
	FontPath string
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Signing     SigningConfig
	Fee         FeeConfig
	Payment     PaymentConfig
	Redis       RedisConfig
	Streams     StreamsConfig
	Documents   DocumentsConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host:        v.GetString("HTTP_HOST"),
			Port:        v.GetInt("HTTP_PORT"),
			CORSOrigins: parseList(v.GetString("HTTP_CORS_ORIGINS")),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Signing: SigningConfig{
			DomainName:        v.GetString("SIGNING_DOMAIN_NAME"),
			DomainVersion:     v.GetString("SIGNING_DOMAIN_VERSION"),
			ChainID:           v.GetInt64("SIGNING_CHAIN_ID"),
			VerifyingContract: v.GetString("SIGNING_VERIFYING_CONTRACT"),
		},
		Payment: PaymentConfig{
			BaseURL:        v.GetString("PAYMENT_BASE_URL"),
			SecretKey:      v.GetString("PAYMENT_SECRET_KEY"),
			CallbackSecret: v.GetString("PAYMENT_CALLBACK_SECRET"),
			Timeout:        v.GetDuration("PAYMENT_TIMEOUT"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Streams: StreamsConfig{
			Notifications: v.GetString("NOTIFY_STREAM"),
			MintRequests:  v.GetString("MINT_STREAM"),
		},
		Documents: DocumentsConfig{
			FontPath: v.GetString("DOCUMENT_FONT_PATH"),
		},
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7090
	}
	if len(cfg.HTTP.CORSOrigins) == 0 {
		cfg.HTTP.CORSOrigins = []string{"*"}
	}
	if cfg.Signing.DomainName == "" {
		cfg.Signing.DomainName = "ArtMarket"
	}
	if cfg.Signing.DomainVersion == "" {
		cfg.Signing.DomainVersion = "1"
	}
	if cfg.Signing.ChainID == 0 {
		cfg.Signing.ChainID = 1
	}
	if cfg.Payment.Timeout == 0 {
		cfg.Payment.Timeout = 10 * time.Second
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Streams.Notifications == "" {
		cfg.Streams.Notifications = "contract-notifications"
	}
	if cfg.Streams.MintRequests == "" {
		cfg.Streams.MintRequests = "nft-mint-requests"
	}

	rate := strings.TrimSpace(v.GetString("FEE_DEFAULT_RATE"))
	if rate == "" {
		rate = "0.1"
	}
	parsed, err := decimal.NewFromString(rate)
	if err != nil {
		return nil, fmt.Errorf("FEE_DEFAULT_RATE is not a decimal: %w", err)
	}
	cfg.Fee.DefaultRate = parsed

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.Signing.VerifyingContract == "" {
		return fmt.Errorf("SIGNING_VERIFYING_CONTRACT is required")
	}
	if cfg.Fee.DefaultRate.IsNegative() || cfg.Fee.DefaultRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("FEE_DEFAULT_RATE must be in [0, 1)")
	}
	return nil
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
