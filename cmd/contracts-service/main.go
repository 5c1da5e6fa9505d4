package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nurpe/artmarket-contracts/internal/audit"
	"github.com/nurpe/artmarket-contracts/internal/auth"
	"github.com/nurpe/artmarket-contracts/internal/config"
	"github.com/nurpe/artmarket-contracts/internal/db"
	"github.com/nurpe/artmarket-contracts/internal/effects"
	"github.com/nurpe/artmarket-contracts/internal/excel"
	httphandler "github.com/nurpe/artmarket-contracts/internal/http"
	"github.com/nurpe/artmarket-contracts/internal/http/middleware"
	"github.com/nurpe/artmarket-contracts/internal/logger"
	"github.com/nurpe/artmarket-contracts/internal/notify"
	"github.com/nurpe/artmarket-contracts/internal/onchain"
	"github.com/nurpe/artmarket-contracts/internal/payment"
	"github.com/nurpe/artmarket-contracts/internal/pdf"
	"github.com/nurpe/artmarket-contracts/internal/repository"
	"github.com/nurpe/artmarket-contracts/internal/service"
	"github.com/nurpe/artmarket-contracts/internal/signature"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		// streams are best effort; the lifecycle keeps working without them
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable")
	}
	cancel()

	tx := repository.NewTransactor(database)
	contractRepo := repository.NewContractRepository(database)
	applicationRepo := repository.NewApplicationRepository(database)
	memberRepo := repository.NewMemberRepository(database)
	feeRepo := repository.NewFeePolicyRepository(database)
	orderRepo := repository.NewOrderRepository(database)
	onchainRepo := repository.NewOnchainRepository(database)
	auditRepo := repository.NewAuditRepository(database)

	provider := payment.NewHTTPProvider(cfg.Payment.BaseURL, cfg.Payment.SecretKey, cfg.Payment.Timeout)
	payments := payment.NewOrchestrator(orderRepo, provider, log)

	domain := signature.Domain{
		Name:              cfg.Signing.DomainName,
		Version:           cfg.Signing.DomainVersion,
		ChainID:           cfg.Signing.ChainID,
		VerifyingContract: cfg.Signing.VerifyingContract,
	}
	correlator := onchain.NewCorrelator(onchainRepo, tx, log)

	contractService := service.NewContractService(service.Deps{
		Tx:           tx,
		Contracts:    contractRepo,
		Applications: applicationRepo,
		Members:      memberRepo,
		FeePolicy:    feeRepo,
		DefaultFee:   cfg.Fee.DefaultRate,
		Domain:       domain,
		Verifier:     signature.NewVerifier(domain, log),
		Payments:     payments,
		Onchain:      correlator,
		Audit:        audit.NewLog(auditRepo, log),
		Notify:       notify.NewSink(redisClient, cfg.Streams.Notifications),
		Mint:         onchain.NewMintQueue(redisClient, cfg.Streams.MintRequests),
		Effects:      effects.NewDispatcher(log, 5*time.Second),
	}, log)

	pdfGenerator, err := pdf.NewGenerator(cfg.Documents.FontPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init pdf generator")
	}
	exportService := service.NewExportService(contractRepo, memberRepo, correlator, pdfGenerator, excel.NewGenerator())

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(contractService, exportService, correlator, log)
	authMiddleware := middleware.Auth(tokenParser)
	callbackMiddleware := middleware.CallbackSecret(cfg.Payment.CallbackSecret)
	router := httphandler.NewRouter(handler, authMiddleware, callbackMiddleware, cfg.Environment, cfg.HTTP.CORSOrigins, log)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting contracts service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
