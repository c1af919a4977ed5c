package main

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"internet-banking-core/config"
	httpHandler "internet-banking-core/internal/adapter/http/handler"
	"internet-banking-core/internal/adapter/interbank"
	memStorage "internet-banking-core/internal/adapter/storage/memory"
	pgStorage "internet-banking-core/internal/adapter/storage/postgres"
	redisStorage "internet-banking-core/internal/adapter/storage/redis"
	"internet-banking-core/internal/core/domain"
	"internet-banking-core/internal/core/ports"
	"internet-banking-core/internal/service"
	"internet-banking-core/pkg/keys"
	"internet-banking-core/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// repositories is the persistence layer selected by database.driver.
type repositories struct {
	accounts    ports.AccountRepository
	tokens      ports.TokenRepository
	txRepo      ports.TransactionRepository
	invoices    ports.InvoiceRepository
	settlements ports.SettlementRepository
	recipients  ports.RecipientRepository
	audit       ports.AuditRepository
	transactor  ports.DBTransactor
	health      []ports.HealthChecker
	close       func()
}

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty, "internet-banking-core")

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("bank_code", cfg.Interbank.BankCode).
		Msg("Starting Internet Banking Core")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("jwt.secret must be set")
	}

	ctx := context.Background()

	repos, err := openRepositories(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("Failed to open storage")
	}
	defer repos.close()

	// Redis is optional; without it the DB records stay authoritative and
	// rate limiting is off.
	var (
		idempotencyCache ports.IdempotencyCache
		nonceStore       ports.NonceStore
		rateLimitStore   *redisStorage.RateLimitStore
	)
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, continuing without cache, replay guard and rate limits")
	} else {
		defer rdb.Close()
		idempotencyCache = redisStorage.NewIdempotencyCache(rdb)
		nonceStore = redisStorage.NewNonceStore(rdb)
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		repos.health = append(repos.health, redisStorage.NewHealthCheck(rdb))
	}

	fees, err := feePolicy(cfg.Ledger)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid ledger configuration")
	}

	signer, err := newSigner(cfg.Interbank, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load interbank keys")
	}
	partner := interbank.NewClient(cfg.Interbank.PartnerBaseURL, signer, cfg.Interbank.Timeout, cfg.Interbank.MessageTTL)

	notifier := service.NewNotificationService(newPublisher(cfg.Notify, rdb, log), cfg.Notify.Timeout, log)

	// Initialize core services
	accessTokens := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	tokenAuthority := service.NewTokenAuthority(repos.tokens, repos.transactor, log)
	auditSvc := service.NewAuditService(repos.audit, log)

	// Initialize business services
	recipientSvc := service.NewRecipientService(repos.recipients, repos.accounts, cfg.Interbank.BankCode)
	reportingSvc := service.NewReportingService(repos.accounts, repos.txRepo)
	transferSvc := service.NewTransferService(
		repos.accounts,
		repos.txRepo,
		tokenAuthority,
		recipientSvc,
		notifier,
		repos.transactor,
		fees,
		cfg.Tokens.TransferTTL,
		log,
	)
	settlementSvc := service.NewSettlementService(
		repos.accounts,
		repos.txRepo,
		repos.settlements,
		idempotencyCache,
		nonceStore,
		signer,
		partner,
		tokenAuthority,
		repos.transactor,
		fees,
		service.SettlementConfig{
			BankCode:             cfg.Interbank.BankCode,
			PartnerCode:          cfg.Interbank.PartnerCode,
			MessageTTL:           cfg.Interbank.MessageTTL,
			RetryMaxAttempts:     cfg.Interbank.RetryMaxAttempts,
			RetryInitialInterval: cfg.Interbank.RetryInitialInterval,
			RetryMaxInterval:     cfg.Interbank.RetryMaxInterval,
		},
		log,
	)
	invoiceSvc := service.NewInvoiceService(
		repos.accounts,
		repos.invoices,
		repos.txRepo,
		tokenAuthority,
		notifier,
		repos.transactor,
		cfg.Tokens.PayInvoiceTTL,
		log,
	)
	tellerSvc := service.NewTellerService(repos.accounts, repos.txRepo, auditSvc, repos.transactor, log)
	sessionSvc := service.NewSessionService(accessTokens, tokenAuthority, notifier, service.SessionTTLs{
		Refresh:       cfg.Tokens.RefreshTTL,
		AdminRefresh:  cfg.Tokens.AdminRefreshTTL,
		ResetPassword: cfg.Tokens.ResetPasswordTTL,
	}, log)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		TransferSvc:    transferSvc,
		SettlementSvc:  settlementSvc,
		InvoiceSvc:     invoiceSvc,
		ReportingSvc:   reportingSvc,
		RecipientSvc:   recipientSvc,
		TellerSvc:      tellerSvc,
		SessionSvc:     sessionSvc,
		AccessTokens:   accessTokens,
		RateLimitStore: rateLimitStore,
		AuditSvc:       auditSvc,
		HealthCheckers: repos.health,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let queued notifications drain before the publishers go away.
	notifier.Wait()

	log.Info().Msg("Server exited")
}

func openRepositories(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*repositories, error) {
	switch cfg.Driver {
	case "memory":
		log.Warn().Msg("Using in-memory storage; state is lost on exit")
		store := memStorage.NewStore()
		return &repositories{
			accounts:    memStorage.NewAccountRepo(store),
			tokens:      memStorage.NewTokenRepo(store),
			txRepo:      memStorage.NewTransactionRepo(store),
			invoices:    memStorage.NewInvoiceRepo(store),
			settlements: memStorage.NewSettlementRepo(store),
			recipients:  memStorage.NewRecipientRepo(store),
			audit:       memStorage.NewAuditRepo(store),
			transactor:  store,
			close:       func() {},
		}, nil

	case "postgres", "":
		pool, err := pgStorage.NewPool(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := pgStorage.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
			log.Info().Msg("Database schema applied")
		}
		return &repositories{
			accounts:    pgStorage.NewAccountRepo(pool),
			tokens:      pgStorage.NewTokenRepo(pool),
			txRepo:      pgStorage.NewTransactionRepo(pool),
			invoices:    pgStorage.NewInvoiceRepo(pool),
			settlements: pgStorage.NewSettlementRepo(pool),
			recipients:  pgStorage.NewRecipientRepo(pool),
			audit:       pgStorage.NewAuditRepo(pool),
			transactor:  pgStorage.NewTransactor(pool),
			health:      []ports.HealthChecker{pgStorage.NewHealthCheck(pool)},
			close:       pool.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

func feePolicy(cfg config.LedgerConfig) (service.FeePolicy, error) {
	rate, err := domain.ParseFeeRate(cfg.FeeRate)
	if err != nil {
		return service.FeePolicy{}, err
	}
	payer := domain.FeePayer(cfg.DefaultFeePayer)
	switch payer {
	case domain.FeePayerSender, domain.FeePayerReceiver, "":
	default:
		return service.FeePolicy{}, fmt.Errorf("unknown default fee payer %q", payer)
	}
	return service.FeePolicy{Rate: rate, DefaultFeePayer: payer}, nil
}

// newSigner loads the bank's key pair. Without interbank configuration an
// ephemeral key is generated so the process can still start; partner calls
// then fail as unavailable.
func newSigner(cfg config.InterbankConfig, log zerolog.Logger) (*service.RSASignatureService, error) {
	var (
		private *rsa.PrivateKey
		partner *rsa.PublicKey
		err     error
	)
	if cfg.Enabled() {
		if private, err = keys.LoadPrivateKey(cfg.PrivateKeyPath); err != nil {
			return nil, err
		}
		if partner, err = keys.LoadPublicKey(cfg.PartnerPublicKeyPath); err != nil {
			return nil, err
		}
	} else {
		log.Warn().Msg("Interbank not configured, using an ephemeral signing key")
		if private, err = keys.Generate(2048); err != nil {
			return nil, err
		}
		partner = &private.PublicKey
	}
	return service.NewRSASignatureService(cfg.BankCode, private, cfg.PartnerCode, partner), nil
}

func newPublisher(cfg config.NotifyConfig, rdb *goredis.Client, log zerolog.Logger) ports.EventPublisher {
	switch cfg.Driver {
	case "redis":
		if rdb != nil {
			return redisStorage.NewStreamPublisher(rdb, cfg.Stream)
		}
		log.Warn().Msg("notify.driver=redis but Redis is unavailable, logging events instead")
	case "webhook":
		if cfg.WebhookURL != "" {
			return service.NewWebhookPublisher(cfg.WebhookURL, cfg.WebhookSecret, &http.Client{Timeout: cfg.Timeout})
		}
		log.Warn().Msg("notify.driver=webhook without notify.webhook_url, logging events instead")
	}
	return service.NewLogPublisher(log)
}
