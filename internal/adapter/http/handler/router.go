package handler

import (
	"internet-banking-core/internal/adapter/http/middleware"
	redisStore "internet-banking-core/internal/adapter/storage/redis"
	"internet-banking-core/internal/core/domain"
	"internet-banking-core/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// maxBodyBytes caps every request body.
const maxBodyBytes = 1 << 20

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	TransferSvc    ports.TransferService
	SettlementSvc  ports.SettlementService
	InvoiceSvc     ports.InvoiceService
	ReportingSvc   ports.ReportingService
	RecipientSvc   ports.RecipientService
	TellerSvc      ports.TellerService
	SessionSvc     ports.SessionService
	AccessTokens   ports.AccessTokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	AuditSvc       ports.AuditService         // nil = audit logging disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxBodyBytes))

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	sessionHandler := NewSessionHandler(deps.SessionSvc)
	accountHandler := NewAccountHandler(deps.ReportingSvc)
	transferHandler := NewTransferHandler(deps.TransferSvc, deps.SettlementSvc, deps.ReportingSvc)
	invoiceHandler := NewInvoiceHandler(deps.InvoiceSvc)
	recipientHandler := NewRecipientHandler(deps.RecipientSvc)
	tellerHandler := NewTellerHandler(deps.TellerSvc)
	interbankHandler := NewInterbankHandler(deps.SettlementSvc)

	v1 := r.Group("/api/v1")

	// --- Public routes (refresh token is the credential) ---
	auth := v1.Group("/auth", rl("auth"))
	{
		auth.POST("/refresh", sessionHandler.Refresh)
		auth.POST("/logout", sessionHandler.Logout)
	}

	// --- Customer routes ---
	customer := v1.Group("", middleware.JWTAuth(deps.AccessTokens, deps.Logger, domain.RoleCustomer), rl("api"))
	{
		customer.GET("/accounts/me", accountHandler.GetMe)
		customer.GET("/transactions", accountHandler.ListTransactions)

		customer.POST("/transfers/token", rl("transfer_token"), transferHandler.RequestToken)
		customer.POST("/transfers/internal", rl("transfers"), transferHandler.Internal)
		customer.POST("/transfers/external", rl("transfers"), transferHandler.External)
		customer.POST("/interbank/accounts/query", transferHandler.QueryPartnerAccount)

		customer.GET("/invoices", invoiceHandler.List)
		customer.POST("/invoices", invoiceHandler.Create)
		customer.GET("/invoices/:id", invoiceHandler.Get)
		customer.PUT("/invoices/:id", invoiceHandler.Update)
		customer.DELETE("/invoices/:id", invoiceHandler.Delete)
		customer.POST("/invoices/:id/otp", rl("invoice_otp"), invoiceHandler.RequestOTP)
		customer.POST("/invoices/:id/pay", rl("transfers"), invoiceHandler.Pay)

		customer.GET("/recipients", recipientHandler.List)
		customer.POST("/recipients", recipientHandler.Save)
		customer.PUT("/recipients/:id", recipientHandler.Rename)
		customer.DELETE("/recipients/:id", recipientHandler.Delete)
	}

	// --- Employee routes ---
	employee := v1.Group("/employee", middleware.JWTAuth(deps.AccessTokens, deps.Logger, domain.RoleEmployee), rl("api"))
	{
		employee.POST("/deposits", tellerHandler.Deposit)
	}

	// --- Partner bank (signed envelopes) ---
	external := r.Group("/api/external", rl("partner"))
	{
		external.POST("/deposit", interbankHandler.Deposit)
		external.POST("/query-account", interbankHandler.QueryAccount)
	}

	return r
}
