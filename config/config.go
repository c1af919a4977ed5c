package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Tokens    TokenConfig     `mapstructure:"tokens"`
	Interbank InterbankConfig `mapstructure:"interbank"`
	Notify    NotifyConfig    `mapstructure:"notify"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres, memory
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// LedgerConfig controls transfer pricing.
type LedgerConfig struct {
	FeeRate         string `mapstructure:"fee_rate"`          // decimal string, e.g. "0.01"
	DefaultFeePayer string `mapstructure:"default_fee_payer"` // SENDER or RECEIVER
}

// TokenConfig holds the lifetime of every authorization token kind.
type TokenConfig struct {
	TransferTTL      time.Duration `mapstructure:"transfer_ttl"`
	PayInvoiceTTL    time.Duration `mapstructure:"pay_invoice_ttl"`
	ResetPasswordTTL time.Duration `mapstructure:"reset_password_ttl"`
	RefreshTTL       time.Duration `mapstructure:"refresh_ttl"`
	AdminRefreshTTL  time.Duration `mapstructure:"admin_refresh_ttl"`
}

// InterbankConfig describes the single trusted partner bank.
type InterbankConfig struct {
	BankCode             string        `mapstructure:"bank_code"`
	PartnerCode          string        `mapstructure:"partner_code"`
	PartnerBaseURL       string        `mapstructure:"partner_base_url"`
	PrivateKeyPath       string        `mapstructure:"private_key_path"`
	PartnerPublicKeyPath string        `mapstructure:"partner_public_key_path"`
	MessageTTL           time.Duration `mapstructure:"message_ttl"`
	Timeout              time.Duration `mapstructure:"timeout"`
	RetryMaxAttempts     uint64        `mapstructure:"retry_max_attempts"`
	RetryInitialInterval time.Duration `mapstructure:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `mapstructure:"retry_max_interval"`
}

// Enabled reports whether enough is configured to talk to the partner.
func (i InterbankConfig) Enabled() bool {
	return i.PartnerBaseURL != "" && i.PrivateKeyPath != "" && i.PartnerPublicKeyPath != ""
}

// NotifyConfig selects how lifecycle events leave the process.
type NotifyConfig struct {
	Driver        string        `mapstructure:"driver"` // redis, webhook, log
	Stream        string        `mapstructure:"stream"`
	WebhookURL    string        `mapstructure:"webhook_url"`
	WebhookSecret string        `mapstructure:"webhook_secret"` // HMAC key for X-Signature
	Timeout       time.Duration `mapstructure:"timeout"`        // Per event, across retries
}

// Load reads configuration from an optional .env file, a config file and
// environment variables, in increasing priority. Prefix: IBC_.
// Nested keys use underscore: IBC_DATABASE_HOST, IBC_LEDGER_FEE_RATE, etc.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "internet_banking")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "15m")
	v.SetDefault("jwt.issuer", "internet-banking-core")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("ledger.fee_rate", "0.01")
	v.SetDefault("ledger.default_fee_payer", "SENDER")
	v.SetDefault("tokens.transfer_ttl", "5m")
	v.SetDefault("tokens.pay_invoice_ttl", "5m")
	v.SetDefault("tokens.reset_password_ttl", "15m")
	v.SetDefault("tokens.refresh_ttl", "168h")
	v.SetDefault("tokens.admin_refresh_ttl", "24h")
	v.SetDefault("interbank.bank_code", "IBC")
	v.SetDefault("interbank.partner_code", "KARMA")
	v.SetDefault("interbank.message_ttl", "1m")
	v.SetDefault("interbank.timeout", "10s")
	v.SetDefault("interbank.retry_max_attempts", 3)
	v.SetDefault("interbank.retry_initial_interval", "200ms")
	v.SetDefault("interbank.retry_max_interval", "2s")
	v.SetDefault("notify.driver", "log")
	v.SetDefault("notify.stream", "banking:events")
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.webhook_secret", "")
	v.SetDefault("notify.timeout", "10s")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// IBC_DATABASE_HOST -> database.host
	v.SetEnvPrefix("IBC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
