package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nordholz-group/salesplan-api/internal/secrets"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	ERP       ERPConfig
	Secrets   SecretsConfig
	Logging   LoggingConfig
	Server    ServerConfig
	Jobs      JobsConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Port        int
}

type DatabaseConfig struct {
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
}

// ERPConfig holds configuration for the MS SQL ERP sales feed.
// This connection is optional and read-only; when disabled, sales rows are
// expected to arrive through some other import path.
type ERPConfig struct {
	// Enabled controls whether the ERP connection is attempted
	Enabled bool
	// URL is the connection URL in format host:port/database
	URL string
	// User is the database username
	User string
	// Password is the database password
	Password string
	// SalesTable is the fully qualified source table or view for monthly sales
	SalesTable string
	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int
	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int
	// ConnMaxLifetime is the maximum connection reuse time (seconds)
	ConnMaxLifetime int
	// QueryTimeout is the default timeout for queries (seconds)
	QueryTimeout int
}

type SecretsConfig struct {
	// KeyVaultName is the Azure Key Vault holding the ERP credentials.
	// Empty disables vault lookup; credentials then come from env vars.
	KeyVaultName string
	CacheEnabled bool
	CacheTTL     int // seconds
}

type LoggingConfig struct {
	Level  string
	Format string
}

type ServerConfig struct {
	ReadTimeout    int
	WriteTimeout   int
	RequestTimeout int
}

// JobsConfig holds the schedules and lock settings of the batch jobs.
type JobsConfig struct {
	// DeviationCron is the cron expression for the deviation detection job
	DeviationCron string
	// ERPImportCron is the cron expression for the ERP sales import job
	ERPImportCron string
	// LockTTLHours is the expiry of the named job locks. A stuck run is
	// cleared by lock expiry, not by active cancellation.
	LockTTLHours int
	// JobTimeout is the per-invocation timeout in seconds
	JobTimeout int
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	WhitelistPaths    []string
}

// ConnectionString builds PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// ConnMaxLifetimeDuration returns connection max lifetime as duration
func (d *DatabaseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Second
}

// ConnMaxLifetimeDuration returns connection max lifetime as duration
func (e *ERPConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(e.ConnMaxLifetime) * time.Second
}

// QueryTimeoutDuration returns query timeout as duration
func (e *ERPConfig) QueryTimeoutDuration() time.Duration {
	return time.Duration(e.QueryTimeout) * time.Second
}

// ReadTimeoutDuration returns read timeout as duration
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns write timeout as duration
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// RequestTimeoutDuration returns request timeout as duration
func (s *ServerConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// LockTTL returns the job lock expiry as duration
func (j *JobsConfig) LockTTL() time.Duration {
	return time.Duration(j.LockTTLHours) * time.Hour
}

// JobTimeoutDuration returns the per-job timeout as duration
func (j *JobsConfig) JobTimeoutDuration() time.Duration {
	return time.Duration(j.JobTimeout) * time.Second
}

// Load loads configuration from file and environment variables.
// ERP credentials are not resolved here; use LoadWithSecrets for that.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override config file
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Secrets.KeyVaultName == "" {
		cfg.Secrets.KeyVaultName = v.GetString("AZURE_KEY_VAULT_NAME")
	}
	if v.GetBool("ERP_ENABLED") {
		cfg.ERP.Enabled = true
	}

	return &cfg, nil
}

// LoadWithSecrets loads configuration and resolves the ERP credentials.
// When a Key Vault name is configured the credentials come from Azure Key
// Vault; otherwise they fall back to environment variables. The ERP feed is
// optional, so a failed vault lookup is logged and does not abort startup.
func LoadWithSecrets(ctx context.Context, logger *zap.Logger) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if !cfg.ERP.Enabled {
		return cfg, nil
	}

	if cfg.Secrets.KeyVaultName == "" {
		logger.Info("no key vault configured, using environment variables for ERP credentials")
		return cfg, nil
	}

	provider, err := secrets.NewProvider(&secrets.ProviderConfig{
		VaultName:    cfg.Secrets.KeyVaultName,
		CacheEnabled: cfg.Secrets.CacheEnabled,
		CacheTTL:     time.Duration(cfg.Secrets.CacheTTL) * time.Second,
	}, logger)
	if err != nil {
		logger.Warn("failed to initialize secrets provider, ERP credentials fall back to environment",
			zap.Error(err))
		return cfg, nil
	}

	if url, err := provider.GetSecretOrEnv(ctx, "ERP-URL", "ERP_URL"); err == nil && url != "" {
		cfg.ERP.URL = url
	}
	if user, err := provider.GetSecretOrEnv(ctx, "ERP-USERNAME", "ERP_USER"); err == nil && user != "" {
		cfg.ERP.User = user
	}
	if password, err := provider.GetSecretOrEnv(ctx, "ERP-PASSWORD", "ERP_PASSWORD"); err == nil && password != "" {
		cfg.ERP.Password = password
	}

	logger.Info("ERP credentials resolved",
		zap.String("key_vault_name", cfg.Secrets.KeyVaultName))
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "Salesplan API")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.port", 8080)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "salesplan")
	v.SetDefault("database.user", "salesplan_user")
	v.SetDefault("database.password", "salesplan_password")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", 300)

	// ERP feed defaults (MS SQL - optional, read-only)
	v.SetDefault("erp.enabled", false)
	v.SetDefault("erp.salesTable", "dbo.v_monthly_sales")
	v.SetDefault("erp.maxOpenConns", 10)
	v.SetDefault("erp.maxIdleConns", 2)
	v.SetDefault("erp.connMaxLifetime", 300)
	v.SetDefault("erp.queryTimeout", 30)

	// Secrets defaults
	v.SetDefault("secrets.cacheEnabled", true)
	v.SetDefault("secrets.cacheTTL", 300)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	// Server defaults
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.requestTimeout", 60)

	// Job defaults: deviation detection nightly at 05:30, ERP import at
	// 04:00; locks expire after six hours.
	v.SetDefault("jobs.deviationCron", "0 30 5 * * *")
	v.SetDefault("jobs.erpImportCron", "0 0 4 * * *")
	v.SetDefault("jobs.lockTTLHours", 6)
	v.SetDefault("jobs.jobTimeout", 3600)

	// CORS defaults
	v.SetDefault("cors.allowedOrigins", []string{})
	v.SetDefault("cors.allowedMethods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowedHeaders", []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"})
	v.SetDefault("cors.allowCredentials", true)
	v.SetDefault("cors.maxAge", 300)

	// Rate limiting defaults
	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.requestsPerMinute", 60)
	v.SetDefault("rateLimit.whitelistPaths", []string{"/health", "/health/db"})
}
