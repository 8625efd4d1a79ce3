// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetPurchaseRateLimitPerMinute() int
}

// JWTConfig provides JWT validation settings for admin middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
	IsAdminEnabled() bool
}

// EgressConfig provides outbound HTTP client settings.
type EgressConfig interface {
	GetEgressProxyURL() string
	GetOutboundTimeout() time.Duration
}

// PaymentConfig provides settings for the payment processor verification API.
type PaymentConfig interface {
	GetFlutterwaveBaseURL() string
	GetFlutterwaveSecretKey() string
}

// VendorConfig provides settings for the data vendor API.
type VendorConfig interface {
	GetAmigoBaseURL() string
	GetAmigoAPIKey() string
	GetPhoneDefaultRegion() string
}

// CatalogConfig provides the optional plan catalog override.
type CatalogConfig interface {
	GetPlanCatalogFile() string
}

// WebhookConfig provides settings for the payment webhook listener.
type WebhookConfig interface {
	GetFlutterwaveSecretHash() string
	GetWebhookDedupTTL() time.Duration
}

// RedisConfig provides settings for the optional Redis connection.
type RedisConfig interface {
	GetRedisURL() string
	IsRedisEnabled() bool
}

// MinIOConfig provides settings for the optional webhook archive bucket.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketWebhooks() string
	IsMinIOEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                        string
	HTTPAddr                   string
	DatabaseURL                string
	CORSAllowAll               bool
	CORSOrigins                []string
	CORSAllowCreds             bool
	PurchaseRateLimitPerMinute int
	JWTAccessSecret            string
	EgressProxyURL             string
	OutboundTimeout            time.Duration
	FlutterwaveBaseURL         string
	FlutterwaveSecretKey       string
	FlutterwaveSecretHash      string
	AmigoBaseURL               string
	AmigoAPIKey                string
	PhoneDefaultRegion         string
	PlanCatalogFile            string
	WebhookDedupTTL            time.Duration
	RedisURL                   string
	MinIOEndpoint              string
	MinIOAccessKey             string
	MinIOSecretKey             string
	MinIOUseSSL                bool
	MinioBucketWebhooks        string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string                { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool              { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string           { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool            { return c.CORSAllowCreds }
func (c *Config) GetPurchaseRateLimitPerMinute() int { return c.PurchaseRateLimitPerMinute }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }
func (c *Config) IsAdminEnabled() bool       { return c.JWTAccessSecret != "" }

// EgressConfig implementation
func (c *Config) GetEgressProxyURL() string         { return c.EgressProxyURL }
func (c *Config) GetOutboundTimeout() time.Duration { return c.OutboundTimeout }

// PaymentConfig implementation
func (c *Config) GetFlutterwaveBaseURL() string   { return c.FlutterwaveBaseURL }
func (c *Config) GetFlutterwaveSecretKey() string { return c.FlutterwaveSecretKey }

// VendorConfig implementation
func (c *Config) GetAmigoBaseURL() string       { return c.AmigoBaseURL }
func (c *Config) GetAmigoAPIKey() string        { return c.AmigoAPIKey }
func (c *Config) GetPhoneDefaultRegion() string { return c.PhoneDefaultRegion }

// CatalogConfig implementation
func (c *Config) GetPlanCatalogFile() string { return c.PlanCatalogFile }

// WebhookConfig implementation
func (c *Config) GetFlutterwaveSecretHash() string  { return c.FlutterwaveSecretHash }
func (c *Config) GetWebhookDedupTTL() time.Duration { return c.WebhookDedupTTL }

// RedisConfig implementation
func (c *Config) GetRedisURL() string  { return c.RedisURL }
func (c *Config) IsRedisEnabled() bool { return c.RedisURL != "" }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string       { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string      { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string      { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool           { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketWebhooks() string { return c.MinioBucketWebhooks }
func (c *Config) IsMinIOEnabled() bool           { return c.MinIOEndpoint != "" }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the configuration from the current process environment
// without touching .env files.
func FromEnv() (*Config, error) {
	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	// QUOTAGUARD_URL is what the hosting add-on injects; EGRESS_PROXY_URL wins when both are set.
	proxyURL := getEnv("EGRESS_PROXY_URL", "")
	if proxyURL == "" {
		proxyURL = getEnv("QUOTAGUARD_URL", "")
	}

	cfg := &Config{
		Env:                        getEnv("APP_ENV", "development"),
		HTTPAddr:                   getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:                getEnv("DATABASE_URL", ""),
		CORSAllowAll:               corsAllowAll,
		CORSOrigins:                corsOrigins,
		CORSAllowCreds:             strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "false"), "true"),
		PurchaseRateLimitPerMinute: mustInt(getEnv("PURCHASE_RATE_LIMIT_PER_MIN", "30")),
		JWTAccessSecret:            getEnv("JWT_ACCESS_SECRET", ""),
		EgressProxyURL:             strings.TrimSpace(proxyURL),
		OutboundTimeout:            mustDuration(getEnv("OUTBOUND_TIMEOUT", "30s")),
		FlutterwaveBaseURL:         strings.TrimRight(getEnv("FLW_BASE_URL", "https://api.flutterwave.com"), "/"),
		FlutterwaveSecretKey:       getEnv("FLW_SECRET_KEY", ""),
		FlutterwaveSecretHash:      getEnv("FLW_SECRET_HASH", ""),
		AmigoBaseURL:               strings.TrimRight(getEnv("AMIGO_BASE_URL", "https://amigo.ng"), "/"),
		AmigoAPIKey:                getEnv("AMIGO_API_KEY", ""),
		PhoneDefaultRegion:         strings.ToUpper(getEnv("PHONE_DEFAULT_REGION", "NG")),
		PlanCatalogFile:            getEnv("PLAN_CATALOG_FILE", ""),
		WebhookDedupTTL:            mustDuration(getEnv("WEBHOOK_DEDUP_TTL", "72h")),
		RedisURL:                   getEnv("REDIS_URL", ""),
		MinIOEndpoint:              getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:             getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:             getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:                strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketWebhooks:        getEnv("MINIO_BUCKET_WEBHOOKS", "payment-webhooks"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.FlutterwaveSecretKey == "" {
		return nil, fmt.Errorf("FLW_SECRET_KEY is required")
	}
	if cfg.FlutterwaveSecretHash == "" {
		return nil, fmt.Errorf("FLW_SECRET_HASH is required")
	}
	if cfg.AmigoAPIKey == "" {
		return nil, fmt.Errorf("AMIGO_API_KEY is required")
	}
	if cfg.OutboundTimeout <= 0 {
		return nil, fmt.Errorf("OUTBOUND_TIMEOUT must be a positive duration")
	}
	if cfg.WebhookDedupTTL <= 0 {
		return nil, fmt.Errorf("WEBHOOK_DEDUP_TTL must be a positive duration")
	}
	if cfg.PurchaseRateLimitPerMinute <= 0 {
		return nil, fmt.Errorf("PURCHASE_RATE_LIMIT_PER_MIN must be a positive integer")
	}
	if !cfg.CORSAllowAll && len(cfg.CORSOrigins) == 0 {
		return nil, fmt.Errorf("CORS_ORIGINS must list at least one origin unless CORS_ALLOW_ALL is true")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.IsMinIOEnabled() && (cfg.MinIOAccessKey == "" || cfg.MinIOSecretKey == "") {
		return nil, fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when MINIO_ENDPOINT is set")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
