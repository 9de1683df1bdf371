package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env           string
	Port          int
	APIPrefix     string
	PublicBaseURL string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	PreScreen     PreScreenConfig
	Consensus     ConsensusConfig
	Ledger        LedgerConfig
	Analysis      AnalysisConfig
	Exports       ExportsConfig
	Notifications NotificationsConfig
	Cache         CacheConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// PreScreenConfig holds the AI pre-screen gate thresholds. Both values live
// in [0,1]; an analysis below MinConfidence is retried rather than routed.
type PreScreenConfig struct {
	MinConfidence   float64
	MinAuthenticity float64
}

// ConsensusConfig governs quorum voting. ApprovalWeightThreshold must exceed
// 0.5 so approve and reject can never both clear it.
type ConsensusConfig struct {
	QuorumThreshold         int
	ApprovalWeightThreshold float64
	FlagWeightThreshold     float64
	MaxVotingWindow         time.Duration
	SweepInterval           time.Duration
}

// LedgerConfig points at the certificate issuance collaborator.
type LedgerConfig struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
}

// AnalysisConfig points at the document analysis collaborator.
type AnalysisConfig struct {
	BaseURL       string
	WebhookSecret string
	Timeout       time.Duration
}

// ExportsConfig controls audit package exports.
type ExportsConfig struct {
	Enabled         bool
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupInterval time.Duration
}

// NotificationsConfig controls the best-effort notification dispatcher.
type NotificationsConfig struct {
	Enabled           bool
	WorkerConcurrency int
}

// CacheConfig tunes the read-path response cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.PublicBaseURL = v.GetString("PUBLIC_BASE_URL")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.PreScreen = PreScreenConfig{
		MinConfidence:   v.GetFloat64("PRESCREEN_MIN_CONFIDENCE"),
		MinAuthenticity: v.GetFloat64("PRESCREEN_MIN_AUTHENTICITY"),
	}

	cfg.Consensus = ConsensusConfig{
		QuorumThreshold:         v.GetInt("CONSENSUS_QUORUM_THRESHOLD"),
		ApprovalWeightThreshold: v.GetFloat64("CONSENSUS_APPROVAL_WEIGHT_THRESHOLD"),
		FlagWeightThreshold:     v.GetFloat64("CONSENSUS_FLAG_WEIGHT_THRESHOLD"),
		MaxVotingWindow:         parseDuration(v.GetString("CONSENSUS_MAX_VOTING_WINDOW"), 72*time.Hour),
		SweepInterval:           parseDuration(v.GetString("CONSENSUS_SWEEP_INTERVAL"), 5*time.Minute),
	}

	cfg.Ledger = LedgerConfig{
		BaseURL:     v.GetString("LEDGER_BASE_URL"),
		APIKey:      v.GetString("LEDGER_API_KEY"),
		Timeout:     parseDuration(v.GetString("LEDGER_TIMEOUT"), 15*time.Second),
		MaxAttempts: v.GetInt("LEDGER_MAX_ATTEMPTS"),
		RetryDelay:  parseDuration(v.GetString("LEDGER_RETRY_DELAY"), 30*time.Second),
	}

	cfg.Analysis = AnalysisConfig{
		BaseURL:       v.GetString("ANALYSIS_BASE_URL"),
		WebhookSecret: v.GetString("ANALYSIS_WEBHOOK_SECRET"),
		Timeout:       parseDuration(v.GetString("ANALYSIS_TIMEOUT"), 10*time.Second),
	}

	cfg.Exports = ExportsConfig{
		Enabled:         v.GetBool("ENABLE_EXPORTS"),
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval: parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
	}

	cfg.Notifications = NotificationsConfig{
		Enabled:           v.GetBool("ENABLE_NOTIFICATIONS"),
		WorkerConcurrency: v.GetInt("NOTIFICATIONS_WORKER_CONCURRENCY"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_RESPONSE_CACHE"),
		TTL:     parseDuration(v.GetString("RESPONSE_CACHE_TTL"), time.Minute),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate rejects threshold misconfiguration at startup. Out-of-range
// thresholds must never reach the consensus path at runtime.
func (c *Config) validate() error {
	if c.Consensus.QuorumThreshold < 1 {
		return fmt.Errorf("config: CONSENSUS_QUORUM_THRESHOLD must be >= 1, got %d", c.Consensus.QuorumThreshold)
	}
	if c.Consensus.ApprovalWeightThreshold <= 0.5 || c.Consensus.ApprovalWeightThreshold > 1 {
		return fmt.Errorf("config: CONSENSUS_APPROVAL_WEIGHT_THRESHOLD must be in (0.5, 1], got %v", c.Consensus.ApprovalWeightThreshold)
	}
	if c.Consensus.FlagWeightThreshold <= 0 || c.Consensus.FlagWeightThreshold > 1 {
		return fmt.Errorf("config: CONSENSUS_FLAG_WEIGHT_THRESHOLD must be in (0, 1], got %v", c.Consensus.FlagWeightThreshold)
	}
	if c.Consensus.MaxVotingWindow <= 0 {
		return fmt.Errorf("config: CONSENSUS_MAX_VOTING_WINDOW must be positive")
	}
	if c.PreScreen.MinConfidence < 0 || c.PreScreen.MinConfidence > 1 {
		return fmt.Errorf("config: PRESCREEN_MIN_CONFIDENCE must be in [0, 1], got %v", c.PreScreen.MinConfidence)
	}
	if c.PreScreen.MinAuthenticity < 0 || c.PreScreen.MinAuthenticity > 1 {
		return fmt.Errorf("config: PRESCREEN_MIN_AUTHENTICITY must be in [0, 1], got %v", c.PreScreen.MinAuthenticity)
	}
	if c.Ledger.MaxAttempts < 1 {
		return fmt.Errorf("config: LEDGER_MAX_ATTEMPTS must be >= 1, got %d", c.Ledger.MaxAttempts)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "verichain")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("PRESCREEN_MIN_CONFIDENCE", 0.6)
	v.SetDefault("PRESCREEN_MIN_AUTHENTICITY", 0.5)

	v.SetDefault("CONSENSUS_QUORUM_THRESHOLD", 3)
	v.SetDefault("CONSENSUS_APPROVAL_WEIGHT_THRESHOLD", 0.6)
	v.SetDefault("CONSENSUS_FLAG_WEIGHT_THRESHOLD", 0.33)
	v.SetDefault("CONSENSUS_MAX_VOTING_WINDOW", "72h")
	v.SetDefault("CONSENSUS_SWEEP_INTERVAL", "5m")

	v.SetDefault("LEDGER_BASE_URL", "http://localhost:9090")
	v.SetDefault("LEDGER_API_KEY", "")
	v.SetDefault("LEDGER_TIMEOUT", "15s")
	v.SetDefault("LEDGER_MAX_ATTEMPTS", 5)
	v.SetDefault("LEDGER_RETRY_DELAY", "30s")

	v.SetDefault("ANALYSIS_BASE_URL", "http://localhost:9091")
	v.SetDefault("ANALYSIS_WEBHOOK_SECRET", "dev_webhook_secret")
	v.SetDefault("ANALYSIS_TIMEOUT", "10s")

	v.SetDefault("ENABLE_EXPORTS", true)
	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "1h")

	v.SetDefault("ENABLE_NOTIFICATIONS", true)
	v.SetDefault("NOTIFICATIONS_WORKER_CONCURRENCY", 2)

	v.SetDefault("ENABLE_RESPONSE_CACHE", false)
	v.SetDefault("RESPONSE_CACHE_TTL", "1m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
