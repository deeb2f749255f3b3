package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewPlanConfigHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Auth      AuthConfig
	Quota     QuotaConfig
	RateLimit RateLimitConfig
	Scheduler SchedulerConfig
	Providers ProvidersConfig
	Payments  PaymentsConfig
	Export    ExportConfig

	CORSAllowedOrigins []string
}

type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
}

// QuotaConfig selects whether quota decisions block AI calls.
type QuotaConfig struct {
	Mode string
}

type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AssistantUserRate  float64
	AssistantUserBurst int
	QuotaLockTTL       time.Duration

	WebhookIPRate  float64
	WebhookIPBurst int
}

type SchedulerConfig struct {
	Enabled         bool
	ExpirySpec      string
	ExpiryBatchSize int
	LockTTL         time.Duration
	EnabledJobs     []string
}

type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type ProvidersConfig struct {
	Default   string
	Timeout   time.Duration
	OpenAI    ProviderConfig
	Azure     ProviderConfig
	Anthropic ProviderConfig
	Ollama    ProviderConfig
	Gemini    ProviderConfig
}

type PaymentsConfig struct {
	StripeWebhookSecret string
	TossWebhookSecret   string
	SignatureTolerance  time.Duration
}

// ExportConfig pushes monthly accounting gauges to an external metrics store.
type ExportConfig struct {
	Enabled   bool
	Exporter  string
	Endpoint  string
	AuthToken string
	Interval  time.Duration
}

const (
	QuotaModeEnforce  = "enforce"
	QuotaModeAdvisory = "advisory"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "lukas"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "postgres"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),

		Auth: AuthConfig{
			JWTSecret:   strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
			JWTIssuer:   strings.TrimSpace(getenv("AUTH_JWT_ISSUER", "")),
			JWTAudience: strings.TrimSpace(getenv("AUTH_JWT_AUDIENCE", "authenticated")),
		},
		Quota: QuotaConfig{
			Mode: normalizeQuotaMode(getenv("QUOTA_MODE", QuotaModeEnforce)),
		},
		RateLimit: RateLimitConfig{
			Enabled:            getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:          strings.TrimSpace(getenv("REDIS_ADDR", "localhost:6379")),
			RedisPassword:      getenv("REDIS_PASSWORD", ""),
			RedisDB:            getenvInt("REDIS_DB", 0),
			AssistantUserRate:  getenvFloat("RATE_LIMIT_ASSISTANT_USER_RATE", 1),
			AssistantUserBurst: getenvInt("RATE_LIMIT_ASSISTANT_USER_BURST", 5),
			QuotaLockTTL:       getenvDuration("RATE_LIMIT_QUOTA_LOCK_TTL", 2*time.Minute),
			WebhookIPRate:      getenvFloat("RATE_LIMIT_WEBHOOK_IP_RATE", 10),
			WebhookIPBurst:     getenvInt("RATE_LIMIT_WEBHOOK_IP_BURST", 20),
		},
		Scheduler: SchedulerConfig{
			Enabled:         getenvBool("SCHEDULER_ENABLED", true),
			ExpirySpec:      getenv("SCHEDULER_EXPIRY_SPEC", "@every 5m"),
			ExpiryBatchSize: getenvInt("SCHEDULER_EXPIRY_BATCH_SIZE", 200),
			LockTTL:         getenvDuration("SCHEDULER_LOCK_TTL", 4*time.Minute),
			EnabledJobs:     splitList(getenv("SCHEDULER_ENABLED_JOBS", "")),
		},
		Providers: ProvidersConfig{
			Default: strings.ToLower(getenv("AI_DEFAULT_PROVIDER", "openai")),
			Timeout: getenvDuration("AI_TIMEOUT", 60*time.Second),
			OpenAI: ProviderConfig{
				APIKey:  getenv("OPENAI_API_KEY", ""),
				BaseURL: getenv("OPENAI_BASE_URL", ""),
				Model:   getenv("OPENAI_MODEL", "gpt-4o-mini"),
			},
			Azure: ProviderConfig{
				APIKey:  getenv("AZURE_OPENAI_API_KEY", ""),
				BaseURL: getenv("AZURE_OPENAI_ENDPOINT", ""),
				Model:   getenv("AZURE_OPENAI_DEPLOYMENT", ""),
			},
			Anthropic: ProviderConfig{
				APIKey: getenv("ANTHROPIC_API_KEY", ""),
				Model:  getenv("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
			},
			Ollama: ProviderConfig{
				BaseURL: getenv("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:   getenv("OLLAMA_MODEL", "llama3"),
			},
			Gemini: ProviderConfig{
				APIKey: getenv("GEMINI_API_KEY", ""),
				Model:  getenv("GEMINI_MODEL", "gemini-2.0-flash"),
			},
		},
		Payments: PaymentsConfig{
			StripeWebhookSecret: strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			TossWebhookSecret:   strings.TrimSpace(getenv("TOSS_WEBHOOK_SECRET", "")),
			SignatureTolerance:  getenvDuration("PAYMENT_SIGNATURE_TOLERANCE", 5*time.Minute),
		},
		Export: ExportConfig{
			Enabled:   getenvBool("ACCOUNTING_EXPORT_ENABLED", false),
			Exporter:  strings.ToLower(strings.TrimSpace(getenv("ACCOUNTING_EXPORT_EXPORTER", ""))),
			Endpoint:  strings.TrimSpace(getenv("ACCOUNTING_EXPORT_ENDPOINT", "")),
			AuthToken: strings.TrimSpace(getenv("ACCOUNTING_EXPORT_AUTH_TOKEN", "")),
			Interval:  getenvDuration("ACCOUNTING_EXPORT_INTERVAL", 5*time.Minute),
		},
		CORSAllowedOrigins: splitList(getenv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// EnforceQuota reports whether exceeded quotas block AI calls.
func (c Config) EnforceQuota() bool {
	return c.Quota.Mode != QuotaModeAdvisory
}

func normalizeQuotaMode(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case QuotaModeAdvisory:
		return QuotaModeAdvisory
	default:
		return QuotaModeEnforce
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
