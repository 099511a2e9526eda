package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	aws_pkg "github.com/Maddyahamco00/Nigeria-bece-sub000/pkg/aws"
	"github.com/joho/godotenv"
)

const (
	ProviderPaystack = "paystack"
	ProviderStripe   = "stripe"

	EventBusSNS   = "sns"
	EventBusKafka = "kafka"
	EventBusNone  = "none"
)

// Config holds all configuration for the registration payment service.
type Config struct {
	Port   string
	AppEnv string

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	RedisURL string

	PaymentProvider     string
	PaystackSecretKey   string
	PaystackBaseURL     string
	StripeSecretKey     string
	StripeWebhookSecret string
	GatewayTimeout      time.Duration
	CallbackURL         string
	FrontendURL         string
	Currency            string
	RegistrationFeeKobo int64

	ReceiptTokenSecret string
	ReceiptTokenTTL    time.Duration

	AdminEmail           string
	NotificationQueueURL string

	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	TwilioBaseURL    string

	EventBus           string
	PaymentSNSTopicARN string
	KafkaBrokers       []string
	KafkaTopic         string

	ReconcileInterval time.Duration
	ReconcileMinAge   time.Duration
	ReconcileMaxAge   time.Duration

	CloudWatchEnabled bool
	AllowedOrigins    []string
	RateLimitPerMin   int
}

// LoadConfig reads configuration from the environment (and .env when
// present) with optional Secrets Manager override.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "8090"),
		AppEnv:               getEnv("APP_ENV", "development"),
		PostgresUser:         os.Getenv("POSTGRES_USER"),
		PostgresPassword:     os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:           os.Getenv("POSTGRES_DB"),
		PostgresHost:         getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:         getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:      getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone:     getEnv("POSTGRES_TIMEZONE", "Africa/Lagos"),
		RedisURL:             os.Getenv("REDIS_URL"),
		PaymentProvider:      strings.ToLower(getEnv("PAYMENT_PROVIDER", ProviderPaystack)),
		PaystackSecretKey:    os.Getenv("PAYSTACK_SECRET_KEY"),
		PaystackBaseURL:      getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		StripeSecretKey:      os.Getenv("STRIPE_API_KEY"),
		StripeWebhookSecret:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
		GatewayTimeout:       getDuration("GATEWAY_TIMEOUT", 15*time.Second),
		CallbackURL:          getEnv("CALLBACK_URL", "http://localhost:3000/payment/callback"),
		FrontendURL:          strings.TrimSuffix(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
		Currency:             strings.ToUpper(getEnv("CURRENCY", "NGN")),
		RegistrationFeeKobo:  getInt64("REGISTRATION_FEE_KOBO", 0),
		ReceiptTokenSecret:   os.Getenv("RECEIPT_TOKEN_SECRET"),
		ReceiptTokenTTL:      getDuration("RECEIPT_TOKEN_TTL", 24*time.Hour),
		AdminEmail:           os.Getenv("ADMIN_EMAIL"),
		NotificationQueueURL: os.Getenv("NOTIFICATION_QUEUE_URL"),
		SMTPHost:             os.Getenv("SMTP_HOST"),
		SMTPPort:             getEnv("SMTP_PORT", "587"),
		SMTPUser:             os.Getenv("SMTP_USER"),
		SMTPPass:             os.Getenv("SMTP_PASS"),
		SMTPFrom:             os.Getenv("SMTP_FROM"),
		TwilioAccountSID:     os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:      os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber:     os.Getenv("TWILIO_FROM_NUMBER"),
		TwilioBaseURL:        getEnv("TWILIO_BASE_URL", "https://api.twilio.com"),
		EventBus:             strings.ToLower(getEnv("EVENT_BUS", EventBusNone)),
		PaymentSNSTopicARN:   os.Getenv("PAYMENT_SNS_TOPIC_ARN"),
		KafkaBrokers:         splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:           getEnv("KAFKA_TOPIC", "bece.payment-events"),
		ReconcileInterval:    getDuration("RECONCILE_INTERVAL", 10*time.Minute),
		ReconcileMinAge:      getDuration("RECONCILE_MIN_AGE", 15*time.Minute),
		ReconcileMaxAge:      getDuration("RECONCILE_MAX_AGE", 72*time.Hour),
		CloudWatchEnabled:    os.Getenv("CLOUDWATCH_ENABLED") == "true",
		AllowedOrigins:       splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		RateLimitPerMin:      int(getInt64("RATE_LIMIT_PER_MIN", 60)),
	}

	// Override DB credentials and gateway secrets from Secrets Manager when running on AWS
	if os.Getenv("AWS_USE_SECRETS") == "true" {
		cfg.applySecrets(context.Background())
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applySecrets(ctx context.Context) {
	awsCfg, err := aws_pkg.LoadAWSConfig(ctx)
	if err != nil {
		return
	}
	sm := aws_pkg.NewSecretsClient(awsCfg)
	c.overlaySecrets(ctx, sm)
}

// overlaySecrets replaces configured values with any secret that resolves.
// Missing secrets leave the environment value in place.
func (c *Config) overlaySecrets(ctx context.Context, sm *aws_pkg.SecretsClient) {
	if m, err := sm.GetSecretMap(ctx, "bece/DB_CREDENTIALS"); err == nil {
		overlay(&c.PostgresUser, m["POSTGRES_USER"])
		overlay(&c.PostgresPassword, m["POSTGRES_PASSWORD"])
		overlay(&c.PostgresDB, m["POSTGRES_DB"])
		overlay(&c.PostgresHost, m["POSTGRES_HOST"])
		overlay(&c.PostgresPort, m["POSTGRES_PORT"])
	}
	if v, err := sm.GetSecret(ctx, "bece/PAYSTACK_SECRET_KEY"); err == nil {
		overlay(&c.PaystackSecretKey, v)
	}
	if v, err := sm.GetSecret(ctx, "bece/STRIPE_WEBHOOK_SECRET"); err == nil {
		overlay(&c.StripeWebhookSecret, v)
	}
	if v, err := sm.GetSecret(ctx, "bece/RECEIPT_TOKEN_SECRET"); err == nil {
		overlay(&c.ReceiptTokenSecret, v)
	}
	if v, err := sm.GetSecret(ctx, "bece/SMTP_PASS"); err == nil {
		overlay(&c.SMTPPass, v)
	}
}

// Validate checks the keys the service cannot start without.
func (c *Config) Validate() error {
	if c.PostgresUser == "" || c.PostgresPassword == "" || c.PostgresDB == "" {
		return fmt.Errorf("database config incomplete")
	}
	switch c.PaymentProvider {
	case ProviderPaystack:
		if c.PaystackSecretKey == "" {
			return fmt.Errorf("PAYSTACK_SECRET_KEY is required for provider %q", c.PaymentProvider)
		}
	case ProviderStripe:
		if c.StripeSecretKey == "" || c.StripeWebhookSecret == "" {
			return fmt.Errorf("STRIPE_API_KEY and STRIPE_WEBHOOK_SECRET are required for provider %q", c.PaymentProvider)
		}
	default:
		return fmt.Errorf("unsupported PAYMENT_PROVIDER %q", c.PaymentProvider)
	}
	if c.ReceiptTokenSecret == "" {
		return fmt.Errorf("RECEIPT_TOKEN_SECRET not set")
	}
	switch c.EventBus {
	case EventBusNone, EventBusSNS:
	case EventBusKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS not set for EVENT_BUS=kafka")
		}
	default:
		return fmt.Errorf("unsupported EVENT_BUS %q", c.EventBus)
	}
	if c.GatewayTimeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be positive")
	}
	return nil
}

// PostgresDSN builds the connection string for gorm's postgres driver.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB,
		c.PostgresPort, c.PostgresSSLMode, c.PostgresTimeZone,
	)
}

// ReceiptURL is where the browser lands after a successful verify.
func (c *Config) ReceiptURL() string {
	return c.FrontendURL + "/registration/complete"
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(strings.TrimSuffix(part, "/")); p != "" {
			out = append(out, p)
		}
	}
	return out
}
