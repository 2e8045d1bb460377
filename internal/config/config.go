package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverDynamo   = "dynamo"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Notifier transports accepted by NOTIFIER.
const (
	NotifierSMTP = "smtp"
	NotifierSNS  = "sns"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort   string
	AppEnv    string
	LogLevel  string
	LogFormat string

	StoreDriver    string
	DatabaseURL    string
	SQLitePath     string
	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	OTPCodeLength    int
	OTPTTL           time.Duration
	OTPSweepInterval time.Duration
	JWTSecret        string
	JWTIssuer        string
	JWTExpiry        time.Duration

	Notifier     string
	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string
	SNSRegion    string
	SNSTopicARN  string

	RateLimitRPS   float64
	RateLimitBurst int
	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users        string
	UserKeys     string
	Counters     string
	OneTimeCodes string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:   getEnv("APP_PORT", "3000"),
		AppEnv:    getEnv("APP_ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		StoreDriver:    strings.ToLower(getEnv("STORE_DRIVER", DriverDynamo)),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		SQLitePath:     getEnv("SQLITE_PATH", "./studio.db"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:        getEnv("DYNAMO_TABLE_USERS", "users"),
			UserKeys:     getEnv("DYNAMO_TABLE_USER_KEYS", "user_keys"),
			Counters:     getEnv("DYNAMO_TABLE_COUNTERS", "counters"),
			OneTimeCodes: getEnv("DYNAMO_TABLE_ONE_TIME_CODES", "one_time_codes"),
		},

		OTPCodeLength:    getEnvInt("OTP_CODE_LENGTH", 6),
		OTPTTL:           time.Duration(getEnvInt("OTP_TTL_MINUTES", 10)) * time.Minute,
		OTPSweepInterval: time.Duration(getEnvInt("OTP_SWEEP_INTERVAL_MINUTES", 15)) * time.Minute,
		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTIssuer:        getEnv("JWT_ISSUER", "studio-api"),
		JWTExpiry:        time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 168)) * time.Hour,

		Notifier:     strings.ToLower(getEnv("NOTIFIER", NotifierSMTP)),
		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SNSRegion:    getEnv("SNS_REGION", "us-east-1"),
		SNSTopicARN:  getEnv("SNS_TOPIC_ARN", ""),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 10),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

// Validate reports every setting that would make the service unsafe or unable to start.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.JWTExpiry <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRY_HOURS must be positive"))
	}
	if c.OTPTTL <= 0 {
		errs = append(errs, errors.New("OTP_TTL_MINUTES must be positive"))
	}
	if c.OTPSweepInterval <= 0 {
		errs = append(errs, errors.New("OTP_SWEEP_INTERVAL_MINUTES must be positive"))
	}
	if c.OTPCodeLength < 4 || c.OTPCodeLength > 12 {
		errs = append(errs, fmt.Errorf("OTP_CODE_LENGTH must be between 4 and 12, got %d", c.OTPCodeLength))
	}
	switch c.StoreDriver {
	case DriverDynamo, DriverSQLite:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	switch c.Notifier {
	case NotifierSMTP:
	case NotifierSNS:
		if c.SNSTopicARN == "" {
			errs = append(errs, errors.New("SNS_TOPIC_ARN is required for the sns notifier"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown NOTIFIER %q", c.Notifier))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
