package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	BotToken    string
	AdminIDs    []int64 // external identities allowed to use admin commands
	PostgresURI string
	MongoURI    string
	RedisURI    string

	Port           string
	Environment    string   // ENV: production, development, etc.
	AllowedOrigins []string // CORS for the HTTP surface (webhook/admin API)

	// AdminTokenHash is an argon2id hash of the admin API token
	// (generated with utils.HashToken).
	AdminTokenHash string

	PaymentSecret     string
	PaymentGatewayURL string

	// EncryptionKey protects dedicated relay tokens at rest
	// (base64-encoded 32 bytes).
	EncryptionKey string

	CloudinaryName      string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string

	TrialDays          int           // dedicated-mode free trial length
	MinMessageInterval time.Duration // anti-spam window per sender
	RetentionDays      int           // message log retention threshold
	PendingPaymentTTL  time.Duration // how long a premium selection waits for payment
}

func Load() *Config {
	env := strings.ToLower(strings.TrimSpace(getEnv("ENV", "development")))

	return &Config{
		BotToken:            getEnv("BOT_TOKEN", ""),
		AdminIDs:            parseIDs(getEnv("ADMIN_IDS", "")),
		PostgresURI:         getEnv("DATABASE_URL", getEnv("POSTGRES_URI", "postgres://localhost:5432/connectpro?sslmode=disable")),
		MongoURI:            getEnv("MONGODB_URI", getEnv("MONGO_URI", "mongodb://localhost:27017/connectpro")),
		RedisURI:            getEnv("REDIS_URI", "redis://localhost:6379/0"),
		Port:                getEnv("PORT", "8080"),
		Environment:         env,
		AllowedOrigins:      parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
		AdminTokenHash:      getEnv("ADMIN_TOKEN_HASH", ""),
		PaymentSecret:       getEnv("PAYMENT_SECRET", ""),
		PaymentGatewayURL:   getEnv("PAYMENT_GATEWAY_URL", "https://payments.example.com"),
		EncryptionKey:       getEnv("ENCRYPTION_KEY", ""),
		CloudinaryName:      getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),
		TrialDays:           getEnvInt("TRIAL_DAYS", 120),
		MinMessageInterval:  time.Duration(getEnvInt("MIN_MESSAGE_INTERVAL_SECONDS", 4)) * time.Second,
		RetentionDays:       getEnvInt("RETENTION_DAYS", 72),
		PendingPaymentTTL:   time.Duration(getEnvInt("PENDING_PAYMENT_TTL_HOURS", 24)) * time.Hour,
	}
}

// Validate reports the first missing required setting. The process must not
// start without a bot token, an admin identity and a database.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return errors.New("BOT_TOKEN is required")
	}
	if len(c.AdminIDs) == 0 {
		return errors.New("ADMIN_IDS is required (comma-separated sender ids)")
	}
	if c.PostgresURI == "" {
		return errors.New("DATABASE_URL is required")
	}
	return nil
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseIDs(s string) []int64 {
	var out []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}
