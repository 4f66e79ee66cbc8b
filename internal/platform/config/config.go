package config

import (
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Audit sink names accepted by AUDIT_SINK.
const (
	AuditSinkLog      = "log"
	AuditSinkPostgres = "postgres"
	AuditSinkMongo    = "mongo"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL    string
	Port           string
	IsProduction   bool
	EnableDBCheck  bool
	JWTSecret      string
	MigrationsPath string

	// Rate limiting, ulule formatted ("100-M"). Backed by Redis when RedisURL is set.
	RateLimit string
	RedisURL  string

	CORSAllowedOrigins []string

	AuditSink            string
	MongoURL             string
	MongoDatabase        string
	MongoAuditCollection string
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("ENABLE_DB_CHECK", false)
	viper.SetDefault("JWT_SECRET", "a-very-secret-key-should-be-longer-and-random")
	viper.SetDefault("MIGRATIONS_PATH", "file://migrations")
	viper.SetDefault("RATE_LIMIT", "300-M")
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	viper.SetDefault("AUDIT_SINK", AuditSinkLog)
	viper.SetDefault("MONGO_URL", "")
	viper.SetDefault("MONGO_DATABASE", "ledger")
	viper.SetDefault("MONGO_AUDIT_COLLECTION", "audit_events")

	viper.AutomaticEnv()

	cfg := &Config{}

	cfg.DatabaseURL = viper.GetString("PGSQL_URL")
	if cfg.DatabaseURL == "" {
		log.Println("Warning: PGSQL_URL environment variable not set.")
	}

	cfg.Port = viper.GetString("PORT")
	if cfg.Port == "" {
		cfg.Port = "8080"
		log.Printf("Warning: PORT environment variable not set. Defaulting to %s\n", cfg.Port)
	}

	cfg.JWTSecret = viper.GetString("JWT_SECRET")
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "a-very-secret-key-should-be-longer-and-random" // !! CHANGE IN PRODUCTION !!
		log.Println("Warning: JWT_SECRET environment variable not set. Using default insecure key.")
	}

	cfg.IsProduction = viper.GetBool("IS_PRODUCTION")
	cfg.EnableDBCheck = viper.GetBool("ENABLE_DB_CHECK")
	cfg.MigrationsPath = viper.GetString("MIGRATIONS_PATH")
	cfg.RateLimit = viper.GetString("RATE_LIMIT")
	cfg.RedisURL = viper.GetString("REDIS_URL")
	cfg.CORSAllowedOrigins = splitList(viper.GetString("CORS_ALLOWED_ORIGINS"))

	cfg.AuditSink = strings.ToLower(strings.TrimSpace(viper.GetString("AUDIT_SINK")))
	switch cfg.AuditSink {
	case AuditSinkLog, AuditSinkPostgres, AuditSinkMongo:
	default:
		log.Printf("Warning: unknown AUDIT_SINK %q. Defaulting to %s.\n", cfg.AuditSink, AuditSinkLog)
		cfg.AuditSink = AuditSinkLog
	}
	cfg.MongoURL = viper.GetString("MONGO_URL")
	cfg.MongoDatabase = viper.GetString("MONGO_DATABASE")
	cfg.MongoAuditCollection = viper.GetString("MONGO_AUDIT_COLLECTION")
	if cfg.AuditSink == AuditSinkMongo && cfg.MongoURL == "" {
		log.Println("Warning: AUDIT_SINK is mongo but MONGO_URL is not set. Falling back to log sink.")
		cfg.AuditSink = AuditSinkLog
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
