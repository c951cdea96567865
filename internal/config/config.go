package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// JWT configuration
	JWT JWTConfig

	// SMTP configuration
	SMTP SMTPConfig

	// Upload configuration
	Upload UploadConfig

	// Backup configuration
	Backup BackupConfig

	// CORS configuration
	CORS CORSConfig

	// Security configuration
	Security SecurityConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
	BaseURL     string // public base URL used in emailed links
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration // member/admin sessions
	SetupTokenExpiry  time.Duration // password-setup action links
	UploadTokenExpiry time.Duration // payment-upload action links
}

// SMTPConfig holds mail relay configuration
type SMTPConfig struct {
	Mode     string // "dev" logs emails instead of sending, "production" sends via relay
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// UploadConfig holds file upload configuration
type UploadConfig struct {
	Dir             string
	MaxProofSize    int64 // payment proofs
	MaxDocumentSize int64 // application documents and CPD evidence
}

// BackupConfig holds database backup configuration
type BackupConfig struct {
	Dir           string
	Schedule      string // cron spec with seconds field
	RetentionDays int
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	BcryptCost       int
	EnableRequestLog bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
			SetupTokenExpiry:  time.Duration(getEnvAsInt("JWT_SETUP_TOKEN_EXPIRY", 86400)) * time.Second,
			UploadTokenExpiry: time.Duration(getEnvAsInt("JWT_UPLOAD_TOKEN_EXPIRY", 2678400)) * time.Second,
		},
		SMTP: SMTPConfig{
			Mode:     getEnv("EMAIL_MODE", "dev"),
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnv("SMTP_PORT", "465"),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "noreply@bspcp.org.bw"),
		},
		Upload: UploadConfig{
			Dir:             getEnv("UPLOAD_DIR", "./uploads"),
			MaxProofSize:    int64(getEnvAsInt("UPLOAD_MAX_PROOF_SIZE", 5*1024*1024)),
			MaxDocumentSize: int64(getEnvAsInt("UPLOAD_MAX_DOCUMENT_SIZE", 10*1024*1024)),
		},
		Backup: BackupConfig{
			Dir:           getEnv("BACKUP_DIR", "./backups"),
			Schedule:      getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"),
			RetentionDays: getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Security: SecurityConfig{
			BcryptCost:       getEnvAsInt("BCRYPT_COST", 12),
			EnableRequestLog: getEnvAsBool("ENABLE_REQUEST_LOGGING", true),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.Server.BaseURL == "" {
		return fmt.Errorf("BASE_URL is required")
	}

	// Validate SMTP configuration only in production mode
	if c.SMTP.Mode == "production" {
		if c.SMTP.Host == "" {
			return fmt.Errorf("SMTP_HOST is required in production email mode")
		}
		if c.SMTP.Username == "" {
			return fmt.Errorf("SMTP_USERNAME is required in production email mode")
		}
		if c.SMTP.Password == "" {
			return fmt.Errorf("SMTP_PASSWORD is required in production email mode")
		}
	}

	return nil
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
