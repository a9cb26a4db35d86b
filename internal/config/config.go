package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/brightpath/lms/internal/models"
)

const minSecretLen = 32

// Placeholder secrets that must never survive into production.
var weakSecrets = map[string]struct{}{
	"secret":             {},
	"changeme":           {},
	"dev-access-secret":  {},
	"dev-refresh-secret": {},
}

type Config struct {
	AppEnv        string
	HTTPAddr      string
	LogLevel      string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	RedisAddr     string
	RedisPassword string
	KafkaAddress  string
	ESUrl         string
	ESUser        string
	ESPassword    string
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	cfg := &Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DBHost:        os.Getenv("DB_HOST"),
		DBPort:        os.Getenv("DB_PORT"),
		DBUser:        os.Getenv("DB_USER"),
		DBPassword:    os.Getenv("DB_PASSWORD"),
		DBName:        os.Getenv("DB_NAME"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		KafkaAddress:  os.Getenv("KAFKA_ADDRESS"),
		ESUrl:         os.Getenv("ES_URL"),
		ESUser:        os.Getenv("ES_USER"),
		ESPassword:    os.Getenv("ES_PASSWORD"),
		AccessSecret:  os.Getenv("ACCESS_TOKEN_SECRET"),
		RefreshSecret: os.Getenv("REFRESH_TOKEN_SECRET"),
		AccessTTL:     getDuration("ACCESS_TOKEN_TTL_MINUTES", 15) * time.Minute,
		RefreshTTL:    getDuration("REFRESH_TOKEN_TTL_DAYS", 7) * 24 * time.Hour,
	}

	if err := cfg.ValidateSecrets(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ValidateSecrets rejects missing, weak, or shared key material. The access
// and refresh secrets are independent isolation boundaries; in production
// both must be long enough and must differ.
func (c *Config) ValidateSecrets() error {
	if c.AccessSecret == "" || c.RefreshSecret == "" {
		return errors.New("config: ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET are required")
	}
	if c.AccessSecret == c.RefreshSecret {
		return errors.New("config: access and refresh secrets must be distinct")
	}
	if c.AppEnv != "production" {
		return nil
	}
	for _, s := range []string{c.AccessSecret, c.RefreshSecret} {
		if len(s) < minSecretLen {
			return fmt.Errorf("config: token secrets must be at least %d bytes in production", minSecretLen)
		}
		if _, weak := weakSecrets[s]; weak {
			return errors.New("config: refusing to start with a placeholder token secret")
		}
	}
	return nil
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := db.AutoMigrate(
		&models.User{}, &models.Course{}, &models.Lesson{}, &models.Purchase{},
		&models.Tenant{}, &models.CourseLicense{}, &models.LicenseAssignment{},
	); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback int64) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return time.Duration(n)
		}
	}
	return time.Duration(fallback)
}
