package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Alpaca    AlpacaConfig
	Kafka     KafkaConfig
	Redis     RedisConfig
	Alerts    AlertsConfig
	Scheduler SchedulerConfig
	LogLevel  string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// AlpacaConfig holds market data provider credentials and limits
type AlpacaConfig struct {
	KeyID             string
	SecretKey         string
	BaseURL           string
	RequestsPerMinute int
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// RedisConfig holds Redis configuration for alert cooldowns
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AlertsConfig holds price movement alerting thresholds
type AlertsConfig struct {
	MoveThresholdPercent float64
	Cooldown             time.Duration
}

// SchedulerConfig holds background job intervals
type SchedulerConfig struct {
	PriceRefreshInterval time.Duration
	CleanupInterval      time.Duration
	RefreshBatchSize     int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "marketdata"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Alpaca: AlpacaConfig{
			KeyID:             getEnv("ALPACA_API_KEY", ""),
			SecretKey:         getEnv("ALPACA_SECRET_KEY", ""),
			BaseURL:           getEnv("ALPACA_BASE_URL", "https://data.alpaca.markets"),
			RequestsPerMinute: getEnvInt("ALPACA_REQUESTS_PER_MINUTE", 200),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			Topic:   getEnv("KAFKA_TOPIC", "price-events"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Alerts: AlertsConfig{
			MoveThresholdPercent: getEnvFloat("ALERT_MOVE_THRESHOLD_PERCENT", 5.0),
			Cooldown:             getEnvDuration("ALERT_COOLDOWN", time.Hour),
		},
		Scheduler: SchedulerConfig{
			PriceRefreshInterval: getEnvDuration("PRICE_REFRESH_INTERVAL", 5*time.Minute),
			CleanupInterval:      getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour),
			RefreshBatchSize:     getEnvInt("PRICE_REFRESH_BATCH_SIZE", 100),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
