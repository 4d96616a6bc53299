package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers      []string
	KafkaGroupID      string
	ImportEventsTopic string
	ReclassifyTopic   string

	// Classification rules (optional YAML overrides; empty = built-in tables)
	ModalityRulesPath string
	BodyPartRulesPath string

	// Engine knobs
	DefaultDailyGoal    float64
	CaseMixTopN         int
	ReclassifyBatchSize int
	ReclassifyWorkers   int
	MetricsCacheTTL     time.Duration
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 8*1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "radmetrics"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "radmetrics123"),
		PostgresDB:       getEnv("POSTGRES_DB", "radmetrics"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:      getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:      getEnv("KAFKA_GROUP_ID", "radmetrics-platform"),
		ImportEventsTopic: getEnv("IMPORT_EVENTS_TOPIC", "rvu-imports"),
		ReclassifyTopic:   getEnv("RECLASSIFY_TOPIC", "rvu-reclassify"),

		ModalityRulesPath: getEnv("MODALITY_RULES_PATH", ""),
		BodyPartRulesPath: getEnv("BODY_PART_RULES_PATH", ""),

		DefaultDailyGoal:    getFloatEnv("DEFAULT_DAILY_GOAL", 15.0),
		CaseMixTopN:         getIntEnv("CASE_MIX_TOP_N", 5),
		ReclassifyBatchSize: getIntEnv("RECLASSIFY_BATCH_SIZE", 50),
		ReclassifyWorkers:   getIntEnv("RECLASSIFY_WORKERS", 4),
		MetricsCacheTTL:     getDuration("METRICS_CACHE_TTL", 5*time.Minute),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return []string{value}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
