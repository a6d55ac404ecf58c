package config

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// Config holds application configuration from environment.
type Config struct {
	HTTPPort         string
	DBDriver         string // postgres, pgx or sqlite3
	DatabaseURL      string
	DBPoolSize       int
	RedisURL         string // empty disables the list cache
	RedisPoolSize    int
	CacheTTL         int // seconds
	KafkaBrokers     []string // empty disables the event relay
	KafkaTopic       string
	KafkaPartitions  int
	SubscriberBuffer int
	LogLevel         string
	LogFormat        string
	APIURL           string // base URL used by the tasks CLI
}

var (
	cfg     *Config
	cfgOnce sync.Once
)

// Get returns the application config (loads once from env).
func Get() *Config {
	cfgOnce.Do(func() {
		c := Load()
		cfg = &c
	})
	return cfg
}

// Load reads the environment into a fresh Config.
func Load() Config {
	return Config{
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		DBDriver:         getEnv("DB_DRIVER", "postgres"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DBPoolSize:       getIntEnv("DB_POOL_SIZE", 20),
		RedisURL:         os.Getenv("REDIS_URL"),
		RedisPoolSize:    getIntEnv("REDIS_POOL_SIZE", 50),
		CacheTTL:         getIntEnv("CACHE_TTL_SEC", 300),
		KafkaBrokers:     getSliceEnv("KAFKA_BROKERS"),
		KafkaTopic:       getEnv("KAFKA_TASK_TOPIC", "task-events"),
		KafkaPartitions:  getIntEnv("KAFKA_PARTITIONS", 1),
		SubscriberBuffer: getIntEnv("SUBSCRIBER_BUFFER", 64),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
		APIURL:           strings.TrimRight(getEnv("TASKS_API_URL", "http://localhost:8080"), "/"),
	}
}

// LoadDotEnv sets variables from a .env file without overriding ones already set.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return godotenv.Load(path)
}

// RelayEnabled reports whether events go through Kafka instead of the local hub only.
func (c *Config) RelayEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// CacheEnabled reports whether a Redis list cache is configured.
func (c *Config) CacheEnabled() bool {
	return c.RedisURL != ""
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultVal
}

func getSliceEnv(key string) []string {
	var out []string
	for _, s := range strings.Split(os.Getenv(key), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
