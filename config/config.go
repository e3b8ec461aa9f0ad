package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every resolved setting as an explicit value. The store and
// cache receive their sections through constructors; nothing reads ambient
// globals after Load returns.
type Config struct {
	Server ServerConfig
	Store  StoreConfig
	Cache  CacheConfig
	Kafka  KafkaConfig
	Observ ObservabilityConfig
	Access AccessConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

// StoreConfig locates the shared order workbook.
type StoreConfig struct {
	Path      string // xlsx workbook acting as the system of record
	SheetName string
	TableName string // named table whose range must track the live rows
}

// CacheConfig controls the derived read index.
type CacheConfig struct {
	Path         string // side file; defaults next to the workbook
	WarmInterval time.Duration
}

type KafkaConfig struct {
	Brokers    []string // empty disables event publishing
	TopicOrder string
}

type ObservabilityConfig struct {
	JaegerEndpoint string
}

// AccessConfig is the allowed-user list for writes; empty means open.
type AccessConfig struct {
	AllowedUsers []string
}

func Load() *Config {
	_ = godotenv.Load()

	warmSeconds, _ := strconv.Atoi(getEnv("CACHE_WARM_INTERVAL_SECONDS", "30"))

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("ENV", "development"),
		},
		Store: StoreConfig{
			Path:      getEnv("ORDER_WORKBOOK", "order.xlsx"),
			SheetName: getEnv("ORDER_SHEET", "order"),
			TableName: getEnv("ORDER_TABLE", "ordertable"),
		},
		Cache: CacheConfig{
			Path:         getEnv("CACHE_FILE", ""),
			WarmInterval: time.Duration(warmSeconds) * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:    splitNonEmpty(getEnv("KAFKA_BROKERS", "")),
			TopicOrder: getEnv("KAFKA_TOPIC_ORDER_EVENTS", "order-events"),
		},
		Observ: ObservabilityConfig{
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
		},
		Access: AccessConfig{
			AllowedUsers: splitNonEmpty(getEnv("ALLOWED_USERS", "")),
		},
	}

	if cfg.Cache.Path == "" {
		cfg.Cache.Path = cfg.Store.Path + ".cache.json"
	}

	log.Printf("Config loaded: env=%s, port=%s, workbook=%s", cfg.Server.Env, cfg.Server.Port, cfg.Store.Path)
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
