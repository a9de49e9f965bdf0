package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	Port string

	// 搜索源配置
	ItunesSearchURL string        // 上游 iTunes Search API 地址
	SearchProxyURL  string        // 代理端点地址（SEARCH_SOURCE=proxy 时使用）
	SearchSource    string        // itunes | proxy
	SearchFallback  string        // none | snapshot
	MarketCountry   string        // e.g., "US"
	FetchTimeout    time.Duration // 单个词条请求超时
	TermsFile       string        // 可选的词条列表 JSON 文件，支持热加载

	// 持久化槽位配置
	SlotBackend string // file | redis | mysql | memory
	SlotDir     string // file 后端的目录
	SlotTTL     time.Duration
	SessionIdle time.Duration // 空闲会话从内存中移除的时间

	// MySQL配置
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis配置
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MinIO配置（目录快照）
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	// 日志配置
	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("10s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	return &Config{
		Port: getEnv("PORT", "8080"),

		ItunesSearchURL: getEnv("ITUNES_SEARCH_URL", "https://itunes.apple.com/search"),
		SearchProxyURL:  getEnv("SEARCH_PROXY_URL", "http://localhost:8080/.netlify/functions/itunes-proxy"),
		SearchSource:    strings.ToLower(getEnv("SEARCH_SOURCE", "itunes")),
		SearchFallback:  strings.ToLower(getEnv("SEARCH_FALLBACK", "none")),
		MarketCountry:   getEnv("MARKET_COUNTRY", "US"),
		FetchTimeout:    getEnvDuration("FETCH_TIMEOUT", 10*time.Second),
		TermsFile:       getEnv("TERMS_FILE", ""),

		SlotBackend: strings.ToLower(getEnv("SLOT_BACKEND", "file")),
		SlotDir:     getEnv("SLOT_DIR", filepath.Join("data", "slots")),
		SlotTTL:     getEnvDuration("SLOT_TTL", 30*24*time.Hour),
		SessionIdle: getEnvDuration("SESSION_IDLE", 2*time.Hour),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // 密码不设默认值
		DBName:     getEnv("DB_NAME", "beatflow"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "beatflow"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),
	}
}

// SnapshotsEnabled reports whether MinIO catalog snapshots are configured.
func (c *Config) SnapshotsEnabled() bool {
	return c.MinioEndpoint != ""
}
