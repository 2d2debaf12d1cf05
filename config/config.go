package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

// Config stores the application configuration.
// Server-side and player-side settings live in the same struct; each command reads what it needs.
type Config struct {
	ServerAddr string

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

	// MinIO / S3 兼容对象存储
	MinioEndpoint   string
	MinioAccessKey  string
	MinioSecretKey  string
	MinioBucket     string
	MinioRegion     string
	MinioUseSSL     bool
	StreamURLExpiry time.Duration

	JWTSecret    string
	JWTExpiry    time.Duration
	AdminWallets []string // lower-cased

	// 播放器客户端配置
	APIBaseURL    string
	AuthTimeout   time.Duration
	DefaultVolume float64
	ControlAddr   string
	DownloadDir   string

	LogLevel string
	LogPath  string
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

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("90s", "1h").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() *Config {
	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // 密码不设置默认值
		DBName:     getEnv("DB_NAME", "nuvyx"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEndpoint:   getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey:  os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:  os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:     getEnv("MINIO_BUCKET", "nuvyx"),
		MinioRegion:     getEnv("MINIO_REGION", "auto"),
		MinioUseSSL:     getEnvBool("MINIO_USE_SSL", false),
		StreamURLExpiry: getEnvDuration("STREAM_URL_EXPIRY", time.Hour),

		JWTSecret:    os.Getenv("JWT_SECRET"),
		JWTExpiry:    getEnvDuration("JWT_EXPIRY", 24*time.Hour),
		AdminWallets: splitList(os.Getenv("ADMIN_WALLETS")),

		APIBaseURL:    getEnv("API_BASE_URL", "http://localhost:8080"),
		AuthTimeout:   getEnvDuration("AUTH_TIMEOUT", 10*time.Second),
		DefaultVolume: getEnvFloat("DEFAULT_VOLUME", 0.75),
		ControlAddr:   getEnv("CONTROL_ADDR", "127.0.0.1:7878"),
		DownloadDir:   getEnv("DOWNLOAD_DIR", "downloads"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogPath:  os.Getenv("LOG_PATH"),
	}
}

// IsAdminWallet reports whether the wallet address is listed in ADMIN_WALLETS.
func (c *Config) IsAdminWallet(address string) bool {
	return lo.Contains(c.AdminWallets, strings.ToLower(address))
}
