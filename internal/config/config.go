package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       *AppConfig
	Database  *DatabaseConfig
	Redis     *RedisConfig
	Security  *SecurityConfig
	WebSocket *WebSocketConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Port        int
	Host        string
	Debug       bool
	LogLevel    string
	LogFormat   string
}

type DatabaseConfig struct {
	URI            string
	Database       string
	MaxPoolSize    int
	MinPoolSize    int
	ConnectTimeout time.Duration
	SocketTimeout  time.Duration
}

type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type SecurityConfig struct {
	JWTSecret          string
	JWTTokenTTL        time.Duration
	BcryptCost         int
	CORSAllowedOrigins []string
}

type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	WriteWait       time.Duration
	PongWait        time.Duration
	MaxMessageSize  int64
}

func Load() (*Config, error) {
	// Missing .env is fine; the environment may be set by the runtime.
	_ = godotenv.Load()

	config := &Config{
		App:       loadAppConfig(),
		Database:  loadDatabaseConfig(),
		Redis:     loadRedisConfig(),
		Security:  loadSecurityConfig(),
		WebSocket: loadWebSocketConfig(),
	}
	return config, nil
}

func loadAppConfig() *AppConfig {
	return &AppConfig{
		Name:        getEnv("APP_NAME", "AarohYatrika"),
		Environment: getEnv("APP_ENV", "development"),
		Port:        getEnvAsInt("APP_PORT", 5001),
		Host:        getEnv("APP_HOST", "localhost"),
		Debug:       getEnvAsBool("APP_DEBUG", true),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
	}
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		URI:            getEnv("MONGO_URI", "mongodb://localhost:27017"),
		Database:       getEnv("MONGO_DATABASE", "aarohyatrika"),
		MaxPoolSize:    getEnvAsInt("MONGO_MAX_POOL_SIZE", 100),
		MinPoolSize:    getEnvAsInt("MONGO_MIN_POOL_SIZE", 5),
		ConnectTimeout: getEnvAsDuration("MONGO_CONNECT_TIMEOUT", 10*time.Second),
		SocketTimeout:  getEnvAsDuration("MONGO_SOCKET_TIMEOUT", 30*time.Second),
	}
}

func loadRedisConfig() *RedisConfig {
	return &RedisConfig{
		Host:         getEnv("REDIS_HOST", "localhost"),
		Port:         getEnvAsInt("REDIS_PORT", 6379),
		Password:     getEnv("REDIS_PASSWORD", ""),
		DB:           getEnvAsInt("REDIS_DB", 0),
		PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
		DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  getEnvAsDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: getEnvAsDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
	}
}

func loadSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		JWTSecret:          getEnv("JWT_SECRET", "change-me-in-production"),
		JWTTokenTTL:        getEnvAsDuration("JWT_TOKEN_TTL", 30*24*time.Hour),
		BcryptCost:         getEnvAsInt("BCRYPT_COST", 10),
		CORSAllowedOrigins: []string{getEnv("CORS_ALLOWED_ORIGIN", "*")},
	}
}

func loadWebSocketConfig() *WebSocketConfig {
	return &WebSocketConfig{
		ReadBufferSize:  getEnvAsInt("WS_READ_BUFFER_SIZE", 1024),
		WriteBufferSize: getEnvAsInt("WS_WRITE_BUFFER_SIZE", 1024),
		WriteWait:       getEnvAsDuration("WS_WRITE_WAIT", 10*time.Second),
		PongWait:        getEnvAsDuration("WS_PONG_WAIT", 60*time.Second),
		MaxMessageSize:  int64(getEnvAsInt("WS_MAX_MESSAGE_SIZE", 4096)),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
