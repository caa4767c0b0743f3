package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseDriver string // mysql | postgres | sqlite
	DatabaseURL    string
	Port           string
	Environment    string

	// 入库配置
	IngestMode        string        // buffered | immediate
	FlushInterval     time.Duration // 缓冲模式下的刷新周期
	ZeroFloatDefIndex int           // 允许磨损为0的模板
	RankLimit         int

	LogLevel  string
	LogFormat string
	LogOutput string // stdout | stderr | 文件路径
}

func Load() (*Config, error) {
	// Default MySQL connection string
	defaultDSN := "root@tcp(127.0.0.1:3306)/floatdb?charset=utf8mb4&parseTime=True&loc=Local"

	flush, err := time.ParseDuration(getEnv("INGEST_FLUSH_INTERVAL", "1s"))
	if err != nil {
		return nil, fmt.Errorf("INGEST_FLUSH_INTERVAL: %w", err)
	}
	if flush <= 0 {
		return nil, fmt.Errorf("INGEST_FLUSH_INTERVAL must be positive, got %s", flush)
	}
	zeroFloat, err := getEnvInt("ZERO_FLOAT_DEFINDEX", 507)
	if err != nil {
		return nil, err
	}
	rankLimit, err := getEnvInt("RANK_LIMIT", 1000)
	if err != nil {
		return nil, err
	}
	if rankLimit <= 0 {
		return nil, fmt.Errorf("RANK_LIMIT must be positive, got %d", rankLimit)
	}

	return &Config{
		DatabaseDriver: getEnv("DATABASE_DRIVER", "mysql"),
		DatabaseURL:    getEnv("DATABASE_URL", defaultDSN),
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),

		IngestMode:        getEnv("INGEST_MODE", "buffered"),
		FlushInterval:     flush,
		ZeroFloatDefIndex: zeroFloat,
		RankLimit:         rankLimit,

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		LogOutput: getEnv("LOG_OUTPUT", "stdout"),
	}, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
