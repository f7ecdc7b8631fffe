package config

import (
	"log"
	"os"
	"strconv"
)

type Config struct {
	AppPort string

	PostgresDSN string
	RedisAddr   string

	// 全局 API 访问密钥，为空则不启用认证
	APIKey string

	// 全局扫描触发的 cron 表达式，以及用于推算下一次运行时间的周期（分钟）
	ScanCron            string
	ScanIntervalMinutes int
}

func Load() *Config {
	cfg := &Config{
		AppPort:             getEnv("APP_PORT", "9000"),
		PostgresDSN:         getEnv("POSTGRES_DSN", "host=localhost user=techwatch password=techwatch dbname=techwatch port=5432 sslmode=disable TimeZone=UTC"),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		APIKey:              getEnv("API_KEY", ""),
		ScanCron:            getEnv("SCAN_CRON", "*/30 * * * *"),
		ScanIntervalMinutes: getEnvInt("SCAN_INTERVAL_MINUTES", 30),
	}

	log.Printf("config loaded: port=%s cron=%s interval=%dm", cfg.AppPort, cfg.ScanCron, cfg.ScanIntervalMinutes)
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
