package config

import (
	"os"
	"testing"
)

func TestGetEnvWithDefault(t *testing.T) {
	const key = "TEST_APP_PORT"

	// 环境变量未设置时，应该返回默认值
	_ = os.Unsetenv(key)
	if got := getEnv(key, "9000"); got != "9000" {
		t.Fatalf("getEnv(%q) = %q, want %q", key, got, "9000")
	}

	if err := os.Setenv(key, "8080"); err != nil {
		t.Fatalf("Setenv error: %v", err)
	}
	defer os.Unsetenv(key)
	if got := getEnv(key, "9000"); got != "8080" {
		t.Fatalf("getEnv(%q) = %q, want %q", key, got, "8080")
	}
}

func TestGetEnvIntIgnoresInvalid(t *testing.T) {
	const key = "TEST_SCAN_INTERVAL"

	_ = os.Setenv(key, "abc")
	defer os.Unsetenv(key)
	if got := getEnvInt(key, 30); got != 30 {
		t.Fatalf("getEnvInt with invalid value = %d, want 30", got)
	}

	_ = os.Setenv(key, "15")
	if got := getEnvInt(key, 30); got != 15 {
		t.Fatalf("getEnvInt = %d, want 15", got)
	}
}

func TestLoadReadsEnv(t *testing.T) {
	_ = os.Setenv("APP_PORT", "1234")
	_ = os.Setenv("API_KEY", "secret")
	defer func() {
		_ = os.Unsetenv("APP_PORT")
		_ = os.Unsetenv("API_KEY")
	}()

	cfg := Load()
	if cfg.AppPort != "1234" {
		t.Fatalf("AppPort = %q, want %q", cfg.AppPort, "1234")
	}
	if cfg.APIKey != "secret" {
		t.Fatalf("APIKey = %q, want %q", cfg.APIKey, "secret")
	}
	if cfg.ScanCron == "" || cfg.ScanIntervalMinutes <= 0 {
		t.Fatalf("scan defaults not loaded: %+v", cfg)
	}
}
