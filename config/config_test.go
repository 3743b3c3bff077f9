package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadEnvDefaults(t *testing.T) {
	cfg := LoadEnv()

	if cfg.Variant.CombinationCap != 50 {
		t.Errorf("CombinationCap = %d, want 50", cfg.Variant.CombinationCap)
	}
	if cfg.Cron.SweepInterval != 15*time.Minute {
		t.Errorf("SweepInterval = %v, want 15m", cfg.Cron.SweepInterval)
	}
	if cfg.Server.HTTPPort != ":8080" {
		t.Errorf("HTTPPort = %q", cfg.Server.HTTPPort)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("VARIANT_COMBINATION_CAP", "120")
	t.Setenv("LOW_STOCK_SWEEP_INTERVAL", "0s")
	t.Setenv("CRON_TRUSTED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("KAFKA_ENABLED", "false")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := LoadEnv()

	if cfg.Variant.CombinationCap != 120 {
		t.Errorf("CombinationCap = %d, want 120", cfg.Variant.CombinationCap)
	}
	if cfg.Cron.SweepInterval != 0 {
		t.Errorf("SweepInterval = %v, want 0", cfg.Cron.SweepInterval)
	}
	want := []string{"https://a.example", "https://b.example"}
	if !reflect.DeepEqual(cfg.Cron.TrustedOrigins, want) {
		t.Errorf("TrustedOrigins = %v, want %v", cfg.Cron.TrustedOrigins, want)
	}
	if cfg.Kafka.Enabled {
		t.Error("Kafka.Enabled should be false")
	}
	if cfg.Redis.DB != 0 {
		t.Errorf("invalid REDIS_DB should fall back to 0, got %d", cfg.Redis.DB)
	}
}
