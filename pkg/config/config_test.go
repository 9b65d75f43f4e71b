package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "8090" {
		t.Errorf("Expected Port to be 8090, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Errorf("Expected Env to be development, got %s", cfg.Env)
	}
	if cfg.Database.Enabled {
		t.Error("Expected database to be disabled by default")
	}
	if cfg.Pipeline.Horizon != 30 {
		t.Errorf("Expected default horizon 30, got %d", cfg.Pipeline.Horizon)
	}
	if cfg.Pipeline.TestFraction != 0.2 {
		t.Errorf("Expected default test fraction 0.2, got %f", cfg.Pipeline.TestFraction)
	}
}

func TestLoadWithCustomValues(t *testing.T) {
	os.Setenv("PORT", "9000")
	os.Setenv("ENV", "production")
	os.Setenv("PIPELINE_HORIZON", "14")
	os.Setenv("PIPELINE_LAGS", "1,2,3")

	defer func() {
		os.Unsetenv("PORT")
		os.Unsetenv("ENV")
		os.Unsetenv("PIPELINE_HORIZON")
		os.Unsetenv("PIPELINE_LAGS")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "9000" {
		t.Errorf("Expected Port to be 9000, got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Errorf("Expected Env to be production, got %s", cfg.Env)
	}
	if cfg.Pipeline.Horizon != 14 {
		t.Errorf("Expected horizon 14, got %d", cfg.Pipeline.Horizon)
	}
	if len(cfg.Pipeline.Lags) != 3 || cfg.Pipeline.Lags[2] != 3 {
		t.Errorf("Expected lags [1 2 3], got %v", cfg.Pipeline.Lags)
	}
}

func TestValidateDatabaseURLRequiredWhenEnabled(t *testing.T) {
	os.Setenv("DB_ENABLED", "true")
	defer os.Unsetenv("DB_ENABLED")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when DB_ENABLED=true without DATABASE_URL, got nil")
	}
}

func TestValidateInvalidEnv(t *testing.T) {
	os.Setenv("ENV", "invalid")
	defer os.Unsetenv("ENV")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when ENV is invalid, got nil")
	}
}

func TestValidateTestFraction(t *testing.T) {
	os.Setenv("PIPELINE_TEST_FRACTION", "1.5")
	defer os.Unsetenv("PIPELINE_TEST_FRACTION")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when test fraction is out of range, got nil")
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	os.Setenv("TEST_DURATION", "2h")
	defer os.Unsetenv("TEST_DURATION")

	duration := getEnvAsDuration("TEST_DURATION", "1h")
	if duration != 2*time.Hour {
		t.Errorf("Expected duration to be 2h, got %v", duration)
	}

	if getEnvAsDuration("TEST_DURATION_MISSING", "1h") != time.Hour {
		t.Error("Expected fallback to default duration")
	}
}

func TestGetEnvAsFloat(t *testing.T) {
	os.Setenv("TEST_FLOAT", "0.42")
	defer os.Unsetenv("TEST_FLOAT")

	if v := getEnvAsFloat("TEST_FLOAT", 0.1); v != 0.42 {
		t.Errorf("Expected 0.42, got %f", v)
	}
	if v := getEnvAsFloat("TEST_FLOAT_MISSING", 0.1); v != 0.1 {
		t.Errorf("Expected default 0.1, got %f", v)
	}
}

func TestGetEnvAsInts(t *testing.T) {
	os.Setenv("TEST_INTS", "1, 7, 14")
	defer os.Unsetenv("TEST_INTS")

	values := getEnvAsInts("TEST_INTS", []int{9})
	if len(values) != 3 || values[0] != 1 || values[1] != 7 || values[2] != 14 {
		t.Errorf("Expected [1 7 14], got %v", values)
	}

	os.Setenv("TEST_INTS", "1,bad,3")
	if v := getEnvAsInts("TEST_INTS", []int{9}); len(v) != 1 || v[0] != 9 {
		t.Errorf("Expected default on parse failure, got %v", v)
	}
}
