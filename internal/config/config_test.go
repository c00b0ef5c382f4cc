package config

import (
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		shouldSet    bool
		want         string
	}{
		{
			name:         "returns environment variable when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			shouldSet:    true,
			want:         "custom",
		},
		{
			name:         "returns default when environment variable not set",
			key:          "TEST_VAR_MISSING",
			defaultValue: "default",
			envValue:     "",
			shouldSet:    false,
			want:         "default",
		},
		{
			name:         "returns default when environment variable is empty string",
			key:          "TEST_VAR_EMPTY",
			defaultValue: "default",
			envValue:     "",
			shouldSet:    true,
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue int
		envValue     string
		shouldSet    bool
		want         int
	}{
		{
			name:         "parses valid integer",
			key:          "TEST_INT",
			defaultValue: 10,
			envValue:     "42",
			shouldSet:    true,
			want:         42,
		},
		{
			name:         "returns default when unset",
			key:          "TEST_INT_MISSING",
			defaultValue: 10,
			shouldSet:    false,
			want:         10,
		},
		{
			name:         "returns default for non-numeric value",
			key:          "TEST_INT_BAD",
			defaultValue: 10,
			envValue:     "not-a-number",
			shouldSet:    true,
			want:         10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnvAsInt(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvAsInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	t.Run("parses valid duration", func(t *testing.T) {
		t.Setenv("TEST_DUR", "90s")

		got := getEnvAsDuration("TEST_DUR", time.Minute)
		if got != 90*time.Second {
			t.Errorf("getEnvAsDuration() = %v, want 90s", got)
		}
	})

	t.Run("returns default for invalid duration", func(t *testing.T) {
		t.Setenv("TEST_DUR_BAD", "ninety seconds")

		got := getEnvAsDuration("TEST_DUR_BAD", time.Minute)
		if got != time.Minute {
			t.Errorf("getEnvAsDuration() = %v, want 1m", got)
		}
	})
}

func TestLoad(t *testing.T) {
	t.Run("fails without API_KEY", func(t *testing.T) {
		t.Setenv("API_KEY", "")
		t.Setenv("JOB_RUNNER_SECRET", "s3cret")

		_, err := Load()
		if err == nil {
			t.Fatal("Load() should fail when API_KEY is not set")
		}
	})

	t.Run("fails without JOB_RUNNER_SECRET", func(t *testing.T) {
		t.Setenv("API_KEY", "key")
		t.Setenv("JOB_RUNNER_SECRET", "")

		_, err := Load()
		if err == nil {
			t.Fatal("Load() should fail when JOB_RUNNER_SECRET is not set")
		}
	})

	t.Run("applies defaults", func(t *testing.T) {
		t.Setenv("API_KEY", "key")
		t.Setenv("JOB_RUNNER_SECRET", "s3cret")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Port != "8080" {
			t.Errorf("Port = %q, want 8080", cfg.Port)
		}

		if cfg.MaxRetryAttempts != 5 {
			t.Errorf("MaxRetryAttempts = %d, want 5", cfg.MaxRetryAttempts)
		}

		if cfg.PollInterval != 30*time.Second {
			t.Errorf("PollInterval = %v, want 30s", cfg.PollInterval)
		}
	})

	t.Run("rejects non-positive JOB_MAX_RETRY_ATTEMPTS", func(t *testing.T) {
		t.Setenv("API_KEY", "key")
		t.Setenv("JOB_RUNNER_SECRET", "s3cret")
		t.Setenv("JOB_MAX_RETRY_ATTEMPTS", "0")

		_, err := Load()
		if err == nil {
			t.Fatal("Load() should fail for JOB_MAX_RETRY_ATTEMPTS=0")
		}
	})
}
