package config

import (
	"testing"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_GET_ENV_VAR", "test_value")

	if got := GetEnv("TEST_GET_ENV_VAR", "default"); got != "test_value" {
		t.Errorf("GetEnv() = %v, want test_value", got)
	}
	if got := GetEnv("DENTIAGEST_NON_EXISTING_VAR", "default_value"); got != "default_value" {
		t.Errorf("GetEnv() = %v, want default_value", got)
	}
}

func TestGetEnvironment(t *testing.T) {
	tests := []struct {
		envValue string
		want     string
	}{
		{"development", EnvDevelopment},
		{"STAGING", EnvStaging},
		{"Production", EnvProduction},
		{"", EnvDevelopment},
	}

	for _, tt := range tests {
		t.Setenv("DENTIAGEST_SERVER_ENVIRONMENT", tt.envValue)
		if got := GetEnvironment(); got != tt.want {
			t.Errorf("GetEnvironment() with %q = %v, want %v", tt.envValue, got, tt.want)
		}
	}
}

func TestIsProductionLike(t *testing.T) {
	t.Setenv("DENTIAGEST_SERVER_ENVIRONMENT", "staging")
	if !IsProductionLike() {
		t.Error("IsProductionLike() should return true for staging")
	}
	if IsDevelopment() {
		t.Error("IsDevelopment() should return false for staging")
	}

	t.Setenv("DENTIAGEST_SERVER_ENVIRONMENT", "development")
	if IsProductionLike() {
		t.Error("IsProductionLike() should return false for development")
	}
}
