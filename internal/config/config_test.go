package config

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestParseEnv(t *testing.T) {
	tests := []struct {
		input string
		want  Environment
	}{
		{"prod", EnvProduction},
		{"production", EnvProduction},
		{"PROD", EnvProduction},
		{"test", EnvTest},
		{"dev", EnvDevelopment},
		{"", EnvDevelopment},
		{"anything", EnvDevelopment},
	}

	for _, tt := range tests {
		if got := parseEnv(tt.input); got != tt.want {
			t.Errorf("parseEnv(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestDurationUnmarshalYAML(t *testing.T) {
	var cfg struct {
		TTL Duration `yaml:"ttl"`
	}
	if err := yaml.Unmarshal([]byte("ttl: 24h"), &cfg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if time.Duration(cfg.TTL) != 24*time.Hour {
		t.Errorf("TTL = %v, want 24h", time.Duration(cfg.TTL))
	}

	if err := yaml.Unmarshal([]byte("ttl: not-a-duration"), &cfg); err == nil {
		t.Error("Unmarshal(not-a-duration) = nil, want error")
	}
}

func TestValidateProductionRequiresSecrets(t *testing.T) {
	cfg := &Config{Env: EnvProduction}
	cfg.Mongo.Options.URI = "mongodb://localhost:27017"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate without JWT_SECRET = nil, want error")
	}

	cfg.Auth.Secret = "s3cret"
	cfg.Mongo.Options.URI = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Validate without MONGO_URI = nil, want error")
	}

	cfg.Mongo.Options.URI = "mongodb://localhost:27017"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate = %v, want nil", err)
	}
}

func TestValidateDevAllowsMissingSecret(t *testing.T) {
	cfg := &Config{Env: EnvDevelopment}
	if err := cfg.Validate(); err != nil {
		t.Errorf("dev Validate = %v, want nil", err)
	}
}

func TestMaskPassword(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"mongodb://user:hunter2@db:27017", "mongodb://user:***@db:27017"},
		{"mongodb://localhost:27017", "mongodb://localhost:27017"},
	}
	for _, tt := range tests {
		if got := maskPassword(tt.uri); got != tt.want {
			t.Errorf("maskPassword(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("MONGO_URI", "")

	cfg := Load()
	if cfg.Env != EnvDevelopment {
		t.Errorf("Env = %v, want dev", cfg.Env)
	}
	if cfg.Mongo.Options.Database == "" {
		t.Error("Mongo database default missing")
	}
	if cfg.Mongo.MaxRetries < 1 {
		t.Errorf("MaxRetries = %d, want >= 1", cfg.Mongo.MaxRetries)
	}
	if cfg.Auth.AccessTokenTTL <= 0 || cfg.Auth.RefreshTokenTTL <= cfg.Auth.AccessTokenTTL {
		t.Errorf("token TTL defaults wrong: access=%v refresh=%v", cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("MONGO_URI", "mongodb://override:27017")
	t.Setenv("API_PORT", "9999")

	cfg := Load()
	if cfg.Mongo.Options.URI != "mongodb://override:27017" {
		t.Errorf("URI = %q, want env override", cfg.Mongo.Options.URI)
	}
	if cfg.APIPort != "9999" {
		t.Errorf("APIPort = %q, want 9999", cfg.APIPort)
	}
}
