package infra

import (
	"slices"
	"testing"
	"time"
)

// setEnv clears every variable LoadConfig reads that a case might leak, then
// applies the case's overrides.
func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for _, key := range []string{"STORE_DRIVER", "DATABASE_URL", "JWT_SECRET", "PORT", "STORAGE_BASE_URL", "CORS_ALLOWED_ORIGINS", "DB_MAX_CONNS", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func TestLoadConfig(t *testing.T) {
	cases := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "postgres defaults",
			env:  map[string]string{"DATABASE_URL": "postgres://db", "JWT_SECRET": "s"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.StoreDriver != StoreDriverPostgres || cfg.DBMaxConns != 10 {
					t.Fatalf("driver %q conns %d", cfg.StoreDriver, cfg.DBMaxConns)
				}
				if cfg.StorageBaseURL != "http://localhost:8080/static" {
					t.Fatalf("StorageBaseURL = %q", cfg.StorageBaseURL)
				}
				if cfg.GenerationDelay != time.Second || cfg.ShutdownTimeout != 15*time.Second {
					t.Fatalf("delay %s shutdown %s", cfg.GenerationDelay, cfg.ShutdownTimeout)
				}
				if !slices.Equal(cfg.CORSOrigins, []string{"*"}) {
					t.Fatalf("CORSOrigins = %v", cfg.CORSOrigins)
				}
			},
		},
		{
			name: "port flows into storage url",
			env:  map[string]string{"STORE_DRIVER": "memory", "JWT_SECRET": "s", "PORT": "1919"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.StorageBaseURL != "http://localhost:1919/static" {
					t.Fatalf("StorageBaseURL = %q", cfg.StorageBaseURL)
				}
			},
		},
		{
			name: "explicit storage url trimmed",
			env:  map[string]string{"STORE_DRIVER": "memory", "JWT_SECRET": "s", "STORAGE_BASE_URL": "https://cdn.example.com/static/"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.StorageBaseURL != "https://cdn.example.com/static" {
					t.Fatalf("StorageBaseURL = %q", cfg.StorageBaseURL)
				}
			},
		},
		{
			name: "memory driver is case-insensitive",
			env:  map[string]string{"STORE_DRIVER": "Memory", "JWT_SECRET": "s"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.StoreDriver != StoreDriverMemory {
					t.Fatalf("StoreDriver = %q", cfg.StoreDriver)
				}
			},
		},
		{
			name: "origin list",
			env:  map[string]string{"STORE_DRIVER": "memory", "JWT_SECRET": "s", "CORS_ALLOWED_ORIGINS": " https://a.example, ,https://b.example "},
			check: func(t *testing.T, cfg *Config) {
				if !slices.Equal(cfg.CORSOrigins, []string{"https://a.example", "https://b.example"}) {
					t.Fatalf("CORSOrigins = %v", cfg.CORSOrigins)
				}
			},
		},
		{
			name: "malformed int keeps default",
			env:  map[string]string{"STORE_DRIVER": "memory", "JWT_SECRET": "s", "DB_MAX_CONNS": "lots"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.DBMaxConns != 10 {
					t.Fatalf("DBMaxConns = %d", cfg.DBMaxConns)
				}
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setEnv(t, tc.env)
			cfg, err := LoadConfig()
			if err != nil {
				t.Fatalf("LoadConfig: %v", err)
			}
			tc.check(t, cfg)
		})
	}
}

func TestLoadConfigRejects(t *testing.T) {
	cases := map[string]map[string]string{
		"missing database url": {"STORE_DRIVER": "postgres", "JWT_SECRET": "s"},
		"missing secret":       {"STORE_DRIVER": "memory"},
		"unknown driver":       {"STORE_DRIVER": "sqlite", "JWT_SECRET": "s"},
		"zero pool":            {"STORE_DRIVER": "memory", "JWT_SECRET": "s", "DB_MAX_CONNS": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			setEnv(t, env)
			if _, err := LoadConfig(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
