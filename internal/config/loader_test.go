package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSources_Valid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	body := `
servers:
  - name: petstore
    swagger_url: https://example.com/petstore.json
    base_url: https://api.example.com
    is_read_only: true
  - name: billing
    swagger_path: ./billing.yaml
    base_url: https://billing.internal
    auth_header: Authorization
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write sources file: %v", err)
	}

	servers, err := LoadSources(path)
	if err != nil {
		t.Fatalf("LoadSources: %v", err)
	}
	if len(servers) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(servers))
	}
	if servers[0].Name != "petstore" || !servers[0].IsReadOnly {
		t.Errorf("unexpected first server: %+v", servers[0])
	}
	if servers[1].AuthHeader != "Authorization" {
		t.Errorf("expected auth_header=Authorization, got %q", servers[1].AuthHeader)
	}
}

func TestLoadSources_MissingFile(t *testing.T) {
	_, err := LoadSources(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Fatal("expected error for missing sources file")
	}
	var cfgErr *Error
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *config.Error, got %T", err)
	}
}

func TestLoadSources_Malformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	if err := os.WriteFile(path, []byte("servers: [this is not a list of maps"), 0o644); err != nil {
		t.Fatalf("write sources file: %v", err)
	}
	if _, err := LoadSources(path); err == nil {
		t.Fatal("expected parse error for malformed yaml")
	}
}

func TestLoadSources_MissingName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	body := "servers:\n  - swagger_url: https://example.com/a.json\n    base_url: https://a\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write sources file: %v", err)
	}
	if _, err := LoadSources(path); err == nil {
		t.Fatal("expected error for server entry missing name")
	}
}

func TestLoadSources_DuplicateName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	body := `
servers:
  - name: dup
    swagger_url: https://example.com/a.json
    base_url: https://a
  - name: dup
    swagger_url: https://example.com/b.json
    base_url: https://b
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write sources file: %v", err)
	}
	if _, err := LoadSources(path); err == nil {
		t.Fatal("expected error for duplicate server name")
	}
}

func TestLoadSources_MissingSwaggerLocation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	body := "servers:\n  - name: nowhere\n    base_url: https://a\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write sources file: %v", err)
	}
	if _, err := LoadSources(path); err == nil {
		t.Fatal("expected error when neither swagger_url nor swagger_path is set")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg := LoadFromEnv()
	def := DefaultConfig()
	if cfg.DockerImage != def.DockerImage {
		t.Errorf("expected default docker image, got %q", cfg.DockerImage)
	}
	if cfg.CacheTTLSeconds != def.CacheTTLSeconds {
		t.Errorf("expected default cache ttl, got %d", cfg.CacheTTLSeconds)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("MFP_LOG_LEVEL", "debug")
	t.Setenv("MFP_DOCKER_IMAGE", "custom-sandbox:v2")
	t.Setenv("MFP_EXECUTION_TIMEOUT_SECONDS", "45")
	t.Setenv("MFP_CACHE_ENABLED", "false")
	t.Setenv("MFP_ALLOWED_DOMAINS", "api.example.com, billing.internal")

	cfg := LoadFromEnv()

	if cfg.LogLevel != "debug" {
		t.Errorf("expected LogLevel=debug, got %q", cfg.LogLevel)
	}
	if cfg.DockerImage != "custom-sandbox:v2" {
		t.Errorf("expected overridden docker image, got %q", cfg.DockerImage)
	}
	if cfg.ExecutionTimeoutSeconds != 45 {
		t.Errorf("expected ExecutionTimeoutSeconds=45, got %d", cfg.ExecutionTimeoutSeconds)
	}
	if cfg.CacheEnabled {
		t.Error("expected CacheEnabled=false")
	}
	if len(cfg.AllowedDomains) != 2 || cfg.AllowedDomains[1] != "billing.internal" {
		t.Errorf("unexpected AllowedDomains: %v", cfg.AllowedDomains)
	}
}

func TestLoadFromEnv_InvalidValueFallsBackToDefault(t *testing.T) {
	t.Setenv("MFP_EXECUTION_TIMEOUT_SECONDS", "not-a-number")
	cfg := LoadFromEnv()
	if cfg.ExecutionTimeoutSeconds != DefaultExecutionTimeoutSeconds {
		t.Errorf("expected fallback to default timeout, got %d", cfg.ExecutionTimeoutSeconds)
	}
}
