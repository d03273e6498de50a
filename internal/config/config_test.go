package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("API_URL", "")
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if cfg.Upstream.BaseURL != "http://x402guard.xyz" {
		t.Errorf("BaseURL = %s", cfg.Upstream.BaseURL)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeFile(t, `
server:
  port: 8080
  readTimeout: 5s
upstream:
  baseURL: https://backend.example/
  timeout: 30s
rateLimit:
  rps: 2
  burst: 4
log:
  level: debug
client:
  networks: ["eip155:8453"]
`)
	t.Setenv("API_URL", "")
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := Default()
	want.Server.Port = 9090
	want.Server.ReadTimeout = 5 * time.Second
	want.Upstream.BaseURL = "https://backend.example"
	want.Upstream.Timeout = 30 * time.Second
	want.RateLimit.RPS = 2
	want.RateLimit.Burst = 4
	want.Log.Level = "debug"
	want.Client.Networks = []string{"eip155:8453"}

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_APIURLOverride(t *testing.T) {
	t.Setenv("API_URL", "http://localhost:4000")
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Upstream.BaseURL != "http://localhost:4000" {
		t.Errorf("BaseURL = %s", cfg.Upstream.BaseURL)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("API_URL", "")
	t.Setenv("LOG_LEVEL", "")

	t.Setenv("PORT", "abc")
	if _, err := Load(""); err == nil {
		t.Error("expected error for non-numeric PORT")
	}

	t.Setenv("PORT", "")
	if _, err := Load(writeFile(t, "server: [")); err == nil {
		t.Error("expected yaml parse error")
	}
	if _, err := Load(writeFile(t, "server:\n  port: 70000\n")); err == nil {
		t.Error("expected port range error")
	}
}
