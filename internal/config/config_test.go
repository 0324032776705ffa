package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("missing config file should not fail: %v", err)
	}
	if cfg.Port != defaultPort {
		t.Errorf("port = %d, want %d", cfg.Port, defaultPort)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.LocalRuntime.URL != defaultRuntimeURL {
		t.Errorf("runtime url = %q", cfg.LocalRuntime.URL)
	}
	if !cfg.IsDev() {
		t.Error("default env should be development")
	}
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	content := `
port: 6100
env: production
database:
  driver: mysql
  host: db.local
  name: jobs
local_runtime:
  url: http://127.0.0.1:9000/
  request_timeout_sec: 30
api_secret: hunter2
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 6100 {
		t.Errorf("port = %d", cfg.Port)
	}
	if cfg.IsDev() {
		t.Error("env production should not be dev")
	}
	if cfg.Database.Driver != "mysql" || cfg.Database.Host != "db.local" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.LocalRuntime.URL != "http://127.0.0.1:9000" {
		t.Errorf("runtime url should lose the trailing slash: %q", cfg.LocalRuntime.URL)
	}
	if cfg.LocalRuntime.RequestTimeout != 30 {
		t.Errorf("request timeout = %d", cfg.LocalRuntime.RequestTimeout)
	}
	if cfg.APISecret != "hunter2" {
		t.Errorf("api secret = %q", cfg.APISecret)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("prot: 8080\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("misspelled keys should be rejected")
	}
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("port: 70000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("out-of-range port should be rejected")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("JOBTRAIL_PORT", "6200")
	t.Setenv("JOBTRAIL_ENV", "production")
	t.Setenv("JOBTRAIL_API_SECRET", "from-env")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 6200 {
		t.Errorf("port = %d, want env override 6200", cfg.Port)
	}
	if cfg.IsDev() {
		t.Error("JOBTRAIL_ENV=production should win")
	}
	if cfg.APISecret != "from-env" {
		t.Errorf("api secret = %q", cfg.APISecret)
	}
}
