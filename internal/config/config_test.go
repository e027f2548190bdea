package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvRepo, "")
	t.Setenv(EnvToken, "")
}

func TestLoad_DefaultWhenMissing(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Repo != "SuwonJ/timeofme" {
		t.Errorf("Repo = %q, want %q", cfg.Repo, "SuwonJ/timeofme")
	}
	if cfg.CacheTTL() != 24*time.Hour {
		t.Errorf("CacheTTL() = %v, want 24h", cfg.CacheTTL())
	}
	if cfg.ExportsDir != filepath.Join(tmpDir, "exports") {
		t.Errorf("ExportsDir = %q, want %q", cfg.ExportsDir, filepath.Join(tmpDir, "exports"))
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	data := `{"repo": "me/tracker", "cache_ttl_hours": 2, "common_activities": ["Sleep", "Meal"]}`
	if err := os.WriteFile(configPath, []byte(data), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Repo != "me/tracker" {
		t.Errorf("Repo = %q, want %q", cfg.Repo, "me/tracker")
	}
	if cfg.CacheTTL() != 2*time.Hour {
		t.Errorf("CacheTTL() = %v, want 2h", cfg.CacheTTL())
	}
	if len(cfg.CommonActivities) != 2 {
		t.Errorf("CommonActivities = %v, want 2 entries", cfg.CommonActivities)
	}
	if cfg.BackupDir != "backups" {
		t.Errorf("BackupDir = %q, want default %q", cfg.BackupDir, "backups")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv(EnvRepo, "someone/else")
	t.Setenv(EnvToken, "secret")

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Repo != "someone/else" {
		t.Errorf("Repo = %q, want %q", cfg.Repo, "someone/else")
	}
	if cfg.Token != "secret" {
		t.Errorf("Token = %q, want %q", cfg.Token, "secret")
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		data string
	}{
		{"repo without owner", `{"repo": "timeofme"}`},
		{"bad url", `{"api_base_url": "not a url"}`},
		{"ttl too large", `{"cache_ttl_hours": 100000}`},
		{"negative ttl", `{"cache_ttl_hours": -1}`},
		{"negative conns", `{"db_max_open_conns": -1}`},
		{"unknown timezone", `{"timezone": "Mars/Olympus_Mons"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			if err := os.WriteFile(filepath.Join(tmpDir, "config.json"), []byte(tt.data), 0600); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			if _, err := Load(tmpDir); err == nil {
				t.Errorf("Load() expected validation error for %s", tt.data)
			}
		})
	}
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Location() != time.Local {
		t.Errorf("Location() = %v, want Local", cfg.Location())
	}

	cfg.Timezone = "Asia/Seoul"
	if got := cfg.Location().String(); got != "Asia/Seoul" {
		t.Errorf("Location() = %q, want Asia/Seoul", got)
	}

	var nilCfg *Config
	if nilCfg.Location() != time.Local {
		t.Error("nil config Location() should be Local")
	}
}

func TestHTTPTimeout_Default(t *testing.T) {
	cfg := &Config{}
	if cfg.HTTPTimeout() != 15*time.Second {
		t.Errorf("HTTPTimeout() = %v, want 15s", cfg.HTTPTimeout())
	}
}

func TestMerge_ScalarOverride(t *testing.T) {
	base := &Config{Repo: "a/b", CacheTTLHours: IntPtr(24), DBMaxOpenConns: 5}
	overlay := &Config{Repo: "c/d"}

	result := Merge(base, overlay)

	if result.Repo != "c/d" {
		t.Errorf("Repo = %q, want c/d (overlay)", result.Repo)
	}
	if result.CacheTTLHours == nil || *result.CacheTTLHours != 24 {
		t.Errorf("CacheTTLHours = %v, want 24 (base, overlay unset)", result.CacheTTLHours)
	}
	if result.DBMaxOpenConns != 5 {
		t.Errorf("DBMaxOpenConns = %d, want 5 (base, overlay is zero)", result.DBMaxOpenConns)
	}
}

func TestMerge_BooleanOr(t *testing.T) {
	base := &Config{AllowUnsafePaths: true}
	overlay := &Config{Debug: true}

	result := Merge(base, overlay)

	if !result.AllowUnsafePaths {
		t.Error("AllowUnsafePaths should be true (base OR overlay)")
	}
	if !result.Debug {
		t.Error("Debug should be true (base OR overlay)")
	}
}

func TestMerge_ArrayMergeDedup(t *testing.T) {
	base := &Config{AllowedPaths: []string{"/a", " /b "}}
	overlay := &Config{AllowedPaths: []string{"/b", "/c", ""}}

	result := Merge(base, overlay)

	if len(result.AllowedPaths) != 3 {
		t.Fatalf("AllowedPaths = %v, want 3 (merged, deduped)", result.AllowedPaths)
	}
	for i, want := range []string{"/a", "/b", "/c"} {
		if result.AllowedPaths[i] != want {
			t.Errorf("AllowedPaths[%d] = %q, want %q", i, result.AllowedPaths[i], want)
		}
	}
}

func TestMerge_CommonActivitiesReplaceDefault(t *testing.T) {
	result := Merge(DefaultConfig(), &Config{CommonActivities: []string{"Meal", " Commute ", ""}})
	if len(result.CommonActivities) != 2 || result.CommonActivities[0] != "Meal" || result.CommonActivities[1] != "Commute" {
		t.Errorf("CommonActivities = %v, want [Meal Commute]", result.CommonActivities)
	}

	result = Merge(DefaultConfig(), &Config{})
	if len(result.CommonActivities) != 1 || result.CommonActivities[0] != "Sleep" {
		t.Errorf("CommonActivities = %v, want default [Sleep]", result.CommonActivities)
	}
}

func TestLoad_ZeroCacheTTL(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	data := `{"cache_ttl_hours": 0}`
	if err := os.WriteFile(filepath.Join(tmpDir, "config.json"), []byte(data), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CacheTTLHours == nil || *cfg.CacheTTLHours != 0 {
		t.Errorf("CacheTTLHours = %v, want explicit 0", cfg.CacheTTLHours)
	}
	if cfg.CacheTTL() != 0 {
		t.Errorf("CacheTTL() = %v, want 0", cfg.CacheTTL())
	}
}

func TestCacheTTL_NilUsesDefault(t *testing.T) {
	cfg := &Config{}
	if cfg.CacheTTL() != DefaultCacheTTLHours*time.Hour {
		t.Errorf("CacheTTL() = %v, want %dh", cfg.CacheTTL(), DefaultCacheTTLHours)
	}
}

func TestMerge_EmptyArraysStayNil(t *testing.T) {
	result := Merge(&Config{}, &Config{DisabledTools: []string{"  "}})
	if result.DisabledTools != nil {
		t.Errorf("DisabledTools = %v, want nil", result.DisabledTools)
	}
}
