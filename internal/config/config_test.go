// SPDX-License-Identifier: MPL-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vlaunch-cli/internal/store"
)

// writeConfig places a config.cue in a fresh base directory and returns the
// matching paths layout.
func writeConfig(t *testing.T, content string) store.Paths {
	t.Helper()

	paths := store.PathsUnder(t.TempDir())
	path := filepath.Join(paths.Base, "config.cue")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return paths
}

func TestLoad_Defaults(t *testing.T) {
	paths := store.PathsUnder(t.TempDir()) // no config file

	cfg, resolved, err := Load(LoadOptions{Paths: paths})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if resolved != "" {
		t.Errorf("resolved path = %q, want empty for pure defaults", resolved)
	}
	if cfg.RetainCount != DefaultRetainCount {
		t.Errorf("RetainCount = %d, want %d", cfg.RetainCount, DefaultRetainCount)
	}
	if cfg.CheckTimeout() != time.Duration(DefaultCheckTimeoutSecs)*time.Second {
		t.Errorf("CheckTimeout = %s", cfg.CheckTimeout())
	}
	if cfg.AutoUpdate {
		t.Error("AutoUpdate defaults to true, want false")
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	paths := writeConfig(t, `
server_url:  "https://updates.example.com"
program_id:  "crawlprogram"
entrypoint:  "CrawlProgram.exe"
retain_count: 3
auto_update:  true

ui: {
	verbose: true
}
`)

	cfg, resolved, err := Load(LoadOptions{Paths: paths})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if resolved != filepath.Join(paths.Base, "config.cue") {
		t.Errorf("resolved path = %q", resolved)
	}
	if cfg.ServerURL != "https://updates.example.com" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.ProgramID != "crawlprogram" {
		t.Errorf("ProgramID = %q", cfg.ProgramID)
	}
	if cfg.Entrypoint != "CrawlProgram.exe" {
		t.Errorf("Entrypoint = %q", cfg.Entrypoint)
	}
	if cfg.RetainCount != 3 {
		t.Errorf("RetainCount = %d, want 3", cfg.RetainCount)
	}
	if !cfg.AutoUpdate {
		t.Error("AutoUpdate = false, want true")
	}
	if !cfg.UI.Verbose {
		t.Error("UI.Verbose = false, want true")
	}

	// Fields the file omits keep their defaults.
	if cfg.CheckTimeoutSecs != DefaultCheckTimeoutSecs {
		t.Errorf("CheckTimeoutSecs = %d, want default %d", cfg.CheckTimeoutSecs, DefaultCheckTimeoutSecs)
	}
}

func TestLoad_ExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.cue")
	if err := os.WriteFile(path, []byte(`retain_count: 5`), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, resolved, err := Load(LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if resolved != path {
		t.Errorf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.RetainCount != 5 {
		t.Errorf("RetainCount = %d, want 5", cfg.RetainCount)
	}
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.cue")

	if _, _, err := Load(LoadOptions{ConfigFilePath: missing}); err == nil {
		t.Fatal("Load with missing explicit config succeeded")
	}
}

func TestLoad_SchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{name: "bad server scheme", content: `server_url: "ftp://u.example.com"`, field: "server_url"},
		{name: "zero retain count", content: `retain_count: 0`, field: "retain_count"},
		{name: "wrong type", content: `auto_update: "yes"`, field: "auto_update"},
		{name: "empty entrypoint", content: `entrypoint: ""`, field: "entrypoint"},
		{name: "uppercase program id", content: `program_id: "CrawlProgram"`, field: "program_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paths := writeConfig(t, tt.content)

			_, _, err := Load(LoadOptions{Paths: paths})
			if err == nil {
				t.Fatal("Load accepted an invalid config")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not name field %s", err, tt.field)
			}
		})
	}
}

func TestLoad_MalformedCUE(t *testing.T) {
	paths := writeConfig(t, `retain_count: {{{`)

	if _, _, err := Load(LoadOptions{Paths: paths}); err == nil {
		t.Fatal("Load accepted malformed CUE")
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate on defaults: %v", err)
	}

	bad := DefaultConfig()
	bad.RetainCount = 0
	if err := bad.Validate(); err == nil {
		t.Error("Validate accepted retain_count 0")
	}

	bad = DefaultConfig()
	bad.ServerURL = "not a url"
	if err := bad.Validate(); err == nil {
		t.Error("Validate accepted a non-http server_url")
	}
}

func TestRequireIdentity(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.RequireIdentity(); err == nil {
		t.Fatal("RequireIdentity passed with no identity configured")
	}

	cfg.ProgramID = "crawlprogram"
	cfg.ServerURL = "https://updates.example.com"
	if err := cfg.RequireIdentity(); err != nil {
		t.Fatalf("RequireIdentity: %v", err)
	}
}
