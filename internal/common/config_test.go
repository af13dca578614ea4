package common

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Profiles.File != "profiles.json" || cfg.Render.Renderer != "mupdf" {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.Tasks.StopTimeout != 5*time.Second {
		t.Errorf("stop timeout = %s", cfg.Tasks.StopTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := writeConfig(t, `{
		"app_settings": {"output_folder": "/srv/out", "history_dsn": "", "watch_debounce_ms": 500, "export_report": false},
		"window_settings": {"width": 1200},
		"recent_folders": ["/scans"],
		"version": "1.0"
	}`)
	t.Setenv("RENDERER", "pdftoppm")
	t.Setenv("OUTPUT_DIR", "/env/out")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Export.OutputDir != "/env/out" {
		t.Errorf("env did not override file: %q", cfg.Export.OutputDir)
	}
	if cfg.History.DSN != "" {
		t.Errorf("explicit empty DSN not kept: %q", cfg.History.DSN)
	}
	if cfg.Watch.Debounce != 500*time.Millisecond || cfg.Export.ReportXLSX {
		t.Errorf("file settings not applied: %+v", cfg)
	}
	if cfg.Render.Renderer != "pdftoppm" || cfg.Version != "1.0" || len(cfg.RecentFolders) != 1 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadConfigRejectsInvalidFile(t *testing.T) {
	tests := map[string]string{
		"not json":         `{`,
		"missing sections": `{"app_settings": {}}`,
		"bad renderer":     `{"app_settings": {"renderer": "gs"}, "window_settings": {}, "recent_folders": [], "version": "1"}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			var appErr *AppError
			if !errors.As(err, &appErr) || appErr.Code != CodeConfig {
				t.Errorf("err = %v, want config AppError", err)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Render.Renderer = "ghostscript"
	cfg.Render.Workers = 0
	err := cfg.Validate()
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Validate = %v", err)
	}
	for _, want := range []string{"RENDERER", "THUMBNAIL_WORKERS"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not name %s", err, want)
		}
	}
}
