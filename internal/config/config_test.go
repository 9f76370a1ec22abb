package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"INKWELL_API_URL", "AUTOSAVE_DEBOUNCE", "SAVED_DISPLAY", "SSE_IDLE_TIMEOUT", "HTTP_MAX_RETRIES", "ENVIRONMENT", "DEBUG"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.APIURL != "http://localhost:8080" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.AutosaveDebounce != 1200*time.Millisecond {
		t.Errorf("AutosaveDebounce = %v, want 1.2s", cfg.AutosaveDebounce)
	}
	if cfg.SavedDisplay != 3*time.Second {
		t.Errorf("SavedDisplay = %v, want 3s", cfg.SavedDisplay)
	}
	if cfg.SSEIdleTimeout != DefaultSSEIdleTimeout {
		t.Errorf("SSEIdleTimeout = %v", cfg.SSEIdleTimeout)
	}
	if cfg.HTTPMaxRetries != DefaultHTTPMaxRetries {
		t.Errorf("HTTPMaxRetries = %d", cfg.HTTPMaxRetries)
	}
	if !cfg.Debug {
		t.Error("expected debug on in dev")
	}
}

func TestLoad_Overrides(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"duration syntax", "500ms", 500 * time.Millisecond},
		{"bare milliseconds", "750", 750 * time.Millisecond},
		{"garbage falls back", "soon", DefaultAutosaveDebounce},
		{"negative falls back", "-5s", DefaultAutosaveDebounce},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AUTOSAVE_DEBOUNCE", tt.value)
			if got := Load().AutosaveDebounce; got != tt.want {
				t.Errorf("AutosaveDebounce = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoad_ProdDisablesDebug(t *testing.T) {
	t.Setenv("ENVIRONMENT", "prod")
	t.Setenv("DEBUG", "")
	if Load().Debug {
		t.Error("expected debug off in prod")
	}
}

func TestSetupLogFile_KeepsMostRecent(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"inkwell-2020-01-01T00-00-00.000.log", "inkwell-2020-01-02T00-00-00.000.log", "inkwell-2020-01-03T00-00-00.000.log"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	f, err := SetupLogFile(dir, 2)
	if err != nil {
		t.Fatalf("SetupLogFile: %v", err)
	}
	f.Close()

	files, _ := filepath.Glob(filepath.Join(dir, "inkwell-*.log"))
	if len(files) != 2 {
		t.Fatalf("got %d log files, want 2: %v", len(files), files)
	}
	if filepath.Base(files[0]) != "inkwell-2020-01-03T00-00-00.000.log" {
		t.Errorf("oldest kept = %s", files[0])
	}
}
