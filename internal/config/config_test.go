package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CDPURL() != "http://127.0.0.1:9222" {
		t.Fatalf("CDPURL() = %q", cfg.CDPURL())
	}
	if cfg.BindAddr != "127.0.0.1:8190" || cfg.ResumeTimeoutMS != 3000 || cfg.ResumeCapacity != 64 {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.StorePath != "./avsync.db" || cfg.JournalDir != "./journal" {
		t.Fatalf("storage defaults = %q, %q", cfg.StorePath, cfg.JournalDir)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CHROMIUM_CDP_PORT", "9333")
	t.Setenv("AVSYNC_LOG_LEVEL", "DEBUG")
	t.Setenv("AVSYNC_RESUME_TIMEOUT_MS", "100")
	t.Setenv("AVSYNC_RESUME_CAPACITY", "0")
	t.Setenv("AVSYNC_STORE_PATH", "")
	t.Setenv("AVSYNC_JOURNAL_DIR", "")
	t.Setenv("AVSYNC_PORT_CANDIDATES", "127.0.0.1:8191, 127.0.0.1:8192,")
	t.Setenv("AVSYNC_LAUNCH_BROWSER", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CDPPort != 9333 || cfg.LogLevel != "debug" || !cfg.LaunchBrowser {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.ResumeTimeoutMS != 500 || cfg.ResumeCapacity != 1 {
		t.Fatalf("clamped values = %d, %d; want 500, 1", cfg.ResumeTimeoutMS, cfg.ResumeCapacity)
	}
	if cfg.StorePath != "" || cfg.JournalDir != "" {
		t.Fatalf("explicitly empty storage = %q, %q; want empty", cfg.StorePath, cfg.JournalDir)
	}
	if want := []string{"127.0.0.1:8191", "127.0.0.1:8192"}; !reflect.DeepEqual(cfg.PortCandidates, want) {
		t.Fatalf("PortCandidates = %v; want %v", cfg.PortCandidates, want)
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CHROMIUM_CDP_PORT", "70000")
	if _, err := Load(); err == nil {
		t.Fatal("Load() error = nil; want invalid port")
	}
}

func TestLoadPlatformMissingFileUsesDefaults(t *testing.T) {
	p, err := LoadPlatform(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadPlatform() error = %v", err)
	}
	if !reflect.DeepEqual(p, DefaultPlatform()) {
		t.Fatalf("LoadPlatform() = %+v; want defaults", p)
	}
}

func TestLoadPlatformOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "platform.yaml")
	data := `tab_pattern: "*://*.example.com/*"
strip_params: [range]
links:
  donate: ""
  review: https://example.com/review
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	p, err := LoadPlatform(path)
	if err != nil {
		t.Fatalf("LoadPlatform() error = %v", err)
	}
	if p.TabPattern != "*://*.example.com/*" || p.AudioMarker != "mime=audio" {
		t.Fatalf("patterns = %q, %q", p.TabPattern, p.AudioMarker)
	}
	if !reflect.DeepEqual(p.StripParams, []string{"range"}) {
		t.Fatalf("StripParams = %v", p.StripParams)
	}
	if _, ok := p.Links["donate"]; ok {
		t.Fatal("donate link not removed")
	}
	if p.Links["review"] != "https://example.com/review" || p.Links["support"] == "" {
		t.Fatalf("Links = %v", p.Links)
	}
}

func TestLoadPlatformInvalid(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("tab_pattern: [unterminated"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := LoadPlatform(bad); err == nil {
		t.Fatal("LoadPlatform(bad yaml) error = nil")
	}

	same := filepath.Join(dir, "same.yaml")
	if err := os.WriteFile(same, []byte("audio_marker: live=1\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := LoadPlatform(same); err == nil {
		t.Fatal("LoadPlatform(equal markers) error = nil")
	}
}
