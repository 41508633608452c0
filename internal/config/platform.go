package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Platform describes the video platform the coordinator serves.
type Platform struct {
	TabPattern  string            `yaml:"tab_pattern"`
	AudioMarker string            `yaml:"audio_marker"`
	LiveMarker  string            `yaml:"live_marker"`
	StripParams []string          `yaml:"strip_params"`
	Links       map[string]string `yaml:"links"`
}

// DefaultPlatform is the built-in YouTube profile.
func DefaultPlatform() *Platform {
	return &Platform{
		TabPattern:  "*://*.youtube.com/*",
		AudioMarker: "mime=audio",
		LiveMarker:  "live=1",
		StripParams: []string{"range", "rn", "rbuf"},
		Links: map[string]string{
			"support":   "https://chrome.google.com/webstore/detail/youtube-audiovideo-sync/mknmhikmjljhpccebpnplhicmcfjkgbk/support",
			"donate":    "https://www.buymeacoffee.com/adrianilie",
			"uninstall": "https://docs.google.com/forms/d/e/1FAIpQLSd5gELqtwb9rJQgdK7SRAA5--fZQxTXDLNBIU2pOteHg1Kuig/viewform",
		},
	}
}

// LoadPlatform reads a platform profile. Fields the file omits keep their
// built-in values; a missing file yields the built-in profile.
func LoadPlatform(path string) (*Platform, error) {
	p := DefaultPlatform()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("platform profile not found, using defaults", "path", path)
			return p, nil
		}
		return nil, fmt.Errorf("platform profile: %w", err)
	}

	var file Platform
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("platform profile: %w", err)
	}
	if file.TabPattern != "" {
		p.TabPattern = file.TabPattern
	}
	if file.AudioMarker != "" {
		p.AudioMarker = file.AudioMarker
	}
	if file.LiveMarker != "" {
		p.LiveMarker = file.LiveMarker
	}
	if file.StripParams != nil {
		p.StripParams = file.StripParams
	}
	for name, url := range file.Links {
		if url == "" {
			delete(p.Links, name)
			continue
		}
		p.Links[name] = url
	}
	if p.AudioMarker == p.LiveMarker {
		return nil, fmt.Errorf("platform profile: audio_marker and live_marker must differ")
	}
	return p, nil
}
