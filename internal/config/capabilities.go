package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// CapabilityOverride is one table of the capabilities overlay file, e.g.
//
//	[translation]
//	enabled = false
//	reason = "Translation service temporarily disabled due to dependency conflicts"
type CapabilityOverride struct {
	Enabled  *bool  `toml:"enabled"`
	Reason   string `toml:"reason"`
	Provider string `toml:"provider"`
}

var knownCapabilities = map[string]bool{
	"summarization": true,
	"tts":           true,
	"ocr":           true,
	"translation":   true,
}

// LoadCapabilities reads the TOML overlay that switches capabilities off or
// pins their provider.
func LoadCapabilities(path string) (map[string]CapabilityOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read capabilities file: %w", err)
	}

	overrides := make(map[string]CapabilityOverride)
	if err := toml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse capabilities file %s: %w", path, err)
	}

	for name := range overrides {
		if !knownCapabilities[name] {
			return nil, fmt.Errorf("unknown capability %q in %s", name, path)
		}
	}

	return overrides, nil
}
