// Package i18n holds the translatable display strings of the page.
package i18n

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Keys of the translation table
const (
	AlbumArtAlt   = "Album art. Click to listen."
	ClickToListen = "Click to listen"
	ClickToView   = "Click to view"
	Live          = "Live"
	LivePrefix    = "Live: "
	Offline       = "Offline"
	Online        = "Online"
	SongRequest   = "Song request"
)

// defaults is the English table. The live prefix is empty on purpose: the
// streamer name alone is shown as the show name.
var defaults = map[string]string{
	AlbumArtAlt:   "Album art. Click to listen.",
	ClickToListen: "Click to listen",
	ClickToView:   "Click to view",
	Live:          "Live",
	LivePrefix:    "",
	Offline:       "Offline",
	Online:        "Online",
	SongRequest:   "Song request",
}

// Translator looks up display strings
type Translator struct {
	table map[string]string
}

// Default returns the built-in English translator
func Default() *Translator {
	return &Translator{table: defaults}
}

// Load overlays the YAML table at path on the defaults. An empty path
// returns the defaults.
func Load(path string) (*Translator, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read translations '%s': %w", path, err)
	}

	var overlay map[string]string
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("failed to parse translations from YAML: %w", err)
	}

	table := make(map[string]string, len(defaults))
	for k, v := range defaults {
		table[k] = v
	}
	for k, v := range overlay {
		if _, known := defaults[k]; known {
			table[k] = v
		}
	}
	return &Translator{table: table}, nil
}

// T translates key; unknown keys are returned unchanged
func (t *Translator) T(key string) string {
	if v, ok := t.table[key]; ok {
		return v
	}
	return key
}
