package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/Alijeyrad/gorecite/internal/protocol"
)

type Config struct {
	// Hotkey is the global keyboard shortcut that toggles listening, e.g. "Alt-r".
	Hotkey string `json:"hotkey"`

	// SocketURL is the websocket endpoint of the live analysis service,
	// e.g. "ws://localhost:8765/session".
	SocketURL string `json:"socket_url"`

	// APIBaseURL is the HTTP endpoint used for uploads and mistake sync,
	// e.g. "http://localhost:8765".
	APIBaseURL string `json:"api_base_url"`

	// FeedbackMode selects how mistakes are surfaced: highlight, beep or spoken.
	FeedbackMode protocol.FeedbackMode `json:"feedback_mode"`
}

func Default() *Config {
	return &Config{
		Hotkey:       "Alt-r",
		SocketURL:    "ws://localhost:8765/session",
		APIBaseURL:   "http://localhost:8765",
		FeedbackMode: protocol.ModeHighlight,
	}
}

// Dir is the per-user data directory; the durable store lives here too.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "gorecite")
}

func path() string {
	return filepath.Join(Dir(), "config.json")
}

func Load() (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	// Fall back to sane values rather than failing startup.
	if !cfg.FeedbackMode.Valid() {
		cfg.FeedbackMode = protocol.ModeHighlight
	}
	if cfg.SocketURL == "" {
		cfg.SocketURL = Default().SocketURL
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = Default().APIBaseURL
	}
	return cfg, nil
}

func (c *Config) Save() error {
	if err := os.MkdirAll(Dir(), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path(), data, 0644)
}
