// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/config.go
// Summary: Server configuration loading from ~/.config/muxd/config.toml, with
// hot reload of the client-facing terminalConfig block.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/texelation/muxd/protocol"
)

// TerminalConfig mirrors protocol.TerminalConfig with the zero-value
// defaults this server applies when a field is left unset.
type TerminalConfig struct {
	Font       string `mapstructure:"font"`
	Cursor     string `mapstructure:"cursor"`
	Scrollback int    `mapstructure:"scrollback"`
	Theme      string `mapstructure:"theme"`
	Renderer   string `mapstructure:"renderer"`
}

// ToProtocol converts to the wire shape sent in workspace_snapshot/
// workspace_update.
func (t TerminalConfig) ToProtocol() *protocol.TerminalConfig {
	return &protocol.TerminalConfig{
		Font:           t.Font,
		Cursor:         t.Cursor,
		ScrollbackSize: t.Scrollback,
		Theme:          t.Theme,
		Renderer:       t.Renderer,
	}
}

// Config holds the server's complete configuration.
type Config struct {
	ListenAddr      string         `mapstructure:"listen_addr"`
	WorkDir         string         `mapstructure:"work_dir"`
	ScrollbackBytes int            `mapstructure:"scrollback_bytes"`
	Terminal        TerminalConfig `mapstructure:"terminal"`
}

func defaults() Config {
	return Config{
		ListenAddr:      ":7681",
		WorkDir:         ".",
		ScrollbackBytes: 256 * 1024,
		Terminal: TerminalConfig{
			Font:       "monospace",
			Cursor:     "block",
			Scrollback: 10000,
			Theme:      "default",
			Renderer:   "xterm",
		},
	}
}

// Manager loads, watches, and hot-reloads the server configuration.
type Manager struct {
	v         *viper.Viper
	mu        sync.RWMutex
	config    Config
	callbacks []func(Config)
	watching  bool
}

// NewManager builds a Manager that looks for config.toml in configDir (if
// non-empty) and the current directory, with TEXELATION_-prefixed
// environment variable overrides.
func NewManager(configDir string) (*Manager, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	if configDir != "" {
		v.AddConfigPath(configDir)
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("TEXELATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Manager{v: v}, nil
}

// Load reads the config file (if present) over the built-in defaults. A
// missing config file is not an error; server defaults apply.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg := defaults()
	m.setDefaults()

	if err := m.v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return fmt.Errorf("config: read: %w", err)
		}
	}
	if err := m.v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("config: unmarshal: %w", err)
	}

	m.config = cfg
	return nil
}

func (m *Manager) setDefaults() {
	d := defaults()
	m.v.SetDefault("listen_addr", d.ListenAddr)
	m.v.SetDefault("work_dir", d.WorkDir)
	m.v.SetDefault("scrollback_bytes", d.ScrollbackBytes)
	m.v.SetDefault("terminal.font", d.Terminal.Font)
	m.v.SetDefault("terminal.cursor", d.Terminal.Cursor)
	m.v.SetDefault("terminal.scrollback", d.Terminal.Scrollback)
	m.v.SetDefault("terminal.theme", d.Terminal.Theme)
	m.v.SetDefault("terminal.renderer", d.Terminal.Renderer)
}

// Current returns a copy of the most recently loaded configuration.
func (m *Manager) Current() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Watch starts watching the config file for changes, reloading and invoking
// every registered callback with the new configuration on each change.
// Only the terminal block is expected to change usefully post-startup;
// listen_addr/work_dir/scrollback_bytes changes take effect on next restart.
func (m *Manager) Watch() {
	m.mu.Lock()
	if m.watching {
		m.mu.Unlock()
		return
	}
	m.watching = true
	m.mu.Unlock()

	m.v.WatchConfig()
	m.v.OnConfigChange(func(_ fsnotify.Event) {
		m.mu.Lock()
		cfg := defaults()
		if err := m.v.Unmarshal(&cfg); err != nil {
			m.mu.Unlock()
			return
		}
		m.config = cfg
		callbacks := make([]func(Config), len(m.callbacks))
		copy(callbacks, m.callbacks)
		m.mu.Unlock()

		for _, cb := range callbacks {
			cb(cfg)
		}
	})
}

// OnChange registers a callback invoked with the new Config each time the
// watched file changes.
func (m *Manager) OnChange(cb func(Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// DefaultConfigDir returns ~/.config/muxd, creating it if necessary.
func DefaultConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir = filepath.Join(dir, "muxd")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}
