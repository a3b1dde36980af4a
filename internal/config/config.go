// This file is part of xwmux.
// Please see the LICENSE file for copyright information.

// Package config loads xwmux's TOML configuration, in the same
// initializeConfigIfNot + configDir idiom the teacher project uses for its
// own settings file (config.go), swapping the audio-app fields for the
// root-terminal and layout fields this window manager needs.
package config

import (
	"bytes"
	"log"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds the settings that are not learned at runtime from the
// multiplexer's own RESOLUTION/PREFIX control messages.
type Config struct {
	RootTermCommand string
	RootTermClass   string
	DefaultBar      string // "top" or "bottom"
	PaddingX        string // "start", "even", or "end"
	PaddingY        string
	DefaultPrefix   string // multiplexer key syntax, e.g. "C-a"
}

const fileName = "config.toml"

// Default returns xwmux's built-in defaults, written out on first run.
func Default() Config {
	return Config{
		RootTermCommand: "xterm -class xwmux_root -e ~/.config/xwmux/init_term.sh",
		RootTermClass:   "xwmux_root",
		DefaultBar:      "bottom",
		PaddingX:        "even",
		PaddingY:        "even",
		DefaultPrefix:   "C-a",
	}
}

// Dir returns the directory xwmux's config file lives in, creating it if
// necessary.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, "xwmux")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

// InitializeIfNot writes the default config to disk if no config file
// exists yet, mirroring the teacher's initializeConfigIfNot.
func InitializeIfNot() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	path := filepath.Join(dir, fileName)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	log.Println("xwmux: initializing default config")
	return write(path, Default())
}

// Load reads xwmux's config file, falling back to defaults for any field
// left unset so a partially-written config file never leaves zero values
// in play.
func Load() (Config, error) {
	dir, err := Dir()
	if err != nil {
		return Config{}, err
	}
	path := filepath.Join(dir, fileName)

	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, err
	}
	return cfg, nil
}

func write(path string, cfg Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0600)
}
