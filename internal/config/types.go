// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultRetainCount keeps the active version plus one fallback.
	DefaultRetainCount = 2
	// DefaultCheckTimeoutSecs bounds the remote version check.
	DefaultCheckTimeoutSecs = 10
	// DefaultDownloadTimeoutSecs bounds the whole artifact transfer.
	DefaultDownloadTimeoutSecs = 600
)

type (
	// Config holds the launcher configuration.
	Config struct {
		// ServerURL is the update server base URL. Overrides the persisted
		// record's URL when set.
		ServerURL string `json:"server_url" mapstructure:"server_url"`
		// ProgramID identifies the managed program on the update server.
		ProgramID string `json:"program_id" mapstructure:"program_id"`
		// Entrypoint is the executable filename to launch inside the active
		// version directory.
		Entrypoint string `json:"entrypoint" mapstructure:"entrypoint"`
		// RetainCount bounds the finalized version directories kept on disk.
		RetainCount int `json:"retain_count" mapstructure:"retain_count"`
		// AutoUpdate installs available updates without prompting.
		AutoUpdate bool `json:"auto_update" mapstructure:"auto_update"`
		// CheckTimeoutSecs is the update-check timeout in seconds.
		CheckTimeoutSecs int `json:"check_timeout_secs" mapstructure:"check_timeout_secs"`
		// DownloadTimeoutSecs is the artifact-download timeout in seconds.
		DownloadTimeoutSecs int `json:"download_timeout_secs" mapstructure:"download_timeout_secs"`
		// UI configures the terminal output.
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// UIConfig configures the terminal output.
	UIConfig struct {
		// Verbose enables debug logging to the terminal.
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}
)

// DefaultConfig returns the built-in defaults applied under any loaded file.
func DefaultConfig() *Config {
	return &Config{
		RetainCount:         DefaultRetainCount,
		CheckTimeoutSecs:    DefaultCheckTimeoutSecs,
		DownloadTimeoutSecs: DefaultDownloadTimeoutSecs,
	}
}

// Validate enforces the constraints the CUE schema cannot, plus the ones that
// must hold even when no config file exists.
func (c *Config) Validate() error {
	if c.RetainCount < 1 {
		return fmt.Errorf("retain_count must be at least 1, got %d", c.RetainCount)
	}
	if c.CheckTimeoutSecs < 1 {
		return fmt.Errorf("check_timeout_secs must be positive, got %d", c.CheckTimeoutSecs)
	}
	if c.DownloadTimeoutSecs < 1 {
		return fmt.Errorf("download_timeout_secs must be positive, got %d", c.DownloadTimeoutSecs)
	}
	if c.ServerURL != "" &&
		!strings.HasPrefix(c.ServerURL, "http://") && !strings.HasPrefix(c.ServerURL, "https://") {
		return fmt.Errorf("server_url must be an http(s) URL, got %q", c.ServerURL)
	}
	return nil
}

// RequireIdentity checks the fields an update operation cannot run without.
// Launching an already-installed version does not need them, so this is a
// separate gate from Validate.
func (c *Config) RequireIdentity() error {
	if strings.TrimSpace(c.ProgramID) == "" {
		return errors.New("program_id is not configured")
	}
	if strings.TrimSpace(c.ServerURL) == "" {
		return errors.New("server_url is not configured")
	}
	return nil
}

// CheckTimeout returns the update-check timeout as a duration.
func (c *Config) CheckTimeout() time.Duration {
	return time.Duration(c.CheckTimeoutSecs) * time.Second
}

// DownloadTimeout returns the artifact-download timeout as a duration.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.DownloadTimeoutSecs) * time.Second
}
