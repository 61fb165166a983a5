// SPDX-License-Identifier: MPL-2.0

// Package logging builds the launcher's logger: human-readable output on
// stderr mirrored into a rotated log file under the data directory, so a
// failed update on a user's machine can be diagnosed after the fact.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"vlaunch-cli/internal/store"
)

// LogFileName is the rotated log file inside the data directory.
const LogFileName = "vlaunch.log"

// New creates the launcher logger. Verbose lowers the level to debug. The
// returned closer flushes and closes the log file and must be called before
// exit.
func New(paths store.Paths, verbose bool) (*log.Logger, io.Closer, error) {
	if err := os.MkdirAll(paths.Data, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating data directory: %w", err)
	}

	file := &lumberjack.Logger{
		Filename:   filepath.ToSlash(filepath.Join(paths.Data, LogFileName)),
		MaxSize:    5, // MB
		MaxBackups: 3,
		MaxAge:     30, // days
		Compress:   true,
	}

	logger := log.NewWithOptions(io.MultiWriter(os.Stderr, file), log.Options{
		Prefix:          "vlaunch",
		ReportTimestamp: true,
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}

	return logger, file, nil
}
