// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"vlaunch-cli/internal/config"
	"vlaunch-cli/internal/logging"
	"vlaunch-cli/internal/store"
)

// cmdEnv bundles the launcher environment every command needs: resolved
// paths, loaded configuration, the version store, and the logger.
type cmdEnv struct {
	cfg    *config.Config
	paths  store.Paths
	store  *store.Store
	logger *log.Logger
	closer io.Closer
}

// newCmdEnv resolves paths, loads configuration and builds the logger.
// Callers must Close the environment before returning.
func newCmdEnv() (*cmdEnv, error) {
	paths, err := store.ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("resolving launcher directory: %w", err)
	}
	if err := paths.EnsureDirs(); err != nil {
		return nil, err
	}

	cfg, resolved, err := config.Load(config.LoadOptions{
		ConfigFilePath: cfgFile,
		Paths:          paths,
	})
	if err != nil {
		return nil, err
	}

	logger, closer, err := logging.New(paths, verbose || cfg.UI.Verbose)
	if err != nil {
		return nil, err
	}
	if resolved != "" {
		logger.Debug("loaded config", "path", resolved)
	}

	return &cmdEnv{
		cfg:    cfg,
		paths:  paths,
		store:  store.New(paths),
		logger: logger,
		closer: closer,
	}, nil
}

// Close flushes and closes the log file.
func (e *cmdEnv) Close() {
	if e.closer != nil {
		_ = e.closer.Close()
	}
}

// identity resolves the program id and server URL, preferring configuration
// over the persisted record. Both are required for any remote operation.
func (e *cmdEnv) identity() (programID, serverURL string, err error) {
	programID, serverURL = e.cfg.ProgramID, e.cfg.ServerURL

	if programID == "" || serverURL == "" {
		rec, recErr := e.store.ReadCurrent()
		if recErr == nil {
			if programID == "" {
				programID = rec.ProgramID
			}
			if serverURL == "" {
				serverURL = rec.ServerURL
			}
		} else if !errors.Is(recErr, store.ErrNotInstalled) {
			e.logger.Debug("reading record for identity", "err", recErr)
		}
	}

	if programID == "" || serverURL == "" {
		return "", "", errors.New("program_id and server_url must be set in config.cue or an installed version record")
	}
	return programID, serverURL, nil
}
