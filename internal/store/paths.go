// SPDX-License-Identifier: MPL-2.0

package store

import (
	"fmt"
	"os"
	"path/filepath"

	"vlaunch-cli/internal/version"
)

// HomeEnv overrides the launcher base directory when set. Used by development
// builds and tests; production resolves relative to the executable.
const HomeEnv = "VLAUNCH_HOME"

var (
	//nolint:gochecknoglobals // Test seam for os.Executable().
	osExecutable = os.Executable

	//nolint:gochecknoglobals // Test seam for filepath.EvalSymlinks().
	evalSymlinks = filepath.EvalSymlinks
)

// Paths is the launcher's on-disk layout. Everything the launcher persists
// lives under Base, next to the launcher executable, so a single directory
// move carries the whole installation.
type Paths struct {
	Base        string // launcher root
	Data        string // Base/data: record, ack store, logs
	Versions    string // Base/versions: one subdirectory per installed version
	CurrentFile string // Base/data/current.toml
}

// ResolvePaths determines the launcher base directory and derives the full
// layout. The VLAUNCH_HOME environment variable wins when set; otherwise the
// base is the directory holding the (symlink-resolved) running executable.
func ResolvePaths() (Paths, error) {
	if home := os.Getenv(HomeEnv); home != "" {
		return PathsUnder(home), nil
	}

	exe, err := osExecutable()
	if err != nil {
		return Paths{}, fmt.Errorf("determining executable path: %w", err)
	}
	resolved, err := evalSymlinks(exe)
	if err != nil {
		return Paths{}, fmt.Errorf("resolving symlinks for %s: %w", exe, err)
	}

	return PathsUnder(filepath.Dir(resolved)), nil
}

// PathsUnder derives the standard layout below the given base directory.
func PathsUnder(base string) Paths {
	data := filepath.Join(base, "data")
	return Paths{
		Base:        base,
		Data:        data,
		Versions:    filepath.Join(base, "versions"),
		CurrentFile: filepath.Join(data, "current.toml"),
	}
}

// EnsureDirs creates the data and versions directories if missing.
func (p Paths) EnsureDirs() error {
	for _, dir := range []string{p.Data, p.Versions} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

// VersionDir returns the finalized directory path for tag.
func (p Paths) VersionDir(tag version.Tag) string {
	return filepath.Join(p.Versions, tag.DirName())
}

// StagingDir returns the in-progress staging directory path for tag.
func (p Paths) StagingDir(tag version.Tag) string {
	return filepath.Join(p.Versions, tag.StagingDirName())
}
