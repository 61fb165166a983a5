// SPDX-License-Identifier: MPL-2.0

package store

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"vlaunch-cli/internal/version"
)

var (
	// ErrNotInstalled indicates no current-version record exists yet; the
	// launcher treats this as "fresh install required".
	ErrNotInstalled = errors.New("no current version installed")

	// ErrCorruptRecord indicates the record file exists but cannot be parsed
	// or fails validation. Callers recover as if not installed, but log the
	// corruption distinctly.
	ErrCorruptRecord = errors.New("current version record is corrupt")
)

// Record is the persisted current-version pointer: which program this
// launcher manages, which version is active, and where the remote authority
// lives. It must only ever reference a finalized version directory.
type Record struct {
	ProgramID string      `toml:"program_id"`
	Version   version.Tag `toml:"version"`
	ServerURL string      `toml:"server_url"`
}

// Store reads and writes launcher state under a resolved Paths layout.
type Store struct {
	paths Paths
}

// New creates a Store over the given layout.
func New(paths Paths) *Store {
	return &Store{paths: paths}
}

// Paths exposes the layout the store operates on.
func (s *Store) Paths() Paths { return s.paths }

// ReadCurrent loads the current-version record. A missing file yields
// ErrNotInstalled; an unreadable or invalid file yields an error wrapping
// ErrCorruptRecord.
func (s *Store) ReadCurrent() (Record, error) {
	data, err := os.ReadFile(s.paths.CurrentFile)
	if errors.Is(err, os.ErrNotExist) {
		return Record{}, ErrNotInstalled
	}
	if err != nil {
		return Record{}, fmt.Errorf("reading %s: %w", s.paths.CurrentFile, err)
	}

	var rec Record
	if err := toml.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %s: %v", ErrCorruptRecord, s.paths.CurrentFile, err)
	}
	if err := rec.validate(); err != nil {
		return Record{}, fmt.Errorf("%w: %s: %v", ErrCorruptRecord, s.paths.CurrentFile, err)
	}

	return rec, nil
}

// WriteCurrent persists the record as the new current-version pointer. The
// content is written to a temp file and renamed over the record in a single
// atomic replace; a crash mid-write leaves the prior record intact.
func (s *Store) WriteCurrent(rec Record) error {
	if err := rec.validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}

	data, err := toml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}

	if err := os.MkdirAll(s.paths.Data, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	return WriteFileAtomic(s.paths.CurrentFile, data)
}

// ListVersions enumerates the finalized version directories, oldest first.
// Staging directories and entries that do not match the v{major}_{minor}_{patch}
// naming scheme are skipped.
func (s *Store) ListVersions() ([]version.Tag, error) {
	entries, err := os.ReadDir(s.paths.Versions)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading versions directory: %w", err)
	}

	var tags []version.Tag
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if tag, ok := version.ParseDirName(e.Name()); ok {
			tags = append(tags, tag)
		}
	}

	version.SortAscending(tags)
	return tags, nil
}

// HasFinalized reports whether a finalized directory exists for tag.
func (s *Store) HasFinalized(tag version.Tag) bool {
	info, err := os.Stat(s.paths.VersionDir(tag))
	return err == nil && info.IsDir()
}

func (r Record) validate() error {
	if strings.TrimSpace(r.ProgramID) == "" {
		return errors.New("program_id is required")
	}
	if r.Version == (version.Tag{}) {
		return errors.New("version is required")
	}
	if strings.TrimSpace(r.ServerURL) == "" {
		return errors.New("server_url is required")
	}
	return nil
}

// WriteFileAtomic writes data to path via a sibling temp file and rename, so
// readers observe either the old or the new content, never a partial write.
func WriteFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		// Best-effort removal of the orphaned temp file.
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
