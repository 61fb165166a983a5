// SPDX-License-Identifier: MPL-2.0

package update

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"vlaunch-cli/internal/store"
	"vlaunch-cli/internal/version"
)

// DefaultRetainCount keeps the active version plus one fallback on disk.
const DefaultRetainCount = 2

var (
	// ErrNotFinalized indicates a promotion was attempted for a version with
	// no finalized directory on disk. The current-version record must never
	// point at anything else.
	ErrNotFinalized = errors.New("version directory is not finalized")

	// ErrPromotionFailed indicates the current-version record could not be
	// rewritten. The finalized directory stays on disk; promotion can be
	// retried later without re-downloading.
	ErrPromotionFailed = errors.New("promotion failed")
)

// PromoteError wraps a record-write failure during promotion. It unwraps to
// ErrPromotionFailed for errors.Is classification.
type PromoteError struct {
	Tag version.Tag
	Err error
}

// Error formats the promotion failure.
func (e *PromoteError) Error() string {
	return fmt.Sprintf("promoting %s: %v", e.Tag, e.Err)
}

// Unwrap returns ErrPromotionFailed.
func (e *PromoteError) Unwrap() error { return ErrPromotionFailed }

// Coordinator promotes finalized version directories to active and keeps
// disk usage bounded through retention pruning.
type Coordinator struct {
	store  *store.Store
	logger *log.Logger
}

// NewCoordinator creates a Coordinator over the given store. A nil logger
// falls back to the package default.
func NewCoordinator(s *store.Store, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.Default()
	}
	return &Coordinator{store: s, logger: logger}
}

// Promote makes rec.Version the active version by rewriting the
// current-version record. Precondition: the version's directory is finalized;
// otherwise ErrNotFinalized is returned and nothing is written. Only after
// the atomic record write succeeds is the swap complete.
func (c *Coordinator) Promote(rec store.Record) error {
	if !c.store.HasFinalized(rec.Version) {
		return fmt.Errorf("%w: %s", ErrNotFinalized, rec.Version)
	}

	if err := c.store.WriteCurrent(rec); err != nil {
		return &PromoteError{Tag: rec.Version, Err: err}
	}

	c.logger.Info("promoted version", "version", rec.Version.String())
	return nil
}

// Prune deletes the oldest finalized version directories until at most
// retain remain, never touching the active version. Deletion failures are
// logged and skipped: stale extra versions are a disk-space concern, not a
// correctness one. Returns the tags actually removed.
func (c *Coordinator) Prune(active version.Tag, retain int) ([]version.Tag, error) {
	if retain < 1 {
		retain = DefaultRetainCount
	}

	tags, err := c.store.ListVersions()
	if err != nil {
		return nil, fmt.Errorf("listing versions for retention: %w", err)
	}

	remaining := len(tags)
	var pruned []version.Tag
	for _, tag := range tags { // ascending: oldest first
		if remaining <= retain {
			break
		}
		if tag == active {
			continue
		}

		dir := c.store.Paths().VersionDir(tag)
		if err := os.RemoveAll(dir); err != nil {
			c.logger.Warn("could not prune version directory", "version", tag.String(), "err", err)
			continue
		}

		c.logger.Debug("pruned version directory", "version", tag.String())
		pruned = append(pruned, tag)
		remaining--
	}

	return pruned, nil
}
