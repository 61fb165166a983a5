// SPDX-License-Identifier: MPL-2.0

package notice

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"vlaunch-cli/internal/store"
)

// DefaultHideFor is how long an acknowledged notice stays hidden.
const DefaultHideFor = 24 * time.Hour

// ackFileName lives in the data directory next to the version record.
const ackFileName = "notice_ack.toml"

//nolint:gochecknoglobals // Test seam for time.Now().
var ackNow = time.Now

type (
	// AckStore persists notice acknowledgements as notice id → hide-until
	// timestamps.
	AckStore struct {
		path string
	}

	// ackFile is the TOML layout of the acknowledgement store.
	ackFile struct {
		Acks map[string]int64 `toml:"acks"`
	}
)

// NewAckStore creates an AckStore under the launcher's data directory.
func NewAckStore(paths store.Paths) *AckStore {
	return &AckStore{path: filepath.Join(paths.Data, ackFileName)}
}

// Suppressed reports whether the notice was acknowledged recently enough to
// stay hidden. Force notices are never suppressed. An unreadable ack store
// fails open: the notice is shown.
func (s *AckStore) Suppressed(n *Notice) bool {
	if n == nil {
		return true
	}
	if n.Force {
		return false
	}

	acks, err := s.read()
	if err != nil {
		return false
	}

	hideUntil, ok := acks[n.ID]
	return ok && ackNow().Unix() < hideUntil
}

// Acknowledge hides the notice for the given duration. A non-positive
// duration uses the default.
func (s *AckStore) Acknowledge(noticeID string, hideFor time.Duration) error {
	if hideFor <= 0 {
		hideFor = DefaultHideFor
	}

	// A corrupt ack store is not worth failing over; start fresh.
	acks, err := s.read()
	if err != nil || acks == nil {
		acks = make(map[string]int64)
	}
	acks[noticeID] = ackNow().Add(hideFor).Unix()

	data, err := toml.Marshal(ackFile{Acks: acks})
	if err != nil {
		return fmt.Errorf("encoding notice acknowledgements: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return store.WriteFileAtomic(s.path, data)
}

// read loads the acknowledgement map. A missing file is an empty map.
func (s *AckStore) read() (map[string]int64, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading notice acknowledgements: %w", err)
	}

	var f ackFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing notice acknowledgements: %w", err)
	}
	return f.Acks, nil
}
