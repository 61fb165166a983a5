// SPDX-License-Identifier: MPL-2.0

// Package version defines the three-component version tag used to name
// installed version directories and to compare local installs against the
// remote authority.
package version

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// ErrInvalidTag indicates a version string that is not a plain
// major.minor.patch release tag.
var ErrInvalidTag = errors.New("invalid version tag")

// StagingSuffix marks a version directory that is still being written and
// must never be trusted. The suffix is the sole distinction between staging
// and finalized directories on disk.
const StagingSuffix = ".tmp"

// Tag is an ordered (major, minor, patch) release identifier. The zero value
// is not a valid tag; construct one through Parse or ParseDirName.
type Tag struct {
	Major int
	Minor int
	Patch int
}

// Parse converts a version string such as "1.2.3" or "v1.2.3" into a Tag.
// Exactly three numeric components are required; pre-release or build
// metadata suffixes are rejected because installed versions are always plain
// releases.
func Parse(s string) (Tag, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Tag{}, fmt.Errorf("%w: empty string", ErrInvalidTag)
	}

	bare := strings.TrimPrefix(strings.TrimPrefix(trimmed, "v"), "V")
	if strings.Count(bare, ".") != 2 {
		return Tag{}, fmt.Errorf("%w: expected major.minor.patch, got %q", ErrInvalidTag, s)
	}

	v, err := goversion.NewVersion(bare)
	if err != nil {
		return Tag{}, fmt.Errorf("%w: %q: %v", ErrInvalidTag, s, err)
	}
	if v.Prerelease() != "" || v.Metadata() != "" {
		return Tag{}, fmt.Errorf("%w: %q carries pre-release or metadata suffix", ErrInvalidTag, s)
	}

	seg := v.Segments()
	return Tag{Major: seg[0], Minor: seg[1], Patch: seg[2]}, nil
}

// MustParse is Parse for statically known inputs; it panics on error.
func MustParse(s string) Tag {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// String renders the tag in dotted form without a "v" prefix, matching the
// format persisted in the current-version record.
func (t Tag) String() string {
	return fmt.Sprintf("%d.%d.%d", t.Major, t.Minor, t.Patch)
}

// DirName renders the tag as a finalized version directory name,
// e.g. "v1_2_3".
func (t Tag) DirName() string {
	return fmt.Sprintf("v%d_%d_%d", t.Major, t.Minor, t.Patch)
}

// StagingDirName renders the tag as an in-progress staging directory name,
// e.g. "v1_2_3.tmp".
func (t Tag) StagingDirName() string {
	return t.DirName() + StagingSuffix
}

// Compare returns -1, 0, or +1 when t is older than, equal to, or newer than
// other. Ordering is lexicographic over (major, minor, patch).
func (t Tag) Compare(other Tag) int {
	if c := cmpInt(t.Major, other.Major); c != 0 {
		return c
	}
	if c := cmpInt(t.Minor, other.Minor); c != 0 {
		return c
	}
	return cmpInt(t.Patch, other.Patch)
}

// NewerThan reports whether t is strictly newer than other.
func (t Tag) NewerThan(other Tag) bool { return t.Compare(other) > 0 }

// MarshalText implements encoding.TextMarshaler so tags embed directly in
// TOML documents.
func (t Tag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tag) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseDirName converts a finalized version directory name ("v1_2_3") back
// into a Tag. Staging names and anything else that does not match the naming
// scheme return ok=false; callers use this to skip foreign entries when
// enumerating the versions directory.
func ParseDirName(name string) (Tag, bool) {
	if !strings.HasPrefix(name, "v") || strings.HasSuffix(name, StagingSuffix) {
		return Tag{}, false
	}

	dotted := strings.ReplaceAll(strings.TrimPrefix(name, "v"), "_", ".")
	if strings.Count(dotted, ".") != 2 {
		return Tag{}, false
	}

	t, err := Parse(dotted)
	if err != nil {
		return Tag{}, false
	}

	// Round-trip check rejects names with leading zeros or stray characters
	// that Parse would otherwise normalize away.
	if t.DirName() != name {
		return Tag{}, false
	}
	return t, true
}

// SortAscending orders tags oldest-first in place.
func SortAscending(tags []Tag) {
	slices.SortFunc(tags, Tag.Compare)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
