// SPDX-License-Identifier: MPL-2.0

package update

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrVerificationFailed indicates the downloaded artifact does not match the
// descriptor's digest or byte size.
var ErrVerificationFailed = errors.New("artifact verification failed")

// DigestError provides details about a verification failure. It wraps
// ErrVerificationFailed so callers can use errors.Is for classification.
type DigestError struct {
	Path         string
	Expected     string // expected hex digest, or "" for a size mismatch
	Got          string
	ExpectedSize int64
	GotSize      int64
}

// Error returns a human-readable description of the mismatch, showing both
// expected and actual values for debugging.
func (e *DigestError) Error() string {
	if e.Expected != "" {
		return fmt.Sprintf("digest mismatch for %s\nExpected: %s\nGot:      %s", e.Path, e.Expected, e.Got)
	}
	return fmt.Sprintf("size mismatch for %s: expected %d bytes, got %d", e.Path, e.ExpectedSize, e.GotSize)
}

// Unwrap returns ErrVerificationFailed so callers can use errors.Is.
func (e *DigestError) Unwrap() error { return ErrVerificationFailed }

// VerifyFile checks the file at path against the expected SHA256 hex digest
// and byte size. The size is compared first since it is cheap; either
// mismatch yields a *DigestError wrapping ErrVerificationFailed.
func VerifyFile(path, expectedHash string, expectedSize int64) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() != expectedSize {
		return &DigestError{
			Path:         path,
			ExpectedSize: expectedSize,
			GotSize:      info.Size(),
		}
	}

	got, err := ComputeFileHash(path)
	if err != nil {
		return err
	}
	if !strings.EqualFold(got, expectedHash) {
		return &DigestError{
			Path:     path,
			Expected: strings.ToLower(expectedHash),
			Got:      got,
		}
	}

	return nil
}

// ComputeFileHash computes and returns the lowercase hex-encoded SHA256
// digest of the file at path. The file is streamed through the hash function
// to avoid loading it into memory.
func ComputeFileHash(path string) (_ string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		// Read-only file handle; close errors are exotic.
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing file %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// isValidHexHash checks if s is a valid 64-character hex-encoded SHA256 hash.
func isValidHexHash(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
