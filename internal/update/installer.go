// SPDX-License-Identifier: MPL-2.0

package update

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"vlaunch-cli/internal/store"
)

const (
	// payloadName is the downloaded archive's filename inside the staging
	// directory. The leading dot keeps it apart from extracted payload
	// contents; it is removed before finalize.
	payloadName = ".payload.zip"

	// maxEntryBytes is the upper bound on a single extracted file (500 MB).
	// Prevents decompression bombs when expanding the release archive.
	maxEntryBytes = 500 << 20

	// downloadChunkBytes is the copy buffer size for the artifact transfer;
	// progress is reported once per chunk.
	downloadChunkBytes = 256 << 10
)

// ErrInstallFailed indicates a filesystem or extraction failure while
// materializing a version directory. The staging area is cleaned up; the
// active version is unaffected.
var ErrInstallFailed = errors.New("install failed")

type (
	// Installer turns an update Descriptor into a finalized version
	// directory under the launcher's versions tree.
	Installer struct {
		client   *Client
		paths    store.Paths
		progress ProgressFunc
	}

	// InstallerOption configures an Installer during construction.
	InstallerOption func(*Installer)

	// Session is a single staged install attempt. Steps must run in order:
	// Download, Verify, Expand, Finalize. Any failure (or an explicit Abort)
	// removes the staging directory so no partial state survives.
	Session struct {
		inst      *Installer
		desc      Descriptor
		staging   string
		payload   string
		finalized bool
	}
)

// WithProgress sets the progress callback for download and install steps.
func WithProgress(f ProgressFunc) InstallerOption {
	return func(i *Installer) {
		i.progress = f
	}
}

// NewInstaller creates an Installer that stages into the versions tree
// described by paths and downloads through client.
func NewInstaller(client *Client, paths store.Paths, opts ...InstallerOption) *Installer {
	i := &Installer{
		client: client,
		paths:  paths,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Begin creates the staging directory for the descriptor's version and
// returns a Session. A leftover staging directory from a crashed prior
// attempt is removed first: the .tmp suffix makes it unambiguously
// untrusted.
func (i *Installer) Begin(desc Descriptor) (*Session, error) {
	staging := i.paths.StagingDir(desc.Version)

	if err := os.RemoveAll(staging); err != nil {
		return nil, fmt.Errorf("%w: clearing stale staging %s: %v", ErrInstallFailed, staging, err)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating staging %s: %v", ErrInstallFailed, staging, err)
	}

	return &Session{
		inst:    i,
		desc:    desc,
		staging: staging,
		payload: filepath.Join(staging, payloadName),
	}, nil
}

// Install runs the full staged pipeline for desc and returns the finalized
// directory path. On any failure the staging directory is removed and the
// versions tree is exactly as it was before the call.
func (i *Installer) Install(ctx context.Context, desc Descriptor) (_ string, err error) {
	sess, err := i.Begin(desc)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			sess.Abort()
		}
	}()

	if err = sess.Download(ctx); err != nil {
		return "", err
	}
	if err = sess.Verify(); err != nil {
		return "", err
	}
	if err = sess.Expand(); err != nil {
		return "", err
	}
	return sess.Finalize()
}

// Staging returns the staging directory path of this attempt.
func (s *Session) Staging() string { return s.staging }

// Download streams the descriptor's artifact into the staging directory,
// reporting byte progress. Cancellation via ctx aborts the transfer and
// deletes the staging directory synchronously before returning.
func (s *Session) Download(ctx context.Context) error {
	body, total, err := s.inst.client.Download(ctx, s.desc.URL)
	if err != nil {
		s.Abort()
		return fmt.Errorf("%w: %v", ErrInstallFailed, err)
	}
	defer func() { _ = body.Close() }() // read-only HTTP response body

	if total <= 0 {
		// Server did not report a length; the descriptor size is as good.
		total = s.desc.Size
	}

	if err := s.copyPayload(ctx, body, total); err != nil {
		s.Abort()
		return err
	}
	return nil
}

// copyPayload copies the response body to the payload file in chunks,
// emitting progress and honoring cancellation between chunks.
func (s *Session) copyPayload(ctx context.Context, body io.Reader, total int64) (err error) {
	f, err := os.Create(s.payload)
	if err != nil {
		return fmt.Errorf("%w: creating payload file: %v", ErrInstallFailed, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("%w: closing payload file: %v", ErrInstallFailed, closeErr)
		}
	}()

	buf := make([]byte, downloadChunkBytes)
	var done int64
	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("download canceled: %w", ctxErr)
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			if _, writeErr := f.Write(buf[:n]); writeErr != nil {
				return fmt.Errorf("%w: writing payload: %v", ErrInstallFailed, writeErr)
			}
			done += int64(n)
			s.inst.progress.emit(ProgressEvent{
				Phase:      PhaseDownloading,
				BytesDone:  done,
				BytesTotal: total,
			})
		}
		if errors.Is(readErr, io.EOF) {
			return nil
		}
		if readErr != nil {
			// A canceled context surfaces as a body read error; report it as
			// cancellation rather than a generic transfer failure.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("download canceled: %w", ctxErr)
			}
			return fmt.Errorf("%w: reading artifact: %v", ErrInstallFailed, readErr)
		}
	}
}

// Verify checks the downloaded payload against the descriptor's digest and
// size. On mismatch the staging directory is deleted and a *DigestError is
// returned; no automatic retry is attempted.
func (s *Session) Verify() error {
	s.inst.progress.emit(ProgressEvent{Phase: PhaseVerifying, BytesTotal: s.desc.Size})

	if err := VerifyFile(s.payload, s.desc.SHA256, s.desc.Size); err != nil {
		s.Abort()
		if errors.Is(err, ErrVerificationFailed) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrInstallFailed, err)
	}
	return nil
}

// Expand extracts the verified payload into the staging directory's final
// layout and removes the archive file.
func (s *Session) Expand() error {
	s.inst.progress.emit(ProgressEvent{Phase: PhaseExpanding})

	if err := extractZip(s.payload, s.staging); err != nil {
		s.Abort()
		return fmt.Errorf("%w: %v", ErrInstallFailed, err)
	}
	if err := os.Remove(s.payload); err != nil {
		s.Abort()
		return fmt.Errorf("%w: removing payload archive: %v", ErrInstallFailed, err)
	}
	return nil
}

// Finalize renames the staging directory to its permanent name, the single
// atomic transition from untrusted to trusted. A rename collision with a
// stale target from a prior attempt is resolved by removing the target and
// retrying once.
func (s *Session) Finalize() (string, error) {
	s.inst.progress.emit(ProgressEvent{Phase: PhaseFinalizing})

	target := s.inst.paths.VersionDir(s.desc.Version)

	err := os.Rename(s.staging, target)
	if err != nil {
		// A finalized directory of the same version can linger when an
		// earlier attempt finalized but never promoted. It is stale by
		// definition: this attempt's content is verified and newer.
		if removeErr := os.RemoveAll(target); removeErr != nil {
			s.Abort()
			return "", fmt.Errorf("%w: removing stale target %s: %v", ErrInstallFailed, target, removeErr)
		}
		if err = os.Rename(s.staging, target); err != nil {
			s.Abort()
			return "", fmt.Errorf("%w: finalizing %s: %v", ErrInstallFailed, target, err)
		}
	}

	s.finalized = true
	return target, nil
}

// Abort deletes the staging directory. Safe to call multiple times and after
// Finalize (where it is a no-op because the directory was renamed away).
func (s *Session) Abort() {
	if s.finalized {
		return
	}
	// Best-effort: a leftover .tmp directory is untrusted and will be
	// cleared by the next attempt anyway.
	_ = os.RemoveAll(s.staging)
}

// extractZip expands the archive at archivePath into destDir. Entry paths are
// confined to destDir and individual entries are size-capped.
func extractZip(archivePath, destDir string) (err error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer func() {
		// Read-only archive handle; close errors are exotic.
		_ = r.Close()
	}()

	for _, f := range r.File {
		if err := extractZipEntry(f, destDir); err != nil {
			return err
		}
	}
	return nil
}

// extractZipEntry writes a single archive entry under destDir, rejecting
// entries that would escape it.
func extractZipEntry(f *zip.File, destDir string) error {
	name := filepath.FromSlash(f.Name)
	if !filepath.IsLocal(name) || strings.Contains(f.Name, "..") {
		return fmt.Errorf("archive entry %q escapes extraction root", f.Name)
	}
	target := filepath.Join(destDir, name)

	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", f.Name, err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening archive entry %s: %w", f.Name, err)
	}
	defer func() { _ = src.Close() }() // read-only entry handle

	// Preserve the entry's permission bits so extracted executables stay
	// executable.
	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}

	n, copyErr := io.Copy(dst, io.LimitReader(src, maxEntryBytes+1))
	if closeErr := dst.Close(); copyErr == nil && closeErr != nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		return fmt.Errorf("extracting %s: %w", f.Name, copyErr)
	}
	if n > maxEntryBytes {
		return fmt.Errorf("archive entry %s exceeds size limit", f.Name)
	}
	return nil
}
