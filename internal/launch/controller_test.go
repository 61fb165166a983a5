// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vlaunch-cli/internal/store"
	"vlaunch-cli/internal/update"
	"vlaunch-cli/internal/version"
)

const testEntrypoint = "CrawlProgram.exe"

// fakeRunner records the spawn request instead of starting a process.
type fakeRunner struct {
	exe     string
	workDir string
	started int
	err     error
}

func (r *fakeRunner) Start(exePath, workDir string) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.exe = exePath
	r.workDir = workDir
	r.started++
	return 4242, nil
}

// buildArchive produces a zip payload containing the entrypoint executable.
func buildArchive(t *testing.T, entryContent string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	hdr := &zip.FileHeader{Name: testEntrypoint, Method: zip.Deflate}
	hdr.SetMode(0o755)
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		t.Fatalf("creating zip entry: %v", err)
	}
	if _, err := w.Write([]byte(entryContent)); err != nil {
		t.Fatalf("writing zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip writer: %v", err)
	}
	return buf.Bytes()
}

// newUpdateServer serves both the version-check endpoint and the artifact
// download for a single program. latest == "" means the check endpoint fails
// with a server error.
func newUpdateServer(t *testing.T, programID, latest string, archive []byte) *httptest.Server {
	t.Helper()

	digest := sha256.Sum256(archive)

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/launcher/api/v1/programs/" + programID + "/latest":
			if latest == "" {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"program_id":     programID,
				"latest_version": latest,
				"asset": map[string]any{
					"url":    srv.URL + "/artifact.zip",
					"sha256": hex.EncodeToString(digest[:]),
					"size":   len(archive),
				},
			})
		case "/artifact.zip":
			_, _ = w.Write(archive)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	return srv
}

// seedInstalled materializes a finalized version directory with an entrypoint
// and writes the current-version record pointing at it.
func seedInstalled(t *testing.T, s *store.Store, v, serverURL string) store.Record {
	t.Helper()

	tag := version.MustParse(v)
	dir := s.Paths().VersionDir(tag)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir version dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, testEntrypoint), []byte("binary "+v), 0o755); err != nil {
		t.Fatalf("writing entrypoint: %v", err)
	}

	rec := store.Record{ProgramID: "crawlprogram", Version: tag, ServerURL: serverURL}
	if err := s.WriteCurrent(rec); err != nil {
		t.Fatalf("WriteCurrent: %v", err)
	}
	return rec
}

func newTestStoreAt(t *testing.T) *store.Store {
	t.Helper()

	paths := store.PathsUnder(t.TempDir())
	if err := paths.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	return store.New(paths)
}

func testOptions() Options {
	return Options{
		ProgramID:  "crawlprogram",
		Entrypoint: testEntrypoint,
	}
}

func TestRun_UpToDate(t *testing.T) {
	s := newTestStoreAt(t)
	srv := newUpdateServer(t, "crawlprogram", "1.0.0", nil)
	seedInstalled(t, s, "1.0.0", srv.URL)

	runner := &fakeRunner{}
	ctrl := NewController(s, update.NewClient(srv.URL), runner, testOptions(), nil)

	res, err := ctrl.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.State != StateRunning {
		t.Errorf("terminal state = %s, want %s", res.State, StateRunning)
	}
	if res.Version != version.MustParse("1.0.0") {
		t.Errorf("launched version = %s, want 1.0.0", res.Version)
	}
	if res.PID != 4242 {
		t.Errorf("pid = %d", res.PID)
	}
	if runner.workDir != s.Paths().VersionDir(res.Version) {
		t.Errorf("workDir = %s, want the active version directory", runner.workDir)
	}

	// The up-to-date flow performs no filesystem writes: still exactly one
	// version directory and the record unchanged.
	tags, err := s.ListVersions()
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(tags) != 1 {
		t.Errorf("versions on disk = %v, want just 1.0.0", tags)
	}
}

func TestRun_CheckFailedLaunchesCurrent(t *testing.T) {
	s := newTestStoreAt(t)
	srv := newUpdateServer(t, "crawlprogram", "", nil) // check endpoint errors
	seedInstalled(t, s, "1.0.0", srv.URL)

	runner := &fakeRunner{}
	ctrl := NewController(s, update.NewClient(srv.URL), runner, testOptions(), nil)

	res, err := ctrl.Run(context.Background())
	if err != nil {
		t.Fatalf("Run with failing check endpoint: %v", err)
	}
	if res.State != StateRunning || res.Version != version.MustParse("1.0.0") {
		t.Errorf("result = %+v, want Running 1.0.0", res)
	}
	if runner.started != 1 {
		t.Errorf("runner starts = %d, want 1", runner.started)
	}
}

func TestRun_DeclinedLaunchesCurrent(t *testing.T) {
	s := newTestStoreAt(t)
	archive := buildArchive(t, "new binary")
	srv := newUpdateServer(t, "crawlprogram", "1.1.0", archive)
	seedInstalled(t, s, "1.0.0", srv.URL)

	opts := testOptions()
	opts.ConfirmUpdate = func(context.Context, version.Tag, version.Tag) (bool, error) {
		return false, nil
	}

	runner := &fakeRunner{}
	ctrl := NewController(s, update.NewClient(srv.URL), runner, opts, nil)

	res, err := ctrl.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Version != version.MustParse("1.0.0") {
		t.Errorf("launched version = %s, want the declined-update current 1.0.0", res.Version)
	}

	rec, err := s.ReadCurrent()
	if err != nil {
		t.Fatalf("ReadCurrent: %v", err)
	}
	if rec.Version != version.MustParse("1.0.0") {
		t.Errorf("record version = %s, want unchanged 1.0.0", rec.Version)
	}
}

func TestRun_NoConfirmFuncDeclines(t *testing.T) {
	s := newTestStoreAt(t)
	archive := buildArchive(t, "new binary")
	srv := newUpdateServer(t, "crawlprogram", "1.1.0", archive)
	seedInstalled(t, s, "1.0.0", srv.URL)

	runner := &fakeRunner{}
	ctrl := NewController(s, update.NewClient(srv.URL), runner, testOptions(), nil)

	res, err := ctrl.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Version != version.MustParse("1.0.0") {
		t.Errorf("launched version = %s, want 1.0.0 (non-interactive declines)", res.Version)
	}
}

func TestRun_AutoUpdateInstallsAndLaunches(t *testing.T) {
	s := newTestStoreAt(t)
	archive := buildArchive(t, "new binary")
	srv := newUpdateServer(t, "crawlprogram", "1.1.0", archive)
	seedInstalled(t, s, "1.0.0", srv.URL)

	opts := testOptions()
	opts.AutoUpdate = true

	runner := &fakeRunner{}
	ctrl := NewController(s, update.NewClient(srv.URL), runner, opts, nil)

	res, err := ctrl.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.State != StateRunning || res.Version != version.MustParse("1.1.0") {
		t.Fatalf("result = %+v, want Running 1.1.0", res)
	}
	if runner.workDir != s.Paths().VersionDir(version.MustParse("1.1.0")) {
		t.Errorf("workDir = %s, want new version directory", runner.workDir)
	}

	rec, err := s.ReadCurrent()
	if err != nil {
		t.Fatalf("ReadCurrent: %v", err)
	}
	if rec.Version != version.MustParse("1.1.0") {
		t.Errorf("record version = %s, want 1.1.0", rec.Version)
	}

	content, err := os.ReadFile(runner.exe)
	if err != nil {
		t.Fatalf("reading launched entrypoint: %v", err)
	}
	if string(content) != "new binary" {
		t.Errorf("launched entrypoint content = %q, want the updated binary", content)
	}

	// The install lock is released after the flow.
	if _, err := store.AcquireInstallLock(s.Paths(), 0); err != nil {
		t.Errorf("install lock still held after Run: %v", err)
	}
}

func TestRun_RetentionAfterUpdate(t *testing.T) {
	s := newTestStoreAt(t)
	archive := buildArchive(t, "new binary")
	srv := newUpdateServer(t, "crawlprogram", "1.2.0", archive)

	// Two historical versions already on disk, 1.1.0 active.
	seedInstalled(t, s, "1.0.0", srv.URL)
	seedInstalled(t, s, "1.1.0", srv.URL)

	opts := testOptions()
	opts.AutoUpdate = true
	opts.RetainCount = 2

	ctrl := NewController(s, update.NewClient(srv.URL), &fakeRunner{}, opts, nil)
	if _, err := ctrl.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	tags, err := s.ListVersions()
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	want := []version.Tag{version.MustParse("1.1.0"), version.MustParse("1.2.0")}
	if len(tags) != len(want) {
		t.Fatalf("versions on disk = %v, want %v", tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Fatalf("versions on disk = %v, want %v", tags, want)
		}
	}
}

func TestRun_VerificationFailureFallsBack(t *testing.T) {
	s := newTestStoreAt(t)
	archive := buildArchive(t, "new binary")

	// Serve a descriptor whose digest will not match the artifact bytes.
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/launcher/api/v1/programs/crawlprogram/latest":
			fmt.Fprintf(w, `{
				"program_id": "crawlprogram",
				"latest_version": "1.1.0",
				"asset": {"url": %q, "sha256": %q, "size": %d}
			}`, srv.URL+"/artifact.zip", sha256Of([]byte("other bytes")), len(archive))
		case "/artifact.zip":
			_, _ = w.Write(archive)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	seedInstalled(t, s, "1.0.0", srv.URL)

	opts := testOptions()
	opts.AutoUpdate = true

	runner := &fakeRunner{}
	ctrl := NewController(s, update.NewClient(srv.URL), runner, opts, nil)

	res, err := ctrl.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Fell back to the prior version; the record and versions tree are
	// untouched by the failed attempt.
	if res.Version != version.MustParse("1.0.0") {
		t.Errorf("launched version = %s, want fallback 1.0.0", res.Version)
	}
	rec, err := s.ReadCurrent()
	if err != nil {
		t.Fatalf("ReadCurrent: %v", err)
	}
	if rec.Version != version.MustParse("1.0.0") {
		t.Errorf("record version = %s, want unchanged 1.0.0", rec.Version)
	}
	tags, err := s.ListVersions()
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(tags) != 1 {
		t.Errorf("versions on disk = %v, want only 1.0.0", tags)
	}
}

func TestRun_LockHeldSkipsInstall(t *testing.T) {
	s := newTestStoreAt(t)
	archive := buildArchive(t, "new binary")
	srv := newUpdateServer(t, "crawlprogram", "1.1.0", archive)
	seedInstalled(t, s, "1.0.0", srv.URL)

	lock, err := store.AcquireInstallLock(s.Paths(), time.Hour)
	if err != nil {
		t.Fatalf("pre-acquiring lock: %v", err)
	}
	defer func() { _ = lock.Release() }()

	opts := testOptions()
	opts.AutoUpdate = true
	opts.LockStaleAfter = time.Hour

	runner := &fakeRunner{}
	ctrl := NewController(s, update.NewClient(srv.URL), runner, opts, nil)

	res, err := ctrl.Run(context.Background())
	if err != nil {
		t.Fatalf("Run with held lock: %v", err)
	}
	if res.Version != version.MustParse("1.0.0") {
		t.Errorf("launched version = %s, want 1.0.0 (install skipped)", res.Version)
	}
	if runner.started != 1 {
		t.Errorf("runner starts = %d, want 1", runner.started)
	}
}

func TestRun_FreshInstall(t *testing.T) {
	s := newTestStoreAt(t)
	archive := buildArchive(t, "first binary")
	srv := newUpdateServer(t, "crawlprogram", "1.0.0", archive)

	opts := testOptions()
	opts.AutoUpdate = true
	opts.ServerURL = srv.URL

	runner := &fakeRunner{}
	ctrl := NewController(s, update.NewClient(srv.URL), runner, opts, nil)

	res, err := ctrl.Run(context.Background())
	if err != nil {
		t.Fatalf("Run on empty store: %v", err)
	}

	if res.State != StateRunning || res.Version != version.MustParse("1.0.0") {
		t.Fatalf("result = %+v, want Running 1.0.0", res)
	}

	rec, err := s.ReadCurrent()
	if err != nil {
		t.Fatalf("ReadCurrent: %v", err)
	}
	if rec.ProgramID != "crawlprogram" || rec.ServerURL != srv.URL {
		t.Errorf("record = %+v, want configured identity recorded", rec)
	}
}

func TestRun_NothingInstalledAndCheckFails(t *testing.T) {
	s := newTestStoreAt(t)
	srv := newUpdateServer(t, "crawlprogram", "", nil)

	ctrl := NewController(s, update.NewClient(srv.URL), &fakeRunner{}, testOptions(), nil)

	res, err := ctrl.Run(context.Background())
	if !errors.Is(err, ErrLaunchFailed) {
		t.Fatalf("Run = %v, want ErrLaunchFailed", err)
	}
	if res.State != StateLaunchFailed {
		t.Errorf("terminal state = %s, want %s", res.State, StateLaunchFailed)
	}
}

func TestRun_SpawnFailureIsFatal(t *testing.T) {
	s := newTestStoreAt(t)
	srv := newUpdateServer(t, "crawlprogram", "1.0.0", nil)
	seedInstalled(t, s, "1.0.0", srv.URL)

	runner := &fakeRunner{err: errors.New("exec format error")}
	ctrl := NewController(s, update.NewClient(srv.URL), runner, testOptions(), nil)

	res, err := ctrl.Run(context.Background())
	if !errors.Is(err, ErrLaunchFailed) {
		t.Fatalf("Run = %v, want ErrLaunchFailed", err)
	}
	if res.State != StateLaunchFailed {
		t.Errorf("terminal state = %s, want %s", res.State, StateLaunchFailed)
	}
}

func sha256Of(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
