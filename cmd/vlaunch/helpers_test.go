// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"

	"vlaunch-cli/internal/config"
	"vlaunch-cli/internal/store"
	"vlaunch-cli/internal/version"
)

// newTestEnv builds a cmdEnv over a temp directory with default config and a
// silent logger, bypassing newCmdEnv's executable-relative path resolution.
func newTestEnv(t *testing.T) *cmdEnv {
	t.Helper()

	paths := store.PathsUnder(t.TempDir())
	if err := paths.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}

	return &cmdEnv{
		cfg:    config.DefaultConfig(),
		paths:  paths,
		store:  store.New(paths),
		logger: log.New(io.Discard),
	}
}

// buildTestArchive zips a single executable entry and returns the archive
// bytes together with their hex digest.
func buildTestArchive(t *testing.T, entryName, content string) (data []byte, digest string) {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	hdr := &zip.FileHeader{Name: entryName, Method: zip.Deflate}
	hdr.SetMode(0o755)
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		t.Fatalf("creating zip entry: %v", err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		t.Fatalf("writing zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}

	sum := sha256.Sum256(buf.Bytes())
	return buf.Bytes(), hex.EncodeToString(sum[:])
}

// newUpdateServer serves the latest-version endpoint and the artifact it
// points at. An empty latest version makes the endpoint fail.
func newUpdateServer(t *testing.T, programID, latest string, archive []byte, digest string) *httptest.Server {
	t.Helper()

	var srv *httptest.Server

	mux := http.NewServeMux()
	mux.HandleFunc(fmt.Sprintf("/launcher/api/v1/programs/%s/latest", programID),
		func(w http.ResponseWriter, r *http.Request) {
			if latest == "" {
				http.Error(w, "unavailable", http.StatusInternalServerError)
				return
			}
			resp := map[string]any{
				"program_id":     programID,
				"latest_version": latest,
				"asset": map[string]any{
					"url":    srv.URL + "/artifact.zip",
					"sha256": digest,
					"size":   len(archive),
				},
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(resp)
		})
	mux.HandleFunc("/artifact.zip", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// seedVersion creates a finalized version directory with a dummy entrypoint.
func seedVersion(t *testing.T, paths store.Paths, tag version.Tag, entryName string) {
	t.Helper()

	dir := paths.VersionDir(tag)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("creating version dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, entryName), []byte("binary"), 0o755); err != nil {
		t.Fatalf("writing entrypoint: %v", err)
	}
}
