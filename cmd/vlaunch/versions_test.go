// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"vlaunch-cli/internal/store"
	"vlaunch-cli/internal/version"
)

func TestRunVersions_ListsWithActiveMarker(t *testing.T) {
	env := newTestEnv(t)
	seedVersion(t, env.paths, version.MustParse("1.0.0"), "app.exe")
	seedVersion(t, env.paths, version.MustParse("1.1.0"), "app.exe")

	rec := store.Record{ProgramID: "crawlprogram", Version: version.MustParse("1.1.0"), ServerURL: "http://localhost"}
	if err := env.store.WriteCurrent(rec); err != nil {
		t.Fatalf("WriteCurrent: %v", err)
	}

	var out bytes.Buffer
	p := versionsParams{stdout: &out, stderr: &out, env: env}
	if err := runVersions(context.Background(), p); err != nil {
		t.Fatalf("runVersions: %v", err)
	}

	if !strings.Contains(out.String(), "1.0.0") || !strings.Contains(out.String(), "1.1.0") {
		t.Errorf("output = %q, want both versions listed", out.String())
	}
	if !strings.Contains(out.String(), "(active)") {
		t.Errorf("output = %q, want active marker", out.String())
	}
}

func TestRunVersions_Empty(t *testing.T) {
	env := newTestEnv(t)

	var out bytes.Buffer
	p := versionsParams{stdout: &out, stderr: &out, env: env}
	if err := runVersions(context.Background(), p); err != nil {
		t.Fatalf("runVersions: %v", err)
	}

	if !strings.Contains(out.String(), "no versions installed") {
		t.Errorf("output = %q, want empty-store message", out.String())
	}
}

func TestRunVersions_Prune(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.RetainCount = 1
	seedVersion(t, env.paths, version.MustParse("1.0.0"), "app.exe")
	seedVersion(t, env.paths, version.MustParse("1.1.0"), "app.exe")

	rec := store.Record{ProgramID: "crawlprogram", Version: version.MustParse("1.1.0"), ServerURL: "http://localhost"}
	if err := env.store.WriteCurrent(rec); err != nil {
		t.Fatalf("WriteCurrent: %v", err)
	}

	var out bytes.Buffer
	p := versionsParams{stdout: &out, stderr: &out, env: env, prune: true}
	if err := runVersions(context.Background(), p); err != nil {
		t.Fatalf("runVersions: %v", err)
	}

	tags, err := env.store.ListVersions()
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(tags) != 1 || tags[0] != version.MustParse("1.1.0") {
		t.Errorf("remaining versions = %v, want only 1.1.0", tags)
	}
	if !strings.Contains(out.String(), "pruned") {
		t.Errorf("output = %q, want prune report", out.String())
	}
}

func TestRunVersions_PruneWithoutActiveRecord(t *testing.T) {
	env := newTestEnv(t)
	seedVersion(t, env.paths, version.MustParse("1.0.0"), "app.exe")

	var out bytes.Buffer
	p := versionsParams{stdout: &out, stderr: &out, env: env, prune: true}
	if err := runVersions(context.Background(), p); err == nil {
		t.Fatal("runVersions pruned without an active version record")
	}
}
