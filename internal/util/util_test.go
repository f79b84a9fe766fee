// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestWriteFileAtomic_Basic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counts.json")
	data := []byte(`{"red":10}`)

	if err := WriteFileAtomic(path, data, 0644); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(content) != string(data) {
		t.Errorf("Content mismatch: got %q, want %q", content, data)
	}
}

func TestWriteFileAtomic_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "deep", "counts.json")

	if err := WriteFileAtomic(path, []byte("{}"), 0644); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("File not created: %v", err)
	}
}

func TestWriteFileAtomic_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counts.json")

	if err := WriteFileAtomic(path, []byte("initial"), 0644); err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("updated"), 0644); err != nil {
		t.Fatalf("Second write failed: %v", err)
	}

	content, _ := os.ReadFile(path)
	if string(content) != "updated" {
		t.Errorf("Content not updated: got %q", content)
	}
}

// TestWriteFileAtomic_CrashBeforeRename simulates the process dying after the
// temp file is written but before it replaces the target.
func TestWriteFileAtomic_CrashBeforeRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "counts.json")

	if err := WriteFileAtomic(path, []byte("previous complete snapshot"), 0644); err != nil {
		t.Fatalf("seed write failed: %v", err)
	}

	crash := errors.New("simulated crash")
	renameFile = func(string, string) error { return crash }
	t.Cleanup(func() { renameFile = os.Rename })

	err := WriteFileAtomic(path, []byte("new snapshot that never lands"), 0644)
	if !errors.Is(err, crash) {
		t.Fatalf("expected simulated crash, got %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("target unreadable after crash: %v", err)
	}
	if string(content) != "previous complete snapshot" {
		t.Errorf("target changed after crash: %q", content)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	got, err := ExpandHome("~/.streamtally/counts.json")
	if err != nil {
		t.Fatalf("ExpandHome failed: %v", err)
	}
	if want := filepath.Join(home, ".streamtally", "counts.json"); got != want {
		t.Errorf("ExpandHome = %q, want %q", got, want)
	}

	if got, _ := ExpandHome("/tmp/x"); got != "/tmp/x" {
		t.Errorf("absolute path changed: %q", got)
	}
}

// =============================================================================
// DISPLAY WIDTH TESTS
// =============================================================================

func TestClipWidth(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"hello", 0, ""},
		{"hello", -1, ""},
		{"日本語", 4, "日本"},
		{"日本語", 3, "日"},
	}

	for _, tc := range tests {
		if got := ClipWidth(tc.in, tc.max); got != tc.want {
			t.Errorf("ClipWidth(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}

func TestWidth(t *testing.T) {
	if got := Width("abc"); got != 3 {
		t.Errorf("Width(abc) = %d", got)
	}
	if got := Width("日本"); got != 4 {
		t.Errorf("Width(日本) = %d", got)
	}
}

func TestCenterOffset(t *testing.T) {
	tests := []struct{ outer, inner, want int }{
		{80, 20, 30},
		{81, 20, 30},
		{10, 30, 0},
		{0, 0, 0},
	}
	for _, tc := range tests {
		if got := CenterOffset(tc.outer, tc.inner); got != tc.want {
			t.Errorf("CenterOffset(%d, %d) = %d, want %d", tc.outer, tc.inner, got, tc.want)
		}
	}
}
