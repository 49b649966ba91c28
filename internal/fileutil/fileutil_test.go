package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAppendFileCreatesParent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "history_abc.log")

	if err := AppendFile(path, []byte("one\n")); err != nil {
		t.Fatal(err)
	}
	if err := AppendFile(path, []byte("two\n")); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "one\ntwo\n" {
		t.Fatalf("content mismatch: got %q", got)
	}
}

func TestResetFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "active_worker.log")
	if err := AppendFile(path, []byte("stale")); err != nil {
		t.Fatal(err)
	}
	if err := ResetFile(path); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Fatalf("expected empty file, got %d bytes", info.Size())
	}
}

func TestRemoveQuietly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.bin")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	RemoveQuietly(path)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, stat err = %v", err)
	}
	RemoveQuietly(path)
	RemoveQuietly("")
}

func TestTailLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.log")
	if err := os.WriteFile(path, []byte("a\nb\nc\nd\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	lines, err := TailLines(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 || lines[0] != "c" || lines[1] != "d" {
		t.Fatalf("unexpected tail %v", lines)
	}

	all, err := TailLines(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Fatalf("expected all lines, got %v", all)
	}

	missing, err := TailLines(filepath.Join(t.TempDir(), "missing.log"), 5)
	if err != nil || missing != nil {
		t.Fatalf("missing file: lines=%v err=%v", missing, err)
	}
}

func TestLastLine(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Downloading track 1\nDownloading track 2\n", "Downloading track 2"},
		{"progress 10%\rprogress 55%\r", "progress 55%"},
		{"  \n\n", ""},
		{"single", "single"},
	}
	for _, tt := range tests {
		if got := LastLine([]byte(tt.in)); got != tt.want {
			t.Errorf("LastLine(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
