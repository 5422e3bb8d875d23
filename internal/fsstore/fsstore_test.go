package fsstore

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteStreamCreatesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "src_pack_000.webp")
	err := WriteStream(path, FileOptions{}, func(w io.Writer) error {
		_, err := io.Copy(w, strings.NewReader("sticker-bytes"))
		return err
	})
	if err != nil {
		t.Fatalf("WriteStream() error = %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "sticker-bytes" {
		t.Fatalf("content = %q", got)
	}
	assertNoPartFiles(t, filepath.Dir(path))
}

func TestWriteStreamFailureLeavesNothing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "src_pack_001.tgs")
	boom := errors.New("connection reset")
	err := WriteStream(path, FileOptions{}, func(w io.Writer) error {
		_, _ = w.Write([]byte("half"))
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WriteStream() error = %v, want %v", err, boom)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("final file should not exist, stat err = %v", err)
	}
	assertNoPartFiles(t, dir)
}

func TestWriteFileAtomicReplaces(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a.txt")
	if err := WriteFileAtomic(path, []byte("old"), FileOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(path, []byte("new"), FileOptions{FilePerm: 0o600}); err != nil {
		t.Fatal(err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "new" {
		t.Fatalf("content = %q", got)
	}
}

func TestEmptyPathRejected(t *testing.T) {
	t.Parallel()

	if err := WriteFileAtomic(" ", nil, FileOptions{}); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("error = %v, want ErrInvalidPath", err)
	}
	if err := EnsureDir("", 0); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("EnsureDir error = %v", err)
	}
}

func assertNoPartFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".part") {
			t.Fatalf("leftover temp file %s", e.Name())
		}
	}
}
