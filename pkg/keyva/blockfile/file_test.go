package blockfile

import (
	"io"
	"path/filepath"
	"testing"
)

func TestOpenWriteReadAt(t *testing.T) {
	dir := t.TempDir()
	f, err := Open(filepath.Join(dir, "test.dat"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	if _, err := f.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := f.Write([]byte("world")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	buf := make([]byte, 5)
	if _, err := f.ReadAt(buf, 5); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(buf) != "world" {
		t.Errorf("ReadAt = %q, want %q", buf, "world")
	}

	size, err := f.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 10 {
		t.Errorf("Size = %d, want 10", size)
	}
}

func TestTruncate(t *testing.T) {
	f := NewMemFile()
	f.Write([]byte("0123456789"))
	if err := f.Truncate(5); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	size, _ := f.Size()
	if size != 5 {
		t.Errorf("Size after truncate = %d, want 5", size)
	}
}

func TestMemFileWriteAtGrows(t *testing.T) {
	f := NewMemFile()
	if _, err := f.WriteAt([]byte("abc"), 10); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	size, _ := f.Size()
	if size != 13 {
		t.Errorf("Size = %d, want 13", size)
	}
}

func TestMemFileReadPastEnd(t *testing.T) {
	f := NewMemFile()
	f.Write([]byte("abc"))
	buf := make([]byte, 10)
	n, err := f.ReadAt(buf, 0)
	if err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	if n != 3 {
		t.Errorf("n = %d, want 3", n)
	}
}
