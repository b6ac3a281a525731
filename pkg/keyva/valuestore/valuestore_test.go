package valuestore

import (
	"path/filepath"
	"testing"

	"github.com/huynhanx03/keyva/pkg/keyva/keymath"
)

func TestAppendGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	vs, err := Open(filepath.Join(dir, "db.values"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer vs.Close()

	key := keymath.Key{0, 0, 0, 1}
	offset, length, err := vs.Append(key, []byte("hello world"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if offset != 0 {
		t.Errorf("offset = %d, want 0", offset)
	}

	got, err := vs.Get(offset, length)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "hello world" {
		t.Errorf("Get = %q, want %q", got, "hello world")
	}
}

func TestEachVisitsInAppendOrder(t *testing.T) {
	dir := t.TempDir()
	vs, err := Open(filepath.Join(dir, "db.values"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer vs.Close()

	keys := []keymath.Key{{0, 0, 0, 1}, {0, 0, 0, 2}, {0, 0, 0, 3}}
	values := []string{"a", "bb", "ccc"}
	for i, k := range keys {
		if _, _, err := vs.Append(k, []byte(values[i])); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	var seen []string
	err = vs.Each(func(k keymath.Key, v []byte) error {
		seen = append(seen, string(v))
		return nil
	})
	if err != nil {
		t.Fatalf("Each: %v", err)
	}
	if len(seen) != 3 || seen[0] != "a" || seen[1] != "bb" || seen[2] != "ccc" {
		t.Errorf("seen = %v", seen)
	}
}

func TestEachToleratesTruncatedTail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db.values")
	vs, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, _, err := vs.Append(keymath.Key{0, 0, 0, 1}, []byte("complete")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	// Simulate a crash mid-append: a partial header-only tail.
	if _, err := vs.file.Write([]byte{0xff, 0xff}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	count := 0
	err = vs.Each(func(k keymath.Key, v []byte) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("Each: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestAppendBatch(t *testing.T) {
	dir := t.TempDir()
	vs, err := Open(filepath.Join(dir, "db.values"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer vs.Close()

	if _, _, err := vs.Append(keymath.Key{0, 0, 0, 1}, []byte("x")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	size1, _ := vs.Size()

	offset, err := vs.AppendBatch([]byte("raw-batch-bytes"))
	if err != nil {
		t.Fatalf("AppendBatch: %v", err)
	}
	if offset != size1 {
		t.Errorf("offset = %d, want %d", offset, size1)
	}
}
