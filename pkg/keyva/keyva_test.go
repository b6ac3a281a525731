package keyva

import (
	"testing"
	"time"

	"github.com/huynhanx03/keyva/pkg/keyva/errors"
	"github.com/huynhanx03/keyva/pkg/keyva/keymath"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	opts := DefaultOptions()
	opts.Dir = t.TempDir()
	opts.FlushInterval = time.Hour // the loop shouldn't race with explicit Flush calls
	db, err := Open(opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPutGetBeforeFlush(t *testing.T) {
	db := openTestDB(t)
	key := keymath.FromSeed("hello").ToBytes()
	if err := db.Put(key, []byte("world")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := db.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "world" {
		t.Errorf("Get = %q, want %q", got, "world")
	}
}

func TestPutGetAfterFlush(t *testing.T) {
	db := openTestDB(t)
	key := keymath.FromSeed("durable").ToBytes()
	if err := db.Put(key, []byte("value")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := db.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	got, err := db.Get(key)
	if err != nil {
		t.Fatalf("Get after flush: %v", err)
	}
	if string(got) != "value" {
		t.Errorf("Get = %q, want %q", got, "value")
	}
}

func TestGetMissingKey(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Get(keymath.FromSeed("absent").ToBytes())
	if err != errors.ErrKeyNotFound {
		t.Errorf("err = %v, want ErrKeyNotFound", err)
	}
}

func TestPutRejectsEmptyValue(t *testing.T) {
	db := openTestDB(t)
	if err := db.Put(keymath.FromSeed("k").ToBytes(), nil); err != errors.ErrZeroLengthValue {
		t.Errorf("err = %v, want ErrZeroLengthValue", err)
	}
}

// TestPutRejectsWrongLengthKey exercises spec scenario 2: put("ABC", "v")
// with a key that isn't 32 bytes must fail with ErrKeyWrongLength and leave
// the staging buffer untouched.
func TestPutRejectsWrongLengthKey(t *testing.T) {
	db := openTestDB(t)
	before := db.buffer.Size()

	if err := db.Put([]byte("ABC"), []byte("v")); err != errors.ErrKeyWrongLength {
		t.Errorf("err = %v, want ErrKeyWrongLength", err)
	}
	if got := db.buffer.Size(); got != before {
		t.Errorf("buffer size = %d after rejected Put, want unchanged %d", got, before)
	}
}

func TestGetRejectsWrongLengthKey(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.Get([]byte("ABC")); err != errors.ErrKeyWrongLength {
		t.Errorf("err = %v, want ErrKeyWrongLength", err)
	}
}

func TestEachVisitsFlushedRecords(t *testing.T) {
	db := openTestDB(t)
	want := map[string]string{
		"a": "1",
		"b": "2",
		"c": "3",
	}
	for k, v := range want {
		key := keymath.FromSeed(k).ToBytes()
		if err := db.Put(key, []byte(v)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	if err := db.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	seen := 0
	err := db.Each(func(key keymath.Key, value []byte) error {
		seen++
		return nil
	})
	if err != nil {
		t.Fatalf("Each: %v", err)
	}
	if seen != len(want) {
		t.Errorf("Each visited %d records, want %d", seen, len(want))
	}
}

func TestClearResetsDatabase(t *testing.T) {
	db := openTestDB(t)
	key := keymath.FromSeed("to-clear").ToBytes()
	if err := db.Put(key, []byte("x")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := db.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := db.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := db.Get(key); err != errors.ErrKeyNotFound {
		t.Errorf("err after Clear = %v, want ErrKeyNotFound", err)
	}
}

func TestReopenPreservesFlushedData(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.Dir = dir
	opts.FlushInterval = time.Hour

	db, err := Open(opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	key := keymath.FromSeed("persisted").ToBytes()
	if err := db.Put(key, []byte("still here")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := db.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db2, err := Open(opts)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()

	got, err := db2.Get(key)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if string(got) != "still here" {
		t.Errorf("Get after reopen = %q, want %q", got, "still here")
	}
}
