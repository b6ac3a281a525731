// Package valuestore implements the append-only value log: records of the
// form u32 total_length || 32-byte key || value bytes, grounded on the
// reference store's ValueStore<BITS>.
package valuestore

import (
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"

	"github.com/huynhanx03/keyva/pkg/keyva/blockfile"
	"github.com/huynhanx03/keyva/pkg/keyva/keymath"
)

const lengthPrefixSize = 4

// EachFunc is called once per record during Each, in append order. The key
// and value slices are only valid for the duration of the call.
type EachFunc func(key keymath.Key, value []byte) error

// ValueStore is the append-only log of (key,value) records backing every
// committed Put.
type ValueStore struct {
	mu   sync.Mutex
	file blockfile.File
}

// Open opens or creates the value file at path.
func Open(path string) (*ValueStore, error) {
	f, err := blockfile.Open(path)
	if err != nil {
		return nil, err
	}
	return &ValueStore{file: f}, nil
}

// Clear truncates the value file to zero length.
func (v *ValueStore) Clear() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.file.Truncate(0)
}

// Close closes the underlying file.
func (v *ValueStore) Close() error { return v.file.Close() }

// Size returns the current length of the value log, used as the append
// offset for the next record.
func (v *ValueStore) Size() (uint64, error) {
	size, err := v.file.Size()
	if err != nil {
		return 0, err
	}
	return uint64(size), nil
}

// Append writes one record for key/value and returns its starting offset
// and total encoded length.
func (v *ValueStore) Append(key keymath.Key, value []byte) (offset uint64, length uint32, err error) {
	length = uint32(lengthPrefixSize + keymath.KeySize + len(value))
	buf := make([]byte, length)
	binary.LittleEndian.PutUint32(buf, length)
	pos := lengthPrefixSize
	pos += key.WriteBytes(buf, pos)
	copy(buf[pos:], value)

	v.mu.Lock()
	defer v.mu.Unlock()
	size, err := v.file.Size()
	if err != nil {
		return 0, 0, err
	}
	if _, err := v.file.Write(buf); err != nil {
		return 0, 0, errors.Wrap(err, "valuestore: append")
	}
	return uint64(size), length, nil
}

// AppendBatch writes a single pre-encoded run of records (built by the
// journal's commit buffer) in one call, returning the offset the batch
// started at.
func (v *ValueStore) AppendBatch(buf []byte) (offset uint64, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	size, err := v.file.Size()
	if err != nil {
		return 0, err
	}
	if _, err := v.file.Write(buf); err != nil {
		return 0, errors.Wrap(err, "valuestore: append batch")
	}
	return uint64(size), nil
}

// Get reads the value portion of the record at offset/length.
func (v *ValueStore) Get(offset uint64, length uint32) ([]byte, error) {
	if length < lengthPrefixSize+keymath.KeySize {
		return nil, errors.Errorf("valuestore: record length %d too short", length)
	}
	buf := make([]byte, length)
	n, err := v.file.ReadAt(buf, int64(offset))
	if err != nil {
		return nil, errors.Wrapf(err, "valuestore: read at %d", offset)
	}
	if n != len(buf) {
		return nil, errors.Errorf("valuestore: short read at %d: got %d want %d", offset, n, len(buf))
	}
	return buf[lengthPrefixSize+keymath.KeySize:], nil
}

// Each scans every record in append order, tolerating a truncated final
// record (a crash mid-append leaves a partial tail, which is silently
// dropped rather than treated as corruption). Because the log is
// append-only and never compacted, a key may appear more than once if it
// was written more than once.
func (v *ValueStore) Each(f EachFunc) error {
	size, err := v.Size()
	if err != nil {
		return err
	}
	var offset uint64
	header := make([]byte, lengthPrefixSize)
	for offset < size {
		n, err := v.file.ReadAt(header, int64(offset))
		if err != nil || n != len(header) {
			// Partial header at the tail: stop, don't error.
			break
		}
		length := binary.LittleEndian.Uint32(header)
		if length < lengthPrefixSize+keymath.KeySize || offset+uint64(length) > size {
			break
		}
		record := make([]byte, length)
		n, err = v.file.ReadAt(record, int64(offset))
		if err != nil || n != len(record) {
			break
		}
		key, _ := keymath.ReadBytes(record, lengthPrefixSize)
		value := record[lengthPrefixSize+keymath.KeySize:]
		if err := f(key, value); err != nil {
			return err
		}
		offset += uint64(length)
	}
	return nil
}
