// Package blockfile provides positional, fixed-size-block file access for
// the key and value stores: open/append/truncate/read-at/write-at/sync over
// an *os.File, mirroring the RandomAccessFile abstraction the reference
// store builds its key and value files on.
package blockfile

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// File is the positional file-access surface both the key store and the
// value store are built on. A single *os.File satisfies it directly;
// tests substitute an in-memory fake.
type File interface {
	ReadAt(buf []byte, offset int64) (int, error)
	WriteAt(buf []byte, offset int64) (int, error)
	Write(buf []byte) (int, error)
	Size() (int64, error)
	Truncate(size int64) error
	Sync() error
	Close() error
}

// osFile adapts *os.File to File. Write seeks to the end of the file before
// each write, so it always appends; ReadAt is positional and does not use
// or move the file cursor.
type osFile struct {
	f *os.File
}

// Open opens path for positional reads and appending writes, creating it if
// absent.
func Open(path string) (File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "blockfile: open %s", path)
	}
	return &osFile{f: f}, nil
}

func (o *osFile) ReadAt(buf []byte, offset int64) (int, error) {
	n, err := o.f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return n, errors.Wrap(err, "blockfile: read")
	}
	return n, err
}

func (o *osFile) Write(buf []byte) (int, error) {
	if _, err := o.f.Seek(0, io.SeekEnd); err != nil {
		return 0, errors.Wrap(err, "blockfile: seek to end")
	}
	n, err := o.f.Write(buf)
	if err != nil {
		return n, errors.Wrap(err, "blockfile: write")
	}
	return n, nil
}

func (o *osFile) WriteAt(buf []byte, offset int64) (int, error) {
	n, err := o.f.WriteAt(buf, offset)
	if err != nil {
		return n, errors.Wrap(err, "blockfile: write at")
	}
	return n, nil
}

func (o *osFile) Size() (int64, error) {
	fi, err := o.f.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "blockfile: stat")
	}
	return fi.Size(), nil
}

func (o *osFile) Truncate(size int64) error {
	if err := o.f.Truncate(size); err != nil {
		return errors.Wrap(err, "blockfile: truncate")
	}
	return nil
}

func (o *osFile) Sync() error {
	if err := o.f.Sync(); err != nil {
		return errors.Wrap(err, "blockfile: sync")
	}
	return nil
}

func (o *osFile) Close() error {
	if err := o.f.Close(); err != nil {
		return errors.Wrap(err, "blockfile: close")
	}
	return nil
}
