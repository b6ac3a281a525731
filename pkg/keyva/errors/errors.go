// Package errors defines the sentinel error values returned across the
// keyva public surface. Call sites wrap these with github.com/pkg/errors so
// context accumulates without losing errors.Is/Cause matching.
package errors

import "errors"

var (
	// ErrKeyWrongLength is returned when a caller passes a key that isn't
	// exactly keymath.KeySize bytes.
	ErrKeyWrongLength = errors.New("keyva: key must be 32 bytes")

	// ErrZeroLengthValue is returned when Put is given an empty value.
	ErrZeroLengthValue = errors.New("keyva: value must not be empty")

	// ErrValueTooLong is returned when a value's encoded record would
	// overflow the uint32 length prefix.
	ErrValueTooLong = errors.New("keyva: value too long")

	// ErrKeyNotFound is returned when Get finds no entry for a key.
	ErrKeyNotFound = errors.New("keyva: key not found")

	// ErrValueNotFound is returned when a key resolves to a value-log
	// location that can't be read (a corrupted or truncated value file).
	ErrValueNotFound = errors.New("keyva: value not found")

	// ErrShortRead is returned when a positional read returns fewer bytes
	// than requested.
	ErrShortRead = errors.New("keyva: short read")

	// ErrShortWrite is returned when a positional write writes fewer
	// bytes than requested.
	ErrShortWrite = errors.New("keyva: short write")

	// ErrClosed names the closed-database condition. The DB methods do not
	// check whether Close has run, so none of them returns it.
	ErrClosed = errors.New("keyva: database is closed")
)
