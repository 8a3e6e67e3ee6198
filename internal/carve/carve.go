// Package carve recovers files from raw byte streams by signature-based
// carving: it scans for known magic numbers and reconstructs each file's
// extent by parsing the format's own container structure. It needs no
// filesystem metadata, so it works on formatted and damaged media.
package carve

import (
	"errors"
	"fmt"
)

// RandomReader is the source a carving session reads from: a raw device, a
// flat image, or a forensic container. Short reads are allowed only at EOF;
// a bad sector must surface as an error, never as silent zeroes. The
// coordinator owns the reader exclusively for the session's lifetime.
type RandomReader interface {
	ReadAt(p []byte, off int64) (int, error)
	Size() int64
	Close() error
}

// Filter decides whether a recovered file is kept. Name is the synthesised
// output name, size the carved length in bytes.
type Filter interface {
	Accept(name string, size int64) bool
}

// Sink persists recovered files. It is responsible for disambiguating name
// collisions. Emit errors are logged by the session and never abort it.
type Sink interface {
	Emit(name string, data []byte) error
}

// ProgressObserver receives byte-count updates as the scan advances.
type ProgressObserver interface {
	Advance(n int64)
}

// ErrUnrecognised is returned by extractors when the bytes at a candidate
// offset do not form a complete instance of the signalled format. The
// session skips one byte past the magic and keeps scanning.
var ErrUnrecognised = errors.New("unrecognised container structure")

// ReadError reports a failed read mid-scan, typically a bad sector. The
// session logs it, skips the failing chunk and continues.
type ReadError struct {
	Offset int64
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read failed at offset %d: %v", e.Offset, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }
