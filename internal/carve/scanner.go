package carve

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
)

// DefaultChunkSize is the scanner's read granularity. The sliding window
// never holds more than two chunks plus the retained signature tail.
const DefaultChunkSize = 64 * 1024 * 1024

// Match is a candidate hit produced by the scanner. Start is the absolute
// file start with the signature's in-file offset already subtracted; Hit is
// the absolute offset at which the magic bytes themselves matched.
type Match struct {
	Start int64
	Hit   int64
	Sig   *Signature
}

// Scanner slides a bounded window over a RandomReader and yields signature
// hits in ascending offset order. Between Resume calls it re-reports the
// same hit; the coordinator decides how far to skip.
type Scanner struct {
	r         RandomReader
	sigs      []Signature
	chunkSize int
	tail      int
	size      int64
	log       *logrus.Logger
	progress  ProgressObserver

	window []byte
	base   int64 // absolute offset of window[0]
	pos    int   // next untested index into window
	cursor int64 // absolute offset of the next byte to read
	final  bool  // window reaches end of source
}

// NewScanner builds a scanner over r using the given catalogue. A
// chunkSize <= 0 selects DefaultChunkSize.
func NewScanner(r RandomReader, sigs []Signature, chunkSize int) *Scanner {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	tail := MaxSignatureLength(sigs) - 1
	if tail < 0 {
		tail = 0
	}
	if chunkSize <= tail {
		chunkSize = tail + 1
	}
	return &Scanner{
		r:         r,
		sigs:      sigs,
		chunkSize: chunkSize,
		tail:      tail,
		size:      r.Size(),
		log:       logrus.StandardLogger(),
	}
}

// SetLogger replaces the scanner's logger.
func (s *Scanner) SetLogger(log *logrus.Logger) {
	if log != nil {
		s.log = log
	}
}

// SetProgress registers an observer that is advanced on every window refill
// and on every forward jump.
func (s *Scanner) SetProgress(p ProgressObserver) { s.progress = p }

func (s *Scanner) advance(n int64) {
	if s.progress != nil && n > 0 {
		s.progress.Advance(n)
	}
}

// scanLimit is the last window index worth testing. In a non-final window
// the retained tail is left for the next window so every offset is tested
// exactly once.
func (s *Scanner) scanLimit() int {
	if s.final {
		return len(s.window)
	}
	limit := len(s.window) - s.tail
	if limit < 0 {
		limit = 0
	}
	return limit
}

// Next returns the next candidate hit, refilling the window as needed.
// It returns io.EOF when the source is exhausted. Cancellation is honoured
// at each refill.
func (s *Scanner) Next(ctx context.Context) (Match, error) {
	for {
		if s.window != nil {
			limit := s.scanLimit()
			for s.pos < limit {
				if sig, start, ok := lookupAt(s.sigs, s.window, s.pos, s.base); ok {
					return Match{Start: start, Hit: s.base + int64(s.pos), Sig: sig}, nil
				}
				s.pos++
			}
			if s.final {
				return Match{}, io.EOF
			}
		}
		if err := ctx.Err(); err != nil {
			return Match{}, err
		}
		if err := s.refill(); err != nil {
			return Match{}, err
		}
	}
}

// refill slides the window forward: the last tail bytes of the current
// window are retained and one chunk is read after them. A failed read is
// logged and the whole chunk skipped, so each unreadable chunk costs one
// chunk of coverage instead of ending the scan.
func (s *Scanner) refill() error {
	var retained []byte
	if s.window != nil && s.tail > 0 && len(s.window) >= s.tail {
		retained = s.window[len(s.window)-s.tail:]
	}

	for {
		if s.cursor >= s.size {
			if s.window == nil {
				return io.EOF
			}
			// Nothing left to read; finish scanning the retained tail.
			s.base = s.cursor - int64(len(retained))
			s.window = append([]byte(nil), retained...)
			s.pos = 0
			s.final = true
			return nil
		}

		want := s.chunkSize
		if rem := s.size - s.cursor; int64(want) > rem {
			want = int(rem)
		}
		chunk := make([]byte, want)
		n, err := s.r.ReadAt(chunk, s.cursor)
		if err != nil && err != io.EOF && n == 0 {
			rerr := &ReadError{Offset: s.cursor, Err: err}
			s.log.Warnf("skipping unreadable chunk: %v", rerr)
			s.advance(int64(want))
			s.cursor += int64(want)
			// The seam across the bad chunk is lost with it.
			retained = nil
			s.window = nil
			s.pos = 0
			continue
		}

		newBase := s.cursor - int64(len(retained))
		window := make([]byte, 0, len(retained)+n)
		window = append(window, retained...)
		window = append(window, chunk[:n]...)

		s.cursor += int64(n)
		s.base = newBase
		s.window = window
		s.pos = 0
		s.final = err == io.EOF || s.cursor >= s.size
		s.advance(int64(n))
		return nil
	}
}

// Resume moves the scan position so the next reported hit starts at or
// after abs. It always advances at least one byte past the current
// position, which is what guarantees progress after a failed carve.
func (s *Scanner) Resume(abs int64) {
	cur := s.base + int64(s.pos)
	if abs <= cur {
		abs = cur + 1
	}
	if s.window != nil && abs < s.base+int64(len(s.window)) {
		s.pos = int(abs - s.base)
		return
	}
	// Jump past the window; the next refill reads fresh at abs. No tail is
	// needed because hits before abs are suppressed anyway.
	s.window = nil
	s.pos = 0
	s.final = false
	if abs > s.cursor {
		s.advance(abs - s.cursor)
		s.cursor = abs
	}
}
