package carve

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/sirupsen/logrus"
)

// memReader serves a byte slice with file-like ReadAt semantics and an
// optional simulated bad-sector range.
type memReader struct {
	data  []byte
	badLo int64
	badHi int64
}

func (r *memReader) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(r.data)) {
		return 0, io.EOF
	}
	if r.badHi > r.badLo && off < r.badHi && off+int64(len(p)) > r.badLo {
		return 0, errors.New("simulated bad sector")
	}
	n := copy(p, r.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (r *memReader) Size() int64 { return int64(len(r.data)) }

func (r *memReader) Close() error { return nil }

// recordingSink keeps every emission in memory.
type recordingSink struct {
	names  []string
	data   [][]byte
	failOn func(name string) bool
}

func (s *recordingSink) Emit(name string, data []byte) error {
	if s.failOn != nil && s.failOn(name) {
		return errors.New("simulated sink failure")
	}
	s.names = append(s.names, name)
	s.data = append(s.data, append([]byte(nil), data...))
	return nil
}

// countingObserver sums progress updates.
type countingObserver struct {
	total int64
}

func (o *countingObserver) Advance(n int64) { o.total += n }

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// minimalJPEG is a 20-byte stream with a JFIF APP0 marker and a closing EOI.
func minimalJPEG() []byte {
	buf := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}
	for i := 0; i < 12; i++ {
		buf = append(buf, 0x11)
	}
	return append(buf, 0xFF, 0xD9)
}

// minimalPNG is a 60-byte stream: signature, 40 bytes of chunk data and a
// complete IEND chunk.
func minimalPNG() []byte {
	buf := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	buf = append(buf, bytes.Repeat([]byte{0x11}, 40)...)
	return append(buf, 0x00, 0x00, 0x00, 0x00, 'I', 'E', 'N', 'D', 0xAE, 0x42, 0x60, 0x82)
}

// box builds one ISO media box.
func box(typ string, payload []byte) []byte {
	buf := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(8+len(payload)))
	copy(buf[4:8], typ)
	copy(buf[8:], payload)
	return buf
}

// riffFile builds a RIFF container with the given form type and chunks.
func riffFile(form string, chunks ...[]byte) []byte {
	var body []byte
	body = append(body, form...)
	for _, c := range chunks {
		body = append(body, c...)
	}
	buf := []byte("RIFF")
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(body)))
	return append(buf, body...)
}

// riffChunk builds one RIFF chunk with odd-length padding.
func riffChunk(id string, payload []byte) []byte {
	buf := []byte(id)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(payload)))
	buf = append(buf, payload...)
	if len(payload)%2 == 1 {
		buf = append(buf, 0)
	}
	return buf
}

// zipFile builds a fake ZIP: a local header, filler and a consistent EOCD
// record so the whole thing spans exactly total bytes.
func zipFile(total int) []byte {
	buf := make([]byte, total)
	copy(buf, []byte{0x50, 0x4B, 0x03, 0x04})
	for i := 4; i < total-22; i++ {
		buf[i] = 0x11
	}
	eocd := total - 22
	copy(buf[eocd:], []byte{0x50, 0x4B, 0x05, 0x06})
	cdSize := 46
	cdOffset := eocd - cdSize
	binary.LittleEndian.PutUint32(buf[eocd+12:], uint32(cdSize))
	binary.LittleEndian.PutUint32(buf[eocd+16:], uint32(cdOffset))
	return buf
}
