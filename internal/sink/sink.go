// Package sink persists recovered files on the local filesystem.
package sink

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

// DirSink writes each emitted file into a single directory. Name collisions
// are disambiguated with _1, _2, ... suffixes before the extension. Writes
// are atomic so an interrupted session never leaves half a file behind.
type DirSink struct {
	dir string
}

// NewDirSink creates the output directory (and parents) if needed.
func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &DirSink{dir: dir}, nil
}

// Dir returns the output directory.
func (s *DirSink) Dir() string { return s.dir }

// Emit implements carve.Sink.
func (s *DirSink) Emit(name string, data []byte) error {
	path := filepath.Join(s.dir, Sanitize(name))

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for n := 1; ; n++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		path = fmt.Sprintf("%s_%d%s", base, n, ext)
	}

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Sanitize keeps only the base name and, of that, only ASCII letters,
// digits, '.', '_', '-' and spaces, so a recovered name from untrusted
// metadata cannot escape the output directory.
func Sanitize(name string) string {
	name = filepath.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-' || r == ' ':
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" || out == "." || out == ".." {
		out = "unnamed"
	}
	return out
}
