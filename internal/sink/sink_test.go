package sink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirSinkEmit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	s, err := NewDirSink(dir)
	require.NoError(t, err)

	require.NoError(t, s.Emit("carved_1.jpg", []byte("hello")))

	data, err := os.ReadFile(filepath.Join(dir, "carved_1.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}

func TestDirSinkCollisions(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDirSink(dir)
	require.NoError(t, err)

	require.NoError(t, s.Emit("file.jpg", []byte("one")))
	require.NoError(t, s.Emit("file.jpg", []byte("two")))
	require.NoError(t, s.Emit("file.jpg", []byte("three")))

	for name, want := range map[string]string{
		"file.jpg":   "one",
		"file_1.jpg": "two",
		"file_2.jpg": "three",
	} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Equal(t, want, string(data))
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"normal_name.jpg", "normal_name.jpg"},
		{"../../etc/passwd", "passwd"},
		{"name with spaces.pdf", "name with spaces.pdf"},
		{"bad\x00chars\n.txt", "badchars.txt"},
		{"", "unnamed"},
		{"..", "unnamed"},
		{"///", "unnamed"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Sanitize(tt.in), "input %q", tt.in)
	}
}
