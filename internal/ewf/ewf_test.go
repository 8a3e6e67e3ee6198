package ewf

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

func sectionBytes(typ string, next uint64, body []byte) []byte {
	desc := make([]byte, sectionLength)
	copy(desc, typ)
	binary.LittleEndian.PutUint64(desc[16:24], next)
	binary.LittleEndian.PutUint64(desc[24:32], uint64(sectionLength+len(body)))
	return append(desc, body...)
}

func deflate(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// buildE01 writes a synthetic single-segment image holding media: one
// uncompressed chunk and one zlib-compressed chunk of 2048 bytes each.
func buildE01(t *testing.T, media []byte) string {
	t.Helper()
	require.Len(t, media, 4096)

	// header2 body: zlib-compressed UTF-16LE key/value lines.
	headerText := "1\nmain\nc\tn\te\nCASE42\tEV1\tjane\n"
	enc := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewEncoder()
	utf16Text, _, err := transform.Bytes(enc, []byte(headerText))
	require.NoError(t, err)
	headerBody := deflate(t, utf16Text)

	volumeBody := make([]byte, 94)
	binary.LittleEndian.PutUint32(volumeBody[8:12], 4)    // sectors per chunk
	binary.LittleEndian.PutUint32(volumeBody[12:16], 512) // bytes per sector
	binary.LittleEndian.PutUint32(volumeBody[16:20], 8)   // sector count

	chunk0 := media[:2048]
	chunk1 := deflate(t, media[2048:])
	sectorsBody := append(append([]byte{}, chunk0...), chunk1...)

	// Section layout, front to back.
	pos0 := int64(fileHeaderLength)
	pos1 := pos0 + sectionLength + int64(len(headerBody))
	pos2 := pos1 + sectionLength + int64(len(volumeBody))
	pos3 := pos2 + sectionLength + int64(len(sectorsBody))
	pos4 := pos3 + sectionLength + tableHeaderLength + 8

	chunk0Off := pos2 + sectionLength
	chunk1Off := chunk0Off + int64(len(chunk0))

	tableBody := make([]byte, tableHeaderLength+8)
	binary.LittleEndian.PutUint32(tableBody[0:4], 2)
	binary.LittleEndian.PutUint32(tableBody[tableHeaderLength:], uint32(chunk0Off))
	binary.LittleEndian.PutUint32(tableBody[tableHeaderLength+4:], uint32(chunk1Off)|0x80000000)

	var img bytes.Buffer
	img.Write(evfSignature)
	img.WriteByte(0x01)
	binary.Write(&img, binary.LittleEndian, uint16(1)) // segment number
	binary.Write(&img, binary.LittleEndian, uint16(0))
	img.Write(sectionBytes("header2", uint64(pos1), headerBody))
	img.Write(sectionBytes("volume", uint64(pos2), volumeBody))
	img.Write(sectionBytes("sectors", uint64(pos3), sectorsBody))
	img.Write(sectionBytes("table", uint64(pos4), tableBody))
	img.Write(sectionBytes("done", 0, nil))

	path := filepath.Join(t.TempDir(), "test.E01")
	require.NoError(t, os.WriteFile(path, img.Bytes(), 0644))
	return path
}

func testMedia() []byte {
	media := make([]byte, 4096)
	for i := range media {
		media[i] = byte(i * 7 % 251)
	}
	return media
}

func TestIsEWF(t *testing.T) {
	path := buildE01(t, testMedia())
	assert.True(t, IsEWF(path))

	other := filepath.Join(t.TempDir(), "flat.img")
	require.NoError(t, os.WriteFile(other, make([]byte, 64), 0644))
	assert.False(t, IsEWF(other))
}

func TestOpenAndReadAt(t *testing.T) {
	media := testMedia()
	img, err := Open(buildE01(t, media))
	require.NoError(t, err)
	defer img.Close()

	assert.Equal(t, int64(4096), img.Size())

	// Full read.
	got := make([]byte, 4096)
	n, err := img.ReadAt(got, 0)
	require.NoError(t, err)
	assert.Equal(t, 4096, n)
	assert.Equal(t, media, got)

	// A read spanning the uncompressed/compressed chunk seam.
	span := make([]byte, 64)
	n, err = img.ReadAt(span, 2016)
	require.NoError(t, err)
	assert.Equal(t, 64, n)
	assert.Equal(t, media[2016:2080], span)

	// Short read at the media end.
	tail := make([]byte, 100)
	n, err = img.ReadAt(tail, 4050)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 46, n)
	assert.Equal(t, media[4050:], tail[:46])

	// Beyond the end.
	_, err = img.ReadAt(make([]byte, 8), 5000)
	assert.Equal(t, io.EOF, err)
}

func TestMetadata(t *testing.T) {
	img, err := Open(buildE01(t, testMedia()))
	require.NoError(t, err)
	defer img.Close()

	meta := img.Metadata()
	assert.Equal(t, "CASE42", meta["c"])
	assert.Equal(t, "EV1", meta["n"])
	assert.Equal(t, "jane", meta["e"])
}

func TestOpenRejectsNonEWF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.E01")
	require.NoError(t, os.WriteFile(path, make([]byte, 256), 0644))
	_, err := Open(path)
	assert.Error(t, err)
}

func TestNextSegmentExt(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{".E01", ".E02"},
		{".E09", ".E10"},
		{".E10", ".E11"},
		{".E99", ".EAA"},
		{".EAA", ".EAB"},
		{".EAZ", ".EBA"},
		{".EZZ", ".FAA"},
		{".ZZZ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nextSegmentExt(tt.in), "input %s", tt.in)
	}
}
