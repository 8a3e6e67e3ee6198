package carve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogueShape(t *testing.T) {
	require.Len(t, Catalogue, 27)

	for i, sig := range Catalogue {
		assert.NotEmpty(t, sig.Magic, "entry %d has empty magic", i)
		assert.Positive(t, sig.Ceiling, "entry %d has no ceiling", i)
	}

	// The ZIP local-file-header prefix is the very first entry, so it wins
	// ties against the other ZIP-family prefixes.
	assert.Equal(t, []byte{0x50, 0x4B, 0x03, 0x04}, Catalogue[0].Magic)
	assert.Equal(t, FormatZip, Catalogue[0].Format)
}

func TestMaxSignatureLength(t *testing.T) {
	// The MP4 entry is the longest: 8 magic bytes at file offset 4.
	assert.Equal(t, 12, MaxSignatureLength(Catalogue))
	assert.Equal(t, 0, MaxSignatureLength(nil))
}

func TestLookupAtDeclarationOrder(t *testing.T) {
	// Two entries sharing a magic resolve to the earlier declaration.
	sigs := []Signature{
		{Magic: []byte{0xAB, 0xCD}, Format: FormatGif, Ceiling: 10},
		{Magic: []byte{0xAB, 0xCD}, Format: FormatBmp, Ceiling: 20},
	}
	window := []byte{0x00, 0xAB, 0xCD, 0x00}

	sig, start, ok := lookupAt(sigs, window, 1, 100)
	require.True(t, ok)
	assert.Equal(t, FormatGif, sig.Format)
	assert.Equal(t, int64(101), start)
}

func TestLookupAtOffsetSubtraction(t *testing.T) {
	// A QuickTime ftyp at window position 4 puts the file start at 0.
	window := []byte{0x00, 0x00, 0x00, 0x14, 'f', 't', 'y', 'p', 'q', 't', ' ', ' '}

	sig, start, ok := lookupAt(Catalogue, window, 4, 0)
	require.True(t, ok)
	assert.Equal(t, FormatMov, sig.Format)
	assert.Equal(t, int64(0), start)

	// The same magic at window position 0 would start the file at -4,
	// which is rejected.
	_, _, ok = lookupAt(Catalogue, []byte{'f', 't', 'y', 'p', 0, 0, 0, 0}, 0, 0)
	assert.False(t, ok)
}

func TestLookupAtWindowEdge(t *testing.T) {
	// A magic that does not fully fit in the window is not matched.
	window := []byte{0xFF, 0xD8}
	_, _, ok := lookupAt(Catalogue, window, 0, 0)
	assert.False(t, ok)
}

func TestFormatExtensions(t *testing.T) {
	tests := []struct {
		format Format
		ext    string
	}{
		{FormatZip, ".zip_or_office"},
		{FormatCFB, ".cfb_file"},
		{FormatJpeg, ".jpg"},
		{FormatMp3Id3, ".mp3"},
		{FormatMp3Frame, ".mp3"},
		{FormatRar4, ".rar"},
		{FormatRar5, ".rar"},
		{FormatWav, ".wav"},
		{FormatSevenZ, ".7z"},
		{FormatGeneric, ".bin"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ext, tt.format.Extension(), "format %v", tt.format)
	}
}
