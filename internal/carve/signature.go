package carve

import "bytes"

// Format identifies a carvable file format. Two catalogue entries may share
// a format (the ZIP-family prefixes) and one magic may cover two formats
// (RIFF is registered as Avi and re-tagged to Wav by the extractor).
type Format int

const (
	FormatZip Format = iota
	FormatCFB
	FormatPdf
	FormatJpeg
	FormatPng
	FormatGif
	FormatBmp
	FormatTiff
	FormatMp4
	FormatAvi
	FormatMkv
	FormatMov
	FormatFlv
	FormatMp3Id3
	FormatMp3Frame
	FormatWav
	FormatAac
	FormatFlac
	FormatRar4
	FormatRar5
	FormatSevenZ
	FormatHtml
	FormatCss
	FormatJsSource
	FormatPeExe
	FormatGeneric
)

// Extension returns the output filename extension for a format. ZIP and CFB
// keep their sentinel extensions; promoting them by content inspection is a
// job for downstream tooling.
func (f Format) Extension() string {
	switch f {
	case FormatZip:
		return ".zip_or_office"
	case FormatCFB:
		return ".cfb_file"
	case FormatPdf:
		return ".pdf"
	case FormatJpeg:
		return ".jpg"
	case FormatPng:
		return ".png"
	case FormatGif:
		return ".gif"
	case FormatBmp:
		return ".bmp"
	case FormatTiff:
		return ".tiff"
	case FormatMp4:
		return ".mp4"
	case FormatAvi:
		return ".avi"
	case FormatMkv:
		return ".mkv"
	case FormatMov:
		return ".mov"
	case FormatFlv:
		return ".flv"
	case FormatMp3Id3, FormatMp3Frame:
		return ".mp3"
	case FormatWav:
		return ".wav"
	case FormatAac:
		return ".aac"
	case FormatFlac:
		return ".flac"
	case FormatRar4, FormatRar5:
		return ".rar"
	case FormatSevenZ:
		return ".7z"
	case FormatHtml:
		return ".html"
	case FormatCss:
		return ".css"
	case FormatJsSource:
		return ".js"
	case FormatPeExe:
		return ".exe"
	}
	return ".bin"
}

func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatCFB:
		return "cfb"
	case FormatPdf:
		return "pdf"
	case FormatJpeg:
		return "jpeg"
	case FormatPng:
		return "png"
	case FormatGif:
		return "gif"
	case FormatBmp:
		return "bmp"
	case FormatTiff:
		return "tiff"
	case FormatMp4:
		return "mp4"
	case FormatAvi:
		return "avi"
	case FormatMkv:
		return "mkv"
	case FormatMov:
		return "mov"
	case FormatFlv:
		return "flv"
	case FormatMp3Id3:
		return "mp3-id3"
	case FormatMp3Frame:
		return "mp3-frame"
	case FormatWav:
		return "wav"
	case FormatAac:
		return "aac"
	case FormatFlac:
		return "flac"
	case FormatRar4:
		return "rar4"
	case FormatRar5:
		return "rar5"
	case FormatSevenZ:
		return "7z"
	case FormatHtml:
		return "html"
	case FormatCss:
		return "css"
	case FormatJsSource:
		return "js"
	case FormatPeExe:
		return "exe"
	}
	return "generic"
}

// Signature defines a file type's magic bytes. Offset is the position of the
// magic within the file it identifies, so a hit at absolute offset h puts the
// file start at h-Offset. Ceiling bounds how many bytes the extractor will
// read for one instance.
type Signature struct {
	Magic   []byte
	Offset  int64
	Format  Format
	Ceiling int64
}

// Catalogue is the default signature registry. Declaration order is the
// dispatch order: where prefixes overlap, the more specific entry comes
// first, and two signatures matching at the same offset are resolved in
// favour of the earlier one.
var Catalogue = []Signature{
	// Documents and archives with internal directories
	{Magic: []byte{0x50, 0x4B, 0x03, 0x04}, Format: FormatZip, Ceiling: 10_000_000},
	{Magic: []byte{0x50, 0x4B, 0x05, 0x06}, Format: FormatZip, Ceiling: 10_000_000},
	{Magic: []byte{0x50, 0x4B, 0x07, 0x08}, Format: FormatZip, Ceiling: 10_000_000},
	{Magic: []byte{0xD0, 0xCF, 0x11, 0xE0}, Format: FormatCFB, Ceiling: 50_000_000},
	{Magic: []byte{0x25, 0x50, 0x44, 0x46}, Format: FormatPdf, Ceiling: 100_000_000},

	// Images
	{Magic: []byte{0xFF, 0xD8, 0xFF}, Format: FormatJpeg, Ceiling: 30_000_000},
	{Magic: []byte{0x89, 0x50, 0x4E, 0x47}, Format: FormatPng, Ceiling: 50_000_000},
	{Magic: []byte{0x47, 0x49, 0x46, 0x38}, Format: FormatGif, Ceiling: 10_000_000},
	{Magic: []byte{0x42, 0x4D}, Format: FormatBmp, Ceiling: 100_000_000},
	{Magic: []byte{0x49, 0x49, 0x2A, 0x00}, Format: FormatTiff, Ceiling: 100_000_000},
	{Magic: []byte{0x4D, 0x4D, 0x00, 0x2A}, Format: FormatTiff, Ceiling: 100_000_000},

	// Video
	{Magic: []byte{0x00, 0x00, 0x00, 0x18, 0x66, 0x74, 0x79, 0x70}, Offset: 4, Format: FormatMp4, Ceiling: 500_000_000},
	{Magic: []byte{0x52, 0x49, 0x46, 0x46}, Format: FormatAvi, Ceiling: 500_000_000},
	{Magic: []byte{0x1A, 0x45, 0xDF, 0xA3}, Format: FormatMkv, Ceiling: 500_000_000},
	{Magic: []byte{0x66, 0x74, 0x79, 0x70}, Offset: 4, Format: FormatMov, Ceiling: 500_000_000},
	{Magic: []byte{0x46, 0x4C, 0x56, 0x01}, Format: FormatFlv, Ceiling: 100_000_000},

	// Audio
	{Magic: []byte{0x49, 0x44, 0x33}, Format: FormatMp3Id3, Ceiling: 10_000_000},
	{Magic: []byte{0xFF, 0xFB}, Format: FormatMp3Frame, Ceiling: 10_000_000},
	{Magic: []byte{0xFF, 0xF1}, Format: FormatAac, Ceiling: 10_000_000},
	{Magic: []byte{0x66, 0x4C, 0x61, 0x43}, Format: FormatFlac, Ceiling: 100_000_000},

	// Archives
	{Magic: []byte{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x00}, Format: FormatRar4, Ceiling: 100_000_000},
	{Magic: []byte{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x01, 0x00}, Format: FormatRar5, Ceiling: 100_000_000},
	{Magic: []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}, Format: FormatSevenZ, Ceiling: 100_000_000},

	// Text and executables
	{Magic: []byte{0x3C, 0x21, 0x44, 0x4F, 0x43, 0x54}, Format: FormatHtml, Ceiling: 1_000_000},
	{Magic: []byte{0x2F, 0x2A, 0x20, 0x43, 0x53, 0x53}, Format: FormatCss, Ceiling: 1_000_000},
	{Magic: []byte{0x3C, 0x73, 0x63, 0x72, 0x69, 0x70}, Format: FormatJsSource, Ceiling: 1_000_000},
	{Magic: []byte{0x4D, 0x5A}, Format: FormatPeExe, Ceiling: 50_000_000},
}

// MaxSignatureLength returns max(len(Magic)+Offset) over the catalogue. The
// scanner retains MaxSignatureLength-1 bytes across window refills so no
// signature straddling a chunk seam is missed.
func MaxSignatureLength(sigs []Signature) int {
	max := 0
	for _, sig := range sigs {
		if n := len(sig.Magic) + int(sig.Offset); n > max {
			max = n
		}
	}
	return max
}

// lookupAt tests every catalogue entry against window[pos:] and returns the
// first match in declaration order, together with the absolute file start
// (base+pos-Offset). Entries whose file start would fall before offset zero
// are skipped.
func lookupAt(sigs []Signature, window []byte, pos int, base int64) (*Signature, int64, bool) {
	for i := range sigs {
		sig := &sigs[i]
		if pos+len(sig.Magic) > len(window) {
			continue
		}
		start := base + int64(pos) - sig.Offset
		if start < 0 {
			continue
		}
		if bytes.Equal(window[pos:pos+len(sig.Magic)], sig.Magic) {
			return sig, start, true
		}
	}
	return nil, 0, false
}
