package carve

import (
	"bytes"
	"encoding/binary"
	"io"
)

// Extent is a carved byte range [Start, End) plus the format it was resolved
// to. The format normally comes from the signature, but the RIFF extractor
// re-tags AVI hits that turn out to be WAVE files.
type Extent struct {
	Start  int64
	End    int64
	Format Format
}

func (e Extent) Len() int64 { return e.End - e.Start }

// extract dispatches a candidate hit to the extent-determination logic for
// its format. Extractors issue their own positioned reads and never load the
// whole ceiling eagerly, except for the generic fallback whose extent IS the
// ceiling. Any structural inconsistency is reported as ErrUnrecognised.
func extract(r RandomReader, sig *Signature, start int64, stopAtMdat bool) (Extent, error) {
	switch sig.Format {
	case FormatJpeg:
		return carveJPEG(r, start, sig.Ceiling)
	case FormatPng:
		return carvePNG(r, start, sig.Ceiling)
	case FormatPdf:
		return carvePDF(r, start, sig.Ceiling)
	case FormatMp4, FormatMov:
		return carveISOMedia(r, sig.Format, start, sig.Ceiling, stopAtMdat)
	case FormatAvi, FormatWav:
		return carveRIFF(r, start, sig.Ceiling)
	case FormatZip:
		return carveZip(r, start, sig.Ceiling)
	case FormatCFB:
		return carveCFB(r, start, sig.Ceiling)
	case FormatGif, FormatBmp, FormatTiff, FormatMkv, FormatFlv,
		FormatMp3Id3, FormatMp3Frame, FormatAac, FormatFlac,
		FormatRar4, FormatRar5, FormatSevenZ,
		FormatHtml, FormatCss, FormatJsSource, FormatPeExe, FormatGeneric:
		return carveGeneric(r, sig.Format, start, sig.Ceiling)
	}
	return carveGeneric(r, sig.Format, start, sig.Ceiling)
}

// readFull reads exactly len(p) bytes at off, tolerating the io.EOF that
// accompanies a full read ending at the source boundary.
func readFull(r RandomReader, p []byte, off int64) error {
	n, err := r.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return err
}

// carveJPEG scans forward in 8 KiB slices for the End Of Image marker.
// Adjacent slices overlap by one byte so a marker split across a slice
// boundary is still seen.
func carveJPEG(r RandomReader, start, ceiling int64) (Extent, error) {
	const slice = 8 * 1024
	eoi := []byte{0xFF, 0xD9}

	limit := start + ceiling
	buf := make([]byte, slice)
	off := start
	for off < limit {
		want := int64(slice)
		if rem := limit - off; want > rem {
			want = rem
		}
		n, err := r.ReadAt(buf[:want], off)
		if n > 1 {
			if idx := bytes.Index(buf[:n], eoi); idx >= 0 {
				return Extent{Start: start, End: off + int64(idx) + 2, Format: FormatJpeg}, nil
			}
		}
		if err != nil || n == 0 {
			return Extent{}, ErrUnrecognised
		}
		if n == 1 {
			return Extent{}, ErrUnrecognised
		}
		off += int64(n - 1)
	}
	return Extent{}, ErrUnrecognised
}

// carvePNG locates the IEND chunk within the first 64 KiB. The end of the
// file is the IEND chunk start plus its fixed 12 bytes (length, type, CRC).
func carvePNG(r RandomReader, start, ceiling int64) (Extent, error) {
	window := int64(64 * 1024)
	if window > ceiling {
		window = ceiling
	}
	buf := make([]byte, window)
	n, err := r.ReadAt(buf, start)
	if n == 0 && err != nil {
		return Extent{}, ErrUnrecognised
	}
	idx := bytes.Index(buf[:n], []byte("IEND"))
	if idx < 4 {
		// Either absent or too close to the start to be preceded by the
		// chunk's length field.
		return Extent{}, ErrUnrecognised
	}
	return Extent{Start: start, End: start + int64(idx) + 8, Format: FormatPng}, nil
}

// carvePDF scans for the last %%EOF marker. PDFs may be incrementally
// updated, appending further body sections and trailers, so the scan keeps
// going to the ceiling and the final marker wins.
func carvePDF(r RandomReader, start, ceiling int64) (Extent, error) {
	const slice = 128 * 1024
	marker := []byte("%%EOF")
	overlap := int64(len(marker) - 1)

	limit := start + ceiling
	buf := make([]byte, slice)
	var lastEnd int64
	off := start
	for off < limit {
		want := int64(slice)
		if rem := limit - off; want > rem {
			want = rem
		}
		n, err := r.ReadAt(buf[:want], off)
		if idx := bytes.LastIndex(buf[:n], marker); idx >= 0 {
			lastEnd = off + int64(idx) + int64(len(marker))
		}
		if err != nil || int64(n) < want {
			break
		}
		if int64(n) <= overlap {
			break
		}
		off += int64(n) - overlap
	}
	if lastEnd == 0 {
		return Extent{}, ErrUnrecognised
	}
	return Extent{Start: start, End: lastEnd, Format: FormatPdf}, nil
}

// boxType reports whether the four bytes look like an ISO media box type:
// printable ASCII, as every real box type is. Walking past the end of a
// file lands in arbitrary bytes; this is the corruption tripwire.
func boxType(b []byte) bool {
	for _, c := range b[:4] {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}

// carveISOMedia walks the ISO base media box tree (MP4, QuickTime). Each
// box is size+type; size 1 switches to a 64-bit largesize, size 0 runs to
// the end of the stream. By default the walk continues past mdat so files
// whose moov atom trails the media data keep their index; stopAtMdat
// restores the legacy behaviour of ending the carve at the media box.
func carveISOMedia(r RandomReader, format Format, start, ceiling int64, stopAtMdat bool) (Extent, error) {
	limit := start + ceiling
	if size := r.Size(); limit > size {
		limit = size
	}

	var hdr [16]byte
	pos := start
	for {
		if pos+8 > limit {
			break
		}
		if err := readFull(r, hdr[:8], pos); err != nil {
			break
		}
		if !boxType(hdr[4:8]) {
			if pos == start {
				return Extent{}, ErrUnrecognised
			}
			break
		}

		size := int64(binary.BigEndian.Uint32(hdr[0:4]))
		var next int64
		switch size {
		case 0:
			// Box runs to the end of the stream.
			return Extent{Start: start, End: limit, Format: format}, nil
		case 1:
			if err := readFull(r, hdr[8:16], pos+8); err != nil {
				return Extent{}, ErrUnrecognised
			}
			large := binary.BigEndian.Uint64(hdr[8:16])
			if large > uint64(limit-pos) {
				return Extent{Start: start, End: limit, Format: format}, nil
			}
			next = pos + int64(large)
		default:
			next = pos + size
		}

		if next <= pos {
			// Zero-size box or corrupted size field.
			return Extent{}, ErrUnrecognised
		}
		if next > limit {
			// Truncated final box; the carve ends at the ceiling or EOF.
			return Extent{Start: start, End: limit, Format: format}, nil
		}
		pos = next
		if stopAtMdat && bytes.Equal(hdr[4:8], []byte("mdat")) {
			break
		}
	}
	if pos == start {
		return Extent{}, ErrUnrecognised
	}
	return Extent{Start: start, End: pos, Format: format}, nil
}

// carveRIFF parses a RIFF chunk tree. The form type distinguishes AVI from
// WAVE behind the shared magic; the returned extent carries the resolved
// format. Chunks are id+size with odd sizes padded to the next even byte.
func carveRIFF(r RandomReader, start, ceiling int64) (Extent, error) {
	var hdr [12]byte
	if err := readFull(r, hdr[:], start); err != nil {
		return Extent{}, ErrUnrecognised
	}
	if !bytes.Equal(hdr[0:4], []byte("RIFF")) {
		return Extent{}, ErrUnrecognised
	}

	var format Format
	switch string(hdr[8:12]) {
	case "AVI ":
		format = FormatAvi
	case "WAVE":
		format = FormatWav
	default:
		return Extent{}, ErrUnrecognised
	}

	riffSize := int64(binary.LittleEndian.Uint32(hdr[4:8]))
	limit := start + 8 + riffSize
	if max := start + ceiling; limit > max {
		limit = max
	}
	if size := r.Size(); limit > size {
		limit = size
	}

	var chdr [8]byte
	pos := start + 12
	for pos+8 <= limit {
		if err := readFull(r, chdr[:], pos); err != nil {
			break
		}
		csize := int64(binary.LittleEndian.Uint32(chdr[4:8]))
		next := pos + 8 + csize + (csize & 1)
		if next <= pos || next > limit {
			break
		}
		pos = next
	}
	return Extent{Start: start, End: pos, Format: format}, nil
}

var zipEOCDMagic = []byte{0x50, 0x4B, 0x05, 0x06}

// carveZip resolves a ZIP-family archive from its End Of Central Directory
// record, which sits at the archive's tail. A trailing window is read at
// the ceiling (clamped to the source end, so short archives still resolve)
// and scanned backward for the EOCD; the record then gives the central
// directory's offset and size relative to the archive base.
func carveZip(r RandomReader, start, ceiling int64) (Extent, error) {
	const trailer = 64 * 1024

	end := start + ceiling
	if size := r.Size(); end > size {
		end = size
	}
	winStart := end - trailer
	if winStart < start {
		winStart = start
	}
	winLen := end - winStart
	if winLen < 22 {
		return Extent{}, ErrUnrecognised
	}

	buf := make([]byte, winLen)
	n, err := r.ReadAt(buf, winStart)
	if n == 0 && err != nil {
		return Extent{}, ErrUnrecognised
	}
	search := buf[:n]
	for {
		idx := bytes.LastIndex(search, zipEOCDMagic)
		if idx < 0 {
			return Extent{}, ErrUnrecognised
		}
		if idx+22 > len(search) {
			// Too close to the tail to hold a full record; keep looking
			// earlier in the window.
			search = search[:idx]
			continue
		}
		rec := search[idx : idx+22]
		cdSize := int64(binary.LittleEndian.Uint32(rec[12:16]))
		cdOffset := int64(binary.LittleEndian.Uint32(rec[16:20]))
		comment := int64(binary.LittleEndian.Uint16(rec[20:22]))
		carveEnd := start + cdOffset + cdSize + 22 + comment
		if carveEnd <= start || carveEnd > end {
			return Extent{}, ErrUnrecognised
		}
		return Extent{Start: start, End: carveEnd, Format: FormatZip}, nil
	}
}

var cfbMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// carveCFB recovers a Compound File Binary document. A full walk needs the
// FAT chains, so recovery is conservative: confirm the complete 8-byte
// header magic and carve the whole ceiling, which is guaranteed to contain
// the document when one exists.
func carveCFB(r RandomReader, start, ceiling int64) (Extent, error) {
	var hdr [8]byte
	if err := readFull(r, hdr[:], start); err != nil {
		return Extent{}, ErrUnrecognised
	}
	if !bytes.Equal(hdr[:], cfbMagic) {
		return Extent{}, ErrUnrecognised
	}
	return carveGeneric(r, FormatCFB, start, ceiling)
}

// carveGeneric carves the full ceiling, clamped to the source end. Formats
// without a cheap terminator accept that trailing bytes may be noise.
func carveGeneric(r RandomReader, format Format, start, ceiling int64) (Extent, error) {
	end := start + ceiling
	if size := r.Size(); end > size {
		end = size
	}
	if end <= start {
		return Extent{}, ErrUnrecognised
	}
	return Extent{Start: start, End: end, Format: format}, nil
}
