// Package ewf reads Expert Witness Format (E01) forensic container images
// and exposes the acquired media as a flat, random-access byte stream.
//
// Only what recovery needs is implemented: the section chain, the volume
// geometry, the chunk tables and zlib chunk decompression. Acquisition
// metadata from the header sections is decoded and exposed but otherwise
// ignored.
package ewf

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var evfSignature = []byte{'E', 'V', 'F', 0x09, 0x0d, 0x0a, 0xff, 0x00}

const (
	fileHeaderLength  = 13
	sectionLength     = 76
	tableHeaderLength = 24
)

// chunk is one acquired block of media: where its (possibly compressed)
// bytes live in which segment file.
type chunk struct {
	segment    int
	offset     int64
	end        int64
	compressed bool
}

// Image is an opened EWF image, possibly spanning several segment files.
// It satisfies the carving engine's RandomReader contract.
type Image struct {
	segments []*os.File

	chunkSize int64 // sectors per chunk * bytes per sector
	size      int64 // total media bytes
	chunks    []chunk
	metadata  map[string]string

	// Single-chunk decompression cache; carving reads are overwhelmingly
	// sequential, so this keeps zlib work amortised.
	cachedIndex int
	cachedData  []byte
}

// IsEWF reports whether path starts with the EVF segment signature.
func IsEWF(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	hdr := make([]byte, len(evfSignature))
	if _, err := io.ReadFull(f, hdr); err != nil {
		return false
	}
	return bytes.Equal(hdr, evfSignature)
}

// Open opens the segment at path plus any sibling segments (.E02, .E03, ...)
// and assembles the global chunk index.
func Open(path string) (*Image, error) {
	img := &Image{cachedIndex: -1, metadata: make(map[string]string)}

	for _, seg := range segmentPaths(path) {
		f, err := os.Open(seg)
		if err != nil {
			img.Close()
			return nil, fmt.Errorf("failed to open segment %s: %w", seg, err)
		}
		img.segments = append(img.segments, f)
		if err := img.parseSegment(len(img.segments)-1, f); err != nil {
			img.Close()
			return nil, fmt.Errorf("failed to parse segment %s: %w", seg, err)
		}
	}

	if img.chunkSize == 0 {
		img.Close()
		return nil, errors.New("no volume section found")
	}
	if img.size == 0 {
		img.size = int64(len(img.chunks)) * img.chunkSize
	}
	return img, nil
}

// segmentPaths lists the existing segment files in order, starting at path.
// Segment extensions count .E01 through .E99, then .EAA onward.
func segmentPaths(path string) []string {
	paths := []string{path}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for {
		ext = nextSegmentExt(ext)
		if ext == "" {
			break
		}
		next := base + ext
		if _, err := os.Stat(next); err != nil {
			break
		}
		paths = append(paths, next)
	}
	return paths
}

func nextSegmentExt(ext string) string {
	if len(ext) != 4 {
		return ""
	}
	b := []byte(strings.ToUpper(ext[1:]))
	if b[1] >= '0' && b[1] <= '9' {
		// Numeric range: E01..E99, then EAA.
		if b[2] < '9' {
			b[2]++
		} else if b[1] < '9' {
			b[1]++
			b[2] = '0'
		} else {
			b[1], b[2] = 'A', 'A'
		}
	} else {
		// Alphabetic range: EAA..EZZ, FAA.. and so on.
		switch {
		case b[2] < 'Z':
			b[2]++
		case b[1] < 'Z':
			b[1]++
			b[2] = 'A'
		case b[0] < 'Z':
			b[0]++
			b[1], b[2] = 'A', 'A'
		default:
			return ""
		}
	}
	return "." + string(b)
}

// parseSegment walks one segment's section chain, collecting the volume
// geometry, header metadata and chunk table entries.
func (img *Image) parseSegment(segIndex int, f *os.File) error {
	hdr := make([]byte, fileHeaderLength)
	if _, err := f.ReadAt(hdr, 0); err != nil {
		return err
	}
	if !bytes.Equal(hdr[:8], evfSignature) {
		return errors.New("bad segment signature")
	}

	var sectorsEnd int64 // end of the most recent sectors section's data
	addr := int64(fileHeaderLength)
	for {
		desc := make([]byte, sectionLength)
		if _, err := f.ReadAt(desc, addr); err != nil {
			return err
		}
		secType := string(bytes.TrimRight(desc[:16], "\x00"))
		next := int64(binary.LittleEndian.Uint64(desc[16:24]))
		size := int64(binary.LittleEndian.Uint64(desc[24:32]))

		switch secType {
		case "volume", "disk", "data":
			if err := img.parseVolume(f, addr, size); err != nil {
				return err
			}
		case "header", "header2":
			img.parseHeader(f, addr, size)
		case "sectors":
			sectorsEnd = addr + size
		case "table":
			if err := img.parseTable(segIndex, f, addr, size, sectorsEnd); err != nil {
				return err
			}
		}

		if secType == "done" || next == 0 || next <= addr {
			return nil
		}
		addr = next
	}
}

// parseVolume reads the media geometry. The section body comes in two
// layouts distinguished by size: the original 94-byte specification and the
// 1052-byte disk layout used by E01 writers.
func (img *Image) parseVolume(f *os.File, addr, size int64) error {
	body := size - sectionLength
	buf := make([]byte, body)
	if _, err := f.ReadAt(buf, addr+sectionLength); err != nil {
		return err
	}

	var chunkSectors, sectorBytes int64
	var sectorCount int64
	if body >= 1052 {
		chunkSectors = int64(binary.LittleEndian.Uint32(buf[8:12]))
		sectorBytes = int64(binary.LittleEndian.Uint32(buf[12:16]))
		sectorCount = int64(binary.LittleEndian.Uint64(buf[16:24]))
	} else if body >= 20 {
		chunkSectors = int64(binary.LittleEndian.Uint32(buf[8:12]))
		sectorBytes = int64(binary.LittleEndian.Uint32(buf[12:16]))
		sectorCount = int64(binary.LittleEndian.Uint32(buf[16:20]))
	} else {
		return errors.New("volume section too short")
	}

	if chunkSectors == 0 || sectorBytes == 0 {
		return errors.New("invalid volume geometry")
	}
	img.chunkSize = chunkSectors * sectorBytes
	img.size = sectorCount * sectorBytes
	return nil
}

// parseHeader decompresses a header/header2 section and folds its tab
// separated identifier/value lines into the metadata map. header2 is
// UTF-16; the byte order mark picks the decoder.
func (img *Image) parseHeader(f *os.File, addr, size int64) {
	buf := make([]byte, size-sectionLength)
	if _, err := f.ReadAt(buf, addr+sectionLength); err != nil {
		return
	}
	zr, err := zlib.NewReader(bytes.NewReader(buf))
	if err != nil {
		return
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil || len(raw) < 2 {
		return
	}

	var text string
	switch {
	case raw[0] == 0xff && raw[1] == 0xfe:
		dec := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
		if out, _, err := transform.Bytes(dec, raw); err == nil {
			text = string(out)
		}
	case raw[0] == 0xfe && raw[1] == 0xff:
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		if out, _, err := transform.Bytes(dec, raw); err == nil {
			text = string(out)
		}
	default:
		text = string(raw)
	}

	lines := strings.Split(text, "\n")
	if len(lines) < 4 {
		return
	}
	keys := strings.Split(strings.TrimRight(lines[2], "\r"), "\t")
	values := strings.Split(strings.TrimRight(lines[3], "\r"), "\t")
	if len(keys) != len(values) {
		return
	}
	for i, key := range keys {
		if key != "" && img.metadata[key] == "" {
			img.metadata[key] = values[i]
		}
	}
}

// parseTable decodes one chunk table. Each 32-bit entry is an offset from
// the segment file start; the high bit marks a zlib-compressed chunk. The
// end of each chunk is the next entry's offset, the last one running to the
// end of the preceding sectors section.
func (img *Image) parseTable(segIndex int, f *os.File, addr, size, sectorsEnd int64) error {
	hdr := make([]byte, tableHeaderLength)
	if _, err := f.ReadAt(hdr, addr+sectionLength); err != nil {
		return err
	}
	count := int64(binary.LittleEndian.Uint32(hdr[0:4]))

	body := size - sectionLength - tableHeaderLength
	if max := body / 4; count > max {
		count = max
	}
	buf := make([]byte, count*4)
	if _, err := f.ReadAt(buf, addr+sectionLength+tableHeaderLength); err != nil {
		return err
	}

	base := len(img.chunks)
	for i := int64(0); i < count; i++ {
		entry := binary.LittleEndian.Uint32(buf[i*4 : i*4+4])
		img.chunks = append(img.chunks, chunk{
			segment:    segIndex,
			offset:     int64(entry & 0x7FFFFFFF),
			compressed: entry&0x80000000 != 0,
		})
	}

	// Backfill chunk ends now the offsets are known.
	for i := base; i < len(img.chunks); i++ {
		if i+1 < len(img.chunks) && img.chunks[i+1].segment == segIndex {
			img.chunks[i].end = img.chunks[i+1].offset
		} else if sectorsEnd > img.chunks[i].offset {
			img.chunks[i].end = sectorsEnd
		} else {
			img.chunks[i].end = img.chunks[i].offset + img.chunkSize + 4
		}
	}
	return nil
}

// Metadata returns the acquisition metadata decoded from the header
// sections (case number, examiner, acquisition date, ...), keyed by the
// format's short identifiers.
func (img *Image) Metadata() map[string]string { return img.metadata }

func (img *Image) Size() int64 { return img.size }

func (img *Image) Close() error {
	var first error
	for _, f := range img.segments {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	img.segments = nil
	return first
}

// ReadAt reads decompressed media bytes at off, spanning chunk boundaries
// as needed.
func (img *Image) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	total := 0
	for total < len(p) {
		if off >= img.size {
			return total, io.EOF
		}
		data, err := img.chunkData(int(off / img.chunkSize))
		if err != nil {
			return total, err
		}
		within := int(off % img.chunkSize)
		if within >= len(data) {
			return total, io.EOF
		}
		n := copy(p[total:], data[within:])
		total += n
		off += int64(n)
	}
	return total, nil
}

// chunkData returns one chunk's media bytes, decompressing if needed.
func (img *Image) chunkData(index int) ([]byte, error) {
	if index == img.cachedIndex {
		return img.cachedData, nil
	}
	if index < 0 || index >= len(img.chunks) {
		return nil, io.EOF
	}
	c := img.chunks[index]
	f := img.segments[c.segment]

	raw := make([]byte, c.end-c.offset)
	if _, err := f.ReadAt(raw, c.offset); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read chunk %d: %w", index, err)
	}

	var data []byte
	if c.compressed {
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("chunk %d is not a zlib stream: %w", index, err)
		}
		defer zr.Close()
		data, err = io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress chunk %d: %w", index, err)
		}
	} else {
		// Uncompressed chunks carry a trailing Adler-32 of their data.
		data = raw
		if int64(len(data)) > img.chunkSize {
			data = data[:img.chunkSize]
		}
	}

	img.cachedIndex = index
	img.cachedData = data
	return data, nil
}
