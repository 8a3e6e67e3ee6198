// Package disk opens raw block devices and flat image files for read-only
// recovery.
package disk

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Reader is a positioned, read-only view of a device or image file. It
// satisfies the carving engine's RandomReader contract: bad sectors surface
// as errors from ReadAt, never as silent zeroes.
type Reader struct {
	file *os.File
	size int64
}

// Open opens path read-only and determines its addressable size. Block
// devices often stat as size zero, in which case the size is probed by
// seeking to the end.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat source: %w", err)
	}

	size := stat.Size()
	if size == 0 {
		size, err = file.Seek(0, io.SeekEnd)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to determine source size: %w", err)
		}
		file.Seek(0, io.SeekStart)
	}

	return &Reader{file: file, size: size}, nil
}

func (r *Reader) Close() error {
	return r.file.Close()
}

func (r *Reader) Size() int64 {
	return r.size
}

func (r *Reader) ReadAt(p []byte, off int64) (int, error) {
	return r.file.ReadAt(p, off)
}

// DetectFilesystem identifies the filesystem in the boot sector, for
// routing metadata recovery. It takes any positioned reader so forensic
// container images can be probed too.
func DetectFilesystem(r io.ReaderAt) (string, error) {
	buf := make([]byte, 512)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return "", err
	}

	// NTFS puts its OEM name at offset 3.
	if string(buf[3:7]) == "NTFS" {
		return "ntfs", nil
	}

	// FAT32 carries its type string at offset 82; some formatters leave it
	// at 54 instead.
	if string(buf[82:87]) == "FAT32" || string(buf[54:59]) == "FAT32" {
		return "fat32", nil
	}
	if string(buf[54:58]) == "FAT1" {
		return "fat16", nil
	}

	return "", errors.New("unknown filesystem")
}
