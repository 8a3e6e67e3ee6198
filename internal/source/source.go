// Package source opens a recovery source by path, picking the right reader
// for its container format.
package source

import (
	"strings"

	"github.com/shubham/diskrescue/internal/carve"
	"github.com/shubham/diskrescue/internal/disk"
	"github.com/shubham/diskrescue/internal/ewf"
)

// Open returns a RandomReader over path: an EWF image when the path carries
// an EWF extension or signature, otherwise a raw device/image reader.
func Open(path string) (carve.RandomReader, error) {
	if isEWFPath(path) || ewf.IsEWF(path) {
		return ewf.Open(path)
	}
	return disk.Open(path)
}

func isEWFPath(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".e01") || strings.HasSuffix(lower, ".ewf")
}
