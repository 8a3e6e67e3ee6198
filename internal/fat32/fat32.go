// Package fat32 recovers deleted files from FAT32 volumes by walking
// directory entries whose first byte carries the deletion marker. FAT
// entries for deleted files are zeroed, so data recovery assumes the
// cluster chain was contiguous.
package fat32

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/sirupsen/logrus"

	"github.com/shubham/diskrescue/internal/carve"
	"github.com/shubham/diskrescue/internal/sink"
)

const (
	DirEntrySize     = 32
	DeletedMarker    = 0xE5
	LFNAttribute     = 0x0F
	AttrDirectory    = 0x10
	AttrVolumeLabel  = 0x08
	ClusterEndMarker = 0x0FFFFFF8
)

// Source is the read-only view of a volume the parser needs. Both raw
// device readers and forensic image readers satisfy it.
type Source interface {
	ReadAt(p []byte, off int64) (int, error)
	Size() int64
}

// BootSector holds the FAT32 boot sector fields recovery needs.
type BootSector struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	TotalSectors32    uint32
	FATSize32         uint32
	RootCluster       uint32
}

// DeletedEntry describes one deleted directory entry.
type DeletedEntry struct {
	Name         string
	LongName     string
	Path         string
	FirstCluster uint32
	Size         uint32
	Modified     time.Time
	IsDirectory  bool
}

// DisplayName prefers the long name when one was recorded.
func (e DeletedEntry) DisplayName() string {
	if e.LongName != "" {
		return e.LongName
	}
	return e.Name
}

// Parser walks a FAT32 volume.
type Parser struct {
	reader     Source
	bootSector *BootSector
	fatStart   int64
	dataStart  int64
	clusterSz  int
	fatTable   []uint32
	log        *logrus.Logger
}

func NewParser(reader Source) (*Parser, error) {
	p := &Parser{reader: reader, log: logrus.StandardLogger()}
	if err := p.readBootSector(); err != nil {
		return nil, err
	}
	return p, nil
}

// SetLogger replaces the parser's logger.
func (p *Parser) SetLogger(log *logrus.Logger) {
	if log != nil {
		p.log = log
	}
}

func (p *Parser) readBootSector() error {
	buf := make([]byte, 512)
	if _, err := p.reader.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("failed to read boot sector: %w", err)
	}

	p.bootSector = &BootSector{
		BytesPerSector:    binary.LittleEndian.Uint16(buf[11:13]),
		SectorsPerCluster: buf[13],
		ReservedSectors:   binary.LittleEndian.Uint16(buf[14:16]),
		NumFATs:           buf[16],
		TotalSectors32:    binary.LittleEndian.Uint32(buf[32:36]),
		FATSize32:         binary.LittleEndian.Uint32(buf[36:40]),
		RootCluster:       binary.LittleEndian.Uint32(buf[44:48]),
	}
	if p.bootSector.BytesPerSector == 0 || p.bootSector.SectorsPerCluster == 0 {
		return fmt.Errorf("invalid FAT32 boot sector geometry")
	}

	p.fatStart = int64(p.bootSector.ReservedSectors) * int64(p.bootSector.BytesPerSector)
	fatSize := int64(p.bootSector.FATSize32) * int64(p.bootSector.BytesPerSector)
	p.dataStart = p.fatStart + int64(p.bootSector.NumFATs)*fatSize
	p.clusterSz = int(p.bootSector.SectorsPerCluster) * int(p.bootSector.BytesPerSector)
	return nil
}

func (p *Parser) loadFAT() error {
	fatSize := int(p.bootSector.FATSize32) * int(p.bootSector.BytesPerSector)
	buf := make([]byte, fatSize)
	if _, err := p.reader.ReadAt(buf, p.fatStart); err != nil {
		return fmt.Errorf("failed to read FAT: %w", err)
	}

	p.fatTable = make([]uint32, fatSize/4)
	for i := range p.fatTable {
		p.fatTable[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return nil
}

func (p *Parser) clusterToOffset(cluster uint32) int64 {
	return p.dataStart + int64(cluster-2)*int64(p.clusterSz)
}

func (p *Parser) readCluster(cluster uint32) ([]byte, error) {
	buf := make([]byte, p.clusterSz)
	if _, err := p.reader.ReadAt(buf, p.clusterToOffset(cluster)); err != nil {
		return nil, err
	}
	return buf, nil
}

// ScanDeleted walks the directory tree from the root cluster and collects
// entries flagged as deleted.
func (p *Parser) ScanDeleted() ([]DeletedEntry, error) {
	if err := p.loadFAT(); err != nil {
		return nil, err
	}

	var entries []DeletedEntry
	visited := make(map[uint32]bool)
	if err := p.scanDirectory(p.bootSector.RootCluster, "", &entries, visited); err != nil {
		return nil, err
	}
	return entries, nil
}

func (p *Parser) scanDirectory(cluster uint32, path string, out *[]DeletedEntry, visited map[uint32]bool) error {
	for cluster != 0 && cluster < ClusterEndMarker {
		if visited[cluster] {
			break
		}
		visited[cluster] = true

		data, err := p.readCluster(cluster)
		if err != nil {
			p.log.Warnf("unreadable directory cluster %d: %v", cluster, err)
			return nil
		}

		var lfnParts []string
		for i := 0; i+DirEntrySize <= len(data); i += DirEntrySize {
			entry := data[i : i+DirEntrySize]
			if entry[0] == 0x00 {
				// End of directory.
				break
			}

			if entry[11] == LFNAttribute {
				lfn := parseLFNEntry(entry)
				if entry[0]&0x40 != 0 {
					lfnParts = nil
				}
				lfnParts = append([]string{lfn}, lfnParts...)
				continue
			}
			if entry[11]&AttrVolumeLabel != 0 {
				continue
			}

			isDeleted := entry[0] == DeletedMarker
			isDir := entry[11]&AttrDirectory != 0
			firstCluster := uint32(binary.LittleEndian.Uint16(entry[26:28])) |
				(uint32(binary.LittleEndian.Uint16(entry[20:22])) << 16)

			shortName := parseShortName(entry[:11], isDeleted)
			longName := strings.Join(lfnParts, "")
			lfnParts = nil

			name := longName
			if name == "" {
				name = shortName
			}
			if name == "." || name == ".." {
				continue
			}

			rec := DeletedEntry{
				Name:         shortName,
				LongName:     longName,
				Path:         filepath.Join(path, name),
				FirstCluster: firstCluster,
				Size:         binary.LittleEndian.Uint32(entry[28:32]),
				Modified:     dosTimestamp(binary.LittleEndian.Uint16(entry[24:26]), binary.LittleEndian.Uint16(entry[22:24])),
				IsDirectory:  isDir,
			}

			if isDeleted {
				*out = append(*out, rec)
			}

			// Live subdirectories are walked; deleted ones are not, since
			// their clusters may already be reused.
			if isDir && !isDeleted && firstCluster >= 2 {
				p.scanDirectory(firstCluster, rec.Path, out, visited)
			}
		}

		if int(cluster) < len(p.fatTable) {
			cluster = p.fatTable[cluster] & 0x0FFFFFFF
		} else {
			break
		}
	}
	return nil
}

func parseLFNEntry(entry []byte) string {
	var chars []uint16
	collect := func(off, count int) {
		for j := 0; j < count; j++ {
			c := binary.LittleEndian.Uint16(entry[off+j*2:])
			if c == 0 || c == 0xFFFF {
				return
			}
			chars = append(chars, c)
		}
	}
	collect(1, 5)
	collect(14, 6)
	collect(28, 2)
	return string(utf16.Decode(chars))
}

func parseShortName(name []byte, isDeleted bool) string {
	baseName := strings.TrimRight(string(name[:8]), " ")
	ext := strings.TrimRight(string(name[8:11]), " ")

	if isDeleted && len(baseName) > 0 {
		// The deletion marker overwrote the first character.
		baseName = "?" + baseName[1:]
	}
	if ext != "" {
		return baseName + "." + ext
	}
	return baseName
}

// dosTimestamp decodes the packed FAT date/time pair.
func dosTimestamp(date, tm uint16) time.Time {
	if date == 0 {
		return time.Time{}
	}
	return time.Date(
		1980+int(date>>9), time.Month(date>>5&0x0F), int(date&0x1F),
		int(tm>>11), int(tm>>5&0x3F), int(tm&0x1F)*2, 0, time.UTC)
}

// RecoverData writes the entry's data to outputPath. FAT chains of deleted
// files are gone, so clusters are assumed contiguous from the first.
func (p *Parser) RecoverData(entry DeletedEntry, outputPath string) error {
	if entry.IsDirectory {
		return os.MkdirAll(outputPath, 0755)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return err
	}

	outFile, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer outFile.Close()

	clustersNeeded := (entry.Size + uint32(p.clusterSz) - 1) / uint32(p.clusterSz)
	if clustersNeeded == 0 {
		clustersNeeded = 1
	}

	var written uint32
	cluster := entry.FirstCluster
	for i := uint32(0); i < clustersNeeded && written < entry.Size; i++ {
		data, err := p.readCluster(cluster)
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}

		toWrite := uint32(len(data))
		if remaining := entry.Size - written; toWrite > remaining {
			toWrite = remaining
		}
		if _, err := outFile.Write(data[:toWrite]); err != nil {
			return err
		}
		written += toWrite
		cluster++
	}
	return nil
}

// outputName builds the recovery filename for a metadata find: modification
// timestamp, size and the original name.
func outputName(entry DeletedEntry) string {
	ts := "unknown_time"
	if !entry.Modified.IsZero() {
		ts = entry.Modified.UTC().Format("20060102_150405")
	}
	return sink.Sanitize(fmt.Sprintf("%s_%d_%s", ts, entry.Size, entry.DisplayName()))
}

// Recover scans for deleted entries and, unless scanOnly is set, restores
// those the filter accepts into outputDir. It returns the number of files
// recovered (or found, when scanning only).
func Recover(reader Source, outputDir string, filter carve.Filter, scanOnly bool, log *logrus.Logger) (int, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	parser, err := NewParser(reader)
	if err != nil {
		return 0, err
	}
	parser.SetLogger(log)

	log.Infof("FAT32 volume: %d bytes/sector, %d sectors/cluster, root cluster %d",
		parser.bootSector.BytesPerSector, parser.bootSector.SectorsPerCluster, parser.bootSector.RootCluster)

	entries, err := parser.ScanDeleted()
	if err != nil {
		return 0, err
	}
	log.Infof("found %d deleted entries", len(entries))

	count := 0
	for _, entry := range entries {
		if entry.IsDirectory {
			continue
		}
		name := outputName(entry)
		if filter != nil && !filter.Accept(name, int64(entry.Size)) {
			continue
		}
		if scanOnly {
			log.Infof("deleted: %s (%d bytes)", entry.Path, entry.Size)
			count++
			continue
		}

		outPath := collisionFree(filepath.Join(outputDir, name))
		if err := parser.RecoverData(entry, outPath); err != nil {
			log.Warnf("failed to recover %s: %v", entry.DisplayName(), err)
			continue
		}
		log.Infof("recovered %s (%d bytes)", outPath, entry.Size)
		count++
	}
	return count, nil
}

// collisionFree suffixes _1, _2, ... until the path is unused.
func collisionFree(path string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for n := 1; ; n++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		path = fmt.Sprintf("%s_%d%s", base, n, ext)
	}
}
