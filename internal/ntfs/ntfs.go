// Package ntfs recovers deleted files from NTFS volumes by scanning MFT
// records whose in-use flag is clear and replaying their data runs.
package ntfs

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
	MFTRecordMagic = "FILE"
	AttrFileName   = 0x30
	AttrData       = 0x80
	AttrEnd        = 0xFFFFFFFF

	rootMFTIndex = 5
	maxMFTScan   = 10_000_000
)

// Source is the read-only view of a volume the parser needs. Both raw
// device readers and forensic image readers satisfy it.
type Source interface {
	ReadAt(p []byte, off int64) (int, error)
	Size() int64
}

// DeletedFile describes one deleted MFT record.
type DeletedFile struct {
	Name        string
	Path        string
	MFTIndex    uint64
	ParentRef   uint64
	Size        uint64
	Modified    time.Time
	IsDirectory bool
	DataRuns    []DataRun
}

// DataRun is one cluster extent of a non-resident attribute. A zero offset
// marks a sparse run.
type DataRun struct {
	Offset int64
	Length uint64
}

// Parser walks an NTFS volume's MFT.
type Parser struct {
	reader      Source
	mftStart    int64
	clusterSize int
	mftRecSize  int
	records     map[uint64]*DeletedFile
	log         *logrus.Logger

	bytesPerSector    uint16
	sectorsPerCluster uint8
	mftCluster        uint64
}

func NewParser(reader Source) (*Parser, error) {
	p := &Parser{
		reader:  reader,
		records: make(map[uint64]*DeletedFile),
		log:     logrus.StandardLogger(),
	}
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
	if string(buf[3:7]) != "NTFS" {
		return fmt.Errorf("not an NTFS filesystem")
	}

	p.bytesPerSector = binary.LittleEndian.Uint16(buf[11:13])
	p.sectorsPerCluster = buf[13]
	p.mftCluster = binary.LittleEndian.Uint64(buf[48:56])
	clustersPerMFTRec := int8(buf[64])

	p.clusterSize = int(p.sectorsPerCluster) * int(p.bytesPerSector)
	if clustersPerMFTRec < 0 {
		p.mftRecSize = 1 << uint(-clustersPerMFTRec)
	} else {
		p.mftRecSize = int(clustersPerMFTRec) * p.clusterSize
	}
	if p.clusterSize == 0 || p.mftRecSize == 0 {
		return fmt.Errorf("invalid NTFS boot sector geometry")
	}
	p.mftStart = int64(p.mftCluster) * int64(p.clusterSize)
	return nil
}

func (p *Parser) readMFTRecord(index uint64) ([]byte, error) {
	buf := make([]byte, p.mftRecSize)
	if _, err := p.reader.ReadAt(buf, p.mftStart+int64(index)*int64(p.mftRecSize)); err != nil {
		return nil, err
	}
	if string(buf[0:4]) != MFTRecordMagic {
		return nil, fmt.Errorf("invalid MFT record at index %d", index)
	}
	applyFixup(buf)
	return buf, nil
}

// applyFixup replaces the update-sequence placeholder at the end of each
// sector with the stored original bytes.
func applyFixup(record []byte) {
	updateSeqOff := binary.LittleEndian.Uint16(record[4:6])
	updateSeqSize := binary.LittleEndian.Uint16(record[6:8])
	if updateSeqSize < 2 || int(updateSeqOff)+int(updateSeqSize)*2 > len(record) {
		return
	}

	signature := record[updateSeqOff : updateSeqOff+2]
	for i := uint16(1); i < updateSeqSize; i++ {
		pos := int(i)*512 - 2
		if pos+1 >= len(record) {
			break
		}
		if record[pos] == signature[0] && record[pos+1] == signature[1] {
			fixupOffset := updateSeqOff + i*2
			record[pos] = record[fixupOffset]
			record[pos+1] = record[fixupOffset+1]
		}
	}
}

func (p *Parser) parseRecord(record []byte) *DeletedFile {
	flags := binary.LittleEndian.Uint16(record[22:24])
	file := &DeletedFile{
		IsDirectory: flags&0x02 != 0,
	}
	deleted := flags&0x01 == 0

	offset := int(binary.LittleEndian.Uint16(record[20:22]))
	for offset+16 < len(record) {
		attrType := binary.LittleEndian.Uint32(record[offset:])
		if attrType == AttrEnd || attrType == 0 {
			break
		}
		attrLen := binary.LittleEndian.Uint32(record[offset+4:])
		if attrLen == 0 || int(attrLen) > len(record)-offset {
			break
		}
		nonResident := record[offset+8]

		switch attrType {
		case AttrFileName:
			if nonResident == 0 {
				parseFileNameAttr(record[offset:offset+int(attrLen)], file)
			}
		case AttrData:
			if nonResident == 1 {
				file.DataRuns = parseDataRuns(record[offset : offset+int(attrLen)])
				file.Size = binary.LittleEndian.Uint64(record[offset+48:])
			} else {
				file.Size = uint64(binary.LittleEndian.Uint32(record[offset+16:]))
			}
		}
		offset += int(attrLen)
	}

	if !deleted {
		return nil
	}
	return file
}

func parseFileNameAttr(attr []byte, file *DeletedFile) {
	if len(attr) < 24+66 {
		return
	}
	valueOffset := binary.LittleEndian.Uint16(attr[20:22])
	if int(valueOffset)+66 > len(attr) {
		return
	}

	fn := attr[valueOffset:]
	nameLen := int(fn[64])
	nameType := fn[65]

	// DOS 8.3 names lose to the Win32/POSIX name already recorded.
	if nameType == 2 && file.Name != "" {
		return
	}
	if 66+nameLen*2 > len(fn) {
		return
	}

	file.Name = decodeUTF16(fn[66 : 66+nameLen*2])
	file.ParentRef = binary.LittleEndian.Uint64(fn[0:8]) & 0x0000FFFFFFFFFFFF
	file.Modified = filetimeToTime(binary.LittleEndian.Uint64(fn[16:24]))
}

// filetimeToTime converts a Windows FILETIME (100ns ticks since 1601) to a
// time.Time; a zero FILETIME maps to the zero time.
func filetimeToTime(ft uint64) time.Time {
	if ft == 0 {
		return time.Time{}
	}
	const epochDelta = 116444736000000000 // 1601 -> 1970 in 100ns ticks
	if ft < epochDelta {
		return time.Time{}
	}
	ticks := ft - epochDelta
	return time.Unix(int64(ticks/10_000_000), int64(ticks%10_000_000)*100).UTC()
}

func parseDataRuns(attr []byte) []DataRun {
	var runs []DataRun

	dataRunsOff := binary.LittleEndian.Uint16(attr[32:34])
	if int(dataRunsOff) >= len(attr) {
		return runs
	}

	data := attr[dataRunsOff:]
	var currentLCN int64
	for i := 0; i < len(data); {
		header := data[i]
		if header == 0 {
			break
		}
		lenBytes := int(header & 0x0F)
		offBytes := int(header >> 4)
		if i+1+lenBytes+offBytes > len(data) {
			break
		}

		var length uint64
		for j := 0; j < lenBytes; j++ {
			length |= uint64(data[i+1+j]) << (8 * j)
		}

		var offset int64
		if offBytes > 0 {
			for j := 0; j < offBytes; j++ {
				offset |= int64(data[i+1+lenBytes+j]) << (8 * j)
			}
			if data[i+lenBytes+offBytes]&0x80 != 0 {
				for j := offBytes; j < 8; j++ {
					offset |= int64(0xFF) << (8 * j)
				}
			}
		}

		if offBytes == 0 {
			// Sparse run: no clusters on disk, LCN unchanged.
			runs = append(runs, DataRun{Offset: 0, Length: length})
		} else {
			currentLCN += offset
			runs = append(runs, DataRun{Offset: currentLCN, Length: length})
		}
		i += 1 + lenBytes + offBytes
	}
	return runs
}

func decodeUTF16(b []byte) string {
	if len(b)%2 != 0 {
		b = b[:len(b)-1]
	}
	u16 := make([]uint16, len(b)/2)
	for i := range u16 {
		u16[i] = binary.LittleEndian.Uint16(b[i*2:])
	}
	return string(utf16.Decode(u16))
}

// ScanDeleted reads MFT records up to maxRecords and collects deleted,
// named, non-system entries with reconstructed directory paths.
func (p *Parser) ScanDeleted(maxRecords uint64) ([]DeletedFile, error) {
	var files []DeletedFile

	for i := uint64(0); i < maxRecords; i++ {
		record, err := p.readMFTRecord(i)
		if err != nil {
			continue
		}

		file := p.parseRecord(record)
		keep := file != nil
		if file == nil {
			// Live records still matter for path reconstruction.
			flags := binary.LittleEndian.Uint16(record[22:24])
			file = &DeletedFile{IsDirectory: flags&0x02 != 0}
			parseAllNames(record, file)
		}

		if file.Name == "" || file.Name == "." || strings.HasPrefix(file.Name, "$") {
			continue
		}
		file.MFTIndex = i
		p.records[i] = file

		if keep {
			files = append(files, *file)
		}
		if i > 0 && i%100000 == 0 {
			p.log.Debugf("scanned %d MFT records, %d deleted so far", i, len(files))
		}
	}

	for i := range files {
		files[i].Path = p.reconstructPath(files[i].MFTIndex)
	}
	return files, nil
}

// parseAllNames extracts just the filename attribute from a live record.
func parseAllNames(record []byte, file *DeletedFile) {
	offset := int(binary.LittleEndian.Uint16(record[20:22]))
	for offset+16 < len(record) {
		attrType := binary.LittleEndian.Uint32(record[offset:])
		if attrType == AttrEnd || attrType == 0 {
			break
		}
		attrLen := binary.LittleEndian.Uint32(record[offset+4:])
		if attrLen == 0 || int(attrLen) > len(record)-offset {
			break
		}
		if attrType == AttrFileName && record[offset+8] == 0 {
			parseFileNameAttr(record[offset:offset+int(attrLen)], file)
		}
		offset += int(attrLen)
	}
}

func (p *Parser) reconstructPath(mftIndex uint64) string {
	var parts []string
	visited := make(map[uint64]bool)

	current := mftIndex
	for !visited[current] {
		visited[current] = true
		file, ok := p.records[current]
		if !ok {
			break
		}
		if file.Name != "" && file.Name != "." {
			parts = append([]string{file.Name}, parts...)
		}
		if file.ParentRef == rootMFTIndex || file.ParentRef == current {
			break
		}
		current = file.ParentRef
	}

	if len(parts) == 0 {
		if file, ok := p.records[mftIndex]; ok && file.Name != "" {
			return file.Name
		}
		return fmt.Sprintf("file_%d", mftIndex)
	}
	return filepath.Join(parts...)
}

// RecoverData replays the file's data runs into outputPath, padding sparse
// runs with zeroes.
func (p *Parser) RecoverData(file DeletedFile, outputPath string) error {
	if file.IsDirectory {
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

	var written uint64
	for _, run := range file.DataRuns {
		if written >= file.Size {
			break
		}
		if run.Offset == 0 {
			zeros := make([]byte, run.Length*uint64(p.clusterSize))
			toWrite := min(uint64(len(zeros)), file.Size-written)
			if _, err := outFile.Write(zeros[:toWrite]); err != nil {
				return err
			}
			written += toWrite
			continue
		}

		offset := run.Offset * int64(p.clusterSize)
		buf := make([]byte, p.clusterSize)
		for c := uint64(0); c < run.Length && written < file.Size; c++ {
			if _, err := p.reader.ReadAt(buf, offset+int64(c)*int64(p.clusterSize)); err != nil {
				if err == io.EOF {
					break
				}
				return err
			}
			toWrite := min(uint64(len(buf)), file.Size-written)
			if _, err := outFile.Write(buf[:toWrite]); err != nil {
				return err
			}
			written += toWrite
		}
	}
	return nil
}

// outputName builds the recovery filename: modification timestamp, size and
// the original name.
func outputName(file DeletedFile) string {
	ts := "unknown_time"
	if !file.Modified.IsZero() {
		ts = file.Modified.UTC().Format("20060102_150405")
	}
	return sink.Sanitize(fmt.Sprintf("%s_%d_%s", ts, file.Size, file.Name))
}

// Recover scans the MFT for deleted files and, unless scanOnly is set,
// restores those the filter accepts into outputDir.
func Recover(reader Source, outputDir string, filter carve.Filter, scanOnly bool, log *logrus.Logger) (int, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	parser, err := NewParser(reader)
	if err != nil {
		return 0, err
	}
	parser.SetLogger(log)

	log.Infof("NTFS volume: %d bytes/sector, cluster size %d, MFT at cluster %d, record size %d",
		parser.bytesPerSector, parser.clusterSize, parser.mftCluster, parser.mftRecSize)

	maxRecords := uint64(reader.Size()) / uint64(parser.mftRecSize)
	if maxRecords > maxMFTScan {
		maxRecords = maxMFTScan
	}

	files, err := parser.ScanDeleted(maxRecords)
	if err != nil {
		return 0, err
	}
	log.Infof("found %d deleted files", len(files))

	count := 0
	for _, f := range files {
		if f.IsDirectory {
			continue
		}
		name := outputName(f)
		if filter != nil && !filter.Accept(name, int64(f.Size)) {
			continue
		}
		if scanOnly {
			log.Infof("deleted: %s (%d bytes)", f.Path, f.Size)
			count++
			continue
		}
		if len(f.DataRuns) == 0 && f.Size > 0 {
			continue
		}

		outPath := collisionFree(filepath.Join(outputDir, name))
		if err := parser.RecoverData(f, outPath); err != nil {
			log.Warnf("failed to recover %s: %v", f.Name, err)
			continue
		}
		log.Infof("recovered %s (%d bytes)", outPath, f.Size)
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
