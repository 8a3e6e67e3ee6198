package ntfs

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shubham/diskrescue/internal/disk"
)

func createNTFSImage(t *testing.T) string {
	t.Helper()

	boot := make([]byte, 512)
	boot[0] = 0xEB
	boot[1] = 0x52
	boot[2] = 0x90
	copy(boot[3:11], "NTFS    ")
	binary.LittleEndian.PutUint16(boot[11:13], 512)
	boot[13] = 8
	boot[21] = 0xF8
	binary.LittleEndian.PutUint64(boot[40:48], 2097152)
	binary.LittleEndian.PutUint64(boot[48:56], 100) // MFT cluster
	boot[64] = 0xF6                                 // -10: 1024-byte MFT records
	boot[510] = 0x55
	boot[511] = 0xAA

	path := filepath.Join(t.TempDir(), "ntfs.img")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create NTFS image: %v", err)
	}
	defer f.Close()
	f.Write(boot)
	f.Write(make([]byte, 1024*1024))
	return path
}

func TestNTFSNewParser(t *testing.T) {
	reader, err := disk.Open(createNTFSImage(t))
	if err != nil {
		t.Fatalf("Failed to open image: %v", err)
	}
	defer reader.Close()

	parser, err := NewParser(reader)
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}

	if parser.bytesPerSector != 512 {
		t.Errorf("Expected 512 bytes per sector, got %d", parser.bytesPerSector)
	}
	if parser.mftCluster != 100 {
		t.Errorf("Expected MFT cluster 100, got %d", parser.mftCluster)
	}
	if parser.clusterSize != 4096 {
		t.Errorf("Expected cluster size 4096, got %d", parser.clusterSize)
	}
	if parser.mftRecSize != 1024 {
		t.Errorf("Expected MFT record size 1024, got %d", parser.mftRecSize)
	}
	if parser.mftStart != 100*4096 {
		t.Errorf("Expected MFT at %d, got %d", 100*4096, parser.mftStart)
	}
}

func TestNTFSRejectsOtherFilesystems(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fat.img")
	if err := os.WriteFile(path, make([]byte, 4096), 0644); err != nil {
		t.Fatal(err)
	}

	reader, err := disk.Open(path)
	if err != nil {
		t.Fatalf("Failed to open image: %v", err)
	}
	defer reader.Close()

	if _, err := NewParser(reader); err == nil {
		t.Error("Expected error for non-NTFS volume")
	}
}

// buildMFTRecord crafts a deleted-file record with a filename attribute and
// a resident data attribute.
func buildMFTRecord(t *testing.T, name string, parentRef uint64, dataLen uint32) []byte {
	t.Helper()
	record := make([]byte, 1024)
	copy(record[0:4], MFTRecordMagic)
	binary.LittleEndian.PutUint16(record[4:6], 48) // update sequence offset
	binary.LittleEndian.PutUint16(record[6:8], 0)  // no fixup entries
	binary.LittleEndian.PutUint16(record[20:22], 56)
	binary.LittleEndian.PutUint16(record[22:24], 0) // in-use flag clear: deleted

	// $FILE_NAME attribute.
	off := 56
	valueLen := 66 + len(name)*2
	attrLen := 24 + valueLen
	attrLen = (attrLen + 7) &^ 7
	binary.LittleEndian.PutUint32(record[off:], AttrFileName)
	binary.LittleEndian.PutUint32(record[off+4:], uint32(attrLen))
	record[off+8] = 0 // resident
	binary.LittleEndian.PutUint32(record[off+16:], uint32(valueLen))
	binary.LittleEndian.PutUint16(record[off+20:], 24)

	fn := record[off+24:]
	binary.LittleEndian.PutUint64(fn[0:8], parentRef)
	modified := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	ticks := uint64(modified.Unix())*10_000_000 + 116444736000000000
	binary.LittleEndian.PutUint64(fn[16:24], ticks)
	fn[64] = byte(len(name))
	fn[65] = 1 // Win32 namespace
	for i, c := range name {
		binary.LittleEndian.PutUint16(fn[66+i*2:], uint16(c))
	}

	// Resident $DATA attribute.
	off += attrLen
	binary.LittleEndian.PutUint32(record[off:], AttrData)
	binary.LittleEndian.PutUint32(record[off+4:], 32)
	record[off+8] = 0
	binary.LittleEndian.PutUint32(record[off+16:], dataLen)

	// End marker.
	off += 32
	binary.LittleEndian.PutUint32(record[off:], AttrEnd)
	return record
}

func TestParseRecord(t *testing.T) {
	p := &Parser{records: make(map[uint64]*DeletedFile)}
	record := buildMFTRecord(t, "report.pdf", 5, 2048)

	file := p.parseRecord(record)
	if file == nil {
		t.Fatal("Expected a deleted file, got nil")
	}
	if file.Name != "report.pdf" {
		t.Errorf("Expected name 'report.pdf', got '%s'", file.Name)
	}
	if file.ParentRef != 5 {
		t.Errorf("Expected parent ref 5, got %d", file.ParentRef)
	}
	if file.Size != 2048 {
		t.Errorf("Expected size 2048, got %d", file.Size)
	}
	want := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	if !file.Modified.Equal(want) {
		t.Errorf("Expected modified %v, got %v", want, file.Modified)
	}
}

func TestDecodeUTF16(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "Simple ASCII",
			input:    []byte{'H', 0, 'e', 0, 'l', 0, 'l', 0, 'o', 0},
			expected: "Hello",
		},
		{
			name:     "Empty",
			input:    []byte{},
			expected: "",
		},
		{
			name:     "Filename with extension",
			input:    []byte{'t', 0, 'e', 0, 's', 0, 't', 0, '.', 0, 't', 0, 'x', 0, 't', 0},
			expected: "test.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodeUTF16(tt.input); got != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, got)
			}
		})
	}
}

func TestParseDataRuns(t *testing.T) {
	tests := []struct {
		name     string
		attr     []byte
		expected []DataRun
	}{
		{
			name: "Single run",
			attr: func() []byte {
				attr := make([]byte, 64)
				binary.LittleEndian.PutUint16(attr[32:34], 40)
				attr[40] = 0x11 // 1 length byte, 1 offset byte
				attr[41] = 0x10 // 16 clusters
				attr[42] = 0x64 // LCN 100
				return attr
			}(),
			expected: []DataRun{{Offset: 100, Length: 16}},
		},
		{
			name: "Relative negative offset",
			attr: func() []byte {
				attr := make([]byte, 64)
				binary.LittleEndian.PutUint16(attr[32:34], 40)
				attr[40] = 0x11
				attr[41] = 0x08
				attr[42] = 0x64 // LCN 100
				attr[43] = 0x11
				attr[44] = 0x04
				attr[45] = 0xF6 // -10 relative: LCN 90
				return attr
			}(),
			expected: []DataRun{{Offset: 100, Length: 8}, {Offset: 90, Length: 4}},
		},
		{
			name: "Empty",
			attr: func() []byte {
				attr := make([]byte, 64)
				binary.LittleEndian.PutUint16(attr[32:34], 40)
				return attr
			}(),
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseDataRuns(tt.attr)
			if len(result) != len(tt.expected) {
				t.Fatalf("Expected %d runs, got %d", len(tt.expected), len(result))
			}
			for i, run := range result {
				if run != tt.expected[i] {
					t.Errorf("Run %d: expected %+v, got %+v", i, tt.expected[i], run)
				}
			}
		})
	}
}

func TestReconstructPath(t *testing.T) {
	p := &Parser{
		records: map[uint64]*DeletedFile{
			5:  {Name: "", MFTIndex: 5, ParentRef: 5},
			10: {Name: "Documents", MFTIndex: 10, ParentRef: 5},
			20: {Name: "Work", MFTIndex: 20, ParentRef: 10},
			30: {Name: "report.pdf", MFTIndex: 30, ParentRef: 20},
		},
	}

	tests := []struct {
		mftIndex uint64
		expected string
	}{
		{30, filepath.Join("Documents", "Work", "report.pdf")},
		{20, filepath.Join("Documents", "Work")},
		{10, "Documents"},
	}

	for _, tt := range tests {
		if got := p.reconstructPath(tt.mftIndex); got != tt.expected {
			t.Errorf("MFT %d: expected '%s', got '%s'", tt.mftIndex, tt.expected, got)
		}
	}
}

func TestFiletimeToTime(t *testing.T) {
	if !filetimeToTime(0).IsZero() {
		t.Error("Expected zero time for zero FILETIME")
	}

	want := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	ticks := uint64(want.Unix())*10_000_000 + 116444736000000000
	if got := filetimeToTime(ticks); !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}
