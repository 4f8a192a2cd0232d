package journal

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"strconv"
	"strings"

	"github.com/INLOpen/prevaldb/compressors"
	"github.com/INLOpen/prevaldb/core"
	"github.com/INLOpen/prevaldb/storage"
)

// DefaultMaxSegmentSize is the default maximum size for a journal segment.
const DefaultMaxSegmentSize = 1 * 1024 * 1024 // 1 MiB

// Segment represents a single journal segment file.
type Segment struct {
	file  storage.File
	name  string
	index uint64
}

// SegmentWriter handles writing records to the active segment.
type SegmentWriter struct {
	*Segment
	writer *bufio.Writer
	// size tracks the segment size including buffered, unflushed bytes.
	size int64
}

// SegmentReader handles reading records from a sealed or active segment.
type SegmentReader struct {
	*Segment
	reader     *bufio.Reader
	compressor core.Compressor
}

// formatSegmentFileName creates a segment file name from its index.
func formatSegmentFileName(index uint64) string {
	return fmt.Sprintf("%08d%s", index, core.JournalFileSuffix)
}

// parseSegmentFileName extracts the index from a segment file name.
func parseSegmentFileName(name string) (uint64, error) {
	if !strings.HasSuffix(name, core.JournalFileSuffix) {
		return 0, fmt.Errorf("file %s is not a journal segment file", name)
	}
	name = strings.TrimSuffix(name, core.JournalFileSuffix)
	return strconv.ParseUint(name, 10, 64)
}

// CreateSegment creates a new segment in the given store and writes its header.
func CreateSegment(store storage.Storage, index uint64, compression core.CompressionType) (*SegmentWriter, error) {
	name := formatSegmentFileName(index)
	file, err := store.Create(name)
	if err != nil {
		return nil, fmt.Errorf("failed to create segment %s: %w", name, err)
	}

	header := core.NewFileHeader(core.JournalMagicNumber, compression)
	if err := binary.Write(file, binary.LittleEndian, &header); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write segment header to %s: %w", name, err)
	}

	seg := &Segment{
		file:  file,
		name:  name,
		index: index,
	}
	return &SegmentWriter{
		Segment: seg,
		writer:  bufio.NewWriter(file),
		size:    int64(header.Size()),
	}, nil
}

// OpenSegmentForRead opens an existing segment for reading and verifies its header.
func OpenSegmentForRead(store storage.Storage, name string) (*SegmentReader, error) {
	file, err := store.Open(name)
	if err != nil {
		return nil, err
	}

	var header core.FileHeader
	if err := binary.Read(file, binary.LittleEndian, &header); err != nil {
		file.Close()
		if err == io.EOF {
			return nil, fmt.Errorf("segment %s is empty or truncated at header", name)
		}
		return nil, fmt.Errorf("failed to read segment header from %s: %w", name, err)
	}
	if header.Magic != core.JournalMagicNumber {
		file.Close()
		return nil, fmt.Errorf("invalid magic number in segment %s: got %x, want %x", name, header.Magic, core.JournalMagicNumber)
	}

	compressor, err := compressors.ForType(header.CompressorType)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("segment %s: %w", name, err)
	}

	index, err := parseSegmentFileName(name)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("could not parse segment index from %s: %w", name, err)
	}

	seg := &Segment{
		file:  file,
		name:  name,
		index: index,
	}
	return &SegmentReader{
		Segment:    seg,
		reader:     bufio.NewReader(file),
		compressor: compressor,
	}, nil
}

// WriteRecord writes a single framed record to the segment.
// Format: length (4 bytes) | payload (variable) | checksum (4 bytes)
func (sw *SegmentWriter) WriteRecord(payload []byte) error {
	if sw.file == nil {
		return core.ErrJournalClosed
	}

	if err := binary.Write(sw.writer, binary.LittleEndian, uint32(len(payload))); err != nil {
		return fmt.Errorf("failed to write record length: %w", err)
	}
	if _, err := sw.writer.Write(payload); err != nil {
		return fmt.Errorf("failed to write record payload: %w", err)
	}
	checksum := crc32.ChecksumIEEE(payload)
	if err := binary.Write(sw.writer, binary.LittleEndian, checksum); err != nil {
		return fmt.Errorf("failed to write record checksum: %w", err)
	}

	sw.size += int64(len(payload)) + 4 + core.ChecksumSize
	return nil
}

// ReadRecord reads, verifies and decompresses a single record.
// Returns io.EOF at a clean end of segment.
func (sr *SegmentReader) ReadRecord() ([]byte, error) {
	var length uint32
	if err := binary.Read(sr.reader, binary.LittleEndian, &length); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to read record length: %w", err)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(sr.reader, payload); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("failed to read record payload: %w", err)
	}

	var checksum uint32
	if err := binary.Read(sr.reader, binary.LittleEndian, &checksum); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("failed to read record checksum: %w", err)
	}
	if checksum != crc32.ChecksumIEEE(payload) {
		return nil, fmt.Errorf("checksum mismatch in segment %s", sr.name)
	}

	rc, err := sr.compressor.Decompress(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress record in segment %s: %w", sr.name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Sync flushes the buffered writer and syncs the file to stable storage.
func (sw *SegmentWriter) Sync() error {
	if err := sw.writer.Flush(); err != nil {
		return err
	}
	return sw.file.Sync()
}

// Close flushes and closes the segment file.
func (sw *SegmentWriter) Close() error {
	if sw.file == nil {
		return nil
	}
	err := sw.Sync()
	closeErr := sw.file.Close()
	sw.file = nil
	if err != nil {
		return err
	}
	return closeErr
}

// Close closes the segment file.
func (sr *SegmentReader) Close() error {
	if sr.file == nil {
		return nil
	}
	err := sr.file.Close()
	sr.file = nil
	return err
}

// Size returns the current size of the segment, including buffered bytes.
func (sw *SegmentWriter) Size() int64 {
	return sw.size
}
