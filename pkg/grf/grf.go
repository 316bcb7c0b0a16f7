// Package grf reads and writes GRF 0x200 archives, the container Ragnarok
// Online ships its models and textures in.
package grf

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
)

const (
	grfMagic   = "Master of Magic"
	headerSize = 46
	version200 = 0x200

	flagFile      = 0x01
	flagEncrypted = 0x02 | 0x04
)

// Archive errors.
var (
	ErrInvalidMagic       = errors.New("invalid GRF magic")
	ErrUnsupportedVersion = errors.New("unsupported GRF version")
	ErrNotFound           = errors.New("file not found in archive")
	ErrEncrypted          = errors.New("encrypted entries are not supported")
	ErrCorrupt            = errors.New("corrupt GRF archive")
)

// Archive is an opened GRF archive. Reads are safe for concurrent use.
type Archive struct {
	r      io.ReaderAt
	closer io.Closer
	header Header
	files  map[string]*Entry
	mu     sync.Mutex
}

// Header is the fixed 46-byte GRF header.
type Header struct {
	Magic         [15]byte
	EncryptionKey [15]byte
	TableOffset   uint32
	Seed          uint32
	FileCount     uint32
	Version       uint32
}

// Entry is one file in the archive table.
type Entry struct {
	Name             string
	CompressedSize   uint32
	AlignedSize      uint32
	UncompressedSize uint32
	Flags            uint8
	Offset           uint32
}

// Open opens the GRF archive at path.
func Open(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	a, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	a.closer = f
	return a, nil
}

// NewReader reads the header and file table from r.
func NewReader(r io.ReaderAt) (*Archive, error) {
	a := &Archive{r: r, files: make(map[string]*Entry)}
	if err := a.readHeader(); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if err := a.readFileTable(); err != nil {
		return nil, fmt.Errorf("reading file table: %w", err)
	}
	return a, nil
}

// Close releases the underlying file, if Open created one.
func (a *Archive) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

// Version returns the archive format version.
func (a *Archive) Version() uint32 { return a.header.Version }

// Len returns the number of files in the archive.
func (a *Archive) Len() int { return len(a.files) }

func (a *Archive) readHeader() error {
	sr := io.NewSectionReader(a.r, 0, headerSize)
	if err := binary.Read(sr, binary.LittleEndian, &a.header); err != nil {
		return err
	}
	if string(a.header.Magic[:]) != grfMagic {
		return ErrInvalidMagic
	}
	if a.header.Version != version200 {
		return fmt.Errorf("%w: 0x%x", ErrUnsupportedVersion, a.header.Version)
	}
	return nil
}

func (a *Archive) readFileTable() error {
	off := int64(a.header.TableOffset) + headerSize

	var sizes [8]byte
	if _, err := a.r.ReadAt(sizes[:], off); err != nil {
		return fmt.Errorf("%w: table sizes: %v", ErrCorrupt, err)
	}
	compressedSize := binary.LittleEndian.Uint32(sizes[0:])
	uncompressedSize := binary.LittleEndian.Uint32(sizes[4:])

	compressed := make([]byte, compressedSize)
	if _, err := a.r.ReadAt(compressed, off+8); err != nil {
		return fmt.Errorf("%w: table data: %v", ErrCorrupt, err)
	}
	table, err := inflate(compressed, uncompressedSize)
	if err != nil {
		return fmt.Errorf("%w: table: %v", ErrCorrupt, err)
	}

	if a.header.FileCount < a.header.Seed+7 {
		return fmt.Errorf("%w: file count %d below seed", ErrCorrupt, a.header.FileCount)
	}
	count := a.header.FileCount - a.header.Seed - 7

	pos := 0
	for i := uint32(0); i < count; i++ {
		end := bytes.IndexByte(table[pos:], 0)
		if end < 0 {
			return fmt.Errorf("%w: entry %d has no name terminator", ErrCorrupt, i)
		}
		name := string(table[pos : pos+end])
		pos += end + 1
		if pos+17 > len(table) {
			return fmt.Errorf("%w: entry %d truncated", ErrCorrupt, i)
		}

		e := &Entry{
			Name:             NormalizePath(name),
			CompressedSize:   binary.LittleEndian.Uint32(table[pos:]),
			AlignedSize:      binary.LittleEndian.Uint32(table[pos+4:]),
			UncompressedSize: binary.LittleEndian.Uint32(table[pos+8:]),
			Flags:            table[pos+12],
			Offset:           binary.LittleEndian.Uint32(table[pos+13:]),
		}
		pos += 17

		// Directory entries carry no flagFile bit.
		if e.Flags&flagFile != 0 {
			a.files[e.Name] = e
		}
	}
	return nil
}

// List returns every file path in the archive, sorted.
func (a *Archive) List() []string {
	out := make([]string, 0, len(a.files))
	for p := range a.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Contains reports whether path is in the archive. Lookups ignore case and
// accept either slash direction.
func (a *Archive) Contains(path string) bool {
	_, ok := a.files[NormalizePath(path)]
	return ok
}

// Stat returns the table entry for path.
func (a *Archive) Stat(path string) (*Entry, error) {
	e, ok := a.files[NormalizePath(path)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return e, nil
}

// Read returns the decompressed contents of path.
func (a *Archive) Read(path string) ([]byte, error) {
	e, err := a.Stat(path)
	if err != nil {
		return nil, err
	}
	if e.Flags&flagEncrypted != 0 {
		return nil, fmt.Errorf("%w: %s", ErrEncrypted, path)
	}

	// AlignedSize only matters for DES padding, which is not supported.
	raw := make([]byte, e.CompressedSize)
	a.mu.Lock()
	_, err = a.r.ReadAt(raw, int64(e.Offset)+headerSize)
	a.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrCorrupt, path, err)
	}

	if e.CompressedSize == e.UncompressedSize {
		return raw[:e.UncompressedSize], nil
	}
	data, err := inflate(raw, e.UncompressedSize)
	if err != nil {
		return nil, fmt.Errorf("%w: inflating %s: %v", ErrCorrupt, path, err)
	}
	return data, nil
}

func inflate(data []byte, size uint32) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	out := make([]byte, size)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, err
	}
	return out, nil
}

// NormalizePath lowercases path and turns backslashes into slashes.
func NormalizePath(path string) string {
	return strings.ToLower(strings.ReplaceAll(path, "\\", "/"))
}

// Write encodes files as a GRF 0x200 archive. Paths are stored with
// backslashes, as the client expects.
func Write(w io.Writer, files map[string][]byte) error {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var body, table bytes.Buffer
	for _, name := range names {
		data := files[name]

		var zbuf bytes.Buffer
		zw := zlib.NewWriter(&zbuf)
		if _, err := zw.Write(data); err != nil {
			return fmt.Errorf("compressing %s: %w", name, err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("compressing %s: %w", name, err)
		}

		stored := zbuf.Bytes()
		// Equal sizes mean "stored uncompressed" to readers.
		if len(stored) == len(data) {
			stored = data
		}

		table.WriteString(strings.ReplaceAll(name, "/", "\\"))
		table.WriteByte(0)
		var rec [17]byte
		binary.LittleEndian.PutUint32(rec[0:], uint32(len(stored)))
		binary.LittleEndian.PutUint32(rec[4:], uint32(len(stored)))
		binary.LittleEndian.PutUint32(rec[8:], uint32(len(data)))
		rec[12] = flagFile
		binary.LittleEndian.PutUint32(rec[13:], uint32(body.Len()))
		table.Write(rec[:])

		body.Write(stored)
	}

	var ztable bytes.Buffer
	zw := zlib.NewWriter(&ztable)
	if _, err := zw.Write(table.Bytes()); err != nil {
		return fmt.Errorf("compressing table: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compressing table: %w", err)
	}

	h := Header{
		TableOffset: uint32(body.Len()),
		FileCount:   uint32(len(names)) + 7,
		Version:     version200,
	}
	copy(h.Magic[:], grfMagic)
	for i := range h.EncryptionKey {
		h.EncryptionKey[i] = byte(i)
	}

	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return err
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return err
	}
	var sizes [8]byte
	binary.LittleEndian.PutUint32(sizes[0:], uint32(ztable.Len()))
	binary.LittleEndian.PutUint32(sizes[4:], uint32(table.Len()))
	if _, err := w.Write(sizes[:]); err != nil {
		return err
	}
	_, err := w.Write(ztable.Bytes())
	return err
}
