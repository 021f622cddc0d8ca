package sarc

import (
	"encoding/binary"
	"iter"
	"unicode/utf8"
)

// File is one entry of a SARC archive: its optional name and its payload,
// a zero-copy sub-slice of the Reader's backing buffer.
type File struct {
	Name    string
	HasName bool
	Data    []byte
}

// Reader parses an immutable SARC image. It performs zero copies: every
// payload it returns is a sub-slice of the buffer passed to Open, which
// must outlive any File obtained from it.
type Reader struct {
	data           []byte
	endian         Endian
	hashMultiplier uint32
	numFiles       uint16
	entriesOffset  uint32
	namesOffset    uint32
	dataOffset     uint32
}

func byteOrder(e Endian) binary.ByteOrder {
	if e == Big {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// parseBOM reads a raw 2-byte BOM and reports which endianness it encodes.
// FE FF is Big, FF FE is Little; any other value does not parse.
func parseBOM(b []byte) (Endian, bool) {
	if len(b) < 2 {
		return 0, false
	}
	switch {
	case b[0] == 0xFE && b[1] == 0xFF:
		return Big, true
	case b[0] == 0xFF && b[1] == 0xFE:
		return Little, true
	default:
		return 0, false
	}
}

// Open parses a SARC archive image. The returned Reader borrows data; the
// caller must not mutate it for the Reader's lifetime.
func Open(data []byte) (*Reader, error) {
	if len(data) < archiveHeaderSize {
		return nil, ErrTruncated
	}

	endian, ok := parseBOM(data[6:8])
	if !ok {
		return nil, invalidData("BOM", data[6:8])
	}
	order := byteOrder(endian)

	if string(data[0:4]) != archiveMagic {
		return nil, invalidData("SARC magic", string(data[0:4]))
	}
	headerSize := order.Uint16(data[4:6])
	if headerSize != archiveHeaderSize {
		return nil, invalidData("SARC header size", headerSize)
	}
	fileSize := order.Uint32(data[8:12])
	dataOffset := order.Uint32(data[12:16])
	version := order.Uint16(data[16:18])
	if version != archiveVersion {
		return nil, invalidData("SARC version", version)
	}
	if uint64(fileSize) > uint64(len(data)) {
		return nil, ErrTruncated
	}

	if len(data) < archiveHeaderSize+fatHeaderSize {
		return nil, ErrTruncated
	}
	fatBase := archiveHeaderSize
	if string(data[fatBase:fatBase+4]) != fatMagic {
		return nil, invalidData("SFAT magic", string(data[fatBase:fatBase+4]))
	}
	fatHeaderSz := order.Uint16(data[fatBase+4 : fatBase+6])
	if fatHeaderSz != fatHeaderSize {
		return nil, invalidData("SFAT header size", fatHeaderSz)
	}
	numFiles := order.Uint16(data[fatBase+6 : fatBase+8])
	if numFiles>>14 != 0 {
		return nil, invalidData("SFAT file count", numFiles)
	}
	hashMultiplier := order.Uint32(data[fatBase+8 : fatBase+12])

	entriesOffset := archiveHeaderSize + fatHeaderSize
	fntBase := entriesOffset + fatEntrySize*int(numFiles)
	if len(data) < fntBase+fntHeaderSize {
		return nil, ErrTruncated
	}
	if string(data[fntBase:fntBase+4]) != fntMagic {
		return nil, invalidData("SFNT magic", string(data[fntBase:fntBase+4]))
	}
	fntHeaderSz := order.Uint16(data[fntBase+4 : fntBase+6])
	if fntHeaderSz != fntHeaderSize {
		return nil, invalidData("SFNT header size", fntHeaderSz)
	}

	namesOffset := fntBase + fntHeaderSize
	if dataOffset < uint32(namesOffset) {
		return nil, invalidData("name table offset", namesOffset)
	}

	return &Reader{
		data:           data,
		endian:         endian,
		hashMultiplier: hashMultiplier,
		numFiles:       numFiles,
		entriesOffset:  uint32(entriesOffset),
		namesOffset:    uint32(namesOffset),
		dataOffset:     dataOffset,
	}, nil
}

// FileCount returns the number of entries in the archive.
func (r *Reader) FileCount() int { return int(r.numFiles) }

// Endian returns the archive's byte order.
func (r *Reader) Endian() Endian { return r.endian }

// DataOffset returns the absolute offset of the aligned data region.
func (r *Reader) DataOffset() uint32 { return r.dataOffset }

// HashMultiplier returns the per-archive hash parameter stored in the FAT
// header.
func (r *Reader) HashMultiplier() uint32 { return r.hashMultiplier }

func (r *Reader) entryAt(i int) (nameHash uint32, relNameOptOffset, dataBegin, dataEnd uint32) {
	order := byteOrder(r.endian)
	off := int(r.entriesOffset) + fatEntrySize*i
	e := r.data[off : off+fatEntrySize]
	return order.Uint32(e[0:4]), order.Uint32(e[4:8]), order.Uint32(e[8:12]), order.Uint32(e[12:16])
}

func (r *Reader) fileAt(i int) (File, error) {
	_, relNameOptOffset, dataBegin, dataEnd := r.entryAt(i)

	begin := uint64(r.dataOffset) + uint64(dataBegin)
	end := uint64(r.dataOffset) + uint64(dataEnd)
	if begin > end {
		return File{}, invalidData("FAT entry data range", dataBegin)
	}
	if end > uint64(len(r.data)) {
		return File{}, ErrTruncated
	}
	f := File{
		Data: r.data[begin:end],
	}

	if relNameOptOffset != 0 {
		nameAddr := r.namesOffset + (relNameOptOffset&0x00FFFFFF)*4
		if uint64(nameAddr) > uint64(len(r.data)) {
			return File{}, ErrUnterminatedName
		}
		rest := r.data[nameAddr:]
		nul := indexByte(rest, 0)
		if nul < 0 {
			return File{}, ErrUnterminatedName
		}
		if !utf8.Valid(rest[:nul]) {
			return File{}, ErrInvalidName
		}
		f.Name = string(rest[:nul])
		f.HasName = true
	}

	return f, nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// GetByIndex returns the file stored at FAT index i.
func (r *Reader) GetByIndex(i int) (File, error) {
	if i < 0 || i >= int(r.numFiles) {
		return File{}, &OutOfRangeError{Index: i, Count: int(r.numFiles)}
	}
	return r.fileAt(i)
}

// GetByName binary-searches the FAT for name and returns its file. The
// second result reports whether a matching entry was found.
func (r *Reader) GetByName(name string) (File, bool, error) {
	if r.numFiles == 0 {
		return File{}, false, nil
	}
	needle := hashName(r.hashMultiplier, name)

	a, b := 0, int(r.numFiles)-1
	for a <= b {
		m := a + (b-a)/2
		hash, _, _, _ := r.entryAt(m)
		switch {
		case needle < hash:
			b = m - 1
		case needle > hash:
			a = m + 1
		default:
			f, err := r.fileAt(m)
			return f, err == nil, err
		}
	}
	return File{}, false, nil
}

// All returns a sequence over every file in FAT order. A file whose entry
// fails to parse (unterminated name or invalid UTF-8) is skipped, mirroring
// GetByIndex's error contract without forcing every caller to handle it.
func (r *Reader) All() iter.Seq[File] {
	return func(yield func(File) bool) {
		for i := 0; i < int(r.numFiles); i++ {
			f, err := r.fileAt(i)
			if err != nil {
				continue
			}
			if !yield(f) {
				return
			}
		}
	}
}

// GuessMinAlignment folds the GCD of 4 with data_offset+data_begin across
// every entry. It returns 4 if that GCD is not itself a valid power-of-two
// alignment.
func (r *Reader) GuessMinAlignment() uint32 {
	const minAlignment = 4
	g := uint64(minAlignment)
	for i := 0; i < int(r.numFiles); i++ {
		_, _, dataBegin, _ := r.entryAt(i)
		g = gcd(g, uint64(r.dataOffset)+uint64(dataBegin))
	}
	if !isPowerOfTwo(g) {
		return minAlignment
	}
	return uint32(g)
}

// Equal reports whether other parses the same underlying archive bytes.
func (r *Reader) Equal(other *Reader) bool {
	if r == other {
		return true
	}
	if other == nil {
		return false
	}
	return bytesEqual(r.data, other.data)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// FilesEqual reports whether a and b contain the same files (name and
// payload, compared pairwise in FAT order), independent of whether their
// underlying archive bytes match.
func FilesEqual(a, b *Reader) bool {
	if a.FileCount() != b.FileCount() {
		return false
	}
	for i := 0; i < a.FileCount(); i++ {
		fa, err := a.fileAt(i)
		if err != nil {
			return false
		}
		fb, err := b.fileAt(i)
		if err != nil {
			return false
		}
		if fa.Name != fb.Name || fa.HasName != fb.HasName || !bytesEqual(fa.Data, fb.Data) {
			return false
		}
	}
	return true
}

// IsSarc reports whether data begins with a bare or Yaz0-wrapped SARC
// header. It never decompresses Yaz0; it only inspects the two magic
// numbers.
func IsSarc(data []byte) bool {
	if len(data) < 0x20 {
		return false
	}
	if string(data[0:4]) == archiveMagic {
		return true
	}
	return string(data[0:4]) == "Yaz0" && string(data[0x11:0x15]) == archiveMagic
}
