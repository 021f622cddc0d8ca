// Package sarc reads and writes SARC (Sead ARChive) container files, the
// flat resource archive format used by Nintendo EAD/EPD titles such as
// The Legend of Zelda: Breath of the Wild on Wii U and Switch.
//
// A SARC maps file-name paths to opaque byte blobs inside a single
// contiguous image, with each payload padded to an alignment the game
// engine can rely on to memory-map the file directly. Reader parses an
// existing image with zero copies; Writer plans and emits a new one,
// reproducing a parsed archive byte-for-byte when nothing about it has
// changed.
package sarc

import "fmt"

// Endian is the archive's byte order, carried by the 2-byte BOM at offset 6
// of the archive header.
type Endian int

const (
	// Big is the byte order used by Wii U titles. Its BOM is the byte
	// sequence FE FF.
	Big Endian = iota
	// Little is the byte order used by Switch titles. Its BOM is the byte
	// sequence FF FE.
	Little
)

func (e Endian) String() string {
	switch e {
	case Big:
		return "Big"
	case Little:
		return "Little"
	default:
		return fmt.Sprintf("Endian(%d)", int(e))
	}
}

const (
	archiveMagic = "SARC"
	fatMagic     = "SFAT"
	fntMagic     = "SFNT"

	archiveHeaderSize = 0x14
	fatHeaderSize     = 0x0C
	fntHeaderSize     = 0x08
	fatEntrySize      = 0x10

	archiveVersion = 0x0100

	// defaultHashMultiplier is the canonical per-archive hash parameter
	// stored in the FAT header.
	defaultHashMultiplier uint32 = 0x65

	// defaultMinAlignment is the Writer's floor alignment before any
	// extension rule, content sniff, or legacy rule raises it.
	defaultMinAlignment = 4
)

// hashName computes the 32-bit name hash used to sort and binary-search the
// FAT: hash := 0; for each UTF-8 byte b of name: hash = hash*multiplier + b,
// with wrapping 32-bit arithmetic.
func hashName(multiplier uint32, name string) uint32 {
	var hash uint32
	for i := 0; i < len(name); i++ {
		hash = hash*multiplier + uint32(name[i])
	}
	return hash
}

// isPowerOfTwo reports whether x is a nonzero power of two.
func isPowerOfTwo(x uint64) bool {
	return x != 0 && x&(x-1) == 0
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	return a / gcd(a, b) * b
}

// alignUp rounds p up to the nearest multiple of the power-of-two alignment
// a, using the wrapping two's-complement mask that is the canonical way to
// do this for any power of two.
func alignUp(p int64, a int64) int64 {
	return (p + a - 1) & ^(a - 1)
}

// extensionOf returns the substring of name after its last '.', or "" if
// name has none.
func extensionOf(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i+1:]
		}
	}
	return ""
}
