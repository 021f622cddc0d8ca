package sarc

import (
	"io"
	"log/slog"
	"sort"

	"github.com/zeldamods/gosarc/internal/aligncache"
)

// alignCacheSize bounds the per-Writer memoization cache for resolved
// alignments. Sized generously for the largest archives this format sees in
// practice (a few thousand distinct extensions and payloads).
const alignCacheSize = 4096

func aligncacheHash(data []byte) uint64 {
	return aligncache.Hash(data)
}

// Writer plans and emits a SARC archive from an ordered set of named
// payloads plus the configuration described in the alignment resolver.
type Writer struct {
	endian         Endian
	hashMultiplier uint32
	minAlignment   int
	legacy         bool
	alignmentMap   map[string]int

	// Files is the ordered name→payload map Serialize consumes. Callers
	// add, overwrite, remove, and reorder entries directly through it.
	Files *FileMap

	cache *aligncache.T
}

// NewWriter returns an empty Writer configured for the given byte order,
// with the default hash multiplier and minimum alignment.
func NewWriter(endian Endian) *Writer {
	return &Writer{
		endian:         endian,
		hashMultiplier: defaultHashMultiplier,
		minAlignment:   defaultMinAlignment,
		alignmentMap:   make(map[string]int),
		Files:          NewFileMap(),
		cache:          aligncache.New(alignCacheSize),
	}
}

// WriterFromReader returns a Writer pre-populated with every named file in
// r, inheriting r's endianness and hash multiplier and using r's guessed
// minimum alignment as a starting point. Unnamed entries have no place in a
// name-keyed FileMap and are dropped; a caller round-tripping an archive
// with unnamed entries must handle them separately.
func WriterFromReader(r *Reader) *Writer {
	w := NewWriter(r.Endian())
	w.hashMultiplier = r.HashMultiplier()
	w.minAlignment = int(r.GuessMinAlignment())
	for f := range r.All() {
		if f.HasName {
			w.Files.Set(f.Name, f.Data)
		}
	}
	return w
}

// SetEndian sets the byte order Serialize emits. Since the BFLIM alignment
// contribution and the default bffnt alignment both depend on endian, this
// invalidates any alignments already memoized under the old one.
func (w *Writer) SetEndian(e Endian) {
	w.endian = e
	w.cache.Reset()
}

// SetMinAlignment sets the floor alignment every file receives. align must
// be a nonzero power of two.
func (w *Writer) SetMinAlignment(align int) error {
	if align == 0 || !isPowerOfTwo(uint64(align)) {
		return &InvalidAlignmentError{Alignment: align}
	}
	w.minAlignment = align
	w.cache.Reset()
	return nil
}

// SetLegacyMode toggles the pre-BOTW alignment rules described in the
// alignment resolver: SARC-in-SARC detection is turned on, and
// content-sniffed alignment applies to every file, not just those outside
// the factory table.
func (w *Writer) SetLegacyMode(legacy bool) {
	w.legacy = legacy
	w.cache.Reset()
}

// SetHashMultiplier sets the per-archive hash parameter stored in the FAT
// header and used to sort and hash every file name.
func (w *Writer) SetHashMultiplier(mult uint32) { w.hashMultiplier = mult }

// AddAlignmentRequirement registers a per-extension alignment override.
// align must be a nonzero power of two. Serialize repopulates its built-in
// defaults on every call and will silently overwrite an override whose
// extension collides with one of those defaults; see populateDefaultAlignments.
func (w *Writer) AddAlignmentRequirement(ext string, align int) error {
	if align == 0 || !isPowerOfTwo(uint64(align)) {
		return &InvalidAlignmentError{Alignment: align}
	}
	if w.alignmentMap == nil {
		w.alignmentMap = make(map[string]int)
	}
	w.alignmentMap[ext] = align
	w.cache.Reset()
	return nil
}

type plannedEntry struct {
	name      string
	data      []byte
	nameHash  uint32
	alignment int
}

// Serialize plans the on-disk layout and emits a complete archive. It
// re-sorts w.Files by name hash in place, so a second call on an unmodified
// Writer produces the same bytes but observes the files in hash order
// rather than original insertion order.
func (w *Writer) Serialize() ([]byte, error) {
	w.populateDefaultAlignments()

	names := w.Files.Names()
	entries := make([]plannedEntry, len(names))
	for i, name := range names {
		data, _ := w.Files.Get(name)
		entries[i] = plannedEntry{
			name:     name,
			data:     data,
			nameHash: hashName(w.hashMultiplier, name),
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].nameHash < entries[j].nameHash
	})
	w.Files.Reorder(entryNames(entries))
	warnOnHashCollisions(entries)

	for i := range entries {
		entries[i].alignment = w.resolveAlignment(entries[i].name, entries[i].data)
	}

	order := byteOrder(w.endian)
	buf := make([]byte, archiveHeaderSize+fatHeaderSize)

	// archive header is patched at the end; reserve its bytes as zero.
	fatBase := archiveHeaderSize
	copy(buf[fatBase:fatBase+4], fatMagic)
	order.PutUint16(buf[fatBase+4:fatBase+6], fatHeaderSize)
	order.PutUint16(buf[fatBase+6:fatBase+8], uint16(len(entries)))
	order.PutUint32(buf[fatBase+8:fatBase+12], w.hashMultiplier)

	fatEntriesOff := len(buf)
	buf = append(buf, make([]byte, fatEntrySize*len(entries))...)

	relDataOffset := int64(0)
	relStringOffset := int64(0)
	requiredAlignment := uint64(w.minAlignment)
	for i := range entries {
		e := &entries[i]
		requiredAlignment = lcm(requiredAlignment, uint64(e.alignment))
		relDataOffset = alignUp(relDataOffset, int64(e.alignment))

		entryOff := fatEntriesOff + fatEntrySize*i
		order.PutUint32(buf[entryOff:entryOff+4], e.nameHash)
		order.PutUint32(buf[entryOff+4:entryOff+8], uint32(1<<24)|uint32(relStringOffset/4))
		order.PutUint32(buf[entryOff+8:entryOff+12], uint32(relDataOffset))
		dataEnd := relDataOffset + int64(len(e.data))
		order.PutUint32(buf[entryOff+12:entryOff+16], uint32(dataEnd))

		relDataOffset = dataEnd
		relStringOffset += alignUp(int64(len(e.name))+1, 4)
	}

	fntBase := len(buf)
	buf = append(buf, make([]byte, fntHeaderSize)...)
	copy(buf[fntBase:fntBase+4], fntMagic)
	order.PutUint16(buf[fntBase+4:fntBase+6], fntHeaderSize)

	for _, e := range entries {
		buf = append(buf, e.name...)
		buf = append(buf, 0)
		buf = padTo(buf, alignUp(int64(len(buf)), 4))
	}

	dataStart := alignUp(int64(len(buf)), int64(requiredAlignment))
	buf = padTo(buf, dataStart)
	dataOffsetBegin := len(buf)

	for _, e := range entries {
		buf = padTo(buf, alignUp(int64(len(buf)), int64(e.alignment)))
		buf = append(buf, e.data...)
	}

	order.PutUint32(buf[8:12], uint32(len(buf)))
	order.PutUint32(buf[12:16], uint32(dataOffsetBegin))
	copy(buf[0:4], archiveMagic)
	order.PutUint16(buf[4:6], archiveHeaderSize)
	writeBOM(buf[6:8], w.endian)
	order.PutUint16(buf[16:18], archiveVersion)
	order.PutUint16(buf[18:20], 0)

	return buf, nil
}

// padTo appends zero bytes to buf until it reaches length n.
func padTo(buf []byte, n int64) []byte {
	if int64(len(buf)) >= n {
		return buf
	}
	return append(buf, make([]byte, n-int64(len(buf)))...)
}

func entryNames(entries []plannedEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.name
	}
	return out
}

func writeBOM(b []byte, e Endian) {
	if e == Big {
		b[0], b[1] = 0xFE, 0xFF
	} else {
		b[0], b[1] = 0xFF, 0xFE
	}
}

// warnOnHashCollisions logs, at debug level, any pair of distinct names
// that hash identically under the writer's multiplier. This is the one
// place the library can cheaply detect the condition; it never fails
// serialize, since the format itself tolerates it on read.
func warnOnHashCollisions(entries []plannedEntry) {
	for i := 1; i < len(entries); i++ {
		if entries[i].nameHash == entries[i-1].nameHash && entries[i].name != entries[i-1].name {
			slog.Debug("sarc: name hash collision", "a", entries[i-1].name, "b", entries[i].name, "hash", entries[i].nameHash)
		}
	}
}

// WriteTo serializes the archive and writes it to w, satisfying io.WriterTo.
func (w *Writer) WriteTo(dst io.Writer) (int64, error) {
	buf, err := w.Serialize()
	if err != nil {
		return 0, err
	}
	n, err := dst.Write(buf)
	return int64(n), err
}
