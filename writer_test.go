package sarc

import (
	"bytes"
	"testing"
)

func buildArchive(t *testing.T, endian Endian, files map[string][]byte) []byte {
	t.Helper()
	w := NewWriter(endian)
	for name, data := range files {
		w.Files.Set(name, data)
	}
	buf, err := w.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	return buf
}

func TestEmptyArchive(t *testing.T) {
	buf := buildArchive(t, Little, nil)
	r, err := Open(buf)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if r.FileCount() != 0 {
		t.Errorf("FileCount() = %d, want 0", r.FileCount())
	}
}

func TestSingleFileBigEndian(t *testing.T) {
	buf := buildArchive(t, Big, map[string][]byte{
		"hello.txt": []byte("hello, world"),
	})
	r, err := Open(buf)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if r.Endian() != Big {
		t.Errorf("Endian() = %v, want Big", r.Endian())
	}
	f, ok, err := r.GetByName("hello.txt")
	if err != nil || !ok {
		t.Fatalf("GetByName: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(f.Data, []byte("hello, world")) {
		t.Errorf("Data = %q, want %q", f.Data, "hello, world")
	}
}

func TestTenFileFixtureRoundTrip(t *testing.T) {
	files := map[string][]byte{
		"Actor/Pack/Link.sbactorpack":   bytes.Repeat([]byte{0x11}, 37),
		"Model/Link.sbfres":             bytes.Repeat([]byte{0x22}, 130),
		"Physics/Link.bphysics":         bytes.Repeat([]byte{0x33}, 64),
		"AIProgram/Guardian.baiprog":    bytes.Repeat([]byte{0x44}, 12),
		"Pack/Bootup.pack":              bytes.Repeat([]byte{0x55}, 256),
		"Sound/System.bfsar":            bytes.Repeat([]byte{0x66}, 512),
		"Map/MainField/A-1.smubin":      bytes.Repeat([]byte{0x77}, 8),
		"EventFlow/Demo000.bfevfl":      bytes.Repeat([]byte{0x88}, 9),
		"Effect/Common.sbeventpack":     bytes.Repeat([]byte{0x99}, 4),
		"Chemical/FldObj.bchemical":     bytes.Repeat([]byte{0xAA}, 3),
	}

	buf := buildArchive(t, Little, files)
	r, err := Open(buf)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if r.FileCount() != len(files) {
		t.Fatalf("FileCount() = %d, want %d", r.FileCount(), len(files))
	}

	for name, want := range files {
		f, ok, err := r.GetByName(name)
		if err != nil || !ok {
			t.Fatalf("GetByName(%q): ok=%v err=%v", name, ok, err)
		}
		if !bytes.Equal(f.Data, want) {
			t.Errorf("file %q: got %d bytes, want %d bytes", name, len(f.Data), len(want))
		}
	}

	w2 := WriterFromReader(r)
	buf2, err := w2.Serialize()
	if err != nil {
		t.Fatalf("Serialize (round-trip): %v", err)
	}
	if !bytes.Equal(buf, buf2) {
		t.Errorf("round-trip serialize did not reproduce the original archive byte-for-byte")
	}
}

func TestFATSortOrder(t *testing.T) {
	files := map[string][]byte{
		"zzz.bin": {1},
		"aaa.bin": {2},
		"mmm.bin": {3},
	}
	buf := buildArchive(t, Little, files)
	r, err := Open(buf)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	order := byteOrder(r.endian)
	var prev uint32
	for i := 0; i < r.FileCount(); i++ {
		off := int(r.entriesOffset) + fatEntrySize*i
		hash := order.Uint32(r.data[off : off+4])
		if i > 0 && hash < prev {
			t.Errorf("FAT entry %d has hash %d, less than previous %d", i, hash, prev)
		}
		prev = hash
	}
}

func TestAlignmentOverride(t *testing.T) {
	w := NewWriter(Little)
	if err := w.AddAlignmentRequirement("bin", 0x100); err != nil {
		t.Fatalf("AddAlignmentRequirement: %v", err)
	}
	w.Files.Set("payload.bin", []byte("x"))
	buf, err := w.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	r, err := Open(buf)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if r.DataOffset()%0x100 != 0 {
		t.Errorf("DataOffset() = %#x, not aligned to 0x100", r.DataOffset())
	}
}

func TestAlignmentOverrideRejectsNonPowerOfTwo(t *testing.T) {
	w := NewWriter(Little)
	if err := w.AddAlignmentRequirement("bin", 3); err == nil {
		t.Fatal("AddAlignmentRequirement(3): want error, got nil")
	}
	if err := w.SetMinAlignment(0); err == nil {
		t.Fatal("SetMinAlignment(0): want error, got nil")
	}
}

func TestLegacySarcInSarc(t *testing.T) {
	inner := buildArchive(t, Little, map[string][]byte{"leaf.txt": []byte("leaf")})

	w := NewWriter(Little)
	w.SetLegacyMode(true)
	w.Files.Set("nested.sarc", inner)
	buf, err := w.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	r, err := Open(buf)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	f, ok, err := r.GetByName("nested.sarc")
	if err != nil || !ok {
		t.Fatalf("GetByName(nested.sarc): ok=%v err=%v", ok, err)
	}
	begin := int(r.DataOffset())
	if begin%0x2000 != 0 {
		t.Errorf("nested SARC payload not aligned to 0x2000: data_offset=%#x", begin)
	}
	if !IsSarc(f.Data) {
		t.Error("nested payload does not read back as a SARC image")
	}
}

func TestBFLIMAlignment(t *testing.T) {
	payload := make([]byte, 0x30)
	copy(payload[0x30-0x28:0x30-0x24], "FLIM")
	byteOrder(Big).PutUint16(payload[0x30-8:0x30-6], 0x80)

	w := NewWriter(Big)
	w.Files.Set("texture.bflim", payload)
	buf, err := w.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	r, err := Open(buf)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if r.DataOffset()%0x80 != 0 {
		t.Errorf("DataOffset() = %#x, not aligned to 0x80", r.DataOffset())
	}
}

func TestFileMapReorderAndDelete(t *testing.T) {
	m := NewFileMap()
	m.Set("a", []byte("1"))
	m.Set("b", []byte("2"))
	m.Set("c", []byte("3"))

	m.Reorder([]string{"c", "a", "b"})
	got := m.Names()
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", got, want)
		}
	}

	m.Delete("a")
	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", m.Len())
	}
	if _, ok := m.Get("a"); ok {
		t.Fatal("Get(a) after Delete: ok = true")
	}
}

func TestGlob(t *testing.T) {
	files := map[string][]byte{
		"Actor/Pack/Link.sbactorpack":  {1},
		"Actor/Pack/Guardian.sbactorpack": {2},
		"Model/Link.sbfres":            {3},
	}
	buf := buildArchive(t, Little, files)
	r, err := Open(buf)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	matches, err := r.Glob("Actor/Pack/*.sbactorpack")
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("Glob matched %d names, want 2: %v", len(matches), matches)
	}
}

func TestWriteTo(t *testing.T) {
	w := NewWriter(Little)
	w.Files.Set("a.txt", []byte("hi"))
	var buf bytes.Buffer
	n, err := w.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if n != int64(buf.Len()) {
		t.Errorf("WriteTo returned n=%d, buffer has %d bytes", n, buf.Len())
	}
	if _, err := Open(buf.Bytes()); err != nil {
		t.Fatalf("Open(WriteTo output): %v", err)
	}
}

func TestResolverDeterminism(t *testing.T) {
	w := NewWriter(Little)
	w.populateDefaultAlignments()
	data := bytes.Repeat([]byte{0x42}, 64)
	a1 := w.resolveAlignment("x.bin", data)
	a2 := w.resolveAlignment("x.bin", data)
	if a1 != a2 {
		t.Errorf("resolveAlignment not deterministic: %d != %d", a1, a2)
	}
}

func TestAlignmentCacheInvalidatedByConfigChange(t *testing.T) {
	payload := make([]byte, 0x30)
	copy(payload[0x30-0x28:0x30-0x24], "FLIM")
	byteOrder(Big).PutUint16(payload[0x30-8:0x30-6], 0x80)

	w := NewWriter(Little)
	w.populateDefaultAlignments()
	before := w.resolveAlignment("texture.bflim", payload)

	w.SetEndian(Big)
	w.populateDefaultAlignments()
	after := w.resolveAlignment("texture.bflim", payload)

	if before == after {
		t.Fatalf("expected BFLIM alignment to differ across endianness, got %d both times", before)
	}
	if after != 0x80 {
		t.Errorf("resolveAlignment after SetEndian(Big) = %#x, want %#x", after, 0x80)
	}
}

func TestFilesEqual(t *testing.T) {
	files := map[string][]byte{"a.txt": []byte("x"), "b.txt": []byte("y")}
	bufA := buildArchive(t, Little, files)
	bufB := buildArchive(t, Big, files)

	rA, err := Open(bufA)
	if err != nil {
		t.Fatalf("Open(A): %v", err)
	}
	rB, err := Open(bufB)
	if err != nil {
		t.Fatalf("Open(B): %v", err)
	}
	if rA.Equal(rB) {
		t.Error("Equal: expected false for archives with different endianness")
	}
	if !FilesEqual(rA, rB) {
		t.Error("FilesEqual: expected true for archives with the same content")
	}
}
