package sarc

import (
	"github.com/zeldamods/gosarc/internal/aglenv"
	"github.com/zeldamods/gosarc/internal/factorytable"
)

// resolveAlignment computes the per-file alignment A(name, data) described
// in the alignment resolver design: the LCM of the writer's min_alignment,
// any extension override, a legacy SARC-in-SARC contribution, and (when the
// extension is outside the factory table, or legacy mode is on) the
// content-sniffed "new binary file" and BFLIM contributions.
func (w *Writer) resolveAlignment(name string, data []byte) int {
	ext := extensionOf(name)
	if w.cache != nil {
		if a, ok := w.cache.Get(ext, aligncacheHash(data)); ok {
			return a
		}
	}

	a := uint64(w.minAlignment)

	if align, ok := w.alignmentMap[ext]; ok {
		a = lcm(a, uint64(align))
	}

	if w.legacy && isSarcPayload(data) {
		a = lcm(a, 0x2000)
	}

	if w.legacy || !factorytable.Contains(ext) {
		a = lcm(a, uint64(newBinaryFileAlignment(data)))
		if w.endian == Big {
			a = lcm(a, uint64(bflimAlignment(data)))
		}
	}

	if w.cache != nil {
		w.cache.Add(ext, aligncacheHash(data), int(a))
	}
	return int(a)
}

// isSarcPayload reports whether data is itself a bare or Yaz0-wrapped SARC
// image, for the legacy SARC-in-SARC alignment rule. It duplicates IsSarc's
// check without IsSarc's minimum-length floor, since the resolver is allowed
// to see short payloads that are trivially not SARC images.
func isSarcPayload(data []byte) bool {
	if len(data) >= 4 && string(data[0:4]) == archiveMagic {
		return true
	}
	return len(data) >= 0x15 && string(data[0:4]) == "Yaz0" && string(data[0x11:0x15]) == archiveMagic
}

// newBinaryFileAlignment implements the "new binary file" heuristic: a
// payload whose bytes at offset 0xC parse as a BOM, and whose u32 file_size
// field at offset 0x1C (in that BOM's endianness) equals len(data), is
// assumed to be a BOM-tagged binary resource that wants `1 << data[0xE]`
// alignment. Anything else contributes no alignment requirement (1).
func newBinaryFileAlignment(data []byte) int {
	if len(data) <= 0x20 {
		return 1
	}
	endian, ok := parseBOM(data[0xC : 0xC+2])
	if !ok {
		return 1
	}
	fileSize := byteOrder(endian).Uint32(data[0x1C : 0x1C+4])
	if int(fileSize) != len(data) {
		return 1
	}
	return 1 << data[0xE]
}

// bflimAlignment implements the BFLIM detection rule: a payload longer than
// 0x28 bytes, with the magic "FLIM" starting 0x28 bytes before its end,
// contributes the big-endian u16 stored 8 bytes before its end.
func bflimAlignment(data []byte) int {
	if len(data) <= 0x28 {
		return 1
	}
	n := len(data)
	if string(data[n-0x28:n-0x24]) != "FLIM" {
		return 1
	}
	return int(byteOrder(Big).Uint16(data[n-8 : n-6]))
}

// populateDefaultAlignments writes the built-in table into w.alignmentMap:
// every AGL-environment entry's ext and bext (for entries with a positive
// alignment), then the hardcoded extensions below. Entries for other
// extensions are left in place. This intentionally
// overwrites any caller-set AddAlignmentRequirement override sharing one of
// these extensions; it runs once per Serialize, mirroring the reference
// algorithm's own repopulate-every-write behavior.
func (w *Writer) populateDefaultAlignments() {
	if w.alignmentMap == nil {
		w.alignmentMap = make(map[string]int)
	}

	for _, req := range aglenv.AlignmentRequirements() {
		w.alignmentMap[req.Ext] = req.Align
	}

	w.alignmentMap["ksky"] = 8
	w.alignmentMap["bksky"] = 8
	w.alignmentMap["gtx"] = 0x2000
	w.alignmentMap["sharcb"] = 0x1000
	w.alignmentMap["sharc"] = 0x1000
	w.alignmentMap["baglmf"] = 0x80
	if w.endian == Big {
		w.alignmentMap["bffnt"] = 0x2000
	} else {
		w.alignmentMap["bffnt"] = 0x1000
	}
}
