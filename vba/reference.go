package vba

import "encoding/binary"

// normalizeUntilNUL copies b up to (not including) the first 0x00 byte.
// This is the "temp buffer then copy until first NUL" rule the spec uses
// for REFERENCEPROJECT, REFERENCECONTROL, and REFERENCEORIGINAL.
func normalizeUntilNUL(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}
	return b
}

// referenceProjectRecord is the REFERENCEPROJECT (0x000E) payload shape:
// two length-prefixed ANSI byte strings followed by a version pair.
type referenceProjectRecord struct {
	LibidAbsolute []byte
	LibidRelative []byte
	MajorVersion  uint32
	MinorVersion  uint16
}

func parseReferenceProject(data []byte) (referenceProjectRecord, bool) {
	var r referenceProjectRecord
	i := 0
	readStr := func() ([]byte, bool) {
		if i+4 > len(data) {
			return nil, false
		}
		n := int(binary.LittleEndian.Uint32(data[i : i+4]))
		i += 4
		if n < 0 || i+n > len(data) {
			return nil, false
		}
		s := data[i : i+n]
		i += n
		return s, true
	}
	var ok bool
	if r.LibidAbsolute, ok = readStr(); !ok {
		return r, false
	}
	if r.LibidRelative, ok = readStr(); !ok {
		return r, false
	}
	if i+6 > len(data) {
		return r, false
	}
	r.MajorVersion = binary.LittleEndian.Uint32(data[i : i+4])
	r.MinorVersion = binary.LittleEndian.Uint16(data[i+4 : i+6])
	return r, true
}

// normalizeReferenceProject builds LibidAbsolute||LibidRelative||
// MajorVersion_u32le||MinorVersion_u16le and truncates at the first NUL.
func normalizeReferenceProject(data []byte) ([]byte, bool) {
	r, ok := parseReferenceProject(data)
	if !ok {
		return nil, false
	}
	buf := make([]byte, 0, len(r.LibidAbsolute)+len(r.LibidRelative)+6)
	buf = append(buf, r.LibidAbsolute...)
	buf = append(buf, r.LibidRelative...)
	var tail [6]byte
	binary.LittleEndian.PutUint32(tail[0:4], r.MajorVersion)
	binary.LittleEndian.PutUint16(tail[4:6], r.MinorVersion)
	buf = append(buf, tail[:]...)
	return normalizeUntilNUL(buf), true
}

// referenceControlRecord is REFERENCECONTROL's (0x002F) own fixed-layout
// portion: LibidTwiddled (length-prefixed ANSI string) then two reserved
// fields. A nested REFERENCEORIGINAL may follow in the dir stream but is
// a distinct record, not part of this payload.
type referenceControlRecord struct {
	LibidTwiddled []byte
	Reserved1     uint32
	Reserved2     uint16
}

func parseReferenceControl(data []byte) (referenceControlRecord, bool) {
	var r referenceControlRecord
	if len(data) < 4 {
		return r, false
	}
	n := int(binary.LittleEndian.Uint32(data[0:4]))
	if n < 0 || 4+n+6 > len(data) {
		return r, false
	}
	r.LibidTwiddled = data[4 : 4+n]
	rest := data[4+n:]
	r.Reserved1 = binary.LittleEndian.Uint32(rest[0:4])
	r.Reserved2 = binary.LittleEndian.Uint16(rest[4:6])
	return r, true
}

// normalizeReferenceControl builds LibidTwiddled||Reserved1_u32le||
// Reserved2_u16le and truncates at the first NUL.
func normalizeReferenceControl(data []byte) ([]byte, bool) {
	r, ok := parseReferenceControl(data)
	if !ok {
		return nil, false
	}
	buf := make([]byte, 0, len(r.LibidTwiddled)+6)
	buf = append(buf, r.LibidTwiddled...)
	var tail [6]byte
	binary.LittleEndian.PutUint32(tail[0:4], r.Reserved1)
	binary.LittleEndian.PutUint16(tail[4:6], r.Reserved2)
	buf = append(buf, tail[:]...)
	return normalizeUntilNUL(buf), true
}

// normalizeReferenceOriginal copies LibidOriginal (the whole REFERENCEORIGINAL
// payload, a length-prefixed ANSI string with the length prefix stripped)
// until the first NUL.
func normalizeReferenceOriginal(data []byte) ([]byte, bool) {
	if len(data) < 4 {
		return nil, false
	}
	n := int(binary.LittleEndian.Uint32(data[0:4]))
	if n < 0 || 4+n > len(data) {
		return nil, false
	}
	return normalizeUntilNUL(data[4 : 4+n]), true
}
