package vba

import "bytes"

// moduleRecord accumulates the sub-records belonging to one MODULE entry
// of the `dir` stream's PROJECTMODULES section, in file order, terminated
// by idModuleTerminator.
type moduleRecord struct {
	Name         []byte // MODULENAME payload, producer codepage
	StreamName   []byte // MODULESTREAMNAME payload
	TextOffset   int64  // MODULEOFFSET value, -1 if never seen
	TypeID       uint16 // idModuleTypeProc or idModuleTypeDoc, 0 if unseen
	ReadOnly     []byte // MODULEREADONLY id+reserved bytes, nil if absent
	ReadOnlyID   uint16
	Private      []byte // MODULEPRIVATE id+reserved bytes, nil if absent
	PrivateID    uint16
}

// splitModules walks the flat record sequence following a PROJECTMODULES
// header and groups records into one moduleRecord per module, stopping at
// each idModuleTerminator.
func splitModules(recs []record) []moduleRecord {
	var modules []moduleRecord
	var cur *moduleRecord
	for _, r := range recs {
		switch r.ID {
		case idModuleName:
			modules = append(modules, moduleRecord{TextOffset: -1})
			cur = &modules[len(modules)-1]
			cur.Name = r.Data
		case idModuleStreamName:
			if cur != nil {
				cur.StreamName = r.Data
			}
		case idModuleOffset:
			if cur != nil && len(r.Data) >= 4 {
				cur.TextOffset = int64(leUint32(r.Data))
			}
		case idModuleTypeProc, idModuleTypeDoc:
			if cur != nil {
				cur.TypeID = r.ID
			}
		case idModuleReadOnly:
			if cur != nil {
				cur.ReadOnly = r.Data
				cur.ReadOnlyID = r.ID
			}
		case idModulePrivate:
			if cur != nil {
				cur.Private = r.Data
				cur.PrivateID = r.ID
			}
		case idModuleTerminator:
			cur = nil
		}
	}
	return modules
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// moduleSource decompresses a module stream and returns the decompressed
// source bytes; normalizeSourceV1 and normalizeSourceV3 apply the line
// rules. offset is the byte position (within the *compressed* stream)
// where the source's CompressedContainer begins; if it does not point at
// a valid signature, the container's first chunk is instead located
// heuristically by scanning for the first chunk-header signature match.
func moduleSource(streamBytes []byte, offset int64) ([]byte, error) {
	start := int(offset)
	if start < 0 || start >= len(streamBytes) || streamBytes[start] != signatureByte {
		if found, ok := FindSignatureOffset(streamBytes); ok {
			return decompressChunks(streamBytes[found:])
		}
		start = 0
	}
	decompressed, err := Decompress(streamBytes[start:])
	if err != nil {
		return nil, err
	}
	return decompressed, nil
}

// normalizeSourceV1 splits decompressed module source on CR or lone LF
// (the LF half of a CRLF pair is ignored), drops any line whose
// non-whitespace prefix case-insensitively reads "Attribute" optionally
// followed by one space or tab, and terminates every remaining line with
// CRLF.
func normalizeSourceV1(src []byte) []byte {
	var out []byte
	for _, line := range splitLines(src) {
		if isAttributeLine(line) {
			continue
		}
		out = append(out, line...)
		out = append(out, '\r', '\n')
	}
	return out
}

// v3DefaultAttributes are the fixed boilerplate "Attribute" lines VBA's
// editor emits for every class/document/designer module; V3's transcript
// omits them byte-exact (MS-OVBA content-normalization, V3 rules) so a
// module's hash isn't perturbed by IDE-regenerated, content-free lines.
var v3DefaultAttributes = [][]byte{
	[]byte(`Attribute VB_Base = "0{00020820-0000-0000-C000-000000000046}"`),
	[]byte(`Attribute VB_GlobalNameSpace = False`),
	[]byte(`Attribute VB_Creatable = False`),
	[]byte(`Attribute VB_PredeclaredId = True`),
	[]byte(`Attribute VB_Exposed = True`),
	[]byte(`Attribute VB_TemplateDerived = False`),
	[]byte(`Attribute VB_Customizable = True`),
}

const v3VBNamePrefix = "attribute vb_name = "

// normalizeSourceV3 applies the stricter V3 line rules: an "Attribute
// VB_Name = ..." line (prefix match, case-insensitive) is always omitted;
// a line matching one of v3DefaultAttributes byte-for-byte is omitted;
// every other line is CRLF-terminated and kept. If any line survives,
// the module's original name bytes followed by "\n" are appended after
// all lines.
func normalizeSourceV3(src []byte, moduleName []byte) []byte {
	var out []byte
	emitted := false
	for _, line := range splitLines(src) {
		if hasFoldPrefix(line, v3VBNamePrefix) {
			continue
		}
		if isDefaultAttributeLine(line) {
			continue
		}
		out = append(out, line...)
		out = append(out, '\r', '\n')
		emitted = true
	}
	if emitted {
		out = append(out, moduleName...)
		out = append(out, '\n')
	}
	return out
}

func isDefaultAttributeLine(line []byte) bool {
	for _, def := range v3DefaultAttributes {
		if bytes.Equal(line, def) {
			return true
		}
	}
	return false
}

func hasFoldPrefix(line []byte, prefix string) bool {
	if len(line) < len(prefix) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		c := line[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c != prefix[i] {
			return false
		}
	}
	return true
}

// splitLines splits on CR or lone LF: a CRLF pair is one break (the LF is
// swallowed with its preceding CR), a bare LF not preceded by CR is its
// own break, and a bare CR not followed by LF is also its own break.
func splitLines(src []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i := 0; i < len(src); i++ {
		switch src[i] {
		case '\r':
			lines = append(lines, src[start:i])
			if i+1 < len(src) && src[i+1] == '\n' {
				i++
			}
			start = i + 1
		case '\n':
			lines = append(lines, src[start:i])
			start = i + 1
		}
	}
	if start < len(src) {
		lines = append(lines, src[start:])
	}
	return lines
}

func isAttributeLine(line []byte) bool {
	i := 0
	for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	const prefix = "attribute"
	if len(line)-i < len(prefix) {
		return false
	}
	for j := 0; j < len(prefix); j++ {
		c := line[i+j]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c != prefix[j] {
			return false
		}
	}
	return true
}
