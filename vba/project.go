package vba

import "bytes"

// excludedProjectKeys are PROJECT-stream keys V3's transcript omits
// (case-insensitive), matching Office's own content-hash implementation:
// these keys carry storage bookkeeping (protection state, passwords,
// visibility) the hash must stay independent of.
var excludedProjectKeys = map[string]bool{
	"id":              true,
	"document":        true,
	"docmodule":       true,
	"cmg":             true,
	"dpb":              true,
	"gc":              true,
	"protectionstate": true,
	"password":        true,
	"visibilitystate": true,
}

// NormalizeProjectStream filters the textual PROJECT stream for the V3
// transcript: stop at the first section header other than
// "[Host Extender Info]", drop excluded keys, and re-emit every
// remaining "key=value" line with a CRLF terminator.
func NormalizeProjectStream(raw []byte) []byte {
	var out []byte
	for _, line := range splitProjectLines(raw) {
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 {
			continue
		}
		if trimmed[0] == '[' {
			if !bytes.EqualFold(trimmed, []byte("[Host Extender Info]")) {
				break
			}
			continue
		}
		eq := bytes.IndexByte(trimmed, '=')
		if eq < 0 {
			continue
		}
		key := string(bytes.ToLower(bytes.TrimSpace(trimmed[:eq])))
		if excludedProjectKeys[key] {
			continue
		}
		out = append(out, trimmed...)
		out = append(out, '\r', '\n')
	}
	return out
}

// splitProjectLines splits on any of CRLF, LFCR, lone CR, or lone LF.
func splitProjectLines(src []byte) [][]byte {
	var lines [][]byte
	start := 0
	i := 0
	for i < len(src) {
		switch src[i] {
		case '\r':
			lines = append(lines, src[start:i])
			if i+1 < len(src) && src[i+1] == '\n' {
				i += 2
			} else {
				i++
			}
			start = i
			continue
		case '\n':
			lines = append(lines, src[start:i])
			if i+1 < len(src) && src[i+1] == '\r' {
				i += 2
			} else {
				i++
			}
			start = i
			continue
		}
		i++
	}
	if start < len(src) {
		lines = append(lines, src[start:])
	}
	return lines
}
