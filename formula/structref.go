package formula

import "encoding/binary"

// Structured-reference (PtgList) flag bits.
const (
	StructRefAll      = 0x01
	StructRefHeaders  = 0x02
	StructRefData     = 0x04
	StructRefTotals   = 0x08
	StructRefThisRow  = 0x10
)

const structRefAllColsSentinel = 0xFFFF

// structRefCandidate is one candidate decoding of a PtgList 12-byte
// payload.
type structRefCandidate struct {
	TableID  uint32
	Flags    uint16
	ColFirst uint32
	ColLast  uint32
}

// decodeStructRef applies the canonical layout first, falling back to a
// scored selection among alternate byte-packings when the canonical
// result looks implausible. The ambiguity is real: different producers
// have been observed laying this payload out differently, and nothing in
// the 12 bytes self-describes which layout was used.
func decodeStructRef(payload [12]byte) structRefCandidate {
	canonical := structRefCandidate{
		TableID:  uint32(binary.LittleEndian.Uint16(payload[0:2])),
		Flags:    binary.LittleEndian.Uint16(payload[2:4]),
		ColFirst: uint32(binary.LittleEndian.Uint16(payload[4:6])),
		ColLast:  uint32(binary.LittleEndian.Uint16(payload[6:8])),
	}
	if score(canonical) >= plausibleThreshold {
		return canonical
	}

	candidates := []structRefCandidate{
		canonical,
		{ // u16 table/flags, u32 cols
			TableID:  uint32(binary.LittleEndian.Uint16(payload[0:2])),
			Flags:    binary.LittleEndian.Uint16(payload[2:4]),
			ColFirst: binary.LittleEndian.Uint32(payload[4:8]),
			ColLast:  binary.LittleEndian.Uint32(payload[8:12]),
		},
		{ // u32 table, u32 cols, no flags
			TableID:  binary.LittleEndian.Uint32(payload[0:4]),
			ColFirst: binary.LittleEndian.Uint32(payload[4:8]),
			ColLast:  binary.LittleEndian.Uint32(payload[8:12]),
		},
		{ // u32 table, u16 cols, trailing flags
			TableID:  binary.LittleEndian.Uint32(payload[0:4]),
			ColFirst: uint32(binary.LittleEndian.Uint16(payload[4:6])),
			ColLast:  uint32(binary.LittleEndian.Uint16(payload[6:8])),
			Flags:    binary.LittleEndian.Uint16(payload[8:10]),
		},
	}

	best := candidates[0]
	bestScore := score(best)
	for _, c := range candidates[1:] {
		if s := score(c); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best
}

const plausibleThreshold = 5

func score(c structRefCandidate) int {
	s := 0
	if c.Flags&^uint16(0x1F) == 0 {
		s += 2
	}
	if c.TableID != 0 {
		s += 2
	}
	allCols := c.ColFirst == structRefAllColsSentinel && c.ColLast == structRefAllColsSentinel
	if allCols || c.ColFirst <= c.ColLast {
		s += 2
	}
	if !allCols && c.ColFirst < 16384 && c.ColLast < 16384 {
		s += 1
	}
	return s
}

// renderStructRef formats a decoded structured reference using Excel's
// TableName[item, cols] syntax. tableName and colNames resolve table_id
// and the [col_first, col_last] range to display names; when either
// lookup fails, a deterministic placeholder is used so the output stays
// syntactically valid.
func renderStructRef(c structRefCandidate, tableName string, colName func(idx uint32) string) string {
	if c.Flags&StructRefThisRow != 0 {
		// Bare column form, no table name, only valid with exactly one column.
		return "[@" + colName(c.ColFirst) + "]"
	}

	var items []string
	if c.Flags&StructRefHeaders != 0 {
		items = append(items, "#Headers")
	}
	if c.Flags&StructRefData != 0 || c.Flags == 0 {
		items = append(items, "#Data")
	}
	if c.Flags&StructRefTotals != 0 {
		items = append(items, "#Totals")
	}
	if c.Flags&StructRefAll != 0 {
		items = []string{"#All"}
	}

	var cols string
	if c.ColFirst == structRefAllColsSentinel && c.ColLast == structRefAllColsSentinel {
		cols = ""
	} else if c.ColFirst == c.ColLast {
		cols = colName(c.ColFirst)
	} else {
		cols = colName(c.ColFirst) + ":" + colName(c.ColLast)
	}

	inner := ""
	switch {
	case len(items) > 0 && cols != "":
		inner = joinItems(items) + "," + cols
	case len(items) > 0:
		inner = joinItems(items)
	default:
		inner = cols
	}
	return tableName + "[" + inner + "]"
}

func joinItems(items []string) string {
	out := ""
	for i, it := range items {
		if i > 0 {
			out += ","
		}
		out += it
	}
	return out
}
