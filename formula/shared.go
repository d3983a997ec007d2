package formula

import (
	"encoding/binary"

	"github.com/TsubasaBE/formulacore/biff12"
	"github.com/TsubasaBE/formulacore/cursor"
	"github.com/TsubasaBE/formulacore/errs"
)

// SharedDefinition is a shared-formula record's cached definition: the
// base cell it was authored at, the rectangular range over which it
// applies, and its rgce.
type SharedDefinition struct {
	Base              BaseCell
	RowFirst, RowLast int
	ColFirst, ColLast int
	Rgce              []byte
}

// Contains reports whether (row, col) falls inside the definition's range.
func (s SharedDefinition) Contains(row, col int) bool {
	return row >= s.RowFirst && row <= s.RowLast && col >= s.ColFirst && col <= s.ColLast
}

// ptgExpCandidate is one of the three ambiguous PtgExp payload layouts.
type ptgExpCandidate struct {
	row, col int
}

func decodePtgExpCandidates(payload []byte) []ptgExpCandidate {
	var out []ptgExpCandidate
	if len(payload) >= 4 {
		out = append(out, ptgExpCandidate{
			row: int(binary.LittleEndian.Uint16(payload[0:2])),
			col: int(binary.LittleEndian.Uint16(payload[2:4])),
		})
	}
	if len(payload) >= 6 {
		out = append(out, ptgExpCandidate{
			row: int(binary.LittleEndian.Uint32(payload[0:4])),
			col: int(binary.LittleEndian.Uint16(payload[4:6])),
		})
	}
	if len(payload) >= 8 {
		out = append(out, ptgExpCandidate{
			row: int(binary.LittleEndian.Uint32(payload[0:4])),
			col: int(binary.LittleEndian.Uint32(payload[4:8])),
		})
	}
	return out
}

// ResolvePtgExp tries each candidate layout of a PtgExp payload in order,
// returning the first (row, col) that is in-bounds and matches the base
// cell of one of the registered shared definitions.
func ResolvePtgExp(payload []byte, defs []SharedDefinition) (*SharedDefinition, bool) {
	for _, cand := range decodePtgExpCandidates(payload) {
		if cand.row < 0 || cand.row > maxRow || cand.col < 0 || cand.col > maxCol {
			continue
		}
		for i := range defs {
			if defs[i].Base.Row == cand.row && defs[i].Base.Col == cand.col {
				return &defs[i], true
			}
		}
	}
	return nil, false
}

// Materialize rewrites def.Rgce as if it had been authored at target
// instead of def.Base: relative references are shifted by the delta
// between the two cells, absolute references are copied unchanged, and
// any shifted coordinate that leaves the valid sheet range becomes the
// token's error counterpart, class-preserving. The returned slice is
// always the same length as def.Rgce.
func Materialize(def SharedDefinition, target BaseCell, dialect Dialect) ([]byte, error) {
	out := make([]byte, len(def.Rgce))
	copy(out, def.Rgce)
	m := &materializer{dialect: dialect, target: target, buf: out}
	c := cursor.New(out)
	if err := m.walk(c); err != nil {
		return nil, err
	}
	return out, nil
}

type materializer struct {
	dialect Dialect
	target  BaseCell
	buf     []byte
}

func (m *materializer) walk(c *cursor.Cursor) error {
	for c.Remaining() > 0 {
		off := c.Offset()
		tag, err := c.ReadUint8()
		if err != nil {
			return wrapEOF(c, "tag", 1, err)
		}
		if err := m.step(c, tag, off); err != nil {
			return err
		}
	}
	return nil
}

func (m *materializer) step(c *cursor.Cursor, tag byte, offset int) error {
	if tag < 0x20 {
		return m.stepUnclassed(c, tag, offset)
	}
	class := tag & 0x60
	base := (tag &^ 0x60) | 0x20
	return m.stepClassed(c, base, class, offset)
}

func (m *materializer) stepUnclassed(c *cursor.Cursor, tag byte, offset int) error {
	switch {
	case tag == biff12.PtgExp || tag == biff12.PtgTbl:
		return skipN(c, 4)
	case tag >= 0x03 && tag <= 0x16:
		return nil
	case tag == biff12.PtgStr:
		return boolErr(scanStr(c, m.dialect), c, tag, offset)
	case tag == biff12.PtgExtend:
		return boolErr(scanExtend(c), c, tag, offset)
	case tag == biff12.PtgAttr:
		return boolErr(scanAttr(c), c, tag, offset)
	case tag == biff12.PtgErr || tag == biff12.PtgBool:
		return skipN(c, 1)
	case tag == biff12.PtgInt:
		return skipN(c, 2)
	case tag == biff12.PtgNum:
		return skipN(c, 8)
	default:
		return &errs.UnsupportedToken{Offset: offset, Tag: tag}
	}
}

func boolErr(ok bool, c *cursor.Cursor, tag byte, offset int) error {
	if !ok {
		return &errs.UnsupportedToken{Offset: offset, Tag: tag}
	}
	return nil
}

func skipN(c *cursor.Cursor, n int) error {
	if err := c.Skip(n); err != nil {
		return wrapEOF(c, "skip", n, err)
	}
	return nil
}

func (m *materializer) stepClassed(c *cursor.Cursor, base, class byte, offset int) error {
	switch base {
	case biff12.PtgArrayBase:
		return skipN(c, 7) // side table lives in rgcb; the array payload itself never needs shifting
	case biff12.PtgFuncBase:
		return skipN(c, 2)
	case biff12.PtgFuncVarBase:
		return skipN(c, 3)
	case biff12.PtgNameBase:
		return skipN(c, 6)
	case biff12.PtgRefBase:
		return m.rewriteRef(c, offset, false, biff12.PtgRefBase, class)
	case biff12.PtgAreaBase:
		return m.rewriteRef(c, offset, true, biff12.PtgAreaBase, class)
	case biff12.PtgRefErrBase:
		return skipN(c, refPayloadSize(m.dialect, false))
	case biff12.PtgAreaErrBase:
		return skipN(c, refPayloadSize(m.dialect, true))
	case biff12.PtgRefNBase:
		return m.rewriteRefN(c, offset, false, class)
	case biff12.PtgAreaNBase:
		return m.rewriteRefN(c, offset, true, class)
	case biff12.PtgMemAreaBase, biff12.PtgMemErrBase, biff12.PtgMemNoMemBase,
		biff12.PtgMemFuncBase, biff12.PtgMemAreaNBase:
		return m.rewriteMem(c)
	case biff12.PtgSpill:
		return nil
	case biff12.PtgNameXBase:
		return skipN(c, 4)
	case biff12.PtgRef3dBase:
		return skipN(c, 2+refPayloadSize(m.dialect, false))
	case biff12.PtgArea3dBase:
		return skipN(c, 2+refPayloadSize(m.dialect, true))
	case biff12.PtgRefErr3dBase:
		return skipN(c, 2+refPayloadSize(m.dialect, false))
	case biff12.PtgAreaErr3dBase:
		return skipN(c, 2+refPayloadSize(m.dialect, true))
	case biff12.PtgRefN3dBase:
		return skipN(c, 2+refPayloadSize(m.dialect, false))
	case biff12.PtgAreaN3dBase:
		return skipN(c, 2+refPayloadSize(m.dialect, true))
	default:
		return &errs.UnsupportedToken{Offset: offset, Tag: base | class}
	}
}

// corner is one (row, col-with-flags) pair read from m.buf at a known
// offset, with enough width information to write a shifted value back.
type corner struct {
	rowOff  int
	colOff  int
	rowWide bool // u32 row field (BIFF12) vs u16 (BIFF8)
}

func (m *materializer) readCorner(c corner) (row uint32, colField uint16) {
	if c.rowWide {
		row = binary.LittleEndian.Uint32(m.buf[c.rowOff:])
	} else {
		row = uint32(binary.LittleEndian.Uint16(m.buf[c.rowOff:]))
	}
	colField = binary.LittleEndian.Uint16(m.buf[c.colOff:])
	return row, colField
}

func (m *materializer) writeCorner(c corner, row uint32, colField uint16) {
	if c.rowWide {
		binary.LittleEndian.PutUint32(m.buf[c.rowOff:], row)
	} else {
		binary.LittleEndian.PutUint16(m.buf[c.rowOff:], uint16(row))
	}
	binary.LittleEndian.PutUint16(m.buf[c.colOff:], colField)
}

// shiftCorner shifts one corner's stored row/col in place and reports
// whether the shifted coordinate left the valid sheet range.
func (m *materializer) shiftCorner(c corner) (outOfBounds bool) {
	row, colField := m.readCorner(c)
	col := colField & biff12.ColMask
	rowRel := colField&biff12.ColRowRel != 0
	colRel := colField&biff12.ColColRel != 0

	newRow, newCol := int(row), int(col)
	if rowRel {
		newRow = m.target.Row + signExtendRow(int(row), m.dialect)
	}
	if colRel {
		newCol = m.target.Col + signExtendCol(int(col))
	}
	if newRow < 0 || newRow > maxRow || newCol < 0 || newCol > maxCol {
		return true
	}

	outRow := uint32(newRow)
	if rowRel {
		outRow = uint32(newRow - m.target.Row)
	}
	outColBits := uint16(newCol)
	if colRel {
		outColBits = uint16(int16(newCol - m.target.Col))
	}
	outColField := (outColBits & biff12.ColMask) | colField&(biff12.ColRowRel|biff12.ColColRel)
	m.writeCorner(c, outRow, outColField)
	return false
}

// rowWidth is 4 bytes (u32) in BIFF12, 2 bytes (u16) in BIFF8 — per the
// payload-size table, a plain ref's row field and an area's row_first/
// row_last fields share this width within a dialect.
func (m *materializer) rowWidth() int {
	if m.dialect == DialectBIFF12 {
		return 4
	}
	return 2
}

// refCorners returns the corner(s) of a (non-3D) ref/area token body,
// honoring the dialect's actual byte layout: a plain ref is a single
// [row][col] pair; an area is [row_first][row_last][col_first][col_last]
// — rows block first, then columns — not two interleaved [row][col]
// pairs.
func (m *materializer) refCorners(bodyOffset int, area bool) []corner {
	w := m.rowWidth()
	if !area {
		return []corner{{rowOff: bodyOffset, colOff: bodyOffset + w, rowWide: w == 4}}
	}
	return []corner{
		{rowOff: bodyOffset, colOff: bodyOffset + 2*w, rowWide: w == 4},
		{rowOff: bodyOffset + w, colOff: bodyOffset + 2*w + 2, rowWide: w == 4},
	}
}

func (m *materializer) rewriteRef(c *cursor.Cursor, tagOffset int, area bool, base, class byte) error {
	bodyOffset := tagOffset + 1
	oob := false
	for _, corner := range m.refCorners(bodyOffset, area) {
		if m.shiftCorner(corner) {
			oob = true
		}
	}
	size := refPayloadSize(m.dialect, area)
	if err := skipN(c, size); err != nil {
		return err
	}
	if oob {
		m.buf[tagOffset] = errTagFor(base, class)
	}
	return nil
}

func errTagFor(base, class byte) byte {
	switch base {
	case biff12.PtgRefBase:
		return biff12.PtgRefErrBase&^0x60 | class
	case biff12.PtgAreaBase:
		return biff12.PtgAreaErrBase&^0x60 | class
	}
	return base&^0x60 | class
}

// rewriteRefN shifts a relative-only PtgRefN/PtgAreaN token and rewrites
// it, class-preserving, into the equivalent PtgRef/PtgArea (or its error
// counterpart on overflow) — PtgRefN/PtgAreaN tokens are only ever legal
// inside a shared or named formula's own base-relative frame, and once
// materialized at a concrete target cell their offsets become ordinary
// absolute-or-relative references.
func (m *materializer) rewriteRefN(c *cursor.Cursor, tagOffset int, area bool, class byte) error {
	bodyOffset := tagOffset + 1
	oob := false
	for _, corner := range m.refCorners(bodyOffset, area) {
		if m.shiftCorner(corner) {
			oob = true
		}
	}
	size := refPayloadSize(m.dialect, area)
	if err := skipN(c, size); err != nil {
		return err
	}
	newBase := byte(biff12.PtgRefBase)
	if area {
		newBase = biff12.PtgAreaBase
	}
	newTag := newBase&^0x60 | class
	if oob {
		newTag = errTagFor(newBase, class)
	}
	m.buf[tagOffset] = newTag
	return nil
}

// rewriteMem recurses into a PtgMem* token's nested cce bytes, rewriting
// the references inside in place. The nested size is unchanged by
// construction: shiftCorner only ever patches fields in place and
// errTagFor only ever swaps a tag byte for another of the same family.
func (m *materializer) rewriteMem(c *cursor.Cursor) error {
	cce, err := c.ReadUint16()
	if err != nil {
		return wrapEOF(c, "PtgMem-cce", 2, err)
	}
	start := c.Offset()
	if err := skipN(c, int(cce)); err != nil {
		return err
	}
	inner := cursor.New(m.buf[start : start+int(cce)])
	return m.walk(inner)
}
