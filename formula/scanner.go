package formula

import (
	"github.com/TsubasaBE/formulacore/arrayconst"
	"github.com/TsubasaBE/formulacore/biff12"
	"github.com/TsubasaBE/formulacore/cursor"
	"github.com/TsubasaBE/formulacore/errs"
)

// Scan walks a sub-expression's rgce purely to advance rgcb past any array
// constants it references — it produces no text. It is used to keep the
// side table aligned when a PtgMem* token's nested bytes must be consumed
// without evaluating them (their fold-out text comes from the reference
// tokens that follow at the outer level, not from the memory token
// itself). An unrecognized tag stops scanning silently and conservatively,
// per this scanner's contract: it must never guess a payload size it
// isn't sure of, since a wrong guess would desynchronize rgcb for every
// array token after it.
func Scan(rgce *cursor.Cursor, rgcb *cursor.Cursor, dialect Dialect) {
	for rgce.Remaining() > 0 {
		tag, err := rgce.ReadUint8()
		if err != nil {
			return
		}
		if !scanOne(rgce, rgcb, dialect, tag) {
			return
		}
	}
}

// scanOne consumes exactly one token's payload (tag already read) and
// reports whether it recognized the tag.
func scanOne(rgce, rgcb *cursor.Cursor, dialect Dialect, tag byte) bool {
	if tag < 0x20 {
		return scanUnclassed(rgce, rgcb, dialect, tag)
	}
	class := tag & 0x60
	base := (tag &^ 0x60) | 0x20
	return scanClassed(rgce, rgcb, dialect, base, class)
}

func scanUnclassed(rgce, rgcb *cursor.Cursor, dialect Dialect, tag byte) bool {
	switch {
	case tag == biff12.PtgExp || tag == biff12.PtgTbl:
		return skip(rgce, 4)
	case tag >= 0x03 && tag <= 0x16:
		return true // zero-payload operators/unary/paren/missing
	case tag == biff12.PtgStr:
		return scanStr(rgce, dialect)
	case tag == biff12.PtgExtend:
		return scanExtend(rgce)
	case tag == biff12.PtgAttr:
		return scanAttr(rgce)
	case tag == biff12.PtgErr || tag == biff12.PtgBool:
		return skip(rgce, 1)
	case tag == biff12.PtgInt:
		return skip(rgce, 2)
	case tag == biff12.PtgNum:
		return skip(rgce, 8)
	default:
		return false
	}
}

func scanClassed(rgce, rgcb *cursor.Cursor, dialect Dialect, base, class byte) bool {
	switch base {
	case biff12.PtgArrayBase:
		if err := skipArrayPlaceholder(rgce, dialect); err != nil {
			return false
		}
		return scanArrayConst(rgcb)
	case biff12.PtgFuncBase:
		return skip(rgce, 2)
	case biff12.PtgFuncVarBase:
		return skip(rgce, 3)
	case biff12.PtgNameBase:
		return skip(rgce, 6)
	case biff12.PtgRefBase, biff12.PtgRefErrBase, biff12.PtgRefNBase:
		return skip(rgce, refPayloadSize(dialect, false))
	case biff12.PtgAreaBase, biff12.PtgAreaErrBase, biff12.PtgAreaNBase:
		return skip(rgce, refPayloadSize(dialect, true))
	case biff12.PtgMemAreaBase, biff12.PtgMemErrBase, biff12.PtgMemNoMemBase,
		biff12.PtgMemFuncBase, biff12.PtgMemAreaNBase:
		return scanMem(rgce, rgcb, dialect)
	case biff12.PtgSpill:
		return true
	case biff12.PtgNameXBase:
		return skip(rgce, 4)
	case biff12.PtgRef3dBase, biff12.PtgRefErr3dBase, biff12.PtgRefN3dBase:
		return skip(rgce, ref3dPayloadSize(dialect, false))
	case biff12.PtgArea3dBase, biff12.PtgAreaErr3dBase, biff12.PtgAreaN3dBase:
		return skip(rgce, ref3dPayloadSize(dialect, true))
	default:
		return false
	}
}

func scanMem(rgce, rgcb *cursor.Cursor, dialect Dialect) bool {
	cce, err := rgce.ReadUint16()
	if err != nil {
		return false
	}
	inner, err := rgce.ReadBytes(int(cce))
	if err != nil {
		return false
	}
	Scan(cursor.New(inner), rgcb, dialect)
	return true
}

func scanArrayConst(rgcb *cursor.Cursor) bool {
	_, err := arrayconst.Decode(rgcb)
	return err == nil
}

// skipArrayPlaceholder consumes PtgArray's fixed (unused) payload bytes
// preceding the side-table entry — 7 bytes per the payload-size table.
func skipArrayPlaceholder(rgce *cursor.Cursor, _ Dialect) error {
	return rgce.Skip(7)
}

func scanStr(rgce *cursor.Cursor, dialect Dialect) bool {
	if dialect == DialectBIFF12 {
		cch, err := rgce.ReadUint16()
		if err != nil {
			return false
		}
		isUnicode := true
		_, err = rgce.ReadStringUnits(int(cch), &isUnicode)
		return err == nil
	}
	cch, err := rgce.ReadUint8()
	if err != nil {
		return false
	}
	flags, err := rgce.ReadUint8()
	if err != nil {
		return false
	}
	isUnicode := flags&0x01 != 0
	_, err = rgce.ReadStringUnits(int(cch), &isUnicode)
	return err == nil
}

func scanExtend(rgce *cursor.Cursor) bool {
	etpg, err := rgce.ReadUint8()
	if err != nil {
		return false
	}
	if etpg == biff12.EtpgList {
		return skip(rgce, 12)
	}
	return false
}

func scanAttr(rgce *cursor.Cursor) bool {
	grbit, err := rgce.ReadUint8()
	if err != nil {
		return false
	}
	wAttr, err := rgce.ReadUint16()
	if err != nil {
		return false
	}
	if grbit&biff12.AttrChoose != 0 {
		return skip(rgce, int(wAttr)*2)
	}
	return true
}

func skip(c *cursor.Cursor, n int) bool {
	return c.Skip(n) == nil
}

// scanOffsetError builds an UnsupportedToken error for tag at the cursor's
// current offset.
func scanOffsetError(c *cursor.Cursor, tag byte) error {
	return &errs.UnsupportedToken{Offset: c.Offset(), Tag: tag}
}
