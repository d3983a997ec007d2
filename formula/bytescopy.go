package formula

import (
	"encoding/binary"

	"github.com/TsubasaBE/formulacore/biff12"
	"github.com/TsubasaBE/formulacore/cursor"
	"github.com/TsubasaBE/formulacore/errs"
)

// CopyRgceBIFF8 extracts exactly cce logical rgce bytes from a
// fragment-aware cursor positioned at the start of a BIFF8 token stream,
// returning them as a single flat slice suitable for a fresh cursor.New
// call. A plain ReadBytes(cce) is not safe here: BIFF8 inserts a
// synthetic one-byte continuation flag at the start of any CONTINUE
// fragment that splits a PtgStr's character data, and that flag byte
// must not be counted against cce. CopyRgceBIFF8 instead walks the
// stream token by token, routing string payloads through
// cursor.ReadStringUnits (which is continuation-aware) and copying every
// other token's fixed-width payload verbatim.
//
// This is the defined-name record parser's on-ramp into the rest of this
// package: once the bytes are extracted, ordinary Decode/Scan calls over
// cursor.New(extracted) behave exactly as they do for any other BIFF8
// formula body.
func CopyRgceBIFF8(c *cursor.Cursor, cce int) ([]byte, error) {
	return copyExprBIFF8(c, cce)
}

func copyExprBIFF8(c *cursor.Cursor, n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		tag, err := c.ReadByte()
		if err != nil {
			return nil, wrapEOF(c, "rgce-tag", 1, err)
		}
		out = append(out, tag)

		switch {
		case tag == biff12.PtgExp || tag == biff12.PtgTbl:
			out, err = appendN(c, out, 4)
		case tag >= 0x03 && tag <= 0x16:
			// zero-payload operators/unary/paren/missing
		case tag == biff12.PtgStr:
			out, err = appendPtgStrBIFF8(c, out)
		case tag == biff12.PtgExtend:
			out, err = appendExtendBIFF8(c, out)
		case tag == biff12.PtgAttr:
			out, err = appendAttrBIFF8(c, out)
		case tag == biff12.PtgErr || tag == biff12.PtgBool:
			out, err = appendN(c, out, 1)
		case tag == biff12.PtgInt:
			out, err = appendN(c, out, 2)
		case tag == biff12.PtgNum:
			out, err = appendN(c, out, 8)
		default:
			out, err = appendClassedBIFF8(c, out, tag, n)
		}
		if err != nil {
			return nil, err
		}
	}
	if len(out) != n {
		return nil, &errs.UnsupportedToken{Offset: c.Offset(), Tag: out[0]}
	}
	return out, nil
}

func appendN(c *cursor.Cursor, out []byte, n int) ([]byte, error) {
	b, err := c.ReadBytes(n)
	if err != nil {
		return nil, wrapEOF(c, "rgce-payload", n, err)
	}
	return append(out, b...), nil
}

func appendPtgStrBIFF8(c *cursor.Cursor, out []byte) ([]byte, error) {
	cch, err := c.ReadUint8()
	if err != nil {
		return nil, wrapEOF(c, "PtgStr-cch", 1, err)
	}
	flags, err := c.ReadUint8()
	if err != nil {
		return nil, wrapEOF(c, "PtgStr-flags", 1, err)
	}
	out = append(out, cch, flags)
	isUnicode := flags&0x01 != 0
	raw, err := c.ReadStringUnits(int(cch), &isUnicode)
	if err != nil {
		return nil, stringErr(c, err)
	}
	return append(out, raw...), nil
}

func appendExtendBIFF8(c *cursor.Cursor, out []byte) ([]byte, error) {
	etpg, err := c.ReadByte()
	if err != nil {
		return nil, wrapEOF(c, "PtgExtend-etpg", 1, err)
	}
	out = append(out, etpg)
	size := 4
	if etpg == biff12.EtpgList {
		size = 12
	}
	return appendN(c, out, size)
}

func appendAttrBIFF8(c *cursor.Cursor, out []byte) ([]byte, error) {
	grbit, err := c.ReadByte()
	if err != nil {
		return nil, wrapEOF(c, "PtgAttr-grbit", 1, err)
	}
	wAttrBytes, err := c.ReadBytes(2)
	if err != nil {
		return nil, wrapEOF(c, "PtgAttr-wAttr", 2, err)
	}
	out = append(out, grbit)
	out = append(out, wAttrBytes...)
	if grbit&biff12.AttrChoose == 0 {
		return out, nil
	}
	wAttr := binary.LittleEndian.Uint16(wAttrBytes)
	return appendN(c, out, int(wAttr)*2)
}

func appendClassedBIFF8(c *cursor.Cursor, out []byte, tag byte, budget int) ([]byte, error) {
	base := (tag &^ 0x60) | 0x20
	switch base {
	case biff12.PtgArrayBase:
		return appendN(c, out, 7)
	case biff12.PtgFuncBase:
		return appendN(c, out, 2)
	case biff12.PtgFuncVarBase:
		return appendN(c, out, 3)
	case biff12.PtgNameBase:
		return appendN(c, out, 6)
	case biff12.PtgNameXBase:
		return appendN(c, out, 4)
	case biff12.PtgRefBase, biff12.PtgRefErrBase, biff12.PtgRefNBase:
		return appendN(c, out, refPayloadSize(DialectBIFF8, false))
	case biff12.PtgAreaBase, biff12.PtgAreaErrBase, biff12.PtgAreaNBase:
		return appendN(c, out, refPayloadSize(DialectBIFF8, true))
	case biff12.PtgRef3dBase, biff12.PtgRefErr3dBase, biff12.PtgRefN3dBase:
		return appendN(c, out, ref3dPayloadSize(DialectBIFF8, false))
	case biff12.PtgArea3dBase, biff12.PtgAreaErr3dBase, biff12.PtgAreaN3dBase:
		return appendN(c, out, ref3dPayloadSize(DialectBIFF8, true))
	case biff12.PtgMemAreaBase, biff12.PtgMemErrBase, biff12.PtgMemNoMemBase,
		biff12.PtgMemFuncBase, biff12.PtgMemAreaNBase:
		cceBytes, err := c.ReadBytes(2)
		if err != nil {
			return nil, wrapEOF(c, "PtgMem-cce", 2, err)
		}
		out = append(out, cceBytes...)
		nestedLen := int(binary.LittleEndian.Uint16(cceBytes))
		remaining := budget - len(out)
		if nestedLen > remaining {
			return nil, &errs.UnsupportedToken{Offset: c.Offset(), Tag: tag}
		}
		nested, err := copyExprBIFF8(c, nestedLen)
		if err != nil {
			return nil, err
		}
		return append(out, nested...), nil
	case biff12.PtgSpill:
		return out, nil
	default:
		return nil, &errs.UnsupportedToken{Offset: c.Offset(), Tag: tag}
	}
}
