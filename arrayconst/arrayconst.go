// Package arrayconst decodes array-constant elements from an rgcb side
// table: the row-major, typed value stream referenced by PtgArray tokens.
package arrayconst

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/TsubasaBE/formulacore/cursor"
	"github.com/TsubasaBE/formulacore/errs"
)

// MaxCells bounds the number of cells a single array constant may declare,
// guarding against a corrupt or adversarial rows/cols pair forcing a huge
// allocation before any element bytes have been validated.
const MaxCells = 4096

// Element is one decoded array-constant cell.
type Element struct {
	Empty  bool
	Number float64
	Str    string
	Bool   bool
	ErrLit string // canonical spelling, e.g. "#REF!"

	kind elementKind
}

type elementKind int

const (
	kindEmpty elementKind = iota
	kindNumber
	kindString
	kindBool
	kindError
)

// Array is a decoded array constant: Rows x Cols elements, row-major.
type Array struct {
	Rows, Cols int
	Elements   []Element
}

// errorLiteral maps a BIFF error-literal byte to its canonical spelling,
// per the error-literal table in the record payload-size reference.
var errorLiteral = map[byte]string{
	0x00: "#NULL!",
	0x07: "#DIV/0!",
	0x0F: "#VALUE!",
	0x17: "#REF!",
	0x1D: "#NAME?",
	0x24: "#NUM!",
	0x2A: "#N/A",
	0x2B: "#GETTING_DATA",
	0x2C: "#SPILL!",
	0x2D: "#CALC!",
	0x2E: "#FIELD!",
	0x2F: "#CONNECT!",
	0x30: "#BLOCKED!",
	0x31: "#UNKNOWN!",
}

// Decode reads one array constant from c: `cols-1:u16 rows-1:u16` followed
// by rows*cols typed elements.
func Decode(c *cursor.Cursor) (*Array, error) {
	colsMinus1, err := c.ReadUint16()
	if err != nil {
		return nil, wrapEOF(c, "array-cols", 2, err)
	}
	rowsMinus1, err := c.ReadUint16()
	if err != nil {
		return nil, wrapEOF(c, "array-rows", 2, err)
	}
	cols := int(colsMinus1) + 1
	rows := int(rowsMinus1) + 1
	total := rows * cols
	if total > MaxCells {
		return nil, &errs.InvalidArrayConstant{Offset: c.Offset(), Reason: fmt.Sprintf("%d cells exceeds cap of %d", total, MaxCells)}
	}

	elems := make([]Element, total)
	for i := 0; i < total; i++ {
		e, err := decodeElement(c)
		if err != nil {
			return nil, err
		}
		elems[i] = e
	}
	return &Array{Rows: rows, Cols: cols, Elements: elems}, nil
}

func decodeElement(c *cursor.Cursor) (Element, error) {
	tag, err := c.ReadUint8()
	if err != nil {
		return Element{}, wrapEOF(c, "array-elem-tag", 1, err)
	}
	switch tag {
	case 0x00:
		return Element{Empty: true, kind: kindEmpty}, nil
	case 0x01:
		v, err := c.ReadFloat64()
		if err != nil {
			return Element{}, wrapEOF(c, "array-elem-f64", 8, err)
		}
		return Element{Number: v, kind: kindNumber}, nil
	case 0x02:
		cch, err := c.ReadUint16()
		if err != nil {
			return Element{}, wrapEOF(c, "array-elem-cch", 2, err)
		}
		isUnicode := true
		raw, err := c.ReadStringUnits(int(cch), &isUnicode)
		if err != nil {
			if err == cursor.ErrStringSplitMidChar {
				return Element{}, &errs.StringSplitMidChar{Offset: c.Offset()}
			}
			return Element{}, wrapEOF(c, "array-elem-str", int(cch)*2, err)
		}
		s := decodeUTF16LEBytes(raw)
		return Element{Str: s, kind: kindString}, nil
	case 0x04:
		b, err := c.ReadUint8()
		if err != nil {
			return Element{}, wrapEOF(c, "array-elem-bool", 1, err)
		}
		return Element{Bool: b != 0, kind: kindBool}, nil
	case 0x10:
		b, err := c.ReadUint8()
		if err != nil {
			return Element{}, wrapEOF(c, "array-elem-err", 1, err)
		}
		lit, ok := errorLiteral[b]
		if !ok {
			lit = "#UNKNOWN!"
		}
		return Element{ErrLit: lit, kind: kindError}, nil
	default:
		return Element{}, &errs.InvalidArrayConstant{Offset: c.Offset(), Reason: fmt.Sprintf("unrecognized element tag 0x%02X", tag)}
	}
}

// Text renders the array using Excel's `{row;row;...}` constant syntax,
// cells comma-separated, strings double-quoted with embedded quotes
// doubled.
func (a *Array) Text() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for r := 0; r < a.Rows; r++ {
		if r > 0 {
			sb.WriteByte(';')
		}
		for c := 0; c < a.Cols; c++ {
			if c > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(a.Elements[r*a.Cols+c].text())
		}
	}
	sb.WriteByte('}')
	return sb.String()
}

func (e Element) text() string {
	switch e.kind {
	case kindEmpty:
		return ""
	case kindNumber:
		return strconv.FormatFloat(e.Number, 'g', -1, 64)
	case kindString:
		return `"` + strings.ReplaceAll(e.Str, `"`, `""`) + `"`
	case kindBool:
		if e.Bool {
			return "TRUE"
		}
		return "FALSE"
	case kindError:
		return e.ErrLit
	default:
		return ""
	}
}

func decodeUTF16LEBytes(b []byte) string {
	u16 := make([]uint16, len(b)/2)
	for i := range u16 {
		u16[i] = uint16(b[i*2]) | uint16(b[i*2+1])<<8
	}
	return string(decodeUTF16(u16))
}

func decodeUTF16(u16 []uint16) []rune {
	out := make([]rune, 0, len(u16))
	for i := 0; i < len(u16); i++ {
		r := rune(u16[i])
		if r >= 0xD800 && r <= 0xDBFF && i+1 < len(u16) {
			r2 := rune(u16[i+1])
			if r2 >= 0xDC00 && r2 <= 0xDFFF {
				out = append(out, ((r-0xD800)<<10|(r2-0xDC00))+0x10000)
				i++
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

func wrapEOF(c *cursor.Cursor, token string, needed int, err error) error {
	if err == cursor.ErrUnexpectedEOF {
		return &errs.UnexpectedEOF{Offset: c.Offset(), Token: token, Needed: needed, Remaining: c.Remaining()}
	}
	return err
}
