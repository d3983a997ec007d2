package formula

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/TsubasaBE/formulacore/biff12"
	"github.com/TsubasaBE/formulacore/errs"
)

// ExprKind discriminates the node kinds Encode accepts. This tree is
// deliberately small: it exists to give the shared-formula materializer
// and any future grammar parser a concrete, testable target, not to
// cover every rgce shape the decoder can read.
type ExprKind int

const (
	ExprNumber ExprKind = iota
	ExprString
	ExprBool
	ExprErrorLit
	ExprMissing
	ExprRef
	ExprArea
	ExprUnary
	ExprParen
	ExprBinary
	ExprCall
)

// Expr is one node of the expression tree Encode walks.
type Expr struct {
	Kind ExprKind

	Number float64
	Str    string
	Bool   bool
	ErrLit string

	// ExprRef / ExprArea
	Row, Col       int
	RowRel, ColRel bool
	Row2, Col2     int
	Row2Rel        bool
	Col2Rel        bool
	ValueClass     bool // leading "@" / value-class reference

	// ExprUnary / ExprParen
	Op      byte // biff12.PtgUplus / PtgUminus / PtgPercent for unary
	Operand *Expr

	// ExprBinary
	BinOp byte // biff12.PtgAdd, PtgSub, ...
	Left  *Expr
	Right *Expr

	// ExprCall
	Func string
	Args []*Expr
}

var builtinFuncsByName map[string]uint16

func init() {
	builtinFuncsByName = make(map[string]uint16, len(builtinFuncs))
	for id, fd := range builtinFuncs {
		builtinFuncsByName[fd.Name] = id
	}
}

// Encode renders e into an rgce token stream for the given dialect.
func Encode(e *Expr, dialect Dialect) ([]byte, error) {
	var buf bytes.Buffer
	enc := &encoder{dialect: dialect, buf: &buf}
	if err := enc.emit(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type encoder struct {
	dialect Dialect
	buf     *bytes.Buffer
}

func (enc *encoder) emit(e *Expr) error {
	switch e.Kind {
	case ExprNumber:
		return enc.emitNumber(e.Number)
	case ExprString:
		return enc.emitString(e.Str)
	case ExprBool:
		enc.buf.WriteByte(biff12.PtgBool)
		if e.Bool {
			enc.buf.WriteByte(1)
		} else {
			enc.buf.WriteByte(0)
		}
		return nil
	case ExprErrorLit:
		b, ok := errorLiteralByte[e.ErrLit]
		if !ok {
			return &errs.InvalidErrorLiteral{Literal: e.ErrLit}
		}
		enc.buf.WriteByte(biff12.PtgErr)
		enc.buf.WriteByte(b)
		return nil
	case ExprMissing:
		enc.buf.WriteByte(biff12.PtgMissArg)
		return nil
	case ExprRef:
		return enc.emitRef(e)
	case ExprArea:
		return enc.emitArea(e)
	case ExprUnary:
		if err := enc.emit(e.Operand); err != nil {
			return err
		}
		enc.buf.WriteByte(e.Op)
		return nil
	case ExprParen:
		if err := enc.emit(e.Operand); err != nil {
			return err
		}
		enc.buf.WriteByte(biff12.PtgParen)
		return nil
	case ExprBinary:
		if err := enc.emit(e.Left); err != nil {
			return err
		}
		if err := enc.emit(e.Right); err != nil {
			return err
		}
		enc.buf.WriteByte(e.BinOp)
		return nil
	case ExprCall:
		return enc.emitCall(e)
	default:
		return &errs.UnsupportedExpression{Kind: "unknown"}
	}
}

func (enc *encoder) emitNumber(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &errs.InvalidNumber{Value: v}
	}
	if v == math.Trunc(v) && v >= 0 && v <= math.MaxUint16 {
		enc.buf.WriteByte(biff12.PtgInt)
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(v))
		enc.buf.Write(b[:])
		return nil
	}
	enc.buf.WriteByte(biff12.PtgNum)
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	enc.buf.Write(b[:])
	return nil
}

func (enc *encoder) emitString(s string) error {
	u16 := utf16Encode(s)
	if enc.dialect == DialectBIFF12 {
		enc.buf.WriteByte(biff12.PtgStr)
		var cch [2]byte
		binary.LittleEndian.PutUint16(cch[:], uint16(len(u16)))
		enc.buf.Write(cch[:])
		for _, u := range u16 {
			var b [2]byte
			binary.LittleEndian.PutUint16(b[:], u)
			enc.buf.Write(b[:])
		}
		return nil
	}
	enc.buf.WriteByte(biff12.PtgStr)
	enc.buf.WriteByte(byte(len(u16)))
	enc.buf.WriteByte(0x01) // flags: Unicode
	for _, u := range u16 {
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], u)
		enc.buf.Write(b[:])
	}
	return nil
}

// utf16Encode converts a string to UTF-16 code units, surrogate-pairing
// runes above the BMP.
func utf16Encode(s string) []uint16 {
	out := make([]uint16, 0, len(s))
	for _, r := range s {
		if r < 0x10000 {
			out = append(out, uint16(r))
			continue
		}
		r -= 0x10000
		out = append(out, uint16(0xD800+(r>>10)), uint16(0xDC00+(r&0x3FF)))
	}
	return out
}

func (enc *encoder) emitRef(e *Expr) error {
	class := biff12.ClassValue
	if !e.ValueClass {
		class = 0
	}
	enc.buf.WriteByte(biff12.PtgRefBase + byte(class))
	if enc.dialect == DialectBIFF12 {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(e.Row))
		enc.buf.Write(b[:])
	} else {
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(e.Row))
		enc.buf.Write(b[:])
	}
	var cf [2]byte
	binary.LittleEndian.PutUint16(cf[:], packColField(e.Col, e.RowRel, e.ColRel))
	enc.buf.Write(cf[:])
	return nil
}

// packColField combines a column index with independent row/col relative
// flags (unlike colField, which assumes both flags match).
func packColField(col int, rowRel, colRel bool) uint16 {
	v := uint16(col) & biff12.ColMask
	if rowRel {
		v |= biff12.ColRowRel
	}
	if colRel {
		v |= biff12.ColColRel
	}
	return v
}

func (enc *encoder) emitArea(e *Expr) error {
	class := biff12.ClassValue
	if !e.ValueClass {
		class = 0
	}
	enc.buf.WriteByte(biff12.PtgAreaBase + byte(class))
	writeRow := func(row int) {
		if enc.dialect == DialectBIFF12 {
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], uint32(row))
			enc.buf.Write(b[:])
		} else {
			var b [2]byte
			binary.LittleEndian.PutUint16(b[:], uint16(row))
			enc.buf.Write(b[:])
		}
	}
	writeRow(e.Row)
	writeRow(e.Row2)
	var c1, c2 [2]byte
	binary.LittleEndian.PutUint16(c1[:], packColField(e.Col, e.RowRel, e.ColRel))
	binary.LittleEndian.PutUint16(c2[:], packColField(e.Col2, e.Row2Rel, e.Col2Rel))
	enc.buf.Write(c1[:])
	enc.buf.Write(c2[:])
	return nil
}

func (enc *encoder) emitCall(e *Expr) error {
	for _, a := range e.Args {
		if err := enc.emit(a); err != nil {
			return err
		}
	}
	id, ok := builtinFuncsByName[e.Func]
	if !ok {
		return &errs.UnknownFunction{Name: e.Func}
	}
	fd := builtinFuncs[id]
	if fd.Argc > 0 && fd.Argc == len(e.Args) {
		enc.buf.WriteByte(biff12.PtgFuncBase)
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], id)
		enc.buf.Write(b[:])
		return nil
	}
	if len(e.Args) > 255 {
		return &errs.InvalidArgCount{Function: e.Func, Got: len(e.Args)}
	}
	enc.buf.WriteByte(biff12.PtgFuncVarBase)
	enc.buf.WriteByte(byte(len(e.Args)))
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], id)
	enc.buf.Write(b[:])
	return nil
}
