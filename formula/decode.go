package formula

import (
	"strconv"
	"strings"

	"github.com/TsubasaBE/formulacore/arrayconst"
	"github.com/TsubasaBE/formulacore/biff12"
	"github.com/TsubasaBE/formulacore/cursor"
	"github.com/TsubasaBE/formulacore/errs"
	"github.com/TsubasaBE/formulacore/workbook"
)

// BaseCell anchors PtgRefN/PtgAreaN relative-only tokens: either the cell
// the formula lives in, or A1 when decoding a defined-name formula as a
// best effort (see the defined-name parser).
type BaseCell struct {
	Row, Col int
}

// Options configures a single Decode call.
type Options struct {
	Dialect  Dialect
	Workbook *workbook.Context
	Base     *BaseCell
}

type decoder struct {
	opts      Options
	rgce      *cursor.Cursor
	rgcb      *cursor.Cursor
	stack     []Fragment
	maxOutput int
	lastTag   byte
}

// Decode walks rgce (with rgcb as its side table) and returns the
// reconstructed formula text.
func Decode(rgce, rgcb *cursor.Cursor, opts Options) (string, error) {
	rgceLen := rgce.Offset() + rgce.Remaining()
	rgcbLen := 0
	if rgcb != nil {
		rgcbLen = rgcb.Offset() + rgcb.Remaining()
	} else {
		rgcb = cursor.New()
	}
	maxOutput := 10 * (rgceLen + rgcbLen)
	if maxOutput > 1_000_000 || maxOutput <= 0 {
		maxOutput = 1_000_000
	}

	d := &decoder{opts: opts, rgce: rgce, rgcb: rgcb, maxOutput: maxOutput}
	for d.rgce.Remaining() > 0 {
		tagOffset := d.rgce.Offset()
		tag, err := d.rgce.ReadUint8()
		if err != nil {
			return "", wrapEOF(d.rgce, "tag", 1, err)
		}
		d.lastTag = tag
		if err := d.step(tag, tagOffset); err != nil {
			return "", err
		}
	}
	if len(d.stack) != 1 {
		return "", &errs.StackNotSingular{Offset: d.rgce.Offset(), Tag: d.lastTag, Size: len(d.stack)}
	}
	return d.stack[0].Text, nil
}

func (d *decoder) push(f Fragment) error {
	if len(f.Text) > d.maxOutput {
		return &errs.OutputTooLarge{Offset: d.rgce.Offset(), Tag: d.lastTag, Max: d.maxOutput}
	}
	d.stack = append(d.stack, f)
	return nil
}

func (d *decoder) pop() (Fragment, error) {
	if len(d.stack) == 0 {
		return Fragment{}, &errs.StackUnderflow{Offset: d.rgce.Offset(), Tag: d.lastTag}
	}
	f := d.stack[len(d.stack)-1]
	d.stack = d.stack[:len(d.stack)-1]
	return f, nil
}

func (d *decoder) popArgs(n int) ([]Fragment, error) {
	args := make([]Fragment, n)
	for i := n - 1; i >= 0; i-- {
		f, err := d.pop()
		if err != nil {
			return nil, err
		}
		args[i] = f
	}
	return args, nil
}

func (d *decoder) step(tag byte, offset int) error {
	if tag < 0x20 {
		return d.stepUnclassed(tag, offset)
	}
	class := tag & 0x60
	base := (tag &^ 0x60) | 0x20
	return d.stepClassed(base, class, offset)
}

// ── unclassed family: operators, literals, attributes ──────────────────

func (d *decoder) stepUnclassed(tag byte, offset int) error {
	switch {
	case tag == biff12.PtgExp:
		return d.skipBytes(4) // shared-formula placeholder: resolved by the materializer, not here
	case tag >= biff12.PtgAdd && tag <= biff12.PtgRange:
		return d.binaryOp(tag)
	case tag == biff12.PtgUplus:
		return d.unaryPrefix("+")
	case tag == biff12.PtgUminus:
		return d.unaryPrefix("-")
	case tag == biff12.PtgPercent:
		return d.postfix("%")
	case tag == biff12.PtgParen:
		return d.parens()
	case tag == biff12.PtgMissArg:
		return d.push(Fragment{IsMissing: true, Prec: PrecAtom})
	case tag == biff12.PtgStr:
		return d.literalStr()
	case tag == biff12.PtgExtend:
		return d.extendToken(offset)
	case tag == biff12.PtgAttr:
		return d.attrToken(offset)
	case tag == biff12.PtgErr:
		b, err := d.rgce.ReadUint8()
		if err != nil {
			return wrapEOF(d.rgce, "PtgErr", 1, err)
		}
		return d.push(Fragment{Text: errorLiteral(b), Prec: PrecAtom})
	case tag == biff12.PtgBool:
		b, err := d.rgce.ReadUint8()
		if err != nil {
			return wrapEOF(d.rgce, "PtgBool", 1, err)
		}
		text := "FALSE"
		if b != 0 {
			text = "TRUE"
		}
		return d.push(Fragment{Text: text, Prec: PrecAtom})
	case tag == biff12.PtgInt:
		v, err := d.rgce.ReadUint16()
		if err != nil {
			return wrapEOF(d.rgce, "PtgInt", 2, err)
		}
		return d.push(Fragment{Text: strconv.Itoa(int(v)), Prec: PrecAtom})
	case tag == biff12.PtgNum:
		v, err := d.rgce.ReadFloat64()
		if err != nil {
			return wrapEOF(d.rgce, "PtgNum", 8, err)
		}
		return d.push(Fragment{Text: strconv.FormatFloat(v, 'g', -1, 64), Prec: PrecAtom})
	default:
		return &errs.UnsupportedToken{Offset: offset, Tag: tag}
	}
}

var binaryOpText = map[byte]string{
	biff12.PtgAdd:    "+",
	biff12.PtgSub:    "-",
	biff12.PtgMul:    "*",
	biff12.PtgDiv:    "/",
	biff12.PtgPower:  "^",
	biff12.PtgConcat: "&",
	biff12.PtgLT:     "<",
	biff12.PtgLE:     "<=",
	biff12.PtgEQ:     "=",
	biff12.PtgGT:     ">",
	biff12.PtgGE:     ">=",
	biff12.PtgNE:     "<>",
	biff12.PtgIsect:  " ",
	biff12.PtgUnion:  ",",
	biff12.PtgRange:  ":",
}

var binaryOpPrec = map[byte]int{
	biff12.PtgAdd:    PrecAddSub,
	biff12.PtgSub:    PrecAddSub,
	biff12.PtgMul:    PrecMulDiv,
	biff12.PtgDiv:    PrecMulDiv,
	biff12.PtgPower:  PrecPower,
	biff12.PtgConcat: PrecConcat,
	biff12.PtgLT:     PrecComparison,
	biff12.PtgLE:     PrecComparison,
	biff12.PtgEQ:     PrecComparison,
	biff12.PtgGT:     PrecComparison,
	biff12.PtgGE:     PrecComparison,
	biff12.PtgNE:     PrecComparison,
	biff12.PtgIsect:  PrecIntersect,
	biff12.PtgUnion:  PrecUnion,
	biff12.PtgRange:  PrecRange,
}

func (d *decoder) binaryOp(tag byte) error {
	right, err := d.pop()
	if err != nil {
		return err
	}
	left, err := d.pop()
	if err != nil {
		return err
	}
	prec := binaryOpPrec[tag]
	text := wrap(left, prec) + binaryOpText[tag] + wrap(right, prec)
	f := Fragment{Text: text, Prec: prec}
	if tag == biff12.PtgUnion {
		f.ContainsUnion = true
	}
	return d.push(f)
}

func (d *decoder) unaryPrefix(op string) error {
	inner, err := d.pop()
	if err != nil {
		return err
	}
	text := op + wrap(inner, PrecUnaryOrAt)
	return d.push(Fragment{Text: text, Prec: PrecUnaryOrAt})
}

func (d *decoder) postfix(op string) error {
	inner, err := d.pop()
	if err != nil {
		return err
	}
	text := wrap(inner, PrecPostfix) + op
	return d.push(Fragment{Text: text, Prec: PrecPostfix})
}

func (d *decoder) parens() error {
	inner, err := d.pop()
	if err != nil {
		return err
	}
	return d.push(Fragment{Text: "(" + inner.Text + ")", Prec: PrecAtom})
}

func (d *decoder) literalStr() error {
	if d.opts.Dialect == DialectBIFF12 {
		cch, err := d.rgce.ReadUint16()
		if err != nil {
			return wrapEOF(d.rgce, "PtgStr-cch", 2, err)
		}
		isUnicode := true
		raw, err := d.rgce.ReadStringUnits(int(cch), &isUnicode)
		if err != nil {
			return stringErr(d.rgce, err)
		}
		return d.push(Fragment{Text: quoteExcelString(decodeUTF16RawLE(raw)), Prec: PrecAtom})
	}
	cch, err := d.rgce.ReadUint8()
	if err != nil {
		return wrapEOF(d.rgce, "PtgStr-cch", 1, err)
	}
	flags, err := d.rgce.ReadUint8()
	if err != nil {
		return wrapEOF(d.rgce, "PtgStr-flags", 1, err)
	}
	isUnicode := flags&0x01 != 0
	raw, err := d.rgce.ReadStringUnits(int(cch), &isUnicode)
	if err != nil {
		return stringErr(d.rgce, err)
	}
	var text string
	if isUnicode {
		text = decodeUTF16RawLE(raw)
	} else {
		text = string(raw)
	}
	return d.push(Fragment{Text: quoteExcelString(text), Prec: PrecAtom})
}

func quoteExcelString(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func (d *decoder) skipBytes(n int) error {
	if err := d.rgce.Skip(n); err != nil {
		return wrapEOF(d.rgce, "skip", n, err)
	}
	return nil
}

func (d *decoder) extendToken(offset int) error {
	etpg, err := d.rgce.ReadUint8()
	if err != nil {
		return wrapEOF(d.rgce, "etpg", 1, err)
	}
	if etpg != biff12.EtpgList {
		return &errs.UnsupportedToken{Offset: offset, Tag: biff12.PtgExtend}
	}
	raw, err := d.rgce.ReadBytes(12)
	if err != nil {
		return wrapEOF(d.rgce, "PtgList", 12, err)
	}
	var payload [12]byte
	copy(payload[:], raw)
	cand := decodeStructRef(payload)
	text := renderStructRef(cand, structRefTableName(d.opts.Workbook, cand.TableID), structRefColName)
	return d.push(Fragment{Text: text, Prec: PrecAtom})
}

func structRefTableName(wb *workbook.Context, tableID uint32) string {
	// No table-name table is threaded through Options; a deterministic
	// placeholder keeps output syntactically valid without one.
	_ = wb
	return "Table" + strconv.FormatUint(uint64(tableID), 10)
}

func structRefColName(idx uint32) string {
	return "Column" + strconv.FormatUint(uint64(idx), 10)
}

func (d *decoder) attrToken(offset int) error {
	grbit, err := d.rgce.ReadUint8()
	if err != nil {
		return wrapEOF(d.rgce, "PtgAttr-grbit", 1, err)
	}
	wAttr, err := d.rgce.ReadUint16()
	if err != nil {
		return wrapEOF(d.rgce, "PtgAttr-wAttr", 2, err)
	}
	if grbit&biff12.AttrChoose != 0 {
		return d.skipBytes(int(wAttr) * 2)
	}
	if grbit&biff12.AttrSum != 0 {
		inner, err := d.pop()
		if err != nil {
			return err
		}
		text := "SUM(" + wrap(inner, PrecUnion+1) + ")"
		return d.push(Fragment{Text: text, Prec: PrecAtom})
	}
	// Semi/If/Goto/Space/Baxcel/IfError: non-printing, no stack effect.
	_ = offset
	return nil
}

func stringErr(c *cursor.Cursor, err error) error {
	if err == cursor.ErrStringSplitMidChar {
		return &errs.StringSplitMidChar{Offset: c.Offset()}
	}
	return wrapEOF(c, "string", 0, err)
}

func decodeUTF16RawLE(b []byte) string {
	u16 := make([]uint16, len(b)/2)
	for i := range u16 {
		u16[i] = uint16(b[i*2]) | uint16(b[i*2+1])<<8
	}
	return string(decodeUTF16Units(u16))
}

func decodeUTF16Units(u16 []uint16) []rune {
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

// ── classed family: references, names, functions, arrays ───────────────

func (d *decoder) stepClassed(base, class byte, offset int) error {
	switch base {
	case biff12.PtgArrayBase:
		return d.ptgArray(class)
	case biff12.PtgFuncBase:
		return d.ptgFunc(offset)
	case biff12.PtgFuncVarBase:
		return d.ptgFuncVar(offset)
	case biff12.PtgNameBase:
		return d.ptgName(class)
	case biff12.PtgRefBase:
		return d.ptgRef(class, false)
	case biff12.PtgAreaBase:
		return d.ptgRef(class, true)
	case biff12.PtgRefErrBase:
		return d.ptgRefErr(class, false)
	case biff12.PtgAreaErrBase:
		return d.ptgRefErr(class, true)
	case biff12.PtgRefNBase:
		return d.ptgRefN(class, false)
	case biff12.PtgAreaNBase:
		return d.ptgRefN(class, true)
	case biff12.PtgMemAreaBase, biff12.PtgMemErrBase, biff12.PtgMemNoMemBase,
		biff12.PtgMemFuncBase, biff12.PtgMemAreaNBase:
		return d.ptgMem()
	case biff12.PtgSpill:
		return d.postfix("#")
	case biff12.PtgNameXBase:
		return d.ptgNameX()
	case biff12.PtgRef3dBase:
		return d.ptgRef3d(class, false)
	case biff12.PtgArea3dBase:
		return d.ptgRef3d(class, true)
	case biff12.PtgRefErr3dBase:
		return d.ptgRefErr3d(class, false)
	case biff12.PtgAreaErr3dBase:
		return d.ptgRefErr3d(class, true)
	case biff12.PtgRefN3dBase:
		return d.ptgRefN3d(false)
	case biff12.PtgAreaN3dBase:
		return d.ptgRefN3d(true)
	default:
		return &errs.UnsupportedToken{Offset: offset, Tag: base | class}
	}
}

func (d *decoder) ptgArray(class byte) error {
	if err := d.skipBytes(7); err != nil {
		return err
	}
	arr, err := arrayconst.Decode(d.rgcb)
	if err != nil {
		return err
	}
	return d.push(Fragment{Text: arr.Text(), Prec: PrecAtom})
}

func (d *decoder) ptgFunc(offset int) error {
	iftab, err := d.rgce.ReadUint16()
	if err != nil {
		return wrapEOF(d.rgce, "PtgFunc-iftab", 2, err)
	}
	fd, ok := lookupFunc(iftab)
	if !ok {
		return &errs.UnknownFunctionID{Offset: offset, Tag: biff12.PtgFuncBase, ID: iftab}
	}
	return d.emitCall(fd.Name, fd.Argc)
}

func (d *decoder) ptgFuncVar(offset int) error {
	argc, err := d.rgce.ReadUint8()
	if err != nil {
		return wrapEOF(d.rgce, "PtgFuncVar-argc", 1, err)
	}
	iftab, err := d.rgce.ReadUint16()
	if err != nil {
		return wrapEOF(d.rgce, "PtgFuncVar-iftab", 2, err)
	}
	if iftab == sentinelUserDefinedFuncID {
		name, err := d.pop()
		if err != nil {
			return err
		}
		args, err := d.popArgs(int(argc) - 1)
		if err != nil {
			return err
		}
		return d.push(Fragment{Text: name.Text + "(" + joinArgs(args) + ")", Prec: PrecAtom})
	}
	fd, ok := lookupFunc(iftab)
	if !ok {
		return &errs.UnknownFunctionID{Offset: offset, Tag: biff12.PtgFuncVarBase, ID: iftab}
	}
	return d.emitCall(fd.Name, int(argc))
}

func (d *decoder) emitCall(name string, argc int) error {
	args, err := d.popArgs(argc)
	if err != nil {
		return err
	}
	return d.push(Fragment{Text: name + "(" + joinArgs(args) + ")", Prec: PrecAtom})
}

func joinArgs(args []Fragment) string {
	parts := make([]string, len(args))
	for i, a := range args {
		if a.IsMissing {
			parts[i] = ""
			continue
		}
		if a.ContainsUnion {
			parts[i] = "(" + a.Text + ")"
		} else {
			parts[i] = a.Text
		}
	}
	return strings.Join(parts, ",")
}

func (d *decoder) ptgName(class byte) error {
	id, err := d.rgce.ReadUint32()
	if err != nil {
		return wrapEOF(d.rgce, "PtgName-id", 4, err)
	}
	if _, err := d.rgce.ReadUint16(); err != nil { // reserved
		return wrapEOF(d.rgce, "PtgName-reserved", 2, err)
	}
	name := placeholderName(int(id))
	if d.opts.Workbook != nil {
		if dn, ok := d.opts.Workbook.DefinedName(int(id)); ok {
			name = dn.DisplayName
		}
	}
	if class == 0x40 { // value class
		return d.push(Fragment{Text: "@" + name, Prec: PrecUnaryOrAt})
	}
	return d.push(Fragment{Text: name, Prec: PrecAtom})
}

func placeholderName(id int) string {
	return "#NAME?"
}

// ── 2D references ────────────────────────────────────────────────────────

type refFields struct {
	Row, Col       int
	RowRel, ColRel bool
}

func (d *decoder) readColField() (col int, rowRel, colRel bool, err error) {
	v, err := d.rgce.ReadUint16()
	if err != nil {
		return 0, false, false, err
	}
	col = int(v & biff12.ColMask)
	rowRel = v&biff12.ColRowRel != 0
	colRel = v&biff12.ColColRel != 0
	return col, rowRel, colRel, nil
}

func (d *decoder) readRef() (refFields, error) {
	var row uint32
	var err error
	if d.opts.Dialect == DialectBIFF12 {
		row, err = d.rgce.ReadUint32()
	} else {
		var r16 uint16
		r16, err = d.rgce.ReadUint16()
		row = uint32(r16)
	}
	if err != nil {
		return refFields{}, err
	}
	col, rowRel, colRel, err := d.readColField()
	if err != nil {
		return refFields{}, err
	}
	return refFields{Row: int(row), Col: col, RowRel: rowRel, ColRel: colRel}, nil
}

func (d *decoder) readArea() (refFields, refFields, error) {
	var r1, r2 uint32
	var err error
	if d.opts.Dialect == DialectBIFF12 {
		r1, err = d.rgce.ReadUint32()
		if err == nil {
			r2, err = d.rgce.ReadUint32()
		}
	} else {
		var a, b uint16
		a, err = d.rgce.ReadUint16()
		if err == nil {
			b, err = d.rgce.ReadUint16()
		}
		r1, r2 = uint32(a), uint32(b)
	}
	if err != nil {
		return refFields{}, refFields{}, err
	}
	c1, r1rel, c1rel, err := d.readColField()
	if err != nil {
		return refFields{}, refFields{}, err
	}
	c2, r2rel, c2rel, err := d.readColField()
	if err != nil {
		return refFields{}, refFields{}, err
	}
	return refFields{Row: int(r1), Col: c1, RowRel: r1rel, ColRel: c1rel},
		refFields{Row: int(r2), Col: c2, RowRel: r2rel, ColRel: c2rel}, nil
}

func (d *decoder) ptgRef(class byte, area bool) error {
	if !area {
		rf, err := d.readRef()
		if err != nil {
			return wrapEOF(d.rgce, "PtgRef", 4, err)
		}
		text := cellRef(rf.Row, rf.Col, rf.RowRel, rf.ColRel)
		return d.push(Fragment{Text: text, Prec: PrecAtom})
	}
	r1, r2, err := d.readArea()
	if err != nil {
		return wrapEOF(d.rgce, "PtgArea", 8, err)
	}
	text := areaRef(r1.Row, r1.Col, r2.Row, r2.Col, r1.RowRel, r1.ColRel, r2.RowRel, r2.ColRel)
	prec := PrecAtom
	if class == 0x40 && (r1.Row != r2.Row || r1.Col != r2.Col) {
		text = "@" + text
		prec = PrecUnaryOrAt
	}
	return d.push(Fragment{Text: text, Prec: prec})
}

func (d *decoder) ptgRefErr(class byte, area bool) error {
	size := refPayloadSize(d.opts.Dialect, area)
	if err := d.skipBytes(size); err != nil {
		return err
	}
	text := "#REF!"
	prec := PrecAtom
	if area && class == 0x40 {
		text = "@" + text
		prec = PrecUnaryOrAt
	}
	return d.push(Fragment{Text: text, Prec: prec})
}

func (d *decoder) ptgRefN(class byte, area bool) error {
	if d.opts.Base == nil {
		size := refPayloadSize(d.opts.Dialect, area)
		if err := d.skipBytes(size); err != nil {
			return err
		}
		return d.push(Fragment{Text: "#REF!", Prec: PrecAtom})
	}
	if !area {
		rf, err := d.readRef()
		if err != nil {
			return wrapEOF(d.rgce, "PtgRefN", 4, err)
		}
		row, col := absoluteOffset(rf, *d.opts.Base, d.opts.Dialect)
		if !inBounds(row, col) {
			return d.push(Fragment{Text: "#REF!", Prec: PrecAtom})
		}
		return d.push(Fragment{Text: cellRef(row, col, rf.RowRel, rf.ColRel), Prec: PrecAtom})
	}
	r1, r2, err := d.readArea()
	if err != nil {
		return wrapEOF(d.rgce, "PtgAreaN", 8, err)
	}
	row1, col1 := absoluteOffset(r1, *d.opts.Base, d.opts.Dialect)
	row2, col2 := absoluteOffset(r2, *d.opts.Base, d.opts.Dialect)
	if !inBounds(row1, col1) || !inBounds(row2, col2) {
		text := "#REF!"
		if class == 0x40 {
			text = "@" + text
		}
		return d.push(Fragment{Text: text, Prec: PrecAtom})
	}
	text := areaRef(row1, col1, row2, col2, r1.RowRel, r1.ColRel, r2.RowRel, r2.ColRel)
	prec := PrecAtom
	if class == 0x40 && (row1 != row2 || col1 != col2) {
		text = "@" + text
		prec = PrecUnaryOrAt
	}
	return d.push(Fragment{Text: text, Prec: prec})
}

// absoluteOffset adds a relative field's stored offset to the base cell.
// A relative row/col field holds a signed offset in two's-complement form,
// not an absolute coordinate; an absolute field already holds the true
// coordinate and is passed through unchanged.
func absoluteOffset(rf refFields, base BaseCell, dialect Dialect) (row, col int) {
	row, col = rf.Row, rf.Col
	if rf.RowRel {
		row = base.Row + signExtendRow(rf.Row, dialect)
	}
	if rf.ColRel {
		col = base.Col + signExtendCol(rf.Col)
	}
	return row, col
}

// signExtendCol reinterprets a 14-bit packed column field as a signed
// two's-complement offset.
func signExtendCol(v int) int {
	const colBits = 14
	if v >= 1<<(colBits-1) && v < 1<<colBits {
		return v - 1<<colBits
	}
	return v
}

// signExtendRow reinterprets a row field as a signed two's-complement
// offset at its dialect-specific width: a full i32 in BIFF12, i16 in
// BIFF8 (the row field carries no packed flag bits, unlike the column
// field, so its whole width is the offset).
func signExtendRow(v int, dialect Dialect) int {
	if dialect == DialectBIFF12 {
		return int(int32(uint32(v)))
	}
	return int(int16(uint16(v)))
}

// ── memory expressions ───────────────────────────────────────────────────

func (d *decoder) ptgMem() error {
	cce, err := d.rgce.ReadUint16()
	if err != nil {
		return wrapEOF(d.rgce, "PtgMem-cce", 2, err)
	}
	inner, err := d.rgce.ReadBytes(int(cce))
	if err != nil {
		return wrapEOF(d.rgce, "PtgMem-body", int(cce), err)
	}
	Scan(cursor.New(inner), d.rgcb, d.opts.Dialect)
	return nil
}

// ── external names ───────────────────────────────────────────────────────

func (d *decoder) ptgNameX() error {
	ixti, err := d.rgce.ReadUint16()
	if err != nil {
		return wrapEOF(d.rgce, "PtgNameX-ixti", 2, err)
	}
	nameIdx, err := d.rgce.ReadUint16()
	if err != nil {
		return wrapEOF(d.rgce, "PtgNameX-idx", 2, err)
	}
	text := "ExternName_IXTI" + strconv.Itoa(int(ixti)) + "_N" + strconv.Itoa(int(nameIdx))
	if d.opts.Workbook != nil {
		if sbIdx, ok := d.opts.Workbook.SupBookForIxti(ixti); ok {
			if en, ok := d.opts.Workbook.ExternName(sbIdx, int(nameIdx)); ok {
				text = en.Name
			}
		}
	}
	return d.push(Fragment{Text: text, Prec: PrecAtom})
}

// ── 3D references ────────────────────────────────────────────────────────

func (d *decoder) sheetPrefixFor(ixti uint16) string {
	if d.opts.Workbook == nil {
		return sheetPrefix("", "Sheet"+strconv.Itoa(int(ixti)), "")
	}
	book, first, last, ok := d.opts.Workbook.ExternSheetTarget(ixti)
	if !ok {
		return sheetPrefix("", "Sheet"+strconv.Itoa(int(ixti)), "")
	}
	firstName, _ := d.opts.Workbook.SheetName(first)
	lastName := ""
	if last != first {
		lastName, _ = d.opts.Workbook.SheetName(last)
	}
	if firstName == "" {
		firstName = "Sheet" + strconv.Itoa(first)
	}
	return sheetPrefix(book, firstName, lastName)
}

func (d *decoder) ptgRef3d(class byte, area bool) error {
	ixti, err := d.rgce.ReadUint16()
	if err != nil {
		return wrapEOF(d.rgce, "Ptg3d-ixti", 2, err)
	}
	prefix := d.sheetPrefixFor(ixti)
	if !area {
		rf, err := d.readRef()
		if err != nil {
			return wrapEOF(d.rgce, "PtgRef3d", 4, err)
		}
		return d.push(Fragment{Text: prefix + cellRef(rf.Row, rf.Col, rf.RowRel, rf.ColRel), Prec: PrecAtom})
	}
	r1, r2, err := d.readArea()
	if err != nil {
		return wrapEOF(d.rgce, "PtgArea3d", 8, err)
	}
	text := prefix + areaRef(r1.Row, r1.Col, r2.Row, r2.Col, r1.RowRel, r1.ColRel, r2.RowRel, r2.ColRel)
	prec := PrecAtom
	if class == 0x40 && (r1.Row != r2.Row || r1.Col != r2.Col) {
		text = "@" + text
		prec = PrecUnaryOrAt
	}
	return d.push(Fragment{Text: text, Prec: prec})
}

func (d *decoder) ptgRefErr3d(class byte, area bool) error {
	if _, err := d.rgce.ReadUint16(); err != nil { // ixti
		return wrapEOF(d.rgce, "PtgRefErr3d-ixti", 2, err)
	}
	size := refPayloadSize(d.opts.Dialect, area)
	if err := d.skipBytes(size); err != nil {
		return err
	}
	text := "#REF!"
	prec := PrecAtom
	if area && class == 0x40 {
		text = "@" + text
		prec = PrecUnaryOrAt
	}
	return d.push(Fragment{Text: text, Prec: prec})
}

func (d *decoder) ptgRefN3d(area bool) error {
	ixti, err := d.rgce.ReadUint16()
	if err != nil {
		return wrapEOF(d.rgce, "PtgRefN3d-ixti", 2, err)
	}
	prefix := d.sheetPrefixFor(ixti)
	if d.opts.Base == nil {
		size := refPayloadSize(d.opts.Dialect, area)
		if err := d.skipBytes(size); err != nil {
			return err
		}
		return d.push(Fragment{Text: prefix + "#REF!", Prec: PrecAtom})
	}
	if !area {
		rf, err := d.readRef()
		if err != nil {
			return wrapEOF(d.rgce, "PtgRefN3d", 4, err)
		}
		row, col := absoluteOffset(rf, *d.opts.Base, d.opts.Dialect)
		if !inBounds(row, col) {
			return d.push(Fragment{Text: prefix + "#REF!", Prec: PrecAtom})
		}
		return d.push(Fragment{Text: prefix + cellRef(row, col, rf.RowRel, rf.ColRel), Prec: PrecAtom})
	}
	r1, r2, err := d.readArea()
	if err != nil {
		return wrapEOF(d.rgce, "PtgAreaN3d", 8, err)
	}
	row1, col1 := absoluteOffset(r1, *d.opts.Base, d.opts.Dialect)
	row2, col2 := absoluteOffset(r2, *d.opts.Base, d.opts.Dialect)
	if !inBounds(row1, col1) || !inBounds(row2, col2) {
		return d.push(Fragment{Text: prefix + "#REF!", Prec: PrecAtom})
	}
	return d.push(Fragment{Text: prefix + areaRef(row1, col1, row2, col2, r1.RowRel, r1.ColRel, r2.RowRel, r2.ColRel), Prec: PrecAtom})
}
