// Package names parses BIFF8 NAME (0x0018) records from a workbook's
// globals substream into workbook- and sheet-scoped defined names:
// header fields, the built-in/user name body, the rgce formula body
// (decoded via package formula), and the optional trailing comment
// string. Every record is registered into a workbook.Context in record
// order, including a placeholder for records that fail to parse, so
// PtgName indices elsewhere in the workbook stay aligned with Excel's.
package names

import (
	"fmt"
	"io"

	"github.com/TsubasaBE/formulacore/biff12"
	"github.com/TsubasaBE/formulacore/cursor"
	"github.com/TsubasaBE/formulacore/formula"
	"github.com/TsubasaBE/formulacore/record"
	"github.com/TsubasaBE/formulacore/strdecode"
	"github.com/TsubasaBE/formulacore/workbook"
)

// maxWarnings bounds per-name warning growth against a corrupt or
// hostile NAME record stream.
const maxWarnings = 200

// Lbl.grbit flag bits (MS-XLS 2.5.114).
const (
	flagHidden  uint16 = 0x0001
	flagBuiltin uint16 = 0x0020
)

// builtinIDs maps the single-byte built-in name id (Lbl.chKey /
// rgchName when fBuiltin is set) to its canonical Excel name
// (MS-XLS 2.5.114).
var builtinIDs = map[byte]string{
	0x00: "_xlnm.Consolidate_Area",
	0x01: "_xlnm.Auto_Open",
	0x02: "_xlnm.Auto_Close",
	0x03: "_xlnm.Extract",
	0x04: "_xlnm.Database",
	0x05: "_xlnm.Criteria",
	0x06: "_xlnm.Print_Area",
	0x07: "_xlnm.Print_Titles",
	0x08: "_xlnm.Recorder",
	0x09: "_xlnm.Data_Form",
	0x0A: "_xlnm.Auto_Activate",
	0x0B: "_xlnm.Auto_Deactivate",
	0x0C: "_xlnm.Sheet_Title",
	0x0D: "_xlnm._FilterDatabase",
}

func builtinName(id byte) string {
	if s, ok := builtinIDs[id]; ok {
		return s
	}
	return fmt.Sprintf("_xlnm.Builtin_0x%02X", id)
}

// DefinedName is one parsed NAME record.
type DefinedName struct {
	Name          string
	HasSheetScope bool
	SheetIndex    int // 0-based; valid only when HasSheetScope
	Hidden        bool
	Builtin       bool
	BuiltinID     byte
	Comment       string
	RefersTo      string
	Rgce          []byte
}

// Result holds every NAME record parsed from one globals substream, in
// record order, plus the accumulated warnings (capped at maxWarnings).
type Result struct {
	Names    []DefinedName
	Warnings []string
}

func (r *Result) warnf(format string, args ...any) {
	if len(r.Warnings) < maxWarnings {
		r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
		return
	}
	if len(r.Warnings) == maxWarnings {
		r.Warnings = append(r.Warnings, "additional defined-name warnings suppressed")
	}
}

// Parse reads every NAME record from r (a workbook-globals BIFF8
// substream), decoding each formula body against wb and registering the
// result (or a "#NAME?" placeholder on failure) at its 1-based index via
// wb.AddWorkbookName/AddSheetName. sheetCount bounds itab range
// validation warnings; it does not otherwise affect parsing.
func Parse(r io.Reader, wb *workbook.Context, sheetCount int) (*Result, error) {
	res := &Result{}
	reader := record.NewBiff8Reader(r, func(id uint16) bool { return id == biff12.Biff8Name })

	index := 0
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return res, fmt.Errorf("names: reading record stream: %w", err)
		}
		if rec.ID != biff12.Biff8Name {
			continue
		}

		index++
		dn, err := parseOne(rec, wb)
		if err != nil {
			res.warnf("NAME record %d: %v", index, err)
			wb.AddWorkbookName("#NAME?", index)
			res.Names = append(res.Names, DefinedName{Name: "#NAME?"})
			continue
		}

		if dn.HasSheetScope {
			if dn.SheetIndex >= sheetCount {
				res.warnf("NAME record %d (%q): itab refers to sheet %d, workbook has %d sheets", index, dn.Name, dn.SheetIndex, sheetCount)
			}
			wb.AddSheetName(dn.SheetIndex, dn.Name, index)
		} else {
			wb.AddWorkbookName(dn.Name, index)
		}
		res.Names = append(res.Names, *dn)
	}

	return res, nil
}

func parseOne(rec *record.Biff8Record, wb *workbook.Context) (*DefinedName, error) {
	c := cursor.New(rec.Fragments...)

	grbit, err := c.ReadUint16()
	if err != nil {
		return nil, fmt.Errorf("header grbit: %w", err)
	}
	chKey, err := c.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("header chKey: %w", err)
	}
	cch, err := c.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("header cch: %w", err)
	}
	cce, err := c.ReadUint16()
	if err != nil {
		return nil, fmt.Errorf("header cce: %w", err)
	}
	if _, err := c.ReadUint16(); err != nil { // ixals, unused
		return nil, fmt.Errorf("header ixals: %w", err)
	}
	itab, err := c.ReadUint16()
	if err != nil {
		return nil, fmt.Errorf("header itab: %w", err)
	}
	cchCustMenu, err := c.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("header cchCustMenu: %w", err)
	}
	cchDescription, err := c.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("header cchDescription: %w", err)
	}
	cchHelpTopic, err := c.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("header cchHelpTopic: %w", err)
	}
	cchStatusText, err := c.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("header cchStatusText: %w", err)
	}

	dn := &DefinedName{
		Hidden:  grbit&flagHidden != 0,
		Builtin: grbit&flagBuiltin != 0,
	}
	if itab != 0 {
		dn.HasSheetScope = true
		dn.SheetIndex = int(itab) - 1
	}

	if dn.Builtin {
		var id byte
		if cch > 0 {
			id, err = c.ReadUint8()
			if err != nil {
				return nil, fmt.Errorf("builtin id: %w", err)
			}
			if cch > 1 {
				if err := c.Skip(int(cch) - 1); err != nil {
					return nil, fmt.Errorf("builtin id trailer: %w", err)
				}
			}
		} else {
			id = chKey
		}
		dn.BuiltinID = id
		dn.Name = builtinName(id)
	} else {
		decoded, err := strdecode.DecodeNoCch(c, int(cch))
		if err != nil {
			return nil, fmt.Errorf("name string: %w", err)
		}
		name := stripNULs(decoded.Text)
		if name == "" {
			return nil, fmt.Errorf("name is empty after stripping NULs")
		}
		dn.Name = name
	}

	rgce, err := formula.CopyRgceBIFF8(c, int(cce))
	if err != nil {
		return nil, fmt.Errorf("rgce body: %w", err)
	}
	dn.Rgce = rgce

	base := formula.BaseCell{Row: 0, Col: 0}
	opts := formula.Options{Dialect: formula.DialectBIFF8, Workbook: wb, Base: &base}

	refersTo, comment, err := decodeWithOptionalRgcb(c, rgce, opts, int(cchCustMenu), int(cchDescription), int(cchHelpTopic), int(cchStatusText))
	if err != nil {
		return nil, fmt.Errorf("optional trailers: %w", err)
	}
	dn.RefersTo = refersTo
	dn.Comment = comment

	return dn, nil
}

// decodeWithOptionalRgcb decodes rgce, and — only when rgce contains a
// PtgArray token of any class — first tries consuming an rgcb side
// table between rgce and the optional trailer strings. If that attempt
// fails to decode or the trailers that follow don't parse, it
// backtracks c to right after rgce and retries assuming no rgcb block
// was present at all (some producers omit it even when PtgArray
// appears, e.g. an empty array literal with no elements).
func decodeWithOptionalRgcb(c *cursor.Cursor, rgce []byte, opts formula.Options, cchCustMenu, cchDescription, cchHelpTopic, cchStatusText int) (refersTo, comment string, err error) {
	decodeOnly := func(rgcb *cursor.Cursor) string {
		text, err := formula.Decode(cursor.New(rgce), rgcb, opts)
		if err != nil {
			return "#NAME?"
		}
		return text
	}

	if !mayHaveArray(rgce) {
		refersTo = decodeOnly(cursor.New())
		comment, err = readOptionalTrailers(c, cchCustMenu, cchDescription, cchHelpTopic, cchStatusText)
		return refersTo, comment, err
	}

	snapshot := *c
	text := decodeOnly(c)
	if com, trailerErr := readOptionalTrailers(c, cchCustMenu, cchDescription, cchHelpTopic, cchStatusText); trailerErr == nil {
		return text, com, nil
	}

	*c = snapshot
	refersTo = decodeOnly(cursor.New())
	comment, err = readOptionalTrailers(c, cchCustMenu, cchDescription, cchHelpTopic, cchStatusText)
	return refersTo, comment, err
}

func mayHaveArray(rgce []byte) bool {
	for _, b := range rgce {
		if b == 0x20 || b == 0x40 || b == 0x60 {
			return true
		}
	}
	return false
}

// readOptionalTrailers reads the four optional BIFF no-cch trailer
// strings (custom menu, description, help topic, status text) and
// returns the description's text.
func readOptionalTrailers(c *cursor.Cursor, cchCustMenu, cchDescription, cchHelpTopic, cchStatusText int) (string, error) {
	if cchCustMenu > 0 {
		if _, err := strdecode.DecodeNoCch(c, cchCustMenu); err != nil {
			return "", fmt.Errorf("custom menu: %w", err)
		}
	}
	var comment string
	if cchDescription > 0 {
		d, err := strdecode.DecodeNoCch(c, cchDescription)
		if err != nil {
			return "", fmt.Errorf("description: %w", err)
		}
		comment = stripNULs(d.Text)
	}
	if cchHelpTopic > 0 {
		if _, err := strdecode.DecodeNoCch(c, cchHelpTopic); err != nil {
			return "", fmt.Errorf("help topic: %w", err)
		}
	}
	if cchStatusText > 0 {
		if _, err := strdecode.DecodeNoCch(c, cchStatusText); err != nil {
			return "", fmt.Errorf("status text: %w", err)
		}
	}
	return comment, nil
}

func stripNULs(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == 0 {
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
