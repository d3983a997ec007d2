package record

import (
	"fmt"
	"io"

	"github.com/TsubasaBE/formulacore/biff12"
	"github.com/TsubasaBE/formulacore/cursor"
	"github.com/TsubasaBE/formulacore/formula"
	"github.com/TsubasaBE/formulacore/workbook"
)

// ScanWorkbookPart reads the BIFF12 record stream of a workbook part
// (workbook.bin): every BrtSheet record registers a sheet, and every
// BrtName record registers a workbook- or sheet-scoped defined name, its
// rgce body decoded through the formula package exactly as a worksheet
// cell's formula would be. A name whose rgce fails to decode is still
// registered, at the same index, with the "#NAME?" placeholder text, the
// same index-preservation rule the BIFF8 defined-name parser (package
// names) follows.
func ScanWorkbookPart(r io.ReadSeeker, wb *workbook.Context) error {
	rr := NewReader(r)
	nameIndex := 0

	for {
		id, data, err := rr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("record: scan workbook part: %w", err)
		}

		switch id {
		case biff12.Sheet:
			name, err := decodeSheetRecord(data)
			if err != nil {
				return fmt.Errorf("record: Sheet record: %w", err)
			}
			wb.AddSheet(name)

		case biff12.DefinedName:
			nameIndex++
			name, sheetScope, rgce, err := decodeDefinedNameHeader(data)
			if err != nil {
				wb.AddWorkbookName("#NAME?", nameIndex)
				continue
			}
			base := formula.BaseCell{}
			opts := formula.Options{Dialect: formula.DialectBIFF12, Workbook: wb, Base: &base}
			if _, err := formula.Decode(cursor.New(rgce), nil, opts); err != nil {
				name = "#NAME?"
			}
			if sheetScope >= 0 {
				wb.AddSheetName(sheetScope, name, nameIndex)
			} else {
				wb.AddWorkbookName(name, nameIndex)
			}
		}
	}
}

// decodeSheetRecord parses a BrtSheet record: state(u32), sheetId(u32),
// relId(string), name(string). Only the display name is needed here.
func decodeSheetRecord(data []byte) (name string, err error) {
	rr := NewRecordReader(data)
	if _, err := rr.ReadUint32(); err != nil { // state
		return "", fmt.Errorf("state: %w", err)
	}
	if _, err := rr.ReadUint32(); err != nil { // sheetId
		return "", fmt.Errorf("sheetId: %w", err)
	}
	if _, err := rr.ReadString(); err != nil { // relId, unused
		return "", fmt.Errorf("relId: %w", err)
	}
	name, err = rr.ReadString()
	if err != nil {
		return "", fmt.Errorf("name: %w", err)
	}
	return name, nil
}

// decodeDefinedNameHeader parses a BrtName record header: grbit(u16),
// itab(i32, -1 for workbook scope, else a 0-based sheet index), name
// (string), cce(u32), rgce(cce bytes). sheetScope is -1 when the name is
// workbook-scoped.
func decodeDefinedNameHeader(data []byte) (name string, sheetScope int, rgce []byte, err error) {
	rr := NewRecordReader(data)
	if _, err := rr.ReadUint16(); err != nil { // grbit
		return "", 0, nil, fmt.Errorf("grbit: %w", err)
	}
	itab, err := rr.ReadInt32()
	if err != nil {
		return "", 0, nil, fmt.Errorf("itab: %w", err)
	}
	name, err = rr.ReadString()
	if err != nil {
		return "", 0, nil, fmt.Errorf("name: %w", err)
	}
	cce, err := rr.ReadUint32()
	if err != nil {
		return "", 0, nil, fmt.Errorf("cce: %w", err)
	}
	rgce, err = rr.ReadBytes(int(cce))
	if err != nil {
		return "", 0, nil, fmt.Errorf("rgce: %w", err)
	}
	return name, int(itab), rgce, nil
}

// CellKind classifies the value a CellValue carries.
type CellKind int

const (
	CellBlank CellKind = iota
	CellNumber
	CellBool
	CellError
	CellString
	CellFormulaNumber
	CellFormulaString
	CellFormulaBool
	CellFormulaError
)

// CellValue is one worksheet cell read from a BrtRowHdr/cell record run.
// Formula cells carry the decoded formula text in Text rather than the
// cached value the record also stores: this scan exists to exercise the
// formula decoder, not to surface a stale cached result.
type CellValue struct {
	Row, Col  int
	Kind      CellKind
	Number    float64
	Bool      bool
	ErrorCode uint8
	Text      string
}

// ScanWorksheetPart reads the BIFF12 record stream of one worksheet part's
// sheet-data section (the BrtRowHdr/BrtCell* run inside BrtBeginSheetData/
// BrtEndSheetData), returning every cell value it finds in record order.
// Formula-bearing cells are decoded through the formula package against wb
// so PtgName/PtgRef3d tokens resolve through the same workbook context the
// worksheet belongs to.
func ScanWorksheetPart(r io.ReadSeeker, wb *workbook.Context) ([]CellValue, error) {
	rr := NewReader(r)
	var cells []CellValue
	row := 0

	for {
		id, data, err := rr.Next()
		if err == io.EOF {
			return cells, nil
		}
		if err != nil {
			return cells, fmt.Errorf("record: scan worksheet part: %w", err)
		}

		switch id {
		case biff12.Row:
			rw, err := NewRecordReader(data).ReadUint32()
			if err != nil {
				return cells, fmt.Errorf("record: Row record: %w", err)
			}
			row = int(rw)

		case biff12.Blank:
			col, _, err := cellHeaderFrom(NewRecordReader(data))
			if err != nil {
				return cells, fmt.Errorf("record: Blank cell: %w", err)
			}
			cells = append(cells, CellValue{Row: row, Col: col, Kind: CellBlank})

		case biff12.Num:
			rdr := NewRecordReader(data)
			col, _, err := cellHeaderFrom(rdr)
			if err != nil {
				return cells, fmt.Errorf("record: Num cell: %w", err)
			}
			v, err := rdr.ReadFloat()
			if err != nil {
				return cells, fmt.Errorf("record: Num cell value: %w", err)
			}
			cells = append(cells, CellValue{Row: row, Col: col, Kind: CellNumber, Number: v})

		case biff12.Float:
			rdr := NewRecordReader(data)
			col, _, err := cellHeaderFrom(rdr)
			if err != nil {
				return cells, fmt.Errorf("record: Float cell: %w", err)
			}
			v, err := rdr.ReadDouble()
			if err != nil {
				return cells, fmt.Errorf("record: Float cell value: %w", err)
			}
			cells = append(cells, CellValue{Row: row, Col: col, Kind: CellNumber, Number: v})

		case biff12.Bool:
			rdr := NewRecordReader(data)
			col, _, err := cellHeaderFrom(rdr)
			if err != nil {
				return cells, fmt.Errorf("record: Bool cell: %w", err)
			}
			b, err := rdr.ReadUint8()
			if err != nil {
				return cells, fmt.Errorf("record: Bool cell value: %w", err)
			}
			cells = append(cells, CellValue{Row: row, Col: col, Kind: CellBool, Bool: b != 0})

		case biff12.BoolErr:
			rdr := NewRecordReader(data)
			col, _, err := cellHeaderFrom(rdr)
			if err != nil {
				return cells, fmt.Errorf("record: BoolErr cell: %w", err)
			}
			e, err := rdr.ReadUint8()
			if err != nil {
				return cells, fmt.Errorf("record: BoolErr cell value: %w", err)
			}
			cells = append(cells, CellValue{Row: row, Col: col, Kind: CellError, ErrorCode: e})

		case biff12.String:
			rdr := NewRecordReader(data)
			col, _, err := cellHeaderFrom(rdr)
			if err != nil {
				return cells, fmt.Errorf("record: String cell: %w", err)
			}
			s, err := rdr.ReadString()
			if err != nil {
				return cells, fmt.Errorf("record: String cell value: %w", err)
			}
			cells = append(cells, CellValue{Row: row, Col: col, Kind: CellString, Text: s})

		case biff12.FormulaFloat, biff12.FormulaString, biff12.FormulaBool, biff12.FormulaBoolErr:
			cv, err := decodeFormulaCell(id, data, row, wb)
			if err != nil {
				return cells, fmt.Errorf("record: formula cell: %w", err)
			}
			cells = append(cells, cv)
		}
	}
}

// cellHeaderFrom parses the col(u32)/style(u32) header shared by every
// cell record.
func cellHeaderFrom(rdr *RecordReader) (col, style int, err error) {
	c, err := rdr.ReadUint32()
	if err != nil {
		return 0, 0, fmt.Errorf("col: %w", err)
	}
	s, err := rdr.ReadUint32()
	if err != nil {
		return 0, 0, fmt.Errorf("style: %w", err)
	}
	return int(c), int(s), nil
}

// decodeFormulaCell parses the shared BrtFmla* shape: col/style header,
// cached value (discarded, see CellValue), a grbit byte, then cce/rgce.
func decodeFormulaCell(id int, data []byte, row int, wb *workbook.Context) (CellValue, error) {
	rdr := NewRecordReader(data)
	col, _, err := cellHeaderFrom(rdr)
	if err != nil {
		return CellValue{}, err
	}

	var kind CellKind
	switch id {
	case biff12.FormulaFloat:
		kind = CellFormulaNumber
		if _, err := rdr.ReadDouble(); err != nil {
			return CellValue{}, fmt.Errorf("cached value: %w", err)
		}
	case biff12.FormulaString:
		kind = CellFormulaString
		if _, err := rdr.ReadString(); err != nil {
			return CellValue{}, fmt.Errorf("cached value: %w", err)
		}
	case biff12.FormulaBool:
		kind = CellFormulaBool
		if _, err := rdr.ReadUint8(); err != nil {
			return CellValue{}, fmt.Errorf("cached value: %w", err)
		}
	case biff12.FormulaBoolErr:
		kind = CellFormulaError
		if _, err := rdr.ReadUint8(); err != nil {
			return CellValue{}, fmt.Errorf("cached value: %w", err)
		}
	}

	if _, err := rdr.ReadUint8(); err != nil { // grbit
		return CellValue{}, fmt.Errorf("grbit: %w", err)
	}
	cce, err := rdr.ReadUint32()
	if err != nil {
		return CellValue{}, fmt.Errorf("cce: %w", err)
	}
	rgce, err := rdr.ReadBytes(int(cce))
	if err != nil {
		return CellValue{}, fmt.Errorf("rgce: %w", err)
	}

	base := formula.BaseCell{Row: row, Col: col}
	opts := formula.Options{Dialect: formula.DialectBIFF12, Workbook: wb, Base: &base}
	text, err := formula.Decode(cursor.New(rgce), nil, opts)
	if err != nil {
		return CellValue{}, fmt.Errorf("decode rgce: %w", err)
	}

	return CellValue{Row: row, Col: col, Kind: kind, Text: text}, nil
}
