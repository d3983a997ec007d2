package names

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/TsubasaBE/formulacore/biff12"
	"github.com/TsubasaBE/formulacore/workbook"
)

func u16le(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

// nameHeader builds the 14-byte fixed Lbl header.
func nameHeader(grbit uint16, chKey byte, cch uint8, cce uint16, itab uint16) []byte {
	var h []byte
	h = append(h, u16le(grbit)...)
	h = append(h, chKey, byte(cch))
	h = append(h, u16le(cce)...)
	h = append(h, u16le(0)...) // ixals, unused
	h = append(h, u16le(itab)...)
	h = append(h, 0, 0, 0, 0) // cchCustMenu, cchDescription, cchHelpTopic, cchStatusText
	return h
}

// ptgRefA1 builds a 5-byte BIFF8 PtgRef token for row0/col0, both relative.
func ptgRefA1() []byte {
	var out []byte
	out = append(out, biff12.PtgRefBase)
	out = append(out, u16le(0)...)
	out = append(out, u16le(uint16(biff12.ColRowRel|biff12.ColColRel))...)
	return out
}

// record wraps a single BIFF8 record (no CONTINUE fragments) with the
// physical header Parse's underlying reader expects, followed by an EOF
// record so the reader stops cleanly.
func record(id uint16, payload []byte) []byte {
	var buf bytes.Buffer
	var hdr [4]byte
	binary.LittleEndian.PutUint16(hdr[0:2], id)
	binary.LittleEndian.PutUint16(hdr[2:4], uint16(len(payload)))
	buf.Write(hdr[:])
	buf.Write(payload)
	return buf.Bytes()
}

func eofRecord() []byte {
	return record(biff12.Biff8Eof, nil)
}

func TestParseUserDefinedWorkbookScopedName(t *testing.T) {
	rgce := ptgRefA1()
	name := []byte("MyRange")
	payload := nameHeader(0, 0, uint8(len(name)), uint16(len(rgce)), 0)
	payload = append(payload, 0x00) // name flags byte: MBCS, low-byte chars
	payload = append(payload, name...)
	payload = append(payload, rgce...)

	var stream bytes.Buffer
	stream.Write(record(biff12.Biff8Name, payload))
	stream.Write(eofRecord())

	wb := workbook.NewContext()
	res, err := Parse(&stream, wb, 1)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(res.Names) != 1 {
		t.Fatalf("got %d names, want 1", len(res.Names))
	}
	dn := res.Names[0]
	if dn.Name != "MyRange" {
		t.Errorf("Name = %q, want MyRange", dn.Name)
	}
	if dn.HasSheetScope {
		t.Errorf("expected workbook scope, got sheet scope")
	}
	if dn.RefersTo != "A1" {
		t.Errorf("RefersTo = %q, want A1", dn.RefersTo)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}
}

func TestParseSheetScopedName(t *testing.T) {
	rgce := ptgRefA1()
	name := []byte("Local")
	payload := nameHeader(0, 0, uint8(len(name)), uint16(len(rgce)), 2) // itab=2 -> sheet index 1
	payload = append(payload, 0x00)
	payload = append(payload, name...)
	payload = append(payload, rgce...)

	var stream bytes.Buffer
	stream.Write(record(biff12.Biff8Name, payload))
	stream.Write(eofRecord())

	wb := workbook.NewContext()
	res, err := Parse(&stream, wb, 3)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	dn := res.Names[0]
	if !dn.HasSheetScope || dn.SheetIndex != 1 {
		t.Fatalf("got HasSheetScope=%v SheetIndex=%d, want true/1", dn.HasSheetScope, dn.SheetIndex)
	}
}

func TestParseSheetScopeOutOfRangeWarns(t *testing.T) {
	rgce := ptgRefA1()
	name := []byte("Dangling")
	payload := nameHeader(0, 0, uint8(len(name)), uint16(len(rgce)), 9) // itab=9 -> sheet index 8
	payload = append(payload, 0x00)
	payload = append(payload, name...)
	payload = append(payload, rgce...)

	var stream bytes.Buffer
	stream.Write(record(biff12.Biff8Name, payload))
	stream.Write(eofRecord())

	wb := workbook.NewContext()
	res, err := Parse(&stream, wb, 1)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", res.Warnings)
	}
}

func TestParseBuiltinNameByID(t *testing.T) {
	rgce := ptgRefA1()
	// cch=1, body is a single byte holding the builtin id.
	payload := nameHeader(flagBuiltin, 0x06, 1, uint16(len(rgce)), 0)
	payload = append(payload, 0x06) // builtin id byte (Print_Area)
	payload = append(payload, rgce...)

	var stream bytes.Buffer
	stream.Write(record(biff12.Biff8Name, payload))
	stream.Write(eofRecord())

	wb := workbook.NewContext()
	res, err := Parse(&stream, wb, 1)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	dn := res.Names[0]
	if !dn.Builtin || dn.Name != "_xlnm.Print_Area" {
		t.Errorf("got Builtin=%v Name=%q, want _xlnm.Print_Area", dn.Builtin, dn.Name)
	}
}

func TestParseBuiltinNameFallsBackToChKey(t *testing.T) {
	rgce := ptgRefA1()
	payload := nameHeader(flagBuiltin, 0x07, 0, uint16(len(rgce)), 0) // cch=0 -> use chKey
	payload = append(payload, rgce...)

	var stream bytes.Buffer
	stream.Write(record(biff12.Biff8Name, payload))
	stream.Write(eofRecord())

	wb := workbook.NewContext()
	res, err := Parse(&stream, wb, 1)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	dn := res.Names[0]
	if dn.Name != "_xlnm.Print_Titles" {
		t.Errorf("got %q, want _xlnm.Print_Titles", dn.Name)
	}
}

func TestParseUnknownBuiltinIDFormatsFallback(t *testing.T) {
	rgce := ptgRefA1()
	payload := nameHeader(flagBuiltin, 0x7F, 0, uint16(len(rgce)), 0)
	payload = append(payload, rgce...)

	var stream bytes.Buffer
	stream.Write(record(biff12.Biff8Name, payload))
	stream.Write(eofRecord())

	wb := workbook.NewContext()
	res, err := Parse(&stream, wb, 1)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if res.Names[0].Name != "_xlnm.Builtin_0x7F" {
		t.Errorf("got %q", res.Names[0].Name)
	}
}

func TestParseMalformedRecordGetsPlaceholderAndPreservesIndex(t *testing.T) {
	// A well-formed name followed by a truncated one (header cut short);
	// the truncated record must still consume an index slot.
	rgce := ptgRefA1()
	good := nameHeader(0, 0, 4, uint16(len(rgce)), 0)
	good = append(good, 0x00)
	good = append(good, []byte("Good")...)
	good = append(good, rgce...)

	bad := []byte{0x00, 0x00, 0x00} // far too short for the fixed header

	var stream bytes.Buffer
	stream.Write(record(biff12.Biff8Name, good))
	stream.Write(record(biff12.Biff8Name, bad))
	stream.Write(eofRecord())

	wb := workbook.NewContext()
	res, err := Parse(&stream, wb, 1)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(res.Names) != 2 {
		t.Fatalf("got %d names, want 2", len(res.Names))
	}
	if res.Names[0].Name != "Good" {
		t.Errorf("first name = %q, want Good", res.Names[0].Name)
	}
	if res.Names[1].Name != "#NAME?" {
		t.Errorf("second name = %q, want #NAME? placeholder", res.Names[1].Name)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("expected one warning for the malformed record, got %v", res.Warnings)
	}
}

func TestParseNameWithContinuedRgceAcrossFragments(t *testing.T) {
	// Split the name record so the CONTINUE boundary falls inside the rgce
	// body (after the PtgRef tag byte), exercising record.Biff8Reader's
	// fragment merging and formula.CopyRgceBIFF8's budget-bound copy across
	// those fragments.
	rgce := ptgRefA1()
	name := []byte("Split")
	head := nameHeader(0, 0, uint8(len(name)), uint16(len(rgce)), 0)
	head = append(head, 0x00)
	head = append(head, name...)

	splitAt := 2 // split inside rgce's row/col payload, not mid-character
	firstFrag := append(append([]byte{}, head...), rgce[:splitAt]...)
	secondFrag := rgce[splitAt:]

	var stream bytes.Buffer
	stream.Write(record(biff12.Biff8Name, firstFrag))
	stream.Write(record(biff12.Continue, secondFrag))
	stream.Write(eofRecord())

	wb := workbook.NewContext()
	res, err := Parse(&stream, wb, 1)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(res.Names) != 1 {
		t.Fatalf("got %d names, want 1", len(res.Names))
	}
	dn := res.Names[0]
	if dn.Name != "Split" {
		t.Errorf("Name = %q, want Split", dn.Name)
	}
	if dn.RefersTo != "A1" {
		t.Errorf("RefersTo = %q, want A1", dn.RefersTo)
	}
}

func TestParseNameWithTrailerDescription(t *testing.T) {
	rgce := ptgRefA1()
	name := []byte("Commented")
	desc := []byte("a helpful note")

	var h []byte
	h = append(h, u16le(0)...)
	h = append(h, 0, byte(len(name)))
	h = append(h, u16le(uint16(len(rgce)))...)
	h = append(h, u16le(0)...)
	h = append(h, u16le(0)...)
	h = append(h, 0, byte(len(desc)), 0, 0) // cchCustMenu=0, cchDescription=len(desc)

	payload := append([]byte{}, h...)
	payload = append(payload, 0x00)
	payload = append(payload, name...)
	payload = append(payload, rgce...)
	payload = append(payload, 0x00) // description flags byte
	payload = append(payload, desc...)

	var stream bytes.Buffer
	stream.Write(record(biff12.Biff8Name, payload))
	stream.Write(eofRecord())

	wb := workbook.NewContext()
	res, err := Parse(&stream, wb, 1)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	dn := res.Names[0]
	if dn.Comment != "a helpful note" {
		t.Errorf("Comment = %q, want %q", dn.Comment, "a helpful note")
	}
}

func TestStripNULs(t *testing.T) {
	if got := stripNULs("ab\x00cd"); got != "abcd" {
		t.Errorf("got %q, want abcd", got)
	}
}

func TestBuiltinNameFallback(t *testing.T) {
	if got := builtinName(0xFF); got != "_xlnm.Builtin_0xFF" {
		t.Errorf("got %q", got)
	}
	if got := builtinName(0x0D); got != "_xlnm._FilterDatabase" {
		t.Errorf("got %q", got)
	}
}
