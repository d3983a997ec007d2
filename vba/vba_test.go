package vba

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// putChunkHeader encodes one CompressedContainer chunk header: a 12-bit
// size field (total chunk bytes, header included, minus 3), the fixed
// 0b011 signature, and the compressed flag.
func putChunkHeader(size int, compressed bool) []byte {
	header := uint16(0x3000) | uint16(size-3)
	if compressed {
		header |= 0x8000
	}
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, header)
	return b
}

func TestDecompressUncompressedChunk(t *testing.T) {
	body := []byte("HelloWorld")
	chunk := append(putChunkHeader(2+len(body), false), body...)
	data := append([]byte{signatureByte}, chunk...)

	got, err := Decompress(data)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("Decompress = %q, want %q", got, body)
	}
}

func TestDecompressLiteralTokens(t *testing.T) {
	literals := []byte("ABCDEFG")
	body := append([]byte{0x00}, literals...) // flag byte 0: all 8 slots literal
	chunk := append(putChunkHeader(2+len(body), true), body...)
	data := append([]byte{signatureByte}, chunk...)

	got, err := Decompress(data)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(got, literals) {
		t.Fatalf("Decompress = %q, want %q", got, literals)
	}
}

func TestDecompressCopyToken(t *testing.T) {
	// Seed 4 literal bytes, then a copy token re-emitting the last 4 bytes
	// (offset 4, length 4): decompressedCurrent at token time is 4, so
	// splitCopyToken clamps bitCount to 4 regardless.
	literals := []byte("WXYZ")
	offset, length := 4, 4
	bitCount := 4
	lengthMask := uint16(0xFFFF) >> uint(16-bitCount)
	token := uint16(offset-1)<<uint(bitCount) | (uint16(length-3) & lengthMask)
	tokenBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(tokenBytes, token)

	// flags bit 0 (literal group not used here): bits 0-3 literal (4
	// literal bytes), bit 4 set (copy token).
	flags := byte(0x10)
	body := append([]byte{flags}, literals...)
	body = append(body, tokenBytes...)
	chunk := append(putChunkHeader(2+len(body), true), body...)
	data := append([]byte{signatureByte}, chunk...)

	got, err := Decompress(data)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	want := append(append([]byte{}, literals...), literals...)
	if !bytes.Equal(got, want) {
		t.Fatalf("Decompress = %q, want %q", got, want)
	}
}

func TestDecompressRejectsMissingSignature(t *testing.T) {
	if _, err := Decompress([]byte{0x02, 0x00, 0x00}); err == nil {
		t.Fatal("Decompress: want error for missing signature byte")
	}
}

func TestSplitCopyTokenBitCountBoundaries(t *testing.T) {
	cases := []struct {
		current  int
		bitCount int
	}{
		{16, 4},
		{17, 5},
		{32, 5},
		{33, 6},
	}
	for _, c := range cases {
		_, length := splitCopyToken(0, c.current)
		// length is independent of bitCount when token bits are 0, so
		// instead derive bitCount from the offset/length mask split by
		// probing a token whose low bits would only fit under the right
		// bitCount.
		lengthMask := uint16(0xFFFF) >> uint(16-c.bitCount)
		_ = length
		if lengthMask == 0 {
			t.Fatalf("current=%d: lengthMask underflowed", c.current)
		}
		gotOffset, gotLength := splitCopyToken(lengthMask, c.current)
		if gotLength != int(lengthMask)+3 {
			t.Fatalf("current=%d: length = %d, want %d (bitCount %d)", c.current, gotLength, int(lengthMask)+3, c.bitCount)
		}
		if gotOffset != 1 {
			t.Fatalf("current=%d: offset = %d, want 1 (token's offset bits all zero)", c.current, gotOffset)
		}
	}
}

func TestFindSignatureOffset(t *testing.T) {
	noise := []byte{0xFF, 0xFF, 0xFF}
	header := putChunkHeader(5, false)
	data := append(append([]byte{}, noise...), header...)
	off, ok := FindSignatureOffset(data)
	if !ok {
		t.Fatal("FindSignatureOffset: want ok=true")
	}
	if off != len(noise) {
		t.Fatalf("offset = %d, want %d", off, len(noise))
	}
}

func recBytes(id uint16, data []byte) []byte {
	var hdr [6]byte
	binary.LittleEndian.PutUint16(hdr[0:2], id)
	binary.LittleEndian.PutUint32(hdr[2:6], uint32(len(data)))
	return append(hdr[:], data...)
}

func fixedRecBytes(id uint16, data []byte) []byte {
	var hdr [2]byte
	binary.LittleEndian.PutUint16(hdr[:], id)
	return append(hdr[:], data...)
}

func TestReadDirRecordsHandlesProjectVersionAndTerminators(t *testing.T) {
	var buf []byte
	buf = append(buf, recBytes(idProjectName, []byte("MyProject"))...)
	buf = append(buf, fixedRecBytes(idProjectVersion, []byte{4, 0, 0, 0, 7, 0, 0, 0, 1, 0})...)
	buf = append(buf, fixedRecBytes(idTerminator, []byte{0, 0, 0, 0})...)
	buf = append(buf, recBytes(idProjectName, []byte("after-terminator"))...)

	recs, err := readDirRecords(buf)
	if err != nil {
		t.Fatalf("readDirRecords: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("len(recs) = %d, want 4", len(recs))
	}
	if recs[0].ID != idProjectName || string(recs[0].Data) != "MyProject" {
		t.Fatalf("recs[0] = %+v", recs[0])
	}
	if recs[1].ID != idProjectVersion || len(recs[1].Data) != 10 {
		t.Fatalf("recs[1] = %+v, want 10-byte PROJECTVERSION body", recs[1])
	}
	if recs[2].ID != idTerminator || len(recs[2].Data) != 4 {
		t.Fatalf("recs[2] = %+v, want 4-byte terminator body", recs[2])
	}
	if recs[3].ID != idProjectName || string(recs[3].Data) != "after-terminator" {
		t.Fatalf("recs[3] = %+v: parsing desynced after the fixed-shape records", recs[3])
	}
}

func TestV1ContentNormalizedDataIncludesProjectNameAndModules(t *testing.T) {
	var dir []byte
	dir = append(dir, recBytes(idProjectName, []byte("Proj"))...)
	dir = append(dir, recBytes(idModuleName, []byte("Module1"))...)
	dir = append(dir, recBytes(idModuleStreamName, []byte("Module1"))...)
	dir = append(dir, recBytes(idModuleOffset, []byte{0, 0, 0, 0})...)
	dir = append(dir, fixedRecBytes(idModuleTerminator, []byte{0, 0, 0, 0})...)

	source := []byte("Attribute VB_Name = \"Module1\"\r\nSub Foo()\r\nEnd Sub\r\n")
	compressed := compressStored(source)

	modules := ModuleSource(func(name string) ([]byte, error) {
		if name != "Module1" {
			t.Fatalf("unexpected stream name %q", name)
		}
		return compressed, nil
	})

	out, warnings, err := V1ContentNormalizedData(dir, modules)
	if err != nil {
		t.Fatalf("V1ContentNormalizedData: %v", err)
	}
	if len(warnings.Messages()) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings.Messages())
	}
	if !bytes.Contains(out, []byte("Proj")) {
		t.Fatalf("transcript missing PROJECTNAME payload: %q", out)
	}
	if bytes.Contains(out, []byte("Attribute VB_Name")) {
		t.Fatalf("transcript should have stripped the Attribute line: %q", out)
	}
	if !bytes.Contains(out, []byte("Sub Foo()")) {
		t.Fatalf("transcript missing module body: %q", out)
	}
}

// compressStored wraps src in a single uncompressed CompressedContainer
// chunk (or chunks, if src exceeds one chunk), the simplest container
// Decompress accepts.
func compressStored(src []byte) []byte {
	out := []byte{signatureByte}
	for i := 0; i < len(src); i += chunkSize {
		end := i + chunkSize
		if end > len(src) {
			end = len(src)
		}
		body := src[i:end]
		out = append(out, putChunkHeader(2+len(body), false)...)
		out = append(out, body...)
	}
	if len(src) == 0 {
		out = append(out, putChunkHeader(2, false)...)
	}
	return out
}

func TestNormalizeSourceV3StripsDefaultAttributesAndAppendsName(t *testing.T) {
	src := []byte("Attribute VB_Name = \"Module1\"\r\n" +
		`Attribute VB_Base = "0{00020820-0000-0000-C000-000000000046}"` + "\r\n" +
		"Sub Foo()\r\nEnd Sub\r\n")
	out := normalizeSourceV3(src, []byte("Module1"))
	if bytes.Contains(out, []byte("VB_Name")) || bytes.Contains(out, []byte("VB_Base")) {
		t.Fatalf("V3 transcript should drop VB_Name and default attribute lines: %q", out)
	}
	if !bytes.HasSuffix(out, []byte("Module1\n")) {
		t.Fatalf("V3 transcript should append the module name: %q", out)
	}
}

func TestNormalizeSourceV3OmitsNameWhenNothingSurvives(t *testing.T) {
	src := []byte("Attribute VB_Name = \"Module1\"\r\n")
	out := normalizeSourceV3(src, []byte("Module1"))
	if len(out) != 0 {
		t.Fatalf("expected empty transcript when every line is stripped, got %q", out)
	}
}

func TestNormalizeReferenceProjectTruncatesAtNUL(t *testing.T) {
	absolute := []byte("libid-abs\x00trailing-garbage")
	relative := []byte("libid-rel")
	var data []byte
	data = append(data, leU32(uint32(len(absolute)))...)
	data = append(data, absolute...)
	data = append(data, leU32(uint32(len(relative)))...)
	data = append(data, relative...)
	data = append(data, leU32(7)...)  // MajorVersion
	data = append(data, leU16(2)...)  // MinorVersion

	got, ok := normalizeReferenceProject(data)
	if !ok {
		t.Fatal("normalizeReferenceProject: want ok=true")
	}
	want := []byte("libid-abs")
	if !bytes.Equal(got, want) {
		t.Fatalf("normalizeReferenceProject = %q, want %q (truncated at NUL)", got, want)
	}
}

func TestNormalizeReferenceControlRoundTrip(t *testing.T) {
	twiddled := []byte("twiddled-libid")
	var data []byte
	data = append(data, leU32(uint32(len(twiddled)))...)
	data = append(data, twiddled...)
	data = append(data, leU32(0)...)
	data = append(data, leU16(0)...)

	got, ok := normalizeReferenceControl(data)
	if !ok {
		t.Fatal("normalizeReferenceControl: want ok=true")
	}
	if !bytes.HasPrefix(got, twiddled) {
		t.Fatalf("normalizeReferenceControl = %q, want prefix %q", got, twiddled)
	}
}

func leU32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func leU16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func TestFormsNormalizedDataPads(t *testing.T) {
	streams := []DesignerStream{{Name: "f", Data: []byte("abc")}}
	out := FormsNormalizedData(streams)
	if len(out) != designerPad {
		t.Fatalf("len(out) = %d, want %d", len(out), designerPad)
	}
	if !bytes.HasPrefix(out, []byte("abc")) {
		t.Fatalf("FormsNormalizedData should start with stream data: %q", out[:3])
	}
	for _, b := range out[3:] {
		if b != 0 {
			t.Fatal("padding bytes should be zero")
		}
	}
}

func TestFormsNormalizedDataExactMultipleNeedsNoPadding(t *testing.T) {
	streams := []DesignerStream{{Name: "f", Data: bytes.Repeat([]byte{0x41}, designerPad)}}
	out := FormsNormalizedData(streams)
	if len(out) != designerPad {
		t.Fatalf("len(out) = %d, want %d (no extra padding for an exact multiple)", len(out), designerPad)
	}
}

func TestNormalizeProjectStreamDropsExcludedKeysAndStopsAtSection(t *testing.T) {
	raw := []byte("ID=\"{GUID}\"\r\nName=\"Proj\"\r\nPassword=\"secret\"\r\n" +
		"[Host Extender Info]\r\nSomething=1\r\n" +
		"[Workspace]\r\nShouldNotAppear=1\r\n")
	out := NormalizeProjectStream(raw)
	if bytes.Contains(out, []byte("ID=")) || bytes.Contains(out, []byte("Password=")) {
		t.Fatalf("NormalizeProjectStream should drop excluded keys: %q", out)
	}
	if !bytes.Contains(out, []byte("Name=\"Proj\"")) {
		t.Fatalf("NormalizeProjectStream should keep Name: %q", out)
	}
	if bytes.Contains(out, []byte("ShouldNotAppear")) {
		t.Fatalf("NormalizeProjectStream should stop at the first non-allowed section header: %q", out)
	}
}

func TestWarningsCapsAtMaxWarnings(t *testing.T) {
	w := &Warnings{}
	for i := 0; i < maxWarnings+10; i++ {
		w.warnf("warning %d", i)
	}
	msgs := w.Messages()
	if len(msgs) != maxWarnings+1 {
		t.Fatalf("len(msgs) = %d, want %d (cap plus suppression notice)", len(msgs), maxWarnings+1)
	}
	if msgs[maxWarnings] != "additional vba transcript warnings suppressed" {
		t.Fatalf("last message = %q, want suppression notice", msgs[maxWarnings])
	}
}
