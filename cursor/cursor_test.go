package cursor

import "testing"

func TestReadBytesSpansFragments(t *testing.T) {
	c := New([]byte{1, 2, 3}, []byte{4, 5}, []byte{6})
	b, err := c.ReadBytes(5)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	want := []byte{1, 2, 3, 4, 5}
	for i, v := range want {
		if b[i] != v {
			t.Fatalf("byte %d: got %d want %d", i, b[i], v)
		}
	}
	last, err := c.ReadByte()
	if err != nil || last != 6 {
		t.Fatalf("ReadByte: got (%d, %v), want (6, nil)", last, err)
	}
	if _, err := c.ReadByte(); err != ErrUnexpectedEOF {
		t.Fatalf("expected ErrUnexpectedEOF at true end, got %v", err)
	}
}

func TestReadUint16CrossesFragment(t *testing.T) {
	c := New([]byte{0x01}, []byte{0x02})
	v, err := c.ReadUint16()
	if err != nil {
		t.Fatalf("ReadUint16: %v", err)
	}
	if v != 0x0201 {
		t.Fatalf("got 0x%04X, want 0x0201", v)
	}
}

func TestReadStringUnitsSingleByte(t *testing.T) {
	c := New([]byte("hello"))
	isUnicode := false
	b, err := c.ReadStringUnits(5, &isUnicode)
	if err != nil {
		t.Fatalf("ReadStringUnits: %v", err)
	}
	if string(b) != "hello" {
		t.Fatalf("got %q, want %q", b, "hello")
	}
}

func TestReadStringUnitsContinuationFlipsEncoding(t *testing.T) {
	// "AB" single-byte, then a continuation flag byte (0x01 = now unicode),
	// then "C" as one UTF-16LE unit.
	frag1 := []byte{'A', 'B'}
	frag2 := []byte{0x01, 'C', 0x00}
	c := New(frag1, frag2)
	isUnicode := false
	b1, err := c.ReadStringUnits(2, &isUnicode)
	if err != nil {
		t.Fatalf("first ReadStringUnits: %v", err)
	}
	if string(b1) != "AB" {
		t.Fatalf("got %q, want AB", b1)
	}
	if err := c.CrossStringContinuation(&isUnicode); err != nil {
		t.Fatalf("CrossStringContinuation: %v", err)
	}
	if !isUnicode {
		t.Fatalf("expected isUnicode=true after continuation flag 0x01")
	}
	b2, err := c.ReadStringUnits(1, &isUnicode)
	if err != nil {
		t.Fatalf("second ReadStringUnits: %v", err)
	}
	if len(b2) != 2 || b2[0] != 'C' || b2[1] != 0 {
		t.Fatalf("got %v, want [0x43 0x00]", b2)
	}
}

func TestReadStringUnitsSplitMidChar(t *testing.T) {
	// Unicode string where a 2-byte unit straddles a fragment boundary
	// without a continuation flag.
	c := New([]byte{0x41, 0x00, 0x42}, []byte{0x00})
	isUnicode := true
	if _, err := c.ReadStringUnits(2, &isUnicode); err != ErrStringSplitMidChar {
		t.Fatalf("got %v, want ErrStringSplitMidChar", err)
	}
}

func TestSkipAndOffset(t *testing.T) {
	c := New([]byte{1, 2, 3, 4})
	if err := c.Skip(2); err != nil {
		t.Fatalf("Skip: %v", err)
	}
	if c.Offset() != 2 {
		t.Fatalf("Offset() = %d, want 2", c.Offset())
	}
	if c.Remaining() != 2 {
		t.Fatalf("Remaining() = %d, want 2", c.Remaining())
	}
}

func TestReadFloat64(t *testing.T) {
	// 1.5 in IEEE-754 little-endian.
	c := New([]byte{0, 0, 0, 0, 0, 0, 0xF8, 0x3F})
	v, err := c.ReadFloat64()
	if err != nil {
		t.Fatalf("ReadFloat64: %v", err)
	}
	if v != 1.5 {
		t.Fatalf("got %v, want 1.5", v)
	}
}
