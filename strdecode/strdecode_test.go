package strdecode

import (
	"testing"

	"github.com/TsubasaBE/formulacore/cursor"
)

func encodeShortBIFFUnicode(s string) []byte {
	u := []uint16{}
	for _, r := range s {
		u = append(u, uint16(r))
	}
	buf := []byte{byte(len(u)), 0x01}
	for _, unit := range u {
		buf = append(buf, byte(unit), byte(unit>>8))
	}
	return buf
}

func TestDecodeShortBIFFUnicode(t *testing.T) {
	buf := encodeShortBIFFUnicode("Hi")
	c := cursor.New(buf)
	d, err := DecodeShortBIFF(c)
	if err != nil {
		t.Fatalf("DecodeShortBIFF: %v", err)
	}
	if d.Text != "Hi" {
		t.Fatalf("got %q, want Hi", d.Text)
	}
}

func TestDecodeShortBIFFMBCS(t *testing.T) {
	buf := []byte{3, 0x00, 'a', 'b', 'c'}
	c := cursor.New(buf)
	d, err := DecodeShortBIFF(c)
	if err != nil {
		t.Fatalf("DecodeShortBIFF: %v", err)
	}
	if d.Text != "abc" {
		t.Fatalf("got %q, want abc", d.Text)
	}
}

func TestDecodeBiff12Wide(t *testing.T) {
	s := "formula"
	buf := []byte{byte(len(s)), 0, 0, 0}
	for _, r := range s {
		buf = append(buf, byte(r), 0)
	}
	c := cursor.New(buf)
	got, err := DecodeBiff12Wide(c)
	if err != nil {
		t.Fatalf("DecodeBiff12Wide: %v", err)
	}
	if got != s {
		t.Fatalf("got %q, want %q", got, s)
	}
}

func TestDecodeNoCchContinuationAcrossFragments(t *testing.T) {
	// flags byte (unicode), 'A', 'B' in frag1; continuation flag (still
	// unicode) + 'C' split across frag2.
	frag1 := []byte{0x01, 'A', 0x00, 'B', 0x00}
	frag2 := []byte{0x01, 'C', 0x00}
	c := cursor.New(frag1, frag2)
	d, err := DecodeNoCch(c, 3)
	if err != nil {
		t.Fatalf("DecodeNoCch: %v", err)
	}
	if d.Text != "ABC" {
		t.Fatalf("got %q, want ABC", d.Text)
	}
}

func TestDecodeShortBIFFRichText(t *testing.T) {
	// "Hi" unicode + rich flag, one run at ich=1.
	buf := []byte{2, 0x09 /* unicode | rich */}
	buf = append(buf, 'H', 0x00, 'i', 0x00)
	buf = append(buf, 1, 0) // run count = 1
	buf = append(buf, 1, 0, 5, 0) // ich=1, ifnt=5
	c := cursor.New(buf)
	d, err := DecodeShortBIFF(c)
	if err != nil {
		t.Fatalf("DecodeShortBIFF: %v", err)
	}
	if d.Text != "Hi" {
		t.Fatalf("got %q, want Hi", d.Text)
	}
	if len(d.RunCharOffsets) != 1 || d.RunCharOffsets[0] != 1 {
		t.Fatalf("got run offsets %v, want [1]", d.RunCharOffsets)
	}
}
