package formula

import (
	"testing"

	"github.com/TsubasaBE/formulacore/biff12"
	"github.com/TsubasaBE/formulacore/cursor"
)

func TestScanConsumesBinaryOperatorStream(t *testing.T) {
	rgce := []byte{
		biff12.PtgInt, 0x02, 0x00,
		biff12.PtgInt, 0x03, 0x00,
		biff12.PtgAdd,
	}
	c := cursor.New(rgce)
	Scan(c, cursor.New(), DialectBIFF12)
	if c.Remaining() != 0 {
		t.Errorf("expected full stream consumed, %d bytes remain", c.Remaining())
	}
}

func TestScanArrayConstAdvancesRgcb(t *testing.T) {
	rgce := append([]byte{biff12.PtgArrayBase}, make([]byte, 7)...)
	rgcb := []byte{
		0x00, 0x00, 0x00, 0x00, // cols-1:u16, rows-1:u16 => 1x1
		0x01, // number tag
		0, 0, 0, 0, 0, 0, 0, 0, // float64 0.0
	}
	rc := cursor.New(rgce)
	bc := cursor.New(rgcb)
	Scan(rc, bc, DialectBIFF12)
	if rc.Remaining() != 0 {
		t.Errorf("rgce not fully consumed: %d remain", rc.Remaining())
	}
	if bc.Remaining() != 0 {
		t.Errorf("rgcb not fully consumed: %d remain", bc.Remaining())
	}
}

func TestScanStopsOnUnrecognizedTag(t *testing.T) {
	rc := cursor.New([]byte{0xAA})
	if scanOne(rc, cursor.New(), DialectBIFF12, 0xAA) {
		t.Error("expected unrecognized tag to report false")
	}
}

func TestScanMemRecursesIntoNestedExpression(t *testing.T) {
	inner := []byte{biff12.PtgInt, 0x01, 0x00}
	rgce := []byte{byte(len(inner)), 0x00}
	rgce = append(rgce, inner...)
	rc := cursor.New(rgce)
	if !scanMem(rc, cursor.New(), DialectBIFF12) {
		t.Error("expected scanMem to succeed")
	}
	if rc.Remaining() != 0 {
		t.Errorf("expected cce bytes fully consumed, %d remain", rc.Remaining())
	}
}
