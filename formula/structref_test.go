package formula

import (
	"encoding/binary"
	"testing"
)

func canonicalPayload(tableID uint32, flags, colFirst, colLast uint16) [12]byte {
	var p [12]byte
	binary.LittleEndian.PutUint16(p[0:2], uint16(tableID))
	binary.LittleEndian.PutUint16(p[2:4], flags)
	binary.LittleEndian.PutUint16(p[4:6], colFirst)
	binary.LittleEndian.PutUint16(p[6:8], colLast)
	return p
}

func TestDecodeStructRefCanonicalAllColumns(t *testing.T) {
	p := canonicalPayload(3, StructRefAll, structRefAllColsSentinel, structRefAllColsSentinel)
	c := decodeStructRef(p)
	if c.TableID != 3 || c.Flags != StructRefAll {
		t.Fatalf("got %+v", c)
	}
	got := renderStructRef(c, "Orders", structRefColName)
	if got != "Orders[#All]" {
		t.Errorf("got %q", got)
	}
}

func TestDecodeStructRefDataColumnRange(t *testing.T) {
	p := canonicalPayload(1, StructRefData, 2, 4)
	c := decodeStructRef(p)
	got := renderStructRef(c, "T1", structRefColName)
	if got != "T1[#Data,Column2:Column4]" {
		t.Errorf("got %q", got)
	}
}

func TestRenderStructRefThisRow(t *testing.T) {
	c := structRefCandidate{TableID: 1, Flags: StructRefThisRow, ColFirst: 5, ColLast: 5}
	got := renderStructRef(c, "T1", structRefColName)
	if got != "[@Column5]" {
		t.Errorf("got %q", got)
	}
}

func TestScoreRewardsValidFlagsAndOrderedCols(t *testing.T) {
	good := structRefCandidate{TableID: 1, Flags: StructRefData, ColFirst: 0, ColLast: 3}
	bad := structRefCandidate{TableID: 0, Flags: 0xFFFF, ColFirst: 9, ColLast: 2}
	if score(good) <= score(bad) {
		t.Errorf("expected good candidate to score higher: good=%d bad=%d", score(good), score(bad))
	}
}
