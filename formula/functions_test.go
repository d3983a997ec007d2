package formula

import "testing"

func TestLookupFuncKnownIDs(t *testing.T) {
	fd, ok := lookupFunc(0) // COUNT
	if !ok || fd.Name != "COUNT" {
		t.Fatalf("got %+v, ok=%v", fd, ok)
	}
	fd, ok = lookupFunc(1) // IF
	if !ok || fd.Name != "IF" {
		t.Fatalf("got %+v, ok=%v", fd, ok)
	}
}

func TestLookupFuncUnknownID(t *testing.T) {
	if _, ok := lookupFunc(0xBEEF); ok {
		t.Error("expected unknown function id to miss")
	}
}

func TestBuiltinFuncsByNameReverseMapping(t *testing.T) {
	id, ok := builtinFuncsByName["SUM"]
	if !ok {
		t.Fatal("SUM not found in reverse map")
	}
	fd, ok := lookupFunc(id)
	if !ok || fd.Name != "SUM" {
		t.Errorf("round trip failed: %+v", fd)
	}
}
