package workbook

import "testing"

func TestAddSheetAndSheetName(t *testing.T) {
	c := NewContext()
	c.AddSheet("Sheet1")
	c.AddSheet("Sheet2")

	if got := c.Sheets(); len(got) != 2 || got[0] != "Sheet1" || got[1] != "Sheet2" {
		t.Fatalf("Sheets() = %v", got)
	}
	name, ok := c.SheetName(1)
	if !ok || name != "Sheet2" {
		t.Fatalf("SheetName(1) = (%q, %v), want (Sheet2, true)", name, ok)
	}
	if _, ok := c.SheetName(5); ok {
		t.Fatal("SheetName(5): want ok=false for out-of-range index")
	}
}

func TestExternSheetIndexResolvesSingleSheetRange(t *testing.T) {
	c := NewContext()
	c.AddSheet("Sheet1")
	c.AddSheet("Sheet2")
	c.AddExternSheet(7, 1, 1)

	ixti, ok := c.ExternSheetIndex("Sheet2")
	if !ok || ixti != 7 {
		t.Fatalf("ExternSheetIndex = (%d, %v), want (7, true)", ixti, ok)
	}
	if _, ok := c.ExternSheetIndex("Sheet1"); ok {
		t.Fatal("ExternSheetIndex(Sheet1): want ok=false, no ixti targets it alone")
	}
}

func TestExternSheetTargetExternalWorkbookStripsPath(t *testing.T) {
	c := NewContext()
	c.AddExternSheetExternalWorkbook(3, `C:\reports\Budget.xlsx`, 0, 2)

	book, first, last, ok := c.ExternSheetTarget(3)
	if !ok {
		t.Fatal("ExternSheetTarget: want ok=true")
	}
	if book != "Budget.xlsx" {
		t.Fatalf("workbookName = %q, want %q", book, "Budget.xlsx")
	}
	if first != 0 || last != 2 {
		t.Fatalf("range = [%d,%d], want [0,2]", first, last)
	}
}

func TestExternSheetTargetMissingIxti(t *testing.T) {
	c := NewContext()
	if _, _, _, ok := c.ExternSheetTarget(99); ok {
		t.Fatal("ExternSheetTarget(99): want ok=false for an unregistered ixti")
	}
}

func TestWorkbookNamePreservesIndexOnParseFailure(t *testing.T) {
	c := NewContext()
	c.AddWorkbookName("#NAME?", 1)
	c.AddWorkbookName("TaxRate", 2)

	dn1, ok := c.DefinedName(1)
	if !ok || dn1.DisplayName != "#NAME?" {
		t.Fatalf("DefinedName(1) = %+v, want DisplayName #NAME?", dn1)
	}
	dn2, ok := c.DefinedName(2)
	if !ok || dn2.DisplayName != "TaxRate" || dn2.Scope != ScopeWorkbook {
		t.Fatalf("DefinedName(2) = %+v", dn2)
	}
	if c.DefinedNameCount() != 2 {
		t.Fatalf("DefinedNameCount() = %d, want 2", c.DefinedNameCount())
	}
}

func TestSheetScopedNameDoesNotCollideWithWorkbookScope(t *testing.T) {
	c := NewContext()
	c.AddWorkbookName("Total", 1)
	c.AddSheetName(0, "Total", 2)

	wbIdx, ok := c.NameIndex("Total", -1)
	if !ok || wbIdx != 1 {
		t.Fatalf("NameIndex(workbook) = (%d, %v), want (1, true)", wbIdx, ok)
	}
	sheetIdx, ok := c.NameIndex("Total", 0)
	if !ok || sheetIdx != 2 {
		t.Fatalf("NameIndex(sheet 0) = (%d, %v), want (2, true)", sheetIdx, ok)
	}
}

func TestAddSupBookAndExternName(t *testing.T) {
	c := NewContext()
	idx := c.AddSupBook(`budget.xlsx`)
	if idx != 0 {
		t.Fatalf("AddSupBook index = %d, want 0", idx)
	}
	sb, ok := c.SupBookAt(0)
	if !ok || sb.Kind != SupBookExternalWorkbook || sb.Name != "budget.xlsx" {
		t.Fatalf("SupBookAt(0) = %+v", sb)
	}

	c.AddExternName(0, 3, "MyUDF", true)
	en, ok := c.ExternName(0, 3)
	if !ok || en.Name != "MyUDF" || !en.IsFunction {
		t.Fatalf("ExternName(0,3) = %+v", en)
	}

	c.AddIxtiSupBook(42, 0)
	sbIdx, ok := c.SupBookForIxti(42)
	if !ok || sbIdx != 0 {
		t.Fatalf("SupBookForIxti(42) = (%d, %v), want (0, true)", sbIdx, ok)
	}
}

func TestClassifySupBookName(t *testing.T) {
	cases := []struct {
		name string
		want SupBookKind
	}{
		{"", SupBookInternal},
		{"Analysis.xlsx", SupBookExternalWorkbook},
		{"../reports/Budget.XLSM", SupBookExternalWorkbook},
		{`C:\reports\Budget.xls`, SupBookExternalWorkbook},
		{"MYADDIN", SupBookAddIn},
	}
	for _, c := range cases {
		if got := ClassifySupBookName(c.name); got != c.want {
			t.Errorf("ClassifySupBookName(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}
