// Package workbook holds the Workbook Context: the sheet list, the
// ixti -> sheet-range table built from ExternSheet/SupBook records, the
// workbook- and sheet-scoped defined-name index, and the external-name
// table. It is constructed once per workbook (by feeding it SHEET,
// EXTERNSHEET, SUPBOOK, and NAME records as they are scanned) and then
// referenced read-only by the formula decoder/encoder — nothing in this
// package mutates it during a decode.
package workbook

import "strings"

// Scope distinguishes a workbook-global defined name from one scoped to a
// single sheet.
type Scope int

const (
	ScopeWorkbook Scope = iota
	ScopeSheet
)

// DefinedName is one entry in the 1-based defined-name index. A name whose
// NAME record failed to parse is still present at its index, with
// DisplayName "#NAME?" (see AddWorkbookName/AddSheetName).
type DefinedName struct {
	DisplayName string
	Scope       Scope
	SheetIndex  int // valid only when Scope == ScopeSheet
}

// SupBookKind classifies an external-reference (SupBook) entry using the
// path/extension heuristic spec'd for this table: presence of a path
// separator or a recognized workbook/add-in extension means "external
// workbook"; a bare name with none of those means an add-in; otherwise the
// entry refers back into the current workbook.
type SupBookKind int

const (
	SupBookInternal SupBookKind = iota
	SupBookAddIn
	SupBookExternalWorkbook
)

// SupBook is one external-reference table entry.
type SupBook struct {
	Kind SupBookKind
	Name string // display name (path/filename as recorded), empty for Internal
}

// ExternTarget is the resolved target of a 16-bit ixti: a contiguous sheet
// range, optionally qualified by an external workbook's display name.
type ExternTarget struct {
	WorkbookName string // empty for an internal (same-workbook) reference
	SheetFirst   int
	SheetLast    int
}

// ExternName is one SupBook-scoped external name (a name or a UDF exposed
// by an external workbook or add-in).
type ExternName struct {
	Name       string
	IsFunction bool
}

type externNameKey struct {
	SupBookIndex    int
	ExternNameIndex int
}

// Context is the read-only-after-construction workbook context consumed
// by the formula decoder/encoder and the defined-name parser.
type Context struct {
	sheets []string

	externSheetTable map[uint16]ExternTarget

	supbooks     []SupBook
	ixtiToSupBook map[uint16]int
	externNames  map[externNameKey]ExternName

	definedNames    []DefinedName // index 0 unused; 1-based access via DefinedName/AddWorkbookName/AddSheetName
	nameIndexByName map[string]uint32
}

// NewContext returns an empty Context ready for registration calls.
func NewContext() *Context {
	return &Context{
		externSheetTable: make(map[uint16]ExternTarget),
		ixtiToSupBook:    make(map[uint16]int),
		externNames:      make(map[externNameKey]ExternName),
		definedNames:     make([]DefinedName, 1), // index 0 is the unused sentinel slot
		nameIndexByName:  make(map[string]uint32),
	}
}

// ── registration ──────────────────────────────────────────────────────────

// AddSheet appends a sheet to the ordered sheet list (0-based index =
// position appended).
func (c *Context) AddSheet(name string) {
	c.sheets = append(c.sheets, name)
}

// AddExternSheet registers an internal 3D-reference target: ixti maps to
// the contiguous sheet range [firstSheet, lastSheet] in the current
// workbook's own sheet list.
func (c *Context) AddExternSheet(ixti uint16, firstSheet, lastSheet int) {
	c.externSheetTable[ixti] = ExternTarget{SheetFirst: firstSheet, SheetLast: lastSheet}
}

// AddExternSheetExternalWorkbook registers an external 3D-reference
// target: ixti maps to a sheet range inside another workbook, identified
// by its display name (the filename stripped of any absolute path, per
// the data-model invariant for ExternTarget.WorkbookName).
func (c *Context) AddExternSheetExternalWorkbook(ixti uint16, book string, firstSheet, lastSheet int) {
	c.externSheetTable[ixti] = ExternTarget{
		WorkbookName: displayName(book),
		SheetFirst:   firstSheet,
		SheetLast:    lastSheet,
	}
}

// AddWorkbookName registers (or overwrites, to fill a placeholder) the
// workbook-scoped defined name at the given 1-based index. Callers must
// call this (even with a "#NAME?" placeholder) for every NAME record
// encountered, in order, so that index assignment stays dense regardless
// of parse success — see the Defined-Name Record Parser's index
// preservation invariant.
func (c *Context) AddWorkbookName(name string, index int) {
	c.setDefinedName(index, DefinedName{DisplayName: name, Scope: ScopeWorkbook})
}

// AddSheetName registers a sheet-scoped defined name at the given 1-based
// index.
func (c *Context) AddSheetName(sheet int, name string, index int) {
	c.setDefinedName(index, DefinedName{DisplayName: name, Scope: ScopeSheet, SheetIndex: sheet})
}

func (c *Context) setDefinedName(index int, dn DefinedName) {
	for len(c.definedNames) <= index {
		c.definedNames = append(c.definedNames, DefinedName{DisplayName: "#NAME?", Scope: ScopeWorkbook})
	}
	c.definedNames[index] = dn
	c.nameIndexByName[nameKey(dn)] = uint32(index)
}

// AddSupBook appends one external-reference table entry and returns its
// 0-based index.
func (c *Context) AddSupBook(name string) int {
	c.supbooks = append(c.supbooks, SupBook{Kind: ClassifySupBookName(name), Name: name})
	return len(c.supbooks) - 1
}

// AddExternName registers one SupBook-scoped external name.
func (c *Context) AddExternName(supBookIndex, externNameIndex int, name string, isFunction bool) {
	c.externNames[externNameKey{supBookIndex, externNameIndex}] = ExternName{Name: name, IsFunction: isFunction}
}

// AddIxtiSupBook records which SupBook table entry a given ixti's
// PtgNameX references belong to.
func (c *Context) AddIxtiSupBook(ixti uint16, supBookIndex int) {
	c.ixtiToSupBook[ixti] = supBookIndex
}

// SupBookForIxti resolves an ixti to its SupBook table index.
func (c *Context) SupBookForIxti(ixti uint16) (int, bool) {
	i, ok := c.ixtiToSupBook[ixti]
	return i, ok
}

// ── lookup ────────────────────────────────────────────────────────────────

// Sheets returns the ordered sheet-name list.
func (c *Context) Sheets() []string { return c.sheets }

// SheetName returns the 0-based sheet's display name.
func (c *Context) SheetName(i int) (string, bool) {
	if i < 0 || i >= len(c.sheets) {
		return "", false
	}
	return c.sheets[i], true
}

// ExternSheetIndex returns the ixti whose internal target is exactly the
// single sheet named sheetName, if any is registered.
func (c *Context) ExternSheetIndex(sheetName string) (uint16, bool) {
	for i, s := range c.sheets {
		if s == sheetName {
			for ixti, t := range c.externSheetTable {
				if t.WorkbookName == "" && t.SheetFirst == i && t.SheetLast == i {
					return ixti, true
				}
			}
		}
	}
	return 0, false
}

// ExternSheetTarget resolves an ixti to its sheet range and (if external)
// workbook display name.
func (c *Context) ExternSheetTarget(ixti uint16) (workbookName string, first, last int, ok bool) {
	t, ok := c.externSheetTable[ixti]
	if !ok {
		return "", 0, 0, false
	}
	return t.WorkbookName, t.SheetFirst, t.SheetLast, true
}

// SupBookAt returns the supbook table entry at the given 0-based index.
func (c *Context) SupBookAt(i int) (SupBook, bool) {
	if i < 0 || i >= len(c.supbooks) {
		return SupBook{}, false
	}
	return c.supbooks[i], true
}

// ExternName resolves (supbook_index, extern_name_index) to its
// registered name and function flag.
func (c *Context) ExternName(supBookIndex, externNameIndex int) (ExternName, bool) {
	en, ok := c.externNames[externNameKey{supBookIndex, externNameIndex}]
	return en, ok
}

// NameIndex looks up the 1-based index of a defined name by display name
// and scope (sheetScope < 0 means workbook scope).
func (c *Context) NameIndex(name string, sheetScope int) (uint32, bool) {
	key := name
	if sheetScope >= 0 {
		key = sheetKeyPrefix(sheetScope) + name
	}
	idx, ok := c.nameIndexByName[key]
	return idx, ok
}

// DefinedName returns the defined name registered at the given 1-based
// index.
func (c *Context) DefinedName(index int) (DefinedName, bool) {
	if index <= 0 || index >= len(c.definedNames) {
		return DefinedName{}, false
	}
	return c.definedNames[index], true
}

// DefinedNameCount returns the number of defined-name slots assigned so
// far (index 0 excluded).
func (c *Context) DefinedNameCount() int {
	if len(c.definedNames) == 0 {
		return 0
	}
	return len(c.definedNames) - 1
}

func nameKey(dn DefinedName) string {
	if dn.Scope == ScopeSheet {
		return sheetKeyPrefix(dn.SheetIndex) + dn.DisplayName
	}
	return dn.DisplayName
}

func sheetKeyPrefix(sheetIndex int) string {
	// A NUL-prefixed key can never collide with a workbook-scope display
	// name, so distinct sheets never collide with each other or with the
	// workbook scope.
	return "\x00" + string(rune(sheetIndex)) + "\x00"
}

// ── SupBook classification ──────────────────────────────────────────────

// recognizedWorkbookExtensions are the file extensions that mark a
// SupBook name as referring to an external workbook rather than an add-in
// reference.
var recognizedWorkbookExtensions = []string{
	".xls", ".xlsx", ".xlsm", ".xlsb", ".xlt", ".xltx", ".xltm", ".xla", ".xlam", ".xll",
}

// ClassifySupBookName applies the path/extension heuristic: a name
// containing a path separator, or ending in a recognized workbook
// extension, is an external workbook; a bare add-in name (no path, no
// recognized extension) is AddIn; an empty name is Internal.
func ClassifySupBookName(name string) SupBookKind {
	if name == "" {
		return SupBookInternal
	}
	if strings.ContainsAny(name, "/\\") {
		return SupBookExternalWorkbook
	}
	lower := strings.ToLower(name)
	for _, ext := range recognizedWorkbookExtensions {
		if strings.HasSuffix(lower, ext) {
			return SupBookExternalWorkbook
		}
	}
	return SupBookAddIn
}

// displayName strips any absolute or drive-qualified path down to the
// bare filename, per the ExternTarget.WorkbookName invariant.
func displayName(path string) string {
	if i := strings.LastIndexAny(path, "/\\"); i >= 0 {
		return path[i+1:]
	}
	return path
}
