package biff12

// Ptg tags identify the 1-byte token family at the start of every rgce
// token. The low 5 bits select the operation; for operand families the
// high 2 bits of the byte (0x20 and 0x40) select the reference class
// (reference / value / array) per MS-XLSB 2.5.198 ("PtgDataType").
//
// Base (class-less or "reference class") forms are listed here; the
// value-class and array-class variants are this value plus 0x20 or
// 0x40 respectively, wherever the token family carries a class at all.
const (
	PtgExp    = 0x01
	PtgTbl    = 0x02
	PtgAdd    = 0x03
	PtgSub    = 0x04
	PtgMul    = 0x05
	PtgDiv    = 0x06
	PtgPower  = 0x07
	PtgConcat = 0x08
	PtgLT     = 0x09
	PtgLE     = 0x0A
	PtgEQ     = 0x0B
	PtgGT     = 0x0C
	PtgGE     = 0x0D
	PtgNE     = 0x0E
	PtgIsect  = 0x0F
	PtgUnion  = 0x10
	PtgRange  = 0x11
	PtgUplus  = 0x12
	PtgUminus = 0x13
	PtgPercent = 0x14
	PtgParen  = 0x15
	PtgMissArg = 0x16
	PtgStr    = 0x17

	// PtgExtend carries a subtype byte (etpg) identifying a newer token
	// not representable in the classic ptg space; only etpg=0x19
	// (PtgList / structured reference) is recognized.
	PtgExtend       = 0x18
	PtgExtendV      = 0x38
	PtgExtendA      = 0x58
	EtpgList        = 0x19

	PtgAttr = 0x19
	PtgErr  = 0x1C
	PtgBool = 0x1D
	PtgInt  = 0x1E
	PtgNum  = 0x1F

	PtgArrayBase  = 0x20
	PtgFuncBase   = 0x21
	PtgFuncVarBase = 0x22
	PtgNameBase   = 0x23
	PtgRefBase    = 0x24
	PtgAreaBase   = 0x25

	// PtgMem* subtypes. All share the [cce:u16][cce bytes...] shape.
	PtgMemAreaBase   = 0x26
	PtgMemErrBase    = 0x27
	PtgMemNoMemBase  = 0x28 // PtgMemNoMem (no direct Excel surface, kept for completeness)
	PtgMemFuncBase   = 0x29
	PtgMemAreaNBase  = 0x2E
	PtgMemFuncNBase  = 0x2E // alias retained for documentation; MemAreaN/MemFuncN share 0x2E in some producers

	PtgRefErrBase  = 0x2A
	PtgAreaErrBase = 0x2B
	PtgRefNBase    = 0x2C
	PtgAreaNBase   = 0x2D

	PtgSpill = 0x2F // postfix "#" (spill range)

	PtgNameXBase      = 0x39
	PtgRef3dBase      = 0x3A
	PtgArea3dBase     = 0x3B
	PtgRefErr3dBase   = 0x3C
	PtgAreaErr3dBase  = 0x3D
	PtgRefN3dBase     = 0x3E
	PtgAreaN3dBase    = 0x3F

	// Class offsets, added to a *Base constant (the reference-class tag) to
	// select the value-class or array-class variant; ClassMask covers the
	// class bits of a tag.
	ClassValue = 0x20
	ClassArray = 0x40
	ClassMask  = 0x60
	TagMask    = 0x1F
)

// PtgAttr grbit flags (MS-XLSB 2.5.198.4 / BIFF8 PtgAttr).
const (
	AttrSemi      = 0x01
	AttrIf        = 0x02
	AttrChoose    = 0x04
	AttrGoto      = 0x08
	AttrSum       = 0x10
	AttrBaxcel    = 0x20
	AttrSpace     = 0x40
	AttrIfError   = 0x80
)

// Column field packing bits for 2D references (row/col pair records).
const (
	ColMask     = 0x3FFF
	ColRowRel   = 0x4000
	ColColRel   = 0x8000
)

// BIFF8 CONTINUE record id, used by the record iterator (§4.B) to merge
// continuation fragments onto a whitelisted preceding record.
const Continue = 0x003C

// Biff8Name is the BIFF8 (not BIFF12) record id for a workbook-global
// defined name (MS-XLS 2.4.150 "Name"). BIFF12's DefinedName constant in
// records.go (0x0027) is the equivalent BIFF12 id.
const Biff8Name = 0x0018

// Biff8ExternSheet / Biff8SupBook are the BIFF8 record ids for the
// external-reference tables the workbook context (§4.H) consumes.
const (
	Biff8SupBook     = 0x01AE
	Biff8ExternSheet = 0x0017
	Biff8ExternName  = 0x0023
	Biff8Bof         = 0x0809
	Biff8Eof         = 0x000A
)

// Biff8SharedFmla is the BIFF8 record id for a shared-formula definition
// (MS-XLS 2.4.258 "Shrfmla"); BIFF12's equivalent is BrtShrFmla (0x04BC).
const (
	Biff8SharedFmla = 0x04BC
)
