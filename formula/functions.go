package formula

// FuncDef describes one built-in function id: its display name and, for
// fixed-arity functions (PtgFunc), the argument count to pop (variadic
// PtgFuncVar calls carry their own argc in the token and ignore this
// field).
type FuncDef struct {
	Name  string
	Argc  int
}

// builtinFuncs is a representative slice of Excel's built-in function-id
// table (partial — like the NAME id table in the external-interfaces
// reference, a faithful reimplementation needs the full ~400-entry table;
// this covers the common fixed-arity and variadic functions exercised by
// everyday formulas and this package's own tests).
var builtinFuncs = map[uint16]FuncDef{
	0:   {"COUNT", 0},
	1:   {"IF", 0},
	2:   {"ISNA", 1},
	3:   {"ISERROR", 1},
	4:   {"SUM", 0},
	5:   {"AVERAGE", 0},
	6:   {"MIN", 0},
	7:   {"MAX", 0},
	8:   {"ROW", 0},
	9:   {"COLUMN", 0},
	10:  {"NA", 0},
	11:  {"NPV", 0},
	12:  {"STDEV", 0},
	15:  {"SIN", 1},
	16:  {"COS", 1},
	17:  {"TAN", 1},
	18:  {"ATAN", 1},
	19:  {"PI", 0},
	20:  {"SQRT", 1},
	21:  {"EXP", 1},
	22:  {"LN", 1},
	23:  {"LOG10", 1},
	24:  {"ABS", 1},
	25:  {"INT", 1},
	26:  {"SIGN", 1},
	27:  {"ROUND", 2},
	28:  {"LOOKUP", 0},
	29:  {"INDEX", 0},
	30:  {"REPT", 2},
	31:  {"MID", 3},
	32:  {"LEN", 1},
	33:  {"VALUE", 1},
	34:  {"TRUE", 0},
	35:  {"FALSE", 0},
	36:  {"AND", 0},
	37:  {"OR", 0},
	38:  {"NOT", 1},
	39:  {"MOD", 2},
	40:  {"DCOUNT", 3},
	41:  {"DSUM", 3},
	42:  {"DAVERAGE", 3},
	43:  {"DMIN", 3},
	44:  {"DMAX", 3},
	45:  {"DSTDEV", 3},
	46:  {"VAR", 0},
	47:  {"DVAR", 3},
	48:  {"TEXT", 2},
	49:  {"LINEST", 0},
	56:  {"SLOPE", 2},
	61:  {"MIRR", 3},
	62:  {"IRR", 0},
	63:  {"RAND", 0},
	65:  {"MATCH", 0},
	67:  {"DATE", 3},
	68:  {"TIME", 3},
	69:  {"DAY", 1},
	70:  {"MONTH", 1},
	71:  {"YEAR", 1},
	72:  {"WEEKDAY", 0},
	73:  {"HOUR", 1},
	74:  {"MINUTE", 1},
	75:  {"SECOND", 1},
	76:  {"NOW", 0},
	78:  {"AREAS", 1},
	82:  {"SEARCH", 0},
	97:  {"ATAN2", 2},
	98:  {"ASIN", 1},
	99:  {"ACOS", 1},
	100: {"CHOOSE", 0},
	101: {"HLOOKUP", 0},
	102: {"VLOOKUP", 0},
	105: {"ISREF", 1},
	109: {"LOG", 0},
	111: {"CHAR", 1},
	112: {"LOWER", 1},
	113: {"UPPER", 1},
	114: {"PROPER", 1},
	115: {"LEFT", 0},
	116: {"RIGHT", 0},
	117: {"EXACT", 2},
	118: {"TRIM", 1},
	119: {"REPLACE", 4},
	120: {"SUBSTITUTE", 0},
	121: {"CODE", 1},
	124: {"FIND", 0},
	125: {"CELL", 0},
	126: {"ISERR", 1},
	127: {"ISTEXT", 1},
	128: {"ISNUMBER", 1},
	129: {"ISBLANK", 1},
	130: {"T", 1},
	131: {"N", 1},
	140: {"DATEVALUE", 1},
	141: {"TIMEVALUE", 1},
	148: {"OFFSET", 0},
	162: {"TYPE", 1},
	183: {"SUMPRODUCT", 0},
	184: {"ISNONTEXT", 1},
	189: {"TRANSPOSE", 1},
	194: {"ISLOGICAL", 1},
	197: {"VARP", 0},
	198: {"DVARP", 3},
	199: {"STDEVP", 0},
	200: {"DSTDEVP", 3},
	204: {"TRIMMEAN", 2},
	212: {"COUNTA", 0},
	215: {"PRODUCT", 0},
	216: {"FACT", 1},
	218: {"DPRODUCT", 3},
	219: {"ISNONTEXT2", 1}, // placeholder id slot, unused in practice
	222: {"DCOUNTA", 3},
	227: {"ROUNDUP", 2},
	228: {"ROUNDDOWN", 2},
	229: {"RANK", 0},
	235: {"ADDRESS", 0},
	236: {"DAYS360", 0},
	247: {"SUBTOTAL", 0},
	252: {"IFERROR", 2},
	255: {"USER_DEFINED", 0}, // sentinel handled explicitly in the decoder
	269: {"LARGE", 2},
	270: {"SMALL", 2},
	300: {"COUNTIF", 2},
	313: {"COUNTBLANK", 1},
	335: {"IFNA", 2},
	336: {"SUMIFS", 0},
	337: {"AVERAGEIF", 0},
	338: {"AVERAGEIFS", 0},
}

// sentinelUserDefinedFuncID is the PtgFuncVar function id reserved for a
// user-defined function call: the name comes from a preceding PtgNameX.
const sentinelUserDefinedFuncID = 0x00FF

func lookupFunc(id uint16) (FuncDef, bool) {
	fd, ok := builtinFuncs[id]
	return fd, ok
}
