package formula

// errorLiteralText maps a BIFF error-literal byte to its canonical Excel
// spelling.
var errorLiteralText = map[byte]string{
	0x00: "#NULL!",
	0x07: "#DIV/0!",
	0x0F: "#VALUE!",
	0x17: "#REF!",
	0x1D: "#NAME?",
	0x24: "#NUM!",
	0x2A: "#N/A",
	0x2B: "#GETTING_DATA",
	0x2C: "#SPILL!",
	0x2D: "#CALC!",
	0x2E: "#FIELD!",
	0x2F: "#CONNECT!",
	0x30: "#BLOCKED!",
	0x31: "#UNKNOWN!",
}

func errorLiteral(b byte) string {
	if s, ok := errorLiteralText[b]; ok {
		return s
	}
	return "#UNKNOWN!"
}

// errorLiteralByte is the reverse mapping, used by the encoder.
var errorLiteralByte = func() map[string]byte {
	m := make(map[string]byte, len(errorLiteralText))
	for b, s := range errorLiteralText {
		m[s] = b
	}
	return m
}()
