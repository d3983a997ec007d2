// Package strdecode decodes the several BIFF and BIFF12 string shapes used
// throughout workbook, name, and formula records: short/long/no-cch BIFF
// strings with an MBCS-or-UTF-16 flag byte, and BIFF12's always-wide
// UTF-16LE strings with an optional flags byte, rich-text run table, and
// extension block. All variants read through a cursor.Cursor so a
// continuation crossing mid-string is detected rather than silently
// misaligning the byte stream.
package strdecode

import (
	"encoding/binary"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/encoding/charmap"

	"github.com/TsubasaBE/formulacore/cursor"
	"github.com/TsubasaBE/formulacore/errs"
)

// Flag bits for the BIFF string flags byte (MS-XLS 2.5.240 "XLUnicodeRichExtendedString").
const (
	FlagHighByte = 0x01 // 1 = UTF-16LE chars follow; 0 = single-byte MBCS via codepage
	FlagExtSt    = 0x04 // extension block follows the characters
	FlagRichSt   = 0x08 // rich-text run table follows the characters
)

// Decoded is the result of decoding a BIFF or BIFF12 string payload. Rich
// text runs and the extension block are preserved opaquely: this package's
// job is only to produce the plain text and the run boundaries translated
// into character (rune) indices, not to interpret run formatting.
type Decoded struct {
	Text string

	// RichRuns holds the raw 4-byte-per-run table (ich:u16, ifnt:u16),
	// exactly as read. RunCharOffsets holds the same ich values translated
	// from UTF-16 code-unit offsets into rune indices into Text.
	RichRuns       []byte
	RunCharOffsets []int

	// Extension holds the raw extension block bytes (phonetic data, for
	// the shapes that carry one), opaque to this decoder.
	Extension []byte
}

// DefaultCodepage selects the single-byte table used for non-Unicode (MBCS)
// characters. Defaulting to 1252 matches the overwhelming majority of
// BIFF8 producers. It is a package-level variable used by every MBCS
// decode in this package; no decoder takes a per-call codepage.
var DefaultCodepage = charmap.Windows1252

// DecodeShortBIFF reads `cch:u8 flags:u8 chars`.
func DecodeShortBIFF(c *cursor.Cursor) (*Decoded, error) {
	cch, err := c.ReadUint8()
	if err != nil {
		return nil, wrapEOF(c, "short-biff-cch", 1, err)
	}
	return decodeBody(c, int(cch), false, false)
}

// DecodeLongBIFF reads `cch:u16 flags:u8 chars`.
func DecodeLongBIFF(c *cursor.Cursor) (*Decoded, error) {
	cch, err := c.ReadUint16()
	if err != nil {
		return nil, wrapEOF(c, "long-biff-cch", 2, err)
	}
	return decodeBody(c, int(cch), false, false)
}

// DecodeNoCch reads `flags:u8 chars`, with cch supplied externally (the
// common shape for defined-name user names and optional trailer strings).
func DecodeNoCch(c *cursor.Cursor, cch int) (*Decoded, error) {
	return decodeBody(c, cch, false, false)
}

// DecodeBiff12Wide reads `cch:u32 chars_utf16le` with no flags, rich-text,
// or extension shape.
func DecodeBiff12Wide(c *cursor.Cursor) (string, error) {
	cch, err := c.ReadUint32()
	if err != nil {
		return "", wrapEOF(c, "biff12-wide-cch", 4, err)
	}
	isUnicode := true
	text, _, err := decodeChars(c, int(cch), &isUnicode)
	if err != nil {
		return "", err
	}
	return text, nil
}

// DecodeBiff12WideFlags reads `cch:u32 flags:u8|u16 chars_utf16le`.
// wideFlags selects whether the flags field is one or two bytes, matching
// the two BIFF12 producer variants observed for rich/phonetic strings. No
// rich-run table or extension block is read after the characters for this
// shape, so RichRuns, RunCharOffsets and Extension are always empty.
func DecodeBiff12WideFlags(c *cursor.Cursor, wideFlags bool) (*Decoded, error) {
	cch, err := c.ReadUint32()
	if err != nil {
		return nil, wrapEOF(c, "biff12-wide-flags-cch", 4, err)
	}
	return decodeBody(c, int(cch), true, wideFlags)
}

// decodeBody is the shared implementation: read the flags field (one byte
// for BIFF shapes, whose 0x01 bit selects UTF-16 or MBCS; one or two bytes
// per wideFlags for BIFF12 shapes, which are always UTF-16), read cch
// character units, then, for BIFF shapes only, the optional rich-run table
// and extension block.
func decodeBody(c *cursor.Cursor, cch int, isBiff12 bool, wideFlags bool) (*Decoded, error) {
	isUnicode := isBiff12 // BIFF12 "wide" shapes are always UTF-16; BIFF shapes read the flag.
	var flags uint16
	if !isBiff12 {
		b, err := c.ReadUint8()
		if err != nil {
			return nil, wrapEOF(c, "string-flags", 1, err)
		}
		flags = uint16(b)
		isUnicode = flags&FlagHighByte != 0
	} else {
		if wideFlags {
			b, err := c.ReadUint16()
			if err != nil {
				return nil, wrapEOF(c, "string-flags16", 2, err)
			}
			flags = b
		} else {
			b, err := c.ReadUint8()
			if err != nil {
				return nil, wrapEOF(c, "string-flags8", 1, err)
			}
			flags = uint16(b)
		}
	}

	text, unitToRune, err := decodeChars(c, cch, &isUnicode)
	if err != nil {
		return nil, err
	}

	d := &Decoded{Text: text}

	if flags&FlagRichSt != 0 && !isBiff12 {
		runCount, err := c.ReadUint16()
		if err != nil {
			return nil, wrapEOF(c, "rich-run-count", 2, err)
		}
		runBytes, err := c.ReadBytes(int(runCount) * 4)
		if err != nil {
			return nil, wrapEOF(c, "rich-run-table", int(runCount)*4, err)
		}
		d.RichRuns = runBytes
		d.RunCharOffsets = make([]int, runCount)
		for i := 0; i < int(runCount); i++ {
			ich := binary.LittleEndian.Uint16(runBytes[i*4:])
			d.RunCharOffsets[i] = translateOffset(unitToRune, int(ich))
		}
	}
	if flags&FlagExtSt != 0 && !isBiff12 {
		extLen, err := c.ReadUint32()
		if err != nil {
			return nil, wrapEOF(c, "ext-len", 4, err)
		}
		ext, err := c.ReadBytes(int(extLen))
		if err != nil {
			return nil, wrapEOF(c, "ext-block", int(extLen), err)
		}
		d.Extension = ext
	}

	return d, nil
}

// translateOffset maps a UTF-16 code-unit index to a rune index into the
// decoded text, using the unit->rune table built by decodeChars. An
// out-of-range offset (malformed producer) clamps to the text length.
func translateOffset(unitToRune []int, unitIdx int) int {
	if unitIdx < 0 {
		return 0
	}
	if unitIdx >= len(unitToRune) {
		if len(unitToRune) == 0 {
			return 0
		}
		return unitToRune[len(unitToRune)-1]
	}
	return unitToRune[unitIdx]
}

// decodeChars reads cch character units (1 byte MBCS or 2 bytes UTF-16LE,
// per *isUnicode, which may flip mid-string at a continuation boundary)
// and returns the decoded text plus a table mapping each unit index
// consumed to the rune index at which it starts in the decoded text.
//
// Contiguous runs of the same encoding mode are buffered and decoded
// together (UTF-16 via unicode/utf16, MBCS via the configured charmap
// table) rather than rune-by-rune, since UTF-16 surrogate pairs only
// resolve correctly when decoded as a sequence.
func decodeChars(c *cursor.Cursor, cch int, isUnicode *bool) (string, []int, error) {
	var out strings.Builder
	unitToRune := make([]int, 0, cch)

	var pendingUnicodeUnits []uint16
	var pendingMBCSBytes []byte

	flush := func() error {
		if len(pendingUnicodeUnits) > 0 {
			out.WriteString(string(utf16.Decode(pendingUnicodeUnits)))
			pendingUnicodeUnits = pendingUnicodeUnits[:0]
		}
		if len(pendingMBCSBytes) > 0 {
			dec := DefaultCodepage.NewDecoder()
			s, err := dec.String(string(pendingMBCSBytes))
			if err != nil {
				return &errs.InvalidUTF16{Offset: c.Offset()}
			}
			out.WriteString(s)
			pendingMBCSBytes = pendingMBCSBytes[:0]
		}
		return nil
	}

	for i := 0; i < cch; i++ {
		if c.AtFragmentBoundary() {
			if err := flush(); err != nil {
				return "", nil, err
			}
			if err := c.CrossStringContinuation(isUnicode); err != nil {
				return "", nil, err
			}
		}
		unitToRune = append(unitToRune, runeLen(out.String())+len(pendingUnicodeUnits)+len(pendingMBCSBytes))
		unit, err := c.ReadStringUnits(1, isUnicode)
		if err != nil {
			if err == cursor.ErrStringSplitMidChar {
				return "", nil, &errs.StringSplitMidChar{Offset: c.Offset()}
			}
			return "", nil, wrapEOF(c, "string-char", 1, err)
		}
		if *isUnicode {
			pendingUnicodeUnits = append(pendingUnicodeUnits, binary.LittleEndian.Uint16(unit))
		} else {
			pendingMBCSBytes = append(pendingMBCSBytes, unit[0])
		}
	}
	if err := flush(); err != nil {
		return "", nil, err
	}
	unitToRune = append(unitToRune, runeLen(out.String()))
	return out.String(), unitToRune, nil
}

func runeLen(s string) int {
	return len([]rune(s))
}

func wrapEOF(c *cursor.Cursor, token string, needed int, err error) error {
	if err == cursor.ErrUnexpectedEOF {
		return &errs.UnexpectedEOF{Offset: c.Offset(), Token: token, Needed: needed, Remaining: c.Remaining()}
	}
	return err
}
