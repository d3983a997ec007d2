// Package cursor provides a bounds-checked little-endian byte reader over a
// sequence of fragments — the raw payload of a logical record together with
// any CONTINUE fragments merged onto it by the record iterator (see
// package record). Reads span fragment boundaries transparently, except
// inside a BIFF string payload, where Excel inserts a one-byte continuation
// flag at the start of each continuation fragment; callers decoding a
// string must use ReadStringUnits rather than the generic Read* methods so
// that flag byte is consumed and the is-Unicode flag stays in sync.
package cursor

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrUnexpectedEOF is returned when a read would cross the end of the last
// fragment.
var ErrUnexpectedEOF = errors.New("cursor: unexpected eof")

// ErrStringSplitMidChar is returned when a fragment boundary falls inside a
// single character's byte encoding (a UTF-16 code unit, or an MBCS
// lead/trail byte pair) rather than cleanly between characters.
var ErrStringSplitMidChar = errors.New("cursor: string continuation split mid-character")

// Cursor reads little-endian integers and raw bytes from an ordered sequence
// of fragments, as if they were one contiguous stream.
type Cursor struct {
	frags [][]byte
	fi    int
	pos   int
}

// New creates a Cursor over the given fragments, read in order.
func New(frags ...[]byte) *Cursor {
	return &Cursor{frags: frags}
}

// Offset returns a caller-facing byte offset: the number of bytes already
// consumed by this cursor, summed across all fragments. It is suitable for
// embedding in error messages; it is not a seekable position.
func (c *Cursor) Offset() int {
	n := 0
	for i := 0; i < c.fi && i < len(c.frags); i++ {
		n += len(c.frags[i])
	}
	if c.fi < len(c.frags) {
		n += c.pos
	}
	return n
}

// Remaining returns the total number of unread bytes across all remaining
// fragments.
func (c *Cursor) Remaining() int {
	n := 0
	if c.fi < len(c.frags) {
		n += len(c.frags[c.fi]) - c.pos
	}
	for i := c.fi + 1; i < len(c.frags); i++ {
		n += len(c.frags[i])
	}
	if n < 0 {
		return 0
	}
	return n
}

// curFrag returns the currently active fragment, skipping over fragments
// that have been fully consumed. It returns nil when no fragment remains.
func (c *Cursor) curFrag() []byte {
	for c.fi < len(c.frags) && c.pos >= len(c.frags[c.fi]) {
		c.fi++
		c.pos = 0
	}
	if c.fi >= len(c.frags) {
		return nil
	}
	return c.frags[c.fi]
}

// ReadByte reads and returns a single byte, advancing across a fragment
// boundary transparently when the current fragment is exhausted.
func (c *Cursor) ReadByte() (byte, error) {
	f := c.curFrag()
	if f == nil {
		return 0, ErrUnexpectedEOF
	}
	b := f[c.pos]
	c.pos++
	return b, nil
}

// ReadBytes reads exactly n bytes, spanning fragment boundaries
// transparently (no continuation-flag handling — use ReadStringUnits for
// string payloads).
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrUnexpectedEOF
	}
	out := make([]byte, 0, n)
	for len(out) < n {
		f := c.curFrag()
		if f == nil {
			return nil, ErrUnexpectedEOF
		}
		avail := len(f) - c.pos
		need := n - len(out)
		take := avail
		if take > need {
			take = need
		}
		out = append(out, f[c.pos:c.pos+take]...)
		c.pos += take
	}
	return out, nil
}

// Skip advances the cursor by n bytes without returning them.
func (c *Cursor) Skip(n int) error {
	_, err := c.ReadBytes(n)
	return err
}

// ReadUint8 reads one unsigned byte.
func (c *Cursor) ReadUint8() (uint8, error) {
	return c.ReadByte()
}

// ReadUint16 reads a little-endian uint16.
func (c *Cursor) ReadUint16() (uint16, error) {
	b, err := c.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadInt16 reads a little-endian int16.
func (c *Cursor) ReadInt16() (int16, error) {
	v, err := c.ReadUint16()
	return int16(v), err
}

// ReadUint32 reads a little-endian uint32.
func (c *Cursor) ReadUint32() (uint32, error) {
	b, err := c.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadInt32 reads a little-endian int32.
func (c *Cursor) ReadInt32() (int32, error) {
	v, err := c.ReadUint32()
	return int32(v), err
}

// ReadFloat64 reads a little-endian IEEE-754 double.
func (c *Cursor) ReadFloat64() (float64, error) {
	b, err := c.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// ── string-aware crossing ────────────────────────────────────────────────

// ReadStringUnits reads count "character units" of the given width (1 byte
// for MBCS, 2 bytes for UTF-16LE) and returns the raw bytes. If a fragment
// boundary is reached exactly between characters, the one-byte BIFF
// continuation flag at the start of the next fragment is consumed and
// *isUnicode is updated from its low bit (which may change width mid-read:
// callers that need single-width semantics should re-check *isUnicode
// between calls, as BIFF itself allows a continuation to flip encoding).
// If a boundary falls inside a character's bytes, ErrStringSplitMidChar is
// returned.
func (c *Cursor) ReadStringUnits(count int, isUnicode *bool) ([]byte, error) {
	out := make([]byte, 0, count*2)
	prevFi := c.fi
	for i := 0; i < count; i++ {
		f := c.curFrag()
		if f == nil {
			return nil, ErrUnexpectedEOF
		}
		// A fragment boundary crossed mid-string (i>0) always lands on a
		// continuation flag byte inserted by BIFF8 at the start of the new
		// fragment; consume it before reading the next character. The very
		// first character (i==0) never needs this: the cursor's starting
		// position was reached by ordinary field reads, not a string split.
		if i > 0 && c.fi != prevFi && c.pos == 0 {
			if err := c.CrossStringContinuation(isUnicode); err != nil {
				return nil, err
			}
			f = c.curFrag()
			if f == nil {
				return nil, ErrUnexpectedEOF
			}
		}
		prevFi = c.fi

		width := 1
		if *isUnicode {
			width = 2
		}
		avail := len(f) - c.pos
		switch {
		case avail >= width:
			out = append(out, f[c.pos:c.pos+width]...)
			c.pos += width
		case avail == 0:
			// Exhausted fragment exactly between chars: curFrag() would
			// already have advanced past a zero-length fragment, so avail==0
			// here only happens when frags is fully drained.
			return nil, ErrUnexpectedEOF
		default:
			// Fragment has some, but not enough, bytes for this char: a
			// continuation boundary mid-character. The correct BIFF
			// behaviour is for the *next* fragment to begin with a
			// continuation flag byte and a fresh character, not a
			// continuation of this one — so this situation is always a
			// genuine misalignment, not a legal split.
			return nil, ErrStringSplitMidChar
		}
	}
	return out, nil
}

// CrossStringContinuation is called by a string decoder immediately after
// detecting that the current fragment has been fully consumed but more
// characters remain to be read, and before calling ReadStringUnits again.
// It consumes the one-byte continuation flag from the start of the next
// fragment and updates *isUnicode from its low bit. Every call consumes
// that one byte; ReadStringUnits itself never reads a continuation flag.
func (c *Cursor) CrossStringContinuation(isUnicode *bool) error {
	flag, err := c.ReadByte()
	if err != nil {
		return err
	}
	*isUnicode = flag&0x01 != 0
	return nil
}

// AtFragmentBoundary reports whether the cursor is positioned exactly at the
// start of a not-yet-consumed fragment (i.e. the previous fragment was
// fully drained). It returns false once any byte has been read from the
// resulting fragment.
func (c *Cursor) AtFragmentBoundary() bool {
	for c.fi < len(c.frags) && c.pos >= len(c.frags[c.fi]) {
		c.fi++
		c.pos = 0
	}
	return c.fi < len(c.frags) && c.pos == 0 && c.fi > 0
}
