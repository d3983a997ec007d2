package record

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/TsubasaBE/formulacore/biff12"
)

// Biff8Record is a logical BIFF8 record: a target record id together with
// its payload split into fragments — the record's own payload plus any
// CONTINUE records merged onto it. A fragment-aware cursor (package
// cursor) reads across the fragment boundaries directly; nothing in this
// package concatenates them into one byte slice, since doing so would lose
// the continuation-flag byte BIFF inserts at each boundary inside a
// string payload.
type Biff8Record struct {
	ID        uint16
	Fragments [][]byte
}

// Biff8Reader iterates logical BIFF8 records from an io.Reader, merging
// CONTINUE (0x003C) records onto a preceding whitelisted target record.
type Biff8Reader struct {
	r            io.Reader
	isTarget     func(id uint16) bool
	pendingID    uint16
	pendingFrags [][]byte
	havePending  bool
	done         bool
	sawFirst     bool
}

// NewBiff8Reader wraps r for BIFF8 logical-record iteration. isTarget
// reports whether a given record id is allowed to absorb following
// CONTINUE records; a nil isTarget treats every record as a valid
// continuation target (the common case for NAME/formula scanning, where
// the caller doesn't have a narrower whitelist).
func NewBiff8Reader(r io.Reader, isTarget func(id uint16) bool) *Biff8Reader {
	if isTarget == nil {
		isTarget = func(uint16) bool { return true }
	}
	return &Biff8Reader{r: r, isTarget: isTarget}
}

// readRaw reads one physical (id, length, payload) tuple.
func (r *Biff8Reader) readRaw() (id uint16, payload []byte, err error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r.r, hdr[:]); err != nil {
		if err == io.EOF {
			return 0, nil, io.EOF
		}
		return 0, nil, fmt.Errorf("record: biff8: reading header: %w", err)
	}
	id = binary.LittleEndian.Uint16(hdr[0:2])
	length := binary.LittleEndian.Uint16(hdr[2:4])
	if length == 0 {
		return id, nil, nil
	}
	payload, err = readPayloadChunked(r.r, int(length))
	if err != nil {
		return 0, nil, fmt.Errorf("record: biff8: reading %d payload bytes for ID 0x%X: %w", length, id, err)
	}
	return id, payload, nil
}

// Next returns the next logical record, with any following CONTINUE
// records already merged in as additional fragments. Iteration stops
// (returning io.EOF) at an EOF-id record, at physical end of stream, or
// at a BOF-shaped record after the first record, which begins a new
// substream; that BOF record is not returned, and every later call also
// returns io.EOF.
func (r *Biff8Reader) Next() (*Biff8Record, error) {
	if r.done {
		return nil, io.EOF
	}

	var id uint16
	var frags [][]byte

	if r.havePending {
		id = r.pendingID
		frags = r.pendingFrags
		r.havePending = false
		r.pendingFrags = nil
	} else {
		pid, payload, err := r.readRaw()
		if err != nil {
			if err == io.EOF {
				r.done = true
				return nil, io.EOF
			}
			return nil, err
		}
		id = pid
		if payload != nil {
			frags = [][]byte{payload}
		} else {
			frags = [][]byte{{}}
		}
	}

	if id == biff12.Biff8Eof {
		r.done = true
		return nil, io.EOF
	}

	// A BOF after the very first record starts a new substream; iteration
	// ends here rather than treating it as part of the record we're
	// currently assembling.
	if r.sawFirst && id == biff12.Biff8Bof {
		r.pendingID = id
		r.pendingFrags = frags
		r.havePending = true
		r.done = true
		return nil, io.EOF
	}
	r.sawFirst = true

	if !r.isTarget(id) {
		return &Biff8Record{ID: id, Fragments: frags}, nil
	}

	for {
		cid, payload, err := r.peekContinue()
		if err != nil {
			return nil, err
		}
		if !cid {
			break
		}
		if payload != nil {
			frags = append(frags, payload)
		} else {
			frags = append(frags, []byte{})
		}
	}

	return &Biff8Record{ID: id, Fragments: frags}, nil
}

// peekContinue reads one physical record; if it is a CONTINUE record, its
// payload is returned with ok=true. If it is anything else (including
// EOF), it is buffered as the next pending record and ok=false is
// returned.
func (r *Biff8Reader) peekContinue() (ok bool, payload []byte, err error) {
	id, payload, err := r.readRaw()
	if err != nil {
		if err == io.EOF {
			r.done = true
			return false, nil, nil
		}
		return false, nil, err
	}
	if id == uint16(biff12.Continue) {
		return true, payload, nil
	}
	r.pendingID = id
	if payload != nil {
		r.pendingFrags = [][]byte{payload}
	} else {
		r.pendingFrags = [][]byte{{}}
	}
	r.havePending = true
	return false, nil, nil
}
