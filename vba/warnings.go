package vba

import "fmt"

// maxWarnings bounds warning growth against a dir stream containing an
// unbounded number of malformed records.
const maxWarnings = 200

// Warnings accumulates non-fatal anomalies encountered while building a
// content-hash transcript: malformed REFERENCEPROJECT, REFERENCECONTROL,
// REFERENCEORIGINAL or PROJECTVERSION records, and modules whose stream is
// unavailable or fails to decompress. Unrecognized dir-stream records are
// skipped without a warning.
type Warnings struct {
	messages []string
}

func (w *Warnings) warnf(format string, args ...any) {
	if len(w.messages) < maxWarnings {
		w.messages = append(w.messages, fmt.Sprintf(format, args...))
		return
	}
	if len(w.messages) == maxWarnings {
		w.messages = append(w.messages, "additional vba transcript warnings suppressed")
	}
}

// Messages returns the accumulated warnings in the order they were
// recorded.
func (w *Warnings) Messages() []string {
	return w.messages
}
