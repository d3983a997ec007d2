// Package formula implements the rgce/rgcb formula codec: a token-stream
// scanner, a stack-machine text evaluator, a shared-formula materializer,
// and a small expression-tree encoder. Token tags and class bits are
// defined in package biff12; this package only interprets them.
package formula

// Precedence levels, exhaustive and fixed (higher binds tighter).
const (
	PrecAtom       = 100
	PrecRange      = 82
	PrecIntersect  = 81
	PrecUnion      = 80
	PrecUnaryOrAt  = 70
	PrecPostfix    = 60
	PrecPower      = 50
	PrecMulDiv     = 40
	PrecAddSub     = 30
	PrecConcat     = 20
	PrecComparison = 10
)

// Fragment is one stack element produced while walking rgce: rendered
// text, its binding precedence, and two flags that affect how a later
// token folds it in.
type Fragment struct {
	Text          string
	Prec          int
	ContainsUnion bool
	IsMissing     bool
}

// wrap parenthesizes the fragment's text if its precedence is strictly
// less than minPrec and it is not a missing-argument marker — the single
// parenthesization rule used throughout the evaluator.
func wrap(f Fragment, minPrec int) string {
	if f.IsMissing {
		return ""
	}
	if f.Prec < minPrec {
		return "(" + f.Text + ")"
	}
	return f.Text
}
