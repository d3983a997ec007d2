// Package errs defines the structured error taxonomy shared by every
// decoder in this module (formula tokens, defined names, VBA transcripts,
// Agile packages). Each failure class is its own exported struct
// satisfying error, so callers can use errors.As to branch on kind the way
// the original Rust core let callers match on its enum variants.
package errs

import "fmt"

// UnexpectedEOF reports a read that would cross the end of the last
// fragment.
type UnexpectedEOF struct {
	Offset  int
	Token   string
	Needed  int
	Remaining int
}

func (e *UnexpectedEOF) Error() string {
	return fmt.Sprintf("unexpected_eof at offset %d (token %s): needed %d bytes, %d remaining",
		e.Offset, e.Token, e.Needed, e.Remaining)
}

// UnsupportedToken reports an rgce tag this decoder does not recognize.
type UnsupportedToken struct {
	Offset int
	Tag    byte
}

func (e *UnsupportedToken) Error() string {
	return fmt.Sprintf("unsupported_token 0x%02X at offset %d", e.Tag, e.Offset)
}

// InvalidUTF16 reports a malformed UTF-16 code unit sequence.
type InvalidUTF16 struct {
	Offset int
}

func (e *InvalidUTF16) Error() string {
	return fmt.Sprintf("invalid_utf16 at offset %d", e.Offset)
}

// InvalidArrayConstant reports a malformed rgcb array-constant element.
type InvalidArrayConstant struct {
	Offset int
	Reason string
}

func (e *InvalidArrayConstant) Error() string {
	return fmt.Sprintf("invalid_array_constant at offset %d: %s", e.Offset, e.Reason)
}

// StackUnderflow reports an operator or function popping more fragments
// than the evaluator stack holds.
type StackUnderflow struct {
	Offset int
	Tag    byte
}

func (e *StackUnderflow) Error() string {
	return fmt.Sprintf("stack_underflow at offset %d (tag 0x%02X)", e.Offset, e.Tag)
}

// StackNotSingular reports a decode that ended with zero or more than one
// fragment left on the stack.
type StackNotSingular struct {
	Offset int
	Tag    byte
	Size   int
}

func (e *StackNotSingular) Error() string {
	return fmt.Sprintf("stack_not_singular at offset %d (last tag 0x%02X): %d fragments remain", e.Offset, e.Tag, e.Size)
}

// UnknownFunctionID reports a PtgFunc/PtgFuncVar whose iftab has no entry
// in the built-in function table.
type UnknownFunctionID struct {
	Offset int
	Tag    byte
	ID     uint16
}

func (e *UnknownFunctionID) Error() string {
	return fmt.Sprintf("unknown_function_id %d at offset %d (tag 0x%02X)", e.ID, e.Offset, e.Tag)
}

// OutputTooLarge reports an emitted fragment exceeding the decoder's output
// clamp.
type OutputTooLarge struct {
	Offset int
	Tag    byte
	Max    int
}

func (e *OutputTooLarge) Error() string {
	return fmt.Sprintf("output_too_large at offset %d (tag 0x%02X): exceeds %d characters", e.Offset, e.Tag, e.Max)
}

// StringSplitMidChar reports a fragment boundary that falls inside a
// single character's byte encoding.
type StringSplitMidChar struct {
	Offset int
}

func (e *StringSplitMidChar) Error() string {
	return fmt.Sprintf("string continuation split mid-character at offset %d", e.Offset)
}

// ── encoder domain ──────────────────────────────────────────────────────

// UnsupportedExpression reports an Expr node kind the encoder cannot emit.
type UnsupportedExpression struct {
	Kind string
}

func (e *UnsupportedExpression) Error() string {
	return fmt.Sprintf("unsupported_expression: %s", e.Kind)
}

// InvalidArgCount reports a built-in function call encoded with an arg
// count outside the function's declared arity.
type InvalidArgCount struct {
	Function string
	Got      int
}

func (e *InvalidArgCount) Error() string {
	return fmt.Sprintf("invalid_arg_count for %s: got %d", e.Function, e.Got)
}

// UnknownFunction reports a call-by-name the encoder's built-in table does
// not recognize as either built-in or eligible for the user-defined path.
type UnknownFunction struct {
	Name string
}

func (e *UnknownFunction) Error() string {
	return fmt.Sprintf("unknown_function: %s", e.Name)
}

// InvalidNumber reports a float literal the encoder cannot round-trip
// (NaN/Inf have no rgce representation).
type InvalidNumber struct {
	Value float64
}

func (e *InvalidNumber) Error() string {
	return fmt.Sprintf("invalid_number: %v", e.Value)
}

// InvalidErrorLiteral reports an error-literal spelling the encoder's
// table does not recognize.
type InvalidErrorLiteral struct {
	Literal string
}

func (e *InvalidErrorLiteral) Error() string {
	return fmt.Sprintf("invalid_error_literal: %s", e.Literal)
}

// ── agile domain ────────────────────────────────────────────────────────

// WrongPassword reports a failed Agile password verification.
type WrongPassword struct{}

func (e *WrongPassword) Error() string { return "wrong_password" }

// IntegrityMismatch reports a failed HMAC integrity check.
type IntegrityMismatch struct{}

func (e *IntegrityMismatch) Error() string { return "integrity_mismatch" }

// UnsupportedEncryptionVersion reports an EncryptionInfo major/minor pair
// other than (4, 4).
type UnsupportedEncryptionVersion struct {
	Major, Minor uint16
}

func (e *UnsupportedEncryptionVersion) Error() string {
	return fmt.Sprintf("unsupported_encryption_version: %d.%d", e.Major, e.Minor)
}

// UnsupportedKeyEncryptor reports an EncryptionInfo descriptor with no
// password key encryptor, listing the URIs that were seen instead.
type UnsupportedKeyEncryptor struct {
	SeenURIs []string
}

func (e *UnsupportedKeyEncryptor) Error() string {
	msg := "unsupported_key_encryptor: no password key encryptor present"
	if len(e.SeenURIs) > 0 {
		msg += fmt.Sprintf(" (saw: %v); re-save the file with a password", e.SeenURIs)
	}
	return msg
}

// InvalidAttribute reports an out-of-range or malformed XML descriptor
// attribute.
type InvalidAttribute struct {
	Attribute string
	Value     string
}

func (e *InvalidAttribute) Error() string {
	return fmt.Sprintf("invalid_attribute %s=%q", e.Attribute, e.Value)
}

// CiphertextNotBlockAligned reports an EncryptedPackage/segment whose
// length is not a multiple of the cipher block size.
type CiphertextNotBlockAligned struct {
	Length    int
	BlockSize int
}

func (e *CiphertextNotBlockAligned) Error() string {
	return fmt.Sprintf("ciphertext_not_block_aligned: length %d not a multiple of %d", e.Length, e.BlockSize)
}

// SpinCountTooLarge reports a spinCount exceeding the configured ceiling.
type SpinCountTooLarge struct {
	SpinCount uint32
	Ceiling   uint32
}

func (e *SpinCountTooLarge) Error() string {
	return fmt.Sprintf("spin_count_too_large: %d exceeds ceiling %d", e.SpinCount, e.Ceiling)
}

// DecryptedLengthShorterThanHeader reports a declared plaintext length
// larger than the available ciphertext.
type DecryptedLengthShorterThanHeader struct {
	Declared  uint64
	Available int
}

func (e *DecryptedLengthShorterThanHeader) Error() string {
	return fmt.Sprintf("decrypted_length_shorter_than_header: declared %d, available %d", e.Declared, e.Available)
}
