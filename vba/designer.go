package vba

// DesignerStream is one stream beneath a UserForm/designer storage,
// already resolved to bytes by the caller (see package streamprovider).
type DesignerStream struct {
	Name string
	Data []byte
}

// designerPad is the padding unit every designer stream is rounded up to
// (MS-OVBA content normalization for forms/designer storages).
const designerPad = 1023

// FormsNormalizedData enumerates the streams of one designer storage, in
// the order given, and appends each stream's bytes followed by zero
// padding to the next multiple of designerPad bytes.
func FormsNormalizedData(streams []DesignerStream) []byte {
	var out []byte
	for _, s := range streams {
		out = append(out, s.Data...)
		if rem := len(s.Data) % designerPad; rem != 0 {
			out = append(out, make([]byte, designerPad-rem)...)
		}
	}
	return out
}
