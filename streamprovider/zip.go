package streamprovider

import (
	"archive/zip"
	"fmt"
	"io"
)

// ZipProvider adapts an open ZIP reader (the OOXML package container) to
// StreamProvider, exactly the role the teacher's readZipEntry played
// before this module's scope narrowed to the formula/name/VBA/Agile core.
type ZipProvider struct {
	zf *zip.Reader
}

// NewZipProvider wraps an already-opened zip.Reader.
func NewZipProvider(zf *zip.Reader) *ZipProvider {
	return &ZipProvider{zf: zf}
}

// Open reads the full contents of the named ZIP entry.
func (p *ZipProvider) Open(name string) ([]byte, error) {
	for _, f := range p.zf.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("streamprovider: open %q: %w", name, err)
			}
			data, readErr := io.ReadAll(rc)
			closeErr := rc.Close()
			if readErr != nil {
				return nil, fmt.Errorf("streamprovider: read %q: %w", name, readErr)
			}
			if closeErr != nil {
				return nil, fmt.Errorf("streamprovider: close %q: %w", name, closeErr)
			}
			return data, nil
		}
	}
	return nil, fmt.Errorf("streamprovider: %q not found in archive", name)
}

// Rels resolves the .rels partner of a ZIP entry path (e.g.
// "xl/workbook.bin" -> "xl/_rels/workbook.bin.rels") and parses it,
// returning an empty map (not an error) when the .rels part is absent —
// relationships are optional for most parts.
func (p *ZipProvider) Rels(partName string) (map[string]string, error) {
	relsPath := relsPathFor(partName)
	data, err := p.Open(relsPath)
	if err != nil {
		return map[string]string{}, nil
	}
	return ParseRelsXML(data)
}

func relsPathFor(partName string) string {
	lastSlash := -1
	for i := len(partName) - 1; i >= 0; i-- {
		if partName[i] == '/' {
			lastSlash = i
			break
		}
	}
	dir, base := "", partName
	if lastSlash >= 0 {
		dir, base = partName[:lastSlash+1], partName[lastSlash+1:]
	}
	return dir + "_rels/" + base + ".rels"
}
