package streamprovider

import (
	"encoding/xml"
	"fmt"
)

// relationships is the root element of an OOXML .rels XML document.
type relationships struct {
	Relationship []relationship `xml:"Relationship"`
}

type relationship struct {
	ID     string `xml:"Id,attr"`
	Target string `xml:"Target,attr"`
}

// ParseRelsXML parses the raw bytes of a .rels XML file and returns a map
// of relationship ID to target string.
func ParseRelsXML(data []byte) (map[string]string, error) {
	var r relationships
	if err := xml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("streamprovider: parse rels XML: %w", err)
	}
	m := make(map[string]string, len(r.Relationship))
	for _, rel := range r.Relationship {
		m[rel.ID] = rel.Target
	}
	return m, nil
}
