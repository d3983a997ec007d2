package vba

import "encoding/binary"

// ModuleSource resolves a module's raw (still compressed) code stream by
// its MODULESTREAMNAME, as recorded in the `dir` stream.
type ModuleSource func(streamName string) ([]byte, error)

// dirParsed is the flat, order-preserving view of a decompressed `dir`
// stream this package's transcript builders are built from.
type dirParsed struct {
	records []record
	modules []moduleRecord
}

func parseDirStream(decompressed []byte) (dirParsed, error) {
	recs, err := readDirRecords(decompressed)
	if err != nil {
		return dirParsed{}, err
	}
	return dirParsed{records: recs, modules: splitModules(recs)}, nil
}

// V1ContentNormalizedData builds the V1 content-hash transcript: the
// reference allowlist and PROJECTNAME/PROJECTCONSTANTS payloads in dir
// order, followed by every module's normalized source, in dir order.
func V1ContentNormalizedData(decompressedDir []byte, modules ModuleSource) ([]byte, *Warnings, error) {
	w := &Warnings{}
	dir, err := parseDirStream(decompressedDir)
	if err != nil {
		return nil, w, err
	}
	var out []byte
	for _, r := range dir.records {
		switch r.ID {
		case idProjectName, idProjectConstants, idReferenceRegistered:
			out = append(out, r.Data...)
		case idReferenceProject:
			if n, ok := normalizeReferenceProject(r.Data); ok {
				out = append(out, n...)
			} else {
				w.warnf("REFERENCEPROJECT record malformed, skipped")
			}
		case idReferenceControl:
			if n, ok := normalizeReferenceControl(r.Data); ok {
				out = append(out, n...)
			} else {
				w.warnf("REFERENCECONTROL record malformed, skipped")
			}
		case idReferenceOriginal:
			if n, ok := normalizeReferenceOriginal(r.Data); ok {
				out = append(out, n...)
			} else {
				w.warnf("REFERENCEORIGINAL record malformed, skipped")
			}
		}
	}

	for _, m := range dir.modules {
		src, err := resolveModuleSource(m, modules, w)
		if err != nil {
			continue
		}
		out = append(out, normalizeSourceV1(src)...)
	}
	return out, w, nil
}

// V2AgileContentHash builds the V2/agile transcript: the V1 transcript
// concatenated with FormsNormalizedData for the project's designer
// storages. forms may be nil when the project has no UserForm/designer
// storages.
func V2AgileContentHash(decompressedDir []byte, modules ModuleSource, forms []DesignerStream) ([]byte, *Warnings, error) {
	v1, w, err := V1ContentNormalizedData(decompressedDir, modules)
	if err != nil {
		return nil, w, err
	}
	out := append(v1, FormsNormalizedData(forms)...)
	return out, w, nil
}

// V3ContentNormalizedData builds the stricter V3 transcript from the dir
// stream and the module streams. The textual PROJECT stream is not read
// here; NormalizeProjectStream filters it separately.
func V3ContentNormalizedData(decompressedDir []byte, modules ModuleSource) ([]byte, *Warnings, error) {
	w := &Warnings{}
	dir, err := parseDirStream(decompressedDir)
	if err != nil {
		return nil, w, err
	}
	var out []byte

	headerOnly := map[uint16]bool{
		idProjectSysKind:      true,
		idProjectCodepage:     true,
		idProjectDocString:    true,
		idProjectHelpFilePath: true,
		idProjectHelpContext:  true,
	}
	fullRecord := map[uint16]bool{
		idProjectLcid:       true,
		idProjectLcidInvoke: true,
		idProjectName:       true,
		idProjectLibFlags:   true,
		idProjectConstants:  true,
	}

	for i := 0; i < len(dir.records); i++ {
		r := dir.records[i]
		switch {
		case headerOnly[r.ID]:
			out = append(out, recordHeader(r)...)
		case fullRecord[r.ID]:
			out = append(out, recordHeader(r)...)
			out = append(out, r.Data...)
		case r.ID == idProjectVersion:
			// Whole record, Id included: readDirRecords already strips
			// the fixed Reserved/Major/Minor body out to exactly 10
			// bytes, so Id(2)+Data(10) is PROJECTVERSION's full 12 bytes.
			if len(r.Data) != 10 {
				w.warnf("PROJECTVERSION record malformed, skipped")
				continue
			}
			out = append(out, u16le(r.ID)...)
			out = append(out, r.Data...)
		case r.ID == idReferenceRegistered:
			out = append(out, r.Data...)
		case r.ID == idReferenceProject:
			if n, ok := normalizeReferenceProject(r.Data); ok {
				out = append(out, n...)
			} else {
				w.warnf("REFERENCEPROJECT record malformed, skipped")
			}
		case r.ID == idReferenceControl:
			if n, ok := normalizeReferenceControl(r.Data); ok {
				out = append(out, n...)
			} else {
				w.warnf("REFERENCECONTROL record malformed, skipped")
			}
		case r.ID == idReferenceOriginal:
			if n, ok := normalizeReferenceOriginal(r.Data); ok {
				out = append(out, n...)
			} else {
				w.warnf("REFERENCEORIGINAL record malformed, skipped")
			}
		case r.ID == idReferenceName:
			out = append(out, r.Data...)
		}
	}

	for _, m := range dir.modules {
		switch {
		case m.TypeID == idModuleTypeProc || m.TypeID == idModuleTypeDoc:
			out = append(out, u16le(m.TypeID)...)
		}
		if m.ReadOnly != nil {
			out = append(out, u16le(m.ReadOnlyID)...)
			out = append(out, m.ReadOnly...)
		}
		if m.Private != nil {
			out = append(out, u16le(m.PrivateID)...)
			out = append(out, m.Private...)
		}

		src, err := resolveModuleSource(m, modules, w)
		if err != nil {
			continue
		}
		out = append(out, normalizeSourceV3(src, m.Name)...)
	}
	return out, w, nil
}

// resolveModuleSource decompresses a module's code stream, preferring the
// declared MODULEOFFSET and falling back to a signature scan.
func resolveModuleSource(m moduleRecord, modules ModuleSource, w *Warnings) ([]byte, error) {
	raw, err := modules(string(m.StreamName))
	if err != nil {
		w.warnf("module %q: stream unavailable: %v", m.Name, err)
		return nil, err
	}
	src, err := moduleSource(raw, m.TextOffset)
	if err != nil {
		w.warnf("module %q: decompress failed: %v", m.Name, err)
		return nil, err
	}
	return src, nil
}

// recordHeader re-emits a record's id:u16 + size:u32 header bytes without
// its payload, the V3 "header-only" shape for several PROJECT* records.
func recordHeader(r record) []byte {
	var h [6]byte
	binary.LittleEndian.PutUint16(h[0:2], r.ID)
	binary.LittleEndian.PutUint32(h[2:6], uint32(len(r.Data)))
	return h[:]
}

func u16le(v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return b[:]
}
