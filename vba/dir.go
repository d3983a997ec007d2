package vba

import "github.com/TsubasaBE/formulacore/cursor"

// dirRecord ids this package recognizes (MS-OVBA 2.3.4). Ids outside
// this set are skipped (not included in any transcript) rather than
// treated as an error — the allowlist, not an error condition, is what
// decides transcript membership.
const (
	idProjectSysKind      = 0x0001
	idProjectLcid         = 0x0002
	idProjectLcidInvoke   = 0x0014
	idProjectCodepage     = 0x0003
	idProjectName         = 0x0004
	idProjectDocString    = 0x0005
	idProjectHelpFilePath = 0x0006
	idProjectHelpContext  = 0x0007
	idProjectLibFlags     = 0x0008
	idProjectVersion      = 0x0009
	idProjectConstants    = 0x000C
	idReferenceName       = 0x0016
	idReferenceOriginal   = 0x0033 // nested only inside a REFERENCECONTROL
	idReferenceControl    = 0x002F
	idReferenceRegistered = 0x000D
	idReferenceProject    = 0x000E
	idModules             = 0x000F
	idModuleName          = 0x0019
	idModuleNameUnicode   = 0x0047
	idModuleStreamName    = 0x001A
	idModuleDocString     = 0x001C
	idModuleOffset        = 0x0031
	idModuleHelpContext   = 0x001E
	idModuleCookie        = 0x002C
	idModuleTypeProc      = 0x0021
	idModuleTypeDoc       = 0x0022
	idModuleReadOnly      = 0x0025
	idModulePrivate       = 0x0028
	idTerminator          = 0x0010
	idModuleTerminator    = 0x002B
)

// record is one dir-stream (id, data) pair. Most records share the
// physical envelope Id:u16, Size:u32, Data(Size bytes) (MS-OVBA 2.3.4.1
// and friends); a handful (PROJECTVERSION and the various Terminator
// records) instead have a fixed-size body with no explicit Size field —
// readDirRecords special-cases those so the two shapes never get
// conflated. Data always holds whatever bytes follow the Id for that
// record, regardless of which shape produced them.
type record struct {
	ID   uint16
	Data []byte
}

// fixedBodySize gives the body length (bytes following Id, excluding
// any Size field because these ids have none) for ids whose layout is
// fixed rather than length-prefixed.
func fixedBodySize(id uint16) (int, bool) {
	switch id {
	case idProjectVersion:
		// Reserved:u32 (MUST be 0x00000004) + VersionMajor:u32 + VersionMinor:u16.
		return 10, true
	case idTerminator, idModuleTerminator:
		// Reserved:u32, MUST be 0x00000000.
		return 4, true
	default:
		return 0, false
	}
}

// readDirRecords splits a decompressed `dir` stream into its flat
// sequence of records. Nested logical structure (PROJECTREFERENCES
// containing several REFERENCE entries, PROJECTMODULES containing
// several MODULE entries) is NOT a framing concern at this level: every
// record is read in one flat pass and interpreted by id, matching how
// the transcript builders consume this stream (record by record, in
// file order).
func readDirRecords(data []byte) ([]record, error) {
	c := cursor.New(data)
	var recs []record
	for c.Remaining() > 0 {
		id, err := c.ReadUint16()
		if err != nil {
			return recs, nil
		}
		if n, fixed := fixedBodySize(id); fixed {
			payload, err := c.ReadBytes(n)
			if err != nil {
				return recs, err
			}
			recs = append(recs, record{ID: id, Data: payload})
			continue
		}
		size, err := c.ReadUint32()
		if err != nil {
			return recs, err
		}
		payload, err := c.ReadBytes(int(size))
		if err != nil {
			return recs, err
		}
		recs = append(recs, record{ID: id, Data: payload})
	}
	return recs, nil
}
