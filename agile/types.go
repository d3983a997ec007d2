// Package agile implements the MS-OFFCRYPTO Agile encryption scheme used by
// password-protected OOXML packages: parsing the EncryptionInfo XML
// descriptor, deriving keys from a password, verifying the password,
// decrypting the EncryptedPackage stream segment by segment, and checking
// the optional HMAC integrity block. Only the password key encryptor is
// supported; certificate-based key encryptors are out of scope.
package agile

// HashAlgorithm selects the digest used throughout key derivation,
// password verification, and HMAC integrity (MS-OFFCRYPTO 2.3.4.10).
type HashAlgorithm int

const (
	SHA1 HashAlgorithm = iota
	SHA256
	SHA384
	SHA512
)

// KeyData describes the package-level cipher parameters from <keyData>.
type KeyData struct {
	SaltValue     []byte
	HashAlgorithm HashAlgorithm
	BlockSize     int
	KeyBits       int
	HashSize      int
}

// PasswordKeyEncryptor holds the <keyEncryptor uri=".../password"> fields
// needed to verify a password and recover the package key.
type PasswordKeyEncryptor struct {
	SaltValue                  []byte
	HashAlgorithm               HashAlgorithm
	BlockSize                   int
	KeyBits                     int
	HashSize                    int
	SpinCount                   uint32
	EncryptedVerifierHashInput  []byte
	EncryptedVerifierHashValue  []byte
	EncryptedKeyValue           []byte
}

// DataIntegrity holds the optional <dataIntegrity> HMAC verification blobs.
type DataIntegrity struct {
	EncryptedHmacKey   []byte
	EncryptedHmacValue []byte
}

// EncryptionInfo is the fully parsed and validated EncryptionInfo stream.
type EncryptionInfo struct {
	KeyData              KeyData
	DataIntegrity        *DataIntegrity
	PasswordKeyEncryptor PasswordKeyEncryptor
}

// defaultSpinCountCeiling bounds an attacker-controlled spinCount against a
// denial-of-service parse; Options.SpinCountCeiling overrides it.
const defaultSpinCountCeiling = 50_000_000

// Options configures descriptor parsing and password verification.
type Options struct {
	// SpinCountCeiling rejects a descriptor whose spinCount exceeds this
	// value before any hashing begins. Zero selects defaultSpinCountCeiling.
	SpinCountCeiling uint32
}

func (o Options) ceiling() uint32 {
	if o.SpinCountCeiling == 0 {
		return defaultSpinCountCeiling
	}
	return o.SpinCountCeiling
}
