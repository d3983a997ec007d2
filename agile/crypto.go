package agile

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/binary"
	"hash"
	"unicode/utf16"

	"github.com/TsubasaBE/formulacore/errs"
)

// Well-known 8-byte block key constants (MS-OFFCRYPTO 2.3.4.11) that
// distinguish the several AES keys and IVs derived from the same password
// hash or package key.
var (
	blockKeyVerifierHashInput = []byte{0xfe, 0xa7, 0xd2, 0x76, 0x3b, 0x4b, 0x9e, 0x79}
	blockKeyVerifierHashValue = []byte{0xd7, 0xaa, 0x0f, 0x6d, 0x30, 0x61, 0x34, 0x4e}
	blockKeyKeyValue          = []byte{0x14, 0x6e, 0x0b, 0xe7, 0xab, 0xac, 0xd0, 0xd6}
	blockKeyHmacKey           = []byte{0x5f, 0xb2, 0xad, 0x01, 0x0c, 0xb9, 0xe1, 0xf6}
	blockKeyHmacValue         = []byte{0xa0, 0x67, 0x7f, 0x02, 0xb2, 0x2c, 0x84, 0x33}
)

func newHash(alg HashAlgorithm) hash.Hash {
	switch alg {
	case SHA1:
		return sha1.New()
	case SHA256:
		return sha256.New()
	case SHA384:
		return sha512.New384()
	default:
		return sha512.New()
	}
}

func hashOutputLen(alg HashAlgorithm) int {
	switch alg {
	case SHA1:
		return 20
	case SHA256:
		return 32
	case SHA384:
		return 48
	default:
		return 64
	}
}

func hashConcat(alg HashAlgorithm, parts ...[]byte) []byte {
	h := newHash(alg)
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// fitToLength truncates or pads (with 0x36, MS-OFFCRYPTO 2.3.4.11) a hash
// output to exactly n bytes, the shape every derived key and IV needs.
func fitToLength(b []byte, n int) []byte {
	if len(b) >= n {
		return b[:n]
	}
	out := make([]byte, n)
	copy(out, b)
	for i := len(b); i < n; i++ {
		out[i] = 0x36
	}
	return out
}

// utf16LEBytes encodes s as UTF-16LE, the password encoding the spin
// algorithm requires.
func utf16LEBytes(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, len(units)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(out[i*2:], u)
	}
	return out
}

// hashPassword implements the iterated password-hash spin:
// H0 = H(salt || password_utf16le); Hn = H(n_le_u32 || Hn-1), spinCount times.
func hashPassword(alg HashAlgorithm, salt []byte, password string, spinCount uint32) []byte {
	h := hashConcat(alg, salt, utf16LEBytes(password))
	var ctr [4]byte
	for i := uint32(0); i < spinCount; i++ {
		binary.LittleEndian.PutUint32(ctr[:], i)
		h = hashConcat(alg, ctr[:], h)
	}
	return h
}

// deriveKey produces an AES key of keyLenBytes from a base hash (the
// iterated password hash, or the package key for HMAC blobs) and a
// well-known block key.
func deriveKey(alg HashAlgorithm, base, blockKey []byte, keyLenBytes int) []byte {
	return fitToLength(hashConcat(alg, base, blockKey), keyLenBytes)
}

// deriveIVFromHash is the spec-primary IV derivation: H(salt || blockKey),
// fit to the cipher's block size.
func deriveIVFromHash(alg HashAlgorithm, salt, blockKey []byte, blockSize int) []byte {
	return fitToLength(hashConcat(alg, salt, blockKey), blockSize)
}

// deriveIVFromSalt is the non-spec fallback some producers use: the raw
// salt itself, fit to block size with no hashing. blockKey is accepted
// only so this matches ivDerivation's signature; it plays no part here.
func deriveIVFromSalt(alg HashAlgorithm, salt, blockKey []byte, blockSize int) []byte {
	return fitToLength(salt, blockSize)
}

func segmentBlockKey(i uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, i)
	return b
}

func aesCBCDecryptNoPadding(key, iv, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, nil
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, &errs.CiphertextNotBlockAligned{Length: len(ciphertext), BlockSize: aes.BlockSize}
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &errs.InvalidAttribute{Attribute: "keyBits", Value: "aes key setup failed"}
	}
	mode := cipher.NewCBCDecrypter(block, iv)
	out := make([]byte, len(ciphertext))
	mode.CryptBlocks(out, ciphertext)
	return out, nil
}

func computeHMAC(alg HashAlgorithm, key, data []byte) []byte {
	var newHmacHash func() hash.Hash
	switch alg {
	case SHA1:
		newHmacHash = sha1.New
	case SHA256:
		newHmacHash = sha256.New
	case SHA384:
		newHmacHash = sha512.New384
	default:
		newHmacHash = sha512.New
	}
	m := hmac.New(newHmacHash, key)
	m.Write(data)
	return m.Sum(nil)
}

func ctEq(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
