package agile

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/TsubasaBE/formulacore/errs"
)

// encryptCBCNoPadding is the producer-side counterpart of
// aesCBCDecryptNoPadding, used only to build synthetic fixtures below.
func encryptCBCNoPadding(key, iv, plaintext []byte) []byte {
	block, err := aes.NewCipher(key)
	if err != nil {
		panic(err)
	}
	out := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, plaintext)
	return out
}

// fixture builds a fully self-consistent EncryptionInfo plus the password
// needed to unlock it, using SHA-256/AES-256 so every encrypted blob lands
// on a block boundary without needing padding logic in the test itself.
type fixture struct {
	info     *EncryptionInfo
	password string
	pkgKey   []byte
	salt     []byte
}

func buildFixture(password string, spinCount uint32) *fixture {
	const (
		alg       = SHA256
		blockSize = 16
		keyBits   = 256
		keyLen    = keyBits / 8
	)
	salt := bytes.Repeat([]byte{0x11}, blockSize)
	pwHash := hashPassword(alg, salt, password, spinCount)

	verifierInput := bytes.Repeat([]byte{0x22}, blockSize)
	verifierValue := hashConcat(alg, verifierInput)
	pkgKey := bytes.Repeat([]byte{0x33}, keyLen)

	inputKey := deriveKey(alg, pwHash, blockKeyVerifierHashInput, keyLen)
	inputIV := deriveIVFromHash(alg, salt, blockKeyVerifierHashInput, blockSize)
	encVerifierInput := encryptCBCNoPadding(inputKey, inputIV, verifierInput)

	valueKey := deriveKey(alg, pwHash, blockKeyVerifierHashValue, keyLen)
	valueIV := deriveIVFromHash(alg, salt, blockKeyVerifierHashValue, blockSize)
	encVerifierValue := encryptCBCNoPadding(valueKey, valueIV, verifierValue)

	keyValueKey := deriveKey(alg, pwHash, blockKeyKeyValue, keyLen)
	keyValueIV := deriveIVFromHash(alg, salt, blockKeyKeyValue, blockSize)
	encKeyValue := encryptCBCNoPadding(keyValueKey, keyValueIV, pkgKey)

	info := &EncryptionInfo{
		KeyData: KeyData{
			SaltValue:     salt,
			HashAlgorithm: alg,
			BlockSize:     blockSize,
			KeyBits:       keyBits,
			HashSize:      hashOutputLen(alg),
		},
		PasswordKeyEncryptor: PasswordKeyEncryptor{
			SaltValue:                  salt,
			HashAlgorithm:              alg,
			BlockSize:                  blockSize,
			KeyBits:                    keyBits,
			HashSize:                   hashOutputLen(alg),
			SpinCount:                  spinCount,
			EncryptedVerifierHashInput: encVerifierInput,
			EncryptedVerifierHashValue: encVerifierValue,
			EncryptedKeyValue:          encKeyValue,
		},
	}
	return &fixture{info: info, password: password, pkgKey: pkgKey, salt: salt}
}

func (f *fixture) withIntegrity(rawStream []byte) {
	const blockSize = 16
	hmacKey := bytes.Repeat([]byte{0x44}, hashOutputLen(f.info.KeyData.HashAlgorithm))
	hmacValue := computeHMAC(f.info.KeyData.HashAlgorithm, hmacKey, rawStream)

	keyIV := deriveIVFromHash(f.info.KeyData.HashAlgorithm, f.salt, blockKeyHmacKey, blockSize)
	encHmacKey := encryptCBCNoPadding(f.pkgKey, keyIV, hmacKey)

	valueIV := deriveIVFromHash(f.info.KeyData.HashAlgorithm, f.salt, blockKeyHmacValue, blockSize)
	encHmacValue := encryptCBCNoPadding(f.pkgKey, valueIV, hmacValue)

	f.info.DataIntegrity = &DataIntegrity{EncryptedHmacKey: encHmacKey, EncryptedHmacValue: encHmacValue}
}

func buildEncryptedPackage(f *fixture, plaintext []byte) []byte {
	const blockSize = 16
	header := make([]byte, 8)
	binary.LittleEndian.PutUint64(header, uint64(len(plaintext)))

	padded := plaintext
	if rem := len(padded) % blockSize; rem != 0 {
		padded = append(append([]byte{}, padded...), make([]byte, blockSize-rem)...)
	}

	var ciphertext []byte
	for i := 0; i*segmentSize < len(padded); i++ {
		end := (i + 1) * segmentSize
		if end > len(padded) {
			end = len(padded)
		}
		segment := padded[i*segmentSize : end]
		iv := deriveIVFromHash(f.info.KeyData.HashAlgorithm, f.salt, segmentBlockKey(uint32(i)), blockSize)
		ciphertext = append(ciphertext, encryptCBCNoPadding(f.pkgKey, iv, segment)...)
	}
	return append(header, ciphertext...)
}

func TestVerifyPasswordRecoversPackageKey(t *testing.T) {
	f := buildFixture("correct horse", 10)
	key, err := VerifyPassword(f.info, "correct horse")
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !bytes.Equal(key, f.pkgKey) {
		t.Fatalf("recovered key = %x, want %x", key, f.pkgKey)
	}
}

func TestVerifyPasswordRejectsWrongPassword(t *testing.T) {
	f := buildFixture("correct horse", 10)
	_, err := VerifyPassword(f.info, "wrong password")
	var wp *errs.WrongPassword
	if !errors.As(err, &wp) {
		t.Fatalf("got err %v, want *errs.WrongPassword", err)
	}
}

func TestDecryptRoundTrip(t *testing.T) {
	f := buildFixture("correct horse", 10)
	plaintext := []byte("the quick brown fox jumps over the lazy dog")
	pkg := buildEncryptedPackage(f, plaintext)

	got, err := Decrypt(f.info, "correct horse", pkg)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("Decrypt = %q, want %q", got, plaintext)
	}
}

func TestDecryptSpansMultipleSegments(t *testing.T) {
	f := buildFixture("correct horse", 10)
	plaintext := bytes.Repeat([]byte("0123456789abcdef"), segmentSize/16+3)
	pkg := buildEncryptedPackage(f, plaintext)

	got, err := Decrypt(f.info, "correct horse", pkg)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatal("decrypted plaintext does not match across segment boundary")
	}
}

func TestDecryptWithIntegrityBlock(t *testing.T) {
	f := buildFixture("correct horse", 10)
	plaintext := []byte("integrity checked payload")
	pkg := buildEncryptedPackage(f, plaintext)
	f.withIntegrity(pkg)

	got, err := Decrypt(f.info, "correct horse", pkg)
	if err != nil {
		t.Fatalf("Decrypt with integrity: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("Decrypt = %q, want %q", got, plaintext)
	}
}

func TestDecryptWithIntegrityBlockDetectsTampering(t *testing.T) {
	f := buildFixture("correct horse", 10)
	plaintext := []byte("integrity checked payload")
	pkg := buildEncryptedPackage(f, plaintext)
	f.withIntegrity(pkg)

	tampered := append([]byte{}, pkg...)
	tampered[len(tampered)-1] ^= 0xFF

	_, err := Decrypt(f.info, "correct horse", tampered)
	var im *errs.IntegrityMismatch
	if !errors.As(err, &im) {
		t.Fatalf("got err %v, want *errs.IntegrityMismatch", err)
	}
}

func TestDecryptStreamMatchesDecrypt(t *testing.T) {
	f := buildFixture("correct horse", 10)
	plaintext := bytes.Repeat([]byte("stream me please"), 200)
	pkg := buildEncryptedPackage(f, plaintext)
	f.withIntegrity(pkg)

	var out bytes.Buffer
	if err := DecryptStream(f.info, "correct horse", bytes.NewReader(pkg), &out); err != nil {
		t.Fatalf("DecryptStream: %v", err)
	}
	if !bytes.Equal(out.Bytes(), plaintext) {
		t.Fatal("DecryptStream output does not match source plaintext")
	}
}

func TestProbeIVReportsHashDerivedStrategy(t *testing.T) {
	f := buildFixture("correct horse", 10)
	if got := ProbeIV(f.info, "correct horse"); got != IVStrategyHashDerived {
		t.Fatalf("ProbeIV = %v, want %v", got, IVStrategyHashDerived)
	}
}

func TestProbeIVReportsUnknownOnWrongPassword(t *testing.T) {
	f := buildFixture("correct horse", 10)
	if got := ProbeIV(f.info, "nope"); got != IVStrategyUnknown {
		t.Fatalf("ProbeIV = %v, want %v", got, IVStrategyUnknown)
	}
}

func TestParseEncryptionInfoRejectsWrongVersion(t *testing.T) {
	data := []byte{0x02, 0x00, 0x03, 0x00, 0, 0, 0, 0}
	_, err := ParseEncryptionInfo(data, Options{})
	var uv *errs.UnsupportedEncryptionVersion
	if !errors.As(err, &uv) {
		t.Fatalf("got err %v, want *errs.UnsupportedEncryptionVersion", err)
	}
}

func TestParseEncryptionInfoFullDescriptor(t *testing.T) {
	xmlBody := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<encryption xmlns="http://schemas.microsoft.com/office/2006/encryption">
  <keyData saltSize="16" blockSize="16" keyBits="256" hashSize="32"
           cipherAlgorithm="AES" cipherChaining="ChainingModeCBC"
           hashAlgorithm="SHA256" saltValue="EREREREREREREREREREREQ=="/>
  <keyEncryptors>
    <keyEncryptor uri="http://schemas.microsoft.com/office/2006/keyEncryptor/password">
      <p:encryptedKey xmlns:p="http://schemas.microsoft.com/office/2006/keyEncryptor/password"
        spinCount="100000" saltSize="16" blockSize="16" keyBits="256" hashSize="32"
        cipherAlgorithm="AES" cipherChaining="ChainingModeCBC" hashAlgorithm="SHA256"
        saltValue="EREREREREREREREREREREQ=="
        encryptedVerifierHashInput="IiIiIiIiIiIiIiIiIiIiIg=="
        encryptedVerifierHashValue="IiIiIiIiIiIiIiIiIiIiIiIiIiIiIiIiIiIiIiIiIiI="
        encryptedKeyValue="MzMzMzMzMzMzMzMzMzMzMzMzMzMzMzMzMzMzMzMzMzM="/>
    </keyEncryptor>
  </keyEncryptors>
</encryption>`
	header := []byte{0x04, 0x00, 0x04, 0x00, 0, 0, 0, 0}
	data := append(header, []byte(xmlBody)...)

	info, err := ParseEncryptionInfo(data, Options{})
	if err != nil {
		t.Fatalf("ParseEncryptionInfo: %v", err)
	}
	if info.KeyData.HashAlgorithm != SHA256 {
		t.Fatalf("HashAlgorithm = %v, want SHA256", info.KeyData.HashAlgorithm)
	}
	if info.PasswordKeyEncryptor.SpinCount != 100000 {
		t.Fatalf("SpinCount = %d, want 100000", info.PasswordKeyEncryptor.SpinCount)
	}
}

func TestParseEncryptionInfoRejectsSpinCountOverCeiling(t *testing.T) {
	header := []byte{0x04, 0x00, 0x04, 0x00, 0, 0, 0, 0}
	xmlBody := `<encryption xmlns="http://schemas.microsoft.com/office/2006/encryption">
  <keyData saltSize="16" blockSize="16" keyBits="256" hashSize="32"
           cipherAlgorithm="AES" cipherChaining="ChainingModeCBC"
           hashAlgorithm="SHA256" saltValue="EREREREREREREREREREREQ=="/>
  <keyEncryptors>
    <keyEncryptor uri="http://schemas.microsoft.com/office/2006/keyEncryptor/password">
      <p:encryptedKey xmlns:p="http://schemas.microsoft.com/office/2006/keyEncryptor/password"
        spinCount="1000" saltSize="16" blockSize="16" keyBits="256" hashSize="32"
        cipherAlgorithm="AES" cipherChaining="ChainingModeCBC" hashAlgorithm="SHA256"
        saltValue="EREREREREREREREREREREQ=="
        encryptedVerifierHashInput="IiIiIiIiIiIiIiIiIiIiIg=="
        encryptedVerifierHashValue="IiIiIiIiIiIiIiIiIiIiIiIiIiIiIiIiIiIiIiIiIiI="
        encryptedKeyValue="MzMzMzMzMzMzMzMzMzMzMzMzMzMzMzMzMzMzMzMzMzM="/>
    </keyEncryptor>
  </keyEncryptors>
</encryption>`
	data := append(header, []byte(xmlBody)...)
	_, err := ParseEncryptionInfo(data, Options{SpinCountCeiling: 100})
	var sc *errs.SpinCountTooLarge
	if !errors.As(err, &sc) {
		t.Fatalf("got err %v, want *errs.SpinCountTooLarge", err)
	}
}

func TestValidateCipherSettingsRejectsUnknownAlgorithm(t *testing.T) {
	err := validateCipherSettings("DES", "ChainingModeCBC", 16, 128)
	var ia *errs.InvalidAttribute
	if !errors.As(err, &ia) {
		t.Fatalf("got err %v, want *errs.InvalidAttribute", err)
	}
}

func TestSplitPackageHeaderAcceptsLowDwordFallback(t *testing.T) {
	ciphertext := bytes.Repeat([]byte{0xAB}, 16)
	data := make([]byte, 8+len(ciphertext))
	binary.LittleEndian.PutUint32(data[0:4], 12)
	binary.LittleEndian.PutUint32(data[4:8], 1) // nonzero high dword makes the full u64 implausibly large
	copy(data[8:], ciphertext)

	declared, rest, err := splitPackageHeader(data)
	if err != nil {
		t.Fatalf("splitPackageHeader: %v", err)
	}
	if declared != 12 {
		t.Fatalf("declared = %d, want 12", declared)
	}
	if !bytes.Equal(rest, ciphertext) {
		t.Fatal("ciphertext slice mismatch")
	}
}
