package agile

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/TsubasaBE/formulacore/errs"
)

const segmentSize = 0x1000

// ivDerivation enumerates the two IV strategies a password-key-encryptor
// blob's verifier/key-value fields may have been produced with; producers
// disagree on this in the wild, so both are tried in order.
type ivDerivation func(alg HashAlgorithm, salt, blockKey []byte, blockSize int) []byte

var ivDerivations = []ivDerivation{deriveIVFromSalt, deriveIVFromHash}

// VerifyPassword checks password against info's password key encryptor and,
// on success, returns the recovered package key (KeyData.KeyBits/8 bytes).
// It returns *errs.WrongPassword on any verification failure, trying both
// known IV derivation strategies before giving up.
func VerifyPassword(info *EncryptionInfo, password string) ([]byte, error) {
	for _, iv := range ivDerivations {
		if key, ok := tryPassword(info, password, iv); ok {
			return key, nil
		}
	}
	return nil, &errs.WrongPassword{}
}

func tryPassword(info *EncryptionInfo, password string, iv ivDerivation) ([]byte, bool) {
	enc := info.PasswordKeyEncryptor
	pwHash := hashPassword(enc.HashAlgorithm, enc.SaltValue, password, enc.SpinCount)
	keyLen := enc.KeyBits / 8

	inputKey := deriveKey(enc.HashAlgorithm, pwHash, blockKeyVerifierHashInput, keyLen)
	inputIV := iv(enc.HashAlgorithm, enc.SaltValue, blockKeyVerifierHashInput, enc.BlockSize)
	decryptedInput, err := aesCBCDecryptNoPadding(inputKey, inputIV, enc.EncryptedVerifierHashInput)
	if err != nil {
		return nil, false
	}

	valueKey := deriveKey(enc.HashAlgorithm, pwHash, blockKeyVerifierHashValue, keyLen)
	valueIV := iv(enc.HashAlgorithm, enc.SaltValue, blockKeyVerifierHashValue, enc.BlockSize)
	decryptedValue, err := aesCBCDecryptNoPadding(valueKey, valueIV, enc.EncryptedVerifierHashValue)
	if err != nil {
		return nil, false
	}

	computed := hashConcat(enc.HashAlgorithm, decryptedInput)
	hashLen := hashOutputLen(enc.HashAlgorithm)
	if len(decryptedValue) < hashLen || !ctEq(computed, decryptedValue[:hashLen]) {
		return nil, false
	}

	keyValueKey := deriveKey(enc.HashAlgorithm, pwHash, blockKeyKeyValue, keyLen)
	keyValueIV := iv(enc.HashAlgorithm, enc.SaltValue, blockKeyKeyValue, enc.BlockSize)
	packageKey, err := aesCBCDecryptNoPadding(keyValueKey, keyValueIV, enc.EncryptedKeyValue)
	if err != nil {
		return nil, false
	}
	want := info.KeyData.KeyBits / 8
	if len(packageKey) < want {
		return nil, false
	}
	return packageKey[:want], true
}

// Decrypt verifies password, decrypts the EncryptedPackage stream in full,
// and checks the optional HMAC integrity block. On success it returns the
// plaintext OOXML package bytes.
func Decrypt(info *EncryptionInfo, password string, encryptedPackage []byte) ([]byte, error) {
	packageKey, err := VerifyPassword(info, password)
	if err != nil {
		return nil, err
	}

	declared, ciphertext, err := splitPackageHeader(encryptedPackage)
	if err != nil {
		return nil, errors.Wrap(err, "agile: decrypt package")
	}

	plaintext, err := decryptSegments(info.KeyData, packageKey, ciphertext)
	if err != nil {
		return nil, errors.Wrap(err, "agile: decrypt package")
	}
	if uint64(len(plaintext)) < declared {
		return nil, &errs.DecryptedLengthShorterThanHeader{Declared: declared, Available: len(plaintext)}
	}
	plaintext = plaintext[:declared]

	if info.DataIntegrity != nil {
		if err := verifyIntegrity(info.KeyData, packageKey, info.DataIntegrity, encryptedPackage, plaintext); err != nil {
			return nil, errors.Wrap(err, "agile: decrypt package")
		}
	}
	return plaintext, nil
}

// splitPackageHeader reads the EncryptedPackage stream's 8-byte declared
// plaintext length and returns it along with the remaining ciphertext.
func splitPackageHeader(data []byte) (uint64, []byte, error) {
	if len(data) < 8 {
		return 0, nil, &errs.DecryptedLengthShorterThanHeader{Declared: 8, Available: len(data)}
	}
	var header [8]byte
	copy(header[:], data[0:8])
	return declaredPackageLength(header), data[8:], nil
}

// declaredPackageLength interprets the EncryptedPackage stream's 8-byte
// length header. Some producers write the true length as a full u64; others
// write only a u32 length and leave the high dword as reserved/garbage
// rather than zero. A nonzero high dword is never a plausible length for a
// real package (it implies a multi-gigabyte plaintext), so it's treated as
// the latter case and only the low dword is used. This heuristic needs no
// knowledge of the ciphertext's total length, so the buffered (Decrypt) and
// streaming (DecryptStream) entry points can share it exactly.
func declaredPackageLength(header [8]byte) uint64 {
	if high := binary.LittleEndian.Uint32(header[4:8]); high != 0 {
		return uint64(binary.LittleEndian.Uint32(header[0:4]))
	}
	return binary.LittleEndian.Uint64(header[:])
}

func decryptSegments(kd KeyData, packageKey, ciphertext []byte) ([]byte, error) {
	out := make([]byte, 0, len(ciphertext))
	for i := uint32(0); len(ciphertext) > 0; i++ {
		n := segmentSize
		if n > len(ciphertext) {
			n = len(ciphertext)
		}
		segment := ciphertext[:n]
		ciphertext = ciphertext[n:]

		if len(segment)%kd.BlockSize != 0 {
			return nil, &errs.CiphertextNotBlockAligned{Length: len(segment), BlockSize: kd.BlockSize}
		}
		iv := deriveIVFromHash(kd.HashAlgorithm, kd.SaltValue, segmentBlockKey(i), kd.BlockSize)
		plain, err := aesCBCDecryptNoPadding(packageKey, iv, segment)
		if err != nil {
			return nil, err
		}
		out = append(out, plain...)
	}
	return out, nil
}

// verifyIntegrity checks the optional <dataIntegrity> HMAC, trying the
// spec-primary target (the raw EncryptedPackage stream bytes, length
// prefix included) and falling back to HMAC-over-plaintext, a variant seen
// from some non-conforming producers, before reporting a mismatch.
func verifyIntegrity(kd KeyData, packageKey []byte, di *DataIntegrity, rawStream, plaintext []byte) error {
	hmacKey, err := decryptHmacKey(kd, packageKey, di)
	if err != nil {
		return err
	}
	expected, err := decryptHmacValue(kd, packageKey, di)
	if err != nil {
		return err
	}

	if ctEq(computeHMAC(kd.HashAlgorithm, hmacKey, rawStream), expected) {
		return nil
	}
	if ctEq(computeHMAC(kd.HashAlgorithm, hmacKey, plaintext), expected) {
		return nil
	}
	return &errs.IntegrityMismatch{}
}
