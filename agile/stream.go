package agile

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"io"

	"github.com/pkg/errors"

	"github.com/TsubasaBE/formulacore/errs"
)

// readChunkSize is the streaming entry point's read granularity. It is a
// multiple of segmentSize so every chunk (other than a short final one)
// lines up exactly with one AES-CBC segment boundary.
const readChunkSize = segmentSize

// DecryptStream verifies password, then streams the EncryptedPackage
// contents from r to w, decrypting segment by segment without buffering
// the whole package in memory. Both HMAC integrity targets (raw stream and
// plaintext) are accumulated incrementally as data is read and written;
// the check itself runs only after r is fully consumed, per this scheme's
// single-pass streaming contract.
func DecryptStream(info *EncryptionInfo, password string, r io.Reader, w io.Writer) error {
	packageKey, err := VerifyPassword(info, password)
	if err != nil {
		return err
	}

	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return errors.Wrap(&errs.DecryptedLengthShorterThanHeader{Declared: 8, Available: 0}, "agile: decrypt stream: read header")
	}
	declared := declaredPackageLength(header)

	var rawHash, plainHash hash.Hash
	if info.DataIntegrity != nil {
		hmacKey, err := decryptHmacKey(info.KeyData, packageKey, info.DataIntegrity)
		if err != nil {
			return errors.Wrap(err, "agile: decrypt stream: integrity")
		}
		rawHash = newHmacHash(info.KeyData.HashAlgorithm, hmacKey)
		plainHash = newHmacHash(info.KeyData.HashAlgorithm, hmacKey)
		rawHash.Write(header[:])
	}

	kd := info.KeyData
	chunk := make([]byte, readChunkSize)
	written := uint64(0)
	var segmentIndex uint32

	for {
		n, readErr := io.ReadFull(r, chunk)
		if n > 0 {
			segment := chunk[:n]
			if len(segment)%kd.BlockSize != 0 {
				return &errs.CiphertextNotBlockAligned{Length: len(segment), BlockSize: kd.BlockSize}
			}
			if rawHash != nil {
				rawHash.Write(segment)
			}

			iv := deriveIVFromHash(kd.HashAlgorithm, kd.SaltValue, segmentBlockKey(segmentIndex), kd.BlockSize)
			segmentIndex++
			plain, err := aesCBCDecryptNoPadding(packageKey, iv, segment)
			if err != nil {
				return errors.Wrap(err, "agile: decrypt stream")
			}

			outN := uint64(len(plain))
			if written+outN > declared {
				outN = declared - written
				if outN > uint64(len(plain)) {
					outN = uint64(len(plain))
				}
			}
			toWrite := plain[:outN]
			if plainHash != nil {
				plainHash.Write(toWrite)
			}
			if _, err := w.Write(toWrite); err != nil {
				return errors.Wrap(err, "agile: decrypt stream: write plaintext")
			}
			written += outN
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return errors.Wrap(readErr, "agile: decrypt stream: read ciphertext")
		}
	}

	if written < declared {
		return &errs.DecryptedLengthShorterThanHeader{Declared: declared, Available: int(written)}
	}

	if info.DataIntegrity != nil {
		expected, err := decryptHmacValue(kd, packageKey, info.DataIntegrity)
		if err != nil {
			return errors.Wrap(err, "agile: decrypt stream: integrity")
		}
		if ctEq(rawHash.Sum(nil), expected) || ctEq(plainHash.Sum(nil), expected) {
			return nil
		}
		return &errs.IntegrityMismatch{}
	}
	return nil
}

func newHmacHash(alg HashAlgorithm, key []byte) hash.Hash {
	switch alg {
	case SHA1:
		return hmac.New(sha1.New, key)
	case SHA256:
		return hmac.New(sha256.New, key)
	case SHA384:
		return hmac.New(sha512.New384, key)
	default:
		return hmac.New(sha512.New, key)
	}
}

func decryptHmacKey(kd KeyData, packageKey []byte, di *DataIntegrity) ([]byte, error) {
	keyIV := deriveIVFromHash(kd.HashAlgorithm, kd.SaltValue, blockKeyHmacKey, kd.BlockSize)
	hmacKey, err := aesCBCDecryptNoPadding(packageKey, keyIV, di.EncryptedHmacKey)
	if err != nil {
		return nil, err
	}
	hashLen := hashOutputLen(kd.HashAlgorithm)
	if len(hmacKey) < hashLen {
		return nil, &errs.IntegrityMismatch{}
	}
	return hmacKey[:hashLen], nil
}

func decryptHmacValue(kd KeyData, packageKey []byte, di *DataIntegrity) ([]byte, error) {
	valueIV := deriveIVFromHash(kd.HashAlgorithm, kd.SaltValue, blockKeyHmacValue, kd.BlockSize)
	encodedValue, err := aesCBCDecryptNoPadding(packageKey, valueIV, di.EncryptedHmacValue)
	if err != nil {
		return nil, err
	}
	hashLen := hashOutputLen(kd.HashAlgorithm)
	if len(encodedValue) < hashLen {
		return nil, &errs.IntegrityMismatch{}
	}
	return encodedValue[:hashLen], nil
}
