package agile

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/TsubasaBE/formulacore/errs"
)

const passwordKeyEncryptorURI = "http://schemas.microsoft.com/office/2006/keyEncryptor/password"

// ParseEncryptionInfo reads the 8-byte version header (major:u16, minor:u16,
// flags:u32) followed by the Agile XML descriptor, validating every
// attribute this package relies on. Only version (4, 4) is supported.
func ParseEncryptionInfo(data []byte, opts Options) (*EncryptionInfo, error) {
	if len(data) < 8 {
		return nil, &errs.DecryptedLengthShorterThanHeader{Declared: 8, Available: len(data)}
	}
	major := binary.LittleEndian.Uint16(data[0:2])
	minor := binary.LittleEndian.Uint16(data[2:4])
	if major != 4 || minor != 4 {
		return nil, &errs.UnsupportedEncryptionVersion{Major: major, Minor: minor}
	}
	return parseDescriptorXML(data[8:], opts)
}

type xmlEncryption struct {
	XMLName       xml.Name          `xml:"encryption"`
	KeyData       xmlKeyData        `xml:"keyData"`
	DataIntegrity *xmlDataIntegrity `xml:"dataIntegrity"`
	KeyEncryptors xmlKeyEncryptors  `xml:"keyEncryptors"`
}

type xmlKeyData struct {
	SaltSize        uint32 `xml:"saltSize,attr"`
	BlockSize       uint32 `xml:"blockSize,attr"`
	KeyBits         uint32 `xml:"keyBits,attr"`
	HashSize        uint32 `xml:"hashSize,attr"`
	CipherAlgorithm string `xml:"cipherAlgorithm,attr"`
	CipherChaining  string `xml:"cipherChaining,attr"`
	HashAlgorithm   string `xml:"hashAlgorithm,attr"`
	SaltValue       string `xml:"saltValue,attr"`
}

type xmlDataIntegrity struct {
	EncryptedHmacKey   string `xml:"encryptedHmacKey,attr"`
	EncryptedHmacValue string `xml:"encryptedHmacValue,attr"`
}

type xmlKeyEncryptors struct {
	KeyEncryptor []xmlKeyEncryptor `xml:"keyEncryptor"`
}

type xmlKeyEncryptor struct {
	URI          string          `xml:"uri,attr"`
	EncryptedKey xmlEncryptedKey `xml:"encryptedKey"`
}

type xmlEncryptedKey struct {
	SpinCount                  uint32 `xml:"spinCount,attr"`
	SaltSize                   uint32 `xml:"saltSize,attr"`
	BlockSize                  uint32 `xml:"blockSize,attr"`
	KeyBits                    uint32 `xml:"keyBits,attr"`
	HashSize                   uint32 `xml:"hashSize,attr"`
	CipherAlgorithm            string `xml:"cipherAlgorithm,attr"`
	CipherChaining             string `xml:"cipherChaining,attr"`
	HashAlgorithm              string `xml:"hashAlgorithm,attr"`
	SaltValue                  string `xml:"saltValue,attr"`
	EncryptedVerifierHashInput string `xml:"encryptedVerifierHashInput,attr"`
	EncryptedVerifierHashValue string `xml:"encryptedVerifierHashValue,attr"`
	EncryptedKeyValue          string `xml:"encryptedKeyValue,attr"`
}

func parseDescriptorXML(data []byte, opts Options) (*EncryptionInfo, error) {
	var doc xmlEncryption
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("agile: parse EncryptionInfo XML: %w", err)
	}

	kd, err := parseKeyData(doc.KeyData)
	if err != nil {
		return nil, err
	}

	var di *DataIntegrity
	if doc.DataIntegrity != nil {
		hk, err := decodeBase64Attr("encryptedHmacKey", doc.DataIntegrity.EncryptedHmacKey)
		if err != nil {
			return nil, err
		}
		hv, err := decodeBase64Attr("encryptedHmacValue", doc.DataIntegrity.EncryptedHmacValue)
		if err != nil {
			return nil, err
		}
		di = &DataIntegrity{EncryptedHmacKey: hk, EncryptedHmacValue: hv}
	}

	var seenURIs []string
	var pke *PasswordKeyEncryptor
	for _, ke := range doc.KeyEncryptors.KeyEncryptor {
		seenURIs = append(seenURIs, ke.URI)
		if ke.URI != passwordKeyEncryptorURI || pke != nil {
			continue
		}
		parsed, err := parsePasswordKeyEncryptor(ke.EncryptedKey, opts)
		if err != nil {
			return nil, err
		}
		pke = parsed
	}
	if pke == nil {
		return nil, &errs.UnsupportedKeyEncryptor{SeenURIs: seenURIs}
	}

	return &EncryptionInfo{KeyData: *kd, DataIntegrity: di, PasswordKeyEncryptor: *pke}, nil
}

func parseKeyData(x xmlKeyData) (*KeyData, error) {
	if err := validateCipherSettings(x.CipherAlgorithm, x.CipherChaining, x.BlockSize, x.KeyBits); err != nil {
		return nil, err
	}
	alg, err := parseHashAlgorithm(x.HashAlgorithm)
	if err != nil {
		return nil, err
	}
	if int(x.HashSize) != hashOutputLen(alg) {
		return nil, &errs.InvalidAttribute{Attribute: "hashSize", Value: strconv.Itoa(int(x.HashSize))}
	}
	salt, err := decodeBase64Attr("saltValue", x.SaltValue)
	if err != nil {
		return nil, err
	}
	if len(salt) != int(x.SaltSize) {
		return nil, &errs.InvalidAttribute{Attribute: "saltSize", Value: strconv.Itoa(int(x.SaltSize))}
	}
	return &KeyData{
		SaltValue:     salt,
		HashAlgorithm: alg,
		BlockSize:     int(x.BlockSize),
		KeyBits:       int(x.KeyBits),
		HashSize:      int(x.HashSize),
	}, nil
}

func parsePasswordKeyEncryptor(x xmlEncryptedKey, opts Options) (*PasswordKeyEncryptor, error) {
	if err := validateCipherSettings(x.CipherAlgorithm, x.CipherChaining, x.BlockSize, x.KeyBits); err != nil {
		return nil, err
	}
	alg, err := parseHashAlgorithm(x.HashAlgorithm)
	if err != nil {
		return nil, err
	}
	if int(x.HashSize) != hashOutputLen(alg) {
		return nil, &errs.InvalidAttribute{Attribute: "hashSize", Value: strconv.Itoa(int(x.HashSize))}
	}
	if ceiling := opts.ceiling(); x.SpinCount > ceiling {
		return nil, &errs.SpinCountTooLarge{SpinCount: x.SpinCount, Ceiling: ceiling}
	}
	salt, err := decodeBase64Attr("saltValue", x.SaltValue)
	if err != nil {
		return nil, err
	}
	if len(salt) != int(x.SaltSize) {
		return nil, &errs.InvalidAttribute{Attribute: "saltSize", Value: strconv.Itoa(int(x.SaltSize))}
	}
	verifierInput, err := decodeBase64Attr("encryptedVerifierHashInput", x.EncryptedVerifierHashInput)
	if err != nil {
		return nil, err
	}
	verifierValue, err := decodeBase64Attr("encryptedVerifierHashValue", x.EncryptedVerifierHashValue)
	if err != nil {
		return nil, err
	}
	keyValue, err := decodeBase64Attr("encryptedKeyValue", x.EncryptedKeyValue)
	if err != nil {
		return nil, err
	}
	return &PasswordKeyEncryptor{
		SaltValue:                  salt,
		HashAlgorithm:              alg,
		BlockSize:                  int(x.BlockSize),
		KeyBits:                    int(x.KeyBits),
		HashSize:                   int(x.HashSize),
		SpinCount:                  x.SpinCount,
		EncryptedVerifierHashInput: verifierInput,
		EncryptedVerifierHashValue: verifierValue,
		EncryptedKeyValue:          keyValue,
	}, nil
}

func validateCipherSettings(algorithm, chaining string, blockSize, keyBits uint32) error {
	if algorithm != "AES" {
		return &errs.InvalidAttribute{Attribute: "cipherAlgorithm", Value: algorithm}
	}
	if chaining != "ChainingModeCBC" {
		return &errs.InvalidAttribute{Attribute: "cipherChaining", Value: chaining}
	}
	if blockSize != 16 {
		return &errs.InvalidAttribute{Attribute: "blockSize", Value: strconv.Itoa(int(blockSize))}
	}
	if keyBits%8 != 0 || (keyBits != 128 && keyBits != 192 && keyBits != 256) {
		return &errs.InvalidAttribute{Attribute: "keyBits", Value: strconv.Itoa(int(keyBits))}
	}
	return nil
}

func parseHashAlgorithm(s string) (HashAlgorithm, error) {
	switch s {
	case "SHA1":
		return SHA1, nil
	case "SHA256":
		return SHA256, nil
	case "SHA384":
		return SHA384, nil
	case "SHA512":
		return SHA512, nil
	default:
		return 0, &errs.InvalidAttribute{Attribute: "hashAlgorithm", Value: s}
	}
}

func decodeBase64Attr(attr, value string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, &errs.InvalidAttribute{Attribute: attr, Value: value}
	}
	return b, nil
}
