package agile

// IVStrategy names which of the two IV derivation strategies a password
// verifier blob was produced with.
type IVStrategy int

const (
	// IVStrategyUnknown means neither strategy verified the password.
	IVStrategyUnknown IVStrategy = iota
	// IVStrategyHashDerived is the documented strategy: H(salt||blockKey).
	IVStrategyHashDerived
	// IVStrategyRawSalt is the raw-salt fallback some producers use.
	IVStrategyRawSalt
)

func (s IVStrategy) String() string {
	switch s {
	case IVStrategyHashDerived:
		return "hash-derived"
	case IVStrategyRawSalt:
		return "raw-salt"
	default:
		return "unknown"
	}
}

// ProbeIV reports which IV derivation strategy verifies password against
// info, without performing a full decrypt. Callers that need to diagnose
// an interoperability mismatch (the password is right but one strategy
// silently fails) can use this instead of VerifyPassword's opaque result.
func ProbeIV(info *EncryptionInfo, password string) IVStrategy {
	if _, ok := tryPassword(info, password, deriveIVFromSalt); ok {
		return IVStrategyRawSalt
	}
	if _, ok := tryPassword(info, password, deriveIVFromHash); ok {
		return IVStrategyHashDerived
	}
	return IVStrategyUnknown
}
