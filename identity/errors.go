package identity

import "errors"

var (
	// ErrMnemonicInvalid is returned when a mnemonic fails validation before
	// derivation is attempted.
	ErrMnemonicInvalid = errors.New("identity: mnemonic invalid")
	// ErrPasswordIncorrect is returned when a password-wrapped store fails
	// to decrypt because the password is wrong, as distinct from corruption.
	ErrPasswordIncorrect = errors.New("identity: password incorrect")
	// ErrRecordCorrupt is returned when a stored identity file is malformed
	// or its magic/structure does not parse, independent of password.
	ErrRecordCorrupt = errors.New("identity: record corrupt")
	// ErrRecordSignatureInvalid is returned when an identity record's
	// signature does not verify under its own dsa_public_key.
	ErrRecordSignatureInvalid = errors.New("identity: record signature invalid")
	// ErrFingerprintMismatch is returned when fingerprint != SHA3-512(dsa_public_key).
	ErrFingerprintMismatch = errors.New("identity: fingerprint mismatch")
	// ErrInvalidName is returned when a registered name fails the length or
	// charset invariant from spec §3.
	ErrInvalidName = errors.New("identity: invalid name")
	// ErrInvalidTimestamps is returned when updated_at < created_at.
	ErrInvalidTimestamps = errors.New("identity: invalid timestamps")
	// ErrInvalidInput is returned for malformed record fields outside the
	// name/timestamp checks above (e.g. an oversized avatar).
	ErrInvalidInput = errors.New("identity: invalid input")
)
