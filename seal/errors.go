package seal

import "errors"

var (
	// ErrMalformedHeader is returned when the header's magic, version, or
	// enc_type does not match, or when declared field sizes don't sum to
	// the envelope length.
	ErrMalformedHeader = errors.New("seal: malformed header")
	// ErrUnknownVersion is returned for a header version this codec does
	// not implement.
	ErrUnknownVersion = errors.New("seal: unknown version")
	// ErrInvalidRecipientCount is returned for rcpt_count == 0 or > 255.
	ErrInvalidRecipientCount = errors.New("seal: invalid recipient count")
	// ErrEnvelopeTooLarge is returned when a declared size exceeds the
	// codec's configured cap, checked before any allocation.
	ErrEnvelopeTooLarge = errors.New("seal: envelope too large")
	// ErrNoRecipientsMatched is returned when no recipient entry could be
	// decapsulated and unwrapped with the caller's key.
	ErrNoRecipientsMatched = errors.New("seal: no recipient entry matched")
	// ErrDecryptionFailed is returned when the AEAD payload fails to open.
	ErrDecryptionFailed = errors.New("seal: decryption failed")
	// ErrIdentityMismatch is returned when SHA3-512(sender_pk_dsa) does not
	// equal the sender_fp carried in the decrypted payload.
	ErrIdentityMismatch = errors.New("seal: identity mismatch")
	// ErrSignatureInvalid is returned when the detached DSA-87 signature
	// over the plaintext fails to verify.
	ErrSignatureInvalid = errors.New("seal: signature invalid")
)
