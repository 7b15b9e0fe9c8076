package identity

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFromMnemonicDeterministic(t *testing.T) {
	id1, err := GenerateFromMnemonic("witch collapse practice feed shame open despair creek road again ice least", "")
	require.NoError(t, err)
	id2, err := GenerateFromMnemonic("witch collapse practice feed shame open despair creek road again ice least", "")
	require.NoError(t, err)

	assert.Equal(t, id1.Record.Fingerprint, id2.Record.Fingerprint)
	assert.Equal(t, id1.Record.DSAPublicKey, id2.Record.DSAPublicKey)
	assert.Equal(t, id1.Record.KEMPublicKey, id2.Record.KEMPublicKey)
	assert.Equal(t, id1.DSAPrivateKey, id2.DSAPrivateKey)
	assert.Equal(t, id1.KEMPrivateKey, id2.KEMPrivateKey)
}

func TestGenerateFromMnemonicPassphraseChangesKeys(t *testing.T) {
	id1, err := GenerateFromMnemonic("witch collapse practice feed shame open despair creek road again ice least", "")
	require.NoError(t, err)
	id2, err := GenerateFromMnemonic("witch collapse practice feed shame open despair creek road again ice least", "extra")
	require.NoError(t, err)

	assert.NotEqual(t, id1.Record.Fingerprint, id2.Record.Fingerprint)
}

func TestGenerateFromMnemonicRejectsEmpty(t *testing.T) {
	_, err := GenerateFromMnemonic("", "")
	assert.ErrorIs(t, err, ErrMnemonicInvalid)
}

func TestSignAndVerifyRecordRoundTrip(t *testing.T) {
	id, err := GenerateFromMnemonic("legal winner thank year wave sausage worth useful legal winner thank yellow", "")
	require.NoError(t, err)

	now := time.Now().Unix()
	id.Record.DisplayName = "Ada"
	id.Record.CreatedAt = now
	id.Record.UpdatedAt = now
	id.Record.Timestamp = now

	require.NoError(t, SignRecord(id.DSAPrivateKey, &id.Record))
	assert.NoError(t, VerifyRecord(&id.Record))
}

func TestVerifyRecordRejectsTamperedField(t *testing.T) {
	id, err := GenerateFromMnemonic("legal winner thank year wave sausage worth useful legal winner thank yellow", "")
	require.NoError(t, err)

	now := time.Now().Unix()
	id.Record.CreatedAt = now
	id.Record.UpdatedAt = now
	require.NoError(t, SignRecord(id.DSAPrivateKey, &id.Record))

	id.Record.DisplayName = "tampered"
	assert.ErrorIs(t, VerifyRecord(&id.Record), ErrRecordSignatureInvalid)
}

func TestVerifyRecordRejectsFingerprintMismatch(t *testing.T) {
	id, err := GenerateFromMnemonic("legal winner thank year wave sausage worth useful legal winner thank yellow", "")
	require.NoError(t, err)
	require.NoError(t, SignRecord(id.DSAPrivateKey, &id.Record))

	id.Record.Fingerprint = "00"
	assert.ErrorIs(t, VerifyRecord(&id.Record), ErrFingerprintMismatch)
}

func TestValidateRejectsBadName(t *testing.T) {
	r := Record{Name: "ab"}
	assert.ErrorIs(t, r.Validate(), ErrInvalidName)

	r2 := Record{Name: "bad name!", NameRegisteredAt: 0, NameExpiresAt: nameValiditySeconds}
	assert.ErrorIs(t, r2.Validate(), ErrInvalidName)
}

func TestValidateRejectsTimestampOrder(t *testing.T) {
	r := Record{CreatedAt: 100, UpdatedAt: 50}
	assert.ErrorIs(t, r.Validate(), ErrInvalidTimestamps)
}

func TestSaveLoadEncryptedRoundTrip(t *testing.T) {
	id, err := GenerateFromMnemonic("legal winner thank year wave sausage worth useful legal winner thank yellow", "")
	require.NoError(t, err)
	require.NoError(t, SignRecord(id.DSAPrivateKey, &id.Record))

	dir := t.TempDir()
	path := filepath.Join(dir, "identity.dnak")
	require.NoError(t, SaveEncrypted(id, path, "hunter2"))

	loaded, err := LoadEncrypted(path, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, id.Record.Fingerprint, loaded.Record.Fingerprint)
	assert.Equal(t, id.DSAPrivateKey, loaded.DSAPrivateKey)
	assert.Equal(t, id.KEMPrivateKey, loaded.KEMPrivateKey)
}

func TestLoadEncryptedWrongPassword(t *testing.T) {
	id, err := GenerateFromMnemonic("legal winner thank year wave sausage worth useful legal winner thank yellow", "")
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "identity.dnak")
	require.NoError(t, SaveEncrypted(id, path, "hunter2"))

	_, err = LoadEncrypted(path, "wrong")
	assert.ErrorIs(t, err, ErrPasswordIncorrect)
}

func TestSaveLoadUnencrypted(t *testing.T) {
	id, err := GenerateFromMnemonic("legal winner thank year wave sausage worth useful legal winner thank yellow", "")
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "identity.plain")
	require.NoError(t, SaveEncrypted(id, path, ""))

	loaded, err := LoadEncrypted(path, "")
	require.NoError(t, err)
	assert.Equal(t, id.Record.Fingerprint, loaded.Record.Fingerprint)
}

func TestLoadEncryptedCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage")
	require.NoError(t, os.WriteFile(path, []byte("not an identity file"), 0o600))

	_, err := LoadEncrypted(path, "")
	assert.ErrorIs(t, err, ErrRecordCorrupt)
}
