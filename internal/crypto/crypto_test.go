package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() string {
	return base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	cipher, err := NewCipher(testKey())
	require.NoError(t, err)

	ciphertext, err := cipher.Encrypt("imap-password-123")
	require.NoError(t, err)
	assert.NotEqual(t, "imap-password-123", ciphertext)

	plaintext, err := cipher.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "imap-password-123", plaintext)
}

func TestEncryptProducesDistinctCiphertexts(t *testing.T) {
	cipher, err := NewCipher(testKey())
	require.NoError(t, err)

	first, err := cipher.Encrypt("same input")
	require.NoError(t, err)
	second, err := cipher.Encrypt("same input")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	cipher, err := NewCipher(testKey())
	require.NoError(t, err)

	ciphertext, err := cipher.Encrypt("secret")
	require.NoError(t, err)

	otherKey := base64.StdEncoding.EncodeToString([]byte("fedcba9876543210fedcba9876543210"))
	other, err := NewCipher(otherKey)
	require.NoError(t, err)

	_, err = other.Decrypt(ciphertext)
	assert.Error(t, err)
}

func TestNewCipherRejectsBadKeys(t *testing.T) {
	_, err := NewCipher("not base64 at all!!!")
	assert.Error(t, err)

	short := base64.StdEncoding.EncodeToString([]byte("too short"))
	_, err = NewCipher(short)
	assert.Error(t, err)
}

func TestDecryptRejectsGarbage(t *testing.T) {
	cipher, err := NewCipher(testKey())
	require.NoError(t, err)

	_, err = cipher.Decrypt("zm9vYmFy")
	assert.Error(t, err)
}
