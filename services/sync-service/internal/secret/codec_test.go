package secret

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(key)
}

func TestRoundTrip(t *testing.T) {
	codec, err := NewCodec(testKey(t))
	require.NoError(t, err)

	ciphertext, err := codec.Encrypt("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", ciphertext)

	plaintext, err := codec.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", plaintext)
}

func TestEncryptProducesFreshNonce(t *testing.T) {
	codec, err := NewCodec(testKey(t))
	require.NoError(t, err)

	a, err := codec.Encrypt("same secret")
	require.NoError(t, err)
	b, err := codec.Encrypt("same secret")
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "two encryptions of the same secret should differ")
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	codec, err := NewCodec(testKey(t))
	require.NoError(t, err)
	other, err := NewCodec(testKey(t))
	require.NoError(t, err)

	ciphertext, err := codec.Encrypt("secret")
	require.NoError(t, err)

	_, err = other.Decrypt(ciphertext)
	assert.Error(t, err)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	codec, err := NewCodec(testKey(t))
	require.NoError(t, err)

	ciphertext, err := codec.Encrypt("secret")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	_, err = codec.Decrypt(tampered)
	assert.Error(t, err)
}

func TestNewCodecRejectsBadKey(t *testing.T) {
	_, err := NewCodec("not-base64!!!")
	assert.Error(t, err)

	short := base64.StdEncoding.EncodeToString([]byte("too short"))
	_, err = NewCodec(short)
	assert.Error(t, err)
}
