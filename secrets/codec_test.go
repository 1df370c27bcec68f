package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T) *SecretboxCodec {
	key, err := GenerateKey()
	require.NoError(t, err)
	codec, err := NewSecretboxCodec(key)
	require.NoError(t, err)
	return codec
}

func TestSecretboxCodec(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		codec := newTestCodec(t)

		sealed, err := codec.Encrypt("ya29.access-token")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(sealed, secretboxPrefix))
		assert.NotContains(t, sealed, "ya29")

		opened, err := codec.Decrypt(sealed)
		require.NoError(t, err)
		assert.Equal(t, "ya29.access-token", opened)
	})

	t.Run("nonce differs per encryption", func(t *testing.T) {
		codec := newTestCodec(t)

		first, err := codec.Encrypt("same")
		require.NoError(t, err)
		second, err := codec.Encrypt("same")
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("wrong key fails", func(t *testing.T) {
		sealed, err := newTestCodec(t).Encrypt("secret")
		require.NoError(t, err)

		_, err = newTestCodec(t).Decrypt(sealed)
		assert.ErrorIs(t, err, ErrMalformedCiphertext)
	})

	t.Run("unprefixed value is rejected", func(t *testing.T) {
		_, err := newTestCodec(t).Decrypt("plain-token")
		assert.ErrorIs(t, err, ErrMalformedCiphertext)
	})

	t.Run("truncated value is rejected", func(t *testing.T) {
		_, err := newTestCodec(t).Decrypt(secretboxPrefix + "AAAA")
		assert.ErrorIs(t, err, ErrMalformedCiphertext)
	})
}

func TestNewSecretboxCodecValidatesKey(t *testing.T) {
	_, err := NewSecretboxCodec("not base64 !!")
	assert.Error(t, err)

	_, err = NewSecretboxCodec("c2hvcnQ=")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be 32 bytes")
}

func TestPlaintextCodec(t *testing.T) {
	var codec Codec = PlaintextCodec{}
	sealed, err := codec.Encrypt("value")
	require.NoError(t, err)
	opened, err := codec.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "value", opened)
}

func TestNewCodec(t *testing.T) {
	codec, err := NewCodec("")
	require.NoError(t, err)
	assert.IsType(t, PlaintextCodec{}, codec)

	key, err := GenerateKey()
	require.NoError(t, err)
	codec, err = NewCodec(key)
	require.NoError(t, err)
	assert.IsType(t, &SecretboxCodec{}, codec)

	_, err = NewCodec("not-a-key")
	require.Error(t, err)
}
