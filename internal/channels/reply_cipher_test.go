package channels

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCipherKey = []byte("0123456789abcdef0123456789abcdef")

// decryptReference decrypts with the standard library only, independent of
// ReplyCipher.Decrypt.
func decryptReference(t *testing.T, key []byte, encoded string) string {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(raw), 2*aes.BlockSize)
	require.Zero(t, len(raw)%aes.BlockSize)

	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	plain := make([]byte, len(raw)-aes.BlockSize)
	cipher.NewCBCDecrypter(block, raw[:aes.BlockSize]).CryptBlocks(plain, raw[aes.BlockSize:])

	pad := int(plain[len(plain)-1])
	require.True(t, pad >= 1 && pad <= aes.BlockSize, "pad byte %d", pad)
	require.Equal(t, bytes.Repeat([]byte{byte(pad)}, pad), plain[len(plain)-pad:])
	return string(plain[:len(plain)-pad])
}

func TestReplyCipher_RoundTrip(t *testing.T) {
	plaintexts := []string{
		"",
		"hello",
		"exactly16bytes!!",
		strings.Repeat("a", 100),
		"Привет, мир",
		"こんにちは 🌸",
	}

	for _, keyLen := range []int{16, 24, 32} {
		c, err := NewReplyCipher(testCipherKey[:keyLen])
		require.NoError(t, err)

		for _, p := range plaintexts {
			encoded, err := c.Encrypt(p)
			require.NoError(t, err)

			assert.Equal(t, p, decryptReference(t, testCipherKey[:keyLen], encoded), "key %d", keyLen)

			decrypted, err := c.Decrypt(encoded)
			require.NoError(t, err)
			assert.Equal(t, p, decrypted)
		}
	}
}

func TestReplyCipher_Layout(t *testing.T) {
	c, err := NewReplyCipher(testCipherKey)
	require.NoError(t, err)

	encoded, err := c.Encrypt("exactly16bytes!!")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	// IV plus two blocks: a full block of padding follows aligned input.
	assert.Len(t, raw, 3*aes.BlockSize)

	encoded, err = c.Encrypt("")
	require.NoError(t, err)
	raw, err = base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Len(t, raw, 2*aes.BlockSize)
}

func TestReplyCipher_FreshIVPerCall(t *testing.T) {
	c, err := NewReplyCipher(testCipherKey)
	require.NoError(t, err)

	const trials = 500
	seenIV := make(map[string]bool, trials)
	seenOutput := make(map[string]bool, trials)
	for i := 0; i < trials; i++ {
		encoded, err := c.Encrypt("same plaintext")
		require.NoError(t, err)
		raw, err := base64.StdEncoding.DecodeString(encoded)
		require.NoError(t, err)

		iv := string(raw[:aes.BlockSize])
		assert.False(t, seenIV[iv], "iv reused on trial %d", i)
		assert.False(t, seenOutput[encoded], "output repeated on trial %d", i)
		seenIV[iv] = true
		seenOutput[encoded] = true
	}
}

func TestReplyCipher_UsesRandomSourceForIV(t *testing.T) {
	c, err := NewReplyCipher(testCipherKey)
	require.NoError(t, err)
	fixedIV := bytes.Repeat([]byte{0xAB}, aes.BlockSize)
	c.rand = bytes.NewReader(fixedIV)

	encoded, err := c.Encrypt("hello")
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Equal(t, fixedIV, raw[:aes.BlockSize])

	// The source is exhausted; encryption must fail rather than reuse an IV.
	_, err = c.Encrypt("hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReplyEncryptFailed)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy unavailable") }

func TestReplyCipher_RandomSourceFailure(t *testing.T) {
	c, err := NewReplyCipher(testCipherKey)
	require.NoError(t, err)
	c.rand = failingReader{}

	_, err = c.Encrypt("hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReplyEncryptFailed)
}

func TestNewReplyCipher_RejectsInvalidKeyLength(t *testing.T) {
	for _, n := range []int{0, 15, 17, 23, 25, 31, 33} {
		_, err := NewReplyCipher(bytes.Repeat([]byte("k"), n))
		require.Error(t, err, "key length %d", n)
		assert.ErrorIs(t, err, ErrConfiguration)
	}
}

func TestReplyCipher_DecryptRejectsBadInput(t *testing.T) {
	c, err := NewReplyCipher(testCipherKey)
	require.NoError(t, err)

	tests := []struct {
		name    string
		encoded string
	}{
		{"not base64", "%%%"},
		{"iv only", base64.StdEncoding.EncodeToString(make([]byte, aes.BlockSize))},
		{"unaligned", base64.StdEncoding.EncodeToString(make([]byte, aes.BlockSize+5))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decrypt(tt.encoded)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrReplyDecryptFailed)
		})
	}
}

func TestReplyCipher_NilCipher(t *testing.T) {
	var c *ReplyCipher
	_, err := c.Encrypt("hello")
	assert.ErrorIs(t, err, ErrReplyCipherRequired)
	_, err = c.Decrypt("aGVsbG8=")
	assert.ErrorIs(t, err, ErrReplyCipherRequired)
}

func TestPKCS7Unpad_RejectsInvalidPadding(t *testing.T) {
	block := bytes.Repeat([]byte{0x01}, aes.BlockSize)
	block[aes.BlockSize-1] = 0x00
	_, err := pkcs7Unpad(block, aes.BlockSize)
	require.Error(t, err)

	block[aes.BlockSize-1] = 0x11
	_, err = pkcs7Unpad(block, aes.BlockSize)
	require.Error(t, err)

	block = bytes.Repeat([]byte{0x03}, aes.BlockSize)
	block[aes.BlockSize-2] = 0x02
	_, err = pkcs7Unpad(block, aes.BlockSize)
	require.Error(t, err)
}
