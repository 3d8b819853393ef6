package channels

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valinor-ai/linerelay/internal/platform/config"
)

func testLineConfig(keyLen int) config.LineConfig {
	return config.LineConfig{
		ChannelSecret:      "line-channel-secret",
		ChannelAccessToken: "line-access-token",
		EncryptionKey:      strings.Repeat("k", keyLen),
	}
}

func TestNewCredentials_KeyLengthGate(t *testing.T) {
	for _, n := range []int{16, 24, 32} {
		creds, err := NewCredentials(testLineConfig(n))
		require.NoError(t, err, "key length %d", n)
		assert.Len(t, creds.CipherKey, n)
	}

	for _, n := range []int{1, 15, 17, 23, 25, 31, 33, 64} {
		_, err := NewCredentials(testLineConfig(n))
		require.Error(t, err, "key length %d", n)
		assert.ErrorIs(t, err, ErrConfiguration)
	}
}

func TestNewCredentials_KeyLengthCountsBytes(t *testing.T) {
	cfg := testLineConfig(0)
	// 8 two-byte runes: 8 characters, 16 bytes.
	cfg.EncryptionKey = strings.Repeat("é", 8)

	creds, err := NewCredentials(cfg)
	require.NoError(t, err)
	assert.Len(t, creds.CipherKey, 16)
}

func TestNewCredentials_MissingValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.LineConfig)
		want   string
	}{
		{"channel secret", func(c *config.LineConfig) { c.ChannelSecret = "" }, "channel secret"},
		{"access token", func(c *config.LineConfig) { c.ChannelAccessToken = "" }, "channel access token"},
		{"encryption key", func(c *config.LineConfig) { c.EncryptionKey = "" }, "encryption key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testLineConfig(32)
			tt.mutate(&cfg)

			_, err := NewCredentials(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfiguration)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewCredentials_ErrorDoesNotLeakKey(t *testing.T) {
	cfg := testLineConfig(0)
	cfg.EncryptionKey = "fifteen-byte-ke"

	_, err := NewCredentials(cfg)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), cfg.EncryptionKey)
}
