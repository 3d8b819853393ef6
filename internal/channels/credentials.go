package channels

import (
	"fmt"
	"strings"

	"github.com/valinor-ai/linerelay/internal/platform/config"
)

// Credentials holds the channel secret, the reply API bearer token and the
// reply cipher key. Built once at startup and never mutated.
type Credentials struct {
	ChannelSecret []byte
	AccessToken   string
	CipherKey     []byte
}

// NewCredentials validates the LINE configuration. The encryption key is
// used as the raw bytes of the configured string and must be 16, 24 or 32
// bytes long (AES-128/192/256).
func NewCredentials(cfg config.LineConfig) (Credentials, error) {
	var missing []string
	if cfg.ChannelSecret == "" {
		missing = append(missing, "channel secret")
	}
	if cfg.ChannelAccessToken == "" {
		missing = append(missing, "channel access token")
	}
	if cfg.EncryptionKey == "" {
		missing = append(missing, "encryption key")
	}
	if len(missing) > 0 {
		return Credentials{}, fmt.Errorf("%w: missing %s", ErrConfiguration, strings.Join(missing, ", "))
	}

	key := []byte(cfg.EncryptionKey)
	if !validCipherKeyLength(len(key)) {
		return Credentials{}, fmt.Errorf("%w: encryption key must be 16, 24, or 32 bytes long, got %d", ErrConfiguration, len(key))
	}

	return Credentials{
		ChannelSecret: []byte(cfg.ChannelSecret),
		AccessToken:   cfg.ChannelAccessToken,
		CipherKey:     key,
	}, nil
}

func validCipherKeyLength(n int) bool {
	switch n {
	case 16, 24, 32:
		return true
	default:
		return false
	}
}
