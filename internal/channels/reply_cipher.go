package channels

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

var (
	ErrReplyCipherRequired = errors.New("reply cipher is required")
	ErrReplyEncryptFailed  = errors.New("reply encryption failed")
	ErrReplyDecryptFailed  = errors.New("reply decryption failed")
)

// ReplyCipher encrypts reply text with AES-CBC and PKCS#7 padding. Output
// is base64(IV || ciphertext) with a fresh random IV per call.
type ReplyCipher struct {
	block cipher.Block
	rand  io.Reader
}

// NewReplyCipher creates a reply cipher from a 16, 24 or 32 byte key.
func NewReplyCipher(key []byte) (*ReplyCipher, error) {
	if !validCipherKeyLength(len(key)) {
		return nil, fmt.Errorf("%w: key must be 16, 24, or 32 bytes long", ErrConfiguration)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: new cipher: %v", ErrConfiguration, err)
	}
	return &ReplyCipher{block: block, rand: rand.Reader}, nil
}

// Encrypt pads and encrypts plaintext under a newly generated IV.
func (c *ReplyCipher) Encrypt(plaintext string) (string, error) {
	if c == nil || c.block == nil {
		return "", ErrReplyCipherRequired
	}

	blockSize := c.block.BlockSize()
	padded := pkcs7Pad([]byte(plaintext), blockSize)

	payload := make([]byte, blockSize+len(padded))
	iv := payload[:blockSize]
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return "", fmt.Errorf("%w: generating iv: %v", ErrReplyEncryptFailed, err)
	}

	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(payload[blockSize:], padded)
	return base64.StdEncoding.EncodeToString(payload), nil
}

// Decrypt reverses Encrypt.
func (c *ReplyCipher) Decrypt(encoded string) (string, error) {
	if c == nil || c.block == nil {
		return "", ErrReplyCipherRequired
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: decoding payload: %v", ErrReplyDecryptFailed, err)
	}

	blockSize := c.block.BlockSize()
	if len(raw) < 2*blockSize || len(raw)%blockSize != 0 {
		return "", fmt.Errorf("%w: payload length %d is invalid", ErrReplyDecryptFailed, len(raw))
	}

	iv := raw[:blockSize]
	plain := make([]byte, len(raw)-blockSize)
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(plain, raw[blockSize:])

	unpadded, err := pkcs7Unpad(plain, blockSize)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrReplyDecryptFailed, err)
	}
	return string(unpadded), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("padded data is not block aligned")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}
