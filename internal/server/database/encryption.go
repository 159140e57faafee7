package database

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// sealer encrypts credential blobs at rest with AES-GCM.
type sealer struct {
	key []byte
}

func (s sealer) encrypt(plaintext []byte) (string, error) {
	gcm, err := s.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())

	_, err = io.ReadFull(rand.Reader, nonce)
	if err != nil {
		return "", err
	}

	// Result is nonce + ciphertext
	return base64.StdEncoding.EncodeToString(gcm.Seal(nonce, nonce, plaintext, nil)), nil
}

func (s sealer) decrypt(cryptoText string) ([]byte, error) {
	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}

	data, err := base64.StdEncoding.DecodeString(cryptoText)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]

	return gcm.Open(nil, nonce, ciphertext, nil)
}

func (s sealer) gcm() (cipher.AEAD, error) {
	if len(s.key) == 0 {
		return nil, fmt.Errorf("encryption key not configured")
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(block)
}
