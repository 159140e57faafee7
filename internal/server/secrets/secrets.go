package secrets

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/SherClockHolmes/webpush-go"
)

const (
	defaultKeySize = 32

	vapidPrivateKeyFile = "vapid_private.key"
	vapidPublicKeyFile  = "vapid_public.key"
)

// VAPIDKeys is the signing identity used for web push delivery.
type VAPIDKeys struct {
	PublicKey  string `json:"publicKey" yaml:"publicKey"`
	PrivateKey string `json:"privateKey" yaml:"privateKey"`
}

// Complete reports whether both halves of the keypair are present.
func (k VAPIDKeys) Complete() bool {
	return k.PublicKey != "" && k.PrivateKey != ""
}

// LoadOrCreateKey loads a 32-byte encryption key from the specified path,
// or creates a new one if it does not exist.
// Returns (true, key, nil) if loaded from disk, (false, key, nil) if newly created.
func LoadOrCreateKey(path string) (bool, []byte, error) {
	// Clean the path to remove ../ and other traversal shortcuts
	cleanPath := filepath.Clean(path)

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			key := make([]byte, defaultKeySize)
			_, err := rand.Read(key)
			if err != nil {
				return false, nil, fmt.Errorf("failed to generate random key: %w", err)
			}

			err = os.WriteFile(cleanPath, key, 0600)
			if err != nil {
				return false, nil, fmt.Errorf("failed to write new key file: %w", err)
			}

			return false, key, nil
		}

		return false, nil, fmt.Errorf("unexpected error reading key file: %w", err)
	}

	if len(data) != defaultKeySize {
		return false, nil, fmt.Errorf("invalid key size: expected %d bytes, got %d", defaultKeySize, len(data))
	}

	return true, data, nil
}

// GenerateVAPIDKeys creates a fresh VAPID keypair.
func GenerateVAPIDKeys() (VAPIDKeys, error) {
	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return VAPIDKeys{}, fmt.Errorf("failed to generate VAPID keys: %w", err)
	}

	return VAPIDKeys{PublicKey: publicKey, PrivateKey: privateKey}, nil
}

// LoadOrCreateVAPIDKeys reads the VAPID keypair stored in dir, generating and
// persisting a new one when either file is missing.
func LoadOrCreateVAPIDKeys(dir string) (VAPIDKeys, error) {
	privPath := filepath.Join(filepath.Clean(dir), vapidPrivateKeyFile)
	pubPath := filepath.Join(filepath.Clean(dir), vapidPublicKeyFile)

	privBuf, errPriv := os.ReadFile(privPath)
	pubBuf, errPub := os.ReadFile(pubPath)

	if errPriv == nil && errPub == nil {
		return VAPIDKeys{
			PublicKey:  strings.TrimSpace(string(pubBuf)),
			PrivateKey: strings.TrimSpace(string(privBuf)),
		}, nil
	}

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return VAPIDKeys{}, err
	}

	keys, err := GenerateVAPIDKeys()
	if err != nil {
		return VAPIDKeys{}, err
	}

	err = os.WriteFile(privPath, []byte(keys.PrivateKey), 0600)
	if err != nil {
		return VAPIDKeys{}, err
	}

	err = os.WriteFile(pubPath, []byte(keys.PublicKey), 0600)
	if err != nil {
		return VAPIDKeys{}, err
	}

	return keys, nil
}
