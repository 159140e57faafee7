package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateKey(t *testing.T) {
	tmpDir := t.TempDir()
	keyPath := filepath.Join(tmpDir, "test.key")

	t.Run("creates a new key if none exists", func(t *testing.T) {
		loaded, key, err := LoadOrCreateKey(keyPath)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if loaded {
			t.Error("expected key to be reported as newly created")
		}

		if len(key) != defaultKeySize {
			t.Errorf("expected %d bytes, got %d", defaultKeySize, len(key))
		}

		if _, err := os.Stat(keyPath); os.IsNotExist(err) {
			t.Error("expected key file to be created on disk")
		}
	})

	t.Run("loads existing key from disk", func(t *testing.T) {
		originalKey, _ := os.ReadFile(keyPath)

		loaded, loadedKey, err := LoadOrCreateKey(keyPath)
		if err != nil {
			t.Fatalf("expected no error loading existing key, got %v", err)
		}

		if !loaded {
			t.Error("expected key to be reported as loaded")
		}

		if string(originalKey) != string(loadedKey) {
			t.Error("expected loaded key to match original key, but it was different")
		}
	})

	t.Run("returns error for invalid key size", func(t *testing.T) {
		badKeyPath := filepath.Join(tmpDir, "bad.key")
		_ = os.WriteFile(badKeyPath, []byte("too-short-key!!"), 0600)

		_, _, err := LoadOrCreateKey(badKeyPath)
		if err == nil {
			t.Error("expected error for invalid key size, got nil")
		}
	})

	t.Run("enforces restrictive permissions on new files", func(t *testing.T) {
		permKeyPath := filepath.Join(tmpDir, "perm.key")
		_, _, _ = LoadOrCreateKey(permKeyPath)

		info, err := os.Stat(permKeyPath)
		if err != nil {
			t.Fatal(err)
		}

		expectedPerm := os.FileMode(0600)
		if info.Mode().Perm() != expectedPerm {
			t.Errorf("expected permissions %v, got %v", expectedPerm, info.Mode().Perm())
		}
	})
}

func TestLoadOrCreateVAPIDKeys(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vapid")

	created, err := LoadOrCreateVAPIDKeys(dir)
	require.NoError(t, err)
	assert.True(t, created.Complete())

	reloaded, err := LoadOrCreateVAPIDKeys(dir)
	require.NoError(t, err)
	assert.Equal(t, created, reloaded, "existing keys should be reused")
}

func TestVAPIDKeysComplete(t *testing.T) {
	assert.False(t, VAPIDKeys{}.Complete())
	assert.False(t, VAPIDKeys{PublicKey: "pub"}.Complete())
	assert.False(t, VAPIDKeys{PrivateKey: "priv"}.Complete())
	assert.True(t, VAPIDKeys{PublicKey: "pub", PrivateKey: "priv"}.Complete())
}
