package rgpd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestProvisionAndLoadKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "field.key")

	if err := ProvisionKey(path); err != nil {
		t.Fatalf("ProvisionKey: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat keystore: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("keystore permissions = %o, want 600", perm)
	}

	key, err := LoadKey(path)
	if err != nil {
		t.Fatalf("LoadKey: %v", err)
	}
	if len(key) != KeySize {
		t.Fatalf("key length = %d, want %d", len(key), KeySize)
	}
}

func TestProvisionKeyRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "field.key")
	if err := ProvisionKey(path); err != nil {
		t.Fatalf("ProvisionKey: %v", err)
	}

	before, _ := os.ReadFile(path)
	if err := ProvisionKey(path); err == nil {
		t.Fatal("second ProvisionKey succeeded, want refusal")
	}
	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Fatal("keystore content changed after refused overwrite")
	}
}

func TestLoadKeyMissingFile(t *testing.T) {
	_, err := LoadKey(filepath.Join(t.TempDir(), "absent.key"))
	if !errors.Is(err, ErrKeyNotProvisioned) {
		t.Fatalf("got %v, want ErrKeyNotProvisioned", err)
	}
}

func TestLoadKeyRejectsBadContent(t *testing.T) {
	t.Run("not hex", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.key")
		os.WriteFile(path, []byte("zz not hex zz"), 0o600)
		if _, err := LoadKey(path); err == nil {
			t.Fatal("LoadKey accepted non-hex content")
		}
	})

	t.Run("wrong length", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "short.key")
		os.WriteFile(path, []byte("deadbeef"), 0o600)
		if _, err := LoadKey(path); err == nil {
			t.Fatal("LoadKey accepted 4-byte key")
		}
	})
}
