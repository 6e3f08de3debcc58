package rgpd

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// ErrKeyNotProvisioned is returned by LoadKey when the keystore file does not
// exist. A missing key requires an explicit provisioning step (the keygen
// command); it is never generated implicitly, so that a misplaced keystore
// path fails the boot instead of silently encrypting with a fresh key that
// can never decrypt existing data.
var ErrKeyNotProvisioned = errors.New("encryption key not provisioned")

// LoadKey reads the AES-256 key from the keystore file at path. The file
// holds the key hex-encoded (64 characters). Key material is returned to the
// caller and must never be logged.
func LoadKey(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("keystore %s: %w", path, ErrKeyNotProvisioned)
		}
		return nil, fmt.Errorf("keystore %s: %w", path, err)
	}

	key, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("keystore %s: key is not valid hex: %w", path, err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("keystore %s: key must be %d bytes (%d hex chars), got %d bytes",
			path, KeySize, KeySize*2, len(key))
	}
	return key, nil
}

// ProvisionKey generates a new random key and writes it hex-encoded to path
// with owner-only permissions. It refuses to overwrite an existing keystore.
func ProvisionKey(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("keystore %s already exists; refusing to overwrite", path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("keystore %s: %w", path, err)
	}

	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("generate key: %w", err)
	}

	if err := os.WriteFile(path, []byte(hex.EncodeToString(key)+"\n"), 0o600); err != nil {
		return fmt.Errorf("write keystore %s: %w", path, err)
	}
	return nil
}
