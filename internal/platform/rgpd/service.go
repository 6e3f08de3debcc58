package rgpd

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Service provides field-level encryption for the application. It wraps a
// FieldCipher and adds a disabled mode for development environments where no
// keystore is configured. Production configuration validation rejects the
// disabled mode before this point.
type Service struct {
	cipher  FieldCipher
	enabled bool
}

// NewService loads the key from the keystore at keyPath and builds the codec.
//
// If keyPath is empty, encryption is disabled (development mode) and a
// warning is logged; Encrypt/Decrypt become pass-throughs. A configured but
// missing keystore surfaces ErrKeyNotProvisioned so the process refuses to
// start instead of generating a key implicitly.
func NewService(keyPath string, logger zerolog.Logger) (*Service, error) {
	if keyPath == "" {
		logger.Warn().Msg("field encryption disabled: ENCRYPTION_KEY_FILE is not set")
		return &Service{enabled: false}, nil
	}

	key, err := LoadKey(keyPath)
	if err != nil {
		return nil, err
	}

	codec, err := NewCodec(key)
	if err != nil {
		return nil, fmt.Errorf("create field codec: %w", err)
	}

	logger.Info().Msg("field-level encryption enabled")
	return &Service{cipher: codec, enabled: true}, nil
}

// Cipher returns the underlying FieldCipher, or nil when encryption is
// disabled. Repositories accept a nil cipher and store values in clear.
func (s *Service) Cipher() FieldCipher {
	return s.cipher
}

// IsEnabled returns true if encryption is active.
func (s *Service) IsEnabled() bool {
	return s.enabled
}
