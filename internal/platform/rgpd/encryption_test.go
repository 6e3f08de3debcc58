package rgpd

import (
	"encoding/base64"
	"errors"
	"testing"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestCodecRoundTrip(t *testing.T) {
	codec, err := NewCodec(testKey(t))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	cases := []string{
		"Dupont",
		"1 85 12 75 108 111 42",
		"user@example.com",
		"avec des accents: éàü",
	}
	for _, plaintext := range cases {
		t.Run(plaintext, func(t *testing.T) {
			ct, err := codec.Encrypt(plaintext)
			if err != nil {
				t.Fatalf("Encrypt: %v", err)
			}
			if ct == plaintext {
				t.Fatal("ciphertext equals plaintext")
			}
			got, err := codec.Decrypt(ct)
			if err != nil {
				t.Fatalf("Decrypt: %v", err)
			}
			if got != plaintext {
				t.Fatalf("round trip: got %q, want %q", got, plaintext)
			}
		})
	}
}

func TestCodecEmptyStringPassthrough(t *testing.T) {
	codec, err := NewCodec(testKey(t))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	ct, err := codec.Encrypt("")
	if err != nil || ct != "" {
		t.Fatalf("Encrypt(\"\") = %q, %v; want \"\", nil", ct, err)
	}
	pt, err := codec.Decrypt("")
	if err != nil || pt != "" {
		t.Fatalf("Decrypt(\"\") = %q, %v; want \"\", nil", pt, err)
	}
}

func TestCodecNonDeterministic(t *testing.T) {
	codec, err := NewCodec(testKey(t))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	a, _ := codec.Encrypt("same value")
	b, _ := codec.Encrypt("same value")
	if a == b {
		t.Fatal("two encryptions of the same value produced identical ciphertexts")
	}
}

func TestCodecDecryptFailsClosed(t *testing.T) {
	codec, err := NewCodec(testKey(t))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	t.Run("invalid base64", func(t *testing.T) {
		_, err := codec.Decrypt("not-base64!!!")
		if !errors.Is(err, ErrCipherIntegrity) {
			t.Fatalf("got %v, want ErrCipherIntegrity", err)
		}
	})

	t.Run("too short", func(t *testing.T) {
		short := base64.StdEncoding.EncodeToString([]byte{1, 2, 3})
		_, err := codec.Decrypt(short)
		if !errors.Is(err, ErrCipherIntegrity) {
			t.Fatalf("got %v, want ErrCipherIntegrity", err)
		}
	})

	t.Run("tampered ciphertext", func(t *testing.T) {
		ct, err := codec.Encrypt("secret value")
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		raw, _ := base64.StdEncoding.DecodeString(ct)
		raw[len(raw)-1] ^= 0xFF
		_, err = codec.Decrypt(base64.StdEncoding.EncodeToString(raw))
		if !errors.Is(err, ErrCipherIntegrity) {
			t.Fatalf("got %v, want ErrCipherIntegrity", err)
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		other := testKey(t)
		other[0] ^= 0xFF
		otherCodec, err := NewCodec(other)
		if err != nil {
			t.Fatalf("NewCodec: %v", err)
		}
		ct, err := codec.Encrypt("secret value")
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		_, err = otherCodec.Decrypt(ct)
		if !errors.Is(err, ErrCipherIntegrity) {
			t.Fatalf("got %v, want ErrCipherIntegrity", err)
		}
	})
}

func TestNewCodecRejectsBadKeyLength(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33} {
		if _, err := NewCodec(make([]byte, n)); err == nil {
			t.Errorf("NewCodec accepted %d-byte key", n)
		}
	}
}
