package crypto_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/inboxai/inboxd/common/crypto"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, crypto.KeySize)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	plaintext := []byte("1//0gRefreshTokenValue")

	sealed, err := crypto.Encrypt(testKey(), plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(sealed, plaintext) {
		t.Fatal("ciphertext contains plaintext")
	}

	got, err := crypto.Decrypt(testKey(), sealed)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: got %q", got)
	}
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	sealed, err := crypto.Encrypt(testKey(), []byte("secret"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	other := bytes.Repeat([]byte{0x24}, crypto.KeySize)
	if _, err := crypto.Decrypt(other, sealed); err == nil {
		t.Fatal("expected authentication failure with wrong key")
	}
}

func TestEncrypt_RejectsBadKeySize(t *testing.T) {
	if _, err := crypto.Encrypt([]byte("short"), []byte("x")); err != crypto.ErrInvalidKeySize {
		t.Fatalf("expected ErrInvalidKeySize, got %v", err)
	}
}

func TestDecrypt_RejectsTruncatedCiphertext(t *testing.T) {
	if _, err := crypto.Decrypt(testKey(), []byte{1, 2, 3}); err != crypto.ErrCiphertextTooShort {
		t.Fatalf("expected ErrCiphertextTooShort, got %v", err)
	}
}

func TestEncryptString_RoundTrip(t *testing.T) {
	encoded, err := crypto.EncryptString(testKey(), "token-value")
	if err != nil {
		t.Fatalf("encrypt string: %v", err)
	}
	if strings.Contains(encoded, "token-value") {
		t.Fatal("encoded ciphertext contains plaintext")
	}
	got, err := crypto.DecryptString(testKey(), encoded)
	if err != nil {
		t.Fatalf("decrypt string: %v", err)
	}
	if got != "token-value" {
		t.Fatalf("round trip mismatch: got %q", got)
	}
}

func TestParseMasterKey(t *testing.T) {
	key, err := crypto.ParseMasterKey(strings.Repeat("ab", crypto.KeySize))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(key) != crypto.KeySize {
		t.Fatalf("expected %d bytes, got %d", crypto.KeySize, len(key))
	}

	for _, bad := range []string{"", "zz", strings.Repeat("ab", 8)} {
		if _, err := crypto.ParseMasterKey(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
