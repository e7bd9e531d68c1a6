package crypto

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"
)

func testKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return base64.StdEncoding.EncodeToString(key)
}

func TestNewAESEncryptorKeyValidation(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"not base64", "%%%not-base64%%%"},
		{"wrong length", base64.StdEncoding.EncodeToString([]byte("short"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewAESEncryptor(tt.key); err == nil {
				t.Errorf("NewAESEncryptor(%q) accepted a bad key", tt.key)
			}
		})
	}

	if _, err := NewAESEncryptor(testKey(t)); err != nil {
		t.Fatalf("valid key rejected: %v", err)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := NewAESEncryptor(testKey(t))
	if err != nil {
		t.Fatal(err)
	}

	plaintexts := [][]byte{
		[]byte("oauth:shhhhsecrettoken"),
		[]byte("x"),
		bytes.Repeat([]byte("long "), 1000),
	}
	for _, pt := range plaintexts {
		ct, err := enc.Encrypt(pt)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		if bytes.Contains(ct, pt) {
			t.Fatal("ciphertext contains the plaintext")
		}
		got, err := enc.Decrypt(ct)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if !bytes.Equal(got, pt) {
			t.Fatalf("round trip mismatch: %q != %q", got, pt)
		}
	}
}

func TestEncryptEmptyPlaintext(t *testing.T) {
	enc, _ := NewAESEncryptor(testKey(t))
	if _, err := enc.Encrypt(nil); err == nil {
		t.Fatal("empty plaintext accepted")
	}
}

func TestEncryptNoncesDiffer(t *testing.T) {
	enc, _ := NewAESEncryptor(testKey(t))
	a, _ := enc.Encrypt([]byte("same input"))
	b, _ := enc.Encrypt([]byte("same input"))
	if bytes.Equal(a, b) {
		t.Fatal("two encryptions of the same plaintext are identical")
	}
}

func TestDecryptRejectsTampering(t *testing.T) {
	enc, _ := NewAESEncryptor(testKey(t))
	ct, _ := enc.Encrypt([]byte("secret"))

	ct[len(ct)-1] ^= 0x01
	if _, err := enc.Decrypt(ct); err == nil {
		t.Fatal("tampered ciphertext decrypted")
	}
}

func TestDecryptRejectsShortCiphertext(t *testing.T) {
	enc, _ := NewAESEncryptor(testKey(t))
	if _, err := enc.Decrypt([]byte{1, 2, 3}); err == nil {
		t.Fatal("short ciphertext accepted")
	}
}

func TestDecryptWrongKey(t *testing.T) {
	a, _ := NewAESEncryptor(testKey(t))
	b, _ := NewAESEncryptor(testKey(t))
	ct, _ := a.Encrypt([]byte("secret"))
	if _, err := b.Decrypt(ct); err == nil {
		t.Fatal("decrypt with a different key succeeded")
	}
}

func TestStringHelpers(t *testing.T) {
	enc, _ := NewAESEncryptor(testKey(t))

	stored, err := EncryptString(enc, "refresh-token-value")
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}
	if strings.Contains(stored, "refresh-token-value") {
		t.Fatal("stored form contains the plaintext")
	}
	if _, err := base64.StdEncoding.DecodeString(stored); err != nil {
		t.Fatalf("stored form is not base64: %v", err)
	}

	got, err := DecryptString(enc, stored)
	if err != nil {
		t.Fatalf("DecryptString: %v", err)
	}
	if got != "refresh-token-value" {
		t.Fatalf("round trip = %q", got)
	}

	if _, err := DecryptString(enc, "!!not base64!!"); err == nil {
		t.Fatal("DecryptString accepted invalid base64")
	}
}
