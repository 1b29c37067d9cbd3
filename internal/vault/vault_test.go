package vault

import (
	"bytes"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v := New("test-passphrase")

	ciphertext, nonce, err := v.EncryptKey("sk-secret-api-key")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(ciphertext, []byte("sk-secret-api-key")) {
		t.Error("ciphertext contains plaintext")
	}

	got, err := v.DecryptKey(ciphertext, nonce)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if got != "sk-secret-api-key" {
		t.Errorf("expected round trip, got %q", got)
	}
}

func TestEncryptNonceVaries(t *testing.T) {
	v := New("test-passphrase")

	_, n1, err := v.EncryptKey("same-key")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	_, n2, err := v.EncryptKey("same-key")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Equal(n1, n2) {
		t.Error("nonce must be unique per encryption")
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	v := New("correct-passphrase")
	ciphertext, nonce, err := v.EncryptKey("sk-secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	other := New("wrong-passphrase")
	if _, err := other.DecryptKey(ciphertext, nonce); err == nil {
		t.Error("expected decryption failure with wrong passphrase")
	}
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	v := New("test-passphrase")
	ciphertext, nonce, err := v.EncryptKey("sk-secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	ciphertext[0] ^= 0xff
	if _, err := v.DecryptKey(ciphertext, nonce); err == nil {
		t.Error("expected decryption failure for tampered ciphertext")
	}
}
