package security

import (
	"bytes"
	"testing"
)

func TestFrameCipherRoundTrip(t *testing.T) {
	salt, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt: %v", err)
	}
	c, err := NewFrameCipher(DeriveKey("hunter2", salt))
	if err != nil {
		t.Fatalf("NewFrameCipher: %v", err)
	}

	frame := []byte("opus frame payload")
	sealed, err := c.Encrypt(frame)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Contains(sealed, frame) {
		t.Errorf("sealed frame contains plaintext")
	}
	got, err := c.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, frame) {
		t.Errorf("Decrypt = %q, want %q", got, frame)
	}
}

func TestFrameCipherWrongKey(t *testing.T) {
	salt := make([]byte, SaltSize)
	a, _ := NewFrameCipher(DeriveKey("right", salt))
	b, _ := NewFrameCipher(DeriveKey("wrong", salt))

	sealed, err := a.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := b.Decrypt(sealed); err == nil {
		t.Errorf("Decrypt with wrong key succeeded")
	}
	if _, err := a.Decrypt([]byte{1, 2}); err == nil {
		t.Errorf("Decrypt of short input succeeded")
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := []byte("0123456789abcdef")
	k1, k2 := DeriveKey("pw", salt), DeriveKey("pw", salt)
	if len(k1) != 32 || !bytes.Equal(k1, k2) {
		t.Errorf("DeriveKey not deterministic 32 bytes: %x %x", k1, k2)
	}
}
