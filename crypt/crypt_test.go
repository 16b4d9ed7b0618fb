package crypt

import (
	"bytes"
	"testing"
)

func TestStandardR3UserPasswordRoundTrip(t *testing.T) {
	id := []byte("0123456789abcdef")
	s := NewStandardR234(3, 16, 0xfffff0c0, id, true, "user-pw", "owner-pw")

	h, ok := AuthenticateUser(s, "user-pw")
	if !ok {
		t.Fatal("expected user password to authenticate")
	}
	if len(h.FileKey()) != 16 {
		t.Fatalf("file key length = %d, want 16", len(h.FileKey()))
	}

	if _, ok := AuthenticateUser(s, "wrong-pw"); ok {
		t.Fatal("wrong password must not authenticate")
	}
}

func TestStandardR3OwnerRecoversUserPassword(t *testing.T) {
	id := []byte("0123456789abcdef")
	s := NewStandardR234(3, 16, 0xfffff0c0, id, true, "user-pw", "owner-pw")

	h, ok := AuthenticateOwner(s, "owner-pw")
	if !ok {
		t.Fatal("expected owner password to authenticate")
	}

	uh, _ := AuthenticateUser(s, "user-pw")
	if !bytes.Equal(h.FileKey(), uh.FileKey()) {
		t.Fatal("owner and user authentication should derive the same file key")
	}
}

func TestStandardR2RoundTrip(t *testing.T) {
	id := []byte("fedcba9876543210")
	s := NewStandardR234(2, 5, 0xffffffc0, id, true, "", "owner")

	if _, ok := AuthenticateUser(s, ""); !ok {
		t.Fatal("expected empty user password to authenticate under revision 2")
	}
}

func TestObjectKeyDerivationDiffersByObjectNumber(t *testing.T) {
	id := []byte("0123456789abcdef")
	s := NewStandardR234(3, 16, 0xfffff0c0, id, true, "pw", "opw")
	h, ok := AuthenticateUser(s, "pw")
	if !ok {
		t.Fatal("authentication failed")
	}
	k1 := h.objectKey(1, 0)
	k2 := h.objectKey(2, 0)
	if bytes.Equal(k1, k2) {
		t.Fatal("object keys for different object numbers must differ")
	}
}

func TestRC4StreamRoundTrip(t *testing.T) {
	id := []byte("0123456789abcdef")
	s := NewStandardR234(3, 16, 0xfffff0c0, id, true, "pw", "opw")
	h, _ := AuthenticateUser(s, "pw")

	plain := []byte("the quick brown fox")
	enc, err := h.EncryptObject(7, 0, plain)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	dec, err := h.DecryptObject(7, 0, enc)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(dec, plain) {
		t.Fatalf("got %q, want %q", dec, plain)
	}
}

func TestAES128StreamRoundTrip(t *testing.T) {
	id := []byte("0123456789abcdef")
	s := NewStandardR234(4, 16, 0xfffff0c0, id, true, "pw", "opw")
	s.Algorithm = AES
	h, ok := AuthenticateUser(s, "pw")
	if !ok {
		t.Fatal("authentication failed")
	}

	plain := []byte("some stream content, long enough to span blocks, more than sixteen bytes")
	enc, err := h.EncryptObject(3, 0, plain)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if len(enc) < 16 || len(enc)%16 != 0 {
		t.Fatalf("AES ciphertext length %d is not IV + a multiple of the block size", len(enc))
	}
	dec, err := h.DecryptObject(3, 0, enc)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(dec, plain) {
		t.Fatalf("got %q, want %q", dec, plain)
	}
}

func TestAES256R6RoundTrip(t *testing.T) {
	fileKey, _ := RandomFileKey(32)

	s, err := NewStandardR56(6, 0xfffff0c0, true, "user-pw", "owner-pw", fileKey)
	if err != nil {
		t.Fatalf("NewStandardR56: %v", err)
	}

	h, ok := AuthenticateUser(s, "user-pw")
	if !ok {
		t.Fatal("expected R6 user password to authenticate")
	}
	if !bytes.Equal(h.FileKey(), fileKey) {
		t.Fatal("recovered file key does not match the original")
	}

	if !ValidatePermissions(s, fileKey) {
		t.Fatal("expected permissions to validate")
	}

	oh, ok := AuthenticateOwner(s, "owner-pw")
	if !ok {
		t.Fatal("expected R6 owner password to authenticate")
	}
	if !bytes.Equal(oh.FileKey(), fileKey) {
		t.Fatal("owner-recovered file key does not match the original")
	}

	if _, ok := AuthenticateUser(s, "wrong"); ok {
		t.Fatal("wrong password must not authenticate under R6")
	}
}
