package crypt

import (
	"crypto/rand"
	"crypto/rc4"
)

// NewStandardR234 computes the O and U dictionary entries for a fresh
// standard security handler of revision 2-4: building an Encrypt
// dictionary is just running Algorithm 3 (O) then Algorithm 2 + 4/5
// (file key, then U) against the two passwords the caller supplies.
func NewStandardR234(revision uint8, keyLengthBytes int, permissions uint32, fileID []byte, encryptMetadata bool, userPassword, ownerPassword string) Settings {
	s := Settings{
		Algorithm:       RC4,
		Revision:        revision,
		KeyLengthBytes:  keyLengthBytes,
		Permissions:     permissions,
		FirstID:         fileID,
		EncryptMetadata: encryptMetadata,
	}

	ownerKey := ownerEncryptionKeyR234(s, ownerPassword)
	userPass := padPassword(userPassword)
	o := append([]byte(nil), userPass[:]...)
	rc4XOR(ownerKey, o)
	if revision >= 3 {
		xor19Times(o, ownerKey)
	}
	s.O = o

	fileKey := deriveFileKeyR234(s, userPassword)
	s.U = computeUserHashR234(s, fileKey)
	return s
}

func rc4XOR(key, data []byte) {
	c, _ := rc4.NewCipher(key)
	c.XORKeyStream(data, data)
}

// HandlerForFileKey builds a Handler directly from an already-derived
// file key, bypassing authentication; used by the writer when it just
// created the Encrypt dictionary itself (so the key is already known,
// not recovered from a password).
func HandlerForFileKey(s Settings, fileKey []byte) *Handler {
	return &Handler{settings: s, fileKey: fileKey}
}

// RandomFileKey returns n cryptographically random bytes, for building
// an R5/R6 (AES-256) encryption key from scratch (no password-derived
// relationship is required beyond wrapping it in UE/OE).
func RandomFileKey(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// NewStandardR56 computes U, UE, O, OE and Perms for a fresh revision
// 5/6 (AES-256) standard security handler, given an already-chosen
// fileKey (typically from RandomFileKey). This is the "create_dictionary"
// counterpart of authenticateR5User/authenticateR5Owner: each hash is an
// 8-byte random validation salt plus an 8-byte random key salt, SHA-256
// over (password || salt [|| U for the owner entry]), and UE/OE wrap the
// file key with AES-CBC under a key derived from the same salts.
func NewStandardR56(revision uint8, permissions uint32, encryptMetadata bool, userPassword, ownerPassword string, fileKey []byte) (Settings, error) {
	s := Settings{
		Algorithm:       AES,
		Revision:        revision,
		KeyLengthBytes:  32,
		Permissions:     permissions,
		EncryptMetadata: encryptMetadata,
	}

	uValidation, err := RandomFileKey(8)
	if err != nil {
		return s, err
	}
	uKeySalt, err := RandomFileKey(8)
	if err != nil {
		return s, err
	}
	uPw := truncatedUTF8(userPassword)
	uHash := sha256Sum(concat(uPw, uValidation))
	s.U = concat(uHash[:], uValidation, uKeySalt)

	uInterKey := sha256Sum(concat(uPw, uKeySalt))
	ue, err := aesNoPadCBCEncryptZeroIV(uInterKey[:], fileKey)
	if err != nil {
		return s, err
	}
	s.UE = ue

	oValidation, err := RandomFileKey(8)
	if err != nil {
		return s, err
	}
	oKeySalt, err := RandomFileKey(8)
	if err != nil {
		return s, err
	}
	oPw := truncatedUTF8(ownerPassword)
	oHash := sha256Sum(concat(oPw, oValidation, s.U))
	s.O = concat(oHash[:], oValidation, oKeySalt)

	oInterKey := sha256Sum(concat(oPw, oKeySalt, s.U))
	oe, err := aesNoPadCBCEncryptZeroIV(oInterKey[:], fileKey)
	if err != nil {
		return s, err
	}
	s.OE = oe

	perms := make([]byte, 16)
	perms[0] = byte(permissions)
	perms[1] = byte(permissions >> 8)
	perms[2] = byte(permissions >> 16)
	perms[3] = byte(permissions >> 24)
	perms[4], perms[5], perms[6], perms[7] = 0xff, 0xff, 0xff, 0xff
	if encryptMetadata {
		perms[8] = 'T'
	} else {
		perms[8] = 'F'
	}
	copy(perms[9:12], "adb")
	encPerms, err := aesECBEncryptNoPad(fileKey, perms)
	if err != nil {
		return s, err
	}
	s.Perms = encPerms

	return s, nil
}
