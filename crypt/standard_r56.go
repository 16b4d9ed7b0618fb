package crypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"

	"github.com/kugler-labs/pdfcore/pdferr"
)

// validationSalt and keySalt pull the two 8-byte salts out of the
// trailing 16 bytes of a 48-byte R5/R6 hash (32-byte hash || 8-byte
// validation salt || 8-byte key salt), per ISO 32000-2 7.6.4.3.
func validationSalt(hash []byte) []byte { return hash[32:40] }
func keySalt(hash []byte) []byte        { return hash[40:48] }

// authenticateR5User implements Algorithm 2.B / 6 for the user password:
// verify password against U's embedded validation salt, then decrypt UE
// with the intermediate key to recover the file encryption key.
func authenticateR5User(s Settings, password string) (*Handler, bool) {
	if len(s.U) < 48 || len(s.UE) < 32 {
		return nil, false
	}
	pw := truncatedUTF8(password)

	validation := sha256.Sum256(append(append([]byte(nil), pw...), validationSalt(s.U)...))
	if !bytes.Equal(validation[:], s.U[:32]) {
		return nil, false
	}

	interKey := sha256.Sum256(append(append([]byte(nil), pw...), keySalt(s.U)...))
	fileKey, err := aesNoPadCBCDecryptZeroIV(interKey[:], s.UE[:32])
	if err != nil {
		return nil, false
	}
	return &Handler{settings: s, fileKey: fileKey}, true
}

// authenticateR5Owner implements Algorithm 2.B / 7 for the owner
// password: the validation/key salts are additionally mixed with U (the
// full 48-byte user hash), per ISO 32000-2 7.6.4.3.4.
func authenticateR5Owner(s Settings, password string) (*Handler, bool) {
	if len(s.O) < 48 || len(s.OE) < 32 || len(s.U) < 48 {
		return nil, false
	}
	pw := truncatedUTF8(password)

	validation := sha256.Sum256(concat(pw, validationSalt(s.O), s.U[:48]))
	if !bytes.Equal(validation[:], s.O[:32]) {
		return nil, false
	}

	interKey := sha256.Sum256(concat(pw, keySalt(s.O), s.U[:48]))
	fileKey, err := aesNoPadCBCDecryptZeroIV(interKey[:], s.OE[:32])
	if err != nil {
		return nil, false
	}
	return &Handler{settings: s, fileKey: fileKey}, true
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// truncatedUTF8 applies the 127-byte password truncation required by
// ISO 32000-2 7.6.4.3.2. SASLprep is not implemented; passwords are
// used as given.
func truncatedUTF8(password string) []byte {
	b := []byte(password)
	if len(b) > 127 {
		b = b[:127]
	}
	return b
}

// aesNoPadCBCDecryptZeroIV decrypts data with a zero IV and no padding
// removal, as required when unwrapping UE/OE and Perms (ISO 32000-2
// 7.6.4.3.3): those fields are themselves exactly block-aligned key
// material, not padded plaintext.
func aesNoPadCBCDecryptZeroIV(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(data)%aes.BlockSize != 0 {
		return nil, pdferr.New(pdferr.InvalidEncryptionDict, "R5/R6 key material is not block-aligned")
	}
	iv := make([]byte, aes.BlockSize)
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	return out, nil
}

func sha256Sum(b []byte) [32]byte { return sha256.Sum256(b) }

// aesNoPadCBCEncryptZeroIV is the encrypting counterpart of
// aesNoPadCBCDecryptZeroIV, used to build UE/OE at document-creation
// time.
func aesNoPadCBCEncryptZeroIV(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(data)%aes.BlockSize != 0 {
		return nil, pdferr.New(pdferr.InvalidEncryptionDict, "R5/R6 key material is not block-aligned")
	}
	iv := make([]byte, aes.BlockSize)
	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)
	return out, nil
}

// aesECBEncryptNoPad encrypts a single 16-byte block with ECB mode (one
// call to block.Encrypt), used only for Perms, which ISO 32000-2
// 7.6.4.3.5 defines via plain ECB rather than CBC.
func aesECBEncryptNoPad(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(data) != aes.BlockSize {
		return nil, pdferr.New(pdferr.InvalidEncryptionDict, "Perms must be exactly one AES block")
	}
	out := make([]byte, aes.BlockSize)
	block.Encrypt(out, data)
	return out, nil
}

// ValidatePermissions decrypts Perms with the given file key and checks
// it against the /P value, per Algorithm 13 (ISO 32000-2 7.6.4.3.5),
// catching a P value tampered independently of the password.
func ValidatePermissions(s Settings, fileKey []byte) bool {
	if len(s.Perms) < 16 {
		return false
	}
	block, err := aes.NewCipher(fileKey)
	if err != nil {
		return false
	}
	perms := append([]byte(nil), s.Perms[:16]...)
	block.Decrypt(perms, perms)
	if string(perms[9:12]) != "adb" {
		return false
	}
	p := uint32(perms[0]) | uint32(perms[1])<<8 | uint32(perms[2])<<16 | uint32(perms[3])<<24
	return p == s.Permissions
}
