// Package crypt implements the PDF standard security handler: RC4-40/
// RC4-128 and AES-128/AES-256 encryption, MD5-based key derivation
// (Algorithms 2-7 of ISO 32000-1 7.6) for R2-R4, and SHA-256-based
// derivation for R5/R6 (AES-256, ISO 32000-2 / the Adobe extension
// level 3 revision), plus per-object key derivation and owner/user
// password authentication.
//
// Deliberately does not import package object: it operates on plain
// byte slices and the small set of trailer fields (ID, P, O/U/OE/UE/
// Perms) a caller (package xref) extracts from the Encrypt dictionary,
// so object documents don't know about encryption and xref wires the
// two together.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"encoding/binary"
	"io"

	"github.com/kugler-labs/pdfcore/pdferr"
)

// padding is the 32-byte password-padding string of ISO 32000-1 7.6.3.3,
// XORed/appended to passwords shorter than 32 bytes.
var padding = [32]byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

func padPassword(pw string) [32]byte {
	var out [32]byte
	b := []byte(pw)
	if len(b) > 32 {
		b = b[:32]
	}
	n := copy(out[:], b)
	copy(out[n:], padding[:32-n])
	return out
}

// Algorithm is the cipher family in use.
type Algorithm uint8

const (
	RC4 Algorithm = iota
	AES
)

// StmFilter selects whether stream/string bytes pass through the cipher
// at all (the "Identity" crypt filter leaves data untouched, used when
// /StmF or /StrF names a filter whose CFM is /Identity).
type StmFilter uint8

const (
	CryptRC4 StmFilter = iota
	CryptAESV2           // AES-128
	CryptAESV3           // AES-256
	CryptIdentity
)

// Settings collects everything a Handler needs out of the Encrypt
// dictionary and trailer, pre-extracted by package xref so this package
// never has to know about object.Dict.
type Settings struct {
	Algorithm  Algorithm
	Revision   uint8 // R: 2, 3, 4, 5 or 6
	KeyLengthBytes int // 5..16 for RC4/AES-128; 32 for AES-256
	Permissions    uint32
	FirstID        []byte // trailer /ID first element
	EncryptMetadata bool

	O  []byte // 32 bytes (R2-4) or 48 (R5/6)
	U  []byte // 32 bytes (R2-4) or 48 (R5/6)
	OE []byte // R5/6 only, 32 bytes
	UE []byte // R5/6 only, 32 bytes
	Perms []byte // R5/6 only, 16 bytes (encrypted)
}

// Handler authenticates against a document's Encrypt dictionary and
// derives the file encryption key once, then encrypts/decrypts
// individual object payloads (streams and strings) against a per-object
// key derived from that file key.
type Handler struct {
	settings Settings
	fileKey  []byte
}

// AuthenticateUser tries password as the user password, returning the
// derived file key on success.
func AuthenticateUser(s Settings, password string) (*Handler, bool) {
	if s.Revision >= 5 {
		return authenticateR5User(s, password)
	}
	key := deriveFileKeyR234(s, password)
	u := computeUserHashR234(s, key)
	if !constantTimeEqualPrefix(u, s.U, userHashCompareLen(s.Revision)) {
		return nil, false
	}
	return &Handler{settings: s, fileKey: key}, true
}

// AuthenticateOwner tries password as the owner password, returning the
// derived file key on success. For R2-R4 this recovers the user
// password first (Algorithm 7), then derives the file key as if that
// recovered password had been supplied directly.
func AuthenticateOwner(s Settings, password string) (*Handler, bool) {
	if s.Revision >= 5 {
		return authenticateR5Owner(s, password)
	}
	userPassword := recoverUserPasswordR234(s, password)
	return AuthenticateUser(s, userPassword)
}

// FileKey returns the derived file encryption key (for tests and
// diagnostics; not needed by ordinary callers).
func (h *Handler) FileKey() []byte { return append([]byte(nil), h.fileKey...) }

// objectKey derives the per-object key (Algorithm 1 of ISO 32000-1
// 7.6.2): MD5 of the file key, the low-order 3 bytes of the object
// number, the low-order 2 bytes of the generation number, and (for AES)
// the literal bytes "sAlT", truncated to min(keylen+5, 16) bytes. AES-256
// (R5/R6) instead uses the file key directly, unmodified per object.
func (h *Handler) objectKey(num uint32, gen uint16) []byte {
	if h.settings.Revision >= 5 {
		return h.fileKey
	}
	buf := append([]byte(nil), h.fileKey...)
	buf = append(buf, byte(num), byte(num>>8), byte(num>>16))
	buf = append(buf, byte(gen), byte(gen>>8))
	if h.settings.Algorithm == AES {
		buf = append(buf, 0x73, 0x41, 0x6C, 0x54) // "sAlT"
	}
	sum := md5.Sum(buf)
	n := len(h.fileKey) + 5
	if n > 16 {
		n = 16
	}
	return sum[:n]
}

// DecryptObject decrypts data (a stream's raw bytes, or a string's
// bytes) belonging to indirect object (num, gen).
func (h *Handler) DecryptObject(num uint32, gen uint16, data []byte) ([]byte, error) {
	key := h.objectKey(num, gen)
	switch h.settings.Algorithm {
	case RC4:
		return rc4Crypt(key, data)
	case AES:
		return aesCBCDecrypt(key, data)
	default:
		return nil, pdferr.New(pdferr.InvalidEncryptionDict, "unknown encryption algorithm")
	}
}

// EncryptObject encrypts data for indirect object (num, gen), the
// inverse of DecryptObject.
func (h *Handler) EncryptObject(num uint32, gen uint16, data []byte) ([]byte, error) {
	key := h.objectKey(num, gen)
	switch h.settings.Algorithm {
	case RC4:
		return rc4Crypt(key, data) // RC4 is its own inverse
	case AES:
		return aesCBCEncrypt(key, data)
	default:
		return nil, pdferr.New(pdferr.InvalidEncryptionDict, "unknown encryption algorithm")
	}
}

func rc4Crypt(key, data []byte) ([]byte, error) {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, pdferr.Errorf(pdferr.InvalidEncryptionDict, "RC4 key: %w", err)
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out, nil
}

// aesCBCDecrypt strips the leading 16-byte IV, CBC-decrypts the
// remainder and removes PKCS#7 padding, per the AESV2/AESV3 crypt
// filter's wire format (ISO 32000-1 7.6.2): IV || ciphertext, both
// multiples of the AES block size.
func aesCBCDecrypt(key, data []byte) ([]byte, error) {
	if len(data) < aes.BlockSize {
		return nil, pdferr.New(pdferr.InvalidEncryptionDict, "AES payload shorter than one block (missing IV)")
	}
	iv, ct := data[:aes.BlockSize], data[aes.BlockSize:]
	if len(ct)%aes.BlockSize != 0 {
		return nil, pdferr.New(pdferr.InvalidEncryptionDict, "AES ciphertext is not a multiple of the block size")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, pdferr.Errorf(pdferr.InvalidEncryptionDict, "AES key: %w", err)
	}
	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ct)
	return stripPKCS7(out)
}

func aesCBCEncrypt(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, pdferr.Errorf(pdferr.InvalidEncryptionDict, "AES key: %w", err)
	}
	padded := addPKCS7(data, aes.BlockSize)
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, pdferr.Errorf(pdferr.Io, "AES IV: %w", err)
	}
	out := make([]byte, aes.BlockSize+len(padded))
	copy(out, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return out, nil
}

func addPKCS7(data []byte, blockSize int) []byte {
	pad := blockSize - len(data)%blockSize
	out := append([]byte(nil), data...)
	for i := 0; i < pad; i++ {
		out = append(out, byte(pad))
	}
	return out
}

func stripPKCS7(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > len(data) || pad > aes.BlockSize {
		return nil, pdferr.New(pdferr.InvalidEncryptionDict, "invalid PKCS#7 padding")
	}
	return data[:len(data)-pad], nil
}

func userHashCompareLen(revision uint8) int {
	if revision == 2 {
		return 32
	}
	return 16 // only the first 16 bytes of the 32-byte padded hash are compared for R>=3
}

func constantTimeEqualPrefix(a, b []byte, n int) bool {
	if len(a) < n || len(b) < n {
		return false
	}
	var diff byte
	for i := 0; i < n; i++ {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}

func permissionsBytes(p uint32) []byte {
	var out [4]byte
	binary.LittleEndian.PutUint32(out[:], p)
	return out[:]
}
