package crypt

import (
	"crypto/md5"
	"crypto/rc4"
)

// deriveFileKeyR234 implements Algorithm 2 (ISO 32000-1 7.6.3.3):
// Computing an encryption key, for revisions 2-4.
func deriveFileKeyR234(s Settings, password string) []byte {
	pass := padPassword(password)
	keyLen := s.KeyLengthBytes
	if keyLen == 0 {
		keyLen = 5
	}

	buf := append([]byte(nil), pass[:]...)
	buf = append(buf, s.O[:32]...)
	buf = append(buf, permissionsBytes(s.Permissions)...)
	buf = append(buf, s.FirstID...)
	if s.Revision >= 4 && !s.EncryptMetadata {
		buf = append(buf, 0xff, 0xff, 0xff, 0xff)
	}
	sum := md5.Sum(buf)

	if s.Revision >= 3 {
		for range [50]int{} {
			sum = md5.Sum(sum[:keyLen])
		}
	}
	return sum[:keyLen]
}

// computeUserHashR234 implements Algorithm 4 (revision 2) / Algorithm 5
// (revision >= 3): Computing the U value, given the file key, and is
// used both to build it at write time and to check a candidate password
// at read time.
func computeUserHashR234(s Settings, fileKey []byte) []byte {
	c, _ := rc4.NewCipher(fileKey)
	if s.Revision == 2 {
		var out [32]byte
		c.XORKeyStream(out[:], padding[:])
		return out[:]
	}

	buf := append([]byte(nil), padding[:]...)
	buf = append(buf, s.FirstID...)
	hash := md5Sum(buf)
	c.XORKeyStream(hash[:], hash[:])
	xor19Times(hash[:], fileKey)
	out := make([]byte, 32)
	copy(out, hash[:])
	return out
}

func md5Sum(b []byte) [16]byte { return md5.Sum(b) }

// xor19Times runs 19 further RC4 passes over buf, each with startKey
// XORed byte-wise by the pass index, per Algorithm 5 step (f).
func xor19Times(buf []byte, startKey []byte) {
	for i := 1; i <= 19; i++ {
		key := append([]byte(nil), startKey...)
		for j := range key {
			key[j] ^= byte(i)
		}
		c, _ := rc4.NewCipher(key)
		c.XORKeyStream(buf, buf)
	}
}

// ownerEncryptionKeyR234 implements Algorithm 3 steps (a)-(b): deriving
// the RC4 key used to mask the padded owner/user password into O.
func ownerEncryptionKeyR234(s Settings, ownerPassword string) []byte {
	pass := padPassword(ownerPassword)
	keyLen := s.KeyLengthBytes
	if keyLen == 0 {
		keyLen = 5
	}
	tmp := md5.Sum(pass[:])
	if s.Revision >= 3 {
		for range [50]int{} {
			tmp = md5.Sum(tmp[:])
		}
	}
	return tmp[:keyLen]
}

// recoverUserPasswordR234 implements Algorithm 7: Authenticating the
// owner password, by reversing the RC4 masking that produced O (for
// revision >= 3, the 19 extra XOR-keyed rounds and then the plain-key
// round) to recover the
// padded user password, which is returned as a raw string so the caller
// can feed it straight back through AuthenticateUser.
func recoverUserPasswordR234(s Settings, ownerPassword string) string {
	firstKey := ownerEncryptionKeyR234(s, ownerPassword)

	v := append([]byte(nil), s.O[:32]...)
	if s.Revision >= 3 {
		for i := 19; i >= 0; i-- {
			key := append([]byte(nil), firstKey...)
			for j := range key {
				key[j] ^= byte(i)
			}
			c, _ := rc4.NewCipher(key)
			c.XORKeyStream(v, v)
		}
	} else {
		c, _ := rc4.NewCipher(firstKey)
		c.XORKeyStream(v, v)
	}
	return stripPadding(v)
}

// stripPadding removes the trailing padding bytes from a recovered
// 32-byte padded password, returning the prefix that precedes them (the
// actual password bytes). An unrecognized tail is returned whole, which
// still authenticates: re-padding the full padded buffer reproduces it.
func stripPadding(padded []byte) string {
	for n := 0; n <= len(padded); n++ {
		if string(padded[n:]) == string(padding[:len(padded)-n]) {
			return string(padded[:n])
		}
	}
	return string(padded)
}
