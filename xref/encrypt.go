package xref

import (
	"github.com/kugler-labs/pdfcore/crypt"
	"github.com/kugler-labs/pdfcore/object"
	"github.com/kugler-labs/pdfcore/pdferr"
)

// encryptionSettingsFromDict builds a crypt.Settings from a resolved
// /Encrypt dictionary (V, R, O, U, P, EncryptMetadata) and the
// trailer's first /ID element. V4 files name their cipher through the
// /CF crypt-filter dictionary; V5 and above is always taken as AES-256
// without consulting /CF.
func encryptionSettingsFromDict(dict *object.Dict, firstID []byte) (crypt.Settings, error) {
	v, err := object.AsNumberLenient(dict.GetOrNull("V"))
	if err != nil {
		v = 0
	}
	r, err := object.AsNumberLenient(dict.GetOrNull("R"))
	if err != nil {
		return crypt.Settings{}, pdferr.New(pdferr.InvalidEncryptionDict, "/Encrypt has no /R")
	}
	p, err := object.AsNumberLenient(dict.GetOrNull("P"))
	if err != nil {
		return crypt.Settings{}, pdferr.New(pdferr.InvalidEncryptionDict, "/Encrypt has no /P")
	}

	o, err := stringBytes(dict, "O")
	if err != nil {
		return crypt.Settings{}, err
	}
	u, err := stringBytes(dict, "U")
	if err != nil {
		return crypt.Settings{}, err
	}

	encryptMetadata := true
	if b, err := object.AsBool(dict.GetOrNull("EncryptMetadata")); err == nil {
		encryptMetadata = b
	}

	settings := crypt.Settings{
		Revision:        uint8(r),
		Permissions:     uint32(p),
		FirstID:         firstID,
		EncryptMetadata: encryptMetadata,
		O:               o,
		U:               u,
	}

	switch {
	case v >= 5:
		settings.Algorithm = crypt.AES
		settings.KeyLengthBytes = 32
		settings.OE, _ = stringBytes(dict, "OE")
		settings.UE, _ = stringBytes(dict, "UE")
		settings.Perms, _ = stringBytes(dict, "Perms")
	case v == 4:
		alg, keyLen, err := cryptFilterAlgorithm(dict)
		if err != nil {
			return crypt.Settings{}, err
		}
		settings.Algorithm = alg
		settings.KeyLengthBytes = keyLen
	default: // V 1 or 2: plain RC4
		settings.Algorithm = crypt.RC4
		length, err := object.AsNumberLenient(dict.GetOrNull("Length"))
		if err != nil || length == 0 {
			length = 40
		}
		settings.KeyLengthBytes = int(length) / 8
	}

	return settings, nil
}

// cryptFilterAlgorithm inspects a V4 /Encrypt dictionary's /CF entry
// named by /StmF, returning the algorithm and key length its /CFM
// declares (AESV2 -> AES-128, AESV3 -> AES-256, V2 -> RC4 at the
// filter's /Length, anything else or a missing filter -> 40-bit RC4).
func cryptFilterAlgorithm(dict *object.Dict) (crypt.Algorithm, int, error) {
	stmF, err := object.AsName(dict.GetOrNull("StmF"))
	if err != nil {
		stmF = "StdCF"
	}
	if stmF == "Identity" {
		return crypt.RC4, 5, nil
	}
	cf, ok := dict.GetOrNull("CF").(*object.Dict)
	if !ok {
		return crypt.RC4, 5, nil
	}
	cfDict, ok := cf.GetOrNull(stmF).(*object.Dict)
	if !ok {
		return crypt.RC4, 5, nil
	}
	cfm, _ := object.AsName(cfDict.GetOrNull("CFM"))
	switch cfm {
	case "AESV2":
		return crypt.AES, 16, nil
	case "AESV3":
		return crypt.AES, 32, nil
	case "V2":
		length, err := object.AsNumberLenient(cfDict.GetOrNull("Length"))
		if err != nil || length == 0 {
			length = 16
		}
		// /Length in a crypt filter dict is already measured in bytes,
		// unlike the top-level /Encrypt /Length (bits); tolerate both by
		// treating an implausibly large value as bits.
		if length > 32 {
			length /= 8
		}
		return crypt.RC4, int(length), nil
	default:
		return crypt.RC4, 5, nil
	}
}

func stringBytes(dict *object.Dict, key object.Name) ([]byte, error) {
	v, ok := dict.Get(key)
	if !ok {
		return nil, nil
	}
	s, ok := v.(object.String)
	if !ok {
		return nil, pdferr.Errorf(pdferr.InvalidEncryptionDict, "/%s is not a string", string(key))
	}
	return s.Bytes, nil
}
