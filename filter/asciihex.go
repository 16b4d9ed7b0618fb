package filter

import (
	"bytes"
	"encoding/hex"

	"github.com/kugler-labs/pdfcore/pdferr"
)

// asciiHexCodec implements ASCIIHexDecode: pairs of hex digits (ASCII
// whitespace ignored) terminated by '>'. An odd trailing digit is
// padded with '0' per 7.4.2.
type asciiHexCodec struct{}

func (asciiHexCodec) Name() Name { return ASCIIHex }

func (asciiHexCodec) Decode(data []byte, _ Params) ([]byte, error) {
	if i := bytes.IndexByte(data, '>'); i >= 0 {
		data = data[:i]
	}
	var clean []byte
	for _, b := range data {
		if isHexDigit(b) {
			clean = append(clean, b)
		} else if !isPDFWhitespace(b) {
			return nil, pdferr.Errorf(pdferr.FilterErrorKind, "ASCIIHexDecode: invalid byte %q", b)
		}
	}
	if len(clean)%2 == 1 {
		clean = append(clean, '0')
	}
	out := make([]byte, hex.DecodedLen(len(clean)))
	if _, err := hex.Decode(out, clean); err != nil {
		return nil, pdferr.Errorf(pdferr.FilterErrorKind, "ASCIIHexDecode: %w", err)
	}
	return out, nil
}

func (asciiHexCodec) Encode(data []byte, _ Params) ([]byte, error) {
	out := make([]byte, hex.EncodedLen(len(data))+1)
	hex.Encode(out, data)
	out[len(out)-1] = '>'
	return out, nil
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func isPDFWhitespace(b byte) bool {
	switch b {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}
