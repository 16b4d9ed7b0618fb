package filter

import (
	"bytes"
	"io"

	"golang.org/x/image/ccitt"

	"github.com/kugler-labs/pdfcore/pdferr"
)

// ccittCodec implements CCITTFaxDecode, decode-only (Group 3/4 encoding
// is not implemented; see dctCodec for the same policy on DCTDecode).
// The bit-level decoding is delegated to golang.org/x/image/ccitt; this
// layer only translates /DecodeParms into that package's vocabulary.
// The decoded output is one bit per pixel, MSB first, with each row
// byte-aligned.
//
// K > 0 (mixed one- and two-dimensional Group 3 encoding) is not
// supported by the underlying package and fails with UnsupportedFilter.
// EndOfLine and EndOfBlock need no translation: the decoder recognizes
// EOL codes on its own and stops at the end of the data.
type ccittCodec struct{}

func (ccittCodec) Name() Name { return CCITTFax }

func (ccittCodec) Decode(data []byte, p Params) ([]byte, error) {
	if p.K > 0 {
		return nil, pdferr.New(pdferr.UnsupportedFilter, "CCITTFaxDecode: mixed 1D/2D encoding (K > 0) is not supported")
	}
	sub := ccitt.Group3
	if p.K < 0 {
		sub = ccitt.Group4
	}
	rows := p.Rows
	if rows <= 0 {
		rows = ccitt.AutoDetectHeight
	}
	opts := &ccitt.Options{Align: p.EncodedByteAlign, Invert: p.BlackIs1}
	r := ccitt.NewReader(bytes.NewReader(data), ccitt.MSB, sub, columnsOrDefault(p), rows, opts)
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, pdferr.Errorf(pdferr.FilterErrorKind, "CCITTFaxDecode: %w", err)
	}
	return out, nil
}

func (ccittCodec) Encode([]byte, Params) ([]byte, error) {
	return nil, pdferr.New(pdferr.UnsupportedFilter, "CCITTFaxDecode: encode is not supported, this filter is decode-only")
}

func columnsOrDefault(p Params) int {
	if p.Columns == 0 {
		return 1728
	}
	return p.Columns
}
