package filter

import (
	"bytes"
	"io"

	"github.com/hhrutter/lzw"

	"github.com/kugler-labs/pdfcore/pdferr"
)

// lzwCodec implements LZWDecode via github.com/hhrutter/lzw (the
// standard library's compress/lzw does not support PDF's EarlyChange
// convention). The 4096-entry table cap is enforced by that library
// itself (the standard LZW/TIFF 12-bit code-width ceiling), so this
// codec adds no extra capping logic of its own.
type lzwCodec struct{}

func (lzwCodec) Name() Name { return LZW }

func (lzwCodec) Decode(data []byte, p Params) ([]byte, error) {
	early := p.EarlyChange == 1 || !p.HasEarlyChange
	r := lzw.NewReader(bytes.NewReader(data), early)
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, pdferr.Errorf(pdferr.FilterErrorKind, "LZWDecode: %w", err)
	}
	return out, nil
}

func (lzwCodec) Encode(data []byte, p Params) ([]byte, error) {
	early := p.EarlyChange == 1 || !p.HasEarlyChange
	var buf bytes.Buffer
	w := lzw.NewWriter(&buf, early)
	if _, err := w.Write(data); err != nil {
		return nil, pdferr.Errorf(pdferr.FilterErrorKind, "LZWDecode encode: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, pdferr.Errorf(pdferr.FilterErrorKind, "LZWDecode encode: %w", err)
	}
	return buf.Bytes(), nil
}
