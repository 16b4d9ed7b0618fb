package filter

import (
	"bytes"
	"encoding/ascii85"

	"github.com/kugler-labs/pdfcore/pdferr"
)

// ascii85Codec implements ASCII85Decode using the standard library's
// encoding/ascii85, which implements the same base-85 alphabet PDF uses
// (Adobe's variant, including the 'z' run-of-zeros shorthand). The
// "~>" marker is stripped up front and the whole buffer decoded at
// once, since the buffer's extent is already known.
type ascii85Codec struct{}

func (ascii85Codec) Name() Name { return ASCII85 }

func (ascii85Codec) Decode(data []byte, _ Params) ([]byte, error) {
	if i := bytes.Index(data, []byte("~>")); i >= 0 {
		data = data[:i]
	}
	out := make([]byte, len(data))
	n, _, err := ascii85.Decode(out, data, true)
	if err != nil {
		return nil, pdferr.Errorf(pdferr.FilterErrorKind, "ASCII85Decode: %w", err)
	}
	return out[:n], nil
}

func (ascii85Codec) Encode(data []byte, _ Params) ([]byte, error) {
	var buf bytes.Buffer
	w := ascii85.NewEncoder(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, pdferr.Errorf(pdferr.FilterErrorKind, "ASCII85Decode encode: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, pdferr.Errorf(pdferr.FilterErrorKind, "ASCII85Decode encode: %w", err)
	}
	buf.WriteString("~>")
	return buf.Bytes(), nil
}
