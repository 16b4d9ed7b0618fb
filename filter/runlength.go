package filter

import (
	"github.com/kugler-labs/pdfcore/pdferr"
)

// runLengthCodec implements RunLengthDecode (7.4.5): a length byte
// < 128 starts a literal run of length+1 bytes, >= 129 repeats the next
// byte 257-length times, 128 is EOD.
type runLengthCodec struct{}

const runLengthEOD = 0x80

func (runLengthCodec) Name() Name { return RunLength }

func (runLengthCodec) Decode(data []byte, _ Params) ([]byte, error) {
	var out []byte
	i := 0
	for {
		if i >= len(data) {
			return nil, pdferr.New(pdferr.UnexpectedEOF, "RunLengthDecode: missing EOD marker")
		}
		b := data[i]
		i++
		if b == runLengthEOD {
			return out, nil
		}
		if b < 128 {
			n := int(b) + 1
			if i+n > len(data) {
				return nil, pdferr.New(pdferr.UnexpectedEOF, "RunLengthDecode: truncated literal run")
			}
			out = append(out, data[i:i+n]...)
			i += n
			continue
		}
		n := 257 - int(b)
		if i >= len(data) {
			return nil, pdferr.New(pdferr.UnexpectedEOF, "RunLengthDecode: truncated repeat run")
		}
		c := data[i]
		i++
		for j := 0; j < n; j++ {
			out = append(out, c)
		}
	}
}

func (runLengthCodec) Encode(data []byte, _ Params) ([]byte, error) {
	// Literal-run-only encoding: correct, if not optimally compact. Runs
	// of 128 bytes are chunked since the literal-run length byte caps at
	// 127+1.
	var out []byte
	for len(data) > 0 {
		n := len(data)
		if n > 128 {
			n = 128
		}
		out = append(out, byte(n-1))
		out = append(out, data[:n]...)
		data = data[n:]
	}
	out = append(out, runLengthEOD)
	return out, nil
}
