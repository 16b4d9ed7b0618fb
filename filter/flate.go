package filter

import (
	"bytes"
	"compress/zlib"
	"io"

	"github.com/kugler-labs/pdfcore/pdferr"
)

// flateCodec implements FlateDecode, including the PNG/TIFF predictor
// post-processing described by /DecodeParms. The row-filter application
// (processRow, applyHorizontalDiff, filterPaeth) follows RFC 2083 section 6.
type flateCodec struct{}

func (flateCodec) Name() Name { return Flate }

func (flateCodec) Decode(data []byte, p Params) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, pdferr.Errorf(pdferr.FilterErrorKind, "FlateDecode: %w", err)
	}
	defer r.Close()
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, pdferr.Errorf(pdferr.FilterErrorKind, "FlateDecode: %w", err)
	}
	return applyPredictor(raw, p)
}

func (flateCodec) Encode(data []byte, p Params) ([]byte, error) {
	// predictors are lossy to reverse generically (encoding would need to
	// choose a per-row filter heuristically); this module always encodes
	// with Predictor 1 (none), which is always a legal encoding even when
	// the source used a predictor to decode.
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, pdferr.Errorf(pdferr.FilterErrorKind, "FlateDecode encode: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, pdferr.Errorf(pdferr.FilterErrorKind, "FlateDecode encode: %w", err)
	}
	return buf.Bytes(), nil
}

func applyPredictor(raw []byte, p Params) ([]byte, error) {
	predictor := p.Predictor
	if predictor == 0 {
		predictor = 1
	}
	if predictor == 1 {
		return raw, nil
	}

	colors := p.Colors
	if colors == 0 {
		colors = 1
	}
	bpc := p.BitsPerComponent
	if bpc == 0 {
		bpc = 8
	}
	columns := p.Columns
	if columns == 0 {
		columns = 1
	}

	rowSize := bpc * colors * columns / 8
	bytesPerPixel := (bpc*colors + 7) / 8

	frameSize := rowSize
	if predictor != 2 {
		frameSize++ // PNG rows are prefixed by a filter-type byte
	}

	cr := make([]byte, frameSize)
	pr := make([]byte, frameSize)
	src := bytes.NewReader(raw)

	var out []byte
	for {
		if _, err := io.ReadFull(src, cr); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, pdferr.Errorf(pdferr.InvalidPredictor, "predictor row read: %w", err)
		}
		d, err := processRow(pr, cr, predictor, colors, bytesPerPixel)
		if err != nil {
			return nil, err
		}
		out = append(out, d...)
		pr, cr = cr, pr
	}

	if rowSize > 0 && len(out)%rowSize != 0 {
		return nil, pdferr.Errorf(pdferr.InvalidPredictor, "predictor output (%d bytes) is not a multiple of the row size (%d)", len(out), rowSize)
	}
	return out, nil
}

func processRow(pr, cr []byte, predictor, colors, bytesPerPixel int) ([]byte, error) {
	if predictor == 2 {
		return applyHorizontalDiff(cr, colors), nil
	}

	cdat := cr[1:]
	pdat := pr[1:]
	switch tag := cr[0]; tag {
	case 0:
		// no-op
	case 1: // Sub
		for i := bytesPerPixel; i < len(cdat); i++ {
			cdat[i] += cdat[i-bytesPerPixel]
		}
	case 2: // Up
		for i, v := range pdat {
			cdat[i] += v
		}
	case 3: // Average
		for i := 0; i < bytesPerPixel; i++ {
			cdat[i] += pdat[i] / 2
		}
		for i := bytesPerPixel; i < len(cdat); i++ {
			cdat[i] += uint8((int(cdat[i-bytesPerPixel]) + int(pdat[i])) / 2)
		}
	case 4: // Paeth
		filterPaeth(cdat, pdat, bytesPerPixel)
	default:
		return nil, pdferr.Errorf(pdferr.InvalidPredictor, "unknown PNG row filter tag %d", tag)
	}
	return cdat, nil
}

func applyHorizontalDiff(row []byte, colors int) []byte {
	for i := 1; i < len(row)/colors; i++ {
		for j := 0; j < colors; j++ {
			row[i*colors+j] += row[(i-1)*colors+j]
		}
	}
	return row
}

func filterPaeth(cdat, pdat []byte, bytesPerPixel int) {
	var a, b, c, pa, pb, pc int32
	for i := 0; i < bytesPerPixel; i++ {
		a, c = 0, 0
		for j := i; j < len(cdat); j += bytesPerPixel {
			b = int32(pdat[j])
			pa = b - c
			pb = a - c
			pc = absInt32(pa + pb)
			pa = absInt32(pa)
			pb = absInt32(pb)
			switch {
			case pa <= pb && pa <= pc:
				// a unchanged
			case pb <= pc:
				a = b
			default:
				a = c
			}
			a += int32(cdat[j])
			a &= 0xff
			cdat[j] = uint8(a)
			c = b
		}
	}
}

func absInt32(x int32) int32 {
	m := x >> 31
	return (x ^ m) - m
}
