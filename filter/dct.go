package filter

import (
	"bytes"
	"image"
	"image/jpeg"

	"github.com/kugler-labs/pdfcore/pdferr"
)

// dctCodec implements DCTDecode. Decode-only: this module
// never re-encodes JPEG data (image content is not its concern; this
// only has to hand raster bytes to a renderer or re-emit the original
// compressed bytes verbatim). Decode is exposed mainly so the pipeline
// can validate a stream and report a torn JPEG as a FilterError instead
// of silently round-tripping corrupt bytes; callers that only need to
// pass DCTDecode streams through untouched should not decode at all.
type dctCodec struct{}

func (dctCodec) Name() Name { return DCT }

func (dctCodec) Decode(data []byte, _ Params) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, pdferr.Errorf(pdferr.FilterErrorKind, "DCTDecode: %w", err)
	}
	return rasterize(img), nil
}

func (dctCodec) Encode([]byte, Params) ([]byte, error) {
	return nil, pdferr.New(pdferr.UnsupportedFilter, "DCTDecode: encode is not supported, this filter is decode-only")
}

// rasterize flattens an image.Image into row-major interleaved 8-bit
// samples (1 sample per channel: gray images emit 1 byte/pixel, color
// images emit 3).
func rasterize(img image.Image) []byte {
	b := img.Bounds()
	if gray, ok := img.(*image.Gray); ok {
		return append([]byte(nil), gray.Pix...)
	}
	out := make([]byte, 0, b.Dx()*b.Dy()*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			out = append(out, byte(r>>8), byte(g>>8), byte(bl>>8))
		}
	}
	return out
}
