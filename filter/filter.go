// Package filter implements the PDF stream filter pipeline: the codecs
// named by a stream dictionary's /Filter entry (possibly a chain of
// several), applied in order to turn raw, on-disk bytes into the
// stream's logical content, and the inverse for encoding.
//
// Each filter implements the Codec interface (Name, Decode, Encode);
// a filter chain is a slice of Codec plus per-filter DecodeParms,
// walked in order. Codecs work whole-buffer rather than streaming:
// a stream's length is always resolved by the xref layer before the
// filter pipeline runs, so there is never a partial buffer to push.
package filter

import (
	"github.com/kugler-labs/pdfcore/pdferr"
)

// Name is a filter's PDF name, e.g. "FlateDecode".
type Name string

const (
	ASCIIHex  Name = "ASCIIHexDecode"
	ASCII85   Name = "ASCII85Decode"
	LZW       Name = "LZWDecode"
	Flate     Name = "FlateDecode"
	RunLength Name = "RunLengthDecode"
	DCT       Name = "DCTDecode"
	CCITTFax  Name = "CCITTFaxDecode"
	Crypt     Name = "Crypt"
)

// Params carries a single filter's /DecodeParms entry, pre-extracted
// into the fields every concrete filter might consult. Fields irrelevant
// to a given filter are ignored.
type Params struct {
	Predictor        int
	Colors           int
	BitsPerComponent int
	Columns          int
	EarlyChange      int // LZW only; meaningful when HasEarlyChange, default is 1
	HasEarlyChange   bool

	// CCITTFax
	K                      int
	Rows                   int
	BlackIs1               bool
	EncodedByteAlign       bool
	EndOfBlock             bool

	// Crypt
	CryptFilterName string
}

// DefaultParams returns the Params with every PDF-spec default applied.
func DefaultParams() Params {
	return Params{Colors: 1, BitsPerComponent: 8, Columns: 1, EarlyChange: 1, EndOfBlock: true}
}

// Codec is one filter's begin/block/end phases, collapsed into a single
// whole-buffer Decode/Encode pair since this module never streams filter
// output incrementally.
type Codec interface {
	Name() Name
	Decode(data []byte, p Params) ([]byte, error)
	Encode(data []byte, p Params) ([]byte, error)
}

var registry = map[Name]Codec{
	ASCIIHex:  asciiHexCodec{},
	ASCII85:   ascii85Codec{},
	LZW:       lzwCodec{},
	Flate:     flateCodec{},
	RunLength: runLengthCodec{},
	DCT:       dctCodec{},
	CCITTFax:  ccittCodec{},
}

// Lookup returns the Codec registered for name, or an error if the
// filter is not implemented. Crypt is handled separately by the xref
// loader (it needs the document's encryption key, not just Params), so
// it is intentionally absent from this registry; see package crypt.
func Lookup(name Name) (Codec, error) {
	c, ok := registry[name]
	if !ok {
		return nil, pdferr.Errorf(pdferr.UnsupportedFilter, "unsupported filter %q", name)
	}
	return c, nil
}

// Chain is an ordered list of filters with their per-filter parameters,
// as named by a stream dictionary's /Filter (and /F for external files,
// not modeled here) and /DecodeParms entries.
type Chain struct {
	Filters []Name
	Params  []Params
}

// Decode runs data through every filter in the chain, in order.
func (c Chain) Decode(data []byte) ([]byte, error) {
	for i, name := range c.Filters {
		codec, err := Lookup(name)
		if err != nil {
			return nil, pdferr.Frame(err, "filter.Chain.Decode")
		}
		p := Params{}
		if i < len(c.Params) {
			p = c.Params[i]
		}
		data, err = codec.Decode(data, p)
		if err != nil {
			return nil, pdferr.Frame(err, "filter.Chain.Decode:"+string(name))
		}
	}
	return data, nil
}

// Encode runs data through every filter in the chain, in reverse order
// (the last-applied filter on decode is the first to reverse on
// encode), so that Chain.Decode(Chain.Encode(data)) == data.
func (c Chain) Encode(data []byte) ([]byte, error) {
	for i := len(c.Filters) - 1; i >= 0; i-- {
		codec, err := Lookup(c.Filters[i])
		if err != nil {
			return nil, pdferr.Frame(err, "filter.Chain.Encode")
		}
		p := Params{}
		if i < len(c.Params) {
			p = c.Params[i]
		}
		var err2 error
		data, err2 = codec.Encode(data, p)
		if err2 != nil {
			return nil, pdferr.Frame(err2, "filter.Chain.Encode:"+string(c.Filters[i]))
		}
	}
	return data, nil
}
