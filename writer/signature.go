package writer

import (
	"bytes"
	"fmt"

	"github.com/kugler-labs/pdfcore/object"
	"github.com/kugler-labs/pdfcore/pdferr"
)

// ReserveSignaturePlaceholder allocates a new indirect /Sig dictionary
// carrying a zero-filled /Contents hex string of exactly size bytes and
// a zero /ByteRange: this module reserves the space and hands back
// where to patch it, but never computes or writes the signature itself.
//
// The caller writes the document once with this reference
// installed somewhere reachable from the document (typically under an
// annotation's /V or the AcroForm's /Fields, both out of this module's
// scope to build), then calls LocateContentsPlaceholder on the written
// bytes to find exactly where to splice the real signature in.
func ReserveSignaturePlaceholder(doc *object.Document, size int) (object.Reference, error) {
	if size <= 0 {
		return object.Reference{}, pdferr.Errorf(pdferr.ValueOutOfRange, "signature placeholder size must be positive, got %d", size)
	}
	dict := object.NewDict()
	dict.Set("Type", object.Name("Sig"))
	dict.Set("Filter", object.Name("Adobe.PPKLite"))
	dict.Set("SubFilter", object.Name("adbe.pkcs7.detached"))
	dict.Set("ByteRange", object.NewArray(
		object.Integer(0), object.Integer(0), object.Integer(0), object.Integer(0),
	))
	dict.Set("Contents", object.String{Bytes: make([]byte, size), Hex: true})

	obj, err := doc.Store.Allocate(dict)
	if err != nil {
		return object.Reference{}, pdferr.Frame(err, "writer.ReserveSignaturePlaceholder")
	}
	return obj.Reference(), nil
}

// LocateContentsPlaceholder scans data (the bytes produced by a prior
// Write call) for ref's "N G obj" header and returns the byte offsets,
// within data, of the hex digits between the angle brackets of its
// /Contents entry - the region an external signer overwrites in place,
// without touching anything else in the file (so /ByteRange's digest
// over the surrounding bytes stays valid). The returned range covers
// hex digit pairs only, never the brackets themselves.
func LocateContentsPlaceholder(data []byte, ref object.Reference) (start, end int, err error) {
	header := []byte(fmt.Sprintf("%d %d obj", ref.Number, ref.Generation))
	objStart := bytes.Index(data, header)
	if objStart < 0 {
		return 0, 0, pdferr.Errorf(pdferr.NoObject, "object %d %d not found in written output", ref.Number, ref.Generation)
	}
	objEnd := bytes.Index(data[objStart:], []byte("endobj"))
	if objEnd < 0 {
		return 0, 0, pdferr.Errorf(pdferr.UnexpectedEOF, "object %d %d has no endobj", ref.Number, ref.Generation)
	}
	body := data[objStart : objStart+objEnd]

	key := []byte("/Contents")
	idx := bytes.Index(body, key)
	if idx < 0 {
		return 0, 0, pdferr.Errorf(pdferr.NoObject, "object %d %d has no /Contents placeholder", ref.Number, ref.Generation)
	}
	afterKey := objStart + idx + len(key)
	openRel := bytes.IndexByte(data[afterKey:], '<')
	if openRel < 0 {
		return 0, 0, pdferr.Errorf(pdferr.UnexpectedEOF, "unterminated /Contents hex string")
	}
	hexStart := afterKey + openRel + 1
	closeRel := bytes.IndexByte(data[hexStart:], '>')
	if closeRel < 0 {
		return 0, 0, pdferr.Errorf(pdferr.UnexpectedEOF, "unterminated /Contents hex string")
	}
	return hexStart, hexStart + closeRel, nil
}
