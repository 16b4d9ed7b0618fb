package writer

import (
	"github.com/kugler-labs/pdfcore/filter"
	"github.com/kugler-labs/pdfcore/object"
	"github.com/kugler-labs/pdfcore/pdferr"
)

// objStmChunkSize bounds how many objects go into a single /ObjStm
// container: real generators cap this too (pdfcpu and podofo both use a
// value in the low hundreds), trading a few more small streams for
// bounded memory use while building the prolog.
const objStmChunkSize = 200

// packObjects partitions toWrite into objects eligible for
// object-stream packing (generation 0, no stream of their own, not the
// Encrypt dictionary) and everything else, then builds and writes one or more
// /ObjStm containers for the eligible set when
// w.opts.PackObjectStreams is set. Eligible
// objects never reach emitDirect; their Compressed xref entries are
// returned directly.
func (w *writer) packObjects(toWrite []*object.IndirectObject) (packed map[uint32]xrefEntry, direct []*object.IndirectObject, err error) {
	packed = map[uint32]xrefEntry{}
	if !w.opts.PackObjectStreams {
		return packed, toWrite, nil
	}

	var candidates []*object.IndirectObject
	for _, o := range toWrite {
		if o.Generation != 0 || o.Number == w.opts.EncryptObjNum {
			direct = append(direct, o)
			continue
		}
		stream, err := o.Stream()
		if err != nil {
			return nil, nil, pdferr.Frame(err, "writer.packObjects")
		}
		if stream != nil {
			direct = append(direct, o)
			continue
		}
		candidates = append(candidates, o)
	}

	for start := 0; start < len(candidates); start += objStmChunkSize {
		end := start + objStmChunkSize
		if end > len(candidates) {
			end = len(candidates)
		}
		if err := w.writeObjectStreamChunk(candidates[start:end], packed); err != nil {
			return nil, nil, err
		}
	}
	return packed, direct, nil
}

// writeObjectStreamChunk serializes members into one /ObjStm object:
// the (number, offset) prolog first, then the bodies back to back.
func (w *writer) writeObjectStreamChunk(members []*object.IndirectObject, packed map[uint32]xrefEntry) error {
	var prolog, bodies buffer
	for i, o := range members {
		v, err := o.Resolve()
		if err != nil {
			return pdferr.Frame(err, "writer.writeObjectStreamChunk")
		}
		offset := len(bodies.bytes())
		prolog.fmt("%d %d ", o.Number, offset)
		w.writeValue(&bodies, v, o.Number, 0, true)
		bodies.fmt(" ")
		packed[o.Number] = xrefEntry{kind: entryCompressed, indexInStream: uint32(i)}
	}

	first := len(prolog.bytes())
	payload := append(append([]byte(nil), prolog.bytes()...), bodies.bytes()...)

	chain := filter.Chain{Filters: []filter.Name{filter.Flate}}
	compressed, err := chain.Encode(payload)
	if err != nil {
		return pdferr.Frame(err, "writer.writeObjectStreamChunk")
	}

	obj, err := w.doc.Store.Allocate(object.NewDict())
	if err != nil {
		return pdferr.Frame(err, "writer.writeObjectStreamChunk")
	}
	dict := object.NewDict()
	dict.Set("Type", object.Name("ObjStm"))
	dict.Set("N", object.Integer(len(members)))
	dict.Set("First", object.Integer(first))
	dict.Set("Filter", object.Name("FlateDecode"))
	dict.Set("Length", object.Integer(len(compressed)))
	obj.SetStream(object.NewStream(dict, compressed))

	if err := w.writeStreamObject(obj.Number, obj.Generation, dict, compressed, false); err != nil {
		return err
	}
	packed[obj.Number] = xrefEntry{kind: entryInUse, generation: obj.Generation, offset: w.offsets[obj.Number]}

	for i := range members {
		e := packed[members[i].Number]
		e.streamObj = obj.Number
		packed[members[i].Number] = e
	}
	return nil
}
