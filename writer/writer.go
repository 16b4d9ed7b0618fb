// Package writer implements the PDF serializer: header, per-object
// emission in ascending number order, incremental-update mode,
// object-stream packing and the classic or xref-stream cross-reference
// section, finishing with the trailer and startxref footer.
package writer

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"io"

	"github.com/kugler-labs/pdfcore/crypt"
	"github.com/kugler-labs/pdfcore/object"
	"github.com/kugler-labs/pdfcore/pdferr"
)

// Mode selects how much whitespace the serializer spends on readability.
type Mode int

const (
	// Clean writes each dictionary entry on its own line.
	Clean Mode = iota
	// Compact drops all non-significant whitespace.
	Compact
)

// IncrementalBase describes the previously-written file an incremental
// update appends to: its bytes are copied verbatim, and the new xref
// section chains to it via /Prev rather than re-describing objects that
// didn't change, mirroring how package xref's resolver follows /Prev on
// the read side.
type IncrementalBase struct {
	// Source is read to EOF and copied to the destination before any new
	// object is emitted.
	Source io.Reader
	// XrefOffset is the byte offset, within Source, of the previous
	// file's own "xref" keyword or xref-stream object header, recorded
	// as the new trailer's /Prev.
	XrefOffset int64
	// FirstID is the first element of the previous file's trailer /ID,
	// preserved unchanged per the "original first if incremental update"
	// rule; a fresh second element is always generated.
	FirstID []byte
}

// Options configures a single Write call.
type Options struct {
	Mode Mode

	// PackObjectStreams packs eligible objects (DictResident, no stream,
	// generation 0, not the Encrypt dictionary) into /ObjStm containers
	// and emits Compressed xref entries for them; doing so forces
	// xref-stream output, since classic xref tables cannot express a
	// Compressed entry.
	PackObjectStreams bool

	// Cipher, when non-nil, encrypts every string and stream payload at
	// emission time, except the /Encrypt dictionary itself (identified
	// by EncryptObjNum) and objects packed into an /ObjStm, which are
	// never individually encrypted (their container stream carries the
	// encryption instead).
	Cipher        *crypt.Handler
	EncryptObjNum uint32

	// Base, if non-nil, requests an incremental update: only dirty
	// objects are (re)written, after Base.Source is copied verbatim.
	Base *IncrementalBase
}

// DefaultOptions returns a full, Clean-mode rewrite with no encryption
// and no object-stream packing.
func DefaultOptions() Options { return Options{Mode: Clean} }

type writer struct {
	dst     io.Writer
	err     error // internal error, to defer error checking
	written int64 // total number of bytes written to dst

	opts Options
	doc  *object.Document

	// offsets records the byte offset of every object this call emits
	// directly (not packed into an /ObjStm); a map rather than a dense
	// slice since a rewrite's object numbers need not be contiguous.
	offsets map[uint32]int64
}

func newWriter(dst io.Writer, opts Options) *writer {
	return &writer{dst: dst, opts: opts, offsets: make(map[uint32]int64)}
}

func (w *writer) bytes(b []byte) {
	if w.err != nil { // write is now a no-op
		return
	}
	n, err := w.dst.Write(b)
	w.written += int64(n)
	if err != nil {
		w.err = err
	}
}

func (w *writer) write(b *buffer) {
	w.bytes(b.bytes())
}

type buffer bytes.Buffer

func (b *buffer) fmt(format string, arg ...interface{}) {
	fmt.Fprintf((*bytes.Buffer)(b), format, arg...)
}

func (b *buffer) bytes() []byte { return (*bytes.Buffer)(b).Bytes() }

// writeHeader emits the version line and the four-byte binary-marker
// comment that keeps transfer tools from treating the file as text.
func (w *writer) writeHeader(version string) {
	w.bytes([]byte(fmt.Sprintf("%%PDF-%s\n%%\xe2\xe3\xcf\xd3\n", version)))
}

// writeObject records num's offset and emits "N G obj ... endobj".
func (w *writer) writeObject(num uint32, gen uint16, content []byte) {
	w.offsets[num] = w.written
	w.bytes([]byte(fmt.Sprintf("%d %d obj\n", num, gen)))
	w.bytes(content)
	w.bytes([]byte("\nendobj\n"))
}

// writeStreamObject emits a stream object's dictionary and raw payload,
// encrypting the payload first unless exempt (the object is an xref
// stream, or is the /Encrypt dictionary itself).
func (w *writer) writeStreamObject(num uint32, gen uint16, dict *object.Dict, raw []byte, exempt bool) error {
	if w.opts.Cipher != nil && !exempt {
		enc, err := w.opts.Cipher.EncryptObject(num, gen, raw)
		if err != nil {
			return pdferr.Frame(err, "writer.writeStreamObject")
		}
		raw = enc
		// the dict's /Length describes the bytes actually on disk, which
		// is the encrypted length, not Stream.Raw's pre-encryption one;
		// clone so the in-memory model's own /Length is untouched.
		cloned, _ := dict.Clone().(*object.Dict)
		cloned.Set("Length", object.Integer(len(raw)))
		dict = cloned
	}
	var b buffer
	w.writeValue(&b, dict, num, gen, exempt)
	b.fmt("\nstream\n")
	(*bytes.Buffer)(&b).Write(raw)
	b.fmt("\nendstream")
	w.writeObject(num, gen, b.bytes())
	return nil
}

// Write serializes doc to dst per opts, then advances doc's
// base-object-count bookkeeping so a later incremental update of the
// same in-memory Document knows which numbers are already on disk.
func Write(doc *object.Document, dst io.Writer, opts Options) error {
	w := newWriter(dst, opts)
	w.doc = doc

	if opts.Base != nil {
		n, err := io.Copy(w.dst, opts.Base.Source)
		if err != nil {
			return pdferr.Errorf(pdferr.Io, "copying incremental base: %w", err)
		}
		w.written += n
	} else {
		w.writeHeader(doc.Version)
	}

	var toWrite, freed []*object.IndirectObject
	collect := func(o *object.IndirectObject) {
		if o.State() == object.Free {
			if o.Number != 0 {
				freed = append(freed, o)
			}
			return
		}
		toWrite = append(toWrite, o)
	}
	if opts.Base != nil {
		for _, o := range doc.Store.DirtyObjects() {
			collect(o)
		}
	} else {
		doc.Store.IterSorted(collect)
	}

	packed, direct, err := w.packObjects(toWrite)
	if err != nil {
		return err
	}
	entries := map[uint32]xrefEntry{}
	for num, e := range packed {
		entries[num] = e
	}

	for _, o := range direct {
		if err := w.emitDirect(o); err != nil {
			return err
		}
		entries[o.Number] = xrefEntry{kind: entryInUse, generation: o.Generation, offset: w.offsets[o.Number]}
	}
	if w.err != nil {
		return pdferr.Errorf(pdferr.Io, "writing objects: %w", w.err)
	}

	// freed objects become free xref entries carrying the generation
	// their next occupant must use; 65535 marks a retired slot.
	for _, o := range freed {
		gen := o.Generation
		if gen < 65535 {
			gen++
		}
		entries[o.Number] = xrefEntry{kind: entryFree, generation: gen}
	}
	// a full rewrite re-declares the free-list head; an incremental
	// update leaves it to the base file it chains to via /Prev.
	if opts.Base == nil {
		if _, ok := entries[0]; !ok {
			entries[0] = xrefEntry{kind: entryFree, generation: 65535}
		}
	}
	chainFreeList(entries)

	size := doc.BaseObjectCount()
	for num := range entries {
		if num+1 > size {
			size = num + 1
		}
	}

	trailer := buildTrailer(doc, size, opts)

	var xrefOffset int64
	if opts.PackObjectStreams || hasCompressed(entries) {
		xrefOffset, err = w.writeXrefStream(doc, entries, trailer, size)
		if err != nil {
			return err
		}
	} else {
		xrefOffset = w.written
		w.writeClassicXref(entries, size)
		w.writeTrailerKeyword(trailer)
	}

	w.bytes([]byte(fmt.Sprintf("startxref\n%d\n%%%%EOF", xrefOffset)))
	if w.err != nil {
		return pdferr.Errorf(pdferr.Io, "finishing write: %w", w.err)
	}
	doc.SetBaseObjectCount(size)
	return nil
}

// emitDirect writes one non-packed object in place: every object when
// packing is off, otherwise one that has a stream, a non-zero
// generation, or is the /Encrypt dictionary.
func (w *writer) emitDirect(o *object.IndirectObject) error {
	v, err := o.Resolve()
	if err != nil {
		return pdferr.Frame(err, "writer.emitDirect")
	}
	stream, err := o.Stream()
	if err != nil {
		return pdferr.Frame(err, "writer.emitDirect")
	}
	exempt := o.Number == w.opts.EncryptObjNum && w.opts.Cipher != nil
	if stream != nil {
		// xref streams carried over from a parsed file are never
		// encrypted, whatever the document's cipher says.
		if t, _ := stream.Dict.Get("Type"); t == object.Name("XRef") {
			exempt = true
		}
		return w.writeStreamObject(o.Number, o.Generation, stream.Dict, stream.Raw, exempt)
	}
	var b buffer
	w.writeValue(&b, v, o.Number, o.Generation, exempt)
	w.writeObject(o.Number, o.Generation, b.bytes())
	return nil
}

func hasCompressed(entries map[uint32]xrefEntry) bool {
	for _, e := range entries {
		if e.kind == entryCompressed {
			return true
		}
	}
	return false
}

// buildTrailer assembles the Size/Root/Info/ID/Encrypt/Prev trailer
// dictionary. It never mutates doc.Trailer: the returned Dict is
// write-local state.
func buildTrailer(doc *object.Document, size uint32, opts Options) *object.Dict {
	t := object.NewDict()
	t.Set("Size", object.Integer(size))
	if root, ok := doc.Trailer.Get("Root"); ok {
		t.Set("Root", root)
	}
	if info, ok := doc.Trailer.Get("Info"); ok {
		t.Set("Info", info)
	}
	if enc, ok := doc.Trailer.Get("Encrypt"); ok {
		t.Set("Encrypt", enc)
	}

	first := documentID(doc)
	second := first
	if opts.Base != nil && len(opts.Base.FirstID) > 0 {
		first = opts.Base.FirstID
		second = documentID(doc)
	}
	t.Set("ID", object.NewArray(
		object.String{Bytes: first, Hex: true},
		object.String{Bytes: second, Hex: true},
	))

	if opts.Base != nil {
		t.Set("Prev", object.Integer(opts.Base.XrefOffset))
	}
	return t
}

// documentID hashes the resolved Info dictionary (CreationDate,
// Creator, Producer, Location) with MD5.
func documentID(doc *object.Document) []byte {
	h := md5.New()
	info, err := doc.Store.ResolveDeep(doc.Trailer.GetOrNull("Info"))
	if err == nil {
		if d, ok := info.(*object.Dict); ok {
			for _, k := range []object.Name{"CreationDate", "Creator", "Producer", "Location"} {
				if v, ok := d.Get(k); ok {
					io.WriteString(h, v.String())
				}
			}
		}
	}
	return h.Sum(nil)
}

func (w *writer) writeTrailerKeyword(trailer *object.Dict) {
	var b buffer
	b.fmt("trailer\n")
	w.writeValue(&b, trailer, 0, 0, true)
	b.fmt("\n")
	w.write(&b)
}
