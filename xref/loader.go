// Object loading. Every IndirectObject registered by
// Open carries a Loader closure that seeks to the right offset (direct
// objects) or expands the owning object stream (compressed objects) the
// first time it's resolved, decrypting strings and stream bytes along
// the way when the document is encrypted.
package xref

import (
	"io"

	"github.com/kugler-labs/pdfcore/crypt"
	"github.com/kugler-labs/pdfcore/object"
	"github.com/kugler-labs/pdfcore/pdferr"
	"github.com/kugler-labs/pdfcore/token"
)

// Context is the live state behind a loaded Document: the underlying
// file, the resolved cross-reference table, and (once authenticated)
// the encryption Handler, kept around so an object's bytes can be
// decrypted lazily, on first Resolve.
type Context struct {
	rs          io.ReadSeeker
	cfg         Config
	magicOffset int64
	tbl         *table
	doc         *object.Document

	cipher        *crypt.Handler
	encryptObjNum uint32 // 0 if the Encrypt dict is a direct trailer value, never decrypted either way
	haveEncrypt   bool

	objStmCache map[uint32]objStmResult
}

type objStmResult struct {
	objNums []uint32
	values  []object.Value
}

// Open reads rs as a complete PDF file: locates
// the header and every startxref-reachable xref section,
// merges their trailers, and registers a lazily-loading IndirectObject
// for every entry discovered. If the trailer declares an /Encrypt
// dictionary, Open authenticates cfg.Password immediately; a caller
// that doesn't yet know the password can pass an empty one and retry
// later via Context.Authenticate, since nothing is resolved eagerly.
func Open(rs io.ReadSeeker, cfg Config) (*object.Document, *Context, error) {
	fileSize, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, nil, pdferr.Errorf(pdferr.Io, "seek to end: %w", err)
	}

	magicOffset, version, err := scanMagic(rs, fileSize, cfg.Strict)
	if err != nil {
		return nil, nil, pdferr.Frame(err, "xref.Open")
	}
	trailingGarbage, err := scanEOF(rs, fileSize, cfg.Strict)
	if err != nil && cfg.Strict {
		return nil, nil, pdferr.Frame(err, "xref.Open")
	} else if err != nil {
		cfg.logf("xref.Open: %v", err)
	}
	startOffset, err := scanStartXref(rs, fileSize, trailingGarbage, cfg.Strict)
	if err != nil {
		return nil, nil, pdferr.Frame(err, "xref.Open")
	}
	if startOffset+magicOffset >= fileSize {
		if cfg.Strict {
			return nil, nil, pdferr.Errorf(pdferr.InvalidXRef, "startxref offset %d points past the end of the file", startOffset)
		}
		cfg.logf("xref.Open: stale startxref offset %d, rescanning for the last xref section", startOffset)
		startOffset, err = rescanForXref(rs, fileSize, magicOffset)
		if err != nil {
			return nil, nil, pdferr.Frame(err, "xref.Open")
		}
	}

	tbl, trailer, incUpdates, err := buildTable(rs, magicOffset, startOffset, cfg)
	if err != nil {
		return nil, nil, pdferr.Frame(err, "xref.Open")
	}

	doc := object.NewDocument(version)
	doc.Trailer = trailer
	doc.IncrementalUpdates = incUpdates
	doc.Linearization = scanLinearization(rs, magicOffset, cfg)

	size := tbl.maxSeen + 1
	if n, err := object.AsNumberLenient(trailer.GetOrNull("Size")); err == nil && n > 0 {
		size = uint32(n)
	}
	doc.SetBaseObjectCount(size)

	ctx := &Context{
		rs:          rs,
		cfg:         cfg,
		magicOffset: magicOffset,
		tbl:         tbl,
		doc:         doc,
		objStmCache: make(map[uint32]objStmResult),
	}

	if encVal, ok := trailer.Get("Encrypt"); ok {
		ctx.haveEncrypt = true
		if ref, ok := encVal.(object.Reference); ok {
			ctx.encryptObjNum = ref.Number
		}
	}

	for num, e := range tbl.entries {
		obj := object.NewLazyObject(num, e.generation, ctx.makeLoader(num, *e))
		if e.kind == entryFree {
			obj.Free()
		}
		doc.Store.Insert(obj)
	}

	if ctx.haveEncrypt {
		if _, ok := ctx.Authenticate(cfg.Password); !ok {
			cfg.logf("xref.Open: password authentication failed for %q", cfg.Password)
		}
	}

	return doc, ctx, nil
}

// Authenticate tries password as both the user and owner password
// against the document's /Encrypt dictionary, installing the resulting
// Handler on success. Safe to call again after Open with a different
// password, since no object has necessarily been resolved yet.
func (ctx *Context) Authenticate(password string) (*crypt.Handler, bool) {
	if !ctx.haveEncrypt {
		return nil, true
	}
	encDict, err := ctx.resolveEncryptDict()
	if err != nil {
		return nil, false
	}
	firstID := firstTrailerID(ctx.doc.Trailer)
	settings, err := encryptionSettingsFromDict(encDict, firstID)
	if err != nil {
		ctx.cfg.logf("xref.Authenticate: %v", err)
		return nil, false
	}
	if h, ok := crypt.AuthenticateUser(settings, password); ok {
		ctx.cipher = h
		return h, true
	}
	if h, ok := crypt.AuthenticateOwner(settings, password); ok {
		ctx.cipher = h
		return h, true
	}
	return nil, false
}

func (ctx *Context) resolveEncryptDict() (*object.Dict, error) {
	v, _ := ctx.doc.Trailer.Get("Encrypt")
	resolved, err := ctx.doc.Store.ResolveDeep(v)
	if err != nil {
		return nil, err
	}
	d, ok := resolved.(*object.Dict)
	if !ok {
		return nil, pdferr.New(pdferr.InvalidEncryptionDict, "/Encrypt does not resolve to a dictionary")
	}
	return d, nil
}

func firstTrailerID(trailer *object.Dict) []byte {
	arr, ok := trailer.GetOrNull("ID").(*object.Array)
	if !ok || arr.Len() == 0 {
		return nil
	}
	s, ok := arr.At(0).(object.String)
	if !ok {
		return nil
	}
	return s.Bytes
}

// makeLoader returns the Loader (object.Loader) for one xref entry,
// dispatching on its kind.
func (ctx *Context) makeLoader(objNum uint32, e entry) object.Loader {
	return func() (object.Value, *object.Stream, error) {
		switch e.kind {
		case entryInUse:
			return ctx.loadDirect(objNum, e)
		case entryCompressed:
			v, err := ctx.loadCompressed(e.streamObj, e.indexInStream)
			return v, nil, err
		default:
			return object.Null{}, nil, nil
		}
	}
}

func (ctx *Context) loadDirect(objNum uint32, e entry) (object.Value, *object.Stream, error) {
	tk, err := token.AtOffset(ctx.rs, ctx.magicOffset+e.offset)
	if err != nil {
		return nil, nil, pdferr.Frame(err, "xref.loadDirect")
	}
	num, gen, err := parseObjectHeader(tk)
	if err != nil {
		return nil, nil, pdferr.Frame(err, "xref.loadDirect")
	}
	if num != objNum || gen != e.generation {
		if ctx.cfg.Strict {
			return nil, nil, pdferr.Errorf(pdferr.InvalidXRef, "xref points to object %d at offset %d, found %d %d obj", objNum, e.offset, num, gen)
		}
		ctx.cfg.logf("xref: object %d generation mismatch (xref says %d, file says %d)", objNum, e.generation, gen)
	}

	v, err := object.Parse(tk)
	if err != nil {
		return nil, nil, pdferr.Frame(err, "xref.loadDirect")
	}

	streamTok, err := tk.PeekToken()
	if err != nil {
		return nil, nil, pdferr.Frame(err, "xref.loadDirect")
	}
	if !streamTok.IsOther("stream") {
		if objNum != ctx.encryptObjNum || !ctx.haveEncrypt {
			if err := ctx.decryptValue(objNum, gen, v); err != nil {
				return nil, nil, pdferr.Frame(err, "xref.loadDirect")
			}
		}
		return v, nil, nil
	}
	_, _ = tk.NextToken() // consume "stream"

	dict, ok := v.(*object.Dict)
	if !ok {
		return nil, nil, pdferr.New(pdferr.BrokenFile, "'stream' keyword following a non-dictionary object")
	}
	length, err := ctx.resolveStreamLength(dict)
	if err != nil {
		return nil, nil, pdferr.Frame(err, "xref.loadDirect")
	}
	raw := readStreamBody(tk, length)

	exempt := objNum == ctx.encryptObjNum && ctx.haveEncrypt
	isXRefStream := dict.GetOrNull("Type") == object.Name("XRef")
	if !isXRefStream && !exempt && ctx.cipher != nil {
		raw, err = ctx.cipher.DecryptObject(objNum, gen, raw)
		if err != nil {
			return nil, nil, pdferr.Frame(err, "xref.loadDirect")
		}
	}
	if !exempt {
		if err := ctx.decryptValue(objNum, gen, dict); err != nil {
			return nil, nil, pdferr.Frame(err, "xref.loadDirect")
		}
	}

	return dict, object.NewStream(dict, raw), nil
}

// resolveStreamLength reads /Length, following an indirect reference
// when present (the common case for a freshly-written, not-yet-
// renumbered object whose length was only known after the fact),
// reusing the Store's ordinary lazy-resolution machinery: resolving a
// different object here is never a cycle, since a stream is never its
// own /Length.
func (ctx *Context) resolveStreamLength(dict *object.Dict) (int, error) {
	v, ok := dict.Get("Length")
	if !ok {
		return 0, pdferr.New(pdferr.InvalidStreamLength, "stream dictionary has no /Length")
	}
	resolved, err := ctx.doc.Store.ResolveDeep(v)
	if err != nil {
		return 0, err
	}
	n, err := object.AsNumberLenient(resolved)
	if err != nil || n < 0 {
		return 0, pdferr.New(pdferr.InvalidStreamLength, "/Length did not resolve to a non-negative integer")
	}
	return int(n), nil
}

func (ctx *Context) loadCompressed(streamObjNum, index uint32) (object.Value, error) {
	res, err := ctx.expandObjectStream(streamObjNum)
	if err != nil {
		return nil, pdferr.Frame(err, "xref.loadCompressed")
	}
	if int(index) >= len(res.values) {
		return nil, pdferr.Errorf(pdferr.InvalidXRef, "compressed object index %d out of range in object stream %d", index, streamObjNum)
	}
	return res.values[index], nil
}

// decryptValue walks a resolved Dict/Array in place, decrypting every
// String's bytes; scalars and containers otherwise pass through
// unchanged. Strings belonging to the Encrypt dictionary itself are
// never visited (decryptValue is simply never called on objNum ==
// ctx.encryptObjNum).
func (ctx *Context) decryptValue(num uint32, gen uint16, v object.Value) error {
	if ctx.cipher == nil || !ctx.haveEncrypt {
		return nil
	}
	switch t := v.(type) {
	case object.String:
		// String is a value type; callers holding a *Dict/*Array entry
		// must reassign through Set, handled by the two branches below.
		return nil
	case *object.Dict:
		for _, k := range t.Keys() {
			val, _ := t.Get(k)
			if s, ok := val.(object.String); ok {
				dec, err := ctx.cipher.DecryptObject(num, gen, s.Bytes)
				if err != nil {
					return err
				}
				t.Set(k, object.String{Bytes: dec, Hex: s.Hex})
				continue
			}
			if err := ctx.decryptValue(num, gen, val); err != nil {
				return err
			}
		}
		return nil
	case *object.Array:
		for i := 0; i < t.Len(); i++ {
			val := t.At(i)
			if s, ok := val.(object.String); ok {
				dec, err := ctx.cipher.DecryptObject(num, gen, s.Bytes)
				if err != nil {
					return err
				}
				t.Set(i, object.String{Bytes: dec, Hex: s.Hex})
				continue
			}
			if err := ctx.decryptValue(num, gen, val); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}
