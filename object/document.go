package object

import "github.com/kugler-labs/pdfcore/pdferr"

// Document is the top-level in-memory representation of a PDF file: its
// object store, the trailer dictionary currently in effect (after
// merging every /Prev section), the declared version, and bookkeeping
// used by the writer to decide between a full rewrite and an
// incremental update.
//
// Document does not import package crypt: per-object decryption is done
// by package xref while loading, which extracts the /Encrypt fields into
// a crypt.Settings and decrypts through a crypt.Handler it holds. A
// document with no /Encrypt entry never creates a Handler, and object
// and crypt do not import each other.
type Document struct {
	Store *Store

	// Trailer is the effective trailer: Root, Info, ID, Encrypt, Size,
	// and (while still attached) Prev, built by chasing every /Prev
	// section at load time and overlaying earlier sections' entries
	// with later ones, per the trailer-merging rule.
	Trailer *Dict

	// Version is the header version string, e.g. "1.7", taken from
	// "%PDF-1.7". A /Version entry in the document catalog is not
	// consulted.
	Version string

	// Linearization holds the first-page hint dictionary when the file
	// declares one (the 1-indirect-object dict pointed to right after
	// the header), or nil.
	Linearization *Dict

	// IncrementalUpdates counts how many xref sections were reached
	// through a /Prev or /XRefStm link while loading; 0 for a
	// freshly-built document or one whose only section has neither link.
	IncrementalUpdates int

	// baseObjectCount is the object count fixed by the original file's
	// /Size (or the written count, for an in-memory document): the
	// writer uses it to decide which object numbers belong to "the
	// original" when emitting an incremental update.
	baseObjectCount uint32
}

// NewDocument creates an empty in-memory Document, suitable for
// building a PDF from scratch.
func NewDocument(version string) *Document {
	return &Document{
		Store:   NewStore(),
		Trailer: NewDict(),
		Version: version,
	}
}

// BaseObjectCount returns the object count recorded at load time (or at
// the last full rewrite), used by the writer's incremental-update path.
func (d *Document) BaseObjectCount() uint32 { return d.baseObjectCount }

// SetBaseObjectCount records the object count to treat as "already on
// disk" for future incremental updates; called by the xref loader after
// successfully loading a file, and by the writer after a full rewrite.
func (d *Document) SetBaseObjectCount(n uint32) { d.baseObjectCount = n }

// Root resolves and returns the document catalog (the Trailer's /Root
// entry), or an error if it is missing or not a dictionary.
func (d *Document) Root() (*Dict, error) {
	v, ok := d.Trailer.Get("Root")
	if !ok {
		return nil, rootMissing()
	}
	resolved, err := d.Store.ResolveDeep(v)
	if err != nil {
		return nil, err
	}
	dict, ok := resolved.(*Dict)
	if !ok {
		return nil, rootNotDict()
	}
	return dict, nil
}

func rootMissing() error {
	return pdferr.New(pdferr.NoTrailer, "trailer has no /Root entry")
}

func rootNotDict() error {
	return pdferr.New(pdferr.NoTrailer, "/Root does not resolve to a dictionary")
}
