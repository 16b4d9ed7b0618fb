package writer

import (
	"bytes"
	"testing"
	"time"

	"github.com/kugler-labs/pdfcore/crypt"
	"github.com/kugler-labs/pdfcore/object"
	"github.com/kugler-labs/pdfcore/xref"
)

// buildCatalogDoc builds a minimal in-memory document: a Catalog
// pointing at an empty Pages tree, mirroring xref_test.go's fixture but
// assembled through the object model rather than raw bytes.
func buildCatalogDoc(t *testing.T) *object.Document {
	t.Helper()
	doc := object.NewDocument("1.7")

	pages := object.NewDict()
	pages.Set("Type", object.Name("Pages"))
	pages.Set("Kids", object.NewArray())
	pages.Set("Count", object.Integer(0))
	pagesObj, err := doc.Store.Allocate(pages)
	if err != nil {
		t.Fatalf("Allocate pages: %v", err)
	}

	cat := object.NewDict()
	cat.Set("Type", object.Name("Catalog"))
	cat.Set("Pages", pagesObj.Reference())
	catObj, err := doc.Store.Allocate(cat)
	if err != nil {
		t.Fatalf("Allocate catalog: %v", err)
	}

	doc.Trailer.Set("Root", catObj.Reference())
	return doc
}

func reopen(t *testing.T, data []byte) *object.Document {
	t.Helper()
	reopened, _, err := xref.Open(bytes.NewReader(data), xref.DefaultConfig())
	if err != nil {
		t.Fatalf("xref.Open(written output): %v\n%s", err, data)
	}
	return reopened
}

func TestWriteClassicXrefRoundTrips(t *testing.T) {
	doc := buildCatalogDoc(t)

	var buf bytes.Buffer
	if err := Write(doc, &buf, DefaultOptions()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	reopened := reopen(t, buf.Bytes())
	root, err := reopened.Root()
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	typ, _ := root.Get("Type")
	if typ != object.Name("Catalog") {
		t.Errorf("/Type = %v, want /Catalog", typ)
	}
	pagesRef, ok := root.Get("Pages")
	if !ok {
		t.Fatal("Root has no /Pages")
	}
	pages, err := reopened.Store.ResolveDeep(pagesRef)
	if err != nil {
		t.Fatalf("resolve /Pages: %v", err)
	}
	pagesDict, ok := pages.(*object.Dict)
	if !ok {
		t.Fatalf("/Pages resolved to %T, want *object.Dict", pages)
	}
	if count, _ := pagesDict.Get("Count"); count != object.Integer(0) {
		t.Errorf("/Pages /Count = %v, want 0", count)
	}
}

func TestWriteObjectStreamPackingRoundTrips(t *testing.T) {
	doc := buildCatalogDoc(t)

	opts := DefaultOptions()
	opts.PackObjectStreams = true

	var buf bytes.Buffer
	if err := Write(doc, &buf, opts); err != nil {
		t.Fatalf("Write: %v", err)
	}

	reopened := reopen(t, buf.Bytes())
	root, err := reopened.Root()
	if err != nil {
		t.Fatalf("Root (packed): %v", err)
	}
	if typ, _ := root.Get("Type"); typ != object.Name("Catalog") {
		t.Errorf("/Type = %v, want /Catalog", typ)
	}
}

// TestWriteObjectStreamPackingUsesXrefStream checks that packing forces
// the xref-stream branch rather than silently falling back to a classic
// table that cannot represent a Compressed entry.
func TestWriteObjectStreamPackingUsesXrefStream(t *testing.T) {
	doc := buildCatalogDoc(t)
	opts := DefaultOptions()
	opts.PackObjectStreams = true

	var buf bytes.Buffer
	if err := Write(doc, &buf, opts); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if bytes.Contains(buf.Bytes(), []byte("\nxref\n")) {
		t.Errorf("expected xref-stream output, found a classic xref table:\n%s", buf.Bytes())
	}
	if !bytes.Contains(buf.Bytes(), []byte("/Type /XRef")) && !bytes.Contains(buf.Bytes(), []byte("/Type/XRef")) {
		t.Errorf("expected an xref stream object (/Type /XRef), got:\n%s", buf.Bytes())
	}
}

func TestWriteIncrementalUpdatePreservesBaseBytes(t *testing.T) {
	doc := buildCatalogDoc(t)

	var base bytes.Buffer
	if err := Write(doc, &base, DefaultOptions()); err != nil {
		t.Fatalf("initial Write: %v", err)
	}

	reopened, ctx, err := xref.Open(bytes.NewReader(base.Bytes()), xref.DefaultConfig())
	if err != nil {
		t.Fatalf("xref.Open(base): %v", err)
	}
	_ = ctx

	root, err := reopened.Root()
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	root.Set("Type", object.Name("Catalog")) // touch, but value unchanged: exercise dirty propagation path
	pagesRef, _ := root.Get("Pages")
	pages, err := reopened.Store.ResolveDeep(pagesRef)
	if err != nil {
		t.Fatalf("resolve /Pages: %v", err)
	}
	pagesDict := pages.(*object.Dict)
	pagesDict.Set("Count", object.Integer(1))

	var id []byte
	if idArr, ok := reopened.Trailer.Get("ID"); ok {
		if arr, ok := idArr.(*object.Array); ok && arr.Len() == 2 {
			if s, ok := arr.At(0).(object.String); ok {
				id = append([]byte(nil), s.Bytes...)
			}
		}
	}

	baseXrefOffset := bytes.Index(base.Bytes(), []byte("\nxref\n")) + 1
	if baseXrefOffset <= 0 {
		t.Fatalf("could not locate base file's xref keyword")
	}

	var update bytes.Buffer
	opts := DefaultOptions()
	opts.Base = &IncrementalBase{
		Source:     bytes.NewReader(base.Bytes()),
		XrefOffset: int64(baseXrefOffset),
		FirstID:    id,
	}
	if err := Write(reopened, &update, opts); err != nil {
		t.Fatalf("incremental Write: %v", err)
	}

	final := reopen(t, update.Bytes())
	finalRoot, err := final.Root()
	if err != nil {
		t.Fatalf("Root (final): %v", err)
	}
	finalPagesRef, _ := finalRoot.Get("Pages")
	finalPages, err := final.Store.ResolveDeep(finalPagesRef)
	if err != nil {
		t.Fatalf("resolve /Pages (final): %v", err)
	}
	if count, _ := finalPages.(*object.Dict).Get("Count"); count != object.Integer(1) {
		t.Errorf("/Pages /Count after incremental update = %v, want 1", count)
	}
	if !bytes.HasPrefix(update.Bytes(), base.Bytes()) {
		t.Error("incremental update did not preserve the base file's bytes verbatim")
	}
}

func TestWriteFreedObjectsJoinFreeList(t *testing.T) {
	doc := buildCatalogDoc(t)
	extra := object.NewDict()
	extra.Set("Unused", object.Bool(true))
	extraObj, err := doc.Store.Allocate(extra)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	doc.Store.Delete(extraObj.Number)

	var buf bytes.Buffer
	if err := Write(doc, &buf, DefaultOptions()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// the head (object 0) must link to the freed slot, which terminates
	// the chain, and the freed slot's generation must be bumped for its
	// next occupant.
	head := []byte("0000000003 65535 f \n")
	freedEntry := []byte("0000000000 00001 f \n")
	if !bytes.Contains(buf.Bytes(), head) {
		t.Errorf("free-list head does not link to freed object 3:\n%s", buf.Bytes())
	}
	if !bytes.Contains(buf.Bytes(), freedEntry) {
		t.Errorf("freed object's entry is not a chain tail at generation 1:\n%s", buf.Bytes())
	}

	reopened := reopen(t, buf.Bytes())
	v, err := reopened.Store.Resolve(object.Reference{Number: extraObj.Number})
	if err != nil {
		t.Fatalf("resolving freed object: %v", err)
	}
	if _, ok := v.(object.Null); !ok {
		t.Errorf("freed object resolved to %v, want null", v)
	}
}

func trailerFirstID(t *testing.T, doc *object.Document) []byte {
	t.Helper()
	arr, ok := doc.Trailer.GetOrNull("ID").(*object.Array)
	if !ok || arr.Len() != 2 {
		t.Fatal("trailer has no 2-element /ID")
	}
	s, ok := arr.At(0).(object.String)
	if !ok {
		t.Fatal("/ID[0] is not a string")
	}
	return append([]byte(nil), s.Bytes...)
}

func TestWriteEncryptedRoundTrips(t *testing.T) {
	doc := buildCatalogDoc(t)
	root, err := doc.Root()
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	secret := "the magic words are squeamish ossifrage"
	root.Set("Marker", object.String{Bytes: []byte(secret)})

	// a plain write first, to learn the /ID the encrypted write will
	// carry (it depends only on /Info, which does not change below).
	var plain bytes.Buffer
	if err := Write(doc, &plain, DefaultOptions()); err != nil {
		t.Fatalf("plain Write: %v", err)
	}
	id := trailerFirstID(t, reopen(t, plain.Bytes()))

	settings := crypt.NewStandardR234(3, 16, 0xFFFFFFFC, id, true, "user", "owner")
	handler, ok := crypt.AuthenticateUser(settings, "user")
	if !ok {
		t.Fatal("freshly built settings reject their own user password")
	}

	enc := object.NewDict()
	enc.Set("Filter", object.Name("Standard"))
	enc.Set("V", object.Integer(2))
	enc.Set("R", object.Integer(3))
	enc.Set("Length", object.Integer(128))
	enc.Set("P", object.Integer(-4))
	enc.Set("O", object.String{Bytes: settings.O, Hex: true})
	enc.Set("U", object.String{Bytes: settings.U, Hex: true})
	encObj, err := doc.Store.Allocate(enc)
	if err != nil {
		t.Fatalf("Allocate /Encrypt: %v", err)
	}
	doc.Trailer.Set("Encrypt", encObj.Reference())

	opts := DefaultOptions()
	opts.Cipher = handler
	opts.EncryptObjNum = encObj.Number
	var buf bytes.Buffer
	if err := Write(doc, &buf, opts); err != nil {
		t.Fatalf("encrypted Write: %v", err)
	}
	if bytes.Contains(buf.Bytes(), []byte(secret)) {
		t.Fatal("plaintext string survived in the encrypted output")
	}

	for _, password := range []string{"user", "owner"} {
		cfg := xref.DefaultConfig()
		cfg.Password = password
		reopened, _, err := xref.Open(bytes.NewReader(buf.Bytes()), cfg)
		if err != nil {
			t.Fatalf("xref.Open with %q: %v", password, err)
		}
		rr, err := reopened.Root()
		if err != nil {
			t.Fatalf("Root (%q): %v", password, err)
		}
		marker, _ := rr.Get("Marker")
		s, ok := marker.(object.String)
		if !ok {
			t.Fatalf("/Marker is %T, want object.String", marker)
		}
		if string(s.Bytes) != secret {
			t.Errorf("decrypted /Marker with %q = %q, want %q", password, s.Bytes, secret)
		}
	}

	// a wrong password still opens (nothing is resolved eagerly) but
	// leaves strings undecrypted.
	cfg := xref.DefaultConfig()
	cfg.Password = "nope"
	reopened, ctx, err := xref.Open(bytes.NewReader(buf.Bytes()), cfg)
	if err != nil {
		t.Fatalf("xref.Open with wrong password: %v", err)
	}
	if _, ok := ctx.Authenticate("owner"); !ok {
		t.Error("retrying with the owner password after a failed open should succeed")
	}
	rr, err := reopened.Root()
	if err != nil {
		t.Fatalf("Root (retried): %v", err)
	}
	if s, _ := rr.Get("Marker"); string(s.(object.String).Bytes) != secret {
		t.Error("retried authentication did not decrypt /Marker")
	}
}

func TestNewInfoGivesStableDocumentID(t *testing.T) {
	created := time.Date(2024, 3, 9, 12, 30, 0, 0, time.UTC)

	build := func() *object.Document {
		doc := buildCatalogDoc(t)
		info, err := NewInfo("unit test", "pdfcore", created)
		if err != nil {
			t.Fatalf("NewInfo: %v", err)
		}
		infoObj, err := doc.Store.Allocate(info)
		if err != nil {
			t.Fatalf("Allocate info: %v", err)
		}
		doc.Trailer.Set("Info", infoObj.Reference())
		return doc
	}

	var a, b bytes.Buffer
	if err := Write(build(), &a, DefaultOptions()); err != nil {
		t.Fatalf("Write a: %v", err)
	}
	if err := Write(build(), &b, DefaultOptions()); err != nil {
		t.Fatalf("Write b: %v", err)
	}

	idA := trailerFirstID(t, reopen(t, a.Bytes()))
	idB := trailerFirstID(t, reopen(t, b.Bytes()))
	if !bytes.Equal(idA, idB) {
		t.Errorf("same content produced different /IDs: %x vs %x", idA, idB)
	}
	if len(idA) != 16 {
		t.Errorf("/ID[0] length = %d, want 16 (an MD5 digest)", len(idA))
	}
}

func TestSignaturePlaceholderRoundTrips(t *testing.T) {
	doc := buildCatalogDoc(t)

	ref, err := ReserveSignaturePlaceholder(doc, 4)
	if err != nil {
		t.Fatalf("ReserveSignaturePlaceholder: %v", err)
	}

	var buf bytes.Buffer
	if err := Write(doc, &buf, DefaultOptions()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	start, end, err := LocateContentsPlaceholder(buf.Bytes(), ref)
	if err != nil {
		t.Fatalf("LocateContentsPlaceholder: %v", err)
	}
	if got, want := end-start, 8; got != want { // 4 bytes = 8 hex digits
		t.Errorf("placeholder hex span = %d bytes, want %d", got, want)
	}
	if got := string(buf.Bytes()[start:end]); got != "00000000" {
		t.Errorf("placeholder contents = %q, want all-zero hex", got)
	}

	// patch in place, as an external signer would, and confirm the
	// surrounding bytes (and therefore any /ByteRange digest over them)
	// are untouched.
	patched := append([]byte(nil), buf.Bytes()...)
	copy(patched[start:end], []byte("deadbeef"))
	if !bytes.Equal(patched[:start], buf.Bytes()[:start]) || !bytes.Equal(patched[end:], buf.Bytes()[end:]) {
		t.Error("patching the placeholder touched bytes outside its span")
	}

	reopened := reopen(t, patched)
	sigVal, err := reopened.Store.Resolve(ref)
	if err != nil {
		t.Fatalf("resolve signature object: %v", err)
	}
	sigDict, ok := sigVal.(*object.Dict)
	if !ok {
		t.Fatalf("signature object resolved to %T, want *object.Dict", sigVal)
	}
	contents, ok := sigDict.Get("Contents")
	if !ok {
		t.Fatal("patched signature dict has no /Contents")
	}
	s, ok := contents.(object.String)
	if !ok {
		t.Fatalf("/Contents is %T, want object.String", contents)
	}
	if !bytes.Equal(s.Bytes, []byte{0xde, 0xad, 0xbe, 0xef}) {
		t.Errorf("patched /Contents = %x, want deadbeef", s.Bytes)
	}
}
