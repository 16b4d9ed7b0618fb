package xref

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/kugler-labs/pdfcore/object"
)

// buildMinimalPDF assembles a tiny, well-formed classic-xref PDF byte
// by byte, recording each object's offset as it's written rather than
// hand-counting bytes, so the fixture stays correct if its wording ever
// changes.
func buildMinimalPDF() []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, 3) // index 0 unused (the free head)

	offsets[1] = buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	offsets[2] = buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n")

	xrefOffset := buf.Len()
	buf.WriteString("xref\n0 3\n")
	buf.WriteString("0000000000 65535 f \n")
	fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[1])
	fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[2])
	buf.WriteString("trailer\n<< /Size 3 /Root 1 0 R >>\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF", xrefOffset)

	return buf.Bytes()
}

func TestOpenMinimalDocument(t *testing.T) {
	data := buildMinimalPDF()
	doc, _, err := Open(bytes.NewReader(data), DefaultConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if doc.Version != "1.4" {
		t.Errorf("version = %q, want 1.4", doc.Version)
	}
	if doc.IncrementalUpdates != 0 {
		t.Errorf("IncrementalUpdates = %d, want 0", doc.IncrementalUpdates)
	}

	root, err := doc.Root()
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	typ, _ := root.Get("Type")
	if typ != object.Name("Catalog") {
		t.Errorf("Root /Type = %v, want /Catalog", typ)
	}

	pagesRef, ok := root.Get("Pages")
	if !ok {
		t.Fatal("Root has no /Pages")
	}
	ref, ok := pagesRef.(object.Reference)
	if !ok {
		t.Fatalf("/Pages is %T, want Reference", pagesRef)
	}
	pages, err := doc.Store.Resolve(ref)
	if err != nil {
		t.Fatalf("resolving /Pages: %v", err)
	}
	pagesDict, ok := pages.(*object.Dict)
	if !ok {
		t.Fatalf("/Pages resolved to %T, want *Dict", pages)
	}
	if count, _ := pagesDict.Get("Count"); count != object.Integer(0) {
		t.Errorf("/Count = %v, want 0", count)
	}
}

func TestOpenIncrementalUpdate(t *testing.T) {
	var buf bytes.Buffer
	base := buildMinimalPDF()
	// the base ends with a newline-less %%EOF marker; add a newline so a
	// second, updated section can follow it, as a real incremental update would.
	buf.Write(base)
	buf.WriteString("\n")

	obj3Offset := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [] /Count 1 >>\nendobj\n")

	xref2Offset := buf.Len()
	// find where the first xref section started, to chain /Prev to it
	firstXrefOffset := bytes.Index(base, []byte("\nxref\n")) + 1

	buf.WriteString("xref\n2 1\n")
	fmt.Fprintf(&buf, "%010d 00000 n \n", obj3Offset)
	fmt.Fprintf(&buf, "trailer\n<< /Size 3 /Root 1 0 R /Prev %d >>\n", firstXrefOffset)
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF", xref2Offset)

	doc, _, err := Open(bytes.NewReader(buf.Bytes()), DefaultConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if doc.IncrementalUpdates != 1 {
		t.Errorf("IncrementalUpdates = %d, want 1", doc.IncrementalUpdates)
	}

	pages, err := doc.Store.Resolve(object.Reference{Number: 2})
	if err != nil {
		t.Fatalf("resolving object 2: %v", err)
	}
	dict := pages.(*object.Dict)
	if count, _ := dict.Get("Count"); count != object.Integer(1) {
		t.Errorf("updated /Count = %v, want 1 (the newer section should win)", count)
	}
}

// buildObjStmPDF assembles a PDF whose objects 1 and 2 live compressed
// inside an /ObjStm (object 10), indexed by an xref stream (object 3).
func buildObjStmPDF() []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.5\n")

	// "1 0 2 8 " is the 8-byte prolog: objects 1 and 2 at relative
	// offsets 0 and 8 within the bodies that follow.
	payload := "1 0 2 8 <</A 1>><</A 2>>"
	obj10Offset := buf.Len()
	fmt.Fprintf(&buf, "10 0 obj\n<< /Type /ObjStm /N 2 /First 8 /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(payload), payload)

	obj3Offset := buf.Len()
	record := func(typ byte, f2 uint32, f3 uint16) []byte {
		return []byte{typ, byte(f2 >> 24), byte(f2 >> 16), byte(f2 >> 8), byte(f2), byte(f3 >> 8), byte(f3)}
	}
	var records []byte
	records = append(records, record(0, 0, 65535)...)            // 0: free head
	records = append(records, record(2, 10, 0)...)               // 1: in stream 10, index 0
	records = append(records, record(2, 10, 1)...)               // 2: in stream 10, index 1
	records = append(records, record(1, uint32(obj3Offset), 0)...)  // 3: the xref stream itself
	records = append(records, record(1, uint32(obj10Offset), 0)...) // 10: the /ObjStm
	fmt.Fprintf(&buf, "3 0 obj\n<< /Type /XRef /Size 11 /W [1 4 2] /Index [0 4 10 1] /Root 1 0 R /Length %d >>\nstream\n", len(records))
	buf.Write(records)
	buf.WriteString("\nendstream\nendobj\n")

	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF", obj3Offset)
	return buf.Bytes()
}

func TestOpenObjectStream(t *testing.T) {
	doc, ctx, err := Open(bytes.NewReader(buildObjStmPDF()), DefaultConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	for i, want := range []int64{1, 2} {
		v, err := doc.Store.Resolve(object.Reference{Number: uint32(i + 1)})
		if err != nil {
			t.Fatalf("resolving object %d: %v", i+1, err)
		}
		dict, ok := v.(*object.Dict)
		if !ok {
			t.Fatalf("object %d resolved to %T, want *Dict", i+1, v)
		}
		if a, _ := dict.Get("A"); a != object.Integer(want) {
			t.Errorf("object %d /A = %v, want %d", i+1, a, want)
		}
	}

	if got := len(ctx.objStmCache); got != 1 {
		t.Errorf("object stream expanded %d times, want exactly once", got)
	}
}

// TestXrefStreamMissingTypeFieldDefaultsInUse: a record whose /W makes
// the type field zero bytes wide defaults to type 1 (in use).
func TestXrefStreamMissingTypeFieldDefaultsInUse(t *testing.T) {
	dict := object.NewDict()
	dict.Set("W", object.NewArray(object.Integer(0), object.Integer(4), object.Integer(2)))
	dict.Set("Index", object.NewArray(object.Integer(5), object.Integer(1)))

	payload := []byte{0x00, 0x00, 0x12, 0x34, 0x00, 0x02} // offset 0x1234, generation 2
	tbl := newTable()
	if err := extractXrefStreamEntries(payload, dict, tbl); err != nil {
		t.Fatalf("extractXrefStreamEntries: %v", err)
	}

	e, ok := tbl.get(5)
	if !ok {
		t.Fatal("no entry for object 5")
	}
	if e.kind != entryInUse {
		t.Errorf("entry kind = %v, want in-use", e.kind)
	}
	if e.offset != 0x1234 || e.generation != 2 {
		t.Errorf("entry = offset %d gen %d, want offset %d gen 2", e.offset, e.generation, 0x1234)
	}
}

func TestOpenStaleStartxrefRescans(t *testing.T) {
	base := buildMinimalPDF()
	// rewrite the startxref offset to point far past the end of the file
	idx := bytes.LastIndex(base, []byte("startxref"))
	var buf bytes.Buffer
	buf.Write(base[:idx])
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF", len(base)+4096)

	doc, _, err := Open(bytes.NewReader(buf.Bytes()), DefaultConfig())
	if err != nil {
		t.Fatalf("Open with stale startxref: %v", err)
	}
	if _, err := doc.Root(); err != nil {
		t.Fatalf("Root after rescan: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Strict = true
	if _, _, err := Open(bytes.NewReader(buf.Bytes()), cfg); err == nil {
		t.Fatal("strict mode must reject a stale startxref")
	}
}

func TestBuildTableDetectsCycle(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	sectionOffset := buf.Len()
	buf.WriteString("xref\n0 1\n0000000000 65535 f \n")
	fmt.Fprintf(&buf, "trailer\n<< /Size 1 /Root 1 0 R /Prev %d >>\n", sectionOffset)
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF", sectionOffset)

	_, _, err := Open(bytes.NewReader(buf.Bytes()), DefaultConfig())
	if err == nil {
		t.Fatal("expected a cyclic /Prev chain to be rejected")
	}
}
