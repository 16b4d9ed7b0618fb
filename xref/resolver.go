package xref

import (
	"bytes"
	"io"

	"github.com/kugler-labs/pdfcore/object"
	"github.com/kugler-labs/pdfcore/pdferr"
	"github.com/kugler-labs/pdfcore/token"
)

// section is the result of parsing one xref section (classic or
// stream) without yet following its links: its merged-in trailer
// fields, and the offsets of the sections it chains to.
type section struct {
	dict          *object.Dict
	prevOffset    int64
	xrefStmOffset int64 // 0 if absent
}

// buildTable runs trailer discovery and the xref walk (classic
// subsections and/or xref streams), following /XRefStm before /Prev in
// hybrid files, with cycle detection via a visited-offsets set and the
// MaxXrefDepth bound.
func buildTable(rs io.ReadSeeker, magicOffset int64, startOffset int64, cfg Config) (*table, *object.Dict, int, error) {
	tbl := newTable()
	trailer := object.NewDict()
	visited := map[int64]bool{}
	depth := 0
	incrementalUpdates := 0

	off := startOffset
	first := true
	for off != 0 {
		if visited[off] {
			return nil, nil, 0, pdferr.Errorf(pdferr.CyclicXref, "xref offset %d visited twice", off)
		}
		visited[off] = true
		depth++
		if depth > cfg.MaxXrefDepth {
			return nil, nil, 0, pdferr.Errorf(pdferr.InvalidXRef, "xref chain exceeds MaxXrefDepth (%d)", cfg.MaxXrefDepth)
		}

		sect, err := parseSection(rs, off, magicOffset, tbl, cfg)
		if err != nil {
			return nil, nil, 0, pdferr.Frame(err, "xref.buildTable")
		}
		mergeTrailer(trailer, sect.dict)
		if !first {
			incrementalUpdates++
		}

		if sect.xrefStmOffset != 0 {
			if visited[sect.xrefStmOffset] {
				return nil, nil, 0, pdferr.Errorf(pdferr.CyclicXref, "xref offset %d visited twice", sect.xrefStmOffset)
			}
			visited[sect.xrefStmOffset] = true
			depth++
			if depth > cfg.MaxXrefDepth {
				return nil, nil, 0, pdferr.Errorf(pdferr.InvalidXRef, "xref chain exceeds MaxXrefDepth (%d)", cfg.MaxXrefDepth)
			}
			hsect, err := parseSection(rs, sect.xrefStmOffset, magicOffset, tbl, cfg)
			if err != nil {
				return nil, nil, 0, pdferr.Frame(err, "xref.buildTable:hybrid")
			}
			mergeTrailer(trailer, hsect.dict)
			incrementalUpdates++
		}

		off = sect.prevOffset
		first = false
	}

	if trailer.Len() == 0 {
		return nil, nil, 0, pdferr.New(pdferr.NoTrailer, "no trailer found")
	}

	return tbl, trailer, incrementalUpdates, nil
}

// mergeTrailer sets keys only if absent: the newest (first-visited)
// section's values win, since the walk proceeds from the most recent
// section backward.
func mergeTrailer(accum, fresh *object.Dict) {
	if fresh == nil {
		return
	}
	for _, k := range fresh.Keys() {
		if accum.Has(k) {
			continue
		}
		v, _ := fresh.Get(k)
		accum.Set(k, v)
	}
}

// parseSection dispatches to the classic-subsection or xref-stream
// parser depending on the token found at relOffset (relative to the
// %PDF- magic bytes).
func parseSection(rs io.ReadSeeker, relOffset, magicOffset int64, tbl *table, cfg Config) (section, error) {
	tk, err := token.AtOffset(rs, relOffset+magicOffset)
	if err != nil {
		return section{}, err
	}
	t, err := tk.PeekToken()
	if err != nil {
		return section{}, pdferr.Frame(err, "xref.parseSection")
	}
	if t.IsOther("xref") {
		_, _ = tk.NextToken()
		return parseClassicSection(tk, tbl, cfg)
	}
	return parseXrefStreamSection(tk, relOffset, tbl, cfg)
}

// parseClassicSection reads one or more "(first count)" subsections of
// 20-byte-record entries, followed by a "trailer" dictionary.
func parseClassicSection(tk *token.Tokenizer, tbl *table, cfg Config) (section, error) {
	for {
		t, err := tk.PeekToken()
		if err != nil {
			return section{}, pdferr.Frame(err, "xref.parseClassicSection")
		}
		if t.IsOther("trailer") {
			_, _ = tk.NextToken()
			break
		}
		if err := parseClassicSubsection(tk, tbl, cfg); err != nil {
			return section{}, err
		}
	}

	v, err := object.Parse(tk)
	if err != nil {
		return section{}, pdferr.Frame(err, "xref.parseClassicSection:trailer")
	}
	dict, ok := v.(*object.Dict)
	if !ok {
		return section{}, pdferr.New(pdferr.NoTrailer, "trailer keyword not followed by a dictionary")
	}
	return dictToSection(dict), nil
}

func parseClassicSubsection(tk *token.Tokenizer, tbl *table, cfg Config) error {
	firstTok, err := tk.NextToken()
	if err != nil {
		return pdferr.Frame(err, "xref.parseClassicSubsection")
	}
	first, err := firstTok.Int()
	if firstTok.Kind != token.Integer || err != nil {
		return pdferr.New(pdferr.InvalidXRef, "expected start object number")
	}
	countTok, err := tk.NextToken()
	if err != nil {
		return pdferr.Frame(err, "xref.parseClassicSubsection")
	}
	count, err := countTok.Int()
	if countTok.Kind != token.Integer || err != nil {
		return pdferr.New(pdferr.InvalidXRef, "expected object count")
	}

	for i := 0; i < count; i++ {
		objNum := uint32(first + i)
		offsetTok, err := tk.NextToken()
		if err != nil {
			return pdferr.Frame(err, "xref.parseClassicSubsection")
		}
		offset, err := offsetTok.Int()
		if offsetTok.Kind != token.Integer || err != nil {
			return pdferr.New(pdferr.InvalidXRef, "corrupt xref entry offset")
		}
		genTok, err := tk.NextToken()
		if err != nil {
			return pdferr.Frame(err, "xref.parseClassicSubsection")
		}
		gen, err := genTok.Int()
		if genTok.Kind != token.Integer || err != nil {
			return pdferr.New(pdferr.InvalidXRef, "corrupt xref entry generation")
		}
		typeTok, err := tk.NextToken()
		if err != nil {
			return pdferr.Frame(err, "xref.parseClassicSubsection")
		}
		if typeTok.Kind != token.Other || (typeTok.Value != "n" && typeTok.Value != "f") {
			return pdferr.New(pdferr.InvalidXRef, "corrupt xref entry type (expected 'n' or 'f')")
		}

		isFree := typeTok.Value == "f"
		if !isFree && offset == 0 {
			// "n" entries with offset 0 are coerced to free.
			if !cfg.Strict {
				isFree = true
				cfg.logf("xref: in-use entry for object %d has offset 0, treating as free", objNum)
			} else {
				return pdferr.Errorf(pdferr.InvalidXRef, "in-use object %d has offset 0", objNum)
			}
		}

		if isFree {
			tbl.setIfAbsent(objNum, entry{kind: entryFree, generation: uint16(gen), nextFree: uint32(offset)})
		} else {
			tbl.setIfAbsent(objNum, entry{kind: entryInUse, generation: uint16(gen), offset: int64(offset)})
		}
	}
	return nil
}

// parseXrefStreamSection reads a stream dictionary with /Type /XRef,
// /W and optional /Index, decoded through the filter pipeline and
// unpacked into table entries.
func parseXrefStreamSection(tk *token.Tokenizer, sectionOffset int64, tbl *table, cfg Config) (section, error) {
	objNum, gen, err := parseObjectHeader(tk)
	if err != nil {
		return section{}, pdferr.Frame(err, "xref.parseXrefStreamSection")
	}

	v, err := object.Parse(tk)
	if err != nil {
		return section{}, pdferr.Frame(err, "xref.parseXrefStreamSection")
	}
	dict, ok := v.(*object.Dict)
	if !ok {
		return section{}, pdferr.New(pdferr.InvalidXRefStream, "xref stream object is not a dictionary")
	}

	streamTok, err := tk.NextToken()
	if err != nil {
		return section{}, pdferr.Frame(err, "xref.parseXrefStreamSection")
	}
	if !streamTok.IsOther("stream") {
		return section{}, pdferr.New(pdferr.InvalidXRefStream, "xref stream dict not followed by a stream")
	}

	lengthVal, ok := dict.Get("Length")
	if !ok {
		return section{}, pdferr.New(pdferr.InvalidXRefStream, "xref stream has no /Length")
	}
	length, ok := lengthVal.(object.Integer)
	if !ok {
		return section{}, pdferr.New(pdferr.InvalidXRefStream, "/Length of an xref stream must be a direct integer")
	}

	raw := readStreamBody(tk, int(length))

	chain, err := filterChainFromDict(dict)
	if err != nil {
		return section{}, pdferr.Frame(err, "xref.parseXrefStreamSection")
	}
	decoded, err := chain.Decode(raw)
	if err != nil {
		return section{}, pdferr.Frame(err, "xref.parseXrefStreamSection")
	}

	if err := extractXrefStreamEntries(decoded, dict, tbl); err != nil {
		return section{}, pdferr.Frame(err, "xref.parseXrefStreamSection")
	}

	tbl.setIfAbsent(objNum, entry{kind: entryInUse, generation: gen, offset: sectionOffset})

	return dictToSection(dict), nil
}

func parseObjectHeader(tk *token.Tokenizer) (num uint32, gen uint16, err error) {
	numTok, err := tk.NextToken()
	if err != nil {
		return 0, 0, err
	}
	n, err := numTok.Int()
	if numTok.Kind != token.Integer || err != nil {
		return 0, 0, pdferr.New(pdferr.BrokenFile, "expected object number")
	}
	genTok, err := tk.NextToken()
	if err != nil {
		return 0, 0, err
	}
	g, err := genTok.Int()
	if genTok.Kind != token.Integer || err != nil {
		return 0, 0, pdferr.New(pdferr.BrokenFile, "expected generation number")
	}
	objTok, err := tk.NextToken()
	if err != nil {
		return 0, 0, err
	}
	if !objTok.IsOther("obj") {
		return 0, 0, pdferr.New(pdferr.BrokenFile, "expected 'obj' keyword")
	}
	return uint32(n), uint16(g), nil
}

// readStreamBody: after the "stream" keyword, consume exactly one of
// CRLF, LF, a lone CR, or (tolerated) a bare tab/space, then take the
// next length bytes as the raw stream payload.
func readStreamBody(tk *token.Tokenizer, length int) []byte {
	rest := tk.Rest()
	skip := 0
	switch {
	case len(rest) >= 2 && rest[0] == '\r' && rest[1] == '\n':
		skip = 2
	case len(rest) >= 1 && (rest[0] == '\n' || rest[0] == '\r' || rest[0] == '\t' || rest[0] == ' '):
		skip = 1
	}
	body := rest[skip:]
	if length > len(body) {
		length = len(body)
	}
	content := append([]byte(nil), body[:length]...)
	tk.SkipBytes(skip + length)
	return content
}

// dictToSection extracts the /Prev and /XRefStm links from a merged
// trailer/xref-stream dictionary, accepting both "Prev NNN" and the
// buggy-but-common "Prev NNN 0 R" form.
func dictToSection(dict *object.Dict) section {
	prev, _ := offsetFromValue(dict.GetOrNull("Prev"))
	xrefStm, hasXrefStm := dict.Get("XRefStm")
	var xrefStmOffset int64
	if hasXrefStm {
		if i, ok := xrefStm.(object.Integer); ok {
			xrefStmOffset = int64(i)
		}
	}
	return section{dict: dict, prevOffset: prev, xrefStmOffset: xrefStmOffset}
}

func offsetFromValue(v object.Value) (int64, bool) {
	switch t := v.(type) {
	case object.Integer:
		return int64(t), true
	case object.Reference:
		return int64(t.Number), true
	default:
		return 0, false
	}
}

// scanLinearization is a best-effort, warning-only probe of the first
// 1024 bytes for an object whose dictionary declares /Linearized. A
// malformed linearization dictionary never fails the parse.
func scanLinearization(rs io.ReadSeeker, magicOffset int64, cfg Config) *object.Dict {
	buf, err := readAt(rs, magicOffset, 1024)
	if err != nil {
		return nil
	}
	idx := bytes.Index(buf, []byte("/Linearized"))
	if idx == -1 {
		return nil
	}
	// back up to the nearest "<<" before the hit and try to parse a
	// dictionary from there; a failure here is always tolerated.
	start := bytes.LastIndex(buf[:idx], []byte("<<"))
	if start == -1 {
		return nil
	}
	tk := token.New(buf[start:], magicOffset+int64(start))
	v, err := object.Parse(tk)
	if err != nil {
		cfg.logf("linearization: malformed dictionary ignored: %v", err)
		return nil
	}
	d, _ := v.(*object.Dict)
	return d
}
