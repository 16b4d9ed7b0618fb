package xref

import (
	"github.com/kugler-labs/pdfcore/object"
	"github.com/kugler-labs/pdfcore/pdferr"
	"github.com/kugler-labs/pdfcore/token"
)

// expandObjectStream decodes and caches the (objNum -> Value) contents
// of an /ObjStm object: a /N-entry prolog of (object number, relative
// offset) integer pairs occupying the first /First bytes of the decoded
// payload, followed by the objects themselves back to back.
func (ctx *Context) expandObjectStream(streamNum uint32) (objStmResult, error) {
	if res, ok := ctx.objStmCache[streamNum]; ok {
		return res, nil
	}

	obj := ctx.doc.Store.Get(streamNum)
	if obj == nil {
		return objStmResult{}, pdferr.Errorf(pdferr.NoObject, "object stream %d not found", streamNum)
	}
	stream, err := obj.Stream()
	if err != nil {
		return objStmResult{}, err
	}
	if stream == nil {
		return objStmResult{}, pdferr.Errorf(pdferr.BrokenFile, "object %d is not a stream (expected /ObjStm)", streamNum)
	}

	chain, err := filterChainFromDict(stream.Dict)
	if err != nil {
		return objStmResult{}, err
	}
	decoded, err := chain.Decode(stream.Raw)
	if err != nil {
		return objStmResult{}, err
	}

	n, err := object.AsNumberLenient(stream.Dict.GetOrNull("N"))
	if err != nil || n < 0 {
		return objStmResult{}, pdferr.New(pdferr.BrokenFile, "/ObjStm has no valid /N")
	}
	first, err := object.AsNumberLenient(stream.Dict.GetOrNull("First"))
	if err != nil || first < 0 || int(first) > len(decoded) {
		return objStmResult{}, pdferr.New(pdferr.BrokenFile, "/ObjStm has no valid /First")
	}

	prolog := token.New(decoded[:first], 0)
	objNums := make([]uint32, n)
	offsets := make([]int, n)
	for i := int64(0); i < n; i++ {
		numTok, err := prolog.NextToken()
		if err != nil || numTok.Kind != token.Integer {
			return objStmResult{}, pdferr.New(pdferr.BrokenFile, "/ObjStm prolog is corrupt")
		}
		num, err := numTok.Int()
		if err != nil {
			return objStmResult{}, pdferr.New(pdferr.BrokenFile, "/ObjStm prolog is corrupt")
		}
		offTok, err := prolog.NextToken()
		if err != nil || offTok.Kind != token.Integer {
			return objStmResult{}, pdferr.New(pdferr.BrokenFile, "/ObjStm prolog is corrupt")
		}
		off, err := offTok.Int()
		if err != nil {
			return objStmResult{}, pdferr.New(pdferr.BrokenFile, "/ObjStm prolog is corrupt")
		}
		objNums[i] = uint32(num)
		offsets[i] = off
	}

	values := make([]object.Value, n)
	for i := int64(0); i < n; i++ {
		start := int(first) + offsets[i]
		if start < 0 || start > len(decoded) {
			return objStmResult{}, pdferr.Errorf(pdferr.BrokenFile, "/ObjStm entry %d offset out of range", i)
		}
		body := decoded[start:]
		tk := token.New(body, 0)
		v, err := object.Parse(tk)
		if err != nil {
			return objStmResult{}, pdferr.Frame(err, "xref.expandObjectStream")
		}
		values[i] = v
	}

	res := objStmResult{objNums: objNums, values: values}
	ctx.objStmCache[streamNum] = res
	return res, nil
}
