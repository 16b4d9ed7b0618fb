package object

import (
	"github.com/kugler-labs/pdfcore/pdferr"
	"github.com/kugler-labs/pdfcore/token"
)

// Parse reads one Value from tk, peeking two tokens ahead to
// disambiguate "N G R" from a bare integer.
//
// Parse never resolves References or stream bodies; that is the object
// loader's job (package xref), once the xref table tells it where an
// indirect object actually lives.
func Parse(tk *token.Tokenizer) (Value, error) {
	t, err := tk.NextToken()
	if err != nil {
		return nil, pdferr.Frame(err, "object.Parse")
	}

	switch t.Kind {
	case token.EOF:
		return nil, pdferr.New(pdferr.UnexpectedEOF, "object.Parse: no object available")
	case token.Name:
		return Name(t.Value), nil
	case token.String:
		return String{Bytes: []byte(t.Value), Hex: false}, nil
	case token.StringHex:
		return String{Bytes: []byte(t.Value), Hex: true}, nil
	case token.StartArray:
		return parseArray(tk)
	case token.StartDict:
		return parseDict(tk)
	case token.Real:
		f, err := t.Float()
		if err != nil {
			return nil, pdferr.Errorf(pdferr.BrokenFile, "object.Parse: invalid real %q: %w", t.Value, err)
		}
		return Real(f), nil
	case token.Integer:
		return parseIntegerOrReference(tk, t)
	case token.Other:
		switch t.Value {
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		case "null":
			return Null{}, nil
		default:
			return nil, pdferr.Errorf(pdferr.BrokenFile, "object.Parse: unexpected keyword %q", t.Value)
		}
	default:
		return nil, pdferr.Errorf(pdferr.BrokenFile, "object.Parse: unexpected token %v", t)
	}
}

// parseIntegerOrReference: "123" is an Integer unless followed by
// "generation R", in which case the three tokens form a Reference.
func parseIntegerOrReference(tk *token.Tokenizer, first token.Token) (Value, error) {
	i, err := first.Int()
	if err != nil {
		return nil, pdferr.Errorf(pdferr.BrokenFile, "object.Parse: invalid integer %q: %w", first.Value, err)
	}

	gen, err := tk.PeekToken()
	if err != nil || gen.Kind != token.Integer {
		return Integer(i), nil
	}
	genVal, err := gen.Int()
	if err != nil {
		return Integer(i), nil
	}

	kw, err := tk.PeekAhead()
	if err != nil || !kw.IsOther("R") {
		return Integer(i), nil
	}

	_, _ = tk.NextToken() // consume generation
	_, _ = tk.NextToken() // consume "R"

	if i < 0 || genVal < 0 || i > MaxObjectNumber {
		return nil, pdferr.Errorf(pdferr.ValueOutOfRange, "object.Parse: reference (%d %d R) out of range", i, genVal)
	}
	return Reference{Number: uint32(i), Generation: uint16(genVal)}, nil
}

func parseArray(tk *token.Tokenizer) (Value, error) {
	arr := NewArray()
	for {
		t, err := tk.PeekToken()
		if err != nil {
			return nil, pdferr.Frame(err, "object.parseArray")
		}
		if t.Kind == token.EndArray {
			_, _ = tk.NextToken()
			return arr, nil
		}
		if t.Kind == token.EOF {
			return nil, pdferr.New(pdferr.UnexpectedEOF, "object.parseArray: unterminated array")
		}
		v, err := Parse(tk)
		if err != nil {
			return nil, pdferr.Frame(err, "object.parseArray")
		}
		arr.Append(v)
	}
}

func parseDict(tk *token.Tokenizer) (Value, error) {
	d := NewDict()
	for {
		t, err := tk.PeekToken()
		if err != nil {
			return nil, pdferr.Frame(err, "object.parseDict")
		}
		switch t.Kind {
		case token.EndDict:
			_, _ = tk.NextToken()
			return d, nil
		case token.EOF:
			return nil, pdferr.New(pdferr.UnexpectedEOF, "object.parseDict: unterminated dictionary")
		case token.Name:
			_, _ = tk.NextToken() // consume key
			v, err := Parse(tk)
			if err != nil {
				return nil, pdferr.Frame(err, "object.parseDict")
			}
			// "Specifying the null object as the value of a dictionary
			// entry shall be equivalent to omitting the entry entirely"
			// (7.3.7); we keep it instead, since Get/Has distinguish an
			// explicit Null from an absent key and downstream code (e.g.
			// dirty tracking, round-trip equality) relies on that.
			d.Set(Name(t.Value), v)
		default:
			return nil, pdferr.Errorf(pdferr.BrokenFile, "object.parseDict: expected name or '>>', got %v", t)
		}
	}
}
