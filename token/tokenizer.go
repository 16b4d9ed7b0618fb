package token

import (
	"io"

	tkn "github.com/benoitkugler/pstokenizer"

	"github.com/kugler-labs/pdfcore/pdferr"
)

// Tokenizer adapts github.com/benoitkugler/pstokenizer, the PS/PDF
// lexer this module delegates byte-level scanning to, into this
// module's token vocabulary: Float becomes Real, StartDic/EndDic
// become StartDict/EndDict, PostScript procedure delimiters collapse
// into Other tokens, and name #xx escapes are decoded here (the lexer
// leaves them in place, since it serves PostScript too, where '#' is
// an ordinary character). A one-token push-back queue is layered on
// top of the lexer's own two-token lookahead (used by xref-subsection
// probing).
//
// The lexer stops (returning EOF) as soon as it would have to cross
// into binary data introduced by the "stream" or "ID" keywords;
// callers resume processing with SkipBytes once they know the binary
// region's length.
type Tokenizer struct {
	inner *tkn.Tokenizer
	base  int64 // absolute file offset of the lexer's byte 0

	pushedBack *Token
}

// New creates a Tokenizer reading from an in-memory buffer. base is the
// absolute file offset represented by the buffer's first byte, used by
// Pos so downstream code can record absolute offsets.
func New(data []byte, base int64) *Tokenizer {
	return &Tokenizer{inner: tkn.NewTokenizer(data), base: base}
}

// AtOffset reads the remainder of rs starting at offset into memory and
// returns a Tokenizer over it. PDF files are parsed with random seeks
// across a handful of small windows (xref, trailer, one object at a
// time), so reading to EOF from the requested offset is the simplest
// correct strategy.
func AtOffset(rs io.ReadSeeker, offset int64) (*Tokenizer, error) {
	if _, err := rs.Seek(offset, io.SeekStart); err != nil {
		return nil, pdferr.Errorf(pdferr.Io, "seek to %d: %w", offset, err)
	}
	data, err := io.ReadAll(rs)
	if err != nil {
		return nil, pdferr.Errorf(pdferr.Io, "read from %d: %w", offset, err)
	}
	return New(data, offset), nil
}

// Pos returns the absolute file offset of the next byte to be tokenized
// (i.e. right after the most recently consumed token).
func (tk *Tokenizer) Pos() int64 {
	return tk.base + int64(tk.inner.CurrentPosition())
}

// PeekToken returns the next token without consuming it.
func (tk *Tokenizer) PeekToken() (Token, error) {
	if tk.pushedBack != nil {
		return *tk.pushedBack, nil
	}
	return convert(tk.inner.PeekToken())
}

// PeekAhead returns the token that follows PeekToken's, again without
// consuming anything. Used to disambiguate "N G R" (an indirect
// reference) from a bare integer followed by unrelated content, which
// needs two tokens of lookahead beyond the one already consumed.
func (tk *Tokenizer) PeekAhead() (Token, error) {
	if tk.pushedBack != nil {
		return convert(tk.inner.PeekToken())
	}
	return convert(tk.inner.PeekPeekToken())
}

// NextToken consumes and returns the next token. At EOF it returns a
// Token{Kind: EOF} with a nil error, never an error by itself.
func (tk *Tokenizer) NextToken() (Token, error) {
	if tk.pushedBack != nil {
		t := *tk.pushedBack
		tk.pushedBack = nil
		return t, nil
	}
	return convert(tk.inner.NextToken())
}

// PushBack places t back in front of the stream; the next NextToken/
// PeekToken call returns it. Only a single slot is supported.
func (tk *Tokenizer) PushBack(t Token) {
	tk.pushedBack = &t
}

// PeekKeyword consumes the next token iff it is the Other token matching
// kw, returning whether it matched.
func (tk *Tokenizer) PeekKeyword(kw string) bool {
	t, err := tk.PeekToken()
	if err != nil || !t.IsOther(kw) {
		return false
	}
	_, _ = tk.NextToken()
	return true
}

// SkipBytes consumes exactly n raw bytes starting at the tokenizer's
// current position (used after the "stream" keyword, or for inline image
// data), returning them, and resynchronizes the lookahead.
func (tk *Tokenizer) SkipBytes(n int) []byte {
	tk.pushedBack = nil
	return tk.inner.SkipBytes(n)
}

// Rest returns every remaining byte, starting at the current position.
func (tk *Tokenizer) Rest() []byte {
	return tk.inner.Bytes()
}

// convert maps one lexer token into this module's vocabulary.
func convert(t tkn.Token, err error) (Token, error) {
	if err != nil {
		return Token{}, pdferr.Errorf(pdferr.BrokenFile, "tokenize: %w", err)
	}
	switch t.Kind {
	case tkn.EOF:
		return Token{Kind: EOF}, nil
	case tkn.Integer:
		return Token{Kind: Integer, Value: string(t.Value)}, nil
	case tkn.Float:
		return Token{Kind: Real, Value: string(t.Value)}, nil
	case tkn.Name:
		name, err := decodeNameEscapes(string(t.Value))
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: Name, Value: name}, nil
	case tkn.String:
		return Token{Kind: String, Value: string(t.Value)}, nil
	case tkn.StringHex:
		return Token{Kind: StringHex, Value: string(t.Value)}, nil
	case tkn.StartArray:
		return Token{Kind: StartArray}, nil
	case tkn.EndArray:
		return Token{Kind: EndArray}, nil
	case tkn.StartDic:
		return Token{Kind: StartDict}, nil
	case tkn.EndDic:
		return Token{Kind: EndDict}, nil
	case tkn.StartProc:
		return Token{Kind: Other, Value: "{"}, nil
	case tkn.EndProc:
		return Token{Kind: Other, Value: "}"}, nil
	default:
		return Token{Kind: Other, Value: string(t.Value)}, nil
	}
}

// decodeNameEscapes resolves #xx escapes in a name's raw bytes, so that
// two names spelled differently but decoding to the same bytes compare
// equal downstream. The lexer has already validated that every '#' is
// followed by two hex digits.
func decodeNameEscapes(raw string) (string, error) {
	hash := -1
	for i := 0; i < len(raw); i++ {
		if raw[i] == '#' {
			hash = i
			break
		}
	}
	if hash == -1 {
		return raw, nil
	}
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '#' {
			out = append(out, c)
			continue
		}
		if i+2 >= len(raw) {
			return "", pdferr.New(pdferr.BrokenFile, "corrupted name escape")
		}
		v1, ok1 := hexVal(raw[i+1])
		v2, ok2 := hexVal(raw[i+2])
		if !ok1 || !ok2 {
			return "", pdferr.New(pdferr.BrokenFile, "corrupted name escape")
		}
		out = append(out, v1<<4|v2)
		i += 2
	}
	return string(out), nil
}
