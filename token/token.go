// Package token exposes the byte-level lexer over PDF syntax: numbers,
// names, literal and hex strings, array/dict delimiters, and bare
// keywords. The actual scanning is done by
// github.com/benoitkugler/pstokenizer; this package narrows its PS/PDF
// token set to the PDF-only vocabulary the rest of the module works
// with. It has no notion of PDF objects; see package object for the
// layer that assembles tokens into a Value tree.
package token

import (
	"strconv"
)

// Kind classifies a Token.
type Kind uint8

const (
	EOF Kind = iota
	Integer
	Real
	Name
	String
	StringHex
	StartArray
	EndArray
	StartDict
	EndDict
	Other // bare keywords: true, false, null, obj, endobj, stream, R, ...
)

func (k Kind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case Integer:
		return "Integer"
	case Real:
		return "Real"
	case Name:
		return "Name"
	case String:
		return "String"
	case StringHex:
		return "StringHex"
	case StartArray:
		return "StartArray"
	case EndArray:
		return "EndArray"
	case StartDict:
		return "StartDict"
	case EndDict:
		return "EndDict"
	case Other:
		return "Other"
	default:
		return "<invalid token>"
	}
}

// Token is a single lexical unit. Value must be interpreted according to
// Kind: for Name, String and StringHex it is the decoded payload (escapes
// already resolved); for Integer/Real it is the literal numeric text;
// for Other it is the bare keyword text.
type Token struct {
	Kind  Kind
	Value string
}

// Int returns the integer value of the token, truncating a Real toward
// zero.
func (t Token) Int() (int, error) {
	if t.Kind == Integer {
		return strconv.Atoi(t.Value)
	}
	f, err := t.Float()
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// Float returns the numeric value of the token.
func (t Token) Float() (float64, error) {
	return strconv.ParseFloat(t.Value, 64)
}

// IsNumber reports whether t is an Integer or Real token.
func (t Token) IsNumber() bool {
	return t.Kind == Integer || t.Kind == Real
}

// IsOther reports whether t is the Other token matching the given keyword.
func (t Token) IsOther(kw string) bool {
	return t.Kind == Other && t.Value == kw
}

func hexVal(c byte) (uint8, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
