// Package object implements the PDF value model: the tagged Value
// union, the ordered Dict and Array container types, indirect objects
// and the Store that owns them.
//
// Dict preserves insertion order so that re-serializing an untouched
// dictionary reproduces its original key order, and the two container
// kinds carry a dirty-propagation hook so that mutating a nested value
// marks its owning indirect object dirty.
package object

import (
	"fmt"
	"strconv"

	"github.com/kugler-labs/pdfcore/pdferr"
)

// Kind tags the concrete type carried by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInteger
	KindReal
	KindName
	KindString
	KindArray
	KindDict
	KindReference
	KindRawData
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBool:
		return "Bool"
	case KindInteger:
		return "Integer"
	case KindReal:
		return "Real"
	case KindName:
		return "Name"
	case KindString:
		return "String"
	case KindArray:
		return "Array"
	case KindDict:
		return "Dict"
	case KindReference:
		return "Reference"
	case KindRawData:
		return "RawData"
	default:
		return "Unknown"
	}
}

// Value is a node of the PDF object graph. Null is a distinct Value
// (never represented by a nil interface), so Value must never be nil.
type Value interface {
	Kind() Kind
	// Clone returns a deep copy, preserving the concrete type. Container
	// clones are detached (their owner is unset).
	Clone() Value
	fmt.Stringer
}

// ----------------------------------------------------------------------
// scalar value kinds

// Null is the PDF null object singleton.
type Null struct{}

func (Null) Kind() Kind      { return KindNull }
func (Null) Clone() Value    { return Null{} }
func (Null) String() string  { return "null" }

// Bool is a PDF boolean.
type Bool bool

func (b Bool) Kind() Kind   { return KindBool }
func (b Bool) Clone() Value { return b }
func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}

// Integer is a PDF integer, stored as a signed 64-bit value (wider than
// the PDF spec requires, to tolerate generators that emit large offsets
// as plain integers).
type Integer int64

func (i Integer) Kind() Kind     { return KindInteger }
func (i Integer) Clone() Value   { return i }
func (i Integer) String() string { return strconv.FormatInt(int64(i), 10) }

// Real is a PDF real number, distinct from Integer even when its value
// is integral.
type Real float64

func (r Real) Kind() Kind   { return KindReal }
func (r Real) Clone() Value { return r }
func (r Real) String() string {
	return strconv.FormatFloat(float64(r), 'f', -1, 64)
}

// Name is a PDF name atom. Equality is defined over the decoded bytes
// (i.e. after #xx escapes have been resolved by the tokenizer), so two
// Names spelled differently but decoding to the same bytes are equal.
type Name string

func (n Name) Kind() Kind     { return KindName }
func (n Name) Clone() Value   { return n }
func (n Name) String() string { return "/" + string(n) }

// String is a PDF string object: either a literal "(...)" or hex "<...>"
// string. Hex is recorded so the serializer can round-trip the original
// encoding form when the content is unchanged.
type String struct {
	Bytes []byte
	Hex   bool
}

func (s String) Kind() Kind   { return KindString }
func (s String) Clone() Value { return String{Bytes: append([]byte(nil), s.Bytes...), Hex: s.Hex} }
func (s String) String() string {
	if s.Hex {
		return fmt.Sprintf("<%x>", s.Bytes)
	}
	return fmt.Sprintf("(%s)", escapeLiteral(s.Bytes))
}

func escapeLiteral(b []byte) string {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		switch c {
		case '(', ')', '\\':
			out = append(out, '\\', c)
		case '\n':
			out = append(out, '\\', 'n')
		case '\r':
			out = append(out, '\\', 'r')
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

// Reference is an indirect pointer (N G R) into a Store.
type Reference struct {
	Number     uint32
	Generation uint16
}

func (r Reference) Kind() Kind   { return KindReference }
func (r Reference) Clone() Value { return r }
func (r Reference) String() string {
	return fmt.Sprintf("%d %d R", r.Number, r.Generation)
}

// RawData is opaque bytes, emitted verbatim by the serializer. Equality
// and comparison over RawData is undefined (see Equals).
type RawData []byte

func (RawData) Kind() Kind       { return KindRawData }
func (d RawData) Clone() Value   { return append(RawData(nil), d...) }
func (d RawData) String() string { return fmt.Sprintf("<%d raw bytes>", len(d)) }

// ----------------------------------------------------------------------
// typed accessors: each validates the current Kind and returns
// TypeError on mismatch.

// AsBool returns the bool payload, or a TypeError.
func AsBool(v Value) (bool, error) {
	b, ok := v.(Bool)
	if !ok {
		return false, typeError(v, KindBool)
	}
	return bool(b), nil
}

// AsInteger returns the integer payload, or a TypeError.
func AsInteger(v Value) (int64, error) {
	i, ok := v.(Integer)
	if !ok {
		return 0, typeError(v, KindInteger)
	}
	return int64(i), nil
}

// AsReal widens an Integer to float64, or returns the Real payload
// directly; any other Kind is a TypeError.
func AsReal(v Value) (float64, error) {
	switch t := v.(type) {
	case Real:
		return float64(t), nil
	case Integer:
		return float64(t), nil
	default:
		return 0, typeError(v, KindReal)
	}
}

// AsNumberLenient rounds a Real to the nearest int64, or passes an
// Integer through unchanged; any other Kind is a TypeError. Tolerates
// generators that write integral values as reals where an integer is
// expected (and vice-versa).
func AsNumberLenient(v Value) (int64, error) {
	switch t := v.(type) {
	case Integer:
		return int64(t), nil
	case Real:
		return int64(float64(t) + 0.5*sign(float64(t))), nil
	default:
		return 0, typeError(v, KindInteger)
	}
}

func sign(f float64) float64 {
	if f < 0 {
		return -1
	}
	return 1
}

// AsName returns the Name payload, or a TypeError.
func AsName(v Value) (Name, error) {
	n, ok := v.(Name)
	if !ok {
		return "", typeError(v, KindName)
	}
	return n, nil
}

// AsString returns the String payload, or a TypeError.
func AsString(v Value) (String, error) {
	s, ok := v.(String)
	if !ok {
		return String{}, typeError(v, KindString)
	}
	return s, nil
}

// AsReference returns the Reference payload, or a TypeError.
func AsReference(v Value) (Reference, error) {
	r, ok := v.(Reference)
	if !ok {
		return Reference{}, typeError(v, KindReference)
	}
	return r, nil
}

func typeError(v Value, want Kind) error {
	return pdferr.Errorf(pdferr.TypeErrorKind, "expected %s, got %s", want, v.Kind())
}

// Equals implements value equality over concrete payloads. The second
// return is false for RawData, Array and Dict, where comparison is
// undefined; otherwise
// it is true and the first return carries the comparison result.
func Equals(a, b Value) (equal bool, defined bool) {
	if a.Kind() != b.Kind() {
		return false, true
	}
	switch av := a.(type) {
	case Null:
		return true, true
	case Bool:
		return av == b.(Bool), true
	case Integer:
		return av == b.(Integer), true
	case Real:
		return av == b.(Real), true
	case Name:
		return av == b.(Name), true
	case String:
		bv := b.(String)
		return string(av.Bytes) == string(bv.Bytes), true
	case Reference:
		return av == b.(Reference), true
	case RawData:
		return false, false
	default:
		return false, false
	}
}

// EqualsReference reports pointer identity for the two container kinds
// that carry one (Array, Dict). Container equality through Equals is
// not attempted: a deep structural comparison of a document-sized graph
// is rarely what a caller wants.
func EqualsReference(a, b Value) bool {
	ap, aok := a.(*Array)
	bp, bok := b.(*Array)
	if aok && bok {
		return ap == bp
	}
	ad, aok := a.(*Dict)
	bd, bok := b.(*Dict)
	if aok && bok {
		return ad == bd
	}
	return false
}
