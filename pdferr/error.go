// Package pdferr implements the error taxonomy shared by the tokenizer,
// xref resolver, object loader, filter pipeline, encryption engine and
// serializer. Errors carry a Kind, a message, and a small stack of
// annotation frames added only at component boundaries.
package pdferr

import (
	"errors"
	"strings"

	"golang.org/x/exp/errors/fmt"
)

// Kind classifies an Error.
type Kind uint8

const (
	_ Kind = iota
	Io
	NoPdfFile
	NoEOFToken
	NoXRef
	NoTrailer
	NoObject
	InvalidXRef
	InvalidXRefStream
	InvalidXRefType
	CyclicXref
	BrokenFile
	UnexpectedEOF
	InvalidEncryptionDict
	InvalidPassword
	InvalidStreamLength
	InvalidPredictor
	FilterErrorKind
	TypeErrorKind
	ValueOutOfRange
	InvalidLinearization
	OutOfMemory
	ChangeOnImmutable
	UnsupportedFilter
)

func (k Kind) String() string {
	switch k {
	case Io:
		return "Io"
	case NoPdfFile:
		return "NoPdfFile"
	case NoEOFToken:
		return "NoEOFToken"
	case NoXRef:
		return "NoXRef"
	case NoTrailer:
		return "NoTrailer"
	case NoObject:
		return "NoObject"
	case InvalidXRef:
		return "InvalidXRef"
	case InvalidXRefStream:
		return "InvalidXRefStream"
	case InvalidXRefType:
		return "InvalidXRefType"
	case CyclicXref:
		return "CyclicXref"
	case BrokenFile:
		return "BrokenFile"
	case UnexpectedEOF:
		return "UnexpectedEOF"
	case InvalidEncryptionDict:
		return "InvalidEncryptionDict"
	case InvalidPassword:
		return "InvalidPassword"
	case InvalidStreamLength:
		return "InvalidStreamLength"
	case InvalidPredictor:
		return "InvalidPredictor"
	case FilterErrorKind:
		return "FilterError"
	case TypeErrorKind:
		return "TypeError"
	case ValueOutOfRange:
		return "ValueOutOfRange"
	case InvalidLinearization:
		return "InvalidLinearization"
	case OutOfMemory:
		return "OutOfMemory"
	case ChangeOnImmutable:
		return "ChangeOnImmutable"
	case UnsupportedFilter:
		return "UnsupportedFilter"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type produced by every package in this
// module. It keeps the originating Kind available through errors.As,
// and a trail of frames recorded at component boundaries (tokenizer ->
// xref, xref -> loader, loader -> writer, ...), not at every call site.
type Error struct {
	Kind   Kind
	Msg    string
	frames []string
	cause  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteString(": ")
	b.WriteString(e.Msg)
	for _, f := range e.frames {
		b.WriteString("\n\tat ")
		b.WriteString(f)
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a fresh Error with no frames.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Errorf creates an Error, formatting msg the same way fmt.Errorf does,
// supporting %w to wrap an existing error as the cause.
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	wrapped := fmt.Errorf(format, args...)
	e := &Error{Kind: kind, Msg: wrapped.Error()}
	e.cause = errors.Unwrap(wrapped)
	return e
}

// Frame appends a single annotation frame to err, identifying the
// component boundary that observed the failure (e.g. "xref.buildTable",
// "loader.load"). If err is not an *Error, it is wrapped as BrokenFile
// first so every error flowing through this module's public API carries
// a Kind.
func Frame(err error, frame string) error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		clone := *pe
		clone.frames = append(append([]string(nil), pe.frames...), frame)
		return &clone
	}
	return &Error{Kind: BrokenFile, Msg: err.Error(), frames: []string{frame}, cause: err}
}

// KindOf extracts the Kind carried by err, returning false if err does
// not wrap an *Error.
func KindOf(err error) (Kind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return 0, false
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
