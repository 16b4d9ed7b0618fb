package writer

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"

	"github.com/kugler-labs/pdfcore/object"
)

// writeValue serializes v as it would appear inside the indirect object
// (num, gen): scalars and references are written through Value.String()
// unchanged, but String values are intercepted so they can be encrypted
// with that object's per-object key first, and containers recurse so
// every string nested anywhere within the object picks up the same key.
// exempt objects (the /Encrypt dictionary, or a member of an /ObjStm)
// are written with no encryption regardless of w.opts.Cipher.
func (w *writer) writeValue(b *buffer, v object.Value, num uint32, gen uint16, exempt bool) {
	switch t := v.(type) {
	case object.String:
		w.writeString(b, t, num, gen, exempt)
	case *object.Array:
		w.writeArray(b, t, num, gen, exempt)
	case *object.Dict:
		w.writeDict(b, t, num, gen, exempt)
	case object.RawData:
		(*bytes.Buffer)(b).Write(t)
	default:
		b.fmt("%s", v.String())
	}
}

func (w *writer) writeString(b *buffer, s object.String, num uint32, gen uint16, exempt bool) {
	raw := s.Bytes
	hex := s.Hex
	if w.opts.Cipher != nil && !exempt {
		enc, err := w.opts.Cipher.EncryptObject(num, gen, raw)
		if err != nil {
			w.err = err
			return
		}
		raw = enc
		hex = true // encrypted bytes are arbitrary binary; hex avoids re-deriving literal escaping
	}
	if hex {
		b.fmt("<%x>", raw)
		return
	}
	b.fmt("(%s)", escapeLiteral(raw))
}

func escapeLiteral(raw []byte) string {
	var sb strings.Builder
	for _, c := range raw {
		switch c {
		case '(', ')', '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case '\n':
			sb.WriteString("\\n")
		case '\r':
			sb.WriteString("\\r")
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func (w *writer) writeArray(b *buffer, a *object.Array, num uint32, gen uint16, exempt bool) {
	b.fmt("[")
	items := a.Items()
	for i, it := range items {
		if i > 0 {
			b.fmt(" ")
		}
		w.writeValue(b, it, num, gen, exempt)
	}
	b.fmt("]")
}

func (w *writer) writeDict(b *buffer, d *object.Dict, num uint32, gen uint16, exempt bool) {
	keys := d.Keys()
	if w.opts.Mode == Compact {
		b.fmt("<<")
		for _, k := range keys {
			v, _ := d.Get(k)
			b.fmt("%s", k.String())
			var vb buffer
			w.writeValue(&vb, v, num, gen, exempt)
			out := vb.bytes()
			// a value opening with a delimiter needs no separator after
			// the key's name token; anything else (numbers, references,
			// true/false/null) does.
			if len(out) > 0 && out[0] != '<' && out[0] != '[' && out[0] != '(' && out[0] != '/' {
				b.fmt(" ")
			}
			(*bytes.Buffer)(b).Write(out)
		}
		b.fmt(">>")
		return
	}
	b.fmt("<<\n")
	for _, k := range keys {
		v, _ := d.Get(k)
		b.fmt("%s ", k.String())
		w.writeValue(b, v, num, gen, exempt)
		b.fmt("\n")
	}
	b.fmt(">>")
}

var utf16Enc = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)

// textString UTF-16BE-encodes s with a leading BOM, the PDF text-string
// convention, yielding the bytes of an object.String. Escaping (and
// encryption, when it applies) happens later, in writeString.
func textString(s string) (object.String, error) {
	enc, err := utf16Enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return object.String{}, fmt.Errorf("invalid text string %q: %w", s, err)
	}
	return object.String{Bytes: enc}, nil
}

// NewInfo builds a document information dictionary with the entries
// documentID hashes, so a document carrying one gets a deterministic,
// content-derived /ID on write. The caller allocates it in the store and
// points the trailer's /Info at it.
func NewInfo(creator, producer string, created time.Time) (*object.Dict, error) {
	d := object.NewDict()
	c, err := textString(creator)
	if err != nil {
		return nil, err
	}
	p, err := textString(producer)
	if err != nil {
		return nil, err
	}
	d.Set("Creator", c)
	d.Set("Producer", p)
	d.Set("CreationDate", object.String{Bytes: []byte(dateString(created))})
	return d, nil
}

// dateString formats t as a PDF date string
// ("D:YYYYMMDDHHmmSSOhh'mm'", O being '+' or '-').
func dateString(t time.Time) string {
	_, tz := t.Zone()
	sign := '+'
	if tz < 0 {
		sign = '-'
		tz = -tz
	}
	return fmt.Sprintf("D:%d%02d%02d%02d%02d%02d%c%02d'%02d'",
		t.Year(), t.Month(), t.Day(),
		t.Hour(), t.Minute(), t.Second(),
		sign, tz/60/60, tz/60%60)
}
