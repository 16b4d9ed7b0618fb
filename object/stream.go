package object

import "strconv"

// Stream pairs a dictionary with the raw (still-encoded) bytes that
// followed the "stream" keyword. Decoding through the filter pipeline
// is the responsibility of package filter; this type only models the
// PDF-level container.
type Stream struct {
	Dict *Dict
	Raw  []byte

	owner dirtyTracker
}

// NewStream builds a Stream, adopting dict as its dictionary and raw as
// its encoded content.
func NewStream(dict *Dict, raw []byte) *Stream {
	return &Stream{Dict: dict, Raw: raw}
}

// Stream is never itself a Value (a stream object's Value is its
// dictionary; IndirectObject carries the stream payload alongside it),
// so it implements neither Kind nor the Value interface.

func (s *Stream) Clone() *Stream {
	d, _ := s.Dict.Clone().(*Dict)
	return &Stream{Dict: d, Raw: append([]byte(nil), s.Raw...)}
}

func (s *Stream) String() string {
	return s.Dict.String() + " stream(" + strconv.Itoa(len(s.Raw)) + " bytes)"
}

func (s *Stream) SetOwner(o dirtyTracker) {
	s.owner = o
	s.Dict.SetOwner(o)
}

func (s *Stream) markDirty() {
	if s.owner != nil {
		s.owner.markDirty()
	}
}

// SetRaw replaces the stream's encoded payload, marking the owning
// indirect object dirty and updating /Length to match.
func (s *Stream) SetRaw(raw []byte) {
	s.Raw = raw
	s.Dict.Set("Length", Integer(len(raw)))
	s.markDirty()
}
