package object

// LifecycleState tracks how much of an indirect object has been
// materialized, per the data model's lazy-loading design: a freshly
// indexed xref entry only knows its offset (Unparsed); parsing "N G
// obj" without reading the value yet yields HeaderParsed; resolving the
// dictionary/scalar body yields DictResident; pulling in and decoding
// the stream payload (for stream objects) yields StreamResident. Free
// entries never leave the Free state.
type LifecycleState uint8

const (
	Unparsed LifecycleState = iota
	HeaderParsed
	DictResident
	StreamResident
	Free
)

func (s LifecycleState) String() string {
	switch s {
	case Unparsed:
		return "Unparsed"
	case HeaderParsed:
		return "HeaderParsed"
	case DictResident:
		return "DictResident"
	case StreamResident:
		return "StreamResident"
	case Free:
		return "Free"
	default:
		return "Unknown"
	}
}

// Loader lazily materializes an indirect object's value the first time
// it's needed. Implementations live in package xref (loading from a
// parsed file); objects built in memory need no loader since they start
// DictResident.
type Loader func() (Value, *Stream, error)

// IndirectObject is one entry of a Store: a (Number, Generation) object
// identity, its current lifecycle state, and either its resolved value
// or a Loader that will produce one. Re-entrant Resolve calls (an object
// whose loader ends up referencing itself, directly or through a cycle)
// are rejected rather than recursing forever.
type IndirectObject struct {
	Number     uint32
	Generation uint16

	state  LifecycleState
	value  Value
	stream *Stream
	loader Loader
	dirty  bool

	resolving bool
}

// NewResidentObject creates an already-materialized indirect object
// (used by the writer when building a document from scratch, or by
// tests).
func NewResidentObject(num uint32, gen uint16, v Value) *IndirectObject {
	o := &IndirectObject{Number: num, Generation: gen, value: v, state: DictResident}
	adoptOwner(v, o)
	return o
}

// NewLazyObject creates an indirect object that defers materialization
// to loader, used by the xref/loader layer for objects discovered in a
// parsed file but not yet read.
func NewLazyObject(num uint32, gen uint16, loader Loader) *IndirectObject {
	return &IndirectObject{Number: num, Generation: gen, state: Unparsed, loader: loader}
}

// Reference returns this object's identity as a Reference Value.
func (o *IndirectObject) Reference() Reference {
	return Reference{Number: o.Number, Generation: o.Generation}
}

func (o *IndirectObject) State() LifecycleState { return o.state }

// Dirty reports whether this object has been modified since it was
// loaded (or, for objects created fresh, since construction).
func (o *IndirectObject) Dirty() bool { return o.dirty }

// MarkDirty flags the object for rewriting by the serializer. Exported
// so the writer can force a rewrite (e.g. when renumbering), though
// most callers get this for free via the dirtyTracker propagation from
// a nested Array/Dict mutation.
func (o *IndirectObject) MarkDirty() { o.markDirty() }

func (o *IndirectObject) markDirty() {
	o.dirty = true
}

// Free transitions the object to the Free state, dropping its value.
func (o *IndirectObject) Free() {
	o.state = Free
	o.value = nil
	o.stream = nil
	o.loader = nil
	o.dirty = true
}

// Resolve returns the object's Value, materializing it via the loader
// on first access. A loader that (directly or transitively) resolves
// the same object again returns a CyclicXref error rather than
// recursing, since that can only happen through a malformed /Length
// forward reference or a self-referential object stream.
func (o *IndirectObject) Resolve() (Value, error) {
	if o.state == Free {
		return Null{}, nil
	}
	if o.state == DictResident || o.state == StreamResident {
		return o.value, nil
	}
	if o.resolving {
		return nil, cyclicResolve(o)
	}
	if o.loader == nil {
		return Null{}, nil
	}
	o.resolving = true
	v, s, err := o.loader()
	o.resolving = false
	if err != nil {
		return nil, err
	}
	o.value = v
	o.stream = s
	adoptOwner(v, o)
	if s != nil {
		s.SetOwner(o)
		o.state = StreamResident
	} else {
		o.state = DictResident
	}
	return o.value, nil
}

// Stream returns the object's stream payload, if any, resolving the
// object first if necessary.
func (o *IndirectObject) Stream() (*Stream, error) {
	if _, err := o.Resolve(); err != nil {
		return nil, err
	}
	return o.stream, nil
}

// SetValue replaces the object's resident value directly (used when
// building or rewriting objects in memory), marking it dirty.
func (o *IndirectObject) SetValue(v Value) {
	o.value = v
	o.stream = nil
	o.state = DictResident
	adoptOwner(v, o)
	o.dirty = true
}

// SetStream replaces the object's stream, marking it dirty.
func (o *IndirectObject) SetStream(s *Stream) {
	o.stream = s
	if s != nil {
		s.SetOwner(o)
		o.value = s.Dict
		o.state = StreamResident
	}
	o.dirty = true
}
