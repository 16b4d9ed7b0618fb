package object

// Dict is an ordered PDF dictionary: lookups are O(1) via the index
// map, but iteration and serialization follow insertion order, so an
// untouched dictionary re-serializes with its original key order.
type Dict struct {
	keys []Name
	m    map[Name]Value
	owner dirtyTracker
}

// NewDict creates an empty ordered dictionary.
func NewDict() *Dict {
	return &Dict{m: make(map[Name]Value)}
}

func (d *Dict) Kind() Kind { return KindDict }

func (d *Dict) Clone() Value {
	out := NewDict()
	for _, k := range d.keys {
		out.Set(k, d.m[k].Clone())
	}
	out.owner = nil
	return out
}

func (d *Dict) String() string {
	s := "<<"
	for _, k := range d.keys {
		s += " " + k.String() + " " + d.m[k].String()
	}
	return s + " >>"
}

// Len returns the number of entries.
func (d *Dict) Len() int { return len(d.keys) }

// Keys returns the dictionary's keys in insertion order. The returned
// slice must not be mutated.
func (d *Dict) Keys() []Name { return d.keys }

// Get returns the value for key and whether it was present. Missing
// keys are not distinguished from an explicit Null in most PDF
// processing; callers that care use the ok return.
func (d *Dict) Get(key Name) (Value, bool) {
	v, ok := d.m[key]
	return v, ok
}

// GetOrNull returns the value for key, or Null if absent.
func (d *Dict) GetOrNull(key Name) Value {
	if v, ok := d.m[key]; ok {
		return v
	}
	return Null{}
}

// Has reports whether key is present.
func (d *Dict) Has(key Name) bool {
	_, ok := d.m[key]
	return ok
}

// SetOwner attaches a dirty-tracking owner.
func (d *Dict) SetOwner(o dirtyTracker) { d.owner = o }

func (d *Dict) markDirty() {
	if d.owner != nil {
		d.owner.markDirty()
	}
}

// Set inserts or updates key, appending it to the key order the first
// time it's seen.
func (d *Dict) Set(key Name, v Value) {
	if d.m == nil {
		d.m = make(map[Name]Value)
	}
	if _, exists := d.m[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.m[key] = v
	adoptOwner(v, d)
	d.markDirty()
}

// Delete removes key, if present, preserving the relative order of the
// remaining keys.
func (d *Dict) Delete(key Name) {
	if _, ok := d.m[key]; !ok {
		return
	}
	delete(d.m, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
	d.markDirty()
}
