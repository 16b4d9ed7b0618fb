package object

import (
	"sort"

	"github.com/kugler-labs/pdfcore/pdferr"
)

// MaxObjectNumber is the largest object number a conforming Store will
// allocate: PDF object numbers are commonly encoded in 23 bits by xref
// streams and object streams (2^23 - 1). Parse rejects a reference
// beyond it with ValueOutOfRange, and Allocate returns OutOfMemory once
// the number space is exhausted, rather than silently wrapping.
const MaxObjectNumber = 1<<23 - 1

func cyclicResolve(o *IndirectObject) error {
	return pdferr.Errorf(pdferr.CyclicXref, "object %d %d resolves to itself", o.Number, o.Generation)
}

// freeSlot is a reusable object number together with the generation
// its next occupant must be allocated at: the generation is bumped on
// every free, and 65535 (the tombstone value reserved for object 0's
// permanent free-list head) is never reallocated.
type freeSlot struct {
	number uint32
	gen    uint16
}

// Store owns every indirect object of a document, indexed by object
// number. Only one generation per number is tracked at a time (the
// live one), matching actual PDF usage: once a document is incrementally
// updated, the Store holds whichever generation the latest xref section
// names as live for that number.
type Store struct {
	objects map[uint32]*IndirectObject
	// freeList holds object numbers returned by Delete (with the
	// generation their next occupant must use), reused by Allocate
	// before minting a new, never-seen-before number.
	freeList []freeSlot
	nextNum  uint32
}

// NewStore creates an empty object store.
func NewStore() *Store {
	return &Store{objects: make(map[uint32]*IndirectObject), nextNum: 1}
}

// Get returns the indirect object for number, or nil if it has never
// been registered with the store (as opposed to Free, which is a
// registered-but-empty state).
func (s *Store) Get(number uint32) *IndirectObject {
	return s.objects[number]
}

// Insert registers obj under its own Number, overwriting whatever was
// previously stored there (used when a later incremental-update section
// supersedes an earlier object of the same number).
func (s *Store) Insert(obj *IndirectObject) {
	s.objects[obj.Number] = obj
	if obj.Number >= s.nextNum {
		s.nextNum = obj.Number + 1
	}
}

// Allocate reserves a fresh object number (reusing one from the free
// list when available) and registers a new resident object under it,
// returning the object. Returns OutOfMemory if the object-number cap
// would be exceeded.
func (s *Store) Allocate(v Value) (*IndirectObject, error) {
	var num uint32
	var gen uint16
	if n := len(s.freeList); n > 0 {
		slot := s.freeList[n-1]
		s.freeList = s.freeList[:n-1]
		num, gen = slot.number, slot.gen
	} else {
		if s.nextNum > MaxObjectNumber {
			return nil, pdferr.Errorf(pdferr.OutOfMemory, "object number space exhausted (max %d)", MaxObjectNumber)
		}
		num = s.nextNum
		s.nextNum++
	}
	obj := NewResidentObject(num, gen, v)
	obj.dirty = true
	s.objects[num] = obj
	return obj, nil
}

// Delete frees the object at number (if present) and returns its number
// to the free list so a later Allocate may reuse it, as classic xref
// free-list chains do, bumping the generation it will be reallocated
// at. A slot whose next generation would be 65535 (the tombstone value)
// is retired instead of re-queued: that object number is never
// reallocated again.
func (s *Store) Delete(number uint32) {
	obj, ok := s.objects[number]
	if !ok {
		return
	}
	nextGen := obj.Generation + 1
	obj.Free()
	if nextGen >= 65535 {
		return
	}
	s.freeList = append(s.freeList, freeSlot{number: number, gen: nextGen})
}

// Len returns the number of registered object numbers, free or not.
func (s *Store) Len() int { return len(s.objects) }

// IterSorted calls fn once per registered object, in ascending object
// number order, as required when serializing (xref table ordering) or
// diffing a document against a baseline.
func (s *Store) IterSorted(fn func(*IndirectObject)) {
	nums := make([]uint32, 0, len(s.objects))
	for n := range s.objects {
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	for _, n := range nums {
		fn(s.objects[n])
	}
}

// DirtyObjects returns every object with a dirty flag set, in ascending
// object number order, which is exactly the set the writer must emit
// for an incremental update.
func (s *Store) DirtyObjects() []*IndirectObject {
	var out []*IndirectObject
	s.IterSorted(func(o *IndirectObject) {
		if o.Dirty() {
			out = append(out, o)
		}
	})
	return out
}

// Resolve follows ref to its Value, returning Null (not an error) for a
// reference to an object the store has never seen, matching the
// tolerant-reader policy of treating dangling references as null.
func (s *Store) Resolve(ref Reference) (Value, error) {
	obj := s.objects[ref.Number]
	if obj == nil {
		return Null{}, nil
	}
	return obj.Resolve()
}

// ResolveDeep follows v if it is a Reference, otherwise returns v
// unchanged; used by accessors that accept either a direct value or an
// indirect one (the common PDF idiom of "this entry may be indirect").
func (s *Store) ResolveDeep(v Value) (Value, error) {
	ref, ok := v.(Reference)
	if !ok {
		return v, nil
	}
	return s.Resolve(ref)
}
