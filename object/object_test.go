package object

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestDictPreservesInsertionOrder(t *testing.T) {
	d := NewDict()
	d.Set("Type", Name("Catalog"))
	d.Set("Pages", Reference{Number: 2})
	d.Set("A", Integer(1))

	want := []Name{"Type", "Pages", "A"}
	got := d.Keys()
	if len(got) != len(want) {
		t.Fatalf("got %d keys, want %d", len(got), len(want))
	}
	for i, k := range want {
		if got[i] != k {
			t.Errorf("key %d: got %q, want %q", i, got[i], k)
		}
	}

	// re-setting an existing key must not move it
	d.Set("Type", Name("XObject"))
	if d.Keys()[0] != "Type" {
		t.Errorf("re-set moved key order: %v", d.Keys())
	}
	v, _ := d.Get("Type")
	if v != Name("XObject") {
		t.Errorf("re-set did not update value: %v", v)
	}
}

func TestDictDeletePreservesOrder(t *testing.T) {
	d := NewDict()
	d.Set("A", Integer(1))
	d.Set("B", Integer(2))
	d.Set("C", Integer(3))
	d.Delete("B")
	want := []Name{"A", "C"}
	got := d.Keys()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
	if d.Has("B") {
		t.Error("B should be gone")
	}
}

func TestDictCloneIsDeepAndDetached(t *testing.T) {
	inner := NewArray(Integer(1), Integer(2))
	outer := NewDict()
	outer.Set("Kids", inner)

	obj := NewResidentObject(1, 0, outer)
	obj.dirty = false

	clone := outer.Clone().(*Dict)
	kids := clone.GetOrNull("Kids").(*Array)
	kids.Append(Integer(3))

	if obj.Dirty() {
		t.Error("mutating a clone must not dirty the original owner")
	}
	if inner.Len() != 2 {
		t.Errorf("original array was mutated through the clone: len=%d", inner.Len())
	}
}

// TestDictCloneStructurallyEqual: a
// clone must be structurally identical to its source (same keys, same
// order, same nested values) even though it is a detached copy with no
// owner. The owner field is ignored deliberately: it is the one field
// Clone intentionally does not copy (see Dict.Clone's "out.owner = nil"),
// not a structural property of the value.
func TestDictCloneStructurallyEqual(t *testing.T) {
	src := NewDict()
	src.Set("Type", Name("Catalog"))
	src.Set("Count", Integer(3))
	src.Set("Kids", NewArray(Reference{Number: 4}, Reference{Number: 5}))

	clone := src.Clone().(*Dict)

	diff := cmp.Diff(src, clone,
		cmp.AllowUnexported(Dict{}, Array{}),
		cmpopts.IgnoreFields(Dict{}, "owner"),
		cmpopts.IgnoreFields(Array{}, "owner"),
	)
	if diff != "" {
		t.Errorf("clone is not structurally equal to source (-src +clone):\n%s", diff)
	}
}

func TestArrayMutationPropagatesDirty(t *testing.T) {
	arr := NewArray(Integer(1))
	obj := NewResidentObject(5, 0, arr)
	obj.dirty = false

	arr.Append(Integer(2))
	if !obj.Dirty() {
		t.Error("appending to an owned array should dirty the indirect object")
	}
}

func TestNestedDictMutationPropagatesDirty(t *testing.T) {
	inner := NewDict()
	outer := NewDict()
	outer.Set("Inner", inner)

	obj := NewResidentObject(7, 0, outer)
	obj.dirty = false

	inner.Set("X", Integer(1))
	if !obj.Dirty() {
		t.Error("mutating a nested dict should propagate dirty to the owning indirect object")
	}
}

func TestIndirectObjectLazyResolveAndCycleGuard(t *testing.T) {
	calls := 0
	var self *IndirectObject
	self = NewLazyObject(3, 0, func() (Value, *Stream, error) {
		calls++
		// simulate a loader that, mid-resolution, tries to resolve the
		// same object again (e.g. via a self-referential /Length).
		_, err := self.Resolve()
		if err == nil {
			t.Fatal("expected cyclic resolve to fail")
		}
		return Integer(42), nil, nil
	})

	v, err := self.Resolve()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != Integer(42) {
		t.Errorf("got %v", v)
	}
	if calls != 1 {
		t.Errorf("loader called %d times, want 1", calls)
	}

	// second resolve must be cached, not re-invoke the loader
	if _, err := self.Resolve(); err != nil {
		t.Fatalf("unexpected error on second resolve: %v", err)
	}
	if calls != 1 {
		t.Errorf("loader re-invoked on cached resolve: calls=%d", calls)
	}
}

func TestFreeObjectResolvesToNull(t *testing.T) {
	obj := NewResidentObject(9, 0, Integer(1))
	obj.Free()
	v, err := obj.Resolve()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := v.(Null); !ok {
		t.Errorf("got %v, want Null", v)
	}
	if obj.State() != Free {
		t.Errorf("state = %v, want Free", obj.State())
	}
}

func TestStoreAllocateReusesFreeList(t *testing.T) {
	s := NewStore()
	o1, _ := s.Allocate(Integer(1))
	o2, _ := s.Allocate(Integer(2))
	if o1.Number == o2.Number {
		t.Fatal("allocate returned duplicate numbers")
	}
	s.Delete(o1.Number)
	o3, _ := s.Allocate(Integer(3))
	if o3.Number != o1.Number {
		t.Errorf("expected free-list reuse of %d, got %d", o1.Number, o3.Number)
	}
}

// TestStoreDeleteBumpsGeneration: a reused object number comes back at
// generation+1, never at the same generation it was freed at.
func TestStoreDeleteBumpsGeneration(t *testing.T) {
	s := NewStore()
	o1, _ := s.Allocate(Integer(1))
	if o1.Generation != 0 {
		t.Fatalf("fresh allocation generation = %d, want 0", o1.Generation)
	}
	s.Delete(o1.Number)
	o2, _ := s.Allocate(Integer(2))
	if o2.Number != o1.Number {
		t.Fatalf("expected free-list reuse of %d, got %d", o1.Number, o2.Number)
	}
	if o2.Generation != 1 {
		t.Errorf("reused object generation = %d, want 1", o2.Generation)
	}
}

// TestStoreDeleteRetiresSlotAtTombstoneGeneration confirms a slot whose
// next generation would be 65535 (the tombstone value reserved for
// object 0's free-list head) is never requeued for reuse.
func TestStoreDeleteRetiresSlotAtTombstoneGeneration(t *testing.T) {
	s := NewStore()
	obj := NewResidentObject(7, 65534, Integer(1))
	s.objects[7] = obj
	s.Delete(7)
	if len(s.freeList) != 0 {
		t.Errorf("slot reaching the tombstone generation must not be requeued, got freeList=%v", s.freeList)
	}
}

func TestStoreResolveDanglingReferenceIsNull(t *testing.T) {
	s := NewStore()
	v, err := s.Resolve(Reference{Number: 999})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := v.(Null); !ok {
		t.Errorf("got %v, want Null for dangling reference", v)
	}
}

func TestStoreIterSortedOrder(t *testing.T) {
	s := NewStore()
	s.Insert(NewResidentObject(5, 0, Integer(5)))
	s.Insert(NewResidentObject(1, 0, Integer(1)))
	s.Insert(NewResidentObject(3, 0, Integer(3)))

	var nums []uint32
	s.IterSorted(func(o *IndirectObject) { nums = append(nums, o.Number) })
	want := []uint32{1, 3, 5}
	for i, n := range want {
		if nums[i] != n {
			t.Errorf("position %d: got %d, want %d", i, nums[i], n)
		}
	}
}

func TestDirtyObjectsOnlyIncludesDirty(t *testing.T) {
	s := NewStore()
	clean := NewResidentObject(1, 0, Integer(1))
	clean.dirty = false
	dirty := NewResidentObject(2, 0, Integer(2))
	dirty.dirty = true
	s.Insert(clean)
	s.Insert(dirty)

	got := s.DirtyObjects()
	if len(got) != 1 || got[0].Number != 2 {
		t.Errorf("got %v", got)
	}
}

func TestEqualsByValue(t *testing.T) {
	cases := []struct {
		a, b  Value
		equal bool
	}{
		{Integer(1), Integer(1), true},
		{Integer(1), Integer(2), false},
		{Integer(1), Real(1), false}, // different Kind never equal
		{Name("A"), Name("A"), true},
		{String{Bytes: []byte("x")}, String{Bytes: []byte("x")}, true},
		{Reference{Number: 1}, Reference{Number: 1}, true},
		{Reference{Number: 1}, Reference{Number: 1, Generation: 1}, false},
	}
	for _, c := range cases {
		eq, defined := Equals(c.a, c.b)
		if !defined {
			t.Errorf("Equals(%v, %v) undefined, want defined", c.a, c.b)
			continue
		}
		if eq != c.equal {
			t.Errorf("Equals(%v, %v) = %v, want %v", c.a, c.b, eq, c.equal)
		}
	}
}

func TestEqualsRawDataUndefined(t *testing.T) {
	_, defined := Equals(RawData("a"), RawData("a"))
	if defined {
		t.Error("RawData equality should be undefined")
	}
}

func TestEqualsReferenceIsPointerIdentity(t *testing.T) {
	a := NewDict()
	b := a.Clone()
	if EqualsReference(a, b) {
		t.Error("clones should not be reference-equal")
	}
	if !EqualsReference(a, a) {
		t.Error("a value should be reference-equal to itself")
	}
}

func TestAsNumberLenientRounding(t *testing.T) {
	v, err := AsNumberLenient(Real(2.6))
	if err != nil || v != 3 {
		t.Errorf("got %v, %v, want 3, nil", v, err)
	}
	v, err = AsNumberLenient(Real(-2.6))
	if err != nil || v != -3 {
		t.Errorf("got %v, %v, want -3, nil", v, err)
	}
}

func TestDocumentRootResolution(t *testing.T) {
	doc := NewDocument("1.7")
	catalog := NewDict()
	catalog.Set("Type", Name("Catalog"))
	obj, _ := doc.Store.Allocate(catalog)
	doc.Trailer.Set("Root", obj.Reference())

	root, err := doc.Root()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := root.Get("Type"); v != Name("Catalog") {
		t.Errorf("got %v", v)
	}
}

func TestDocumentRootMissingIsError(t *testing.T) {
	doc := NewDocument("1.7")
	if _, err := doc.Root(); err == nil {
		t.Fatal("expected error for missing /Root")
	}
}
