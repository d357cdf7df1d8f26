// Package bitset provides the sparse points-to set used throughout
// ctxanders: Set wraps a roaring bitmap and adds the offset-shifted
// union operation the solver's GEP edges need.
package bitset

import (
	"fmt"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
)

// Set is a sparse, growable set of non-negative integer ids. The zero
// value is a valid empty set.
type Set struct {
	bm *roaring.Bitmap
}

// New returns an empty Set.
func New() Set {
	return Set{bm: roaring.New()}
}

func (s *Set) ensure() *roaring.Bitmap {
	if s.bm == nil {
		s.bm = roaring.New()
	}
	return s.bm
}

// Add inserts id into the set and reports whether the set grew.
func (s *Set) Add(id uint32) bool {
	return s.ensure().CheckedAdd(id)
}

// Has reports whether id is a member of the set.
func (s Set) Has(id uint32) bool {
	if s.bm == nil {
		return false
	}
	return s.bm.Contains(id)
}

// Len returns the number of elements in the set.
func (s Set) Len() int {
	if s.bm == nil {
		return 0
	}
	return int(s.bm.GetCardinality())
}

// IsEmpty reports whether the set has no members.
func (s Set) IsEmpty() bool {
	return s.bm == nil || s.bm.IsEmpty()
}

// Clone returns an independent copy of s.
func (s Set) Clone() Set {
	if s.bm == nil {
		return New()
	}
	return Set{bm: s.bm.Clone()}
}

// UnionInPlace adds every member of other to s, and reports whether s grew.
func (s *Set) UnionInPlace(other Set) bool {
	if other.bm == nil || other.bm.IsEmpty() {
		return false
	}
	dst := s.ensure()
	before := dst.GetCardinality()
	dst.Or(other.bm)
	return dst.GetCardinality() != before
}

// UnionShifted adds, for every member o of other, the id o+offs — but only
// when o+offs stays inside [loBound(o), hiBound(o)), i.e. within the object
// allocation o belongs to. inRange is consulted per element rather than
// materializing the whole shifted bitmap, so cost is O(#elements of other),
// never O(id space). It reports whether s grew.
//
// inRange receives the candidate shifted id "shifted" and the original id
// "orig"; it must return whether "shifted" is still a valid member of the
// allocation that "orig" belongs to.
func (s *Set) UnionShifted(other Set, offs uint32, inRange func(orig, shifted uint32) bool) bool {
	if other.bm == nil || offs == 0 {
		if offs == 0 {
			return s.UnionInPlace(other)
		}
		return false
	}
	grew := false
	it := other.bm.Iterator()
	for it.HasNext() {
		orig := it.Next()
		shifted := orig + offs
		if shifted < orig {
			continue // overflow
		}
		if inRange != nil && !inRange(orig, shifted) {
			continue
		}
		if s.Add(shifted) {
			grew = true
		}
	}
	return grew
}

// Remove deletes id from the set.
func (s *Set) Remove(id uint32) {
	if s.bm != nil {
		s.bm.Remove(id)
	}
}

// Equals reports whether s and other contain exactly the same elements.
func (s Set) Equals(other Set) bool {
	switch {
	case s.IsEmpty() && other.IsEmpty():
		return true
	case s.IsEmpty() != other.IsEmpty():
		return false
	}
	return s.bm.Equals(other.bm)
}

// Intersects reports whether s and other share at least one member.
func (s Set) Intersects(other Set) bool {
	if s.bm == nil || other.bm == nil {
		return false
	}
	return s.bm.Intersects(other.bm)
}

// ForEach calls f once per member in ascending order. Iteration stops early
// if f returns false.
func (s Set) ForEach(f func(id uint32) bool) {
	if s.bm == nil {
		return
	}
	it := s.bm.Iterator()
	for it.HasNext() {
		if !f(it.Next()) {
			return
		}
	}
}

// ToSlice materializes the set's members in ascending order. Intended for
// tests and debug dumps, not hot paths.
func (s Set) ToSlice() []uint32 {
	if s.bm == nil {
		return nil
	}
	return s.bm.ToArray()
}

func (s Set) String() string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	s.ForEach(func(id uint32) bool {
		if !first {
			b.WriteByte(',')
		}
		first = false
		fmt.Fprintf(&b, "%d", id)
		return true
	})
	b.WriteByte('}')
	return b.String()
}
