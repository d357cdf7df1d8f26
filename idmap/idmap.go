// Package idmap assigns dense integer identifiers to every abstract entity
// the analysis reasons about (SSA/IR values, heap objects, phony ids) and
// maintains the union-find structure used to collapse merged identifiers to
// a single representative.
package idmap

import (
	"fmt"
	"sort"
)

// ID is a dense, non-negative identifier. Zero never names a real entity;
// callers use it as a "no node" sentinel (mirroring the classic
// convention that node 0 means "not pointer-like").
type ID uint32

// Reserved, well-known identifiers. Every ValueMap allocates these four
// before anything else, so they compare equal across ValueMaps prior to
// any import/merge.
const (
	NoID ID = 0
	NullValue ID = 1
	UniversalValue ID = 2
	IntValue ID = 3
	AggregateValue ID = 4
	firstFreeID ID = 5
)

// Kind classifies an identifier for debug dumps and for the solver's
// special-cased handling of the sentinels above.
type Kind uint8

const (
	KindSentinel Kind = iota
	KindValue
	KindObject
	KindPhony
)

type entry struct {
	kind Kind
	name string // debug label
	objSize uint32 // only meaningful for KindObject's first slot
}

// Map assigns dense ids to values, objects and phony intermediates, and
// tracks a union-find forest over those ids so that merged ids resolve to
// one representative.
//
// A Map owns one contiguous id space. Object ids are allocated in that
// same space, interleaved with values and phonies, and each allocation's
// range is recorded in creation order; LowerAllocs can afterwards pack
// every object into one contiguous block.
type Map struct {
	entries []entry // index 0 unused; entries[id] describes id
	parent []ID // union-find parent; parent[id] == id means id is a rep
	rank []uint8

	// defs maps an opaque external value key (typically a pointer to the
	// owning ssa/IR value) to its definition id. Kept here rather than in
	// the constraint generator so that Import can translate it directly.
	defs map[any]ID

	// objRanges records, in order of creation, the [start,start+size)
	// ranges handed out by CreateAlloc before LowerAllocs runs.
	objRanges []objRange
	lowered bool
}

type objRange struct {
	start ID
	size uint32
}

// New returns a Map with the four reserved sentinel ids already allocated.
func New() *Map {
	m := &Map{
		entries: make([]entry, firstFreeID),
		parent: make([]ID, firstFreeID),
		rank: make([]uint8, firstFreeID),
		defs: make(map[any]ID),
	}
	m.entries[NullValue] = entry{kind: KindSentinel, name: "<null>"}
	m.entries[UniversalValue] = entry{kind: KindSentinel, name: "<universal>"}
	m.entries[IntValue] = entry{kind: KindSentinel, name: "<int>"}
	m.entries[AggregateValue] = entry{kind: KindSentinel, name: "<aggregate>"}
	for i := range m.parent {
		m.parent[ID(i)] = ID(i)
	}
	return m
}

func (m *Map) alloc(k Kind, name string) ID {
	id := ID(len(m.entries))
	m.entries = append(m.entries, entry{kind: k, name: name})
	m.parent = append(m.parent, id)
	m.rank = append(m.rank, 0)
	return id
}

// GetDef returns the id representing the SSA definition of key, creating it
// lazily (KindValue) on first use. key is typically a pointer-identity IR
// value; callers are responsible for using a stable, comparable key.
func (m *Map) GetDef(key any, name string) ID {
	if id, ok := m.defs[key]; ok {
		return id
	}
	id := m.alloc(KindValue, name)
	m.defs[key] = id
	return id
}

// LookupDef returns the id for key if one has already been created, without
// creating it.
func (m *Map) LookupDef(key any) (ID, bool) {
	id, ok := m.defs[key]
	return id, ok
}

// GetDefBlock is GetDef generalized to values whose flattened type needs
// more than one consecutive id (e.g. an aggregate-typed SSA register):
// it allocates `size` consecutive KindValue ids on first use and
// registers key against the first one, so later GetDefBlock/GetDef calls
// for the same key return the same base id.
func (m *Map) GetDefBlock(key any, name string, size uint32) ID {
	if id, ok := m.defs[key]; ok {
		return id
	}
	if size == 0 {
		size = 1
	}
	base := m.alloc(KindValue, name)
	for i := uint32(1); i < size; i++ {
		m.alloc(KindValue, name)
	}
	m.defs[key] = base
	return base
}

// CreateAlloc allocates a fresh object spanning `size` consecutive ids (one
// slot per struct field / array element — arrays collapse to a
// single element slot by the caller passing size=1 for the element type).
// It panics if LowerAllocs has already run: object creation must finish
// before allocations are packed.
func (m *Map) CreateAlloc(name string, size uint32) ID {
	if m.lowered {
		panic("idmap: CreateAlloc after LowerAllocs")
	}
	if size == 0 {
		size = 1
	}
	start := m.alloc(KindObject, name)
	m.entries[start].objSize = size
	for i := uint32(1); i < size; i++ {
		m.alloc(KindObject, name)
	}
	m.objRanges = append(m.objRanges, objRange{start: start, size: size})
	return start
}

// CreatePhonyID allocates a fresh id that names an intermediate constraint
// (e.g. the implicit "edge" node of a store), with no backing value.
func (m *Map) CreatePhonyID(name string) ID {
	return m.alloc(KindPhony, name)
}

// Kind reports the kind of id.
func (m *Map) Kind(id ID) Kind {
	if int(id) >= len(m.entries) {
		panic(fmt.Sprintf("idmap: id %d out of range", id))
	}
	return m.entries[id].kind
}

// Name returns the debug label attached to id.
func (m *Map) Name(id ID) string {
	if int(id) >= len(m.entries) {
		return fmt.Sprintf("n%d", id)
	}
	return m.entries[id].name
}

// Len returns one past the largest id currently allocated.
func (m *Map) Len() int { return len(m.entries) }

// ---------------- union-find ----------------

// GetRep returns the canonical representative of id, path-compressing as
// it walks. Merges are stable and monotone: once id resolves to rep, it
// continues to resolve to rep (or a further merge of rep) forever.
func (m *Map) GetRep(id ID) ID {
	root := id
	for m.parent[root] != root {
		root = m.parent[root]
	}
	// path compression
	for m.parent[id] != root {
		next := m.parent[id]
		m.parent[id] = root
		id = next
	}
	return root
}

// Merge unions the classes of a and b, returning the surviving
// representative. Union-by-rank keeps the forest shallow; the loser's
// entry is left in place (callers such as graph.Merge are responsible for
// reclaiming its edge/constraint storage).
func (m *Map) Merge(a, b ID) ID {
	ra, rb := m.GetRep(a), m.GetRep(b)
	if ra == rb {
		return ra
	}
	if m.rank[ra] < m.rank[rb] {
		ra, rb = rb, ra
	}
	m.parent[rb] = ra
	if m.rank[ra] == m.rank[rb] {
		m.rank[ra]++
	}
	return ra
}

// IsRep reports whether id is currently its own representative.
func (m *Map) IsRep(id ID) bool {
	return m.parent[id] == id
}

// ---------------- import / lower ----------------

// Translation maps ids from a source Map to freshly assigned ids in a
// destination Map, as produced by Import.
type Translation map[ID]ID

// Map looks up id's image, returning it unchanged if it was never part of
// the table. (Import records the four sentinels explicitly, each mapped
// to itself.)
func (t Translation) Map(id ID) ID {
	if v, ok := t[id]; ok {
		return v
	}
	return id
}

// Import injects every id of other into m and returns the translation
// table from other's ids to m's. Global identifiers (defs of other whose
// key isGlobal accepts) are merged by identity — i.e. they receive the
// id m already has for that key, or a new def under that key — while
// every other id (locals, objects, phonies) gets a fresh id in m. The
// four reserved sentinels always map to themselves.
//
// isGlobal, when non-nil, reports whether the given other-side key names
// a global identity that should be unified by identity rather than
// duplicated (e.g. a function, a global variable, or a named constant such
// as argv/envp/stdio). When isGlobal is nil, every def is imported fresh.
func (m *Map) Import(other *Map, isGlobal func(key any) bool) Translation {
	tr := make(Translation, other.Len())
	tr[NullValue] = NullValue
	tr[UniversalValue] = UniversalValue
	tr[IntValue] = IntValue
	tr[AggregateValue] = AggregateValue

	// First pass: defs, so global identity merges land on existing ids.
	otherDefOf := make(map[ID]any, len(other.defs))
	for key, id := range other.defs {
		otherDefOf[id] = key
	}

	freshFor := func(oid ID) ID {
		if v, ok := tr[oid]; ok {
			return v
		}
		switch other.entries[oid].kind {
		case KindValue:
			if key, ok := otherDefOf[oid]; ok && isGlobal != nil && isGlobal(key) {
				nid := m.GetDef(key, other.entries[oid].name)
				tr[oid] = nid
				return nid
			}
			nid := m.alloc(KindValue, other.entries[oid].name)
			tr[oid] = nid
			return nid
		case KindPhony:
			nid := m.alloc(KindPhony, other.entries[oid].name)
			tr[oid] = nid
			return nid
		default:
			nid := m.alloc(other.entries[oid].kind, other.entries[oid].name)
			tr[oid] = nid
			return nid
		}
	}

	for oid := firstFreeID; int(oid) < len(other.entries); oid++ {
		if _, ok := tr[oid]; ok {
			continue
		}
		if other.entries[oid].kind == KindObject {
			// Object ranges must stay contiguous: import the whole run in
			// one pass so offsets (field N) keep meaning id+N.
			continue
		}
		freshFor(oid)
	}

	for _, rng := range other.objRanges {
		if _, ok := tr[rng.start]; ok {
			continue
		}
		name := other.entries[rng.start].name
		nid := m.CreateAlloc(name, rng.size)
		for i := uint32(0); i < rng.size; i++ {
			tr[rng.start+ID(i)] = nid + ID(i)
		}
	}

	return tr
}

// LowerAllocs packs every object id into a single contiguous range
// immediately following all non-object ids, preserving each object's
// internal field order and relative order between objects. It returns the
// remap table (old id -> new id) for every id in the Map, including
// objects, values and phonies. Non-object ids keep their relative order
// but close up the gaps the objects leave, so any non-object id created
// after an object moves down.
//
// It runs at most once, after every object has been created: CreateAlloc
// panics once it has run, and LowerAllocs panics if called twice.
// AllocationOf (and so the solver's GEP range checks) does not depend on
// it, since allocations are recorded disjoint and in increasing order
// from creation on.
func (m *Map) LowerAllocs() Translation {
	if m.lowered {
		panic("idmap: LowerAllocs called twice")
	}
	m.lowered = true

	tr := make(Translation, len(m.entries))
	newEntries := make([]entry, 0, len(m.entries))
	newEntries = append(newEntries, entry{}) // slot 0, unused

	// Pass 1: copy every non-object id, in order, into a dense prefix
	// (ids that followed an object shift down to fill its slots).
	nonObjectIDs := make([]ID, 0, len(m.entries))
	for id := firstFreeID; int(id) < len(m.entries); id++ {
		if m.entries[id].kind != KindObject {
			nonObjectIDs = append(nonObjectIDs, id)
		}
	}
	// sentinels keep their slots 1..4
	for id := NullValue; id <= AggregateValue; id++ {
		tr[id] = id
		newEntries = append(newEntries, m.entries[id])
	}
	for _, id := range nonObjectIDs {
		nid := ID(len(newEntries))
		newEntries = append(newEntries, m.entries[id])
		tr[id] = nid
	}
	// Pass 2: append object ranges, in creation order, contiguously.
	for _, rng := range m.objRanges {
		for i := uint32(0); i < rng.size; i++ {
			oid := rng.start + ID(i)
			nid := ID(len(newEntries))
			newEntries = append(newEntries, m.entries[oid])
			tr[oid] = nid
		}
	}

	// Rebuild union-find and defs under the new numbering.
	newParent := make([]ID, len(newEntries))
	newRank := make([]uint8, len(newEntries))
	for i := range newParent {
		newParent[i] = ID(i)
	}
	for oldID := ID(1); int(oldID) < len(m.entries); oldID++ {
		rep := m.GetRep(oldID)
		if rep == oldID {
			continue
		}
		newParent[tr[oldID]] = tr[rep]
	}
	newDefs := make(map[any]ID, len(m.defs))
	for k, v := range m.defs {
		newDefs[k] = tr[v]
	}

	m.entries = newEntries
	m.parent = newParent
	m.rank = newRank
	m.defs = newDefs
	// Translate each allocation's range individually — the whole block of
	// objects is now contiguous end-to-end, but per-allocation boundaries
	// still matter: a GEP shift may never cross from one object into the
	// next (solver §4.4 step 5), so we keep one entry per allocation, just
	// renumbered and sorted by (now-contiguous) start.
	translated := make([]objRange, len(m.objRanges))
	for i, r := range m.objRanges {
		translated[i] = objRange{start: tr[r.start], size: r.size}
	}
	sort.Slice(translated, func(i, j int) bool { return translated[i].start < translated[j].start })
	m.objRanges = translated

	return tr
}

// ObjectBounds reports the contiguous [lo, hi) range object ids occupy
// across all allocations. Valid only after LowerAllocs.
func (m *Map) ObjectBounds() (lo, hi ID) {
	if !m.lowered || len(m.objRanges) == 0 {
		return 0, 0
	}
	first := m.objRanges[0]
	last := m.objRanges[len(m.objRanges)-1]
	return first.start, last.start + ID(last.size)
}

// AllocationOf returns the [start, start+size) range of the single
// allocation that id belongs to. It panics if id is not an object id.
// Allocations are disjoint and sorted both before and after LowerAllocs,
// so it is valid at any time.
func (m *Map) AllocationOf(id ID) (start ID, size uint32) {
	ranges := m.objRanges
	i := sort.Search(len(ranges), func(i int) bool { return ranges[i].start+ID(ranges[i].size) > id })
	if i < len(ranges) && ranges[i].start <= id {
		return ranges[i].start, ranges[i].size
	}
	panic(fmt.Sprintf("idmap: id %d is not part of any known allocation", id))
}

// ObjectSize returns the number of remaining fields from obj to the end of
// its allocation (obj need not be the allocation's first id).
func (m *Map) ObjectSize(obj ID) uint32 {
	start, size := m.AllocationOf(obj)
	return size - uint32(obj-start)
}
