// Package structinfo is the field-layout/size oracle for aggregate types
// (the design, §6 ModInfo). It is grounded on github.com/llir/llvm's types
// package, which stands in for the "IR parsing out of scope" collaborator:
// llir's types.StructType/types.ArrayType already carry exactly the shape
// information ModInfo needs.
package structinfo

import (
	"fmt"
	"sync"

	"github.com/llir/llvm/ir/types"
)

// Info computes, and caches, the flattened field layout of aggregate
// types. "Flattened" follows AddressOf-per-field-slot rule:
// every scalar leaf of a struct (recursively) gets its own logical field
// slot; an array collapses to the layout of one element regardless of
// length, matching "arrays collapse to element type" rule.
type Info struct {
	mu sync.Mutex
	sizes map[types.Type]uint32
	offsets map[types.Type][]uint32 // byte-irrelevant: field-slot offsets
	flatten map[types.Type][]FieldInfo
}

// FieldInfo names one flattened leaf field of an aggregate type.
type FieldInfo struct {
	Type types.Type
	Offset uint32 // in logical field slots from the start of the aggregate
	Path string // debug path, e.g. ".a.b[*].c"
}

// New returns an empty, ready-to-use Info.
func New() *Info {
	return &Info{
		sizes: make(map[types.Type]uint32),
		offsets: make(map[types.Type][]uint32),
		flatten: make(map[types.Type][]FieldInfo),
	}
}

// SizeOf returns the number of logical field slots typ occupies. Scalars
// (including pointers) are size 1; collapsed arrays and vectors take
// their element type's size; structs are the sum of their fields' sizes.
func (in *Info) SizeOf(typ types.Type) uint32 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.sizeOfLocked(typ)
}

func (in *Info) sizeOfLocked(typ types.Type) uint32 {
	if sz, ok := in.sizes[typ]; ok {
		return sz
	}
	var sz uint32
	switch t := typ.(type) {
	case *types.StructType:
		for _, f := range t.Fields {
			sz += in.sizeOfLocked(f)
		}
		if sz == 0 {
			sz = 1
		}
	case *types.ArrayType:
		// Arrays collapse to their element's size, by design.
		sz = in.sizeOfLocked(t.ElemType)
		if sz == 0 {
			sz = 1
		}
	case *types.VectorType:
		sz = in.sizeOfLocked(t.ElemType)
		if sz == 0 {
			sz = 1
		}
	default:
		sz = 1
	}
	in.sizes[typ] = sz
	return sz
}

// Offsets returns, for a struct type, the field-slot offset of each direct
// field (not flattened): Offsets(t)[i] is the logical field-slot at which
// field i begins.
func (in *Info) Offsets(t *types.StructType) []uint32 {
	in.mu.Lock()
	defer in.mu.Unlock()
	if offs, ok := in.offsets[t]; ok {
		return offs
	}
	offs := make([]uint32, len(t.Fields))
	var acc uint32
	for i, f := range t.Fields {
		offs[i] = acc
		acc += in.sizeOfLocked(f)
	}
	in.offsets[t] = offs
	return offs
}

// GetGEPOffs computes the constant field-slot offset a GEP with the given
// constant index path reaches, starting from a pointer to typ. The first
// index (the "array" index into *typ itself) is ignored when it is
// statically zero, matching ordinary struct-pointer GEPs (`gep %T* p, i32
// 0, i32 k`); a non-zero leading index multiplies by typ's overall size.
func (in *Info) GetGEPOffs(typ types.Type, indices []int64) uint32 {
	if len(indices) == 0 {
		return 0
	}
	var offset uint32
	if indices[0] != 0 {
		offset += uint32(indices[0]) * in.SizeOf(typ)
	}
	cur := typ
	for _, idx := range indices[1:] {
		switch t := cur.(type) {
		case *types.StructType:
			offs := in.Offsets(t)
			if int(idx) >= len(offs) {
				panic(fmt.Sprintf("structinfo: field index %d out of range for %s", idx, t))
			}
			offset += offs[idx]
			cur = t.Fields[idx]
		case *types.ArrayType:
			// Collapsed: every element shares field-slot 0 relative to
			// the array's start, irrespective of idx.
			cur = t.ElemType
		case *types.VectorType:
			cur = t.ElemType
		default:
			// Indexing further into a scalar is only valid for idx==0.
			if idx != 0 {
				panic(fmt.Sprintf("structinfo: cannot index scalar type %s with %d", cur, idx))
			}
		}
	}
	return offset
}

// Flatten returns every scalar leaf field of typ, in field-slot order,
// each carrying a debug path. This mirrors "one AddressOf per
// field slot" allocation rule and the classic addNodes/flatten helper.
func (in *Info) Flatten(typ types.Type) []FieldInfo {
	in.mu.Lock()
	defer in.mu.Unlock()
	if fs, ok := in.flatten[typ]; ok {
		return fs
	}
	fs := in.flattenLocked(typ, "")
	in.flatten[typ] = fs
	return fs
}

func (in *Info) flattenLocked(typ types.Type, path string) []FieldInfo {
	switch t := typ.(type) {
	case *types.StructType:
		var out []FieldInfo
		var offset uint32
		for i, f := range t.Fields {
			sub := in.flattenLocked(f, fmt.Sprintf("%s.f%d", path, i))
			for _, fi := range sub {
				fi.Offset += offset
				out = append(out, fi)
			}
			offset += in.sizeOfLocked(f)
		}
		if len(out) == 0 {
			out = []FieldInfo{{Type: t, Offset: 0, Path: path}}
		}
		return out
	case *types.ArrayType:
		sub := in.flattenLocked(t.ElemType, path+"[*]")
		return sub
	case *types.VectorType:
		sub := in.flattenLocked(t.ElemType, path+"[*]")
		return sub
	default:
		return []FieldInfo{{Type: typ, Offset: 0, Path: path}}
	}
}

func (fi FieldInfo) String() string {
	if fi.Path == "" {
		return fmt.Sprintf("n+%d", fi.Offset)
	}
	return fi.Path
}
