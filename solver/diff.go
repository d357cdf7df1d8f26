package solver

import "github.com/andersctx/ctxanders/idmap"

// DiffEntry records one id whose solved points-to set disagreed with a
// previously-recorded expectation (a supplemented diff-verification
// feature, grounded in CsSolve.cpp's do_spec_diff report).
type DiffEntry struct {
	ID idmap.ID
	Expected []uint32
	Got []uint32
	Missing []uint32 // expected but not in Got
	Extra []uint32 // in Got but not expected
}

// DiffReport is the full set of disagreements found by CompareAgainst.
type DiffReport struct {
	Entries []DiffEntry
}

// Clean reports whether every id matched its expectation exactly.
func (r DiffReport) Clean() bool { return len(r.Entries) == 0 }

// CompareAgainst checks every id in expected (a points-to assumption
// recorded during constraint generation — see
// constraint.PtstoAssumption) against the solved graph, reporting every
// mismatch. It never aborts the solve: this is purely a
// verification report layered on top of an already-sound fixed point.
func (s *Solver) CompareAgainst(expected map[idmap.ID][]idmap.ID) DiffReport {
	var report DiffReport
	for id, want := range expected {
		got := s.Graph.Node(id).Pts
		wantSet := make(map[uint32]bool, len(want))
		for _, w := range want {
			wantSet[uint32(w)] = true
		}
		gotSlice := got.ToSlice()
		gotSet := make(map[uint32]bool, len(gotSlice))
		for _, g := range gotSlice {
			gotSet[g] = true
		}

		var missing, extra []uint32
		for w := range wantSet {
			if !gotSet[w] {
				missing = append(missing, w)
			}
		}
		for g := range gotSet {
			if !wantSet[g] {
				extra = append(extra, g)
			}
		}
		if len(missing) == 0 && len(extra) == 0 {
			continue
		}
		report.Entries = append(report.Entries, DiffEntry{
			ID: id,
			Expected: uint32Slice(want),
			Got: gotSlice,
			Missing: missing,
			Extra: extra,
		})
	}
	return report
}

func uint32Slice(ids []idmap.ID) []uint32 {
	out := make([]uint32, len(ids))
	for i, id := range ids {
		out[i] = uint32(id)
	}
	return out
}
