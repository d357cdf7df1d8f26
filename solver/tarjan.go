package solver

import "github.com/andersctx/ctxanders/idmap"

// tarjanSCC runs Tarjan's strongly-connected-components algorithm over
// the graph induced by ids and succ, restricted to edges that land back
// inside ids (this is what makes it a "restricted" pass for LCD: edges
// leaving the candidate set are simply not followed). Returned SCCs are
// in callee-before-caller (postorder) order, same convention as
// callgraph.BasicFcnCFG.SCCPostorder.
func tarjanSCC(ids []idmap.ID, succ func(idmap.ID) []idmap.ID) [][]idmap.ID {
	index := make(map[idmap.ID]int, len(ids))
	low := make(map[idmap.ID]int, len(ids))
	onStack := make(map[idmap.ID]bool, len(ids))
	inSet := make(map[idmap.ID]bool, len(ids))
	for _, id := range ids {
		inSet[id] = true
	}

	var stack []idmap.ID
	next := 0
	var sccs [][]idmap.ID

	var strongconnect func(v idmap.ID)
	strongconnect = func(v idmap.ID) {
		index[v] = next
		low[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range succ(v) {
			if !inSet[w] {
				continue
			}
			if _, seen := index[w]; !seen {
				strongconnect(w)
				if low[w] < low[v] {
					low[v] = low[w]
				}
			} else if onStack[w] {
				if index[w] < low[v] {
					low[v] = index[w]
				}
			}
		}

		if low[v] == index[v] {
			var comp []idmap.ID
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, comp)
		}
	}

	for _, id := range ids {
		if _, seen := index[id]; !seen {
			strongconnect(id)
		}
	}
	return sccs
}
