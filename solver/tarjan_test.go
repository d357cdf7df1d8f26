package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/andersctx/ctxanders/idmap"
)

func TestTarjanSCCFindsCycle(t *testing.T) {
	a, b, c := idmap.ID(1), idmap.ID(2), idmap.ID(3)
	succ := map[idmap.ID][]idmap.ID{
		a: {b},
		b: {c},
		c: {a}, // a -> b -> c -> a: one 3-node SCC
	}
	sccs := tarjanSCC([]idmap.ID{a, b, c}, func(id idmap.ID) []idmap.ID { return succ[id] })
	assert.Len(t, sccs, 1)
	assert.ElementsMatch(t, []idmap.ID{a, b, c}, sccs[0])
}

func TestTarjanSCCRestrictsToGivenSet(t *testing.T) {
	a, b, outside := idmap.ID(1), idmap.ID(2), idmap.ID(99)
	succ := map[idmap.ID][]idmap.ID{
		a: {b, outside},
		b: {a},
	}
	sccs := tarjanSCC([]idmap.ID{a, b}, func(id idmap.ID) []idmap.ID { return succ[id] })
	assert.Len(t, sccs, 1)
	assert.ElementsMatch(t, []idmap.ID{a, b}, sccs[0])
}

func TestTarjanSCCSingletonsWithNoCycle(t *testing.T) {
	a, b := idmap.ID(1), idmap.ID(2)
	succ := map[idmap.ID][]idmap.ID{a: {b}}
	sccs := tarjanSCC([]idmap.ID{a, b}, func(id idmap.ID) []idmap.ID { return succ[id] })
	assert.Len(t, sccs, 2)
	for _, scc := range sccs {
		assert.Len(t, scc, 1)
	}
}
