package context_test

import (
	"testing"

	"github.com/andersctx/ctxanders/context"
	"github.com/stretchr/testify/assert"
)

type fakeLoader struct {
	valid map[string]bool
}

func key(s context.Stack) string {
	out := ""
	for _, id := range s {
		out += id.(string) + "/"
	}
	return out
}

func (f fakeLoader) HasDynData() bool { return true }
func (f fakeLoader) IsValid(stack []any) bool {
	s := make(context.Stack, len(stack))
	for i, v := range stack {
		s[i] = v
	}
	return f.valid[key(s)]
}

func TestExtendCollapsesSelfRecursiveTail(t *testing.T) {
	s := context.Stack{"a", "b"}
	s2 := s.Extend("b")
	assert.True(t, s2.Equal(context.Stack{"a", "b"}))

	s3 := s.Extend("c")
	assert.True(t, s3.Equal(context.Stack{"a", "b", "c"}))
}

func TestPartitionNoDynData(t *testing.T) {
	cands := []context.Stack{{"a"}, {"b"}}
	valid, invalid := context.Partition(nil, cands)
	assert.Len(t, valid, 2)
	assert.Len(t, invalid, 0)
}

func TestPartitionWithLoader(t *testing.T) {
	loader := fakeLoader{valid: map[string]bool{"a/": true}}
	cands := []context.Stack{{"a"}, {"b"}}
	valid, invalid := context.Partition(loader, cands)
	assert.Len(t, valid, 1)
	assert.Len(t, invalid, 1)
	assert.True(t, context.ShouldSkip(loader, nil))
	assert.False(t, context.ShouldSkip(loader, valid))
}

func TestCheckDynamicTraceFindsUnobserved(t *testing.T) {
	used := []context.Stack{{"a", "b"}, {"a", "c"}}
	trace := []context.Stack{{"a", "b"}}
	unobserved := context.CheckDynamicTrace(used, trace)
	assert.Len(t, unobserved, 1)
	assert.True(t, unobserved[0].Equal(context.Stack{"a", "c"}))
}
