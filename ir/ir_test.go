package ir_test

import (
	"testing"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/stretchr/testify/assert"

	"github.com/andersctx/ctxanders/ir"
)

func TestFromModulePartitionsBodiesAndExternal(t *testing.T) {
	m := llir.NewModule()

	defined := m.NewFunc("main", types.Void)
	block := defined.NewBlock("")
	block.NewRet(nil)

	m.NewFunc("puts", types.Void) // declaration only, no blocks

	prog := ir.FromModule(m)
	assert.Len(t, prog.Bodies, 1)
	assert.Len(t, prog.External, 1)
	assert.Equal(t, "main", prog.Bodies[0].Name())
	assert.Equal(t, "puts", prog.External[0].Name())
}

func TestEntryPointFindsDefinedFunctionByName(t *testing.T) {
	m := llir.NewModule()
	fn := m.NewFunc("main", types.Void)
	block := fn.NewBlock("")
	block.NewRet(nil)

	prog := ir.FromModule(m)
	got, ok := prog.EntryPoint("main")
	assert.True(t, ok)
	assert.Same(t, fn, got)

	_, ok = prog.EntryPoint("nonexistent")
	assert.False(t, ok)
}

func TestEntryPointRejectsDeclarationOnlyMain(t *testing.T) {
	m := llir.NewModule()
	m.NewFunc("main", types.Void) // declaration only

	prog := ir.FromModule(m)
	_, ok := prog.EntryPoint("main")
	assert.False(t, ok)
}
