package bin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/loader"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/domain/vm"
)

func TestInstallAndLoad(t *testing.T) {
	store := loader.NewMemStore()
	reg := loader.NewRegistry()
	Register(reg)
	require.NoError(t, Install(store))

	pool := vm.NewPool(64)
	l := loader.New(store, reg, pool)

	var paths []string
	for _, p := range Programs() {
		paths = append(paths, p.Path)

		as, entry, err := l.Load(p.Path)
		require.NoError(t, err, p.Path)
		assert.Equal(t, p.Symbol, as.Text)
		assert.NotNil(t, entry.Routine)
		if p.Layout.Heap > 0 {
			assert.NotNil(t, as.Region("heap"), p.Path)
		}
		as.Destroy()
	}
	assert.ElementsMatch(t, paths, store.Paths())
	assert.Equal(t, 0, pool.Used())
}

func TestRegisterTwicePanics(t *testing.T) {
	reg := loader.NewRegistry()
	Register(reg)
	assert.Panics(t, func() { Register(reg) })
}
