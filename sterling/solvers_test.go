package sterling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBuildingSolver struct{ name string }

func (f *fakeBuildingSolver) Name() string { return f.name }

func (f *fakeBuildingSolver) Solve() string { return "solved:" + f.name }

type buildingSolver interface {
	Solver
	Solve() string
}

func TestSolverRegistry_RegisterAndGet(t *testing.T) {
	reg := NewSolverRegistry()
	reg.Register(DomainBuilding, &fakeBuildingSolver{name: "sterling-building-v1"})

	solver, err := GetSolver[*fakeBuildingSolver](reg, DomainBuilding)
	require.NoError(t, err)
	assert.Equal(t, "sterling-building-v1", solver.Name())
	assert.Equal(t, "solved:sterling-building-v1", solver.Solve())
}

func TestSolverRegistry_UnregisteredDomainErrors(t *testing.T) {
	reg := NewSolverRegistry()
	_, err := GetSolver[*fakeBuildingSolver](reg, DomainCrafting)
	assert.Error(t, err)
}

func TestSolverRegistry_WrongTypeAssertionErrors(t *testing.T) {
	reg := NewSolverRegistry()
	reg.Register(DomainBuilding, &fakeBuildingSolver{name: "x"})

	type otherSolver interface {
		Solver
		OtherMethod()
	}
	_, err := GetSolver[otherSolver](reg, DomainBuilding)
	assert.Error(t, err)
}
