package sterling

import "fmt"

// Domain names the per-domain solver registry keys exposed via GetSolver.
type Domain string

const (
	DomainBuilding        Domain = "building"
	DomainCrafting        Domain = "crafting"
	DomainToolProgression  Domain = "tool_progression"
	DomainNavigation       Domain = "navigation"
)

// Solver is the minimal per-domain solver contract: a name and an opaque
// capability probe. Concrete per-domain solvers (not part of this core)
// implement additional domain-specific methods behind a type assertion,
// the Go analogue of the spec's generic getSolver<T>.
type Solver interface {
	Name() string
}

// SolverRegistry holds per-domain solver instances registered at startup.
type SolverRegistry struct {
	solvers map[Domain]Solver
}

// NewSolverRegistry creates an empty registry.
func NewSolverRegistry() *SolverRegistry {
	return &SolverRegistry{solvers: make(map[Domain]Solver)}
}

// Register installs a solver for a domain.
func (r *SolverRegistry) Register(domain Domain, s Solver) {
	r.solvers[domain] = s
}

// GetSolver fetches the solver registered for a domain, type-asserting it
// to T — the Go equivalent of the spec's generic getSolver<T>(domain).
func GetSolver[T Solver](r *SolverRegistry, domain Domain) (T, error) {
	var zero T
	s, ok := r.solvers[domain]
	if !ok {
		return zero, fmt.Errorf("no solver registered for domain %q", domain)
	}
	typed, ok := s.(T)
	if !ok {
		return zero, fmt.Errorf("solver for domain %q does not implement requested type", domain)
	}
	return typed, nil
}
