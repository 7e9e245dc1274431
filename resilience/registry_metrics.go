package resilience

import (
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
)

// RegistryMetrics implements MetricsCollector on top of core's weak-coupled
// MetricsRegistry, so the resilience package never imports a concrete metrics
// backend directly (see core.SetMetricsRegistry).
type RegistryMetrics struct {
	breakerName string
}

// NewRegistryMetrics creates a metrics collector that forwards into whichever
// core.MetricsRegistry the process wired up at startup, if any.
func NewRegistryMetrics(breakerName string) *RegistryMetrics {
	return &RegistryMetrics{breakerName: breakerName}
}

func (r *RegistryMetrics) RecordSuccess(name string) {
	if reg := core.GetGlobalMetricsRegistry(); reg != nil {
		reg.Counter("circuit_breaker.calls", "name", name, "result", "success")
	}
}

func (r *RegistryMetrics) RecordFailure(name string, errorType string) {
	if reg := core.GetGlobalMetricsRegistry(); reg != nil {
		reg.Counter("circuit_breaker.calls", "name", name, "result", "failure")
		reg.Counter("circuit_breaker.failures", "name", name, "error_type", errorType)
	}
}

func (r *RegistryMetrics) RecordStateChange(name string, from, to string) {
	if reg := core.GetGlobalMetricsRegistry(); reg != nil {
		reg.Counter("circuit_breaker.state_changes", "name", name, "from_state", from, "to_state", to)
		reg.Gauge("circuit_breaker.current_state", stateGaugeValue(to), "name", name)
	}
}

func (r *RegistryMetrics) RecordRejection(name string) {
	if reg := core.GetGlobalMetricsRegistry(); reg != nil {
		reg.Counter("circuit_breaker.rejected", "name", name)
	}
}

func stateGaugeValue(state string) float64 {
	switch state {
	case "open":
		return 1.0
	case "half-open":
		return 0.5
	default:
		return 0.0
	}
}
