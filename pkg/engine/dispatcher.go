package engine

import (
	"fmt"

	"github.com/spikemat/spikemat/pkg/core"
	"github.com/spikemat/spikemat/pkg/engine/native"
)

// Callback is invoked once per tick before that tick's update, with the
// model, the zero-based tick index within the call, and the call's total.
// On the cpu and fused backends it sees live internal states and
// refractory countdowns and may adjust them; the parallel backend flushes
// only at writeback, so there the callback observes setup-time values.
type Callback func(m *core.Model, tick, total int)

// Dispatcher owns backend selection and the setup/run/writeback cycle
// around a simulation call.
type Dispatcher struct {
	caps     Capabilities
	backends map[string]Backend

	// Selection thresholds for auto mode, scored as N + 100*T.
	ParallelThreshold int
	FusedThreshold    int

	// state is retained across calls when the model opted into manual
	// setup; nil otherwise.
	state *State

	lastUsed string
}

// NewDispatcher builds a dispatcher for the given host capabilities with
// the default auto-selection thresholds.
func NewDispatcher(caps Capabilities) *Dispatcher {
	var kern *native.Kernels
	if caps.NativeKernels {
		kern, _ = native.Load()
	}
	return &Dispatcher{
		caps: caps,
		backends: map[string]Backend{
			BackendCPU:      cpuBackend{},
			BackendFused:    fusedBackend{},
			BackendParallel: newParallelBackend(caps.Workers, kern),
		},
		ParallelThreshold: core.DefaultParallelThreshold,
		FusedThreshold:    core.DefaultFusedThreshold,
	}
}

// Configure applies engine settings from a loaded config: thresholds and
// a worker-count override.
func (d *Dispatcher) Configure(cfg core.EngineConfig) {
	if cfg.ParallelThreshold > 0 {
		d.ParallelThreshold = cfg.ParallelThreshold
	}
	if cfg.FusedThreshold > 0 {
		d.FusedThreshold = cfg.FusedThreshold
	}
	if cfg.Workers > 0 {
		d.caps.Workers = cfg.Workers
		d.backends[BackendParallel] = newParallelBackend(cfg.Workers, d.backends[BackendParallel].(*parallelBackend).kern)
	}
}

// Capabilities returns the host descriptor the dispatcher was built with.
func (d *Dispatcher) Capabilities() Capabilities { return d.caps }

// LastUsed reports the backend resolved by the most recent Simulate call.
func (d *Dispatcher) LastUsed() string { return d.lastUsed }

func (d *Dispatcher) available(name string) bool {
	switch name {
	case BackendCPU:
		return true
	case BackendFused:
		return d.caps.SIMD
	case BackendParallel:
		return d.caps.Workers > 0 || d.caps.NativeKernels
	default:
		return false
	}
}

// Recommend picks a backend for a workload of n neurons over timeSteps
// ticks. Heavier tiers are only recommended when the host can actually
// profit from them; an explicit hint to Simulate bypasses this entirely.
func (d *Dispatcher) Recommend(m *core.Model, timeSteps int) string {
	score := m.NumNeurons() + 100*timeSteps
	if score > d.ParallelThreshold && (d.caps.Workers > 1 || d.caps.NativeKernels) {
		return BackendParallel
	}
	if score > d.FusedThreshold && d.caps.SIMD {
		return BackendFused
	}
	return BackendCPU
}

// resolve maps a hint (possibly empty or "auto") to a runnable backend,
// failing before any tick executes.
func (d *Dispatcher) resolve(m *core.Model, timeSteps int, hint string) (Backend, error) {
	name := hint
	if name == "" {
		name = m.Backend
	}
	if name == "" || name == BackendAuto {
		name = d.Recommend(m, timeSteps)
	}
	b, ok := d.backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownBackend, name)
	}
	if !d.available(name) {
		return nil, fmt.Errorf("%w: %q", core.ErrBackendUnavailable, name)
	}
	return b, nil
}

// Simulate advances the model by timeSteps ticks on the hinted backend,
// or on the recommended one when the hint is empty or "auto". Unless the
// model opted into manual setup, the dense state is rebuilt from the
// model, run, and written back within this one call, and the consumed
// slice of the input schedule is dropped.
func (d *Dispatcher) Simulate(m *core.Model, timeSteps int, hint string, cb Callback) error {
	if timeSteps <= 0 {
		return fmt.Errorf("%w: %d", core.ErrInvalidTimeSteps, timeSteps)
	}
	b, err := d.resolve(m, timeSteps, hint)
	if err != nil {
		return err
	}

	var st *State
	if m.ManualSetup && d.state != nil && d.state.model == m {
		st = d.state
	} else {
		st = NewState(m)
		if m.ManualSetup {
			d.state = st
		}
	}

	var tcb TickFunc
	if cb != nil {
		tcb = func(tick, total int) { cb(m, tick, total) }
	}
	if err := b.Run(st, timeSteps, tcb); err != nil {
		return err
	}
	d.lastUsed = b.Name()
	m.LastUsedBackend = b.Name()

	if !m.ManualSetup {
		st.Writeback()
		m.ConsumeInputSpikes(timeSteps)
	}
	return nil
}

// Setup builds the dense working state ahead of manual-setup runs. The
// neuron and synapse populations must not change until Teardown.
func (d *Dispatcher) Setup(m *core.Model) {
	d.state = NewState(m)
}

// Teardown flushes the retained manual-setup state back to the model,
// consumes the covered input schedule and releases the state.
func (d *Dispatcher) Teardown() {
	if d.state == nil {
		return
	}
	d.state.Writeback()
	d.state.model.ConsumeInputSpikes(d.state.Ticks())
	d.state = nil
}
