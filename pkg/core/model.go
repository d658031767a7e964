// Package core holds the canonical network model for spikemat: columnar
// neuron and synapse parameters, the input spike schedule, the recorded
// spike train, and the STDP configuration. The package is pure data plus
// mutators; every simulation semantic lives in pkg/engine.
package core

import (
	"math"
)

// NeuronParams are the construction-time parameters of a single neuron.
type NeuronParams struct {
	// Threshold is the strict firing threshold: the neuron spikes when its
	// internal state is strictly greater than this value.
	Threshold float64

	// Leak is the magnitude by which the internal state is pushed towards
	// ResetState each tick. +Inf snaps the state to ResetState.
	Leak float64

	// ResetState is the value the internal state takes after firing, and
	// the target of the leak.
	ResetState float64

	// RefractoryPeriod is the number of ticks of enforced non-firing after
	// a spike.
	RefractoryPeriod int

	// RefractoryState is the initial refractory countdown.
	RefractoryState int

	// InitialState is the starting internal state.
	InitialState float64
}

// DefaultNeuronParams returns the default neuron parameters: threshold 0,
// infinite leak, reset state 0, no refractory period.
func DefaultNeuronParams() NeuronParams {
	return NeuronParams{Leak: math.Inf(1)}
}

// SynapseParams are the construction-time parameters of a single synapse.
type SynapseParams struct {
	// Weight multiplies the presynaptic spike on arrival.
	Weight float64

	// Delay is the number of ticks between presynaptic firing and the
	// postsynaptic contribution. Must be >= 1; 1 is the standard
	// one-tick LIF coupling.
	Delay int

	// STDPEnabled marks the synapse as eligible for plasticity updates.
	STDPEnabled bool

	// Chained realizes a Delay > 1 synapse as a chain of Delay-1 relay
	// neurons connected by unit-delay hops instead of the pending-spike
	// ring buffer. The two representations produce identical postsynaptic
	// spike trains; the chain adds relay neurons to the model.
	Chained bool
}

// DefaultSynapseParams returns the default synapse parameters: weight 1,
// delay 1, learning disabled.
func DefaultSynapseParams() SynapseParams {
	return SynapseParams{Weight: 1.0, Delay: 1}
}

// SpikeList holds the external spikes scheduled for one tick.
type SpikeList struct {
	NeuronIDs []int     `msgpack:"neuron_ids"`
	Values    []float64 `msgpack:"values"`
}

// Model is the canonical spiking network: neuron parameters in columnar
// arrays indexed by neuron id, synapses as coordinate lists indexed by
// synapse id, plus the input schedule and the recorded spike train.
//
// Neurons and synapses are append-only. Deletion is unsupported; removing
// entries would invalidate every id handed out so far.
type Model struct {
	// Neuron parameters, one entry per neuron.
	Thresholds        []float64 `msgpack:"thresholds"`
	Leaks             []float64 `msgpack:"leaks"`
	ResetStates       []float64 `msgpack:"reset_states"`
	RefractoryPeriods []int     `msgpack:"refractory_periods"`
	RefractoryStates  []int     `msgpack:"refractory_states"`
	States            []float64 `msgpack:"states"`

	// Synapse parameters, one entry per synapse.
	PreIDs      []int     `msgpack:"pre_ids"`
	PostIDs     []int     `msgpack:"post_ids"`
	Weights     []float64 `msgpack:"weights"`
	Delays      []int     `msgpack:"delays"`
	STDPEnabled []bool    `msgpack:"stdp_enabled"`

	// InputSpikes maps a relative tick (0 = next tick to simulate) to the
	// external spikes scheduled for it. Consumed and time-shifted after
	// each simulation call.
	InputSpikes map[int]*SpikeList `msgpack:"input_spikes"`

	// Pending holds delayed postsynaptic contributions that are still in
	// flight, keyed by relative arrival tick. Populated at the end of a
	// simulation call when delayed synapses have scheduled contributions
	// beyond the simulated horizon.
	Pending map[int][]float64 `msgpack:"pending"`

	// SpikeTrain records one boolean vector per simulated tick, appended
	// by the simulation call and persisted across calls until cleared.
	SpikeTrain [][]bool `msgpack:"spike_train"`

	// STDP configuration. Apos and Aneg are time-lag kernels; index 0 is
	// the most recent prior tick.
	STDP           bool      `msgpack:"stdp"`
	Apos           []float64 `msgpack:"apos"`
	Aneg           []float64 `msgpack:"aneg"`
	PositiveUpdate bool      `msgpack:"positive_update"`
	NegativeUpdate bool      `msgpack:"negative_update"`

	// Backend is the default backend used when a simulation call does not
	// name one explicitly. "auto" scores the problem size.
	Backend string `msgpack:"backend"`

	// ManualSetup opts out of the per-call rebuild of the dense working
	// arrays: the caller owns setup and writeback across calls.
	ManualSetup bool `msgpack:"manual_setup"`

	// LastUsedBackend reports the backend that executed the most recent
	// simulation call.
	LastUsedBackend string `msgpack:"last_used_backend"`
}

// NewModel returns an empty model with learning updates armed and backend
// selection set to "auto".
func NewModel() *Model {
	return &Model{
		InputSpikes:    make(map[int]*SpikeList),
		Pending:        make(map[int][]float64),
		STDP:           true,
		PositiveUpdate: true,
		NegativeUpdate: true,
		Backend:        "auto",
	}
}

// NumNeurons returns the number of neurons in the model, including any
// relay neurons created by chained-delay expansion.
func (m *Model) NumNeurons() int { return len(m.Thresholds) }

// NumSynapses returns the number of synapses in the model.
func (m *Model) NumSynapses() int { return len(m.PreIDs) }

// CreateNeuron appends a neuron and returns its id.
func (m *Model) CreateNeuron(p NeuronParams) (int, error) {
	if p.Leak < 0 || math.IsNaN(p.Leak) {
		return 0, ErrInvalidLeak
	}
	if p.RefractoryPeriod < 0 || p.RefractoryState < 0 {
		return 0, ErrInvalidRefractory
	}

	m.Thresholds = append(m.Thresholds, p.Threshold)
	m.Leaks = append(m.Leaks, p.Leak)
	m.ResetStates = append(m.ResetStates, p.ResetState)
	m.RefractoryPeriods = append(m.RefractoryPeriods, p.RefractoryPeriod)
	m.RefractoryStates = append(m.RefractoryStates, p.RefractoryState)
	m.States = append(m.States, p.InitialState)

	return m.NumNeurons() - 1, nil
}

// CreateSynapse appends a synapse from pre to post and returns its id.
//
// A synapse with Delay > 1 and Chained set is expanded into Delay-1 relay
// neurons (threshold 0, leak 0, reset 0) joined by unit-delay hops of
// weight 1; the final hop carries the requested weight and STDP flag, and
// its id is returned. Without Chained, the synapse is registered with its
// delay tag and served by the pending-contribution ring buffer.
//
// Duplicate (pre, post) pairs accumulate: each insertion adds another
// weighted edge, and the dense weight matrix sums them.
func (m *Model) CreateSynapse(pre, post int, p SynapseParams) (int, error) {
	if pre < 0 || pre >= m.NumNeurons() || post < 0 || post >= m.NumNeurons() {
		return 0, ErrNeuronNotFound
	}
	if p.Delay < 1 {
		return 0, ErrInvalidDelay
	}

	if p.Delay > 1 && p.Chained {
		relay := NeuronParams{} // threshold 0, leak 0, reset 0
		for hop := 0; hop < p.Delay-1; hop++ {
			rid, err := m.CreateNeuron(relay)
			if err != nil {
				return 0, err
			}
			if _, err := m.CreateSynapse(pre, rid, SynapseParams{Weight: 1.0, Delay: 1}); err != nil {
				return 0, err
			}
			pre = rid
		}
		return m.CreateSynapse(pre, post, SynapseParams{
			Weight:      p.Weight,
			Delay:       1,
			STDPEnabled: p.STDPEnabled,
		})
	}

	m.PreIDs = append(m.PreIDs, pre)
	m.PostIDs = append(m.PostIDs, post)
	m.Weights = append(m.Weights, p.Weight)
	m.Delays = append(m.Delays, p.Delay)
	m.STDPEnabled = append(m.STDPEnabled, p.STDPEnabled)

	return m.NumSynapses() - 1, nil
}

// AddSpike schedules an external spike of the given amplitude for a neuron
// at a relative tick (0 = next tick to simulate).
func (m *Model) AddSpike(tick, neuron int, value float64) error {
	if tick < 0 {
		return ErrInvalidSpikeTime
	}
	if neuron < 0 || neuron >= m.NumNeurons() {
		return ErrNeuronNotFound
	}

	list, ok := m.InputSpikes[tick]
	if !ok {
		list = &SpikeList{}
		m.InputSpikes[tick] = list
	}
	list.NeuronIDs = append(list.NeuronIDs, neuron)
	list.Values = append(list.Values, value)
	return nil
}

// ConsumeInputSpikes drops scheduled spikes that fell inside the simulated
// window and shifts the remainder so relative tick 0 is "now" again. The
// pending delayed contributions are not touched; engine writeback stores
// them already keyed relative to the next unsimulated tick.
func (m *Model) ConsumeInputSpikes(steps int) {
	shifted := make(map[int]*SpikeList)
	for t, list := range m.InputSpikes {
		if t >= steps {
			shifted[t-steps] = list
		}
	}
	m.InputSpikes = shifted
}

// WeightMatrix builds the dense N x N weight matrix in row-major order,
// W[pre*N+post], from the unit-delay synapses. Duplicate (pre, post)
// pairs accumulate. Synapses with delay > 1 are excluded; they propagate
// through the pending-contribution buffer instead.
func (m *Model) WeightMatrix() []float64 {
	n := m.NumNeurons()
	w := make([]float64, n*n)
	for s := range m.PreIDs {
		if m.Delays[s] != 1 {
			continue
		}
		w[m.PreIDs[s]*n+m.PostIDs[s]] += m.Weights[s]
	}
	return w
}

// STDPMask builds the dense N x N learning mask in row-major order: 1
// where some unit-delay synapse (pre, post) has STDP enabled, else 0.
// Duplicates combine with a logical OR.
func (m *Model) STDPMask() []float64 {
	n := m.NumNeurons()
	mask := make([]float64, n*n)
	for s := range m.PreIDs {
		if m.Delays[s] != 1 || !m.STDPEnabled[s] {
			continue
		}
		mask[m.PreIDs[s]*n+m.PostIDs[s]] = 1
	}
	return mask
}

// MaxDelay returns the largest synaptic delay in the model, or 1 when the
// model has no synapses.
func (m *Model) MaxDelay() int {
	max := 1
	for _, d := range m.Delays {
		if d > max {
			max = d
		}
	}
	return max
}

// HasSTDPSynapse reports whether at least one synapse has learning enabled.
func (m *Model) HasSTDPSynapse() bool {
	for _, on := range m.STDPEnabled {
		if on {
			return true
		}
	}
	return false
}

// SpikeTotals returns the per-neuron spike counts over the recorded train.
func (m *Model) SpikeTotals() []int {
	totals := make([]int, m.NumNeurons())
	for _, spikes := range m.SpikeTrain {
		for i, fired := range spikes {
			if fired && i < len(totals) {
				totals[i]++
			}
		}
	}
	return totals
}

// ClearSpikeTrain discards the recorded spike train.
func (m *Model) ClearSpikeTrain() { m.SpikeTrain = nil }

// ZeroStates resets every internal state to zero.
func (m *Model) ZeroStates() {
	for i := range m.States {
		m.States[i] = 0
	}
}

// ZeroRefractoryStates clears every refractory countdown.
func (m *Model) ZeroRefractoryStates() {
	for i := range m.RefractoryStates {
		m.RefractoryStates[i] = 0
	}
}

// Reset returns the network to its pre-simulation condition: internal
// states and refractory countdowns zeroed, and the spike train, input
// schedule and in-flight delayed contributions cleared. Neuron and
// synapse parameters, including learned weights, are kept.
func (m *Model) Reset() {
	m.ZeroStates()
	m.ZeroRefractoryStates()
	m.ClearSpikeTrain()
	m.InputSpikes = make(map[int]*SpikeList)
	m.Pending = make(map[int][]float64)
}
