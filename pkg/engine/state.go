// Package engine advances a core.Model through discrete time. It owns the
// dense working arrays derived from the model, the per-tick LIF update,
// the STDP weight update, the multi-tick delay buffer, and the set of
// interchangeable backends driven by the Dispatcher.
package engine

import (
	"github.com/spikemat/spikemat/pkg/core"
)

// delayRing buffers pending postsynaptic contributions from synapses with
// delay >= 2, keyed by arrival tick. Slot 0 (the cursor) is consumed by
// the upcoming tick's integrate stage.
type delayRing struct {
	slots  [][]float64
	cursor int
}

func newDelayRing(size, n int) *delayRing {
	r := &delayRing{slots: make([][]float64, size)}
	for i := range r.slots {
		r.slots[i] = make([]float64, n)
	}
	return r
}

// schedule adds a contribution arriving `offset` ticks after the tick
// currently being simulated.
func (r *delayRing) schedule(offset, post int, w float64) {
	r.slots[(r.cursor+offset)%len(r.slots)][post] += w
}

// current returns the contributions arriving at the tick being simulated.
func (r *delayRing) current() []float64 {
	return r.slots[r.cursor]
}

// advance zeroes the consumed slot and moves the cursor to the next tick.
func (r *delayRing) advance() {
	slot := r.slots[r.cursor]
	for i := range slot {
		slot[i] = 0
	}
	r.cursor = (r.cursor + 1) % len(r.slots)
}

// export returns the still-pending contributions keyed by tick offset
// relative to the next unsimulated tick. Empty slots are omitted.
func (r *delayRing) export() map[int][]float64 {
	out := make(map[int][]float64)
	for offset := 0; offset < len(r.slots); offset++ {
		slot := r.slots[(r.cursor+offset)%len(r.slots)]
		nonzero := false
		for _, v := range slot {
			if v != 0 {
				nonzero = true
				break
			}
		}
		if nonzero {
			out[offset] = append([]float64(nil), slot...)
		}
	}
	return out
}

// State holds the dense working arrays for one simulation run, built from
// a model at setup and written back at teardown. Backends mutate it in
// place; it is only ever owned by one simulation call at a time.
type State struct {
	model *core.Model
	n     int

	thresholds []float64
	leaks      []float64
	resets     []float64
	refracOrig []int
	refrac     []int
	states     []float64

	// weights is the dense N x N row-major matrix over unit-delay
	// synapses. mask is nil unless an STDP update will run.
	weights []float64
	mask    []float64

	apos, aneg []float64
	doPos      bool
	doNeg      bool
	doSTDP     bool
	window     int

	// spikes is the previous tick's fired vector as 0/1 values; the
	// integrate stage always lags firing by exactly one tick.
	spikes []float64

	// inputs maps a state-relative tick to its dense external input
	// vector. Sparse: ticks with no scheduled spikes are absent.
	inputs map[int][]float64

	ring     *delayRing
	dPre     []int
	dPost    []int
	dWeights []float64
	dDelays  []int

	// history holds the most recent spike vectors (oldest first, current
	// last), capped at window+1 entries, seeded from the model's train.
	history [][]float64

	// logged counts spike-train entries including ticks run by this
	// state; the STDP window truncates to logged-1 lags.
	logged int

	// tick counts ticks consumed by this state across calls (manual
	// setup advances it over multiple Simulate calls).
	tick int
}

// NewState builds the dense working arrays for a simulation run from the
// canonical model. The model itself is not mutated until writeback.
func NewState(m *core.Model) *State {
	n := m.NumNeurons()
	st := &State{
		model:      m,
		n:          n,
		thresholds: append([]float64(nil), m.Thresholds...),
		leaks:      append([]float64(nil), m.Leaks...),
		resets:     append([]float64(nil), m.ResetStates...),
		refracOrig: append([]int(nil), m.RefractoryPeriods...),
		refrac:     append([]int(nil), m.RefractoryStates...),
		states:     append([]float64(nil), m.States...),
		weights:    m.WeightMatrix(),
		window:     m.STDPWindow(),
	}

	st.doPos = m.DoPositiveUpdate()
	st.doNeg = m.DoNegativeUpdate()
	st.doSTDP = st.doPos || st.doNeg
	if st.doSTDP {
		st.mask = m.STDPMask()
		st.apos = append([]float64(nil), m.Apos...)
		st.aneg = append([]float64(nil), m.Aneg...)
	}

	// External input vectors. Repeated AddSpike for the same tick and
	// neuron overwrites: the last scheduled amplitude wins.
	st.inputs = make(map[int][]float64, len(m.InputSpikes))
	for t, list := range m.InputSpikes {
		vec := make([]float64, n)
		for i, nid := range list.NeuronIDs {
			vec[nid] = list.Values[i]
		}
		st.inputs[t] = vec
	}

	// Previous-tick spikes seed from the recorded train so back-to-back
	// simulation calls couple across the call boundary.
	st.spikes = make([]float64, n)
	if last := len(m.SpikeTrain) - 1; last >= 0 {
		for i, fired := range m.SpikeTrain[last] {
			if fired && i < n {
				st.spikes[i] = 1
			}
		}
	}

	// Delayed synapses and the pending-contribution ring.
	for s := range m.PreIDs {
		if m.Delays[s] < 2 {
			continue
		}
		st.dPre = append(st.dPre, m.PreIDs[s])
		st.dPost = append(st.dPost, m.PostIDs[s])
		st.dWeights = append(st.dWeights, m.Weights[s])
		st.dDelays = append(st.dDelays, m.Delays[s])
	}
	size := m.MaxDelay()
	for t := range m.Pending {
		if t > size {
			size = t
		}
	}
	st.ring = newDelayRing(size+1, n)
	for t, vec := range m.Pending {
		for post, v := range vec {
			if v != 0 && post < n {
				st.ring.schedule(t, post, v)
			}
		}
	}

	// Seed the STDP history with the tail of the recorded train. Older
	// entries may predate neurons added since; missing tail bits read as
	// not fired.
	st.logged = len(m.SpikeTrain)
	if st.window > 0 {
		start := len(m.SpikeTrain) - st.window
		if start < 0 {
			start = 0
		}
		for _, spikes := range m.SpikeTrain[start:] {
			vec := make([]float64, n)
			for i, fired := range spikes {
				if fired && i < n {
					vec[i] = 1
				}
			}
			st.history = append(st.history, vec)
		}
	}

	return st
}

// inputFor returns the external input vector for a state-relative tick,
// or nil when none is scheduled.
func (st *State) inputFor(tick int) []float64 {
	return st.inputs[tick]
}

// finishTick completes per-tick bookkeeping after the fire decision:
// schedules delayed contributions from the just-fired vector, rotates the
// ring, pushes the vector into the STDP history and adopts it as the
// previous-tick spikes. The spike-train append is separate because the
// parallel backend defers it to the end of the run.
func (st *State) finishTick(spk []float64) {
	for i := range st.dPre {
		if v := spk[st.dPre[i]]; v != 0 {
			st.ring.schedule(st.dDelays[i], st.dPost[i], st.dWeights[i]*v)
		}
	}
	st.ring.advance()

	st.spikes = spk
	st.logged++
	st.tick++

	if st.window > 0 {
		st.history = append(st.history, spk)
		if len(st.history) > st.window+1 {
			st.history = st.history[1:]
		}
	}
}

// invokeCallback runs the per-tick callback with live neuron state. The
// dense state is flushed to the model before the call and re-read after,
// so the callback can observe and adjust internal states and refractory
// countdowns mid-run. The parallel backend skips this sync and calls the
// callback directly; it observes the model as of setup.
func (st *State) invokeCallback(cb TickFunc, tick, total int) {
	if cb == nil {
		return
	}
	copy(st.model.States, st.states)
	copy(st.model.RefractoryStates, st.refrac)
	cb(tick, total)
	copy(st.states, st.model.States)
	copy(st.refrac, st.model.RefractoryStates)
}

// lags returns the number of STDP lags with actual history behind the
// just-finished tick: the window truncates when the train is shorter.
func (st *State) lags() int {
	t := st.logged - 1
	if t > st.window {
		t = st.window
	}
	if t > len(st.history)-1 {
		t = len(st.history) - 1
	}
	return t
}

// appendTrain records a fired vector in the model's spike train.
func (st *State) appendTrain(spk []float64) {
	row := make([]bool, st.n)
	for i, v := range spk {
		row[i] = v != 0
	}
	st.model.SpikeTrain = append(st.model.SpikeTrain, row)
}

// Writeback copies the working state back into the canonical model:
// internal states, refractory countdowns, learned weights and in-flight
// delayed contributions. Weight readback assigns each unit-delay synapse
// the matrix entry at its (pre, post) coordinate; duplicate synapses all
// receive the accumulated value.
func (st *State) Writeback() {
	m := st.model
	copy(m.States, st.states)
	copy(m.RefractoryStates, st.refrac)

	if st.doSTDP {
		for s := range m.PreIDs {
			if m.Delays[s] != 1 {
				continue
			}
			m.Weights[s] = st.weights[m.PreIDs[s]*st.n+m.PostIDs[s]]
		}
	}

	m.Pending = st.ring.export()
}

// Ticks reports how many ticks this state has consumed since setup.
func (st *State) Ticks() int { return st.tick }
