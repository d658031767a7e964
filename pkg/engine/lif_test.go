package engine

import (
	"math"
	"testing"

	"github.com/spikemat/spikemat/pkg/core"
)

func testDispatcher() *Dispatcher {
	return NewDispatcher(Capabilities{Workers: 4, SIMD: true})
}

func trainEquals(got [][]bool, want [][]int) bool {
	if len(got) != len(want) {
		return false
	}
	for t := range got {
		if len(got[t]) != len(want[t]) {
			return false
		}
		for i := range got[t] {
			if got[t][i] != (want[t][i] != 0) {
				return false
			}
		}
	}
	return true
}

func TestRefractoryOneNeuron(t *testing.T) {
	m := core.NewModel()
	n, err := m.CreateNeuron(core.NeuronParams{Leak: math.Inf(1), RefractoryPeriod: 2})
	if err != nil {
		t.Fatalf("CreateNeuron failed: %v", err)
	}

	m.AddSpike(1, n, 1)
	m.AddSpike(2, n, 3)
	m.AddSpike(3, n, 4)
	m.AddSpike(4, n, 1)

	if err := testDispatcher().Simulate(m, 10, BackendCPU, nil); err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	want := [][]int{{0}, {1}, {0}, {0}, {1}, {0}, {0}, {0}, {0}, {0}}
	if !trainEquals(m.SpikeTrain, want) {
		t.Errorf("Spike train mismatch:\ngot  %v\nwant %v", m.SpikeTrain, want)
	}
}

func TestStrictThreshold(t *testing.T) {
	m := core.NewModel()
	n, _ := m.CreateNeuron(core.NeuronParams{Threshold: 1, Leak: math.Inf(1)})

	// Exactly at threshold: no fire. Just above: fire.
	m.AddSpike(0, n, 1.0)
	m.AddSpike(1, n, 1.0000001)

	if err := testDispatcher().Simulate(m, 2, BackendCPU, nil); err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if m.SpikeTrain[0][n] {
		t.Error("State equal to threshold must not fire")
	}
	if !m.SpikeTrain[1][n] {
		t.Error("State above threshold must fire")
	}
}

func TestLeakClampsWithoutOvershoot(t *testing.T) {
	m := core.NewModel()
	// Leak larger than the distance to reset: one tick lands exactly on
	// the reset value, never past it.
	n, _ := m.CreateNeuron(core.NeuronParams{Threshold: 100, Leak: 5, InitialState: 3})

	if err := testDispatcher().Simulate(m, 1, BackendCPU, nil); err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if m.States[n] != 0 {
		t.Errorf("Leak should clamp at reset 0, got %v", m.States[n])
	}

	// Below reset, the leak pushes upward.
	m2 := core.NewModel()
	k, _ := m2.CreateNeuron(core.NeuronParams{Threshold: 100, Leak: 2, InitialState: -5})
	if err := testDispatcher().Simulate(m2, 1, BackendCPU, nil); err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if m2.States[k] != -3 {
		t.Errorf("Leak should move -5 to -3, got %v", m2.States[k])
	}
}

func TestInfiniteLeakPinsToReset(t *testing.T) {
	m := core.NewModel()
	n, _ := m.CreateNeuron(core.NeuronParams{Threshold: 100, Leak: math.Inf(1), ResetState: -2, InitialState: 7})

	if err := testDispatcher().Simulate(m, 1, BackendCPU, nil); err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if m.States[n] != -2 {
		t.Errorf("Infinite leak should pin the state to its reset -2, got %v", m.States[n])
	}
}

func TestZeroLeakHoldsState(t *testing.T) {
	m := core.NewModel()
	n, _ := m.CreateNeuron(core.NeuronParams{Threshold: 100, Leak: 0, InitialState: 3})

	if err := testDispatcher().Simulate(m, 3, BackendCPU, nil); err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if m.States[n] != 3 {
		t.Errorf("Zero leak should hold the state, got %v", m.States[n])
	}
}

func TestNegativeInputDoesNotFire(t *testing.T) {
	m := core.NewModel()
	n, _ := m.CreateNeuron(core.NeuronParams{Leak: math.Inf(1)})
	m.AddSpike(0, n, -1)

	if err := testDispatcher().Simulate(m, 1, BackendCPU, nil); err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if m.SpikeTrain[0][n] {
		t.Error("Negative input must not cross a zero threshold")
	}
}

func TestInputOverwriteLastWins(t *testing.T) {
	m := core.NewModel()
	n, _ := m.CreateNeuron(core.NeuronParams{Threshold: 5, Leak: math.Inf(1)})

	// Same tick and neuron scheduled twice: the later call replaces the
	// earlier amplitude instead of adding to it.
	m.AddSpike(0, n, 10)
	m.AddSpike(0, n, 1)

	if err := testDispatcher().Simulate(m, 1, BackendCPU, nil); err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if m.SpikeTrain[0][n] {
		t.Error("Overwritten amplitude 1 must not cross threshold 5")
	}
}
