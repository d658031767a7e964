package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/spikemat/spikemat/pkg/core"
)

func TestSimulateRejectsBadArguments(t *testing.T) {
	m := core.NewModel()
	m.CreateNeuron(core.DefaultNeuronParams())
	d := testDispatcher()

	if err := d.Simulate(m, 0, BackendCPU, nil); !errors.Is(err, core.ErrInvalidTimeSteps) {
		t.Errorf("Zero ticks: expected ErrInvalidTimeSteps, got %v", err)
	}
	if err := d.Simulate(m, -3, BackendCPU, nil); !errors.Is(err, core.ErrInvalidTimeSteps) {
		t.Errorf("Negative ticks: expected ErrInvalidTimeSteps, got %v", err)
	}
	if err := d.Simulate(m, 5, "quantum", nil); !errors.Is(err, core.ErrUnknownBackend) {
		t.Errorf("Unknown backend: expected ErrUnknownBackend, got %v", err)
	}
	if len(m.SpikeTrain) != 0 {
		t.Error("Rejected calls must not advance the simulation")
	}
}

func TestSimulateRejectsUnavailableBackend(t *testing.T) {
	m := core.NewModel()
	m.CreateNeuron(core.DefaultNeuronParams())

	d := NewDispatcher(Capabilities{Workers: 0, SIMD: false})
	if err := d.Simulate(m, 5, BackendFused, nil); !errors.Is(err, core.ErrBackendUnavailable) {
		t.Errorf("Fused without SIMD: expected ErrBackendUnavailable, got %v", err)
	}
	if err := d.Simulate(m, 5, BackendParallel, nil); !errors.Is(err, core.ErrBackendUnavailable) {
		t.Errorf("Parallel without workers: expected ErrBackendUnavailable, got %v", err)
	}
	if err := d.Simulate(m, 5, BackendCPU, nil); err != nil {
		t.Errorf("The cpu backend is always available, got %v", err)
	}
}

func TestRecommendScoresProblemSize(t *testing.T) {
	m := core.NewModel()
	for i := 0; i < 100; i++ {
		m.CreateNeuron(core.DefaultNeuronParams())
	}

	d := NewDispatcher(Capabilities{Workers: 8, SIMD: true})

	// Score is neurons + 100 * ticks.
	if got := d.Recommend(m, 1); got != BackendCPU {
		t.Errorf("Score 200 should pick cpu, got %s", got)
	}
	if got := d.Recommend(m, 50); got != BackendFused {
		t.Errorf("Score 5100 should pick fused, got %s", got)
	}
	if got := d.Recommend(m, 200); got != BackendParallel {
		t.Errorf("Score 20100 should pick parallel, got %s", got)
	}
}

func TestRecommendRespectsCapabilities(t *testing.T) {
	m := core.NewModel()
	m.CreateNeuron(core.DefaultNeuronParams())

	d := NewDispatcher(Capabilities{Workers: 1, SIMD: false})
	if got := d.Recommend(m, 10000); got != BackendCPU {
		t.Errorf("Incapable host must fall back to cpu, got %s", got)
	}

	d = NewDispatcher(Capabilities{Workers: 1, SIMD: true})
	if got := d.Recommend(m, 10000); got != BackendFused {
		t.Errorf("Single worker with SIMD should pick fused, got %s", got)
	}
}

func TestExplicitHintWinsOverModelBackend(t *testing.T) {
	m := core.NewModel()
	m.CreateNeuron(core.DefaultNeuronParams())
	m.Backend = BackendParallel

	d := testDispatcher()
	if err := d.Simulate(m, 2, BackendCPU, nil); err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if m.LastUsedBackend != BackendCPU {
		t.Errorf("Hint should win over the model default, used %s", m.LastUsedBackend)
	}

	// Empty hint falls through to the model's backend.
	if err := d.Simulate(m, 2, "", nil); err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if m.LastUsedBackend != BackendParallel {
		t.Errorf("Empty hint should use the model backend, used %s", m.LastUsedBackend)
	}
	if d.LastUsed() != BackendParallel {
		t.Errorf("Dispatcher should report the resolved backend, got %s", d.LastUsed())
	}
}

func TestCallbackRunsOncePerTick(t *testing.T) {
	m := core.NewModel()
	m.CreateNeuron(core.DefaultNeuronParams())

	var calls []int
	cb := func(cm *core.Model, tick, total int) {
		if cm != m {
			t.Error("Callback should receive the simulated model")
		}
		if total != 4 {
			t.Errorf("Expected total 4, got %d", total)
		}
		calls = append(calls, tick)
	}

	if err := testDispatcher().Simulate(m, 4, BackendCPU, cb); err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if len(calls) != 4 {
		t.Fatalf("Expected 4 callback invocations, got %d", len(calls))
	}
	for i, tick := range calls {
		if tick != i {
			t.Errorf("Expected tick %d at call %d, got %d", i, i, tick)
		}
	}
}

// TestCallbackMutatesLiveState injects charge from the callback instead
// of the input schedule; on the cpu backend the mutation must be picked
// up by the very tick it precedes.
func TestCallbackMutatesLiveState(t *testing.T) {
	m := core.NewModel()
	n, _ := m.CreateNeuron(core.NeuronParams{Threshold: 1, Leak: 0})

	cb := func(cm *core.Model, tick, total int) {
		if tick == 2 {
			cm.States[n] = 5
		}
	}

	if err := testDispatcher().Simulate(m, 4, BackendCPU, cb); err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	want := [][]int{{0}, {0}, {1}, {0}}
	if !trainEquals(m.SpikeTrain, want) {
		t.Errorf("Spike train mismatch:\ngot  %v\nwant %v", m.SpikeTrain, want)
	}
}

func TestManualSetupRetainsState(t *testing.T) {
	m := core.NewModel()
	n, _ := m.CreateNeuron(core.NeuronParams{Leak: math.Inf(1), RefractoryPeriod: 2})
	m.ManualSetup = true
	m.AddSpike(1, n, 1)
	m.AddSpike(2, n, 3)
	m.AddSpike(3, n, 4)
	m.AddSpike(4, n, 1)

	d := testDispatcher()
	d.Setup(m)

	for i := 0; i < 5; i++ {
		if err := d.Simulate(m, 2, BackendCPU, nil); err != nil {
			t.Fatalf("Simulate failed: %v", err)
		}
	}

	// Writeback has not run: the model still holds its setup-time view.
	if len(m.InputSpikes) != 4 {
		t.Error("Input schedule must not be consumed before teardown")
	}

	d.Teardown()

	want := [][]int{{0}, {1}, {0}, {0}, {1}, {0}, {0}, {0}, {0}, {0}}
	if !trainEquals(m.SpikeTrain, want) {
		t.Errorf("Spike train mismatch:\ngot  %v\nwant %v", m.SpikeTrain, want)
	}
	if len(m.InputSpikes) != 0 {
		t.Error("Teardown should consume the covered input schedule")
	}
}
