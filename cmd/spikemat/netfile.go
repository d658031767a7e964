package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spikemat/spikemat/pkg/core"
)

// NetworkFile is the YAML description of a network: neuron groups,
// synapses, scheduled input spikes and the optional STDP configuration.
//
//	neurons:
//	  - count: 2
//	    threshold: 0.0
//	    leak: .inf
//	    refractory: 2
//	synapses:
//	  - pre: 0
//	    post: 1
//	    weight: 1.0
//	    delay: 2
//	    stdp: true
//	spikes:
//	  - tick: 0
//	    neuron: 0
//	    value: 1.0
//	stdp:
//	  apos: [1.0, 0.5]
//	  aneg: [-0.1, -0.05]
type NetworkFile struct {
	Neurons  []NeuronSpec  `yaml:"neurons"`
	Synapses []SynapseSpec `yaml:"synapses"`
	Spikes   []SpikeSpec   `yaml:"spikes"`
	STDP     *STDPSpec     `yaml:"stdp"`
	Backend  string        `yaml:"backend"`
	Manual   bool          `yaml:"manualSetup"`
}

// NeuronSpec describes one group of identical neurons. Absent fields
// take the model defaults (threshold 0, infinite leak, reset 0).
type NeuronSpec struct {
	Count      int      `yaml:"count"`
	Threshold  *float64 `yaml:"threshold"`
	Leak       *float64 `yaml:"leak"`
	ResetState *float64 `yaml:"resetState"`
	Refractory *int     `yaml:"refractory"`
	State      *float64 `yaml:"state"`
}

// SynapseSpec describes one synapse by group-flattened neuron index.
type SynapseSpec struct {
	Pre     int      `yaml:"pre"`
	Post    int      `yaml:"post"`
	Weight  *float64 `yaml:"weight"`
	Delay   *int     `yaml:"delay"`
	STDP    bool     `yaml:"stdp"`
	Chained bool     `yaml:"chained"`
}

// SpikeSpec schedules one external input spike.
type SpikeSpec struct {
	Tick   int      `yaml:"tick"`
	Neuron int      `yaml:"neuron"`
	Value  *float64 `yaml:"value"`
}

// STDPSpec configures learning. Positive and negative default to on;
// set them to false explicitly to disable one side.
type STDPSpec struct {
	Apos     []float64 `yaml:"apos"`
	Aneg     []float64 `yaml:"aneg"`
	Positive *bool     `yaml:"positive"`
	Negative *bool     `yaml:"negative"`
}

// LoadNetworkFile reads a YAML network description and builds the model.
func LoadNetworkFile(path string) (*core.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read network file %s: %w", path, err)
	}
	var nf NetworkFile
	if err := yaml.Unmarshal(data, &nf); err != nil {
		return nil, fmt.Errorf("parse network file %s: %w", path, err)
	}
	m, err := nf.Build()
	if err != nil {
		return nil, fmt.Errorf("network file %s: %w", path, err)
	}
	return m, nil
}

// Build constructs a model from the description.
func (nf *NetworkFile) Build() (*core.Model, error) {
	m := core.NewModel()
	if nf.Backend != "" {
		m.Backend = nf.Backend
	}
	m.ManualSetup = nf.Manual

	for gi, g := range nf.Neurons {
		count := g.Count
		if count == 0 {
			count = 1
		}
		p := core.DefaultNeuronParams()
		if g.Threshold != nil {
			p.Threshold = *g.Threshold
		}
		if g.Leak != nil {
			p.Leak = *g.Leak
		}
		if g.ResetState != nil {
			p.ResetState = *g.ResetState
		}
		if g.Refractory != nil {
			p.RefractoryPeriod = *g.Refractory
		}
		if g.State != nil {
			p.InitialState = *g.State
		}
		for i := 0; i < count; i++ {
			if _, err := m.CreateNeuron(p); err != nil {
				return nil, fmt.Errorf("neuron group %d: %w", gi, err)
			}
		}
	}

	for si, s := range nf.Synapses {
		p := core.DefaultSynapseParams()
		if s.Weight != nil {
			p.Weight = *s.Weight
		}
		if s.Delay != nil {
			p.Delay = *s.Delay
		}
		p.STDPEnabled = s.STDP
		p.Chained = s.Chained
		if _, err := m.CreateSynapse(s.Pre, s.Post, p); err != nil {
			return nil, fmt.Errorf("synapse %d (%d -> %d): %w", si, s.Pre, s.Post, err)
		}
	}

	for si, s := range nf.Spikes {
		value := 1.0
		if s.Value != nil {
			value = *s.Value
		}
		if err := m.AddSpike(s.Tick, s.Neuron, value); err != nil {
			return nil, fmt.Errorf("spike %d: %w", si, err)
		}
	}

	if nf.STDP != nil {
		positive, negative := true, true
		if nf.STDP.Positive != nil {
			positive = *nf.STDP.Positive
		}
		if nf.STDP.Negative != nil {
			negative = *nf.STDP.Negative
		}
		if err := m.STDPSetup(nf.STDP.Apos, nf.STDP.Aneg, positive, negative); err != nil {
			return nil, err
		}
	}

	return m, nil
}
