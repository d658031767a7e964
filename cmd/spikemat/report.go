package main

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"
	"time"

	"github.com/spikemat/spikemat/pkg/core"
	"github.com/spikemat/spikemat/pkg/engine"
	"github.com/spikemat/spikemat/pkg/persistence"
)

// PrintModelInfo writes the neuron and synapse tables.
func PrintModelInfo(out io.Writer, m *core.Model) {
	fmt.Fprintf(out, "Neurons: %d  Synapses: %d\n", m.NumNeurons(), m.NumSynapses())

	w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATE\tTHRESHOLD\tLEAK\tRESET\tREFRACTORY")
	for i := 0; i < m.NumNeurons(); i++ {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d/%d\n",
			i,
			fnum(m.States[i]),
			fnum(m.Thresholds[i]),
			fnum(m.Leaks[i]),
			fnum(m.ResetStates[i]),
			m.RefractoryStates[i], m.RefractoryPeriods[i],
		)
	}
	w.Flush()

	if m.NumSynapses() == 0 {
		return
	}
	fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRE\tPOST\tWEIGHT\tDELAY\tSTDP")
	for s := 0; s < m.NumSynapses(); s++ {
		fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%d\t%v\n",
			s, m.PreIDs[s], m.PostIDs[s], fnum(m.Weights[s]), m.Delays[s], m.STDPEnabled[s])
	}
	w.Flush()
}

// PrintSpikeTrain writes the recorded train, one row per tick, with "|"
// marking a spike and "." a silent neuron.
func PrintSpikeTrain(out io.Writer, m *core.Model) {
	if len(m.SpikeTrain) == 0 {
		return
	}
	fmt.Fprintln(out)
	for t, row := range m.SpikeTrain {
		fmt.Fprintf(out, "t=%-4d ", t)
		for _, fired := range row {
			if fired {
				fmt.Fprint(out, "|")
			} else {
				fmt.Fprint(out, ".")
			}
		}
		fmt.Fprintln(out)
	}
}

// PrintSpikeTotals writes the per-neuron spike counts over the recorded
// train.
func PrintSpikeTotals(out io.Writer, m *core.Model) {
	totals := m.SpikeTotals()
	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NEURON\tSPIKES")
	for i, n := range totals {
		fmt.Fprintf(w, "%d\t%d\n", i, n)
	}
	w.Flush()
}

// PrintCapabilities writes the host descriptor and which backends it
// makes available.
func PrintCapabilities(out io.Writer, d *engine.Dispatcher) {
	caps := d.Capabilities()
	w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	fmt.Fprintf(w, "workers\t%d\n", caps.Workers)
	fmt.Fprintf(w, "simd\t%v\n", caps.SIMD)
	fmt.Fprintf(w, "native kernels\t%v\n", caps.NativeKernels)
	fmt.Fprintf(w, "fused threshold\t%d\n", d.FusedThreshold)
	fmt.Fprintf(w, "parallel threshold\t%d\n", d.ParallelThreshold)
	w.Flush()
}

// PrintSnapshotInfo describes a stored snapshot.
func PrintSnapshotInfo(out io.Writer, snap *persistence.Snapshot) {
	m := snap.Model
	fmt.Fprintf(out, "Snapshot %s created %s\n", snap.ID, time.Unix(snap.CreatedAt, 0).Format(time.RFC3339))
	fmt.Fprintf(out, "Neurons: %d  Synapses: %d  Train: %d ticks\n",
		m.NumNeurons(), m.NumSynapses(), len(m.SpikeTrain))
	if m.LastUsedBackend != "" {
		fmt.Fprintf(out, "Last backend: %s\n", m.LastUsedBackend)
	}
}

func fnum(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return fmt.Sprintf("%g", v)
}
