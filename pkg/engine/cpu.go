package engine

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// cpuBackend is the reference executor, built on gonum dense types. It
// is always available; the other backends must reproduce its boolean
// spike train exactly and its learned weights within floating tolerance.
type cpuBackend struct{}

func (cpuBackend) Name() string { return BackendCPU }

func (cpuBackend) Run(st *State, ticks int, cb TickFunc) error {
	if st.n == 0 {
		// gonum rejects zero-sized dense types; an empty model still
		// advances time and logs empty train rows.
		for tick := 0; tick < ticks; tick++ {
			st.invokeCallback(cb, tick, ticks)
			spk := []float64{}
			st.appendTrain(spk)
			st.finishTick(spk)
		}
		return nil
	}

	// The Dense view shares the state's backing slice, so STDP updates
	// through it land directly in st.weights.
	w := mat.NewDense(st.n, st.n, st.weights)
	var maskM *mat.Dense
	if st.doSTDP {
		maskM = mat.NewDense(st.n, st.n, st.mask)
	}

	acc := mat.NewVecDense(st.n, nil)
	var co, upd mat.Dense

	for tick := 0; tick < ticks; tick++ {
		st.invokeCallback(cb, tick, ticks)

		leakRange(st.states, st.resets, st.leaks, 0, st.n)

		// Integrate the previous tick's spikes through the weight
		// matrix, then external input and matured delayed drive.
		acc.MulVec(w.T(), mat.NewVecDense(st.n, st.spikes))
		floats.Add(st.states, acc.RawVector().Data)
		if in := st.inputFor(st.tick); in != nil {
			floats.Add(st.states, in)
		}
		floats.Add(st.states, st.ring.current())

		spk := make([]float64, st.n)
		fireRange(spk, st.states, st.thresholds, st.resets, st.refrac, st.refracOrig, 0, st.n)

		st.appendTrain(spk)
		st.finishTick(spk)

		if !st.doSTDP {
			continue
		}
		cur := st.history[len(st.history)-1]
		for i, t := 0, st.lags(); i < t; i++ {
			prev := st.history[len(st.history)-2-i]
			co.Outer(1, mat.NewVecDense(st.n, prev), mat.NewVecDense(st.n, cur))
			if st.doPos && st.apos[i] != 0 {
				upd.MulElem(&co, maskM)
				upd.Scale(st.apos[i], &upd)
				w.Add(w, &upd)
			}
			if st.doNeg && st.aneg[i] != 0 {
				upd.Apply(func(_, _ int, v float64) float64 { return 1 - v }, &co)
				upd.MulElem(&upd, maskM)
				upd.Scale(st.aneg[i], &upd)
				w.Add(w, &upd)
			}
		}
	}
	return nil
}
