package engine

// fusedBackend runs the per-tick update as tight fused loops over flat
// slices, skipping silent presynaptic neurons and zero kernel entries.
// Selected for mid-sized workloads when the host reports vector units;
// the loop shapes below are the ones the compiler vectorizes well.
type fusedBackend struct{}

func (fusedBackend) Name() string { return BackendFused }

func (fusedBackend) Run(st *State, ticks int, cb TickFunc) error {
	n := st.n
	acc := make([]float64, n)
	for tick := 0; tick < ticks; tick++ {
		st.invokeCallback(cb, tick, ticks)

		leakRange(st.states, st.resets, st.leaks, 0, n)

		// Integrate as a row walk over the neurons that fired last
		// tick; silent rows contribute nothing. The drive accumulates
		// into a scratch vector and lands on the states in one pass.
		for j := range acc {
			acc[j] = 0
		}
		for pre, v := range st.spikes {
			if v == 0 {
				continue
			}
			axpy(acc, st.weights[pre*n:(pre+1)*n], v)
		}
		vadd(st.states, acc)
		if in := st.inputFor(st.tick); in != nil {
			vadd(st.states, in)
		}
		vadd(st.states, st.ring.current())

		spk := make([]float64, n)
		fireRange(spk, st.states, st.thresholds, st.resets, st.refrac, st.refracOrig, 0, n)

		st.appendTrain(spk)
		st.finishTick(spk)

		if st.doSTDP {
			fusedSTDP(st)
		}
	}
	return nil
}

// fusedSTDP applies the post-tick weight update. The potentiation term
// only touches (fired-then, fired-now) pairs, so it iterates the two
// sparse fired sets; the depression term is dense over the learnable
// entries minus those same pairs.
func fusedSTDP(st *State) {
	n := st.n
	cur := st.history[len(st.history)-1]
	for i, t := 0, st.lags(); i < t; i++ {
		prev := st.history[len(st.history)-2-i]

		if st.doPos && st.apos[i] != 0 {
			a := st.apos[i]
			for pre := 0; pre < n; pre++ {
				if prev[pre] == 0 {
					continue
				}
				row := st.weights[pre*n : (pre+1)*n]
				mrow := st.mask[pre*n : (pre+1)*n]
				for post := 0; post < n; post++ {
					if cur[post] != 0 {
						row[post] += a * mrow[post]
					}
				}
			}
		}

		if st.doNeg && st.aneg[i] != 0 {
			a := st.aneg[i]
			for pre := 0; pre < n; pre++ {
				coincident := prev[pre] != 0
				row := st.weights[pre*n : (pre+1)*n]
				mrow := st.mask[pre*n : (pre+1)*n]
				for post := 0; post < n; post++ {
					if coincident && cur[post] != 0 {
						continue
					}
					row[post] += a * mrow[post]
				}
			}
		}
	}
}
