package engine

import (
	"sync"

	"github.com/spikemat/spikemat/pkg/engine/native"
)

// parallelBackend shards each per-tick stage across worker goroutines,
// partitioned by postsynaptic neuron so no two shards write the same
// entry. It follows device semantics: the spike train is appended only
// once the run completes, and the per-tick callback observes the model
// as of setup rather than live state.
type parallelBackend struct {
	workers int
	kern    *native.Kernels
}

func newParallelBackend(workers int, kern *native.Kernels) *parallelBackend {
	if workers < 1 {
		workers = 1
	}
	return &parallelBackend{workers: workers, kern: kern}
}

func (b *parallelBackend) Name() string { return BackendParallel }

// parallelFor splits [0, n) into contiguous shards, one goroutine each,
// and waits for all of them.
func (b *parallelBackend) parallelFor(n int, fn func(lo, hi int)) {
	w := b.workers
	if w > n {
		w = n
	}
	if w <= 1 {
		fn(0, n)
		return
	}
	chunk := (n + w - 1) / w
	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			fn(lo, hi)
		}(lo, hi)
	}
	wg.Wait()
}

func (b *parallelBackend) Run(st *State, ticks int, cb TickFunc) error {
	n := st.n
	acc := make([]float64, n)
	fired := make([][]float64, 0, ticks)

	for tick := 0; tick < ticks; tick++ {
		if cb != nil {
			cb(tick, ticks)
		}

		b.parallelFor(n, func(lo, hi int) {
			leakRange(st.states, st.resets, st.leaks, lo, hi)
		})

		in := st.inputFor(st.tick)
		pend := st.ring.current()
		b.parallelFor(n, func(lo, hi int) {
			for j := lo; j < hi; j++ {
				acc[j] = 0
			}
			integrateRange(acc, st.weights, st.spikes, n, lo, hi)
			for j := lo; j < hi; j++ {
				st.states[j] += acc[j]
			}
			if in != nil {
				for j := lo; j < hi; j++ {
					st.states[j] += in[j]
				}
			}
			for j := lo; j < hi; j++ {
				st.states[j] += pend[j]
			}
		})

		spk := make([]float64, n)
		b.parallelFor(n, func(lo, hi int) {
			fireRange(spk, st.states, st.thresholds, st.resets, st.refrac, st.refracOrig, lo, hi)
		})

		// Delay scheduling and history rotation stay single-threaded;
		// the ring slots are shared across postsynaptic shards.
		fired = append(fired, spk)
		st.finishTick(spk)

		if st.doSTDP {
			b.stdp(st)
		}
	}

	for _, spk := range fired {
		st.appendTrain(spk)
	}
	return nil
}

// stdp applies the post-tick weight update sharded by presynaptic row.
// For a lag where the presynaptic neuron stayed silent the whole row
// takes the uniform depression term, which the native axpy kernel
// handles in one call when the accelerator library is loaded.
func (b *parallelBackend) stdp(st *State) {
	n := st.n
	cur := st.history[len(st.history)-1]
	for i, t := 0, st.lags(); i < t; i++ {
		prev := st.history[len(st.history)-2-i]
		var apos, aneg float64
		if st.doPos {
			apos = st.apos[i]
		}
		if st.doNeg {
			aneg = st.aneg[i]
		}
		if apos == 0 && aneg == 0 {
			continue
		}
		b.parallelFor(n, func(lo, hi int) {
			for pre := lo; pre < hi; pre++ {
				row := st.weights[pre*n : (pre+1)*n]
				mrow := st.mask[pre*n : (pre+1)*n]
				preFired := prev[pre] != 0
				if !preFired {
					if aneg == 0 {
						continue
					}
					if b.kern != nil {
						b.kern.Axpy(row, mrow, aneg, int32(n))
					} else {
						axpy(row, mrow, aneg)
					}
					continue
				}
				for post := 0; post < n; post++ {
					if cur[post] != 0 {
						row[post] += apos * mrow[post]
					} else {
						row[post] += aneg * mrow[post]
					}
				}
			}
		})
	}
}
