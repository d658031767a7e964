package engine

import "math"

// Scalar kernels over half-open index ranges. The cpu and fused backends
// call them over [0, n); the parallel backend shards the range across
// its workers.

// leakRange relaxes states toward their reset values without overshoot.
// An infinite leak pins the state to its reset value.
func leakRange(states, resets, leaks []float64, lo, hi int) {
	for j := lo; j < hi; j++ {
		k := leaks[j]
		if k == 0 {
			continue
		}
		d := states[j] - resets[j]
		switch {
		case d > 0:
			states[j] = resets[j] + math.Max(0, d-k)
		case d < 0:
			states[j] = resets[j] + math.Min(0, d+k)
		}
	}
}

// integrateRange accumulates presynaptic drive into acc over the
// postsynaptic range [lo, hi). acc must be zeroed; callers add it to the
// states in one pass so every backend sums contributions in the same
// order and the trains match bit for bit.
func integrateRange(acc, weights, spikes []float64, n, lo, hi int) {
	for pre := 0; pre < n; pre++ {
		v := spikes[pre]
		if v == 0 {
			continue
		}
		row := weights[pre*n : (pre+1)*n]
		for post := lo; post < hi; post++ {
			acc[post] += row[post] * v
		}
	}
}

// fireRange runs the fire decision, refractory gate, re-arm and reset
// for [lo, hi), writing 0/1 fired values into spk.
func fireRange(spk, states, thresholds, resets []float64, refrac, periods []int, lo, hi int) {
	for j := lo; j < hi; j++ {
		if refrac[j] > 0 {
			// Suppressed even if the state cleared threshold; the
			// countdown still decrements this tick.
			refrac[j]--
			continue
		}
		if states[j] > thresholds[j] {
			spk[j] = 1
			refrac[j] = periods[j]
			states[j] = resets[j]
		}
	}
}

// axpy computes dst += alpha * x, unrolled by four.
func axpy(dst, x []float64, alpha float64) {
	n := len(dst)
	j := 0
	for ; j+4 <= n; j += 4 {
		dst[j] += alpha * x[j]
		dst[j+1] += alpha * x[j+1]
		dst[j+2] += alpha * x[j+2]
		dst[j+3] += alpha * x[j+3]
	}
	for ; j < n; j++ {
		dst[j] += alpha * x[j]
	}
}

// vadd computes dst += x.
func vadd(dst, x []float64) {
	for j := range x {
		dst[j] += x[j]
	}
}
