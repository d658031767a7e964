package core

// STDPSetup configures the plasticity kernels. Apos drives the positive
// (coincidence) update and Aneg the negative (anti-coincidence) update;
// index 0 is the lag of the immediately preceding tick. When both updates
// are enabled the two kernels must have the same length.
//
// The model must already contain at least one synapse with STDP enabled;
// configuring learning on a network that cannot learn is rejected here
// rather than silently ignored during simulation.
func (m *Model) STDPSetup(apos, aneg []float64, positive, negative bool) error {
	if positive && negative && len(apos) != len(aneg) {
		return ErrSTDPWindowMismatch
	}
	if (positive && len(apos) == 0) || (negative && len(aneg) == 0) {
		return ErrSTDPEmptyWindow
	}
	if !m.HasSTDPSynapse() {
		return ErrSTDPNoSynapses
	}

	m.STDP = true
	m.Apos = append([]float64(nil), apos...)
	m.Aneg = append([]float64(nil), aneg...)
	m.PositiveUpdate = positive
	m.NegativeUpdate = negative
	return nil
}

// STDPWindow returns the learning look-back window K in ticks: the kernel
// length of whichever updates are enabled, or 0 when learning is off.
func (m *Model) STDPWindow() int {
	if m.PositiveUpdate {
		return len(m.Apos)
	}
	if m.NegativeUpdate {
		return len(m.Aneg)
	}
	return 0
}

// SetApos replaces the positive kernel. When the negative update is
// enabled and the lengths now differ, the shorter kernel is padded with
// zeros so both cover the same window.
func (m *Model) SetApos(apos []float64) {
	m.Apos = append([]float64(nil), apos...)
	if m.NegativeUpdate && len(m.Apos) != len(m.Aneg) {
		m.Apos, m.Aneg = padToMatch(m.Apos, m.Aneg)
	}
}

// SetAneg replaces the negative kernel, padding as SetApos does.
func (m *Model) SetAneg(aneg []float64) {
	m.Aneg = append([]float64(nil), aneg...)
	if m.PositiveUpdate && len(m.Apos) != len(m.Aneg) {
		m.Apos, m.Aneg = padToMatch(m.Apos, m.Aneg)
	}
}

func padToMatch(a, b []float64) ([]float64, []float64) {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	return padTo(a, n), padTo(b, n)
}

func padTo(v []float64, n int) []float64 {
	if len(v) >= n {
		return v
	}
	out := make([]float64, n)
	copy(out, v)
	return out
}

// anyNonZero reports whether the vector has at least one non-zero entry.
func anyNonZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return true
		}
	}
	return false
}

// DoPositiveUpdate reports whether simulation should apply the positive
// STDP update: learning armed, update enabled, a non-trivial kernel, and
// at least one learnable synapse.
func (m *Model) DoPositiveUpdate() bool {
	return m.STDP && m.PositiveUpdate && anyNonZero(m.Apos) && m.HasSTDPSynapse()
}

// DoNegativeUpdate is the negative-update counterpart of DoPositiveUpdate.
func (m *Model) DoNegativeUpdate() bool {
	return m.STDP && m.NegativeUpdate && anyNonZero(m.Aneg) && m.HasSTDPSynapse()
}
