package core

import "errors"

var (
	// Construction errors. The model is left unchanged when one of these
	// is returned.
	ErrInvalidLeak       = errors.New("leak must be greater than or equal to zero")
	ErrInvalidRefractory = errors.New("refractory period must be greater than or equal to zero")
	ErrInvalidDelay      = errors.New("delay must be greater than or equal to 1")
	ErrInvalidSpikeTime  = errors.New("spike time must be greater than or equal to zero")
	ErrNeuronNotFound    = errors.New("neuron id is out of range")

	// Configuration errors, reported at setup time rather than mid-run.
	ErrSTDPEmptyWindow    = errors.New("stdp window must contain at least one time step")
	ErrSTDPWindowMismatch = errors.New("stdp positive and negative windows must have the same length")
	ErrSTDPNoSynapses     = errors.New("stdp is not enabled on any synapse")

	// Backend errors, rejected before any tick executes.
	ErrUnknownBackend     = errors.New("unknown backend")
	ErrBackendUnavailable = errors.New("backend is not available on this host")
	ErrInvalidTimeSteps   = errors.New("time steps must be greater than zero")
)
