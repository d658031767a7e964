package engine

// Backend names accepted by the dispatcher and by Model.Backend.
const (
	BackendAuto     = "auto"
	BackendCPU      = "cpu"
	BackendFused    = "fused"
	BackendParallel = "parallel"
)

// TickFunc is invoked once per tick, before that tick's update.
type TickFunc func(tick, total int)

// Backend advances a prepared simulation state by a number of ticks.
// All backends are drop-in substitutable: same inputs produce the same
// boolean spike train, and weights equal within floating tolerance.
type Backend interface {
	Name() string
	Run(st *State, ticks int, cb TickFunc) error
}
