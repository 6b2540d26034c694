package runner

// State is the authoritative execution state of one script's lifecycle.
// Exactly one value is current at any time; it is owned by the Runner and
// mutated only through transitions.
type State string

const (
	StateInitial        State = "INITIAL"
	StateRunning        State = "RUNNING"
	StateStopRequested  State = "STOP_REQUESTED"
	StateRerunRequested State = "RERUN_REQUESTED"
	StatePauseRequested State = "PAUSE_REQUESTED"
	StatePaused         State = "PAUSED"
	StateStopped        State = "STOPPED"
)

// FullyStopped reports whether no worker is active in this state, meaning
// a new one may be spawned. All other states imply an active or
// about-to-start worker.
func (s State) FullyStopped() bool {
	return s == StateInitial || s == StateStopped
}
