package cli

const (
	phaseConfig   = "config"
	phaseIngest   = "ingest"
	phaseReplay   = "replay"
	phaseShutdown = "shutdown"
)

// PhaseError is a fatal error annotated with the run phase and the action
// that failed. It renders as "<phase>: <action>: <cause>".
type PhaseError struct {
	Phase  string
	Action string
	Err    error
}

func (e *PhaseError) Error() string {
	return e.Phase + ": " + e.Action + ": " + e.Err.Error()
}

func (e *PhaseError) Unwrap() error { return e.Err }

func phaseErr(phase, action string, err error) error {
	return &PhaseError{Phase: phase, Action: action, Err: err}
}
