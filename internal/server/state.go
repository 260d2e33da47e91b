package server

// State is the lifecycle state of a managed server process.
type State int

// Lifecycle states. A server starts in Stopped.
const (
	Stopped State = iota
	Starting
	Running
	Stopping
	Crashed
)

var stateNames = [...]string{
	Stopped:  "STOPPED",
	Starting: "STARTING",
	Running:  "RUNNING",
	Stopping: "STOPPING",
	Crashed:  "CRASHED",
}

// String returns the upper-case state name.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Active reports whether a process exists for this state.
func (s State) Active() bool {
	return s == Starting || s == Running || s == Stopping
}

// CanStart reports whether Start is allowed from this state.
func (s State) CanStart() bool {
	return s == Stopped || s == Crashed
}

// CanStop reports whether Stop has anything to do from this state.
func (s State) CanStop() bool {
	return s == Starting || s == Running
}
