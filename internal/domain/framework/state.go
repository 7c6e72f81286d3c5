package framework

// State is a bundle lifecycle state.
type State int

const (
	Uninstalled State = iota
	Installed
	Resolved
	Starting
	Active
	Stopping
)

func (s State) String() string {
	switch s {
	case Uninstalled:
		return "UNINSTALLED"
	case Installed:
		return "INSTALLED"
	case Resolved:
		return "RESOLVED"
	case Starting:
		return "STARTING"
	case Active:
		return "ACTIVE"
	case Stopping:
		return "STOPPING"
	default:
		return "UNKNOWN"
	}
}

// States lists every state in lifecycle order.
var States = []State{Uninstalled, Installed, Resolved, Starting, Active, Stopping}
