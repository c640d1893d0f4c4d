package objectstore

// State is the lifecycle position of a Client.
type State int

const (
	StateUnopened State = iota
	StateOpening
	StateMigrating
	StateMigrated
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpening:
		return "opening"
	case StateMigrating:
		return "migrating"
	case StateMigrated:
		return "migrated"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
