package rabbitkit

// State is the client lifecycle: Unconnected → Connected → Consuming → Closed
type State int

const (
	StateUnconnected State = iota
	StateConnected
	StateConsuming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnected:
		return "connected"
	case StateConsuming:
		return "consuming"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}
