package domain

// ShareState tracks a screen-share negotiation between a host and a
// viewer. Idle is implicit: no record, no state.
type ShareState int

const (
	ShareOffered ShareState = iota
	ShareActive
)

func (s ShareState) String() string {
	switch s {
	case ShareOffered:
		return "offered"
	case ShareActive:
		return "active"
	}
	return "unknown"
}

// ShareSession pairs a host identity with a viewer identity. At most one
// session exists per host at a time.
type ShareSession struct {
	Host   UserID
	Viewer UserID
	State  ShareState
}
