package entity

import "fmt"

type Status string

const (
	// StatusUnknown is assigned at creation, before the offer reaches
	// the group chat. It is never a valid target of a status change.
	StatusUnknown  Status = "UNKNOWN"
	StatusActive   Status = "ACTIVE"
	StatusReserved Status = "RESERVED"
	StatusRemoved  Status = "REMOVED"
	StatusClosed   Status = "CLOSED"
)

// AllStatuses lists every workflow state, in display order. Consumers
// that zero-fill aggregates iterate this instead of hardcoding keys.
var AllStatuses = []Status{StatusUnknown, StatusActive, StatusReserved, StatusRemoved, StatusClosed}

// PublicStatuses are the states an offer can hold after publication.
var PublicStatuses = []Status{StatusActive, StatusReserved, StatusRemoved, StatusClosed}

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusUnknown, StatusActive, StatusReserved, StatusRemoved, StatusClosed:
		return Status(s), nil
	}
	return "", fmt.Errorf("unrecognized status %q", s)
}

func (s Status) IsPublic() bool {
	for _, p := range PublicStatuses {
		if s == p {
			return true
		}
	}
	return false
}

// CanTransition reports whether the workflow allows moving from one
// status to another. UNKNOWN leads only to ACTIVE (the publish step);
// the four public statuses move between each other in any direction,
// including re-issuing the current one (callers log a fresh event
// either way). Nothing ever returns to UNKNOWN.
func CanTransition(from, to Status) bool {
	if !to.IsPublic() {
		return false
	}
	if from == StatusUnknown {
		return to == StatusActive
	}
	return from.IsPublic()
}
