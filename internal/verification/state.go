package verification

// transitions lists the legal moves of the verification lifecycle.
// Self-moves on SUBMITTED and PENDING_CHARGES allow re-recording documents or trip data.
var transitions = map[Status][]Status{
	StatusNotRequired:    {StatusSubmitted, StatusPendingCharges},
	StatusSubmitted:      {StatusSubmitted, StatusPendingCharges, StatusApproved, StatusRejected, StatusCompleted},
	StatusPendingCharges: {StatusPendingCharges, StatusApproved, StatusRejected, StatusCompleted},
}

// Terminal reports whether no transition leaves s
func (s Status) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

// Pending reports whether s is waiting on an operator
func (s Status) Pending() bool {
	return s == StatusSubmitted || s == StatusPendingCharges
}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusNotRequired, StatusSubmitted, StatusPendingCharges, StatusApproved, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

// CanTransition reports whether from may move to to
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ModeFor returns what a booking in status s waits on
func ModeFor(s Status) Mode {
	if s == StatusPendingCharges {
		return ModeCharges
	}
	return ModeDocuments
}

// QueueStatuses maps a queue filter onto the statuses it selects. "all" returns nil.
func QueueStatuses(filter string) ([]Status, bool) {
	switch filter {
	case "", "pending":
		return []Status{StatusSubmitted, StatusPendingCharges}, true
	case "approved":
		return []Status{StatusApproved}, true
	case "rejected":
		return []Status{StatusRejected}, true
	case "completed":
		return []Status{StatusCompleted}, true
	case "all":
		return nil, true
	}
	return nil, false
}
