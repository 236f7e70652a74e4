package ward

// Status is the lifecycle state of a ward approval request.
type Status string

const (
	StatusPendingWardSig  Status = "pending_ward_sig"
	StatusPendingGuardian Status = "pending_guardian"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusFailed          Status = "failed"
	StatusGasError        Status = "gas_error"
	StatusExpired         Status = "expired"
)

// allowedTransitions is the closed transition table. There are no transitions
// out of a terminal state.
var allowedTransitions = map[Status][]Status{
	StatusPendingWardSig: {
		StatusPendingGuardian,
		StatusApproved,
		StatusRejected,
		StatusExpired,
	},
	StatusPendingGuardian: {
		StatusApproved,
		StatusRejected,
		StatusFailed,
		StatusGasError,
		StatusExpired,
	},
}

// IsValid reports whether s is a known status value.
func (s Status) IsValid() bool {
	switch s {
	case StatusPendingWardSig, StatusPendingGuardian, StatusApproved,
		StatusRejected, StatusFailed, StatusGasError, StatusExpired:
		return true
	}
	return false
}

// IsTerminal reports whether s ends the request's lifecycle.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusFailed, StatusGasError, StatusExpired:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to target is legal.
func (s Status) CanTransition(target Status) bool {
	for _, t := range allowedTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// pendingStatuses is the default List filter when a ward or guardian is
// named without an explicit status.
var pendingStatuses = []Status{StatusPendingWardSig, StatusPendingGuardian}
