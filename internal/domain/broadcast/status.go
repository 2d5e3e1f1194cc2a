package broadcast

// Status is the lifecycle state of a broadcast message.
type Status string

const (
	StatusDraft            Status = "draft"
	StatusPendingApproval  Status = "pending-approval"
	StatusRejected         Status = "rejected"
	StatusBroadcasting     Status = "broadcasting"
	StatusCompleted        Status = "completed"
	StatusCancelled        Status = "cancelled"
	StatusTechnicalFailure Status = "technical-failure"
)

// allowedTransitions is the authoritative transition table. Terminal states
// have no outgoing edges.
var allowedTransitions = map[Status][]Status{
	StatusDraft:            {StatusPendingApproval},
	StatusPendingApproval:  {StatusRejected, StatusDraft, StatusBroadcasting},
	StatusRejected:         {StatusDraft, StatusPendingApproval},
	StatusBroadcasting:     {StatusCompleted, StatusCancelled},
	StatusCompleted:        {},
	StatusCancelled:        {},
	StatusTechnicalFailure: {},
}

func AllStatuses() []Status {
	return []Status{
		StatusDraft,
		StatusPendingApproval,
		StatusRejected,
		StatusBroadcasting,
		StatusCompleted,
		StatusCancelled,
		StatusTechnicalFailure,
	}
}

func (s Status) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range allowedTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// PreBroadcast reports whether the message content is still editable.
func (s Status) PreBroadcast() bool {
	return s == StatusDraft || s == StatusPendingApproval || s == StatusRejected
}

// Live reports whether the message has reached providers; content is frozen.
func (s Status) Live() bool {
	return s == StatusBroadcasting || s == StatusCompleted || s == StatusCancelled
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return len(allowedTransitions[s]) == 0 && s.Valid()
}
