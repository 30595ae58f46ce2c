package session

// transitions lists the legal forward edges of the session state machine.
// StatusError is reachable from any non-terminal state and is handled in
// CanTransition directly.
var transitions = map[Status][]Status{
	StatusCreated:          {StatusInputReady},
	StatusInputReady:       {StatusTranscribing},
	StatusTranscribing:     {StatusHighlighting},
	StatusHighlighting:     {StatusAwaitingApproval},
	StatusAwaitingApproval: {StatusApproved, StatusTranscribing, StatusHighlighting},
	StatusApproved:         {StatusRendering},
	StatusRendering:        {StatusComplete, StatusAwaitingApproval},
	StatusError:            {StatusTranscribing, StatusHighlighting, StatusAwaitingApproval},
}

func (s Status) Terminal() bool {
	return s == StatusComplete
}

// CanTransition reports whether the state machine permits moving from one
// status to another. Rendering failure routes back to awaiting_approval so
// approvals survive; error routes back into the pipeline for retry.
func CanTransition(from, to Status) bool {
	if to == StatusError {
		return !from.Terminal()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ActiveIndexes returns the highlight indices not tombstoned by removal.
func (s *Session) ActiveIndexes() []int {
	active := make([]int, 0, len(s.Highlights))
	for i := range s.Highlights {
		if !ContainsIndex(s.RemovedIndexes, i) {
			active = append(active, i)
		}
	}
	return active
}

// ReadyForRender is the approval gate: every active highlight approved and at
// least one active highlight present. It is computed from current state on
// every call, never stored.
func (s *Session) ReadyForRender() bool {
	active := s.ActiveIndexes()
	if len(active) == 0 {
		return false
	}
	for _, i := range active {
		if !ContainsIndex(s.ApprovedIndexes, i) {
			return false
		}
	}
	return true
}
