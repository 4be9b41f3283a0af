package zone

import "fmt"

// DraftStatus is the lifecycle state of a staged draft.
type DraftStatus string

const (
	StatusParsed     DraftStatus = "parsed"
	StatusReviewed   DraftStatus = "reviewed"
	StatusSubmitting DraftStatus = "submitting"
	StatusSubmitted  DraftStatus = "submitted"
)

// validTransitions defines the draft state machine. A failed submission goes
// from submitting back to parsed so the operator can edit or retry.
var validTransitions = map[DraftStatus][]DraftStatus{
	StatusParsed:     {StatusReviewed, StatusSubmitting},
	StatusReviewed:   {StatusReviewed, StatusSubmitting},
	StatusSubmitting: {StatusSubmitted, StatusParsed},
	StatusSubmitted:  {},
}

// IsValid returns true if the status is a recognized draft status.
func (s DraftStatus) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s DraftStatus) CanTransitionTo(target DraftStatus) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s DraftStatus) IsTerminal() bool {
	allowed, exists := validTransitions[s]
	return !exists || len(allowed) == 0
}

// String returns the string representation of the status.
func (s DraftStatus) String() string {
	return string(s)
}

// ParseDraftStatus converts a string to a DraftStatus, returning an error if invalid.
func ParseDraftStatus(s string) (DraftStatus, error) {
	status := DraftStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid draft status: %s", s)
	}
	return status, nil
}
