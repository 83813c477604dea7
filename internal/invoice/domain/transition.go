package domain

import "strings"

// TransitionPolicy decides whether an invoice may move between statuses.
type TransitionPolicy interface {
	Allow(from, to Status) error
}

// PermissiveTransitionPolicy allows any change within the closed status set.
type PermissiveTransitionPolicy struct{}

func (PermissiveTransitionPolicy) Allow(from, to Status) error {
	if !to.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// StrictTransitionPolicy follows the usual billing lifecycle. Paid and
// cancelled invoices are terminal.
type StrictTransitionPolicy struct{}

var strictTransitions = map[Status][]Status{
	StatusDraft:   {StatusSent, StatusCancelled},
	StatusSent:    {StatusPaid, StatusOverdue, StatusCancelled},
	StatusOverdue: {StatusPaid, StatusCancelled},
}

func (StrictTransitionPolicy) Allow(from, to Status) error {
	if !to.Valid() {
		return ErrInvalidStatus
	}
	if from == to {
		return nil
	}
	for _, next := range strictTransitions[from] {
		if next == to {
			return nil
		}
	}
	return ErrTransitionNotAllowed
}

// TransitionPolicyFor maps a configured policy name to its implementation.
// Unknown names fall back to the permissive policy.
func TransitionPolicyFor(name string) TransitionPolicy {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "strict":
		return StrictTransitionPolicy{}
	default:
		return PermissiveTransitionPolicy{}
	}
}
