package indents

import (
	"fmt"

	"github.com/thebenmerlin/material-management-api/internal/shared"
)

// Status is the indent lifecycle state. Values are the exact strings stored
// and returned on the wire.
type Status string

const (
	StatusPending          Status = "Pending"
	StatusPurchaseApproved Status = "Purchase Approved"
	StatusDirectorApproved Status = "Director Approved"
	StatusRejected         Status = "Rejected"
	StatusCompleted        Status = "Completed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

// Action is an approval decision.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Transition computes the next status for an approval decision. It is a pure
// function of (role, current status, action): approve walks the two-tier
// ladder (Purchase Team from Pending, Director from Purchase Approved),
// reject is open to both approver roles from any non-terminal status. Every
// other combination is a state conflict; non-approver roles are rejected
// outright.
func Transition(role shared.Role, current Status, action Action) (Status, error) {
	if role != shared.RolePurchaseTeam && role != shared.RoleDirector {
		return "", fmt.Errorf("%w: role %q cannot act on approvals", shared.ErrForbidden, role)
	}

	switch action {
	case ActionReject:
		if current.Terminal() {
			return "", fmt.Errorf("%w: indent is already %s", shared.ErrStateConflict, current)
		}
		return StatusRejected, nil
	case ActionApprove:
		switch {
		case role == shared.RolePurchaseTeam && current == StatusPending:
			return StatusPurchaseApproved, nil
		case role == shared.RoleDirector && current == StatusPurchaseApproved:
			return StatusDirectorApproved, nil
		default:
			return "", fmt.Errorf("%w: %s cannot approve an indent in status %s", shared.ErrStateConflict, role, current)
		}
	default:
		return "", shared.NewValidationError("action must be approve or reject")
	}
}
