package lifecycle

import (
	"fmt"

	"backend/internal/model"
)

// Outcome is the state a purchase request moves to when a validated
// transition is applied.
type Outcome struct {
	Status      model.PRStatus
	Designation model.Designation
}

// Validate decides whether acting may perform action on a purchase request
// currently at (status, current) and computes the resulting state. It never
// mutates anything; the lifecycle service applies the outcome.
//
// Ownership is checked first and independently of the status: only the
// office currently holding the request may act on it. Disapprove keeps the
// designation unchanged; handing a disapproved request to another office
// requires an explicit return.
func Validate(status model.PRStatus, current, acting model.Designation, action Action, dest model.Designation) (Outcome, error) {
	if acting != current {
		return Outcome{}, fmt.Errorf("%w: held by %s, acted by %s", model.ErrNotOwner, current, acting)
	}

	if _, known := fromStatuses[action]; !known {
		return Outcome{}, fmt.Errorf("%w: unknown action %q", model.ErrInvalidTransition, action)
	}
	if !actionAppliesFrom(action, status) {
		return Outcome{}, fmt.Errorf("%w: cannot %s a %s request", model.ErrInvalidTransition, action, status)
	}
	if supplyOnly[action] && acting != model.DesignationSupply {
		return Outcome{}, fmt.Errorf("%w: %s is performed by the supply office", model.ErrInvalidTransition, action)
	}

	if DestinationRequired(action) {
		if dest == "" {
			return Outcome{}, fmt.Errorf("%w: %s needs a destination", model.ErrMissingDestination, action)
		}
		if !dest.IsOfficer() {
			return Outcome{}, fmt.Errorf("%w: unknown destination %q", model.ErrInvalidTransition, dest)
		}
		if dest == current {
			return Outcome{}, fmt.Errorf("%w: destination equals current designation", model.ErrInvalidTransition)
		}
	}

	next := Outcome{Designation: current}
	switch action {
	case ActionReceive:
		next.Status = model.StatusReceived
	case ActionApprove:
		next.Status = model.StatusApproved
	case ActionDisapprove:
		next.Status = model.StatusDisapproved
	case ActionForward:
		next.Status = model.StatusForwarded
		next.Designation = dest
	case ActionReturn:
		next.Status = model.StatusReturned
		next.Designation = dest
	case ActionMarkDelivered:
		next.Status = model.StatusDelivered
	case ActionAssess:
		next.Status = model.StatusAssessed
	case ActionReportDiscrepancy:
		next.Status = model.StatusDiscrepancy
	}

	return next, nil
}
