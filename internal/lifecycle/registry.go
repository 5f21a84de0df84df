package lifecycle

import "backend/internal/model"

// Action is a role-initiated operation on a purchase request.
type Action string

const (
	ActionReceive           Action = "receive"
	ActionApprove           Action = "approve"
	ActionDisapprove        Action = "disapprove"
	ActionForward           Action = "forward"
	ActionReturn            Action = "return"
	ActionMarkDelivered     Action = "mark_delivered"
	ActionAssess            Action = "assess"
	ActionReportDiscrepancy Action = "report_discrepancy"
)

// actionOrder fixes iteration order so AllowedActions output is stable.
var actionOrder = []Action{
	ActionReceive,
	ActionApprove,
	ActionDisapprove,
	ActionForward,
	ActionReturn,
	ActionMarkDelivered,
	ActionAssess,
	ActionReportDiscrepancy,
}

// fromStatuses is the single source of truth for which statuses each action
// applies from. The role screens historically duplicated subsets of this
// table; everything now reads it from here.
var fromStatuses = map[Action][]model.PRStatus{
	ActionReceive:           {model.StatusForwarded, model.StatusReturned},
	ActionApprove:           {model.StatusPending, model.StatusReceived, model.StatusDisapproved},
	ActionDisapprove:        {model.StatusPending, model.StatusReceived, model.StatusApproved},
	ActionForward:           {model.StatusApproved, model.StatusAssessed},
	ActionReturn:            {model.StatusDisapproved, model.StatusDiscrepancy},
	ActionMarkDelivered:     {model.StatusForwarded},
	ActionAssess:            {model.StatusDelivered, model.StatusDiscrepancy},
	ActionReportDiscrepancy: {model.StatusDelivered, model.StatusAssessed},
}

// supplyOnly marks the delivery-phase actions only the supply office
// performs.
var supplyOnly = map[Action]bool{
	ActionMarkDelivered:     true,
	ActionAssess:            true,
	ActionReportDiscrepancy: true,
}

// DestinationRequired reports whether the action hands the purchase request
// to another office and therefore needs a destination designation.
func DestinationRequired(a Action) bool {
	return a == ActionForward || a == ActionReturn
}

func actionAppliesFrom(a Action, s model.PRStatus) bool {
	for _, from := range fromStatuses[a] {
		if from == s {
			return true
		}
	}
	return false
}

// AllowedActions returns the actions a designation may take on a purchase
// request in the given status. Pure and total: unknown or non-officer
// designations and unreachable statuses yield an empty slice, never an
// error. End-user accounts get no actions at all.
func AllowedActions(d model.Designation, s model.PRStatus) []Action {
	if !d.IsOfficer() {
		return nil
	}

	var actions []Action
	for _, a := range actionOrder {
		if supplyOnly[a] && d != model.DesignationSupply {
			continue
		}
		if actionAppliesFrom(a, s) {
			actions = append(actions, a)
		}
	}
	return actions
}
