package lifecycle

import (
	"testing"

	"backend/internal/model"

	"github.com/stretchr/testify/require"
)

func TestValidateTransitionTable(t *testing.T) {
	cases := []struct {
		name    string
		status  model.PRStatus
		holder  model.Designation
		action  Action
		dest    model.Designation
		want    Outcome
	}{
		{"approve from pending", model.StatusPending, model.DesignationProcurement, ActionApprove, "",
			Outcome{model.StatusApproved, model.DesignationProcurement}},
		{"approve from received", model.StatusReceived, model.DesignationBudget, ActionApprove, "",
			Outcome{model.StatusApproved, model.DesignationBudget}},
		{"approve from disapproved", model.StatusDisapproved, model.DesignationAdmin, ActionApprove, "",
			Outcome{model.StatusApproved, model.DesignationAdmin}},
		{"disapprove from pending", model.StatusPending, model.DesignationDirector, ActionDisapprove, "",
			Outcome{model.StatusDisapproved, model.DesignationDirector}},
		{"disapprove from approved", model.StatusApproved, model.DesignationBAC, ActionDisapprove, "",
			Outcome{model.StatusDisapproved, model.DesignationBAC}},
		{"receive forwarded", model.StatusForwarded, model.DesignationSupply, ActionReceive, "",
			Outcome{model.StatusReceived, model.DesignationSupply}},
		{"receive returned", model.StatusReturned, model.DesignationProcurement, ActionReceive, "",
			Outcome{model.StatusReceived, model.DesignationProcurement}},
		{"forward approved", model.StatusApproved, model.DesignationProcurement, ActionForward, model.DesignationSupply,
			Outcome{model.StatusForwarded, model.DesignationSupply}},
		{"forward assessed", model.StatusAssessed, model.DesignationSupply, ActionForward, model.DesignationDirector,
			Outcome{model.StatusForwarded, model.DesignationDirector}},
		{"return disapproved", model.StatusDisapproved, model.DesignationBudget, ActionReturn, model.DesignationProcurement,
			Outcome{model.StatusReturned, model.DesignationProcurement}},
		{"return discrepancy", model.StatusDiscrepancy, model.DesignationSupply, ActionReturn, model.DesignationProcurement,
			Outcome{model.StatusReturned, model.DesignationProcurement}},
		{"mark delivered", model.StatusForwarded, model.DesignationSupply, ActionMarkDelivered, "",
			Outcome{model.StatusDelivered, model.DesignationSupply}},
		{"assess delivered", model.StatusDelivered, model.DesignationSupply, ActionAssess, "",
			Outcome{model.StatusAssessed, model.DesignationSupply}},
		{"assess discrepancy", model.StatusDiscrepancy, model.DesignationSupply, ActionAssess, "",
			Outcome{model.StatusAssessed, model.DesignationSupply}},
		{"report discrepancy on delivered", model.StatusDelivered, model.DesignationSupply, ActionReportDiscrepancy, "",
			Outcome{model.StatusDiscrepancy, model.DesignationSupply}},
		{"report discrepancy on assessed", model.StatusAssessed, model.DesignationSupply, ActionReportDiscrepancy, "",
			Outcome{model.StatusDiscrepancy, model.DesignationSupply}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Validate(tc.status, tc.holder, tc.holder, tc.action, tc.dest)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestValidateOwnershipCheckedFirst(t *testing.T) {
	// admin acting on a budget-held request fails NotOwner even for an
	// action that would be perfectly legal from this status
	_, err := Validate(model.StatusPending, model.DesignationBudget, model.DesignationAdmin, ActionApprove, "")
	require.ErrorIs(t, err, model.ErrNotOwner)

	// and even for a nonsense action
	_, err = Validate(model.StatusPending, model.DesignationBudget, model.DesignationAdmin, Action("shred"), "")
	require.ErrorIs(t, err, model.ErrNotOwner)
}

func TestValidateIllegalTransitions(t *testing.T) {
	// forward requires approved or assessed
	_, err := Validate(model.StatusReceived, model.DesignationSupply, model.DesignationSupply, ActionForward, model.DesignationBudget)
	require.ErrorIs(t, err, model.ErrInvalidTransition)

	// receive only acknowledges forwarded or returned requests
	_, err = Validate(model.StatusPending, model.DesignationAdmin, model.DesignationAdmin, ActionReceive, "")
	require.ErrorIs(t, err, model.ErrInvalidTransition)

	// unknown action
	_, err = Validate(model.StatusPending, model.DesignationAdmin, model.DesignationAdmin, Action("escalate"), "")
	require.ErrorIs(t, err, model.ErrInvalidTransition)

	// delivery marking is supply's alone even if another office holds a
	// forwarded request
	_, err = Validate(model.StatusForwarded, model.DesignationBudget, model.DesignationBudget, ActionMarkDelivered, "")
	require.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestValidateDestinationRules(t *testing.T) {
	_, err := Validate(model.StatusApproved, model.DesignationProcurement, model.DesignationProcurement, ActionForward, "")
	require.ErrorIs(t, err, model.ErrMissingDestination)

	_, err = Validate(model.StatusDisapproved, model.DesignationAdmin, model.DesignationAdmin, ActionReturn, "")
	require.ErrorIs(t, err, model.ErrMissingDestination)

	// no-op forward to self
	_, err = Validate(model.StatusApproved, model.DesignationProcurement, model.DesignationProcurement, ActionForward, model.DesignationProcurement)
	require.ErrorIs(t, err, model.ErrInvalidTransition)

	// destination must be a real office
	_, err = Validate(model.StatusApproved, model.DesignationProcurement, model.DesignationProcurement, ActionForward, model.Designation("warehouse"))
	require.ErrorIs(t, err, model.ErrInvalidTransition)

	// end-user is not a valid destination either
	_, err = Validate(model.StatusApproved, model.DesignationProcurement, model.DesignationProcurement, ActionForward, model.DesignationEndUser)
	require.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestValidateDisapproveKeepsDesignation(t *testing.T) {
	// disapproval stays with the same office; handing it elsewhere takes an
	// explicit return
	got, err := Validate(model.StatusPending, model.DesignationAdmin, model.DesignationAdmin, ActionDisapprove, "")
	require.NoError(t, err)
	require.Equal(t, model.DesignationAdmin, got.Designation)

	got, err = Validate(model.StatusDisapproved, model.DesignationAdmin, model.DesignationAdmin, ActionReturn, model.DesignationProcurement)
	require.NoError(t, err)
	require.Equal(t, Outcome{model.StatusReturned, model.DesignationProcurement}, got)
}

// TestValidateWalk replays a full journey through the offices and checks
// every hop lands where the table says it should.
func TestValidateWalk(t *testing.T) {
	status := model.StatusPending
	holder := model.DesignationProcurement

	step := func(acting model.Designation, action Action, dest model.Designation) Outcome {
		t.Helper()
		out, err := Validate(status, holder, acting, action, dest)
		require.NoError(t, err)
		status, holder = out.Status, out.Designation
		return out
	}

	step(model.DesignationProcurement, ActionApprove, "")
	step(model.DesignationProcurement, ActionForward, model.DesignationSupply)
	step(model.DesignationSupply, ActionMarkDelivered, "")
	step(model.DesignationSupply, ActionReportDiscrepancy, "")
	step(model.DesignationSupply, ActionAssess, "")
	out := step(model.DesignationSupply, ActionForward, model.DesignationProcurement)

	require.Equal(t, Outcome{model.StatusForwarded, model.DesignationProcurement}, out)
}
