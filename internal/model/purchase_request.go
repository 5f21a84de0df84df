package model

import (
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PRStatus is the lifecycle state of a purchase request.
type PRStatus string

const (
	StatusPending     PRStatus = "pending"
	StatusForwarded   PRStatus = "forwarded"
	StatusReceived    PRStatus = "received"
	StatusApproved    PRStatus = "approved"
	StatusDisapproved PRStatus = "disapproved"
	StatusReturned    PRStatus = "returned"
	StatusDelivered   PRStatus = "delivered"
	StatusAssessed    PRStatus = "assessed"
	StatusDiscrepancy PRStatus = "discrepancy"
)

// Designation identifies the office currently responsible for a purchase
// request, or the account type of a user. EndUser accounts can create and
// view requests but never hold or transition them.
type Designation string

const (
	DesignationProcurement Designation = "procurement"
	DesignationAdmin       Designation = "admin"
	DesignationBudget      Designation = "budget"
	DesignationDirector    Designation = "director"
	DesignationBAC         Designation = "bac"
	DesignationSupply      Designation = "supply"
	DesignationEndUser     Designation = "end-user"
)

// OfficerDesignations are the offices that can hold and act on a purchase
// request. Order matters for stable API output.
var OfficerDesignations = []Designation{
	DesignationProcurement,
	DesignationAdmin,
	DesignationBudget,
	DesignationDirector,
	DesignationBAC,
	DesignationSupply,
}

// IsOfficer reports whether d is an office that can hold a purchase request.
func (d Designation) IsOfficer() bool {
	for _, o := range OfficerDesignations {
		if d == o {
			return true
		}
	}
	return false
}

// IsAccountType reports whether d is a valid user account type.
func (d Designation) IsAccountType() bool {
	return d == DesignationEndUser || d.IsOfficer()
}

// prNumberPattern enforces the PR-YYYY-MM-XXXX reference format.
var prNumberPattern = regexp.MustCompile(`^PR-\d{4}-(0[1-9]|1[0-2])-\d{4}$`)

// ValidPRNumber reports whether n matches the PR-YYYY-MM-XXXX format.
func ValidPRNumber(n string) bool {
	return prNumberPattern.MatchString(n)
}

// PurchaseRequest is the core tracked entity. Status and CurrentDesignation
// are a projection of the most recent TrackingEntry; all mutation goes
// through the lifecycle service so the two never drift apart. Version backs
// the optimistic concurrency check on state updates.
type PurchaseRequest struct {
	ID                 uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PRNumber           string          `gorm:"column:pr_number;type:varchar(20);uniqueIndex;not null" json:"pr_number"`
	Description        string          `gorm:"type:text;not null" json:"description"`
	EstimatedAmount    decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"estimated_amount"`
	Status             PRStatus        `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CurrentDesignation Designation     `gorm:"type:varchar(20);not null;index" json:"current_designation"`
	Version            int64           `gorm:"not null;default:1" json:"-"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName keeps the table name aligned with the tracking side.
func (PurchaseRequest) TableName() string { return "purchase_requests" }

// TrackingEntry is one record of the append-only trail. Status and
// Designation are the values the purchase request transitioned to;
// ActorRole is the designation that performed the transition. Entries are
// never updated or deleted after insert.
type TrackingEntry struct {
	ID              uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PRID            uuid.UUID        `gorm:"column:pr_id;type:uuid;not null;index" json:"pr_id"`
	PurchaseRequest *PurchaseRequest `gorm:"foreignKey:PRID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Status          PRStatus         `gorm:"type:varchar(20);not null" json:"status"`
	Designation     Designation      `gorm:"type:varchar(20);not null" json:"designation"`
	ActorRole       Designation      `gorm:"type:varchar(20);not null" json:"actor_role"`
	Notes           string           `gorm:"type:text" json:"notes"`
	CreatedAt       time.Time        `gorm:"autoCreateTime;index" json:"created_at"`
}

func (TrackingEntry) TableName() string { return "tracking_history" }

// TransitionEvent is the change notification broadcast to realtime
// subscribers after a committed transition.
type TransitionEvent struct {
	PRID           uuid.UUID   `json:"pr_id"`
	PRNumber       string      `json:"pr_number"`
	NewStatus      PRStatus    `json:"new_status"`
	NewDesignation Designation `json:"new_designation"`
	TrailEntryID   uuid.UUID   `json:"trail_entry_id"`
}
