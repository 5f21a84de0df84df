package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"backend/internal/lifecycle"
	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type CreatePRRequest struct {
	PRNumber        string `json:"pr_number" binding:"required"`
	Description     string `json:"description" binding:"required"`
	EstimatedAmount string `json:"estimated_amount"`
	// Designation is the originating office; defaults to procurement.
	Designation string `json:"current_designation"`
}

type TransitionRequest struct {
	Action      string `json:"action" binding:"required"`
	Destination string `json:"destination"`
	Notes       string `json:"notes"`
}

type PRListFilter struct {
	Status      string
	Designation string
	Search      string
	Page        int
	Limit       int
}

type PurchaseRequestResponse struct {
	ID                 string   `json:"id"`
	PRNumber           string   `json:"pr_number"`
	Description        string   `json:"description"`
	EstimatedAmount    string   `json:"estimated_amount"`
	Status             string   `json:"status"`
	CurrentDesignation string   `json:"current_designation"`
	AllowedActions     []string `json:"allowed_actions"`
	CreatedAt          string   `json:"created_at"`
	UpdatedAt          string   `json:"updated_at"`
}

// --- Interface ---

// LifecycleService is the only component that mutates purchase-request
// state. Every accepted transition updates the request and appends exactly
// one tracking entry in a single transaction, then notifies realtime
// subscribers.
type LifecycleService interface {
	CreatePurchaseRequest(ctx context.Context, actorRole string, req CreatePRRequest) (PurchaseRequestResponse, error)
	ApplyTransition(ctx context.Context, prID string, actingRole string, req TransitionRequest) (PurchaseRequestResponse, error)
	GetPurchaseRequest(ctx context.Context, prID string) (PurchaseRequestResponse, error)
	ListPurchaseRequests(ctx context.Context, filter PRListFilter) ([]PurchaseRequestResponse, int64, error)
}

// Broadcaster fans a committed change event out to realtime subscribers.
// Delivery is best-effort; the lifecycle never depends on it succeeding.
type Broadcaster interface {
	BroadcastEvent(payload []byte)
}

type lifecycleService struct {
	prRepo       repository.PurchaseRequestRepository
	trackingRepo repository.TrackingRepository
	txManager    repository.TransactionManager
	hub          Broadcaster
}

func NewLifecycleService(
	prRepo repository.PurchaseRequestRepository,
	trackingRepo repository.TrackingRepository,
	txManager repository.TransactionManager,
	hub Broadcaster,
) LifecycleService {
	return &lifecycleService{
		prRepo:       prRepo,
		trackingRepo: trackingRepo,
		txManager:    txManager,
		hub:          hub,
	}
}

// --- Implementation ---

func (s *lifecycleService) CreatePurchaseRequest(ctx context.Context, actorRole string, req CreatePRRequest) (PurchaseRequestResponse, error) {
	if !model.ValidPRNumber(req.PRNumber) {
		return PurchaseRequestResponse{}, fmt.Errorf("%w: got %q", model.ErrInvalidPRNumber, req.PRNumber)
	}

	amount := decimal.Zero
	if req.EstimatedAmount != "" {
		parsed, err := decimal.NewFromString(req.EstimatedAmount)
		if err != nil {
			return PurchaseRequestResponse{}, fmt.Errorf("invalid estimated_amount: %w", err)
		}
		amount = parsed
	}

	// Originating office: explicit payload wins, then the creator's own
	// office, then procurement (end-user submissions land at procurement).
	designation := model.Designation(req.Designation)
	if !designation.IsOfficer() {
		designation = model.Designation(actorRole)
	}
	if !designation.IsOfficer() {
		designation = model.DesignationProcurement
	}

	actor := model.Designation(actorRole)
	if !actor.IsAccountType() {
		actor = designation
	}

	pr := model.PurchaseRequest{
		PRNumber:           req.PRNumber,
		Description:        req.Description,
		EstimatedAmount:    amount,
		Status:             model.StatusPending,
		CurrentDesignation: designation,
		Version:            1,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, findErr := s.prRepo.FindByNumber(txCtx, req.PRNumber); findErr == nil {
			return fmt.Errorf("%w: %s", model.ErrDuplicatePRNumber, req.PRNumber)
		}

		if createErr := s.prRepo.Create(txCtx, &pr); createErr != nil {
			return fmt.Errorf("failed to create purchase request: %w", createErr)
		}

		entry := model.TrackingEntry{
			PRID:        pr.ID,
			Status:      model.StatusPending,
			Designation: designation,
			ActorRole:   actor,
			Notes:       "Initial creation",
		}
		if appendErr := s.trackingRepo.Append(txCtx, &entry); appendErr != nil {
			return fmt.Errorf("failed to append tracking entry: %w", appendErr)
		}

		return nil
	})
	if err != nil {
		return PurchaseRequestResponse{}, err
	}

	return toPRResponse(&pr), nil
}

func (s *lifecycleService) ApplyTransition(ctx context.Context, prID string, actingRole string, req TransitionRequest) (PurchaseRequestResponse, error) {
	id, err := uuid.Parse(prID)
	if err != nil {
		return PurchaseRequestResponse{}, fmt.Errorf("%w: invalid id %q", model.ErrPRNotFound, prID)
	}

	acting := model.Designation(actingRole)
	action := lifecycle.Action(req.Action)
	dest := model.Designation(req.Destination)

	var updated *model.PurchaseRequest
	var entry *model.TrackingEntry

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		pr, findErr := s.prRepo.FindByID(txCtx, id)
		if findErr != nil {
			return findErr
		}

		outcome, validateErr := lifecycle.Validate(pr.Status, pr.CurrentDesignation, acting, action, dest)
		if validateErr != nil {
			return validateErr
		}

		if updateErr := s.prRepo.UpdateState(txCtx, pr.ID, pr.Version, outcome.Status, outcome.Designation); updateErr != nil {
			return updateErr
		}

		notes := req.Notes
		if notes == "" {
			notes = defaultNotes(action, outcome)
		}

		e := model.TrackingEntry{
			PRID:        pr.ID,
			Status:      outcome.Status,
			Designation: outcome.Designation,
			ActorRole:   acting,
			Notes:       notes,
		}
		if appendErr := s.trackingRepo.Append(txCtx, &e); appendErr != nil {
			return fmt.Errorf("failed to append tracking entry: %w", appendErr)
		}

		pr.Status = outcome.Status
		pr.CurrentDesignation = outcome.Designation
		pr.Version++
		pr.UpdatedAt = time.Now()
		updated = pr
		entry = &e
		return nil
	})
	if err != nil {
		return PurchaseRequestResponse{}, err
	}

	s.broadcast(updated, entry)

	return toPRResponse(updated), nil
}

func (s *lifecycleService) GetPurchaseRequest(ctx context.Context, prID string) (PurchaseRequestResponse, error) {
	id, err := uuid.Parse(prID)
	if err != nil {
		return PurchaseRequestResponse{}, fmt.Errorf("%w: invalid id %q", model.ErrPRNotFound, prID)
	}

	pr, err := s.prRepo.FindByID(ctx, id)
	if err != nil {
		return PurchaseRequestResponse{}, err
	}

	return toPRResponse(pr), nil
}

func (s *lifecycleService) ListPurchaseRequests(ctx context.Context, filter PRListFilter) ([]PurchaseRequestResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	prs, total, err := s.prRepo.List(ctx, repository.PRFilter{
		Status:      filter.Status,
		Designation: filter.Designation,
		Search:      filter.Search,
		Page:        filter.Page,
		Limit:       filter.Limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list purchase requests: %w", err)
	}

	result := make([]PurchaseRequestResponse, 0, len(prs))
	for i := range prs {
		result = append(result, toPRResponse(&prs[i]))
	}

	return result, total, nil
}

// broadcast pushes the change event to the websocket hub. Failures here are
// logged and ignored; the transition is already committed.
func (s *lifecycleService) broadcast(pr *model.PurchaseRequest, entry *model.TrackingEntry) {
	if s.hub == nil {
		return
	}

	payload, err := json.Marshal(model.TransitionEvent{
		PRID:           pr.ID,
		PRNumber:       pr.PRNumber,
		NewStatus:      pr.Status,
		NewDesignation: pr.CurrentDesignation,
		TrailEntryID:   entry.ID,
	})
	if err != nil {
		log.Printf("failed to marshal transition event for %s: %v", pr.PRNumber, err)
		return
	}

	s.hub.BroadcastEvent(payload)
}

// defaultNotes composes the trail narrative when the caller leaves the notes
// field empty, in the phrasing the tracking dialogs use.
func defaultNotes(action lifecycle.Action, outcome lifecycle.Outcome) string {
	switch action {
	case lifecycle.ActionReceive:
		return fmt.Sprintf("Purchase request received by %s", outcome.Designation)
	case lifecycle.ActionApprove:
		return fmt.Sprintf("Purchase request approved by %s", outcome.Designation)
	case lifecycle.ActionDisapprove:
		return fmt.Sprintf("Purchase request disapproved by %s", outcome.Designation)
	case lifecycle.ActionForward:
		return fmt.Sprintf("Purchase request forwarded to %s", outcome.Designation)
	case lifecycle.ActionReturn:
		return fmt.Sprintf("Purchase request returned to %s", outcome.Designation)
	case lifecycle.ActionMarkDelivered:
		return fmt.Sprintf("Purchase request delivered to %s", outcome.Designation)
	case lifecycle.ActionAssess:
		return "Purchase request assessed"
	case lifecycle.ActionReportDiscrepancy:
		return "Discrepancy reported on delivered items"
	default:
		return string(action)
	}
}

// --- Helpers ---

func toPRResponse(pr *model.PurchaseRequest) PurchaseRequestResponse {
	allowed := lifecycle.AllowedActions(pr.CurrentDesignation, pr.Status)
	actions := make([]string, 0, len(allowed))
	for _, a := range allowed {
		actions = append(actions, string(a))
	}

	return PurchaseRequestResponse{
		ID:                 pr.ID.String(),
		PRNumber:           pr.PRNumber,
		Description:        pr.Description,
		EstimatedAmount:    pr.EstimatedAmount.StringFixed(2),
		Status:             string(pr.Status),
		CurrentDesignation: string(pr.CurrentDesignation),
		AllowedActions:     actions,
		CreatedAt:          pr.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          pr.UpdatedAt.Format(time.RFC3339),
	}
}
