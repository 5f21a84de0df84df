package service

import (
	"context"
	"fmt"
	"time"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
)

type TrackingEntryResponse struct {
	ID          string `json:"id"`
	PRID        string `json:"pr_id"`
	PRNumber    string `json:"pr_number,omitempty"`
	Status      string `json:"status"`
	Designation string `json:"designation"`
	ActorRole   string `json:"actor_role"`
	Notes       string `json:"notes"`
	CreatedAt   string `json:"created_at"`
}

// TrackingService serves read-only views of the audit trail: the per-request
// walk for tracking dialogs and the cross-request feed for notifications.
type TrackingService interface {
	ListForPR(ctx context.Context, prID string) ([]TrackingEntryResponse, error)
	ListRecent(ctx context.Context, limit int) ([]TrackingEntryResponse, error)
}

type trackingService struct {
	trackingRepo repository.TrackingRepository
	prRepo       repository.PurchaseRequestRepository
}

func NewTrackingService(trackingRepo repository.TrackingRepository, prRepo repository.PurchaseRequestRepository) TrackingService {
	return &trackingService{trackingRepo: trackingRepo, prRepo: prRepo}
}

// ListForPR returns the trail of one purchase request oldest first.
func (s *trackingService) ListForPR(ctx context.Context, prID string) ([]TrackingEntryResponse, error) {
	id, err := uuid.Parse(prID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid id %q", model.ErrPRNotFound, prID)
	}

	pr, err := s.prRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	entries, err := s.trackingRepo.ListForPR(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tracking history: %w", err)
	}

	result := make([]TrackingEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp := toTrackingResponse(e)
		resp.PRNumber = pr.PRNumber
		result = append(result, resp)
	}
	return result, nil
}

// ListRecent returns the newest entries across all purchase requests.
func (s *trackingService) ListRecent(ctx context.Context, limit int) ([]TrackingEntryResponse, error) {
	if limit <= 0 {
		limit = 20
	}

	entries, err := s.trackingRepo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tracking feed: %w", err)
	}

	result := make([]TrackingEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp := toTrackingResponse(e)
		if e.PurchaseRequest != nil {
			resp.PRNumber = e.PurchaseRequest.PRNumber
		}
		result = append(result, resp)
	}
	return result, nil
}

func toTrackingResponse(e model.TrackingEntry) TrackingEntryResponse {
	return TrackingEntryResponse{
		ID:          e.ID.String(),
		PRID:        e.PRID.String(),
		Status:      string(e.Status),
		Designation: string(e.Designation),
		ActorRole:   string(e.ActorRole),
		Notes:       e.Notes,
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
	}
}
