package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/neighbournet/neighbournet"
	"github.com/neighbournet/neighbournet/internal/domain"
)

// RequestUsecase owns the help-request state machine. It is the only
// component that mutates HelpRequest.Status; all transitions go through the
// repository's conditional update so concurrent callers on the same request
// serialize on the stored status.
type RequestUsecase struct {
	repo            RequestRepository
	notifier        Notifier
	discoveryRadius float64
}

func NewRequestUsecase(repo RequestRepository, notifier Notifier, discoveryRadius float64) *RequestUsecase {
	if discoveryRadius <= 0 {
		discoveryRadius = domain.DefaultDiscoveryRadiusMeters
	}
	return &RequestUsecase{
		repo:            repo,
		notifier:        notifier,
		discoveryRadius: discoveryRadius,
	}
}

// Create validates and persists a new open request, then kicks off the
// nearby-volunteer fan-out. Notification is fire-and-forget: its outcome
// never affects the caller's result, and it may complete after the caller
// has already received the created entity.
func (uc *RequestUsecase) Create(ctx context.Context, in domain.NewRequestInput) (*domain.HelpRequest, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	req := &domain.HelpRequest{
		ID:          uuid.NewString(),
		RequesterID: in.RequesterID,
		Types:       in.Types,
		Description: in.Description,
		Contact:     in.Contact,
		Location:    in.Location,
		Address:     in.Address,
		Status:      domain.StatusOpen,
	}

	if err := uc.repo.Create(ctx, req); err != nil {
		return nil, err
	}

	go uc.notifier.NotifyNearby(context.WithoutCancel(ctx), req, uc.discoveryRadius)

	return req, nil
}

// Assign transitions an open request to assigned on behalf of actorID.
// The conditional update guarantees at most one concurrent winner: every
// other caller observes the request as no longer open.
func (uc *RequestUsecase) Assign(ctx context.Context, requestID, actorID string) (*domain.HelpRequest, error) {
	req, err := uc.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if req.Status != domain.StatusOpen {
		return nil, domain.ConflictError{Reason: "request is already assigned or completed"}
	}

	if req.RequesterID == actorID {
		return nil, domain.AuthorizationError{Reason: "you cannot assign yourself to your own request"}
	}

	updated, ok, err := uc.repo.ConditionalUpdate(ctx, requestID, domain.StatusOpen, func(r *domain.HelpRequest) {
		now := time.Now().UTC()
		r.Status = domain.StatusAssigned
		r.AssignedTo = actorID
		r.AssignedAt = &now
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ConflictError{Reason: "request is already assigned or completed"}
	}

	go uc.notifier.NotifyParties(context.WithoutCancel(ctx), updated,
		[]string{updated.RequesterID}, neighbournet.EventRequestUpdate)

	return updated, nil
}

// Complete transitions a request to its terminal state. Only the requester
// or the assigned volunteer has standing; completing from open (never
// assigned) is permitted.
func (uc *RequestUsecase) Complete(ctx context.Context, requestID, actorID string) (*domain.HelpRequest, error) {
	req, err := uc.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	isRequester := req.RequesterID == actorID
	isAssignee := req.AssignedTo != "" && req.AssignedTo == actorID
	if !isRequester && !isAssignee {
		return nil, domain.AuthorizationError{Reason: "not authorized to complete this request"}
	}

	if req.Status == domain.StatusCompleted {
		return nil, domain.ConflictError{Reason: "request is already completed"}
	}

	updated, ok, err := uc.repo.ConditionalUpdate(ctx, requestID, req.Status, func(r *domain.HelpRequest) {
		now := time.Now().UTC()
		r.Status = domain.StatusCompleted
		r.CompletedAt = &now
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		// lost a race with another transition; the caller must re-read
		return nil, domain.ConflictError{Reason: "request state changed"}
	}

	parties := []string{updated.RequesterID}
	if updated.AssignedTo != "" {
		parties = append(parties, updated.AssignedTo)
	}
	go uc.notifier.NotifyParties(context.WithoutCancel(ctx), updated, parties,
		neighbournet.EventRequestUpdate)

	return updated, nil
}

// Query returns requests near a point ordered by ascending distance. Pure
// read, no role filter.
func (uc *RequestUsecase) Query(ctx context.Context, point domain.GeoPoint, radiusMeters float64) ([]domain.HelpRequest, error) {
	if !point.Valid() {
		return nil, domain.ValidationError{Reason: "location is out of range"}
	}
	if radiusMeters <= 0 {
		return nil, domain.ValidationError{Reason: "radius must be positive"}
	}
	return uc.repo.FindNear(ctx, point, radiusMeters)
}
