package usecase

import (
	"context"

	"github.com/neighbournet/neighbournet/internal/domain"
)

// RequestRepository defines storage operations for help requests. FindNear
// returns requests ordered by ascending distance from the query point;
// ConditionalUpdate applies mutate only while the stored status still equals
// expected, and reports whether the write happened.
type RequestRepository interface {
	Create(ctx context.Context, req *domain.HelpRequest) error
	GetByID(ctx context.Context, id string) (*domain.HelpRequest, error)
	ConditionalUpdate(ctx context.Context, id string, expected domain.RequestStatus, mutate func(*domain.HelpRequest)) (*domain.HelpRequest, bool, error)
	FindNear(ctx context.Context, point domain.GeoPoint, radiusMeters float64) ([]domain.HelpRequest, error)
}

// ActorRepository defines persistence/lookup for actors.
type ActorRepository interface {
	Create(ctx context.Context, actor *domain.Actor) error
	GetByID(ctx context.Context, id string) (*domain.Actor, error)
	GetByEmail(ctx context.Context, email string) (*domain.Actor, error)
	UpdateRole(ctx context.Context, id string, role domain.Role) (*domain.Actor, error)
	UpdateLocation(ctx context.Context, id string, point domain.GeoPoint) (*domain.Actor, error)
}

// Notifier fans out realtime events. Both methods are best-effort: delivery
// failures are absorbed and never propagate to lifecycle operations.
type Notifier interface {
	NotifyNearby(ctx context.Context, req *domain.HelpRequest, radiusMeters float64) int
	NotifyParties(ctx context.Context, req *domain.HelpRequest, actorIDs []string, kind string)
}
