package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/neighbournet/neighbournet/internal/domain"
)

type ActorUsecase struct {
	repo ActorRepository
}

func NewActorUsecase(repo ActorRepository) *ActorUsecase {
	return &ActorUsecase{repo: repo}
}

// RegisterInput carries the fields for account creation. PasswordHash is
// already hashed by the auth service; this layer never sees credentials.
type RegisterInput struct {
	Name         string
	Email        string
	PasswordHash string
	Role         domain.Role
	Location     *domain.GeoPoint
}

func (uc *ActorUsecase) Register(ctx context.Context, in RegisterInput) (*domain.Actor, error) {
	if in.Name == "" || in.Email == "" || in.PasswordHash == "" {
		return nil, domain.ValidationError{Reason: "name, email, and password are required"}
	}
	if in.Role == "" {
		in.Role = domain.RoleVolunteer
	}
	if !domain.ValidRole(string(in.Role)) {
		return nil, domain.ValidationError{Reason: "invalid role, must be volunteer or requester"}
	}
	if in.Location != nil && !in.Location.Valid() {
		return nil, domain.ValidationError{Reason: "location is out of range"}
	}

	if existing, err := uc.repo.GetByEmail(ctx, in.Email); err == nil && existing != nil {
		return nil, domain.ConflictError{Reason: "user already exists with this email"}
	}

	actor := &domain.Actor{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		Location:     in.Location,
	}
	if err := uc.repo.Create(ctx, actor); err != nil {
		return nil, err
	}
	return actor, nil
}

func (uc *ActorUsecase) Get(ctx context.Context, id string) (*domain.Actor, error) {
	return uc.repo.GetByID(ctx, id)
}

func (uc *ActorUsecase) GetByEmail(ctx context.Context, email string) (*domain.Actor, error) {
	return uc.repo.GetByEmail(ctx, email)
}

// SwitchRole updates the actor's current role. Role is data, not type:
// authorization elsewhere always reads the stored value.
func (uc *ActorUsecase) SwitchRole(ctx context.Context, id string, role string) (*domain.Actor, error) {
	if !domain.ValidRole(role) {
		return nil, domain.ValidationError{Reason: "invalid role, must be volunteer or requester"}
	}
	return uc.repo.UpdateRole(ctx, id, domain.Role(role))
}

func (uc *ActorUsecase) UpdateLocation(ctx context.Context, id string, point domain.GeoPoint) (*domain.Actor, error) {
	if !point.Valid() {
		return nil, domain.ValidationError{Reason: "location is out of range"}
	}
	return uc.repo.UpdateLocation(ctx, id, point)
}
