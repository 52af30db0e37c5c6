package repository

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"github.com/neighbournet/neighbournet/internal/domain"
	"github.com/neighbournet/neighbournet/internal/infra/database/models"
)

type ActorRepository struct {
	db    *gorm.DB
	cache *gocache.Cache
}

func NewActorRepository(db *gorm.DB) *ActorRepository {
	return &ActorRepository{
		db:    db,
		cache: gocache.New(time.Minute, 5*time.Minute),
	}
}

func (r *ActorRepository) Create(ctx context.Context, actor *domain.Actor) error {
	row := actorToModel(actor)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	actor.CreatedAt = row.CreatedAt
	actor.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *ActorRepository) GetByID(ctx context.Context, id string) (*domain.Actor, error) {
	if cached, ok := r.cache.Get(id); ok {
		actor := cached.(domain.Actor)
		return &actor, nil
	}

	var row models.Actor
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, domain.NotFoundError{Resource: "actor"}
	}
	if err != nil {
		return nil, err
	}

	actor := actorToDomain(row)
	r.cache.SetDefault(id, actor)
	return &actor, nil
}

func (r *ActorRepository) GetByEmail(ctx context.Context, email string) (*domain.Actor, error) {
	var row models.Actor
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, domain.NotFoundError{Resource: "actor"}
	}
	if err != nil {
		return nil, err
	}

	actor := actorToDomain(row)
	return &actor, nil
}

func (r *ActorRepository) UpdateRole(ctx context.Context, id string, role domain.Role) (*domain.Actor, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Actor{}).
		Where("id = ?", id).
		Update("role", string(role))
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, domain.NotFoundError{Resource: "actor"}
	}

	r.cache.Delete(id)
	return r.GetByID(ctx, id)
}

func (r *ActorRepository) UpdateLocation(ctx context.Context, id string, point domain.GeoPoint) (*domain.Actor, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Actor{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"longitude": point.Longitude,
			"latitude":  point.Latitude,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, domain.NotFoundError{Resource: "actor"}
	}

	r.cache.Delete(id)
	return r.GetByID(ctx, id)
}

// FindNear returns actors of the given role within radiusMeters of point,
// ordered by ascending distance. Actors without a stored location are
// never candidates.
func (r *ActorRepository) FindNear(ctx context.Context, point domain.GeoPoint, radiusMeters float64, role domain.Role) ([]domain.Actor, error) {
	type actorRow struct {
		models.Actor
		Distance float64
	}

	var rows []actorRow
	err := r.db.WithContext(ctx).
		Model(&models.Actor{}).
		Select("*, "+haversine+" AS distance", point.Latitude, point.Latitude, point.Longitude).
		Where("role = ? AND latitude IS NOT NULL AND longitude IS NOT NULL", string(role)).
		Where(haversine+" <= ?", point.Latitude, point.Latitude, point.Longitude, radiusMeters).
		Order("distance ASC, created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]domain.Actor, 0, len(rows))
	for _, row := range rows {
		out = append(out, actorToDomain(row.Actor))
	}
	return out, nil
}

func actorToModel(actor *domain.Actor) models.Actor {
	row := models.Actor{
		ID:           actor.ID,
		Name:         actor.Name,
		Email:        actor.Email,
		PasswordHash: actor.PasswordHash,
		Role:         string(actor.Role),
	}
	if actor.Location != nil {
		lng, lat := actor.Location.Longitude, actor.Location.Latitude
		row.Longitude = &lng
		row.Latitude = &lat
	}
	return row
}

func actorToDomain(row models.Actor) domain.Actor {
	actor := domain.Actor{
		ID:           row.ID,
		Name:         row.Name,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		Role:         domain.Role(row.Role),
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
	if row.Longitude != nil && row.Latitude != nil {
		actor.Location = &domain.GeoPoint{Longitude: *row.Longitude, Latitude: *row.Latitude}
	}
	return actor
}
