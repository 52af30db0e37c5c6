package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/zeebo/xxh3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/neighbournet/neighbournet/internal/domain"
	"github.com/neighbournet/neighbournet/internal/infra/database/models"
)

// haversine computes the great-circle distance in meters between a bound
// (latitude, longitude) pair and each row's stored coordinates. Bind order
// is always lat, lat, lng.
const haversine = "2 * 6371000 * asin(sqrt(power(sin(radians(latitude - ?) / 2), 2) + cos(radians(?)) * cos(radians(latitude)) * power(sin(radians(longitude - ?) / 2), 2)))"

const (
	requestCacheTTL = 30 // seconds
	browseCacheTTL  = 5  // seconds
)

type RequestRepository struct {
	db *gorm.DB
	mc *memcache.Client
}

// NewRequestRepository wraps the postgres store. mc is optional; when nil
// every read goes straight to the database.
func NewRequestRepository(db *gorm.DB, mc *memcache.Client) *RequestRepository {
	return &RequestRepository{db: db, mc: mc}
}

func (r *RequestRepository) Create(ctx context.Context, req *domain.HelpRequest) error {
	row := requestToModel(req)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	req.CreatedAt = row.CreatedAt
	req.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *RequestRepository) GetByID(ctx context.Context, id string) (*domain.HelpRequest, error) {
	if cached := r.cacheGet(id); cached != nil {
		return cached, nil
	}

	var row models.HelpRequest
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, domain.NotFoundError{Resource: "request"}
	}
	if err != nil {
		return nil, err
	}

	req := requestToDomain(row)
	r.cacheSet(&req)
	return &req, nil
}

// ConditionalUpdate applies mutate only while the stored status still
// equals expected. The row lock holds for the duration of the
// read-validate-write sequence, so concurrent transitions on the same id
// serialize and at most one caller observes the expected pre-state.
func (r *RequestRepository) ConditionalUpdate(ctx context.Context, id string, expected domain.RequestStatus, mutate func(*domain.HelpRequest)) (*domain.HelpRequest, bool, error) {
	var updated *domain.HelpRequest

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.HelpRequest
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			Take(&row).Error
		if err == gorm.ErrRecordNotFound {
			return domain.NotFoundError{Resource: "request"}
		}
		if err != nil {
			return err
		}

		if domain.RequestStatus(row.Status) != expected {
			return nil
		}

		req := requestToDomain(row)
		mutate(&req)
		next := requestToModel(&req)
		next.CreatedAt = row.CreatedAt

		if err := tx.Save(&next).Error; err != nil {
			return err
		}

		req.CreatedAt = next.CreatedAt
		req.UpdatedAt = next.UpdatedAt
		updated = &req
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if updated == nil {
		return nil, false, nil
	}

	r.cacheDelete(id)
	r.cacheSet(updated)
	return updated, true, nil
}

// FindNear returns requests within radiusMeters of point ordered by
// ascending distance. Results are cached for a few seconds keyed by the
// quantized query, which is acceptable staleness for browsing.
func (r *RequestRepository) FindNear(ctx context.Context, point domain.GeoPoint, radiusMeters float64) ([]domain.HelpRequest, error) {
	cacheKey := browseCacheKey(point, radiusMeters)
	if r.mc != nil {
		if item, err := r.mc.Get(cacheKey); err == nil {
			var cached []domain.HelpRequest
			if json.Unmarshal(item.Value, &cached) == nil {
				return cached, nil
			}
		}
	}

	type requestRow struct {
		models.HelpRequest
		Distance float64
	}

	var rows []requestRow
	err := r.db.WithContext(ctx).
		Model(&models.HelpRequest{}).
		Select("*, "+haversine+" AS distance", point.Latitude, point.Latitude, point.Longitude).
		Where(haversine+" <= ?", point.Latitude, point.Latitude, point.Longitude, radiusMeters).
		Order("distance ASC, created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]domain.HelpRequest, 0, len(rows))
	for _, row := range rows {
		out = append(out, requestToDomain(row.HelpRequest))
	}

	if r.mc != nil {
		if value, err := json.Marshal(out); err == nil {
			r.mc.Set(&memcache.Item{Key: cacheKey, Value: value, Expiration: browseCacheTTL})
		}
	}

	return out, nil
}

func browseCacheKey(point domain.GeoPoint, radiusMeters float64) string {
	query := fmt.Sprintf("%.5f,%.5f,%.0f", point.Longitude, point.Latitude, radiusMeters)
	return fmt.Sprintf("nearby:%016x", xxh3.HashString(query))
}

func (r *RequestRepository) cacheGet(id string) *domain.HelpRequest {
	if r.mc == nil {
		return nil
	}
	item, err := r.mc.Get("request:" + id)
	if err != nil {
		return nil
	}
	var req domain.HelpRequest
	if err := json.Unmarshal(item.Value, &req); err != nil {
		return nil
	}
	return &req
}

func (r *RequestRepository) cacheSet(req *domain.HelpRequest) {
	if r.mc == nil {
		return
	}
	value, err := json.Marshal(req)
	if err != nil {
		return
	}
	r.mc.Set(&memcache.Item{Key: "request:" + req.ID, Value: value, Expiration: requestCacheTTL})
}

func (r *RequestRepository) cacheDelete(id string) {
	if r.mc == nil {
		return
	}
	r.mc.Delete("request:" + id)
}

func requestToModel(req *domain.HelpRequest) models.HelpRequest {
	types := make([]string, 0, len(req.Types))
	for _, t := range req.Types {
		types = append(types, string(t))
	}

	var assignedTo *string
	if req.AssignedTo != "" {
		assignedTo = &req.AssignedTo
	}

	return models.HelpRequest{
		ID:          req.ID,
		RequesterID: req.RequesterID,
		Types:       types,
		Description: req.Description,
		Contact:     req.Contact,
		Longitude:   req.Location.Longitude,
		Latitude:    req.Location.Latitude,
		Address:     req.Address,
		Status:      string(req.Status),
		AssignedTo:  assignedTo,
		AssignedAt:  req.AssignedAt,
		CompletedAt: req.CompletedAt,
	}
}

func requestToDomain(row models.HelpRequest) domain.HelpRequest {
	types := make([]domain.RequestType, 0, len(row.Types))
	for _, t := range row.Types {
		types = append(types, domain.RequestType(t))
	}

	assignedTo := ""
	if row.AssignedTo != nil {
		assignedTo = *row.AssignedTo
	}

	return domain.HelpRequest{
		ID:          row.ID,
		RequesterID: row.RequesterID,
		Types:       types,
		Description: row.Description,
		Contact:     row.Contact,
		Location:    domain.GeoPoint{Longitude: row.Longitude, Latitude: row.Latitude},
		Address:     row.Address,
		Status:      domain.RequestStatus(row.Status),
		AssignedTo:  assignedTo,
		AssignedAt:  row.AssignedAt,
		CompletedAt: row.CompletedAt,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}
