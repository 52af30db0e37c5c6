package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/neighbournet/neighbournet"
	"github.com/neighbournet/neighbournet/internal/domain"
)

var tracer = otel.Tracer("dispatcher")

// ActorFinder is the geo index lookup the dispatcher needs: actors of a
// given role near a point, ordered by ascending distance.
type ActorFinder interface {
	FindNear(ctx context.Context, point domain.GeoPoint, radiusMeters float64, role domain.Role) ([]domain.Actor, error)
}

// Signal publishes events for out-of-process consumers. May be nil.
type Signal interface {
	Publish(ctx context.Context, event neighbournet.Event) error
}

// Dispatcher resolves target actors through the presence directory and
// delivers realtime events. Delivery is best-effort and per-target
// independent: one unreachable or failing target never blocks another,
// and no failure here ever propagates to the lifecycle operation that
// triggered the dispatch.
type Dispatcher struct {
	finder   ActorFinder
	presence *PresenceDirectory
	signal   Signal
}

func NewDispatcher(finder ActorFinder, presence *PresenceDirectory, signal Signal) *Dispatcher {
	return &Dispatcher{
		finder:   finder,
		presence: presence,
		signal:   signal,
	}
}

// NotifyNearby finds volunteers within radiusMeters of the request's
// location and delivers a nearby-request event to each one with a live
// channel. Returns the number of actors actually notified.
func (d *Dispatcher) NotifyNearby(ctx context.Context, req *domain.HelpRequest, radiusMeters float64) int {
	ctx, span := tracer.Start(ctx, "Dispatcher.NotifyNearby",
		trace.WithAttributes(attribute.String("request.id", req.ID)))
	defer span.End()

	volunteers, err := d.finder.FindNear(ctx, req.Location, radiusMeters, domain.RoleVolunteer)
	if err != nil {
		span.RecordError(err)
		slog.ErrorContext(ctx, "failed to query nearby volunteers",
			slog.String("error", err.Error()),
			slog.String("requestId", req.ID),
			slog.String("module", "dispatcher"),
		)
		return 0
	}

	slog.DebugContext(ctx, "volunteer candidates resolved",
		slog.Int("count", len(volunteers)),
		slog.Float64("radiusMeters", radiusMeters),
		slog.String("module", "dispatcher"),
	)

	notified := 0
	for _, volunteer := range volunteers {
		if d.emit(ctx, neighbournet.EventNearbyRequest, volunteer.ID, req) {
			notified++
		}
	}

	span.SetAttributes(attribute.Int("notified", notified))
	return notified
}

// NotifyParties delivers an update event carrying the full current request
// state to each given actor. Unreachable actors are silently skipped.
func (d *Dispatcher) NotifyParties(ctx context.Context, req *domain.HelpRequest, actorIDs []string, kind string) {
	ctx, span := tracer.Start(ctx, "Dispatcher.NotifyParties",
		trace.WithAttributes(attribute.String("request.id", req.ID)))
	defer span.End()

	for _, actorID := range actorIDs {
		d.emit(ctx, kind, actorID, req)
	}
}

// emit publishes the event to the signal tap and, when the target has a
// live channel, sends it there. Reports whether a local delivery happened.
func (d *Dispatcher) emit(ctx context.Context, kind, targetID string, req *domain.HelpRequest) bool {
	event := neighbournet.Event{
		Kind:      kind,
		Target:    targetID,
		Payload:   req,
		Timestamp: time.Now().UTC(),
	}

	if d.signal != nil {
		if err := d.signal.Publish(ctx, event); err != nil {
			slog.WarnContext(ctx, "signal publish failed",
				slog.String("error", err.Error()),
				slog.String("module", "dispatcher"),
			)
		}
	}

	ch := d.presence.Resolve(targetID)
	if ch == nil {
		return false
	}

	if err := ch.Send(event); err != nil {
		slog.DebugContext(ctx, "channel delivery failed",
			slog.String("error", err.Error()),
			slog.String("actorId", targetID),
			slog.String("module", "dispatcher"),
		)
		return false
	}
	return true
}
