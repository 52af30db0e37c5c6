package rest

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/neighbournet/neighbournet"
	"github.com/neighbournet/neighbournet/internal/domain"
	"github.com/neighbournet/neighbournet/internal/present/rest/middleware"
	"github.com/neighbournet/neighbournet/internal/present/rest/presenter"
	"github.com/neighbournet/neighbournet/internal/service"
	"github.com/neighbournet/neighbournet/internal/usecase"
)

type Handler struct {
	config   domain.Config
	request  *usecase.RequestUsecase
	actor    *usecase.ActorUsecase
	auth     *service.AuthService
	presence *service.PresenceDirectory
}

func NewHandler(
	config domain.Config,
	request *usecase.RequestUsecase,
	actor *usecase.ActorUsecase,
	auth *service.AuthService,
	presence *service.PresenceDirectory,
) *Handler {
	return &Handler{
		config:   config,
		request:  request,
		actor:    actor,
		auth:     auth,
		presence: presence,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/v1/auth/signup", h.handleSignup)
	e.POST("/api/v1/auth/login", h.handleLogin)
	e.POST("/api/v1/oauth/google", h.handleOAuthGoogle)
	e.POST("/api/v1/oauth/github", h.handleOAuthGitHub)
	e.GET("/api/v1/auth/me", h.handleMe)
	e.PATCH("/api/v1/auth/role", h.handleSwitchRole)
	e.PATCH("/api/v1/auth/location", h.handleUpdateLocation)
	e.GET("/api/v1/requests", h.handleBrowseRequests)
	e.POST("/api/v1/requests", h.handleCreateRequest)
	e.POST("/api/v1/requests/:id/assign", h.handleAssignRequest)
	e.POST("/api/v1/requests/:id/complete", h.handleCompleteRequest)
	e.GET("/realtime", h.handleRealtime)
}

// respondError maps the domain error taxonomy onto HTTP statuses. Every
// kind stays distinguishable so clients can decide between retry,
// re-fetch, and permission messaging.
func respondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return presenter.BadRequest(c, err)
	case errors.Is(err, domain.ErrNotFound):
		return presenter.NotFound(c, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return presenter.Conflict(c, err)
	case errors.Is(err, domain.ErrAuthorization):
		return presenter.Forbidden(c, err)
	default:
		return presenter.InternalError(c, err)
	}
}

// --- auth ---

type signupBody struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Role     string   `json:"role"`
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
}

type authResponse struct {
	Token string        `json:"token"`
	Actor *domain.Actor `json:"actor"`
}

func (h *Handler) handleSignup(c echo.Context) error {
	ctx := c.Request().Context()

	var body signupBody
	if err := c.Bind(&body); err != nil {
		return presenter.BadRequest(c, err)
	}
	if body.Password == "" {
		return presenter.BadRequestMessage(c, "name, email, and password are required")
	}

	hash, err := h.auth.HashPassword(body.Password)
	if err != nil {
		return presenter.InternalError(c, err)
	}

	in := usecase.RegisterInput{
		Name:         body.Name,
		Email:        body.Email,
		PasswordHash: hash,
		Role:         domain.Role(body.Role),
	}
	if body.Lat != nil && body.Lng != nil {
		in.Location = &domain.GeoPoint{Longitude: *body.Lng, Latitude: *body.Lat}
	}

	actor, err := h.actor.Register(ctx, in)
	if err != nil {
		return respondError(c, err)
	}

	token, err := h.auth.IssueToken(actor)
	if err != nil {
		return presenter.InternalError(c, err)
	}

	return presenter.Created(c, authResponse{Token: token, Actor: actor})
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(c echo.Context) error {
	ctx := c.Request().Context()

	var body loginBody
	if err := c.Bind(&body); err != nil {
		return presenter.BadRequest(c, err)
	}
	if body.Email == "" || body.Password == "" {
		return presenter.BadRequestMessage(c, "email and password are required")
	}

	actor, err := h.actor.GetByEmail(ctx, body.Email)
	if err != nil || !h.auth.CheckPassword(actor.PasswordHash, body.Password) {
		return presenter.Unauthorized(c, "invalid email or password")
	}

	token, err := h.auth.IssueToken(actor)
	if err != nil {
		return presenter.InternalError(c, err)
	}

	return presenter.OK(c, authResponse{Token: token, Actor: actor})
}

type oauthBody struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (h *Handler) handleOAuthGoogle(c echo.Context) error {
	return h.handleMockOAuth(c, "google")
}

func (h *Handler) handleOAuthGitHub(c echo.Context) error {
	return h.handleMockOAuth(c, "github")
}

// handleMockOAuth trades a provider-asserted identity for a local account
// and token. The provider handshake happens client-side; this endpoint
// trusts the asserted email and provisions a volunteer account on first
// sign-in. The generated credential is never shown to anyone, so such an
// account can only ever log in through this path.
func (h *Handler) handleMockOAuth(c echo.Context, provider string) error {
	ctx := c.Request().Context()

	var body oauthBody
	if err := c.Bind(&body); err != nil {
		return presenter.BadRequest(c, err)
	}
	if body.Email == "" || body.Name == "" {
		return presenter.BadRequestMessage(c, "email and name are required")
	}

	actor, err := h.actor.GetByEmail(ctx, body.Email)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return respondError(c, err)
		}

		hash, err := h.auth.HashPassword(fmt.Sprintf("oauth-%s-%d", provider, time.Now().UnixNano()))
		if err != nil {
			return presenter.InternalError(c, err)
		}

		actor, err = h.actor.Register(ctx, usecase.RegisterInput{
			Name:         body.Name,
			Email:        body.Email,
			PasswordHash: hash,
			Role:         domain.RoleVolunteer,
		})
		if err != nil {
			return respondError(c, err)
		}
	}

	token, err := h.auth.IssueToken(actor)
	if err != nil {
		return presenter.InternalError(c, err)
	}
	return presenter.OK(c, authResponse{Token: token, Actor: actor})
}

func (h *Handler) handleMe(c echo.Context) error {
	ctx := c.Request().Context()

	actorID := middleware.ActorID(c)
	if actorID == "" {
		return presenter.Unauthorized(c, "authentication required")
	}

	actor, err := h.actor.Get(ctx, actorID)
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, actor)
}

type roleBody struct {
	Role string `json:"role"`
}

func (h *Handler) handleSwitchRole(c echo.Context) error {
	ctx := c.Request().Context()

	actorID := middleware.ActorID(c)
	if actorID == "" {
		return presenter.Unauthorized(c, "authentication required")
	}

	var body roleBody
	if err := c.Bind(&body); err != nil {
		return presenter.BadRequest(c, err)
	}

	actor, err := h.actor.SwitchRole(ctx, actorID, body.Role)
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, actor)
}

type locationBody struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func (h *Handler) handleUpdateLocation(c echo.Context) error {
	ctx := c.Request().Context()

	actorID := middleware.ActorID(c)
	if actorID == "" {
		return presenter.Unauthorized(c, "authentication required")
	}

	var body locationBody
	if err := c.Bind(&body); err != nil {
		return presenter.BadRequest(c, err)
	}
	if body.Lat == nil || body.Lng == nil {
		return presenter.BadRequestMessage(c, "location (lat/lng) is required")
	}

	actor, err := h.actor.UpdateLocation(ctx, actorID, domain.GeoPoint{Longitude: *body.Lng, Latitude: *body.Lat})
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, actor)
}

// --- requests ---

func (h *Handler) handleBrowseRequests(c echo.Context) error {
	ctx := c.Request().Context()

	latStr := c.QueryParam("lat")
	lngStr := c.QueryParam("lng")
	if latStr == "" || lngStr == "" {
		return presenter.BadRequestMessage(c, "latitude and longitude are required")
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid lat parameter")
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid lng parameter")
	}

	radiusMeters := domain.DefaultBrowseRadiusMeters
	if radiusStr := c.QueryParam("radiusKm"); radiusStr != "" {
		radiusKm, err := strconv.ParseFloat(radiusStr, 64)
		if err != nil {
			return presenter.BadRequestMessage(c, "invalid radiusKm parameter")
		}
		radiusMeters = radiusKm * 1000
	}

	requests, err := h.request.Query(ctx, domain.GeoPoint{Longitude: lng, Latitude: lat}, radiusMeters)
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, requests)
}

type createRequestBody struct {
	Types       []string `json:"types"`
	Description string   `json:"description"`
	Contact     string   `json:"contact"`
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
	Address     string   `json:"address"`
}

func (h *Handler) handleCreateRequest(c echo.Context) error {
	ctx := c.Request().Context()

	actorID := middleware.ActorID(c)
	if actorID == "" {
		return presenter.Unauthorized(c, "authentication required")
	}

	var body createRequestBody
	if err := c.Bind(&body); err != nil {
		return presenter.BadRequest(c, err)
	}
	if body.Lat == nil || body.Lng == nil {
		return presenter.BadRequestMessage(c, "location (lat/lng) is required")
	}

	types := make([]domain.RequestType, 0, len(body.Types))
	for _, t := range body.Types {
		types = append(types, domain.RequestType(t))
	}

	req, err := h.request.Create(ctx, domain.NewRequestInput{
		RequesterID: actorID,
		Types:       types,
		Description: body.Description,
		Contact:     body.Contact,
		Location:    domain.GeoPoint{Longitude: *body.Lng, Latitude: *body.Lat},
		Address:     body.Address,
	})
	if err != nil {
		return respondError(c, err)
	}
	return presenter.Created(c, req)
}

func (h *Handler) handleAssignRequest(c echo.Context) error {
	ctx := c.Request().Context()

	actorID := middleware.ActorID(c)
	if actorID == "" {
		return presenter.Unauthorized(c, "authentication required")
	}

	req, err := h.request.Assign(ctx, c.Param("id"), actorID)
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, req)
}

func (h *Handler) handleCompleteRequest(c echo.Context) error {
	ctx := c.Request().Context()

	actorID := middleware.ActorID(c)
	if actorID == "" {
		return presenter.Unauthorized(c, "authentication required")
	}

	req, err := h.request.Complete(ctx, c.Param("id"), actorID)
	if err != nil {
		return respondError(c, err)
	}
	return presenter.OK(c, req)
}

// --- realtime ---

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type realtimeRequest struct {
	Type string `json:"type"`
}

// wsChannel adapts a websocket connection's outbound queue to the presence
// Channel contract. Send never blocks: a full queue means the client is
// not keeping up and the event is dropped.
type wsChannel struct {
	events chan neighbournet.Event
}

func newWsChannel() *wsChannel {
	return &wsChannel{events: make(chan neighbournet.Event, 16)}
}

func (ch *wsChannel) Send(event neighbournet.Event) error {
	select {
	case ch.events <- event:
		return nil
	default:
		return errors.New("client is too slow, dropping event")
	}
}

func (h *Handler) handleRealtime(c echo.Context) error {
	ctx := c.Request().Context()

	result, err := h.auth.VerifyToken(ctx, c.QueryParam("token"))
	if err != nil {
		return presenter.Unauthorized(c, "invalid token")
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer func() {
		ws.Close()
	}()

	ch := newWsChannel()
	h.presence.Register(result.ActorID, ch)
	defer h.presence.Unregister(result.ActorID, ch)

	// buffered so the reader's teardown send succeeds even when the write
	// loop has already exited on its own error
	quit := make(chan struct{}, 1)

	go func() {
		for {
			var req realtimeRequest
			err := ws.ReadJSON(&req)
			if err != nil {

				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}

				quit <- struct{}{}
				break
			}

			switch req.Type {
			case "h": // heartbeat
				// do nothing
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case event := <-ch.events:
			err := ws.WriteJSON(event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
