package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/neighbournet/neighbournet"
	"github.com/neighbournet/neighbournet/internal/domain"
	"github.com/neighbournet/neighbournet/internal/present/rest/middleware"
	"github.com/neighbournet/neighbournet/internal/service"
	"github.com/neighbournet/neighbournet/internal/usecase"
)

// --- in-memory ports ---

type memRequestRepo struct {
	mu       sync.Mutex
	requests map[string]domain.HelpRequest
}

func newMemRequestRepo() *memRequestRepo {
	return &memRequestRepo{requests: make(map[string]domain.HelpRequest)}
}

func (m *memRequestRepo) Create(ctx context.Context, req *domain.HelpRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req.CreatedAt = time.Now().UTC()
	req.UpdatedAt = req.CreatedAt
	m.requests[req.ID] = *req
	return nil
}

func (m *memRequestRepo) GetByID(ctx context.Context, id string) (*domain.HelpRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, domain.NotFoundError{Resource: "request"}
	}
	return &req, nil
}

func (m *memRequestRepo) ConditionalUpdate(ctx context.Context, id string, expected domain.RequestStatus, mutate func(*domain.HelpRequest)) (*domain.HelpRequest, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, false, domain.NotFoundError{Resource: "request"}
	}
	if req.Status != expected {
		return nil, false, nil
	}
	mutate(&req)
	req.UpdatedAt = time.Now().UTC()
	m.requests[id] = req
	return &req, true, nil
}

func (m *memRequestRepo) FindNear(ctx context.Context, point domain.GeoPoint, radiusMeters float64) ([]domain.HelpRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.HelpRequest
	for _, req := range m.requests {
		if point.DistanceMeters(req.Location) <= radiusMeters {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return point.DistanceMeters(out[i].Location) < point.DistanceMeters(out[j].Location)
	})
	return out, nil
}

type memActorRepo struct {
	mu     sync.Mutex
	actors map[string]domain.Actor
}

func newMemActorRepo() *memActorRepo {
	return &memActorRepo{actors: make(map[string]domain.Actor)}
}

func (m *memActorRepo) Create(ctx context.Context, actor *domain.Actor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actors[actor.ID] = *actor
	return nil
}

func (m *memActorRepo) GetByID(ctx context.Context, id string) (*domain.Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actors[id]
	if !ok {
		return nil, domain.NotFoundError{Resource: "actor"}
	}
	return &a, nil
}

func (m *memActorRepo) GetByEmail(ctx context.Context, email string) (*domain.Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.actors {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, domain.NotFoundError{Resource: "actor"}
}

func (m *memActorRepo) UpdateRole(ctx context.Context, id string, role domain.Role) (*domain.Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actors[id]
	if !ok {
		return nil, domain.NotFoundError{Resource: "actor"}
	}
	a.Role = role
	m.actors[id] = a
	return &a, nil
}

func (m *memActorRepo) UpdateLocation(ctx context.Context, id string, point domain.GeoPoint) (*domain.Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actors[id]
	if !ok {
		return nil, domain.NotFoundError{Resource: "actor"}
	}
	a.Location = &point
	m.actors[id] = a
	return &a, nil
}

func (m *memActorRepo) FindNear(ctx context.Context, point domain.GeoPoint, radiusMeters float64, role domain.Role) ([]domain.Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Actor
	for _, a := range m.actors {
		if a.Role != role || a.Location == nil {
			continue
		}
		if point.DistanceMeters(*a.Location) <= radiusMeters {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return point.DistanceMeters(*out[i].Location) < point.DistanceMeters(*out[j].Location)
	})
	return out, nil
}

// --- fixture ---

type fixture struct {
	e        *echo.Echo
	auth     *service.AuthService
	actors   *memActorRepo
	requests *memRequestRepo
	presence *service.PresenceDirectory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conf := domain.Config{
		FQDN:          "relief.example.com",
		JWTSecret:     "test-secret",
		TokenDuration: time.Hour,
	}

	actors := newMemActorRepo()
	requests := newMemRequestRepo()
	presence := service.NewPresenceDirectory()
	auth := service.NewAuthService(&conf)
	dispatcher := service.NewDispatcher(actors, presence, nil)

	requestUC := usecase.NewRequestUsecase(requests, dispatcher, 0)
	actorUC := usecase.NewActorUsecase(actors)

	e := echo.New()
	authMw := middleware.NewAuthMiddleware(auth)
	e.Use(authMw.IdentifyActor)

	h := NewHandler(conf, requestUC, actorUC, auth, presence)
	h.RegisterRoutes(e)

	return &fixture{e: e, auth: auth, actors: actors, requests: requests, presence: presence}
}

// seedActor stores an actor directly and returns a bearer token for it.
func (f *fixture) seedActor(t *testing.T, id string, role domain.Role, loc *domain.GeoPoint) string {
	t.Helper()
	actor := domain.Actor{
		ID:       id,
		Name:     id,
		Email:    id + "@example.com",
		Role:     role,
		Location: loc,
	}
	if err := f.actors.Create(context.Background(), &actor); err != nil {
		t.Fatalf("seed actor failed: %v", err)
	}
	token, err := f.auth.IssueToken(&actor)
	if err != nil {
		t.Fatalf("issue token failed: %v", err)
	}
	return token
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body failed: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	f.e.ServeHTTP(res, req)
	return res
}

func createBody() map[string]any {
	return map[string]any{
		"types":       []string{"medical"},
		"description": "need help",
		"contact":     "555-0100",
		"lat":         37.77,
		"lng":         -122.42,
	}
}

// --- tests ---

func TestSignupAndLogin(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]any{
		"name":     "Alice",
		"email":    "alice@example.com",
		"password": "hunter2",
		"role":     "volunteer",
		"lat":      37.77,
		"lng":      -122.42,
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", res.Code, res.Body.String())
	}

	var signup authResponse
	if err := json.Unmarshal(res.Body.Bytes(), &signup); err != nil {
		t.Fatalf("bad signup response: %v", err)
	}
	if signup.Token == "" || signup.Actor.ID == "" {
		t.Fatalf("signup response incomplete: %+v", signup)
	}

	res = f.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email":    "alice@example.com",
		"password": "hunter2",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", res.Code, res.Body.String())
	}

	res = f.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", res.Code)
	}
}

func TestMeAndRoleSwitch(t *testing.T) {
	f := newFixture(t)
	token := f.seedActor(t, "alice", domain.RoleVolunteer, nil)

	res := f.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", res.Code)
	}

	res = f.do(t, http.MethodGet, "/api/v1/auth/me", "", nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", res.Code)
	}

	res = f.do(t, http.MethodPatch, "/api/v1/auth/role", token, map[string]any{"role": "requester"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", res.Code, res.Body.String())
	}
	var actor domain.Actor
	if err := json.Unmarshal(res.Body.Bytes(), &actor); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if actor.Role != domain.RoleRequester {
		t.Fatalf("expected requester, got %s", actor.Role)
	}

	res = f.do(t, http.MethodPatch, "/api/v1/auth/role", token, map[string]any{"role": "admin"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", res.Code)
	}
}

func TestMockOAuthFindOrCreate(t *testing.T) {
	f := newFixture(t)

	for _, provider := range []string{"google", "github"} {
		res := f.do(t, http.MethodPost, "/api/v1/oauth/"+provider, "", map[string]any{
			"email": provider + "@example.com",
		})
		if res.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 without name, got %d", provider, res.Code)
		}

		res = f.do(t, http.MethodPost, "/api/v1/oauth/"+provider, "", map[string]any{
			"email": provider + "@example.com",
			"name":  "Alice",
		})
		if res.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d: %s", provider, res.Code, res.Body.String())
		}

		var first authResponse
		if err := json.Unmarshal(res.Body.Bytes(), &first); err != nil {
			t.Fatalf("%s: bad response: %v", provider, err)
		}
		if first.Token == "" || first.Actor.ID == "" {
			t.Fatalf("%s: response incomplete: %+v", provider, first)
		}
		if first.Actor.Role != domain.RoleVolunteer {
			t.Fatalf("%s: first sign-in must provision a volunteer, got %s", provider, first.Actor.Role)
		}

		// issued token carries a usable identity
		res = f.do(t, http.MethodGet, "/api/v1/auth/me", first.Token, nil)
		if res.Code != http.StatusOK {
			t.Fatalf("%s: token must authenticate, got %d", provider, res.Code)
		}

		// second sign-in resolves the same account
		res = f.do(t, http.MethodPost, "/api/v1/oauth/"+provider, "", map[string]any{
			"email": provider + "@example.com",
			"name":  "Alice Renamed",
		})
		if res.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", provider, res.Code)
		}
		var second authResponse
		if err := json.Unmarshal(res.Body.Bytes(), &second); err != nil {
			t.Fatalf("%s: bad response: %v", provider, err)
		}
		if second.Actor.ID != first.Actor.ID {
			t.Fatalf("%s: repeat sign-in must reuse the account, got %s and %s",
				provider, first.Actor.ID, second.Actor.ID)
		}
	}
}

func TestCreateRequestRequiresAuth(t *testing.T) {
	f := newFixture(t)
	res := f.do(t, http.MethodPost, "/api/v1/requests", "", createBody())
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", res.Code)
	}
}

func TestCreateRequestValidation(t *testing.T) {
	f := newFixture(t)
	token := f.seedActor(t, "alice", domain.RoleRequester, nil)

	body := createBody()
	body["types"] = []string{}
	res := f.do(t, http.MethodPost, "/api/v1/requests", token, body)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", res.Code, res.Body.String())
	}

	body = createBody()
	delete(body, "lat")
	res = f.do(t, http.MethodPost, "/api/v1/requests", token, body)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing lat, got %d", res.Code)
	}
}

func TestAssignLifecycleOverHTTP(t *testing.T) {
	f := newFixture(t)
	requesterToken := f.seedActor(t, "requester-1", domain.RoleRequester, nil)
	volunteerAToken := f.seedActor(t, "volunteer-a", domain.RoleVolunteer, nil)
	volunteerBToken := f.seedActor(t, "volunteer-b", domain.RoleVolunteer, nil)

	res := f.do(t, http.MethodPost, "/api/v1/requests", requesterToken, createBody())
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", res.Code, res.Body.String())
	}
	var created domain.HelpRequest
	if err := json.Unmarshal(res.Body.Bytes(), &created); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if created.Status != domain.StatusOpen {
		t.Fatalf("expected open, got %s", created.Status)
	}

	// unknown id
	res = f.do(t, http.MethodPost, "/api/v1/requests/missing/assign", volunteerAToken, nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", res.Code)
	}

	// self-assignment
	res = f.do(t, http.MethodPost, "/api/v1/requests/"+created.ID+"/assign", requesterToken, nil)
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d: %s", res.Code, res.Body.String())
	}

	// winner
	res = f.do(t, http.MethodPost, "/api/v1/requests/"+created.ID+"/assign", volunteerAToken, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", res.Code, res.Body.String())
	}
	var assigned domain.HelpRequest
	if err := json.Unmarshal(res.Body.Bytes(), &assigned); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if assigned.Status != domain.StatusAssigned || assigned.AssignedTo != "volunteer-a" {
		t.Fatalf("unexpected state: %+v", assigned)
	}

	// loser
	res = f.do(t, http.MethodPost, "/api/v1/requests/"+created.ID+"/assign", volunteerBToken, nil)
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d: %s", res.Code, res.Body.String())
	}

	// third party cannot complete
	res = f.do(t, http.MethodPost, "/api/v1/requests/"+created.ID+"/complete", volunteerBToken, nil)
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", res.Code)
	}

	// assignee completes
	res = f.do(t, http.MethodPost, "/api/v1/requests/"+created.ID+"/complete", volunteerAToken, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", res.Code, res.Body.String())
	}
	var completed domain.HelpRequest
	if err := json.Unmarshal(res.Body.Bytes(), &completed); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if completed.Status != domain.StatusCompleted || completed.CompletedAt == nil {
		t.Fatalf("unexpected state: %+v", completed)
	}

	// second complete conflicts
	res = f.do(t, http.MethodPost, "/api/v1/requests/"+created.ID+"/complete", requesterToken, nil)
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", res.Code)
	}
}

func TestBrowseRequests(t *testing.T) {
	f := newFixture(t)
	requesterToken := f.seedActor(t, "requester-1", domain.RoleRequester, nil)

	res := f.do(t, http.MethodPost, "/api/v1/requests", requesterToken, createBody())
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", res.Code)
	}

	res = f.do(t, http.MethodGet, "/api/v1/requests?lat=37.77&lng=-122.42", "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", res.Code, res.Body.String())
	}
	var list []domain.HelpRequest
	if err := json.Unmarshal(res.Body.Bytes(), &list); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one request, got %d", len(list))
	}

	// far away browse finds nothing
	res = f.do(t, http.MethodGet, "/api/v1/requests?lat=40.0&lng=-120.0", "", nil)
	var empty []domain.HelpRequest
	if err := json.Unmarshal(res.Body.Bytes(), &empty); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no requests, got %d", len(empty))
	}

	// missing coordinates
	res = f.do(t, http.MethodGet, "/api/v1/requests", "", nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", res.Code)
	}
}

func TestRealtimeNearbyDelivery(t *testing.T) {
	f := newFixture(t)

	origin := domain.GeoPoint{Longitude: -122.42, Latitude: 37.77}
	nearLoc := domain.GeoPoint{Longitude: origin.Longitude, Latitude: origin.Latitude + 1000.0/111195.0}
	farLoc := domain.GeoPoint{Longitude: origin.Longitude, Latitude: origin.Latitude + 6000.0/111195.0}

	requesterToken := f.seedActor(t, "requester-1", domain.RoleRequester, nil)
	nearToken := f.seedActor(t, "vol-near", domain.RoleVolunteer, &nearLoc)
	farToken := f.seedActor(t, "vol-far", domain.RoleVolunteer, &farLoc)

	server := httptest.NewServer(f.e)
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	nearWs, _, err := websocket.DefaultDialer.Dial(wsURL+"/realtime?token="+nearToken, nil)
	if err != nil {
		t.Fatalf("near volunteer dial failed: %v", err)
	}
	defer nearWs.Close()

	farWs, _, err := websocket.DefaultDialer.Dial(wsURL+"/realtime?token="+farToken, nil)
	if err != nil {
		t.Fatalf("far volunteer dial failed: %v", err)
	}
	defer farWs.Close()

	// wait for both registrations before creating the request
	deadline := time.Now().Add(2 * time.Second)
	for f.presence.Online() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for presence registrations")
		}
		time.Sleep(10 * time.Millisecond)
	}

	res := f.do(t, http.MethodPost, "/api/v1/requests", requesterToken, createBody())
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", res.Code, res.Body.String())
	}

	nearWs.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event neighbournet.Event
	if err := nearWs.ReadJSON(&event); err != nil {
		t.Fatalf("near volunteer did not receive event: %v", err)
	}
	if event.Kind != neighbournet.EventNearbyRequest {
		t.Fatalf("expected %s, got %s", neighbournet.EventNearbyRequest, event.Kind)
	}

	farWs.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var unexpected neighbournet.Event
	if err := farWs.ReadJSON(&unexpected); err == nil {
		t.Fatalf("far volunteer must not receive events, got %+v", unexpected)
	}
}

func TestRealtimeTeardownAfterAbruptClose(t *testing.T) {
	f := newFixture(t)
	token := f.seedActor(t, "vol-1", domain.RoleVolunteer, nil)

	server := httptest.NewServer(f.e)
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	ws, _, err := websocket.DefaultDialer.Dial(wsURL+"/realtime?token="+token, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for f.presence.Online() < 1 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for registration")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// drop the connection without a close handshake; both server-side
	// goroutines must still unwind and release the presence entry
	ws.Close()

	deadline = time.Now().Add(2 * time.Second)
	for f.presence.Online() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("presence entry leaked after abrupt disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRealtimeRejectsBadToken(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/realtime?token=garbage", nil)
	res := httptest.NewRecorder()
	f.e.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", res.Code)
	}
}
