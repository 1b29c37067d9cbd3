package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/mtzanidakis/swarmgate/internal/store"
)

func apiMux(srv *Server) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", srv.handleChat)
	srv.registerAPI(mux)
	return srv.withMiddleware(mux)
}

func TestSwarmAPICRUD(t *testing.T) {
	srv, _ := newTestServer(t, "http://unreachable.example")
	handler := apiMux(srv)

	// Create
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/swarms",
		strings.NewReader(`{"name":"Research","task":"dig"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("create swarm: %d %s", rr.Code, rr.Body.String())
	}
	var created store.Swarm
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if created.ID == "" || created.Name != "Research" {
		t.Fatalf("unexpected swarm: %+v", created)
	}

	// Add an agent
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/swarms/"+created.ID+"/agents",
		strings.NewReader(`{"name":"Scout","framework":"openai","role":"researcher"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("create agent: %d %s", rr.Code, rr.Body.String())
	}

	// Unknown framework is rejected
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/swarms/"+created.ID+"/agents",
		strings.NewReader(`{"name":"Bot","framework":"mistral"}`)))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown framework, got %d", rr.Code)
	}

	// Get returns swarm plus roster
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/swarms/"+created.ID, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("get swarm: %d", rr.Code)
	}
	var detail struct {
		Swarm  store.Swarm   `json:"swarm"`
		Agents []store.Agent `json:"agents"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &detail); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(detail.Agents) != 1 || detail.Agents[0].Name != "Scout" {
		t.Errorf("unexpected roster: %+v", detail.Agents)
	}

	// Delete
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/swarms/"+created.ID, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("delete swarm: %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/swarms/"+created.ID, nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rr.Code)
	}
}

func TestMessageAPIRoundTrip(t *testing.T) {
	srv, db := newTestServer(t, "http://unreachable.example")
	handler := apiMux(srv)

	swarmID := "33333333-3333-3333-3333-333333333333"
	_ = db.SaveSwarm(&store.Swarm{ID: swarmID, Name: "Chat", OwnerID: anonymousUser})

	// Append a human turn and an agent turn
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/swarms/"+swarmID+"/messages",
		strings.NewReader(`{"content":"hello there"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("post message: %d %s", rr.Code, rr.Body.String())
	}
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/swarms/"+swarmID+"/messages",
		strings.NewReader(`{"sender_kind":"agent","sender_id":"a1","content":"hi back"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("post agent message: %d %s", rr.Code, rr.Body.String())
	}

	// Empty content and unknown sender kinds are rejected
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/swarms/"+swarmID+"/messages",
		strings.NewReader(`{"content":"   "}`)))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for blank content, got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/swarms/"+swarmID+"/messages",
		strings.NewReader(`{"sender_kind":"robot","content":"x"}`)))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad sender_kind, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/swarms/"+swarmID+"/messages", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("list messages: %d", rr.Code)
	}
	var msgs []store.Message
	if err := json.Unmarshal(rr.Body.Bytes(), &msgs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].SenderKind != store.SenderHuman || msgs[0].Content != "hello there" {
		t.Errorf("unexpected first message: %+v", msgs[0])
	}
	if msgs[1].SenderKind != store.SenderAgent || msgs[1].SenderID != "a1" {
		t.Errorf("unexpected second message: %+v", msgs[1])
	}
}

func TestCredentialAPIDoesNotEchoKey(t *testing.T) {
	srv, _ := newTestServer(t, "http://unreachable.example")
	handler := apiMux(srv)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/api/credentials/openai",
		strings.NewReader(`{"api_key":"sk-very-secret"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("put credential: %d %s", rr.Code, rr.Body.String())
	}
	if strings.Contains(rr.Body.String(), "sk-very-secret") {
		t.Error("response echoes the API key")
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/credentials", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("list credentials: %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "sk-very-secret") {
		t.Error("listing exposes the API key")
	}

	// Unknown provider rejected
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/api/credentials/mistral",
		strings.NewReader(`{"api_key":"sk-x"}`)))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown provider, got %d", rr.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "http://unreachable.example")
	handler := apiMux(srv)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: %d", rr.Code)
	}
	var status struct {
		Status    string   `json:"status"`
		Version   string   `json:"version"`
		Providers []string `json:"providers"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &status); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if status.Status != "ok" || status.Version != "test" {
		t.Errorf("unexpected status: %+v", status)
	}
	if len(status.Providers) != 3 {
		t.Errorf("expected 3 providers, got %v", status.Providers)
	}
}

func TestAuthMiddleware(t *testing.T) {
	srv, _ := newTestServer(t, "http://unreachable.example")
	srv.cfg.AuthSecret = "test-secret"
	handler := apiMux(srv)

	// No token
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/swarms", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	// Garbage token
	req := httptest.NewRequest(http.MethodGet, "/api/swarms", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", rr.Code)
	}

	// Token signed with the wrong key
	wrong := signToken(t, "other-secret", "u1")
	req = httptest.NewRequest(http.MethodGet, "/api/swarms", nil)
	req.Header.Set("Authorization", "Bearer "+wrong)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong signature, got %d", rr.Code)
	}

	// Valid token
	valid := signToken(t, "test-secret", "u1")
	req = httptest.NewRequest(http.MethodGet, "/api/swarms", nil)
	req.Header.Set("Authorization", "Bearer "+valid)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d: %s", rr.Code, rr.Body.String())
	}

	// OPTIONS preflight bypasses auth
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/api/swarms", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for preflight, got %d", rr.Code)
	}
}

func TestAuthScopesTenants(t *testing.T) {
	srv, db := newTestServer(t, "http://unreachable.example")
	srv.cfg.AuthSecret = "test-secret"
	handler := apiMux(srv)

	_ = db.SaveSwarm(&store.Swarm{ID: "11111111-1111-1111-1111-111111111111", Name: "Alpha", OwnerID: "u1"})
	_ = db.SaveSwarm(&store.Swarm{ID: "22222222-2222-2222-2222-222222222222", Name: "Beta", OwnerID: "u2"})

	req := httptest.NewRequest(http.MethodGet, "/api/swarms", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "test-secret", "u1"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("list swarms: %d", rr.Code)
	}

	var swarms []store.Swarm
	if err := json.Unmarshal(rr.Body.Bytes(), &swarms); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(swarms) != 1 || swarms[0].Name != "Alpha" {
		t.Errorf("expected only u1's swarm, got %+v", swarms)
	}
}

func signToken(t *testing.T, secret, sub string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestChatViaRouterUsesPOSTOnly(t *testing.T) {
	srv, _ := newTestServer(t, "http://unreachable.example")
	handler := apiMux(srv)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/chat", nil))
	if rr.Code != http.StatusMethodNotAllowed && rr.Code != http.StatusNotFound {
		t.Errorf("expected method rejection for GET /api/chat, got %d", rr.Code)
	}
}
