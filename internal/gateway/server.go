package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/mtzanidakis/swarmgate/internal/apierr"
	"github.com/mtzanidakis/swarmgate/internal/config"
	"github.com/mtzanidakis/swarmgate/internal/natsbus"
	"github.com/mtzanidakis/swarmgate/internal/provider"
	"github.com/mtzanidakis/swarmgate/internal/store"
	"github.com/mtzanidakis/swarmgate/internal/usage"
	"github.com/mtzanidakis/swarmgate/internal/vault"
	"github.com/nats-io/nats.go"
)

type Server struct {
	store     *store.Store
	vault     *vault.Vault
	providers *provider.Registry
	recorder  *usage.Recorder
	bus       *natsbus.Bus
	nats      *natsbus.Client
	hub       *Hub
	cfg       config.GatewayConfig
	client    *http.Client
	version   string
	startedAt time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewServer(s *store.Store, v *vault.Vault, reg *provider.Registry, rec *usage.Recorder, bus *natsbus.Bus, cfg config.GatewayConfig, version string) *Server {
	seed := cfg.SelectionSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Server{
		store:     s,
		vault:     v,
		providers: reg,
		recorder:  rec,
		bus:       bus,
		hub:       NewHub(),
		cfg:       cfg,
		client:    &http.Client{},
		version:   version,
		startedAt: time.Now(),
		rng:       rand.New(rand.NewSource(seed)),
	}
}

func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)
	s.subscribeEvents()

	mux := http.NewServeMux()

	// Inference
	mux.HandleFunc("POST /api/chat", s.handleChat)

	// Admin API
	s.registerAPI(mux)

	// WebSocket event feed
	mux.HandleFunc("/api/ws", s.handleWebSocket)

	handler := s.withMiddleware(mux)
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	server := &http.Server{Addr: addr, Handler: handler}

	go func() {
		<-ctx.Done()
		server.Close()
	}()

	slog.Info("gateway listening", "addr", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// pickAgent selects uniformly at random from the roster. The source is
// seedable so selection is reproducible in tests; randomness stands in for
// round-robin and needs no cross-request state.
func (s *Server) pickAgent(roster []store.Agent) store.Agent {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return roster[s.rng.Intn(len(roster))]
}

func (s *Server) subscribeEvents() {
	if s.bus == nil {
		return
	}
	client, err := natsbus.NewClient(s.bus)
	if err != nil {
		slog.Error("gateway nats client failed", "error", err)
		return
	}
	s.nats = client

	// Forward all event topics to WebSocket as raw JSON
	_, _ = client.Subscribe(natsbus.TopicEventsAll, func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil || event.Type == "" {
			// Usage events are flat records; wrap them.
			event = Event{Type: msg.Subject, Payload: json.RawMessage(msg.Data)}
		}
		s.hub.Broadcast(event)
	})
}

func (s *Server) publishEvent(topic string, data map[string]any) {
	if s.nats == nil {
		return
	}
	event := map[string]any{
		"type":      topic,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"data":      data,
	}
	if err := s.nats.PublishJSON(topic, event); err != nil {
		slog.Warn("event publish failed", "topic", topic, "error", err)
	}
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// apiError renders a taxonomy error as the single JSON error object contract.
func apiError(w http.ResponseWriter, e *apierr.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status())
	json.NewEncoder(w).Encode(map[string]string{
		"error": e.Message,
		"code":  string(e.Code),
	})
}
