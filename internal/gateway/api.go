package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mtzanidakis/swarmgate/internal/store"
)

func (s *Server) registerAPI(mux *http.ServeMux) {
	// Swarms
	mux.HandleFunc("GET /api/swarms", s.listSwarms)
	mux.HandleFunc("POST /api/swarms", s.createSwarm)
	mux.HandleFunc("GET /api/swarms/{id}", s.getSwarm)
	mux.HandleFunc("DELETE /api/swarms/{id}", s.deleteSwarm)

	// Agents
	mux.HandleFunc("GET /api/swarms/{id}/agents", s.listAgents)
	mux.HandleFunc("POST /api/swarms/{id}/agents", s.createAgent)
	mux.HandleFunc("DELETE /api/agents/{id}", s.deleteAgent)

	// Context blocks
	mux.HandleFunc("GET /api/swarms/{id}/contexts", s.listContexts)
	mux.HandleFunc("POST /api/swarms/{id}/contexts", s.createContext)
	mux.HandleFunc("DELETE /api/contexts/{id}", s.deleteContext)

	// Messages (the inference path reads history but never writes it;
	// callers append the exchange here)
	mux.HandleFunc("GET /api/swarms/{id}/messages", s.listMessages)
	mux.HandleFunc("POST /api/swarms/{id}/messages", s.createMessage)

	// Credentials (API keys, stored encrypted; values never leave the server)
	mux.HandleFunc("GET /api/credentials", s.listCredentials)
	mux.HandleFunc("PUT /api/credentials/{provider}", s.putCredential)
	mux.HandleFunc("DELETE /api/credentials/{provider}", s.deleteCredential)

	// Usage
	mux.HandleFunc("GET /api/swarms/{id}/usage", s.getSwarmUsage)
	mux.HandleFunc("GET /api/swarms/{id}/usage/rollups", s.getSwarmRollups)

	// System
	mux.HandleFunc("GET /api/status", s.getStatus)
}

// ownedSwarm loads a swarm and checks tenant ownership in one step.
func (s *Server) ownedSwarm(w http.ResponseWriter, r *http.Request) *store.Swarm {
	swarm, err := s.store.GetSwarm(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return nil
	}
	if swarm == nil || swarm.OwnerID != userID(r) {
		jsonError(w, "swarm not found", http.StatusNotFound)
		return nil
	}
	return swarm
}

func (s *Server) listSwarms(w http.ResponseWriter, r *http.Request) {
	swarms, err := s.store.ListSwarms(userID(r))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, swarms)
}

func (s *Server) createSwarm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Task string `json:"task"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		jsonError(w, "name is required", http.StatusBadRequest)
		return
	}

	swarm := &store.Swarm{
		ID:      uuid.NewString(),
		Name:    req.Name,
		Task:    req.Task,
		OwnerID: userID(r),
	}
	if err := s.store.SaveSwarm(swarm); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, swarm)
}

func (s *Server) getSwarm(w http.ResponseWriter, r *http.Request) {
	swarm := s.ownedSwarm(w, r)
	if swarm == nil {
		return
	}
	agents, err := s.store.ListSwarmAgents(swarm.ID)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]any{"swarm": swarm, "agents": agents})
}

func (s *Server) deleteSwarm(w http.ResponseWriter, r *http.Request) {
	swarm := s.ownedSwarm(w, r)
	if swarm == nil {
		return
	}
	if err := s.store.DeleteSwarm(swarm.ID); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"})
}

func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	swarm := s.ownedSwarm(w, r)
	if swarm == nil {
		return
	}
	agents, err := s.store.ListSwarmAgents(swarm.ID)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, agents)
}

func (s *Server) createAgent(w http.ResponseWriter, r *http.Request) {
	swarm := s.ownedSwarm(w, r)
	if swarm == nil {
		return
	}

	var req struct {
		Name         string          `json:"name"`
		Role         string          `json:"role"`
		Framework    string          `json:"framework"`
		Model        string          `json:"model"`
		SystemPrompt string          `json:"system_prompt"`
		Settings     json.RawMessage `json:"settings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		jsonError(w, "name is required", http.StatusBadRequest)
		return
	}
	if _, err := s.providers.Get(req.Framework); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	agent := &store.Agent{
		ID:           uuid.NewString(),
		SwarmID:      swarm.ID,
		Name:         req.Name,
		Role:         req.Role,
		Framework:    req.Framework,
		Model:        req.Model,
		SystemPrompt: req.SystemPrompt,
		Settings:     req.Settings,
		OwnerID:      userID(r),
	}
	if err := s.store.SaveAgent(agent); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, agent)
}

func (s *Server) deleteAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := s.store.GetAgent(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if agent == nil || agent.OwnerID != userID(r) {
		jsonError(w, "agent not found", http.StatusNotFound)
		return
	}
	if err := s.store.DeleteAgent(agent.ID); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"})
}

func (s *Server) listContexts(w http.ResponseWriter, r *http.Request) {
	swarm := s.ownedSwarm(w, r)
	if swarm == nil {
		return
	}
	blocks, err := s.store.GetSwarmContextBlocks(swarm.ID)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, blocks)
}

func (s *Server) createContext(w http.ResponseWriter, r *http.Request) {
	swarm := s.ownedSwarm(w, r)
	if swarm == nil {
		return
	}

	var req struct {
		Name     string `json:"name"`
		Content  string `json:"content"`
		Priority string `json:"priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		jsonError(w, "name is required", http.StatusBadRequest)
		return
	}
	if req.Priority == "" {
		req.Priority = "medium"
	}

	block := &store.ContextBlock{
		ID:           uuid.NewString(),
		SwarmID:      swarm.ID,
		Name:         req.Name,
		Content:      req.Content,
		Priority:     req.Priority,
		SwarmVisible: true,
	}
	if err := s.store.SaveContextBlock(block); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, block)
}

func (s *Server) deleteContext(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteContextBlock(r.PathValue("id")); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"})
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	swarm := s.ownedSwarm(w, r)
	if swarm == nil {
		return
	}
	limit := queryInt(r, "limit", 100)
	messages, err := s.store.GetSwarmMessages(swarm.ID, limit)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, messages)
}

func (s *Server) createMessage(w http.ResponseWriter, r *http.Request) {
	swarm := s.ownedSwarm(w, r)
	if swarm == nil {
		return
	}

	var req struct {
		SenderKind string `json:"sender_kind"`
		SenderID   string `json:"sender_id"`
		Content    string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		jsonError(w, "content is required", http.StatusBadRequest)
		return
	}
	switch req.SenderKind {
	case "":
		req.SenderKind = store.SenderHuman
	case store.SenderHuman, store.SenderAgent, store.SenderSystem:
	default:
		jsonError(w, "sender_kind must be one of human, agent, system", http.StatusBadRequest)
		return
	}

	msg := &store.Message{
		SwarmID:    swarm.ID,
		SenderKind: req.SenderKind,
		SenderID:   req.SenderID,
		Content:    req.Content,
	}
	if err := s.store.SaveMessage(msg); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, msg)
}

func (s *Server) listCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := s.store.ListCredentials(userID(r))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, creds)
}

func (s *Server) putCredential(w http.ResponseWriter, r *http.Request) {
	providerName := r.PathValue("provider")
	if _, err := s.providers.Get(providerName); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.APIKey == "" {
		jsonError(w, "api_key is required", http.StatusBadRequest)
		return
	}

	value, nonce, err := s.vault.EncryptKey(req.APIKey)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	cred := &store.Credential{
		ID:       uuid.NewString(),
		OwnerID:  userID(r),
		Provider: providerName,
		Value:    value,
		Nonce:    nonce,
	}
	if err := s.store.SaveCredential(cred); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "saved", "provider": providerName})
}

func (s *Server) deleteCredential(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteCredential(userID(r), r.PathValue("provider")); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"})
}

func (s *Server) getSwarmUsage(w http.ResponseWriter, r *http.Request) {
	swarm := s.ownedSwarm(w, r)
	if swarm == nil {
		return
	}
	limit := queryInt(r, "limit", 50)
	records, err := s.store.GetSwarmUsage(swarm.ID, limit)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, records)
}

func (s *Server) getSwarmRollups(w http.ResponseWriter, r *http.Request) {
	swarm := s.ownedSwarm(w, r)
	if swarm == nil {
		return
	}
	limit := queryInt(r, "limit", 30)
	rollups, err := s.store.ListRollups(swarm.ID, limit)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, rollups)
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]any{
		"status":    "ok",
		"version":   s.version,
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
		"providers": s.providers.Frameworks(),
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
