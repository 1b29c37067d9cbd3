package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mtzanidakis/swarmgate/internal/apierr"
	"github.com/mtzanidakis/swarmgate/internal/natsbus"
	"github.com/mtzanidakis/swarmgate/internal/pricing"
	"github.com/mtzanidakis/swarmgate/internal/prompt"
	"github.com/mtzanidakis/swarmgate/internal/provider"
	"github.com/mtzanidakis/swarmgate/internal/store"
	"github.com/mtzanidakis/swarmgate/internal/stream"
)

const (
	defaultMaxTokens   = 2048
	defaultTemperature = 0.7
)

type chatRequest struct {
	SwarmID     string   `json:"swarm_id"`
	Message     string   `json:"message"`
	AgentID     string   `json:"agent_id,omitempty"`
	HumanMode   string   `json:"human_mode,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// handleChat drives one inference request end to end: validate, resolve the
// swarm and agent, open the provider stream, and pump it back as canonical
// SSE. Exactly one usage record is written no matter which stage fails.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	owner := userID(r)

	rec := &store.UsageRecord{ID: uuid.NewString(), UserID: owner}

	// fail writes the single final error row and the JSON error response.
	// Only valid before the pending row is inserted.
	fail := func(e *apierr.Error) {
		rec.ErrorCode = string(e.Code)
		rec.ErrorMessage = e.Message
		rec.LatencyMS = time.Since(start).Milliseconds()
		s.recorder.RecordFailure(rec)
		if rec.SwarmID != "" {
			s.publishEvent(natsbus.TopicChatFailed(rec.SwarmID), map[string]any{
				"usage_id": rec.ID,
				"code":     string(e.Code),
			})
		}
		apiError(w, e)
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(apierr.Validation("invalid request body: %v", err))
		return
	}
	rec.SwarmID = req.SwarmID

	if aerr := validateChatRequest(&req); aerr != nil {
		fail(aerr)
		return
	}

	swarm, err := s.store.GetSwarm(req.SwarmID)
	if err != nil {
		fail(apierr.Internal("load swarm: %v", err))
		return
	}
	if swarm == nil || swarm.OwnerID != owner {
		fail(apierr.NotFound("swarm %s not found", req.SwarmID))
		return
	}

	roster, err := s.store.ListSwarmAgents(swarm.ID)
	if err != nil {
		fail(apierr.Internal("load agents: %v", err))
		return
	}
	if len(roster) == 0 {
		fail(apierr.Validation("swarm %s has no agents", swarm.ID))
		return
	}

	agent, aerr := chooseAgent(roster, req.AgentID, s.pickAgent)
	if aerr != nil {
		fail(aerr)
		return
	}
	rec.AgentID = agent.ID
	rec.Provider = agent.Framework

	adapter, err := s.providers.Get(agent.Framework)
	if err != nil {
		fail(apierr.Internal("agent %s: %v", agent.ID, err))
		return
	}

	cred, err := s.store.GetCredential(owner, agent.Framework)
	if err != nil {
		fail(apierr.Internal("load credential: %v", err))
		return
	}
	if cred == nil {
		fail(apierr.New(apierr.CodeMissingAPIKey, "no API key stored for provider %s", agent.Framework))
		return
	}
	apiKey, err := s.vault.DecryptKey(cred.Value, cred.Nonce)
	if err != nil {
		fail(apierr.Internal("decrypt credential: %v", err))
		return
	}

	params, aerr := s.buildParams(agent, adapter, swarm, roster, &req)
	if aerr != nil {
		fail(aerr)
		return
	}
	rec.Model = params.Model
	rec.InputTokens = estimateInput(params)
	rec.Metadata, _ = json.Marshal(map[string]any{
		"human_mode":  req.HumanMode,
		"max_tokens":  params.MaxTokens,
		"temperature": params.Temperature,
		"history_len": len(params.Messages) - 1,
	})

	// The pending row goes in before any network I/O so an interrupted
	// process still leaves an auditable trace.
	s.recorder.Begin(rec)
	s.publishEvent(natsbus.TopicChatStarted(swarm.ID), map[string]any{
		"usage_id":   rec.ID,
		"agent_id":   agent.ID,
		"agent_name": agent.Name,
		"model":      params.Model,
	})

	// failPending finalizes the already-inserted pending row.
	failPending := func(e *apierr.Error) {
		rec.Status = store.UsageError
		rec.ErrorCode = string(e.Code)
		rec.ErrorMessage = e.Message
		rec.LatencyMS = time.Since(start).Milliseconds()
		s.recorder.Finish(rec)
		s.publishEvent(natsbus.TopicChatFailed(swarm.ID), map[string]any{
			"usage_id": rec.ID,
			"code":     string(e.Code),
		})
	}

	body, aerr := s.openStream(r, adapter, apiKey, params)
	if aerr != nil {
		failPending(aerr)
		apiError(w, aerr)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Agent-Id", agent.ID)
	w.Header().Set("X-Agent-Name", url.QueryEscape(agent.Name))

	flusher, _ := w.(http.Flusher)
	flush := func() {}
	if flusher != nil {
		flush = flusher.Flush
	}

	var completed atomic.Bool
	norm := stream.New(adapter.ParseStreamLine, w, flush, func(fullText string) {
		completed.Store(true)
		s.finalizeSuccess(rec, agent.ID, swarm.ID, fullText, start)
	})

	s.pump(body, norm)

	if !completed.Load() {
		// Upstream or client dropped mid-stream; account what arrived.
		rec.OutputTokens = pricing.EstimateTokens(norm.FullText())
		rec.InputCost, rec.OutputCost = pricing.Cost(rec.Model, rec.InputTokens, rec.OutputTokens)
		failPending(apierr.Internal("stream interrupted"))
	}
}

func validateChatRequest(req *chatRequest) *apierr.Error {
	if _, err := uuid.Parse(req.SwarmID); err != nil {
		return apierr.Validation("swarm_id must be a valid UUID")
	}
	if strings.TrimSpace(req.Message) == "" {
		return apierr.Validation("message must not be empty")
	}
	if req.AgentID != "" {
		if _, err := uuid.Parse(req.AgentID); err != nil {
			return apierr.Validation("agent_id must be a valid UUID")
		}
	}
	switch req.HumanMode {
	case "":
		req.HumanMode = prompt.ModeObserve
	case prompt.ModeObserve, prompt.ModeCollaborate, prompt.ModeDirect:
	default:
		return apierr.Validation("human_mode must be one of observe, collaborate, direct")
	}
	if req.MaxTokens < 0 {
		return apierr.Validation("max_tokens must not be negative")
	}
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2) {
		return apierr.Validation("temperature must be between 0 and 2")
	}
	return nil
}

// chooseAgent honors an explicit agent_id if it names a roster member and
// falls back to random selection otherwise.
func chooseAgent(roster []store.Agent, agentID string, pick func([]store.Agent) store.Agent) (store.Agent, *apierr.Error) {
	if agentID == "" {
		return pick(roster), nil
	}
	for _, a := range roster {
		if a.ID == agentID {
			return a, nil
		}
	}
	return store.Agent{}, apierr.Validation("agent %s is not in the swarm roster", agentID)
}

func (s *Server) buildParams(agent store.Agent, adapter provider.Adapter, swarm *store.Swarm, roster []store.Agent, req *chatRequest) (provider.RequestParams, *apierr.Error) {
	blocks, err := s.store.GetSwarmContextBlocks(swarm.ID)
	if err != nil {
		return provider.RequestParams{}, apierr.Internal("load context blocks: %v", err)
	}
	history, err := s.store.GetSwarmMessages(swarm.ID, prompt.HistoryLimit)
	if err != nil {
		return provider.RequestParams{}, apierr.Internal("load messages: %v", err)
	}

	names := make(map[string]string, len(roster))
	for _, a := range roster {
		names[a.ID] = a.Name
	}

	messages := prompt.BuildHistory(history, names)
	messages = append(messages, provider.ChatMessage{Role: "user", Content: req.Message})

	model := agent.Model
	if model == "" {
		model = adapter.DefaultModel()
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	temperature := defaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	return provider.RequestParams{
		Model:        model,
		SystemPrompt: prompt.AssembleSystemPrompt(&agent, blocks, swarm.Task, req.HumanMode),
		Messages:     messages,
		MaxTokens:    maxTokens,
		Temperature:  temperature,
	}, nil
}

// openStream dispatches the provider request under the connect timeout. The
// timeout covers only the handshake; once response headers arrive the stream
// may run as long as the provider keeps sending.
func (s *Server) openStream(r *http.Request, adapter provider.Adapter, apiKey string, params provider.RequestParams) (io.ReadCloser, *apierr.Error) {
	ctx, cancel := context.WithCancel(r.Context())

	var timedOut atomic.Bool
	timer := time.AfterFunc(s.cfg.ConnectTimeout, func() {
		timedOut.Store(true)
		cancel()
	})

	body, err := provider.Open(ctx, s.client, adapter, apiKey, params)
	timer.Stop()
	if err != nil {
		cancel()
		if timedOut.Load() {
			return nil, apierr.New(apierr.CodeTimeout, "%s did not respond within %s", adapter.Name(), s.cfg.ConnectTimeout)
		}
		return nil, apierr.From(err)
	}
	return &cancelOnClose{ReadCloser: body, cancel: cancel}, nil
}

// pump copies the provider body into the normalizer until EOF or error.
func (s *Server) pump(body io.Reader, norm *stream.Normalizer) {
	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if werr := norm.Feed(buf[:n]); werr != nil {
				slog.Debug("client write failed", "error", werr)
				return
			}
		}
		if err == io.EOF {
			if cerr := norm.Close(); cerr != nil {
				slog.Debug("client write failed", "error", cerr)
			}
			return
		}
		if err != nil {
			slog.Warn("provider stream read failed", "error", err)
			return
		}
	}
}

// finalizeSuccess closes out the usage record. Conversation history stays
// untouched: persisting the new exchange is the caller's job, through the
// messages API, so the inference path never mutates shared state it only
// read.
func (s *Server) finalizeSuccess(rec *store.UsageRecord, agentID, swarmID, fullText string, start time.Time) {
	rec.Status = store.UsageSuccess
	rec.OutputTokens = pricing.EstimateTokens(fullText)
	rec.InputCost, rec.OutputCost = pricing.Cost(rec.Model, rec.InputTokens, rec.OutputTokens)
	rec.LatencyMS = time.Since(start).Milliseconds()
	s.recorder.Finish(rec)

	s.publishEvent(natsbus.TopicChatCompleted(swarmID), map[string]any{
		"usage_id":      rec.ID,
		"agent_id":      agentID,
		"output_tokens": rec.OutputTokens,
		"latency_ms":    rec.LatencyMS,
	})
}

func estimateInput(p provider.RequestParams) int {
	total := pricing.EstimateTokens(p.SystemPrompt)
	for _, m := range p.Messages {
		total += pricing.EstimateTokens(m.Content)
	}
	return total
}

// cancelOnClose ties the request context's lifetime to the body so the
// upstream connection is torn down when streaming ends.
type cancelOnClose struct {
	io.ReadCloser
	cancel func()
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
