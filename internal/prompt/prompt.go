// Package prompt assembles the system prompt and the bounded conversation
// history handed to a provider adapter. Everything here is deterministic and
// pure; ordering is a contract other components rely on.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mtzanidakis/swarmgate/internal/provider"
	"github.com/mtzanidakis/swarmgate/internal/store"
)

// HistoryLimit caps how many conversation turns survive into the provider
// request. Older history is silently dropped, never summarized.
const HistoryLimit = 20

const (
	ModeObserve     = "observe"
	ModeCollaborate = "collaborate"
	ModeDirect      = "direct"
)

var priorityRank = map[string]int{
	"critical": 0,
	"high":     1,
	"medium":   2,
	"low":      3,
}

const responseGuidelines = `## Response Guidelines
Stay in character. Keep responses focused on the swarm's task. When other
agents have already covered a point, build on it instead of repeating it.`

// AssembleSystemPrompt composes the agent's system prompt. The composition
// order is fixed: persona, role, swarm task, human-mode instructions, shared
// context blocks (critical first), closing guidelines. Context intentionally
// comes after task framing so the task grounds the agent before supplementary
// facts arrive.
func AssembleSystemPrompt(agent *store.Agent, blocks []store.ContextBlock, swarmTask, humanMode string) string {
	var sb strings.Builder

	if agent.SystemPrompt != "" {
		sb.WriteString(agent.SystemPrompt)
	} else {
		fmt.Fprintf(&sb, "You are %s, an AI agent collaborating in a swarm.", agent.Name)
	}

	if agent.Role != "" {
		fmt.Fprintf(&sb, "\n\nYour role: %s", agent.Role)
	}

	if swarmTask != "" {
		fmt.Fprintf(&sb, "\n\n## Swarm Task\n%s", swarmTask)
	}

	switch humanMode {
	case ModeCollaborate:
		sb.WriteString("\n\n## Human Interaction\nA human is collaborating in this conversation. Treat their input as a peer contribution and weigh it alongside other agents'.")
	case ModeDirect:
		sb.WriteString("\n\n## Human Interaction\nA human is directing this conversation. Their instructions take precedence over other agents' suggestions.")
	}
	// observe adds nothing: the human is only watching.

	for _, b := range sortBlocks(blocks) {
		fmt.Fprintf(&sb, "\n\n## %s\n%s", b.Name, b.Content)
	}

	sb.WriteString("\n\n")
	sb.WriteString(responseGuidelines)
	return sb.String()
}

// sortBlocks orders context blocks critical-first with stable ties.
func sortBlocks(blocks []store.ContextBlock) []store.ContextBlock {
	sorted := make([]store.ContextBlock, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return rank(sorted[i].Priority) < rank(sorted[j].Priority)
	})
	return sorted
}

func rank(priority string) int {
	if r, ok := priorityRank[priority]; ok {
		return r
	}
	return len(priorityRank)
}

// BuildHistory flattens swarm conversation history into the canonical two-role
// format. At most the last HistoryLimit messages survive, oldest first.
// Sender attribution is preserved with a bracketed prefix so multi-agent
// conversations stay readable after flattening.
func BuildHistory(messages []store.Message, agentNames map[string]string) []provider.ChatMessage {
	if len(messages) > HistoryLimit {
		messages = messages[len(messages)-HistoryLimit:]
	}

	out := make([]provider.ChatMessage, 0, len(messages))
	for _, m := range messages {
		switch m.SenderKind {
		case store.SenderAgent:
			name := agentNames[m.SenderID]
			if name == "" {
				name = "Agent"
			}
			out = append(out, provider.ChatMessage{
				Role:    "assistant",
				Content: fmt.Sprintf("[%s]: %s", name, m.Content),
			})
		case store.SenderSystem:
			out = append(out, provider.ChatMessage{
				Role:    "user",
				Content: "[System]: " + m.Content,
			})
		default: // human
			out = append(out, provider.ChatMessage{
				Role:    "user",
				Content: m.Content,
			})
		}
	}
	return out
}
