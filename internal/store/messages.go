package store

import (
	"database/sql"
	"fmt"
	"time"
)

const (
	SenderHuman  = "human"
	SenderAgent  = "agent"
	SenderSystem = "system"
)

type Message struct {
	ID         int64     `json:"id"`
	SwarmID    string    `json:"swarm_id"`
	SenderKind string    `json:"sender_kind"`
	SenderID   string    `json:"sender_id,omitempty"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *Store) SaveMessage(msg *Message) error {
	var senderID any
	if msg.SenderID != "" {
		senderID = msg.SenderID
	}
	result, err := s.db.Exec(`
		INSERT INTO messages (swarm_id, sender_kind, sender_id, content)
		VALUES (?, ?, ?, ?)`,
		msg.SwarmID, msg.SenderKind, senderID, msg.Content)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	msg.ID, _ = result.LastInsertId()
	return nil
}

// GetSwarmMessages returns the most recent messages in chronological order.
func (s *Store) GetSwarmMessages(swarmID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, swarm_id, sender_kind, sender_id, content, created_at
		FROM messages
		WHERE swarm_id = ?
		ORDER BY id DESC
		LIMIT ?`, swarmID, limit)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var senderID sql.NullString
		if err := rows.Scan(&m.ID, &m.SwarmID, &m.SenderKind, &senderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.SenderID = senderID.String
		messages = append(messages, m)
	}

	// Reverse to get chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, rows.Err()
}
