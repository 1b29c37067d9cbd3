package store

import (
	"fmt"
	"time"
)

type ContextBlock struct {
	ID           string    `json:"id"`
	SwarmID      string    `json:"swarm_id"`
	Name         string    `json:"name"`
	Content      string    `json:"content"`
	Priority     string    `json:"priority"`
	SwarmVisible bool      `json:"swarm_visible"`
	CreatedAt    time.Time `json:"created_at"`
}

func (s *Store) SaveContextBlock(cb *ContextBlock) error {
	_, err := s.db.Exec(`
		INSERT INTO context_blocks (id, swarm_id, name, content, priority, swarm_visible)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			content = excluded.content,
			priority = excluded.priority,
			swarm_visible = excluded.swarm_visible`,
		cb.ID, cb.SwarmID, cb.Name, cb.Content, cb.Priority, boolToInt(cb.SwarmVisible))
	if err != nil {
		return fmt.Errorf("save context block: %w", err)
	}
	return nil
}

// GetSwarmContextBlocks returns the swarm-visible blocks in creation order.
// Priority ordering for prompt assembly is the prompt package's concern.
func (s *Store) GetSwarmContextBlocks(swarmID string) ([]ContextBlock, error) {
	rows, err := s.db.Query(`
		SELECT id, swarm_id, name, content, priority, swarm_visible, created_at
		FROM context_blocks
		WHERE swarm_id = ? AND swarm_visible = 1
		ORDER BY created_at`, swarmID)
	if err != nil {
		return nil, fmt.Errorf("get context blocks: %w", err)
	}
	defer rows.Close()

	var blocks []ContextBlock
	for rows.Next() {
		var cb ContextBlock
		var visible int
		if err := rows.Scan(&cb.ID, &cb.SwarmID, &cb.Name, &cb.Content, &cb.Priority, &visible, &cb.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan context block: %w", err)
		}
		cb.SwarmVisible = visible == 1
		blocks = append(blocks, cb)
	}
	return blocks, rows.Err()
}

func (s *Store) DeleteContextBlock(id string) error {
	_, err := s.db.Exec(`DELETE FROM context_blocks WHERE id = ?`, id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
