package store

import (
	"database/sql"
	"fmt"
	"time"
)

type Swarm struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Task      string    `json:"task,omitempty"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Store) SaveSwarm(sw *Swarm) error {
	_, err := s.db.Exec(`
		INSERT INTO swarms (id, name, task, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			task = excluded.task,
			updated_at = CURRENT_TIMESTAMP`,
		sw.ID, sw.Name, sw.Task, sw.OwnerID)
	if err != nil {
		return fmt.Errorf("save swarm: %w", err)
	}
	return nil
}

func (s *Store) GetSwarm(id string) (*Swarm, error) {
	sw := &Swarm{}
	var task sql.NullString
	err := s.db.QueryRow(`SELECT id, name, task, owner_id, created_at, updated_at FROM swarms WHERE id = ?`, id).
		Scan(&sw.ID, &sw.Name, &task, &sw.OwnerID, &sw.CreatedAt, &sw.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get swarm: %w", err)
	}
	sw.Task = task.String
	return sw, nil
}

func (s *Store) ListSwarms(ownerID string) ([]Swarm, error) {
	rows, err := s.db.Query(`SELECT id, name, task, owner_id, created_at, updated_at FROM swarms WHERE owner_id = ? ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list swarms: %w", err)
	}
	defer rows.Close()

	var swarms []Swarm
	for rows.Next() {
		var sw Swarm
		var task sql.NullString
		if err := rows.Scan(&sw.ID, &sw.Name, &task, &sw.OwnerID, &sw.CreatedAt, &sw.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan swarm: %w", err)
		}
		sw.Task = task.String
		swarms = append(swarms, sw)
	}
	return swarms, rows.Err()
}

func (s *Store) DeleteSwarm(id string) error {
	_, err := s.db.Exec(`DELETE FROM swarms WHERE id = ?`, id)
	return err
}
