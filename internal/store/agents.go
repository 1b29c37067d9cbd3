package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type Agent struct {
	ID           string          `json:"id"`
	SwarmID      string          `json:"swarm_id"`
	Name         string          `json:"name"`
	Role         string          `json:"role,omitempty"`
	Framework    string          `json:"framework"`
	Model        string          `json:"model,omitempty"`
	SystemPrompt string          `json:"system_prompt,omitempty"`
	Settings     json.RawMessage `json:"settings,omitempty"`
	OwnerID      string          `json:"owner_id"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (s *Store) SaveAgent(a *Agent) error {
	_, err := s.db.Exec(`
		INSERT INTO agents (id, swarm_id, name, role, framework, model, system_prompt, settings, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			swarm_id = excluded.swarm_id,
			name = excluded.name,
			role = excluded.role,
			framework = excluded.framework,
			model = excluded.model,
			system_prompt = excluded.system_prompt,
			settings = excluded.settings,
			updated_at = CURRENT_TIMESTAMP`,
		a.ID, a.SwarmID, a.Name, a.Role, a.Framework, a.Model, a.SystemPrompt, nullableJSON(a.Settings), a.OwnerID)
	if err != nil {
		return fmt.Errorf("save agent: %w", err)
	}
	return nil
}

func (s *Store) GetAgent(id string) (*Agent, error) {
	row := s.db.QueryRow(`
		SELECT id, swarm_id, name, role, framework, model, system_prompt, settings, owner_id, created_at, updated_at
		FROM agents WHERE id = ?`, id)
	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

// ListSwarmAgents returns the swarm's roster in creation order.
func (s *Store) ListSwarmAgents(swarmID string) ([]Agent, error) {
	rows, err := s.db.Query(`
		SELECT id, swarm_id, name, role, framework, model, system_prompt, settings, owner_id, created_at, updated_at
		FROM agents WHERE swarm_id = ? ORDER BY created_at, rowid`, swarmID)
	if err != nil {
		return nil, fmt.Errorf("list swarm agents: %w", err)
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

func (s *Store) DeleteAgent(id string) error {
	_, err := s.db.Exec(`DELETE FROM agents WHERE id = ?`, id)
	return err
}

func scanAgent(sc scanner) (*Agent, error) {
	a := &Agent{}
	var role, model, prompt, settings sql.NullString
	err := sc.Scan(&a.ID, &a.SwarmID, &a.Name, &role, &a.Framework, &model,
		&prompt, &settings, &a.OwnerID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Role = role.String
	a.Model = model.String
	a.SystemPrompt = prompt.String
	if settings.Valid {
		a.Settings = json.RawMessage(settings.String)
	}
	return a, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
