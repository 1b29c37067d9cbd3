package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	UsagePending = "pending"
	UsageSuccess = "success"
	UsageError   = "error"
)

// UsageRecord is one row in the append-only usage ledger. A record is inserted
// in pending state before the provider call and finalized exactly once.
type UsageRecord struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	SwarmID      string          `json:"swarm_id,omitempty"`
	AgentID      string          `json:"agent_id,omitempty"`
	Provider     string          `json:"provider,omitempty"`
	Model        string          `json:"model,omitempty"`
	InputTokens  int             `json:"input_tokens"`
	OutputTokens int             `json:"output_tokens"`
	InputCost    float64         `json:"input_cost"`
	OutputCost   float64         `json:"output_cost"`
	LatencyMS    int64           `json:"latency_ms"`
	Status       string          `json:"status"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (s *Store) InsertUsage(u *UsageRecord) error {
	if u.Status == "" {
		u.Status = UsagePending
	}
	_, err := s.db.Exec(`
		INSERT INTO usage_records (id, user_id, swarm_id, agent_id, provider, model,
			input_tokens, output_tokens, input_cost, output_cost, latency_ms,
			status, error_code, error_message, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.UserID, nullStr(u.SwarmID), nullStr(u.AgentID), nullStr(u.Provider), nullStr(u.Model),
		u.InputTokens, u.OutputTokens, u.InputCost, u.OutputCost, u.LatencyMS,
		u.Status, nullStr(u.ErrorCode), nullStr(u.ErrorMessage), nullableJSON(u.Metadata))
	if err != nil {
		return fmt.Errorf("insert usage: %w", err)
	}
	return nil
}

// FinalizeUsage moves a pending record to success/error. The status guard makes
// the transition idempotent: a record is never finalized twice.
func (s *Store) FinalizeUsage(u *UsageRecord) error {
	res, err := s.db.Exec(`
		UPDATE usage_records SET
			input_tokens = ?, output_tokens = ?, input_cost = ?, output_cost = ?,
			latency_ms = ?, status = ?, error_code = ?, error_message = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'pending'`,
		u.InputTokens, u.OutputTokens, u.InputCost, u.OutputCost,
		u.LatencyMS, u.Status, nullStr(u.ErrorCode), nullStr(u.ErrorMessage), u.ID)
	if err != nil {
		return fmt.Errorf("finalize usage: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("finalize usage: record %s not pending", u.ID)
	}
	return nil
}

func (s *Store) GetUsageRecord(id string) (*UsageRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, swarm_id, agent_id, provider, model,
			input_tokens, output_tokens, input_cost, output_cost, latency_ms,
			status, error_code, error_message, metadata, created_at, updated_at
		FROM usage_records WHERE id = ?`, id)
	u, err := scanUsage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get usage record: %w", err)
	}
	return u, nil
}

func (s *Store) GetSwarmUsage(swarmID string, limit int) ([]UsageRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT id, user_id, swarm_id, agent_id, provider, model,
			input_tokens, output_tokens, input_cost, output_cost, latency_ms,
			status, error_code, error_message, metadata, created_at, updated_at
		FROM usage_records
		WHERE swarm_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, swarmID, limit)
	if err != nil {
		return nil, fmt.Errorf("get swarm usage: %w", err)
	}
	defer rows.Close()

	var records []UsageRecord
	for rows.Next() {
		u, err := scanUsage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan usage record: %w", err)
		}
		records = append(records, *u)
	}
	return records, rows.Err()
}

func scanUsage(sc scanner) (*UsageRecord, error) {
	u := &UsageRecord{}
	var swarmID, agentID, provider, model, errCode, errMsg, metadata sql.NullString
	err := sc.Scan(&u.ID, &u.UserID, &swarmID, &agentID, &provider, &model,
		&u.InputTokens, &u.OutputTokens, &u.InputCost, &u.OutputCost, &u.LatencyMS,
		&u.Status, &errCode, &errMsg, &metadata, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.SwarmID = swarmID.String
	u.AgentID = agentID.String
	u.Provider = provider.String
	u.Model = model.String
	u.ErrorCode = errCode.String
	u.ErrorMessage = errMsg.String
	if metadata.Valid {
		u.Metadata = json.RawMessage(metadata.String)
	}
	return u, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type UsageRollup struct {
	Day          string  `json:"day"`
	SwarmID      string  `json:"swarm_id"`
	Requests     int     `json:"requests"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

// RollupUsageSince recomputes daily per-swarm aggregates from the ledger for
// every day touched on or after since. Finalized records only.
func (s *Store) RollupUsageSince(since time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO usage_rollups (day, swarm_id, requests, input_tokens, output_tokens, cost)
		SELECT date(created_at), swarm_id, COUNT(*),
			SUM(input_tokens), SUM(output_tokens), SUM(input_cost + output_cost)
		FROM usage_records
		WHERE swarm_id IS NOT NULL AND status != 'pending' AND created_at >= ?
		GROUP BY date(created_at), swarm_id
		ON CONFLICT(day, swarm_id) DO UPDATE SET
			requests = excluded.requests,
			input_tokens = excluded.input_tokens,
			output_tokens = excluded.output_tokens,
			cost = excluded.cost`,
		since.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return fmt.Errorf("rollup usage: %w", err)
	}
	return nil
}

func (s *Store) ListRollups(swarmID string, limit int) ([]UsageRollup, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.db.Query(`
		SELECT day, swarm_id, requests, input_tokens, output_tokens, cost
		FROM usage_rollups
		WHERE swarm_id = ?
		ORDER BY day DESC
		LIMIT ?`, swarmID, limit)
	if err != nil {
		return nil, fmt.Errorf("list rollups: %w", err)
	}
	defer rows.Close()

	var rollups []UsageRollup
	for rows.Next() {
		var r UsageRollup
		if err := rows.Scan(&r.Day, &r.SwarmID, &r.Requests, &r.InputTokens, &r.OutputTokens, &r.Cost); err != nil {
			return nil, fmt.Errorf("scan rollup: %w", err)
		}
		rollups = append(rollups, r)
	}
	return rollups, rows.Err()
}
