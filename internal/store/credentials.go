package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Credential is one user's API key for one provider family, stored encrypted.
// Value/Nonce are the vault ciphertext and are never serialized to JSON.
type Credential struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Provider  string    `json:"provider"`
	Value     []byte    `json:"-"`
	Nonce     []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Store) SaveCredential(c *Credential) error {
	_, err := s.db.Exec(`
		INSERT INTO credentials (id, owner_id, provider, value, nonce)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, provider) DO UPDATE SET
			value = excluded.value,
			nonce = excluded.nonce,
			updated_at = CURRENT_TIMESTAMP`,
		c.ID, c.OwnerID, c.Provider, c.Value, c.Nonce)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

func (s *Store) GetCredential(ownerID, provider string) (*Credential, error) {
	c := &Credential{}
	err := s.db.QueryRow(`
		SELECT id, owner_id, provider, value, nonce, created_at, updated_at
		FROM credentials WHERE owner_id = ? AND provider = ?`, ownerID, provider).
		Scan(&c.ID, &c.OwnerID, &c.Provider, &c.Value, &c.Nonce, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return c, nil
}

// ListCredentials returns credential metadata without ciphertext.
func (s *Store) ListCredentials(ownerID string) ([]Credential, error) {
	rows, err := s.db.Query(`
		SELECT id, owner_id, provider, created_at, updated_at
		FROM credentials WHERE owner_id = ? ORDER BY provider`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var creds []Credential
	for rows.Next() {
		var c Credential
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Provider, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

func (s *Store) DeleteCredential(ownerID, provider string) error {
	_, err := s.db.Exec(`DELETE FROM credentials WHERE owner_id = ? AND provider = ?`, ownerID, provider)
	return err
}
