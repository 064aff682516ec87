package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"yorae/internal/model"
	"yorae/internal/repository"
)

// SessionRepository stores the active session as JSON under a fixed key.
type SessionRepository struct {
	db  *DB
	key string
}

// NewSessionRepository creates a repository bound to repository.SessionKey.
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db, key: repository.SessionKey}
}

// Load returns the stored record, nil when absent, or an error wrapping
// repository.ErrCorrupt when the stored text does not parse.
func (r *SessionRepository) Load() (*model.SessionRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var value string
	err := r.db.Conn().QueryRow(`SELECT value FROM kv_store WHERE key = ?`, r.key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var record model.SessionRecord
	if err := json.Unmarshal([]byte(value), &record); err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrCorrupt, err)
	}
	return &record, nil
}

// Save replaces the stored record.
func (r *SessionRepository) Save(record *model.SessionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	r.db.Lock()
	defer r.db.Unlock()

	_, err = r.db.Conn().Exec(`
		INSERT INTO kv_store (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, r.key, string(data))
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Clear removes the stored record.
func (r *SessionRepository) Clear() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM kv_store WHERE key = ?`, r.key); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
