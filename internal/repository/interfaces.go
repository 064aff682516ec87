package repository

import (
	"errors"
	"yorae/internal/model"
)

// SessionKey is the single storage key holding the active session.
const SessionKey = "yorae_session"

// ErrCorrupt is returned by Load when the stored record cannot be parsed.
var ErrCorrupt = errors.New("stored session is corrupt")

// SessionRepository persists the one active session record.
type SessionRepository interface {
	// Load returns the stored record, or nil when nothing is stored.
	Load() (*model.SessionRecord, error)
	Save(record *model.SessionRecord) error
	Clear() error
}
