package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pesio-ai/campustrade-client/internal/logger"
	"github.com/pesio-ai/campustrade-client/pkg/sealbox"
)

// SessionKey is the fixed name of the persisted session record
const SessionKey = "user"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrCorruptSession  = errors.New("corrupt session record")
)

// SessionRepository persists the session record, sealed when a passphrase is set
type SessionRepository struct {
	store      Store
	passphrase string
	params     *sealbox.Params
	log        *logger.Logger
}

func NewSessionRepository(store Store, passphrase string, log *logger.Logger) *SessionRepository {
	return &SessionRepository{
		store:      store,
		passphrase: passphrase,
		params:     sealbox.DefaultParams(),
		log:        log,
	}
}

// WithSealParams overrides the key derivation parameters for new records
func (r *SessionRepository) WithSealParams(params *sealbox.Params) *SessionRepository {
	r.params = params
	return r
}

// Load reads the persisted session. A record that cannot be opened or
// does not decode to an object with a token field yields ErrCorruptSession.
func (r *SessionRepository) Load(ctx context.Context) (*Session, error) {
	data, err := r.store.Get(ctx, SessionKey)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if sealbox.IsSealed(data) {
		if r.passphrase == "" {
			return nil, fmt.Errorf("%w: record is sealed and no passphrase is configured", ErrCorruptSession)
		}
		data, err = sealbox.Open(string(data), r.passphrase)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptSession, err)
		}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSession, err)
	}
	var token string
	if err := json.Unmarshal(fields["token"], &token); err != nil {
		return nil, fmt.Errorf("%w: missing token field", ErrCorruptSession)
	}

	session := &Session{}
	if err := json.Unmarshal(data, session); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSession, err)
	}
	return session, nil
}

// Save persists the session
func (r *SessionRepository) Save(ctx context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if r.passphrase != "" {
		sealed, err := sealbox.Seal(data, r.passphrase, r.params)
		if err != nil {
			return fmt.Errorf("failed to seal session: %w", err)
		}
		data = []byte(sealed)
	}

	if err := r.store.Set(ctx, SessionKey, data); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Clear removes the persisted session
func (r *SessionRepository) Clear(ctx context.Context) error {
	if err := r.store.Delete(ctx, SessionKey); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
