package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/chative-retail/agent/contract"
)

var (
	ErrSessionNotFound  = contractx.ErrSessionNotFound
	ErrStoreUnavailable = contractx.ErrStoreUnavailable
)

const (
	DefaultKeyPrefix = "session:"
	DefaultTTL       = time.Hour
)

// Store is the session persistence contract used by the orchestrator and the HTTP layer.
type Store interface {
	Create(ctx context.Context, sessionID, customerID, channel string) (*Session, error)
	Get(ctx context.Context, sessionID string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	GetOrCreate(ctx context.Context, sessionID, customerID, channel string) (*Session, error)
	Delete(ctx context.Context, sessionID string) error
	Extend(ctx context.Context, sessionID string) error
	ListByCustomer(ctx context.Context, customerID string) ([]*Session, error)
	Ping(ctx context.Context) error
}

// Backend is a keyed byte store with expiry. Get returns ErrSessionNotFound for a missing key.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Ping(ctx context.Context) error
}

type StoreConfig struct {
	Backend      string        `split_words:"true" default:"redis"`
	TTL          time.Duration `envconfig:"TTL" default:"1h"`
	KeyPrefix    string        `split_words:"true" default:"session:"`
	ProbeTimeout time.Duration `split_words:"true" default:"2s"`
}

// StoreOption customizes SessionStore.
type StoreOption func(*SessionStore)

func WithKeyPrefix(prefix string) StoreOption {
	return func(s *SessionStore) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

func WithTTL(ttl time.Duration) StoreOption {
	return func(s *SessionStore) {
		if ttl >= 0 {
			s.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *SessionStore) {
		if now != nil {
			s.now = now
		}
	}
}

// SessionStore serializes sessions as JSON into a Backend under prefix+session_id.
type SessionStore struct {
	backend   Backend
	keyPrefix string
	ttl       time.Duration
	now       func() time.Time
}

var _ Store = (*SessionStore)(nil)

func NewSessionStore(backend Backend, opts ...StoreOption) *SessionStore {
	s := &SessionStore{
		backend:   backend,
		keyPrefix: DefaultKeyPrefix,
		ttl:       DefaultTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Create always writes a fresh record.
func (s *SessionStore) Create(ctx context.Context, sessionID, customerID, channel string) (*Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}
	session := NewSession(sessionID, customerID, channel, s.now())
	if err := s.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	key, err := s.redisKey(sessionID)
	if err != nil {
		return nil, err
	}
	payload, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var session Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if err := session.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session loaded from store: %w", err)
	}
	return &session, nil
}

// Save overwrites the record and refreshes its expiry.
func (s *SessionStore) Save(ctx context.Context, session *Session) error {
	if session == nil {
		return ErrNilSession
	}
	if err := session.Validate(); err != nil {
		return err
	}
	if session.UpdatedAt.IsZero() {
		session.Touch(s.now())
	}
	key, err := s.redisKey(session.SessionID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.backend.Set(ctx, key, payload, s.ttl)
}

func (s *SessionStore) GetOrCreate(ctx context.Context, sessionID, customerID, channel string) (*Session, error) {
	session, err := s.Get(ctx, sessionID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}
	return s.Create(ctx, sessionID, customerID, channel)
}

func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	key, err := s.redisKey(sessionID)
	if err != nil {
		return err
	}
	return s.backend.Del(ctx, key)
}

func (s *SessionStore) Extend(ctx context.Context, sessionID string) error {
	key, err := s.redisKey(sessionID)
	if err != nil {
		return err
	}
	return s.backend.Expire(ctx, key, s.ttl)
}

// ListByCustomer scans the key space; expired or unreadable records are skipped.
func (s *SessionStore) ListByCustomer(ctx context.Context, customerID string) ([]*Session, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, fmt.Errorf("%w: customer id is empty", contractx.ErrValidation)
	}
	keys, err := s.backend.Keys(ctx, s.keyPrefix)
	if err != nil {
		return nil, err
	}
	var out []*Session
	for _, key := range keys {
		session, err := s.Get(ctx, strings.TrimPrefix(key, s.keyPrefix))
		if err != nil {
			continue
		}
		if session.CustomerID == customerID {
			out = append(out, session)
		}
	}
	return out, nil
}

func (s *SessionStore) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

func (s *SessionStore) redisKey(sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", ErrInvalidSession
	}
	return s.keyPrefix + strings.TrimSpace(sessionID), nil
}

func ttlSeconds(ttl time.Duration) int64 {
	seconds := ttl / time.Second
	if seconds <= 0 {
		return 1
	}
	if ttl%time.Second != 0 {
		seconds++
	}
	return int64(seconds)
}
