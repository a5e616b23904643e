package tokens

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/doorman-auth/doorman/pkg/authn"
	"github.com/doorman-auth/doorman/pkg/authserver/clients"
	"github.com/doorman-auth/doorman/pkg/authserver/crypto"
	"github.com/doorman-auth/doorman/pkg/logger"
)

// DefaultSweepInterval is how often the background sweep removes expired
// tokens.
const DefaultSweepInterval = time.Minute

// Store lookup and consumption errors.
var (
	ErrNotFound       = errors.New("token not found")
	ErrExpired        = errors.New("token expired")
	ErrClientMismatch = errors.New("token bound to a different client")
	ErrWrongKind      = errors.New("wrong token kind")
)

var (
	tokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "doorman_tokens_issued_total",
		Help: "Tokens issued, by kind.",
	}, []string{"kind"})

	tokensLive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "doorman_tokens_live",
		Help: "Tokens currently held in the store.",
	})
)

// Store is the thread-safe set of live tokens, keyed by token id.
type Store struct {
	mu     sync.RWMutex
	tokens map[string]*Token

	secret    string
	grantLife time.Duration
	tokenLife time.Duration

	sweepInterval time.Duration
	stopSweep     chan struct{}
	sweepDone     chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithSweepInterval overrides the background sweep interval.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Store) {
		s.sweepInterval = d
	}
}

// NewStore creates a token store and starts its background expiry sweep.
// The secret salts token id generation; grantLife and tokenLife bound the
// lifetimes of grant and access/renewal tokens respectively.
func NewStore(secret string, grantLife, tokenLife time.Duration, opts ...Option) *Store {
	s := &Store{
		tokens:        make(map[string]*Token),
		secret:        secret,
		grantLife:     grantLife,
		tokenLife:     tokenLife,
		sweepInterval: DefaultSweepInterval,
		stopSweep:     make(chan struct{}),
		sweepDone:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.sweepLoop()

	return s
}

// Close stops the background sweep and waits for it to finish.
func (s *Store) Close() error {
	close(s.stopSweep)
	<-s.sweepDone
	return nil
}

// Create issues a new token. The application may be nil (password-grant
// access tokens). The challenge is only meaningful for grant tokens.
func (s *Store) Create(kind Kind, app *clients.Application, ident *authn.Identity, scope, challenge string) *Token {
	now := time.Now()
	life := s.tokenLife
	if kind == KindGrant {
		life = s.grantLife
	}

	t := &Token{
		ID:          crypto.NewTokenID(s.secret),
		Kind:        kind,
		Application: app,
		User:        ident.Username,
		UID:         ident.UID,
		GIDs:        slices.Clone(ident.GIDs),
		Scope:       scope,
		scopes:      splitScope(scope),
		Challenge:   challenge,
		CreatedAt:   now,
		ExpiresAt:   now.Add(life),
	}

	s.mu.Lock()
	s.tokens[t.ID] = t
	s.mu.Unlock()

	tokensIssued.WithLabelValues(kind.String()).Inc()
	tokensLive.Inc()
	logger.Debugw("token created", "kind", kind.String(), "user", t.User)

	return t
}

// Find returns the token with the given id, or nil. An expired token is
// removed on sight: the read lock is dropped and the removal retried under
// the write lock.
func (s *Store) Find(id string) *Token {
	now := time.Now()

	s.mu.RLock()
	t, ok := s.tokens[id]
	s.mu.RUnlock()

	if !ok {
		return nil
	}
	if t.Expired(now) {
		s.remove(id)
		return nil
	}
	return t
}

// Delete removes the token with the given id, if present.
func (s *Store) Delete(id string) {
	s.remove(id)
}

// TakeGrant atomically validates and consumes a grant token: the lookup,
// kind/expiry/client checks, and removal all happen inside a single
// write-locked region, so concurrent exchanges of the same code yield
// exactly one winner.
func (s *Store) TakeGrant(id string, app *clients.Application) (*Token, error) {
	return s.take(id, KindGrant, app)
}

// TakeRenewal atomically consumes a renewal token for rotation. The app
// check only applies when the token is bound to an application.
func (s *Store) TakeRenewal(id string, app *clients.Application) (*Token, error) {
	return s.take(id, KindRenewal, app)
}

func (s *Store) take(id string, kind Kind, app *clients.Application) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[id]
	if !ok {
		return nil, ErrNotFound
	}
	if t.Kind != kind {
		return nil, ErrWrongKind
	}

	// The token is single use; it comes out of the store no matter how
	// validation goes.
	delete(s.tokens, id)
	tokensLive.Dec()

	if t.Expired(time.Now()) {
		return nil, ErrExpired
	}
	if t.Application != nil && t.Application != app {
		return nil, ErrClientMismatch
	}
	return t, nil
}

// Len returns the number of live tokens.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

func (s *Store) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[id]; ok {
		delete(s.tokens, id)
		tokensLive.Dec()
	}
}

// sweepLoop runs the periodic removal of expired tokens.
func (s *Store) sweepLoop() {
	defer close(s.sweepDone)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopSweep:
			return
		case <-ticker.C:
			s.sweepExpired()
		}
	}
}

// sweepExpired removes expired tokens. Expired ids are collected under the
// read lock and deleted under the write lock to keep write-lock hold time
// short.
func (s *Store) sweepExpired() {
	now := time.Now()

	s.mu.RLock()
	var expired []string
	for id, t := range s.tokens {
		if t.Expired(now) {
			expired = append(expired, id)
		}
	}
	s.mu.RUnlock()

	if len(expired) == 0 {
		return
	}

	s.mu.Lock()
	removed := 0
	for _, id := range expired {
		if t, ok := s.tokens[id]; ok && t.Expired(now) {
			delete(s.tokens, id)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		tokensLive.Sub(float64(removed))
		logger.Debugw("expired tokens swept", "count", removed)
	}
}
