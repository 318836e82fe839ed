// Package session owns the authenticated session: restoring it from a
// store, revalidating it, refreshing tokens, logging in and out, and
// telling observers about every transition.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"portalguard"
	"portalguard/rbac"
	"portalguard/store"
)

const defaultMinRefreshDelay = time.Second

// Session is a goroutine-safe authenticated session.
type Session struct {
	api    portalguard.IdentityAPI
	store  portalguard.SessionStore
	eval   *rbac.Evaluator
	logger *slog.Logger

	refreshLead     time.Duration
	minRefreshDelay time.Duration

	// serializes Restore calls
	restoreMu sync.Mutex
	// serializes store writes against epoch checks
	persistMu sync.Mutex

	mu        sync.Mutex
	state     State
	principal *portalguard.Principal
	degraded  bool
	// bumped whenever a session ends or a new one starts
	epoch uint64
	// bumped only by Logout
	logouts  uint64
	life     context.Context
	cancel   context.CancelFunc
	inflight *refreshCall
	timer    *time.Timer
	settled  chan struct{}

	observers   []observer
	nextObsID   uint64
	pending     []Snapshot
	dispatching bool
}

type observer struct {
	id uint64
	fn func(Snapshot)
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEvaluator sets the evaluator used for authorization queries.
func WithEvaluator(e *rbac.Evaluator) Option {
	return func(s *Session) {
		if e != nil {
			s.eval = e
		}
	}
}

// WithRefreshLead schedules a refresh d before the access token's exp
// claim. Tokens without exp are never scheduled. Zero disables scheduling.
func WithRefreshLead(d time.Duration) Option {
	return func(s *Session) {
		s.refreshLead = d
	}
}

// New creates an Unresolved session. A nil store keeps the session in memory.
func New(api portalguard.IdentityAPI, st portalguard.SessionStore, opts ...Option) *Session {
	if st == nil {
		st = store.NewMemory()
	}
	s := &Session{
		api:             api,
		store:           st,
		logger:          slog.Default(),
		minRefreshDelay: defaultMinRefreshDelay,
		state:           Unresolved,
		settled:         make(chan struct{}),
	}
	s.life, s.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(s)
	}
	if s.eval == nil {
		s.eval = rbac.NewEvaluator(nil, rbac.WithLogger(s.logger))
	}
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the current state, a copy of the principal and the
// degraded flag.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// CurrentPrincipal returns a copy of the exposed principal.
func (s *Session) CurrentPrincipal() (*portalguard.Principal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.principal == nil {
		return nil, false
	}
	return s.principal.Clone(), true
}

// AccessToken returns the current access token, or "" without a session.
func (s *Session) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.principal == nil {
		return ""
	}
	return s.principal.AccessToken
}

// Evaluator returns the evaluator authorization queries go through.
func (s *Session) Evaluator() *rbac.Evaluator { return s.eval }

// CanAccess reports whether the current principal satisfies req.
func (s *Session) CanAccess(req portalguard.AccessRequirement) bool {
	p, _ := s.CurrentPrincipal()
	return s.eval.CanPrincipalAccess(p, req)
}

// CanAccessPath reports whether the current principal may open path.
func (s *Session) CanAccessPath(path string) bool {
	p, _ := s.CurrentPrincipal()
	return s.eval.CanAccessPath(p, path)
}

// DefaultRoute returns the landing route for the current principal.
func (s *Session) DefaultRoute() string {
	p, _ := s.CurrentPrincipal()
	return s.eval.DefaultRoute(p)
}

// Navigation returns the menu for the current principal.
func (s *Session) Navigation() []portalguard.NavigationItem {
	p, _ := s.CurrentPrincipal()
	return s.eval.Navigation(p)
}

// Subscribe registers fn for every transition. Observers run outside the
// session lock, one snapshot at a time, in transition order.
func (s *Session) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.mu.Lock()
	s.nextObsID++
	id := s.nextObsID
	s.observers = append(s.observers, observer{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, o := range s.observers {
				if o.id == id {
					s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// Await blocks until the session leaves Unresolved and Restoring.
func (s *Session) Await(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	settled := s.settled
	s.mu.Unlock()

	select {
	case <-settled:
		return s.Snapshot(), nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{State: s.state, Principal: s.principal.Clone(), Degraded: s.degraded}
}

// setLocked records a transition and queues its snapshot for observers.
func (s *Session) setLocked(state State, p *portalguard.Principal, degraded bool) {
	s.state = state
	s.principal = p
	s.degraded = degraded && p != nil
	if state == Authenticated || state == Unauthenticated {
		select {
		case <-s.settled:
		default:
			close(s.settled)
		}
	}
	s.pending = append(s.pending, s.snapshotLocked())
}

// resetLocked starts a new epoch: background work started under the old one
// is cancelled and its results ignored.
func (s *Session) resetLocked() {
	s.epoch++
	s.cancel()
	s.life, s.cancel = context.WithCancel(context.Background())
	s.stopTimerLocked()
	if s.inflight != nil {
		s.inflight.finish("", portalguard.ErrSessionClosed)
		s.inflight = nil
	}
}

// endLocked resets the epoch and moves to Unauthenticated.
func (s *Session) endLocked() {
	s.resetLocked()
	if s.state != Unauthenticated {
		s.setLocked(Unauthenticated, nil, false)
	}
}

// flush delivers queued snapshots. Only one goroutine delivers at a time so
// observers see transitions in order.
func (s *Session) flush() {
	s.mu.Lock()
	if s.dispatching {
		s.mu.Unlock()
		return
	}
	s.dispatching = true
	for len(s.pending) > 0 {
		batch := s.pending
		s.pending = nil
		obs := append([]observer(nil), s.observers...)
		s.mu.Unlock()
		for _, snap := range batch {
			for _, o := range obs {
				o.fn(snap)
			}
		}
		s.mu.Lock()
	}
	s.dispatching = false
	s.mu.Unlock()
}

func (s *Session) currentEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// persist writes entry unless the epoch it belongs to has ended. With
// replace set the store is cleared first.
func (s *Session) persist(ctx context.Context, epoch uint64, entry portalguard.SessionEntry, replace bool) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if s.currentEpoch() != epoch {
		return
	}
	if replace {
		if err := s.store.Clear(ctx); err != nil {
			s.logger.Warn("failed to clear session store", "error", err)
		}
	}
	if err := s.store.Save(ctx, entry); err != nil {
		s.logger.Warn("failed to persist session", "error", err)
	}
}

// clearStore empties the store unless a newer session has started since
// epoch; that session owns the store now.
func (s *Session) clearStore(ctx context.Context, epoch uint64) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if s.currentEpoch() != epoch {
		return
	}
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Warn("failed to clear session store", "error", err)
	}
}
