package authsync

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"

	"github.com/MrEthical07/authsync/clock"
	"github.com/MrEthical07/authsync/persist"
	"github.com/MrEthical07/authsync/token"
)

// SessionStore is the single source of truth for session state. All
// mutations flow through its operations; every completion is applied as one
// atomic transition, and subscribers observe only settled snapshots.
//
// Overlapping logins are not deduplicated: each runs independently and the
// final state reflects whichever completion applies last. Logout always
// wins over in-flight work: it bumps the store's reset generation, and any
// operation dispatched before the bump discards its completion instead of
// resurrecting stale credentials.
type SessionStore struct {
	config  Config
	backend Backend
	storage persist.Store
	clk     clock.Clock
	audit   *auditDispatcher
	metrics *Metrics

	mu       sync.Mutex
	state    State
	resetGen uint64
	subs     map[uint64]func(State)
	nextSub  uint64
}

// State returns an immutable snapshot of the current session.
func (s *SessionStore) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Restored reports whether the current snapshot was seeded from durable
// storage and not yet confirmed by the backend.
func (s *SessionStore) Restored() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Restored
}

// Subscribe registers fn for every settled state transition and returns a
// disposer. Callbacks run outside the store lock, in registration order,
// with a snapshot copy; they may call store operations.
func (s *SessionStore) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Close releases background resources (the audit dispatcher). The store is
// unusable for auditing afterwards; operations still work.
func (s *SessionStore) Close() {
	if s == nil {
		return
	}
	s.audit.Close()
}

// MetricsSnapshot returns a deep copy of all counters, for exporters.
func (s *SessionStore) MetricsSnapshot() MetricsSnapshot {
	if s == nil || s.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return s.metrics.Snapshot()
}

func (s *SessionStore) metricInc(id MetricID) {
	if s == nil {
		return
	}
	s.metrics.Inc(id)
}

// Login authenticates against the backend. On success the session fields
// are replaced, the projection persisted, and the backend's AuthData
// returned. On failure the prior session fields stay untouched, the
// normalized error is both recorded in the state and returned, and the
// caller decides which of the two channels to surface.
//
// A completion that lost to an intervening Logout is discarded: the
// returned AuthData is still the backend's answer, but the store remains
// logged out.
func (s *SessionStore) Login(ctx context.Context, email, password string) (AuthData, error) {
	if s == nil || s.backend == nil {
		return AuthData{}, ErrStoreNotReady
	}

	gen := s.beginOperation()

	start := s.now()
	data, err := s.backend.Login(ctx, email, password)
	s.metrics.Observe(MetricLoginLatency, s.now().Sub(start))

	if err != nil {
		normalized := NormalizeLoginError(err)
		applied := s.settleFailure(gen, normalized)
		s.metricInc(MetricLoginFailure)
		s.emitAudit(ctx, auditEventLoginFailure, false, nil, normalized, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": failureReason(normalized),
			}
		})
		if !applied {
			s.metricInc(MetricStaleCompletionDiscarded)
		}
		return AuthData{}, normalized
	}

	if !s.settleSession(gen, data) {
		s.metricInc(MetricStaleCompletionDiscarded)
		s.emitAudit(ctx, auditEventLoginDiscarded, false, data.User, nil, func() map[string]string {
			return map[string]string{"reason": "superseded_by_logout"}
		})
		return data, nil
	}

	s.metricInc(MetricLoginSuccess)
	s.emitAudit(ctx, auditEventLoginSuccess, true, data.User, nil, nil)
	s.persistState(ctx)
	return data, nil
}

// Logout invalidates the backend session best-effort, resets the store to
// the initial absent state, and clears the persisted projection. Idempotent:
// logging out while logged out only re-ensures cleared state. Logout always
// wins against in-flight operations because it writes last and bumps the
// reset generation.
func (s *SessionStore) Logout(ctx context.Context) {
	if s == nil || s.backend == nil {
		return
	}

	s.beginOperation()

	if err := s.backend.Logout(ctx); err != nil {
		// Best-effort by contract; the local session clears regardless.
		log.Print("authsync: backend logout failed")
	}

	s.mu.Lock()
	s.resetGen++
	s.state = State{}
	snap, fns := s.snapshotLocked()
	s.mu.Unlock()
	publish(snap, fns)

	s.metricInc(MetricLogout)
	s.emitAudit(ctx, auditEventLogout, true, nil, nil, nil)
	s.clearPersisted(ctx)
}

// Refresh re-validates the current session with the backend. It returns the
// refreshed AuthData, or nil meaning "no session": either none existed, or
// the backend rejected the refresh and the store cleared itself (implicit
// logout — an expired session during refresh is expected, not exceptional,
// so it is recovered locally rather than surfaced).
func (s *SessionStore) Refresh(ctx context.Context) *AuthData {
	if s == nil || s.backend == nil {
		return nil
	}
	if s.backend.Token() == "" {
		return nil
	}

	gen := s.beginOperation()

	data, err := s.backend.Refresh(ctx)
	if err == nil && data.Token == "" {
		// A refresh that answers without a credential is a dead session.
		err = ErrSessionExpired
	}
	if err != nil {
		normalized := NormalizeRefreshError(err)
		applied := s.settleClear(gen)
		s.metricInc(MetricRefreshExpired)
		s.emitAudit(ctx, auditEventRefreshExpired, false, nil, normalized, nil)
		if applied {
			s.clearPersisted(ctx)
		}
		return nil
	}

	if !s.settleSession(gen, data) {
		s.metricInc(MetricStaleCompletionDiscarded)
		return nil
	}

	s.metricInc(MetricRefreshSuccess)
	s.emitAudit(ctx, auditEventRefreshSuccess, true, data.User, nil, nil)
	s.persistState(ctx)
	return &data
}

// CheckAuth re-derives user and authentication state from what the backend
// currently reports, without a network call. It is the re-sync half of the
// change bridge and also clears the Restored flag. A transition to
// unauthenticated bumps the reset generation, so in-flight completions
// cannot resurrect a session revoked behind the store's back.
func (s *SessionStore) CheckAuth() State {
	if s == nil || s.backend == nil {
		return State{}
	}

	valid := s.backend.Valid()
	tok := s.backend.Token()
	user := s.backend.Record()

	s.mu.Lock()
	authenticated := valid && tok != "" && !s.credentialExpired(tok)
	if authenticated {
		s.state.User = user.Clone()
		s.state.Token = tok
		s.state.IsAuthenticated = true
	} else {
		if s.state.IsAuthenticated || s.state.User != nil {
			s.resetGen++
		}
		s.state.User = nil
		s.state.Token = ""
		s.state.IsAuthenticated = false
	}
	s.state.Restored = false
	snap, fns := s.snapshotLocked()
	s.mu.Unlock()
	publish(snap, fns)

	s.metricInc(MetricCheckAuth)
	s.emitAudit(context.Background(), auditEventCheckAuth, authenticated, snap.User, nil, nil)
	s.persistState(context.Background())
	return snap
}

// ClearError clears the recorded error without touching other fields.
func (s *SessionStore) ClearError() {
	s.mu.Lock()
	s.state.Err = nil
	snap, fns := s.snapshotLocked()
	s.mu.Unlock()
	publish(snap, fns)
}

// beginOperation marks the store loading and returns the reset generation
// the operation must still match at completion time.
func (s *SessionStore) beginOperation() uint64 {
	s.mu.Lock()
	s.state.IsLoading = true
	s.state.Err = nil
	gen := s.resetGen
	snap, fns := s.snapshotLocked()
	s.mu.Unlock()
	publish(snap, fns)
	return gen
}

// settleSession applies a successful login/refresh completion, unless a
// reset settled after the operation was dispatched.
func (s *SessionStore) settleSession(gen uint64, data AuthData) bool {
	s.mu.Lock()
	if s.resetGen != gen {
		s.mu.Unlock()
		return false
	}
	s.state = State{
		User:            data.User.Clone(),
		Token:           data.Token,
		IsAuthenticated: data.Token != "" && !s.credentialExpired(data.Token),
	}
	snap, fns := s.snapshotLocked()
	s.mu.Unlock()
	publish(snap, fns)
	return true
}

// settleFailure records a failed completion: loading ends, the error is
// recorded, prior session fields stay untouched.
func (s *SessionStore) settleFailure(gen uint64, err error) bool {
	s.mu.Lock()
	if s.resetGen != gen {
		s.mu.Unlock()
		return false
	}
	s.state.IsLoading = false
	s.state.Err = err
	snap, fns := s.snapshotLocked()
	s.mu.Unlock()
	publish(snap, fns)
	return true
}

// settleClear resets to the absent state and bumps the generation, unless
// another reset got there first.
func (s *SessionStore) settleClear(gen uint64) bool {
	s.mu.Lock()
	if s.resetGen != gen {
		s.mu.Unlock()
		return false
	}
	s.resetGen++
	s.state = State{}
	snap, fns := s.snapshotLocked()
	s.mu.Unlock()
	publish(snap, fns)
	return true
}

func (s *SessionStore) credentialExpired(credential string) bool {
	if !s.config.Token.IntrospectExpiry {
		return false
	}
	return token.Expired(credential, s.clk.Now(), s.config.Token.ExpiryLeeway)
}

// snapshotLocked captures the state copy and the subscriber list in
// registration order. Callers publish after releasing the lock so
// subscribers can re-enter the store.
func (s *SessionStore) snapshotLocked() (State, []func(State)) {
	snap := s.state.clone()
	if len(s.subs) == 0 {
		return snap, nil
	}

	ids := make([]uint64, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	fns := make([]func(State), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	return snap, fns
}

func publish(snap State, fns []func(State)) {
	for _, fn := range fns {
		fn(snap)
	}
}

// persistState writes the reduced projection after a settled mutation.
// Failures never interrupt the caller: they count, audit, and log only.
func (s *SessionStore) persistState(ctx context.Context) {
	if !s.config.Persistence.Enabled || s.storage == nil {
		return
	}

	s.mu.Lock()
	projection := persist.Projection{
		Authenticated: s.state.IsAuthenticated,
		SavedAt:       s.now().Unix(),
	}
	if s.state.User != nil {
		projection.UserID = s.state.User.ID
		projection.Email = s.state.User.Email
		projection.Name = s.state.User.Name
		if len(s.state.User.Extra) > 0 {
			projection.Extra = make(map[string]string, len(s.state.User.Extra))
			for k, v := range s.state.User.Extra {
				projection.Extra[k] = v
			}
		}
	}
	s.mu.Unlock()

	if err := s.storage.Save(ctx, projection); err != nil {
		s.metricInc(MetricPersistFailure)
		s.emitAudit(ctx, auditEventPersistFailure, false, nil, err, nil)
		log.Print("authsync: projection save failed")
	}
}

func (s *SessionStore) clearPersisted(ctx context.Context) {
	if !s.config.Persistence.Enabled || s.storage == nil {
		return
	}
	if err := s.storage.Clear(ctx); err != nil {
		s.metricInc(MetricPersistFailure)
		s.emitAudit(ctx, auditEventPersistFailure, false, nil, err, nil)
		log.Print("authsync: projection clear failed")
	}
}

func failureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrBackendUnavailable):
		return "backend_unavailable"
	case errors.Is(err, ErrSessionExpired):
		return "session_expired"
	default:
		return "unknown"
	}
}
