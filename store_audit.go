package authsync

import (
	"context"
	"time"
)

const (
	auditEventLoginSuccess    = "login_success"
	auditEventLoginFailure    = "login_failure"
	auditEventLoginDiscarded  = "login_discarded"
	auditEventLogout          = "logout"
	auditEventRefreshSuccess  = "refresh_success"
	auditEventRefreshExpired  = "refresh_expired"
	auditEventCheckAuth       = "check_auth"
	auditEventStateRestored   = "state_restored"
	auditEventPersistFailure  = "persist_failure"
	auditEventCacheInvalidate = "cache_invalidated"
	auditEventChangeDiscarded = "change_discarded"
)

// emitAudit records one event through the async dispatcher. metaFn is only
// evaluated when auditing is enabled, so hot paths pay nothing for disabled
// audit.
func (s *SessionStore) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	user *User,
	err error,
	metaFn func() map[string]string,
) {
	if s == nil || s.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: s.clk.Now(),
		EventType: eventType,
		Success:   success,
	}
	if user != nil {
		event.UserID = user.ID
		event.Email = user.Email
	}
	if err != nil {
		event.Error = err.Error()
	}
	if metaFn != nil {
		event.Metadata = metaFn()
	}

	s.audit.Emit(ctx, event)
}

// AuditDropped reports how many audit events were dropped under
// backpressure.
func (s *SessionStore) AuditDropped() uint64 {
	if s == nil {
		return 0
	}
	return s.audit.Dropped()
}

// now is a split-out helper so tests can pin store timestamps through the
// injected clock.
func (s *SessionStore) now() time.Time {
	return s.clk.Now()
}
