package authsync

import (
	"context"
	"errors"
	"sync"
)

// ChangeBridge converts the backend's raw change stream into exactly one
// store re-sync plus cache invalidation per real token transition. Raw
// events that re-announce the current token (re-validations, duplicate
// notifications) are discarded; without this dedup every raw event would
// trigger a redundant refetch.
//
// One bridge instance serves one store; the remembered last-seen token is
// only ever mutated by the subscription callback, so the compare-then-act
// step stays a single logical operation.
type ChangeBridge struct {
	store *SessionStore
	cache Cache

	mu          sync.Mutex
	lastToken   string
	unsubscribe func()
	closed      bool
}

// NewChangeBridge subscribes to the store's backend and wires transitions
// to cache. The last-seen token initializes from the backend's current
// credential, so the subscription's first event only fires work if the
// token actually moved.
func NewChangeBridge(store *SessionStore, cache Cache) (*ChangeBridge, error) {
	if store == nil || store.backend == nil {
		return nil, ErrStoreNotReady
	}
	if cache == nil {
		return nil, errors.New("cache required")
	}

	b := &ChangeBridge{
		store:     store,
		cache:     cache,
		lastToken: store.backend.Token(),
	}
	b.unsubscribe = store.backend.Subscribe(b.onChange)
	return b, nil
}

func (b *ChangeBridge) onChange(tok string, _ *User) {
	b.mu.Lock()
	if b.closed || tok == b.lastToken {
		discarded := !b.closed
		b.mu.Unlock()
		if discarded {
			b.store.metricInc(MetricChangeEventDiscarded)
			b.store.emitAudit(context.Background(), auditEventChangeDiscarded, true, nil, nil, nil)
		}
		return
	}
	b.lastToken = tok
	b.mu.Unlock()

	b.store.CheckAuth()
	b.cache.InvalidateSessionScoped()

	b.store.metricInc(MetricCacheInvalidation)
	b.store.emitAudit(context.Background(), auditEventCacheInvalidate, true, nil, nil, nil)
}

// Close detaches from the backend. No re-syncs or invalidations happen
// after Close returns. Idempotent.
func (b *ChangeBridge) Close() {
	if b == nil {
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	unsubscribe := b.unsubscribe
	b.unsubscribe = nil
	b.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
