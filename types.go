package authsync

import "context"

// User is the opaque identity record reported by the backend. ID and Email
// are the only fields the core interprets; Extra carries provider-defined
// attributes verbatim.
type User struct {
	ID    string
	Email string
	Name  string
	Extra map[string]string
}

// Clone returns a deep copy. Nil receivers return nil.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	if u.Extra != nil {
		out.Extra = make(map[string]string, len(u.Extra))
		for k, v := range u.Extra {
			out.Extra[k] = v
		}
	}
	return &out
}

// AuthData is the result of a successful backend login or refresh.
type AuthData struct {
	Token string
	User  *User
}

// State is an immutable snapshot of the session. IsAuthenticated is derived:
// it is true only when the backend reported a valid session and the
// credential is non-empty and not known-expired. It is never set
// independently of a backend response.
//
// At any settled (non-loading) instant exactly one of {full session, no
// session} holds; snapshots never expose a partial transition.
type State struct {
	User            *User
	Token           string
	IsAuthenticated bool
	IsLoading       bool
	Err             error

	// Restored is true when User/IsAuthenticated were seeded from durable
	// storage and have not yet been confirmed by the backend. The first
	// CheckAuth or settled operation clears it.
	Restored bool
}

func (s State) clone() State {
	s.User = s.User.Clone()
	return s
}

// Backend is the external authentication provider contract. Credential
// verification, token issuance, and refresh semantics are its
// responsibility; authsync only mirrors what it reports.
//
// Token, Valid, and Record are synchronous reads of the backend's own
// credential store and must not perform network calls. Subscribe fires on
// any token mutation from any source (including revocations not initiated
// by this client) and returns a disposer.
type Backend interface {
	Login(ctx context.Context, email, password string) (AuthData, error)
	Refresh(ctx context.Context) (AuthData, error)

	// Logout is best-effort: a network failure must not fail the caller's
	// logout flow.
	Logout(ctx context.Context) error

	Token() string
	Valid() bool
	Record() *User

	Subscribe(fn func(token string, user *User)) (unsubscribe func())
}

// Cache is any session-scoped data cache that must be invalidated when the
// session identity changes. InvalidateSessionScoped must be safe to call
// with nothing cached.
type Cache interface {
	InvalidateSessionScoped()
}

// CacheFunc adapts a plain function to the [Cache] interface.
type CacheFunc func()

// InvalidateSessionScoped calls f.
func (f CacheFunc) InvalidateSessionScoped() { f() }
