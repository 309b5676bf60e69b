// Package authsync keeps a local, observable view of "who is logged in"
// consistent with an external authentication backend. It owns the session
// state machine ([SessionStore]), persists a reduced projection of it across
// restarts, and converts the backend's raw change stream into exactly one
// cache invalidation per real token transition ([ChangeBridge]).
//
// The package is designed for UI-embedded use: all mutations are applied
// atomically at operation completion, readers receive immutable [State]
// snapshots, and every timer and subscription is an explicit, cancellable
// handle.
//
// # Architecture boundaries
//
// authsync is the public surface. It exposes [SessionStore], [ChangeBridge],
// [Builder], [Config], the [Backend] and [Cache] contracts, and value types
// (State, AuthData, MetricsSnapshot). Projection persistence lives in
// persist/, credential introspection in token/, the notification queue in
// notify/, and time control in clock/.
//
// # What this package must NOT do
//
//   - Validate credentials or inspect token signatures (the backend is the
//     authority; token/ reads expiry claims without verification).
//   - Persist the credential string, the loading flag, or the last error.
//   - Mutate session state from anywhere but SessionStore operations.
package authsync
