// Package persist stores the reduced session projection across restarts and
// restores it before first render.
//
// # Binary encoding
//
// Projections are stored as a compact binary blob (schema versions v1–v2)
// with forward migration on read. The encoder is append-only: new versions
// add fields but never reinterpret old ones.
//
// # Architecture boundaries
//
// This package owns the [Projection] model, its codec, and the [Store]
// implementations (Memory, File, Redis). It does NOT decide what to persist
// or when — the session store does — and it never sees the credential
// string.
//
// # Failure policy
//
// Load never panics and never fails startup over bad data: a missing,
// truncated, or unknown-version blob degrades to "no prior session"
// (ok=false). Only transport errors (e.g. Redis unreachable) are returned,
// and callers are expected to swallow those too.
package persist
