// Package notify manages an ordered queue of transient user-facing
// notifications, each with an independent, cancellable auto-expiry timer.
//
// Every non-sticky entry owns exactly one live timer from Add until it is
// removed, by expiry or by hand. Manual removal always cancels the pending
// timer, so a dismissed notification can never evict a later entry.
//
// # Architecture boundaries
//
// The queue owns its sequence exclusively; callers interact only through
// Add, Remove, Clear, and the read-only Items snapshot. Time comes from an
// injected [clock.Clock] so expiry is testable without wall-clock sleeps.
package notify
