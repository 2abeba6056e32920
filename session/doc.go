// Package session holds per-session state: the exclusively owned graph
// store, the conversation log, the preference and correction profile, and
// the scenario progress (triggered milestones, part voice modifiers). The
// registry creates sessions lazily on first contact, keyed by session id, so
// no conversation or profile state is ever shared across sessions.
package session
