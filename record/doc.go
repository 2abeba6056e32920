// Package record implements core.RecordStore: durable storage of the
// per-session graph record. Two implementations are provided: an in-memory
// store for tests and demos, and a file store writing one JSON snapshot per
// session, rewritten in full on every mutating graph call.
package record
