// Package graph implements the per-session knowledge graph store: id-keyed
// nodes with fuzzy label deduplication, (source, target, type)-keyed edges,
// an append-only field-level change history, and milestone-driven batch
// structural rewrites. Every mutating call is written through to an optional
// durable record store on a best-effort basis.
package graph
