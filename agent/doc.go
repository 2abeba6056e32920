// Package agent defines the collaborator contracts the orchestration
// pipeline depends on (extraction, correction classification, reply
// generation, safety review, probe routing, part responses, milestone
// detection) and their model-backed implementations. Structured agents force
// their output through a single declared tool and decode it tolerantly at
// the trust boundary, coercing unknown enum values instead of propagating
// them into the graph.
package agent
