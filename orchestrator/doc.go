// Package orchestrator sequences the per-message pipeline: parallel
// extraction and correction classification, graph apply with fuzzy dedup,
// reply generation behind a safety gate, and, in scenario mode, probe
// routing, per-part response fan-out, script-ordered milestone detection,
// and derived telemetry. Collaborator failures degrade to documented
// fallbacks; a processed message always yields a reply and at least one
// graph node. Events flow through two injected emitters, one unicast to the
// originating observer and one multicast to every observer of the session.
package orchestrator
