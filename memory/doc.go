// Package memory provides the in-process implementation of core.MemoryStore,
// the session scoped snippet index fed by the pipeline's background
// ingestion task.
package memory
