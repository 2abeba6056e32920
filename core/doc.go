// Package core defines the shared contracts of the engine: the graph data
// model (nodes, edges, history, rewrites), the typed event stream delivered
// to observers, the emitter boundary separating pipeline logic from
// transport, inbound message validation, and the store interfaces
// implemented by the record and memory packages.
//
// Types in this package are deliberately dependency-light so every other
// package can import them without cycles.
package core
