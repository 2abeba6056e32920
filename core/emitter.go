package core

import "context"

// Emitter delivers events to observing clients. The pipeline holds two
// emitters, one unicast (originating observer) and one multicast (all
// observers of the session), rather than routing on event type strings
// inside transport code.
//
// Emit is awaited by callers but its failures are best-effort: the pipeline
// logs and continues, it never aborts on a transport error.
type Emitter interface {
	Emit(ctx context.Context, ev Event) error
}

// EmitterFunc adapts a plain function to the Emitter interface.
type EmitterFunc func(ctx context.Context, ev Event) error

// Emit implements Emitter.
func (f EmitterFunc) Emit(ctx context.Context, ev Event) error { return f(ctx, ev) }

// NoOpEmitter discards all events. Useful when a session has no observer.
type NoOpEmitter struct{}

// Emit implements Emitter.
func (NoOpEmitter) Emit(context.Context, Event) error { return nil }

// ChannelEmitter forwards events onto a buffered channel. Suited to tests
// and in-process observers; a full buffer with a cancelled context drops the
// send and returns the context error.
type ChannelEmitter struct {
	ch chan Event
}

// NewChannelEmitter creates a ChannelEmitter with the given buffer size.
func NewChannelEmitter(buffer int) *ChannelEmitter {
	return &ChannelEmitter{ch: make(chan Event, buffer)}
}

// Emit implements Emitter.
func (c *ChannelEmitter) Emit(ctx context.Context, ev Event) error {
	select {
	case c.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events exposes the receive side of the channel.
func (c *ChannelEmitter) Events() <-chan Event { return c.ch }

// Close closes the underlying channel. Callers must not Emit after Close.
func (c *ChannelEmitter) Close() { close(c.ch) }
