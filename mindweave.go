// Package mindweave turns each user utterance into structured updates to a
// session-scoped knowledge graph plus a generated reply, streaming typed
// progress and data events to observing clients. The Engine ties together
// the session registry, the graph store, and the orchestration pipeline
// behind a transport-agnostic emit boundary.
package mindweave

import (
	"context"
	"fmt"
	"time"

	"github.com/mindweave/mindweave/agent"
	"github.com/mindweave/mindweave/core"
	"github.com/mindweave/mindweave/logging"
	"github.com/mindweave/mindweave/model"
	"github.com/mindweave/mindweave/orchestrator"
	"github.com/mindweave/mindweave/scenario"
	"github.com/mindweave/mindweave/session"
)

// Options configures an Engine.
type Options struct {
	// Records backs graph persistence. Optional; nil keeps sessions
	// in-memory only.
	Records core.RecordStore

	// Memory receives extracted entities for retrieval. Optional.
	Memory core.MemoryStore

	// Scenarios resolves scenario ids. Defaults to the built-in registry.
	Scenarios *scenario.Registry

	// AgentTimeout bounds every collaborator call.
	AgentTimeout time.Duration

	// MaxAgentCalls caps collaborator calls per message. 0 is unlimited.
	MaxAgentCalls int

	Logger logging.Logger
}

// Engine is the top-level entry point. One Engine serves many sessions;
// runs within a session are serialized, sessions are independent.
type Engine struct {
	registry     *session.Registry
	orchestrator *orchestrator.Orchestrator
	logger       logging.Logger
}

// New creates an Engine around explicit collaborator implementations.
func New(collab orchestrator.Collaborators, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Scenarios:    scenario.NewRegistry(),
		AgentTimeout: 30 * time.Second,
		Logger:       logging.NewDefaultSlogLogger(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	registry := session.NewRegistry(func(o *session.RegistryOptions) {
		o.Records = opts.Records
		o.Scenarios = opts.Scenarios
		o.Logger = opts.Logger
	})

	orch := orchestrator.New(collab, func(o *orchestrator.Options) {
		o.AgentTimeout = opts.AgentTimeout
		o.MaxAgentCalls = opts.MaxAgentCalls
		o.Memory = opts.Memory
		o.Logger = opts.Logger
	})

	return &Engine{registry: registry, orchestrator: orch, logger: opts.Logger}
}

// NewWithModel creates an Engine with every collaborator backed by the same
// model.
func NewWithModel(m model.Model, optFns ...func(o *Options)) *Engine {
	opts := Options{Logger: logging.NewDefaultSlogLogger()}
	for _, fn := range optFns {
		fn(&opts)
	}
	collab := orchestrator.Collaborators{
		Extractor:    agent.NewExtractor(m, func(o *agent.ExtractorOptions) { o.Logger = opts.Logger }),
		Classifier:   agent.NewClassifier(m, func(o *agent.ClassifierOptions) { o.Logger = opts.Logger }),
		Reply:        agent.NewReplyGenerator(m, func(o *agent.ReplyGeneratorOptions) { o.Logger = opts.Logger }),
		Safety:       agent.NewSafetyGate(m, func(o *agent.SafetyGateOptions) { o.Logger = opts.Logger }),
		Probe:        agent.NewProbeRouter(m, func(o *agent.ProbeRouterOptions) { o.Logger = opts.Logger }),
		Responder:    agent.NewResponder(m, func(o *agent.ResponderOptions) { o.Logger = opts.Logger }),
		Milestones:   agent.NewMilestoneDetector(m, func(o *agent.MilestoneDetectorOptions) { o.Logger = opts.Logger }),
		NodeAnswerer: agent.NewNodeAnswerer(m, func(o *agent.NodeAnswererOptions) { o.Logger = opts.Logger }),
	}
	return New(collab, optFns...)
}

// HandleMessage validates and dispatches one inbound message. Malformed
// messages are rejected with an error event before any state is mutated.
// user_message runs the full pipeline under the session's run lock;
// node_query answers directly.
func (e *Engine) HandleMessage(ctx context.Context, msg core.Message, unicast, multicast core.Emitter) error {
	if unicast == nil {
		unicast = core.NoOpEmitter{}
	}
	if multicast == nil {
		multicast = core.NoOpEmitter{}
	}

	if err := msg.Validate(); err != nil {
		e.emitError(ctx, unicast, err.Error())
		return err
	}

	sess, _, err := e.registry.GetOrCreate(msg.SessionID, msg.Scenario)
	if err != nil {
		e.emitError(ctx, unicast, err.Error())
		return err
	}

	switch msg.Type {
	case core.MessageUser:
		sess.RunExclusive(func() {
			e.orchestrator.ProcessMessage(ctx, sess, msg.Content, unicast, multicast)
		})
		return nil
	case core.MessageNodeQuery:
		e.orchestrator.ProcessNodeQuery(ctx, sess, msg.NodeID, msg.Question, unicast)
		return nil
	default:
		err := fmt.Errorf("unsupported message type %q", msg.Type)
		e.emitError(ctx, unicast, err.Error())
		return err
	}
}

// AttachObserver creates or resumes a session and sends the observer its
// scenario_loaded event: scenario descriptor, current snapshot, and the
// milestones already triggered, so reconnecting clients resync fully.
func (e *Engine) AttachObserver(ctx context.Context, sessionID, scenarioID string, observer core.Emitter) error {
	sess, _, err := e.registry.GetOrCreate(sessionID, scenarioID)
	if err != nil {
		return err
	}

	loaded := core.ScenarioLoaded{
		GraphData:           sess.Graph().Snapshot(),
		TriggeredMilestones: sess.TriggeredMilestones(),
	}
	if sc := sess.Scenario(); sc != nil {
		loaded.Scenario = sc.Info()
	}
	if err := observer.Emit(ctx, loaded); err != nil {
		return fmt.Errorf("send scenario_loaded: %w", err)
	}
	return nil
}

// Snapshot returns the current graph snapshot of an existing session.
func (e *Engine) Snapshot(sessionID string) (core.Snapshot, bool) {
	sess, ok := e.registry.Get(sessionID)
	if !ok {
		return core.Snapshot{}, false
	}
	return sess.Graph().Snapshot(), true
}

// ExportJSON serializes the full state of an existing session.
func (e *Engine) ExportJSON(sessionID string) ([]byte, error) {
	sess, ok := e.registry.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("unknown session %q", sessionID)
	}
	return sess.ExportJSON()
}

// ExportMarkdown renders a readable transcript of an existing session.
func (e *Engine) ExportMarkdown(sessionID string) (string, error) {
	sess, ok := e.registry.Get(sessionID)
	if !ok {
		return "", fmt.Errorf("unknown session %q", sessionID)
	}
	return sess.ExportMarkdown(), nil
}

func (e *Engine) emitError(ctx context.Context, em core.Emitter, message string) {
	if err := em.Emit(ctx, core.ErrorEvent{Message: message}); err != nil {
		e.logger.Warn("error event emit failed", "error", err.Error())
	}
}
