package orchestrator

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mindweave/mindweave/agent"
	"github.com/mindweave/mindweave/core"
	"github.com/mindweave/mindweave/logging"
	"github.com/mindweave/mindweave/scenario"
	"github.com/mindweave/mindweave/session"
)

// FallbackReply is delivered when reply generation fails entirely.
const FallbackReply = "I'm here with you. Tell me more about that."

// CrisisText is prepended to the delivered reply whenever the safety gate
// detects an acute crisis, regardless of whether the reply itself was
// approved.
const CrisisText = "It sounds like you might be going through something serious right now. " +
	"Please consider reaching out to someone who can help immediately: call or text 988 " +
	"(Suicide & Crisis Lifeline), or contact your local emergency services. " +
	"You deserve support from a real person.\n\n"

// CompanionPartID identifies the single narrator voice of companion mode
// sessions in part_response events.
const CompanionPartID = "companion"

// Collaborators bundles the agent implementations the pipeline drives. All
// fields are required except Classifier, which may be nil to disable
// correction tracking, and NodeAnswerer, which may be nil to disable node
// queries.
type Collaborators struct {
	Extractor    agent.Extractor
	Classifier   agent.CorrectionClassifier
	Reply        agent.ReplyGenerator
	Safety       agent.SafetyGate
	Probe        agent.ProbeRouter
	Responder    agent.MultiResponder
	Milestones   agent.MilestoneDetector
	NodeAnswerer agent.NodeAnswerer
}

// Options configures an Orchestrator.
type Options struct {
	// AgentTimeout bounds every collaborator call. On expiry the call
	// degrades to its documented fallback.
	AgentTimeout time.Duration

	// MaxAgentCalls caps collaborator calls per pipeline run. 0 means
	// unlimited.
	MaxAgentCalls int

	// HistoryWindow is the number of recent utterances rendered into
	// collaborator prompts.
	HistoryWindow int

	// Memory receives extracted entities from a supervised background
	// task and enriches reply generation via search. Optional.
	Memory core.MemoryStore

	Logger logging.Logger
}

// Orchestrator runs the per-message pipeline: parallel extraction and
// correction classification, graph apply, reply generation, safety gating,
// and, in scenario mode, probe routing, part fan-out, milestone detection,
// and derived telemetry. Every stage degrades to a documented fallback, so a
// submitted message always yields a reply and at least one graph node.
type Orchestrator struct {
	collab Collaborators
	opts   Options
}

// New creates an orchestrator around the given collaborators.
func New(collab Collaborators, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		AgentTimeout:  30 * time.Second,
		HistoryWindow: 12,
		Logger:        logging.NewDefaultSlogLogger(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Orchestrator{collab: collab, opts: opts}
}

// runEnv carries the per-run plumbing shared by all stages.
type runEnv struct {
	sess      *session.Session
	unicast   core.Emitter
	multicast core.Emitter
	limiter   *core.CallLimiter
	logger    *logging.SessionLogger
	timeout   time.Duration
}

// emit delivers one event best-effort: a transport failure is logged and
// never aborts the pipeline.
func (e *runEnv) emit(ctx context.Context, em core.Emitter, ev core.Event) {
	if em == nil {
		return
	}
	if err := em.Emit(ctx, ev); err != nil {
		e.logger.Warn("event emit failed", "event", ev.EventType(), "error", err.Error())
	}
}

// invoke brackets one collaborator call with a paired running/done status,
// bounds it with the agent timeout, and degrades to fallback on any failure.
// The done event of a caught failure carries a failure summary, never an
// error escape.
func invoke[T any](ctx context.Context, env *runEnv, name string, fallback T, fn func(ctx context.Context) (T, string, error)) T {
	env.emit(ctx, env.unicast, core.AgentStatus{Agent: name, Status: "running"})

	if err := env.limiter.Increment(); err != nil {
		env.logger.Warn("agent call skipped", "agent", name, "error", err.Error())
		env.emit(ctx, env.unicast, core.AgentStatus{Agent: name, Status: "done", Summary: "skipped: " + err.Error()})
		return fallback
	}

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, env.timeout)
	defer cancel()

	val, summary, err := fn(callCtx)
	dur := time.Since(start)
	env.logger.LogAgentCall(name, dur, err)

	if err != nil {
		env.emit(ctx, env.unicast, core.AgentStatus{Agent: name, Status: "done", Summary: "failed: " + err.Error(), DurationMs: dur.Milliseconds()})
		return fallback
	}

	env.emit(ctx, env.unicast, core.AgentStatus{Agent: name, Status: "done", Summary: summary, DurationMs: dur.Milliseconds()})
	return val
}

// ProcessMessage runs the full pipeline for one user message and returns the
// delivered reply text. Callers must serialize runs per session via
// Session.RunExclusive; turn numbering and dedup are not safe under
// concurrent runs against the same graph.
func (o *Orchestrator) ProcessMessage(ctx context.Context, sess *session.Session, text string, unicast, multicast core.Emitter) string {
	runID := uuid.NewString()
	env := &runEnv{
		sess:      sess,
		unicast:   unicast,
		multicast: multicast,
		limiter:   core.NewCallLimiter(o.opts.MaxAgentCalls),
		logger:    logging.WithSession(o.opts.Logger, sess.ID()),
		timeout:   o.opts.AgentTimeout,
	}

	g := sess.Graph()
	turnBefore := g.Turn()
	turn := g.AdvanceTurn()
	env.logger.Info("processing message", "run_id", runID, "turn", turn)

	// History is captured before the current message joins the log, so
	// collaborators see it exactly once, as the standalone input.
	history := sess.FormatHistory(o.opts.HistoryWindow)
	priorReply := sess.LastReply()
	profile := sess.Profile().Render()
	graphContext := g.RenderForPrompt()
	nodeSummary := g.NodeSummary()
	sess.AppendUtterance(core.Utterance{Role: "user", Content: text})

	// Stage A: extraction and correction classification fan out in
	// parallel. They read only the inputs captured above and write
	// disjoint result slots.
	var (
		wg         sync.WaitGroup
		extraction agent.Extraction
		correction *agent.Correction
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		extraction = invoke(ctx, env, "extractor", agent.Extraction{}, func(ctx context.Context) (agent.Extraction, string, error) {
			ex, err := o.collab.Extractor.Extract(ctx, text, graphContext, nodeSummary)
			return ex, fmt.Sprintf("%d entities", len(ex.Entities)), err
		})
	}()
	if priorReply != "" && o.collab.Classifier != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			correction = invoke(ctx, env, "classifier", nil, func(ctx context.Context) (*agent.Correction, string, error) {
				c, err := o.collab.Classifier.Classify(ctx, text, priorReply, history, profile)
				summary := ""
				if c != nil {
					summary = c.CorrectionType
				}
				return c, summary, err
			})
		}()
	}
	wg.Wait()

	// Stage A.1: a processed message always lands at least one node.
	if len(extraction.Entities) == 0 {
		extraction.Entities = []agent.Entity{synthesizeMemory(text)}
	}

	// Stage B: apply extraction, then report the snapshot plus this
	// turn's flattened field changes.
	affected := o.applyExtraction(env, extraction)
	nodeChanges := g.ChangesSince(turnBefore)
	env.emit(ctx, env.unicast, core.GraphUpdate{GraphData: g.Snapshot(), NodeChanges: nodeChanges})

	if correction.IsCorrection() {
		sess.RecordCorrection(turn, correction.CorrectionType, correction.ReflectionNote, correction.UpdatedProfileNote)
		env.emit(ctx, env.unicast, core.CorrectionDetected{
			CorrectionType:  correction.CorrectionType,
			BeforeClaim:     priorReply,
			AfterInsight:    correction.ReflectionNote,
			AffectedNodeIDs: affected,
			FieldChanges:    nodeChanges,
		})
	}

	// Stages C and D, split by mode.
	var delivered string
	var probe agent.ProbeAnalysis
	if sess.Scenario() != nil {
		delivered, probe = o.runScenarioTurn(ctx, env, text, history)
	} else {
		delivered = o.runCompanionTurn(ctx, env, text, history, profile)
	}
	sess.SetLastReply(delivered)

	// Stage F: milestone detection, strictly first-untriggered-only.
	triggeredNow := false
	if sc := sess.Scenario(); sc != nil {
		triggeredBefore := len(sess.TriggeredMilestones())
		triggeredNow = o.detectMilestone(ctx, env, probe)

		// Stage E: telemetry derives from milestone progress and probe
		// intensity; it follows the milestone multicast in stream order.
		env.emit(ctx, env.unicast, core.VectorSnapshot{Vectors: computeVectors(triggeredBefore, triggeredNow, probe.Intensity)})

		warmth := core.WarmthSignal{Warmth: 1.0}
		if next, ok := sc.NextMilestone(sess.TriggeredMilestones()); ok {
			warmth = core.WarmthSignal{Warmth: next.Warmth, NextBreakthroughID: next.ID}
		}
		env.emit(ctx, env.unicast, warmth)
	}

	o.ingestMemories(env, text, turn, extraction)

	env.logger.Info("message processed", "run_id", runID, "turn", turn,
		"agent_calls", env.limiter.Count(), "calls_remaining", env.limiter.Remaining(),
		"milestone_triggered", triggeredNow)
	return delivered
}

// applyExtraction upserts entities and relationships, remapping relationship
// endpoints through the ids the dedup actually landed on. Returns the
// affected node ids in application order.
func (o *Orchestrator) applyExtraction(env *runEnv, extraction agent.Extraction) []string {
	g := env.sess.Graph()

	idMap := make(map[string]string, len(extraction.Entities))
	affected := make([]string, 0, len(extraction.Entities))
	for _, e := range extraction.Entities {
		node, _ := g.UpsertNode(core.Node{
			ID:          e.ID,
			Label:       e.Label,
			Type:        core.NodeType(e.Type),
			Description: e.Description,
			Importance:  e.Importance,
		}, e.IsUpdate)
		idMap[e.ID] = node.ID
		affected = append(affected, node.ID)
	}

	for _, r := range extraction.Relationships {
		source, target := r.Source, r.Target
		if mapped, ok := idMap[source]; ok {
			source = mapped
		}
		if mapped, ok := idMap[target]; ok {
			target = mapped
		}
		g.UpsertEdge(core.Edge{Source: source, Target: target, Type: core.EdgeType(r.Type), Label: r.Label})
	}

	return affected
}

// runCompanionTurn generates and gates the single companion reply.
func (o *Orchestrator) runCompanionTurn(ctx context.Context, env *runEnv, text, history, profile string) string {
	g := env.sess.Graph()

	graphSummary := g.RenderForPrompt()
	if o.opts.Memory != nil {
		if hits, err := o.opts.Memory.Search(env.sess.ID(), text, 3); err == nil && len(hits) > 0 {
			var b strings.Builder
			b.WriteString(graphSummary)
			b.WriteString("\nRelated memories:\n")
			for _, h := range hits {
				fmt.Fprintf(&b, "- %s\n", h.Content)
			}
			graphSummary = b.String()
		}
	}

	reply := invoke(ctx, env, "reply_generator", FallbackReply, func(ctx context.Context) (string, string, error) {
		r, err := o.collab.Reply.GenerateReply(ctx, text, graphSummary, history, profile)
		return r, "reply ready", err
	})

	verdict := invoke(ctx, env, "safety_gate", agent.SafetyVerdict{Approved: true}, func(ctx context.Context) (agent.SafetyVerdict, string, error) {
		v, err := o.collab.Safety.Review(ctx, reply, text, history)
		return v, v.Reason, err
	})

	final := resolveVerdict(reply, verdict)
	env.emit(ctx, env.unicast, core.PartResponse{Part: CompanionPartID, Name: "Companion", Content: final})
	env.sess.AppendUtterance(core.Utterance{Role: "assistant", Content: final})
	return final
}

// resolveVerdict applies the safety gate's judgment to the proposed reply.
// Crisis detection always wins: the crisis resource text is prepended to the
// modified reply (or the original if none was supplied) even when the reply
// was approved.
func resolveVerdict(reply string, verdict agent.SafetyVerdict) string {
	if verdict.CrisisDetected {
		base := verdict.ModifiedReply
		if base == "" {
			base = reply
		}
		return CrisisText + base
	}
	if !verdict.Approved && verdict.ModifiedReply != "" {
		return verdict.ModifiedReply
	}
	return reply
}

// runScenarioTurn routes the probe, fans out one responder call per
// addressed part, gates the combined responses, and delivers them as
// part_response events. A failing part is dropped while the others still
// deliver.
func (o *Orchestrator) runScenarioTurn(ctx context.Context, env *runEnv, text, history string) (string, agent.ProbeAnalysis) {
	sc := env.sess.Scenario()
	g := env.sess.Graph()
	graphState := g.RenderForPrompt()

	probeFallback := agent.ProbeAnalysis{Intensity: agent.IntensityModerate}
	if ids := sc.PartIDs(); len(ids) > 0 {
		probeFallback.AddressedTargets = ids[:1]
	}
	probe := invoke(ctx, env, "probe_router", probeFallback, func(ctx context.Context) (agent.ProbeAnalysis, string, error) {
		p, err := o.collab.Probe.RouteProbe(ctx, text, sc.PartIDs(), history)
		return p, p.Summary, err
	})

	// Fan out one responder call per target; join preserving routing
	// order.
	replies := make([]agent.PartReply, len(probe.AddressedTargets))
	var wg sync.WaitGroup
	for i, target := range probe.AddressedTargets {
		part, ok := sc.PartByID(target)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(i int, part scenario.Part) {
			defer wg.Done()
			replies[i] = invoke(ctx, env, "responder:"+part.ID, agent.PartReply{}, func(ctx context.Context) (agent.PartReply, string, error) {
				r, err := o.collab.Responder.RespondAs(ctx, part, env.sess.PartModifiers(part.ID), text, history, graphState, probe)
				return r, "in character", err
			})
		}(i, part)
	}
	wg.Wait()

	delivered := make([]agent.PartReply, 0, len(replies))
	var combined strings.Builder
	for _, r := range replies {
		if r.Content == "" {
			continue
		}
		delivered = append(delivered, r)
		fmt.Fprintf(&combined, "%s: %s\n", r.Name, r.Content)
	}

	verdict := invoke(ctx, env, "safety_gate", agent.SafetyVerdict{Approved: true}, func(ctx context.Context) (agent.SafetyVerdict, string, error) {
		v, err := o.collab.Safety.Review(ctx, combined.String(), text, history)
		return v, v.Reason, err
	})

	// The gate's verdict still decides what reaches the user: an
	// unapproved turn is replaced by the modified reply in a neutral
	// voice, and a crisis always appends the resource text.
	if !verdict.Approved && !verdict.CrisisDetected && verdict.ModifiedReply != "" {
		delivered = []agent.PartReply{{Target: "guide", Name: "Guide", Content: verdict.ModifiedReply}}
	}
	if verdict.CrisisDetected {
		crisis := CrisisText
		if verdict.ModifiedReply != "" {
			crisis += verdict.ModifiedReply
		}
		delivered = append(delivered, agent.PartReply{Target: "guide", Name: "Guide", Content: crisis})
	}
	if len(delivered) == 0 {
		delivered = []agent.PartReply{{Target: "guide", Name: "Guide", Content: FallbackReply}}
	}

	var final strings.Builder
	for _, r := range delivered {
		env.emit(ctx, env.unicast, core.PartResponse{Part: r.Target, Name: r.Name, Content: r.Content, Color: r.Color})
		env.sess.AppendUtterance(core.Utterance{Role: "part", Speaker: r.Name, Content: r.Content})
		fmt.Fprintf(&final, "%s: %s\n", r.Name, r.Content)
	}
	return final.String(), probe
}

// detectMilestone evaluates only the first untriggered milestone in script
// order. A triggered milestone is marked before its rewrite is applied, so
// it can never fire twice, and the breakthrough event is multicast to every
// observer of the session.
func (o *Orchestrator) detectMilestone(ctx context.Context, env *runEnv, probe agent.ProbeAnalysis) bool {
	sc := env.sess.Scenario()
	g := env.sess.Graph()

	next, ok := sc.NextMilestone(env.sess.TriggeredMilestones())
	if !ok {
		return false
	}

	history := env.sess.FormatHistory(o.opts.HistoryWindow)
	result := invoke(ctx, env, "milestone_detector", agent.MilestoneResult{}, func(ctx context.Context) (agent.MilestoneResult, string, error) {
		r, err := o.collab.Milestones.Detect(ctx, next, history, probe.Summary, env.sess.LastReply())
		return r, r.Reasoning, err
	})
	if !result.Triggered {
		return false
	}

	if !env.sess.MarkMilestone(next.ID) {
		return false
	}
	diff := g.ApplyRewrite(next.GraphChanges)
	env.sess.AddPartModifiers(next.PartModifiers)

	env.emit(ctx, env.multicast, core.Breakthrough{
		BreakthroughID: next.ID,
		Name:           next.Name,
		InsightSummary: next.InsightSummary,
		GraphDiff:      diff,
		FullSnapshot:   g.Snapshot(),
	})
	return true
}

// ingestMemories pushes the turn's extracted entities into the memory store
// from a supervised background task. Failures are logged, never silently
// dropped, and never reach the pipeline.
func (o *Orchestrator) ingestMemories(env *runEnv, text string, turn int, extraction agent.Extraction) {
	if o.opts.Memory == nil {
		return
	}

	sessionID := env.sess.ID()
	logger := env.logger
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("memory ingestion panicked", "panic", fmt.Sprint(r))
			}
		}()

		if err := o.opts.Memory.Store(sessionID, text, map[string]any{"turn": turn, "kind": "utterance"}); err != nil {
			logger.Warn("memory ingestion failed", "error", err.Error())
		}
		for _, e := range extraction.Entities {
			content := e.Label
			if e.Description != "" {
				content += ": " + e.Description
			}
			if err := o.opts.Memory.Store(sessionID, content, map[string]any{"turn": turn, "kind": "entity", "type": e.Type}); err != nil {
				logger.Warn("memory ingestion failed", "entity", e.ID, "error", err.Error())
			}
		}
	}()
}

// ProcessNodeQuery answers a direct question about one graph node and emits
// the answer as a node_answer event. Unknown node ids yield an error event.
func (o *Orchestrator) ProcessNodeQuery(ctx context.Context, sess *session.Session, nodeID, question string, unicast core.Emitter) {
	env := &runEnv{
		sess:    sess,
		unicast: unicast,
		limiter: core.NewCallLimiter(o.opts.MaxAgentCalls),
		logger:  logging.WithSession(o.opts.Logger, sess.ID()),
		timeout: o.opts.AgentTimeout,
	}

	node, ok := sess.Graph().NodeByID(nodeID)
	if !ok {
		env.emit(ctx, unicast, core.ErrorEvent{Message: fmt.Sprintf("unknown node %q", nodeID)})
		return
	}
	if o.collab.NodeAnswerer == nil {
		env.emit(ctx, unicast, core.ErrorEvent{Message: "node queries are not enabled"})
		return
	}

	history := sess.FormatHistory(o.opts.HistoryWindow)
	answer := invoke(ctx, env, "node_answerer", "", func(ctx context.Context) (string, string, error) {
		a, err := o.collab.NodeAnswerer.AnswerNodeQuery(ctx, node, question, history)
		return a, "answered", err
	})
	if answer == "" {
		answer = fmt.Sprintf("%s is part of your story here, but I can't say more right now.", node.Label)
	}
	env.emit(ctx, unicast, core.NodeAnswer{NodeID: nodeID, Answer: answer})
}

// synthesizeMemory builds the guaranteed fallback node for a message whose
// extraction came back empty. The id is a stable digest of the text; the
// label is a short prefix.
func synthesizeMemory(text string) agent.Entity {
	sum := sha1.Sum([]byte(text))
	label := text
	if runes := []rune(label); len(runes) > 30 {
		label = string(runes[:30])
	}
	return agent.Entity{
		ID:          "memory_" + hex.EncodeToString(sum[:4]),
		Label:       label,
		Type:        string(core.NodeTypeMemory),
		Description: text,
		Importance:  5,
	}
}
