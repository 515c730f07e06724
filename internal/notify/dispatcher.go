package notify

import (
	"tda/internal/logging"
	"tda/internal/types"
)

// Sink is the surface the dispatcher mutates. The TUI implements it; tests
// substitute a recorder. Implementations must tolerate any argument (missing
// ids, empty strings) without failing; a dropped visual update is the worst
// permitted outcome.
type Sink interface {
	SetConnState(state types.ConnState)

	ShowReconfiguration(message string, f types.Fields)
	ShowInfoBanner(message string)
	ShowWarningBanner(message string)

	InsertSession(s *types.Session)
	UpdateSessionMeta(id, name, model string)
	TouchSession(id string)
	MarkSessionActivity(id string)

	AppendChatTurn(sessionID, role, content string)

	SetIndicator(target string, busy bool)
	BlinkCaseIndicator()
	BlinkKnowledgeIndicator()

	AppendStep(step types.StepRecord)
	CompleteActiveStep()
}

// GenieDelegate maintains the inline coordination progress card. The status
// window is updated by the dispatcher independently of this delegate.
type GenieDelegate interface {
	HandleGenieEvent(kind types.EventKind, f types.Fields)
}

// AgentDelegate maintains the tool-use trace. It receives the status-window
// step the dispatcher already applied: completion side effects inside the
// delegate (clearing the agent-active flag) would otherwise suppress the
// final status render, so the applied step is a parameter, not a suggestion.
type AgentDelegate interface {
	HandleAgentEvent(kind types.EventKind, f types.Fields, applied types.StepRecord)
}

// Dispatcher owns event classification for the notification channel: every
// inbound envelope becomes either a direct Sink effect or a delegated call.
// It is driven from a single goroutine (the UI loop) and never panics out of
// Dispatch: bad input is logged and dropped, the channel stays live.
type Dispatcher struct {
	state *types.UIState
	ui    Sink
	genie GenieDelegate
	agent AgentDelegate
	log   logging.Logger

	conn types.ConnState
}

func NewDispatcher(state *types.UIState, ui Sink, genie GenieDelegate, agent AgentDelegate, log logging.Logger) *Dispatcher {
	if log == nil {
		log = logging.Nop()
	}
	return &Dispatcher{
		state: state,
		ui:    ui,
		genie: genie,
		agent: agent,
		log:   log,
		conn:  types.ConnDisconnected,
	}
}

func (d *Dispatcher) ConnState() types.ConnState {
	return d.conn
}

// HandleTransportState applies a connection lifecycle transition reported by
// the subscriber (open, error, terminal shutdown).
func (d *Dispatcher) HandleTransportState(state types.ConnState) {
	d.setConn(state)
}

func (d *Dispatcher) setConn(state types.ConnState) {
	if state == d.conn {
		return
	}
	d.log.Info("connection state", logging.F("from", string(d.conn)), logging.F("to", string(state)))
	d.conn = state
	d.ui.SetConnState(state)
}

// Dispatch routes one raw notification body. Malformed bodies are dropped;
// every well-formed one forces the connection state to connected, healing a
// missed open event.
func (d *Dispatcher) Dispatch(raw []byte) {
	env, err := types.ParseEnvelope(raw)
	if err != nil {
		d.log.Warn("dropping malformed notification", logging.F("err", err))
		return
	}
	kind := env.Kind()
	if !kind.IsRoutine() {
		d.log.Debug("notification", logging.F("type", env.Type))
	}
	d.setConn(types.ConnConnected)

	f := env.Fields()
	switch kind {
	case types.EventReconfiguration:
		d.ui.ShowReconfiguration(env.Message, f)

	case types.EventInfo:
		message := env.Message
		if message == "" {
			message = f.Str("message")
		}
		d.ui.ShowInfoBanner(message)

	case types.EventNewSessionCreated:
		session := types.SessionFromFields(f)
		if session.ID == "" {
			d.log.Warn("session created event without id")
			return
		}
		d.ui.InsertSession(session)

	case types.EventSessionNameUpdate, types.EventSessionModelUpdate:
		id := f.SessionID()
		if id == "" {
			return
		}
		d.ui.UpdateSessionMeta(id, f.Str("name"), f.Str("model"))

	case types.EventProfileOverrideFailed:
		d.ui.ShowWarningBanner(profileOverrideMessage(f))

	case types.EventRestTaskUpdate:
		d.handleRestTaskUpdate(env, f)

	case types.EventRestTaskComplete:
		d.handleRestTaskComplete(f)

	case types.EventStatusIndicatorUpdate:
		target := f.Str("target")
		if target == "" {
			return
		}
		d.ui.SetIndicator(target, f.Str("state") == "busy")

	case types.EventGenieStart, types.EventGenieRouting, types.EventGenieCoordinationStart,
		types.EventGenieLLMStep, types.EventGenieRoutingDecision, types.EventGenieSlaveInvoked,
		types.EventGenieSlaveProgress, types.EventGenieSlaveCompleted,
		types.EventGenieSynthesisStart, types.EventGenieCoordinationComplete:
		d.handleGenie(kind, env, f)

	case types.EventAgentStart, types.EventAgentLLMStep, types.EventAgentToolInvoked,
		types.EventAgentToolCompleted, types.EventAgentComplete:
		d.handleAgent(kind, env, f)

	case types.EventKnowledgeRetrieval, types.EventKnowledgeRetrievalStart,
		types.EventKnowledgeRerankingStart, types.EventKnowledgeRerankingComplete,
		types.EventKnowledgeRetrievalComplete, types.EventRagLLMStep,
		types.EventKnowledgeSearchComplete:
		d.handleKnowledge(kind, env, f)

	default:
		// Unknown server event kinds are deliberately ignored: the backend
		// grows new types faster than clients update.
	}
}

// staleSession implements the session-id guard: events for a non-active
// session only flag that session as having unread activity.
func (d *Dispatcher) staleSession(f types.Fields) bool {
	id := f.SessionID()
	if id == "" || id == d.state.ActiveSessionID {
		return false
	}
	d.ui.MarkSessionActivity(id)
	return true
}

func (d *Dispatcher) handleRestTaskUpdate(env *types.Envelope, f types.Fields) {
	if d.staleSession(f) {
		return
	}
	inner := f.Sub("event")
	innerType := inner.Str("type")

	switch innerType {
	case types.InnerRagRetrieval:
		d.ui.BlinkCaseIndicator()
		d.state.LastCase = env.Payload
	case types.InnerKnowledgeRetrieval:
		if !d.state.ViewingHistory {
			d.ui.BlinkKnowledgeIndicator()
		}
		d.state.Knowledge = types.KnowledgeStats{
			Collections: inner.Int("collections"),
			Documents:   inner.Int("documents"),
		}
	}

	final := innerType == types.InnerFinalAnswer ||
		innerType == types.InnerError ||
		innerType == types.InnerCancelled
	state := types.StepStateActive
	if innerType == types.InnerError {
		state = types.StepStateFailed
	}
	d.ui.AppendStep(types.StepRecord{
		Source:  types.StepSourceRest,
		Title:   RestStepTitle(innerType, inner),
		Payload: env.Payload,
		State:   state,
		Final:   final,
	})
}

func (d *Dispatcher) handleRestTaskComplete(f types.Fields) {
	if d.staleSession(f) {
		return
	}
	id := f.SessionID()
	if input := f.Str("user_input"); input != "" {
		d.ui.AppendChatTurn(id, "user", input)
	}
	if answer := f.Str("final_answer"); answer != "" {
		d.ui.AppendChatTurn(id, "assistant", answer)
	}
	d.ui.TouchSession(id)
	d.state.Executing = false
	d.ui.CompleteActiveStep()
}

func (d *Dispatcher) handleGenie(kind types.EventKind, env *types.Envelope, f types.Fields) {
	if d.staleSession(f) {
		return
	}
	d.state.GenieActive = kind != types.EventGenieCoordinationComplete
	d.genie.HandleGenieEvent(kind, f)

	d.ui.AppendStep(types.StepRecord{
		Source:  types.StepSourceGenie,
		Title:   GenieStepTitle(kind, f),
		Payload: env.Payload,
		State:   genieStepState(kind, f),
		Final:   kind == types.EventGenieCoordinationComplete,
	})
}

func genieStepState(kind types.EventKind, f types.Fields) types.StepState {
	if kind == types.EventGenieSlaveCompleted && f.Has("success") && !f.Bool("success") {
		return types.StepStateFailed
	}
	return types.StepStateActive
}

func (d *Dispatcher) handleAgent(kind types.EventKind, env *types.Envelope, f types.Fields) {
	if d.staleSession(f) {
		return
	}
	// The status window must be updated before the delegate runs: on
	// conversation_agent_complete the delegate clears the agent-active flag,
	// which would suppress this very render if it came second.
	step := types.StepRecord{
		Source:  types.StepSourceAgent,
		Title:   AgentStepTitle(kind, f),
		Payload: env.Payload,
		State:   agentStepState(kind, f),
		Final:   kind == types.EventAgentComplete,
	}
	d.ui.AppendStep(step)
	d.state.AgentActive = kind != types.EventAgentComplete
	d.agent.HandleAgentEvent(kind, f, step)
}

func agentStepState(kind types.EventKind, f types.Fields) types.StepState {
	if kind == types.EventAgentToolCompleted && f.Has("success") && !f.Bool("success") {
		return types.StepStateFailed
	}
	return types.StepStateActive
}

// handleKnowledge renders standalone retrieval events unconditionally: they
// may arrive before the owning trace's start event, so no agent-active or
// session guard applies.
func (d *Dispatcher) handleKnowledge(kind types.EventKind, env *types.Envelope, f types.Fields) {
	final := kind == types.EventKnowledgeRetrievalComplete ||
		kind == types.EventKnowledgeSearchComplete ||
		kind == types.EventKnowledgeRetrieval
	if final {
		if !d.state.ViewingHistory {
			d.ui.BlinkKnowledgeIndicator()
		}
		if f.Has("collections") || f.Has("documents") {
			d.state.Knowledge = types.KnowledgeStats{
				Collections: f.Int("collections"),
				Documents:   f.Int("documents"),
			}
		}
		d.state.LastKnowledge = env.Payload
	}
	d.ui.AppendStep(types.StepRecord{
		Source:  types.StepSourceKnowledge,
		Title:   KnowledgeStepTitle(kind, f),
		Payload: env.Payload,
		State:   types.StepStateActive,
		Final:   final,
	})
}

func profileOverrideMessage(f types.Fields) string {
	requested := f.Str("requested_profile")
	fallback := f.Str("fallback_profile")
	switch {
	case requested != "" && fallback != "":
		return "Profile " + requested + " unavailable, using " + fallback
	case requested != "":
		return "Profile " + requested + " unavailable, using default"
	default:
		return "Requested profile unavailable, using default"
	}
}
