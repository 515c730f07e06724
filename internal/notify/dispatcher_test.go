package notify

import (
	"fmt"
	"testing"

	"tda/internal/logging"
	"tda/internal/types"
)

type recordingSink struct {
	calls  []string
	steps  []types.StepRecord
	states []types.ConnState
}

func (r *recordingSink) record(format string, args ...any) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recordingSink) SetConnState(state types.ConnState) {
	r.states = append(r.states, state)
	r.record("conn:%s", state)
}
func (r *recordingSink) ShowReconfiguration(message string, f types.Fields) {
	r.record("reconfig:%s", message)
}
func (r *recordingSink) ShowInfoBanner(message string)    { r.record("info:%s", message) }
func (r *recordingSink) ShowWarningBanner(message string) { r.record("warn:%s", message) }
func (r *recordingSink) InsertSession(s *types.Session)   { r.record("insert:%s", s.ID) }
func (r *recordingSink) UpdateSessionMeta(id, name, model string) {
	r.record("meta:%s:%s:%s", id, name, model)
}
func (r *recordingSink) TouchSession(id string)        { r.record("touch:%s", id) }
func (r *recordingSink) MarkSessionActivity(id string) { r.record("activity:%s", id) }
func (r *recordingSink) AppendChatTurn(sessionID, role, content string) {
	r.record("chat:%s:%s:%s", sessionID, role, content)
}
func (r *recordingSink) SetIndicator(target string, busy bool) {
	r.record("indicator:%s:%v", target, busy)
}
func (r *recordingSink) BlinkCaseIndicator()      { r.record("blink:case") }
func (r *recordingSink) BlinkKnowledgeIndicator() { r.record("blink:knowledge") }
func (r *recordingSink) AppendStep(step types.StepRecord) {
	r.steps = append(r.steps, step)
	r.record("step:%s:%s", step.Source, step.Title)
}
func (r *recordingSink) CompleteActiveStep() { r.record("complete-step") }

func (r *recordingSink) has(call string) bool {
	for _, c := range r.calls {
		if c == call {
			return true
		}
	}
	return false
}

type recordingGenie struct {
	kinds []types.EventKind
	sink  *recordingSink
}

func (g *recordingGenie) HandleGenieEvent(kind types.EventKind, f types.Fields) {
	g.kinds = append(g.kinds, kind)
	if g.sink != nil {
		g.sink.record("genie-delegate:%s", kind)
	}
}

type recordingAgent struct {
	kinds []types.EventKind
	steps []types.StepRecord
	sink  *recordingSink
}

func (a *recordingAgent) HandleAgentEvent(kind types.EventKind, f types.Fields, applied types.StepRecord) {
	a.kinds = append(a.kinds, kind)
	a.steps = append(a.steps, applied)
	if a.sink != nil {
		a.sink.record("agent-delegate:%s", kind)
	}
}

func newTestDispatcher() (*Dispatcher, *recordingSink, *recordingGenie, *recordingAgent, *types.UIState) {
	sink := &recordingSink{}
	genie := &recordingGenie{sink: sink}
	agent := &recordingAgent{sink: sink}
	state := &types.UIState{ActiveSessionID: "s1"}
	d := NewDispatcher(state, sink, genie, agent, logging.Nop())
	return d, sink, genie, agent, state
}

func TestDispatchMalformedThenWellFormed(t *testing.T) {
	d, sink, _, _, _ := newTestDispatcher()

	d.Dispatch([]byte(`{not json`))
	d.Dispatch([]byte(`{"payload":{}}`))
	if len(sink.calls) != 0 {
		t.Fatalf("malformed input reached the sink: %v", sink.calls)
	}

	d.Dispatch([]byte(`{"type":"info","message":"hello"}`))
	if !sink.has("info:hello") {
		t.Fatalf("well-formed event after malformed ones not dispatched: %v", sink.calls)
	}
}

func TestDispatchForcesConnected(t *testing.T) {
	d, sink, _, _, _ := newTestDispatcher()

	if d.ConnState() != types.ConnDisconnected {
		t.Fatalf("initial state = %s", d.ConnState())
	}
	d.Dispatch([]byte(`{"type":"info","message":"a"}`))
	if d.ConnState() != types.ConnConnected {
		t.Fatalf("state after event = %s, want connected", d.ConnState())
	}
	// Second event must not re-notify the sink: the transition already happened.
	d.Dispatch([]byte(`{"type":"info","message":"b"}`))
	if len(sink.states) != 1 {
		t.Fatalf("SetConnState called %d times, want 1", len(sink.states))
	}

	d.HandleTransportState(types.ConnReconnecting)
	d.Dispatch([]byte(`{"type":"info","message":"c"}`))
	if d.ConnState() != types.ConnConnected {
		t.Fatalf("event during reconnect did not heal state: %s", d.ConnState())
	}
}

func TestUnknownEventTypeIsIgnored(t *testing.T) {
	d, sink, _, _, _ := newTestDispatcher()

	d.Dispatch([]byte(`{"type":"some_future_thing","payload":{"x":1}}`))
	if len(sink.states) != 1 {
		t.Fatalf("unknown event should still force connected")
	}
	for _, c := range sink.calls {
		if c != "conn:connected" {
			t.Fatalf("unknown event produced sink effect %q", c)
		}
	}
}

func TestSessionGuardMarksActivityOnly(t *testing.T) {
	d, sink, genie, agent, _ := newTestDispatcher()

	d.Dispatch([]byte(`{"type":"genie_slave_invoked","payload":{"session_id":"other","profile_tag":"SQL"}}`))
	d.Dispatch([]byte(`{"type":"conversation_tool_invoked","payload":{"session_id":"other","tool_name":"search"}}`))
	d.Dispatch([]byte(`{"type":"rest_task_update","payload":{"session_id":"other","event":{"type":"final_answer"}}}`))

	if !sink.has("activity:other") {
		t.Fatalf("foreign session activity not marked: %v", sink.calls)
	}
	if len(sink.steps) != 0 {
		t.Fatalf("foreign session events rendered steps: %+v", sink.steps)
	}
	if len(genie.kinds) != 0 || len(agent.kinds) != 0 {
		t.Fatalf("foreign session events reached delegates")
	}
}

func TestGenieEventForActiveSession(t *testing.T) {
	d, sink, genie, _, state := newTestDispatcher()

	d.Dispatch([]byte(`{"type":"genie_slave_completed","payload":{"session_id":"s1","profile_tag":"SQL","success":true,"duration_ms":2500}}`))

	if len(genie.kinds) != 1 || genie.kinds[0] != types.EventGenieSlaveCompleted {
		t.Fatalf("genie delegate kinds = %v", genie.kinds)
	}
	if len(sink.steps) != 1 {
		t.Fatalf("step count = %d", len(sink.steps))
	}
	step := sink.steps[0]
	if step.Title != "SQL expert: Completed (2.5s)" {
		t.Fatalf("step title = %q", step.Title)
	}
	if step.Final {
		t.Fatalf("slave completion must not finalise the stage log")
	}
	if !state.GenieActive {
		t.Fatalf("genie activity flag not set")
	}

	d.Dispatch([]byte(`{"type":"genie_coordination_complete","payload":{"session_id":"s1","duration_ms":9000}}`))
	if state.GenieActive {
		t.Fatalf("coordination completion left genie flag set")
	}
	if last := sink.steps[len(sink.steps)-1]; !last.Final {
		t.Fatalf("coordination completion step not final")
	}
}

func TestAgentStepAppliedBeforeDelegate(t *testing.T) {
	d, sink, _, agent, _ := newTestDispatcher()

	d.Dispatch([]byte(`{"type":"conversation_agent_complete","payload":{"session_id":"s1","duration_ms":1200}}`))

	var stepIdx, delegateIdx = -1, -1
	for i, c := range sink.calls {
		switch c {
		case "step:conversation_agent:Agent finished (1.2s)":
			stepIdx = i
		case "agent-delegate:conversation_agent_complete":
			delegateIdx = i
		}
	}
	if stepIdx == -1 || delegateIdx == -1 {
		t.Fatalf("missing call, got %v", sink.calls)
	}
	if stepIdx > delegateIdx {
		t.Fatalf("delegate ran before the status step was applied: %v", sink.calls)
	}
	if len(agent.steps) != 1 || !agent.steps[0].Final {
		t.Fatalf("delegate did not receive the applied final step: %+v", agent.steps)
	}
}

func TestRestTaskUpdateInnerEvents(t *testing.T) {
	d, sink, _, _, state := newTestDispatcher()

	d.Dispatch([]byte(`{"type":"rest_task_update","payload":{"session_id":"s1","event":{"type":"rag_retrieval","cases":3}}}`))
	if !sink.has("blink:case") {
		t.Fatalf("rag retrieval did not blink the case indicator: %v", sink.calls)
	}
	if len(state.LastCase) == 0 {
		t.Fatalf("rag retrieval payload not cached")
	}

	d.Dispatch([]byte(`{"type":"rest_task_update","payload":{"session_id":"s1","event":{"type":"knowledge_retrieval","collections":2,"documents":14}}}`))
	if !sink.has("blink:knowledge") {
		t.Fatalf("knowledge retrieval did not blink: %v", sink.calls)
	}
	if state.Knowledge.Collections != 2 || state.Knowledge.Documents != 14 {
		t.Fatalf("knowledge stats = %+v", state.Knowledge)
	}

	d.Dispatch([]byte(`{"type":"rest_task_update","payload":{"session_id":"s1","event":{"type":"error"}}}`))
	last := sink.steps[len(sink.steps)-1]
	if last.State != types.StepStateFailed || !last.Final {
		t.Fatalf("error inner event step = %+v", last)
	}
}

func TestKnowledgeBlinkSuppressedInHistory(t *testing.T) {
	d, sink, _, _, state := newTestDispatcher()
	state.ViewingHistory = true

	d.Dispatch([]byte(`{"type":"rest_task_update","payload":{"session_id":"s1","event":{"type":"knowledge_retrieval","collections":1,"documents":5}}}`))
	if sink.has("blink:knowledge") {
		t.Fatalf("history view must suppress knowledge blink")
	}
	if state.Knowledge.Documents != 5 {
		t.Fatalf("stats should still update during history view: %+v", state.Knowledge)
	}
}

func TestRestTaskComplete(t *testing.T) {
	d, sink, _, _, state := newTestDispatcher()
	state.Executing = true

	d.Dispatch([]byte(`{"type":"rest_task_complete","payload":{"session_id":"s1","user_input":"list users","final_answer":"There are 4 users."}}`))

	if !sink.has("chat:s1:user:list users") {
		t.Fatalf("user turn not appended: %v", sink.calls)
	}
	if !sink.has("chat:s1:assistant:There are 4 users.") {
		t.Fatalf("assistant turn not appended: %v", sink.calls)
	}
	if !sink.has("touch:s1") {
		t.Fatalf("session not touched")
	}
	if state.Executing {
		t.Fatalf("executing flag not cleared")
	}
	if !sink.has("complete-step") {
		t.Fatalf("active step not completed")
	}
}

func TestKnowledgeEventsIgnoreSessionGuard(t *testing.T) {
	d, sink, _, _, state := newTestDispatcher()

	// Standalone retrieval events carry no session id, or one for a session
	// that is not active. They render either way.
	d.Dispatch([]byte(`{"type":"knowledge_retrieval_complete","payload":{"session_id":"other","documents":7,"collections":1,"duration_ms":400}}`))

	if len(sink.steps) != 1 {
		t.Fatalf("knowledge event for foreign session not rendered")
	}
	if !sink.steps[0].Final {
		t.Fatalf("retrieval completion step not final")
	}
	if state.Knowledge.Documents != 7 {
		t.Fatalf("knowledge stats = %+v", state.Knowledge)
	}
	if len(state.LastKnowledge) == 0 {
		t.Fatalf("retrieval payload not cached")
	}
	if !sink.has("blink:knowledge") {
		t.Fatalf("knowledge blink missing")
	}
}

func TestStatusIndicatorUpdate(t *testing.T) {
	d, sink, _, _, _ := newTestDispatcher()

	d.Dispatch([]byte(`{"type":"status_indicator_update","payload":{"target":"db","state":"busy"}}`))
	d.Dispatch([]byte(`{"type":"status_indicator_update","payload":{"target":"db","state":"idle"}}`))
	d.Dispatch([]byte(`{"type":"status_indicator_update","payload":{"state":"busy"}}`))

	if !sink.has("indicator:db:true") || !sink.has("indicator:db:false") {
		t.Fatalf("indicator transitions missing: %v", sink.calls)
	}
	for _, c := range sink.calls {
		if c == "indicator::true" {
			t.Fatalf("indicator update without target should be dropped")
		}
	}
}

func TestSessionLifecycleEvents(t *testing.T) {
	d, sink, _, _, _ := newTestDispatcher()

	d.Dispatch([]byte(`{"type":"new_session_created","payload":{"session_id":"s9","name":"fresh","model":"gpt-4o"}}`))
	if !sink.has("insert:s9") {
		t.Fatalf("new session not inserted: %v", sink.calls)
	}

	d.Dispatch([]byte(`{"type":"session_name_update","payload":{"session_id":"s9","name":"renamed"}}`))
	if !sink.has("meta:s9:renamed:") {
		t.Fatalf("session rename not applied: %v", sink.calls)
	}

	d.Dispatch([]byte(`{"type":"session_model_update","payload":{"session_id":"s9","model":"gpt-4o-mini"}}`))
	if !sink.has("meta:s9::gpt-4o-mini") {
		t.Fatalf("model update not applied: %v", sink.calls)
	}
}

func TestReconfigurationAndWarnings(t *testing.T) {
	d, sink, _, _, _ := newTestDispatcher()

	d.Dispatch([]byte(`{"type":"reconfiguration","message":"Server restarting","payload":{"reason":"upgrade"}}`))
	if !sink.has("reconfig:Server restarting") {
		t.Fatalf("reconfiguration not surfaced: %v", sink.calls)
	}

	d.Dispatch([]byte(`{"type":"profile_override_failed","payload":{"requested_profile":"fast","fallback_profile":"default"}}`))
	if !sink.has("warn:Profile fast unavailable, using default") {
		t.Fatalf("profile warning not surfaced: %v", sink.calls)
	}
}
