package types

import (
	"encoding/json"
	"errors"
	"strings"
)

// EventKind identifies one server-pushed notification type. The set is
// closed on the client side: dispatch switches exhaustively over these
// constants and routes anything else through an explicit unknown branch.
type EventKind string

const (
	EventReconfiguration EventKind = "reconfiguration"
	EventInfo            EventKind = "info"

	EventNewSessionCreated     EventKind = "new_session_created"
	EventSessionNameUpdate     EventKind = "session_name_update"
	EventSessionModelUpdate    EventKind = "session_model_update"
	EventProfileOverrideFailed EventKind = "profile_override_failed"

	EventRestTaskUpdate   EventKind = "rest_task_update"
	EventRestTaskComplete EventKind = "rest_task_complete"

	EventStatusIndicatorUpdate EventKind = "status_indicator_update"

	EventGenieStart                EventKind = "genie_start"
	EventGenieRouting              EventKind = "genie_routing"
	EventGenieCoordinationStart    EventKind = "genie_coordination_start"
	EventGenieLLMStep              EventKind = "genie_llm_step"
	EventGenieRoutingDecision      EventKind = "genie_routing_decision"
	EventGenieSlaveInvoked         EventKind = "genie_slave_invoked"
	EventGenieSlaveProgress        EventKind = "genie_slave_progress"
	EventGenieSlaveCompleted       EventKind = "genie_slave_completed"
	EventGenieSynthesisStart       EventKind = "genie_synthesis_start"
	EventGenieCoordinationComplete EventKind = "genie_coordination_complete"

	EventAgentStart         EventKind = "conversation_agent_start"
	EventAgentLLMStep       EventKind = "conversation_llm_step"
	EventAgentToolInvoked   EventKind = "conversation_tool_invoked"
	EventAgentToolCompleted EventKind = "conversation_tool_completed"
	EventAgentComplete      EventKind = "conversation_agent_complete"

	EventKnowledgeRetrieval         EventKind = "knowledge_retrieval"
	EventKnowledgeRetrievalStart    EventKind = "knowledge_retrieval_start"
	EventKnowledgeRerankingStart    EventKind = "knowledge_reranking_start"
	EventKnowledgeRerankingComplete EventKind = "knowledge_reranking_complete"
	EventKnowledgeRetrievalComplete EventKind = "knowledge_retrieval_complete"
	EventRagLLMStep                 EventKind = "rag_llm_step"
	EventKnowledgeSearchComplete    EventKind = "knowledge_search_complete"
)

// Inner event kinds carried inside rest_task_update payloads.
const (
	InnerFinalAnswer        = "final_answer"
	InnerError              = "error"
	InnerCancelled          = "cancelled"
	InnerRagRetrieval       = "rag_retrieval"
	InnerKnowledgeRetrieval = "knowledge_retrieval"
)

func (k EventKind) IsGenie() bool {
	switch k {
	case EventGenieStart, EventGenieRouting, EventGenieCoordinationStart,
		EventGenieLLMStep, EventGenieRoutingDecision, EventGenieSlaveInvoked,
		EventGenieSlaveProgress, EventGenieSlaveCompleted,
		EventGenieSynthesisStart, EventGenieCoordinationComplete:
		return true
	}
	return false
}

func (k EventKind) IsAgent() bool {
	switch k {
	case EventAgentStart, EventAgentLLMStep, EventAgentToolInvoked,
		EventAgentToolCompleted, EventAgentComplete:
		return true
	}
	return false
}

func (k EventKind) IsKnowledge() bool {
	switch k {
	case EventKnowledgeRetrieval, EventKnowledgeRetrievalStart,
		EventKnowledgeRerankingStart, EventKnowledgeRerankingComplete,
		EventKnowledgeRetrievalComplete, EventRagLLMStep,
		EventKnowledgeSearchComplete:
		return true
	}
	return false
}

// IsRoutine reports whether the kind is chatty enough to be excluded from
// per-event observability logging.
func (k EventKind) IsRoutine() bool {
	return k == EventStatusIndicatorUpdate || k == EventSessionModelUpdate
}

// Envelope is one server-pushed notification as delivered on the stream.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Message string          `json:"message,omitempty"`
}

var ErrMissingType = errors.New("notification has no type")

// ParseEnvelope decodes a raw stream message. A missing or blank type is an
// error so the caller can drop the message without guessing at intent.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if strings.TrimSpace(env.Type) == "" {
		return nil, ErrMissingType
	}
	return &env, nil
}

func (e *Envelope) Kind() EventKind {
	if e == nil {
		return ""
	}
	return EventKind(e.Type)
}

// Fields decodes the payload into a defensive key/value view. Decode errors
// and absent payloads both yield an empty view; lookups on it return zero
// values rather than failing.
func (e *Envelope) Fields() Fields {
	if e == nil || len(e.Payload) == 0 {
		return Fields{}
	}
	var out map[string]any
	if err := json.Unmarshal(e.Payload, &out); err != nil {
		return Fields{}
	}
	return Fields(out)
}

// Fields is a null-safe view over a decoded JSON object.
type Fields map[string]any

func (f Fields) Str(key string) string {
	if f == nil {
		return ""
	}
	s, _ := f[key].(string)
	return s
}

func (f Fields) Int(key string) int {
	if f == nil {
		return 0
	}
	switch v := f[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func (f Fields) Float(key string) float64 {
	if f == nil {
		return 0
	}
	switch v := f[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func (f Fields) Bool(key string) bool {
	if f == nil {
		return false
	}
	b, _ := f[key].(bool)
	return b
}

// Has reports whether the key is present at all, letting callers distinguish
// an absent field from an explicit zero.
func (f Fields) Has(key string) bool {
	if f == nil {
		return false
	}
	_, ok := f[key]
	return ok
}

func (f Fields) Sub(key string) Fields {
	if f == nil {
		return Fields{}
	}
	m, _ := f[key].(map[string]any)
	return Fields(m)
}

func (f Fields) Strings(key string) []string {
	if f == nil {
		return nil
	}
	raw, _ := f[key].([]any)
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// SessionID extracts the session identifier from a payload, accepting both
// snake_case and camelCase spellings used by different backend components.
func (f Fields) SessionID() string {
	if id := f.Str("session_id"); id != "" {
		return id
	}
	return f.Str("sessionId")
}
