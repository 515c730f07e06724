package types

import "encoding/json"

// StepSource categorizes which execution trace a status-window step belongs to.
type StepSource string

const (
	StepSourceRest      StepSource = "rest"
	StepSourceGenie     StepSource = "genie"
	StepSourceAgent     StepSource = "conversation_agent"
	StepSourceKnowledge StepSource = "knowledge_retrieval"
)

type StepState string

const (
	StepStateActive    StepState = "active"
	StepStateCompleted StepState = "completed"
	StepStateFailed    StepState = "failed"
)

// StepRecord is one entry in the status window's append-only trace log.
type StepRecord struct {
	Source  StepSource      `json:"source"`
	Title   string          `json:"title"`
	Payload json.RawMessage `json:"payload,omitempty"`
	State   StepState       `json:"state"`
	Final   bool            `json:"final,omitempty"`
}
