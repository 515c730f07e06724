package types

import "encoding/json"

// KnowledgeStats is the collections/document-count readout updated by
// knowledge-retrieval events.
type KnowledgeStats struct {
	Collections int `json:"collections"`
	Documents   int `json:"documents"`
}

// UIState is the single shared mutable state read and written by the
// dispatcher and its delegated trace handlers. It is passed by pointer into
// every collaborator; there are no package-level globals. All access happens
// on the UI event loop, so no locking is required.
type UIState struct {
	ActiveSessionID string

	// ViewingHistory is set while the user is reading back historical,
	// non-live turns; knowledge indicator blinks are suppressed then.
	ViewingHistory bool

	// Executing locks the chat input while a rest task is in flight for the
	// active session.
	Executing bool

	AgentActive bool
	GenieActive bool

	// LastCase holds the most recent rag_retrieval payload for replay when
	// the user opens the case panel; LastKnowledge does the same for
	// completed knowledge retrievals.
	LastCase      json.RawMessage
	LastKnowledge json.RawMessage
	Knowledge     KnowledgeStats
}
