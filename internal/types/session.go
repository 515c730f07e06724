package types

import "time"

// GenieMetadata marks a session spawned by a genie coordinator on behalf of
// one routed expert.
type GenieMetadata struct {
	IsGenieSlave    bool   `json:"is_genie_slave,omitempty"`
	ParentSessionID string `json:"parent_session_id,omitempty"`
}

type Session struct {
	ID         string         `json:"id"`
	Name       string         `json:"name,omitempty"`
	Model      string         `json:"model,omitempty"`
	ProfileTag string         `json:"profile_tag,omitempty"`
	Genie      *GenieMetadata `json:"genie_metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at,omitempty"`
}

func (s *Session) IsSlave() bool {
	return s != nil && s.Genie != nil && s.Genie.IsGenieSlave
}

func (s *Session) ParentID() string {
	if s == nil || s.Genie == nil {
		return ""
	}
	return s.Genie.ParentSessionID
}

// SessionFromFields builds a Session out of a notification payload,
// tolerating whichever fields the backend chose to include.
func SessionFromFields(f Fields) *Session {
	id := f.Str("id")
	if id == "" {
		id = f.SessionID()
	}
	s := &Session{
		ID:         id,
		Name:       f.Str("name"),
		Model:      f.Str("model"),
		ProfileTag: f.Str("profile_tag"),
	}
	if meta := f.Sub("genie_metadata"); meta.Bool("is_genie_slave") {
		s.Genie = &GenieMetadata{
			IsGenieSlave:    true,
			ParentSessionID: meta.Str("parent_session_id"),
		}
	}
	return s
}
