package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"tda/internal/types"
)

// sessionItem is one sidebar row. Slave sessions render indented under their
// coordinating parent with tree branch glyphs.
type sessionItem struct {
	session     *types.Session
	slave       bool
	lastSibling bool
	unread      bool
	active      bool
}

func (s *sessionItem) FilterValue() string {
	return s.session.Name
}

func (s *sessionItem) label() string {
	name := strings.TrimSpace(s.session.Name)
	if name == "" {
		name = s.session.ID
	}
	return name
}

// orderForDisplay arranges sessions so each genie slave follows its parent,
// after any slaves already attached to that parent. Slaves whose parent is
// not in the list render at top level rather than disappearing.
func orderForDisplay(sessions []*types.Session) []*types.Session {
	index := make(map[string]bool, len(sessions))
	for _, s := range sessions {
		index[s.ID] = true
	}

	var ordered []*types.Session
	slavesByParent := make(map[string][]*types.Session)
	for _, s := range sessions {
		if parent := s.ParentID(); parent != "" && index[parent] {
			slavesByParent[parent] = append(slavesByParent[parent], s)
			continue
		}
		ordered = append(ordered, s)
	}

	out := make([]*types.Session, 0, len(sessions))
	for _, s := range ordered {
		out = append(out, s)
		out = append(out, slavesByParent[s.ID]...)
	}
	return out
}

func buildSessionItems(sessions []*types.Session, activeID string, unread map[string]bool) []list.Item {
	ordered := orderForDisplay(sessions)
	items := make([]list.Item, 0, len(ordered))
	for i, s := range ordered {
		attached := s.IsSlave() && s.ParentID() != "" && hasSession(ordered, s.ParentID())
		item := &sessionItem{
			session: s,
			slave:   attached,
			unread:  unread[s.ID],
			active:  s.ID == activeID,
		}
		if attached {
			next := i + 1
			item.lastSibling = next >= len(ordered) ||
				ordered[next].ParentID() != s.ParentID() ||
				!ordered[next].IsSlave()
		}
		items = append(items, item)
	}
	return items
}

func hasSession(sessions []*types.Session, id string) bool {
	for _, s := range sessions {
		if s.ID == id {
			return true
		}
	}
	return false
}

type sessionDelegate struct{}

func (d sessionDelegate) Height() int  { return 1 }
func (d sessionDelegate) Spacing() int { return 0 }

func (d sessionDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d sessionDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	s, ok := item.(*sessionItem)
	if !ok {
		return
	}
	var b strings.Builder
	if s.slave {
		if s.lastSibling {
			b.WriteString(slaveBranchStyle.Render("  └─ "))
		} else {
			b.WriteString(slaveBranchStyle.Render("  ├─ "))
		}
	}
	label := truncateToWidth(s.label(), m.Width()-8)
	style := sessionStyle
	switch {
	case s.active:
		style = activeSessionStyle
	case s.unread:
		style = sessionUnreadStyle
	}
	b.WriteString(style.Render(label))
	if s.unread {
		b.WriteString(" " + sessionUnreadStyle.Render("●"))
	}
	line := b.String()
	if index == m.Index() {
		line = selectedStyle.Render(line)
	}
	fmt.Fprint(w, line)
}

// SessionList owns the sidebar: session ordering, unread markers, and the
// bubbles list that navigates them.
type SessionList struct {
	list     list.Model
	sessions []*types.Session
	unread   map[string]bool
	activeID string
}

func NewSessionList(width, height int) *SessionList {
	l := list.New(nil, sessionDelegate{}, width, height)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	return &SessionList{
		list:   l,
		unread: make(map[string]bool),
	}
}

func (s *SessionList) SetSessions(sessions []*types.Session) {
	s.sessions = sessions
	s.rebuild()
}

// Insert places a new session. Fresh top-level sessions go first, newest on
// top; slaves keep arrival order so they group after their parent's existing
// siblings. A session already present is replaced in place.
func (s *SessionList) Insert(session *types.Session) {
	for i, existing := range s.sessions {
		if existing.ID == session.ID {
			s.sessions[i] = session
			s.rebuild()
			return
		}
	}
	if session.IsSlave() {
		s.sessions = append(s.sessions, session)
	} else {
		s.sessions = append([]*types.Session{session}, s.sessions...)
	}
	s.rebuild()
}

// UpdateMeta applies a rename or model change and surfaces the session at the
// top of the list.
func (s *SessionList) UpdateMeta(id, name, model string) {
	for _, existing := range s.sessions {
		if existing.ID != id {
			continue
		}
		if name != "" {
			existing.Name = name
		}
		if model != "" {
			existing.Model = model
		}
		s.moveToFront(id)
		s.rebuild()
		return
	}
}

// Touch surfaces a session that just finished a task. Slaves stay pinned
// under their parent.
func (s *SessionList) Touch(id string) {
	if target := s.Get(id); target == nil || target.IsSlave() {
		return
	}
	s.moveToFront(id)
	s.rebuild()
}

func (s *SessionList) moveToFront(id string) {
	for i, existing := range s.sessions {
		if existing.ID != id || existing.IsSlave() {
			continue
		}
		copy(s.sessions[1:i+1], s.sessions[:i])
		s.sessions[0] = existing
		return
	}
}

func (s *SessionList) MarkUnread(id string) {
	if id == "" || id == s.activeID {
		return
	}
	s.unread[id] = true
	s.rebuild()
}

func (s *SessionList) ClearUnread(id string) {
	if !s.unread[id] {
		return
	}
	delete(s.unread, id)
	s.rebuild()
}

func (s *SessionList) SetActive(id string) {
	s.activeID = id
	delete(s.unread, id)
	s.rebuild()
}

func (s *SessionList) Get(id string) *types.Session {
	for _, existing := range s.sessions {
		if existing.ID == id {
			return existing
		}
	}
	return nil
}

func (s *SessionList) Selected() *types.Session {
	item, ok := s.list.SelectedItem().(*sessionItem)
	if !ok {
		return nil
	}
	return item.session
}

func (s *SessionList) SetSize(width, height int) {
	s.list.SetSize(width, height)
}

func (s *SessionList) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	s.list, cmd = s.list.Update(msg)
	return cmd
}

func (s *SessionList) View() string {
	return s.list.View()
}

func (s *SessionList) Len() int {
	return len(s.sessions)
}

func (s *SessionList) rebuild() {
	s.list.SetItems(buildSessionItems(s.sessions, s.activeID, s.unread))
}

// Items exposes the display order for rendering and tests.
func (s *SessionList) Items() []*sessionItem {
	items := s.list.Items()
	out := make([]*sessionItem, 0, len(items))
	for _, it := range items {
		if item, ok := it.(*sessionItem); ok {
			out = append(out, item)
		}
	}
	return out
}
