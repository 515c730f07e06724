package app

import (
	"fmt"
	"strings"

	"tda/internal/notify"
	"tda/internal/types"
)

var _ notify.GenieDelegate = (*GenieTrace)(nil)

type expertStatus int

const (
	expertInvoked expertStatus = iota
	expertWorking
	expertCompleted
	expertFailed
)

type expertEntry struct {
	tag      string
	status   expertStatus
	duration string
}

// GenieTrace is the inline coordination card: which experts the coordinator
// engaged and how each of them fared. It implements notify.GenieDelegate.
type GenieTrace struct {
	active   bool
	phase    string
	profiles []string
	experts  []*expertEntry
	duration string
}

func NewGenieTrace() *GenieTrace {
	return &GenieTrace{}
}

func (g *GenieTrace) Active() bool {
	return g.active
}

func (g *GenieTrace) Reset() {
	*g = GenieTrace{}
}

func (g *GenieTrace) HandleGenieEvent(kind types.EventKind, f types.Fields) {
	switch kind {
	case types.EventGenieStart:
		g.Reset()
		g.active = true
		g.phase = "routing"
	case types.EventGenieRouting, types.EventGenieLLMStep:
		g.active = true
		g.phase = "routing"
	case types.EventGenieRoutingDecision:
		g.active = true
		g.phase = "coordinating"
		if profiles := f.Strings("profiles"); len(profiles) > 0 {
			g.profiles = profiles
		}
	case types.EventGenieCoordinationStart:
		g.active = true
		g.phase = "coordinating"
	case types.EventGenieSlaveInvoked:
		g.active = true
		g.expert(f.Str("profile_tag")).status = expertInvoked
	case types.EventGenieSlaveProgress:
		g.active = true
		g.expert(f.Str("profile_tag")).status = expertWorking
	case types.EventGenieSlaveCompleted:
		g.active = true
		e := g.expert(f.Str("profile_tag"))
		if f.Has("success") && !f.Bool("success") {
			e.status = expertFailed
		} else {
			e.status = expertCompleted
		}
		if f.Has("duration_ms") {
			e.duration = fmt.Sprintf("%.1fs", f.Float("duration_ms")/1000)
		}
	case types.EventGenieSynthesisStart:
		g.active = true
		g.phase = "synthesizing"
	case types.EventGenieCoordinationComplete:
		g.active = false
		g.phase = "complete"
		if f.Has("duration_ms") {
			g.duration = fmt.Sprintf("%.1fs", f.Float("duration_ms")/1000)
		}
	}
}

func (g *GenieTrace) expert(tag string) *expertEntry {
	if tag == "" {
		tag = "expert"
	}
	for _, e := range g.experts {
		if e.tag == tag {
			return e
		}
	}
	e := &expertEntry{tag: tag}
	g.experts = append(g.experts, e)
	return e
}

// Render draws the coordination card, or nothing when no coordination has
// happened for the current turn.
func (g *GenieTrace) Render(width int) string {
	if g.phase == "" {
		return ""
	}
	var b strings.Builder
	header := "Genie: " + g.phase
	if g.duration != "" {
		header += " (" + g.duration + ")"
	}
	b.WriteString(headerStyle.Render(truncateToWidth(header, width)))
	if len(g.profiles) > 0 {
		b.WriteString("\n")
		b.WriteString(statusStyle.Render(truncateToWidth("experts: "+strings.Join(g.profiles, ", "), width)))
	}
	for _, e := range g.experts {
		b.WriteString("\n")
		b.WriteString(renderExpertLine(e, width))
	}
	return b.String()
}

func renderExpertLine(e *expertEntry, width int) string {
	var glyph string
	style := stepActiveStyle
	switch e.status {
	case expertInvoked:
		glyph = "·"
	case expertWorking:
		glyph = "•"
	case expertCompleted:
		glyph = "✓"
		style = stepCompletedStyle
	case expertFailed:
		glyph = "✗"
		style = stepFailedStyle
	}
	line := "  " + glyph + " " + e.tag
	if e.duration != "" {
		line += " (" + e.duration + ")"
	}
	return style.Render(truncateToWidth(line, width))
}
