package app

import (
	"fmt"
	"strings"

	"tda/internal/notify"
	"tda/internal/types"
)

var _ notify.AgentDelegate = (*AgentTrace)(nil)

type toolEntry struct {
	name     string
	done     bool
	failed   bool
	duration string
}

// AgentTrace tracks the conversation agent's tool loop. It implements
// notify.AgentDelegate; the dispatcher hands it the status step it already
// rendered, so clearing the active flag here cannot lose that render.
type AgentTrace struct {
	active   bool
	thinking bool
	tools    []*toolEntry
	final    *types.StepRecord
}

func NewAgentTrace() *AgentTrace {
	return &AgentTrace{}
}

func (a *AgentTrace) Active() bool {
	return a.active
}

func (a *AgentTrace) Reset() {
	*a = AgentTrace{}
}

func (a *AgentTrace) HandleAgentEvent(kind types.EventKind, f types.Fields, applied types.StepRecord) {
	switch kind {
	case types.EventAgentStart:
		a.Reset()
		a.active = true
	case types.EventAgentLLMStep:
		a.active = true
		a.thinking = true
	case types.EventAgentToolInvoked:
		a.active = true
		a.thinking = false
		a.tools = append(a.tools, &toolEntry{name: toolName(f)})
	case types.EventAgentToolCompleted:
		a.active = true
		e := a.lastTool(toolName(f))
		e.done = true
		e.failed = f.Has("success") && !f.Bool("success")
		if f.Has("duration_ms") {
			e.duration = fmt.Sprintf("%.1fs", f.Float("duration_ms")/1000)
		}
	case types.EventAgentComplete:
		step := applied
		a.final = &step
		a.thinking = false
		a.active = false
	}
}

func toolName(f types.Fields) string {
	if name := f.Str("tool_name"); name != "" {
		return name
	}
	return "tool"
}

// lastTool finds the most recent open invocation of name, creating one when
// the completion arrived without a matching start.
func (a *AgentTrace) lastTool(name string) *toolEntry {
	for i := len(a.tools) - 1; i >= 0; i-- {
		if a.tools[i].name == name && !a.tools[i].done {
			return a.tools[i]
		}
	}
	e := &toolEntry{name: name}
	a.tools = append(a.tools, e)
	return e
}

func (a *AgentTrace) Render(width int) string {
	if !a.active && a.final == nil {
		return ""
	}
	var b strings.Builder
	switch {
	case a.final != nil:
		b.WriteString(stepCompletedStyle.Render(truncateToWidth(a.final.Title, width)))
	case a.thinking:
		b.WriteString(stepActiveStyle.Render("Agent thinking"))
	default:
		b.WriteString(stepActiveStyle.Render("Agent working"))
	}
	for _, e := range a.tools {
		b.WriteString("\n")
		b.WriteString(renderToolLine(e, width))
	}
	return b.String()
}

func renderToolLine(e *toolEntry, width int) string {
	glyph := "•"
	style := stepActiveStyle
	switch {
	case e.failed:
		glyph = "✗"
		style = stepFailedStyle
	case e.done:
		glyph = "✓"
		style = stepCompletedStyle
	}
	line := "  " + glyph + " " + e.name
	if e.duration != "" {
		line += " (" + e.duration + ")"
	}
	return style.Render(truncateToWidth(line, width))
}
