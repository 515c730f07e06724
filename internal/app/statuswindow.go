package app

import (
	"strings"

	"tda/internal/types"
)

const maxStatusSteps = 200

// StatusWindow is the append-only execution trace shown beside the chat. At
// most one step is active at a time: appending a new step settles the
// previous one.
type StatusWindow struct {
	steps []types.StepRecord
}

func NewStatusWindow() *StatusWindow {
	return &StatusWindow{}
}

func (s *StatusWindow) Append(step types.StepRecord) {
	s.settleActive(types.StepStateCompleted)
	if step.Final && step.State == types.StepStateActive {
		step.State = types.StepStateCompleted
	}
	s.steps = append(s.steps, step)
	if len(s.steps) > maxStatusSteps {
		s.steps = s.steps[len(s.steps)-maxStatusSteps:]
	}
}

// CompleteActive settles the trailing active step, if any.
func (s *StatusWindow) CompleteActive() {
	s.settleActive(types.StepStateCompleted)
}

func (s *StatusWindow) settleActive(state types.StepState) {
	if len(s.steps) == 0 {
		return
	}
	last := &s.steps[len(s.steps)-1]
	if last.State == types.StepStateActive {
		last.State = state
	}
}

func (s *StatusWindow) Reset() {
	s.steps = nil
}

func (s *StatusWindow) Steps() []types.StepRecord {
	return s.steps
}

func (s *StatusWindow) Empty() bool {
	return len(s.steps) == 0
}

func (s *StatusWindow) ActiveStep() *types.StepRecord {
	if len(s.steps) == 0 {
		return nil
	}
	last := &s.steps[len(s.steps)-1]
	if last.State != types.StepStateActive {
		return nil
	}
	return last
}

// Render produces the step log for a pane of the given width, newest last.
func (s *StatusWindow) Render(width, height int) string {
	if width <= 0 || len(s.steps) == 0 {
		return ""
	}
	start := 0
	if height > 0 && len(s.steps) > height {
		start = len(s.steps) - height
	}
	var b strings.Builder
	for i, step := range s.steps[start:] {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(renderStepLine(step, width))
	}
	return b.String()
}

func renderStepLine(step types.StepRecord, width int) string {
	var glyph, line string
	switch step.State {
	case types.StepStateFailed:
		glyph = "✗"
	case types.StepStateCompleted:
		glyph = "✓"
	default:
		glyph = "•"
	}
	line = glyph + " " + truncateToWidth(step.Title, width-2)
	switch step.State {
	case types.StepStateFailed:
		return stepFailedStyle.Render(line)
	case types.StepStateCompleted:
		return stepCompletedStyle.Render(line)
	default:
		return stepActiveStyle.Render(line)
	}
}
