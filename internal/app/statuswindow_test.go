package app

import (
	"strings"
	"testing"

	"tda/internal/types"
)

func step(title string, state types.StepState, final bool) types.StepRecord {
	return types.StepRecord{
		Source: types.StepSourceGenie,
		Title:  title,
		State:  state,
		Final:  final,
	}
}

func TestAppendSettlesPreviousStep(t *testing.T) {
	w := NewStatusWindow()
	w.Append(step("first", types.StepStateActive, false))
	w.Append(step("second", types.StepStateActive, false))

	steps := w.Steps()
	if steps[0].State != types.StepStateCompleted {
		t.Fatalf("previous step state = %s, want completed", steps[0].State)
	}
	if steps[1].State != types.StepStateActive {
		t.Fatalf("new step state = %s, want active", steps[1].State)
	}
	if w.ActiveStep() == nil || w.ActiveStep().Title != "second" {
		t.Fatalf("active step = %+v", w.ActiveStep())
	}
}

func TestFailedStepKeepsItsState(t *testing.T) {
	w := NewStatusWindow()
	w.Append(step("doomed", types.StepStateFailed, false))
	w.Append(step("next", types.StepStateActive, false))

	if got := w.Steps()[0].State; got != types.StepStateFailed {
		t.Fatalf("failed step rewritten to %s", got)
	}
}

func TestFinalStepSettlesItself(t *testing.T) {
	w := NewStatusWindow()
	w.Append(step("working", types.StepStateActive, false))
	w.Append(step("done", types.StepStateActive, true))

	if w.ActiveStep() != nil {
		t.Fatalf("final step left active: %+v", w.ActiveStep())
	}
	if got := w.Steps()[1].State; got != types.StepStateCompleted {
		t.Fatalf("final step state = %s", got)
	}
}

func TestCompleteActive(t *testing.T) {
	w := NewStatusWindow()
	w.CompleteActive() // empty window is a no-op

	w.Append(step("working", types.StepStateActive, false))
	w.CompleteActive()
	if w.ActiveStep() != nil {
		t.Fatalf("step still active after completion")
	}
	// Settled steps stay settled.
	w.CompleteActive()
	if got := w.Steps()[0].State; got != types.StepStateCompleted {
		t.Fatalf("state = %s", got)
	}
}

func TestStepCapKeepsNewest(t *testing.T) {
	w := NewStatusWindow()
	for i := 0; i < maxStatusSteps+50; i++ {
		w.Append(step("s", types.StepStateActive, false))
	}
	if len(w.Steps()) != maxStatusSteps {
		t.Fatalf("len = %d, want %d", len(w.Steps()), maxStatusSteps)
	}
}

func TestRenderGlyphs(t *testing.T) {
	w := NewStatusWindow()
	w.Append(step("failed one", types.StepStateFailed, false))
	w.Append(step("running one", types.StepStateActive, false))

	out := w.Render(60, 10)
	if !strings.Contains(out, "✗") {
		t.Fatalf("failed glyph missing: %q", out)
	}
	if !strings.Contains(out, "•") {
		t.Fatalf("active glyph missing: %q", out)
	}
	if strings.Count(out, "\n") != 1 {
		t.Fatalf("expected two lines: %q", out)
	}
}

func TestRenderHeightWindow(t *testing.T) {
	w := NewStatusWindow()
	for _, title := range []string{"a", "b", "c", "d"} {
		w.Append(step(title, types.StepStateActive, false))
	}
	out := w.Render(60, 2)
	if strings.Contains(out, "a") || !strings.Contains(out, "d") {
		t.Fatalf("render window wrong: %q", out)
	}
}
