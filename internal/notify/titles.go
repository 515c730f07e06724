package notify

import (
	"fmt"
	"strings"

	"tda/internal/types"
)

// Step titles are derived purely from the event kind and payload so the
// status window can be rendered (and tested) without any UI plumbing.

func GenieStepTitle(kind types.EventKind, f types.Fields) string {
	switch kind {
	case types.EventGenieStart:
		return "Genie engaged"
	case types.EventGenieRouting:
		return "Routing request"
	case types.EventGenieCoordinationStart:
		return fmt.Sprintf("Consulting %s", pluralize(f.Int("expert_count"), "expert"))
	case types.EventGenieLLMStep:
		return "Coordinator thinking"
	case types.EventGenieRoutingDecision:
		if profiles := f.Strings("profiles"); len(profiles) > 0 {
			return "Routing to " + strings.Join(profiles, ", ")
		}
		return "Routing decided"
	case types.EventGenieSlaveInvoked:
		return expertLabel(f) + " invoked"
	case types.EventGenieSlaveProgress:
		return expertLabel(f) + " working"
	case types.EventGenieSlaveCompleted:
		return expertLabel(f) + ": " + outcome(f) + durationSuffix(f)
	case types.EventGenieSynthesisStart:
		return "Synthesizing answer"
	case types.EventGenieCoordinationComplete:
		return "Coordination complete" + durationSuffix(f)
	default:
		return string(kind)
	}
}

func AgentStepTitle(kind types.EventKind, f types.Fields) string {
	switch kind {
	case types.EventAgentStart:
		return "Agent engaged"
	case types.EventAgentLLMStep:
		return "Thinking"
	case types.EventAgentToolInvoked:
		return "Running " + toolLabel(f)
	case types.EventAgentToolCompleted:
		return toolLabel(f) + ": " + outcome(f) + durationSuffix(f)
	case types.EventAgentComplete:
		return "Agent finished" + durationSuffix(f)
	default:
		return string(kind)
	}
}

func KnowledgeStepTitle(kind types.EventKind, f types.Fields) string {
	switch kind {
	case types.EventKnowledgeRetrievalStart:
		return "Searching knowledge base"
	case types.EventKnowledgeRetrieval:
		if f.Has("document_count") {
			return fmt.Sprintf("Retrieved %s", pluralize(f.Int("document_count"), "document"))
		}
		return "Knowledge retrieved"
	case types.EventKnowledgeRerankingStart:
		return "Reranking results"
	case types.EventKnowledgeRerankingComplete:
		return "Reranking complete"
	case types.EventKnowledgeRetrievalComplete:
		return "Knowledge retrieval complete" + durationSuffix(f)
	case types.EventRagLLMStep:
		return "Reading retrieved context"
	case types.EventKnowledgeSearchComplete:
		return fmt.Sprintf("Found %s", pluralize(f.Int("result_count"), "result"))
	default:
		return string(kind)
	}
}

// RestStepTitle names the inner event of a rest_task_update.
func RestStepTitle(innerType string, f types.Fields) string {
	switch innerType {
	case types.InnerFinalAnswer:
		return "Answer ready"
	case types.InnerError:
		if msg := f.Str("message"); msg != "" {
			return "Task failed: " + msg
		}
		return "Task failed"
	case types.InnerCancelled:
		return "Task cancelled"
	case types.InnerRagRetrieval:
		return "Consulting case history"
	case types.InnerKnowledgeRetrieval:
		return "Retrieving knowledge"
	default:
		return humanizeType(innerType)
	}
}

func expertLabel(f types.Fields) string {
	if tag := f.Str("profile_tag"); tag != "" {
		return tag + " expert"
	}
	return "Expert"
}

func toolLabel(f types.Fields) string {
	if tool := f.Str("tool_name"); tool != "" {
		return tool
	}
	return "tool"
}

func outcome(f types.Fields) string {
	if f.Bool("success") {
		return "Completed"
	}
	return "Failed"
}

// durationSuffix renders duration_ms as one-decimal seconds, or nothing when
// the field is absent.
func durationSuffix(f types.Fields) string {
	if !f.Has("duration_ms") {
		return ""
	}
	return fmt.Sprintf(" (%.1fs)", f.Float("duration_ms")/1000)
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func humanizeType(raw string) string {
	if raw == "" {
		return "Working"
	}
	return strings.ReplaceAll(raw, "_", " ")
}
