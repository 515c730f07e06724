package app

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"tda/internal/client"
)

type chatTurn struct {
	role    string
	content string
	at      time.Time
}

// renderTranscript draws the chat turns as bubbles, user turns metadata
// stamped with a relative timestamp.
func renderTranscript(turns []chatTurn, width int) string {
	if len(turns) == 0 {
		return statusStyle.Render("No messages yet.")
	}
	bubbleWidth := width - 4
	if bubbleWidth < 20 {
		bubbleWidth = 20
	}
	var b strings.Builder
	for i, turn := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(renderTurn(turn, bubbleWidth))
		b.WriteString("\n")
	}
	return b.String()
}

func renderTurn(turn chatTurn, width int) string {
	meta := turn.role
	if !turn.at.IsZero() {
		meta += " · " + humanize.Time(turn.at)
	}
	var bubble string
	switch turn.role {
	case "user":
		bubble = userBubbleStyle.Width(width).Render(turn.content)
	case "assistant":
		bubble = agentBubbleStyle.Width(width).Render(renderMarkdown(turn.content, width-2*chatBubblePaddingHorizontal-2))
	default:
		bubble = systemBubbleStyle.Width(width).Render(turn.content)
	}
	return chatMetaStyle.Render(meta) + "\n" + bubble
}

func turnsFromHistory(history []client.ChatTurn) []chatTurn {
	turns := make([]chatTurn, 0, len(history))
	for _, h := range history {
		turns = append(turns, chatTurn{role: h.Role, content: h.Content, at: h.CreatedAt})
	}
	return turns
}
