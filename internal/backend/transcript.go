package backend

import "strings"

// splitSystem separates system turns from the conversational turns.
// Multiple system turns are joined with a blank line.
func splitSystem(msgs []Message) (system string, rest []Message) {
	var sys []string
	for _, m := range msgs {
		if m.Role == RoleSystem {
			sys = append(sys, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(sys, "\n\n"), rest
}

// renderTranscript flattens conversational turns into a single prompt for
// CLI tools that accept one prompt string. A lone user turn is passed through
// unchanged.
func renderTranscript(msgs []Message) string {
	if len(msgs) == 1 && msgs[0].Role == RoleUser {
		return msgs[0].Content
	}

	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch m.Role {
		case RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			b.WriteString("User: ")
		}
		b.WriteString(m.Content)
	}
	return b.String()
}
