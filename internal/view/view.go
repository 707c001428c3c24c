// Package view renders the task tree and the final answer for the terminal.
package view

import (
	"fmt"
	"strings"

	"github.com/aristath/agentgraph/internal/scheduler"
	"github.com/aristath/agentgraph/internal/util"
)

const (
	ruleWidth       = 80
	rootDescription = 60
	childPreview    = 50
)

func rule() string {
	return strings.Repeat("=", ruleWidth)
}

// banner frames body between rules under a bold title.
func banner(title, body string) string {
	var b strings.Builder
	b.WriteString("\n" + rule() + "\n")
	b.WriteString(StyleTitle.Render(title) + "\n")
	b.WriteString(rule() + "\n")
	b.WriteString(body)
	b.WriteString(rule() + "\n\n")
	return b.String()
}

// statusMarker returns the marker shown before a child task.
func statusMarker(status scheduler.TaskStatus) string {
	switch status {
	case scheduler.TaskDone:
		return StyleStatusComplete.Render("✅")
	case scheduler.TaskFailed:
		return StyleStatusFailed.Render("❌")
	case scheduler.TaskRunning:
		return StyleStatusRunning.Render("⏳")
	case scheduler.TaskPending:
		return StyleStatusPending.Render("⏸️")
	default:
		return "❓"
	}
}

// TaskTree renders the root of g and its direct children in insertion order.
func TaskTree(g *scheduler.Graph) string {
	var b strings.Builder

	if g != nil {
		root := g.Root()
		fmt.Fprintf(&b, "\n🎯 ROOT: %s\n", util.Truncate(root.Description, rootDescription))
		fmt.Fprintf(&b, "   Status: %s\n", root.Status)

		children := g.Children(root.ID)
		for i, child := range children {
			prefix := "├──"
			if i == len(children)-1 {
				prefix = "└──"
			}
			fmt.Fprintf(&b, "   %s %s [%s] %s\n",
				prefix, statusMarker(child.Status), child.Worker, util.Shorten(child.Description, childPreview))
			b.WriteString("       " + StyleMuted.Render(
				fmt.Sprintf("ID: %s | Deps: %d", util.ShortID(child.ID), len(child.DependsOn))) + "\n")
		}
	}

	return banner("TASK GRAPH", b.String())
}

// Answer frames the final answer.
func Answer(answer string) string {
	return banner("FINAL ANSWER", answer+"\n")
}
