package agentloop

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// CriticSystemPrompt drives the review call in RunWithCritic.
const CriticSystemPrompt = `You are a rigorous scientific critic. You review answers to research
questions for factual accuracy, completeness, logical soundness, and
appropriate use of evidence.

Be specific. Point at the exact claim or step that is wrong or
unsupported, and say what evidence or computation would settle it. Do
not pad the critique with praise; one or two genuine strengths are
enough. If the answer is sound and complete, say so plainly.`

// researchPromptHeader is the fixed part of the working system prompt.
const researchPromptHeader = `You are a scientific research assistant. You answer research questions
by reasoning step by step and running computations when reasoning alone
is not enough.

Your code runs in one persistent session: variables, imports, and
functions from earlier fragments stay available in later ones. Build on
previous results instead of recomputing them. If a fragment raises, the
session keeps everything defined before the failure.

Work iteratively. Inspect data before drawing conclusions from it, and
verify intermediate results when they drive the final answer.`

// BuildSystemPrompt assembles the working system prompt: role, the tools
// available this run, and the answer protocol.
func BuildSystemPrompt(registry *ToolRegistry, finalAnswerMarker string) string {
	if finalAnswerMarker == "" {
		finalAnswerMarker = DefaultFinalAnswerMarker
	}

	var sb strings.Builder
	sb.WriteString(researchPromptHeader)

	if registry != nil && registry.Count() > 0 {
		sb.WriteString("\n\n# Tools\n\n")
		defs := registry.Definitions()
		sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
		for _, d := range defs {
			fmt.Fprintf(&sb, "- %s: %s\n", d.Name, firstLine(d.Description))
		}
	}

	sb.WriteString("\n# Answer protocol\n\n")
	fmt.Fprintf(&sb, "When you have the answer, state it prefixed with %q. ", finalAnswerMarker)
	sb.WriteString("Until then, keep working: call tools or explain your next step. ")
	sb.WriteString("You have a limited number of turns, so do not repeat work.")

	fmt.Fprintf(&sb, "\n\nToday's date: %s", time.Now().Format("2006-01-02"))

	return sb.String()
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
