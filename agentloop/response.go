package agentloop

import (
	"strings"

	"github.com/coscientist-ai/coscientist/llm"
)

// ResponseKind classifies what the model's response asks the loop to do.
type ResponseKind string

const (
	// ResponseFinalAnswer ends the run with an answer.
	ResponseFinalAnswer ResponseKind = "final_answer"
	// ResponseToolCalls asks the loop to dispatch tools and continue.
	ResponseToolCalls ResponseKind = "tool_calls"
	// ResponseContinuation carries nothing actionable; the loop nudges
	// the model and spends an iteration.
	ResponseContinuation ResponseKind = "continuation"
)

// DefaultFinalAnswerMarker is the prefix the system prompt instructs the
// model to put in front of its conclusion.
const DefaultFinalAnswerMarker = "FINAL ANSWER:"

// ParsedResponse is the classified form of one model response.
type ParsedResponse struct {
	Kind      ResponseKind
	Answer    string
	ToolCalls []llm.ToolCall
}

// ParseResponse classifies a model response. Tool calls win over text; a
// text-only response is a final answer whether or not it carries the
// marker (marked answers have the marker stripped). A response with
// neither text nor tool calls is a continuation.
func ParseResponse(resp *llm.Response, marker string) ParsedResponse {
	if marker == "" {
		marker = DefaultFinalAnswerMarker
	}

	if len(resp.ToolCalls) > 0 {
		return ParsedResponse{
			Kind:      ResponseToolCalls,
			ToolCalls: resp.ToolCalls,
		}
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return ParsedResponse{Kind: ResponseContinuation}
	}

	if idx := indexCaseInsensitive(text, marker); idx >= 0 {
		answer := strings.TrimSpace(text[idx+len(marker):])
		if answer == "" {
			answer = strings.TrimSpace(text[:idx])
		}
		return ParsedResponse{Kind: ResponseFinalAnswer, Answer: answer}
	}

	return ParsedResponse{Kind: ResponseFinalAnswer, Answer: text}
}

func indexCaseInsensitive(s, substr string) int {
	return strings.Index(strings.ToLower(s), strings.ToLower(substr))
}
