package agentloop

import (
	"encoding/json"
	"testing"

	"github.com/coscientist-ai/coscientist/llm"
)

func TestParseResponseToolCallsWin(t *testing.T) {
	resp := &llm.Response{
		Text:      "FINAL ANSWER: not yet, calling a tool",
		ToolCalls: []llm.ToolCall{{ID: "c1", Name: "execute_code", Arguments: json.RawMessage(`{}`)}},
	}
	parsed := ParseResponse(resp, "")
	if parsed.Kind != ResponseToolCalls {
		t.Errorf("tool calls take precedence over text, got %q", parsed.Kind)
	}
	if len(parsed.ToolCalls) != 1 {
		t.Errorf("expected the tool calls carried through, got %d", len(parsed.ToolCalls))
	}
}

func TestParseResponseMarker(t *testing.T) {
	parsed := ParseResponse(&llm.Response{Text: "Some reasoning.\nFINAL ANSWER: 42"}, "")
	if parsed.Kind != ResponseFinalAnswer {
		t.Fatalf("expected final answer, got %q", parsed.Kind)
	}
	if parsed.Answer != "42" {
		t.Errorf("expected marker stripped, got %q", parsed.Answer)
	}
}

func TestParseResponseTextOnlyIsFinal(t *testing.T) {
	parsed := ParseResponse(&llm.Response{Text: "The sequence is 62% GC."}, "")
	if parsed.Kind != ResponseFinalAnswer {
		t.Fatalf("a plain text response ends the run, got %q", parsed.Kind)
	}
	if parsed.Answer != "The sequence is 62% GC." {
		t.Errorf("unexpected answer: %q", parsed.Answer)
	}
}

func TestParseResponseEmptyIsContinuation(t *testing.T) {
	parsed := ParseResponse(&llm.Response{Text: "   \n"}, "")
	if parsed.Kind != ResponseContinuation {
		t.Errorf("expected continuation for empty text, got %q", parsed.Kind)
	}
}

func TestParseResponseCustomMarker(t *testing.T) {
	parsed := ParseResponse(&llm.Response{Text: "CONCLUSION: done"}, "CONCLUSION:")
	if parsed.Kind != ResponseFinalAnswer || parsed.Answer != "done" {
		t.Errorf("custom marker not honored: %+v", parsed)
	}
}

func TestParseResponseMarkerWithEmptyTail(t *testing.T) {
	// Marker at the very end: fall back to the text before it.
	parsed := ParseResponse(&llm.Response{Text: "The value is 7.\nFINAL ANSWER:"}, "")
	if parsed.Kind != ResponseFinalAnswer {
		t.Fatalf("expected final answer, got %q", parsed.Kind)
	}
	if parsed.Answer != "The value is 7." {
		t.Errorf("expected preceding text as answer, got %q", parsed.Answer)
	}
}
