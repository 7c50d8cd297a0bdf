package agentloop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coscientist-ai/coscientist/llm"
)

func TestKeywordClassifier(t *testing.T) {
	classifier := NewKeywordClassifier(nil)

	assert.True(t, classifier.NeedsRefinement("The answer is missing a control group."))
	assert.True(t, classifier.NeedsRefinement("There is an ERROR in step two."))
	assert.True(t, classifier.NeedsRefinement("You should cite the source."))
	assert.False(t, classifier.NeedsRefinement("The answer is thorough and well supported."))
	assert.False(t, classifier.NeedsRefinement(""))
}

func TestKeywordClassifierCustomKeywords(t *testing.T) {
	classifier := NewKeywordClassifier([]string{"unclear"})

	assert.True(t, classifier.NeedsRefinement("The mechanism is Unclear."))
	// Default keywords no longer apply.
	assert.False(t, classifier.NeedsRefinement("There is an error here."))
}

func TestParseCritique(t *testing.T) {
	text := `## Strengths
- Clear methodology
- Good use of data

## Issues
- Missing statistical test
- No confidence intervals

## Improvements
- Add a power analysis`

	critique := ParseCritique(text)
	assert.Equal(t, []string{"Clear methodology", "Good use of data"}, critique.Strengths)
	assert.Equal(t, []string{"Missing statistical test", "No confidence intervals"}, critique.Issues)
	assert.Equal(t, []string{"Add a power analysis"}, critique.Improvements)
	assert.Equal(t, text, critique.Raw)
}

func TestParseCritiqueAlternateHeadings(t *testing.T) {
	text := `Weaknesses:
- Sample too small

Suggestions:
1. Repeat with a larger cohort`

	critique := ParseCritique(text)
	assert.Equal(t, []string{"Sample too small"}, critique.Issues)
	assert.Equal(t, []string{"Repeat with a larger cohort"}, critique.Improvements)
	assert.Empty(t, critique.Strengths)
}

func TestParseCritiqueUnstructured(t *testing.T) {
	text := "This answer looks fine overall."
	critique := ParseCritique(text)
	assert.Empty(t, critique.Strengths)
	assert.Empty(t, critique.Issues)
	assert.Equal(t, text, critique.Raw)
}

func TestRunWithCriticSatisfiedFirstRound(t *testing.T) {
	// Script: answer, then a critique with no trigger keywords.
	adapter := &scriptAdapter{responses: []*llm.Response{
		textResponse("FINAL ANSWER: the initial answer"),
		textResponse("The answer is thorough and well supported by the data."),
	}}
	loop := newTestLoop(adapter, nil)

	result, err := loop.RunWithCritic(context.Background(), "question", 5, 3, nil)
	require.NoError(t, err)

	assert.Equal(t, "the initial answer", result.Answer)
	assert.Equal(t, "the initial answer", result.InitialAnswer)
	assert.True(t, result.Complete)
	assert.Equal(t, 0, result.Rounds)
	require.Len(t, result.Critiques, 1)
	assert.False(t, result.Critiques[0].NeedsRefinement)

	// One answering run plus one critique call.
	assert.Len(t, adapter.requests, 2)
}

func TestRunWithCriticRefines(t *testing.T) {
	adapter := &scriptAdapter{responses: []*llm.Response{
		textResponse("FINAL ANSWER: first draft"),
		textResponse("Issues:\n- Missing citation for the main claim"),
		textResponse("FINAL ANSWER: revised with citation"),
		textResponse("The revision is complete and well supported."),
	}}
	loop := newTestLoop(adapter, nil)

	result, err := loop.RunWithCritic(context.Background(), "question", 5, 3, nil)
	require.NoError(t, err)

	assert.Equal(t, "revised with citation", result.Answer)
	assert.Equal(t, "first draft", result.InitialAnswer)
	assert.Equal(t, 1, result.Rounds)
	require.Len(t, result.Critiques, 2)
	assert.True(t, result.Critiques[0].NeedsRefinement)
	assert.False(t, result.Critiques[1].NeedsRefinement)
}

func TestRunWithCriticRoundLimit(t *testing.T) {
	// Every critique demands refinement; the loop must stop at
	// maxRefinementRounds+1 answering runs.
	critical := textResponse("Issues:\n- Still missing the control analysis")
	adapter := &scriptAdapter{responses: []*llm.Response{
		textResponse("FINAL ANSWER: v1"),
		critical,
		textResponse("FINAL ANSWER: v2"),
		critical,
		textResponse("FINAL ANSWER: v3"),
	}}
	loop := newTestLoop(adapter, nil)

	result, err := loop.RunWithCritic(context.Background(), "question", 5, 2, nil)
	require.NoError(t, err)

	assert.Equal(t, "v3", result.Answer)
	assert.Equal(t, 2, result.Rounds)
	assert.Len(t, result.Critiques, 2)
	// 3 answering runs + 2 critiques = 5 model calls, no more.
	assert.Len(t, adapter.requests, 5)
}

func TestRunWithCriticZeroRounds(t *testing.T) {
	adapter := &scriptAdapter{responses: []*llm.Response{
		textResponse("FINAL ANSWER: only run"),
	}}
	loop := newTestLoop(adapter, nil)

	result, err := loop.RunWithCritic(context.Background(), "question", 5, 0, nil)
	require.NoError(t, err)

	assert.Equal(t, "only run", result.Answer)
	assert.Empty(t, result.Critiques)
	assert.Len(t, adapter.requests, 1)
}

func TestCritiqueRequestIsToolFree(t *testing.T) {
	registry := NewToolRegistry()
	RegisterReadFile(registry, t.TempDir())

	adapter := &scriptAdapter{responses: []*llm.Response{
		textResponse("FINAL ANSWER: answer"),
		textResponse("Well done, nothing to add."),
	}}
	client := llm.NewClient(llm.WithProvider("mock", adapter))
	cfg := DefaultLoopConfig()
	cfg.Model = "test-model"
	cfg.Provider = "mock"
	loop := NewLoop(client, registry, nil, &cfg)

	_, err := loop.RunWithCritic(context.Background(), "question", 5, 1, nil)
	require.NoError(t, err)

	require.Len(t, adapter.requests, 2)
	assert.NotEmpty(t, adapter.requests[0].Tools, "the answering run carries tools")
	assert.Empty(t, adapter.requests[1].Tools, "the critique call must be tool-free")
	require.NotNil(t, adapter.requests[1].Temperature)
	assert.Equal(t, 0.3, *adapter.requests[1].Temperature)
}
