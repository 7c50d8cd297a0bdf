package agentloop

import (
	"context"
	"fmt"
	"strings"

	"github.com/coscientist-ai/coscientist/llm"
)

// DefaultCritiqueKeywords are the substrings whose presence in a critique
// marks the answer as needing refinement. Matching is case-insensitive.
var DefaultCritiqueKeywords = []string{
	"error", "incorrect", "missing", "should", "needs",
	"improve", "gap", "weakness", "concern", "problem",
}

// CritiqueClassifier decides whether a critique calls for another pass.
type CritiqueClassifier interface {
	NeedsRefinement(critique string) bool
}

// KeywordClassifier flags a critique when any keyword appears in it as a
// case-insensitive substring.
type KeywordClassifier struct {
	Keywords []string
}

// NewKeywordClassifier builds a classifier; nil keywords use the default
// list.
func NewKeywordClassifier(keywords []string) *KeywordClassifier {
	if keywords == nil {
		keywords = DefaultCritiqueKeywords
	}
	return &KeywordClassifier{Keywords: keywords}
}

// NeedsRefinement reports whether any keyword occurs in the critique.
func (c *KeywordClassifier) NeedsRefinement(critique string) bool {
	lower := strings.ToLower(critique)
	for _, kw := range c.Keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// CritiqueResult is one parsed critique.
type CritiqueResult struct {
	Strengths       []string `json:"strengths,omitempty"`
	Issues          []string `json:"issues,omitempty"`
	Improvements    []string `json:"improvements,omitempty"`
	Raw             string   `json:"raw"`
	NeedsRefinement bool     `json:"needs_refinement"`
}

// critiqueSections maps heading words to the CritiqueResult field they
// feed. Headings are matched case-insensitively on a line of their own.
var critiqueSections = map[string]string{
	"strengths":    "strengths",
	"issues":       "issues",
	"weaknesses":   "issues",
	"problems":     "issues",
	"improvements": "improvements",
	"suggestions":  "improvements",
}

// ParseCritique splits a free-text critique into sections by heading.
// Bullet lines under a recognized heading become entries; text outside
// any section is kept only in Raw.
func ParseCritique(text string) CritiqueResult {
	result := CritiqueResult{Raw: text}
	current := ""

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		heading := strings.ToLower(strings.Trim(trimmed, "#*: "))
		if field, ok := critiqueSections[heading]; ok {
			current = field
			continue
		}

		item := strings.TrimSpace(strings.TrimLeft(trimmed, "-*0123456789. "))
		if item == "" || current == "" {
			continue
		}
		switch current {
		case "strengths":
			result.Strengths = append(result.Strengths, item)
		case "issues":
			result.Issues = append(result.Issues, item)
		case "improvements":
			result.Improvements = append(result.Improvements, item)
		}
	}

	return result
}

// CriticRunResult is the outcome of RunWithCritic.
type CriticRunResult struct {
	Answer        string           `json:"answer"`
	InitialAnswer string           `json:"initial_answer"`
	Critiques     []CritiqueResult `json:"critiques"`
	Complete      bool             `json:"complete"`
	Usage         llm.Usage        `json:"usage"`
	Rounds        int              `json:"rounds"` // refinement rounds actually taken
}

// critiqueTemperature keeps the critic conservative.
const critiqueTemperature = 0.3

// RunWithCritic answers a question, then alternates critique and
// refinement until the critic is satisfied or maxRefinementRounds is
// spent. The underlying loop runs at most maxRefinementRounds+1 times;
// each run gets a fresh maxIterations budget. The execution session
// carries over between runs, so refinement passes can build on earlier
// computations.
func (l *Loop) RunWithCritic(ctx context.Context, question string, maxIterations, maxRefinementRounds int, classifier CritiqueClassifier) (*CriticRunResult, error) {
	if classifier == nil {
		classifier = NewKeywordClassifier(nil)
	}

	initial, err := l.Run(ctx, question, maxIterations)
	if err != nil {
		return nil, err
	}

	result := &CriticRunResult{
		Answer:        initial.Answer,
		InitialAnswer: initial.Answer,
		Complete:      initial.Complete,
		Usage:         initial.Usage,
	}

	for round := 0; round < maxRefinementRounds; round++ {
		l.emitter.Emit(EventCritiqueStart, map[string]interface{}{"round": round + 1})

		critiqueText, usage, err := l.critique(ctx, question, result.Answer)
		if err != nil {
			return nil, fmt.Errorf("critique failed: %w", err)
		}
		result.Usage = result.Usage.Add(usage)

		critique := ParseCritique(critiqueText)
		critique.NeedsRefinement = classifier.NeedsRefinement(critiqueText)
		result.Critiques = append(result.Critiques, critique)

		l.emitter.Emit(EventCritiqueEnd, map[string]interface{}{
			"round":            round + 1,
			"needs_refinement": critique.NeedsRefinement,
		})

		if !critique.NeedsRefinement {
			break
		}

		l.emitter.Emit(EventRefinement, map[string]interface{}{"round": round + 1})

		refined, err := l.Run(ctx, buildRefinementPrompt(question, result.Answer, critiqueText), maxIterations)
		if err != nil {
			return nil, err
		}
		result.Answer = refined.Answer
		result.Complete = refined.Complete
		result.Usage = result.Usage.Add(refined.Usage)
		result.Rounds = round + 1
	}

	return result, nil
}

// critique makes one tool-free model call reviewing the answer.
func (l *Loop) critique(ctx context.Context, question, answer string) (string, llm.Usage, error) {
	temp := critiqueTemperature
	req := llm.Request{
		Model:    l.config.Model,
		Provider: l.config.Provider,
		Messages: []llm.Message{
			llm.SystemMessage(CriticSystemPrompt),
			llm.UserMessage(buildCritiquePrompt(question, answer)),
		},
		Temperature: &temp,
		MaxTokens:   l.config.MaxTokens,
	}

	resp, err := l.client.Complete(ctx, req)
	if err != nil {
		return "", llm.Usage{}, err
	}
	return resp.Text, resp.Usage, nil
}

func buildCritiquePrompt(question, answer string) string {
	var sb strings.Builder
	sb.WriteString("Review the following answer for scientific rigor and completeness.\n\n")
	sb.WriteString("Question:\n")
	sb.WriteString(question)
	sb.WriteString("\n\nAnswer:\n")
	sb.WriteString(answer)
	sb.WriteString("\n\nStructure your critique under the headings Strengths, Issues, and Improvements.")
	return sb.String()
}

func buildRefinementPrompt(question, answer, critique string) string {
	var sb strings.Builder
	sb.WriteString("Your previous answer to a question was reviewed. Revise it, addressing every issue the reviewer raised.\n\n")
	sb.WriteString("Original question:\n")
	sb.WriteString(question)
	sb.WriteString("\n\nPrevious answer:\n")
	sb.WriteString(answer)
	sb.WriteString("\n\nReviewer critique:\n")
	sb.WriteString(critique)
	return sb.String()
}
