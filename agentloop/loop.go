package agentloop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coscientist-ai/coscientist/llm"
)

// LoopState represents where the loop is in its cycle.
type LoopState string

const (
	StateIdle            LoopState = "idle"
	StateAwaitingModel   LoopState = "awaiting_model"
	StateModelResponded  LoopState = "model_responded"
	StateDispatchingTool LoopState = "dispatching_tool"
	StateFinalAnswer     LoopState = "final_answer"
	StateBudgetExhausted LoopState = "budget_exhausted"
)

// LoopConfig holds configuration for the agent loop.
type LoopConfig struct {
	Model               string         `json:"model"`
	Provider            string         `json:"provider,omitempty"`
	Temperature         *float64       `json:"temperature,omitempty"`
	MaxTokens           *int           `json:"max_tokens,omitempty"`
	SystemPrompt        string         `json:"system_prompt,omitempty"`
	FinalAnswerMarker   string         `json:"final_answer_marker,omitempty"`
	ToolTimeout         time.Duration  `json:"tool_timeout,omitempty"` // 0 = no per-tool timeout
	ToolOutputLimits    map[string]int `json:"tool_output_limits,omitempty"`
	ToolLineLimits      map[string]int `json:"tool_line_limits,omitempty"`
	EnableLoopDetection bool           `json:"enable_loop_detection"`
	LoopDetectionWindow int            `json:"loop_detection_window"`
}

// DefaultLoopConfig returns the default configuration.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		FinalAnswerMarker:   DefaultFinalAnswerMarker,
		ToolTimeout:         2 * time.Minute,
		EnableLoopDetection: true,
		LoopDetectionWindow: 6,
	}
}

// RunResult is the outcome of one Loop.Run.
type RunResult struct {
	Answer     string    `json:"answer"`
	Complete   bool      `json:"complete"`
	Transcript []Turn    `json:"transcript"`
	Usage      llm.Usage `json:"usage"`
	Iterations int       `json:"iterations"`
}

// Loop drives the question -> model -> tools cycle until the model
// produces a final answer or the iteration budget runs out.
type Loop struct {
	id       string
	client   *llm.Client
	registry *ToolRegistry
	env      ExecutionEnvironment
	emitter  *EventEmitter
	config   LoopConfig

	mu    sync.Mutex
	state LoopState
}

// NewLoop creates a Loop. A nil config uses DefaultLoopConfig.
func NewLoop(client *llm.Client, registry *ToolRegistry, env ExecutionEnvironment, config *LoopConfig) *Loop {
	id := uuid.New().String()
	cfg := DefaultLoopConfig()
	if config != nil {
		cfg = *config
		if cfg.FinalAnswerMarker == "" {
			cfg.FinalAnswerMarker = DefaultFinalAnswerMarker
		}
	}
	return &Loop{
		id:       id,
		client:   client,
		registry: registry,
		env:      env,
		emitter:  NewEventEmitter(id, 256),
		config:   cfg,
		state:    StateIdle,
	}
}

// ID returns the loop identifier.
func (l *Loop) ID() string { return l.id }

// State returns the current loop state.
func (l *Loop) State() LoopState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loop) setState(s LoopState) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// Events returns the event channel for the host application.
func (l *Loop) Events() <-chan LoopEvent {
	return l.emitter.Events()
}

// Registry returns the loop's tool registry.
func (l *Loop) Registry() *ToolRegistry { return l.registry }

// ResetSession discards the execution environment's session. Never called
// by the loop itself.
func (l *Loop) ResetSession() error {
	if l.env == nil {
		return nil
	}
	return l.env.Reset()
}

// Close shuts down the event emitter. The execution environment belongs
// to the caller and is not closed here.
func (l *Loop) Close() {
	l.emitter.Close()
}

// Run answers a question within maxIterations model calls. Each iteration
// spends one unit of budget regardless of outcome. Tool calls from one
// response are dispatched sequentially, in order, and all observations are
// in the transcript before the next model call. On budget exhaustion the
// result carries the last assistant text with Complete=false. A model
// provider failure aborts the run with an error.
func (l *Loop) Run(ctx context.Context, question string, maxIterations int) (*RunResult, error) {
	if maxIterations <= 0 {
		return nil, fmt.Errorf("maxIterations must be positive, got %d", maxIterations)
	}

	transcript := &Transcript{}
	transcript.Append(NewUserTurn(question))

	l.emitter.Emit(EventRunStart, map[string]interface{}{
		"question":       question,
		"max_iterations": maxIterations,
	})

	result, err := l.run(ctx, transcript, maxIterations)
	if err != nil {
		l.emitter.Emit(EventError, map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	l.emitter.Emit(EventRunEnd, map[string]interface{}{
		"complete":   result.Complete,
		"iterations": result.Iterations,
	})
	return result, nil
}

// run executes the state machine over an already-seeded transcript.
func (l *Loop) run(ctx context.Context, transcript *Transcript, maxIterations int) (*RunResult, error) {
	var usage llm.Usage
	iterations := 0

	for remaining := maxIterations; remaining > 0; remaining-- {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("run cancelled: %w", ctx.Err())
		default:
		}

		l.setState(StateAwaitingModel)
		l.emitter.Emit(EventModelCall, map[string]interface{}{
			"iteration": iterations + 1,
			"remaining": remaining,
		})

		response, err := l.callModel(ctx, transcript)
		if err != nil {
			l.setState(StateIdle)
			return nil, fmt.Errorf("model provider failure: %w", err)
		}
		iterations++
		usage = usage.Add(response.Usage)

		l.setState(StateModelResponded)
		transcript.Append(NewAssistantTurn(response.Text, response.ToolCalls, response.Usage, response.ID))
		l.emitter.Emit(EventModelResponse, map[string]interface{}{
			"text":       response.Text,
			"tool_calls": len(response.ToolCalls),
		})

		parsed := ParseResponse(response, l.config.FinalAnswerMarker)

		switch parsed.Kind {
		case ResponseFinalAnswer:
			l.setState(StateFinalAnswer)
			l.emitter.Emit(EventFinalAnswer, map[string]interface{}{"answer": parsed.Answer})
			return &RunResult{
				Answer:     parsed.Answer,
				Complete:   true,
				Transcript: transcript.Turns(),
				Usage:      usage,
				Iterations: iterations,
			}, nil

		case ResponseContinuation:
			nudge := "Your last response was empty. Continue working on the question, or give your conclusion prefixed with \"" + l.config.FinalAnswerMarker + "\"."
			transcript.Append(NewSteeringTurn(nudge))
			l.emitter.Emit(EventSteering, map[string]interface{}{"content": nudge})

		case ResponseToolCalls:
			l.setState(StateDispatchingTool)
			results := l.dispatchToolCalls(ctx, parsed.ToolCalls)
			transcript.Append(NewToolResultsTurn(results))

			if l.config.EnableLoopDetection && DetectLoop(transcript.Turns(), l.config.LoopDetectionWindow) {
				warning := fmt.Sprintf("Loop detected: the last %d tool calls follow a repeating pattern. Try a different approach.", l.config.LoopDetectionWindow)
				transcript.Append(NewSteeringTurn(warning))
				l.emitter.Emit(EventLoopDetection, map[string]interface{}{"message": warning})
			}
		}
	}

	// Budget exhausted: best partial answer, explicitly incomplete.
	l.setState(StateBudgetExhausted)
	l.emitter.Emit(EventBudgetExhausted, map[string]interface{}{
		"iterations": iterations,
	})
	return &RunResult{
		Answer:     transcript.LastAssistantText(),
		Complete:   false,
		Transcript: transcript.Turns(),
		Usage:      usage,
		Iterations: iterations,
	}, nil
}

// callModel builds and sends one request from the transcript.
func (l *Loop) callModel(ctx context.Context, transcript *Transcript) (*llm.Response, error) {
	systemPrompt := l.config.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = BuildSystemPrompt(l.registry, l.config.FinalAnswerMarker)
	}

	messages := append([]llm.Message{llm.SystemMessage(systemPrompt)}, transcript.ToMessages()...)

	req := llm.Request{
		Model:       l.config.Model,
		Provider:    l.config.Provider,
		Messages:    messages,
		Tools:       l.registry.LLMDefinitions(),
		Temperature: l.config.Temperature,
		MaxTokens:   l.config.MaxTokens,
	}
	return l.client.Complete(ctx, req)
}

// dispatchToolCalls executes tool calls sequentially, in the order the
// model issued them. Dispatch failures become error observations; they
// never abort the run.
func (l *Loop) dispatchToolCalls(ctx context.Context, toolCalls []llm.ToolCall) []llm.ToolResult {
	results := make([]llm.ToolResult, len(toolCalls))
	for i, tc := range toolCalls {
		results[i] = l.dispatchSingle(ctx, tc)
	}
	return results
}

func (l *Loop) dispatchSingle(ctx context.Context, tc llm.ToolCall) llm.ToolResult {
	l.emitter.Emit(EventToolCallStart, map[string]interface{}{
		"tool_name": tc.Name,
		"call_id":   tc.ID,
	})

	toolCtx := ctx
	if l.config.ToolTimeout > 0 {
		var cancel context.CancelFunc
		toolCtx, cancel = context.WithTimeout(ctx, l.config.ToolTimeout)
		defer cancel()
	}

	rawOutput, err := l.registry.Dispatch(toolCtx, tc.Name, tc.Arguments)
	if err != nil {
		errorMsg := err.Error()
		l.emitter.Emit(EventToolCallEnd, map[string]interface{}{
			"call_id": tc.ID,
			"error":   errorMsg,
		})
		return llm.ToolResult{
			ToolCallID: tc.ID,
			Name:       tc.Name,
			Content:    errorMsg,
			IsError:    true,
		}
	}

	truncated := TruncateToolOutput(rawOutput, tc.Name, l.config.ToolOutputLimits, l.config.ToolLineLimits)

	// The event stream carries the full output; the model sees the
	// truncated form.
	l.emitter.Emit(EventToolCallEnd, map[string]interface{}{
		"call_id": tc.ID,
		"output":  rawOutput,
	})

	return llm.ToolResult{
		ToolCallID: tc.ID,
		Name:       tc.Name,
		Content:    truncated,
		IsError:    false,
	}
}
