package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/entity"
	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/flow"
	domaintool "github.com/ngoclaw/ngoclaw/gateway/internal/domain/tool"
	"go.uber.org/zap"
)

// EnvelopeRouter handles a structured (non-"ok") envelope a tool returned
// mid-turn: it persists whatever pending-flow record that status implies
// (confirmation, comment, dispatch) and returns the reply for this turn.
// The loop stops as soon as one of these fires — the rest of the
// conversation continues on a future turn via the corresponding flow
// handler, not by asking the LLM to keep going.
type EnvelopeRouter interface {
	Route(ctx context.Context, userID int64, toolName string, args map[string]interface{}, env flow.Envelope) (reply string, err error)

	// RouteConfidence handles a proposed tool call the confidence scorer
	// flagged as needing one more field before it may run (§4.5.9): it
	// persists a confidence_clarify record and returns the question to
	// ask, short-circuiting execution entirely for this turn.
	RouteConfidence(ctx context.Context, userID int64, toolName string, args map[string]interface{}, assessment ConfidenceAssessment) (reply string, err error)
}

// AgentLoopConfig holds configuration for the turn's tool-calling loop.
type AgentLoopConfig struct {
	MaxOutputChars int     // Maximum characters per tool output before truncation (default: 8000)
	Temperature    float64 // LLM temperature
	Model          string  // LLM model identifier

	// Per-model policy overrides from config.yaml.
	// Keys are matched by substring against model ID (e.g. "qwen3", "minimax").
	ModelPolicies map[string]*ModelPolicyOverride

	// Auto-retry configuration
	MaxRetries    int           // Max retries per LLM call (default: 3)
	RetryBaseWait time.Duration // Base wait between retries (default: 2s, exponential: 2s, 4s, 8s)

	CompactKeepLast int // Number of recent messages to preserve during compaction (default: 10)

	MaxParallelTools int // Max concurrent tool executions (default: 4, 1 = sequential)

	// Unlike a coding agent, a conversational turn has a natural end: the
	// LLM either answers directly or emits one of the confirmation/dispatch
	// envelope statuses a flow handler picks up next turn. MaxSteps bounds
	// runaway tool-calling within a single turn.
	MaxSteps            int
	MaxTokenBudget      int64         // Token budget limit (0 = disabled)
	ToolTimeout         time.Duration // Per-tool execution timeout (default 30s)
	ContextMaxTokens    int           // Context window token limit (default 128000)
	ContextWarnRatio    float64       // Warn when context > this ratio (default 0.7)
	ContextHardRatio    float64       // Force compact when > this ratio (default 0.85)
	LoopWindowSize      int           // Sliding window size for exact-match loop detection (default 10)
	LoopDetectThreshold int           // Identical calls in window to trigger reflection (default 5)
	LoopNameThreshold   int           // Same tool name consecutive calls to trigger reflection (default 8)
}

// DefaultAgentLoopConfig returns production-ready defaults.
func DefaultAgentLoopConfig() AgentLoopConfig {
	return AgentLoopConfig{
		MaxOutputChars:      8000,
		Temperature:         0.3,
		MaxRetries:          3,
		RetryBaseWait:       2 * time.Second,
		CompactKeepLast:     10,
		MaxParallelTools:    4,
		MaxSteps:            10,
		ToolTimeout:         30 * time.Second,
		ContextMaxTokens:    128000,
		ContextWarnRatio:    0.7,
		ContextHardRatio:    0.85,
		LoopWindowSize:      10,
		LoopDetectThreshold: 5,
		LoopNameThreshold:   8,
	}
}

// LLMClient is the interface the turn loop uses to talk to the language model.
type LLMClient interface {
	Generate(ctx context.Context, req *LLMRequest) (*LLMResponse, error)
}

// LLMRequest is the request sent to the language model.
type LLMRequest struct {
	Messages    []LLMMessage            `json:"messages"`
	Tools       []domaintool.Definition `json:"tools,omitempty"`
	Model       string                  `json:"model"`
	MaxTokens   int                     `json:"max_tokens,omitempty"`
	Temperature float64                 `json:"temperature"`
}

// LLMMessage represents a single message in the conversation.
type LLMMessage struct {
	Role       string               `json:"role"` // "system", "user", "assistant", "tool"
	Content    string               `json:"content"`
	ToolCalls  []entity.ToolCallInfo `json:"tool_calls,omitempty"`
	ToolCallID string               `json:"tool_call_id,omitempty"`
	Name       string               `json:"name,omitempty"`
	Parts      []ContentPart        `json:"parts,omitempty"` // multimodal parts, counted by ContextGuard
}

// ContentPart is one part of a multimodal message: a "text" part carries
// Text, any other Type (e.g. "image") carries MediaURL. Only ContextGuard's
// token estimate reads Parts; the LLM providers send Content alone.
type ContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	MediaURL string `json:"media_url,omitempty"`
}

// TextContent returns the message's text content.
func (m *LLMMessage) TextContent() string { return m.Content }

// LLMResponse is the response from the language model.
type LLMResponse struct {
	Content    string               `json:"content"`
	ToolCalls  []entity.ToolCallInfo `json:"tool_calls,omitempty"`
	ModelUsed  string               `json:"model_used"`
	TokensUsed int                  `json:"tokens_used"`
}

// StreamChunk is one incremental piece of a streamed response, sent by the
// infrastructure providers' GenerateStream methods. LLMClient has no
// streaming method, so the turn loop never receives these.
type StreamChunk struct {
	DeltaText     string               `json:"delta_text,omitempty"`
	DeltaToolCall *entity.ToolCallInfo `json:"delta_tool_call,omitempty"`
	FinishReason  string               `json:"finish_reason,omitempty"`
}

// ToolExecutor is the interface the turn loop uses to run tools.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args map[string]interface{}) (*domaintool.Result, error)
	GetDefinitions() []domaintool.Definition
	GetToolKind(name string) domaintool.Kind
}

// AgentLoop drives one turn's tool-calling loop: call the LLM, execute any
// tool calls it asks for, feed results back, repeat until it answers in
// plain text or MaxSteps is hit.
type AgentLoop struct {
	llm        LLMClient
	tools      ToolExecutor
	config     AgentLoopConfig
	hooks      AgentHook
	middleware *MiddlewarePipeline
	toolCache  *ToolResultCache
	envelopes  EnvelopeRouter
	logger     *zap.Logger
}

// SetEnvelopeRouter wires in the handler for structured tool envelopes.
func (a *AgentLoop) SetEnvelopeRouter(r EnvelopeRouter) {
	a.envelopes = r
}

// NewAgentLoop creates a new turn loop.
func NewAgentLoop(llm LLMClient, tools ToolExecutor, config AgentLoopConfig, logger *zap.Logger) *AgentLoop {
	if config.MaxOutputChars <= 0 {
		config.MaxOutputChars = 8000
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryBaseWait <= 0 {
		config.RetryBaseWait = 2 * time.Second
	}
	if config.CompactKeepLast <= 0 {
		config.CompactKeepLast = 10
	}
	if config.MaxParallelTools <= 0 {
		config.MaxParallelTools = 4
	}
	if config.MaxSteps <= 0 {
		config.MaxSteps = 10
	}
	if config.ToolTimeout <= 0 {
		config.ToolTimeout = 30 * time.Second
	}
	if config.ContextMaxTokens <= 0 {
		config.ContextMaxTokens = 128000
	}
	if config.ContextWarnRatio <= 0 {
		config.ContextWarnRatio = 0.7
	}
	if config.ContextHardRatio <= 0 {
		config.ContextHardRatio = 0.85
	}
	if config.LoopWindowSize <= 0 {
		config.LoopWindowSize = 10
	}
	if config.LoopDetectThreshold <= 0 {
		config.LoopDetectThreshold = 5
	}

	return &AgentLoop{
		llm:        llm,
		tools:      tools,
		config:     config,
		hooks:      &NoOpHook{},
		middleware: NewMiddlewarePipeline(logger),
		toolCache:  NewToolResultCache(30*time.Second, 100),
		logger:     logger,
	}
}

// SetHooks replaces the hook chain for this loop.
func (a *AgentLoop) SetHooks(hooks AgentHook) {
	if hooks != nil {
		a.hooks = hooks
	}
}

// SetMiddleware replaces the middleware pipeline for this loop.
func (a *AgentLoop) SetMiddleware(mw *MiddlewarePipeline) {
	if mw != nil {
		a.middleware = mw
	}
}

// AgentResult is the final result of one turn's loop.
type AgentResult struct {
	FinalContent string
	TotalSteps   int
	TotalTokens  int
	ModelUsed    string
	ToolsUsed    []string
}

// Run executes the tool-calling loop, emitting progress events to the
// returned channel (drain it until it closes). modelOverride, when
// non-empty, overrides the configured model for this run.
func (a *AgentLoop) Run(ctx context.Context, userID int64, systemPrompt string, userMessage string, history []LLMMessage, modelOverride string) (*AgentResult, <-chan entity.AgentEvent) {
	eventCh := make(chan entity.AgentEvent, 64)
	result := &AgentResult{}

	ctx = WithTraceID(ctx, "")
	a.logger = a.logger.With(zap.String("trace_id", TraceIDFromContext(ctx)))

	a.toolCache.Clear()

	sm := NewStateMachine(a.config.MaxSteps, a.logger)
	sm.OnTransition(func(from, to AgentState, snap StateSnapshot) {
		a.hooks.OnStateChange(from, to, snap)
	})

	go func() {
		defer close(eventCh)
		defer func() {
			if r := recover(); r != nil {
				a.logger.Error("turn loop panicked", zap.Any("panic", r), zap.Stack("stack"))
				a.emitEvent(eventCh, entity.AgentEvent{Type: entity.EventError, Error: fmt.Sprintf("internal error: %v", r)})
				result.FinalContent = "Something went wrong on my end. Please try again."
			}
		}()
		a.runLoop(ctx, userID, systemPrompt, userMessage, history, result, eventCh, sm, modelOverride)
	}()

	return result, eventCh
}

func (a *AgentLoop) runLoop(
	ctx context.Context,
	userID int64,
	systemPrompt string,
	userMessage string,
	history []LLMMessage,
	result *AgentResult,
	eventCh chan<- entity.AgentEvent,
	sm *StateMachine,
	modelOverride string,
) {
	messages := make([]LLMMessage, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, LLMMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, history...)
	messages = append(messages, LLMMessage{Role: "user", Content: userMessage})

	toolDefs := a.tools.GetDefinitions()
	toolsUsedSet := make(map[string]bool)

	loopDetector := NewLoopDetector(a.config.LoopWindowSize, a.config.LoopDetectThreshold, a.config.LoopNameThreshold, a.logger)
	contextGuard := NewContextGuard(a.config.ContextMaxTokens, a.config.ContextWarnRatio, a.config.ContextHardRatio, a.logger)
	var costGuard *CostGuard
	if a.config.MaxTokenBudget > 0 {
		costGuard = NewCostGuard(a.config.MaxTokenBudget, 0, a.logger)
	}

	model := a.config.Model
	if modelOverride != "" {
		model = modelOverride
	}
	policy := ResolveModelPolicy(model, a.config.ModelPolicies)

	var assistantTexts []string

	for step := 1; step <= a.config.MaxSteps; step++ {
		sm.SetStep(step)

		if err := ctx.Err(); err != nil {
			_ = sm.Transition(StateAborted)
			a.emitEvent(eventCh, entity.AgentEvent{Type: entity.EventError, Error: "context cancelled"})
			return
		}

		if policy.ProgressInterval > 0 && step > 1 && step%policy.ProgressInterval == 0 {
			if msg := policy.BuildProgressMessage(step); msg != "" {
				messages = append(messages, LLMMessage{Role: "user", Content: msg})
			}
		}

		ctxCheck := contextGuard.Check(messages)
		if ctxCheck.NeedCompaction {
			_ = sm.Transition(StateCompacting)
			messages = a.compactMessages(messages)
		}

		messages = sanitizeMessages(messages)

		_ = sm.Transition(StateStreaming)
		mwMessages := a.middleware.RunBeforeModel(ctx, messages, step)

		llmReq := &LLMRequest{
			Messages:    mwMessages,
			Tools:       toolDefs,
			Model:       model,
			Temperature: a.config.Temperature,
		}

		a.hooks.BeforeLLMCall(ctx, llmReq, step)

		resp, err := a.callLLMWithRetry(ctx, llmReq, step, eventCh)
		if err != nil {
			if IsContextOverflowError(err) {
				_ = sm.Transition(StateCompacting)
				messages = a.compactMessages(messages)
				continue
			}
			sm.RecordError()
			_ = sm.Transition(StateError)
			a.hooks.OnError(ctx, err, step)
			a.emitEvent(eventCh, entity.AgentEvent{Type: entity.EventError, Error: fmt.Sprintf("model call failed at step %d: %v", step, err)})
			result.FinalContent = "I hit an error talking to the model. Please try again."
			return
		}

		result.TotalTokens += resp.TokensUsed
		result.ModelUsed = resp.ModelUsed
		result.TotalSteps = step
		sm.AddTokens(resp.TokensUsed)
		sm.SetModel(resp.ModelUsed)

		if costGuard != nil {
			if err := costGuard.AddTokens(int64(resp.TokensUsed)); err == nil {
				if err := costGuard.CheckBudget(); err != nil {
					_ = sm.Transition(StateError)
					a.hooks.OnError(ctx, err, step)
					result.FinalContent = fmt.Sprintf("Stopped: %v", err)
					return
				}
			}
		}

		resp = a.middleware.RunAfterModel(ctx, resp, step)
		a.hooks.AfterLLMCall(ctx, resp, step)

		a.emitEvent(eventCh, entity.AgentEvent{
			Type:     entity.EventStepDone,
			StepInfo: &entity.StepInfo{Step: step, TokensUsed: resp.TokensUsed, ModelUsed: resp.ModelUsed},
		})

		if len(resp.ToolCalls) == 0 {
			finalContent := StripReasoningTags(resp.Content)
			if strings.TrimSpace(finalContent) == "" && len(assistantTexts) > 0 {
				finalContent = assistantTexts[len(assistantTexts)-1]
			}
			result.FinalContent = finalContent
			_ = sm.Transition(StateComplete)
			a.hooks.OnComplete(ctx, result)
			a.emitEvent(eventCh, entity.AgentEvent{Type: entity.EventDone})
			return
		}

		if cleaned := strings.TrimSpace(StripReasoningTags(resp.Content)); cleaned != "" {
			assistantTexts = append(assistantTexts, cleaned)
		}

		messages = append(messages, LLMMessage{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls})

		_ = sm.Transition(StateToolExec)

		var reflectionPrompts []string
		for _, tc := range resp.ToolCalls {
			kind := a.tools.GetToolKind(tc.Name)
			if domaintool.SafeKinds[kind] {
				continue
			}
			if prompt := loopDetector.RecordName(tc.Name); prompt != "" {
				reflectionPrompts = append(reflectionPrompts, prompt)
			}
			argsFingerprint := ""
			if tc.Arguments != nil {
				if raw, err := json.Marshal(tc.Arguments); err == nil {
					argsFingerprint = string(raw)
				}
			}
			if prompt := loopDetector.Record(tc.Name, argsFingerprint); prompt != "" {
				reflectionPrompts = append(reflectionPrompts, prompt)
			}
		}

		if a.envelopes != nil {
			for _, tc := range resp.ToolCalls {
				assessment := Score(tc.Name, tc.Arguments)
				if assessment.Awaiting == "" {
					continue
				}
				reply, err := a.envelopes.RouteConfidence(ctx, userID, tc.Name, tc.Arguments, assessment)
				if err != nil {
					a.logger.Warn("confidence routing failed", zap.String("tool", tc.Name), zap.Error(err))
					continue
				}
				result.FinalContent = reply
				_ = sm.Transition(StateComplete)
				a.hooks.OnComplete(ctx, result)
				a.emitEvent(eventCh, entity.AgentEvent{Type: entity.EventDone})
				return
			}
		}

		for _, tc := range resp.ToolCalls {
			a.emitEvent(eventCh, entity.AgentEvent{
				Type:     entity.EventToolCall,
				ToolCall: &entity.ToolCallEvent{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments},
			})
		}

		type toolExecResult struct {
			Index    int
			TC       entity.ToolCallInfo
			Output   string
			Success  bool
			Duration time.Duration
		}

		results := make([]toolExecResult, len(resp.ToolCalls))
		var wg sync.WaitGroup
		sem := make(chan struct{}, a.config.MaxParallelTools)

		for i, tc := range resp.ToolCalls {
			wg.Add(1)
			go func(idx int, call entity.ToolCallInfo) {
				defer wg.Done()

				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					results[idx] = toolExecResult{Index: idx, TC: call, Output: "context cancelled", Success: false}
					return
				}

				if !a.hooks.BeforeToolCall(ctx, call.Name, call.Arguments) {
					results[idx] = toolExecResult{Index: idx, TC: call, Output: fmt.Sprintf("tool %q was blocked by policy", call.Name), Success: false}
					return
				}

				start := time.Now()

				if cached, cachedSuccess, hit := a.toolCache.Get(call.Name, call.Arguments); hit {
					results[idx] = toolExecResult{Index: idx, TC: call, Output: cached, Success: cachedSuccess, Duration: time.Since(start)}
					a.hooks.AfterToolCall(ctx, call.Name, cached, cachedSuccess)
					return
				}

				toolCtx := ctx
				if a.config.ToolTimeout > 0 {
					var cancel context.CancelFunc
					toolCtx, cancel = context.WithTimeout(ctx, a.config.ToolTimeout)
					defer cancel()
				}

				toolResult, err := a.tools.Execute(toolCtx, call.Name, call.Arguments)
				duration := time.Since(start)

				var output string
				var success bool
				if err != nil {
					output = fmt.Sprintf("[TOOL_FAILED] %s\n[ERROR] %v", call.Name, err)
					success = false
				} else {
					success = toolResult.Success
					if !success {
						errText := toolResult.Error
						if errText == "" {
							errText = toolResult.Output
						}
						output = fmt.Sprintf("[TOOL_FAILED] %s\n%s", call.Name, errText)
					} else {
						output = toolResult.DisplayOrOutput()
					}
				}

				output = truncateOutput(output, a.config.MaxOutputChars)
				a.toolCache.Put(call.Name, call.Arguments, output, success)

				results[idx] = toolExecResult{Index: idx, TC: call, Output: output, Success: success, Duration: duration}
			}(i, tc)
		}

		wg.Wait()

		if a.envelopes != nil {
			for _, r := range results {
				if !r.Success {
					continue
				}
				env, ok := flow.ParseEnvelope(r.Output)
				if !ok || env.Status == flow.StatusOK || env.Status == flow.StatusCompleted {
					continue
				}
				reply, err := a.envelopes.Route(ctx, userID, r.TC.Name, r.TC.Arguments, env)
				if err != nil {
					a.logger.Warn("envelope routing failed", zap.String("tool", r.TC.Name), zap.Error(err))
					continue
				}
				result.FinalContent = reply
				_ = sm.Transition(StateComplete)
				a.hooks.OnComplete(ctx, result)
				a.emitEvent(eventCh, entity.AgentEvent{Type: entity.EventDone})
				return
			}
		}

		for _, r := range results {
			toolsUsedSet[r.TC.Name] = true
			sm.RecordToolExec(r.TC.Name)

			a.emitEvent(eventCh, entity.AgentEvent{
				Type: entity.EventToolResult,
				ToolCall: &entity.ToolCallEvent{
					ID: r.TC.ID, Name: r.TC.Name, Arguments: r.TC.Arguments,
					Output: r.Output, Success: r.Success, Duration: r.Duration,
				},
			})

			messages = append(messages, LLMMessage{Role: "tool", Content: r.Output, ToolCallID: r.TC.ID, Name: r.TC.Name})
		}

		for _, prompt := range reflectionPrompts {
			messages = append(messages, LLMMessage{Role: "user", Content: prompt})
		}

		postToolCheck := contextGuard.Check(messages)
		if postToolCheck.NeedCompaction {
			_ = sm.Transition(StateCompacting)
			messages = a.compactMessages(messages)
		}
	}

	// MaxSteps exhausted without a final answer.
	result.FinalContent = "I wasn't able to finish this within the step limit. Could you narrow the request?"
	_ = sm.Transition(StateError)
	a.emitEvent(eventCh, entity.AgentEvent{Type: entity.EventDone})
	for name := range toolsUsedSet {
		result.ToolsUsed = append(result.ToolsUsed, name)
	}
}
