// Package agent implements the conversation orchestrator: an LLM-driven
// loop that decides per turn whether to search the knowledge base, analyze
// the CSV datasets, or answer directly.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/answerd/internal/prompts"
)

// ModeAutoToolCalling tags responses produced by the automatic
// tool-calling loop.
const ModeAutoToolCalling = "auto_tool_calling"

// InternalErrorAnswer is the fixed user-facing answer for any processing
// failure. Details go to the returned error and the logs, never to the user.
const InternalErrorAnswer = "An internal error occurred."

// ErrToolLoopLimit reports that the model kept requesting tools past the
// iteration cap without producing a final answer.
var ErrToolLoopLimit = errors.New("tool-calling iteration limit exceeded")

// Tool names exposed to the model.
const (
	toolSearchKnowledge = "SearchKnowledge"
	toolAnalyzeData     = "AnalyzeData"
)

// KnowledgeSearcher is the retrieval tool dependency, satisfied by
// retrieval.Searcher.
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// DataAnalyst is the tabular-analysis tool dependency, satisfied by
// tabular.Analyst.
type DataAnalyst interface {
	Analyze(ctx context.Context, query string) (string, error)
	DatasetNames() []string
}

// Result is one answered query.
type Result struct {
	// Answer is the text to show the user.
	Answer string
	// Mode identifies the orchestration strategy that produced the answer.
	Mode string
	// FinalResponse is the model's final message verbatim.
	FinalResponse string
}

// Orchestrator drives one conversation. The history holds exactly one
// system message, always first, computed once at construction; turns are
// append-only and tool-result turns immediately follow the assistant turn
// that requested them.
//
// One query may be in flight at a time; separate conversations need
// separate Orchestrator instances.
type Orchestrator struct {
	model         llms.Model
	searcher      KnowledgeSearcher
	analyst       DataAnalyst
	history       []llms.MessageContent
	maxIterations int
	logger        *zap.Logger
}

// New creates an Orchestrator. The system prompt grounds the model in what
// is actually available: the loaded dataset names and the ingested document
// filenames.
func New(model llms.Model, searcher KnowledgeSearcher, analyst DataAnalyst, docFiles []string, pm *prompts.Manager, maxIterations int, logger *zap.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxIterations <= 0 {
		maxIterations = 5
	}

	system, err := pm.Render(prompts.ToolChatSystem, map[string]string{
		"csv_files": nameList(analyst.DatasetNames()),
		"doc_files": nameList(docFiles),
	})
	if err != nil {
		return nil, fmt.Errorf("rendering system prompt: %w", err)
	}

	return &Orchestrator{
		model:         model,
		searcher:      searcher,
		analyst:       analyst,
		history:       []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeSystem, system)},
		maxIterations: maxIterations,
		logger:        logger,
	}, nil
}

// nameList joins names for prompt interpolation, with a fixed fallback so
// the model never sees an empty enumeration.
func nameList(names []string) string {
	if len(names) == 0 {
		return "None"
	}
	return strings.Join(names, ", ")
}

// toolDefs describes both tools to the model. Each takes a single free-text
// query; the tool implementations own everything else.
func toolDefs() []llms.Tool {
	queryParams := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The question or request, in natural language.",
			},
		},
		"required": []string{"query"},
	}
	return []llms.Tool{
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        toolSearchKnowledge,
				Description: "Search the ingested document knowledge base for passages relevant to a question. Returns source-attributed excerpts.",
				Parameters:  queryParams,
			},
		},
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        toolAnalyzeData,
				Description: "Answer a question about the loaded CSV datasets by computing over them. Use for counts, sums, averages, filters and comparisons.",
				Parameters:  queryParams,
			},
		},
	}
}

// ProcessQuery appends the user message and runs the bounded tool-calling
// loop until the model produces a final answer. On any failure the caller
// receives InternalErrorAnswer plus the error; the user message stays in
// history either way.
func (o *Orchestrator) ProcessQuery(ctx context.Context, input string) (Result, error) {
	start := time.Now()
	o.history = append(o.history, llms.TextParts(llms.ChatMessageTypeHuman, input))

	res, err := o.runLoop(ctx)
	queryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		queriesTotal.WithLabelValues("error").Inc()
		o.logger.Error("query failed", zap.Error(err))
		return Result{Answer: InternalErrorAnswer, Mode: ModeAutoToolCalling}, err
	}

	queriesTotal.WithLabelValues("ok").Inc()
	return res, nil
}

func (o *Orchestrator) runLoop(ctx context.Context) (Result, error) {
	for i := 0; i < o.maxIterations; i++ {
		resp, err := o.model.GenerateContent(ctx, o.history, llms.WithTools(toolDefs()))
		if err != nil {
			return Result{}, fmt.Errorf("generating response: %w", err)
		}
		if len(resp.Choices) == 0 {
			return Result{}, fmt.Errorf("model returned no choices")
		}
		choice := resp.Choices[0]

		if len(choice.ToolCalls) == 0 {
			o.history = append(o.history, llms.TextParts(llms.ChatMessageTypeAI, choice.Content))
			o.logger.Debug("final answer produced", zap.Int("iterations", i+1))
			return Result{
				Answer:        choice.Content,
				Mode:          ModeAutoToolCalling,
				FinalResponse: choice.Content,
			}, nil
		}

		if err := o.executeToolCalls(ctx, choice); err != nil {
			return Result{}, err
		}
	}
	return Result{}, fmt.Errorf("%w: no final answer after %d iterations", ErrToolLoopLimit, o.maxIterations)
}

// executeToolCalls appends the requesting assistant turn, runs every
// requested tool, and appends one tool-result turn per call, in request
// order.
func (o *Orchestrator) executeToolCalls(ctx context.Context, choice *llms.ContentChoice) error {
	assistant := llms.MessageContent{Role: llms.ChatMessageTypeAI}
	if choice.Content != "" {
		assistant.Parts = append(assistant.Parts, llms.TextContent{Text: choice.Content})
	}

	calls := make([]llms.ToolCall, len(choice.ToolCalls))
	for i, tc := range choice.ToolCalls {
		if tc.ID == "" {
			// Some backends omit call IDs; results still need to pair up.
			tc.ID = uuid.NewString()
		}
		calls[i] = tc
		assistant.Parts = append(assistant.Parts, tc)
	}
	o.history = append(o.history, assistant)

	for _, tc := range calls {
		output, err := o.dispatch(ctx, tc)
		if err != nil {
			return err
		}
		o.history = append(o.history, llms.MessageContent{
			Role: llms.ChatMessageTypeTool,
			Parts: []llms.ContentPart{llms.ToolCallResponse{
				ToolCallID: tc.ID,
				Name:       tc.FunctionCall.Name,
				Content:    output,
			}},
		})
	}
	return nil
}

func (o *Orchestrator) dispatch(ctx context.Context, tc llms.ToolCall) (string, error) {
	if tc.FunctionCall == nil {
		return "", fmt.Errorf("tool call %s has no function payload", tc.ID)
	}

	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(tc.FunctionCall.Arguments), &args); err != nil {
		return "", fmt.Errorf("parsing arguments for %s: %w", tc.FunctionCall.Name, err)
	}

	toolCallsTotal.WithLabelValues(tc.FunctionCall.Name).Inc()
	o.logger.Debug("executing tool",
		zap.String("tool", tc.FunctionCall.Name),
		zap.String("query", args.Query),
	)

	switch tc.FunctionCall.Name {
	case toolSearchKnowledge:
		return o.searcher.Search(ctx, args.Query)
	case toolAnalyzeData:
		return o.analyst.Analyze(ctx, args.Query)
	default:
		return "", fmt.Errorf("unknown tool: %s", tc.FunctionCall.Name)
	}
}

// History returns the conversation history. Exposed for inspection; callers
// must not mutate it.
func (o *Orchestrator) History() []llms.MessageContent {
	return o.history
}
