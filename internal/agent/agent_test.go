package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/fyrsmithlabs/answerd/internal/prompts"
)

// sequenceModel replays a fixed sequence of content choices, one per
// GenerateContent call, and records what it was asked.
type sequenceModel struct {
	choices  []*llms.ContentChoice
	err      error
	calls    int
	messages [][]llms.MessageContent
}

func (m *sequenceModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	snapshot := make([]llms.MessageContent, len(messages))
	copy(snapshot, messages)
	m.messages = append(m.messages, snapshot)
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	idx := m.calls - 1
	if idx >= len(m.choices) {
		idx = len(m.choices) - 1
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{m.choices[idx]}}, nil
}

func (m *sequenceModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not used")
}

type fakeSearcher struct {
	output  string
	err     error
	queries []string
}

func (f *fakeSearcher) Search(ctx context.Context, query string) (string, error) {
	f.queries = append(f.queries, query)
	return f.output, f.err
}

type fakeAnalyst struct {
	output  string
	err     error
	names   []string
	queries []string
}

func (f *fakeAnalyst) Analyze(ctx context.Context, query string) (string, error) {
	f.queries = append(f.queries, query)
	return f.output, f.err
}

func (f *fakeAnalyst) DatasetNames() []string { return f.names }

func toolCallChoice(id, name, query string) *llms.ContentChoice {
	return &llms.ContentChoice{
		ToolCalls: []llms.ToolCall{{
			ID:   id,
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      name,
				Arguments: `{"query": "` + query + `"}`,
			},
		}},
	}
}

func newTestOrchestrator(t *testing.T, model llms.Model, searcher *fakeSearcher, analyst *fakeAnalyst) *Orchestrator {
	t.Helper()
	o, err := New(model, searcher, analyst, []string{"policy.pdf"}, prompts.Defaults(), 5, nil)
	require.NoError(t, err)
	return o
}

func TestSystemPromptIsFirstAndGrounded(t *testing.T) {
	analyst := &fakeAnalyst{names: []string{"sales", "orders"}}
	o := newTestOrchestrator(t, &sequenceModel{}, &fakeSearcher{}, analyst)

	history := o.History()
	require.Len(t, history, 1)
	assert.Equal(t, llms.ChatMessageTypeSystem, history[0].Role)

	text := history[0].Parts[0].(llms.TextContent).Text
	assert.Contains(t, text, "sales, orders")
	assert.Contains(t, text, "policy.pdf")
}

func TestSystemPromptEmptyInventories(t *testing.T) {
	analyst := &fakeAnalyst{}
	o, err := New(&sequenceModel{}, &fakeSearcher{}, analyst, nil, prompts.Defaults(), 5, nil)
	require.NoError(t, err)

	text := o.History()[0].Parts[0].(llms.TextContent).Text
	assert.Contains(t, text, "Available CSV datasets: None")
	assert.Contains(t, text, "Available documents: None")
}

func TestProcessQueryDirectAnswer(t *testing.T) {
	model := &sequenceModel{choices: []*llms.ContentChoice{
		{Content: "Paris is the capital of France."},
	}}
	o := newTestOrchestrator(t, model, &fakeSearcher{}, &fakeAnalyst{})

	res, err := o.ProcessQuery(context.Background(), "capital of France?")
	require.NoError(t, err)

	assert.Equal(t, "Paris is the capital of France.", res.Answer)
	assert.Equal(t, ModeAutoToolCalling, res.Mode)
	assert.Equal(t, res.Answer, res.FinalResponse)
	assert.Equal(t, 1, model.calls)

	// system, human, ai
	history := o.History()
	require.Len(t, history, 3)
	assert.Equal(t, llms.ChatMessageTypeHuman, history[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, history[2].Role)
}

func TestProcessQuerySearchToolRoundTrip(t *testing.T) {
	model := &sequenceModel{choices: []*llms.ContentChoice{
		toolCallChoice("call-1", toolSearchKnowledge, "refund policy"),
		{Content: "Refunds are processed within 14 days."},
	}}
	searcher := &fakeSearcher{output: "[Source: policy.pdf, Chunk: 1]\nRefunds are processed within 14 days."}
	o := newTestOrchestrator(t, model, searcher, &fakeAnalyst{})

	res, err := o.ProcessQuery(context.Background(), "what is the refund policy?")
	require.NoError(t, err)
	assert.Equal(t, "Refunds are processed within 14 days.", res.Answer)
	assert.Equal(t, []string{"refund policy"}, searcher.queries)

	// system, human, assistant(tool call), tool result, final ai
	history := o.History()
	require.Len(t, history, 5)
	assert.Equal(t, llms.ChatMessageTypeAI, history[2].Role)
	assert.Equal(t, llms.ChatMessageTypeTool, history[3].Role)

	toolResp := history[3].Parts[0].(llms.ToolCallResponse)
	assert.Equal(t, "call-1", toolResp.ToolCallID)
	assert.Equal(t, toolSearchKnowledge, toolResp.Name)
	assert.Equal(t, searcher.output, toolResp.Content)

	// The second model call saw the tool result.
	require.Equal(t, 2, model.calls)
	assert.Len(t, model.messages[1], 4)
}

func TestProcessQueryAnalyzeToolRoundTrip(t *testing.T) {
	model := &sequenceModel{choices: []*llms.ContentChoice{
		toolCallChoice("call-1", toolAnalyzeData, "total sales"),
		{Content: "Total sales are 300."},
	}}
	analyst := &fakeAnalyst{output: "300", names: []string{"sales"}}
	o := newTestOrchestrator(t, model, &fakeSearcher{}, analyst)

	res, err := o.ProcessQuery(context.Background(), "what are total sales?")
	require.NoError(t, err)
	assert.Equal(t, "Total sales are 300.", res.Answer)
	assert.Equal(t, []string{"total sales"}, analyst.queries)
}

func TestProcessQueryBothToolsAcrossIterations(t *testing.T) {
	model := &sequenceModel{choices: []*llms.ContentChoice{
		toolCallChoice("call-1", toolSearchKnowledge, "discount policy"),
		toolCallChoice("call-2", toolAnalyzeData, "average order value"),
		{Content: "The discount policy applies above the average order value of 150."},
	}}
	searcher := &fakeSearcher{output: "[Source: policy.pdf, Chunk: 2]\nDiscounts apply to large orders."}
	analyst := &fakeAnalyst{output: "150", names: []string{"orders"}}
	o := newTestOrchestrator(t, model, searcher, analyst)

	res, err := o.ProcessQuery(context.Background(), "how does the discount policy relate to order values?")
	require.NoError(t, err)
	assert.Equal(t, 3, model.calls)
	assert.NotEmpty(t, res.Answer)

	// system, human, (assistant+tool) x2, final ai
	assert.Len(t, o.History(), 7)
}

func TestProcessQueryIterationLimit(t *testing.T) {
	model := &sequenceModel{choices: []*llms.ContentChoice{
		toolCallChoice("call-1", toolSearchKnowledge, "anything"),
	}}
	searcher := &fakeSearcher{output: "No relevant information found in the knowledge base."}
	o, err := New(model, searcher, &fakeAnalyst{}, nil, prompts.Defaults(), 3, nil)
	require.NoError(t, err)

	res, err := o.ProcessQuery(context.Background(), "loop forever")
	require.ErrorIs(t, err, ErrToolLoopLimit)
	assert.Equal(t, InternalErrorAnswer, res.Answer)
	assert.Equal(t, 3, model.calls)
}

func TestProcessQueryModelFailure(t *testing.T) {
	model := &sequenceModel{err: errors.New("provider down")}
	o := newTestOrchestrator(t, model, &fakeSearcher{}, &fakeAnalyst{})

	res, err := o.ProcessQuery(context.Background(), "anything")
	require.Error(t, err)
	assert.Equal(t, InternalErrorAnswer, res.Answer)

	// The user message stays in history even on failure.
	history := o.History()
	require.Len(t, history, 2)
	assert.Equal(t, llms.ChatMessageTypeHuman, history[1].Role)
}

func TestProcessQueryToolFailure(t *testing.T) {
	model := &sequenceModel{choices: []*llms.ContentChoice{
		toolCallChoice("call-1", toolSearchKnowledge, "anything"),
	}}
	searcher := &fakeSearcher{err: errors.New("store unreachable")}
	o := newTestOrchestrator(t, model, searcher, &fakeAnalyst{})

	res, err := o.ProcessQuery(context.Background(), "anything")
	require.Error(t, err)
	assert.Equal(t, InternalErrorAnswer, res.Answer)
}

func TestProcessQueryUnknownTool(t *testing.T) {
	model := &sequenceModel{choices: []*llms.ContentChoice{
		toolCallChoice("call-1", "DeleteEverything", "anything"),
	}}
	o := newTestOrchestrator(t, model, &fakeSearcher{}, &fakeAnalyst{})

	res, err := o.ProcessQuery(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tool")
	assert.Equal(t, InternalErrorAnswer, res.Answer)
}

func TestSequentialQueriesGrowHistoryAppendOnly(t *testing.T) {
	model := &sequenceModel{choices: []*llms.ContentChoice{
		{Content: "first answer"},
		{Content: "second answer"},
	}}
	o := newTestOrchestrator(t, model, &fakeSearcher{}, &fakeAnalyst{})
	systemTurn := o.History()[0]

	_, err := o.ProcessQuery(context.Background(), "first question")
	require.NoError(t, err)
	_, err = o.ProcessQuery(context.Background(), "second question")
	require.NoError(t, err)

	// One system turn plus two user/assistant exchanges, no tool turns.
	history := o.History()
	require.Len(t, history, 5)
	assert.Equal(t, systemTurn, history[0])
	assert.Equal(t, llms.ChatMessageTypeHuman, history[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, history[2].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, history[3].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, history[4].Role)
}

func TestProcessQueryAssignsMissingToolCallIDs(t *testing.T) {
	model := &sequenceModel{choices: []*llms.ContentChoice{
		toolCallChoice("", toolSearchKnowledge, "anything"),
		{Content: "done"},
	}}
	searcher := &fakeSearcher{output: "found it"}
	o := newTestOrchestrator(t, model, searcher, &fakeAnalyst{})

	_, err := o.ProcessQuery(context.Background(), "anything")
	require.NoError(t, err)

	toolResp := o.History()[3].Parts[0].(llms.ToolCallResponse)
	assert.NotEmpty(t, toolResp.ToolCallID)
}
