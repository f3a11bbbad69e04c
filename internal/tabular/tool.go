package tabular

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/answerd/internal/prompts"
)

// Fixed tool outputs. The conversation model reads these verbatim, so the
// wording stays stable across releases.
const (
	// NoDatasetsMessage is returned when no CSV files were loaded.
	NoDatasetsMessage = "No CSV files are available for analysis."

	// NoResultMessage is returned when the generated script ran but never
	// assigned the result variable.
	NoResultMessage = "No result variable found."

	// FailurePrefix prefixes compile and runtime errors of the generated
	// script. Failures are tool output, not Go errors: the conversation
	// model decides how to proceed.
	FailurePrefix = "Analysis Failed: "
)

// resultVar is the variable the generated script must assign.
const resultVar = "result"

// sampleRowCount is how many leading rows of each dataset the code model
// sees.
const sampleRowCount = 3

// scriptModules is the Tengo stdlib allow-list for generated scripts.
// No os module: generated code computes over in-memory tables only.
var scriptModules = []string{"math", "text", "fmt", "json", "times", "enum", "rand"}

// Config bounds generated-script execution.
type Config struct {
	// Timeout is the per-script execution budget.
	Timeout time.Duration

	// MaxAllocs caps the script's object allocations.
	MaxAllocs int64
}

// Analyst answers questions about the loaded datasets by generating a small
// analysis script and executing it in a sandboxed interpreter. It is the
// implementation behind the conversation loop's analysis tool.
type Analyst struct {
	datasets []Dataset
	model    llms.Model
	prompts  *prompts.Manager
	config   Config
	logger   *zap.Logger

	// dfs is the script-visible view of the datasets, built once. Scripts
	// receive a fresh binding per run but share the underlying row maps;
	// datasets are read-only by contract.
	dfs map[string]any
}

// NewAnalyst creates an Analyst over the given datasets. The model is the
// code-generation service, not the conversational one.
func NewAnalyst(datasets []Dataset, model llms.Model, pm *prompts.Manager, cfg Config, logger *zap.Logger) *Analyst {
	if logger == nil {
		logger = zap.NewNop()
	}
	dfs := make(map[string]any, len(datasets))
	for _, ds := range datasets {
		rows := make([]any, len(ds.Rows))
		for i, row := range ds.Rows {
			m := make(map[string]any, len(row))
			for k, v := range row {
				m[k] = v
			}
			rows[i] = m
		}
		dfs[ds.Name] = rows
	}
	return &Analyst{
		datasets: datasets,
		model:    model,
		prompts:  pm,
		config:   cfg,
		logger:   logger,
		dfs:      dfs,
	}
}

// DatasetNames returns the loaded dataset names in order.
func (a *Analyst) DatasetNames() []string {
	names := make([]string, len(a.datasets))
	for i, ds := range a.datasets {
		names[i] = ds.Name
	}
	return names
}

// Analyze answers the query against the loaded datasets. Script-level
// failures come back as tool text with FailurePrefix; only code-generation
// provider failures surface as Go errors.
func (a *Analyst) Analyze(ctx context.Context, query string) (string, error) {
	if len(a.datasets) == 0 {
		return NoDatasetsMessage, nil
	}

	code, err := a.generateScript(ctx, query)
	if err != nil {
		return "", fmt.Errorf("generating analysis script: %w", err)
	}

	output := a.runScript(ctx, code)
	a.logger.Debug("analysis complete",
		zap.String("query", query),
		zap.Int("script_bytes", len(code)),
	)
	return output, nil
}

// generateScript asks the code model for a Tengo script answering the query.
func (a *Analyst) generateScript(ctx context.Context, query string) (string, error) {
	prompt, err := a.prompts.Render(prompts.CSVAnalyst, map[string]string{
		"data_context": a.dataContext(),
		"user_input":   query,
	})
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}

	resp, err := a.model.GenerateContent(ctx,
		[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)},
		llms.WithTemperature(0),
	)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return stripFences(resp.Choices[0].Content), nil
}

// dataContext describes every dataset for the code model: name, columns and
// a few sample rows.
func (a *Analyst) dataContext() string {
	var b strings.Builder
	for _, ds := range a.datasets {
		fmt.Fprintf(&b, "Dataset %q:\n", ds.Name)
		fmt.Fprintf(&b, "Columns: %s\n", strings.Join(ds.Columns, ", "))
		fmt.Fprintf(&b, "Sample rows:\n%s\n", ds.sampleRows(sampleRowCount))
	}
	return b.String()
}

// runScript executes the generated script with the datasets bound as dfs
// and returns the result variable's value as text.
func (a *Analyst) runScript(ctx context.Context, code string) string {
	script := tengo.NewScript([]byte(code))
	script.SetImports(stdlib.GetModuleMap(scriptModules...))
	if a.config.MaxAllocs > 0 {
		script.SetMaxAllocs(a.config.MaxAllocs)
	}
	if err := script.Add("dfs", a.dfs); err != nil {
		return FailurePrefix + err.Error()
	}

	runCtx := ctx
	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}

	compiled, err := script.RunContext(runCtx)
	if err != nil {
		return FailurePrefix + err.Error()
	}

	v := compiled.Get(resultVar)
	if v == nil || v.IsUndefined() {
		return NoResultMessage
	}
	return fmt.Sprintf("%v", v.Value())
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag, from generated code.
func stripFences(code string) string {
	trimmed := strings.TrimSpace(code)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// Drop the language tag line.
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
