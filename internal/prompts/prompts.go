// Package prompts provides the process-scoped prompt template store.
//
// Templates are loaded once at startup and read-only afterward. Placeholders
// use {name} syntax and are substituted by Render.
package prompts

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Template names used by answerd.
const (
	ToolChatSystem = "tool_chat_system"
	CSVAnalyst     = "csv_analyst"
)

// ErrNotFound is returned when a template name is unknown.
var ErrNotFound = errors.New("prompt template not found")

// entry matches one template block in prompts.yaml:
//
//	tool_chat_system:
//	  template: |
//	    ...
type entry struct {
	Template string `koanf:"template"`
}

// Manager holds loaded prompt templates. Init-once, read-many.
type Manager struct {
	templates map[string]string
}

// Load reads templates from a YAML file. Built-in defaults fill any template
// the file does not define; an empty path or missing file yields defaults
// only.
func Load(path string) (*Manager, error) {
	m := Defaults()

	if path == "" {
		return m, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("reading prompts file: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("parsing prompts file %s: %w", path, err)
	}

	var parsed map[string]entry
	if err := k.Unmarshal("", &parsed); err != nil {
		return nil, fmt.Errorf("unmarshaling prompts file %s: %w", path, err)
	}
	for name, e := range parsed {
		if e.Template != "" {
			m.templates[name] = e.Template
		}
	}
	return m, nil
}

// Defaults returns a Manager with the built-in templates.
func Defaults() *Manager {
	return &Manager{templates: map[string]string{
		ToolChatSystem: defaultToolChatSystem,
		CSVAnalyst:     defaultCSVAnalyst,
	}}
}

// Get returns the raw template for name.
func (m *Manager) Get(name string) (string, error) {
	tmpl, ok := m.templates[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return tmpl, nil
}

// Render substitutes {key} placeholders in the named template.
func (m *Manager) Render(name string, vars map[string]string) (string, error) {
	tmpl, err := m.Get(name)
	if err != nil {
		return "", err
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl), nil
}

const defaultToolChatSystem = `You are a helpful research assistant with access to a document knowledge base and a set of CSV datasets.

Available CSV datasets: {csv_files}
Available documents: {doc_files}

Use the SearchKnowledge tool for qualitative questions about the documents (policies, reports, textual content). Use the AnalyzeData tool for quantitative questions about the CSV datasets (sums, averages, counts, record lookups). Answer directly when no tool is needed. Cite document sources when you use SearchKnowledge results.`

const defaultCSVAnalyst = `You are a data analyst. Write a Tengo script that answers the user's question using the available datasets.

The script runs with a variable named dfs already defined: a map from dataset filename to an array of rows, where each row is a map from column name to value. Numeric columns are already parsed as numbers. The standard modules math, text, fmt, json, times, enum and rand may be imported.

Rules:
- Assign the final answer to a variable named result.
- Return only the script, no explanation and no code fences.

Data context:
{data_context}

Question: {user_input}`
