package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	m, err := Load("")
	require.NoError(t, err)

	for _, name := range []string{ToolChatSystem, CSVAnalyst} {
		tmpl, err := m.Get(name)
		require.NoError(t, err)
		assert.NotEmpty(t, tmpl)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	m, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	tmpl, err := m.Get(ToolChatSystem)
	require.NoError(t, err)
	assert.NotEmpty(t, tmpl)
}

func TestLoadFileOverridesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	content := `
tool_chat_system:
  template: "custom system prompt with {csv_files}"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	m, err := Load(path)
	require.NoError(t, err)

	tmpl, err := m.Get(ToolChatSystem)
	require.NoError(t, err)
	assert.Equal(t, "custom system prompt with {csv_files}", tmpl)

	// The other template keeps its default.
	other, err := m.Get(CSVAnalyst)
	require.NoError(t, err)
	assert.NotEmpty(t, other)
}

func TestGetUnknownTemplate(t *testing.T) {
	m := Defaults()
	_, err := m.Get("nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRender(t *testing.T) {
	m := &Manager{templates: map[string]string{
		"greeting": "Hello {name}, you have {count} messages.",
	}}

	out, err := m.Render("greeting", map[string]string{
		"name":  "Ada",
		"count": "3",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada, you have 3 messages.", out)
}

func TestRenderLeavesUnknownPlaceholders(t *testing.T) {
	m := &Manager{templates: map[string]string{
		"partial": "{known} and {unknown}",
	}}

	out, err := m.Render("partial", map[string]string{"known": "yes"})
	require.NoError(t, err)
	assert.Equal(t, "yes and {unknown}", out)
}
