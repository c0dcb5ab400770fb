package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSelectorsYAML = `
target:
  base_url: https://chat.example.test

elements:
  input:
    - "#primary-input"
    - "textarea.fallback"
    - "div[contenteditable]"
  generating:
    - ".spinner"
`

func writeSelectorsFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "selectors.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	return path
}

func TestLoadSelectorsOrderedChains(t *testing.T) {
	set, err := LoadSelectors(writeSelectorsFile(t, testSelectorsYAML))
	require.NoError(t, err)

	assert.Equal(t, "https://chat.example.test", set.BaseURL())
	assert.Equal(t,
		[]string{"#primary-input", "textarea.fallback", "div[contenteditable]"},
		set.Chain(ElementInput))
	assert.Equal(t, []string{".spinner"}, set.Chain(ElementGenerating))
}

func TestLoadSelectorsKeepsDefaultsForUnlistedElements(t *testing.T) {
	set, err := LoadSelectors(writeSelectorsFile(t, testSelectorsYAML))
	require.NoError(t, err)

	// The document only overrides input and generating; the rest keep
	// their built-in chains.
	assert.NotEmpty(t, set.Chain(ElementSend))
	assert.NotEmpty(t, set.Chain(ElementMessage))
	assert.NotEmpty(t, set.Chain(ElementLoggedIn))
}

func TestLoadSelectorsMissingFileUsesDefaults(t *testing.T) {
	set, err := LoadSelectors(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)

	assert.Equal(t, defaultBaseURL, set.BaseURL())
	assert.Equal(t, defaultChains[ElementInput], set.Chain(ElementInput))
}

func TestLoadSelectorsMalformedDocument(t *testing.T) {
	_, err := LoadSelectors(writeSelectorsFile(t, "elements: [not: a: map"))

	assert.Error(t, err)
}

func TestChainUnknownNameIsEmpty(t *testing.T) {
	set, err := LoadSelectors(writeSelectorsFile(t, testSelectorsYAML))
	require.NoError(t, err)

	assert.Empty(t, set.Chain("no_such_element"))
}

func TestChainReturnsCopy(t *testing.T) {
	set := NewSelectorSet("", map[string][]string{
		ElementInput: {"#a", "#b"},
	})

	chain := set.Chain(ElementInput)
	chain[0] = "mutated"

	assert.Equal(t, []string{"#a", "#b"}, set.Chain(ElementInput))
}
