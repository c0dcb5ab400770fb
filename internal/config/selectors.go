package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Logical UI-element names resolved through the SelectorSet. Each maps
// to an ordered fallback chain of concrete lookup expressions, so a
// third fallback is a config edit, not a new code branch.
const (
	ElementInput          = "input"
	ElementSend           = "send"
	ElementGenerating     = "generating"
	ElementMessage        = "message"
	ElementMessageContent = "message_content"
	ElementNewChat        = "new_chat"
	ElementLoggedIn       = "logged_in"
)

var defaultChains = map[string][]string{
	ElementInput:          {"#prompt-textarea", "textarea[data-id='root']"},
	ElementSend:           {"button[data-testid='send-button']", "button[aria-label='Send prompt']"},
	ElementGenerating:     {"button[data-testid='stop-button']", "button[aria-label='Stop generating']"},
	ElementMessage:        {"div[data-message-author-role='assistant']"},
	ElementMessageContent: {".markdown", ".prose"},
	ElementNewChat:        {"a[data-testid='create-new-chat-button']", "nav a[href='/']"},
	ElementLoggedIn:       {"button[data-testid='profile-button']", "img[alt='User']"},
}

const defaultBaseURL = "https://chatgpt.com"

// SelectorSet is the immutable mapping from logical element names to
// selector fallback chains, loaded once at startup.
type SelectorSet struct {
	baseURL string
	chains  map[string][]string
}

type selectorsDocument struct {
	Target struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"target"`
	Elements map[string][]string `yaml:"elements"`
}

// LoadSelectors reads the selector document at path and merges it over
// the built-in defaults. A missing file is not an error; the defaults
// alone are used so the process can still start on a fresh checkout.
func LoadSelectors(path string) (*SelectorSet, error) {
	set := &SelectorSet{
		baseURL: defaultBaseURL,
		chains:  make(map[string][]string, len(defaultChains)),
	}

	for name, chain := range defaultChains {
		set.chains[name] = append([]string(nil), chain...)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return set, nil
		}

		return nil, fmt.Errorf("read selectors file %s: %w", path, err)
	}

	var doc selectorsDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse selectors file %s: %w", path, err)
	}

	if doc.Target.BaseURL != "" {
		set.baseURL = doc.Target.BaseURL
	}

	for name, chain := range doc.Elements {
		if len(chain) > 0 {
			set.chains[name] = append([]string(nil), chain...)
		}
	}

	return set, nil
}

// NewSelectorSet builds a set directly from chains; used by tests.
func NewSelectorSet(baseURL string, chains map[string][]string) *SelectorSet {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	copied := make(map[string][]string, len(chains))
	for name, chain := range chains {
		copied[name] = append([]string(nil), chain...)
	}

	return &SelectorSet{baseURL: baseURL, chains: copied}
}

func (s *SelectorSet) BaseURL() string {
	return s.baseURL
}

// Chain returns the ordered selector fallback chain for a logical
// element name. Unknown names return an empty chain.
func (s *SelectorSet) Chain(name string) []string {
	chain, ok := s.chains[name]
	if !ok {
		return nil
	}

	return append([]string(nil), chain...)
}
