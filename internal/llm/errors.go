package llm

import (
	"errors"
	"fmt"
	"strings"
)

// Providers lists the values NewProvider accepts. LLM_MODE=local overrides
// any of them with ollama.
var Providers = []string{"ollama", "openai", "openrouter"}

var (
	ErrMissingAPIKey = errors.New("missing API key for remote provider")
	ErrMissingModel  = errors.New("missing model for remote provider")
	ErrNoChoices     = errors.New("LLM response had no choices")
	ErrEmptyResponse = errors.New("LLM response was empty")
)

// ErrUnsupportedProvider is returned by NewProvider for a provider name it
// cannot build a client for.
type ErrUnsupportedProvider struct {
	Provider string
}

func (e ErrUnsupportedProvider) Error() string {
	return fmt.Sprintf("unsupported LLM provider %q (want one of %s)", e.Provider, strings.Join(Providers, ", "))
}
