package catalog

import (
	"strings"

	"llm_router/internal/models"
)

// DefaultInferredProvider is returned by Infer when no pattern matches.
const DefaultInferredProvider = models.ProviderOpenAI

// Inferrer derives a provider from a free-form model name.
type Inferrer struct {
	fallback models.ProviderKind
}

// NewInferrer returns an Inferrer falling back to the given provider.
// An invalid fallback is replaced by DefaultInferredProvider.
func NewInferrer(fallback models.ProviderKind) Inferrer {
	if !fallback.IsValid() {
		fallback = DefaultInferredProvider
	}
	return Inferrer{fallback: fallback}
}

// Fallback returns the provider used when nothing matches.
func (i Inferrer) Fallback() models.ProviderKind {
	if !i.fallback.IsValid() {
		return DefaultInferredProvider
	}
	return i.fallback
}

var (
	bedrockPrefixes   = []string{"us.anthropic", "amazon."}
	openAIPrefixes    = []string{"gpt", "text-", "davinci", "curie", "babbage", "ada", "o1"}
	openAISubstrings  = []string{"turbo", "chatgpt"}
	anthropicMarkers  = []string{"sonnet", "haiku", "opus"}
	bedrockSubstrings = []string{"bedrock"}
)

// Infer never fails. It does not check that the provider serves the model.
//
// Bedrock inference-profile prefixes are tested first because ids such as
// "us.anthropic.claude-sonnet-4" also contain Anthropic markers.
func (i Inferrer) Infer(modelName string) models.ProviderKind {
	name := strings.ToLower(strings.TrimSpace(modelName))

	switch {
	case hasAnyPrefix(name, bedrockPrefixes):
		return models.ProviderBedrock
	case strings.HasPrefix(name, "gemini"):
		return models.ProviderGoogle
	case hasAnyPrefix(name, openAIPrefixes) || containsAny(name, openAISubstrings):
		return models.ProviderOpenAI
	case strings.HasPrefix(name, "claude") || containsAny(name, anthropicMarkers):
		return models.ProviderAnthropic
	case containsAny(name, bedrockSubstrings):
		return models.ProviderBedrock
	}
	return i.Fallback()
}

// Infer uses the package default fallback.
func Infer(modelName string) models.ProviderKind {
	return NewInferrer(DefaultInferredProvider).Infer(modelName)
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
