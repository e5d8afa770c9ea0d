package providers

import "llm_router/internal/models"

// supportedModels maps the wire models each provider enumerates to the
// identifier sent on the API. Names outside the table pass through verbatim
// and are validated by the provider.
var supportedModels = map[models.ProviderKind]map[string]string{
	models.ProviderAnthropic: {
		"claude-sonnet-4-20250514":   "claude-sonnet-4-20250514",
		"claude-3-7-sonnet-20250219": "claude-3-7-sonnet-20250219",
		"claude-3-5-haiku-20241022":  "claude-3-5-haiku-20241022",
	},
	models.ProviderOpenAI: {
		"gpt-4o":        "gpt-4o",
		"gpt-4o-mini":   "gpt-4o-mini",
		"gpt-4-turbo":   "gpt-4-turbo",
		"gpt-4":         "gpt-4",
		"gpt-3.5-turbo": "gpt-3.5-turbo",
	},
	models.ProviderGoogle: {
		"gemini-pro":                     "gemini-pro",
		"gemini-1.5-pro":                 "gemini-1.5-pro",
		"gemini-1.5-flash":               "gemini-1.5-flash",
		"gemini-2.0-flash":               "gemini-2.0-flash",
		"gemini-2.5-flash-preview-04-17": "gemini-2.5-flash-preview-04-17",
		"gemini-2.5-pro-preview-03-25":   "gemini-2.5-pro-preview-03-25",
		"gemini-2.5-pro-preview-05-06":   "gemini-2.5-pro-preview-05-06",
		"gemini-2.5-flash-preview-05-20": "gemini-2.5-flash-preview-05-20",
		"gemini-2.5-pro-preview-06-05":   "gemini-2.5-pro-preview-06-05",
	},
	// Bedrock ids carry no region prefix: the fantasy bedrock provider
	// prepends the inference-profile prefix derived from AWS_REGION.
	models.ProviderBedrock: {
		"claude-sonnet-4-20250514":   "anthropic.claude-sonnet-4-20250514-v1:0",
		"claude-3-7-sonnet-20250219": "anthropic.claude-3-7-sonnet-20250219-v1:0",
		"claude-3-5-haiku-20241022":  "anthropic.claude-3-5-haiku-20241022-v1:0",
	},
}

// APIModel returns the identifier the provider API expects for wireModel.
func APIModel(kind models.ProviderKind, wireModel string) string {
	if mapped, ok := supportedModels[kind][wireModel]; ok {
		return mapped
	}
	return wireModel
}

// Enumerated reports whether wireModel is in the provider's known set.
func Enumerated(kind models.ProviderKind, wireModel string) bool {
	_, ok := supportedModels[kind][wireModel]
	return ok
}
