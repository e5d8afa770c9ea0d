package providers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"llm_router/internal/models"
)

func TestAPIModel(t *testing.T) {
	tests := []struct {
		name      string
		kind      models.ProviderKind
		wireModel string
		want      string
	}{
		{"anthropic verbatim", models.ProviderAnthropic, "claude-sonnet-4-20250514", "claude-sonnet-4-20250514"},
		{"openai enumerated", models.ProviderOpenAI, "gpt-4o-mini", "gpt-4o-mini"},
		{"google enumerated", models.ProviderGoogle, "gemini-2.0-flash", "gemini-2.0-flash"},
		{"bedrock sonnet 4", models.ProviderBedrock, "claude-sonnet-4-20250514", "anthropic.claude-sonnet-4-20250514-v1:0"},
		{"bedrock sonnet 3.7", models.ProviderBedrock, "claude-3-7-sonnet-20250219", "anthropic.claude-3-7-sonnet-20250219-v1:0"},
		{"bedrock haiku", models.ProviderBedrock, "claude-3-5-haiku-20241022", "anthropic.claude-3-5-haiku-20241022-v1:0"},
		{"openai custom passthrough", models.ProviderOpenAI, "o3-mini-custom", "o3-mini-custom"},
		{"bedrock custom passthrough", models.ProviderBedrock, "amazon.nova-pro-v1:0", "amazon.nova-pro-v1:0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, APIModel(tt.kind, tt.wireModel))
		})
	}
}

func TestEnumerated(t *testing.T) {
	assert.True(t, Enumerated(models.ProviderOpenAI, "gpt-4-turbo"))
	assert.True(t, Enumerated(models.ProviderGoogle, "gemini-1.5-flash"))
	assert.False(t, Enumerated(models.ProviderOpenAI, "claude-sonnet-4-20250514"))
	assert.False(t, Enumerated(models.ProviderAnthropic, "my-finetune"))
}

func TestSupportedModelsCoverEveryProvider(t *testing.T) {
	for _, kind := range models.AllProviderKinds() {
		assert.NotEmpty(t, supportedModels[kind], "no enumerated models for %s", kind)
	}
}

func TestBedrockModelsCarryNoRegionPrefix(t *testing.T) {
	for wire, api := range supportedModels[models.ProviderBedrock] {
		assert.True(t, strings.HasPrefix(api, "anthropic."), "%s maps to %s", wire, api)
		for _, region := range []string{"us.", "eu.", "ap."} {
			assert.False(t, strings.HasPrefix(api, region), "%s already carries region prefix %s", api, region)
		}
	}
}
