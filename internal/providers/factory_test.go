package providers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm_router/internal/catalog"
	"llm_router/internal/models"
)

func TestFactory_BuildEveryProvider(t *testing.T) {
	f := NewFactory(FactoryConfig{})

	for _, kind := range models.AllProviderKinds() {
		t.Run(string(kind), func(t *testing.T) {
			client, err := f.Build(kind, "some-model", "test-key")
			require.NoError(t, err)
			assert.Equal(t, kind, client.Provider())
			assert.Equal(t, "some-model", client.WireModel())
		})
	}
}

func TestFactory_CatalogRoundTrip(t *testing.T) {
	f := NewFactory(FactoryConfig{})

	for _, desc := range catalog.Default().List() {
		if !desc.Available {
			continue
		}
		t.Run(desc.LogicalID, func(t *testing.T) {
			resolved, err := catalog.Default().Resolve(desc.LogicalID)
			require.NoError(t, err)

			client, err := f.Build(resolved.Provider, resolved.WireModel, "test-key")
			require.NoError(t, err)
			assert.Equal(t, resolved.WireModel, client.WireModel())
			assert.Equal(t, resolved.Provider, client.Provider())
		})
	}
}

func TestFactory_BedrockAPIModel(t *testing.T) {
	f := NewFactory(FactoryConfig{})

	client, err := f.Build(models.ProviderBedrock, "claude-sonnet-4-20250514", "AKIDEXAMPLE:secret")
	require.NoError(t, err)

	fc, ok := client.(*fantasyClient)
	require.True(t, ok)
	assert.Equal(t, "claude-sonnet-4-20250514", fc.WireModel())
	assert.Equal(t, "anthropic.claude-sonnet-4-20250514-v1:0", fc.apiModel)
}

func TestFactory_DefaultKeyAndBaseURL(t *testing.T) {
	f := NewFactory(FactoryConfig{
		DefaultKeys: map[models.ProviderKind]string{models.ProviderOpenAI: "sk-env"},
		BaseURLs:    map[models.ProviderKind]string{models.ProviderOpenAI: "http://localhost:9999/v1"},
	})

	client, err := f.Build(models.ProviderOpenAI, "gpt-4o", "")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", client.WireModel())
}

func TestFactory_DefaultRegion(t *testing.T) {
	f := NewFactory(FactoryConfig{})
	assert.Equal(t, DefaultBedrockRegion, f.cfg.BedrockRegion)

	f = NewFactory(FactoryConfig{BedrockRegion: "eu-west-1"})
	assert.Equal(t, "eu-west-1", f.cfg.BedrockRegion)
}

func TestFactory_UnsupportedProviderPanics(t *testing.T) {
	f := NewFactory(FactoryConfig{})

	defer func() {
		r := recover()
		require.NotNil(t, r, "expected panic")
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, errors.Is(err, ErrUnsupportedProvider))
		assert.Contains(t, err.Error(), "cohere")
	}()

	_, _ = f.Build(models.ProviderKind("cohere"), "command-r", "key")
}
