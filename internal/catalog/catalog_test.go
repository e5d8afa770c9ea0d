package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm_router/internal/models"
)

func TestDefaultCatalog_ResolveReturnsRecordedEntry(t *testing.T) {
	c := Default()

	for _, d := range c.List() {
		if !d.Available {
			continue
		}
		t.Run(d.LogicalID, func(t *testing.T) {
			got, err := c.Resolve(d.LogicalID)
			require.NoError(t, err)
			assert.Equal(t, d.Provider, got.Provider)
			assert.Equal(t, d.WireModel, got.WireModel)
		})
	}
}

func TestDefaultCatalog_KnownEntries(t *testing.T) {
	c := Default()

	tests := []struct {
		id       string
		provider models.ProviderKind
		wire     string
	}{
		{"claude-sonnet-4", models.ProviderAnthropic, "claude-sonnet-4-20250514"},
		{"claude-haiku", models.ProviderAnthropic, "claude-3-5-haiku-20241022"},
		{"gpt-4o", models.ProviderOpenAI, "gpt-4o"},
		{"gemini-2.0-flash", models.ProviderGoogle, "gemini-2.0-flash"},
		{"bedrock-claude-sonnet-3-7", models.ProviderBedrock, "claude-3-7-sonnet-20250219"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			d, err := c.Resolve(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.provider, d.Provider)
			assert.Equal(t, tt.wire, d.WireModel)
		})
	}
}

func TestCatalog_UnknownAndUnavailable(t *testing.T) {
	c := Default()

	_, err := c.Resolve("totally-unknown-model")
	assert.True(t, errors.Is(err, ErrModelNotFound))

	// gemini-pro is listed but disabled
	d, ok := c.Lookup("gemini-pro")
	require.True(t, ok)
	assert.False(t, d.Available)

	_, err = c.Resolve("gemini-pro")
	assert.True(t, errors.Is(err, ErrModelNotFound))
}

func TestNew_RejectsDuplicatesAndBadProviders(t *testing.T) {
	_, err := New([]ModelDescriptor{
		{LogicalID: "a", Provider: models.ProviderOpenAI, WireModel: "a", Available: true},
		{LogicalID: "a", Provider: models.ProviderOpenAI, WireModel: "b", Available: true},
	})
	assert.Error(t, err)

	_, err = New([]ModelDescriptor{{LogicalID: "x", Provider: "mistral", WireModel: "x"}})
	assert.Error(t, err)

	_, err = New([]ModelDescriptor{{Provider: models.ProviderOpenAI}})
	assert.Error(t, err)
}

func TestCatalog_ListIsACopy(t *testing.T) {
	c := Default()
	list := c.List()
	list[0].WireModel = "mutated"

	d, ok := c.Lookup(list[0].LogicalID)
	require.True(t, ok)
	assert.NotEqual(t, "mutated", d.WireModel)
}
