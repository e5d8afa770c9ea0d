// Package catalog maps logical model ids to concrete provider models and
// infers a provider for free-form model names.
package catalog

import (
	"errors"
	"fmt"

	"llm_router/internal/models"
)

// ErrModelNotFound is returned when a logical id is not in the catalog or
// its entry is not available for execution.
var ErrModelNotFound = errors.New("model not found")

// DefaultModelID is used when a request does not select a model.
const DefaultModelID = "claude-sonnet-4"

// ModelDescriptor describes one selectable model.
type ModelDescriptor struct {
	LogicalID   string              `json:"id"`
	DisplayName string              `json:"name"`
	Provider    models.ProviderKind `json:"provider"`
	WireModel   string              `json:"model"`
	Available   bool                `json:"available"`
}

// Catalog is an immutable table of model descriptors keyed by logical id.
type Catalog struct {
	entries []ModelDescriptor
	byID    map[string]int
}

// New builds a catalog from the given descriptors. Logical ids must be unique.
func New(entries []ModelDescriptor) (*Catalog, error) {
	c := &Catalog{
		entries: make([]ModelDescriptor, len(entries)),
		byID:    make(map[string]int, len(entries)),
	}
	copy(c.entries, entries)

	for i, e := range c.entries {
		if e.LogicalID == "" {
			return nil, fmt.Errorf("catalog entry %d has an empty id", i)
		}
		if !e.Provider.IsValid() {
			return nil, fmt.Errorf("catalog entry %q has unknown provider %q", e.LogicalID, e.Provider)
		}
		if _, dup := c.byID[e.LogicalID]; dup {
			return nil, fmt.Errorf("duplicate catalog id %q", e.LogicalID)
		}
		c.byID[e.LogicalID] = i
	}
	return c, nil
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(defaultModels)
	if err != nil {
		// the built-in table is static, a failure here is a code error
		panic(err)
	}
	return c
}

// Lookup returns the descriptor for id, including unavailable entries.
// It is meant for listing, not for execution.
func (c *Catalog) Lookup(id string) (ModelDescriptor, bool) {
	i, ok := c.byID[id]
	if !ok {
		return ModelDescriptor{}, false
	}
	return c.entries[i], true
}

// Resolve returns the descriptor for an executable logical id. Unknown and
// unavailable ids both yield ErrModelNotFound.
func (c *Catalog) Resolve(id string) (ModelDescriptor, error) {
	d, ok := c.Lookup(id)
	if !ok || !d.Available {
		return ModelDescriptor{}, fmt.Errorf("%w: %s", ErrModelNotFound, id)
	}
	return d, nil
}

// List returns a copy of all entries in catalog order.
func (c *Catalog) List() []ModelDescriptor {
	out := make([]ModelDescriptor, len(c.entries))
	copy(out, c.entries)
	return out
}

var defaultModels = []ModelDescriptor{
	{LogicalID: "claude-sonnet-4", DisplayName: "Claude Sonnet 4", Provider: models.ProviderAnthropic, WireModel: "claude-sonnet-4-20250514", Available: true},
	{LogicalID: "claude-haiku", DisplayName: "Claude 3.5 Haiku", Provider: models.ProviderAnthropic, WireModel: "claude-3-5-haiku-20241022", Available: true},

	{LogicalID: "gpt-4o", DisplayName: "GPT-4o", Provider: models.ProviderOpenAI, WireModel: "gpt-4o", Available: true},
	{LogicalID: "gpt-4o-mini", DisplayName: "GPT-4o Mini", Provider: models.ProviderOpenAI, WireModel: "gpt-4o-mini", Available: true},
	{LogicalID: "gpt-4", DisplayName: "GPT-4", Provider: models.ProviderOpenAI, WireModel: "gpt-4", Available: true},
	{LogicalID: "gpt-3.5-turbo", DisplayName: "GPT-3.5 Turbo", Provider: models.ProviderOpenAI, WireModel: "gpt-3.5-turbo", Available: true},

	{LogicalID: "gemini-pro", DisplayName: "Gemini Pro", Provider: models.ProviderGoogle, WireModel: "gemini-pro", Available: false},
	{LogicalID: "gemini-2.0-flash", DisplayName: "Gemini 2.0 Flash", Provider: models.ProviderGoogle, WireModel: "gemini-2.0-flash", Available: true},
	{LogicalID: "gemini-2.5-flash-preview-04-17", DisplayName: "Gemini 2.5 Flash Preview (04-17)", Provider: models.ProviderGoogle, WireModel: "gemini-2.5-flash-preview-04-17", Available: true},
	{LogicalID: "gemini-2.5-pro-preview-03-25", DisplayName: "Gemini 2.5 Pro Preview (03-25)", Provider: models.ProviderGoogle, WireModel: "gemini-2.5-pro-preview-03-25", Available: true},
	{LogicalID: "gemini-2.5-pro-preview-05-06", DisplayName: "Gemini 2.5 Pro Preview (05-06)", Provider: models.ProviderGoogle, WireModel: "gemini-2.5-pro-preview-05-06", Available: true},
	{LogicalID: "gemini-2.5-flash-preview-05-20", DisplayName: "Gemini 2.5 Flash Preview (05-20)", Provider: models.ProviderGoogle, WireModel: "gemini-2.5-flash-preview-05-20", Available: true},
	{LogicalID: "gemini-2.5-pro-preview-06-05", DisplayName: "Gemini 2.5 Pro Preview (06-05)", Provider: models.ProviderGoogle, WireModel: "gemini-2.5-pro-preview-06-05", Available: true},

	{LogicalID: "bedrock-claude-sonnet-4", DisplayName: "Claude Sonnet 4 (Bedrock)", Provider: models.ProviderBedrock, WireModel: "claude-sonnet-4-20250514", Available: true},
	{LogicalID: "bedrock-claude-sonnet-3-7", DisplayName: "Claude 3.7 Sonnet (Bedrock)", Provider: models.ProviderBedrock, WireModel: "claude-3-7-sonnet-20250219", Available: true},
	{LogicalID: "bedrock-claude-haiku", DisplayName: "Claude 3.5 Haiku (Bedrock)", Provider: models.ProviderBedrock, WireModel: "claude-3-5-haiku-20241022", Available: true},
}
