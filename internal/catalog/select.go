package catalog

import (
	"fmt"
	"strings"

	"llm_router/internal/models"
)

// ResolutionError means a model selection could not be turned into an
// executable provider/model pair.
type ResolutionError struct {
	Selection string
	Reason    string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve model %q: %s", e.Selection, e.Reason)
}

// Selection is the outcome of resolving a client model selection.
type Selection struct {
	LogicalID string              // as requested, or DefaultModelID
	Provider  models.ProviderKind // provider that will serve the request
	WireModel string              // model name sent to the provider
	Inferred  bool                // true when the name was not an available catalog entry
}

// Resolver combines catalog lookup with provider inference.
type Resolver struct {
	catalog      *Catalog
	inferrer     Inferrer
	defaultModel string
}

// NewResolver returns a resolver using cat, inferring with inf and falling
// back to defaultModel when the selection is empty.
func NewResolver(cat *Catalog, inf Inferrer, defaultModel string) *Resolver {
	if defaultModel == "" {
		defaultModel = DefaultModelID
	}
	return &Resolver{catalog: cat, inferrer: inf, defaultModel: defaultModel}
}

// Catalog returns the underlying catalog.
func (r *Resolver) Catalog() *Catalog {
	return r.catalog
}

// Select resolves the selected logical id. Available catalog entries win;
// anything else is treated as a custom wire model name whose provider is
// inferred.
func (r *Resolver) Select(selected string) (Selection, error) {
	id := strings.TrimSpace(selected)
	if id == "" {
		id = r.defaultModel
	}

	if d, err := r.catalog.Resolve(id); err == nil {
		return Selection{LogicalID: id, Provider: d.Provider, WireModel: d.WireModel}, nil
	}

	provider := r.inferrer.Infer(id)
	if !provider.IsValid() {
		return Selection{}, &ResolutionError{Selection: id, Reason: "no provider could be inferred"}
	}
	return Selection{LogicalID: id, Provider: provider, WireModel: id, Inferred: true}, nil
}
