package httpapi

import (
	"context"
	"net/http"
	"sort"
	"time"

	"llm_router/internal/catalog"
	"llm_router/internal/utils"
)

type healthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

// handleHealth probes every registered dependency. Any failure turns the
// response into a 503.
func (d *Dependencies) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Components: map[string]string{}}
	code := http.StatusOK

	names := make([]string, 0, len(d.Health))
	for name := range d.Health {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := d.Health[name].Health(ctx); err != nil {
			resp.Components[name] = err.Error()
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Components[name] = "ok"
	}

	_ = utils.RespondWithJSON(w, code, resp)
}

type modelsResponse struct {
	Models []catalog.ModelDescriptor `json:"models"`
}

// handleListModels returns the selectable models.
func (d *Dependencies) handleListModels(w http.ResponseWriter, r *http.Request) {
	cat := d.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	_ = utils.RespondWithJSON(w, http.StatusOK, modelsResponse{Models: cat.List()})
}
