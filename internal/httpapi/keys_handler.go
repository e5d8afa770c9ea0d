package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"llm_router/internal/keypool"
	"llm_router/internal/models"
	"llm_router/internal/utils"
)

type getOptimalKeyRequest struct {
	Provider string `json:"provider"`
}

type getOptimalKeyResponse struct {
	APIKey     string `json:"apiKey"`
	KeyID      string `json:"keyId"`
	UsageCount int    `json:"usageCount"`
}

// handleGetOptimalKey hands out the least used pooled credential of a
// provider and records the use.
func (d *Dependencies) handleGetOptimalKey(w http.ResponseWriter, r *http.Request) {
	var body getOptimalKeyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "", "invalid JSON body")
		return
	}
	if body.Provider == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "", "provider is required")
		return
	}
	provider, err := models.ParseProviderKind(body.Provider)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "", err.Error())
		return
	}

	if d.Pool == nil {
		utils.RespondWithError(w, http.StatusServiceUnavailable, "server_error", "credential pool not configured")
		return
	}

	cred, err := d.Pool.Acquire(r.Context(), provider)
	switch {
	case err == nil:
	case errors.Is(err, keypool.ErrPoolExhausted):
		utils.RespondWithError(w, http.StatusNotFound, "not_found_error", "no active credential for provider "+string(provider))
		return
	case errors.Is(err, keypool.ErrPoolTimeout):
		utils.RespondWithError(w, http.StatusGatewayTimeout, "server_error", "credential lookup timed out")
		return
	default:
		utils.NewLogger("keys-handler").Error("Credential acquire failed", "provider", provider, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "server_error", "credential store failure")
		return
	}

	_ = utils.RespondWithJSON(w, http.StatusOK, getOptimalKeyResponse{
		APIKey:     cred.Secret,
		KeyID:      cred.ID.String(),
		UsageCount: cred.UsageCount,
	})
}
