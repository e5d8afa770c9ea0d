package utils

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the OpenAI-compatible error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

// RespondWithError sends an error response of the given type
func RespondWithError(w http.ResponseWriter, code int, errType, message string) {
	if errType == "" {
		errType = "invalid_request_error"
	}
	_ = RespondWithJSON(w, code, ErrorBody{Error: ErrorDetail{Message: message, Type: errType, Code: code}})
}

// RespondWithJSON sends a JSON response
func RespondWithJSON(w http.ResponseWriter, code int, payload any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		return err
	}
	return nil
}
