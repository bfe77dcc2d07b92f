package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sentineldb/siemcore/internal/apperr"
)

// Respond writes a JSON response with the given status code.
func Respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// errorBody is the body of the {error:{...}} envelope from the HTTP API spec.
type errorBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Upstream string `json:"upstream,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// RespondError writes the standard {error:{code,message,upstream?}} envelope.
func RespondError(w http.ResponseWriter, status int, code, message string) {
	Respond(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

// RespondAppError maps an *apperr.Error to its HTTP status and envelope.
// This is the single propagation boundary where typed errors become HTTP.
func RespondAppError(w http.ResponseWriter, err error) {
	ae, ok := apperr.As(err)
	if !ok {
		RespondError(w, http.StatusInternalServerError, string(apperr.CodeInternal), "internal error")
		return
	}
	status := apperr.HTTPStatus(ae.Code)
	if ae.Code == apperr.CodeRateLimited {
		w.Header().Set("Retry-After", "1")
	}
	Respond(w, status, errorEnvelope{Error: errorBody{
		Code:     string(ae.Code),
		Message:  ae.Message,
		Upstream: ae.Upstream,
	}})
}
