package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"cubedeploy/internal/deployer"
	"cubedeploy/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusFor maps deployer errors to HTTP status codes.
func statusFor(err error) int {
	var he HTTPError
	switch {
	case deployer.IsValidation(err):
		return http.StatusBadRequest
	case deployer.IsNotFound(err):
		return http.StatusNotFound
	case deployer.IsDependencyUnavailable(err):
		return http.StatusServiceUnavailable
	case errors.As(err, &he):
		return he.StatusCode()
	default:
		return http.StatusInternalServerError
	}
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeErrorBody(w, types.ErrorResponse{Message: msg, Error: msg, Code: status})
}

func writeErrorBody(w http.ResponseWriter, body types.ErrorResponse) {
	body.Success = false
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(body.Code)
	_ = json.NewEncoder(w).Encode(body)
}
