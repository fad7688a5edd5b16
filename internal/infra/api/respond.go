package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"health-insurance-portal/internal/domain"
)

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors onto HTTP status codes for the JSON API.
func statusFor(err error) int {
	var gwErr *domain.GatewayError
	switch {
	case errors.As(err, &gwErr):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrUnsupportedGateway):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrAlreadyPaid), errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func errorResponse(err error) (int, errorBody) {
	code := statusFor(err)
	body := errorBody{Error: err.Error()}

	var (
		many domain.ValidationErrors
		one  *domain.ValidationError
	)
	switch {
	case errors.As(err, &many):
		body.Error = "validation failed"
		body.Fields = make(map[string]string, len(many))
		for _, e := range many {
			body.Fields[e.Field] = e.Reason
		}
	case errors.As(err, &one):
		body.Error = "validation failed"
		if one.Field != "" {
			body.Fields = map[string]string{one.Field: one.Reason}
		}
	case code == http.StatusBadGateway:
		body.Error = "payment gateway unavailable"
	case code == http.StatusInternalServerError:
		body.Error = "internal error"
	}
	return code, body
}
