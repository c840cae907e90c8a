package internal

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"project-tracker-api/internal/models"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// sendErrorResponse sends a standardized error response
func sendErrorResponse(w http.ResponseWriter, message, code string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// writeError maps err onto a status code and error body. Unclassified
// errors are logged and reported as a generic 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  "Validation failed",
			Code:   "VALIDATION_ERROR",
			Fields: verr.Fields,
		})
	case errors.Is(err, models.ErrInvalidInput):
		sendErrorResponse(w, "Invalid data", "INVALID_INPUT", http.StatusBadRequest)
	case errors.Is(err, models.ErrUnauthorized):
		sendErrorResponse(w, "Invalid credentials", "UNAUTHORIZED", http.StatusUnauthorized)
	case errors.Is(err, models.ErrNotFound):
		sendErrorResponse(w, "Project not found", "NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, models.ErrInvalidTransition):
		sendErrorResponse(w, err.Error(), "INVALID_TRANSITION", http.StatusConflict)
	case errors.Is(err, models.ErrConflict):
		sendErrorResponse(w, "Resource already exists", "CONFLICT", http.StatusConflict)
	default:
		s.Log.WithError(err).WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": middleware.GetReqID(r.Context()),
		}).Error("request failed")
		sendErrorResponse(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}

// decodeJSON reads a single JSON document from the request body into v.
// Type errors raised by the models' own decoders come back as-is so the
// caller can report the offending field; anything else is ErrInvalidInput.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			return verr
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return models.FieldError(typeErr.Field, "must be a "+jsonKind(typeErr.Type))
		}
		return models.ErrInvalidInput
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return models.ErrInvalidInput
	}
	return nil
}

// jsonKind names t the way a JSON client would.
func jsonKind(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "list"
	}
	return "object"
}
