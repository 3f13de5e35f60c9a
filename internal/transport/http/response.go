package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"collection-service/internal/entity"
	"collection-service/internal/service"
)

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, apiError{Message: msg, Code: codeFor(code)})
}

type errorClass struct {
	kind   error
	status int
	code   string
}

var errorClasses = []errorClass{
	{entity.ErrInvalidQuantity, http.StatusUnprocessableEntity, "invalid_quantity"},
	{entity.ErrInvalidItemNumber, http.StatusUnprocessableEntity, "invalid_item_number"},
	{entity.ErrIncompleteProof, http.StatusUnprocessableEntity, "incomplete_proof"},
	{entity.ErrDuplicateItemNumber, http.StatusConflict, "duplicate_item_number"},
	{entity.ErrJobNotEditable, http.StatusConflict, "job_not_editable"},
	{entity.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{entity.ErrNotFound, http.StatusNotFound, "not_found"},
	{entity.ErrForbidden, http.StatusForbidden, "forbidden"},
	{entity.ErrValidation, http.StatusBadRequest, "validation"},
	{service.ErrQueueUnavailable, http.StatusServiceUnavailable, "unavailable"},
}

// writeServiceErr maps domain errors to responses. Anything unknown is
// logged and reported as 500 without detail.
func writeServiceErr(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, err error) {
	for _, c := range errorClasses {
		if errors.Is(err, c.kind) {
			writeJSON(w, c.status, apiError{Message: err.Error(), Code: c.code, Field: entity.FieldOf(err)})
			return
		}
	}
	log.WithFields(requestFields(r)).WithError(err).Error("request failed")
	writeErr(w, http.StatusInternalServerError, "internal error")
}

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	case http.StatusInternalServerError:
		return "internal"
	default:
		return ""
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
