package httpx

import (
	"errors"
	"net/http"

	"github.com/gatehouse-fm/gatehouse/internal/rolegraph"
)

// Sentinel errors shared by the domain layers.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrConflictOpen = errors.New("unresolved conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// RespondError maps domain errors to HTTP responses using RFC7807. Graph
// errors from the rolegraph core count as bad input, not server faults.
func RespondError(w http.ResponseWriter, err error) {
	var unknownRole *rolegraph.UnknownRoleError
	var badOrder *rolegraph.InvalidPartitionOrderError
	var tooDeep *rolegraph.CycleDepthExceededError
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrConflictOpen):
		Problem(w, http.StatusConflict, "Unresolved Conflict", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.As(err, &unknownRole):
		Problem(w, http.StatusUnprocessableEntity, "Unknown Role", err.Error())
	case errors.As(err, &badOrder):
		Problem(w, http.StatusUnprocessableEntity, "Invalid Partition Order", err.Error())
	case errors.As(err, &tooDeep):
		Problem(w, http.StatusUnprocessableEntity, "Implication Depth Exceeded", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
