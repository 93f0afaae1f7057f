package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/roach88/billbook/internal/billing"
	"github.com/roach88/billbook/internal/http/respond"
	"github.com/roach88/billbook/internal/record"
)

const maxJSONBody = 1 << 20

// writeError maps service errors onto status codes.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var ie *billing.InputError
	switch {
	case errors.As(err, &ie):
		if len(ie.Fields) > 0 {
			respond.Invalid(w, ie.Message, ie.Fields)
			return
		}
		respond.Error(w, http.StatusBadRequest, ie.Message)
	case errors.Is(err, billing.ErrNotFound):
		respond.Error(w, http.StatusNotFound, "not found")
	case errors.Is(err, billing.ErrPlanLimit):
		respond.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, billing.ErrDisabled):
		respond.Error(w, http.StatusNotImplemented, err.Error())
	default:
		logger.Error("request failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeObject reads a JSON object body.
func decodeObject(w http.ResponseWriter, r *http.Request) (record.Object, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		respond.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
		return nil, false
	}
	obj, err := record.ParseObject(data)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return nil, false
	}
	return obj, true
}
