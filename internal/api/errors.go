package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hackgods/ehr-appointment-scheduling/internal/appointment"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// detailsOf strips the sentinel prefix added by %w wrapping.
func detailsOf(err, sentinel error) string {
	msg := err.Error()
	if trimmed := strings.TrimPrefix(msg, sentinel.Error()+": "); trimmed != msg {
		return trimmed
	}
	return msg
}

// handleServiceError maps scheduling errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var conflict *appointment.ConflictError

	switch {
	case errors.As(err, &conflict):
		start, end, id := conflict.ConflictStart.UTC(), conflict.ConflictEnd.UTC(), conflict.ConflictID
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:         "conflict_with_existing_appointment",
			Details:       "requested time overlaps an existing appointment",
			ConflictID:    &id,
			ConflictStart: &start,
			ConflictEnd:   &end,
			ConflictType:  string(conflict.ConflictType),
		})
	case errors.Is(err, appointment.ErrSchedulingConflict):
		writeError(w, http.StatusConflict, "conflict_with_existing_appointment", "requested time overlaps an existing appointment")
	case errors.Is(err, appointment.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "invalid_time_range", detailsOf(err, appointment.ErrInvalidRange))
	case errors.Is(err, appointment.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, "invalid_date", detailsOf(err, appointment.ErrInvalidDate))
	case errors.Is(err, appointment.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_error", detailsOf(err, appointment.ErrValidation))
	case errors.Is(err, appointment.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", detailsOf(err, appointment.ErrInvalidStatusTransition))
	case errors.Is(err, appointment.ErrSchedulingBusy):
		writeError(w, http.StatusConflict, "scheduling_in_progress", err.Error())
	case errors.Is(err, appointment.ErrPatientDirectoryUnavailable):
		writeError(w, http.StatusServiceUnavailable, "patient_directory_unavailable", err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
