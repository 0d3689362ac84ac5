package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hackgods/ehr-appointment-scheduling/internal/appointment"
)

const maxBodyBytes = 1 << 20

// AppointmentService is the scheduling surface the handlers depend on.
type AppointmentService interface {
	Book(ctx context.Context, req appointment.BookRequest) (*appointment.Appointment, error)
	Reschedule(ctx context.Context, id uuid.UUID, req appointment.RescheduleRequest) (*appointment.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	Complete(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	List(ctx context.Context, f appointment.ListFilter) (*appointment.ListResult, error)
	Availability(ctx context.Context, providerID, date string, slotMinutes int) (*appointment.Availability, error)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationMessage renders the first failing field as a client message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch {
	case fe.Field() == "patient":
		return "invalid patient id"
	case fe.Tag() == "required":
		return fe.Field() + " is required"
	case fe.Tag() == "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case fe.Tag() == "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	}
	return fe.Field() + " is invalid"
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", validationMessage(err))
		return false
	}
	return true
}

func appointmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func listAppointmentsHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		f := appointment.ListFilter{
			ProviderID: strings.TrimSpace(q.Get("providerId")),
			Status:     appointment.Status(strings.TrimSpace(q.Get("status"))),
			Page:       atoiOr(q.Get("page"), 1),
			Limit:      atoiOr(q.Get("limit"), appointment.DefaultPageLimit),
			Sort:       q.Get("sort"),
			Order:      strings.ToLower(q.Get("order")),
		}

		if raw := strings.TrimSpace(q.Get("patient")); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "validation_error", "invalid patient id")
				return
			}
			f.PatientID = &id
		}

		if raw := q.Get("date"); raw != "" {
			day, err := appointment.ParseDay(raw)
			if err != nil {
				handleServiceError(w, r, err)
				return
			}
			f.Date = &day
		} else {
			if raw := q.Get("dateFrom"); raw != "" {
				t, err := appointment.ParseInstant(raw)
				if err != nil {
					writeError(w, http.StatusBadRequest, "invalid_date", "dateFrom must be an ISO date")
					return
				}
				f.From = &t
			}
			if raw := q.Get("dateTo"); raw != "" {
				t, err := appointment.ParseInstant(raw)
				if err != nil {
					writeError(w, http.StatusBadRequest, "invalid_date", "dateTo must be an ISO date")
					return
				}
				f.To = &t
			}
		}

		res, err := svc.List(r.Context(), f)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		items := make([]AppointmentResponse, 0, len(res.Items))
		for i := range res.Items {
			items = append(items, toAppointmentResponse(&res.Items[i]))
		}
		writeJSON(w, http.StatusOK, ListAppointmentsResponse{
			Items: items,
			Page:  res.Page,
			Limit: res.Limit,
			Total: res.Total,
		})
	}
}

func availabilityHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		slotMins := appointment.NormalizeSlotMinutes(q.Get("slotMins"))

		av, err := svc.Availability(r.Context(), q.Get("providerId"), q.Get("date"), slotMins)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAvailabilityResponse(av))
	}
}

func getAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func createAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if !decodeBody(w, r, &req) {
			return
		}

		patientID, err := uuid.Parse(req.Patient)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "invalid patient id")
			return
		}

		appt, err := svc.Book(r.Context(), appointment.BookRequest{
			PatientID:  patientID,
			ProviderID: req.ProviderID,
			Start:      req.Start,
			End:        req.End,
			Reason:     req.Reason,
			Location:   req.Location,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func updateAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		var req UpdateAppointmentRequest
		if !decodeBody(w, r, &req) {
			return
		}

		update := appointment.RescheduleRequest{
			Start:    req.Start,
			End:      req.End,
			Reason:   req.Reason,
			Location: req.Location,
		}
		if req.Status != nil {
			st := appointment.Status(*req.Status)
			update.Status = &st
		}

		appt, err := svc.Reschedule(r.Context(), id, update)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func completeAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.Complete(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.Cancel(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, CancelAppointmentResponse{
			Success:     true,
			Appointment: toAppointmentResponse(appt),
		})
	}
}

func atoiOr(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return n
}
