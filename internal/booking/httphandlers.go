package booking

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"clinic-booking/internal/apierrors"
	"clinic-booking/internal/auth"
	"clinic-booking/internal/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type httpHandler struct {
	authorizer auth.Authorizer
	service    Service
	logger     *log.Logger
}

// Setup setups the routes handled by the booking context.
func Setup(router *chi.Mux, logger *log.Logger, authorizer auth.Authorizer, service Service) {
	handler := &httpHandler{logger: logger, authorizer: authorizer, service: service}

	// protected routes, any authenticated role
	router.Group(func(group chi.Router) {
		group.Use(auth.JwtValidator(authorizer))
		group.Get("/api/v1/appointments/mine", handler.ListMine)
		group.Get("/api/v1/appointments/watch", handler.Watch)
		group.Get("/api/v1/appointments/{appointmentUUID}", handler.GetAppointment)
		group.Put("/api/v1/appointments/{appointmentUUID}/cancel", handler.Cancel)
		group.Get("/api/v1/availability/{doctorUUID}/{year}/{month}/{day}/{slot}", handler.CheckAvailability)
		group.Get("/api/v1/doctors/{doctorUUID}/schedule/{year}/{month}/{day}", handler.GetDoctorSchedule)
	})

	// protected routes, only for patients
	router.Group(func(group chi.Router) {
		group.Use(auth.JwtValidator(authorizer))
		group.Use(auth.AllowedRole(authorizer, auth.PatientRole))
		group.Post("/api/v1/appointments", handler.Create)
	})

	// protected routes, only for doctors
	router.Group(func(group chi.Router) {
		group.Use(auth.JwtValidator(authorizer))
		group.Use(auth.AllowedRole(authorizer, auth.DoctorRole))
		group.Get("/api/v1/appointments/agenda/{year}/{month}/{day}", handler.GetAgenda)
		group.Put("/api/v1/appointments/{appointmentUUID}/confirm", handler.Confirm)
		group.Put("/api/v1/appointments/{appointmentUUID}/complete", handler.Complete)
	})

	// protected routes, only for administrators
	router.Group(func(group chi.Router) {
		group.Use(auth.JwtValidator(authorizer))
		group.Use(auth.AllowedRole(authorizer, auth.AdminRole))
		group.Get("/api/v1/appointments", handler.Search)
		group.Get("/api/v1/stats", handler.GetStatistics)
		group.Put("/api/v1/appointments/{appointmentUUID}/no-show", handler.MarkNoShow)
		group.Delete("/api/v1/appointments/{appointmentUUID}", handler.Delete)
	})
}

// statusCodes translates the booking domain errors into HTTP status codes.
var statusCodes = map[Error]int{
	ErrSlotUnavailable:         http.StatusConflict,
	ErrSlotOutsideSchedule:     http.StatusConflict,
	ErrInvalidTransition:       http.StatusConflict,
	ErrInvalidSlot:             http.StatusBadRequest,
	ErrInvalidIdentifier:       http.StatusBadRequest,
	ErrInvalidDateReference:    http.StatusBadRequest,
	ErrAppointmentNotFound:     http.StatusNotFound,
	ErrDoctorNotFound:          http.StatusNotFound,
	ErrOnlyPatientCanBook:      http.StatusForbidden,
	ErrOnlyDoctorCanConfirm:    http.StatusForbidden,
	ErrOnlyDoctorCanComplete:   http.StatusForbidden,
	ErrOnlyAdminCanMarkNoShow:  http.StatusForbidden,
	ErrOnlyAdminCanDelete:      http.StatusForbidden,
	ErrOnlyInvolvedCanCancel:   http.StatusForbidden,
	ErrOnlyInvolvedCanSee:      http.StatusForbidden,
	ErrOnlyDoctorHasAgenda:     http.StatusForbidden,
	ErrOnlyAdminCanSearch:      http.StatusForbidden,
	ErrOnlyAdminCanObtainStats: http.StatusForbidden,
}

// writeError logs the given error and translates it to an HTTP response.
func (h httpHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	logging.PrintlnError(h.logger, fmt.Sprint(r.Context().Value(middleware.RequestIDKey), " ", err))
	switch v := err.(type) {
	case Error:
		code, known := statusCodes[v]
		if !known {
			code = http.StatusInternalServerError
		}
		apiError := apierrors.NewAPIError(apierrors.WithDetail(v.Error()), apierrors.WithHTTPStatusCode(code))
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(apiError)
	case *apierrors.APIError:
		w.WriteHeader(v.HTTPStatusCode())
		_ = json.NewEncoder(w).Encode(v)
	case *apierrors.ValidationError:
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(v)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// parseUUIDParameter parses a UUID parameter into a valid UUID.
func (h httpHandler) parseUUIDParameter(parName string, r *http.Request) (uuid.UUID, error) {
	zeroUUID := uuid.UUID{}
	uuidPar := chi.URLParam(r, parName)
	if uuidPar == "" {
		return zeroUUID, apierrors.NewAPIError(apierrors.WithDetail(string(ErrInvalidIdentifier)), apierrors.WithHTTPStatusCode(http.StatusNotFound))
	}
	parsedUUID, err := uuid.Parse(uuidPar)
	if err != nil {
		return zeroUUID, apierrors.NewAPIError(apierrors.WithDetail(string(ErrInvalidIdentifier)), apierrors.WithHTTPStatusCode(http.StatusBadRequest))
	}
	return parsedUUID, nil
}

// parseDateParameters parses the year, month and day parameters into a valid
// calendar day, refusing dates that only exist through normalization.
func (h httpHandler) parseDateParameters(r *http.Request) (Day, error) {
	badDate := apierrors.NewAPIError(apierrors.WithDetail(string(ErrInvalidDateReference)), apierrors.WithHTTPStatusCode(http.StatusBadRequest))
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		return Day{}, badDate
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		return Day{}, badDate
	}
	day, err := strconv.Atoi(chi.URLParam(r, "day"))
	if err != nil {
		return Day{}, badDate
	}
	date := NewDay(year, time.Month(month), day)
	normalized := date.Time()
	if normalized.Year() != year || normalized.Month() != time.Month(month) || normalized.Day() != day {
		return Day{}, badDate
	}
	return date, nil
}

func (h httpHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	doctorUUID, err := h.parseUUIDParameter("doctorUUID", r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	date, err := h.parseDateParameters(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	availability, err := h.service.CheckAvailability(r.Context(), doctorUUID, date, chi.URLParam(r, "slot"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = json.NewEncoder(w).Encode(availability)
}

func (h httpHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, err := h.authorizer.GetAuthenticatedUser(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	request := new(BookingRequest)
	if err = json.NewDecoder(r.Body).Decode(request); err != nil {
		logging.PrintlnError(h.logger, fmt.Sprint(r.Context().Value(middleware.RequestIDKey), " ", err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	appointment, err := h.service.Create(r.Context(), user, *request)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(appointment)
}

func (h httpHandler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	appointmentUUID, err := h.parseUUIDParameter("appointmentUUID", r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.authorizer.GetAuthenticatedUser(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	appointment, err := h.service.GetAppointment(r.Context(), user, appointmentUUID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = json.NewEncoder(w).Encode(appointment)
}

func (h httpHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	user, err := h.authorizer.GetAuthenticatedUser(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	appointments, err := h.service.ListMine(r.Context(), user)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = json.NewEncoder(w).Encode(appointments)
}

func (h httpHandler) GetAgenda(w http.ResponseWriter, r *http.Request) {
	date, err := h.parseDateParameters(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.authorizer.GetAuthenticatedUser(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	appointments, err := h.service.GetAgenda(r.Context(), user, date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = json.NewEncoder(w).Encode(appointments)
}

func (h httpHandler) GetDoctorSchedule(w http.ResponseWriter, r *http.Request) {
	doctorUUID, err := h.parseUUIDParameter("doctorUUID", r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	date, err := h.parseDateParameters(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	schedule, err := h.service.GetDoctorSchedule(r.Context(), doctorUUID, date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = json.NewEncoder(w).Encode(schedule)
}

// lifecycle applies the common machinery of the state change endpoints.
func (h httpHandler) lifecycle(w http.ResponseWriter, r *http.Request, change func(user auth.User, appointmentUUID uuid.UUID) (*Appointment, error)) {
	appointmentUUID, err := h.parseUUIDParameter("appointmentUUID", r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.authorizer.GetAuthenticatedUser(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	appointment, err := change(user, appointmentUUID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = json.NewEncoder(w).Encode(appointment)
}

func (h httpHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(user auth.User, appointmentUUID uuid.UUID) (*Appointment, error) {
		return h.service.Confirm(r.Context(), user, appointmentUUID)
	})
}

func (h httpHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(user auth.User, appointmentUUID uuid.UUID) (*Appointment, error) {
		return h.service.Cancel(r.Context(), user, appointmentUUID)
	})
}

func (h httpHandler) Complete(w http.ResponseWriter, r *http.Request) {
	request := new(CompletionRequest)
	if err := json.NewDecoder(r.Body).Decode(request); err != nil {
		logging.PrintlnError(h.logger, fmt.Sprint(r.Context().Value(middleware.RequestIDKey), " ", err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	h.lifecycle(w, r, func(user auth.User, appointmentUUID uuid.UUID) (*Appointment, error) {
		return h.service.Complete(r.Context(), user, appointmentUUID, *request)
	})
}

func (h httpHandler) MarkNoShow(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(user auth.User, appointmentUUID uuid.UUID) (*Appointment, error) {
		return h.service.MarkNoShow(r.Context(), user, appointmentUUID)
	})
}

func (h httpHandler) Delete(w http.ResponseWriter, r *http.Request) {
	appointmentUUID, err := h.parseUUIDParameter("appointmentUUID", r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.authorizer.GetAuthenticatedUser(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if err = h.service.Delete(r.Context(), user, appointmentUUID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseFilter builds a filter from the search query parameters.
func (h httpHandler) parseFilter(r *http.Request) (Filter, error) {
	filter := Filter{}
	query := r.URL.Query()
	if value := query.Get("patientId"); value != "" {
		patientUUID, err := uuid.Parse(value)
		if err != nil {
			return filter, ErrInvalidIdentifier
		}
		filter.PatientUUID = patientUUID
	}
	if value := query.Get("doctorId"); value != "" {
		doctorUUID, err := uuid.Parse(value)
		if err != nil {
			return filter, ErrInvalidIdentifier
		}
		filter.DoctorUUID = doctorUUID
	}
	if value := query.Get("date"); value != "" {
		date, err := ParseDay(value)
		if err != nil {
			return filter, ErrInvalidDateReference
		}
		filter.Date = &date
	}
	if value := query.Get("from"); value != "" {
		from, err := ParseDay(value)
		if err != nil {
			return filter, ErrInvalidDateReference
		}
		filter.DateFrom = &from
	}
	if value := query.Get("to"); value != "" {
		to, err := ParseDay(value)
		if err != nil {
			return filter, ErrInvalidDateReference
		}
		filter.DateTo = &to
	}
	if value := query.Get("state"); value != "" {
		status := Status(value)
		if !status.IsValid() {
			return filter, ErrInvalidIdentifier
		}
		filter.Status = status
	}
	filter.Specialty = query.Get("specialty")
	return filter, nil
}

func (h httpHandler) Search(w http.ResponseWriter, r *http.Request) {
	user, err := h.authorizer.GetAuthenticatedUser(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	filter, err := h.parseFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	appointments, err := h.service.Search(r.Context(), user, filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = json.NewEncoder(w).Encode(appointments)
}

func (h httpHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	user, err := h.authorizer.GetAuthenticatedUser(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	statistics, err := h.service.GetStatistics(r.Context(), user)
	if err == ErrOnlyAdminCanObtainStats {
		h.writeError(w, r, err)
		return
	}
	if err != nil {
		// the dashboard prefers an empty board over an error page
		logging.PrintlnWarn(h.logger, fmt.Sprint(r.Context().Value(middleware.RequestIDKey), " statistics degraded: ", err))
		zeroed := ZeroStatistics()
		_ = json.NewEncoder(w).Encode(&zeroed)
		return
	}
	_ = json.NewEncoder(w).Encode(statistics)
}

// Watch streams the appointments matching the query parameters as server-sent
// events, re-sending the whole result set on every change.
func (h httpHandler) Watch(w http.ResponseWriter, r *http.Request) {
	user, err := h.authorizer.GetAuthenticatedUser(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	filter, err := h.parseFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	updates, cancel, err := h.service.Watch(r.Context(), user, filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer cancel()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	for {
		select {
		case <-r.Context().Done():
			return
		case appointments, open := <-updates:
			if !open {
				return
			}
			payload, err := json.Marshal(appointments)
			if err != nil {
				return
			}
			_, _ = fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
