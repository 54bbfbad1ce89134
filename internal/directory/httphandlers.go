package directory

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

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

// Setup setups the routes handled by the directory context and returns the service
// so other contexts can collaborate with it.
func Setup(router *chi.Mux, logger *log.Logger, authorizer auth.Authorizer, service Service) {
	handler := &httpHandler{logger: logger, authorizer: authorizer, service: service}

	// protected routes, any authenticated role
	router.Group(func(group chi.Router) {
		group.Use(auth.JwtValidator(authorizer))
		group.Get("/api/v1/doctors", handler.ListDoctors)
		group.Get("/api/v1/doctors/{doctorUUID}", handler.GetDoctor)
		group.Put("/api/v1/users/{userUUID}", handler.UpdateUser)
	})

	// protected routes, doctors and administrators
	router.Group(func(group chi.Router) {
		group.Use(auth.JwtValidator(authorizer))
		group.Use(auth.AllowedRole(authorizer, auth.DoctorRole, auth.AdminRole))
		group.Put("/api/v1/doctors/{doctorUUID}", handler.UpdateDoctor)
	})

	// protected routes, only for administrators
	router.Group(func(group chi.Router) {
		group.Use(auth.JwtValidator(authorizer))
		group.Use(auth.AllowedRole(authorizer, auth.AdminRole))
		group.Get("/api/v1/users", handler.ListUsers)
		group.Delete("/api/v1/users/{userUUID}", handler.DeactivateUser)
	})
}

// parseUUIDParameter parses a UUID parameter into a valid UUID.
func (h httpHandler) parseUUIDParameter(parName string, r *http.Request) (uuid.UUID, error) {
	zeroUUID := uuid.UUID{}
	uuidPar := chi.URLParam(r, parName)
	if uuidPar == "" {
		return zeroUUID, apierrors.NewAPIError(apierrors.WithDetail("invalid identifier"), apierrors.WithHTTPStatusCode(http.StatusNotFound))
	}
	parsedUUID, err := uuid.Parse(uuidPar)
	if err != nil {
		return zeroUUID, apierrors.NewAPIError(apierrors.WithDetail("invalid identifier"), apierrors.WithHTTPStatusCode(http.StatusBadRequest))
	}
	return parsedUUID, nil
}

// writeError logs the given error and translates it to an HTTP response.
func (h httpHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	logging.PrintlnError(h.logger, fmt.Sprint(r.Context().Value(middleware.RequestIDKey), " ", err))
	switch v := err.(type) {
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

func (h httpHandler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.service.ListDoctors(r.Context(), r.URL.Query().Get("specialty"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = json.NewEncoder(w).Encode(doctors)
}

func (h httpHandler) GetDoctor(w http.ResponseWriter, r *http.Request) {
	doctorUUID, err := h.parseUUIDParameter("doctorUUID", r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	doctor, err := h.service.GetDoctor(r.Context(), doctorUUID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if doctor == nil {
		h.writeError(w, r, apierrors.NewAPIError(apierrors.WithDetail(ErrDoctorNotFound), apierrors.WithHTTPStatusCode(http.StatusNotFound)))
		return
	}
	_ = json.NewEncoder(w).Encode(doctor)
}

func (h httpHandler) UpdateDoctor(w http.ResponseWriter, r *http.Request) {
	doctorUUID, err := h.parseUUIDParameter("doctorUUID", r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.authorizer.GetAuthenticatedUser(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	update := new(DoctorUpdate)
	if err = json.NewDecoder(r.Body).Decode(update); err != nil {
		logging.PrintlnError(h.logger, fmt.Sprint(r.Context().Value(middleware.RequestIDKey), " ", err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err = h.service.UpdateDoctor(r.Context(), user, doctorUUID, *update); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h httpHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	user, err := h.authorizer.GetAuthenticatedUser(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	users, err := h.service.ListUsers(r.Context(), user)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = json.NewEncoder(w).Encode(users)
}

func (h httpHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userUUID, err := h.parseUUIDParameter("userUUID", r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.authorizer.GetAuthenticatedUser(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	update := new(UserUpdate)
	if err = json.NewDecoder(r.Body).Decode(update); err != nil {
		logging.PrintlnError(h.logger, fmt.Sprint(r.Context().Value(middleware.RequestIDKey), " ", err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err = h.service.UpdateUser(r.Context(), user, userUUID, *update); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h httpHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	userUUID, err := h.parseUUIDParameter("userUUID", r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.authorizer.GetAuthenticatedUser(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if err = h.service.DeactivateUser(r.Context(), user, userUUID); err != nil {
		h.writeError(w, r, err)
		return
	}
	// the deactivated user must not keep an authenticated session around
	h.authorizer.InvalidateSession(userUUID)
	w.WriteHeader(http.StatusNoContent)
}
