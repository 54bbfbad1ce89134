// Package directory contains handlers, services and structures used to manage the
// user and doctor directories.
package directory

import (
	"context"
	"fmt"
	"net/http"

	"clinic-booking/internal/apierrors"
	"clinic-booking/internal/auth"
	"clinic-booking/internal/configs"
	"clinic-booking/internal/database"

	"github.com/google/uuid"
)

// UserReader determines the methods available to read user profiles.
type UserReader interface {

	// GetUser returns the profile of the given user, or nil when it does not exist.
	GetUser(ctx context.Context, userUUID uuid.UUID) (*auth.User, error)

	// ListUsers returns every user profile. Restricted to administrators.
	ListUsers(ctx context.Context, user auth.User) ([]*auth.User, error)
}

// UserWriter determines the methods available to change user profiles.
type UserWriter interface {

	// UpdateUser partially updates a profile. Users may update themselves,
	// administrators may update anyone.
	UpdateUser(ctx context.Context, user auth.User, userUUID uuid.UUID, update UserUpdate) error

	// DeactivateUser soft-deletes the given user. Restricted to administrators.
	DeactivateUser(ctx context.Context, user auth.User, userUUID uuid.UUID) error
}

// DoctorDirectory determines the methods available to manage doctor profiles.
type DoctorDirectory interface {

	// GetDoctor returns the doctor profile of the given user, or nil when it does not exist.
	GetDoctor(ctx context.Context, userUUID uuid.UUID) (*Doctor, error)

	// ListDoctors returns every doctor profile, optionally filtered by specialty.
	ListDoctors(ctx context.Context, specialty string) ([]*Doctor, error)

	// UpdateDoctor partially updates a doctor profile. Doctors may update their own,
	// administrators may update anyone's.
	UpdateDoctor(ctx context.Context, user auth.User, userUUID uuid.UUID, update DoctorUpdate) error

	// RegisterDoctor creates the skeleton doctor profile for a newly registered
	// doctor account.
	RegisterDoctor(ctx context.Context, userUUID uuid.UUID, specialty string) error

	// RecordAttendedAppointment increments the doctor's attended appointment counter.
	RecordAttendedAppointment(ctx context.Context, userUUID uuid.UUID) error
}

// Service determines the methods used to manage the directories.
type Service interface {
	UserReader
	UserWriter
	DoctorDirectory
}

type defaultService struct {
	repository Repository
	config     configs.Config
}

// NewService creates a new directory service.
func NewService(config configs.Config, dbConn database.Connection) Service {
	return &defaultService{
		config:     config,
		repository: newRepository(dbConn),
	}
}

func (d defaultService) GetUser(ctx context.Context, userUUID uuid.UUID) (*auth.User, error) {
	user, err := d.repository.FindUserByUUID(ctx, userUUID)
	if err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	if user != nil {
		user.Password = ""
	}
	return user, nil
}

func (d defaultService) ListUsers(ctx context.Context, user auth.User) ([]*auth.User, error) {
	if user.Role != auth.AdminRole {
		return nil, apierrors.NewAPIError(apierrors.WithDetail(ErrOnlyAdminCanManage), apierrors.WithHTTPStatusCode(http.StatusForbidden))
	}
	users, err := d.repository.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	for _, u := range users {
		u.Password = ""
	}
	return users, nil
}

func (d defaultService) UpdateUser(ctx context.Context, user auth.User, userUUID uuid.UUID, update UserUpdate) error {
	if user.Role != auth.AdminRole && user.UUID != userUUID {
		return apierrors.NewAPIError(apierrors.WithDetail(ErrOnlyAdminCanManage), apierrors.WithHTTPStatusCode(http.StatusForbidden))
	}
	target, err := d.repository.FindUserByUUID(ctx, userUUID)
	if err != nil {
		return fmt.Errorf("an unexpected error occurred: %w", err)
	}
	if target == nil {
		return apierrors.NewAPIError(apierrors.WithDetail(ErrUserNotFound), apierrors.WithHTTPStatusCode(http.StatusNotFound))
	}
	if err = d.repository.UpdateUser(ctx, userUUID, update); err != nil {
		return fmt.Errorf("an unexpected error occurred: %w", err)
	}
	return nil
}

func (d defaultService) DeactivateUser(ctx context.Context, user auth.User, userUUID uuid.UUID) error {
	if user.Role != auth.AdminRole {
		return apierrors.NewAPIError(apierrors.WithDetail(ErrOnlyAdminCanManage), apierrors.WithHTTPStatusCode(http.StatusForbidden))
	}
	target, err := d.repository.FindUserByUUID(ctx, userUUID)
	if err != nil {
		return fmt.Errorf("an unexpected error occurred: %w", err)
	}
	if target == nil {
		return apierrors.NewAPIError(apierrors.WithDetail(ErrUserNotFound), apierrors.WithHTTPStatusCode(http.StatusNotFound))
	}
	if err = d.repository.DeactivateUser(ctx, userUUID); err != nil {
		return fmt.Errorf("an unexpected error occurred: %w", err)
	}
	return nil
}

func (d defaultService) GetDoctor(ctx context.Context, userUUID uuid.UUID) (*Doctor, error) {
	doctor, err := d.repository.FindDoctorByUserUUID(ctx, userUUID)
	if err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	return doctor, nil
}

func (d defaultService) ListDoctors(ctx context.Context, specialty string) ([]*Doctor, error) {
	var doctors []*Doctor
	var err error
	if specialty != "" {
		doctors, err = d.repository.ListDoctorsBySpecialty(ctx, specialty)
	} else {
		doctors, err = d.repository.ListDoctors(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	return doctors, nil
}

func (d defaultService) UpdateDoctor(ctx context.Context, user auth.User, userUUID uuid.UUID, update DoctorUpdate) error {
	if user.Role != auth.AdminRole && (user.Role != auth.DoctorRole || user.UUID != userUUID) {
		return apierrors.NewAPIError(apierrors.WithDetail(ErrCannotEditOtherDoctor), apierrors.WithHTTPStatusCode(http.StatusForbidden))
	}
	if err := update.Validate(); err != nil {
		return err
	}
	doctor, err := d.repository.FindDoctorByUserUUID(ctx, userUUID)
	if err != nil {
		return fmt.Errorf("an unexpected error occurred: %w", err)
	}
	if doctor == nil {
		return apierrors.NewAPIError(apierrors.WithDetail(ErrDoctorNotFound), apierrors.WithHTTPStatusCode(http.StatusNotFound))
	}
	if err = d.repository.UpdateDoctor(ctx, userUUID, update); err != nil {
		return fmt.Errorf("an unexpected error occurred: %w", err)
	}
	return nil
}

func (d defaultService) RegisterDoctor(ctx context.Context, userUUID uuid.UUID, specialty string) error {
	doctor := Doctor{
		UserUUID:       userUUID,
		Specialty:      specialty,
		WeeklyTemplate: DefaultWeeklyTemplate(),
	}
	if err := d.repository.InsertDoctor(ctx, doctor); err != nil {
		return fmt.Errorf("an unexpected error occurred: %w", err)
	}
	return nil
}

func (d defaultService) RecordAttendedAppointment(ctx context.Context, userUUID uuid.UUID) error {
	if err := d.repository.IncrementAppointments(ctx, userUUID); err != nil {
		return fmt.Errorf("an unexpected error occurred: %w", err)
	}
	return nil
}
