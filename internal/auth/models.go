package auth

import (
	"clinic-booking/internal/apierrors"

	"github.com/google/uuid"
)

type Role string

const (
	PatientRole Role = "PATIENT"
	DoctorRole  Role = "DOCTOR"
	AdminRole   Role = "ADMIN"
)

const minPasswordLength = 6

type Credentials struct {
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

// Validate validates if the credentials given are valid.
func (c Credentials) Validate() error {
	if c.Email == "" {
		return apierrors.NewValidationError("email", "required")
	}
	if c.Password == "" {
		return apierrors.NewValidationError("password", "required")
	}
	return nil
}

type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	GrantType    string `json:"grant_type,omitempty"`
}

// Validate validates if the tokens given are valid.
func (c Tokens) Validate() error {
	if c.AccessToken == "" {
		return apierrors.NewValidationError("access_token", "required")
	}
	if c.RefreshToken == "" {
		return apierrors.NewValidationError("refresh_token", "required")
	}
	if c.GrantType == "" {
		return apierrors.NewValidationError("grant_type", "required")
	}
	if c.GrantType != "refresh_token" {
		return apierrors.NewValidationError("grant_type", "invalid")
	}
	return nil
}

// Registration carries the payload to create a new account. Specialty is required
// when the role is DOCTOR and ignored otherwise.
type Registration struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	FirstName   string `json:"first_name" validate:"required"`
	LastName    string `json:"last_name" validate:"required"`
	MobilePhone string `json:"mobile_phone"`
	Role        Role   `json:"role" validate:"required,oneof=PATIENT DOCTOR ADMIN"`
	Specialty   string `json:"specialty,omitempty"`
}

// Validate validates the registration payload beyond its struct tags.
func (r Registration) Validate() error {
	if len(r.Password) < minPasswordLength {
		return apierrors.NewValidationError("password", messageFor(CodeWeakPassword))
	}
	if r.Role == DoctorRole && r.Specialty == "" {
		return apierrors.NewValidationError("specialty", "required")
	}
	return nil
}

type User struct {
	ID          int64     `json:"-" dbfield:"id"`
	UUID        uuid.UUID `json:"uuid" dbfield:"uuid"`
	Email       string    `json:"email" dbfield:"email"`
	Password    string    `json:"password,omitempty" dbfield:"password"`
	FirstName   string    `json:"first_name" dbfield:"first_name"`
	LastName    string    `json:"last_name" dbfield:"last_name"`
	MobilePhone string    `json:"mobile_phone" dbfield:"mobile_phone"`
	Role        Role      `json:"role" dbfield:"role"`
	Active      bool      `json:"active" dbfield:"active"`
}

// FullName returns the denormalized display name captured on appointments.
func (u User) FullName() string {
	return u.FirstName + " " + u.LastName
}
