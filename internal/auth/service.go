package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"clinic-booking/internal/configs"
	"clinic-booking/internal/database"
	"clinic-booking/internal/validation"

	"github.com/google/uuid"
)

// Authenticator determines the methods available to users get authenticated.
type Authenticator interface {

	// Authenticate authenticates a user by its credentials and returns a JWT tokens, otherwise an error.
	Authenticate(ctx context.Context, credentials Credentials) (*Tokens, error)

	// Register creates a new account with the given registration data and returns the created user.
	Register(ctx context.Context, registration Registration) (*User, error)
}

// Authorizer determines the methods used to authorize a user to perform some action.
type Authorizer interface {

	// ValidateToken validates the given token, returning the user associated to it.
	ValidateToken(ctx context.Context, token string) (*User, error)

	// RefreshTokens generates new tokens based on the given one.
	RefreshTokens(ctx context.Context, tokens Tokens) (*Tokens, error)

	// GetAuthenticatedUser gets the authenticated user associated to context.
	GetAuthenticatedUser(ctx context.Context) (User, error)

	// InvalidateSession drops the cached session of the given user.
	InvalidateSession(id uuid.UUID)
}

// DoctorRegistrar creates the doctor-specific profile when a doctor account is
// registered. Implemented by the directory service.
type DoctorRegistrar interface {
	RegisterDoctor(ctx context.Context, userUUID uuid.UUID, specialty string) error
}

type Service interface {
	Authenticator
	Authorizer
}

type defaultService struct {
	repository Repository
	config     configs.Config
	doctors    DoctorRegistrar
	sessions   *sessionCache
	attempts   *attemptLimiter
}

// NewService creates a new auth service. The doctors registrar may be nil when
// doctor registration is not exposed.
func NewService(config configs.Config, dbConn database.Connection, doctors DoctorRegistrar) Service {
	return &defaultService{
		config:     config,
		repository: newRepository(dbConn),
		doctors:    doctors,
		sessions:   newSessionCache(),
		attempts:   newAttemptLimiter(),
	}
}

func (d *defaultService) Authenticate(ctx context.Context, credentials Credentials) (*Tokens, error) {
	if err := credentials.Validate(); err != nil {
		return nil, err
	}
	if d.attempts.blocked(credentials.Email) {
		return nil, NewAccountError(CodeTooManyRequests)
	}
	user, err := d.repository.FindUserByEmail(ctx, credentials.Email)
	if err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	if user == nil || !user.Active {
		d.attempts.registerFailure(credentials.Email)
		return nil, NewUnauthorizedError()
	}
	isValidCredentials, err := d.repository.CheckUserPassword(ctx, credentials.Email, credentials.Password)
	if err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	if !isValidCredentials {
		d.attempts.registerFailure(credentials.Email)
		return nil, NewAccountError(CodeWrongPassword)
	}
	d.attempts.reset(credentials.Email)
	return GenerateTokens(ctx, d.config.PrivateKey(), *user)
}

func (d *defaultService) Register(ctx context.Context, registration Registration) (*User, error) {
	if err := validation.Struct(registration); err != nil {
		return nil, err
	}
	if err := registration.Validate(); err != nil {
		return nil, err
	}
	hashedPass, err := EncryptPassword(registration.Password)
	if err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	user := User{
		UUID:        uuid.New(),
		Email:       registration.Email,
		Password:    hashedPass,
		FirstName:   registration.FirstName,
		LastName:    registration.LastName,
		MobilePhone: registration.MobilePhone,
		Role:        registration.Role,
		Active:      true,
	}
	if err = d.repository.InsertUser(ctx, user); err != nil {
		if _, isAccountErr := err.(*AccountError); isAccountErr {
			return nil, err
		}
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	if registration.Role == DoctorRole && d.doctors != nil {
		if err = d.doctors.RegisterDoctor(ctx, user.UUID, registration.Specialty); err != nil {
			return nil, fmt.Errorf("an unexpected error occurred: %w", err)
		}
	}
	user.Password = ""
	return &user, nil
}

func (d *defaultService) ValidateToken(ctx context.Context, token string) (*User, error) {
	bearer := strings.TrimPrefix(token, "Bearer ")
	parsedToken, err := ParseToken(bearer, d.config.PrivateKey().PublicKey)
	if err != nil {
		return nil, NewUnauthorizedError()
	}
	if !time.Now().Before(parsedToken.Expiration()) {
		return nil, NewUnauthorizedError()
	}
	subject := uuid.MustParse(parsedToken.Subject())
	if user, cached := d.sessions.get(subject); cached {
		return &user, nil
	}
	user, err := d.repository.FindUserByUUID(ctx, subject)
	if err != nil {
		return nil, NewUnauthorizedError()
	}
	if user == nil || !user.Active {
		return nil, NewUnauthorizedError()
	}
	d.sessions.put(*user)
	return user, nil
}

func (d *defaultService) RefreshTokens(ctx context.Context, tokens Tokens) (*Tokens, error) {
	if err := tokens.Validate(); err != nil {
		return nil, err
	}
	refreshToken, err := ParseToken(tokens.RefreshToken, d.config.PrivateKey().PublicKey)
	if err != nil {
		return nil, NewUnauthorizedError()
	}
	if !time.Now().Before(refreshToken.Expiration()) {
		return nil, NewUnauthorizedError()
	}
	user, err := d.repository.FindUserByUUID(ctx, uuid.MustParse(refreshToken.Subject()))
	if err != nil {
		return nil, fmt.Errorf("an unexpected error occurred: %w", err)
	}
	if user == nil || !user.Active {
		return nil, NewUnauthorizedError()
	}
	return GenerateTokens(ctx, d.config.PrivateKey(), *user)
}

func (d *defaultService) GetAuthenticatedUser(ctx context.Context) (User, error) {
	user, isUser := ctx.Value(UserContextKey).(User)
	if !isUser {
		return User{}, NewUnauthorizedError()
	}
	return user, nil
}

func (d *defaultService) InvalidateSession(id uuid.UUID) {
	d.sessions.invalidate(id)
}
