package auth

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"clinic-booking/internal/configs"
	"clinic-booking/internal/mock"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/jwa"
	"github.com/lestrrat-go/jwx/jwt"
	"github.com/lib/pq"
)

type emptyWriter struct{}

func (e emptyWriter) Write(p []byte) (n int, err error) {
	return 0, nil
}

var logger = log.New(&emptyWriter{}, "", log.LstdFlags)

type mockRegistrar struct {
	registered []uuid.UUID
	err        error
}

func (m *mockRegistrar) RegisterDoctor(ctx context.Context, userUUID uuid.UUID, specialty string) error {
	if m.err != nil {
		return m.err
	}
	m.registered = append(m.registered, userUUID)
	return nil
}

var testUserUUID = uuid.MustParse("7c2b3a47-3c34-44a4-94f1-7f4dbd0c2a10")

func userRows(active bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "uuid", "email", "first_name", "last_name", "mobile_phone", "role", "active"}).
		AddRow(1, testUserUUID, "patient@clinic.com", "Paula", "Stone", "", string(PatientRole), active)
}

func withFindUserByEmailResult(rows *sqlmock.Rows) mock.DBResultOption {
	return func(dbConn mock.Connection) {
		dbConn.SQLMock.ExpectQuery(regexp.QuoteMeta(findUserByEmailQuery)).WithArgs(sqlmock.AnyArg()).WillReturnRows(rows)
	}
}

func withFindUserByEmailError() mock.DBResultOption {
	return func(dbConn mock.Connection) {
		dbConn.SQLMock.ExpectQuery(regexp.QuoteMeta(findUserByEmailQuery)).WithArgs(sqlmock.AnyArg()).WillReturnError(sql.ErrConnDone)
	}
}

func withCheckUserPasswordResult(hashedPass string) mock.DBResultOption {
	return func(dbConn mock.Connection) {
		dbConn.SQLMock.ExpectQuery(regexp.QuoteMeta(checkUserPasswordQuery)).WithArgs(sqlmock.AnyArg()).WillReturnRows(sqlmock.NewRows([]string{"id", "password"}).AddRow(1, hashedPass))
	}
}

func withFindUserByUUIDResult(rows *sqlmock.Rows) mock.DBResultOption {
	return func(dbConn mock.Connection) {
		dbConn.SQLMock.ExpectQuery(regexp.QuoteMeta(findUserByUUIDQuery)).WithArgs(sqlmock.AnyArg()).WillReturnRows(rows)
	}
}

func withInsertUserResult(result driver.Result) mock.DBResultOption {
	return func(dbConn mock.Connection) {
		dbConn.SQLMock.ExpectExec(regexp.QuoteMeta(insertUserQuery)).WillReturnResult(result)
	}
}

func withInsertUserConflict() mock.DBResultOption {
	return func(dbConn mock.Connection) {
		dbConn.SQLMock.ExpectExec(regexp.QuoteMeta(insertUserQuery)).WillReturnError(&pq.Error{Code: uniqueViolationCode})
	}
}

func TestAuthenticate(t *testing.T) {
	config := configs.MustLoad("./../../test/testdata/config_valid.json")
	hashedPass, err := EncryptPassword("123456")
	if err != nil {
		t.Fatalf("could not encrypt the test password: %v", err)
	}
	type args struct {
		dbConn        mock.Connection
		dbMockOptions []mock.DBResultOption
		body          string
	}
	tests := []struct {
		name string
		args args
		want int
	}{
		{
			name: "should authenticate with valid credentials",
			args: args{
				dbConn: mock.MustCreateConnectionMock(),
				dbMockOptions: []mock.DBResultOption{
					withFindUserByEmailResult(userRows(true)),
					withCheckUserPasswordResult(hashedPass),
				},
				body: `{"email": "patient@clinic.com", "password": "123456"}`,
			},
			want: http.StatusOK,
		},
		{
			name: "should not authenticate with a wrong password",
			args: args{
				dbConn: mock.MustCreateConnectionMock(),
				dbMockOptions: []mock.DBResultOption{
					withFindUserByEmailResult(userRows(true)),
					withCheckUserPasswordResult(hashedPass),
				},
				body: `{"email": "patient@clinic.com", "password": "654321"}`,
			},
			want: http.StatusUnauthorized,
		},
		{
			name: "should not authenticate an unknown email",
			args: args{
				dbConn: mock.MustCreateConnectionMock(),
				dbMockOptions: []mock.DBResultOption{
					withFindUserByEmailResult(sqlmock.NewRows([]string{"id", "uuid", "email", "first_name", "last_name", "mobile_phone", "role", "active"})),
				},
				body: `{"email": "ghost@clinic.com", "password": "123456"}`,
			},
			want: http.StatusUnauthorized,
		},
		{
			name: "should not authenticate a deactivated user",
			args: args{
				dbConn: mock.MustCreateConnectionMock(),
				dbMockOptions: []mock.DBResultOption{
					withFindUserByEmailResult(userRows(false)),
				},
				body: `{"email": "patient@clinic.com", "password": "123456"}`,
			},
			want: http.StatusUnauthorized,
		},
		{
			name: "should not authenticate without an email",
			args: args{
				dbConn: mock.MustCreateConnectionMock(),
				body:   `{"password": "123456"}`,
			},
			want: http.StatusBadRequest,
		},
		{
			name: "should fail due to a database error",
			args: args{
				dbConn:        mock.MustCreateConnectionMock(),
				dbMockOptions: []mock.DBResultOption{withFindUserByEmailError()},
				body:          `{"email": "patient@clinic.com", "password": "123456"}`,
			},
			want: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := chi.NewRouter()
			Setup(router, logger, config, tt.args.dbConn, &mockRegistrar{})

			mock.MockDBResults(tt.args.dbConn, tt.args.dbMockOptions...)

			req, _ := http.NewRequest("POST", "/api/v1/auth/login", bytes.NewBufferString(tt.args.body))
			recorder := httptest.NewRecorder()
			router.ServeHTTP(recorder, req)

			if recorder.Code != tt.want {
				t.Errorf("response status is incorrect, got %d, want %d", recorder.Code, tt.want)
			}
		})
	}
}

func TestAuthenticateRateLimited(t *testing.T) {
	config := configs.MustLoad("./../../test/testdata/config_valid.json")
	dbConn := mock.MustCreateConnectionMock()
	router := chi.NewRouter()
	Setup(router, logger, config, dbConn, &mockRegistrar{})

	emptyRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "uuid", "email", "first_name", "last_name", "mobile_phone", "role", "active"})
	}
	for i := 0; i < 5; i++ {
		mock.MockDBResults(dbConn, withFindUserByEmailResult(emptyRows()))
		req, _ := http.NewRequest("POST", "/api/v1/auth/login", bytes.NewBufferString(`{"email": "ghost@clinic.com", "password": "123456"}`))
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)
		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d status is incorrect, got %d, want %d", i, recorder.Code, http.StatusUnauthorized)
		}
	}

	// the sixth attempt is refused before any database access
	req, _ := http.NewRequest("POST", "/api/v1/auth/login", bytes.NewBufferString(`{"email": "ghost@clinic.com", "password": "123456"}`))
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusTooManyRequests {
		t.Fatalf("response status is incorrect, got %d, want %d", recorder.Code, http.StatusTooManyRequests)
	}
	accountError := new(AccountError)
	if err := json.NewDecoder(recorder.Body).Decode(accountError); err != nil {
		t.Fatalf("could not decode the response: %v", err)
	}
	if accountError.Code != CodeTooManyRequests {
		t.Errorf("error code is incorrect, got %s, want %s", accountError.Code, CodeTooManyRequests)
	}
}

func TestRegister(t *testing.T) {
	config := configs.MustLoad("./../../test/testdata/config_valid.json")
	type args struct {
		dbConn        mock.Connection
		dbMockOptions []mock.DBResultOption
		registrar     *mockRegistrar
		body          string
	}
	tests := []struct {
		name            string
		args            args
		want            int
		wantDoctorCount int
	}{
		{
			name: "should register a patient",
			args: args{
				dbConn:        mock.MustCreateConnectionMock(),
				dbMockOptions: []mock.DBResultOption{withInsertUserResult(sqlmock.NewResult(1, 1))},
				registrar:     &mockRegistrar{},
				body:          `{"email": "patient@clinic.com", "password": "123456", "first_name": "Paula", "last_name": "Stone", "role": "PATIENT"}`,
			},
			want: http.StatusCreated,
		},
		{
			name: "should register a doctor and its directory profile",
			args: args{
				dbConn:        mock.MustCreateConnectionMock(),
				dbMockOptions: []mock.DBResultOption{withInsertUserResult(sqlmock.NewResult(1, 1))},
				registrar:     &mockRegistrar{},
				body:          `{"email": "doctor@clinic.com", "password": "123456", "first_name": "Gregory", "last_name": "Hart", "role": "DOCTOR", "specialty": "Cardiology"}`,
			},
			want:            http.StatusCreated,
			wantDoctorCount: 1,
		},
		{
			name: "should not register a doctor without specialty",
			args: args{
				dbConn:    mock.MustCreateConnectionMock(),
				registrar: &mockRegistrar{},
				body:      `{"email": "doctor@clinic.com", "password": "123456", "first_name": "Gregory", "last_name": "Hart", "role": "DOCTOR"}`,
			},
			want: http.StatusBadRequest,
		},
		{
			name: "should not register an email already in use",
			args: args{
				dbConn:        mock.MustCreateConnectionMock(),
				dbMockOptions: []mock.DBResultOption{withInsertUserConflict()},
				registrar:     &mockRegistrar{},
				body:          `{"email": "patient@clinic.com", "password": "123456", "first_name": "Paula", "last_name": "Stone", "role": "PATIENT"}`,
			},
			want: http.StatusConflict,
		},
		{
			name: "should not register with a weak password",
			args: args{
				dbConn:    mock.MustCreateConnectionMock(),
				registrar: &mockRegistrar{},
				body:      `{"email": "patient@clinic.com", "password": "123", "first_name": "Paula", "last_name": "Stone", "role": "PATIENT"}`,
			},
			want: http.StatusBadRequest,
		},
		{
			name: "should not register with an invalid email",
			args: args{
				dbConn:    mock.MustCreateConnectionMock(),
				registrar: &mockRegistrar{},
				body:      `{"email": "patient", "password": "123456", "first_name": "Paula", "last_name": "Stone", "role": "PATIENT"}`,
			},
			want: http.StatusBadRequest,
		},
		{
			name: "should not register with an unknown role",
			args: args{
				dbConn:    mock.MustCreateConnectionMock(),
				registrar: &mockRegistrar{},
				body:      `{"email": "patient@clinic.com", "password": "123456", "first_name": "Paula", "last_name": "Stone", "role": "JANITOR"}`,
			},
			want: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := chi.NewRouter()
			Setup(router, logger, config, tt.args.dbConn, tt.args.registrar)

			mock.MockDBResults(tt.args.dbConn, tt.args.dbMockOptions...)

			req, _ := http.NewRequest("POST", "/api/v1/auth/register", bytes.NewBufferString(tt.args.body))
			recorder := httptest.NewRecorder()
			router.ServeHTTP(recorder, req)

			if recorder.Code != tt.want {
				t.Fatalf("response status is incorrect, got %d, want %d", recorder.Code, tt.want)
			}
			if len(tt.args.registrar.registered) != tt.wantDoctorCount {
				t.Errorf("doctor registration count is incorrect, got %d, want %d", len(tt.args.registrar.registered), tt.wantDoctorCount)
			}
			if tt.want != http.StatusCreated {
				return
			}
			user := new(User)
			if err := json.NewDecoder(recorder.Body).Decode(user); err != nil {
				t.Fatalf("could not decode the response: %v", err)
			}
			if user.Password != "" {
				t.Error("the password must never leave the service")
			}
		})
	}
}

// forgeRefreshToken signs a refresh token for the given subject with a key the
// server never issued.
func forgeRefreshToken(t *testing.T, subject uuid.UUID) string {
	t.Helper()
	forged := jwt.New()
	claims := map[string]interface{}{
		jwt.SubjectKey:    subject.String(),
		jwt.IssuerKey:     IssuerDefault,
		jwt.AudienceKey:   []string{AudienceDefault},
		jwt.ExpirationKey: time.Now().Add(RefreshTokenExpiration),
		"typ":             RefreshTokenType,
		"role":            string(PatientRole),
	}
	for key, value := range claims {
		if err := forged.Set(key, value); err != nil {
			t.Fatalf("could not build the forged token: %v", err)
		}
	}
	signed, err := jwt.Sign(forged, jwa.HS256, []byte("not-the-server-key"))
	if err != nil {
		t.Fatalf("could not sign the forged token: %v", err)
	}
	return string(signed)
}

func TestRefreshToken(t *testing.T) {
	config := configs.MustLoad("./../../test/testdata/config_valid.json")
	user := User{ID: 1, UUID: testUserUUID, Email: "patient@clinic.com", FirstName: "Paula", LastName: "Stone", Role: PatientRole, Active: true}
	validTokens := MustGenerateTokens(context.TODO(), config.PrivateKey(), user)
	refreshBody := func(refreshToken string) string {
		return fmt.Sprintf(`{"access_token": "expired", "refresh_token": %q, "grant_type": "refresh_token"}`, refreshToken)
	}
	type args struct {
		dbConn        mock.Connection
		dbMockOptions []mock.DBResultOption
		body          string
	}
	tests := []struct {
		name string
		args args
		want int
	}{
		{
			name: "should issue fresh tokens for a valid refresh token",
			args: args{
				dbConn:        mock.MustCreateConnectionMock(),
				dbMockOptions: []mock.DBResultOption{withFindUserByUUIDResult(userRows(true))},
				body:          refreshBody(validTokens.RefreshToken),
			},
			want: http.StatusOK,
		},
		{
			name: "should refuse a refresh token signed with a foreign key",
			args: args{
				dbConn: mock.MustCreateConnectionMock(),
				body:   refreshBody(forgeRefreshToken(t, testUserUUID)),
			},
			want: http.StatusUnauthorized,
		},
		{
			name: "should refuse a malformed refresh token",
			args: args{
				dbConn: mock.MustCreateConnectionMock(),
				body:   refreshBody("not-a-token"),
			},
			want: http.StatusUnauthorized,
		},
		{
			name: "should refuse a refresh token of a deactivated user",
			args: args{
				dbConn:        mock.MustCreateConnectionMock(),
				dbMockOptions: []mock.DBResultOption{withFindUserByUUIDResult(userRows(false))},
				body:          refreshBody(validTokens.RefreshToken),
			},
			want: http.StatusUnauthorized,
		},
		{
			name: "should refuse a missing grant type",
			args: args{
				dbConn: mock.MustCreateConnectionMock(),
				body:   fmt.Sprintf(`{"access_token": "expired", "refresh_token": %q}`, validTokens.RefreshToken),
			},
			want: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := chi.NewRouter()
			Setup(router, logger, config, tt.args.dbConn, &mockRegistrar{})

			mock.MockDBResults(tt.args.dbConn, tt.args.dbMockOptions...)

			req, _ := http.NewRequest("PUT", "/api/v1/auth/token", bytes.NewBufferString(tt.args.body))
			recorder := httptest.NewRecorder()
			router.ServeHTTP(recorder, req)

			if recorder.Code != tt.want {
				t.Fatalf("response status is incorrect, got %d, want %d", recorder.Code, tt.want)
			}
			if tt.want != http.StatusOK {
				return
			}
			tokens := new(Tokens)
			if err := json.NewDecoder(recorder.Body).Decode(tokens); err != nil {
				t.Fatalf("could not decode the response: %v", err)
			}
			if tokens.AccessToken == "" || tokens.RefreshToken == "" {
				t.Error("fresh tokens were not issued")
			}
		})
	}
}

func TestGetAuthenticatedUserAndLogout(t *testing.T) {
	config := configs.MustLoad("./../../test/testdata/config_valid.json")
	dbConn := mock.MustCreateConnectionMock()
	router := chi.NewRouter()
	Setup(router, logger, config, dbConn, &mockRegistrar{})

	user := User{ID: 1, UUID: testUserUUID, Email: "patient@clinic.com", FirstName: "Paula", LastName: "Stone", Role: PatientRole, Active: true}
	tokens := MustGenerateTokens(context.TODO(), config.PrivateKey(), user)

	// the first request resolves the user from the database and caches the session
	mock.MockDBResults(dbConn, withFindUserByUUIDResult(userRows(true)))
	req, _ := http.NewRequest("GET", "/api/v1/auth/me", nil)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", tokens.AccessToken))
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("response status is incorrect, got %d, want %d", recorder.Code, http.StatusOK)
	}

	// the second request is answered from the session cache, no expectation is registered
	req, _ = http.NewRequest("GET", "/api/v1/auth/me", nil)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", tokens.AccessToken))
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("cached response status is incorrect, got %d, want %d", recorder.Code, http.StatusOK)
	}

	// logout drops the session, so the next request hits the database again
	req, _ = http.NewRequest("POST", "/api/v1/auth/logout", nil)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", tokens.AccessToken))
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("logout response status is incorrect, got %d, want %d", recorder.Code, http.StatusNoContent)
	}

	mock.MockDBResults(dbConn, withFindUserByUUIDResult(userRows(true)))
	req, _ = http.NewRequest("GET", "/api/v1/auth/me", nil)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", tokens.AccessToken))
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("response status after logout is incorrect, got %d, want %d", recorder.Code, http.StatusOK)
	}
	if err := dbConn.SQLMock.ExpectationsWereMet(); err != nil {
		t.Errorf("the session cache did not behave as expected: %v", err)
	}
}
