package directory

import (
	"context"
	"fmt"

	"clinic-booking/internal/auth"
	"clinic-booking/internal/database"

	"github.com/google/uuid"
)

const (
	findUserByUUIDQuery = "SELECT id, uuid, email, first_name, last_name, mobile_phone, role, active FROM tb_user WHERE uuid = $1"
	listUsersQuery      = "SELECT id, uuid, email, first_name, last_name, mobile_phone, role, active FROM tb_user ORDER BY last_name, first_name"
	updateUserQuery     = "UPDATE tb_user SET first_name = COALESCE($2, first_name), last_name = COALESCE($3, last_name), mobile_phone = COALESCE($4, mobile_phone) WHERE uuid = $1"
	deactivateUserQuery = "UPDATE tb_user SET active = false WHERE uuid = $1"

	findDoctorByUserUUIDQuery   = "SELECT id, user_uuid, specialty, office, biography, years_experience, weekly_template, rating, appointment_count FROM tb_doctor WHERE user_uuid = $1"
	listDoctorsQuery            = "SELECT id, user_uuid, specialty, office, biography, years_experience, weekly_template, rating, appointment_count FROM tb_doctor ORDER BY specialty"
	listDoctorsBySpecialtyQuery = "SELECT id, user_uuid, specialty, office, biography, years_experience, weekly_template, rating, appointment_count FROM tb_doctor WHERE specialty = $1 ORDER BY rating DESC"
	insertDoctorQuery           = "INSERT INTO tb_doctor (user_uuid, specialty, office, biography, years_experience, weekly_template, rating, appointment_count) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)"
	updateDoctorQuery           = "UPDATE tb_doctor SET specialty = COALESCE($2, specialty), office = COALESCE($3, office), biography = COALESCE($4, biography), years_experience = COALESCE($5, years_experience), weekly_template = COALESCE($6, weekly_template) WHERE user_uuid = $1"
	incrementAppointmentsQuery  = "UPDATE tb_doctor SET appointment_count = appointment_count + 1 WHERE user_uuid = $1"
)

// Repository provides access to the user and doctor directories.
type Repository interface {

	// FindUserByUUID finds a user profile by its UUID.
	FindUserByUUID(ctx context.Context, userUUID uuid.UUID) (*auth.User, error)

	// ListUsers lists every user profile.
	ListUsers(ctx context.Context) ([]*auth.User, error)

	// UpdateUser partially updates a user profile.
	UpdateUser(ctx context.Context, userUUID uuid.UUID, update UserUpdate) error

	// DeactivateUser flags the user as inactive. Users are never physically deleted.
	DeactivateUser(ctx context.Context, userUUID uuid.UUID) error

	// FindDoctorByUserUUID finds a doctor profile by its user UUID.
	FindDoctorByUserUUID(ctx context.Context, userUUID uuid.UUID) (*Doctor, error)

	// ListDoctors lists every doctor profile.
	ListDoctors(ctx context.Context) ([]*Doctor, error)

	// ListDoctorsBySpecialty lists the doctor profiles with the given specialty.
	ListDoctorsBySpecialty(ctx context.Context, specialty string) ([]*Doctor, error)

	// InsertDoctor inserts a new doctor profile.
	InsertDoctor(ctx context.Context, doctor Doctor) error

	// UpdateDoctor partially updates a doctor profile.
	UpdateDoctor(ctx context.Context, userUUID uuid.UUID, update DoctorUpdate) error

	// IncrementAppointments increments the doctor's attended appointment counter.
	IncrementAppointments(ctx context.Context, userUUID uuid.UUID) error
}

type defaultRepository struct {
	dbConn database.Connection
}

// newRepository creates a new Repository.
func newRepository(dbConn database.Connection) Repository {
	return &defaultRepository{dbConn: dbConn}
}

func (d defaultRepository) FindUserByUUID(ctx context.Context, userUUID uuid.UUID) (*auth.User, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	params := make([]interface{}, 1)
	params[0] = userUUID
	rows, err := d.dbConn.DB().QueryContext(ctx, findUserByUUIDQuery, params...)
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	user := new(auth.User)
	for rows.Next() {
		if err = database.TransformRow(rows, user); err != nil {
			return nil, err
		}
		if user.ID > 0 {
			return user, nil
		}
	}
	return nil, nil
}

func (d defaultRepository) ListUsers(ctx context.Context) ([]*auth.User, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	rows, err := d.dbConn.DB().QueryContext(ctx, listUsersQuery)
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	users := make([]*auth.User, 0)
	for rows.Next() {
		user := new(auth.User)
		if err = database.TransformRow(rows, user); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func (d defaultRepository) UpdateUser(ctx context.Context, userUUID uuid.UUID, update UserUpdate) error {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	params := make([]interface{}, 4)
	params[0] = userUUID
	params[1] = update.FirstName
	params[2] = update.LastName
	params[3] = update.MobilePhone
	result, err := d.dbConn.DB().ExecContext(ctx, updateUserQuery, params...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("user not updated")
	}
	return nil
}

func (d defaultRepository) DeactivateUser(ctx context.Context, userUUID uuid.UUID) error {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	params := make([]interface{}, 1)
	params[0] = userUUID
	result, err := d.dbConn.DB().ExecContext(ctx, deactivateUserQuery, params...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("user not deactivated")
	}
	return nil
}

func (d defaultRepository) FindDoctorByUserUUID(ctx context.Context, userUUID uuid.UUID) (*Doctor, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	params := make([]interface{}, 1)
	params[0] = userUUID
	rows, err := d.dbConn.DB().QueryContext(ctx, findDoctorByUserUUIDQuery, params...)
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	doctor := new(Doctor)
	for rows.Next() {
		if err = database.TransformRow(rows, doctor); err != nil {
			return nil, err
		}
		if doctor.ID > 0 {
			return doctor, nil
		}
	}
	return nil, nil
}

func (d defaultRepository) ListDoctors(ctx context.Context) ([]*Doctor, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	rows, err := d.dbConn.DB().QueryContext(ctx, listDoctorsQuery)
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	doctors := make([]*Doctor, 0)
	for rows.Next() {
		doctor := new(Doctor)
		if err = database.TransformRow(rows, doctor); err != nil {
			return nil, err
		}
		doctors = append(doctors, doctor)
	}
	return doctors, nil
}

func (d defaultRepository) ListDoctorsBySpecialty(ctx context.Context, specialty string) ([]*Doctor, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	params := make([]interface{}, 1)
	params[0] = specialty
	rows, err := d.dbConn.DB().QueryContext(ctx, listDoctorsBySpecialtyQuery, params...)
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	doctors := make([]*Doctor, 0)
	for rows.Next() {
		doctor := new(Doctor)
		if err = database.TransformRow(rows, doctor); err != nil {
			return nil, err
		}
		doctors = append(doctors, doctor)
	}
	return doctors, nil
}

func (d defaultRepository) InsertDoctor(ctx context.Context, doctor Doctor) error {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	params := make([]interface{}, 8)
	params[0] = doctor.UserUUID
	params[1] = doctor.Specialty
	params[2] = doctor.Office
	params[3] = doctor.Biography
	params[4] = doctor.YearsExperience
	params[5] = doctor.WeeklyTemplate
	params[6] = doctor.Rating
	params[7] = doctor.AppointmentCount
	result, err := d.dbConn.DB().ExecContext(ctx, insertDoctorQuery, params...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("doctor not inserted")
	}
	return nil
}

func (d defaultRepository) UpdateDoctor(ctx context.Context, userUUID uuid.UUID, update DoctorUpdate) error {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	params := make([]interface{}, 6)
	params[0] = userUUID
	params[1] = update.Specialty
	params[2] = update.Office
	params[3] = update.Biography
	params[4] = update.YearsExperience
	params[5] = update.WeeklyTemplate
	result, err := d.dbConn.DB().ExecContext(ctx, updateDoctorQuery, params...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("doctor not updated")
	}
	return nil
}

func (d defaultRepository) IncrementAppointments(ctx context.Context, userUUID uuid.UUID) error {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	params := make([]interface{}, 1)
	params[0] = userUUID
	_, err := d.dbConn.DB().ExecContext(ctx, incrementAppointmentsQuery, params...)
	return err
}
