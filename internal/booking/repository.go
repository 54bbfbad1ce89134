package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clinic-booking/internal/database"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	appointmentColumns = "id, uuid, patient_uuid, patient_name, doctor_uuid, doctor_name, specialty, date, time, status, reason, notes, created_at, updated_at"

	insertAppointmentQuery     = "INSERT INTO tb_appointment (uuid, patient_uuid, patient_name, doctor_uuid, doctor_name, specialty, date, time, status, reason, notes, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)"
	findAppointmentByUUIDQuery = "SELECT " + appointmentColumns + " FROM tb_appointment WHERE uuid = $1"
	listByPatientQuery         = "SELECT " + appointmentColumns + " FROM tb_appointment WHERE patient_uuid = $1 ORDER BY date DESC"
	listByDoctorQuery          = "SELECT " + appointmentColumns + " FROM tb_appointment WHERE doctor_uuid = $1 ORDER BY date DESC"
	listByDateQuery            = "SELECT " + appointmentColumns + " FROM tb_appointment WHERE date = $1 ORDER BY time ASC"
	listByStatusQuery          = "SELECT " + appointmentColumns + " FROM tb_appointment WHERE status = $1 ORDER BY date DESC"
	listAllQuery               = "SELECT " + appointmentColumns + " FROM tb_appointment ORDER BY date DESC"
	countActiveAtSlotQuery     = "SELECT count(id) FROM tb_appointment WHERE doctor_uuid = $1 AND date = $2 AND time = $3 AND status IN ('pending', 'confirmed')"
	updateAppointmentQuery     = "UPDATE tb_appointment SET status = COALESCE($2, status), notes = COALESCE($3, notes), updated_at = $4 WHERE uuid = $1"
	deleteAppointmentQuery     = "DELETE FROM tb_appointment WHERE uuid = $1"
)

const uniqueViolationCode = "23505"

// ErrSlotTaken reports that the active-slot uniqueness constraint rejected an
// insert: another active appointment already occupies the (doctor, date, time)
// triple. This constraint, not the read-side availability check, is what makes
// booking safe under concurrent requests.
var ErrSlotTaken = errors.New("slot already taken by an active appointment")

// Repository provides access to the appointment collection.
type Repository interface {

	// Insert inserts a new appointment.
	Insert(ctx context.Context, appointment Appointment) error

	// FindByUUID finds an appointment by its UUID, returning nil when absent.
	FindByUUID(ctx context.Context, appointmentUUID uuid.UUID) (*Appointment, error)

	// ListByPatient lists the patient's appointments, most recent date first.
	ListByPatient(ctx context.Context, patientUUID uuid.UUID) ([]*Appointment, error)

	// ListByDoctor lists the doctor's appointments, most recent date first.
	ListByDoctor(ctx context.Context, doctorUUID uuid.UUID) ([]*Appointment, error)

	// ListByDate lists the appointments of a calendar day, earliest slot first.
	ListByDate(ctx context.Context, date Day) ([]*Appointment, error)

	// ListByStatus lists the appointments in the given state, most recent date first.
	ListByStatus(ctx context.Context, status Status) ([]*Appointment, error)

	// ListAll scans the whole collection. Used as the fallback when no indexed
	// filter applies, and by the aggregation views.
	ListAll(ctx context.Context) ([]*Appointment, error)

	// CountActiveAtSlot counts the active appointments occupying the given slot.
	CountActiveAtSlot(ctx context.Context, doctorUUID uuid.UUID, date Day, slot string) (int64, error)

	// UpdateFields partially updates an appointment and stamps updated_at.
	UpdateFields(ctx context.Context, appointmentUUID uuid.UUID, update Update, updatedAt time.Time) error

	// Delete removes an appointment. Administrative cleanup only.
	Delete(ctx context.Context, appointmentUUID uuid.UUID) error
}

type defaultRepository struct {
	dbConn database.Connection
}

// newRepository creates a new Repository.
func newRepository(dbConn database.Connection) Repository {
	return &defaultRepository{dbConn: dbConn}
}

func (d defaultRepository) Insert(ctx context.Context, appointment Appointment) error {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	params := make([]interface{}, 13)
	params[0] = appointment.UUID
	params[1] = appointment.PatientUUID
	params[2] = appointment.PatientName
	params[3] = appointment.DoctorUUID
	params[4] = appointment.DoctorName
	params[5] = appointment.Specialty
	params[6] = appointment.Date
	params[7] = appointment.Time
	params[8] = appointment.Status
	params[9] = appointment.Reason
	params[10] = appointment.Notes
	params[11] = appointment.CreatedAt
	params[12] = appointment.UpdatedAt
	result, err := d.dbConn.DB().ExecContext(ctx, insertAppointmentQuery, params...)
	if err != nil {
		pqErr := new(pq.Error)
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
			return ErrSlotTaken
		}
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("appointment not inserted")
	}
	return nil
}

func (d defaultRepository) FindByUUID(ctx context.Context, appointmentUUID uuid.UUID) (*Appointment, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	params := make([]interface{}, 1)
	params[0] = appointmentUUID
	rows, err := d.dbConn.DB().QueryContext(ctx, findAppointmentByUUIDQuery, params...)
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	appointment := new(Appointment)
	for rows.Next() {
		if err = database.TransformRow(rows, appointment); err != nil {
			return nil, err
		}
		if appointment.ID > 0 {
			return appointment, nil
		}
	}
	return nil, nil
}

// list runs the given single-parameter list query.
func (d defaultRepository) list(ctx context.Context, query string, params ...interface{}) ([]*Appointment, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	rows, err := d.dbConn.DB().QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer database.CloseRows(rows)
	appointments := make([]*Appointment, 0)
	for rows.Next() {
		appointment := new(Appointment)
		if err = database.TransformRow(rows, appointment); err != nil {
			return nil, err
		}
		appointments = append(appointments, appointment)
	}
	return appointments, nil
}

func (d defaultRepository) ListByPatient(ctx context.Context, patientUUID uuid.UUID) ([]*Appointment, error) {
	return d.list(ctx, listByPatientQuery, patientUUID)
}

func (d defaultRepository) ListByDoctor(ctx context.Context, doctorUUID uuid.UUID) ([]*Appointment, error) {
	return d.list(ctx, listByDoctorQuery, doctorUUID)
}

func (d defaultRepository) ListByDate(ctx context.Context, date Day) ([]*Appointment, error) {
	return d.list(ctx, listByDateQuery, date)
}

func (d defaultRepository) ListByStatus(ctx context.Context, status Status) ([]*Appointment, error) {
	return d.list(ctx, listByStatusQuery, status)
}

func (d defaultRepository) ListAll(ctx context.Context) ([]*Appointment, error) {
	return d.list(ctx, listAllQuery)
}

func (d defaultRepository) CountActiveAtSlot(ctx context.Context, doctorUUID uuid.UUID, date Day, slot string) (int64, error) {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	params := make([]interface{}, 3)
	params[0] = doctorUUID
	params[1] = date
	params[2] = slot
	row := d.dbConn.DB().QueryRowContext(ctx, countActiveAtSlotQuery, params...)
	if row.Err() != nil {
		return 0, row.Err()
	}
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (d defaultRepository) UpdateFields(ctx context.Context, appointmentUUID uuid.UUID, update Update, updatedAt time.Time) error {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	params := make([]interface{}, 4)
	params[0] = appointmentUUID
	params[1] = update.Status
	params[2] = update.Notes
	params[3] = updatedAt
	result, err := d.dbConn.DB().ExecContext(ctx, updateAppointmentQuery, params...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("appointment not updated")
	}
	return nil
}

func (d defaultRepository) Delete(ctx context.Context, appointmentUUID uuid.UUID) error {
	ctx, cancel := d.dbConn.CreateContext(ctx)
	defer cancel()
	params := make([]interface{}, 1)
	params[0] = appointmentUUID
	result, err := d.dbConn.DB().ExecContext(ctx, deleteAppointmentQuery, params...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("appointment not deleted")
	}
	return nil
}
