package booking

import (
	"context"
	"errors"
	"time"

	"clinic-booking/internal/auth"
	"clinic-booking/internal/configs"
	"clinic-booking/internal/database"
	"clinic-booking/internal/directory"
	"clinic-booking/internal/metrics"
	"clinic-booking/internal/validation"

	"github.com/google/uuid"
)

// Scheduler determines the methods available to book appointments and check
// doctor availability.
type Scheduler interface {

	// CheckAvailability checks whether the given doctor slot is free of active
	// appointments and attended according to the doctor's weekly template.
	CheckAvailability(ctx context.Context, doctorUUID uuid.UUID, date Day, slot string) (*Availability, error)

	// Create books a new pending appointment for the given patient.
	Create(ctx context.Context, user auth.User, request BookingRequest) (*Appointment, error)
}

// LifecycleManager determines the methods available to move an appointment
// through its lifecycle.
type LifecycleManager interface {

	// Confirm moves a pending appointment to confirmed. Restricted to the
	// appointed doctor. Confirming twice is an invalid transition.
	Confirm(ctx context.Context, user auth.User, appointmentUUID uuid.UUID) (*Appointment, error)

	// Cancel cancels a pending or confirmed appointment. Restricted to the
	// involved patient or doctor.
	Cancel(ctx context.Context, user auth.User, appointmentUUID uuid.UUID) (*Appointment, error)

	// Complete moves a confirmed appointment to completed, attaching the
	// doctor's notes. Restricted to the appointed doctor.
	Complete(ctx context.Context, user auth.User, appointmentUUID uuid.UUID, request CompletionRequest) (*Appointment, error)

	// MarkNoShow marks a pending or confirmed appointment as a no-show.
	// Restricted to administrators.
	MarkNoShow(ctx context.Context, user auth.User, appointmentUUID uuid.UUID) (*Appointment, error)

	// Delete removes an appointment for good. Restricted to administrators.
	Delete(ctx context.Context, user auth.User, appointmentUUID uuid.UUID) error
}

// Finder determines the methods available to query appointments.
type Finder interface {

	// GetAppointment returns the given appointment. Restricted to the involved
	// patient and doctor, and to administrators.
	GetAppointment(ctx context.Context, user auth.User, appointmentUUID uuid.UUID) (*Appointment, error)

	// ListMine lists the appointments the given user takes part in.
	ListMine(ctx context.Context, user auth.User) ([]*Appointment, error)

	// GetAgenda lists the doctor's own appointments of a calendar day.
	GetAgenda(ctx context.Context, user auth.User, date Day) ([]*Appointment, error)

	// GetDoctorSchedule renders the doctor's slot grid of a calendar day, with
	// the occupied slots marked.
	GetDoctorSchedule(ctx context.Context, doctorUUID uuid.UUID, date Day) ([]*ScheduleEntry, error)

	// Search lists the appointments matching the given filter. Restricted to
	// administrators.
	Search(ctx context.Context, user auth.User, filter Filter) ([]*Appointment, error)

	// GetStatistics computes the aggregation views over the whole collection.
	// Restricted to administrators.
	GetStatistics(ctx context.Context, user auth.User) (*Statistics, error)
}

// Watcher determines the methods available to observe appointment changes.
type Watcher interface {

	// Watch subscribes to the appointments matching the given filter. The
	// current result set is re-emitted on every change until the context is
	// done or the returned cancel function is called. Patients and doctors are
	// pinned to their own appointments regardless of the filter they send.
	Watch(ctx context.Context, user auth.User, filter Filter) (<-chan []*Appointment, func(), error)

	// NotifyChange re-runs every active subscription. Called after local
	// mutations and on database change notifications from other processes.
	NotifyChange()
}

// Service determines the methods used to manage appointments.
type Service interface {
	Scheduler
	LifecycleManager
	Finder
	Watcher
}

type defaultService struct {
	config     configs.Config
	repository Repository
	directory  directory.Service
	broker     *Broker
}

// NewService creates a new booking service.
func NewService(config configs.Config, dbConn database.Connection, directoryService directory.Service) Service {
	service := &defaultService{
		config:     config,
		repository: newRepository(dbConn),
		directory:  directoryService,
	}
	service.broker = NewBroker(service.resolveFilter)
	return service
}

func (d *defaultService) CheckAvailability(ctx context.Context, doctorUUID uuid.UUID, date Day, slot string) (*Availability, error) {
	if date.IsZero() {
		return nil, ErrInvalidDateReference
	}
	if !IsValidSlot(slot) {
		return nil, ErrInvalidSlot
	}
	doctor, err := d.directory.GetDoctor(ctx, doctorUUID)
	if err != nil {
		return nil, err
	}
	if doctor == nil {
		return nil, ErrDoctorNotFound
	}
	availability := &Availability{DoctorUUID: doctorUUID, Date: date, Time: slot}
	if !doctor.WeeklyTemplate.ActiveOn(date.Weekday()) {
		availability.Reason = string(ErrSlotOutsideSchedule)
		return availability, nil
	}
	count, err := d.repository.CountActiveAtSlot(ctx, doctorUUID, date, slot)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		availability.Reason = string(ErrSlotUnavailable)
		return availability, nil
	}
	availability.Available = true
	return availability, nil
}

func (d *defaultService) Create(ctx context.Context, user auth.User, request BookingRequest) (*Appointment, error) {
	if user.Role != auth.PatientRole {
		return nil, ErrOnlyPatientCanBook
	}
	if err := validation.Struct(request); err != nil {
		return nil, err
	}
	if err := request.Validate(); err != nil {
		return nil, err
	}
	doctor, err := d.directory.GetDoctor(ctx, request.DoctorUUID)
	if err != nil {
		return nil, err
	}
	if doctor == nil {
		return nil, ErrDoctorNotFound
	}
	doctorUser, err := d.directory.GetUser(ctx, request.DoctorUUID)
	if err != nil {
		return nil, err
	}
	if doctorUser == nil {
		return nil, ErrDoctorNotFound
	}
	if !doctor.WeeklyTemplate.ActiveOn(request.Date.Weekday()) {
		return nil, ErrSlotOutsideSchedule
	}
	count, err := d.repository.CountActiveAtSlot(ctx, request.DoctorUUID, request.Date, request.Time)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		metrics.IncSlotConflict()
		return nil, ErrSlotUnavailable
	}
	now := time.Now().UTC()
	appointment := Appointment{
		UUID:        uuid.New(),
		PatientUUID: user.UUID,
		PatientName: user.FullName(),
		DoctorUUID:  request.DoctorUUID,
		DoctorName:  doctorUser.FullName(),
		Specialty:   doctor.Specialty,
		Date:        request.Date,
		Time:        request.Time,
		Status:      StatusPending,
		Reason:      request.Reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err = d.repository.Insert(ctx, appointment); err != nil {
		// The read above is only a pre-flight courtesy. A concurrent booking
		// that slips past it lands here, refused by the unique index.
		if errors.Is(err, ErrSlotTaken) {
			metrics.IncSlotConflict()
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}
	d.broker.Notify()
	return &appointment, nil
}

func (d *defaultService) Confirm(ctx context.Context, user auth.User, appointmentUUID uuid.UUID) (*Appointment, error) {
	return d.transition(ctx, appointmentUUID, StatusConfirmed, nil, func(appointment *Appointment) error {
		if user.Role != auth.DoctorRole || appointment.DoctorUUID != user.UUID {
			return ErrOnlyDoctorCanConfirm
		}
		return nil
	})
}

func (d *defaultService) Cancel(ctx context.Context, user auth.User, appointmentUUID uuid.UUID) (*Appointment, error) {
	return d.transition(ctx, appointmentUUID, StatusCancelled, nil, func(appointment *Appointment) error {
		if appointment.PatientUUID == user.UUID || appointment.DoctorUUID == user.UUID {
			return nil
		}
		return ErrOnlyInvolvedCanCancel
	})
}

func (d *defaultService) Complete(ctx context.Context, user auth.User, appointmentUUID uuid.UUID, request CompletionRequest) (*Appointment, error) {
	if err := validation.Struct(request); err != nil {
		return nil, err
	}
	appointment, err := d.transition(ctx, appointmentUUID, StatusCompleted, &request.Notes, func(appointment *Appointment) error {
		if user.Role != auth.DoctorRole || appointment.DoctorUUID != user.UUID {
			return ErrOnlyDoctorCanComplete
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// the attended counter is advisory, a failed increment must not undo the completion
	_ = d.directory.RecordAttendedAppointment(ctx, appointment.DoctorUUID)
	return appointment, nil
}

func (d *defaultService) MarkNoShow(ctx context.Context, user auth.User, appointmentUUID uuid.UUID) (*Appointment, error) {
	return d.transition(ctx, appointmentUUID, StatusNoShow, nil, func(appointment *Appointment) error {
		if user.Role != auth.AdminRole {
			return ErrOnlyAdminCanMarkNoShow
		}
		return nil
	})
}

// transition applies the common lifecycle machinery: load, authorize, check the
// transition table, persist and notify.
func (d *defaultService) transition(ctx context.Context, appointmentUUID uuid.UUID, next Status, notes *string, authorize func(appointment *Appointment) error) (*Appointment, error) {
	appointment, err := d.repository.FindByUUID(ctx, appointmentUUID)
	if err != nil {
		return nil, err
	}
	if appointment == nil {
		return nil, ErrAppointmentNotFound
	}
	if err = authorize(appointment); err != nil {
		return nil, err
	}
	if !appointment.Status.CanTransitionTo(next) {
		return nil, ErrInvalidTransition
	}
	now := time.Now().UTC()
	if err = d.repository.UpdateFields(ctx, appointmentUUID, Update{Status: &next, Notes: notes}, now); err != nil {
		return nil, err
	}
	appointment.Status = next
	if notes != nil {
		appointment.Notes = *notes
	}
	appointment.UpdatedAt = now
	d.broker.Notify()
	return appointment, nil
}

func (d *defaultService) Delete(ctx context.Context, user auth.User, appointmentUUID uuid.UUID) error {
	if user.Role != auth.AdminRole {
		return ErrOnlyAdminCanDelete
	}
	appointment, err := d.repository.FindByUUID(ctx, appointmentUUID)
	if err != nil {
		return err
	}
	if appointment == nil {
		return ErrAppointmentNotFound
	}
	if err = d.repository.Delete(ctx, appointmentUUID); err != nil {
		return err
	}
	d.broker.Notify()
	return nil
}

func (d *defaultService) GetAppointment(ctx context.Context, user auth.User, appointmentUUID uuid.UUID) (*Appointment, error) {
	appointment, err := d.repository.FindByUUID(ctx, appointmentUUID)
	if err != nil {
		return nil, err
	}
	if appointment == nil {
		return nil, ErrAppointmentNotFound
	}
	if user.Role != auth.AdminRole && appointment.PatientUUID != user.UUID && appointment.DoctorUUID != user.UUID {
		return nil, ErrOnlyInvolvedCanSee
	}
	return appointment, nil
}

func (d *defaultService) ListMine(ctx context.Context, user auth.User) ([]*Appointment, error) {
	if user.Role == auth.DoctorRole {
		return d.repository.ListByDoctor(ctx, user.UUID)
	}
	return d.repository.ListByPatient(ctx, user.UUID)
}

func (d *defaultService) GetAgenda(ctx context.Context, user auth.User, date Day) ([]*Appointment, error) {
	if user.Role != auth.DoctorRole {
		return nil, ErrOnlyDoctorHasAgenda
	}
	if date.IsZero() {
		return nil, ErrInvalidDateReference
	}
	appointments, err := d.repository.ListByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	agenda := make([]*Appointment, 0)
	for _, appointment := range appointments {
		if appointment.DoctorUUID == user.UUID {
			agenda = append(agenda, appointment)
		}
	}
	return agenda, nil
}

func (d *defaultService) GetDoctorSchedule(ctx context.Context, doctorUUID uuid.UUID, date Day) ([]*ScheduleEntry, error) {
	if date.IsZero() {
		return nil, ErrInvalidDateReference
	}
	doctor, err := d.directory.GetDoctor(ctx, doctorUUID)
	if err != nil {
		return nil, err
	}
	if doctor == nil {
		return nil, ErrDoctorNotFound
	}
	appointments, err := d.repository.ListByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	occupied := make(map[string]*Appointment)
	for _, appointment := range appointments {
		if appointment.DoctorUUID == doctorUUID && appointment.Status.Active() {
			occupied[appointment.Time] = appointment
		}
	}
	attending := doctor.WeeklyTemplate.ActiveOn(date.Weekday())
	schedule := make([]*ScheduleEntry, 0, len(SlotGrid()))
	for _, slot := range SlotGrid() {
		entry := &ScheduleEntry{Time: slot}
		if appointment, busy := occupied[slot]; busy {
			entry.Appointment = appointment
		} else if attending {
			entry.Available = true
		}
		schedule = append(schedule, entry)
	}
	return schedule, nil
}

func (d *defaultService) Search(ctx context.Context, user auth.User, filter Filter) ([]*Appointment, error) {
	if user.Role != auth.AdminRole {
		return nil, ErrOnlyAdminCanSearch
	}
	return d.resolveFilter(ctx, filter)
}

// resolveFilter answers a composite filter with a single indexed query, applying
// the remaining predicates in memory.
func (d *defaultService) resolveFilter(ctx context.Context, filter Filter) ([]*Appointment, error) {
	var appointments []*Appointment
	var err error
	switch {
	case filter.Date != nil:
		appointments, err = d.repository.ListByDate(ctx, *filter.Date)
	case filter.PatientUUID != uuid.Nil:
		appointments, err = d.repository.ListByPatient(ctx, filter.PatientUUID)
	case filter.DoctorUUID != uuid.Nil:
		appointments, err = d.repository.ListByDoctor(ctx, filter.DoctorUUID)
	case filter.Status != "":
		appointments, err = d.repository.ListByStatus(ctx, filter.Status)
	default:
		appointments, err = d.repository.ListAll(ctx)
	}
	if err != nil {
		return nil, err
	}
	matches := make([]*Appointment, 0, len(appointments))
	for _, appointment := range appointments {
		if filter.Matches(appointment) {
			matches = append(matches, appointment)
		}
	}
	return matches, nil
}

func (d *defaultService) GetStatistics(ctx context.Context, user auth.User) (*Statistics, error) {
	if user.Role != auth.AdminRole {
		return nil, ErrOnlyAdminCanObtainStats
	}
	appointments, err := d.repository.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	statistics := ComputeStatistics(appointments, time.Now().UTC())
	return &statistics, nil
}

func (d *defaultService) Watch(ctx context.Context, user auth.User, filter Filter) (<-chan []*Appointment, func(), error) {
	switch user.Role {
	case auth.PatientRole:
		filter = Filter{PatientUUID: user.UUID, Status: filter.Status}
	case auth.DoctorRole:
		filter = Filter{DoctorUUID: user.UUID, Status: filter.Status, Date: filter.Date}
	}
	return d.broker.Subscribe(ctx, filter)
}

func (d *defaultService) NotifyChange() {
	d.broker.Notify()
}
