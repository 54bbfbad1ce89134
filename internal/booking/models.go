package booking

import (
	"database/sql/driver"
	"fmt"
	"time"

	"clinic-booking/internal/apierrors"

	"github.com/google/uuid"
)

// Office hours: half-hour slots from 08:00 up to, not including, 18:00.
const (
	openingHour = 8
	closingHour = 18

	dayLayout = "2006-01-02"
)

// slotGrid is the fixed enumeration of bookable slot labels.
var slotGrid = buildSlotGrid()

func buildSlotGrid() []string {
	grid := make([]string, 0, (closingHour-openingHour)*2)
	for hour := openingHour; hour < closingHour; hour++ {
		grid = append(grid, fmt.Sprintf("%02d:00", hour))
		grid = append(grid, fmt.Sprintf("%02d:30", hour))
	}
	return grid
}

// SlotGrid returns the bookable slot labels in order.
func SlotGrid() []string {
	grid := make([]string, len(slotGrid))
	copy(grid, slotGrid)
	return grid
}

// IsValidSlot reports whether the given label belongs to the slot grid. Slots are a
// fixed enumeration so date and time comparisons are always exact.
func IsValidSlot(slot string) bool {
	for _, s := range slotGrid {
		if s == slot {
			return true
		}
	}
	return false
}

// Day is a calendar day without a time of day. It is the single date representation
// used at the store boundary: values are converted exactly once on read and once on
// write, always in UTC.
type Day struct {
	t time.Time
}

// NewDay creates a Day from the given calendar components.
func NewDay(year int, month time.Month, day int) Day {
	return Day{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf truncates the given instant to its calendar day.
func DayOf(t time.Time) Day {
	u := t.UTC()
	return NewDay(u.Year(), u.Month(), u.Day())
}

// ParseDay parses a calendar day in the format 2006-01-02.
func ParseDay(value string) (Day, error) {
	t, err := time.Parse(dayLayout, value)
	if err != nil {
		return Day{}, err
	}
	return Day{t: t}, nil
}

// Time returns the day as a UTC midnight instant.
func (d Day) Time() time.Time {
	return d.t
}

// Weekday returns the day of the week.
func (d Day) Weekday() time.Weekday {
	return d.t.Weekday()
}

// IsZero reports whether the day is unset.
func (d Day) IsZero() bool {
	return d.t.IsZero()
}

// Before reports whether the day is strictly before the other one.
func (d Day) Before(other Day) bool {
	return d.t.Before(other.t)
}

// Equal reports whether both values name the same calendar day.
func (d Day) Equal(other Day) bool {
	return d.t.Equal(other.t)
}

func (d Day) String() string {
	return d.t.Format(dayLayout)
}

// MarshalJSON serializes the day in the format 2006-01-02.
func (d Day) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON parses the day from the format 2006-01-02.
func (d *Day) UnmarshalJSON(data []byte) error {
	value := string(data)
	if value == "null" || value == `""` {
		*d = Day{}
		return nil
	}
	if len(value) < 2 || value[0] != '"' || value[len(value)-1] != '"' {
		return fmt.Errorf("invalid day %s", value)
	}
	parsed, err := ParseDay(value[1 : len(value)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer.
func (d Day) Value() (driver.Value, error) {
	return d.t, nil
}

// Scan implements sql.Scanner.
func (d *Day) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*d = DayOf(v)
		return nil
	case []byte:
		parsed, err := ParseDay(string(v))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case string:
		parsed, err := ParseDay(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	}
	return fmt.Errorf("unsupported day representation %T", src)
}

// Status is the lifecycle state of an appointment. The labels are part of the wire
// and storage contract.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no-show"
)

// Statuses returns every lifecycle state in presentation order.
func Statuses() []Status {
	return []Status{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow}
}

// IsValid reports whether the status is a known lifecycle state.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// Active reports whether the appointment blocks its slot.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Terminal reports whether no further transition is permitted.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusNoShow
}

// transitions holds the legal lifecycle moves. Anything absent is rejected, so the
// lifecycle is strictly monotonic and repeats are not treated as no-ops.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusNoShow},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
}

// CanTransitionTo reports whether moving from s to next is a legal lifecycle move.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Appointment is the central entity: one patient visiting one doctor on a given
// slot. Patient and doctor names are denormalized at creation time and never
// refreshed afterwards.
type Appointment struct {
	ID          int64     `json:"-" dbfield:"id"`
	UUID        uuid.UUID `json:"id" dbfield:"uuid"`
	PatientUUID uuid.UUID `json:"patientId" dbfield:"patient_uuid"`
	PatientName string    `json:"patientName" dbfield:"patient_name"`
	DoctorUUID  uuid.UUID `json:"doctorId" dbfield:"doctor_uuid"`
	DoctorName  string    `json:"doctorName" dbfield:"doctor_name"`
	Specialty   string    `json:"specialty" dbfield:"specialty"`
	Date        Day       `json:"date" dbfield:"date"`
	Time        string    `json:"time" dbfield:"time"`
	Status      Status    `json:"state" dbfield:"status"`
	Reason      string    `json:"reason" dbfield:"reason"`
	Notes       string    `json:"notes,omitempty" dbfield:"notes"`
	CreatedAt   time.Time `json:"createdAt" dbfield:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" dbfield:"updated_at"`
}

// BookingRequest carries the payload of a patient booking action.
type BookingRequest struct {
	DoctorUUID uuid.UUID `json:"doctorId" validate:"required"`
	Date       Day       `json:"date"`
	Time       string    `json:"time" validate:"required"`
	Reason     string    `json:"reason" validate:"required,min=10,max=500"`
}

// Validate checks if the given request is valid.
func (b BookingRequest) Validate() error {
	if b.Date.IsZero() {
		return apierrors.NewValidationError("date", "required")
	}
	if !IsValidSlot(b.Time) {
		return apierrors.NewValidationError("time", string(ErrInvalidSlot))
	}
	return nil
}

// CompletionRequest carries the doctor notes attached when completing an appointment.
type CompletionRequest struct {
	Notes string `json:"notes" validate:"max=500"`
}

// Availability is the result of a slot availability check.
type Availability struct {
	DoctorUUID uuid.UUID `json:"doctorId"`
	Date       Day       `json:"date"`
	Time       string    `json:"time"`
	Available  bool      `json:"available"`
	Reason     string    `json:"reason,omitempty"`
}

// Filter selects a subset of the appointment collection. The store resolves the
// single most selective indexed field and the remaining predicates are applied in
// memory, which is fine at clinic scale but does not hold for large volumes.
type Filter struct {
	PatientUUID uuid.UUID
	DoctorUUID  uuid.UUID
	Date        *Day
	Status      Status
	Specialty   string
	DateFrom    *Day
	DateTo      *Day
}

// Matches checks whether the given appointment satisfies every predicate of the
// filter.
func (f Filter) Matches(appointment *Appointment) bool {
	if f.PatientUUID != uuid.Nil && appointment.PatientUUID != f.PatientUUID {
		return false
	}
	if f.DoctorUUID != uuid.Nil && appointment.DoctorUUID != f.DoctorUUID {
		return false
	}
	if f.Date != nil && !appointment.Date.Equal(*f.Date) {
		return false
	}
	if f.Status != "" && appointment.Status != f.Status {
		return false
	}
	if f.Specialty != "" && appointment.Specialty != f.Specialty {
		return false
	}
	if f.DateFrom != nil && appointment.Date.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && f.DateTo.Before(appointment.Date) {
		return false
	}
	return true
}

// Update carries a partial appointment update. Nil fields are left untouched.
type Update struct {
	Status *Status
	Notes  *string
}

// ScheduleEntry is one slot of a doctor's daily schedule.
type ScheduleEntry struct {
	Time        string       `json:"time"`
	Available   bool         `json:"available"`
	Appointment *Appointment `json:"appointment,omitempty"`
}
