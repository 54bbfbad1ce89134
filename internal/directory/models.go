package directory

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"clinic-booking/internal/apierrors"

	"github.com/google/uuid"
)

// Weekday labels used by the availability template.
const (
	Monday    = "monday"
	Tuesday   = "tuesday"
	Wednesday = "wednesday"
	Thursday  = "thursday"
	Friday    = "friday"
	Saturday  = "saturday"
	Sunday    = "sunday"
)

// TemplateSlot is one weekday entry of a doctor's fixed weekly availability template.
type TemplateSlot struct {
	Weekday string `json:"weekday"`
	Start   string `json:"start"`
	End     string `json:"end"`
	Active  bool   `json:"active"`
}

// WeeklyTemplate is the doctor's fixed weekly availability, stored as a JSON column.
type WeeklyTemplate []TemplateSlot

// Value implements driver.Valuer, serializing the template to JSON.
func (t WeeklyTemplate) Value() (driver.Value, error) {
	return json.Marshal(t)
}

// Scan implements sql.Scanner, deserializing the template from JSON.
func (t *WeeklyTemplate) Scan(src interface{}) error {
	if src == nil {
		*t = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	}
	return fmt.Errorf("unsupported weekly template representation %T", src)
}

// DefaultWeeklyTemplate returns the template assigned to newly registered doctors:
// working days, full office hours.
func DefaultWeeklyTemplate() WeeklyTemplate {
	template := make(WeeklyTemplate, 0, 7)
	for _, weekday := range []string{Monday, Tuesday, Wednesday, Thursday, Friday} {
		template = append(template, TemplateSlot{Weekday: weekday, Start: "08:00", End: "18:00", Active: true})
	}
	for _, weekday := range []string{Saturday, Sunday} {
		template = append(template, TemplateSlot{Weekday: weekday, Start: "08:00", End: "18:00", Active: false})
	}
	return template
}

// ActiveOn reports whether the template has an active entry for the given weekday.
func (t WeeklyTemplate) ActiveOn(weekday time.Weekday) bool {
	labels := map[time.Weekday]string{
		time.Monday:    Monday,
		time.Tuesday:   Tuesday,
		time.Wednesday: Wednesday,
		time.Thursday:  Thursday,
		time.Friday:    Friday,
		time.Saturday:  Saturday,
		time.Sunday:    Sunday,
	}
	for _, slot := range t {
		if slot.Weekday == labels[weekday] {
			return slot.Active
		}
	}
	return false
}

// Doctor holds the doctor-specific attributes, keyed by the user identity.
type Doctor struct {
	ID               int64          `json:"-" dbfield:"id"`
	UserUUID         uuid.UUID      `json:"uuid" dbfield:"user_uuid"`
	Specialty        string         `json:"specialty" dbfield:"specialty"`
	Office           string         `json:"office" dbfield:"office"`
	Biography        string         `json:"biography" dbfield:"biography"`
	YearsExperience  int32          `json:"years_experience" dbfield:"years_experience"`
	WeeklyTemplate   WeeklyTemplate `json:"weekly_template" dbfield:"weekly_template"`
	Rating           float64        `json:"rating" dbfield:"rating"`
	AppointmentCount int64          `json:"appointment_count" dbfield:"appointment_count"`
}

// UserUpdate carries a partial user profile update. Nil fields are left untouched.
type UserUpdate struct {
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	MobilePhone *string `json:"mobile_phone"`
}

// DoctorUpdate carries a partial doctor profile update. Nil fields are left untouched.
type DoctorUpdate struct {
	Specialty       *string         `json:"specialty"`
	Office          *string         `json:"office"`
	Biography       *string         `json:"biography"`
	YearsExperience *int32          `json:"years_experience"`
	WeeklyTemplate  *WeeklyTemplate `json:"weekly_template"`
}

// Validate checks the updated template, when one is given.
func (u DoctorUpdate) Validate() error {
	if u.WeeklyTemplate == nil {
		return nil
	}
	for _, slot := range *u.WeeklyTemplate {
		switch slot.Weekday {
		case Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday:
		default:
			return apierrors.NewValidationError("weekly_template", "unknown weekday")
		}
		if slot.Start >= slot.End {
			return apierrors.NewValidationError("weekly_template", "invalid period")
		}
	}
	return nil
}
