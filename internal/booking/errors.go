package booking

// Error is a booking domain error.
type Error string

const (
	ErrSlotUnavailable         Error = "the doctor already has an appointment at this time"
	ErrSlotOutsideSchedule     Error = "the doctor does not attend on this day"
	ErrInvalidSlot             Error = "not a valid half-hour slot between 08:00 and 18:00"
	ErrAppointmentNotFound     Error = "appointment not found"
	ErrDoctorNotFound          Error = "doctor not found"
	ErrInvalidIdentifier       Error = "invalid identifier"
	ErrInvalidDateReference    Error = "invalid date reference"
	ErrInvalidTransition       Error = "the appointment state does not allow this transition"
	ErrOnlyPatientCanBook      Error = "only a patient can book an appointment"
	ErrOnlyDoctorCanConfirm    Error = "only the appointed doctor can confirm the appointment"
	ErrOnlyDoctorCanComplete   Error = "only the appointed doctor can complete the appointment"
	ErrOnlyAdminCanMarkNoShow  Error = "only an administrator can mark a no-show"
	ErrOnlyAdminCanDelete      Error = "only an administrator can delete an appointment"
	ErrOnlyInvolvedCanCancel   Error = "only the involved patient or doctor can cancel the appointment"
	ErrOnlyInvolvedCanSee      Error = "only the involved patient or doctor can see the appointment"
	ErrOnlyDoctorHasAgenda     Error = "only a doctor can check its agenda"
	ErrOnlyAdminCanSearch      Error = "only an administrator can search all appointments"
	ErrOnlyAdminCanObtainStats Error = "only an administrator can obtain the statistics"
)

func (e Error) Error() string {
	return string(e)
}
