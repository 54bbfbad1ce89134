package booking

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func buildAppointment(doctor string, specialty string, status Status, date Day, slot string) *Appointment {
	return &Appointment{
		UUID:        uuid.New(),
		PatientUUID: uuid.New(),
		DoctorUUID:  uuid.New(),
		DoctorName:  doctor,
		Specialty:   specialty,
		Date:        date,
		Time:        slot,
		Status:      status,
	}
}

// assertBreakdownSums checks the totals of a breakdown: the counts must add up
// to the collection size and the percentages to 100, give or take the rounding
// error of each bucket.
func assertBreakdownSums(t *testing.T, breakdown []StatusCount, total int) {
	t.Helper()
	countSum, percentageSum := 0, 0
	for _, entry := range breakdown {
		countSum += entry.Count
		percentageSum += entry.Percentage
	}
	if countSum != total {
		t.Errorf("count sum is incorrect, got %d, want %d", countSum, total)
	}
	// each bucket may carry half a point of rounding error
	diff := percentageSum - 100
	if diff < 0 {
		diff = -diff
	}
	if tolerance := (len(breakdown) + 1) / 2; diff > tolerance {
		t.Errorf("percentage sum is off by %d, got %d", diff, percentageSum)
	}
}

func TestStatusBreakdown(t *testing.T) {
	day := NewDay(2026, time.July, 1)
	appointments := []*Appointment{
		buildAppointment("Dr. Gray", "Cardiology", StatusPending, day, "08:00"),
		buildAppointment("Dr. Gray", "Cardiology", StatusConfirmed, day, "08:30"),
		buildAppointment("Dr. Gray", "Cardiology", StatusConfirmed, day, "09:00"),
		buildAppointment("Dr. Gray", "Cardiology", StatusCompleted, day, "09:30"),
	}
	breakdown := StatusBreakdown(appointments)
	if len(breakdown) != len(Statuses()) {
		t.Fatalf("breakdown size is incorrect, got %d, want %d", len(breakdown), len(Statuses()))
	}
	counts := make(map[Status]StatusCount)
	for _, entry := range breakdown {
		counts[entry.Status] = entry
	}
	if counts[StatusConfirmed].Count != 2 || counts[StatusConfirmed].Percentage != 50 {
		t.Errorf("confirmed entry is incorrect, got %+v", counts[StatusConfirmed])
	}
	if counts[StatusPending].Count != 1 || counts[StatusPending].Percentage != 25 {
		t.Errorf("pending entry is incorrect, got %+v", counts[StatusPending])
	}
	if counts[StatusCancelled].Count != 0 || counts[StatusCancelled].Percentage != 0 {
		t.Errorf("cancelled entry is incorrect, got %+v", counts[StatusCancelled])
	}
	assertBreakdownSums(t, breakdown, len(appointments))
}

func TestStatusBreakdownUnevenDistribution(t *testing.T) {
	day := NewDay(2026, time.July, 1)
	appointments := make([]*Appointment, 0)
	for i := 0; i < 3; i++ {
		appointments = append(appointments, buildAppointment("Dr. Gray", "Cardiology", StatusPending, day, "08:00"))
	}
	for i := 0; i < 3; i++ {
		appointments = append(appointments, buildAppointment("Dr. Gray", "Cardiology", StatusConfirmed, day, "08:00"))
	}
	appointments = append(appointments, buildAppointment("Dr. Gray", "Cardiology", StatusCompleted, day, "08:00"))

	// 3/7 and 1/7 round to 43 and 14, neither divides evenly
	breakdown := StatusBreakdown(appointments)
	counts := make(map[Status]StatusCount)
	for _, entry := range breakdown {
		counts[entry.Status] = entry
	}
	if counts[StatusPending].Percentage != 43 {
		t.Errorf("pending percentage is incorrect, got %v, want %v", counts[StatusPending].Percentage, 43)
	}
	if counts[StatusCompleted].Percentage != 14 {
		t.Errorf("completed percentage is incorrect, got %v, want %v", counts[StatusCompleted].Percentage, 14)
	}
	assertBreakdownSums(t, breakdown, len(appointments))
}

func TestStatusBreakdownEmpty(t *testing.T) {
	breakdown := StatusBreakdown(nil)
	if len(breakdown) != len(Statuses()) {
		t.Fatalf("breakdown size is incorrect, got %d, want %d", len(breakdown), len(Statuses()))
	}
	for _, entry := range breakdown {
		if entry.Count != 0 || entry.Percentage != 0 {
			t.Errorf("empty collection should yield a zeroed entry, got %+v", entry)
		}
	}
}

func TestTopSpecialties(t *testing.T) {
	day := NewDay(2026, time.July, 1)
	appointments := make([]*Appointment, 0)
	for i := 0; i < 3; i++ {
		appointments = append(appointments, buildAppointment("Dr. Gray", "Cardiology", StatusPending, day, "08:00"))
	}
	for i := 0; i < 2; i++ {
		appointments = append(appointments, buildAppointment("Dr. Shepherd", "Neurology", StatusPending, day, "08:00"))
	}
	for _, specialty := range []string{"Dermatology", "Oncology", "Pediatrics", "Radiology"} {
		appointments = append(appointments, buildAppointment("Dr. Webber", specialty, StatusPending, day, "08:00"))
	}
	top := TopSpecialties(appointments)
	if len(top) != 5 {
		t.Fatalf("ranking size is incorrect, got %d, want %d", len(top), 5)
	}
	if top[0].Label != "Cardiology" || top[0].Count != 3 {
		t.Errorf("first entry is incorrect, got %+v", top[0])
	}
	if top[1].Label != "Neurology" || top[1].Count != 2 {
		t.Errorf("second entry is incorrect, got %+v", top[1])
	}
}

func TestTopDoctors(t *testing.T) {
	day := NewDay(2026, time.July, 1)
	appointments := []*Appointment{
		buildAppointment("Dr. Gray", "Cardiology", StatusPending, day, "08:00"),
		buildAppointment("Dr. Gray", "Cardiology", StatusCompleted, day, "08:30"),
		buildAppointment("Dr. Shepherd", "Neurology", StatusPending, day, "08:00"),
	}
	top := TopDoctors(appointments)
	if len(top) != 2 {
		t.Fatalf("ranking size is incorrect, got %d, want %d", len(top), 2)
	}
	if top[0].Label != "Dr. Gray" || top[0].Count != 2 {
		t.Errorf("first entry is incorrect, got %+v", top[0])
	}
}

func TestUniquePatientCount(t *testing.T) {
	day := NewDay(2026, time.July, 1)
	first := buildAppointment("Dr. Gray", "Cardiology", StatusPending, day, "08:00")
	second := buildAppointment("Dr. Gray", "Cardiology", StatusPending, day, "08:30")
	second.PatientUUID = first.PatientUUID
	third := buildAppointment("Dr. Gray", "Cardiology", StatusPending, day, "09:00")
	if got := UniquePatientCount([]*Appointment{first, second, third}); got != 2 {
		t.Errorf("unique patient count is incorrect, got %d, want %d", got, 2)
	}
	if got := UniquePatientCount(nil); got != 0 {
		t.Errorf("unique patient count of an empty collection is incorrect, got %d, want %d", got, 0)
	}
}

func TestUpcoming(t *testing.T) {
	now := time.Date(2026, time.July, 10, 9, 0, 0, 0, time.UTC)
	today := DayOf(now)
	yesterday := NewDay(2026, time.July, 9)
	tomorrow := NewDay(2026, time.July, 11)
	nextWeek := NewDay(2026, time.July, 17)
	appointments := []*Appointment{
		buildAppointment("Dr. Gray", "Cardiology", StatusPending, nextWeek, "08:00"),
		buildAppointment("Dr. Gray", "Cardiology", StatusConfirmed, today, "10:30"),
		buildAppointment("Dr. Gray", "Cardiology", StatusConfirmed, today, "08:30"),
		buildAppointment("Dr. Gray", "Cardiology", StatusCancelled, tomorrow, "08:00"),
		buildAppointment("Dr. Gray", "Cardiology", StatusConfirmed, yesterday, "08:00"),
		buildAppointment("Dr. Gray", "Cardiology", StatusPending, tomorrow, "09:00"),
	}
	upcoming := Upcoming(appointments, now)
	if len(upcoming) != 3 {
		t.Fatalf("upcoming size is incorrect, got %d, want %d", len(upcoming), 3)
	}
	if !upcoming[0].Date.Equal(today) || upcoming[0].Time != "08:30" {
		t.Errorf("first upcoming entry is incorrect, got %s %s", upcoming[0].Date, upcoming[0].Time)
	}
	if !upcoming[1].Date.Equal(today) || upcoming[1].Time != "10:30" {
		t.Errorf("second upcoming entry is incorrect, got %s %s", upcoming[1].Date, upcoming[1].Time)
	}
	if !upcoming[2].Date.Equal(tomorrow) || upcoming[2].Time != "09:00" {
		t.Errorf("third upcoming entry is incorrect, got %s %s", upcoming[2].Date, upcoming[2].Time)
	}
}

func TestComputeStatisticsEmpty(t *testing.T) {
	statistics := ComputeStatistics(nil, time.Now().UTC())
	if statistics.Total != 0 {
		t.Errorf("total is incorrect, got %d, want %d", statistics.Total, 0)
	}
	if statistics.UniquePatients != 0 {
		t.Errorf("unique patients is incorrect, got %d, want %d", statistics.UniquePatients, 0)
	}
	if len(statistics.Upcoming) != 0 {
		t.Errorf("upcoming should be empty, got %d entries", len(statistics.Upcoming))
	}
	if len(statistics.TopSpecialties) != 0 {
		t.Errorf("top specialties should be empty, got %d entries", len(statistics.TopSpecialties))
	}
}
