package booking

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSlotGrid(t *testing.T) {
	grid := SlotGrid()
	if len(grid) != 20 {
		t.Fatalf("grid size is incorrect, got %d, want %d", len(grid), 20)
	}
	if grid[0] != "08:00" {
		t.Errorf("first slot is incorrect, got %s, want %s", grid[0], "08:00")
	}
	if grid[len(grid)-1] != "17:30" {
		t.Errorf("last slot is incorrect, got %s, want %s", grid[len(grid)-1], "17:30")
	}
}

func TestIsValidSlot(t *testing.T) {
	tests := []struct {
		name string
		slot string
		want bool
	}{
		{name: "should accept the opening slot", slot: "08:00", want: true},
		{name: "should accept a half-hour slot", slot: "09:30", want: true},
		{name: "should accept the last slot of the day", slot: "17:30", want: true},
		{name: "should refuse the closing hour", slot: "18:00", want: false},
		{name: "should refuse a slot before opening", slot: "07:30", want: false},
		{name: "should refuse a slot off the half-hour grid", slot: "09:15", want: false},
		{name: "should refuse garbage", slot: "soon", want: false},
		{name: "should refuse an empty slot", slot: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidSlot(tt.slot); got != tt.want {
				t.Errorf("IsValidSlot(%q) = %v, want %v", tt.slot, got, tt.want)
			}
		})
	}
}

func TestDayNormalization(t *testing.T) {
	late := time.Date(2026, time.March, 10, 23, 45, 12, 99, time.UTC)
	day := DayOf(late)
	if day.String() != "2026-03-10" {
		t.Errorf("day is incorrect, got %s, want %s", day, "2026-03-10")
	}
	if !day.Equal(NewDay(2026, time.March, 10)) {
		t.Errorf("normalized day should equal the plain calendar day")
	}
	if day.Time().Hour() != 0 || day.Time().Minute() != 0 {
		t.Errorf("day should be anchored at midnight, got %s", day.Time())
	}
}

func TestDayJSONRoundTrip(t *testing.T) {
	day := NewDay(2026, time.September, 1)
	encoded, err := json.Marshal(day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(encoded) != `"2026-09-01"` {
		t.Errorf("encoded day is incorrect, got %s", encoded)
	}
	var decoded Day
	if err = json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decoded.Equal(day) {
		t.Errorf("decoded day is incorrect, got %s, want %s", decoded, day)
	}
}

func TestDayScan(t *testing.T) {
	tests := []struct {
		name    string
		src     interface{}
		want    string
		wantErr bool
	}{
		{name: "should scan a timestamp", src: time.Date(2026, time.May, 5, 14, 30, 0, 0, time.UTC), want: "2026-05-05"},
		{name: "should scan a string", src: "2026-05-05", want: "2026-05-05"},
		{name: "should scan bytes", src: []byte("2026-05-05"), want: "2026-05-05"},
		{name: "should not scan garbage", src: 42, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var day Day
			err := day.Scan(tt.src)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Scan() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && day.String() != tt.want {
				t.Errorf("scanned day is incorrect, got %s, want %s", day, tt.want)
			}
		})
	}
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{name: "pending can be confirmed", from: StatusPending, to: StatusConfirmed, want: true},
		{name: "pending can be cancelled", from: StatusPending, to: StatusCancelled, want: true},
		{name: "pending can be marked as a no-show", from: StatusPending, to: StatusNoShow, want: true},
		{name: "pending cannot be completed", from: StatusPending, to: StatusCompleted, want: false},
		{name: "confirmed can be completed", from: StatusConfirmed, to: StatusCompleted, want: true},
		{name: "confirmed can be cancelled", from: StatusConfirmed, to: StatusCancelled, want: true},
		{name: "confirmed can be marked as a no-show", from: StatusConfirmed, to: StatusNoShow, want: true},
		{name: "confirmed cannot be confirmed twice", from: StatusConfirmed, to: StatusConfirmed, want: false},
		{name: "cancelled is terminal", from: StatusCancelled, to: StatusPending, want: false},
		{name: "completed is terminal", from: StatusCompleted, to: StatusCancelled, want: false},
		{name: "a no-show is terminal", from: StatusNoShow, to: StatusConfirmed, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestFilterMatches(t *testing.T) {
	date := NewDay(2026, time.June, 15)
	from := NewDay(2026, time.June, 1)
	to := NewDay(2026, time.June, 30)
	appointment := &Appointment{
		Specialty: "Cardiology",
		Date:      date,
		Status:    StatusConfirmed,
	}
	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{name: "empty filter matches everything", filter: Filter{}, want: true},
		{name: "matching specialty", filter: Filter{Specialty: "Cardiology"}, want: true},
		{name: "mismatching specialty", filter: Filter{Specialty: "Neurology"}, want: false},
		{name: "matching state", filter: Filter{Status: StatusConfirmed}, want: true},
		{name: "mismatching state", filter: Filter{Status: StatusPending}, want: false},
		{name: "inside the date range", filter: Filter{DateFrom: &from, DateTo: &to}, want: true},
		{name: "before the date range", filter: Filter{DateFrom: &to}, want: false},
		{name: "after the date range", filter: Filter{DateTo: &from}, want: false},
		{name: "exact date", filter: Filter{Date: &date}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(appointment); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}
