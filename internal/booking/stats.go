package booking

import (
	"math"
	"sort"
	"time"
)

const (
	topListSize      = 5
	upcomingListSize = 3
)

// StatusCount is one entry of the status breakdown.
type StatusCount struct {
	Status     Status `json:"state"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

// RankingEntry is one entry of a top-N ranking.
type RankingEntry struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Statistics aggregates the whole appointment collection into the
// administrator dashboard views.
type Statistics struct {
	Total          int            `json:"total"`
	ByStatus       []StatusCount  `json:"byStatus"`
	TopSpecialties []RankingEntry `json:"topSpecialties"`
	TopDoctors     []RankingEntry `json:"topDoctors"`
	UniquePatients int            `json:"uniquePatients"`
	Upcoming       []*Appointment `json:"upcoming"`
}

// ZeroStatistics returns an empty but fully shaped Statistics value, used when
// the collection cannot be fetched.
func ZeroStatistics() Statistics {
	return ComputeStatistics(nil, time.Time{})
}

// ComputeStatistics derives every aggregation view from the given collection.
func ComputeStatistics(appointments []*Appointment, now time.Time) Statistics {
	return Statistics{
		Total:          len(appointments),
		ByStatus:       StatusBreakdown(appointments),
		TopSpecialties: TopSpecialties(appointments),
		TopDoctors:     TopDoctors(appointments),
		UniquePatients: UniquePatientCount(appointments),
		Upcoming:       Upcoming(appointments, now),
	}
}

// StatusBreakdown counts the appointments per state, with the share of each
// state rounded to the nearest percent. An empty collection yields zeroes, not
// a division by zero.
func StatusBreakdown(appointments []*Appointment) []StatusCount {
	counts := make(map[Status]int)
	for _, appointment := range appointments {
		counts[appointment.Status]++
	}
	total := len(appointments)
	breakdown := make([]StatusCount, 0, len(Statuses()))
	for _, status := range Statuses() {
		entry := StatusCount{Status: status, Count: counts[status]}
		if total > 0 {
			entry.Percentage = int(math.Round(float64(counts[status]) / float64(total) * 100))
		}
		breakdown = append(breakdown, entry)
	}
	return breakdown
}

// TopSpecialties ranks the five most requested specialties.
func TopSpecialties(appointments []*Appointment) []RankingEntry {
	counts := make(map[string]int)
	for _, appointment := range appointments {
		counts[appointment.Specialty]++
	}
	return rank(counts)
}

// TopDoctors ranks the five most booked doctors by their denormalized name. Two
// doctors sharing the exact same name collapse into one entry, which mirrors
// how the denormalized column behaves.
func TopDoctors(appointments []*Appointment) []RankingEntry {
	counts := make(map[string]int)
	for _, appointment := range appointments {
		counts[appointment.DoctorName]++
	}
	return rank(counts)
}

func rank(counts map[string]int) []RankingEntry {
	entries := make([]RankingEntry, 0, len(counts))
	for label, count := range counts {
		entries = append(entries, RankingEntry{Label: label, Count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Label < entries[j].Label
	})
	if len(entries) > topListSize {
		entries = entries[:topListSize]
	}
	return entries
}

// UniquePatientCount counts the distinct patients across the collection.
func UniquePatientCount(appointments []*Appointment) int {
	seen := make(map[string]struct{})
	for _, appointment := range appointments {
		seen[appointment.PatientUUID.String()] = struct{}{}
	}
	return len(seen)
}

// Upcoming returns the next three active appointments from today on, earliest
// first.
func Upcoming(appointments []*Appointment, now time.Time) []*Appointment {
	today := DayOf(now)
	upcoming := make([]*Appointment, 0)
	for _, appointment := range appointments {
		if appointment.Status.Active() && !appointment.Date.Before(today) {
			upcoming = append(upcoming, appointment)
		}
	}
	sort.Slice(upcoming, func(i, j int) bool {
		if !upcoming[i].Date.Equal(upcoming[j].Date) {
			return upcoming[i].Date.Before(upcoming[j].Date)
		}
		return upcoming[i].Time < upcoming[j].Time
	})
	if len(upcoming) > upcomingListSize {
		upcoming = upcoming[:upcomingListSize]
	}
	return upcoming
}
