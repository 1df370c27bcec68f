// Package availability turns busy intervals into free slots. It does no I/O.
package availability

import (
	"sort"
	"time"

	"assistbackend/models"
)

const (
	MinDurationMinutes     = 15
	MaxDurationMinutes     = 480
	DefaultDurationMinutes = 30
)

// ClampDurationMinutes bounds a requested slot length to [MinDurationMinutes, MaxDurationMinutes]
func ClampDurationMinutes(minutes int) int {
	if minutes < MinDurationMinutes {
		return MinDurationMinutes
	}
	if minutes > MaxDurationMinutes {
		return MaxDurationMinutes
	}
	return minutes
}

// CalculateFreeSlots returns the gaps of at least minDurationMinutes between busy intervals inside
// [timeMin, timeMax). Busy intervals may be unsorted and overlapping; empty or inverted ones are ignored.
// The result is sorted, disjoint, and never overlaps a busy interval.
func CalculateFreeSlots(
	busy []models.TimeInterval,
	timeMin, timeMax time.Time,
	minDurationMinutes int,
) []models.TimeInterval {
	slots := []models.TimeInterval{}
	if !timeMax.After(timeMin) {
		return slots
	}
	minDuration := time.Duration(ClampDurationMinutes(minDurationMinutes)) * time.Minute

	sorted := sortedValid(busy)
	cursor := timeMin
	for _, interval := range sorted {
		if !cursor.Before(timeMax) {
			break
		}
		if !interval.End.After(cursor) {
			continue
		}

		slotEnd := minTime(interval.Start, timeMax)
		if slotEnd.Sub(cursor) >= minDuration {
			slots = append(slots, models.TimeInterval{Start: cursor, End: slotEnd})
		}
		cursor = maxTime(cursor, interval.End)
	}

	if timeMax.Sub(cursor) >= minDuration {
		slots = append(slots, models.TimeInterval{Start: cursor, End: timeMax})
	}
	return slots
}

// MergeIntervals sorts intervals and coalesces the ones that overlap or touch
func MergeIntervals(intervals []models.TimeInterval) []models.TimeInterval {
	merged := []models.TimeInterval{}
	for _, interval := range sortedValid(intervals) {
		last := len(merged) - 1
		if last >= 0 && !interval.Start.After(merged[last].End) {
			merged[last].End = maxTime(merged[last].End, interval.End)
			continue
		}
		merged = append(merged, interval)
	}
	return merged
}

func sortedValid(intervals []models.TimeInterval) []models.TimeInterval {
	sorted := make([]models.TimeInterval, 0, len(intervals))
	for _, interval := range intervals {
		if interval.End.After(interval.Start) {
			sorted = append(sorted, interval)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})
	return sorted
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
