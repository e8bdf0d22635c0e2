package ingest

import (
	"cmp"
	"slices"
	"time"
)

// Sort orders entries by original timestamp. Equal timestamps keep source
// line order so the result does not depend on parse completion order.
func Sort(entries []*Entry) {
	slices.SortFunc(entries, func(a, b *Entry) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.Line, b.Line)
	})
}

// ComputeDelays sets each entry's Delay so that dispatching the sorted
// sequence starting at now reproduces the original inter-arrival gaps,
// divided by speed. Negative delays are clamped to zero.
func ComputeDelays(entries []*Entry, now time.Time, speed float64) {
	if len(entries) == 0 {
		return
	}
	if speed <= 0 {
		speed = 1
	}

	shift := now.Sub(entries[0].Timestamp)
	prev := now

	for _, e := range entries {
		scheduled := e.Timestamp.Add(shift)
		delay := scheduled.Sub(prev)
		prev = scheduled

		if speed != 1 {
			delay = time.Duration(float64(delay) / speed)
		}
		e.Delay = max(delay, 0)
	}
}

// Span returns the time between the first and last entry of a sorted sequence.
func Span(entries []*Entry) time.Duration {
	if len(entries) < 2 {
		return 0
	}
	return entries[len(entries)-1].Timestamp.Sub(entries[0].Timestamp)
}
