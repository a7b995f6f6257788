// Package capacity aggregates logged hours and booked capacity per
// employee over week-aligned windows and ranks employees for project
// skill requirements.
package capacity

import (
	"errors"
	"math"
	"time"

	"github.com/meridian-works/meridian/internal/models"
)

// ErrInvalidRange is returned when a window ends before it starts.
var ErrInvalidRange = errors.New("capacity: end date is before start date")

// Week is a Monday to Sunday segment clipped to a window. Both ends are
// inclusive.
type Week struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Days is the number of calendar days in the segment.
func (w Week) Days() int {
	return int(w.End.Sub(w.Start).Hours()/24) + 1
}

// Fraction is the share of a full week the segment covers.
func (w Week) Fraction() float64 {
	return float64(w.Days()) / 7
}

// WeekRanges splits [start, end] into Monday to Sunday segments.
func WeekRanges(start, end time.Time) []Week {
	start, end = models.Date(start), models.Date(end)

	var out []Week
	for cur := start; !cur.After(end); {
		monday := cur.AddDate(0, 0, -mondayOffset(cur))
		sunday := monday.AddDate(0, 0, 6)

		w := Week{Start: cur, End: sunday}
		if w.End.After(end) {
			w.End = end
		}
		out = append(out, w)

		cur = sunday.AddDate(0, 0, 1)
	}
	return out
}

// CurrentWeek returns the full Monday to Sunday week containing t.
func CurrentWeek(t time.Time) Week {
	day := models.Date(t)
	monday := day.AddDate(0, 0, -mondayOffset(day))
	return Week{Start: monday, End: monday.AddDate(0, 0, 6)}
}

func mondayOffset(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func overlapDays(aStart, aEnd, bStart, bEnd time.Time) int {
	s, e := aStart, aEnd
	if bStart.After(s) {
		s = bStart
	}
	if bEnd.Before(e) {
		e = bEnd
	}
	if e.Before(s) {
		return 0
	}
	return Week{Start: models.Date(s), End: models.Date(e)}.Days()
}

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func checkRange(start, end time.Time) error {
	if models.Date(end).Before(models.Date(start)) {
		return ErrInvalidRange
	}
	return nil
}
