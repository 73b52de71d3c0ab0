package domain

import "time"

// slotDuration is the window an appointment occupies on the calendar.
const slotDuration = time.Hour

// Slot is an offered appointment slot as negotiated with a provider.
type Slot struct {
	Date string `json:"date"` // 2006-01-02
	Time string `json:"time"` // 15:04
}

// IsZero reports whether the slot carries no usable date.
func (s Slot) IsZero() bool {
	return s.Date == "" || s.Time == ""
}

// Window returns the occupied [start, end) interval.
// ok is false when the slot cannot be parsed.
func (s Slot) Window() (start, end time.Time, ok bool) {
	if s.IsZero() {
		return time.Time{}, time.Time{}, false
	}
	start, err := time.Parse("2006-01-02 15:04", s.Date+" "+s.Time)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return start, start.Add(slotDuration), true
}

// Conflicts reports whether two slots overlap in time.
// Unparseable slots never conflict.
func (s Slot) Conflicts(other Slot) bool {
	aStart, aEnd, ok := s.Window()
	if !ok {
		return false
	}
	bStart, bEnd, ok := other.Window()
	if !ok {
		return false
	}
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// SortKey orders slots chronologically; lexicographic works for the
// fixed date and time layouts.
func (s Slot) SortKey() string {
	return s.Date + s.Time
}
