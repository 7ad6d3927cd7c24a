package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type DriverStatus string

const (
	DriverActive   DriverStatus = "active"
	DriverInactive DriverStatus = "inactive"
	DriverOnLeave  DriverStatus = "on_leave"
)

type Driver struct {
	ID        int64           `yaml:"id" json:"id"`
	Name      string          `yaml:"name" json:"name"`
	Phone     string          `yaml:"phone" json:"phone"`
	Status    DriverStatus    `yaml:"status" json:"status"`
	Schedule  *WeeklySchedule `yaml:"schedule" json:"schedule,omitempty"`
	CreatedAt time.Time       `yaml:"-" json:"created_at"`
	UpdatedAt time.Time       `yaml:"-" json:"updated_at"`
}

func (d *Driver) Assignable() bool {
	return d.Status == DriverActive
}

// DaySpan is a driver's working span for one weekday, times in "15:04".
type DaySpan struct {
	Start     string `yaml:"start" json:"start"`
	End       string `yaml:"end" json:"end"`
	Available bool   `yaml:"available" json:"available"`
}

// WeeklySchedule maps lowercase weekday names to working spans. A missing day
// means the driver does not work that day. A nil schedule means no
// schedule-based restriction at all.
type WeeklySchedule map[string]DaySpan

var weekdayNames = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// WeekdayKey returns the schedule key for a weekday.
func WeekdayKey(d time.Weekday) string {
	return strings.ToLower(d.String())
}

// ParseWeeklySchedule validates and decodes a JSON schedule blob as stored in
// the drivers table. Validation happens here, at the boundary, so the
// availability logic can trust the shape.
func ParseWeeklySchedule(raw []byte) (*WeeklySchedule, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var ws WeeklySchedule
	if err := json.Unmarshal(raw, &ws); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	if err := ws.Validate(); err != nil {
		return nil, err
	}
	return &ws, nil
}

func (ws WeeklySchedule) Validate() error {
	for day, span := range ws {
		if _, ok := weekdayNames[day]; !ok {
			return fmt.Errorf("unknown weekday %q in schedule", day)
		}
		if !span.Available {
			continue
		}
		start, err := minutesOfDay(span.Start)
		if err != nil {
			return fmt.Errorf("schedule %s start: %w", day, err)
		}
		end, err := minutesOfDay(span.End)
		if err != nil {
			return fmt.Errorf("schedule %s end: %w", day, err)
		}
		if end <= start {
			return fmt.Errorf("schedule %s: end %q not after start %q", day, span.End, span.Start)
		}
	}
	return nil
}

// Covers reports whether the window lies entirely inside the driver's working
// span for its weekday. Windows spanning midnight and weekdays without a
// configured span are never covered.
func (ws WeeklySchedule) Covers(w Window) bool {
	sameDay := w.Start.Year() == w.End.Year() && w.Start.YearDay() == w.End.YearDay()
	if !sameDay {
		return false
	}
	span, ok := ws[WeekdayKey(w.Start.Weekday())]
	if !ok || !span.Available {
		return false
	}
	spanStart, err := minutesOfDay(span.Start)
	if err != nil {
		return false
	}
	spanEnd, err := minutesOfDay(span.End)
	if err != nil {
		return false
	}
	winStart := w.Start.Hour()*60 + w.Start.Minute()
	winEnd := w.End.Hour()*60 + w.End.Minute()
	return winStart >= spanStart && winEnd <= spanEnd
}

func minutesOfDay(clock string) (int, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q", clock)
	}
	return t.Hour()*60 + t.Minute(), nil
}
