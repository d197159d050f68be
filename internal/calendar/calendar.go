package calendar

import (
	"math"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/se"
)

// Features are the deterministic time attributes derived for one timestamp.
// Deriving them is idempotent: the same timestamp always yields the same
// features.
type Features struct {
	Hour      int // 0-23
	Minute    int
	Weekday   int // Monday=0 .. Sunday=6
	DayOfYear int
	WeekNum   int // ISO week number
	Month     int // 1-12
	Quarter   int // 1-4
	Year      int
	Date      time.Time // timestamp truncated to midnight

	IsBusinessDay    bool // weekday and not a holiday
	IsDayAfterClosed bool // business day directly following a closed day

	IsEarlyMorning bool // 06:30-08:00
	IsMorning      bool // 08:00-11:00
	IsLunch        bool // 11:00-13:00
	IsAfternoon    bool // 13:00-17:30

	YearSin float64 // cyclical year position
	YearCos float64
}

// Calendar derives features against a fixed regional holiday calendar.
type Calendar struct {
	cal *cal.BusinessCalendar
}

// New creates a calendar with the Swedish holiday set and a Monday-Friday
// workweek.
func New() *Calendar {
	c := cal.NewBusinessCalendar()
	c.AddHoliday(se.Holidays...)
	return &Calendar{cal: c}
}

// Normalize strips any timezone offset, keeping the wall-clock reading.
// Mixing offset-aware and naive timestamps is treated as a normalization
// step, never an error: all arithmetic downstream happens on the naive form.
func Normalize(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// Midnight truncates a normalized timestamp to the start of its day.
func Midnight(t time.Time) time.Time {
	t = Normalize(t)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Now returns the current time in the project timezone as a naive timestamp.
// Falls back to server local time when the zone cannot be loaded.
func Now(timezone string) time.Time {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return Normalize(time.Now())
	}
	return Normalize(time.Now().In(loc))
}

// IsHoliday reports whether the date falls on a holiday.
func (c *Calendar) IsHoliday(t time.Time) bool {
	actual, observed, _ := c.cal.IsHoliday(Normalize(t))
	return actual || observed
}

// IsBusinessDay reports whether the date is a weekday and not a holiday.
func (c *Calendar) IsBusinessDay(t time.Time) bool {
	t = Normalize(t)
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	return !c.IsHoliday(t)
}

// At derives the full feature set for one timestamp.
func (c *Calendar) At(t time.Time) Features {
	t = Normalize(t)
	_, week := t.ISOWeek()
	doy := t.YearDay()
	minuteOfDay := float64(t.Hour()) + float64(t.Minute())/60.0

	f := Features{
		Hour:      t.Hour(),
		Minute:    t.Minute(),
		Weekday:   mondayIndexed(t.Weekday()),
		DayOfYear: doy,
		WeekNum:   week,
		Month:     int(t.Month()),
		Quarter:   (int(t.Month())-1)/3 + 1,
		Year:      t.Year(),
		Date:      Midnight(t),

		IsBusinessDay: c.IsBusinessDay(t),

		IsEarlyMorning: minuteOfDay >= 6.5 && minuteOfDay < 8,
		IsMorning:      minuteOfDay >= 8 && minuteOfDay < 11,
		IsLunch:        minuteOfDay >= 11 && minuteOfDay < 13,
		IsAfternoon:    minuteOfDay >= 13 && minuteOfDay < 17.5,

		YearSin: math.Sin(2 * math.Pi * float64(doy) / 365.25),
		YearCos: math.Cos(2 * math.Pi * float64(doy) / 365.25),
	}

	if f.IsBusinessDay {
		prev := t.AddDate(0, 0, -1)
		f.IsDayAfterClosed = !c.IsBusinessDay(prev)
	}

	return f
}

func mondayIndexed(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// WeekdayName maps a Monday-indexed weekday to its short name, used for
// peak-pattern labels.
func WeekdayName(weekday int) string {
	names := [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
	if weekday < 0 || weekday > 6 {
		return "?"
	}
	return names[weekday]
}
