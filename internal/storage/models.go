package storage

import (
	"time"

	"portfolio-watch/internal/portfolio"
)

// PeriodDaily marks a row as one calendar-day observation.
const PeriodDaily = "d"

// DailyLog is the persisted valuation of one calendar day. Day is the unique
// key: writing the same day twice updates the row.
type DailyLog struct {
	ID         int64
	Date       time.Time
	Day        time.Time
	Period     string
	TotalValue int64
	Status     portfolio.ThresholdStatus
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewDailyLog derives the calendar day from date.
func NewDailyLog(date time.Time, total int64, status portfolio.ThresholdStatus, notes string) DailyLog {
	return DailyLog{
		Date:       date.UTC(),
		Day:        DayOf(date),
		Period:     PeriodDaily,
		TotalValue: total,
		Status:     status,
		Notes:      notes,
	}
}

// DayOf truncates t to its UTC calendar day.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
