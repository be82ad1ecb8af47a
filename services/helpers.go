package services

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// forUpdate applies a row-level lock on dialects that support it. The
// sqlite test harness serializes writes itself, so the clause is skipped
// there rather than failing the statement.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// dateUTC truncates t to its UTC calendar date (midnight UTC).
func dateUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// isoMonday returns the Monday (UTC midnight) of t's ISO week.
func isoMonday(t time.Time) time.Time {
	d := dateUTC(t)
	weekday := int(d.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return d.AddDate(0, 0, -(weekday - 1))
}

// daysBetween returns the whole calendar days from a to b (both UTC dates).
func daysBetween(a, b time.Time) int {
	return int(dateUTC(b).Sub(dateUTC(a)).Hours() / 24)
}
