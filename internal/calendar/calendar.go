// Package calendar bridges the Persian calendar the business orders in and
// the Gregorian dates persisted on rows. Conversion is strict: an invalid
// or out-of-range local date is rejected outright, never guessed at, and a
// record whose date failed conversion must not be persisted.
package calendar

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	ptime "github.com/yaa110/go-persian-calendar"

	"serial-service/internal/apperrors"
	"serial-service/internal/textnorm"
)

var strictDate = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)

// ToGregorian converts a Persian date in strict YYYY-MM-DD form to the
// Gregorian YYYY-MM-DD string stored on rows.
func ToGregorian(local string) (string, error) {
	t := textnorm.Normalize(local)
	m := strictDate.FindStringSubmatch(t)
	if m == nil {
		return "", &apperrors.CalendarError{Input: local, Reason: "date must be YYYY-MM-DD"}
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return "", &apperrors.CalendarError{Input: local, Reason: "month or day out of range"}
	}

	pt := ptime.Date(year, ptime.Month(month), day, 0, 0, 0, 0, ptime.Iran())
	if pt.Year() != year || int(pt.Month()) != month || pt.Day() != day {
		// the library normalizes overflow, so a changed component means the
		// input named a day that does not exist in that month
		return "", &apperrors.CalendarError{Input: local, Reason: "no such day in the Persian calendar"}
	}

	return pt.Time().Format("2006-01-02"), nil
}

// ToPersian converts a stored Gregorian YYYY-MM-DD string back to the
// Persian form used for display and search.
func ToPersian(stored string) (string, error) {
	g, err := time.ParseInLocation("2006-01-02", textnorm.Normalize(stored), ptime.Iran())
	if err != nil {
		return "", &apperrors.CalendarError{Input: stored, Reason: "stored date is not YYYY-MM-DD"}
	}
	pt := ptime.New(g)
	return fmt.Sprintf("%04d-%02d-%02d", pt.Year(), int(pt.Month()), pt.Day()), nil
}
