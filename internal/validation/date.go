package validation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kjstillabower/pincode-weather-service/internal/models"
)

// ErrInvalidDateFormat is returned when the requested date is not a YYYY-MM-DD calendar date.
var ErrInvalidDateFormat = errors.New("invalid date")

// ErrFutureDateRejected is returned when the requested date is after today.
var ErrFutureDateRejected = errors.New("enter current date or previous date")

// DateClass places a requested date relative to the server's current date.
type DateClass int

const (
	DatePast DateClass = iota
	DatePresent
	DateFuture
)

func (c DateClass) String() string {
	switch c {
	case DatePast:
		return "past"
	case DatePresent:
		return "present"
	case DateFuture:
		return "future"
	default:
		return "unknown"
	}
}

// ClassifyDate parses input as a calendar date and compares it with the calendar date of now.
// Both sides are taken in UTC so a request near midnight is classified the same regardless of
// the host timezone. Future dates are rejected; the returned date is midnight UTC.
func ClassifyDate(input string, now time.Time) (time.Time, DateClass, error) {
	s := strings.TrimSpace(input)
	d, err := time.ParseInLocation(models.DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("%w: %s", ErrInvalidDateFormat, input)
	}
	today := models.DateOf(now)
	switch {
	case d.Before(today):
		return d, DatePast, nil
	case d.After(today):
		return d, DateFuture, fmt.Errorf("%w: %s is after %s", ErrFutureDateRejected, s, today.Format(models.DateLayout))
	default:
		return d, DatePresent, nil
	}
}
