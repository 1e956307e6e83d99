// Package calendar converts real-world instants into Gaiartian calendar dates.
//
// A Gaiartian year lasts four Gregorian months counted from a fixed epoch, while the
// month name is taken from the Gregorian month modulo the four-name cycle. The two
// rules are independent and may disagree when the epoch month is not a cycle boundary;
// existing fandom pages depend on both, so neither is corrected here.
package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MonthsPerYear is the number of Gregorian months in one Gaiartian year.
const MonthsPerYear = 4

// InputLayout is the textual timestamp format accepted by Parse.
const InputLayout = "2006-01-02 15:04:05"

var ErrInvalidDateFormat = errors.New("invalid date format")

type Config struct {
	Epoch  time.Time
	Months []string
}

func DefaultConfig() Config {
	return Config{
		Epoch:  time.Date(2022, time.September, 1, 0, 0, 0, 0, time.UTC),
		Months: []string{"Gaiarkhè", "Tempopidum", "Quinésil", "Éposendre"},
	}
}

type Date struct {
	Year  int
	Day   int
	Month string
}

func (d Date) String() string {
	return fmt.Sprintf("An %d, le %d de %s", d.Year, d.Day, d.Month)
}

type Calendar struct {
	epochYear  int
	epochMonth time.Month
	months     []string
}

func New(cfg Config) (*Calendar, error) {
	if cfg.Epoch.IsZero() {
		return nil, fmt.Errorf("calendar epoch is required")
	}
	if len(cfg.Months) != MonthsPerYear {
		return nil, fmt.Errorf("calendar needs exactly %d month names, got %d", MonthsPerYear, len(cfg.Months))
	}
	months := make([]string, 0, len(cfg.Months))
	for _, name := range cfg.Months {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("calendar month names must not be empty")
		}
		months = append(months, name)
	}
	epoch := cfg.Epoch.UTC()
	return &Calendar{
		epochYear:  epoch.Year(),
		epochMonth: epoch.Month(),
		months:     months,
	}, nil
}

// Months returns a copy of the month-name cycle.
func (c *Calendar) Months() []string {
	return append([]string(nil), c.months...)
}

func (c *Calendar) FromTime(instant time.Time) (Date, error) {
	if instant.IsZero() {
		return Date{}, fmt.Errorf("%w: zero timestamp", ErrInvalidDateFormat)
	}
	instant = instant.UTC()

	monthsSinceEpoch := (instant.Year()-c.epochYear)*12 + int(instant.Month()-c.epochMonth)
	year := floorDiv(monthsSinceEpoch, MonthsPerYear) + 1
	if year <= 0 {
		// there is no year 0
		year--
	}

	return Date{
		Year:  year,
		Day:   instant.Day(),
		Month: c.months[(int(instant.Month())-1)%len(c.months)],
	}, nil
}

// Parse converts a "YYYY-MM-DD HH:MM:SS" UTC timestamp.
func (c *Calendar) Parse(value string) (Date, error) {
	instant, err := time.ParseInLocation(InputLayout, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q, expected %s", ErrInvalidDateFormat, value, InputLayout)
	}
	return c.FromTime(instant)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
