package openbanking

import (
	"strings"
	"time"

	"erpfin/bank-sync/internal/dateutils"
)

// DateWindow is an inclusive range of calendar days.
type DateWindow struct {
	From time.Time
	To   time.Time
}

// NewDateWindow parses two ISO dates. Both must be valid and from must not be after to.
func NewDateWindow(from, to string) (DateWindow, error) {
	fromDate, err := dateutils.ParseISODate(strings.TrimSpace(from))
	if err != nil {
		return DateWindow{}, &InvalidRangeError{From: from, To: to, Reason: "from is not a YYYY-MM-DD date"}
	}
	toDate, err := dateutils.ParseISODate(strings.TrimSpace(to))
	if err != nil {
		return DateWindow{}, &InvalidRangeError{From: from, To: to, Reason: "to is not a YYYY-MM-DD date"}
	}
	if fromDate.After(toDate) {
		return DateWindow{}, &InvalidRangeError{From: from, To: to, Reason: "from is after to"}
	}
	return DateWindow{From: fromDate, To: toDate}, nil
}

// ResolveWindow fills empty bounds: to defaults to today and from to lookbackDays
// before to.
func ResolveWindow(from, to string, now time.Time, lookbackDays int) (DateWindow, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if to == "" {
		to = dateutils.ToISODate(now)
	}
	if from == "" {
		end, err := dateutils.ParseISODate(to)
		if err != nil {
			return DateWindow{}, &InvalidRangeError{From: from, To: to, Reason: "to is not a YYYY-MM-DD date"}
		}
		if lookbackDays < 0 {
			lookbackDays = 0
		}
		from = dateutils.ToISODate(end.AddDate(0, 0, -lookbackDays))
	}
	return NewDateWindow(from, to)
}

// FromISO returns the lower bound as YYYY-MM-DD.
func (w DateWindow) FromISO() string {
	return dateutils.ToISODate(w.From)
}

// ToISO returns the upper bound as YYYY-MM-DD.
func (w DateWindow) ToISO() string {
	return dateutils.ToISODate(w.To)
}

func (w DateWindow) String() string {
	return w.FromISO() + ".." + w.ToISO()
}
