package domain

import "time"

// Regulated seasonal discount windows, inclusive on both ends. These are
// fixed calendar constants of the retail domain, not derived values.
const (
	winterStartMonth, winterStartDay = time.January, 12
	winterEndMonth, winterEndDay     = time.February, 8
	summerStartMonth, summerStartDay = time.June, 22
	summerEndMonth, summerEndDay     = time.July, 19
)

// DiscountPeriod returns the seasonal discount window for the given year.
// winter selects the January window, otherwise the June/July one.
func DiscountPeriod(winter bool, year int) (from, to time.Time) {
	if winter {
		return time.Date(year, winterStartMonth, winterStartDay, 0, 0, 0, 0, time.UTC),
			time.Date(year, winterEndMonth, winterEndDay, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(year, summerStartMonth, summerStartDay, 0, 0, 0, 0, time.UTC),
		time.Date(year, summerEndMonth, summerEndDay, 0, 0, 0, 0, time.UTC)
}
