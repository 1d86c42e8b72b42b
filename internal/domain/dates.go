package domain

import (
	"fmt"
	"strconv"
	"time"
)

// DateDecodeError reports a date_id that could not be turned into a
// calendar date. Rows carrying one stay in the dataset but drop out of
// date-filtered aggregations.
type DateDecodeError struct {
	Raw    string
	Reason string
}

func (e *DateDecodeError) Error() string {
	return fmt.Sprintf("undecodable date_id %q: %s", e.Raw, e.Reason)
}

// DecodeDateID decodes a raw date_id into a UTC calendar date. The
// canonical encoding is YYYYMMDD (20220101); the ISO form 2022-01-01 is
// accepted because it appears in older exports. Anything else is a
// *DateDecodeError — there is no silent fallback chain.
func DecodeDateID(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, &DateDecodeError{Raw: raw, Reason: "empty value"}
	}
	if len(raw) == 8 {
		if t, err := time.ParseInLocation("20060102", raw, time.UTC); err == nil {
			return t, nil
		}
		return time.Time{}, &DateDecodeError{Raw: raw, Reason: "not a valid YYYYMMDD date"}
	}
	if len(raw) == 10 {
		if t, err := time.ParseInLocation("2006-01-02", raw, time.UTC); err == nil {
			return t, nil
		}
		return time.Time{}, &DateDecodeError{Raw: raw, Reason: "not a valid YYYY-MM-DD date"}
	}
	return time.Time{}, &DateDecodeError{Raw: raw, Reason: "unrecognized length"}
}

// DecodeDateIDInt decodes the numeric form of a date_id.
func DecodeDateIDInt(id int) (time.Time, error) {
	return DecodeDateID(strconv.Itoa(id))
}
