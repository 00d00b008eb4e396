/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package logfield

import (
	"strconv"
	"strings"
	"time"
)

var monthAbbrev = map[string]time.Month{
	"Jan": time.January, "Feb": time.February, "Mar": time.March,
	"Apr": time.April, "May": time.May, "Jun": time.June,
	"Jul": time.July, "Aug": time.August, "Sep": time.September,
	"Oct": time.October, "Nov": time.November, "Dec": time.December,
}

// parseDate interprets value according to the date-format spec (§6: only
// "%d/%b/%Y", "%Y-%m-%d" and "%f" are recognized). now is used to supply a
// default year when the format carries none (currently none of the three
// recognized templates omit the year, but the hook exists per §4.1b).
func parseDate(format, value string, now time.Time) (time.Time, error) {
	switch format {
	case "%d/%b/%Y":
		parts := strings.SplitN(value, "/", 3)
		if len(parts) != 3 {
			return time.Time{}, ErrBadDate
		}
		day, err := strconv.Atoi(parts[0])
		if err != nil {
			return time.Time{}, ErrBadDate
		}
		month, ok := monthAbbrev[parts[1]]
		if !ok {
			return time.Time{}, ErrBadDate
		}
		year, err := strconv.Atoi(parts[2])
		if err != nil {
			return time.Time{}, ErrBadDate
		}
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), nil
	case "%Y-%m-%d":
		t, err := time.Parse("2006-01-02", value)
		if err != nil {
			return time.Time{}, ErrBadDate
		}
		return t, nil
	case "%f":
		// microsecond Unix timestamp
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return time.Time{}, ErrBadDate
		}
		return time.UnixMicro(us).UTC(), nil
	default:
		// fall back to the w3c template, the most common custom case
		t, err := time.Parse("2006-01-02", value)
		if err != nil {
			return time.Time{}, ErrBadDate
		}
		return t, nil
	}
}

// parseTimeOfDay interprets value according to the time-format spec,
// returning the HH:MM:SS string used for display and the hour-of-day used
// by VISIT_TIMES. "%f" (microsecond epoch) derives both from the instant.
func parseTimeOfDay(format, value string) (hhmmss, hour string, err error) {
	switch format {
	case "%H:%M:%S":
		parts := strings.SplitN(value, ":", 3)
		if len(parts) != 3 {
			return "", "", ErrBadTime
		}
		for _, p := range parts {
			if _, convErr := strconv.Atoi(p); convErr != nil {
				return "", "", ErrBadTime
			}
		}
		return value, parts[0], nil
	case "%f":
		us, convErr := strconv.ParseInt(value, 10, 64)
		if convErr != nil {
			return "", "", ErrBadTime
		}
		t := time.UnixMicro(us).UTC()
		return t.Format("15:04:05"), t.Format("15"), nil
	default:
		return "", "", ErrBadTime
	}
}
