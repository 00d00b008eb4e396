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

	"github.com/webtrail/webtrail/internal/logformat"
)

// parseServeTime interprets a time-served field according to which
// specifier produced it: %D is verbatim microseconds, %T is seconds
// (optionally fractional, truncated — not rounded — at 6 decimal digits per
// the Open Question in §9), %L is milliseconds.
func parseServeTime(spec logformat.Specifier, raw string) (uint64, error) {
	switch spec {
	case logformat.SpecServeUsec:
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, ErrBadTime
		}
		return v, nil
	case logformat.SpecServeMilli:
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, ErrBadTime
		}
		return v * 1000, nil
	case logformat.SpecServeSec:
		return parseFractionalSecondsToUsec(raw)
	default:
		return 0, ErrBadTime
	}
}

// parseFractionalSecondsToUsec parses a possibly-fractional seconds value
// (e.g. "0.003421") into microseconds, truncating (not rounding) beyond the
// 6th decimal digit.
func parseFractionalSecondsToUsec(raw string) (uint64, error) {
	whole, frac, hasFrac := strings.Cut(raw, ".")
	wholeVal, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, ErrBadTime
	}
	usec := wholeVal * 1_000_000
	if !hasFrac {
		return usec, nil
	}
	if len(frac) > 6 {
		frac = frac[:6] // truncate, do not round
	}
	for len(frac) < 6 {
		frac += "0"
	}
	fracVal, err := strconv.ParseUint(frac, 10, 64)
	if err != nil {
		return 0, ErrBadTime
	}
	return usec + fracVal, nil
}
