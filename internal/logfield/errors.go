/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package logfield applies a tokenized log-format spec (see logformat) to a
// raw access-log line, producing a model.LogItem or an InvalidLine-shaped
// error (§4.1b).
package logfield

import "errors"

var (
	ErrLiteralMismatch   = errors.New("logfield: literal text did not match")
	ErrFieldMissing      = errors.New("logfield: required field absent")
	ErrBadHost           = errors.New("logfield: host is not a valid IP or hostname")
	ErrBadDate           = errors.New("logfield: date field is unparseable")
	ErrBadTime           = errors.New("logfield: time field is unparseable")
	ErrBadStatus         = errors.New("logfield: status is not 3 digits")
	ErrBadSize           = errors.New("logfield: response size is not numeric")
	ErrBadRequestLine    = errors.New("logfield: request line is malformed")
	ErrUnterminatedQuote = errors.New("logfield: quoted field was not closed")

	// ErrIgnoredLine is returned (wrapped, never bare) when a line parses
	// cleanly but is excluded from the store by a configured ignore-rule
	// (§4.1b): a host CIDR ignore-list, a wildcard referrer ignore pattern,
	// or ignore-crawlers. Ignored lines are not counted as invalid.
	ErrIgnoredLine = errors.New("logfield: line excluded by ignore-rule")
)
