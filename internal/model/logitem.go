/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package model

import "time"

// LogItem is the structured form of a single parsed log line. Any field
// absent in the active log format is left at its zero value. LogItem is
// transient: the parser owns it until it is absorbed by the store.
type LogItem struct {
	Host       string
	Date       time.Time // Y-M-D, time-of-day truncated
	Time       string    // HH:MM:SS as observed
	Hour       string    // HH, derived from Time
	Request    string    // full URL path (+ query if not stripped)
	Method     string
	Protocol   string
	Status     string // 3-char status code, post 444-as-404 folding
	Referrer   string
	UserAgent  string
	RespSize   uint64
	ServeUsecs uint64
	VHost      string
	RemoteUser string
	CacheStat  string

	IsStatic  bool
	IsCrawler bool
}

// DateKey returns the YYYYMMDD form used as the VISITORS module key and as
// the middle component of the composite unique-visitor key.
func (l *LogItem) DateKey() string {
	return l.Date.Format("20060102")
}

// VisitorKey returns the composite host|YYYYMMDD|agent key used to
// deduplicate unique visitors (§3).
func (l *LogItem) VisitorKey() string {
	return l.Host + "|" + l.DateKey() + "|" + l.UserAgent
}
