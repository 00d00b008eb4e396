/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package model defines the data shapes shared by the parser, the
// aggregation store and the snapshot builder: the Module enumeration,
// LogItem (parser output) and MetricsRecord/SubItem (store values).
package model

// Module identifies one of the enumerated statistics categories. Every
// counter map, sort configuration and snapshot is keyed by a Module.
type Module int

const (
	Visitors Module = iota
	Requests
	RequestsStatic
	NotFound
	Hosts
	OS
	Browsers
	VisitTimes
	Referrers
	ReferringSites
	Keyphrases
	GeoLocation
	StatusCodes

	moduleCount
)

var moduleNames = [...]string{
	Visitors:       "VISITORS",
	Requests:       "REQUESTS",
	RequestsStatic: "REQUESTS_STATIC",
	NotFound:       "NOT_FOUND",
	Hosts:          "HOSTS",
	OS:             "OS",
	Browsers:       "BROWSERS",
	VisitTimes:     "VISIT_TIMES",
	Referrers:      "REFERRERS",
	ReferringSites: "REFERRING_SITES",
	Keyphrases:     "KEYPHRASES",
	GeoLocation:    "GEO_LOCATION",
	StatusCodes:    "STATUS_CODES",
}

// String returns the canonical uppercase name of the module.
func (m Module) String() string {
	if m < 0 || int(m) >= len(moduleNames) {
		return "UNKNOWN"
	}
	return moduleNames[m]
}

// Modules returns every recognized module, in enumeration order.
func Modules() []Module {
	out := make([]Module, 0, moduleCount)
	for m := Module(0); m < moduleCount; m++ {
		out = append(out, m)
	}
	return out
}

// HasSubItems reports whether entries in this module carry a child
// classification list (§4.2: HOSTS, OS, BROWSERS, STATUS_CODES, GEO_LOCATION).
func (m Module) HasSubItems() bool {
	switch m {
	case Hosts, OS, Browsers, StatusCodes, GeoLocation:
		return true
	default:
		return false
	}
}
