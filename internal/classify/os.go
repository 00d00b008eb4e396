/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package classify

import "strings"

// osTable is grounded on the original tool's opesys.c static table: more
// specific Windows NT version strings are listed before the bare "Windows
// NT" fallback so the more precise match wins.
var osTable = []substringRule{
	{"Windows NT 10.0", "Windows"},
	{"Windows NT 6.3", "Windows"},
	{"Windows NT 6.2", "Windows"},
	{"Windows NT 6.1", "Windows"},
	{"Windows NT 6.0", "Windows"},
	{"Windows NT 5.2", "Windows"},
	{"Windows NT 5.1", "Windows"},
	{"Windows NT", "Windows"},
	{"Windows Phone", "Windows"},
	{"Win 9x 4.90", "Windows"},
	{"Windows 98", "Windows"},
	{"Windows 95", "Windows"},

	{"iPad", "iOS"},
	{"iPod", "iOS"},
	{"iPhone", "iOS"},
	{"AppleTV", "iOS"},

	{"iTunes", "Macintosh"},
	{"OS X", "Macintosh"},
	{"Macintosh", "Macintosh"},

	{"Android", "Android"},

	{"Debian", "Linux"},
	{"Ubuntu", "Linux"},
	{"Fedora", "Linux"},
	{"Mint", "Linux"},
	{"SUSE", "Linux"},
	{"Mandriva", "Linux"},
	{"Red Hat", "Linux"},
	{"Gentoo", "Linux"},
	{"CentOS", "Linux"},
	{"Linux", "Linux"},

	{"FreeBSD", "BSD"},
	{"OpenBSD", "BSD"},
	{"NetBSD", "BSD"},

	{"SunOS", "Unix-like"},
	{"IRIX64", "Unix-like"},
}

// OperatingSystem returns the OS family for a user-agent string, or
// "Unknown" if no rule matches.
func (t Table) OperatingSystem(userAgent string) string {
	for _, r := range t.OSes() {
		if strings.Contains(userAgent, r.needle) {
			return r.family
		}
	}
	return "Unknown"
}

// OSes exposes the OS rule table so it participates in the same
// extension/override mechanism as Browsers and Crawlers, without widening
// the Table struct for a table that's rarely overridden in practice.
func (t Table) OSes() []substringRule {
	if len(t.osOverride) > 0 {
		return append(t.osOverride, osTable...)
	}
	return osTable
}

// AddOS appends a user-supplied OS marker ahead of the built-in table.
func (t *Table) AddOS(needle, family string) {
	t.osOverride = append([]substringRule{{needle, family}}, t.osOverride...)
}
