/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package classify

import "strings"

// ntMarketingNames translates a Windows "NT x.y" token to the marketing
// name shown when the real-os option is enabled (§4.3).
var ntMarketingNames = map[string]string{
	"NT 10.0": "10",
	"NT 6.3":  "8.1",
	"NT 6.2":  "8",
	"NT 6.1":  "7",
	"NT 6.0":  "Vista",
	"NT 5.2":  "XP x64",
	"NT 5.1":  "XP",
	"NT 5.0":  "2000",
}

// androidCodenames maps a leading Android major version to its
// dessert codename (§4.3).
var androidCodenames = map[string]string{
	"13": "Tiramisu",
	"12": "Snow Cone",
	"11": "Red Velvet Cake",
	"10": "Quince Tart",
	"9":  "Pie",
	"8":  "Oreo",
	"7":  "Nougat",
	"6":  "Marshmallow",
	"5":  "Lollipop",
	"4":  "KitKat",
}

// BrowserWithVersion returns the matched browser family and, best-effort,
// the version token that followed the matched marker (e.g. "Chrome/116.0"
// yields family "Chrome", version "116.0").
func (t Table) BrowserWithVersion(userAgent string) (family, version string) {
	for _, r := range t.Browsers {
		if idx := strings.Index(userAgent, r.needle); idx >= 0 {
			return r.family, versionAfter(userAgent, idx+len(r.needle))
		}
	}
	return "Unknown", ""
}

// OSWithVersion returns the matched OS family and a display version,
// applying the real-os marketing-name translation, the Android
// codename map, and the OS X "_"→"." substitution described in §4.3.
func (t Table) OSWithVersion(userAgent string, realOS bool) (family, version string) {
	for _, r := range t.OSes() {
		idx := strings.Index(userAgent, r.needle)
		if idx < 0 {
			continue
		}
		switch r.family {
		case "Windows":
			token := strings.TrimPrefix(r.needle, "Windows ")
			if realOS {
				if name, ok := ntMarketingNames[token]; ok {
					return "Windows", name
				}
			}
			return "Windows", token
		case "Android":
			v := versionAfter(userAgent, idx+len(r.needle)+1) // skip the leading space before the version
			if realOS {
				major, _, _ := strings.Cut(v, ".")
				if name, ok := androidCodenames[major]; ok {
					return "Android", name
				}
			}
			return "Android", v
		case "Macintosh":
			v := versionAfter(userAgent, idx+len(r.needle)+1)
			return "Macintosh", strings.ReplaceAll(v, "_", ".")
		default:
			return r.family, versionAfter(userAgent, idx+len(r.needle))
		}
	}
	return "Unknown", ""
}

// versionAfter captures a dotted-numeric run beginning at (or shortly
// after, skipping a leading '/') pos, stopping at the first byte that
// cannot appear in a version token.
func versionAfter(s string, pos int) string {
	if pos < len(s) && s[pos] == '/' {
		pos++
	}
	start := pos
	for pos < len(s) {
		c := s[pos]
		if (c >= '0' && c <= '9') || c == '.' || c == '_' {
			pos++
			continue
		}
		break
	}
	return s[start:pos]
}
