/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package classify assigns a user-agent string to a browser family, an
// operating system family, and a crawler/bot flag (§4.3) by walking
// ordered substring tables, in priority order, the same way the original
// tool's static lookup tables do.
package classify

import "strings"

// substringRule is one ordered {needle, family} pair. The first matching
// needle wins; order therefore encodes priority (more specific markers,
// such as game-console browsers that embed "Chrome", must precede the
// generic ones they would otherwise also match).
type substringRule struct {
	needle string
	family string
}

// browserTable is grounded on the original tool's browsers.c static table,
// abridged to the families the store reports on (§4.2.3) while preserving
// the original's single-list priority ordering: browsers.c interleaves its
// "Crawlers" entries directly into the one ordered list it scans (Google's
// crawlers are listed ahead of Chrome/Firefox "since some [are] based on
// Chrome"; AppleBot/facebookexternalhit/Twitterbot precede Safari for the
// same reason), rather than keeping a second table consulted separately —
// verify_browser_type() in parser.c does one scan and stores whatever
// family it returns, crawler or not, directly into ht_browsers. This table
// preserves that: a bot UA is classified "Crawlers" by the very same scan
// that classifies everything else, so BROWSERS["Crawlers"] is reachable.
var browserTable = []substringRule{
	{"Xbox One", "Game Systems"},
	{"Xbox", "Game Systems"},
	{"PlayStation", "Game Systems"},
	{"NintendoBrowser", "Game Systems"},
	{"Valve Steam", "Game Systems"},

	{"Avant Browser", "Others"},
	{"IEMobile", "MSIE"},
	{"MSIE", "MSIE"},
	{"Trident/7.0", "MSIE"},
	{"Edg", "Edge"},
	{"Edge", "Edge"},

	{"OPR", "Opera"},
	{"Opera Mini", "Opera"},
	{"Opera Mobi", "Opera"},
	{"Opera", "Opera"},
	{"OPiOS", "Opera"},

	{"SamsungBrowser", "Others"},
	{"UCBrowser", "Others"},

	// Google's crawlers are based on Chrome and so must precede it.
	{"AdsBot-Google", "Crawlers"},
	{"AppEngine-Google", "Crawlers"},
	{"Mediapartners-Google", "Crawlers"},
	{"Googlebot", "Crawlers"},
	{"YandexBot", "Crawlers"},
	{"Baiduspider", "Crawlers"},
	{"DuckDuckBot", "Crawlers"},

	{"CriOS", "Chrome"},
	{"Chrome", "Chrome"},
	{"Chromium", "Chrome"},

	{"FxiOS", "Firefox"},
	{"Firefox", "Firefox"},

	// Crawlers that are themselves Safari-based must precede Safari.
	{"AppleBot", "Crawlers"},
	{"facebookexternalhit", "Crawlers"},
	{"Twitterbot", "Crawlers"},

	{"Safari", "Safari"},

	// Remaining crawler/bot markers (not Chrome- or Safari-based).
	{"bingbot", "Crawlers"},
	{"Slackbot", "Crawlers"},
	{"Sogou", "Crawlers"},
	{"heritrix", "Crawlers"},
	{"rogerbot", "Crawlers"},
	{"yacybot", "Crawlers"},
	{"PetalBot", "Crawlers"},
	{"SemrushBot", "Crawlers"},
	{"AhrefsBot", "Crawlers"},
	{"MJ12bot", "Crawlers"},
	{"crawler", "Crawlers"},
	{"spider", "Crawlers"},
	// de-facto "polite bot" UA markers (§4.3): a bot identifying itself with
	// a contact URL in one of these conventional forms.
	{"; +http", "Crawlers"},
	{"; http", "Crawlers"},
	{" (+http", "Crawlers"},
	{" (http", "Crawlers"},
	{";++http", "Crawlers"},

	{"Konqueror", "Others"},
	{"Lynx", "Others"},
	{"w3m", "Others"},
	{"curl", "Others"},
	{"Wget", "Others"},
	{"Go-http-client", "Others"},
	{"python-requests", "Others"},
	{"okhttp", "Others"},
}

// Table holds the mutable ordered rule sets a Classifier consults, so a
// caller can extend them (§4.3's "user-supplied table extension").
type Table struct {
	// Browsers is the single ordered browser/crawler list (§4.3):
	// BrowserWithVersion and IsCrawler both scan it, so a UA that matches a
	// crawler entry reports family "Crawlers" from the one scan, not from a
	// second independently-consulted table.
	Browsers   []substringRule
	osOverride []substringRule
}

// DefaultTable returns a fresh copy of the built-in browser/crawler table.
func DefaultTable() Table {
	browsers := make([]substringRule, len(browserTable))
	copy(browsers, browserTable)
	return Table{Browsers: browsers}
}

// AddBrowser appends a rule to the front of the browser/crawler table;
// entries added this way are consulted before the built-in table so a
// site-specific UA marker can override a generic match.
func (t *Table) AddBrowser(needle, family string) {
	t.Browsers = append([]substringRule{{needle, family}}, t.Browsers...)
}

// AddCrawler appends a user-supplied crawler marker ahead of the built-in
// table, per the same override rule as AddBrowser — it is a convenience
// alias over AddBrowser (family is conventionally "Crawlers") now that
// both draw from the one ordered table.
func (t *Table) AddCrawler(needle, family string) {
	t.AddBrowser(needle, family)
}

// Browser returns the browser family for a user-agent string, or "Unknown"
// if no rule matches.
func (t Table) Browser(userAgent string) string {
	for _, r := range t.Browsers {
		if strings.Contains(userAgent, r.needle) {
			return r.family
		}
	}
	return "Unknown"
}

// IsCrawler reports whether userAgent's matched family, from the same
// ordered scan Browser/BrowserWithVersion use, is "Crawlers" (§4.3: "any
// UA whose final family is Crawlers classifies as crawler").
func (t Table) IsCrawler(userAgent string) bool {
	return t.Browser(userAgent) == "Crawlers"
}

// CrawlerFunc adapts IsCrawler to the injection signature expected by
// logfield.Config.CrawlerFunc, keeping that package free of a direct
// dependency on the classification tables.
func (t Table) CrawlerFunc() func(string) bool {
	return t.IsCrawler
}
