/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package classify

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBrowserClassification(t *testing.T) {
	tbl := DefaultTable()
	cases := map[string]string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/116.0 Safari/537.36": "Chrome",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 Version/16.0 Safari/604.1":        "Safari",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/116.0":                            "Firefox",
		"Mozilla/5.0 (Xbox One)":                                                                                      "Game Systems",
		"curl/8.1.2":                                                                                                  "Others",
		"":                                                                                                            "Unknown",
	}
	for ua, want := range cases {
		require.Equal(t, want, tbl.Browser(ua), "ua=%q", ua)
	}
}

func TestOSClassification(t *testing.T) {
	tbl := DefaultTable()
	cases := map[string]string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64)": "Windows",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15)": "Macintosh",
		"Mozilla/5.0 (X11; Ubuntu; Linux x86_64)":   "Linux",
		"Mozilla/5.0 (Linux; Android 13)":           "Android",
	}
	for ua, want := range cases {
		require.Equal(t, want, tbl.OperatingSystem(ua), "ua=%q", ua)
	}
}

func TestCrawlerClassification(t *testing.T) {
	tbl := DefaultTable()
	require.True(t, tbl.IsCrawler("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"))
	require.True(t, tbl.IsCrawler("SomeBot/1.0 (compatible; +http://example.com/bot)"))
	require.False(t, tbl.IsCrawler("Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/116.0 Safari/537.36"))
}

func TestAddBrowserOverridesTakePrecedence(t *testing.T) {
	tbl := DefaultTable()
	tbl.AddBrowser("InternalTool", "Internal")
	require.Equal(t, "Internal", tbl.Browser("InternalTool/1.0 Chrome/116.0"))
}

func TestBrowserWithVersion(t *testing.T) {
	tbl := DefaultTable()
	family, version := tbl.BrowserWithVersion("Mozilla/5.0 Chrome/116.0.5845.96 Safari/537.36")
	require.Equal(t, "Chrome", family)
	require.Equal(t, "116.0.5845.96", version)
}

func TestOSWithVersionRealOS(t *testing.T) {
	tbl := DefaultTable()
	family, version := tbl.OSWithVersion("Mozilla/5.0 (Windows NT 10.0; Win64; x64)", true)
	require.Equal(t, "Windows", family)
	require.Equal(t, "10", version)

	family, version = tbl.OSWithVersion("Mozilla/5.0 (Linux; Android 13; Pixel 7)", true)
	require.Equal(t, "Android", family)
	require.Equal(t, "Tiramisu", version)

	family, version = tbl.OSWithVersion("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)", false)
	require.Equal(t, "Macintosh", family)
	require.Equal(t, "10.15.7", version)
}

func TestAddCrawlerExtendsDetection(t *testing.T) {
	tbl := DefaultTable()
	require.False(t, tbl.IsCrawler("MyCustomUptimeChecker/1.0"))
	tbl.AddCrawler("MyCustomUptimeChecker", "Crawlers")
	require.True(t, tbl.IsCrawler("MyCustomUptimeChecker/1.0"))
}
