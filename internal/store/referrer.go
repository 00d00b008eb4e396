/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package store

import (
	"net/url"
	"strings"
)

// referringSite reduces a full referrer URL to its "scheme://host" form,
// used as the REFERRING_SITES key (§4.2 item 5).
func referringSite(referrer string) (string, bool) {
	u, err := url.Parse(referrer)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return u.Scheme + "://" + u.Host, true
}

// googleSearchHosts are the host suffixes treated as Google web search,
// the source of the KEYPHRASES module.
var googleSearchHosts = []string{
	"google.com", "google.co.uk", "google.ca", "google.de", "google.fr",
	"google.es", "google.it", "google.nl", "google.com.au",
}

// keyphrase extracts the decoded "q=" query parameter from a Google search
// referrer, or ("", false) if referrer isn't a recognized Google search
// URL or carries no query term (§4.2 item 5).
func keyphrase(referrer string) (string, bool) {
	u, err := url.Parse(referrer)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Host)
	isGoogle := false
	for _, suffix := range googleSearchHosts {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			isGoogle = true
			break
		}
	}
	if !isGoogle {
		return "", false
	}
	q := u.RawQuery
	for _, pair := range strings.Split(q, "&") {
		k, v, found := strings.Cut(pair, "=")
		if !found || k != "q" {
			continue
		}
		decoded, err := url.QueryUnescape(strings.ReplaceAll(v, "+", " "))
		if err != nil || decoded == "" {
			return "", false
		}
		return decoded, true
	}
	return "", false
}
