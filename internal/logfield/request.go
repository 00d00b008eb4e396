/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package logfield

import (
	"net/url"
	"strings"
)

// DefaultStaticExtensions is the default whitelist used to classify a
// request as "static" (§4.1b). Preserved as an extension match rather than
// a MIME match per the Open Question in §9 — do not guess at deeper intent.
var DefaultStaticExtensions = []string{
	"jpg", "jpeg", "gif", "png", "css", "js", "ico", "swf",
	"woff", "woff2", "ttf", "svg", "webp", "map", "pdf",
}

// splitRequestLine splits a combined "METHOD URL PROTOCOL" request line
// (the %r specifier) into its three parts.
func splitRequestLine(line string) (method, rawURL, proto string, err error) {
	fields := strings.Fields(line)
	switch len(fields) {
	case 3:
		return fields[0], fields[1], fields[2], nil
	case 2:
		// some access logs omit the protocol on malformed requests; GoAccess
		// tolerates a bare "METHOD URL".
		return fields[0], fields[1], "", nil
	default:
		return "", "", "", ErrBadRequestLine
	}
}

// normalizeURL applies the ignore-qstr and double-decode policies to a raw
// URL, per §4.1b.
func normalizeURL(raw string, ignoreQueryString, doubleDecode bool) (string, error) {
	out := raw
	if ignoreQueryString {
		if idx := strings.IndexByte(out, '?'); idx >= 0 {
			out = out[:idx]
		}
	}
	if doubleDecode {
		for i := 0; i < 2; i++ {
			decoded, err := url.QueryUnescape(out)
			if err != nil {
				break // tolerate partially-escaped URLs rather than failing the line
			}
			out = decoded
		}
	}
	return out, nil
}

// classifyStatic reports whether url's extension matches the configured
// static-file whitelist.
func classifyStatic(urlPath string, extensions []string) bool {
	path := urlPath
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		path = path[:idx]
	}
	dot := strings.LastIndexByte(path, '.')
	if dot < 0 || dot == len(path)-1 {
		return false
	}
	ext := strings.ToLower(path[dot+1:])
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}
