/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package geo

// The original tool supports two GeoIP backends: the current MaxMind DB
// (.mmdb) format, implemented by MMDBResolver, and the discontinued legacy
// GeoIP "flat file" C API (GeoIP.h / libGeoIP). No library in this
// project's dependency set speaks that legacy format, and the format
// itself has been end-of-life for MaxMind's own data releases for years;
// see DESIGN.md for why it is intentionally left unimplemented rather than
// hand-rolled. NewLegacyResolver exists so the Resolver seam documented in
// Location and Resolver is visible at the type level, and so a future
// backend has an obvious place to live.
//
// NewLegacyResolver always returns an error; callers should fall back to
// NopResolver or MMDBResolver.
func NewLegacyResolver(dbPath string) (Resolver, error) {
	return nil, errLegacyUnsupported{path: dbPath}
}

type errLegacyUnsupported struct{ path string }

func (e errLegacyUnsupported) Error() string {
	return "geo: legacy GeoIP database format (" + e.path + ") is not supported; use an .mmdb database"
}
