/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package geo resolves a host's country and continent for the GEO_LOCATION
// module (§4.3). Lookups sit behind a narrow Resolver interface so the
// active backend can be swapped without touching the store.
package geo

import "errors"

// ErrNoRecord is returned when a lookup succeeds at the database level but
// finds no entry for the address (private ranges, reserved space, or gaps
// in the database's coverage).
var ErrNoRecord = errors.New("geo: no record for address")

// Location is the subset of a GeoIP record the store cares about.
type Location struct {
	CountryCode   string // ISO 3166-1 alpha-2, e.g. "US"
	CountryName   string
	Continent     string
	ContinentCode string // two-letter continent code, e.g. "NA"
}

// Resolver looks up a Location for a textual IP address. Implementations
// must be safe for concurrent use; the store calls Lookup from the same
// goroutine that owns the module it feeds, but a resolver may be shared
// across stores in multi-tenant deployments.
type Resolver interface {
	Lookup(ipAddr string) (Location, error)
	Close() error
}

// NopResolver always returns ErrNoRecord. It is the default when no
// database path is configured (§6).
type NopResolver struct{}

func (NopResolver) Lookup(string) (Location, error) { return Location{}, ErrNoRecord }
func (NopResolver) Close() error                    { return nil }
