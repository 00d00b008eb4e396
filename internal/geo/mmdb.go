/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package geo

import (
	"fmt"
	"net/netip"

	"github.com/oschwald/geoip2-golang/v2"
)

// MMDBResolver backs Resolver with a MaxMind-format (GeoLite2/GeoIP2)
// database opened via geoip2-golang. This is the only backend wired into
// the store; see legacy.go for why the older flat-file GeoIP API has no
// implementation here.
type MMDBResolver struct {
	reader *geoip2.Reader
}

// OpenMMDB opens a .mmdb database file for country-level lookups.
func OpenMMDB(path string) (*MMDBResolver, error) {
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geo: open mmdb %s: %w", path, err)
	}
	return &MMDBResolver{reader: r}, nil
}

// Lookup resolves ipAddr to a country/continent pair.
func (m *MMDBResolver) Lookup(ipAddr string) (Location, error) {
	addr, err := netip.ParseAddr(ipAddr)
	if err != nil {
		return Location{}, fmt.Errorf("geo: %w: %v", ErrNoRecord, err)
	}
	rec, err := m.reader.Country(addr)
	if err != nil {
		return Location{}, fmt.Errorf("geo: mmdb lookup: %w", err)
	}
	if rec.Country.ISOCode == "" {
		return Location{}, ErrNoRecord
	}
	return Location{
		CountryCode:   rec.Country.ISOCode,
		CountryName:   rec.Country.Names.English,
		Continent:     rec.Continent.Names.English,
		ContinentCode: rec.Continent.Code,
	}, nil
}

// Close releases the underlying memory-mapped database file.
func (m *MMDBResolver) Close() error {
	return m.reader.Close()
}
