/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package model

// SubItem is a child categorization rolled up under a parent key, e.g. a
// specific OS version under an OS family, or a concrete status code under
// its 1xx-5xx class.
type SubItem struct {
	Data     string
	Hits     uint64
	Visitors uint64
	Bw       uint64
}

// MetricsRecord is the counter bundle stored per key per module.
//
// Invariants: Hits >= Visitors >= 1, CumTsUsec == AvgTsUsec*Hits rounded to
// the latest observation, MaxTsUsec >= AvgTsUsec.
type MetricsRecord struct {
	Hits      uint64
	Visitors  uint64
	Bandwidth uint64
	AvgTsUsec uint64
	CumTsUsec uint64
	MaxTsUsec uint64

	// Method/Protocol are populated from the first observation for
	// request-shaped modules (REQUESTS, REQUESTS_STATIC, NOT_FOUND).
	Method   string
	Protocol string

	Sub []SubItem
}

// AddServeTime folds one observation's service time into the running
// cumulative/average/max accumulators.
func (m *MetricsRecord) AddServeTime(usec uint64) {
	m.CumTsUsec += usec
	if m.Hits > 0 {
		m.AvgTsUsec = m.CumTsUsec / m.Hits
	}
	if usec > m.MaxTsUsec {
		m.MaxTsUsec = usec
	}
}

// AddSub inserts or merges a sub-item by Data, summing counters on
// collision (§4.2: "Duplicate sub-item entries within a single parent are
// coalesced by summing their counters").
func (m *MetricsRecord) AddSub(data string, hits, visitors, bw uint64) {
	for i := range m.Sub {
		if m.Sub[i].Data == data {
			m.Sub[i].Hits += hits
			m.Sub[i].Visitors += visitors
			m.Sub[i].Bw += bw
			return
		}
	}
	m.Sub = append(m.Sub, SubItem{Data: data, Hits: hits, Visitors: visitors, Bw: bw})
}
