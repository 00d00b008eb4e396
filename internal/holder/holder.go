/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package holder builds read-only HolderSnapshots from a store snapshot,
// applying the configured sort and MAX_CHOICES truncation (§4.4).
package holder

import (
	"sort"

	"github.com/webtrail/webtrail/internal/model"
)

// Field identifies a sortable attribute of a HolderItem.
type Field string

const (
	FieldHits     Field = "HITS"
	FieldVisitors Field = "VISITORS"
	FieldData     Field = "DATA"
	FieldBw       Field = "BW"
	FieldUsec     Field = "USEC"
	FieldProtocol Field = "PROT"
	FieldMethod   Field = "MTHD"
)

// Order is the sort direction.
type Order string

const (
	Asc  Order = "ASC"
	Desc Order = "DESC"
)

// Sort pairs a field with a direction.
type Sort struct {
	Field Field
	Order Order
}

// DefaultMaxChoices is the default truncation applied to a snapshot's
// entry list (§4.4, §6).
const DefaultMaxChoices = 366

// HolderItem is one row of a HolderSnapshot.
type HolderItem struct {
	Data       string
	Metrics    model.MetricsRecord
	Method     string
	Protocol   string
	Percentage float64
	Sub        []SubHolderItem
	// Agents carries the HOSTS module's per-host user-agent list (§3a
	// HostAgentsSet), populated only when --agent-list is enabled and mod
	// is model.Hosts; nil otherwise.
	Agents []string
}

// SubHolderItem is a sorted, percentage-annotated child row.
type SubHolderItem struct {
	Data       string
	Hits       uint64
	Visitors   uint64
	Bw         uint64
	Percentage float64
}

// HolderSnapshot is the read-only, sorted, truncated view of one module
// handed to the broadcaster (§4.4).
type HolderSnapshot struct {
	Module      model.Module
	Items       []HolderItem
	ProcessHits uint64
	MaxHits     uint64
	MaxVisitors uint64
}

// Build produces a HolderSnapshot from a module's key→record map.
// processTotal is the denominator for per-entry percentages (§4.4); it is
// ordinarily Store.TotalHits(). maxChoices <= 0 means DefaultMaxChoices.
// agents is consulted only for model.Hosts, populating each HolderItem's
// Agents from the host's HostAgentsSet (§3a); pass nil when --agent-list
// is disabled or the module isn't HOSTS.
func Build(mod model.Module, records map[string]model.MetricsRecord, s Sort, processTotal uint64, maxChoices int, agents map[string][]string) HolderSnapshot {
	if maxChoices <= 0 {
		maxChoices = DefaultMaxChoices
	}

	items := make([]HolderItem, 0, len(records))
	var maxHits, maxVisitors uint64
	for key, rec := range records {
		items = append(items, HolderItem{Data: key, Metrics: rec, Method: rec.Method, Protocol: rec.Protocol})
		if rec.Hits > maxHits {
			maxHits = rec.Hits
		}
		if rec.Visitors > maxVisitors {
			maxVisitors = rec.Visitors
		}
	}

	sortItems(items, s)

	if len(items) > maxChoices {
		items = items[:maxChoices]
	}

	for i := range items {
		items[i].Percentage = percentage(items[i].Metrics.Hits, processTotal)
		if mod.HasSubItems() {
			items[i].Sub = buildSubItems(items[i].Metrics.Sub, s, processTotal)
		}
		if mod == model.Hosts && agents != nil {
			items[i].Agents = agents[items[i].Data]
		}
	}

	return HolderSnapshot{
		Module:      mod,
		Items:       items,
		ProcessHits: processTotal,
		MaxHits:     maxHits,
		MaxVisitors: maxVisitors,
	}
}

func buildSubItems(subs []model.SubItem, s Sort, processTotal uint64) []SubHolderItem {
	out := make([]SubHolderItem, len(subs))
	for i, sub := range subs {
		out[i] = SubHolderItem{Data: sub.Data, Hits: sub.Hits, Visitors: sub.Visitors, Bw: sub.Bw, Percentage: percentage(sub.Hits, processTotal)}
	}
	sortSubItems(out, s)
	return out
}

// percentage clamps to 0 when processTotal is 0, per §4.4.
func percentage(hits, processTotal uint64) float64 {
	if processTotal == 0 {
		return 0
	}
	return 100 * float64(hits) / float64(processTotal)
}

func sortItems(items []HolderItem, s Sort) {
	less := func(i, j int) bool {
		a, b := items[i], items[j]
		switch s.Field {
		case FieldVisitors:
			return compareUint(a.Metrics.Visitors, b.Metrics.Visitors, s.Order)
		case FieldData:
			return compareString(a.Data, b.Data, s.Order)
		case FieldBw:
			return compareUint(a.Metrics.Bandwidth, b.Metrics.Bandwidth, s.Order)
		case FieldUsec:
			return compareUint(a.Metrics.AvgTsUsec, b.Metrics.AvgTsUsec, s.Order)
		case FieldProtocol:
			return compareString(a.Protocol, b.Protocol, s.Order)
		case FieldMethod:
			return compareString(a.Method, b.Method, s.Order)
		default: // FieldHits
			return compareUint(a.Metrics.Hits, b.Metrics.Hits, s.Order)
		}
	}
	sort.SliceStable(items, less)
}

func sortSubItems(items []SubHolderItem, s Sort) {
	less := func(i, j int) bool {
		a, b := items[i], items[j]
		switch s.Field {
		case FieldVisitors:
			return compareUint(a.Visitors, b.Visitors, s.Order)
		case FieldData:
			return compareString(a.Data, b.Data, s.Order)
		case FieldBw:
			return compareUint(a.Bw, b.Bw, s.Order)
		default: // FieldHits and anything request-specific, not meaningful for sub-items
			return compareUint(a.Hits, b.Hits, s.Order)
		}
	}
	sort.SliceStable(items, less)
}

func compareUint(a, b uint64, order Order) bool {
	if order == Asc {
		return a < b
	}
	return a > b
}

func compareString(a, b string, order Order) bool {
	if order == Asc {
		return a < b
	}
	return a > b
}
