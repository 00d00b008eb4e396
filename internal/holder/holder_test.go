/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package holder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/webtrail/webtrail/internal/model"
)

func TestBuildSortsDescendingByHitsDefault(t *testing.T) {
	records := map[string]model.MetricsRecord{
		"/a": {Hits: 5, Visitors: 3},
		"/b": {Hits: 50, Visitors: 10},
		"/c": {Hits: 1, Visitors: 1},
	}
	snap := Build(model.Requests, records, Sort{Field: FieldHits, Order: Desc}, 56, 0, nil)
	require.Len(t, snap.Items, 3)
	require.Equal(t, "/b", snap.Items[0].Data)
	require.Equal(t, "/a", snap.Items[1].Data)
	require.Equal(t, "/c", snap.Items[2].Data)
	require.EqualValues(t, 50, snap.MaxHits)
	require.InDelta(t, 100*50.0/56.0, snap.Items[0].Percentage, 0.001)
}

func TestBuildTruncatesToMaxChoices(t *testing.T) {
	records := make(map[string]model.MetricsRecord)
	for i := 0; i < 10; i++ {
		records[string(rune('a'+i))] = model.MetricsRecord{Hits: uint64(i + 1)}
	}
	snap := Build(model.Requests, records, Sort{Field: FieldHits, Order: Desc}, 100, 3, nil)
	require.Len(t, snap.Items, 3)
}

func TestBuildZeroProcessTotalClampsPercentage(t *testing.T) {
	records := map[string]model.MetricsRecord{"/a": {Hits: 5}}
	snap := Build(model.Requests, records, Sort{Field: FieldHits, Order: Desc}, 0, 0, nil)
	require.Zero(t, snap.Items[0].Percentage)
}

func TestBuildCopiesSubItemsForSubModules(t *testing.T) {
	records := map[string]model.MetricsRecord{
		"Chrome": {Hits: 10, Sub: []model.SubItem{{Data: "116.0", Hits: 6}, {Data: "115.0", Hits: 4}}},
	}
	snap := Build(model.Browsers, records, Sort{Field: FieldHits, Order: Desc}, 10, 0, nil)
	require.Len(t, snap.Items[0].Sub, 2)
	require.Equal(t, "116.0", snap.Items[0].Sub[0].Data)
}

func TestBuildPopulatesHostAgentsOnlyForHostsModule(t *testing.T) {
	records := map[string]model.MetricsRecord{
		"203.0.113.5": {Hits: 2},
	}
	agents := map[string][]string{"203.0.113.5": {"curl/7.0", "Mozilla/5.0"}}

	hostSnap := Build(model.Hosts, records, Sort{Field: FieldHits, Order: Desc}, 2, 0, agents)
	require.Equal(t, []string{"curl/7.0", "Mozilla/5.0"}, hostSnap.Items[0].Agents)

	otherSnap := Build(model.Requests, records, Sort{Field: FieldHits, Order: Desc}, 2, 0, agents)
	require.Nil(t, otherSnap.Items[0].Agents)

	nilAgentsSnap := Build(model.Hosts, records, Sort{Field: FieldHits, Order: Desc}, 2, 0, nil)
	require.Nil(t, nilAgentsSnap.Items[0].Agents)
}

func TestBuildAscendingByData(t *testing.T) {
	records := map[string]model.MetricsRecord{
		"zebra": {Hits: 1},
		"alpha": {Hits: 1},
	}
	snap := Build(model.Requests, records, Sort{Field: FieldData, Order: Asc}, 2, 0, nil)
	require.Equal(t, "alpha", snap.Items[0].Data)
	require.Equal(t, "zebra", snap.Items[1].Data)
}
