/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package broadcaster

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/webtrail/webtrail/internal/fifo"
	"github.com/webtrail/webtrail/internal/model"
)

type fakeStore struct {
	records map[model.Module]map[string]model.MetricsRecord
	total   uint64
}

func (f *fakeStore) Snapshot(m model.Module) map[string]model.MetricsRecord {
	return f.records[m]
}

func (f *fakeStore) TotalHits() uint64 { return f.total }

// fakeStoreWithAgents additionally satisfies HostAgentSource, standing in
// for a store.Store built with Options.AgentList enabled.
type fakeStoreWithAgents struct {
	fakeStore
	agents map[string][]string
}

func (f *fakeStoreWithAgents) HostAgents() map[string][]string { return f.agents }

func TestTickEmitsValidJSONBundle(t *testing.T) {
	store := &fakeStore{
		records: map[model.Module]map[string]model.MetricsRecord{
			model.Requests: {"/x": {Hits: 5, Visitors: 3}},
		},
		total: 5,
	}
	var buf bytes.Buffer
	w := fifo.NewWriter(&buf, false)
	b := New(w, Options{Store: store})

	require.NoError(t, b.Tick(fifo.Broadcast))

	r := fifo.NewReader(&buf, false)
	pkt, err := r.Read()
	require.NoError(t, err)
	require.Equal(t, fifo.Broadcast, pkt.Listener)
	require.Equal(t, fifo.OpcodeText, pkt.Opcode)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(pkt.Payload, &decoded))
	require.Contains(t, decoded, "general")
	require.Contains(t, decoded, "per_module")

	perModule := decoded["per_module"].(map[string]interface{})
	reqs := perModule["REQUESTS"].(map[string]interface{})
	require.EqualValues(t, 5, reqs["hits"])
}

func TestTickIncludesHostAgentsWhenStoreSupportsIt(t *testing.T) {
	store := &fakeStoreWithAgents{
		fakeStore: fakeStore{
			records: map[model.Module]map[string]model.MetricsRecord{
				model.Hosts: {"203.0.113.5": {Hits: 1}},
			},
			total: 1,
		},
		agents: map[string][]string{"203.0.113.5": {"curl/7.0"}},
	}
	var buf bytes.Buffer
	w := fifo.NewWriter(&buf, false)
	b := New(w, Options{Store: store})

	require.NoError(t, b.Tick(fifo.Broadcast))

	r := fifo.NewReader(&buf, false)
	pkt, err := r.Read()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(pkt.Payload, &decoded))
	perModule := decoded["per_module"].(map[string]interface{})
	hosts := perModule["HOSTS"].(map[string]interface{})
	items := hosts["items"].([]interface{})
	item := items[0].(map[string]interface{})
	agents := item["Agents"].([]interface{})
	require.Equal(t, []interface{}{"curl/7.0"}, agents)
}
