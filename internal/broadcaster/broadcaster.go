/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package broadcaster is component H (§4.5 "Outbound path"): on each
// emission tick it builds one HolderSnapshot per module, serializes the
// bundle to JSON, and packetizes it onto the outbound FIFO for the
// WebSocket server to fan out.
package broadcaster

import (
	"encoding/json"
	"time"

	"github.com/webtrail/webtrail/internal/applog"
	"github.com/webtrail/webtrail/internal/fifo"
	"github.com/webtrail/webtrail/internal/holder"
	"github.com/webtrail/webtrail/internal/model"
)

// SnapshotSource is whatever can produce a module's current records and
// the process-wide hit total; internal/store.Store satisfies this.
type SnapshotSource interface {
	Snapshot(m model.Module) map[string]model.MetricsRecord
	TotalHits() uint64
}

// HostAgentSource optionally supplies the HostAgentsSet (§3a) backing the
// HOSTS module's "agents" sub-array. internal/store.Store satisfies this
// when --agent-list is enabled; Options.Store need not implement it.
type HostAgentSource interface {
	HostAgents() map[string][]string
}

// SortFor resolves the active Sort for a module (--sort-panel, §6).
type SortFor func(m model.Module) holder.Sort

// StatsSnapshot is the subset of ingestpipeline.Snapshot the broadcaster
// cares about; kept as a local struct (rather than importing
// ingestpipeline) so broadcaster stays a leaf package. §3a's
// GeneralStats is carried in the "general" block alongside total hits.
type StatsSnapshot struct {
	StartTime time.Time
	Processed uint64
	Invalid   uint64
	Ignored   uint64
	BytesRead uint64
}

// StatsSource supplies the GeneralStats block (§3a); optional — a nil
// Options.Stats simply omits these fields' source and generalBlock falls
// back to zero values.
type StatsSource interface {
	Snapshot() StatsSnapshot
}

// generalBlock is the "general" half of the broadcast JSON shape.
type generalBlock struct {
	TotalRequests uint64 `json:"total_requests"`
	GeneratedAt   string `json:"generated_at"`

	StartTime     string `json:"start_time,omitempty"`
	ProcessedLines uint64 `json:"processed_lines,omitempty"`
	Invalid       uint64 `json:"invalid,omitempty"`
	Ignored       uint64 `json:"ignored,omitempty"`
	BytesRead     uint64 `json:"bytes_read,omitempty"`
	ReqPerSec     float64 `json:"req_per_sec,omitempty"`
}

// moduleBlock is one module's entry under "per_module".
type moduleBlock struct {
	Hits        uint64             `json:"hits"`
	Visits      uint64             `json:"visitors"`
	MaxHits     uint64             `json:"max_hits"`
	MaxVisitors uint64             `json:"max_visitors"`
	Items       []holder.HolderItem `json:"items"`
}

// bundle is the wire shape from §4.5: `{general: {...}, per_module: {...}}`.
type bundle struct {
	General    generalBlock           `json:"general"`
	PerModule  map[string]moduleBlock `json:"per_module"`
}

// Options configures a Broadcaster.
type Options struct {
	Store      SnapshotSource
	SortFor    SortFor
	MaxChoices int
	// Now is injectable for deterministic tests; defaults to time.Now.
	Now func() time.Time
	Log *applog.Logger
	// Stats, when set, populates the GeneralStats fields of the "general"
	// block (§3a).
	Stats StatsSource
}

// Broadcaster owns the outbound FIFO writer and the tick loop.
type Broadcaster struct {
	opts Options
	out  *fifo.Writer
	log  *applog.Logger
}

// New builds a Broadcaster writing packets to out.
func New(out *fifo.Writer, opts Options) *Broadcaster {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Log
	if log == nil {
		log = applog.NewDiscard()
	}
	return &Broadcaster{opts: opts, out: out, log: log}
}

// Tick builds and emits one snapshot bundle (§4.5: "on each emission
// tick"). listener is fifo.Broadcast to push to every client, or a
// specific client ID for a targeted resend.
func (b *Broadcaster) Tick(listener uint32) error {
	payload, err := b.render()
	if err != nil {
		return err
	}
	return b.out.Write(fifo.Packet{Listener: listener, Opcode: fifo.OpcodeText, Payload: payload})
}

// Run ticks on the given interval until stop is closed, logging and
// continuing past any per-tick emission error (§7 IOError: "log and
// retry on next tick").
func (b *Broadcaster) Run(interval time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if err := b.Tick(fifo.Broadcast); err != nil {
				b.log.Warn("broadcast tick failed", applog.KVErr(err))
			}
		}
	}
}

func (b *Broadcaster) render() ([]byte, error) {
	total := b.opts.Store.TotalHits()

	var hostAgents map[string][]string
	if src, ok := b.opts.Store.(HostAgentSource); ok {
		hostAgents = src.HostAgents()
	}

	per := make(map[string]moduleBlock, len(model.Modules()))
	for _, m := range model.Modules() {
		records := b.opts.Store.Snapshot(m)
		s := holder.Sort{Field: holder.FieldHits, Order: holder.Desc}
		if b.opts.SortFor != nil {
			s = b.opts.SortFor(m)
		}
		snap := holder.Build(m, records, s, total, b.opts.MaxChoices, hostAgents)
		per[m.String()] = moduleBlock{
			Hits:        snap.ProcessHits,
			MaxHits:     snap.MaxHits,
			MaxVisitors: snap.MaxVisitors,
			Items:       snap.Items,
		}
	}

	gen := generalBlock{TotalRequests: total, GeneratedAt: b.opts.Now().UTC().Format(time.RFC3339)}
	if b.opts.Stats != nil {
		snap := b.opts.Stats.Snapshot()
		gen.StartTime = snap.StartTime.UTC().Format(time.RFC3339)
		gen.ProcessedLines = snap.Processed
		gen.Invalid = snap.Invalid
		gen.Ignored = snap.Ignored
		gen.BytesRead = snap.BytesRead
		if elapsed := b.opts.Now().Sub(snap.StartTime).Seconds(); elapsed > 0 {
			gen.ReqPerSec = float64(total) / elapsed
		}
	}

	bnd := bundle{
		General:   gen,
		PerModule: per,
	}
	return json.Marshal(bnd)
}
