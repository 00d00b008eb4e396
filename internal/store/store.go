/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package store implements the in-memory aggregation layer (§4.2): it
// absorbs parsed LogItems into per-module counter maps, deduplicates
// unique visitors, and classifies browser/OS/geo data along the way.
package store

import (
	"sync"

	"github.com/webtrail/webtrail/internal/classify"
	"github.com/webtrail/webtrail/internal/geo"
	"github.com/webtrail/webtrail/internal/model"
)

// PersistSink mirrors store upserts to durable storage (§4.2a). It is
// satisfied by internal/counterdb.DB; kept as an interface here so store
// stays ignorant of bbolt specifics.
type PersistSink interface {
	Put(m model.Module, key string, rec model.MetricsRecord) error
}

// Options configures classification and policy choices that affect how a
// LogItem is folded into the store.
type Options struct {
	Classifier      classify.Table
	Geo             geo.Resolver
	RealOS          bool
	ExcludeCrawlers bool // crawler lines never count as a new visitor; their hits still count
	OnNewHost       func(host string)
	// AgentList enables HostAgentsSet tracking (§3a): the per-host set of
	// distinct user-agent strings surfaced as the HOSTS module's "agents"
	// sub-array (--agent-list, §6).
	AgentList bool
	// Persist, when set, mirrors every touched module/key into durable
	// storage after each Ingest (§4.2a).
	Persist PersistSink
}

// Store is the aggregation layer: one ModuleStore per Module, plus the
// global composite-key visitor set. All exported methods are safe for
// concurrent use; a single RWMutex guards the whole structure, matching
// the "atomically with respect to reader snapshots" requirement in §4.2 —
// snapshot reads (RLock) never observe a partial Ingest.
type Store struct {
	mu      sync.RWMutex
	modules [int(moduleCount)]map[string]*model.MetricsRecord
	order   [int(moduleCount)][]string // insertion order of each module's keys; recorded, not read by Snapshot

	visitorKeys map[string]struct{}
	seenHosts   map[string]struct{}

	// hostAgents is HostAgentsSet (§3a): host -> distinct user-agent
	// strings observed for it, in first-seen order. Populated only when
	// opts.AgentList is set; bounded only by memory, no eviction, matching
	// §3's "HostAgentsSet ... bounded only by memory; no eviction".
	hostAgents map[string][]string

	totalHits uint64

	opts Options
}

const moduleCount = 13 // mirrors model.Modules() length; not checked at run time

// New creates an empty Store.
func New(opts Options) *Store {
	s := &Store{
		visitorKeys: make(map[string]struct{}),
		seenHosts:   make(map[string]struct{}),
		opts:        opts,
	}
	if opts.AgentList {
		s.hostAgents = make(map[string][]string)
	}
	for i := range s.modules {
		s.modules[i] = make(map[string]*model.MetricsRecord)
	}
	if s.opts.Geo == nil {
		s.opts.Geo = geo.NopResolver{}
	}
	return s
}

// Seed loads a module's key->record map as read back from
// internal/counterdb on process start (§4.2a), before the parser thread
// begins consuming input. TotalHits is recomputed as the max hits seen
// across VISITORS entries isn't authoritative, so Seed additionally takes
// the resumed hit count explicitly.
func (s *Store) Seed(m model.Module, records map[string]model.MetricsRecord, resumedHits uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range records {
		cp := v
		s.modules[m][k] = &cp
		s.order[m] = append(s.order[m], k)
	}
	s.totalHits += resumedHits
}

// TotalHits returns the number of LogItems folded into the store so far,
// the denominator the snapshot builder uses for per-entry percentages.
func (s *Store) TotalHits() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalHits
}

// Snapshot returns a shallow copy of one module's key→record map, used by
// the snapshot builder (§4.4). Records are copied by value so a caller
// iterating the result is immune to concurrent Ingest calls mutating the
// originals in place.
func (s *Store) Snapshot(m model.Module) map[string]model.MetricsRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.MetricsRecord, len(s.modules[m]))
	for k, v := range s.modules[m] {
		cp := *v
		cp.Sub = append([]model.SubItem(nil), v.Sub...)
		out[k] = cp
	}
	return out
}

// upsert returns the record for key in module m, creating it (and bumping
// the module's distinct-key count) if absent.
func (s *Store) upsert(m model.Module, key string) (*model.MetricsRecord, bool) {
	rec, ok := s.modules[m][key]
	if !ok {
		rec = &model.MetricsRecord{}
		s.modules[m][key] = rec
		s.order[m] = append(s.order[m], key)
	}
	return rec, !ok
}

// Ingest folds one successfully parsed LogItem into every module it
// contributes to (§4.2, items 1-8). The caller is responsible for having
// already excluded ignored lines (logfield.ErrIgnoredLine) before calling
// Ingest — this method has no concept of "ignored", only "counted".
func (s *Store) Ingest(item model.LogItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalHits++

	visitorKey := item.VisitorKey()
	_, seenVisitor := s.visitorKeys[visitorKey]
	isNewVisitor := !seenVisitor
	if isNewVisitor {
		s.visitorKeys[visitorKey] = struct{}{}
	}

	countAsVisitor := isNewVisitor && !(s.opts.ExcludeCrawlers && item.IsCrawler)

	s.ingestVisitors(item, countAsVisitor)
	s.ingestRequest(item, countAsVisitor)
	s.ingestHost(item, countAsVisitor)
	s.ingestBrowserOS(item, countAsVisitor)
	s.ingestReferrers(item, countAsVisitor)
	s.ingestStatus(item, countAsVisitor)
	s.ingestGeo(item, countAsVisitor)
	s.ingestVisitTimes(item, countAsVisitor)
}

// persist mirrors one module/key's current record to the durable sink, if
// configured (§4.2a). Errors are swallowed here: persistence is
// best-effort bookkeeping, never a reason to fail an Ingest call.
func (s *Store) persist(m model.Module, key string, rec model.MetricsRecord) {
	if s.opts.Persist != nil {
		_ = s.opts.Persist.Put(m, key, rec)
	}
}

func bump(rec *model.MetricsRecord, isNewVisitor bool, size, ts uint64) {
	rec.Hits++
	if isNewVisitor {
		rec.Visitors++
	}
	rec.Bandwidth += size
	if ts > 0 {
		rec.AddServeTime(ts)
	}
}

// 1. VISITORS[date]
func (s *Store) ingestVisitors(item model.LogItem, isNewVisitor bool) {
	key := item.DateKey()
	rec, _ := s.upsert(model.Visitors, key)
	bump(rec, isNewVisitor, item.RespSize, 0)
	s.persist(model.Visitors, key, *rec)
}

// 2. REQUESTS / REQUESTS_STATIC / NOT_FOUND
func (s *Store) ingestRequest(item model.LogItem, isNewVisitor bool) {
	mod := model.Requests
	switch {
	case item.Status == "404":
		mod = model.NotFound
	case item.IsStatic:
		mod = model.RequestsStatic
	}
	rec, isNew := s.upsert(mod, item.Request)
	bump(rec, isNewVisitor, item.RespSize, item.ServeUsecs)
	if isNew {
		rec.Method = item.Method
		rec.Protocol = item.Protocol
	}
	s.persist(mod, item.Request, *rec)
}

// 3. HOSTS[host]
func (s *Store) ingestHost(item model.LogItem, isNewVisitor bool) {
	rec, _ := s.upsert(model.Hosts, item.Host)
	bump(rec, isNewVisitor, item.RespSize, item.ServeUsecs)
	if _, seen := s.seenHosts[item.Host]; !seen {
		s.seenHosts[item.Host] = struct{}{}
		if s.opts.OnNewHost != nil {
			s.opts.OnNewHost(item.Host)
		}
	}
	if s.hostAgents != nil {
		s.addHostAgent(item.Host, item.UserAgent)
	}
	s.persist(model.Hosts, item.Host, *rec)
}

// addHostAgent records agent under host's HostAgentsSet entry (§3a),
// coalescing duplicates the same way AddSub coalesces duplicate sub-items.
func (s *Store) addHostAgent(host, agent string) {
	if agent == "" {
		return
	}
	for _, a := range s.hostAgents[host] {
		if a == agent {
			return
		}
	}
	s.hostAgents[host] = append(s.hostAgents[host], agent)
}

// HostAgents returns a snapshot of the HostAgentsSet (§3a): host -> distinct
// user-agents observed for it. Returns nil when --agent-list is disabled.
func (s *Store) HostAgents() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.hostAgents == nil {
		return nil
	}
	out := make(map[string][]string, len(s.hostAgents))
	for h, agents := range s.hostAgents {
		cp := make([]string, len(agents))
		copy(cp, agents)
		out[h] = cp
	}
	return out
}

// 4. OS / BROWSERS with sub-items
func (s *Store) ingestBrowserOS(item model.LogItem, isNewVisitor bool) {
	osFamily, osVersion := s.opts.Classifier.OSWithVersion(item.UserAgent, s.opts.RealOS)
	osRec, _ := s.upsert(model.OS, osFamily)
	bump(osRec, isNewVisitor, item.RespSize, 0)
	visInc := uint64(0)
	if isNewVisitor {
		visInc = 1
	}
	osRec.AddSub(osVersion, 1, visInc, item.RespSize)
	s.persist(model.OS, osFamily, *osRec)

	browserFamily, browserVersion := s.opts.Classifier.BrowserWithVersion(item.UserAgent)
	brRec, _ := s.upsert(model.Browsers, browserFamily)
	bump(brRec, isNewVisitor, item.RespSize, 0)
	brRec.AddSub(browserVersion, 1, visInc, item.RespSize)
	s.persist(model.Browsers, browserFamily, *brRec)
}

// 5. REFERRERS / REFERRING_SITES / KEYPHRASES
func (s *Store) ingestReferrers(item model.LogItem, isNewVisitor bool) {
	if item.Referrer == "" || item.Referrer == "-" {
		return
	}
	rec, _ := s.upsert(model.Referrers, item.Referrer)
	bump(rec, isNewVisitor, item.RespSize, 0)
	s.persist(model.Referrers, item.Referrer, *rec)

	if site, ok := referringSite(item.Referrer); ok {
		siteRec, _ := s.upsert(model.ReferringSites, site)
		bump(siteRec, isNewVisitor, item.RespSize, 0)
		s.persist(model.ReferringSites, site, *siteRec)
	}

	if phrase, ok := keyphrase(item.Referrer); ok {
		kpRec, _ := s.upsert(model.Keyphrases, phrase)
		bump(kpRec, isNewVisitor, item.RespSize, 0)
		s.persist(model.Keyphrases, phrase, *kpRec)
	}
}

// 6. STATUS_CODES[type] with sub-item code
func (s *Store) ingestStatus(item model.LogItem, isNewVisitor bool) {
	class := statusClass(item.Status)
	rec, _ := s.upsert(model.StatusCodes, class)
	bump(rec, isNewVisitor, item.RespSize, 0)
	visInc := uint64(0)
	if isNewVisitor {
		visInc = 1
	}
	rec.AddSub(item.Status, 1, visInc, item.RespSize)
	s.persist(model.StatusCodes, class, *rec)
}

// statusClass mirrors logfield's unexported helper of the same behavior;
// duplicated rather than imported to keep store independent of the field
// parser's internal package.
func statusClass(status string) string {
	if len(status) == 0 {
		return "Unknown"
	}
	switch status[0] {
	case '1':
		return "1xx Informational"
	case '2':
		return "2xx Success"
	case '3':
		return "3xx Redirection"
	case '4':
		return "4xx Client Error"
	case '5':
		return "5xx Server Error"
	default:
		return "Unknown"
	}
}

// 7. GEO_LOCATION[continent_code_plus_name] (e.g. "NA North America") with
// sub-item country.
func (s *Store) ingestGeo(item model.LogItem, isNewVisitor bool) {
	loc, err := s.opts.Geo.Lookup(item.Host)
	continentCode, continentName, country := "", "Unknown", "--"
	if err == nil {
		if loc.Continent != "" {
			continentName = loc.Continent
		}
		if loc.ContinentCode != "" {
			continentCode = loc.ContinentCode
		}
		if loc.CountryName != "" {
			country = loc.CountryName
		}
	}
	key := continentName
	if continentCode != "" {
		key = continentCode + " " + continentName
	}
	rec, _ := s.upsert(model.GeoLocation, key)
	bump(rec, isNewVisitor, item.RespSize, 0)
	visInc := uint64(0)
	if isNewVisitor {
		visInc = 1
	}
	rec.AddSub(country, 1, visInc, item.RespSize)
	s.persist(model.GeoLocation, key, *rec)
}

// 8. VISIT_TIMES[HH]
func (s *Store) ingestVisitTimes(item model.LogItem, isNewVisitor bool) {
	rec, _ := s.upsert(model.VisitTimes, item.Hour)
	bump(rec, isNewVisitor, item.RespSize, 0)
	s.persist(model.VisitTimes, item.Hour, *rec)
}
